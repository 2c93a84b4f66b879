package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScannerConfig(t *testing.T) {
	cfg := DefaultScannerConfig()

	assert.Equal(t, 200, cfg.WaveSize)
	assert.Equal(t, 500, cfg.HotPoolSize)
	assert.Equal(t, 50, cfg.SubBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.InterBatchDelay)
	assert.Equal(t, 10*time.Minute, cfg.HotPoolRefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.RVOLCacheTTL)
	assert.Equal(t, 500000.0, cfg.LiquidityFloor)
	assert.Equal(t, 60*time.Second, cfg.ScanInterval)

	require.NoError(t, cfg.Validate())
}

func TestScannerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ScannerConfig)
		errMsg string
	}{
		{"zero wave size", func(c *ScannerConfig) { c.WaveSize = 0 }, "wave size"},
		{"negative wave size", func(c *ScannerConfig) { c.WaveSize = -5 }, "wave size"},
		{"zero sub-batch size", func(c *ScannerConfig) { c.SubBatchSize = 0 }, "sub-batch size"},
		{"negative hot pool size", func(c *ScannerConfig) { c.HotPoolSize = -1 }, "hot pool size"},
		{"negative inter-batch delay", func(c *ScannerConfig) { c.InterBatchDelay = -time.Second }, "inter-batch delay"},
		{"zero refresh interval", func(c *ScannerConfig) { c.HotPoolRefreshInterval = 0 }, "refresh interval"},
		{"zero rvol ttl", func(c *ScannerConfig) { c.RVOLCacheTTL = 0 }, "TTL"},
		{"zero scan interval", func(c *ScannerConfig) { c.ScanInterval = 0 }, "scan interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScannerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestScannerConfigAllowsZeroHotPool(t *testing.T) {
	cfg := DefaultScannerConfig()
	cfg.HotPoolSize = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigReadsScannerOverrides(t *testing.T) {
	t.Setenv("SCANNER_WAVE_SIZE", "100")
	t.Setenv("SCANNER_LIQUIDITY_FLOOR", "250000")
	t.Setenv("SCANNER_MARKET_HOURS_ONLY", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Scanner.WaveSize)
	assert.Equal(t, 250000.0, cfg.Scanner.LiquidityFloor)
	assert.True(t, cfg.Scanner.MarketHoursOnly)
}

func TestLoadConfigRejectsInvalidScanner(t *testing.T) {
	t.Setenv("SCANNER_WAVE_SIZE", "-1")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wave size")
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "scanner_db", cfg.DBName)
	assert.Equal(t, "data/quotes.db", cfg.QuoteArchivePath)
	assert.Equal(t, 200, cfg.Scanner.WaveSize)
}

func TestMaskHost(t *testing.T) {
	assert.Equal(t, "***", maskHost("db"))
	assert.Equal(t, "loc***", maskHost("localhost"))
	assert.Equal(t, "db.examp***ternal.com", maskHost("db.example.internal.com"))
}
