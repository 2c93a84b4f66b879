package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds application configuration loaded from the environment
type Config struct {
	Port              string
	Environment       string
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	MongoURI          string
	MongoDBName       string
	QuoteAPIURL       string
	IndexAPIURL       string
	JWTSecret         string
	AdminPasswordHash string
	QuoteArchivePath  string
	Scanner           ScannerConfig
}

// ScannerConfig enumerates all tunables of the wave scanning core.
// Defaults come from DefaultScannerConfig; Validate rejects values that
// would break wave partitioning or the hot-pool refresh loop.
type ScannerConfig struct {
	WaveSize               int           `json:"wave_size"`
	HotPoolSize            int           `json:"hot_pool_size"`
	SubBatchSize           int           `json:"sub_batch_size"`
	InterBatchDelay        time.Duration `json:"inter_batch_delay"`
	HotPoolRefreshInterval time.Duration `json:"hot_pool_refresh_interval"`
	RVOLCacheTTL           time.Duration `json:"rvol_cache_ttl"`
	LiquidityFloor         float64       `json:"liquidity_floor"`
	RVOLBaselineVolume     float64       `json:"rvol_baseline_volume"`
	ScanInterval           time.Duration `json:"scan_interval"`
	MarketHoursOnly        bool          `json:"market_hours_only"`
}

// DefaultScannerConfig returns the stock scanner defaults
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		WaveSize:               200,
		HotPoolSize:            500,
		SubBatchSize:           50,
		InterBatchDelay:        250 * time.Millisecond,
		HotPoolRefreshInterval: 10 * time.Minute,
		RVOLCacheTTL:           5 * time.Minute,
		LiquidityFloor:         500000,
		RVOLBaselineVolume:     1000000,
		ScanInterval:           60 * time.Second,
		MarketHoursOnly:        false,
	}
}

// Validate rejects configurations that cannot drive a scan cycle
func (sc ScannerConfig) Validate() error {
	if sc.WaveSize <= 0 {
		return fmt.Errorf("invalid scanner config: wave size must be positive, got %d", sc.WaveSize)
	}
	if sc.SubBatchSize <= 0 {
		return fmt.Errorf("invalid scanner config: sub-batch size must be positive, got %d", sc.SubBatchSize)
	}
	if sc.HotPoolSize < 0 {
		return fmt.Errorf("invalid scanner config: hot pool size must not be negative, got %d", sc.HotPoolSize)
	}
	if sc.InterBatchDelay < 0 {
		return fmt.Errorf("invalid scanner config: inter-batch delay must not be negative")
	}
	if sc.HotPoolRefreshInterval <= 0 {
		return fmt.Errorf("invalid scanner config: hot pool refresh interval must be positive")
	}
	if sc.RVOLCacheTTL <= 0 {
		return fmt.Errorf("invalid scanner config: RVOL cache TTL must be positive")
	}
	if sc.ScanInterval <= 0 {
		return fmt.Errorf("invalid scanner config: scan interval must be positive")
	}
	return nil
}

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	scanner := DefaultScannerConfig()
	scanner.WaveSize = getEnvInt("SCANNER_WAVE_SIZE", scanner.WaveSize)
	scanner.HotPoolSize = getEnvInt("SCANNER_HOT_POOL_SIZE", scanner.HotPoolSize)
	scanner.SubBatchSize = getEnvInt("SCANNER_SUB_BATCH_SIZE", scanner.SubBatchSize)
	scanner.InterBatchDelay = time.Duration(getEnvInt("SCANNER_BATCH_DELAY_MS", int(scanner.InterBatchDelay/time.Millisecond))) * time.Millisecond
	scanner.HotPoolRefreshInterval = time.Duration(getEnvInt("SCANNER_HOT_POOL_REFRESH_MIN", int(scanner.HotPoolRefreshInterval/time.Minute))) * time.Minute
	scanner.RVOLCacheTTL = time.Duration(getEnvInt("SCANNER_RVOL_TTL_MIN", int(scanner.RVOLCacheTTL/time.Minute))) * time.Minute
	scanner.LiquidityFloor = getEnvFloat("SCANNER_LIQUIDITY_FLOOR", scanner.LiquidityFloor)
	scanner.RVOLBaselineVolume = getEnvFloat("SCANNER_RVOL_BASELINE_VOLUME", scanner.RVOLBaselineVolume)
	scanner.ScanInterval = time.Duration(getEnvInt("SCANNER_SCAN_INTERVAL_SEC", int(scanner.ScanInterval/time.Second))) * time.Second
	scanner.MarketHoursOnly = getEnvBool("SCANNER_MARKET_HOURS_ONLY", scanner.MarketHoursOnly)

	if err := scanner.Validate(); err != nil {
		return nil, err
	}

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		DBHost:            getEnv("DB_HOST", ""),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", "scanner_db"),
		MongoURI:          getEnv("MONGODB_URI", ""),
		MongoDBName:       getEnv("MONGODB_DB_NAME", "scanner"),
		QuoteAPIURL:       getEnv("QUOTE_API_URL", ""),
		IndexAPIURL:       getEnv("INDEX_API_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", "your-secret-key"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		QuoteArchivePath:  getEnv("QUOTE_ARCHIVE_PATH", "data/quotes.db"),
		Scanner:           scanner,
	}

	return config, nil
}

// InitDB initializes the PostgreSQL connection. Returns an error when no
// DB_HOST is configured; callers treat that as running without a database.
func InitDB(cfg *Config) (*gorm.DB, error) {
	if cfg.DBHost == "" {
		return nil, fmt.Errorf("DB_HOST not configured")
	}

	log.Printf("Connecting to database: host=%s port=%s user=%s dbname=%s",
		maskHost(cfg.DBHost), cfg.DBPort, cfg.DBUser, cfg.DBName)

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=require TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Printf("Database connection verified successfully")
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return b
}
