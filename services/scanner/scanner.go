package scanner

import (
	"log"
	"sync"
	"time"

	"market_scanner_backend/config"
	"market_scanner_backend/models"
	"market_scanner_backend/services/universe"
)

// WatchlistProvider supplies the tier-1 symbols scanned every cycle
type WatchlistProvider interface {
	GetSymbols() []string
}

// QuoteFetcher is the external quote collaborator. Implementations must
// tolerate partial or empty results; a nil quote means absent.
type QuoteFetcher interface {
	GetQuote(symbol string) (*models.Quote, error)
	GetQuotesBatch(symbols []string) (map[string]*models.Quote, error)
}

// RVOLEstimator derives a coarse relative-volume estimate from a quote.
// The default volume-ratio implementation is a placeholder signal, not a
// true relative-volume calculation against historical averages.
type RVOLEstimator interface {
	Estimate(quote *models.Quote) float64
}

// VolumeRatioEstimator estimates RVOL as current volume over average
// volume, falling back to a configured baseline when the feed carries
// no average
type VolumeRatioEstimator struct {
	BaselineVolume float64
}

// Estimate implements RVOLEstimator
func (e VolumeRatioEstimator) Estimate(quote *models.Quote) float64 {
	if quote == nil {
		return 0
	}
	if quote.AvgVolume > 0 {
		return quote.Volume / quote.AvgVolume
	}
	if e.BaselineVolume > 0 {
		return quote.Volume / e.BaselineVolume
	}
	return 0
}

// Batch is the prioritized, deduplicated set of symbols to scan this
// cycle. Tiers are pairwise disjoint; tier 1 wins ties, then tier 2.
type Batch struct {
	Tier1            []string `json:"tier1"`
	Tier2            []string `json:"tier2"`
	Tier3            []string `json:"tier3"`
	WaveNumber       int      `json:"wave_number"`
	TotalSymbols     int      `json:"total_symbols"`
	UniverseProgress float64  `json:"universe_progress"`
	FullScanComplete bool     `json:"full_scan_complete"`
}

// Symbols returns the batch flattened in tier priority order
func (b Batch) Symbols() []string {
	out := make([]string, 0, len(b.Tier1)+len(b.Tier2)+len(b.Tier3))
	out = append(out, b.Tier1...)
	out = append(out, b.Tier2...)
	out = append(out, b.Tier3...)
	return out
}

// Stats holds the scanner's cumulative counters
type Stats struct {
	ScanCount           int64      `json:"scan_count"`
	TotalSymbolsScanned int64      `json:"total_symbols_scanned"`
	TotalAlerts         int64      `json:"total_alerts"`
	LastDurationMs      int64      `json:"last_duration_ms"`
	LastWaveNumber      int        `json:"last_wave_number"`
	FullScansCompleted  int64      `json:"full_scans_completed"`
	LastFullScanAt      *time.Time `json:"last_full_scan_at,omitempty"`
	HotPoolSize         int        `json:"hot_pool_size"`
	HotPoolRefreshedAt  *time.Time `json:"hot_pool_refreshed_at,omitempty"`
}

// ConfigView is the read-only configuration exposed by Config()
type ConfigView struct {
	config.ScannerConfig
	TierDescriptions map[string]string `json:"tier_descriptions"`
}

type rvolEntry struct {
	value     float64
	fetchedAt time.Time
}

// WaveScanner assembles the per-cycle scan batch from three tiers:
// the watchlist, the high-activity hot pool, and the rotating wave.
// ScanBatch advances the wave cursor and is not safe to call from two
// cycles concurrently; the scan loop is the single caller.
type WaveScanner struct {
	cfg       config.ScannerConfig
	universe  *universe.Manager
	watchlist WatchlistProvider
	fetcher   QuoteFetcher
	estimator RVOLEstimator

	mu             sync.Mutex
	hotPool        []string
	hotPoolAt      time.Time
	lastWaveNumber int
	rvolCache      map[string]rvolEntry
	stats          Stats
}

// NewWaveScanner creates a scanner over the given collaborators. The
// estimator may be nil, in which case the volume-ratio placeholder is
// used.
func NewWaveScanner(cfg config.ScannerConfig, um *universe.Manager, wl WatchlistProvider, qf QuoteFetcher, est RVOLEstimator) *WaveScanner {
	if est == nil {
		est = VolumeRatioEstimator{BaselineVolume: cfg.RVOLBaselineVolume}
	}
	return &WaveScanner{
		cfg:            cfg,
		universe:       um,
		watchlist:      wl,
		fetcher:        qf,
		estimator:      est,
		lastWaveNumber: -1,
		rvolCache:      make(map[string]rvolEntry),
	}
}

// ScanBatch composes the next scan cycle: tier 1 watchlist, tier 2 hot
// pool (refreshed when stale), tier 3 the next universe wave, then a
// priority-order dedupe so no symbol is scanned twice in one cycle.
func (ws *WaveScanner) ScanBatch() Batch {
	tier1 := dedupe(normalizeAll(ws.watchlist.GetSymbols()))

	tier2 := ws.hotPoolSymbols()

	wave, waveNumber, wrapped := ws.universe.NextWave(ws.cfg.WaveSize)

	t1set := toSet(tier1)
	tier2 = subtract(tier2, t1set)
	t2set := toSet(tier2)
	tier3 := subtract(subtract(wave, t1set), t2set)

	ws.mu.Lock()
	if wrapped {
		now := time.Now()
		ws.stats.FullScansCompleted++
		ws.stats.LastFullScanAt = &now
		log.Printf("Full universe scan complete (pass %d)", ws.stats.FullScansCompleted)
	}
	ws.stats.LastWaveNumber = waveNumber
	ws.lastWaveNumber = waveNumber
	ws.mu.Unlock()

	info := ws.universe.WrapInfo(ws.cfg.WaveSize)

	return Batch{
		Tier1:            tier1,
		Tier2:            tier2,
		Tier3:            tier3,
		WaveNumber:       waveNumber,
		TotalSymbols:     info.TotalSymbols,
		UniverseProgress: info.ProgressPct,
		FullScanComplete: wrapped,
	}
}

// hotPoolSymbols returns the current high-activity pool, refreshing it
// first when its age exceeds the configured interval
func (ws *WaveScanner) hotPoolSymbols() []string {
	ws.mu.Lock()
	stale := time.Since(ws.hotPoolAt) > ws.cfg.HotPoolRefreshInterval
	pool := append([]string(nil), ws.hotPool...)
	ws.mu.Unlock()

	if !stale {
		return pool
	}

	refreshed := ws.refreshHotPool()

	ws.mu.Lock()
	now := time.Now()
	ws.hotPool = refreshed
	ws.hotPoolAt = now
	ws.stats.HotPoolSize = len(refreshed)
	ws.stats.HotPoolRefreshedAt = &now
	ws.mu.Unlock()

	return append([]string(nil), refreshed...)
}

// refreshHotPool queries the top priority symbols in fixed-size
// sub-batches with an inter-batch pause and keeps those above the
// liquidity floor. A failed sub-batch is included wholesale: coverage
// must not shrink because of transient API errors.
func (ws *WaveScanner) refreshHotPool() []string {
	candidates := ws.universe.Priority(ws.cfg.HotPoolSize)
	if len(candidates) == 0 {
		return nil
	}

	pool := make([]string, 0, len(candidates))
	for start := 0; start < len(candidates); start += ws.cfg.SubBatchSize {
		end := start + ws.cfg.SubBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[start:end]

		quotes, err := ws.fetcher.GetQuotesBatch(chunk)
		if err != nil {
			log.Printf("Hot pool refresh: batch fetch failed (%v), including %d symbols unfiltered", err, len(chunk))
			pool = append(pool, chunk...)
		} else {
			for _, sym := range chunk {
				quote, ok := quotes[sym]
				if !ok || quote == nil {
					continue
				}
				if quote.Volume >= ws.cfg.LiquidityFloor {
					pool = append(pool, sym)
				}
			}
		}

		if end < len(candidates) && ws.cfg.InterBatchDelay > 0 {
			time.Sleep(ws.cfg.InterBatchDelay)
		}
	}

	log.Printf("Hot pool refreshed: %d of %d candidates above liquidity floor", len(pool), len(candidates))
	return pool
}

// SymbolRVOL returns a cached coarse relative-volume estimate for the
// symbol, fetching a fresh quote on cache miss. Fetch failures yield a
// neutral 0 instead of an error; this value feeds filtering elsewhere
// and must never block the caller.
func (ws *WaveScanner) SymbolRVOL(symbol string) float64 {
	sym := universe.NormalizeSymbol(symbol)

	ws.mu.Lock()
	if entry, ok := ws.rvolCache[sym]; ok && time.Since(entry.fetchedAt) < ws.cfg.RVOLCacheTTL {
		ws.mu.Unlock()
		return entry.value
	}
	ws.mu.Unlock()

	value := 0.0
	quote, err := ws.fetcher.GetQuote(sym)
	if err != nil {
		log.Printf("RVOL fetch failed for %s: %v", sym, err)
	} else if quote != nil {
		value = ws.estimator.Estimate(quote)
	}

	ws.mu.Lock()
	ws.rvolCache[sym] = rvolEntry{value: value, fetchedAt: time.Now()}
	ws.mu.Unlock()
	return value
}

// RecordScanComplete accumulates running totals for one finished cycle
func (ws *WaveScanner) RecordScanComplete(symbolsScanned, alertsGenerated int, durationMs int64) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.stats.ScanCount++
	ws.stats.TotalSymbolsScanned += int64(symbolsScanned)
	ws.stats.TotalAlerts += int64(alertsGenerated)
	ws.stats.LastDurationMs = durationMs
}

// Stats returns a snapshot of the cumulative counters
func (ws *WaveScanner) Stats() Stats {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.stats
}

// InvalidateHotPool forces the next ScanBatch to refresh the hot pool
func (ws *WaveScanner) InvalidateHotPool() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.hotPoolAt = time.Time{}
}

// Config returns the static configuration with tier descriptions
func (ws *WaveScanner) Config() ConfigView {
	return ConfigView{
		ScannerConfig: ws.cfg,
		TierDescriptions: map[string]string{
			"tier1": "user watchlist, scanned every cycle",
			"tier2": "high-activity pool, liquid symbols refreshed periodically",
			"tier3": "rotating universe wave, guarantees bounded-latency coverage of every symbol",
		},
	}
}

func normalizeAll(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if sym := universe.NormalizeSymbol(s); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func toSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

func subtract(symbols []string, exclude map[string]struct{}) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := exclude[s]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}
