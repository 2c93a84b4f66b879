package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"

	"market_scanner_backend/config"
	"market_scanner_backend/models"
	"market_scanner_backend/services"
	"market_scanner_backend/services/marketcache"
	"market_scanner_backend/services/scanner"
	"market_scanner_backend/services/universe"
)

// PendingRefreshChunk bounds how many stale symbols one drain pass
// re-fetches after a reconnect
const PendingRefreshChunk = 50

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron      *gocron.Scheduler
	cfg       *config.Config
	db        *gorm.DB
	scanner   *scanner.WaveScanner
	universe  *universe.Manager
	cache     *marketcache.Cache
	fetcher   scanner.QuoteFetcher
	indexList *services.IndexListService
	archive   *services.QuoteArchive
	realtime  *services.RealtimeScanService
	mongo     *services.MongoDBClient
}

// NewScheduler creates a new scheduler instance. db, archive, realtime
// and mongo may be nil; the corresponding jobs degrade to no-ops.
func NewScheduler(cfg *config.Config, db *gorm.DB, ws *scanner.WaveScanner, um *universe.Manager,
	cache *marketcache.Cache, fetcher scanner.QuoteFetcher, il *services.IndexListService,
	archive *services.QuoteArchive, realtime *services.RealtimeScanService,
	mongo *services.MongoDBClient) *Scheduler {
	return &Scheduler{
		cron:      gocron.NewScheduler(time.UTC),
		cfg:       cfg,
		db:        db,
		scanner:   ws,
		universe:  um,
		cache:     cache,
		fetcher:   fetcher,
		indexList: il,
		archive:   archive,
		realtime:  realtime,
		mongo:     mongo,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Scan cycle: the single logical scan loop. gocron's default
	// singleton behavior per job keeps cycles from overlapping, which
	// matters because ScanBatch advances the wave cursor.
	s.cron.Every(int(s.cfg.Scanner.ScanInterval.Seconds())).Seconds().SingletonMode().Do(func() {
		if s.cfg.Scanner.MarketHoursOnly && !isMarketOpen() {
			return
		}
		s.runScanCycle()
	})

	// Drain pending-refresh keys after a reconnect
	s.cron.Every(1).Minute().SingletonMode().Do(func() {
		s.drainPendingRefresh()
	})

	// Reload index constituent lists daily before the open
	s.cron.Every(1).Day().At("08:00").Do(func() {
		s.reloadUniverse()
	})

	// Snapshot cached quotes to the local archive
	s.cron.Every(5).Minutes().Do(func() {
		s.snapshotQuotes()
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// runScanCycle assembles the next batch and refreshes quotes for it.
// Per-symbol analysis belongs to downstream consumers; the loop's job
// is coverage: every symbol in the batch gets a fresh (or failed-over
// cached) quote this cycle.
func (s *Scheduler) runScanCycle() {
	start := time.Now()
	batch := s.scanner.ScanBatch()
	symbols := batch.Symbols()
	if len(symbols) == 0 {
		log.Println("Scan cycle: empty batch, universe not loaded yet")
		return
	}

	fetched := 0
	for begin := 0; begin < len(symbols); begin += s.cfg.Scanner.SubBatchSize {
		end := begin + s.cfg.Scanner.SubBatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		chunk := symbols[begin:end]

		quotes, err := s.fetcher.GetQuotesBatch(chunk)
		if err != nil {
			// Cached data stays servable; this cycle just won't freshen
			// these symbols
			log.Printf("Scan cycle: quote fetch failed for %d symbols: %v", len(chunk), err)
		} else {
			fetched += len(quotes)
		}

		if end < len(symbols) && s.cfg.Scanner.InterBatchDelay > 0 {
			time.Sleep(s.cfg.Scanner.InterBatchDelay)
		}
	}

	durationMs := time.Since(start).Milliseconds()
	s.scanner.RecordScanComplete(len(symbols), 0, durationMs)

	if s.db != nil {
		run := models.ScanRun{
			WaveNumber:       batch.WaveNumber,
			Tier1Count:       len(batch.Tier1),
			Tier2Count:       len(batch.Tier2),
			Tier3Count:       len(batch.Tier3),
			SymbolsScanned:   len(symbols),
			DurationMs:       durationMs,
			FullScanComplete: batch.FullScanComplete,
		}
		if err := s.db.Create(&run).Error; err != nil {
			log.Printf("Scan cycle: failed to journal run: %v", err)
		}
	}

	if s.realtime != nil {
		s.realtime.BroadcastScanCycle(batch, durationMs)
		if batch.FullScanComplete {
			s.realtime.BroadcastFullScanComplete(s.scanner.Stats())
		}
	}

	if batch.FullScanComplete && s.mongo != nil && s.mongo.IsConfigured() {
		stats := s.scanner.Stats()
		go func() {
			summary := map[string]interface{}{
				"wave_number":          batch.WaveNumber,
				"total_symbols":        batch.TotalSymbols,
				"full_scans_completed": stats.FullScansCompleted,
				"scan_count":           stats.ScanCount,
				"duration_ms":          durationMs,
			}
			if err := s.mongo.SaveScanSummary(summary); err != nil {
				log.Printf("Scan summary Mongo save failed: %v", err)
			}
		}()
	}

	log.Printf("Scan cycle complete: wave=%d tiers=%d/%d/%d fetched=%d duration=%dms",
		batch.WaveNumber, len(batch.Tier1), len(batch.Tier2), len(batch.Tier3), fetched, durationMs)
}

// drainPendingRefresh re-fetches a bounded chunk of the symbols queued
// by the last reconnect
func (s *Scheduler) drainPendingRefresh() {
	pending := s.cache.PendingRefresh()
	if len(pending) == 0 {
		return
	}
	if len(pending) > PendingRefreshChunk {
		pending = pending[:PendingRefreshChunk]
	}

	quotes, err := s.fetcher.GetQuotesBatch(pending)
	if err != nil {
		log.Printf("Pending refresh: fetch failed: %v", err)
		return
	}
	// Fresh puts clear their own pending flag; explicitly clear symbols
	// the upstream no longer knows so they don't linger forever
	for _, sym := range pending {
		if _, ok := quotes[sym]; !ok {
			s.cache.MarkRefreshed(sym)
		}
	}
	log.Printf("Pending refresh: %d of %d symbols refreshed", len(quotes), len(pending))
}

// reloadUniverse re-resolves the index constituent lists and reloads
// the universe manager
func (s *Scheduler) ReloadUniverse() {
	s.reloadUniverse()
}

func (s *Scheduler) reloadUniverse() {
	indices := s.indexList.FetchIndexLists()
	s.universe.Load(indices)
	s.scanner.InvalidateHotPool()
}

func (s *Scheduler) snapshotQuotes() {
	if s.archive == nil {
		return
	}
	if err := s.archive.Snapshot(s.cache); err != nil {
		log.Printf("Quote archive snapshot failed: %v", err)
	}
}

// isMarketOpen checks US equity regular trading hours
func isMarketOpen() bool {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return true
	}
	now := time.Now().In(loc)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}

	open := time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, loc)
	close := time.Date(now.Year(), now.Month(), now.Day(), 16, 0, 0, 0, loc)
	return !now.Before(open) && now.Before(close)
}
