package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"market_scanner_backend/models"
	"market_scanner_backend/services/marketcache"
)

// QuoteArchive persists last-known-good quotes to a local SQLite file
// so the cache can warm-start after a restart with original
// timestamps preserved.
type QuoteArchive struct {
	db *sql.DB
	mu sync.Mutex
}

// NewQuoteArchive opens (or creates) the archive database at path
func NewQuoteArchive(path string) (*QuoteArchive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open quote archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping quote archive: %w", err)
	}

	archive := &QuoteArchive{db: db}
	if err := archive.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create archive tables: %w", err)
	}
	return archive, nil
}

func (a *QuoteArchive) createTables() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS quotes (
			symbol TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			last_updated TIMESTAMP NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database
func (a *QuoteArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db.Close()
}

// Snapshot writes every quote entry currently in the cache to the
// archive, replacing prior rows per symbol
func (a *QuoteArchive) Snapshot(cache *marketcache.Cache) error {
	entries := cache.Entries(marketcache.KindQuote)
	if len(entries) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO quotes (symbol, payload, last_updated) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare snapshot statement: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for _, entry := range entries {
		payload, err := json.Marshal(entry.Payload)
		if err != nil {
			log.Printf("Quote archive: skipping %s, marshal failed: %v", entry.Key, err)
			continue
		}
		if _, err := stmt.Exec(entry.Key, string(payload), entry.LastUpdated); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to archive quote %s: %w", entry.Key, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	log.Printf("Quote archive snapshot: %d quotes saved", saved)
	return nil
}

// WarmStart restores archived quotes into the cache, preserving their
// original timestamps so restored data is visibly stale
func (a *QuoteArchive) WarmStart(cache *marketcache.Cache) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.Query(`SELECT symbol, payload, last_updated FROM quotes`)
	if err != nil {
		return 0, fmt.Errorf("failed to read quote archive: %w", err)
	}
	defer rows.Close()

	restored := 0
	for rows.Next() {
		var symbol, payload string
		var lastUpdated time.Time
		if err := rows.Scan(&symbol, &payload, &lastUpdated); err != nil {
			return restored, fmt.Errorf("failed to scan archived quote: %w", err)
		}

		var quote models.Quote
		if err := json.Unmarshal([]byte(payload), &quote); err != nil {
			log.Printf("Quote archive: skipping %s, unmarshal failed: %v", symbol, err)
			continue
		}
		cache.Restore(marketcache.KindQuote, symbol, &quote, lastUpdated)
		restored++
	}
	if err := rows.Err(); err != nil {
		return restored, fmt.Errorf("failed to iterate quote archive: %w", err)
	}

	if restored > 0 {
		log.Printf("Quote archive warm start: %d quotes restored", restored)
	}
	return restored, nil
}

// Count returns the number of archived quotes
func (a *QuoteArchive) Count() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var count int64
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM quotes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count archived quotes: %w", err)
	}
	return count, nil
}
