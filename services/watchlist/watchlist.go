package watchlist

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"market_scanner_backend/models"
	"market_scanner_backend/services/universe"
)

// Service manages the user watchlist (tier 1 of the scan batch). With a
// database it persists entries through gorm; without one it degrades to
// an in-memory set so the scanner keeps working.
type Service struct {
	db *gorm.DB

	mu     sync.RWMutex
	memory map[string]models.WatchlistEntry
}

// NewService creates a watchlist service. db may be nil.
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:     db,
		memory: make(map[string]models.WatchlistEntry),
	}
}

// GetSymbols returns the watchlist symbols. Errors degrade to an empty
// list; a scan cycle must never fail because the watchlist is
// unavailable.
func (s *Service) GetSymbols() []string {
	entries, err := s.List()
	if err != nil {
		log.Printf("Watchlist load failed, scanning without tier 1: %v", err)
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Symbol)
	}
	return out
}

// List returns all watchlist entries
func (s *Service) List() ([]models.WatchlistEntry, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		out := make([]models.WatchlistEntry, 0, len(s.memory))
		for _, e := range s.memory {
			out = append(out, e)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
		return out, nil
	}

	var entries []models.WatchlistEntry
	if err := s.db.Order("symbol").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}
	return entries, nil
}

// Add inserts or updates one watchlist entry
func (s *Service) Add(symbol, note string, addedPrice decimal.Decimal) (models.WatchlistEntry, error) {
	sym := universe.NormalizeSymbol(symbol)
	if sym == "" {
		return models.WatchlistEntry{}, fmt.Errorf("empty symbol")
	}

	entry := models.WatchlistEntry{
		Symbol:     sym,
		Note:       note,
		AddedPrice: addedPrice,
	}

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.memory[sym]; ok {
			entry.ID = existing.ID
			entry.CreatedAt = existing.CreatedAt
		} else {
			entry.ID = uint(len(s.memory) + 1)
		}
		s.memory[sym] = entry
		return entry, nil
	}

	var existing models.WatchlistEntry
	err := s.db.Where("symbol = ?", sym).First(&existing).Error
	if err == nil {
		existing.Note = note
		existing.AddedPrice = addedPrice
		if err := s.db.Save(&existing).Error; err != nil {
			return models.WatchlistEntry{}, fmt.Errorf("failed to update watchlist entry: %w", err)
		}
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return models.WatchlistEntry{}, fmt.Errorf("failed to check watchlist entry: %w", err)
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return models.WatchlistEntry{}, fmt.Errorf("failed to create watchlist entry: %w", err)
	}
	return entry, nil
}

// Remove deletes one watchlist entry, no-oping when absent
func (s *Service) Remove(symbol string) error {
	sym := universe.NormalizeSymbol(symbol)

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.memory, sym)
		return nil
	}

	if err := s.db.Where("symbol = ?", sym).Delete(&models.WatchlistEntry{}).Error; err != nil {
		return fmt.Errorf("failed to remove watchlist entry: %w", err)
	}
	return nil
}
