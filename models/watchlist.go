package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WatchlistEntry represents one user-curated symbol requiring
// every-cycle attention (tier 1 of the scan batch)
type WatchlistEntry struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Symbol     string          `gorm:"uniqueIndex;not null" json:"symbol"`
	Note       string          `json:"note"`
	AddedPrice decimal.Decimal `gorm:"type:decimal(15,2)" json:"added_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// MigrateWatchlistModels runs database migrations for watchlist models
func MigrateWatchlistModels(db *gorm.DB) error {
	return db.AutoMigrate(&WatchlistEntry{})
}
