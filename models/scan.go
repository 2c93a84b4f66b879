package models

import (
	"time"

	"gorm.io/gorm"
)

// ScanRun journals one completed scan cycle
type ScanRun struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	WaveNumber       int       `json:"wave_number"`
	Tier1Count       int       `json:"tier1_count"`
	Tier2Count       int       `json:"tier2_count"`
	Tier3Count       int       `json:"tier3_count"`
	SymbolsScanned   int       `json:"symbols_scanned"`
	AlertsGenerated  int       `json:"alerts_generated"`
	DurationMs       int64     `json:"duration_ms"`
	FullScanComplete bool      `json:"full_scan_complete"`
	CreatedAt        time.Time `json:"created_at"`
}

// MigrateScanModels runs database migrations for scan-related models
func MigrateScanModels(db *gorm.DB) error {
	return db.AutoMigrate(&ScanRun{})
}
