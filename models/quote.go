package models

import "time"

// Quote represents a basic market quote for one symbol
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        float64   `json:"volume"`
	AvgVolume     float64   `json:"avg_volume"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PrevClose     float64   `json:"prev_close"`
	Timestamp     time.Time `json:"timestamp"`
}
