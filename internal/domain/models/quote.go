package models

import "time"

// Quote is one symbol's most recent observed price. Ephemeral: produced per
// poll, never persisted directly.
type Quote struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	PctChange float64   `json:"pct_change"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
	SourceID  string    `json:"source_id"`
}

// MarketBreadth summarizes market-wide rise/fall counts.
type MarketBreadth struct {
	Rise int `json:"rise"`
	Fall int `json:"fall"`
	Flat int `json:"flat"`
}

// MoneyFlow is the smart-money inflow proxy (net northbound flow, 100M CNY).
// Available is false when no source could produce it this run; classification
// must then fail conservative.
type MoneyFlow struct {
	NetInflow float64 `json:"net_inflow"`
	Available bool    `json:"available"`
}
