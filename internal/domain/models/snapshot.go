package models

import "time"

// MACDSnapshot carries the MACD family values plus derived trend labels.
type MACDSnapshot struct {
	MACD       float64 `json:"macd"`
	Signal     float64 `json:"signal"`
	Histogram  float64 `json:"histogram"`
	Trend      string  `json:"trend"`
	Power      string  `json:"power"`
	Divergence string  `json:"divergence"`
}

type BollSnapshot struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	Bandwidth float64 `json:"bandwidth"`
	Position  string  `json:"position"`
}

type KDJSnapshot struct {
	K      float64 `json:"k"`
	D      float64 `json:"d"`
	J      float64 `json:"j"`
	Cross  string  `json:"cross"`
	Signal string  `json:"signal"`
}

type ATRSnapshot struct {
	ATR        float64 `json:"atr"`
	ATRPct     float64 `json:"atr_pct"`
	Volatility string  `json:"volatility"`
}

type OBVSnapshot struct {
	OBV   float64 `json:"obv"`
	OBVMA float64 `json:"obv_ma"`
	Trend string  `json:"trend"`
}

// IndicatorSnapshot is the derived per-symbol, per-run value object.
// Computed fresh each run, never mutated after creation.
type IndicatorSnapshot struct {
	Code       string             `json:"code"`
	Name       string             `json:"name"`
	Timestamp  time.Time          `json:"timestamp"`
	Price      float64            `json:"price"`
	PctChange  float64            `json:"pct_change"`
	RealtimeMA map[int]float64    `json:"realtime_ma"`
	BiasPct    float64            `json:"bias_pct"`
	MACD       MACDSnapshot       `json:"macd"`
	RSI        float64            `json:"rsi"`
	Boll       BollSnapshot       `json:"boll"`
	KDJ        KDJSnapshot        `json:"kdj"`
	ATR        ATRSnapshot        `json:"atr"`
	OBV        OBVSnapshot        `json:"obv"`
	News       []string           `json:"news,omitempty"`
	Signal     *Signal            `json:"signal,omitempty"`
}

// StockData is the raw per-symbol bundle the collector hands to the
// indicator processor.
type StockData struct {
	Code    string           `json:"code"`
	Name    string           `json:"name"`
	Quote   Quote            `json:"quote"`
	History HistoricalSeries `json:"history"`
	News    []string         `json:"news,omitempty"`
}

// FetchFailure marks one symbol or feed that could not be collected.
type FetchFailure struct {
	Code  string `json:"code,omitempty"`
	Feed  string `json:"feed"`
	Error string `json:"error"`
}

// IndexQuote is a major index level.
type IndexQuote struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Level     float64 `json:"level"`
	PctChange float64 `json:"pct_change"`
}

// MarketSnapshot is the single aggregate produced by one collector run.
// Partial is true when any symbol or optional feed was dropped; consumers
// must surface degraded coverage instead of presenting a full report.
type MarketSnapshot struct {
	AsOf      time.Time      `json:"as_of"`
	Breadth   *MarketBreadth `json:"breadth,omitempty"`
	Indices   []IndexQuote   `json:"indices,omitempty"`
	Flow      MoneyFlow      `json:"flow"`
	MacroNews []string       `json:"macro_news,omitempty"`
	Stocks    []StockData    `json:"stocks"`
	Failures  []FetchFailure `json:"failures,omitempty"`
	Partial   bool           `json:"partial"`
}
