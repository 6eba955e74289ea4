package models

import "time"

// AnalysisAction is one per-symbol recommendation from the analyst.
type AnalysisAction struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Signal     string `json:"signal"`
	Action     string `json:"action"`
	Confidence string `json:"confidence,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// AnalysisResult is the structured output of the narrative collaborator.
type AnalysisResult struct {
	Sentiment string           `json:"market_sentiment"`
	Summary   string           `json:"summary"`
	RiskAlert string           `json:"risk_alert,omitempty"`
	Actions   []AnalysisAction `json:"actions"`
	Failed    bool             `json:"failed,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// DailyRecord is the persisted unit for one run. Append-only: a correction
// creates a new record with a higher RunSeq, never an update in place.
type DailyRecord struct {
	Date      string             `json:"date"` // YYYY-MM-DD, exchange time
	Mode      string             `json:"mode"` // midday or close
	RunSeq    int                `json:"run_seq"`
	Timestamp time.Time          `json:"timestamp"`
	Breadth   *MarketBreadth     `json:"breadth,omitempty"`
	Flow      MoneyFlow          `json:"flow"`
	Signals   []Signal           `json:"signals"`
	Snapshots []IndicatorSnapshot `json:"snapshots"`
	Raw       *MarketSnapshot    `json:"raw,omitempty"`
	Analysis  *AnalysisResult    `json:"analysis,omitempty"`
	Partial   bool               `json:"partial"`
}
