package models

import "time"

// Outcome is the realized verdict for a past signal.
type Outcome string

const (
	OutcomeHit          Outcome = "HIT"
	OutcomeMiss         Outcome = "MISS"
	OutcomeInconclusive Outcome = "INCONCLUSIVE"
)

// HitRateEntry scores one past Signal against the realized price move over
// the evaluation lag. Immutable once computed.
type HitRateEntry struct {
	Date        string      `json:"date"`
	Mode        string      `json:"mode"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	State       SignalState `json:"state"`
	RealizedPct float64     `json:"realized_pct"`
	Outcome     Outcome     `json:"outcome"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// StateStats is the hit tally for one signal state.
type StateStats struct {
	Total int     `json:"total"`
	Hits  int     `json:"hits"`
	Rate  float64 `json:"rate"`
}

// Scorecard aggregates hit-rate over a trailing window. Samples excludes
// INCONCLUSIVE entries; the rate is meaningless without Samples so both are
// always reported together.
type Scorecard struct {
	WindowDays int                        `json:"window_days"`
	Samples    int                        `json:"samples"`
	Hits       int                        `json:"hits"`
	HitRate    float64                    `json:"hit_rate"`
	ByState    map[SignalState]StateStats `json:"by_state,omitempty"`
	RiskOnly   StateStats                 `json:"risk_only"`
	Yesterday  []HitRateEntry             `json:"yesterday,omitempty"`
	Summary    string                     `json:"summary"`
}
