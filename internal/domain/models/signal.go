package models

import "time"

// SignalState classifies a symbol's risk posture for one run.
type SignalState string

const (
	StateSafe   SignalState = "SAFE"
	StateWatch  SignalState = "WATCH"
	StateDanger SignalState = "DANGER"
)

// Rationale flags attached to a Signal. Flags record the evidence behind the
// state so downstream consumers never have to re-derive it.
const (
	FlagMABreak         = "MA_BREAK"
	FlagSmartMoneyIn    = "SMART_MONEY_INFLOW"
	FlagFlowUnavailable = "FLOW_UNAVAILABLE"
	FlagAboveMA         = "ABOVE_MA"
)

// Signal is the classification result for one symbol in one run. State is a
// pure function of (price, realtime MA, inflow proxy, thresholds).
type Signal struct {
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Timestamp time.Time   `json:"timestamp"`
	State     SignalState `json:"state"`
	Flags     []string    `json:"flags,omitempty"`
}

// SignalEvent is the shape published to the event backend after a run.
type SignalEvent struct {
	Date      string      `json:"date"`
	Mode      string      `json:"mode"`
	Code      string      `json:"code"`
	State     SignalState `json:"state"`
	Price     float64     `json:"price"`
	RealtimeMA float64    `json:"realtime_ma"`
	BiasPct   float64     `json:"bias_pct"`
	Timestamp time.Time   `json:"timestamp"`
}
