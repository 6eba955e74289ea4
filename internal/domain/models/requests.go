package models

// RunRequest triggers an analysis run from the dashboard.
type RunRequest struct {
	Mode   string `json:"mode" default:"midday" validate:"oneof=midday close"`
	DryRun bool   `json:"dry_run"`
}

// RecordRequest fetches a persisted record.
type RecordRequest struct {
	Mode string `json:"mode" query:"mode" default:"midday" validate:"oneof=midday close"`
	Date string `json:"date" query:"date"`
}

// ScorecardRequest fetches the rolling hit-rate scorecard.
type ScorecardRequest struct {
	Mode string `json:"mode" query:"mode" default:"midday" validate:"oneof=midday close"`
	Days int    `json:"days" query:"days" default:"7" validate:"min=2,max=90"`
}
