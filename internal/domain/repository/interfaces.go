package repository

import (
	"context"
	"time"

	"Sentinel/internal/domain/models"
)

// QuoteSource is one upstream market-data provider. Adapters normalize
// provider payloads into domain models at the boundary; no raw provider
// fields cross this interface. Operations an adapter cannot serve return
// ErrUnsupported.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, code string) (models.Quote, error)
	History(ctx context.Context, code string, days int) (models.HistoricalSeries, error)
	Breadth(ctx context.Context) (models.MarketBreadth, error)
	Flow(ctx context.Context) (models.MoneyFlow, error)
	Indices(ctx context.Context, codes []string) ([]models.IndexQuote, error)
	News(ctx context.Context, code string, limit int) ([]string, error)
	MacroNews(ctx context.Context, limit int) ([]string, error)
}

// SourceHealth is a point-in-time view of one adapter's circuit state.
type SourceHealth struct {
	Name        string    `json:"name"`
	Failures    int       `json:"failures"`
	CircuitOpen bool      `json:"circuit_open"`
	OpenedAt    time.Time `json:"opened_at,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success,omitzero"`
	TotalCalls  int64     `json:"total_calls"`
	TotalErrors int64     `json:"total_errors"`
}

// RecordStore persists daily analysis records and hit-rate evaluations.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec *models.DailyRecord) error
	LatestRecord(ctx context.Context, mode string) (*models.DailyRecord, error)
	RecordByDate(ctx context.Context, date, mode string) (*models.DailyRecord, error)
	RecordsInRange(ctx context.Context, from, to, mode string) ([]*models.DailyRecord, error)
	SaveEvaluations(ctx context.Context, entries []models.HitRateEntry) error
	EvaluationsInRange(ctx context.Context, from, to, mode string) ([]models.HitRateEntry, error)
	Close() error
}

// EventPublisher emits signal events for downstream consumers. A nil-safe
// no-op implementation backs the "none" backend.
type EventPublisher interface {
	PublishSignals(ctx context.Context, events []models.SignalEvent) error
	Close() error
}

// Analyst turns a processed snapshot into a narrative read. Failure must
// degrade the record, never the run.
type Analyst interface {
	Analyze(ctx context.Context, rec *models.DailyRecord) (*models.AnalysisResult, error)
}

// Notifier delivers the finished report to an external channel.
type Notifier interface {
	Notify(ctx context.Context, rec *models.DailyRecord, card *models.Scorecard) error
}

// Metrics decouples business code from the telemetry backend.
type Metrics interface {
	RecordFetch(source, op string, err error, elapsed time.Duration)
	SetCircuitState(source string, open bool)
	RecordRun(mode string, elapsed time.Duration, partial bool)
	SetSignalState(code string, state models.SignalState)
	SetHitRate(mode string, rate float64, samples int)
	IncHTTPRequest(method, path, status string)
	ObserveHTTPDuration(method, path string, elapsed time.Duration)
}
