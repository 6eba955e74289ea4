package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	"Sentinel/pkg/config"
	applogger "Sentinel/pkg/logger"
)

// Run modes. Midday runs mid-session on live prints; close runs after
// the bell on final prices.
const (
	ModeMidday = "midday"
	ModeClose  = "close"
)

// Broadcaster pushes a finished record to live subscribers. The
// websocket hub implements it; a nil broadcaster is skipped.
type Broadcaster interface {
	Broadcast(rec *models.DailyRecord)
}

// Runner drives one full pipeline pass: collect, process, evaluate,
// analyze, persist, publish, notify. Runs are serialized; concurrent
// triggers queue behind the mutex rather than interleave.
type Runner struct {
	collector *Collector
	processor *Processor
	tracker   *Tracker
	store     repository.RecordStore
	events    repository.EventPublisher
	analyst   repository.Analyst
	notifier  repository.Notifier
	metrics   repository.Metrics
	cfg       *config.Config
	logger    *applogger.Logger

	mu          sync.Mutex
	broadcaster Broadcaster
}

// NewRunner wires the pipeline stages together.
func NewRunner(
	collector *Collector,
	processor *Processor,
	tracker *Tracker,
	store repository.RecordStore,
	events repository.EventPublisher,
	analyst repository.Analyst,
	notifier repository.Notifier,
	metrics repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *Runner {
	return &Runner{
		collector: collector,
		processor: processor,
		tracker:   tracker,
		store:     store,
		events:    events,
		analyst:   analyst,
		notifier:  notifier,
		metrics:   metrics,
		cfg:       cfg,
		logger:    l,
	}
}

// SetBroadcaster attaches the live push channel. Called once during
// wiring, before any run.
func (r *Runner) SetBroadcaster(b Broadcaster) { r.broadcaster = b }

// Run executes one pipeline pass. A dry run computes everything but
// skips persistence, events, and notification. The record is returned
// even when the final write fails; callers inspect the error.
func (r *Runner) Run(ctx context.Context, mode string, dryRun bool) (*models.DailyRecord, error) {
	if mode != ModeMidday && mode != ModeClose {
		return nil, fmt.Errorf("unknown run mode %q", mode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	r.logger.Info("run started",
		applogger.String("mode", mode),
		applogger.Any("dry_run", dryRun),
	)

	snap, err := r.collector.Collect(ctx)
	if err != nil {
		r.metrics.RecordRun(mode, time.Since(started), true)
		return nil, err
	}

	snapshots, signals := r.processor.Process(snap)
	rec := r.buildRecord(ctx, mode, snap, snapshots, signals)

	for _, sig := range signals {
		r.metrics.SetSignalState(sig.Code, sig.State)
	}

	if _, err := r.tracker.EvaluatePrevious(ctx, rec); err != nil {
		r.logger.Error("hit-rate evaluation failed", applogger.Error(err))
	}
	card, err := r.tracker.Scorecard(ctx, mode, 0)
	if err != nil {
		r.logger.Error("scorecard unavailable", applogger.Error(err))
		card = nil
	}

	// the narrative is garnish: a dead analyst degrades the record,
	// never the run
	analysis, err := r.analyst.Analyze(ctx, rec)
	if err != nil {
		r.logger.Error("analyst failed", applogger.Error(err))
		analysis = &models.AnalysisResult{Failed: true, Error: err.Error()}
	}
	rec.Analysis = analysis

	r.metrics.RecordRun(mode, time.Since(started), rec.Partial)

	if dryRun {
		r.logger.Info("dry run complete",
			applogger.String("date", rec.Date),
			applogger.Int("signals", len(rec.Signals)),
		)
		return rec, nil
	}

	var persistErr error
	if err := r.store.SaveRecord(ctx, rec); err != nil {
		persistErr = fmt.Errorf("%w: %v", repository.ErrPersistence, err)
		r.logger.Error("record not persisted", applogger.Error(err))
	}

	if err := r.events.PublishSignals(ctx, r.signalEvents(rec)); err != nil {
		r.logger.Error("signal events not published", applogger.Error(err))
	}
	if err := r.notifier.Notify(ctx, rec, card); err != nil {
		r.logger.Error("notification failed", applogger.Error(err))
	}
	if r.broadcaster != nil {
		r.broadcaster.Broadcast(rec)
	}

	r.logger.Info("run complete",
		applogger.String("date", rec.Date),
		applogger.String("mode", mode),
		applogger.Int("run_seq", rec.RunSeq),
		applogger.Int("signals", len(rec.Signals)),
		applogger.Any("partial", rec.Partial),
		applogger.Duration("elapsed", time.Since(started)),
	)
	return rec, persistErr
}

// Replay recomputes indicators and signals from a persisted raw
// snapshot. Nothing is written; the result is for inspection after a
// threshold change.
func (r *Runner) Replay(ctx context.Context, date, mode string) (*models.DailyRecord, error) {
	stored, err := r.store.RecordByDate(ctx, date, mode)
	if err != nil {
		return nil, fmt.Errorf("load record %s/%s: %w", date, mode, err)
	}
	if stored.Raw == nil {
		return nil, fmt.Errorf("record %s/%s has no raw snapshot", date, mode)
	}

	snap := *stored.Raw
	snapshots, signals := r.processor.Process(&snap)
	replayed := &models.DailyRecord{
		Date:      stored.Date,
		Mode:      stored.Mode,
		RunSeq:    stored.RunSeq,
		Timestamp: time.Now(),
		Breadth:   snap.Breadth,
		Flow:      snap.Flow,
		Signals:   signals,
		Snapshots: snapshots,
		Raw:       &snap,
		Partial:   snap.Partial,
	}
	return replayed, nil
}

// buildRecord assembles the append-only daily record. A rerun of the
// same (date, mode) gets the next RunSeq instead of overwriting.
func (r *Runner) buildRecord(ctx context.Context, mode string, snap *models.MarketSnapshot, snapshots []models.IndicatorSnapshot, signals []models.Signal) *models.DailyRecord {
	date := TradingDay(snap)
	runSeq := 1
	if existing, err := r.store.RecordByDate(ctx, date, mode); err == nil {
		runSeq = existing.RunSeq + 1
	} else if !errors.Is(err, repository.ErrNotFound) {
		r.logger.Warn("run sequence lookup failed", applogger.Error(err))
	}

	return &models.DailyRecord{
		Date:      date,
		Mode:      mode,
		RunSeq:    runSeq,
		Timestamp: snap.AsOf,
		Breadth:   snap.Breadth,
		Flow:      snap.Flow,
		Signals:   signals,
		Snapshots: snapshots,
		Raw:       snap,
		Partial:   snap.Partial,
	}
}

func (r *Runner) signalEvents(rec *models.DailyRecord) []models.SignalEvent {
	window := r.cfg.Indicators.MAWindow
	byCode := make(map[string]models.IndicatorSnapshot, len(rec.Snapshots))
	for _, s := range rec.Snapshots {
		byCode[s.Code] = s
	}

	events := make([]models.SignalEvent, 0, len(rec.Signals))
	for _, sig := range rec.Signals {
		is := byCode[sig.Code]
		events = append(events, models.SignalEvent{
			Date:       rec.Date,
			Mode:       rec.Mode,
			Code:       sig.Code,
			State:      sig.State,
			Price:      is.Price,
			RealtimeMA: is.RealtimeMA[window],
			BiasPct:    is.BiasPct,
			Timestamp:  sig.Timestamp,
		})
	}
	return events
}
