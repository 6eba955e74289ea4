package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	"Sentinel/pkg/cache"
	"Sentinel/pkg/config"
	applogger "Sentinel/pkg/logger"
	"Sentinel/pkg/util"
)

// Tracker scores past signals against realized price moves and keeps a
// rolling hit-rate scorecard per run mode.
type Tracker struct {
	store   repository.RecordStore
	cache   cache.Service
	metrics repository.Metrics
	cfg     config.TrackerConfig
	evalTTL time.Duration
	logger  *applogger.Logger
}

// NewTracker creates a tracker over the record store.
func NewTracker(store repository.RecordStore, c cache.Service, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *Tracker {
	return &Tracker{
		store:   store,
		cache:   c,
		metrics: m,
		cfg:     cfg.Tracker,
		evalTTL: cfg.Cache.EvaluationTTL,
		logger:  l,
	}
}

// EvaluateSignal scores one past signal against the realized percent
// move over the evaluation lag. Pure function of state, move, and
// thresholds.
//
// DANGER predicted a drop: a clear fall is a hit, a clear rise a miss.
// SAFE predicted stability: anything better than a mild drop is a hit,
// a deep drop a miss. WATCH flagged a possible shakeout: it stays
// inconclusive unless the move is decisive beyond the wider band, a
// decisive rise confirming the shakeout and a decisive fall refuting
// it. Moves in the gray zones are inconclusive and never enter the
// rate.
func EvaluateSignal(state models.SignalState, realizedPct float64, cfg config.TrackerConfig) models.Outcome {
	switch state {
	case models.StateDanger:
		switch {
		case realizedPct < cfg.DangerHit:
			return models.OutcomeHit
		case realizedPct > cfg.DangerMiss:
			return models.OutcomeMiss
		default:
			return models.OutcomeInconclusive
		}
	case models.StateSafe:
		switch {
		case realizedPct > cfg.SafeHit:
			return models.OutcomeHit
		case realizedPct < cfg.SafeMiss:
			return models.OutcomeMiss
		default:
			return models.OutcomeInconclusive
		}
	case models.StateWatch:
		switch {
		case realizedPct > cfg.WatchBand:
			return models.OutcomeHit
		case realizedPct < -cfg.WatchBand:
			return models.OutcomeMiss
		default:
			return models.OutcomeInconclusive
		}
	default:
		return models.OutcomeInconclusive
	}
}

// EvaluatePrevious scores the newest record of the same mode that is at
// least the evaluation lag old against prices in the current record and
// persists the entries. Idempotent per (previous date, current date)
// pair: reruns of the same pairing are skipped via the cache marker.
func (t *Tracker) EvaluatePrevious(ctx context.Context, current *models.DailyRecord) ([]models.HitRateEntry, error) {
	prev, err := t.previousRecord(ctx, current)
	if err != nil {
		return nil, err
	}
	if prev == nil || len(prev.Signals) == 0 {
		return nil, nil
	}

	marker := cache.Key("eval", current.Mode, prev.Date, current.Date)
	if done, err := t.cache.Exists(ctx, marker); err == nil && done {
		t.logger.Debug("evaluation already recorded",
			applogger.String("prev", prev.Date),
			applogger.String("current", current.Date),
		)
		return nil, nil
	}

	prices := make(map[string]float64, len(current.Snapshots))
	for _, s := range current.Snapshots {
		prices[s.Code] = s.Price
	}
	prevPrices := make(map[string]float64, len(prev.Snapshots))
	for _, s := range prev.Snapshots {
		prevPrices[s.Code] = s.Price
	}

	now := time.Now()
	entries := make([]models.HitRateEntry, 0, len(prev.Signals))
	for _, sig := range prev.Signals {
		basis, ok := prevPrices[sig.Code]
		if !ok || basis <= 0 {
			continue
		}
		price, ok := prices[sig.Code]
		if !ok {
			// symbol missing from the current run; score it next time
			continue
		}
		realized := round2((price - basis) / basis * 100)
		entries = append(entries, models.HitRateEntry{
			Date:        prev.Date,
			Mode:        prev.Mode,
			Code:        sig.Code,
			Name:        sig.Name,
			State:       sig.State,
			RealizedPct: realized,
			Outcome:     EvaluateSignal(sig.State, realized, t.cfg),
			EvaluatedAt: now,
		})
	}
	if len(entries) == 0 {
		return nil, nil
	}

	if err := t.store.SaveEvaluations(ctx, entries); err != nil {
		return nil, fmt.Errorf("save evaluations: %w", err)
	}
	if err := t.cache.Set(ctx, marker, 1, t.evalTTL); err != nil {
		t.logger.Warn("evaluation marker not cached", applogger.Error(err))
	}

	t.logger.Info("signals evaluated",
		applogger.String("prev", prev.Date),
		applogger.String("current", current.Date),
		applogger.Int("entries", len(entries)),
	)
	return entries, nil
}

// previousRecord finds the newest record of the same mode dated at
// least EvalLagDays before the current date. Records younger than the
// lag, including same-day reruns, are not scoreable yet.
func (t *Tracker) previousRecord(ctx context.Context, current *models.DailyRecord) (*models.DailyRecord, error) {
	day, ok := util.ParseTime(current.Date)
	if !ok {
		return nil, fmt.Errorf("bad record date %q", current.Date)
	}
	cutoff := util.DayKey(day.AddDate(0, 0, -t.cfg.EvalLagDays))

	latest, err := t.store.LatestRecord(ctx, current.Mode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load previous record: %w", err)
	}
	if latest.Date <= cutoff {
		return latest, nil
	}

	from := util.DayKey(day.AddDate(0, 0, -(t.cfg.EvalLagDays + 2*t.cfg.WindowDays)))
	recs, err := t.store.RecordsInRange(ctx, from, cutoff, current.Mode)
	if err != nil {
		return nil, fmt.Errorf("load previous record: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[len(recs)-1], nil
}

// Scorecard aggregates the trailing hit-rate window for one mode.
// Inconclusive entries never count as samples.
func (t *Tracker) Scorecard(ctx context.Context, mode string, windowDays int) (*models.Scorecard, error) {
	if windowDays <= 0 {
		windowDays = t.cfg.WindowDays
	}
	today := time.Now().In(util.Shanghai)
	from := util.DayKey(today.AddDate(0, 0, -windowDays))
	to := util.DayKey(today)

	entries, err := t.store.EvaluationsInRange(ctx, from, to, mode)
	if err != nil {
		return nil, fmt.Errorf("load evaluations: %w", err)
	}

	card := &models.Scorecard{
		WindowDays: windowDays,
		ByState:    make(map[models.SignalState]models.StateStats),
	}
	lastDate := ""
	for _, e := range entries {
		if e.Date > lastDate {
			lastDate = e.Date
		}
		if e.Outcome == models.OutcomeInconclusive {
			continue
		}
		hit := e.Outcome == models.OutcomeHit
		card.Samples++
		st := card.ByState[e.State]
		st.Total++
		if hit {
			card.Hits++
			st.Hits++
		}
		if st.Total > 0 {
			st.Rate = round2(float64(st.Hits) / float64(st.Total) * 100)
		}
		card.ByState[e.State] = st

		if e.State == models.StateDanger || e.State == models.StateWatch {
			card.RiskOnly.Total++
			if hit {
				card.RiskOnly.Hits++
			}
			card.RiskOnly.Rate = round2(float64(card.RiskOnly.Hits) / float64(card.RiskOnly.Total) * 100)
		}
	}
	if card.Samples > 0 {
		card.HitRate = round2(float64(card.Hits) / float64(card.Samples) * 100)
	}
	for _, e := range entries {
		if e.Date == lastDate {
			card.Yesterday = append(card.Yesterday, e)
		}
	}

	if card.Samples == 0 {
		card.Summary = fmt.Sprintf("no conclusive signals in the last %d days", windowDays)
	} else {
		card.Summary = fmt.Sprintf("%d-day hit rate %.0f%% (%d/%d), risk calls %.0f%% (%d/%d)",
			windowDays, card.HitRate, card.Hits, card.Samples,
			card.RiskOnly.Rate, card.RiskOnly.Hits, card.RiskOnly.Total)
	}

	t.metrics.SetHitRate(mode, card.HitRate, card.Samples)
	return card, nil
}
