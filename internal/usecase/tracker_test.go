package usecase

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	"Sentinel/pkg/cache"
	"Sentinel/pkg/util"
)

// fakeStore is an in-memory RecordStore for usecase tests.
type fakeStore struct {
	records []*models.DailyRecord
	evals   []models.HitRateEntry
	saveErr error
}

func (s *fakeStore) SaveRecord(_ context.Context, rec *models.DailyRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) LatestRecord(_ context.Context, mode string) (*models.DailyRecord, error) {
	var best *models.DailyRecord
	for _, r := range s.records {
		if r.Mode != mode {
			continue
		}
		if best == nil || r.Date > best.Date || (r.Date == best.Date && r.RunSeq > best.RunSeq) {
			best = r
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (s *fakeStore) RecordByDate(_ context.Context, date, mode string) (*models.DailyRecord, error) {
	var best *models.DailyRecord
	for _, r := range s.records {
		if r.Date == date && r.Mode == mode {
			if best == nil || r.RunSeq > best.RunSeq {
				best = r
			}
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (s *fakeStore) RecordsInRange(_ context.Context, from, to, mode string) ([]*models.DailyRecord, error) {
	out := make([]*models.DailyRecord, 0)
	for _, r := range s.records {
		if r.Mode == mode && r.Date >= from && r.Date <= to {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].RunSeq < out[j].RunSeq
	})
	return out, nil
}

func (s *fakeStore) SaveEvaluations(_ context.Context, entries []models.HitRateEntry) error {
	s.evals = append(s.evals, entries...)
	return nil
}

func (s *fakeStore) EvaluationsInRange(_ context.Context, from, to, mode string) ([]models.HitRateEntry, error) {
	out := make([]models.HitRateEntry, 0)
	for _, e := range s.evals {
		if e.Mode == mode && e.Date >= from && e.Date <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string, error, time.Duration)       {}
func (nopMetrics) SetCircuitState(string, bool)                           {}
func (nopMetrics) RecordRun(string, time.Duration, bool)                  {}
func (nopMetrics) SetSignalState(string, models.SignalState)              {}
func (nopMetrics) SetHitRate(string, float64, int)                        {}
func (nopMetrics) IncHTTPRequest(string, string, string)                  {}
func (nopMetrics) ObserveHTTPDuration(string, string, time.Duration)      {}

func testTracker(t *testing.T, store *fakeStore) *Tracker {
	t.Helper()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	return NewTracker(store, mem, nopMetrics{}, testConfig(t), testLogger(t))
}

func recordWith(date, mode string, code string, state models.SignalState, price float64) *models.DailyRecord {
	return &models.DailyRecord{
		Date:   date,
		Mode:   mode,
		RunSeq: 1,
		Signals: []models.Signal{
			{Code: code, Name: "stock-" + code, State: state},
		},
		Snapshots: []models.IndicatorSnapshot{
			{Code: code, Price: price},
		},
	}
}

func TestEvaluateSignalThresholds(t *testing.T) {
	cfg := testConfig(t).Tracker

	cases := []struct {
		name     string
		state    models.SignalState
		realized float64
		want     models.Outcome
	}{
		{"danger clear drop", models.StateDanger, -1.2, models.OutcomeHit},
		{"danger rebound", models.StateDanger, 1.5, models.OutcomeMiss},
		{"danger gray zone", models.StateDanger, 0.2, models.OutcomeInconclusive},
		{"safe steady", models.StateSafe, 0.3, models.OutcomeHit},
		{"safe collapse", models.StateSafe, -3.0, models.OutcomeMiss},
		{"safe gray zone", models.StateSafe, -1.5, models.OutcomeInconclusive},
		{"watch contained", models.StateWatch, 1.8, models.OutcomeInconclusive},
		{"watch quiet", models.StateWatch, -0.4, models.OutcomeInconclusive},
		{"watch shakeout confirmed", models.StateWatch, 2.5, models.OutcomeHit},
		{"watch breakdown", models.StateWatch, -2.5, models.OutcomeMiss},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EvaluateSignal(tc.state, tc.realized, cfg))
		})
	}
}

func TestEvaluatePreviousScoresPriorRecord(t *testing.T) {
	store := &fakeStore{}
	// DANGER on day one at 10.00, price realized 9.80 next day: -2% is a hit
	prev := recordWith("2026-03-02", "close", "600519", models.StateDanger, 10)
	require.NoError(t, store.SaveRecord(context.Background(), prev))

	current := recordWith("2026-03-03", "close", "600519", models.StateSafe, 9.8)
	entries, err := testTracker(t, store).EvaluatePrevious(context.Background(), current)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "2026-03-02", entries[0].Date)
	assert.Equal(t, models.StateDanger, entries[0].State)
	assert.InDelta(t, -2.0, entries[0].RealizedPct, 1e-9)
	assert.Equal(t, models.OutcomeHit, entries[0].Outcome)
	assert.Len(t, store.evals, 1)
}

func TestEvaluatePreviousIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, store.SaveRecord(context.Background(), recordWith("2026-03-02", "close", "600519", models.StateDanger, 10)))
	tr := testTracker(t, store)

	current := recordWith("2026-03-03", "close", "600519", models.StateSafe, 9.8)
	first, err := tr.EvaluatePrevious(context.Background(), current)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := tr.EvaluatePrevious(context.Background(), current)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, store.evals, 1)
}

func TestEvaluatePreviousSkipsSameDayRerun(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, store.SaveRecord(context.Background(), recordWith("2026-03-02", "close", "600519", models.StateDanger, 10)))
	require.NoError(t, store.SaveRecord(context.Background(), recordWith("2026-03-03", "close", "600519", models.StateDanger, 9.9)))

	// rerun of 2026-03-03 must pair against 03-02, not the earlier run of
	// the same day
	current := recordWith("2026-03-03", "close", "600519", models.StateSafe, 9.8)
	entries, err := testTracker(t, store).EvaluatePrevious(context.Background(), current)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "2026-03-02", entries[0].Date)
}

func TestEvaluatePreviousHonorsEvaluationLag(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, store.SaveRecord(context.Background(), recordWith("2026-03-02", "close", "600519", models.StateDanger, 10)))
	require.NoError(t, store.SaveRecord(context.Background(), recordWith("2026-03-03", "close", "600519", models.StateDanger, 9.9)))

	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	cfg := testConfig(t)
	cfg.Tracker.EvalLagDays = 2
	tr := NewTracker(store, mem, nopMetrics{}, cfg, testLogger(t))

	// with a two-session lag, 03-03 is still too fresh to score
	current := recordWith("2026-03-04", "close", "600519", models.StateSafe, 9.8)
	entries, err := tr.EvaluatePrevious(context.Background(), current)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "2026-03-02", entries[0].Date)
}

func TestEvaluatePreviousNoHistory(t *testing.T) {
	entries, err := testTracker(t, &fakeStore{}).EvaluatePrevious(context.Background(),
		recordWith("2026-03-03", "close", "600519", models.StateSafe, 9.8))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEvaluatePreviousSkipsMissingSymbol(t *testing.T) {
	store := &fakeStore{}
	prev := recordWith("2026-03-02", "close", "600519", models.StateDanger, 10)
	prev.Signals = append(prev.Signals, models.Signal{Code: "000002", State: models.StateSafe})
	prev.Snapshots = append(prev.Snapshots, models.IndicatorSnapshot{Code: "000002", Price: 20})
	require.NoError(t, store.SaveRecord(context.Background(), prev))

	// 000002 dropped out of the current run; only 600519 is scored
	current := recordWith("2026-03-03", "close", "600519", models.StateSafe, 9.8)
	entries, err := testTracker(t, store).EvaluatePrevious(context.Background(), current)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "600519", entries[0].Code)
}

func TestScorecardAggregatesWindow(t *testing.T) {
	store := &fakeStore{}
	today := util.DayKey(time.Now().In(util.Shanghai))
	yesterday := util.DayKey(time.Now().In(util.Shanghai).AddDate(0, 0, -1))
	store.evals = []models.HitRateEntry{
		{Date: yesterday, Mode: "close", Code: "600519", State: models.StateDanger, Outcome: models.OutcomeHit},
		{Date: yesterday, Mode: "close", Code: "000002", State: models.StateDanger, Outcome: models.OutcomeMiss},
		{Date: today, Mode: "close", Code: "600519", State: models.StateSafe, Outcome: models.OutcomeHit},
		{Date: today, Mode: "close", Code: "000002", State: models.StateWatch, Outcome: models.OutcomeInconclusive},
	}

	card, err := testTracker(t, store).Scorecard(context.Background(), "close", 7)
	require.NoError(t, err)

	assert.Equal(t, 7, card.WindowDays)
	assert.Equal(t, 3, card.Samples) // inconclusive excluded
	assert.Equal(t, 2, card.Hits)
	assert.InDelta(t, 66.67, card.HitRate, 0.01)
	assert.Equal(t, 2, card.ByState[models.StateDanger].Total)
	assert.Equal(t, 1, card.ByState[models.StateDanger].Hits)
	assert.Equal(t, 2, card.RiskOnly.Total)
	assert.Equal(t, 1, card.RiskOnly.Hits)
	// latest evaluated date, inconclusive included for display
	assert.Len(t, card.Yesterday, 2)
	assert.Contains(t, card.Summary, "hit rate")
}

func TestScorecardEmptyWindow(t *testing.T) {
	card, err := testTracker(t, &fakeStore{}).Scorecard(context.Background(), "close", 0)
	require.NoError(t, err)
	assert.Equal(t, testConfig(t).Tracker.WindowDays, card.WindowDays)
	assert.Zero(t, card.Samples)
	assert.Contains(t, card.Summary, "no conclusive signals")
}
