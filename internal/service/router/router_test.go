package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	applogger "Sentinel/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name    string
	calls   int
	quoteFn func() (models.Quote, error)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Quote(ctx context.Context, code string) (models.Quote, error) {
	f.calls++
	return f.quoteFn()
}

func (f *fakeSource) History(ctx context.Context, code string, days int) (models.HistoricalSeries, error) {
	return models.HistoricalSeries{}, repository.ErrUnsupported
}

func (f *fakeSource) Breadth(ctx context.Context) (models.MarketBreadth, error) {
	return models.MarketBreadth{}, repository.ErrUnsupported
}

func (f *fakeSource) Flow(ctx context.Context) (models.MoneyFlow, error) {
	return models.MoneyFlow{}, repository.ErrUnsupported
}

func (f *fakeSource) Indices(ctx context.Context, codes []string) ([]models.IndexQuote, error) {
	return nil, repository.ErrUnsupported
}

func (f *fakeSource) News(ctx context.Context, code string, limit int) ([]string, error) {
	return nil, repository.ErrUnsupported
}

func (f *fakeSource) MacroNews(ctx context.Context, limit int) ([]string, error) {
	return nil, repository.ErrUnsupported
}

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string, error, time.Duration)       {}
func (nopMetrics) SetCircuitState(string, bool)                           {}
func (nopMetrics) RecordRun(string, time.Duration, bool)                  {}
func (nopMetrics) SetSignalState(string, models.SignalState)              {}
func (nopMetrics) SetHitRate(string, float64, int)                        {}
func (nopMetrics) IncHTTPRequest(string, string, string)                  {}
func (nopMetrics) ObserveHTTPDuration(string, string, time.Duration)      {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func testConfig() Config {
	return Config{
		Timeout:          time.Second,
		MaxAttempts:      1,
		Backoff:          time.Millisecond,
		FailureThreshold: 3,
		Cooldown:         50 * time.Millisecond,
	}
}

func goodQuote() (models.Quote, error) {
	return models.Quote{Code: "600519", Price: 1700}, nil
}

func badQuote() (models.Quote, error) {
	return models.Quote{}, errors.New("upstream 502")
}

func TestRouterFailsOverToNextSource(t *testing.T) {
	a := &fakeSource{name: "a", quoteFn: badQuote}
	b := &fakeSource{name: "b", quoteFn: goodQuote}
	r := New([]repository.QuoteSource{a, b}, testConfig(), nopMetrics{}, testLogger(t))

	q, err := r.Quote(context.Background(), "600519")
	require.NoError(t, err)
	assert.InDelta(t, 1700.0, q.Price, 1e-9)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	health := r.Health()
	require.Len(t, health, 2)
	assert.Equal(t, 1, health[0].Failures)
	assert.False(t, health[0].CircuitOpen)
	assert.Zero(t, health[1].Failures)
}

func TestRouterRetriesBeforeFailingOver(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 2
	a := &fakeSource{name: "a", quoteFn: badQuote}
	b := &fakeSource{name: "b", quoteFn: goodQuote}
	r := New([]repository.QuoteSource{a, b}, cfg, nopMetrics{}, testLogger(t))

	_, err := r.Quote(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, 2, a.calls)
}

func TestRouterOpensCircuitAndSkips(t *testing.T) {
	cfg := testConfig()
	cfg.Cooldown = time.Hour
	a := &fakeSource{name: "a", quoteFn: badQuote}
	b := &fakeSource{name: "b", quoteFn: goodQuote}
	r := New([]repository.QuoteSource{a, b}, cfg, nopMetrics{}, testLogger(t))

	ctx := context.Background()
	for i := 0; i < cfg.FailureThreshold; i++ {
		_, err := r.Quote(ctx, "600519")
		require.NoError(t, err)
	}
	assert.Equal(t, cfg.FailureThreshold, a.calls)
	assert.True(t, r.Health()[0].CircuitOpen)

	// circuit open: the bad source is no longer called
	_, err := r.Quote(ctx, "600519")
	require.NoError(t, err)
	assert.Equal(t, cfg.FailureThreshold, a.calls)
}

func TestRouterHalfOpenProbeClosesCircuit(t *testing.T) {
	cfg := testConfig()
	a := &fakeSource{name: "a", quoteFn: badQuote}
	b := &fakeSource{name: "b", quoteFn: goodQuote}
	r := New([]repository.QuoteSource{a, b}, cfg, nopMetrics{}, testLogger(t))

	ctx := context.Background()
	for i := 0; i < cfg.FailureThreshold; i++ {
		_, _ = r.Quote(ctx, "600519")
	}
	require.True(t, r.Health()[0].CircuitOpen)

	// source recovers while the circuit cools down
	a.quoteFn = goodQuote
	time.Sleep(cfg.Cooldown + 10*time.Millisecond)

	_, err := r.Quote(ctx, "600519")
	require.NoError(t, err)
	assert.False(t, r.Health()[0].CircuitOpen)
	assert.Equal(t, cfg.FailureThreshold+1, a.calls)
}

func TestRouterFailedProbeRestartsCooldown(t *testing.T) {
	cfg := testConfig()
	a := &fakeSource{name: "a", quoteFn: badQuote}
	b := &fakeSource{name: "b", quoteFn: goodQuote}
	r := New([]repository.QuoteSource{a, b}, cfg, nopMetrics{}, testLogger(t))

	ctx := context.Background()
	for i := 0; i < cfg.FailureThreshold; i++ {
		_, _ = r.Quote(ctx, "600519")
	}
	time.Sleep(cfg.Cooldown + 10*time.Millisecond)

	// probe fails, circuit stays open
	_, err := r.Quote(ctx, "600519")
	require.NoError(t, err)
	assert.True(t, r.Health()[0].CircuitOpen)

	// cooldown restarted: immediately after, no further probe
	calls := a.calls
	_, _ = r.Quote(ctx, "600519")
	assert.Equal(t, calls, a.calls)
}

func TestRouterUnsupportedDoesNotTouchHealth(t *testing.T) {
	a := &fakeSource{name: "a", quoteFn: func() (models.Quote, error) {
		return models.Quote{}, repository.ErrUnsupported
	}}
	b := &fakeSource{name: "b", quoteFn: goodQuote}
	r := New([]repository.QuoteSource{a, b}, testConfig(), nopMetrics{}, testLogger(t))

	_, err := r.Quote(context.Background(), "600519")
	require.NoError(t, err)
	assert.Zero(t, r.Health()[0].Failures)
	assert.Zero(t, r.Health()[0].TotalErrors)
}

func TestRouterCancellationDoesNotCountAgainstSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeSource{name: "a"}
	a.quoteFn = func() (models.Quote, error) {
		cancel()
		return models.Quote{}, context.Canceled
	}
	b := &fakeSource{name: "b", quoteFn: goodQuote}
	r := New([]repository.QuoteSource{a, b}, testConfig(), nopMetrics{}, testLogger(t))

	_, err := r.Quote(ctx, "600519")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, a.calls)
	assert.Zero(t, b.calls)

	// the caller hung up; the source's record stays clean
	health := r.Health()
	assert.Zero(t, health[0].Failures)
	assert.Zero(t, health[0].TotalErrors)
	assert.False(t, health[0].CircuitOpen)
}

func TestRouterExhausted(t *testing.T) {
	a := &fakeSource{name: "a", quoteFn: badQuote}
	b := &fakeSource{name: "b", quoteFn: badQuote}
	r := New([]repository.QuoteSource{a, b}, testConfig(), nopMetrics{}, testLogger(t))

	_, err := r.Quote(context.Background(), "600519")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrExhausted)

	var ex *repository.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Len(t, ex.Last, 2)
}
