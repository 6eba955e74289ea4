package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Sentinel/internal/domain/models"
	domrepo "Sentinel/internal/domain/repository"
	storage "Sentinel/internal/repository"
	"Sentinel/internal/usecase"
	"Sentinel/pkg/cache"
	"Sentinel/pkg/config"
	applogger "Sentinel/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string, error, time.Duration)  {}
func (nopMetrics) SetCircuitState(string, bool)                      {}
func (nopMetrics) RecordRun(string, time.Duration, bool)             {}
func (nopMetrics) SetSignalState(string, models.SignalState)         {}
func (nopMetrics) SetHitRate(string, float64, int)                   {}
func (nopMetrics) IncHTTPRequest(string, string, string)             {}
func (nopMetrics) ObserveHTTPDuration(string, string, time.Duration) {}

type stubFeed struct{}

func (stubFeed) Quote(_ context.Context, code string) (models.Quote, error) {
	return models.Quote{Code: code, Name: "stock-" + code, Price: 10, Timestamp: time.Now()}, nil
}

func (stubFeed) History(_ context.Context, code string, days int) (models.HistoricalSeries, error) {
	s := models.HistoricalSeries{Code: code}
	start := time.Now().AddDate(0, 0, -40)
	for i := 0; i < 40; i++ {
		s.Candles = append(s.Candles, models.Candle{
			Date: start.AddDate(0, 0, i), Open: 10, High: 10.1, Low: 9.9, Close: 10, Volume: 1000,
		})
	}
	return s, nil
}

func (stubFeed) Breadth(context.Context) (models.MarketBreadth, error) {
	return models.MarketBreadth{Rise: 2500, Fall: 2200, Flat: 300}, nil
}

func (stubFeed) Flow(context.Context) (models.MoneyFlow, error) {
	return models.MoneyFlow{NetInflow: 10, Available: true}, nil
}

func (stubFeed) Indices(_ context.Context, codes []string) ([]models.IndexQuote, error) {
	return nil, nil
}

func (stubFeed) News(context.Context, string, int) ([]string, error) { return nil, nil }

func (stubFeed) MacroNews(context.Context, int) ([]string, error) { return nil, nil }

type stubAnalyst struct{}

func (stubAnalyst) Analyze(context.Context, *models.DailyRecord) (*models.AnalysisResult, error) {
	return &models.AnalysisResult{Sentiment: "NEUTRAL", Summary: "steady"}, nil
}

type stubNotifier struct{}

func (stubNotifier) Notify(context.Context, *models.DailyRecord, *models.Scorecard) error {
	return nil
}

type stubHealth struct{}

func (stubHealth) Health() []domrepo.SourceHealth {
	return []domrepo.SourceHealth{{Name: "eastmoney"}}
}

type fixture struct {
	handler *DashboardHandler
	echo    *echo.Echo
}

func setup(t *testing.T) *fixture {
	t.Helper()
	var cfg config.Config
	require.NoError(t, defaults.Set(&cfg))
	cfg.Watchlist = []config.Stock{{Code: "600519"}}

	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })

	tracker := usecase.NewTracker(store, mem, nopMetrics{}, &cfg, l)
	runner := usecase.NewRunner(
		usecase.NewCollector(stubFeed{}, &cfg, l),
		usecase.NewProcessor(&cfg, l),
		tracker,
		store,
		storage.NewNopPublisher(),
		stubAnalyst{},
		stubNotifier{},
		nopMetrics{},
		&cfg,
		l,
	)

	h := NewDashboardHandler(runner, tracker, store, stubHealth{}, &cfg, l)
	e := echo.New()
	h.RegisterRoutes(e)
	return &fixture{handler: h, echo: e}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestStatusEndpoint(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodGet, "/api/status", "")

	env := decode(t, rec)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Contains(t, string(env.Data), `"service":"sentinel"`)
	assert.Contains(t, string(env.Data), `"watchlist":1`)
}

func TestLatestRecordNotFound(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodGet, "/api/records/latest?mode=close", "")
	env := decode(t, rec)
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestTriggerRunThenFetchRecord(t *testing.T) {
	f := setup(t)

	run := f.do(http.MethodPost, "/api/run", `{"mode":"close"}`)
	env := decode(t, run)
	require.Equal(t, http.StatusOK, env.Status)
	assert.Contains(t, string(env.Data), `"600519"`)

	latest := f.do(http.MethodGet, "/api/records/latest?mode=close", "")
	env = decode(t, latest)
	require.Equal(t, http.StatusOK, env.Status)

	var rec models.DailyRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, "close", rec.Mode)
	assert.Len(t, rec.Signals, 1)
}

func TestTriggerRunRejectsBadMode(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodPost, "/api/run", `{"mode":"weekly"}`)
	env := decode(t, rec)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestScorecardValidation(t *testing.T) {
	f := setup(t)

	rec := f.do(http.MethodGet, "/api/scorecard?mode=close&days=1", "")
	env := decode(t, rec)
	assert.Equal(t, http.StatusBadRequest, env.Status)

	rec = f.do(http.MethodGet, "/api/scorecard?mode=close&days=7", "")
	env = decode(t, rec)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Contains(t, string(env.Data), "window_days")
}

func TestRecordByDateRequiresDate(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodGet, "/api/records?mode=close", "")
	env := decode(t, rec)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestSourceHealthEndpoint(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodGet, "/api/health/sources", "")
	env := decode(t, rec)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Contains(t, string(env.Data), "eastmoney")
}
