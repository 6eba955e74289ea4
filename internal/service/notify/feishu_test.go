package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Sentinel/internal/domain/models"
	"Sentinel/pkg/config"
	applogger "Sentinel/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func notifierFor(t *testing.T, url string) *FeishuNotifier {
	var cfg config.Config
	cfg.Notify = config.NotifyConfig{WebhookURL: url, Timeout: 5 * time.Second}
	return NewFeishu(&cfg, testLogger(t))
}

func testRecord() *models.DailyRecord {
	return &models.DailyRecord{
		Date:      "2026-03-02",
		Mode:      "midday",
		RunSeq:    1,
		Timestamp: time.Date(2026, 3, 2, 11, 35, 0, 0, time.UTC),
		Breadth:   &models.MarketBreadth{Rise: 1800, Fall: 3000, Flat: 200},
		Flow:      models.MoneyFlow{NetInflow: -12.3, Available: true},
		Signals: []models.Signal{
			{Code: "600519", Name: "alpha", State: models.StateDanger},
			{Code: "000002", Name: "beta", State: models.StateSafe},
		},
		Snapshots: []models.IndicatorSnapshot{
			{Code: "600519", Name: "alpha", Price: 1650, PctChange: -2.1, BiasPct: -1.2},
			{Code: "000002", Name: "beta", Price: 22.5, PctChange: 0.4, BiasPct: 0.8},
		},
	}
}

func TestNotifySendsInteractiveCard(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer srv.Close()

	card := &models.Scorecard{Summary: "7-day hit rate 66% (2/3)"}
	err := notifierFor(t, srv.URL).Notify(context.Background(), testRecord(), card)
	require.NoError(t, err)

	assert.Equal(t, "interactive", captured["msg_type"])
	raw, _ := json.Marshal(captured)
	payload := string(raw)
	assert.Contains(t, payload, "600519")
	assert.Contains(t, payload, "Midday Risk Check")
	assert.Contains(t, payload, "hit rate")
	// a DANGER signal turns the header red
	assert.Contains(t, payload, `"template":"red"`)
}

func TestNotifyRejectedByWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":19001,"msg":"param invalid"}`))
	}))
	defer srv.Close()

	err := notifierFor(t, srv.URL).Notify(context.Background(), testRecord(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "19001")
}

func TestNotifyWithoutWebhookIsNoop(t *testing.T) {
	err := notifierFor(t, "").Notify(context.Background(), testRecord(), nil)
	assert.NoError(t, err)
}

func TestHeaderColor(t *testing.T) {
	rec := testRecord()
	assert.Equal(t, "red", headerColor(rec))

	rec.Signals = []models.Signal{{State: models.StateWatch}}
	assert.Equal(t, "orange", headerColor(rec))

	rec.Signals = []models.Signal{{State: models.StateSafe}}
	assert.Equal(t, "blue", headerColor(rec))

	rec.Partial = true
	assert.Equal(t, "grey", headerColor(rec))
}
