package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Sentinel/internal/domain/models"
	"Sentinel/pkg/config"
	"Sentinel/pkg/util"
)

var testDay = time.Date(2026, 3, 2, 11, 30, 0, 0, util.Shanghai)

// flatHistory builds count completed bars at a flat close ending the
// trading day before testDay.
func flatHistory(code string, count int, close float64) models.HistoricalSeries {
	s := models.HistoricalSeries{Code: code}
	start := testDay.AddDate(0, 0, -count)
	for i := 0; i < count; i++ {
		s.Candles = append(s.Candles, models.Candle{
			Date:   start.AddDate(0, 0, i),
			Open:   close,
			High:   close * 1.01,
			Low:    close * 0.99,
			Close:  close,
			Volume: 1000,
		})
	}
	return s
}

func stockWith(code string, history models.HistoricalSeries, price float64) models.StockData {
	return models.StockData{
		Code: code,
		Name: "stock-" + code,
		Quote: models.Quote{
			Code:      code,
			Price:     price,
			Open:      price,
			High:      price,
			Low:       price,
			Volume:    2000,
			Timestamp: testDay,
		},
		History: history,
	}
}

func snapshotWith(flow models.MoneyFlow, stocks ...models.StockData) *models.MarketSnapshot {
	return &models.MarketSnapshot{AsOf: testDay, Flow: flow, Stocks: stocks}
}

func testProcessor(t *testing.T) *Processor {
	return NewProcessor(testConfig(t), testLogger(t))
}

func TestProcessStitchesLivePriceIntoMA(t *testing.T) {
	// 19 completed closes at 10 plus a live print of 30: the 20-day
	// realtime MA is (19*10+30)/20 = 11.
	stock := stockWith("600519", flatHistory("600519", 19, 10), 30)
	snap := snapshotWith(models.MoneyFlow{Available: true}, stock)

	snaps, signals := testProcessor(t).Process(snap)
	require.Len(t, snaps, 1)
	require.Len(t, signals, 1)

	assert.InDelta(t, 11.0, snaps[0].RealtimeMA[20], 1e-9)
	assert.Equal(t, models.StateSafe, signals[0].State)
}

func TestProcessDropsTodaysUnfinishedBar(t *testing.T) {
	// Upstream klines sometimes include today's bar mid-session. It must
	// not count: only the 19 completed bars plus the live print do.
	history := flatHistory("600519", 19, 10)
	history.Candles = append(history.Candles, models.Candle{
		Date: testDay, Open: 30, High: 30, Low: 30, Close: 30, Volume: 500,
	})
	stock := stockWith("600519", history, 30)
	snap := snapshotWith(models.MoneyFlow{Available: true}, stock)

	snaps, _ := testProcessor(t).Process(snap)
	require.Len(t, snaps, 1)
	assert.InDelta(t, 11.0, snaps[0].RealtimeMA[20], 1e-9)
}

func TestProcessShortHistoryKeepsRawPriceWithoutSignal(t *testing.T) {
	short := stockWith("000002", flatHistory("000002", 5, 10), 10)
	ok := stockWith("600519", flatHistory("600519", 40, 10), 10)
	snap := snapshotWith(models.MoneyFlow{Available: true}, short, ok)

	snaps, signals := testProcessor(t).Process(snap)

	require.Len(t, snaps, 2)
	require.Len(t, signals, 1)
	assert.Equal(t, "600519", signals[0].Code)

	var raw models.IndicatorSnapshot
	for _, is := range snaps {
		if is.Code == "000002" {
			raw = is
		}
	}
	assert.Equal(t, 10.0, raw.Price)
	assert.Nil(t, raw.Signal)
	assert.Empty(t, raw.RealtimeMA)

	assert.True(t, snap.Partial)
	require.Len(t, snap.Failures, 1)
	assert.Equal(t, "000002", snap.Failures[0].Code)
	assert.Equal(t, "indicators", snap.Failures[0].Feed)
	assert.Contains(t, snap.Failures[0].Error, "insufficient history")
}

func TestProcessComputesFullIndicatorSet(t *testing.T) {
	stock := stockWith("600519", flatHistory("600519", 60, 10), 10.2)
	snap := snapshotWith(models.MoneyFlow{Available: true}, stock)

	snaps, _ := testProcessor(t).Process(snap)
	require.Len(t, snaps, 1)
	is := snaps[0]

	assert.NotZero(t, is.RealtimeMA[5])
	assert.NotZero(t, is.RealtimeMA[10])
	assert.NotEqual(t, "UNKNOWN", is.MACD.Trend)
	assert.Greater(t, is.RSI, 0.0)
	assert.NotEqual(t, "UNKNOWN", is.Boll.Position)
	assert.NotEqual(t, "UNKNOWN", is.KDJ.Signal)
	assert.NotEqual(t, "UNKNOWN", is.ATR.Volatility)
	assert.NotEqual(t, "UNKNOWN", is.OBV.Trend)
	assert.Greater(t, is.BiasPct, 0.0)
}

func TestProcessIsRepeatable(t *testing.T) {
	stock := stockWith("600519", flatHistory("600519", 40, 10), 9.5)
	flow := models.MoneyFlow{NetInflow: 5, Available: true}

	first, firstSignals := testProcessor(t).Process(snapshotWith(flow, stock))
	second, secondSignals := testProcessor(t).Process(snapshotWith(flow, stock))

	assert.Equal(t, first, second)
	assert.Equal(t, firstSignals, secondSignals)
}

func classifyCfg(t *testing.T) config.SignalsConfig {
	return testConfig(t).Signals
}

func TestClassifyAboveMAIsSafe(t *testing.T) {
	state, flags := Classify(10.1, 10, models.MoneyFlow{Available: true}, classifyCfg(t))
	assert.Equal(t, models.StateSafe, state)
	assert.Equal(t, []string{models.FlagAboveMA}, flags)
}

func TestClassifyWithinBufferIsSafe(t *testing.T) {
	// 0.2% below the MA sits inside the 0.5% anti-whipsaw buffer.
	state, _ := Classify(9.98, 10, models.MoneyFlow{Available: true}, classifyCfg(t))
	assert.Equal(t, models.StateSafe, state)
}

func TestClassifyBreakWithStrongInflowIsWatch(t *testing.T) {
	flow := models.MoneyFlow{NetInflow: 35, Available: true}
	state, flags := Classify(9.9, 10, flow, classifyCfg(t))
	assert.Equal(t, models.StateWatch, state)
	assert.Equal(t, []string{models.FlagMABreak, models.FlagSmartMoneyIn}, flags)
}

func TestClassifyBreakWithWeakInflowIsDanger(t *testing.T) {
	flow := models.MoneyFlow{NetInflow: 5, Available: true}
	state, flags := Classify(9.9, 10, flow, classifyCfg(t))
	assert.Equal(t, models.StateDanger, state)
	assert.Equal(t, []string{models.FlagMABreak}, flags)
}

func TestClassifyBreakWithoutFlowFailsConservative(t *testing.T) {
	state, flags := Classify(9.9, 10, models.MoneyFlow{NetInflow: 99, Available: false}, classifyCfg(t))
	assert.Equal(t, models.StateDanger, state)
	assert.Equal(t, []string{models.FlagMABreak, models.FlagFlowUnavailable}, flags)
}
