package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constSeries(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rampSeries(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestRealtimeMAStitching(t *testing.T) {
	closes := constSeries(10, 19)
	got := RealtimeMA(closes, 30, 20)
	assert.InDelta(t, 11.0, got, 1e-9)
}

func TestRealtimeMAUsesOnlyTrailingWindow(t *testing.T) {
	// 40 closes; only the last 19 plus the live price should count.
	closes := append(constSeries(999, 21), constSeries(10, 19)...)
	got := RealtimeMA(closes, 30, 20)
	assert.InDelta(t, 11.0, got, 1e-9)
}

func TestRealtimeMAShortHistory(t *testing.T) {
	// IPO case: fewer than window-1 closes averages what exists.
	got := RealtimeMA([]float64{10, 12}, 14, 20)
	assert.InDelta(t, 12.0, got, 1e-9)
}

func TestBiasPct(t *testing.T) {
	assert.InDelta(t, 0.10, BiasPct(11, 10), 1e-9)
	assert.InDelta(t, -0.05, BiasPct(9.5, 10), 1e-9)
	assert.Zero(t, BiasPct(10, 0))
}

func TestEMAConstantSeries(t *testing.T) {
	ema := EMA(constSeries(5, 30), 12)
	require.Len(t, ema, 30)
	assert.InDelta(t, 5.0, ema[29], 1e-9)
}

func TestMACDInsufficientHistory(t *testing.T) {
	got := MACD(constSeries(10, 20), MACDConfig{Fast: 12, Slow: 26, Signal: 9})
	assert.Equal(t, "UNKNOWN", got.Trend)
}

func TestMACDUptrendIsBullish(t *testing.T) {
	got := MACD(rampSeries(10, 0.5, 80), MACDConfig{Fast: 12, Slow: 26, Signal: 9})
	assert.Contains(t, []string{"BULLISH", "GOLDEN_CROSS"}, got.Trend)
	assert.Equal(t, "SUPER_STRONG", got.Power)
	assert.Greater(t, got.Histogram, 0.0)
}

func TestMACDDowntrendIsBearish(t *testing.T) {
	got := MACD(rampSeries(100, -0.5, 80), MACDConfig{Fast: 12, Slow: 26, Signal: 9})
	assert.Contains(t, []string{"BEARISH", "DEATH_CROSS"}, got.Trend)
	assert.Equal(t, "SUPER_WEAK", got.Power)
}

func TestRSIBounds(t *testing.T) {
	assert.Equal(t, 50.0, RSI(constSeries(10, 5), 14))
	assert.Equal(t, 100.0, RSI(rampSeries(10, 1, 30), 14))
	up := RSI(rampSeries(10, 1, 30), 14)
	down := RSI(rampSeries(100, -1, 30), 14)
	assert.Greater(t, up, down)
}

func TestBollFlatSeries(t *testing.T) {
	got := Boll(constSeries(10, 25), 20, 2)
	assert.InDelta(t, 10.0, got.Middle, 1e-9)
	assert.InDelta(t, 10.0, got.Upper, 1e-9)
	assert.InDelta(t, 10.0, got.Lower, 1e-9)
	// Price equals the upper band on a flat series.
	assert.Equal(t, "ABOVE_UPPER", got.Position)
}

func TestBollPositionHalves(t *testing.T) {
	closes := rampSeries(10, 0.1, 25)
	got := Boll(closes, 20, 2)
	assert.Contains(t, []string{"UPPER_HALF", "ABOVE_UPPER"}, got.Position)
	assert.Greater(t, got.Upper, got.Middle)
	assert.Greater(t, got.Middle, got.Lower)
}

func TestKDJOverbought(t *testing.T) {
	highs := rampSeries(11, 1, 30)
	lows := rampSeries(9, 1, 30)
	closes := rampSeries(10.9, 1, 30)
	got := KDJ(highs, lows, closes, 9, 3, 3)
	assert.Greater(t, got.K, 80.0)
	assert.Equal(t, "OVERBOUGHT", got.Signal)
}

func TestKDJShortHistoryNeutral(t *testing.T) {
	got := KDJ(constSeries(10, 4), constSeries(9, 4), constSeries(9.5, 4), 9, 3, 3)
	assert.Equal(t, 50.0, got.K)
	assert.Equal(t, "UNKNOWN", got.Signal)
}

func TestATRConstantRange(t *testing.T) {
	n := 30
	highs := constSeries(11, n)
	lows := constSeries(9, n)
	closes := constSeries(10, n)
	got := ATR(highs, lows, closes, 14)
	assert.InDelta(t, 2.0, got.ATR, 1e-9)
	assert.Equal(t, "HIGH_VOLATILE", got.Volatility)
}

func TestATRLowVolatility(t *testing.T) {
	n := 30
	highs := constSeries(100.1, n)
	lows := constSeries(99.9, n)
	closes := constSeries(100, n)
	got := ATR(highs, lows, closes, 14)
	assert.Equal(t, "LOW_VOLATILE", got.Volatility)
}

func TestOBVInflow(t *testing.T) {
	n := 20
	opens := constSeries(10, n)
	closes := constSeries(11, n) // every bar closes above its open
	vols := constSeries(1000, n)
	got := OBV(closes, opens, vols, 10)
	assert.Equal(t, "INFLOW", got.Trend)
	assert.InDelta(t, 20000, got.OBV, 1e-9)
}

func TestOBVOutflow(t *testing.T) {
	n := 20
	opens := constSeries(11, n)
	closes := constSeries(10, n)
	vols := constSeries(1000, n)
	got := OBV(closes, opens, vols, 10)
	assert.Equal(t, "OUTFLOW", got.Trend)
}

func TestOBVLengthMismatch(t *testing.T) {
	got := OBV(constSeries(10, 20), constSeries(10, 19), constSeries(1, 20), 10)
	assert.Equal(t, "UNKNOWN", got.Trend)
}
