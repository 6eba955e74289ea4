package indicators

import (
	"math"

	"Sentinel/internal/domain/models"
)

// EMA returns the exponential moving average series, seeded with the first
// value. The output has the same length as the input.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	k := 2.0 / float64(period+1)
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// SMA returns the simple moving average of the trailing window.
func SMA(values []float64, window int) float64 {
	if len(values) == 0 || window <= 0 {
		return 0
	}
	if len(values) < window {
		window = len(values)
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// MACDConfig holds the classic fast/slow/signal periods.
type MACDConfig struct {
	Fast   int
	Slow   int
	Signal int
}

const divergenceLookback = 5

// MACD computes the MACD family with power and divergence labels. With
// fewer than slow+signal closes the result carries trend UNKNOWN.
func MACD(closes []float64, cfg MACDConfig) models.MACDSnapshot {
	if len(closes) < cfg.Slow+cfg.Signal {
		return models.MACDSnapshot{Trend: "UNKNOWN", Power: "UNKNOWN", Divergence: "NONE"}
	}
	emaFast := EMA(closes, cfg.Fast)
	emaSlow := EMA(closes, cfg.Slow)
	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}
	signalLine := EMA(macdLine[cfg.Slow-1:], cfg.Signal)

	validLen := len(signalLine)
	macdValid := macdLine[len(macdLine)-validLen:]
	histSeq := make([]float64, validLen)
	for i := range signalLine {
		histSeq[i] = macdValid[i] - signalLine[i]
	}

	dif := macdValid[validLen-1]
	dea := signalLine[validLen-1]
	hist := histSeq[validLen-1]
	prevHist := 0.0
	if validLen > 1 {
		prevHist = histSeq[validLen-2]
	}

	var trend string
	switch {
	case hist > 0 && prevHist <= 0:
		trend = "GOLDEN_CROSS"
	case hist < 0 && prevHist >= 0:
		trend = "DEATH_CROSS"
	case hist > 0:
		trend = "BULLISH"
	default:
		trend = "BEARISH"
	}

	var power string
	switch {
	case dif >= dea && dea >= 0:
		power = "SUPER_STRONG"
	case hist > 0:
		power = "STRONG"
	case dif <= dea && dea <= 0:
		power = "SUPER_WEAK"
	case hist <= 0:
		power = "WEAK"
	default:
		power = "UNKNOWN"
	}

	divergence := "NONE"
	lb := divergenceLookback
	if len(closes) >= cfg.Slow+cfg.Signal+lb*2 && validLen > lb*4 {
		recentCloses := closes[len(closes)-lb:]
		pastCloses := closes[len(closes)-lb*3 : len(closes)-lb]
		recentMACD := macdValid[validLen-lb:]
		pastMACD := macdValid[validLen-lb*3 : validLen-lb]
		switch {
		case minOf(recentCloses) < minOf(pastCloses) && minOf(recentMACD) > minOf(pastMACD):
			divergence = "BOTTOM_DIV"
		case maxOf(recentCloses) > maxOf(pastCloses) && maxOf(recentMACD) < maxOf(pastMACD):
			divergence = "TOP_DIV"
		}
	}

	return models.MACDSnapshot{
		MACD:       round4(dif),
		Signal:     round4(dea),
		Histogram:  round4(hist),
		Trend:      trend,
		Power:      power,
		Divergence: divergence,
	}
}

// RSI returns the Wilder-smoothed relative strength index in [0,100].
// Returns the neutral 50 when history is too short.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0
	}
	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains = append(gains, d)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -d)
		}
	}
	avgGain := mean(gains[:period])
	avgLoss := mean(losses[:period])
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return round2(100 - 100/(1+rs))
}

// Boll computes Bollinger bands over the trailing window with population
// standard deviation.
func Boll(closes []float64, window int, numStd float64) models.BollSnapshot {
	if len(closes) < window {
		return models.BollSnapshot{Position: "UNKNOWN"}
	}
	recent := closes[len(closes)-window:]
	middle := mean(recent)
	variance := 0.0
	for _, v := range recent {
		variance += (v - middle) * (v - middle)
	}
	variance /= float64(window)
	std := math.Sqrt(variance)
	upper := middle + numStd*std
	lower := middle - numStd*std
	bandwidth := 0.0
	if middle > 0 {
		bandwidth = (upper - lower) / middle
	}
	current := closes[len(closes)-1]
	var position string
	switch {
	case current >= upper:
		position = "ABOVE_UPPER"
	case current <= lower:
		position = "BELOW_LOWER"
	case current > middle:
		position = "UPPER_HALF"
	default:
		position = "LOWER_HALF"
	}
	return models.BollSnapshot{
		Upper:     round2(upper),
		Middle:    round2(middle),
		Lower:     round2(lower),
		Bandwidth: round4(bandwidth),
		Position:  position,
	}
}

// KDJ computes the stochastic K/D/J sequence with recursive smoothing
// seeded at 50, and labels extreme-zone crosses.
func KDJ(highs, lows, closes []float64, n, m1, m2 int) models.KDJSnapshot {
	if len(closes) < n {
		return models.KDJSnapshot{K: 50, D: 50, J: 50, Cross: "NONE", Signal: "UNKNOWN"}
	}
	k, d := 50.0, 50.0
	kSeq := make([]float64, 0, len(closes))
	dSeq := make([]float64, 0, len(closes))
	j := 50.0
	for i := range closes {
		if i < n-1 {
			kSeq = append(kSeq, 50)
			dSeq = append(dSeq, 50)
			continue
		}
		hh := maxOf(highs[i-n+1 : i+1])
		ll := minOf(lows[i-n+1 : i+1])
		rsv := 100.0
		if hh != ll {
			rsv = (closes[i] - ll) / (hh - ll) * 100
		}
		k = float64(m1-1)/float64(m1)*k + 1/float64(m1)*rsv
		d = float64(m2-1)/float64(m2)*d + 1/float64(m2)*k
		j = 3*k - 2*d
		kSeq = append(kSeq, k)
		dSeq = append(dSeq, d)
	}

	cross := "NONE"
	if len(kSeq) >= 2 {
		prevK, prevD := kSeq[len(kSeq)-2], dSeq[len(dSeq)-2]
		if prevK <= prevD && k > d {
			cross = "GOLDEN_CROSS"
		} else if prevK >= prevD && k < d {
			cross = "DEATH_CROSS"
		}
	}

	signal := "NEUTRAL"
	switch {
	case k < 20 && d < 20:
		signal = "OVERSOLD"
		if cross == "GOLDEN_CROSS" {
			signal = "OVERSOLD_GOLDEN"
		}
	case k > 80 && d > 80:
		signal = "OVERBOUGHT"
		if cross == "DEATH_CROSS" {
			signal = "OVERBOUGHT_DEATH"
		}
	}

	return models.KDJSnapshot{
		K:      round2(k),
		D:      round2(d),
		J:      round2(j),
		Cross:  cross,
		Signal: signal,
	}
}

// ATR computes the Wilder-smoothed average true range and a volatility
// label relative to the last close.
func ATR(highs, lows, closes []float64, period int) models.ATRSnapshot {
	if len(closes) < period+1 {
		return models.ATRSnapshot{Volatility: "UNKNOWN"}
	}
	trSeq := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		trSeq = append(trSeq, tr)
	}
	atr := mean(trSeq[:period])
	for i := period; i < len(trSeq); i++ {
		atr = (atr*float64(period-1) + trSeq[i]) / float64(period)
	}
	atrPct := 0.0
	if last := closes[len(closes)-1]; last > 0 {
		atrPct = atr / last
	}
	var volatility string
	switch {
	case atrPct > 0.08:
		volatility = "HIGH_VOLATILE"
	case atrPct < 0.03:
		volatility = "LOW_VOLATILE"
	default:
		volatility = "NORMAL"
	}
	return models.ATRSnapshot{
		ATR:        round2(atr),
		ATRPct:     round4(atrPct),
		Volatility: volatility,
	}
}

// OBV accumulates signed volume by the close-vs-open rule and compares the
// running total against its EMA to label the energy trend.
func OBV(closes, opens, vols []float64, maPeriod int) models.OBVSnapshot {
	if len(closes) < maPeriod+1 || len(closes) != len(opens) || len(closes) != len(vols) {
		return models.OBVSnapshot{Trend: "UNKNOWN"}
	}
	seq := make([]float64, len(closes))
	current := 0.0
	for i := range closes {
		switch {
		case closes[i] > opens[i]:
			current += vols[i]
		case closes[i] < opens[i]:
			current -= vols[i]
		}
		seq[i] = current
	}
	ma := EMA(seq, maPeriod)
	obvMA := ma[len(ma)-1]
	var trend string
	switch {
	case current > obvMA:
		trend = "INFLOW"
	case current < obvMA:
		trend = "OUTFLOW"
	default:
		trend = "NEUTRAL"
	}
	return models.OBVSnapshot{
		OBV:   round2(current),
		OBVMA: round2(obvMA),
		Trend: trend,
	}
}

// RealtimeMA stitches the last window-1 historical closes with the live
// price and averages the combined window. The caller must pass closes that
// end strictly before the live session so today is never counted twice.
// With fewer than window-1 closes it falls back to the average of whatever
// is available plus the live price.
func RealtimeMA(pastCloses []float64, livePrice float64, window int) float64 {
	if window < 2 {
		return livePrice
	}
	need := window - 1
	if len(pastCloses) > need {
		pastCloses = pastCloses[len(pastCloses)-need:]
	}
	sum := livePrice
	for _, c := range pastCloses {
		sum += c
	}
	return sum / float64(len(pastCloses)+1)
}

// BiasPct is the fractional deviation of price from its moving average.
func BiasPct(price, ma float64) float64 {
	if ma == 0 {
		return 0
	}
	return (price - ma) / ma
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
