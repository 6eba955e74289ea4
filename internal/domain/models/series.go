package models

import "time"

// Candle is one daily OHLCV bar.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// HistoricalSeries is an ordered sequence of daily bars, most-recent-last.
// Immutable once fetched for a session.
type HistoricalSeries struct {
	Code    string   `json:"code"`
	Candles []Candle `json:"candles"`
}

// Before returns the bars strictly older than day, preserving order. Upstream
// kline feeds may include today's unfinished bar during the session; the
// stitching math requires it gone or the live print counts twice.
func (s HistoricalSeries) Before(day time.Time) []Candle {
	cut := day.Format("2006-01-02")
	out := make([]Candle, 0, len(s.Candles))
	for _, c := range s.Candles {
		if c.Date.Format("2006-01-02") < cut {
			out = append(out, c)
		}
	}
	return out
}

// Closes extracts close prices in series order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
