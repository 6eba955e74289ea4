package usecase

import (
	"fmt"
	"math"
	"time"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	"Sentinel/internal/service/indicators"
	"Sentinel/pkg/config"
	applogger "Sentinel/pkg/logger"
	"Sentinel/pkg/util"
)

// Processor turns the raw snapshot into per-symbol indicator snapshots
// and risk signals. Pure computation: no I/O, no retained state.
type Processor struct {
	ind    config.IndicatorsConfig
	sig    config.SignalsConfig
	logger *applogger.Logger
}

// NewProcessor creates a processor with the configured periods and
// thresholds.
func NewProcessor(cfg *config.Config, l *applogger.Logger) *Processor {
	return &Processor{ind: cfg.Indicators, sig: cfg.Signals, logger: l}
}

// Process computes indicators and classifies every collected symbol.
// Symbols without enough history for the MA window are excluded from the
// output and recorded as failures on the snapshot, marking it partial.
func (p *Processor) Process(snap *models.MarketSnapshot) ([]models.IndicatorSnapshot, []models.Signal) {
	day := snap.AsOf.In(util.Shanghai)
	snapshots := make([]models.IndicatorSnapshot, 0, len(snap.Stocks))
	signals := make([]models.Signal, 0, len(snap.Stocks))

	for _, stock := range snap.Stocks {
		is, err := p.processSymbol(stock, day, snap.Flow)
		if err != nil {
			snap.Failures = append(snap.Failures, models.FetchFailure{
				Code:  stock.Code,
				Feed:  "indicators",
				Error: err.Error(),
			})
			snap.Partial = true
			p.logger.Warn("symbol excluded from classification",
				applogger.String("code", stock.Code),
				applogger.Error(err),
			)
			// still report the raw print, without indicators or a signal
			snapshots = append(snapshots, models.IndicatorSnapshot{
				Code:      stock.Code,
				Name:      stock.Name,
				Timestamp: stock.Quote.Timestamp,
				Price:     stock.Quote.Price,
				PctChange: stock.Quote.PctChange,
			})
			continue
		}
		snapshots = append(snapshots, is)
		if is.Signal != nil {
			signals = append(signals, *is.Signal)
		}
	}
	return snapshots, signals
}

// realtimeWindows are the MA spans reported on every snapshot. The
// configured window drives classification; the short spans are context
// for the analyst and the dashboard.
var realtimeWindows = []int{5, 10}

func (p *Processor) processSymbol(stock models.StockData, day time.Time, flow models.MoneyFlow) (models.IndicatorSnapshot, error) {
	// drop today's unfinished bar so the live print is not counted twice
	past := stock.History.Before(day)
	if len(past) < p.ind.MAWindow-1 {
		return models.IndicatorSnapshot{}, fmt.Errorf("%w: %d closes, need %d",
			repository.ErrInsufficientHistory, len(past), p.ind.MAWindow-1)
	}

	price := stock.Quote.Price
	pastCloses := models.Closes(past)

	// stitched series: completed bars plus the live print as today's bar
	n := len(past) + 1
	closes := make([]float64, n)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	vols := make([]float64, n)
	for i, c := range past {
		closes[i] = c.Close
		opens[i] = c.Open
		highs[i] = c.High
		lows[i] = c.Low
		vols[i] = c.Volume
	}
	closes[n-1] = price
	opens[n-1] = stock.Quote.Open
	highs[n-1] = stock.Quote.High
	lows[n-1] = stock.Quote.Low
	vols[n-1] = stock.Quote.Volume

	ma := indicators.RealtimeMA(pastCloses, price, p.ind.MAWindow)
	maSet := map[int]float64{p.ind.MAWindow: round2(ma)}
	for _, w := range realtimeWindows {
		if w != p.ind.MAWindow {
			maSet[w] = round2(indicators.RealtimeMA(pastCloses, price, w))
		}
	}

	is := models.IndicatorSnapshot{
		Code:       stock.Code,
		Name:       stock.Name,
		Timestamp:  stock.Quote.Timestamp,
		Price:      price,
		PctChange:  stock.Quote.PctChange,
		RealtimeMA: maSet,
		BiasPct:    round2(indicators.BiasPct(price, ma) * 100),
		MACD: indicators.MACD(closes, indicators.MACDConfig{
			Fast:   p.ind.MACD.Fast,
			Slow:   p.ind.MACD.Slow,
			Signal: p.ind.MACD.Signal,
		}),
		RSI:  indicators.RSI(closes, p.ind.RSIPeriod),
		Boll: indicators.Boll(closes, p.ind.Boll.Window, float64(p.ind.Boll.NumStd)),
		KDJ:  indicators.KDJ(highs, lows, closes, p.ind.KDJ.N, p.ind.KDJ.M1, p.ind.KDJ.M2),
		ATR:  indicators.ATR(highs, lows, closes, p.ind.ATRPeriod),
		OBV:  indicators.OBV(closes, opens, vols, p.ind.OBVMAPeriod),
		News: stock.News,
	}

	state, flags := Classify(price, ma, flow, p.sig)
	is.Signal = &models.Signal{
		Code:      stock.Code,
		Name:      stock.Name,
		Timestamp: stock.Quote.Timestamp,
		State:     state,
		Flags:     flags,
	}
	return is, nil
}

// Classify maps one symbol's live posture to a signal state. Pure
// function of price, realtime MA, the inflow proxy, and thresholds.
//
// A break below the buffered MA is bearish unless market-wide smart
// money is flooding in, which reads as a shakeout and downgrades the
// call to WATCH. When the inflow feed is missing the break stays
// DANGER: fail conservative rather than guess.
func Classify(price, ma float64, flow models.MoneyFlow, cfg config.SignalsConfig) (models.SignalState, []string) {
	if price >= ma*cfg.BreakBuffer {
		return models.StateSafe, []string{models.FlagAboveMA}
	}
	if !flow.Available {
		return models.StateDanger, []string{models.FlagMABreak, models.FlagFlowUnavailable}
	}
	if flow.NetInflow > cfg.InflowBullish {
		return models.StateWatch, []string{models.FlagMABreak, models.FlagSmartMoneyIn}
	}
	return models.StateDanger, []string{models.FlagMABreak}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
