package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	xhttp "Sentinel/pkg/http"
	applogger "Sentinel/pkg/logger"

	"golang.org/x/time/rate"
)

const (
	txQuoteURL = "https://qt.gtimg.cn/"
	txKlineURL = "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get"
)

// TencentSource is the first fallback. It serves quotes, history, and
// index levels; breadth, money flow, and news are not available.
type TencentSource struct {
	client  *xhttp.Client
	limiter *rate.Limiter
	logger  *applogger.Logger
}

// NewTencent creates the tencent adapter.
func NewTencent(client *xhttp.Client, limiter *rate.Limiter, l *applogger.Logger) *TencentSource {
	return &TencentSource{client: client, limiter: limiter, logger: l}
}

func (s *TencentSource) Name() string { return "tencent" }

// Field positions in the tilde-separated qt.gtimg.cn payload.
const (
	txFieldName      = 1
	txFieldCode      = 2
	txFieldPrice     = 3
	txFieldPrevClose = 4
	txFieldOpen      = 5
	txFieldVolume    = 6
	txFieldPct       = 32
	txFieldHigh      = 33
	txFieldLow       = 34
)

func (s *TencentSource) Quote(ctx context.Context, code string) (models.Quote, error) {
	q, err := s.fetchQuote(ctx, exchangePrefix(code)+code)
	if err != nil {
		return models.Quote{}, err
	}
	q.Code = code
	return q, nil
}

func (s *TencentSource) fetchQuote(ctx context.Context, symbol string) (models.Quote, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.Quote{}, err
	}

	var raw []byte
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         txQuoteURL,
		Headers:     browserHeaders,
		QueryParams: map[string][]string{"q": {symbol}},
	}, &raw)
	if err != nil {
		return models.Quote{}, s.wrap("quote", err)
	}

	body, err := decodeGBK(raw)
	if err != nil {
		return models.Quote{}, s.wrap("quote", err)
	}

	q, err := parseTencentQuote(body, symbol)
	if err != nil {
		return models.Quote{}, s.wrap("quote", err)
	}
	q.SourceID = s.Name()
	return q, nil
}

// parseTencentQuote decodes one v_shXXXXXX="..." line. The payload is a
// tilde-separated record; volume arrives in lots of 100 shares.
func parseTencentQuote(body, symbol string) (models.Quote, error) {
	marker := "v_" + symbol + "=\""
	start := strings.Index(body, marker)
	if start < 0 {
		return models.Quote{}, fmt.Errorf("no quote payload for %s", symbol)
	}
	rest := body[start+len(marker):]
	end := strings.Index(rest, "\"")
	if end < 0 {
		return models.Quote{}, fmt.Errorf("malformed quote payload for %s", symbol)
	}

	fields := strings.Split(rest[:end], "~")
	if len(fields) <= txFieldLow {
		return models.Quote{}, fmt.Errorf("short quote payload for %s: %d fields", symbol, len(fields))
	}

	price := parseFloat(fields[txFieldPrice])
	if price <= 0 {
		return models.Quote{}, fmt.Errorf("invalid price for %s", symbol)
	}

	return models.Quote{
		Code:      fields[txFieldCode],
		Name:      fields[txFieldName],
		Price:     price,
		PctChange: parseFloat(fields[txFieldPct]),
		Open:      parseFloat(fields[txFieldOpen]),
		High:      parseFloat(fields[txFieldHigh]),
		Low:       parseFloat(fields[txFieldLow]),
		Volume:    parseFloat(fields[txFieldVolume]) * 100,
		Timestamp: time.Now(),
	}, nil
}

type txKlineResponse struct {
	Data map[string]map[string]json.RawMessage `json:"data"`
}

func (s *TencentSource) History(ctx context.Context, code string, days int) (models.HistoricalSeries, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.HistoricalSeries{}, err
	}

	symbol := exchangePrefix(code) + code
	// request a few extra bars to survive adjustment gaps
	param := fmt.Sprintf("%s,day,,,%d,qfq", symbol, days+5)

	var resp txKlineResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         txKlineURL,
		Headers:     browserHeaders,
		QueryParams: map[string][]string{"param": {param}},
	}, &resp)
	if err != nil {
		return models.HistoricalSeries{}, s.wrap("history", err)
	}

	node, ok := resp.Data[symbol]
	if !ok {
		return models.HistoricalSeries{}, s.wrap("history", fmt.Errorf("no kline node for %s", symbol))
	}

	// qfqday when adjusted bars exist, plain day otherwise
	rawBars, ok := node["qfqday"]
	if !ok {
		rawBars, ok = node["day"]
	}
	if !ok {
		return models.HistoricalSeries{}, s.wrap("history", fmt.Errorf("no kline bars for %s", symbol))
	}

	var bars [][]json.RawMessage
	if err := json.Unmarshal(rawBars, &bars); err != nil {
		return models.HistoricalSeries{}, s.wrap("history", err)
	}

	series := models.HistoricalSeries{Code: code, Candles: make([]models.Candle, 0, len(bars))}
	for _, bar := range bars {
		// [date, open, close, high, low, volume, ...]
		if len(bar) < 6 {
			continue
		}
		day := parseDay(jsonString(bar[0]))
		if day.IsZero() {
			continue
		}
		series.Candles = append(series.Candles, models.Candle{
			Date:   day,
			Open:   jsonFloat(bar[1]),
			Close:  jsonFloat(bar[2]),
			High:   jsonFloat(bar[3]),
			Low:    jsonFloat(bar[4]),
			Volume: jsonFloat(bar[5]),
		})
	}
	if len(series.Candles) > days {
		series.Candles = series.Candles[len(series.Candles)-days:]
	}
	return series, nil
}

func (s *TencentSource) Indices(ctx context.Context, codes []string) ([]models.IndexQuote, error) {
	out := make([]models.IndexQuote, 0, len(codes))
	for _, code := range codes {
		q, err := s.fetchQuote(ctx, indexSymbol(code))
		if err != nil {
			return nil, err
		}
		out = append(out, models.IndexQuote{
			Code:      code,
			Name:      q.Name,
			Level:     q.Price,
			PctChange: q.PctChange,
		})
	}
	return out, nil
}

func (s *TencentSource) Breadth(ctx context.Context) (models.MarketBreadth, error) {
	return models.MarketBreadth{}, repository.ErrUnsupported
}

func (s *TencentSource) Flow(ctx context.Context) (models.MoneyFlow, error) {
	return models.MoneyFlow{}, repository.ErrUnsupported
}

func (s *TencentSource) News(ctx context.Context, code string, limit int) ([]string, error) {
	return nil, repository.ErrUnsupported
}

func (s *TencentSource) MacroNews(ctx context.Context, limit int) ([]string, error) {
	return nil, repository.ErrUnsupported
}

func (s *TencentSource) wrap(op string, err error) error {
	return &repository.SourceError{SourceID: s.Name(), Op: op, Err: err}
}

// kline bars mix strings and numbers inside one array.
func jsonString(raw json.RawMessage) string {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.Trim(string(raw), `"`)
	}
	return v
}

func jsonFloat(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return parseFloat(str)
	}
	return 0
}
