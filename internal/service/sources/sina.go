package sources

import (
	"context"
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
	sinaQuoteURL = "https://hq.sinajs.cn/list="
	sinaKlineURL = "https://money.finance.sina.com.cn/quotes_service/api/json_v2.php/CN_MarketData.getKLineData"
)

// SinaSource is the last-resort fallback. Quotes and history only.
type SinaSource struct {
	client  *xhttp.Client
	limiter *rate.Limiter
	logger  *applogger.Logger
}

// NewSina creates the sina adapter.
func NewSina(client *xhttp.Client, limiter *rate.Limiter, l *applogger.Logger) *SinaSource {
	return &SinaSource{client: client, limiter: limiter, logger: l}
}

func (s *SinaSource) Name() string { return "sina" }

func (s *SinaSource) Quote(ctx context.Context, code string) (models.Quote, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.Quote{}, err
	}

	symbol := exchangePrefix(code) + code
	var raw []byte
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    sinaQuoteURL + symbol,
		Headers: map[string]string{
			"User-Agent": browserHeaders["User-Agent"],
			// hq.sinajs.cn rejects requests without a sina referer
			"Referer": "https://finance.sina.com.cn",
		},
	}, &raw)
	if err != nil {
		return models.Quote{}, s.wrap("quote", err)
	}

	body, err := decodeGBK(raw)
	if err != nil {
		return models.Quote{}, s.wrap("quote", err)
	}

	q, err := parseSinaQuote(body, symbol)
	if err != nil {
		return models.Quote{}, s.wrap("quote", err)
	}
	q.Code = code
	q.SourceID = s.Name()
	return q, nil
}

// parseSinaQuote decodes one var hq_str_shXXXXXX="..." line. Fields are
// comma separated: name, open, prev close, price, high, low, then bid and
// ask levels, volume at index 8.
func parseSinaQuote(body, symbol string) (models.Quote, error) {
	marker := "hq_str_" + symbol + "=\""
	start := strings.Index(body, marker)
	if start < 0 {
		return models.Quote{}, fmt.Errorf("no quote payload for %s", symbol)
	}
	rest := body[start+len(marker):]
	end := strings.Index(rest, "\"")
	if end < 0 {
		return models.Quote{}, fmt.Errorf("malformed quote payload for %s", symbol)
	}

	fields := strings.Split(rest[:end], ",")
	if len(fields) < 9 {
		return models.Quote{}, fmt.Errorf("short quote payload for %s: %d fields", symbol, len(fields))
	}

	price := parseFloat(fields[3])
	prevClose := parseFloat(fields[2])
	if price <= 0 {
		return models.Quote{}, fmt.Errorf("invalid price for %s", symbol)
	}

	pct := 0.0
	if prevClose > 0 {
		pct = (price - prevClose) / prevClose * 100
	}

	return models.Quote{
		Name:      fields[0],
		Price:     price,
		PctChange: pct,
		Open:      parseFloat(fields[1]),
		High:      parseFloat(fields[4]),
		Low:       parseFloat(fields[5]),
		Volume:    parseFloat(fields[8]),
		Timestamp: time.Now(),
	}, nil
}

type sinaBar struct {
	Day    string `json:"day"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

func (s *SinaSource) History(ctx context.Context, code string, days int) (models.HistoricalSeries, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.HistoricalSeries{}, err
	}

	symbol := exchangePrefix(code) + code
	var bars []sinaBar
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     sinaKlineURL,
		Headers: browserHeaders,
		QueryParams: map[string][]string{
			"symbol":  {symbol},
			"scale":   {"240"}, // daily bars
			"ma":      {"no"},
			"datalen": {fmt.Sprintf("%d", days)},
		},
	}, &bars)
	if err != nil {
		return models.HistoricalSeries{}, s.wrap("history", err)
	}
	if len(bars) == 0 {
		return models.HistoricalSeries{}, s.wrap("history", fmt.Errorf("no klines for %s", symbol))
	}

	series := models.HistoricalSeries{Code: code, Candles: make([]models.Candle, 0, len(bars))}
	for _, b := range bars {
		raw := b.Day
		if len(raw) > 10 {
			raw = raw[:10]
		}
		day := parseDay(raw)
		if day.IsZero() {
			continue
		}
		series.Candles = append(series.Candles, models.Candle{
			Date:   day,
			Open:   parseFloat(b.Open),
			Close:  parseFloat(b.Close),
			High:   parseFloat(b.High),
			Low:    parseFloat(b.Low),
			Volume: parseFloat(b.Volume),
		})
	}
	return series, nil
}

func (s *SinaSource) Breadth(ctx context.Context) (models.MarketBreadth, error) {
	return models.MarketBreadth{}, repository.ErrUnsupported
}

func (s *SinaSource) Flow(ctx context.Context) (models.MoneyFlow, error) {
	return models.MoneyFlow{}, repository.ErrUnsupported
}

func (s *SinaSource) Indices(ctx context.Context, codes []string) ([]models.IndexQuote, error) {
	return nil, repository.ErrUnsupported
}

func (s *SinaSource) News(ctx context.Context, code string, limit int) ([]string, error) {
	return nil, repository.ErrUnsupported
}

func (s *SinaSource) MacroNews(ctx context.Context, limit int) ([]string, error) {
	return nil, repository.ErrUnsupported
}

func (s *SinaSource) wrap(op string, err error) error {
	return &repository.SourceError{SourceID: s.Name(), Op: op, Err: err}
}
