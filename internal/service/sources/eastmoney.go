package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	xhttp "Sentinel/pkg/http"
	applogger "Sentinel/pkg/logger"

	"golang.org/x/time/rate"
)

const (
	emQuoteURL  = "https://push2.eastmoney.com/api/qt/stock/get"
	emKlineURL  = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	emListURL   = "https://push2.eastmoney.com/api/qt/ulist.np/get"
	emSearchURL = "https://search-api-web.eastmoney.com/search/jsonp"
)

// EastmoneySource is the primary quote provider. It speaks the push2
// JSON API and is the only adapter that serves every feed.
type EastmoneySource struct {
	client  *xhttp.Client
	limiter *rate.Limiter
	logger  *applogger.Logger
}

// NewEastmoney creates the eastmoney adapter.
func NewEastmoney(client *xhttp.Client, limiter *rate.Limiter, l *applogger.Logger) *EastmoneySource {
	return &EastmoneySource{client: client, limiter: limiter, logger: l}
}

func (s *EastmoneySource) Name() string { return "eastmoney" }

// emValue tolerates the push2 habit of sending "-" for suspended or
// missing numeric fields.
type emValue float64

func (v *emValue) UnmarshalJSON(b []byte) error {
	str := strings.Trim(string(b), `"`)
	if str == "-" || str == "" || str == "null" {
		*v = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal([]byte(str), &f); err != nil {
		return err
	}
	*v = emValue(f)
	return nil
}

type emQuoteResponse struct {
	Data *struct {
		Price  emValue `json:"f43"`
		High   emValue `json:"f44"`
		Low    emValue `json:"f45"`
		Open   emValue `json:"f46"`
		Volume emValue `json:"f47"`
		Code   string  `json:"f57"`
		Name   string  `json:"f58"`
		Pct    emValue `json:"f170"`
	} `json:"data"`
}

func (s *EastmoneySource) Quote(ctx context.Context, code string) (models.Quote, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.Quote{}, err
	}

	var resp emQuoteResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     emQuoteURL,
		Headers: browserHeaders,
		QueryParams: map[string][]string{
			"secid":  {secID(code)},
			"fltt":   {"2"},
			"invt":   {"2"},
			"fields": {"f43,f44,f45,f46,f47,f57,f58,f170"},
		},
	}, &resp)
	if err != nil {
		return models.Quote{}, s.wrap("quote", err)
	}
	if resp.Data == nil || resp.Data.Price <= 0 {
		return models.Quote{}, s.wrap("quote", fmt.Errorf("no data for %s", code))
	}

	return models.Quote{
		Code:      resp.Data.Code,
		Name:      resp.Data.Name,
		Price:     float64(resp.Data.Price),
		PctChange: float64(resp.Data.Pct),
		Open:      float64(resp.Data.Open),
		High:      float64(resp.Data.High),
		Low:       float64(resp.Data.Low),
		Volume:    float64(resp.Data.Volume),
		Timestamp: time.Now(),
		SourceID:  s.Name(),
	}, nil
}

type emKlineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

func (s *EastmoneySource) History(ctx context.Context, code string, days int) (models.HistoricalSeries, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.HistoricalSeries{}, err
	}

	var resp emKlineResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     emKlineURL,
		Headers: browserHeaders,
		QueryParams: map[string][]string{
			"secid":   {secID(code)},
			"klt":     {"101"}, // daily bars
			"fqt":     {"1"},   // forward adjusted
			"lmt":     {fmt.Sprintf("%d", days)},
			"end":     {"20500101"},
			"fields1": {"f1,f2,f3"},
			"fields2": {"f51,f52,f53,f54,f55,f56"},
		},
	}, &resp)
	if err != nil {
		return models.HistoricalSeries{}, s.wrap("history", err)
	}
	if resp.Data == nil || len(resp.Data.Klines) == 0 {
		return models.HistoricalSeries{}, s.wrap("history", fmt.Errorf("no klines for %s", code))
	}

	series := models.HistoricalSeries{Code: code, Candles: make([]models.Candle, 0, len(resp.Data.Klines))}
	for _, line := range resp.Data.Klines {
		// date,open,close,high,low,volume
		parts := strings.Split(line, ",")
		if len(parts) < 6 {
			continue
		}
		day := parseDay(parts[0])
		if day.IsZero() {
			continue
		}
		series.Candles = append(series.Candles, models.Candle{
			Date:   day,
			Open:   parseFloat(parts[1]),
			Close:  parseFloat(parts[2]),
			High:   parseFloat(parts[3]),
			Low:    parseFloat(parts[4]),
			Volume: parseFloat(parts[5]),
		})
	}
	return series, nil
}

type emBreadthResponse struct {
	Data *struct {
		Rise emValue `json:"f104"`
		Fall emValue `json:"f105"`
		Flat emValue `json:"f106"`
	} `json:"data"`
}

func (s *EastmoneySource) Breadth(ctx context.Context) (models.MarketBreadth, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.MarketBreadth{}, err
	}

	var resp emBreadthResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     emQuoteURL,
		Headers: browserHeaders,
		QueryParams: map[string][]string{
			"secid":  {"1.000001"},
			"fltt":   {"2"},
			"fields": {"f104,f105,f106"},
		},
	}, &resp)
	if err != nil {
		return models.MarketBreadth{}, s.wrap("breadth", err)
	}
	if resp.Data == nil {
		return models.MarketBreadth{}, s.wrap("breadth", fmt.Errorf("no breadth data"))
	}

	return models.MarketBreadth{
		Rise: int(resp.Data.Rise),
		Fall: int(resp.Data.Fall),
		Flat: int(resp.Data.Flat),
	}, nil
}

type emListResponse struct {
	Data *struct {
		Diff []struct {
			Price  emValue `json:"f2"`
			Pct    emValue `json:"f3"`
			Code   string  `json:"f12"`
			Name   string  `json:"f14"`
			Inflow emValue `json:"f62"`
		} `json:"diff"`
	} `json:"data"`
}

func (s *EastmoneySource) Flow(ctx context.Context) (models.MoneyFlow, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.MoneyFlow{}, err
	}

	var resp emListResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     emListURL,
		Headers: browserHeaders,
		QueryParams: map[string][]string{
			"secids": {"1.000001,0.399001"},
			"fltt":   {"2"},
			"fields": {"f12,f62"},
		},
	}, &resp)
	if err != nil {
		return models.MoneyFlow{}, s.wrap("flow", err)
	}
	if resp.Data == nil || len(resp.Data.Diff) == 0 {
		return models.MoneyFlow{}, s.wrap("flow", fmt.Errorf("no flow data"))
	}

	total := 0.0
	for _, d := range resp.Data.Diff {
		total += float64(d.Inflow)
	}
	// yuan to 100 million yuan
	return models.MoneyFlow{NetInflow: total / 1e8, Available: true}, nil
}

func (s *EastmoneySource) Indices(ctx context.Context, codes []string) ([]models.IndexQuote, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	secids := make([]string, len(codes))
	for i, c := range codes {
		secids[i] = indexSecID(c)
	}

	var resp emListResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     emListURL,
		Headers: browserHeaders,
		QueryParams: map[string][]string{
			"secids": {strings.Join(secids, ",")},
			"fltt":   {"2"},
			"fields": {"f2,f3,f12,f14"},
		},
	}, &resp)
	if err != nil {
		return nil, s.wrap("indices", err)
	}
	if resp.Data == nil {
		return nil, s.wrap("indices", fmt.Errorf("no index data"))
	}

	out := make([]models.IndexQuote, 0, len(resp.Data.Diff))
	for _, d := range resp.Data.Diff {
		out = append(out, models.IndexQuote{
			Code:      d.Code,
			Name:      d.Name,
			Level:     float64(d.Price),
			PctChange: float64(d.Pct),
		})
	}
	return out, nil
}

// indexSecID maps an index code to its secid. The Shanghai composite is
// 1.000001; Shenzhen indices (399xxx) are market 0.
func indexSecID(code string) string {
	if strings.HasPrefix(code, "399") {
		return "0." + code
	}
	return "1." + code
}

var emTagRe = regexp.MustCompile(`</?em>`)

type emSearchResponse struct {
	Result *struct {
		Articles []struct {
			Title string `json:"title"`
		} `json:"cmsArticleWebOld"`
	} `json:"result"`
}

func (s *EastmoneySource) News(ctx context.Context, code string, limit int) ([]string, error) {
	return s.searchNews(ctx, code, limit)
}

func (s *EastmoneySource) MacroNews(ctx context.Context, limit int) ([]string, error) {
	return s.searchNews(ctx, "A股 宏观", limit)
}

func (s *EastmoneySource) searchNews(ctx context.Context, keyword string, limit int) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	param := map[string]interface{}{
		"uid":           "",
		"keyword":       keyword,
		"type":          []string{"cmsArticleWebOld"},
		"client":        "web",
		"clientType":    "web",
		"clientVersion": "curr",
		"param": map[string]interface{}{
			"cmsArticleWebOld": map[string]interface{}{
				"searchScope": "default",
				"sort":        "default",
				"pageIndex":   1,
				"pageSize":    limit,
				"preTag":      "<em>",
				"postTag":     "</em>",
			},
		},
	}
	paramJSON, err := json.Marshal(param)
	if err != nil {
		return nil, s.wrap("news", err)
	}

	var raw []byte
	err = s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     emSearchURL,
		Headers: browserHeaders,
		QueryParams: map[string][]string{
			"cb":    {"cb"},
			"param": {string(paramJSON)},
		},
	}, &raw)
	if err != nil {
		return nil, s.wrap("news", err)
	}

	body := strings.TrimSpace(string(raw))
	body = strings.TrimPrefix(body, "cb(")
	body = strings.TrimSuffix(body, ")")

	var resp emSearchResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, s.wrap("news", err)
	}
	if resp.Result == nil {
		return nil, nil
	}

	titles := make([]string, 0, len(resp.Result.Articles))
	for _, a := range resp.Result.Articles {
		title := emTagRe.ReplaceAllString(a.Title, "")
		if title != "" {
			titles = append(titles, title)
		}
	}
	if len(titles) > limit {
		titles = titles[:limit]
	}
	return titles, nil
}

func (s *EastmoneySource) wrap(op string, err error) error {
	return &repository.SourceError{SourceID: s.Name(), Op: op, Err: err}
}
