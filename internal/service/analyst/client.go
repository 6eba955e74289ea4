package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"Sentinel/internal/domain/models"
	"Sentinel/pkg/config"
	xhttp "Sentinel/pkg/http"
	applogger "Sentinel/pkg/logger"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// ErrNotConfigured means no API key is set; the runner degrades the
// record and moves on.
var ErrNotConfigured = errors.New("analyst: api key not configured")

const middayPrompt = `You are a cautious A-share market analyst reviewing a portfolio mid-session.
Focus on intraday risk: MA breaks, breadth deterioration, smart-money outflow.
Respond with STRICT JSON only, no markdown, using this shape:
{"market_sentiment": "...", "summary": "...", "risk_alert": "...",
 "actions": [{"code": "...", "name": "...", "signal": "...", "action": "HOLD|REDUCE|EXIT|ADD", "confidence": "...", "reason": "..."}]}`

const closePrompt = `You are a cautious A-share market analyst writing the end-of-day review.
Weigh closing prices against the trend signals and summarize what changed today.
Respond with STRICT JSON only, no markdown, using this shape:
{"market_sentiment": "...", "summary": "...", "risk_alert": "...",
 "actions": [{"code": "...", "name": "...", "signal": "...", "action": "HOLD|REDUCE|EXIT|ADD", "confidence": "...", "reason": "..."}]}`

// Client calls a Gemini-style generateContent endpoint and parses the
// structured verdict out of the model text.
type Client struct {
	http   *xhttp.Client
	cfg    config.AnalystConfig
	logger *applogger.Logger
}

// NewClient creates the analyst client.
func NewClient(cfg *config.Config, l *applogger.Logger) *Client {
	return &Client{
		http:   xhttp.NewClient(xhttp.WithTimeout(cfg.Analyst.Timeout)),
		cfg:    cfg.Analyst,
		logger: l,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Analyze sends the run context to the model and parses the verdict.
// Retries transient failures with exponential backoff.
func (c *Client) Analyze(ctx context.Context, rec *models.DailyRecord) (*models.AnalysisResult, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	prompt := middayPrompt
	if rec.Mode == "close" {
		prompt = closePrompt
	}
	contextJSON, err := buildContext(rec)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	full := prompt + "\n\n---\n[REAL-TIME DATA CONTEXT]\n" + contextJSON

	base := c.cfg.URL
	if base == "" {
		base = defaultBaseURL
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, c.cfg.Model)

	var lastErr error
	backoff := 2 * time.Second
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		var resp generateResponse
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodPost,
			URL:         url,
			QueryParams: map[string][]string{"key": {c.cfg.APIKey}},
			Body: generateRequest{
				Contents: []content{{Parts: []part{{Text: full}}}},
			},
		}, &resp)
		if err == nil {
			text := responseText(resp)
			if text == "" {
				lastErr = errors.New("empty model response")
			} else {
				return parseAnalysis(text, c.logger), nil
			}
		} else {
			lastErr = err
		}

		c.logger.Warn("analyst attempt failed",
			applogger.Int("attempt", attempt),
			applogger.Error(lastErr),
		)
		if attempt == c.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("analyst: %w", lastErr)
}

// buildContext condenses the record for the model: market internals
// plus a per-symbol summary, never the full raw snapshot.
func buildContext(rec *models.DailyRecord) (string, error) {
	type stockSummary struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Price  float64  `json:"price"`
		Change string   `json:"change"`
		MA     float64  `json:"ma"`
		Bias   float64  `json:"bias_pct"`
		MACD   string   `json:"macd"`
		RSI    float64  `json:"rsi"`
		Signal string   `json:"signal"`
		News   []string `json:"news,omitempty"`
	}

	states := make(map[string]string, len(rec.Signals))
	for _, s := range rec.Signals {
		states[s.Code] = string(s.State)
	}

	stocks := make([]stockSummary, 0, len(rec.Snapshots))
	for _, s := range rec.Snapshots {
		ma, ok := s.RealtimeMA[20]
		if !ok {
			for _, v := range s.RealtimeMA {
				ma = v
				break
			}
		}
		stocks = append(stocks, stockSummary{
			Code:   s.Code,
			Name:   s.Name,
			Price:  s.Price,
			Change: fmt.Sprintf("%.2f%%", s.PctChange),
			MA:     ma,
			Bias:   s.BiasPct,
			MACD:   s.MACD.Trend,
			RSI:    s.RSI,
			Signal: states[s.Code],
			News:   s.News,
		})
	}

	ctx := map[string]interface{}{
		"date":      rec.Date,
		"mode":      rec.Mode,
		"breadth":   rec.Breadth,
		"net_flow":  rec.Flow,
		"portfolio": stocks,
		"partial":   rec.Partial,
	}
	if rec.Raw != nil {
		ctx["indices"] = rec.Raw.Indices
		ctx["macro_news"] = rec.Raw.MacroNews
	}

	b, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func responseText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String())
}

// parseAnalysis tolerates markdown fences and prose around the JSON
// block. An unparseable response becomes a safe placeholder rather
// than an error.
func parseAnalysis(text string, l *applogger.Logger) *models.AnalysisResult {
	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return &result
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &result); err == nil {
			return &result
		}
	}

	l.Error("analyst response not parseable", applogger.String("head", head(text, 200)))
	return &models.AnalysisResult{
		Sentiment: "PARSE_ERROR",
		Summary:   "model output was not valid JSON",
	}
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
