package notify

import (
	"context"
	"fmt"
	"strings"

	"Sentinel/internal/domain/models"
	"Sentinel/pkg/config"
	xhttp "Sentinel/pkg/http"
	applogger "Sentinel/pkg/logger"
)

// FeishuNotifier posts the run report as an interactive card to a
// Feishu group webhook. Delivery is best-effort: the runner logs and
// continues on failure.
type FeishuNotifier struct {
	http   *xhttp.Client
	url    string
	logger *applogger.Logger
}

// NewFeishu creates the webhook notifier. An empty webhook URL yields
// a notifier that silently skips delivery.
func NewFeishu(cfg *config.Config, l *applogger.Logger) *FeishuNotifier {
	return &FeishuNotifier{
		http:   xhttp.NewClient(xhttp.WithTimeout(cfg.Notify.Timeout)),
		url:    cfg.Notify.WebhookURL,
		logger: l,
	}
}

type feishuMessage struct {
	MsgType string     `json:"msg_type"`
	Card    feishuCard `json:"card"`
}

type feishuCard struct {
	Config   map[string]bool          `json:"config"`
	Header   feishuHeader             `json:"header"`
	Elements []map[string]interface{} `json:"elements"`
}

type feishuHeader struct {
	Template string            `json:"template"`
	Title    map[string]string `json:"title"`
}

type feishuResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Notify renders and posts the card. A non-zero webhook response code
// is an error; the caller decides whether it matters.
func (n *FeishuNotifier) Notify(ctx context.Context, rec *models.DailyRecord, card *models.Scorecard) error {
	if n.url == "" {
		n.logger.Debug("webhook not configured, skipping notification")
		return nil
	}

	msg := feishuMessage{
		MsgType: "interactive",
		Card: feishuCard{
			Config: map[string]bool{"wide_screen_mode": true},
			Header: feishuHeader{
				Template: headerColor(rec),
				Title:    map[string]string{"tag": "plain_text", "content": cardTitle(rec)},
			},
			Elements: buildElements(rec, card),
		},
	}

	var resp feishuResponse
	if err := n.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    n.url,
		Body:   msg,
	}, &resp); err != nil {
		return fmt.Errorf("feishu webhook: %w", err)
	}
	if resp.Code != 0 {
		return fmt.Errorf("feishu webhook rejected: code %d msg %q", resp.Code, resp.Msg)
	}
	return nil
}

// headerColor follows the worst signal in the run: red for any DANGER,
// orange for WATCH, blue when everything held.
func headerColor(rec *models.DailyRecord) string {
	color := "blue"
	for _, s := range rec.Signals {
		switch s.State {
		case models.StateDanger:
			return "red"
		case models.StateWatch:
			color = "orange"
		}
	}
	if rec.Partial {
		return "grey"
	}
	return color
}

func cardTitle(rec *models.DailyRecord) string {
	label := "Midday Risk Check"
	if rec.Mode == "close" {
		label = "Close Review"
	}
	title := fmt.Sprintf("%s · %s", label, rec.Date)
	if rec.Partial {
		title += " (partial data)"
	}
	return title
}

func buildElements(rec *models.DailyRecord, card *models.Scorecard) []map[string]interface{} {
	elements := make([]map[string]interface{}, 0, 8)
	md := func(content string) map[string]interface{} {
		return map[string]interface{}{
			"tag":  "div",
			"text": map[string]string{"tag": "lark_md", "content": content},
		}
	}
	hr := map[string]interface{}{"tag": "hr"}

	if rec.Breadth != nil {
		elements = append(elements, md(fmt.Sprintf("**Breadth** %d↑ / %d↓ / %d flat · **Net flow** %s",
			rec.Breadth.Rise, rec.Breadth.Fall, rec.Breadth.Flat, flowText(rec.Flow))))
		elements = append(elements, hr)
	}

	for _, state := range []models.SignalState{models.StateDanger, models.StateWatch, models.StateSafe} {
		group := signalLines(rec, state)
		if len(group) == 0 {
			continue
		}
		elements = append(elements, md(fmt.Sprintf("**%s %s**\n%s",
			stateEmoji(state), state, strings.Join(group, "\n"))))
	}
	elements = append(elements, hr)

	if card != nil {
		sc := "**📊 Signal tracking** | " + card.Summary
		for _, e := range card.Yesterday {
			sc += fmt.Sprintf("\n%s %s %s → %+.2f%% %s",
				outcomeEmoji(e.Outcome), e.Code, e.State, e.RealizedPct, e.Outcome)
		}
		elements = append(elements, md(sc), hr)
	}

	if rec.Analysis != nil && !rec.Analysis.Failed {
		body := fmt.Sprintf("**Sentiment** %s\n%s", rec.Analysis.Sentiment, rec.Analysis.Summary)
		if rec.Analysis.RiskAlert != "" {
			body += "\n⚠️ " + rec.Analysis.RiskAlert
		}
		for _, a := range rec.Analysis.Actions {
			body += fmt.Sprintf("\n· %s %s → **%s** %s", a.Code, a.Name, a.Action, a.Reason)
		}
		elements = append(elements, md(body))
	}

	elements = append(elements, map[string]interface{}{
		"tag": "note",
		"elements": []map[string]string{
			{"tag": "plain_text", "content": fmt.Sprintf("run %d · %s", rec.RunSeq, rec.Timestamp.Format("15:04:05"))},
		},
	})
	return elements
}

func signalLines(rec *models.DailyRecord, state models.SignalState) []string {
	prices := make(map[string]models.IndicatorSnapshot, len(rec.Snapshots))
	for _, s := range rec.Snapshots {
		prices[s.Code] = s
	}
	var out []string
	for _, sig := range rec.Signals {
		if sig.State != state {
			continue
		}
		is := prices[sig.Code]
		out = append(out, fmt.Sprintf("%s %s  %.2f (%+.2f%%)  bias %+.2f%%",
			sig.Code, sig.Name, is.Price, is.PctChange, is.BiasPct))
	}
	return out
}

func flowText(flow models.MoneyFlow) string {
	if !flow.Available {
		return "unavailable"
	}
	return fmt.Sprintf("%+.1f亿", flow.NetInflow)
}

func stateEmoji(state models.SignalState) string {
	switch state {
	case models.StateDanger:
		return "🔴"
	case models.StateWatch:
		return "🟡"
	default:
		return "🟢"
	}
}

func outcomeEmoji(o models.Outcome) string {
	switch o {
	case models.OutcomeHit:
		return "✅"
	case models.OutcomeMiss:
		return "❌"
	default:
		return "➖"
	}
}
