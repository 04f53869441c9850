package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notification wraps an alert event with delivery context.
type Notification struct {
	Event         Event
	BudgetName    string
	Channels      []string
	AdditionalMsg string
}

// Notifier delivers alert notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered alert text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("alert_id", note.Event.ID).
		Str("category", note.Event.Category).
		Str("severity", string(note.Event.Severity)).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("alert sent (telegram)")
	return nil
}

// RenderMessage formats a notification as plain text.
func RenderMessage(note Notification) string {
	evt := note.Event
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[Budget Alert] %s\n", strings.ToUpper(string(evt.Severity))))
	if note.BudgetName != "" {
		builder.WriteString(fmt.Sprintf("Budget: %s\n", note.BudgetName))
	}
	builder.WriteString(fmt.Sprintf("Period: %s\n", evt.PeriodKey))
	builder.WriteString(fmt.Sprintf("Category: %s\n", evt.Category))
	builder.WriteString(fmt.Sprintf("Spent: %s of %s (%s%%)\n", evt.Actual.StringFixed(2), evt.Budgeted.StringFixed(2), evt.Percentage.StringFixed(1)))
	builder.WriteString(fmt.Sprintf("Threshold: %d%%\n", evt.Threshold))
	builder.WriteString(fmt.Sprintf("Raised: %s UTC\n", evt.CreatedAt.UTC().Format(time.RFC3339)))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

// LogNotifier writes notifications to the log. Used when no external channel is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the event at a level matching its severity.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	evt := note.Event
	entry := n.logger.Info()
	switch evt.Severity {
	case SeverityCritical:
		entry = n.logger.Error()
	case SeverityWarning:
		entry = n.logger.Warn()
	}
	entry.Str("alert_id", evt.ID).
		Str("budget_id", evt.BudgetID).
		Str("category", evt.Category).
		Int("threshold", int(evt.Threshold)).
		Str("percentage", evt.Percentage.StringFixed(2)).
		Msg("budget alert raised")
	return nil
}

// MultiNotifier delivers to every wrapped notifier. Delivery continues past
// failures; the returned error joins all of them.
type MultiNotifier []Notifier

// Notify implements Notifier.
func (m MultiNotifier) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = MultiNotifier(nil)
)
