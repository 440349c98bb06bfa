package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to a chat through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	log      *slog.Logger
}

// NewTelegramNotifier creates a notifier for chatID using botToken.
func NewTelegramNotifier(botToken, chatID string, log *slog.Logger) *TelegramNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.With("component", "telegram"),
	}
}

type sendMessageRequest struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

var levelEmoji = map[AlertLevel]string{
	AlertInfo:     "ℹ️",
	AlertWarning:  "⚠️",
	AlertCritical: "🚨",
}

// Send delivers alert. Info alerts are sent silently.
func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	emoji, ok := levelEmoji[alert.Level]
	if !ok {
		emoji = levelEmoji[AlertInfo]
	}
	text := fmt.Sprintf("%s *%s*\n\n%s", emoji, markdownEscaper.Replace(alert.Title), markdownEscaper.Replace(alert.Message))
	if alert.Symbol != "" {
		text += "\n\n" + markdownEscaper.Replace("#"+alert.Symbol)
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:              t.chatID,
		Text:                text,
		ParseMode:           "MarkdownV2",
		DisableNotification: alert.Level == AlertInfo,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var out sendMessageResponse
		if json.NewDecoder(resp.Body).Decode(&out) == nil && out.Description != "" {
			return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, out.Description)
		}
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}

	t.log.InfoContext(ctx, "alert sent", "symbol", alert.Symbol, "level", alert.Level)
	return nil
}

// markdownEscaper escapes the MarkdownV2 reserved characters.
var markdownEscaper = func() *strings.Replacer {
	const reserved = "_*[]()~`>#+-=|{}.!\\"
	pairs := make([]string, 0, 2*len(reserved))
	for _, c := range reserved {
		pairs = append(pairs, string(c), `\`+string(c))
	}
	return strings.NewReplacer(pairs...)
}()
