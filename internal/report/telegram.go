package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// Sender delivers report text to a chat target.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string)
}

// TelegramSender posts messages through the Telegram bot API. Delivery
// failures are logged, never retried. The bot token is read from the
// environment per send, matching the rest of the configuration surface.
type TelegramSender struct {
	httpc   *http.Client
	logger  *zap.SugaredLogger
	baseURL string
}

func NewTelegramSender(httpc *http.Client, logger *zap.SugaredLogger) *TelegramSender {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &TelegramSender{httpc: httpc, logger: logger, baseURL: "https://api.telegram.org"}
}

func (t *TelegramSender) Send(ctx context.Context, chatID int64, text string) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		t.logger.Errorw("TELEGRAM_BOT_TOKEN is not set")
		return
	}

	payload, err := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		t.logger.Errorw("marshal telegram payload", "err", err)
		return
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		t.logger.Errorw("build telegram request", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpc.Do(req)
	if err != nil {
		t.logger.Errorw("telegram send failed", "err", err)
		return
	}
	defer resp.Body.Close()

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		t.logger.Errorw("decode telegram response", "err", err)
		return
	}
	if !apiResp.OK {
		t.logger.Errorw("telegram api error", "status", resp.StatusCode, "description", apiResp.Description)
	}
}
