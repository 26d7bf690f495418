package report

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
)

const helpMessage = "🤖 *Zest Bot*: I can generate reports for you.\nTry sending: `/report`"

// Handler serves the inbound chat webhook.
type Handler struct {
	svc    *Service
	sender Sender
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, sender Sender, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sender: sender, logger: logger}
}

// update is the inbound webhook payload, reduced to the fields the
// command dispatch needs.
type update struct {
	Message *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// Webhook handles one inbound chat update. The shared-secret header is
// checked only when a secret is configured. Unhandled failures surface as
// a 500 with the error message; normal completion always answers 200.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Errorw("webhook panic", "panic", rec)
			h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
	}()

	if secret := os.Getenv("TELEGRAM_SECRET_TOKEN"); secret != "" {
		header := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(header)) != 1 {
			h.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
			return
		}
	}

	var u update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		h.logger.Warnw("webhook decode failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if u.Message == nil || u.Message.Text == "" {
		h.writeJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	chatID := u.Message.Chat.ID
	text := strings.ToLower(strings.TrimSpace(u.Message.Text))

	if text == "/report" || strings.Contains(text, "report") {
		h.sender.Send(r.Context(), chatID, "📊 *Generating Zest Intelligence Report...*")
		h.sender.Send(r.Context(), chatID, h.svc.Generate(r.Context()))
	} else {
		h.sender.Send(r.Context(), chatID, helpMessage)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
