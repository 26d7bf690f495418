package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSender struct {
	messages []string
	chatIDs  []int64
}

func (c *captureSender) Send(_ context.Context, chatID int64, text string) {
	c.chatIDs = append(c.chatIDs, chatID)
	c.messages = append(c.messages, text)
}

func newWebhookHandler(t *testing.T, sender Sender) *Handler {
	t.Helper()
	svc := NewService(
		testResolvers(staticTier{n: 3}, staticTier{n: 2}),
		staticCatalog{count: 4},
		fixedComposer(),
		zap.NewNop().Sugar(),
	)
	return NewHandler(svc, sender, zap.NewNop().Sugar())
}

func postWebhook(h *Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/zest-admin/telegram/webhook", strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	return rec
}

func TestWebhookReportCommand(t *testing.T) {
	t.Setenv("TELEGRAM_SECRET_TOKEN", "shhh")
	sender := &captureSender{}
	h := newWebhookHandler(t, sender)

	rec := postWebhook(h, `{"message":{"chat":{"id":1},"text":"report"}}`,
		map[string]string{"X-Telegram-Bot-Api-Secret-Token": "shhh"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	require.Len(t, sender.messages, 2)
	assert.Equal(t, []int64{1, 1}, sender.chatIDs)
	assert.Contains(t, sender.messages[0], "Generating")
	assert.Contains(t, sender.messages[1], "ZEST SYSTEM REPORT")
	// Summed user counts of both projects.
	assert.Contains(t, sender.messages[1], "Total Users: *5*")
	assert.Contains(t, sender.messages[1], "Portfolios Created: *4*")
}

func TestWebhookSlashReportAndCaseInsensitive(t *testing.T) {
	t.Setenv("TELEGRAM_SECRET_TOKEN", "")
	for _, text := range []string{"/report", "REPORT please", "Send me a Report"} {
		sender := &captureSender{}
		h := newWebhookHandler(t, sender)
		rec := postWebhook(h, `{"message":{"chat":{"id":9},"text":"`+text+`"}}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code, text)
		require.Len(t, sender.messages, 2, text)
		assert.Contains(t, sender.messages[1], "ZEST SYSTEM REPORT", text)
	}
}

func TestWebhookSecretMismatch(t *testing.T) {
	t.Setenv("TELEGRAM_SECRET_TOKEN", "shhh")
	sender := &captureSender{}
	h := newWebhookHandler(t, sender)

	rec := postWebhook(h, `{"message":{"chat":{"id":1},"text":"report"}}`,
		map[string]string{"X-Telegram-Bot-Api-Secret-Token": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Unauthorized", resp["error"])
	assert.Empty(t, sender.messages)
}

func TestWebhookSecretNotConfiguredSkipsCheck(t *testing.T) {
	t.Setenv("TELEGRAM_SECRET_TOKEN", "")
	sender := &captureSender{}
	h := newWebhookHandler(t, sender)

	rec := postWebhook(h, `{"message":{"chat":{"id":1},"text":"report"}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookUnknownTextGetsHelp(t *testing.T) {
	t.Setenv("TELEGRAM_SECRET_TOKEN", "")
	sender := &captureSender{}
	h := newWebhookHandler(t, sender)

	rec := postWebhook(h, `{"message":{"chat":{"id":2},"text":"hello"}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Zest Bot")
}

func TestWebhookIgnoresNonMessageUpdates(t *testing.T) {
	t.Setenv("TELEGRAM_SECRET_TOKEN", "")
	sender := &captureSender{}
	h := newWebhookHandler(t, sender)

	rec := postWebhook(h, `{"edited_message":{"chat":{"id":3}}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp["status"])
	assert.Empty(t, sender.messages)
}

func TestWebhookMalformedBodyIsServerError(t *testing.T) {
	t.Setenv("TELEGRAM_SECRET_TOKEN", "")
	sender := &captureSender{}
	h := newWebhookHandler(t, sender)

	rec := postWebhook(h, `{not json`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
