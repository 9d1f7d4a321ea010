package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nullprotocols/telegram/internal/bot"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newWebhookRouter(dedup *Deduper) *gin.Engine {
	r := gin.New()
	// A bare Bot is enough: updates without a message or callback are ignored.
	r.POST("/webhook", WebhookHandler(&bot.Bot{}, dedup))
	return r
}

func postUpdate(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_MalformedJSON_400(t *testing.T) {
	r := newWebhookRouter(NewDeduper(0))
	w := postUpdate(t, r, "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bad_request") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestWebhookHandler_AcceptsAndDeduplicates(t *testing.T) {
	r := newWebhookRouter(NewDeduper(0))

	w := postUpdate(t, r, `{"update_id": 101}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("first delivery: %d %s", w.Code, w.Body.String())
	}

	// The platform redelivers; the replay is acknowledged but dropped.
	w = postUpdate(t, r, `{"update_id": 101}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "duplicate") {
		t.Fatalf("replay: %d %s", w.Code, w.Body.String())
	}

	// A different update goes through.
	w = postUpdate(t, r, `{"update_id": 102}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("next update: %d %s", w.Code, w.Body.String())
	}
}

func TestDeduper_ExpiredEntryForgotten(t *testing.T) {
	d := NewDeduper(10 * time.Millisecond)

	if d.Seen(7) {
		t.Fatalf("fresh id reported as seen")
	}
	if !d.Seen(7) {
		t.Fatalf("immediate replay not detected")
	}

	time.Sleep(25 * time.Millisecond)
	if d.Seen(7) {
		t.Fatalf("expired id still reported as seen")
	}
}
