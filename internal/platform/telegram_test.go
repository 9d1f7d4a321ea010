package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newAPIServer fakes the Bot API: handler receives the method name and the
// decoded params, and returns the envelope body.
func newAPIServer(t *testing.T, handler func(method string, params map[string]any) (int, string)) (*httptest.Server, *Telegram) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]

		var params map[string]any
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			_ = json.NewDecoder(r.Body).Decode(&params)
		}

		code, body := handler(method, params)
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, NewTelegram("test-token", srv.URL, srv.Client())
}

func TestSendMessage_ParamsOnTheWire(t *testing.T) {
	var gotMethod string
	var gotParams map[string]any
	_, tg := newAPIServer(t, func(method string, params map[string]any) (int, string) {
		gotMethod, gotParams = method, params
		return http.StatusOK, `{"ok":true,"result":{}}`
	})

	err := tg.SendMessage(context.Background(), 42, "hello", &SendOptions{
		ParseMode: "HTML",
		ReplyTo:   7,
		Keyboard:  [][]Button{{{Text: "Retry", CallbackData: "retry_join"}}},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if gotMethod != "sendMessage" {
		t.Fatalf("method = %q", gotMethod)
	}
	if gotParams["chat_id"] != float64(42) || gotParams["text"] != "hello" {
		t.Fatalf("params = %v", gotParams)
	}
	if gotParams["parse_mode"] != "HTML" || gotParams["reply_to_message_id"] != float64(7) {
		t.Fatalf("options not marshaled: %v", gotParams)
	}
	if _, ok := gotParams["reply_markup"]; !ok {
		t.Fatalf("keyboard missing: %v", gotParams)
	}
}

func TestSendMessage_NoOptions_OmitsFields(t *testing.T) {
	var gotParams map[string]any
	_, tg := newAPIServer(t, func(_ string, params map[string]any) (int, string) {
		gotParams = params
		return http.StatusOK, `{"ok":true}`
	})

	if err := tg.SendMessage(context.Background(), 42, "hi", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	for _, k := range []string{"parse_mode", "reply_to_message_id", "reply_markup"} {
		if _, ok := gotParams[k]; ok {
			t.Fatalf("unexpected %q in params: %v", k, gotParams)
		}
	}
}

func TestCall_RetryAfter_SurfacesThrottledError(t *testing.T) {
	_, tg := newAPIServer(t, func(string, map[string]any) (int, string) {
		return http.StatusTooManyRequests,
			`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":17}}`
	})

	err := tg.SendMessage(context.Background(), 42, "hi", nil)
	var thr *ThrottledError
	if !errors.As(err, &thr) {
		t.Fatalf("err = %v; want *ThrottledError", err)
	}
	if thr.RetryAfter != 17*time.Second {
		t.Fatalf("RetryAfter = %v; want 17s", thr.RetryAfter)
	}
}

func TestCall_APIError_Described(t *testing.T) {
	_, tg := newAPIServer(t, func(string, map[string]any) (int, string) {
		return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"chat not found"}`
	})

	err := tg.SendMessage(context.Background(), 42, "hi", nil)
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestGetChatMember_DecodesStatus(t *testing.T) {
	_, tg := newAPIServer(t, func(method string, params map[string]any) (int, string) {
		if method != "getChatMember" {
			t.Errorf("method = %q", method)
		}
		return http.StatusOK, `{"ok":true,"result":{"status":"administrator"}}`
	})

	st, err := tg.GetChatMember(context.Background(), -100, 42)
	if err != nil {
		t.Fatalf("GetChatMember: %v", err)
	}
	if st != StatusAdministrator || !st.Joined() {
		t.Fatalf("status = %q", st)
	}
}

func TestCopyMessage_Params(t *testing.T) {
	var gotParams map[string]any
	_, tg := newAPIServer(t, func(_ string, params map[string]any) (int, string) {
		gotParams = params
		return http.StatusOK, `{"ok":true}`
	})

	if err := tg.CopyMessage(context.Background(), 10, -200, 33); err != nil {
		t.Fatalf("CopyMessage: %v", err)
	}
	if gotParams["chat_id"] != float64(10) || gotParams["from_chat_id"] != float64(-200) || gotParams["message_id"] != float64(33) {
		t.Fatalf("params = %v", gotParams)
	}
}

func TestSendDocument_UploadsMultipart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.db")
	if err := os.WriteFile(path, []byte("db bytes"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendDocument") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart parse: %v", err)
		}
		if r.FormValue("chat_id") != "42" {
			t.Errorf("chat_id = %q", r.FormValue("chat_id"))
		}
		if _, hdr, err := r.FormFile("document"); err != nil || hdr.Filename != "backup.db" {
			t.Errorf("document part: %v %v", hdr, err)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("test-token", srv.URL, srv.Client())
	if err := tg.SendDocument(context.Background(), 42, path); err != nil {
		t.Fatalf("SendDocument: %v", err)
	}
}

func TestSendDocument_MissingFile(t *testing.T) {
	tg := NewTelegram("test-token", "http://unused", nil)
	if err := tg.SendDocument(context.Background(), 42, "/no/such/file.db"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWebhookLifecycleMethods(t *testing.T) {
	var methods []string
	_, tg := newAPIServer(t, func(method string, _ map[string]any) (int, string) {
		methods = append(methods, method)
		return http.StatusOK, `{"ok":true}`
	})

	if err := tg.SetWebhook(context.Background(), "https://gw.example/webhook"); err != nil {
		t.Fatalf("SetWebhook: %v", err)
	}
	if err := tg.DeleteWebhook(context.Background()); err != nil {
		t.Fatalf("DeleteWebhook: %v", err)
	}
	if len(methods) != 2 || methods[0] != "setWebhook" || methods[1] != "deleteWebhook" {
		t.Fatalf("methods = %v", methods)
	}
}
