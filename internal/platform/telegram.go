package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultAPIBase is the production Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// Telegram is the wire implementation of Client over the Bot API.
type Telegram struct {
	token string
	base  string
	http  *http.Client
}

var _ Client = (*Telegram)(nil)

// NewTelegram builds a Telegram client. base falls back to DefaultAPIBase;
// tests point it at a local server.
func NewTelegram(token, base string, hc *http.Client) *Telegram {
	if base == "" {
		base = DefaultAPIBase
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Telegram{token: token, base: base, http: hc}
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
	Result json.RawMessage `json:"result"`
}

// call POSTs a JSON-encoded method call and decodes the envelope. A 429 (or
// an envelope carrying retry_after) surfaces as *ThrottledError.
func (t *Telegram) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", t.base, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !env.OK {
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			return &ThrottledError{RetryAfter: time.Duration(env.Parameters.RetryAfter) * time.Second}
		}
		return fmt.Errorf("%s: %s (code %d)", method, env.Description, env.ErrorCode)
	}
	if result != nil && len(env.Result) > 0 {
		return json.Unmarshal(env.Result, result)
	}
	return nil
}

// SendMessage implements Client.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) error {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if opts != nil {
		if opts.ParseMode != "" {
			params["parse_mode"] = opts.ParseMode
		}
		if opts.ReplyTo != 0 {
			params["reply_to_message_id"] = opts.ReplyTo
		}
		if len(opts.Keyboard) > 0 {
			params["reply_markup"] = map[string]any{"inline_keyboard": opts.Keyboard}
		}
	}
	return t.call(ctx, "sendMessage", params, nil)
}

// CopyMessage implements Client.
func (t *Telegram) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	return t.call(ctx, "copyMessage", map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}, nil)
}

// GetChatMember implements Client.
func (t *Telegram) GetChatMember(ctx context.Context, chatID, userID int64) (MemberStatus, error) {
	var result struct {
		Status string `json:"status"`
	}
	err := t.call(ctx, "getChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, &result)
	if err != nil {
		return "", err
	}
	return MemberStatus(result.Status), nil
}

// AnswerCallback implements Client.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error {
	return t.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
		"show_alert":        showAlert,
	}, nil)
}

// EditMessageText implements Client.
func (t *Telegram) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	return t.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}, nil)
}

// SendDocument implements Client. The document is uploaded as multipart form
// data since it is a local file, not a platform file reference.
func (t *Telegram) SendDocument(ctx context.Context, chatID int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return err
	}
	part, err := w.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendDocument", t.base, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("sendDocument: decode response: %w", err)
	}
	if !env.OK {
		return fmt.Errorf("sendDocument: %s (code %d)", env.Description, env.ErrorCode)
	}
	return nil
}

// SetWebhook implements Client.
func (t *Telegram) SetWebhook(ctx context.Context, url string) error {
	return t.call(ctx, "setWebhook", map[string]any{"url": url}, nil)
}

// DeleteWebhook implements Client.
func (t *Telegram) DeleteWebhook(ctx context.Context) error {
	return t.call(ctx, "deleteWebhook", map[string]any{}, nil)
}
