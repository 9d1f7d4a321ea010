// Package platform is the boundary to the chat platform. It defines the
// inbound update model decoded by the webhook, the outbound Client contract
// used by the gate, pipeline, broadcast engine, and admin handlers, and the
// throttle signal raised when the remote enforces rate limits.
//
// Everything behind Client is plumbing from the gateway's point of view; the
// pipeline only depends on this interface, never on the wire client.
package platform

import (
	"context"
	"fmt"
	"time"
)

// MemberStatus is the platform's answer to a channel membership query.
type MemberStatus string

// Membership states. Joined membership for gating purposes is member,
// administrator, or creator.
const (
	StatusMember        MemberStatus = "member"
	StatusAdministrator MemberStatus = "administrator"
	StatusCreator       MemberStatus = "creator"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Joined reports whether the status counts as channel membership.
func (s MemberStatus) Joined() bool {
	switch s {
	case StatusMember, StatusAdministrator, StatusCreator:
		return true
	}
	return false
}

// ThrottledError is the remote flow-control signal: the platform demands a
// wait before further send calls.
type ThrottledError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled by platform, retry after %s", e.RetryAfter)
}

// ChatTypePrivate marks one-on-one interactions; every other chat type is a
// group context for access gating.
const ChatTypePrivate = "private"

// User identifies the actor behind a message or callback.
type User struct {
	ID int64 `json:"id"`
}

// Chat identifies the conversation an update originated from.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is one inbound chat message.
type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// CallbackQuery is an inline-keyboard button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

// Update is one webhook delivery. Exactly one of Message or CallbackQuery is
// set for the updates the gateway handles; anything else is ignored.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

// Button is one inline keyboard button. Exactly one of URL, CallbackData, or
// SwitchInlineQuery should be set.
type Button struct {
	Text              string  `json:"text"`
	URL               string  `json:"url,omitempty"`
	CallbackData      string  `json:"callback_data,omitempty"`
	SwitchInlineQuery *string `json:"switch_inline_query_current_chat,omitempty"`
}

// SendOptions carries optional send parameters.
type SendOptions struct {
	// ParseMode selects text formatting ("HTML" for lookup replies).
	ParseMode string
	// ReplyTo makes the outbound message a reply to an inbound one.
	ReplyTo int
	// Keyboard attaches an inline keyboard, one row per inner slice.
	Keyboard [][]Button
}

// Client is the outbound platform contract. Send operations may return
// *ThrottledError when the remote enforces rate limits; callers decide how
// to honor the wait.
type Client interface {
	// SendMessage delivers text to a chat.
	SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) error

	// CopyMessage relays an existing message by reference into another chat,
	// preserving media the gateway never inspects.
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error

	// GetChatMember queries a user's membership status in a channel.
	GetChatMember(ctx context.Context, chatID, userID int64) (MemberStatus, error)

	// AnswerCallback acknowledges a callback query, optionally with an alert.
	AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error

	// EditMessageText rewrites a previously sent message.
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error

	// SendDocument uploads a local file to a chat.
	SendDocument(ctx context.Context, chatID int64, path string) error

	// SetWebhook registers the inbound webhook URL with the platform.
	SetWebhook(ctx context.Context, url string) error

	// DeleteWebhook unregisters the inbound webhook.
	DeleteWebhook(ctx context.Context) error
}
