// Package bot dispatches decoded platform updates: it runs the access gate,
// routes lookup commands into the pipeline, serves the admin and owner
// command sets, and drives the broadcast/bulk-DM forms through the convo
// store. Handlers never see a call the gate denied.
package bot

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Nullprotocols/telegram/internal/broadcast"
	"github.com/Nullprotocols/telegram/internal/command"
	"github.com/Nullprotocols/telegram/internal/convo"
	"github.com/Nullprotocols/telegram/internal/gate"
	"github.com/Nullprotocols/telegram/internal/pipeline"
	"github.com/Nullprotocols/telegram/internal/platform"
)

// Callback data values handled by the dispatcher.
const (
	callbackRetryJoin = "retry_join"
)

// Bot wires the gateway components behind one HandleUpdate entry point.
type Bot struct {
	DB        *gorm.DB
	Gate      *gate.Gate
	Pipeline  *pipeline.Pipeline
	Registry  *command.Registry
	Broadcast *broadcast.Engine
	Convo     convo.Store
	Client    platform.Client
	Log       zerolog.Logger

	// DBPath backs the owner /dbbackup command.
	DBPath string
	// StatsChannel receives the daily digest; zero disables it.
	StatsChannel int64
}

// HandleUpdate processes one webhook update. It never returns an error: a
// webhook retry would only replay the same failure, so problems are logged
// and the update is acknowledged.
func (b *Bot) HandleUpdate(ctx context.Context, u *platform.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *platform.Message) {
	actorID := msg.From.ID
	log := b.Log.With().Int64("actor", actorID).Int64("chat", msg.Chat.ID).Logger()

	name, args, isCommand := splitCommand(msg.Text)

	form, err := b.Convo.Get(ctx, actorID)
	if err != nil {
		log.Warn().Err(err).Msg("convo store read failed")
		form = convo.Form{}
	}

	// Plain chatter with no form in progress matches nothing.
	if !isCommand && form.State == convo.StateIdle {
		return
	}

	decision, err := b.Gate.Check(ctx, actorID, msg.Chat.Type)
	if err != nil {
		log.Error().Err(err).Msg("access check failed")
		b.send(ctx, msg, "Something went wrong. Please try again later.", nil)
		return
	}
	if !decision.Allowed {
		var kb [][]platform.Button
		if decision.NeedJoin {
			kb = b.joinKeyboard()
		}
		b.send(ctx, msg, decision.Message, kb)
		return
	}

	// A non-command message at this point is a form step.
	if !isCommand {
		b.handleFormStep(ctx, msg, form)
		return
	}

	if name == "cancel" {
		b.handleCancel(ctx, msg, form)
		return
	}

	if _, ok := b.Registry.Lookup(name); ok {
		if err := b.Pipeline.Run(ctx, msg, name, args); err != nil {
			log.Error().Err(err).Str("command", name).Msg("lookup pipeline failed")
		}
		return
	}

	b.handleControlCommand(ctx, msg, name, args)
}

func (b *Bot) handleCallback(ctx context.Context, cb *platform.CallbackQuery) {
	switch cb.Data {
	case callbackRetryJoin:
		// Re-run the membership check only; the original command is not
		// resumed, the actor reissues it.
		if b.Gate.JoinedBoth(ctx, cb.From.ID) {
			if cb.Message != nil {
				if err := b.Client.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID,
					"Joined successfully. You can now use the bot."); err != nil {
					b.Log.Warn().Err(err).Msg("edit join prompt failed")
				}
			}
			if err := b.Client.AnswerCallback(ctx, cb.ID, "", false); err != nil {
				b.Log.Debug().Err(err).Msg("answer callback failed")
			}
			return
		}
		if err := b.Client.AnswerCallback(ctx, cb.ID, "Please join both channels.", true); err != nil {
			b.Log.Debug().Err(err).Msg("answer callback failed")
		}
	case pipeline.CallbackCopyResult:
		// Cosmetic: no clipboard crosses the platform boundary.
		if err := b.Client.AnswerCallback(ctx, cb.ID, "Result copied to clipboard. (Simulated)", true); err != nil {
			b.Log.Debug().Err(err).Msg("answer callback failed")
		}
	}
}

func (b *Bot) joinKeyboard() [][]platform.Button {
	return [][]platform.Button{
		{{Text: "Join Channel 1", URL: b.Gate.Channels[0].URL}},
		{{Text: "Join Channel 2", URL: b.Gate.Channels[1].URL}},
		{{Text: "Retry", CallbackData: callbackRetryJoin}},
	}
}

// send delivers one reply; failures are logged, never retried.
func (b *Bot) send(ctx context.Context, msg *platform.Message, text string, kb [][]platform.Button) {
	opts := &platform.SendOptions{ReplyTo: msg.MessageID}
	if kb != nil {
		opts.Keyboard = kb
	}
	if err := b.Client.SendMessage(ctx, msg.Chat.ID, text, opts); err != nil {
		b.Log.Warn().Err(err).Int64("chat", msg.Chat.ID).Msg("reply failed")
	}
}

// splitCommand parses "/name args…" into its parts. A "@botname" suffix on
// the command is dropped. Returns ok=false for non-command text.
func splitCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	rest := text[1:]
	if rest == "" {
		return "", "", false
	}
	if i := strings.IndexAny(rest, " \t\n"); i >= 0 {
		name, args = rest[:i], strings.TrimSpace(rest[i+1:])
	} else {
		name = rest
	}
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), args, true
}
