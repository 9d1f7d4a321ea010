// Package pipeline orchestrates one lookup command from validated input to
// audited result: validate → touch user → fetch → sanitize → reply → audit
// fan-out → lookup log → daily stat.
//
// Consistency: every step opens, uses, and releases the store immediately;
// no transaction spans steps. A crash between steps can leave the user's
// lookup count incremented without a matching audit row — accepted
// at-most-once-per-step behavior, not a transactional guarantee. Failed
// fetches write nothing: they are invisible to analytics.
//
// Reply discipline: every path out of Run produces exactly one reply to the
// actor. When a step fails before the reply was sent, Run sends the generic
// error text itself and then propagates the error; callers must only log it.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Nullprotocols/telegram/internal/command"
	"github.com/Nullprotocols/telegram/internal/platform"
	"github.com/Nullprotocols/telegram/internal/repo"
	"github.com/Nullprotocols/telegram/internal/sanitize"
)

var lookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_lookups_total",
		Help: "Lookup commands by command name and outcome.",
	},
	[]string{"command", "outcome"}, // ok | rejected | upstream_failed | error
)

func init() {
	prometheus.MustRegister(lookups)
}

// Callback data values attached to lookup replies.
const (
	CallbackCopyResult = "copy_result"
)

// Fetcher is the slice of the fetch client the pipeline uses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (any, error)
}

// Pipeline runs lookup commands. It holds no per-invocation state; commands
// from different users interleave freely on the store's own discipline.
type Pipeline struct {
	DB        *gorm.DB
	Registry  *command.Registry
	Fetcher   Fetcher
	Sanitizer *sanitize.Sanitizer
	Client    platform.Client

	// Footer is appended below the pretty-printed payload in replies.
	Footer string

	Log zerolog.Logger

	// now is a seam for tests.
	now func() time.Time
}

// New wires a Pipeline.
func New(db *gorm.DB, reg *command.Registry, f Fetcher, s *sanitize.Sanitizer, c platform.Client, footer string, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		DB:        db,
		Registry:  reg,
		Fetcher:   f,
		Sanitizer: s,
		Client:    c,
		Footer:    footer,
		Log:       log.With().Str("component", "pipeline").Logger(),
		now:       time.Now,
	}
}

// Run executes one lookup command. args is the raw text after the command
// name; msg identifies the actor and originating chat.
func (p *Pipeline) Run(ctx context.Context, msg *platform.Message, cmdName, args string) error {
	tr := otel.Tracer("pipeline")
	ctx, span := tr.Start(ctx, "Lookup",
		trace.WithAttributes(
			attribute.String("command", cmdName),
			attribute.Int64("user.id", msg.From.ID),
		),
	)
	defer span.End()

	def, ok := p.Registry.Lookup(cmdName)
	if !ok {
		// Unknown commands are not matched; the dispatcher should not get here.
		return fmt.Errorf("unknown command %q", cmdName)
	}

	// VALIDATED: one free-text argument, non-blank after trimming.
	query := strings.TrimSpace(args)
	if query == "" {
		lookups.WithLabelValues(cmdName, "rejected").Inc()
		return p.reply(ctx, msg, fmt.Sprintf("Usage: /%s <query>", cmdName), nil)
	}

	actorID := msg.From.ID
	now := p.now().UTC()

	// USER-UPDATED: the lookup count reflects attempts reaching this point,
	// not only successes.
	if err := repo.TouchUser(ctx, p.DB, actorID, now); err != nil {
		lookups.WithLabelValues(cmdName, "error").Inc()
		return p.failBefore(ctx, msg, err)
	}

	// FETCHED
	raw, err := p.Fetcher.Fetch(ctx, def.Expand(query))
	if err != nil {
		lookups.WithLabelValues(cmdName, "upstream_failed").Inc()
		return p.reply(ctx, msg, "Error fetching data. Please try again later.", nil)
	}

	// SANITIZED: only the user-facing reply; raw is what gets audited.
	cleaned := p.Sanitizer.Clean(raw, def.ExtraClean)

	// REPLIED
	if err := p.reply(ctx, msg, p.render(cleaned), resultKeyboard(query)); err != nil {
		lookups.WithLabelValues(cmdName, "error").Inc()
		return err
	}

	rawJSON := marshalRaw(raw)

	// Audit fan-out is best effort; errors never reach the actor.
	p.fanOut(ctx, def, rawJSON, actorID, query, msg.Chat.ID)

	// AUDITED
	if err := repo.AppendLookup(ctx, p.DB, actorID, cmdName, query, rawJSON, now); err != nil {
		lookups.WithLabelValues(cmdName, "error").Inc()
		return err
	}

	// STAT-INCREMENTED
	if err := repo.IncrementDailyStat(ctx, p.DB, now.Format("2006-01-02"), cmdName); err != nil {
		lookups.WithLabelValues(cmdName, "error").Inc()
		return err
	}

	lookups.WithLabelValues(cmdName, "ok").Inc()
	return nil
}

// failBefore handles step failures that occur before any reply was sent: it
// delivers the single generic reply, then propagates the original error.
func (p *Pipeline) failBefore(ctx context.Context, msg *platform.Message, err error) error {
	if rerr := p.reply(ctx, msg, "Something went wrong. Please try again later.", nil); rerr != nil {
		p.Log.Warn().Err(rerr).Msg("error reply failed")
	}
	return err
}

func (p *Pipeline) reply(ctx context.Context, msg *platform.Message, text string, kb [][]platform.Button) error {
	opts := &platform.SendOptions{ReplyTo: msg.MessageID, Keyboard: kb}
	if kb != nil {
		opts.ParseMode = "HTML"
	}
	return p.Client.SendMessage(ctx, msg.Chat.ID, text, opts)
}

// render pretty-prints the sanitized payload inside a <pre> block with the
// configured footer.
func (p *Pipeline) render(payload any) string {
	pretty, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		pretty = []byte(fmt.Sprint(payload))
	}
	if p.Footer == "" {
		return fmt.Sprintf("<pre>%s</pre>", pretty)
	}
	return fmt.Sprintf("<pre>%s</pre>\n%s", pretty, p.Footer)
}

// resultKeyboard builds the two reply affordances: a simulated copy action
// and a search-again pre-fill of the same query.
func resultKeyboard(query string) [][]platform.Button {
	q := query
	return [][]platform.Button{
		{{Text: "Copy", CallbackData: CallbackCopyResult}},
		{{Text: "Search", SwitchInlineQuery: &q}},
	}
}

// fanOut forwards the raw payload to the command's audit channel. Failures
// are logged and swallowed.
func (p *Pipeline) fanOut(ctx context.Context, def command.Definition, rawJSON string, actorID int64, query string, chatID int64) {
	dest, ok := p.Registry.AuditChannel(def.AuditTag)
	if !ok {
		return
	}
	var pretty any
	_ = json.Unmarshal([]byte(rawJSON), &pretty)
	indented, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		indented = []byte(rawJSON)
	}
	text := fmt.Sprintf("User ID: %d\nGroup ID: %d\nQuery: %s\nResult:\n%s", actorID, chatID, query, indented)
	if err := p.Client.SendMessage(ctx, dest, text, nil); err != nil {
		p.Log.Warn().Err(err).Str("tag", def.AuditTag).Int64("channel", dest).Msg("audit fan-out failed")
	}
}

// marshalRaw serializes the raw payload for persistence and fan-out. The
// payload came out of json.Unmarshal (or a wrap), so this cannot fail in
// practice; a plain fmt fallback keeps the audit trail on the odd path.
func marshalRaw(raw any) string {
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprint(raw)
	}
	return string(b)
}
