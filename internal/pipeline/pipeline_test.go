package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Nullprotocols/telegram/internal/command"
	"github.com/Nullprotocols/telegram/internal/platform"
	"github.com/Nullprotocols/telegram/internal/repo"
	"github.com/Nullprotocols/telegram/internal/sanitize"
)

// sentMsg records one SendMessage call on the fake client.
type sentMsg struct {
	ChatID int64
	Text   string
	Opts   *platform.SendOptions
}

// fakeClient implements platform.Client; only SendMessage is exercised here.
type fakeClient struct {
	sent    []sentMsg
	sendErr error
}

func (f *fakeClient) SendMessage(_ context.Context, chatID int64, text string, opts *platform.SendOptions) error {
	f.sent = append(f.sent, sentMsg{ChatID: chatID, Text: text, Opts: opts})
	return f.sendErr
}

func (f *fakeClient) CopyMessage(context.Context, int64, int64, int) error { return nil }

func (f *fakeClient) GetChatMember(context.Context, int64, int64) (platform.MemberStatus, error) {
	return platform.StatusMember, nil
}

func (f *fakeClient) AnswerCallback(context.Context, string, string, bool) error { return nil }

func (f *fakeClient) EditMessageText(context.Context, int64, int, string) error { return nil }

func (f *fakeClient) SendDocument(context.Context, int64, string) error { return nil }

func (f *fakeClient) SetWebhook(context.Context, string) error { return nil }

func (f *fakeClient) DeleteWebhook(context.Context) error { return nil }

// fakeFetcher returns a fixed payload or error and counts calls.
type fakeFetcher struct {
	payload any
	err     error
	calls   int
	lastURL string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (any, error) {
	f.calls++
	f.lastURL = url
	return f.payload, f.err
}

func newPipelineDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newPipelineRegistry(t *testing.T) *command.Registry {
	t.Helper()
	r, err := command.NewRegistry(
		[]Definition{
			{Name: "pin", URLTemplate: "https://pin.example/{query}", AuditTag: "pin"},
			{Name: "noisy", URLTemplate: "https://n.example/{query}", AuditTag: "noisy", ExtraClean: true},
		},
		map[string]int64{"pin": -100777},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

// Definition aliases keep the table literals short.
type Definition = command.Definition

func groupMsg(actorID int64, text string) *platform.Message {
	return &platform.Message{
		MessageID: 11,
		From:      &platform.User{ID: actorID},
		Chat:      platform.Chat{ID: -200, Type: "supergroup"},
		Text:      text,
	}
}

func newTestPipeline(t *testing.T, db *gorm.DB, f Fetcher, c platform.Client) *Pipeline {
	t.Helper()
	s := sanitize.New([]string{"@vendor"}, []string{"extra"})
	p := New(db, newPipelineRegistry(t), f, s, c, "powered_by: TEST", zerolog.Nop())
	p.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }
	return p
}

func TestRun_Success_RepliesAuditsAndRecords(t *testing.T) {
	db := newPipelineDB(t)
	fetcher := &fakeFetcher{payload: map[string]any{"pincode": "110001", "src": "@vendor"}}
	client := &fakeClient{}
	p := newTestPipeline(t, db, fetcher, client)
	ctx := context.Background()

	if err := p.Run(ctx, groupMsg(42, "/pin 110001"), "pin", "110001"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fetcher.lastURL != "https://pin.example/110001" {
		t.Fatalf("fetched %q", fetcher.lastURL)
	}

	// Two sends: the user reply and the audit fan-out.
	if len(client.sent) != 2 {
		t.Fatalf("sends = %d; want 2 (reply + audit)", len(client.sent))
	}
	reply := client.sent[0]
	if reply.ChatID != -200 || !strings.Contains(reply.Text, "<pre>") || !strings.Contains(reply.Text, "powered_by: TEST") {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if strings.Contains(reply.Text, "@vendor") {
		t.Fatalf("reply not sanitized: %q", reply.Text)
	}
	if reply.Opts == nil || reply.Opts.ParseMode != "HTML" || len(reply.Opts.Keyboard) != 2 {
		t.Fatalf("reply options: %+v", reply.Opts)
	}

	audit := client.sent[1]
	if audit.ChatID != -100777 {
		t.Fatalf("audit destination = %d; want -100777", audit.ChatID)
	}
	// The audit copy carries the raw payload, branding included.
	if !strings.Contains(audit.Text, "@vendor") || !strings.Contains(audit.Text, "User ID: 42") {
		t.Fatalf("unexpected audit text: %q", audit.Text)
	}

	// Exactly one lookup row, one stat row, and an attempt-counted user.
	n, err := repo.CountLookups(ctx, db)
	if err != nil || n != 1 {
		t.Fatalf("CountLookups = %d, %v; want 1", n, err)
	}
	rows, err := repo.TotalsForDate(ctx, db, "2025-06-01")
	if err != nil || len(rows) != 1 || rows[0].Total != 1 {
		t.Fatalf("TotalsForDate = %+v, %v", rows, err)
	}
	u, err := repo.GetUser(ctx, db, 42)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.TotalLookups != 0 {
		t.Fatalf("first-sight TotalLookups = %d; want 0", u.TotalLookups)
	}
}

func TestRun_BlankQuery_UsageReply_NoFetch(t *testing.T) {
	db := newPipelineDB(t)
	fetcher := &fakeFetcher{payload: map[string]any{}}
	client := &fakeClient{}
	p := newTestPipeline(t, db, fetcher, client)
	ctx := context.Background()

	if err := p.Run(ctx, groupMsg(42, "/pin"), "pin", "   "); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fetcher.calls != 0 {
		t.Fatalf("fetcher called for blank query")
	}
	if len(client.sent) != 1 || client.sent[0].Text != "Usage: /pin <query>" {
		t.Fatalf("unexpected sends: %+v", client.sent)
	}
	if n, _ := repo.CountLookups(ctx, db); n != 0 {
		t.Fatalf("lookup recorded for rejected command")
	}
}

func TestRun_UpstreamFailure_ErrorReply_NothingRecorded(t *testing.T) {
	db := newPipelineDB(t)
	fetcher := &fakeFetcher{err: errors.New("upstream request failed")}
	client := &fakeClient{}
	p := newTestPipeline(t, db, fetcher, client)
	ctx := context.Background()

	if err := p.Run(ctx, groupMsg(42, "/pin x"), "pin", "x"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.sent) != 1 || client.sent[0].Text != "Error fetching data. Please try again later." {
		t.Fatalf("unexpected sends: %+v", client.sent)
	}
	if n, _ := repo.CountLookups(ctx, db); n != 0 {
		t.Fatalf("failed fetch left a lookup row")
	}
	rows, _ := repo.TotalsForDate(ctx, db, "2025-06-01")
	if len(rows) != 0 {
		t.Fatalf("failed fetch left a stat row: %+v", rows)
	}
	// The attempt still counts against the user record.
	if _, err := repo.GetUser(ctx, db, 42); err != nil {
		t.Fatalf("user not touched on failed fetch: %v", err)
	}
}

func TestRun_ExtraCleanProfileApplied(t *testing.T) {
	db := newPipelineDB(t)
	fetcher := &fakeFetcher{payload: map[string]any{"note": "has extra junk"}}
	client := &fakeClient{}
	p := newTestPipeline(t, db, fetcher, client)

	if err := p.Run(context.Background(), groupMsg(42, "/noisy q"), "noisy", "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("sends = %d; want 1 (no audit channel for noisy)", len(client.sent))
	}
	if strings.Contains(client.sent[0].Text, "extra") {
		t.Fatalf("extra profile not applied: %q", client.sent[0].Text)
	}
}

func TestRun_ReplyFailure_Propagates_NothingRecorded(t *testing.T) {
	db := newPipelineDB(t)
	fetcher := &fakeFetcher{payload: map[string]any{"ok": true}}
	client := &fakeClient{sendErr: errors.New("chat not found")}
	p := newTestPipeline(t, db, fetcher, client)
	ctx := context.Background()

	if err := p.Run(ctx, groupMsg(42, "/pin x"), "pin", "x"); err == nil {
		t.Fatalf("expected reply failure to propagate")
	}
	if n, _ := repo.CountLookups(ctx, db); n != 0 {
		t.Fatalf("lookup recorded despite failed reply")
	}
}

func TestRun_UnknownCommand_Errors(t *testing.T) {
	db := newPipelineDB(t)
	p := newTestPipeline(t, db, &fakeFetcher{}, &fakeClient{})
	if err := p.Run(context.Background(), groupMsg(42, "/zzz q"), "zzz", "q"); err == nil {
		t.Fatalf("expected error for unregistered command")
	}
}
