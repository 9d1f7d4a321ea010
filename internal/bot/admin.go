// Package bot dispatches decoded platform updates. This file holds the
// admin and owner command handlers plus the broadcast/bulk-DM form steps.
// The generic entry gate has already allowed the actor by the time these
// run; each handler re-checks the privilege tier it needs.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Nullprotocols/telegram/internal/convo"
	"github.com/Nullprotocols/telegram/internal/gate"
	"github.com/Nullprotocols/telegram/internal/platform"
	"github.com/Nullprotocols/telegram/internal/repo"
	"github.com/Nullprotocols/telegram/internal/utils"
)

const (
	msgNotAuthorized = "You are not authorized."
	msgNotOwner      = "You are not the owner."
	listLimit        = 10
	maxListLimit     = 50
	inactiveAfter    = 30 * 24 * time.Hour
)

func (b *Bot) handleControlCommand(ctx context.Context, msg *platform.Message, name, args string) {
	level, err := b.Gate.LevelOf(ctx, msg.From.ID)
	if err != nil {
		b.Log.Error().Err(err).Msg("level lookup failed")
		b.send(ctx, msg, "Something went wrong. Please try again later.", nil)
		return
	}

	switch name {
	case "broadcast":
		b.requireAdmin(ctx, msg, level, b.startBroadcast)
	case "bulkdm":
		b.requireAdmin(ctx, msg, level, b.startBulkDM)
	case "dm":
		b.requireAdmin(ctx, msg, level, func(ctx context.Context, m *platform.Message) { b.dm(ctx, m, args) })
	case "ban":
		b.requireAdmin(ctx, msg, level, func(ctx context.Context, m *platform.Message) { b.ban(ctx, m, args) })
	case "unban":
		b.requireAdmin(ctx, msg, level, func(ctx context.Context, m *platform.Message) { b.unban(ctx, m, args) })
	case "deleteuser":
		b.requireAdmin(ctx, msg, level, func(ctx context.Context, m *platform.Message) { b.deleteUser(ctx, m, args) })
	case "searchuser":
		b.requireAdmin(ctx, msg, level, func(ctx context.Context, m *platform.Message) { b.searchUser(ctx, m, args) })
	case "users":
		b.requireAdmin(ctx, msg, level, b.users)
	case "recentusers":
		b.requireAdmin(ctx, msg, level, func(ctx context.Context, m *platform.Message) { b.recentUsers(ctx, m, args) })
	case "userlookups":
		b.requireAdmin(ctx, msg, level, func(ctx context.Context, m *platform.Message) { b.userLookups(ctx, m, args) })
	case "leaderboard":
		b.requireAdmin(ctx, msg, level, func(ctx context.Context, m *platform.Message) { b.leaderboard(ctx, m, args) })
	case "inactiveusers":
		b.requireAdmin(ctx, msg, level, b.inactiveUsers)
	case "stats":
		b.requireAdmin(ctx, msg, level, b.stats)
	case "dailystats":
		b.requireAdmin(ctx, msg, level, b.dailyStats)
	case "lookupstats":
		b.requireAdmin(ctx, msg, level, b.lookupStats)
	case "addadmin":
		b.requireOwner(ctx, msg, level, func(ctx context.Context, m *platform.Message) { b.addAdmin(ctx, m, args) })
	case "removeadmin":
		b.requireOwner(ctx, msg, level, func(ctx context.Context, m *platform.Message) { b.removeAdmin(ctx, m, args) })
	case "listadmins":
		b.requireOwner(ctx, msg, level, b.listAdmins)
	case "settings":
		b.requireOwner(ctx, msg, level, func(ctx context.Context, m *platform.Message) {
			b.send(ctx, m, "No settings available.", nil)
		})
	case "dbbackup":
		b.requireOwner(ctx, msg, level, b.dbBackup)
	default:
		// Unknown commands are not matched.
	}
}

func (b *Bot) requireAdmin(ctx context.Context, msg *platform.Message, level gate.Level, fn func(context.Context, *platform.Message)) {
	if level < gate.LevelAdmin {
		b.send(ctx, msg, msgNotAuthorized, nil)
		return
	}
	fn(ctx, msg)
}

func (b *Bot) requireOwner(ctx context.Context, msg *platform.Message, level gate.Level, fn func(context.Context, *platform.Message)) {
	if level < gate.LevelOwner {
		b.send(ctx, msg, msgNotOwner, nil)
		return
	}
	fn(ctx, msg)
}

// ---- broadcast / bulk-DM forms ----

func (b *Bot) startBroadcast(ctx context.Context, msg *platform.Message) {
	if err := b.Convo.Set(ctx, msg.From.ID, convo.Form{State: convo.StateAwaitingMessage}); err != nil {
		b.Log.Error().Err(err).Msg("convo store write failed")
		b.send(ctx, msg, "Something went wrong. Please try again later.", nil)
		return
	}
	b.send(ctx, msg, "Please reply with the message to broadcast (text, photo, video, etc.).", nil)
}

func (b *Bot) startBulkDM(ctx context.Context, msg *platform.Message) {
	if err := b.Convo.Set(ctx, msg.From.ID, convo.Form{State: convo.StateAwaitingBulkIDs}); err != nil {
		b.Log.Error().Err(err).Msg("convo store write failed")
		b.send(ctx, msg, "Something went wrong. Please try again later.", nil)
		return
	}
	b.send(ctx, msg, "Send comma-separated user IDs.", nil)
}

func (b *Bot) handleCancel(ctx context.Context, msg *platform.Message, form convo.Form) {
	if form.State == convo.StateIdle {
		b.send(ctx, msg, "Nothing to cancel.", nil)
		return
	}
	if err := b.Convo.Clear(ctx, msg.From.ID); err != nil {
		b.Log.Warn().Err(err).Msg("convo store clear failed")
	}
	b.send(ctx, msg, "Cancelled.", nil)
}

// handleFormStep advances an in-progress form. Form steps are admin-only,
// matching the commands that start them.
func (b *Bot) handleFormStep(ctx context.Context, msg *platform.Message, form convo.Form) {
	level, err := b.Gate.LevelOf(ctx, msg.From.ID)
	if err != nil {
		b.Log.Error().Err(err).Msg("level lookup failed")
		b.send(ctx, msg, "Something went wrong. Please try again later.", nil)
		return
	}
	if level < gate.LevelAdmin {
		b.send(ctx, msg, msgNotAuthorized, nil)
		return
	}

	switch form.State {
	case convo.StateAwaitingMessage:
		recipients, err := repo.AllUserIDs(ctx, b.DB)
		if err != nil {
			b.Log.Error().Err(err).Msg("recipient query failed")
			b.send(ctx, msg, "Something went wrong. Please try again later.", nil)
			return
		}
		n := b.relayToAll(ctx, msg, recipients)
		b.send(ctx, msg, fmt.Sprintf("Broadcast sent to %d users.", n), nil)
		b.clearForm(ctx, msg.From.ID)

	case convo.StateAwaitingBulkIDs:
		if err := b.Convo.Set(ctx, msg.From.ID, convo.Form{State: convo.StateAwaitingBulkBody, IDs: msg.Text}); err != nil {
			b.Log.Error().Err(err).Msg("convo store write failed")
			b.send(ctx, msg, "Something went wrong. Please try again later.", nil)
			return
		}
		b.send(ctx, msg, "Now reply with the message to send.", nil)

	case convo.StateAwaitingBulkBody:
		n := b.relayToAll(ctx, msg, parseIDList(form.IDs))
		b.send(ctx, msg, fmt.Sprintf("Bulk DM sent to %d users.", n), nil)
		b.clearForm(ctx, msg.From.ID)
	}
}

func (b *Bot) relayToAll(ctx context.Context, msg *platform.Message, recipients []int64) int {
	return b.Broadcast.Send(ctx, recipients, func(ctx context.Context, rcpt int64) error {
		return b.Client.CopyMessage(ctx, rcpt, msg.Chat.ID, msg.MessageID)
	})
}

func (b *Bot) clearForm(ctx context.Context, actorID int64) {
	if err := b.Convo.Clear(ctx, actorID); err != nil {
		b.Log.Warn().Err(err).Msg("convo store clear failed")
	}
}

// ---- moderation ----

func (b *Bot) dm(ctx context.Context, msg *platform.Message, args string) {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		b.send(ctx, msg, "Usage: /dm <user_id> <text>", nil)
		return
	}
	target, err := parseID(parts[0])
	if err != nil {
		b.send(ctx, msg, "Usage: /dm <user_id> <text>", nil)
		return
	}
	if err := b.Client.SendMessage(ctx, target, parts[1], nil); err != nil {
		b.send(ctx, msg, "Failed to send DM.", nil)
		return
	}
	b.send(ctx, msg, "DM sent.", nil)
}

func (b *Bot) ban(ctx context.Context, msg *platform.Message, args string) {
	b.mutateUser(ctx, msg, args, "Usage: /ban <user_id>", "User banned.", "Failed to ban.", repo.BanUser)
}

func (b *Bot) unban(ctx context.Context, msg *platform.Message, args string) {
	b.mutateUser(ctx, msg, args, "Usage: /unban <user_id>", "User unbanned.", "Failed to unban.", repo.UnbanUser)
}

func (b *Bot) deleteUser(ctx context.Context, msg *platform.Message, args string) {
	b.mutateUser(ctx, msg, args, "Usage: /deleteuser <user_id>", "User deleted.", "Failed to delete.", repo.DeleteUser)
}

func (b *Bot) addAdmin(ctx context.Context, msg *platform.Message, args string) {
	b.mutateUser(ctx, msg, args, "Usage: /addadmin <user_id>", "Admin added.", "Failed.", repo.AddAdmin)
}

func (b *Bot) removeAdmin(ctx context.Context, msg *platform.Message, args string) {
	b.mutateUser(ctx, msg, args, "Usage: /removeadmin <user_id>", "Admin removed.", "Failed.", repo.RemoveAdmin)
}

// ---- stats and listings ----

func (b *Bot) searchUser(ctx context.Context, msg *platform.Message, args string) {
	query := strings.TrimSpace(args)
	if query == "" {
		b.send(ctx, msg, "Usage: /searchuser <query>", nil)
		return
	}
	results, err := repo.SearchUsers(ctx, b.DB, query)
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	if len(results) == 0 {
		b.send(ctx, msg, "No results.", nil)
		return
	}
	lines := make([]string, 0, len(results))
	for _, u := range results {
		lines = append(lines, fmt.Sprintf("ID: %d, First: %s, Last: %s, Lookups: %d",
			u.ID, u.FirstSeen.Format(time.RFC3339), u.LastSeen.Format(time.RFC3339), u.TotalLookups))
	}
	b.send(ctx, msg, strings.Join(lines, "\n"), nil)
}

func (b *Bot) users(ctx context.Context, msg *platform.Message) {
	total, err := repo.CountUsers(ctx, b.DB)
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	b.send(ctx, msg, fmt.Sprintf("Total users: %d", total), nil)
}

func (b *Bot) recentUsers(ctx context.Context, msg *platform.Message, args string) {
	users, err := repo.RecentUsers(ctx, b.DB, listArg(args))
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	if len(users) == 0 {
		b.send(ctx, msg, "No recent users.", nil)
		return
	}
	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, fmt.Sprintf("ID: %d, Last: %s", u.ID, u.LastSeen.Format(time.RFC3339)))
	}
	b.send(ctx, msg, strings.Join(lines, "\n"), nil)
}

func (b *Bot) userLookups(ctx context.Context, msg *platform.Message, args string) {
	target, err := parseID(args)
	if err != nil {
		b.send(ctx, msg, "Usage: /userlookups <user_id>", nil)
		return
	}
	lookups, err := repo.UserLookups(ctx, b.DB, target)
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	if len(lookups) == 0 {
		b.send(ctx, msg, "No lookups.", nil)
		return
	}
	lines := make([]string, 0, len(lookups))
	for _, l := range lookups {
		lines = append(lines, fmt.Sprintf("%s: %s at %s", l.Command, l.Query, l.Timestamp.Format(time.RFC3339)))
	}
	b.send(ctx, msg, strings.Join(lines, "\n"), nil)
}

func (b *Bot) leaderboard(ctx context.Context, msg *platform.Message, args string) {
	leaders, err := repo.Leaderboard(ctx, b.DB, listArg(args))
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	if len(leaders) == 0 {
		b.send(ctx, msg, "No data.", nil)
		return
	}
	lines := make([]string, 0, len(leaders))
	for _, u := range leaders {
		lines = append(lines, fmt.Sprintf("ID: %d, Lookups: %d", u.ID, u.TotalLookups))
	}
	b.send(ctx, msg, strings.Join(lines, "\n"), nil)
}

func (b *Bot) inactiveUsers(ctx context.Context, msg *platform.Message) {
	cutoff := time.Now().UTC().Add(-inactiveAfter)
	inactive, err := repo.InactiveUsers(ctx, b.DB, cutoff)
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	if len(inactive) == 0 {
		b.send(ctx, msg, "No inactive users.", nil)
		return
	}
	lines := make([]string, 0, len(inactive))
	for _, u := range inactive {
		lines = append(lines, fmt.Sprintf("ID: %d, Last: %s", u.ID, u.LastSeen.Format(time.RFC3339)))
	}
	b.send(ctx, msg, strings.Join(lines, "\n"), nil)
}

func (b *Bot) stats(ctx context.Context, msg *platform.Message) {
	nUsers, err := repo.CountUsers(ctx, b.DB)
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	nLookups, err := repo.CountLookups(ctx, b.DB)
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	b.send(ctx, msg, fmt.Sprintf("Users: %d\nLookups: %d", nUsers, nLookups), nil)
}

func (b *Bot) dailyStats(ctx context.Context, msg *platform.Message) {
	rows, err := repo.DailyTotals(ctx, b.DB, 30)
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	if len(rows) == 0 {
		b.send(ctx, msg, "No data.", nil)
		return
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s: %d", r.Date, r.Total))
	}
	b.send(ctx, msg, strings.Join(lines, "\n"), nil)
}

func (b *Bot) lookupStats(ctx context.Context, msg *platform.Message) {
	rows, err := repo.CommandTotals(ctx, b.DB)
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	if len(rows) == 0 {
		b.send(ctx, msg, "No data.", nil)
		return
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s: %d", r.Command, r.Total))
	}
	b.send(ctx, msg, strings.Join(lines, "\n"), nil)
}

func (b *Bot) listAdmins(ctx context.Context, msg *platform.Message) {
	admins, err := repo.ListAdmins(ctx, b.DB)
	if err != nil {
		b.replyStoreError(ctx, msg, err)
		return
	}
	if len(admins) == 0 {
		b.send(ctx, msg, "No admins.", nil)
		return
	}
	lines := make([]string, 0, len(admins))
	for _, id := range admins {
		lines = append(lines, strconv.FormatInt(id, 10))
	}
	b.send(ctx, msg, strings.Join(lines, "\n"), nil)
}

func (b *Bot) dbBackup(ctx context.Context, msg *platform.Message) {
	if err := b.Client.SendDocument(ctx, msg.Chat.ID, b.DBPath); err != nil {
		b.Log.Error().Err(err).Msg("db backup failed")
		b.send(ctx, msg, "Backup failed.", nil)
	}
}

// ---- helpers ----

type mutateFn func(ctx context.Context, db *gorm.DB, userID int64) error

func (b *Bot) mutateUser(ctx context.Context, msg *platform.Message, args, usage, done, failed string, fn mutateFn) {
	target, err := parseID(args)
	if err != nil {
		b.send(ctx, msg, usage, nil)
		return
	}
	if err := fn(ctx, b.DB, target); err != nil {
		b.Log.Error().Err(err).Int64("target", target).Msg("user mutation failed")
		b.send(ctx, msg, failed, nil)
		return
	}
	b.send(ctx, msg, done, nil)
}

// replyStoreError surfaces a persistence failure as one generic reply and
// logs the cause; the failed step is aborted rather than papered over.
func (b *Bot) replyStoreError(ctx context.Context, msg *platform.Message, err error) {
	b.Log.Error().Err(err).Msg("store query failed")
	b.send(ctx, msg, "Something went wrong. Please try again later.", nil)
}

// listArg parses an optional count argument for list commands, falling back
// to the default page size when absent or out of range.
func listArg(args string) int {
	n := utils.AtoiDefault(strings.TrimSpace(args), listLimit)
	if n < 1 || n > maxListLimit {
		return listLimit
	}
	return n
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// parseIDList extracts numeric IDs from a comma-separated list, dropping
// anything that does not parse.
func parseIDList(s string) []int64 {
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if id, err := parseID(p); err == nil {
			out = append(out, id)
		}
	}
	return out
}
