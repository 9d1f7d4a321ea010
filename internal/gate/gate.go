// Package gate implements the access policy evaluated before every inbound
// command. It replaces decorator-style authorization with explicit
// predicates: the dispatcher asks for a Decision and handlers never see
// unauthorized calls.
//
// Policy:
//   - Private context: only the owner and registered admins may use the bot;
//     everyone else is redirected.
//   - Group context: banned users are denied first; owner and admins bypass
//     the rest; ordinary users must be members of both configured channels.
//   - Membership lookup failures (transport error, forbidden, not found) are
//     treated as "not joined" — the gate fails closed, never open.
//
// The admin and ban sets are not enforced to be disjoint: a banned admin is
// denied in groups (ban is checked first) but still allowed in private.
// That asymmetry is a documented policy gap, not a feature.
package gate

import (
	"context"

	"gorm.io/gorm"

	"github.com/Nullprotocols/telegram/internal/platform"
	"github.com/Nullprotocols/telegram/internal/repo"
)

// Level is the actor's privilege tier, used by admin-only and owner-only
// command gating independent of the entry gate.
type Level int

// Privilege tiers.
const (
	LevelUser Level = iota
	LevelAdmin
	LevelOwner
)

// Reason tags a denial for logging and reply selection.
type Reason string

// Denial reasons.
const (
	ReasonBanned     Reason = "banned"
	ReasonPrivateUse Reason = "private_use"
	ReasonNotMember  Reason = "not_member"
)

// Channel references one of the two membership-gated channels.
type Channel struct {
	ID  int64
	URL string
}

// Decision is the gate's verdict for one inbound command.
type Decision struct {
	Allowed bool
	Reason  Reason
	// Message is the user-readable denial text; empty when Allowed.
	Message string
	// NeedJoin marks denials that should carry the join-channels keyboard
	// with a retry affordance.
	NeedJoin bool
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r Reason, msg string) Decision {
	return Decision{Reason: r, Message: msg}
}

// AccessRepo is the persistence contract the gate needs.
type AccessRepo interface {
	IsAdmin(ctx context.Context, db *gorm.DB, userID int64) (bool, error)
	IsBanned(ctx context.Context, db *gorm.DB, userID int64) (bool, error)
}

// RepoFuncs adapts the repo free functions to AccessRepo.
type RepoFuncs struct{}

// IsAdmin proxies repo.IsAdmin.
func (RepoFuncs) IsAdmin(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	return repo.IsAdmin(ctx, db, userID)
}

// IsBanned proxies repo.IsBanned.
func (RepoFuncs) IsBanned(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	return repo.IsBanned(ctx, db, userID)
}

// MembershipChecker is the slice of the platform client the gate uses.
type MembershipChecker interface {
	GetChatMember(ctx context.Context, chatID, userID int64) (platform.MemberStatus, error)
}

// Gate evaluates access policy. Construct once and share; it holds no
// mutable state.
type Gate struct {
	DB      *gorm.DB
	Repo    AccessRepo
	Members MembershipChecker

	Owner    int64
	Channels [2]Channel

	// RedirectMessage is the private-context denial text.
	RedirectMessage string
	// JoinMessage is the group-context membership denial text.
	JoinMessage string
	// BannedMessage is the ban denial text.
	BannedMessage string
}

// New constructs a Gate with default denial texts.
func New(db *gorm.DB, r AccessRepo, m MembershipChecker, owner int64, channels [2]Channel) *Gate {
	return &Gate{
		DB:       db,
		Repo:     r,
		Members:  m,
		Owner:    owner,
		Channels: channels,

		RedirectMessage: "This bot only works in groups.",
		JoinMessage:     "Please join both channels to use the bot.",
		BannedMessage:   "You are banned.",
	}
}

// Check decides whether actorID may run a command in the given chat type.
// Persistence errors propagate; the caller aborts and replies generically.
func (g *Gate) Check(ctx context.Context, actorID int64, chatType string) (Decision, error) {
	if chatType == platform.ChatTypePrivate {
		if actorID == g.Owner {
			return allow(), nil
		}
		isAdmin, err := g.Repo.IsAdmin(ctx, g.DB, actorID)
		if err != nil {
			return Decision{}, err
		}
		if isAdmin {
			return allow(), nil
		}
		return deny(ReasonPrivateUse, g.RedirectMessage), nil
	}

	banned, err := g.Repo.IsBanned(ctx, g.DB, actorID)
	if err != nil {
		return Decision{}, err
	}
	if banned {
		return deny(ReasonBanned, g.BannedMessage), nil
	}
	if actorID == g.Owner {
		return allow(), nil
	}
	isAdmin, err := g.Repo.IsAdmin(ctx, g.DB, actorID)
	if err != nil {
		return Decision{}, err
	}
	if isAdmin {
		return allow(), nil
	}
	if !g.JoinedBoth(ctx, actorID) {
		d := deny(ReasonNotMember, g.JoinMessage)
		d.NeedJoin = true
		return d, nil
	}
	return allow(), nil
}

// JoinedBoth reports whether the actor is a member of both gated channels.
// Any lookup failure counts as not joined.
func (g *Gate) JoinedBoth(ctx context.Context, actorID int64) bool {
	for _, ch := range g.Channels {
		status, err := g.Members.GetChatMember(ctx, ch.ID, actorID)
		if err != nil || !status.Joined() {
			return false
		}
	}
	return true
}

// LevelOf returns the actor's privilege tier for admin/owner command gating.
func (g *Gate) LevelOf(ctx context.Context, actorID int64) (Level, error) {
	if actorID == g.Owner {
		return LevelOwner, nil
	}
	isAdmin, err := g.Repo.IsAdmin(ctx, g.DB, actorID)
	if err != nil {
		return LevelUser, err
	}
	if isAdmin {
		return LevelAdmin, nil
	}
	return LevelUser, nil
}
