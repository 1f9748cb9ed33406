// Package services – Guards
//
// Guards are the access checks every bot handler runs explicitly before
// doing any work. Each returns an Outcome instead of short-circuiting, so a
// handler reads top to bottom: resolve the user, check admin, check channel
// membership, then act. Guards compose: RequireAdmin and RequireSubscription
// take the Outcome of a user guard and pass a rejection through unchanged.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/repo"
	"github.com/tbourn/go-filebot-backend/internal/telegram"
)

// Reason explains why a guard rejected a request.
type Reason string

const (
	ReasonUnknownUser   Reason = "unknown_user"
	ReasonBlocked       Reason = "blocked"
	ReasonNotAdmin      Reason = "not_admin"
	ReasonNotSubscribed Reason = "not_subscribed"
)

// ChannelMembership is the membership check result for one channel.
type ChannelMembership struct {
	Channel    domain.SubscribeChannel
	Subscribed bool
}

// Outcome is the result of a guard. User is set whenever the user could be
// resolved, even when the outcome is a rejection.
type Outcome struct {
	Authorized bool
	User       *domain.User
	Reason     Reason

	// Channels is filled by RequireSubscription with every active channel.
	Channels []ChannelMembership
}

// Authorized returns an accepting Outcome for u.
func Authorized(u *domain.User) Outcome { return Outcome{Authorized: true, User: u} }

// Rejected returns a rejecting Outcome.
func Rejected(u *domain.User, r Reason) Outcome { return Outcome{User: u, Reason: r} }

// Guards resolves Telegram identities against the user directory.
type Guards struct {
	DB  *gorm.DB
	Bot telegram.Messenger
	Now func() time.Time
}

// NewGuards constructs Guards. bot may be nil, which disables membership
// checks.
func NewGuards(db *gorm.DB, bot telegram.Messenger) *Guards {
	return &Guards{DB: db, Bot: bot, Now: time.Now}
}

func (g *Guards) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

// RequireKnownUser accepts an existing, non-blocked user and bumps its
// last_active.
func (g *Guards) RequireKnownUser(ctx context.Context, telegramID int64) (Outcome, error) {
	u, err := repo.GetUserByTelegramID(ctx, g.DB, telegramID)
	if errors.Is(err, repo.ErrNotFound) {
		return Rejected(nil, ReasonUnknownUser), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if u.IsBlocked {
		return Rejected(u, ReasonBlocked), nil
	}
	now := g.now()
	if err := repo.TouchUser(ctx, g.DB, u.ID, now); err != nil {
		loggerFrom(ctx).Warn().Err(err).Int64("telegram_id", telegramID).Msg("touch user failed")
	} else {
		u.LastActive, u.Left = now, false
	}
	return Authorized(u), nil
}

// UpsertUser creates the user on first contact or refreshes the profile
// otherwise. It reports whether the user was created.
func (g *Guards) UpsertUser(ctx context.Context, p repo.UserProfile) (Outcome, bool, error) {
	u, created, err := repo.UpsertUser(ctx, g.DB, p, g.now())
	if err != nil {
		return Outcome{}, false, err
	}
	if u.IsBlocked {
		return Rejected(u, ReasonBlocked), created, nil
	}
	return Authorized(u), created, nil
}

// RequireAdmin narrows o to admins.
func RequireAdmin(o Outcome) Outcome {
	if !o.Authorized {
		return o
	}
	if o.User == nil || !o.User.IsAdmin {
		return Rejected(o.User, ReasonNotAdmin)
	}
	return o
}

// RequireSubscription narrows o to users that are members of every active
// channel. A user counts as a member unless Telegram reports "left" or
// "kicked"; a failed lookup counts as not subscribed. Without channels or
// without a bot the check passes.
func (g *Guards) RequireSubscription(ctx context.Context, o Outcome) (Outcome, error) {
	if !o.Authorized || o.User == nil {
		return o, nil
	}
	channels, err := repo.ListChannels(ctx, g.DB, true)
	if err != nil {
		return Outcome{}, err
	}
	if len(channels) == 0 {
		return o, nil
	}
	if g.Bot == nil {
		loggerFrom(ctx).Warn().Msg("subscription check skipped: bot not configured")
		return o, nil
	}

	all := true
	out := make([]ChannelMembership, 0, len(channels))
	for _, ch := range channels {
		status, err := g.Bot.MemberStatus(ctx, ch.ChannelID, o.User.TelegramID)
		ok := err == nil && status != "left" && status != "kicked"
		if err != nil {
			loggerFrom(ctx).Warn().Err(err).Int64("channel_id", ch.ChannelID).Msg("membership lookup failed")
		}
		out = append(out, ChannelMembership{Channel: ch, Subscribed: ok})
		all = all && ok
	}
	if !all {
		rej := Rejected(o.User, ReasonNotSubscribed)
		rej.Channels = out
		return rej, nil
	}
	o.Channels = out
	return o, nil
}
