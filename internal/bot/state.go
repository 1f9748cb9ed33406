package bot

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-filebot-backend/internal/cache"
	"github.com/tbourn/go-filebot-backend/internal/search"
)

// State is the conversation state of one user.
type State struct {
	Mode              search.Mode `json:"mode"`
	LastQuery         string      `json:"last_query,omitempty"`
	AwaitingBroadcast bool        `json:"awaiting_broadcast,omitempty"`
}

// StateStore keeps State in the shared cache so every replica sees the same
// conversation. Entries expire after TTL of inactivity.
type StateStore struct {
	Cache cache.Store
	TTL   time.Duration
}

// NewStateStore returns a StateStore; a non-positive ttl means 24h.
func NewStateStore(c cache.Store, ttl time.Duration) *StateStore {
	if c == nil {
		c = cache.Nop{}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StateStore{Cache: c, TTL: ttl}
}

func stateKey(telegramID int64) string {
	return "bot:state:" + strconv.FormatInt(telegramID, 10)
}

// Get returns the state of telegramID. Missing or unreadable state yields
// the zero State with normal search mode.
func (s *StateStore) Get(ctx context.Context, telegramID int64) State {
	var st State
	err := cache.GetJSON(ctx, s.Cache, stateKey(telegramID), &st)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		log.Ctx(ctx).Warn().Err(err).Int64("telegram_id", telegramID).Msg("bot state read failed")
	}
	if st.Mode != search.ModeDeep {
		st.Mode = search.ModeNormal
	}
	return st
}

// Put stores st for telegramID and refreshes its TTL.
func (s *StateStore) Put(ctx context.Context, telegramID int64, st State) error {
	return cache.SetJSON(ctx, s.Cache, stateKey(telegramID), st, s.TTL)
}

// Update applies fn to the current state and stores the result.
func (s *StateStore) Update(ctx context.Context, telegramID int64, fn func(*State)) error {
	st := s.Get(ctx, telegramID)
	fn(&st)
	return s.Put(ctx, telegramID, st)
}
