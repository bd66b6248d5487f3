// Package history persists per-session conversation logs in the key-value
// store.
//
// A log is an ordered, append-only sequence of turns in the upstream wire
// shape (gemini.Content), capped in length with FIFO eviction and expired
// by a TTL that refreshes on every save. The store does not validate
// user/model alternation; callers construct valid sequences before
// persisting.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/yuchingtsai/chatpad/internal/gemini"
	"github.com/yuchingtsai/chatpad/internal/kvstore"
	"github.com/yuchingtsai/chatpad/internal/log"
)

// keyPrefix namespaces history entries within the key-value store.
const keyPrefix = "chat_history_"

// KV is the store surface this package needs. *kvstore.Store satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Store manages conversation history records.
type Store struct {
	kv     KV
	cap    int
	ttl    time.Duration
	logger log.Logger
}

// New creates a Store. cap is the maximum number of turns retained per
// session (oldest dropped first); ttl is the retention window, refreshed
// on every save.
func New(kv KV, cap int, ttl time.Duration, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{kv: kv, cap: cap, ttl: ttl, logger: logger}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// Load returns the session's turns in order.
// An absent or corrupt record reads as an empty sequence; only a
// store-unavailable failure is returned as an error.
func (s *Store) Load(ctx context.Context, sessionID string) ([]gemini.Content, error) {
	raw, err := s.kv.Get(ctx, key(sessionID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var turns []gemini.Content
	if err := json.Unmarshal(raw, &turns); err != nil {
		s.logger.Warn("history record is corrupt, starting fresh",
			"session_id", sessionID, "error", err)
		return nil, nil
	}
	return turns, nil
}

// Append concatenates newTurns onto the stored log, truncates to the most
// recent cap turns, and persists with a refreshed TTL.
func (s *Store) Append(ctx context.Context, sessionID string, newTurns ...gemini.Content) error {
	if len(newTurns) == 0 {
		return nil
	}

	turns, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}

	turns = append(turns, newTurns...)
	if len(turns) > s.cap {
		turns = turns[len(turns)-s.cap:]
	}

	raw, err := json.Marshal(turns)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, key(sessionID), raw, s.ttl)
}

// Clear deletes the session's history. Clearing an absent session is not
// an error.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.kv.Delete(ctx, key(sessionID))
}
