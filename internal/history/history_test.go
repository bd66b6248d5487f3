package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchingtsai/chatpad/internal/gemini"
	"github.com/yuchingtsai/chatpad/internal/kvstore"
	"github.com/yuchingtsai/chatpad/internal/log"
)

// fakeKV is a map-backed KV recording the last TTL used per key.
type fakeKV struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	err     error
	deletes int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[key]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return v, nil
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.data, key)
	f.deletes++
	return nil
}

func userTurn(text string) gemini.Content {
	return gemini.NewTextContent(gemini.RoleUser, text)
}

func modelTurn(text string) gemini.Content {
	return gemini.NewTextContent(gemini.RoleModel, text)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("absent session reads empty", func(t *testing.T) {
		store := New(newFakeKV(), 20, time.Hour, log.NewNop())
		turns, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("corrupt record reads empty", func(t *testing.T) {
		kv := newFakeKV()
		kv.data["chat_history_s1"] = []byte("{{{")
		store := New(kv, 20, time.Hour, log.NewNop())

		turns, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("store unavailable propagates", func(t *testing.T) {
		kv := newFakeKV()
		kv.err = kvstore.ErrUnavailable
		store := New(kv, 20, time.Hour, log.NewNop())

		_, err := store.Load(ctx, "s1")
		assert.ErrorIs(t, err, kvstore.ErrUnavailable)
	})
}

func TestAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips turns in order", func(t *testing.T) {
		store := New(newFakeKV(), 20, time.Hour, log.NewNop())

		require.NoError(t, store.Append(ctx, "s1", userTurn("hi"), modelTurn("hello")))
		require.NoError(t, store.Append(ctx, "s1", userTurn("more"), modelTurn("sure")))

		turns, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, turns, 4)
		assert.Equal(t, "hi", turns[0].Text())
		assert.Equal(t, gemini.RoleUser, turns[0].Role)
		assert.Equal(t, "sure", turns[3].Text())
		assert.Equal(t, gemini.RoleModel, turns[3].Role)
	})

	t.Run("cap evicts oldest first", func(t *testing.T) {
		store := New(newFakeKV(), 4, time.Hour, log.NewNop())

		for i := 0; i < 5; i++ {
			require.NoError(t, store.Append(ctx, "s1",
				userTurn(fmt.Sprintf("q%d", i)), modelTurn(fmt.Sprintf("a%d", i))))
		}

		turns, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, turns, 4)
		// Only the most recent two exchanges survive.
		assert.Equal(t, "q3", turns[0].Text())
		assert.Equal(t, "a4", turns[3].Text())
	})

	t.Run("length never exceeds cap across many saves", func(t *testing.T) {
		store := New(newFakeKV(), 6, time.Hour, log.NewNop())

		for i := 0; i < 50; i++ {
			require.NoError(t, store.Append(ctx, "s1", userTurn("q"), modelTurn("a")))
			turns, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			assert.LessOrEqual(t, len(turns), 6)
		}
	})

	t.Run("ttl is refreshed on every save", func(t *testing.T) {
		kv := newFakeKV()
		store := New(kv, 20, 7*24*time.Hour, log.NewNop())

		require.NoError(t, store.Append(ctx, "s1", userTurn("hi")))
		assert.Equal(t, 7*24*time.Hour, kv.ttls["chat_history_s1"])
	})

	t.Run("appending nothing is a no-op", func(t *testing.T) {
		kv := newFakeKV()
		store := New(kv, 20, time.Hour, log.NewNop())

		require.NoError(t, store.Append(ctx, "s1"))
		assert.Empty(t, kv.data)
	})

	t.Run("non-text parts survive the round trip", func(t *testing.T) {
		store := New(newFakeKV(), 20, time.Hour, log.NewNop())

		turn := gemini.Content{Role: gemini.RoleUser, Parts: []gemini.Part{
			{Text: "look at this"},
			{InlineData: &gemini.InlineData{MimeType: "image/png", Data: "aWJtcA=="}},
		}}
		require.NoError(t, store.Append(ctx, "s1", turn))

		turns, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, turns, 1)
		require.Len(t, turns[0].Parts, 2)
		require.NotNil(t, turns[0].Parts[1].InlineData)
		assert.Equal(t, "image/png", turns[0].Parts[1].InlineData.MimeType)
	})
}

func TestClear(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the record", func(t *testing.T) {
		store := New(newFakeKV(), 20, time.Hour, log.NewNop())

		require.NoError(t, store.Append(ctx, "s1", userTurn("hi")))
		require.NoError(t, store.Clear(ctx, "s1"))

		turns, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("idempotent on absent session", func(t *testing.T) {
		store := New(newFakeKV(), 20, time.Hour, log.NewNop())
		assert.NoError(t, store.Clear(ctx, "never-existed"))
	})
}

func TestSessionIsolation(t *testing.T) {
	ctx := context.Background()
	store := New(newFakeKV(), 20, time.Hour, log.NewNop())

	require.NoError(t, store.Append(ctx, "a", userTurn("for a")))
	require.NoError(t, store.Append(ctx, "b", userTurn("for b")))

	turnsA, err := store.Load(ctx, "a")
	require.NoError(t, err)
	turnsB, err := store.Load(ctx, "b")
	require.NoError(t, err)

	require.Len(t, turnsA, 1)
	require.Len(t, turnsB, 1)
	assert.Equal(t, "for a", turnsA[0].Text())
	assert.Equal(t, "for b", turnsB[0].Text())
}
