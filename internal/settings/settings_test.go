package settings

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchingtsai/chatpad/internal/kvstore"
	"github.com/yuchingtsai/chatpad/internal/log"
)

// fakeKV is a map-backed KV for unit tests.
type fakeKV struct {
	data map[string][]byte
	err  error // returned by every call when set
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
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

func (f *fakeKV) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	return nil
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("missing record degrades to defaults", func(t *testing.T) {
		acc := New(newFakeKV(), log.NewNop())

		got, err := acc.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, Defaults(), got)
	})

	t.Run("corrupt record degrades to defaults", func(t *testing.T) {
		kv := newFakeKV()
		kv.data[Key] = []byte(`{not json`)
		acc := New(kv, log.NewNop())

		got, err := acc.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, Defaults(), got)
	})

	t.Run("store unavailable propagates", func(t *testing.T) {
		kv := newFakeKV()
		kv.err = kvstore.ErrUnavailable
		acc := New(kv, log.NewNop())

		_, err := acc.Load(ctx)
		assert.ErrorIs(t, err, kvstore.ErrUnavailable)
	})

	t.Run("stored record wins over defaults field by field", func(t *testing.T) {
		kv := newFakeKV()
		kv.data[Key] = []byte(`{"welcomeMessage":"Hi","temperature":0.3}`)
		acc := New(kv, log.NewNop())

		got, err := acc.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Hi", got.WelcomeMessage)
		assert.Equal(t, 0.3, got.Temperature)
		// Unspecified fields fall back to defaults.
		assert.Equal(t, Defaults().ModelName, got.ModelName)
	})

	t.Run("out-of-range stored temperature is clamped on load", func(t *testing.T) {
		kv := newFakeKV()
		kv.data[Key] = []byte(`{"temperature":3.5}`)
		acc := New(kv, log.NewNop())

		got, err := acc.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, MaxTemperature, got.Temperature)
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	acc := New(newFakeKV(), log.NewNop())

	want := Settings{
		APIUrl:         "https://example.com/v1/models/gemini-pro:generateContent",
		APIKey:         "k-123",
		ModelName:      "gemini-pro",
		Temperature:    0.4,
		SystemPrompt:   "You are terse.",
		Title:          "Helpdesk",
		WelcomeMessage: "Hello!",
		SearchAPIKey:   "s-456",
		SearchEngineID: "cx-789",
	}
	require.NoError(t, acc.Save(ctx, want))

	got, err := acc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestApply(t *testing.T) {
	strptr := func(s string) *string { return &s }

	t.Run("nil fields keep existing values", func(t *testing.T) {
		base := Defaults()
		base.Title = "Keep me"

		got := base.Apply(Patch{WelcomeMessage: strptr("New welcome")})
		assert.Equal(t, "Keep me", got.Title)
		assert.Equal(t, "New welcome", got.WelcomeMessage)
	})

	t.Run("all recognized fields are applied", func(t *testing.T) {
		got := Defaults().Apply(Patch{
			APIUrl:         strptr("https://example.com/generate"),
			APIKey:         strptr("key"),
			ModelName:      strptr("gemini-pro"),
			Temperature:    json.RawMessage(`0.2`),
			SystemPrompt:   strptr("persona"),
			Title:          strptr("title"),
			WelcomeMessage: strptr("welcome"),
			SearchAPIKey:   strptr("sk"),
			SearchEngineID: strptr("cx"),
		})
		assert.Equal(t, "https://example.com/generate", got.APIUrl)
		assert.Equal(t, "key", got.APIKey)
		assert.Equal(t, "gemini-pro", got.ModelName)
		assert.Equal(t, 0.2, got.Temperature)
		assert.Equal(t, "persona", got.SystemPrompt)
		assert.Equal(t, "title", got.Title)
		assert.Equal(t, "welcome", got.WelcomeMessage)
		assert.Equal(t, "sk", got.SearchAPIKey)
		assert.Equal(t, "cx", got.SearchEngineID)
	})

	t.Run("temperature absent defaults", func(t *testing.T) {
		base := Defaults()
		base.Temperature = 0.1
		got := base.Apply(Patch{})
		assert.Equal(t, DefaultTemperature, got.Temperature)
	})

	t.Run("temperature non-numeric defaults", func(t *testing.T) {
		got := Defaults().Apply(Patch{Temperature: json.RawMessage(`"hot"`)})
		assert.Equal(t, DefaultTemperature, got.Temperature)
	})

	t.Run("temperature clamped to range", func(t *testing.T) {
		got := Defaults().Apply(Patch{Temperature: json.RawMessage(`1.8`)})
		assert.Equal(t, MaxTemperature, got.Temperature)

		got = Defaults().Apply(Patch{Temperature: json.RawMessage(`-0.5`)})
		assert.Equal(t, MinTemperature, got.Temperature)
	})
}

func TestClampTemperature(t *testing.T) {
	nan := func() float64 {
		var z float64
		return z / z
	}()

	assert.Equal(t, 0.5, ClampTemperature(0.5))
	assert.Equal(t, MinTemperature, ClampTemperature(-1))
	assert.Equal(t, MaxTemperature, ClampTemperature(2))
	assert.Equal(t, DefaultTemperature, ClampTemperature(nan))
}

func TestPublic(t *testing.T) {
	s := Defaults()
	s.APIKey = "secret"
	s.Title = "Helpdesk"
	s.WelcomeMessage = "Hi"

	pub := s.Public()
	assert.Equal(t, Public{Title: "Helpdesk", WelcomeMessage: "Hi"}, pub)

	// A marshaled public view must never contain credentials.
	raw, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
}

func TestSaveFailureSurfaces(t *testing.T) {
	kv := newFakeKV()
	kv.err = errors.Join(kvstore.ErrUnavailable)
	acc := New(kv, log.NewNop())

	err := acc.Save(context.Background(), Defaults())
	assert.ErrorIs(t, err, kvstore.ErrUnavailable)
}
