// Package settings owns the admin-editable application record: model
// endpoint and credential, persona prompt, UI text, and external-search
// keys. The record is a single JSON blob in the key-value store under a
// fixed key.
//
// Defaults are centralized here and nowhere else; a missing or corrupt
// stored record degrades to Defaults() for readers instead of failing.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/yuchingtsai/chatpad/internal/kvstore"
	"github.com/yuchingtsai/chatpad/internal/log"
)

// Key is the fixed store key holding the settings record.
const Key = "global_settings"

// Temperature bounds and fallback for the sampling temperature field.
const (
	MinTemperature     = 0.0
	MaxTemperature     = 1.0
	DefaultTemperature = 0.7
)

// KV is the store surface this package needs. *kvstore.Store satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Settings is the admin-editable application record.
// JSON field names are part of the admin API contract.
type Settings struct {
	APIUrl         string  `json:"apiUrl"`
	APIKey         string  `json:"apiKey"`
	ModelName      string  `json:"modelName"`
	Temperature    float64 `json:"temperature"`
	SystemPrompt   string  `json:"systemPrompt"`
	Title          string  `json:"title"`
	WelcomeMessage string  `json:"welcomeMessage"`
	SearchAPIKey   string  `json:"searchApiKey"`
	SearchEngineID string  `json:"searchEngineId"`
}

// Public is the unauthenticated projection of Settings: UI text only,
// never credentials.
type Public struct {
	Title          string `json:"title"`
	WelcomeMessage string `json:"welcomeMessage"`
}

// Defaults returns the fully-populated default record. Every component
// that needs a default settings value must go through here.
func Defaults() Settings {
	return Settings{
		APIUrl:         "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		APIKey:         "",
		ModelName:      "gemini-2.0-flash",
		Temperature:    DefaultTemperature,
		SystemPrompt:   "",
		Title:          "AI Chat",
		WelcomeMessage: "Welcome! Ask me anything.",
		SearchAPIKey:   "",
		SearchEngineID: "",
	}
}

// Public returns the non-sensitive projection of s.
func (s Settings) Public() Public {
	return Public{Title: s.Title, WelcomeMessage: s.WelcomeMessage}
}

// Patch carries a partial settings update: nil fields are left unchanged.
// JSON field names match Settings.
//
// Temperature is kept raw so a non-numeric value degrades to the default
// instead of failing the whole body.
type Patch struct {
	APIUrl         *string         `json:"apiUrl"`
	APIKey         *string         `json:"apiKey"`
	ModelName      *string         `json:"modelName"`
	Temperature    json.RawMessage `json:"temperature"`
	SystemPrompt   *string         `json:"systemPrompt"`
	Title          *string         `json:"title"`
	WelcomeMessage *string         `json:"welcomeMessage"`
	SearchAPIKey   *string         `json:"searchApiKey"`
	SearchEngineID *string         `json:"searchEngineId"`
}

// temperature resolves the patched temperature: clamped when numeric,
// DefaultTemperature when absent or non-numeric.
func (p Patch) temperature() float64 {
	if len(p.Temperature) == 0 {
		return DefaultTemperature
	}
	var v float64
	if err := json.Unmarshal(p.Temperature, &v); err != nil {
		return DefaultTemperature
	}
	return ClampTemperature(v)
}

// Apply merges p into s and returns the result. Temperature is always
// recomputed from the patch per the admin-write contract: clamped to
// [MinTemperature, MaxTemperature], defaulting when absent or non-numeric.
func (s Settings) Apply(p Patch) Settings {
	if p.APIUrl != nil {
		s.APIUrl = *p.APIUrl
	}
	if p.APIKey != nil {
		s.APIKey = *p.APIKey
	}
	if p.ModelName != nil {
		s.ModelName = *p.ModelName
	}
	s.Temperature = p.temperature()
	if p.SystemPrompt != nil {
		s.SystemPrompt = *p.SystemPrompt
	}
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.WelcomeMessage != nil {
		s.WelcomeMessage = *p.WelcomeMessage
	}
	if p.SearchAPIKey != nil {
		s.SearchAPIKey = *p.SearchAPIKey
	}
	if p.SearchEngineID != nil {
		s.SearchEngineID = *p.SearchEngineID
	}
	return s
}

// ClampTemperature forces t into [MinTemperature, MaxTemperature].
// NaN and other non-orderable garbage fall back to DefaultTemperature.
func ClampTemperature(t float64) float64 {
	if t != t { // NaN
		return DefaultTemperature
	}
	if t < MinTemperature {
		return MinTemperature
	}
	if t > MaxTemperature {
		return MaxTemperature
	}
	return t
}

// Accessor reads and writes the settings record.
type Accessor struct {
	kv     KV
	logger log.Logger
}

// New creates an Accessor on the given key-value store.
func New(kv KV, logger log.Logger) *Accessor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Accessor{kv: kv, logger: logger}
}

// Load fetches the settings record.
// An absent key or corrupt JSON degrades silently to Defaults(); only a
// store-unavailable failure is returned as an error.
func (a *Accessor) Load(ctx context.Context) (Settings, error) {
	raw, err := a.kv.Get(ctx, Key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return Defaults(), err
	}

	s := Defaults()
	if err := json.Unmarshal(raw, &s); err != nil {
		a.logger.Warn("stored settings record is corrupt, using defaults", "error", err)
		return Defaults(), nil
	}
	s.Temperature = ClampTemperature(s.Temperature)
	return s, nil
}

// Save serializes and stores the full record verbatim, overwriting the
// previous one (last-writer-wins). Partial updates are a caller concern:
// Load, Apply a Patch, then Save.
func (a *Accessor) Save(ctx context.Context, s Settings) error {
	s.Temperature = ClampTemperature(s.Temperature)
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return a.kv.Put(ctx, Key, raw, 0)
}
