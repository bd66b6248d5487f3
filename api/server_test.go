package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yuchingtsai/chatpad/internal/chat"
	"github.com/yuchingtsai/chatpad/internal/config"
	"github.com/yuchingtsai/chatpad/internal/gemini"
	"github.com/yuchingtsai/chatpad/internal/log"
	"github.com/yuchingtsai/chatpad/internal/settings"
)

const testCookieSecret = "0123456789abcdef0123456789abcdef"

// fakeSettings is an in-memory SettingsSource.
type fakeSettings struct {
	current settings.Settings
	loadErr error
	saveErr error
}

func (f *fakeSettings) Load(context.Context) (settings.Settings, error) {
	if f.loadErr != nil {
		return settings.Settings{}, f.loadErr
	}
	return f.current, nil
}

func (f *fakeSettings) Save(_ context.Context, s settings.Settings) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.current = s
	return nil
}

// fakeHistory is an in-memory HistoryStore.
type fakeHistory struct {
	turns     map[string][]gemini.Content
	loadErr   error
	appendErr error
	clearErr  error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{turns: make(map[string][]gemini.Content)}
}

func (f *fakeHistory) Load(_ context.Context, sessionID string) ([]gemini.Content, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.turns[sessionID], nil
}

func (f *fakeHistory) Append(_ context.Context, sessionID string, turns ...gemini.Content) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns[sessionID] = append(f.turns[sessionID], turns...)
	return nil
}

func (f *fakeHistory) Clear(_ context.Context, sessionID string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.turns, sessionID)
	return nil
}

// fakeCompleter replays a canned result and records what it was asked.
type fakeCompleter struct {
	result   *chat.Result
	err      error
	requests []*gemini.GenerateRequest
}

func (f *fakeCompleter) Complete(_ context.Context, _ settings.Settings, req *gemini.GenerateRequest) (*chat.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func textResult(text string) *chat.Result {
	resp := &gemini.GenerateResponse{Candidates: []gemini.Candidate{{
		Content: &gemini.Content{Role: gemini.RoleModel, Parts: []gemini.Part{{Text: text}}},
	}}}
	raw, _ := json.Marshal(resp)
	return &chat.Result{Response: resp, Raw: raw, Text: text}
}

type fixture struct {
	source    *fakeSettings
	history   *fakeHistory
	completer *fakeCompleter
	cfg       *config.Config
	handler   http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		source:    &fakeSettings{current: settings.Defaults()},
		history:   newFakeHistory(),
		completer: &fakeCompleter{result: textResult("hello")},
		cfg: &config.Config{
			ListenAddr:   config.DefaultListenAddr,
			AdminUser:    "admin",
			AdminPass:    "hunter2hunter2",
			CookieSecret: testCookieSecret,
			HistoryCap:   config.DefaultHistoryCap,
			HistoryTTL:   config.DefaultHistoryTTL,
			ContextTurns: config.DefaultContextTurns,
		},
	}
	srv := NewServer(f.cfg, nil, f.source, f.history, f.completer, log.NewNop())
	f.handler = srv.Handler()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestServerRouting(t *testing.T) {
	f := newFixture()

	t.Run("unknown path is 404", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong method is 405", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/chat", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

		rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/config", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("liveness is always 200", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("readiness without a pool is 503", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func jsonBody(t *testing.T, v any) *strings.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return strings.NewReader(string(raw))
}
