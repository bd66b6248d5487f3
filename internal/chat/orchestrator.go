package chat

import (
	"context"

	"github.com/yuchingtsai/chatpad/internal/gemini"
	"github.com/yuchingtsai/chatpad/internal/log"
	"github.com/yuchingtsai/chatpad/internal/search"
	"github.com/yuchingtsai/chatpad/internal/settings"
)

// Tool names declared to the model.
const (
	ToolSearchImage = "search_image"
	ToolSearchWeb   = "search_web"
)

// notFoundResult is the definite "nothing found" tool payload. The model
// must receive an answer to every call it makes, or it will repeat the
// call instead of producing text.
func notFoundResult() map[string]any {
	return map[string]any{"result": "not found"}
}

// toolDeclarations describes the search tools on the wire.
func toolDeclarations() []gemini.Tool {
	queryParam := func(desc string) *gemini.Schema {
		return &gemini.Schema{
			Type: "object",
			Properties: map[string]*gemini.Schema{
				"query": {Type: "string", Description: desc},
			},
			Required: []string{"query"},
		}
	}

	return []gemini.Tool{{
		FunctionDeclarations: []gemini.FunctionDeclaration{
			{
				Name:        ToolSearchImage,
				Description: "Search the web for an image. Returns the URL of the best match.",
				Parameters:  queryParam("What to find an image of"),
			},
			{
				Name:        ToolSearchWeb,
				Description: "Search the web for current information. Returns a few results with title, snippet and source URL.",
				Parameters:  queryParam("The search query"),
			},
		},
	}}
}

// Searcher is the external search capability the orchestrator dispatches
// to. *search.Adapter satisfies it.
type Searcher interface {
	SearchImage(ctx context.Context, creds search.Credentials, query string) string
	SearchWeb(ctx context.Context, creds search.Credentials, query string) []search.WebResult
}

// ModelClient submits assembled requests upstream. *gemini.Client
// satisfies it.
type ModelClient interface {
	Generate(ctx context.Context, endpoint, apiKey string, req *gemini.GenerateRequest) (*gemini.GenerateResponse, []byte, error)
}

// Result is the terminal outcome of one orchestrated chat turn. Raw holds
// the upstream body of the final model response for verbatim echoing.
type Result struct {
	Response *gemini.GenerateResponse
	Raw      []byte
	Text     string
	// ToolCalled names the resolved tool, "" when the model answered
	// directly.
	ToolCalled string
}

// Orchestrator drives the two-round tool-calling protocol.
type Orchestrator struct {
	model    ModelClient
	searcher Searcher
	logger   log.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(model ModelClient, searcher Searcher, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{model: model, searcher: searcher, logger: logger}
}

// Complete runs req against the model configured in s and resolves at most
// one tool call.
//
// Round one submits the request with the tool schemas attached. A plain
// text reply ends orchestration. A function-call reply is dispatched to
// the search adapter, and the model is re-invoked with the original
// context plus its own call and a synthetic tool-result turn. The second
// reply is final either way: if the model calls a tool again it is not
// resolved further, and the caller still gets a terminal result rather
// than a raw directive.
func (o *Orchestrator) Complete(ctx context.Context, s settings.Settings, req *gemini.GenerateRequest) (*Result, error) {
	temp := s.Temperature
	req.Tools = toolDeclarations()
	req.GenerationConfig = &gemini.GenerationConfig{Temperature: &temp}

	resp, raw, err := o.model.Generate(ctx, s.APIUrl, s.APIKey, req)
	if err != nil {
		return nil, err
	}

	fc := resp.FunctionCall()
	if fc == nil {
		return &Result{Response: resp, Raw: raw, Text: resp.Text()}, nil
	}

	o.logger.Info("model requested tool call", "tool", fc.Name)
	payload := o.dispatch(ctx, s, fc)

	second := &gemini.GenerateRequest{
		Contents: append(append([]gemini.Content{}, req.Contents...),
			*resp.First(),
			gemini.Content{
				Role: gemini.RoleUser,
				Parts: []gemini.Part{{
					FunctionResponse: &gemini.FunctionResponse{Name: fc.Name, Response: payload},
				}},
			},
		),
		SystemInstruction: req.SystemInstruction,
		Tools:             req.Tools,
		GenerationConfig:  req.GenerationConfig,
	}

	resp2, raw2, err := o.model.Generate(ctx, s.APIUrl, s.APIKey, second)
	if err != nil {
		return nil, err
	}
	if again := resp2.FunctionCall(); again != nil {
		// One resolution round only; an unresolved repeat is final output.
		o.logger.Warn("model requested a second tool call, not resolving", "tool", again.Name)
	}

	return &Result{Response: resp2, Raw: raw2, Text: resp2.Text(), ToolCalled: fc.Name}, nil
}

// dispatch executes the named tool and normalizes its outcome into a
// definite payload. Unknown tools and empty results collapse to the
// not-found sentinel.
func (o *Orchestrator) dispatch(ctx context.Context, s settings.Settings, fc *gemini.FunctionCall) map[string]any {
	query, _ := fc.Args["query"].(string)
	creds := search.Credentials{APIKey: s.SearchAPIKey, EngineID: s.SearchEngineID}

	switch fc.Name {
	case ToolSearchImage:
		if url := o.searcher.SearchImage(ctx, creds, query); url != "" {
			return map[string]any{"url": url}
		}
	case ToolSearchWeb:
		if results := o.searcher.SearchWeb(ctx, creds, query); len(results) > 0 {
			return map[string]any{"results": results}
		}
	default:
		o.logger.Warn("model called an undeclared tool", "tool", fc.Name)
	}
	return notFoundResult()
}
