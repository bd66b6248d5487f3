package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yuchingtsai/chatpad/internal/log"
)

const (
	// maxResponseSize caps how much of an upstream body is read (10 MB).
	maxResponseSize = 10 << 20

	// defaultTimeout bounds a single upstream round-trip when the caller
	// supplies no client of its own.
	defaultTimeout = 60 * time.Second
)

// APIError is a non-2xx upstream reply. Handlers pass StatusCode and
// Message through to the caller unchanged.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// errorEnvelope is the upstream error body shape.
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Client posts generateContent requests. The zero value is not usable;
// use NewClient.
type Client struct {
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a Client. httpClient may be nil, in which case a
// client with a 60 s timeout is used.
func NewClient(httpClient *http.Client, logger log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// Generate posts req to endpoint authenticated with apiKey and decodes the
// reply. On success it returns the decoded response plus the raw body; a
// non-2xx status comes back as *APIError. No retries: a failure here is
// terminal for the request (the outer boundary owns deadlines via ctx).
func (c *Client) Generate(ctx context.Context, endpoint, apiKey string, req *GenerateRequest) (*GenerateResponse, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("model request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("read model response: %w", err)
	}

	c.logger.Debug("model round-trip",
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: body}
		var env errorEnvelope
		if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, nil, apiErr
	}

	var out GenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, nil, fmt.Errorf("malformed model response: %w", err)
	}
	return &out, body, nil
}
