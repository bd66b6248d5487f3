// Package search adapts the Custom Search JSON API for tool calls.
//
// The adapter is deliberately lossy about failures: missing credentials,
// transport errors, non-2xx statuses, and unparsable bodies all normalize
// to "no results". The orchestrator depends on getting a definite answer
// for every dispatched call, so a raw transport error never escapes this
// package.
package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yuchingtsai/chatpad/internal/log"
)

const (
	// DefaultBaseURL is the Custom Search JSON API endpoint.
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"

	// MaxWebResults bounds how many web hits are folded into a tool result.
	MaxWebResults = 3

	// maxResponseSize caps how much of a search body is read (2 MB).
	maxResponseSize = 2 << 20

	defaultTimeout = 15 * time.Second
)

// Credentials are the external-search secrets from the settings record.
type Credentials struct {
	APIKey   string
	EngineID string
}

// Configured reports whether both secrets are present.
func (c Credentials) Configured() bool {
	return c.APIKey != "" && c.EngineID != ""
}

// WebResult is one normalized web search hit.
type WebResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// searchItems is the subset of the API response the adapter reads.
type searchItems struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"items"`
}

// Adapter calls the Custom Search API.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// New creates an Adapter. httpClient may be nil (15 s timeout default);
// baseURL "" selects DefaultBaseURL.
func New(baseURL string, httpClient *http.Client, logger log.Logger) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Adapter{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// SearchImage returns the URL of the first image hit for query, or ""
// when nothing was found (including every failure mode).
func (a *Adapter) SearchImage(ctx context.Context, creds Credentials, query string) string {
	items := a.query(ctx, creds, query, true, 1)
	if len(items.Items) == 0 {
		return ""
	}
	return items.Items[0].Link
}

// SearchWeb returns up to MaxWebResults normalized hits for query.
// A nil slice means nothing was found.
func (a *Adapter) SearchWeb(ctx context.Context, creds Credentials, query string) []WebResult {
	items := a.query(ctx, creds, query, false, MaxWebResults)
	if len(items.Items) == 0 {
		return nil
	}

	results := make([]WebResult, 0, len(items.Items))
	for _, it := range items.Items {
		results = append(results, WebResult{Title: it.Title, Snippet: it.Snippet, URL: it.Link})
		if len(results) == MaxWebResults {
			break
		}
	}
	return results
}

// query performs one API call, absorbing every failure into an empty
// result set.
func (a *Adapter) query(ctx context.Context, creds Credentials, query string, image bool, num int) searchItems {
	var empty searchItems

	if query == "" || !creds.Configured() {
		// No credentials or nothing to ask: skip the network entirely.
		return empty
	}

	params := url.Values{}
	params.Set("key", creds.APIKey)
	params.Set("cx", creds.EngineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	if image {
		params.Set("searchType", "image")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		a.logger.Warn("building search request failed", "error", err)
		return empty
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Warn("search request failed", "error", err)
		return empty
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		a.logger.Warn("search returned non-OK status", "status", resp.StatusCode)
		return empty
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		a.logger.Warn("reading search response failed", "error", err)
		return empty
	}

	var items searchItems
	if err := json.Unmarshal(body, &items); err != nil {
		a.logger.Warn("search response is not valid JSON", "error", err)
		return empty
	}
	return items
}
