package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Folken2/ag-ui-research/internal/session"
)

// exaBaseURL is the production Exa API endpoint.
const exaBaseURL = "https://api.exa.ai"

// snippetLimit caps per-source snippet text carried into prompts and history.
const snippetLimit = 400

// ExaClient calls the Exa search API. It implements both SearchProvider and
// AnswerProvider.
type ExaClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Exa free-tier rate limits are strict; pace requests client-side
	// instead of burning retries on 429s.
	limiter *rate.Limiter
}

// ExaOption configures an ExaClient.
type ExaOption func(*ExaClient)

// WithExaBaseURL overrides the API endpoint (tests).
func WithExaBaseURL(u string) ExaOption {
	return func(c *ExaClient) { c.baseURL = u }
}

// WithExaHTTPClient overrides the HTTP client.
func WithExaHTTPClient(hc *http.Client) ExaOption {
	return func(c *ExaClient) { c.httpClient = hc }
}

// NewExaClient creates a client for the given API key.
func NewExaClient(apiKey string, opts ...ExaOption) *ExaClient {
	c := &ExaClient{
		apiKey:     apiKey,
		baseURL:    exaBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second/5), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type exaSearchRequest struct {
	Query      string           `json:"query"`
	NumResults int              `json:"numResults"`
	Type       string           `json:"type"`
	Contents   *exaContentsSpec `json:"contents,omitempty"`
}

type exaContentsSpec struct {
	Text bool `json:"text"`
}

type exaSearchResponse struct {
	Results []exaResult `json:"results"`
}

type exaResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Image string `json:"image"`
	Text  string `json:"text"`
}

// Search implements SearchProvider via Exa's /search endpoint with page
// contents included.
func (c *ExaClient) Search(ctx context.Context, query string, numResults int) ([]session.Source, error) {
	var resp exaSearchResponse
	err := c.post(ctx, "/search", exaSearchRequest{
		Query:      query,
		NumResults: numResults,
		Type:       "auto",
		Contents:   &exaContentsSpec{Text: true},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("exa search: %w", err)
	}

	sources := make([]session.Source, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		sources = append(sources, session.Source{
			URL:      r.URL,
			Title:    r.Title,
			ImageURL: r.Image,
			Snippet:  truncate(r.Text, snippetLimit),
		})
	}
	return sources, nil
}

type exaAnswerRequest struct {
	Query string `json:"query"`
	Text  bool   `json:"text"`
}

type exaAnswerResponse struct {
	Answer    string `json:"answer"`
	Citations []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"citations"`
}

// Answer implements AnswerProvider via Exa's /answer endpoint.
func (c *ExaClient) Answer(ctx context.Context, query string) (string, []string, error) {
	var resp exaAnswerResponse
	err := c.post(ctx, "/answer", exaAnswerRequest{Query: query, Text: true}, &resp)
	if err != nil {
		return "", nil, fmt.Errorf("exa answer: %w", err)
	}

	citations := make([]string, 0, len(resp.Citations))
	for _, cite := range resp.Citations {
		if cite.URL != "" {
			citations = append(citations, cite.URL)
		}
	}
	return resp.Answer, citations, nil
}

func (c *ExaClient) post(ctx context.Context, path string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
