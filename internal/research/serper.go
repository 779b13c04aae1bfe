package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Folken2/ag-ui-research/internal/session"
)

const serperBaseURL = "https://google.serper.dev"

// SerperClient calls the Serper Google-search API. It is used as the
// supplementary provider: its news results pad out Exa's neural search for
// current-events queries.
type SerperClient struct {
	apiKey     string
	baseURL    string
	endpoint   string
	httpClient *http.Client
}

// SerperOption configures a SerperClient.
type SerperOption func(*SerperClient)

// WithSerperBaseURL overrides the API endpoint (tests).
func WithSerperBaseURL(u string) SerperOption {
	return func(c *SerperClient) { c.baseURL = u }
}

// WithSerperNews switches the client to the news vertical.
func WithSerperNews() SerperOption {
	return func(c *SerperClient) { c.endpoint = "/news" }
}

// NewSerperClient creates a client for the given API key. The default
// endpoint is the organic-search vertical.
func NewSerperClient(apiKey string, opts ...SerperOption) *SerperClient {
	c := &SerperClient{
		apiKey:     apiKey,
		baseURL:    serperBaseURL,
		endpoint:   "/search",
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

type serperEntry struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	ImageURL string `json:"imageUrl"`
}

type serperResponse struct {
	Organic []serperEntry `json:"organic"`
	News    []serperEntry `json:"news"`
}

// Search implements SearchProvider.
func (c *SerperClient) Search(ctx context.Context, query string, numResults int) ([]session.Source, error) {
	body, err := json.Marshal(serperRequest{Query: query, Num: numResults})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serper search: unexpected status %d: %s", resp.StatusCode, msg)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding serper response: %w", err)
	}

	entries := parsed.Organic
	if len(entries) == 0 {
		entries = parsed.News
	}

	sources := make([]session.Source, 0, len(entries))
	for _, e := range entries {
		if e.Link == "" {
			continue
		}
		sources = append(sources, session.Source{
			URL:      e.Link,
			Title:    e.Title,
			ImageURL: e.ImageURL,
			Snippet:  truncate(e.Snippet, snippetLimit),
		})
	}
	return sources, nil
}
