package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the arXiv API endpoint.
const DefaultBaseURL = "https://export.arxiv.org/api/query"

// Request bounds. arXiv asks clients to keep bursts small and responses
// are capped server-side anyway.
const (
	defaultMaxResults = 20
	maxMaxResults     = 100
	requestTimeout    = 30 * time.Second
	maxResponseSize   = 32 * 1024 * 1024

	// arXiv asks for no more than one request every three seconds.
	requestInterval = 3 * time.Second
)

// SortBy values accepted by the API.
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortSubmitted SortBy = "submittedDate"
	SortUpdated   SortBy = "lastUpdatedDate"
)

// SearchRequest describes one API query.
type SearchRequest struct {
	Query      string // arXiv query syntax, e.g. `cat:cs.LG AND all:"attention"`
	Start      int
	MaxResults int
	SortBy     SortBy
}

// SearchResult is one page of results.
type SearchResult struct {
	TotalResults int     `json:"total_results"`
	StartIndex   int     `json:"start_index"`
	Papers       []Paper `json:"papers"`
}

// Client talks to the arXiv API, pacing requests to its published
// courtesy rate.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates an arXiv client. baseURL may be empty for the
// public API.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Every(requestInterval), 1),
		logger:  logger.With("component", "arxiv"),
	}
}

// Search runs one query against the API.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if req.Query == "" {
		return SearchResult{}, fmt.Errorf("query is required")
	}
	if req.MaxResults <= 0 {
		req.MaxResults = defaultMaxResults
	}
	if req.MaxResults > maxMaxResults {
		req.MaxResults = maxMaxResults
	}
	if req.SortBy == "" {
		req.SortBy = SortRelevance
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return SearchResult{}, fmt.Errorf("waiting for arxiv rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("search_query", req.Query)
	params.Set("start", strconv.Itoa(req.Start))
	params.Set("max_results", strconv.Itoa(req.MaxResults))
	params.Set("sortBy", string(req.SortBy))
	params.Set("sortOrder", "descending")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return SearchResult{}, fmt.Errorf("building arxiv request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "scholar/1.0")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return SearchResult{}, fmt.Errorf("querying arxiv: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return SearchResult{}, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return SearchResult{}, fmt.Errorf("reading arxiv response: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return SearchResult{}, fmt.Errorf("parsing arxiv feed: %w", err)
	}

	result := SearchResult{
		TotalResults: feed.TotalResults,
		StartIndex:   feed.StartIndex,
		Papers:       make([]Paper, 0, len(feed.Entries)),
	}
	for _, entry := range feed.Entries {
		result.Papers = append(result.Papers, entry.toPaper())
	}

	c.logger.Debug("arxiv search completed",
		"query", req.Query, "returned", len(result.Papers), "total", result.TotalResults)
	return result, nil
}

// Get fetches a single paper by arXiv id (e.g. "2406.01234").
func (c *Client) Get(ctx context.Context, id string) (Paper, error) {
	result, err := c.Search(ctx, SearchRequest{Query: "id:" + id, MaxResults: 1})
	if err != nil {
		return Paper{}, err
	}
	if len(result.Papers) == 0 {
		return Paper{}, fmt.Errorf("arxiv paper %q not found", id)
	}
	return result.Papers[0], nil
}
