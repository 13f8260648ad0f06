package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aischolar/scholar/internal/config"
)

// APIVersion is sent on every request; the Zotero API is versioned via
// header rather than path.
const APIVersion = "3"

const (
	defaultPageSize = 100
	requestTimeout  = 30 * time.Second
	maxResponseSize = 32 * 1024 * 1024
)

// Client is a Zotero Web API client scoped to one user library.
type Client struct {
	baseURL  string
	apiKey   string
	userID   string
	pageSize int
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a Zotero client from configuration.
func NewClient(cfg config.ZoteroConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("zotero API key is required")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("zotero user ID is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		userID:   cfg.UserID,
		pageSize: pageSize,
		http:     &http.Client{Timeout: requestTimeout},
		logger:   logger.With("component", "zotero"),
	}, nil
}

// ItemsPage is one page of library items plus the library version the
// server reported.
type ItemsPage struct {
	Items          []Item
	TotalResults   int
	LibraryVersion int
}

// Items fetches all items modified since the given library version
// (0 fetches everything), following start/limit pagination.
func (c *Client) Items(ctx context.Context, since int) (ItemsPage, error) {
	var page ItemsPage
	start := 0

	for {
		params := url.Values{}
		params.Set("format", "json")
		params.Set("limit", strconv.Itoa(c.pageSize))
		params.Set("start", strconv.Itoa(start))
		if since > 0 {
			params.Set("since", strconv.Itoa(since))
		}

		items, total, version, err := c.itemsPage(ctx, params)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, items...)
		page.TotalResults = total
		if version > page.LibraryVersion {
			page.LibraryVersion = version
		}

		start += len(items)
		if len(items) == 0 || start >= total {
			break
		}
	}

	c.logger.Debug("zotero items fetched",
		"count", len(page.Items), "since", since, "library_version", page.LibraryVersion)
	return page, nil
}

// itemsPage performs one GET /users/{id}/items request.
func (c *Client) itemsPage(ctx context.Context, params url.Values) (items []Item, total, version int, err error) {
	endpoint := fmt.Sprintf("%s/users/%s/items?%s", c.baseURL, c.userID, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("building zotero request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Zotero-API-Version", APIVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("zotero request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading zotero response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, 0, fmt.Errorf("zotero API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, &items); err != nil {
		return nil, 0, 0, fmt.Errorf("parsing zotero items: %w", err)
	}
	total, _ = strconv.Atoi(resp.Header.Get("Total-Results"))
	if total == 0 {
		total = len(items)
	}
	version, _ = strconv.Atoi(resp.Header.Get("Last-Modified-Version"))
	return items, total, version, nil
}
