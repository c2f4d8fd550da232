// Package fieldapi pulls harvest submissions from the remote data-collection
// platform, page by page.
package fieldapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/errors"
	"github.com/oliveyard/harvest-go/internal/ingest"
	"github.com/oliveyard/harvest-go/internal/logging"
)

const tokenCacheKey = "session-token"

// Client is a paged reader for the field data API. The session token lives
// in an injected TTL cache rather than a package global, so expiry is
// controllable in tests and invalidation is explicit.
type Client struct {
	settings conf.FieldAPISettings
	client   *http.Client
	tokens   *cache.Cache
	log      *slog.Logger
}

// NewClient creates a field API client from settings.
func NewClient(settings conf.FieldAPISettings) *Client {
	ttl := settings.TokenTTL
	if ttl <= 0 {
		ttl = 55 * time.Minute
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		settings: settings,
		client:   &http.Client{Timeout: timeout},
		tokens:   cache.New(ttl, 10*time.Minute),
		log:      logging.ForService("fieldapi"),
	}
}

// SetHTTPClient replaces the HTTP client. Intended for tests.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.client = client
}

// InvalidateToken drops the cached session token, forcing re-authentication
// on the next request.
func (c *Client) InvalidateToken() {
	c.tokens.Delete(tokenCacheKey)
}

// token exchanges the configured API token for a session token, consulting
// the TTL cache first.
func (c *Client) token(ctx context.Context) (string, error) {
	if cached, found := c.tokens.Get(tokenCacheKey); found {
		return cached.(string), nil
	}

	endpoint, err := url.JoinPath(c.settings.BaseURL, "token")
	if err != nil {
		return "", fmt.Errorf("building token URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.settings.APIToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.New(fmt.Errorf("requesting session token: %w", err)).
			Component("fieldapi").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("token request returned status %d", resp.StatusCode).
			Component("fieldapi").
			Category(errors.CategoryHTTP).
			Build()
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.Token == "" {
		return "", errors.Newf("token response is empty").
			Component("fieldapi").
			Category(errors.CategoryFieldAPI).
			Build()
	}

	c.tokens.SetDefault(tokenCacheKey, payload.Token)
	return payload.Token, nil
}

// submissionPage is one page of the submissions listing.
type submissionPage struct {
	Count   int             `json:"count"`
	Results []ingest.APIRow `json:"results"`
}

// FetchSubmissions pulls every page of submissions for the configured form.
func (c *Client) FetchSubmissions(ctx context.Context) ([]ingest.RawRow, error) {
	pageSize := c.settings.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var rows []ingest.RawRow
	for start := 0; ; start += pageSize {
		page, err := c.fetchPage(ctx, start, pageSize)
		if err != nil {
			return nil, err
		}
		for i := range page.Results {
			rows = append(rows, &page.Results[i])
		}
		if len(page.Results) < pageSize || start+pageSize >= page.Count {
			break
		}
	}

	if c.log != nil {
		c.log.Info("fetched submissions", "form", c.settings.FormID, "rows", len(rows))
	}
	return rows, nil
}

// fetchPage retrieves one page of submissions.
func (c *Client) fetchPage(ctx context.Context, start, limit int) (*submissionPage, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint, err := url.JoinPath(c.settings.BaseURL, "assets", c.settings.FormID, "data")
	if err != nil {
		return nil, fmt.Errorf("building submissions URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building submissions request: %w", err)
	}
	q := req.URL.Query()
	q.Set("start", strconv.Itoa(start))
	q.Set("limit", strconv.Itoa(limit))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.New(fmt.Errorf("fetching submissions page: %w", err)).
			Component("fieldapi").
			Category(errors.CategoryNetwork).
			Context("start", start).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Stale token: drop it so the next call re-authenticates
		c.InvalidateToken()
		return nil, errors.Newf("submissions request unauthorized, token invalidated").
			Component("fieldapi").
			Category(errors.CategoryFieldAPI).
			Build()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("submissions request returned status %d", resp.StatusCode).
			Component("fieldapi").
			Category(errors.CategoryHTTP).
			Context("start", start).
			Build()
	}

	var page submissionPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding submissions page: %w", err)
	}
	return &page, nil
}
