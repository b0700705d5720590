// Package crossref queries the Crossref works API to find a DOI and
// publication year for a citation known only by title.
package crossref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the public Crossref REST API.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 20 * time.Second

	// DefaultPacing spaces successive lookups to respect the API's
	// implicit rate expectations for anonymous clients.
	DefaultPacing = 120 * time.Millisecond
)

// Lookup errors. Callers performing best-effort enrichment are expected
// to swallow all of them.
var (
	// ErrNoMatch indicates the query returned no candidate works.
	ErrNoMatch = errors.New("no crossref match")

	// ErrInvalidResponse indicates the API answered with something
	// other than the expected JSON shape.
	ErrInvalidResponse = errors.New("invalid crossref response")
)

// Match is the best candidate work for a bibliographic query.
type Match struct {
	DOI  string
	Year string // 4-digit year derived from the issued date, "" if absent
}

// Client is a rate-limited Crossref API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithPacing sets the minimum spacing between lookups.
func WithPacing(d time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewClient creates a Crossref API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    BaseURL,
		limiter:    rate.NewLimiter(rate.Every(DefaultPacing), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// worksResponse mirrors the parts of the /works payload we consume.
type worksResponse struct {
	Message struct {
		Items []struct {
			DOI    string `json:"DOI"`
			Issued struct {
				DateParts [][]int `json:"date-parts"`
			} `json:"issued"`
		} `json:"items"`
	} `json:"message"`
}

// BestMatch queries /works for the single most relevant work matching
// the given title. Returns ErrNoMatch when nothing was found.
func (c *Client) BestMatch(ctx context.Context, title string) (*Match, error) {
	if title == "" {
		return nil, ErrNoMatch
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("query.bibliographic", title)
	q.Set("rows", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/works?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying crossref: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}

	var works worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&works); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if len(works.Message.Items) == 0 {
		return nil, ErrNoMatch
	}

	item := works.Message.Items[0]
	match := &Match{DOI: item.DOI}
	if dp := item.Issued.DateParts; len(dp) > 0 && len(dp[0]) > 0 {
		match.Year = strconv.Itoa(dp[0][0])
	}
	return match, nil
}
