// Package grobid talks to a GROBID document-understanding service: it
// ensures an instance is reachable (provisioning one via Docker when
// allowed) and submits PDFs for full-text TEI extraction.
package grobid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the per-call HTTP timeout. Full-document
	// analysis is slow on long PDFs.
	DefaultTimeout = 4 * time.Minute

	// DefaultRetries is the number of additional attempts after a
	// transient failure.
	DefaultRetries = 2

	// DefaultBackoff is the base delay between attempts; the actual
	// delay grows linearly (attempt x backoff).
	DefaultBackoff = 2 * time.Second

	// DefaultPacing is the minimum spacing between successive
	// submissions, to avoid overwhelming the service.
	DefaultPacing = 50 * time.Millisecond

	processPath = "/api/processFulltextDocument"
)

// Client submits documents to a GROBID instance with bounded retry and
// linear backoff on transient failure.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration
	sleep      func(time.Duration) // replaced in tests
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetries sets the number of additional attempts after a transient failure.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		c.retries = n
	}
}

// WithBackoff sets the base backoff delay.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithPacing sets the minimum spacing between submissions.
func WithPacing(d time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewClient creates a client for the GROBID instance at baseURL
// (e.g. http://localhost:8070).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Every(DefaultPacing), 1),
		retries:    DefaultRetries,
		backoff:    DefaultBackoff,
		sleep:      time.Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ProcessFulltext submits one PDF for full-text analysis and returns the
// TEI XML body. Transient failures (500/502/503, network errors) are
// retried up to the configured budget with linear backoff; any other
// error status fails immediately.
func (c *Client) ProcessFulltext(ctx context.Context, pdfPath string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", pdfPath, err)
	}
	name := filepath.Base(pdfPath)

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.sleep(time.Duration(attempt) * c.backoff)
		}

		tei, err := c.post(ctx, name, data)
		if err == nil {
			return tei, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return "", err
		}
	}

	return "", lastErr
}

// post performs a single multipart submission.
func (c *Client) post(ctx context.Context, name string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="input"; filename=%q`, name))
	header.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("building multipart request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("building multipart request: %w", err)
	}
	if err := w.WriteField("consolidateHeader", "1"); err != nil {
		return "", fmt.Errorf("building multipart request: %w", err)
	}
	if err := w.WriteField("consolidateCitations", "1"); err != nil {
		return "", fmt.Errorf("building multipart request: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("building multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPath, &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}

	if classifyStatus(resp.StatusCode) != classSuccess {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	return string(body), nil
}

// truncateBody keeps error bodies short enough for the failure ledger.
func truncateBody(body []byte) string {
	const maxLen = 200
	s := string(bytes.TrimSpace(body))
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
