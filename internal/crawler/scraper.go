// Package crawler fetches search result pages and extracts article candidates from them.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kornews/internal/config"
	"kornews/internal/logger"
	"kornews/pkg/utils"
)

// Fetch errors.
var (
	// ErrUnexpectedStatusCode indicates an HTTP response with a non-success status.
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrTransport indicates the request never produced a response.
	ErrTransport = errors.New("transport failure")
)

// FetchResult is one fetched document. Truncated is set when the body was
// cut at the configured size limit.
type FetchResult struct {
	Body       []byte
	StatusCode int
	Duration   time.Duration
	Attempts   int
	Truncated  bool
}

// Scraper handles page fetches with config-driven retry logic for connection failures.
type Scraper struct {
	client      *http.Client
	retryPolicy *config.RetryPolicy
	headers     *utils.HTTPHelper
	logger      *logger.Logger
	maxBodyKb   int
}

// NewScraperWithConfig creates a new scraper with custom retry policy.
func NewScraperWithConfig(retryPolicy *config.RetryPolicy, userAgent string, maxBodyKb int, log *logger.Logger) *Scraper {
	return &Scraper{
		client: &http.Client{
			Timeout: retryPolicy.GetTimeout(),
		},
		retryPolicy: retryPolicy,
		headers:     utils.NewHTTPHelper(userAgent),
		logger:      log,
		maxBodyKb:   maxBodyKb,
	}
}

// Fetch retrieves url. Connection-level failures are retried per the retry policy;
// a non-200 response is returned immediately with ErrUnexpectedStatusCode.
func (s *Scraper) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	result := &FetchResult{}

	var lastErr error

	for attempt := 1; attempt <= s.retryPolicy.MaxAttempts; attempt++ {
		if delay := s.retryPolicy.GetRetryDelay(attempt); delay > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				return result, err
			}
		}

		result.Attempts = attempt
		startTime := time.Now()

		body, status, err := s.do(ctx, url)
		result.Duration += time.Since(startTime)
		result.StatusCode = status

		if err == nil {
			result.Body, result.Truncated = s.capBody(url, body)

			return result, nil
		}

		lastErr = err

		// Only connection-level failures are worth another attempt
		if !errors.Is(err, ErrTransport) || ctx.Err() != nil {
			break
		}
	}

	return result, lastErr
}

func (s *Scraper) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = s.headers.BuildHeaders(nil)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

		return nil, resp.StatusCode, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	// One byte past the limit tells a full body from a cut one
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.bodyLimit()+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: failed to read response body: %w", ErrTransport, err)
	}

	return body, resp.StatusCode, nil
}

func (s *Scraper) bodyLimit() int64 {
	return int64(s.maxBodyKb) * 1024
}

func (s *Scraper) capBody(url string, body []byte) ([]byte, bool) {
	limit := s.bodyLimit()
	if int64(len(body)) <= limit {
		return body, false
	}

	s.logger.Warn("Page body exceeds size limit, parsing truncated document", "url", url, "limit_kb", s.maxBodyKb)

	return body[:limit], true
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
