// Package translate enriches articles with machine translations of their text fields.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"kornews/internal/config"
	"kornews/internal/logger"
)

// Translation errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrMalformedResponse    = errors.New("malformed translation response")
	ErrEmptyTranslation     = errors.New("empty translation")
	ErrEmptyText            = errors.New("nothing to translate")
)

// Service translates text between two languages.
type Service interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Ensure GoogleClient implements Service.
var _ Service = (*GoogleClient)(nil)

// GoogleClient calls the public Google web translation endpoint.
type GoogleClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	endpoint   string
}

// NewGoogleClient creates a client throttled to cfg.RequestsPerSecond.
func NewGoogleClient(cfg config.TranslationConfig, log *logger.Logger) *GoogleClient {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &GoogleClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		limiter:  rate.NewLimiter(limit, 1),
		logger:   log,
		endpoint: cfg.Endpoint,
	}
}

// Translate returns text translated from source to target.
func (c *GoogleClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	return parseResponse(body)
}

// parseResponse joins the translated segments of a response shaped like
// [[["translated", "original", ...], ...], ...].
func parseResponse(body []byte) (string, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil || len(top) == 0 {
		return "", ErrMalformedResponse
	}

	var segments [][]any
	if err := json.Unmarshal(top[0], &segments); err != nil {
		return "", ErrMalformedResponse
	}

	var sb strings.Builder

	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}

		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyTranslation
	}

	return out, nil
}
