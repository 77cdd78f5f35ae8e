// Package airtable provides a record store backed by the Airtable REST API.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"kornews/internal/config"
	"kornews/internal/logger"
	"kornews/internal/store"
)

// Airtable errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrAPIError             = errors.New("airtable error")
	ErrNoRecordID           = errors.New("no record id in create response")
)

// pageSize is the largest page the list endpoint serves.
const pageSize = 100

// Ensure Client implements store.Store.
var _ store.Store = (*Client)(nil)

// Client talks to one Airtable table.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	tableURL   string
	apiKey     string
}

type listResponse struct {
	Offset  string      `json:"offset"`
	Records []apiRecord `json:"records"`
}

type apiRecord struct {
	Fields map[string]any `json:"fields"`
	ID     string         `json:"id"`
}

type createRequest struct {
	Fields   map[string]any `json:"fields"`
	Typecast bool           `json:"typecast"`
}

// errorResponse covers both {"error": "NOT_FOUND"} and
// {"error": {"type": "...", "message": "..."}}.
type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewClient creates a client for the configured base and table.
func NewClient(cfg config.AirtableConfig, apiKey string, log *logger.Logger) *Client {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		limiter:  rate.NewLimiter(limit, 1),
		logger:   log,
		tableURL: strings.TrimSuffix(cfg.Endpoint, "/") + "/" + url.PathEscape(cfg.BaseID) + "/" + url.PathEscape(cfg.TableID),
		apiKey:   apiKey,
	}
}

// Ping lists a single record to confirm credentials and table access.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("pageSize", "1")

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, q, nil, &resp); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	return nil
}

// Project lists every record with only fieldID returned, following offsets.
func (c *Client) Project(ctx context.Context, fieldID string) ([]store.Record, error) {
	q := url.Values{}
	q.Set("fields[]", fieldID)

	return c.list(ctx, q)
}

// FindByField lists records whose fieldID equals value.
func (c *Client) FindByField(ctx context.Context, fieldID, value string) ([]store.Record, error) {
	q := url.Values{}
	q.Set("filterByFormula", EqualsFormula(fieldID, value))

	return c.list(ctx, q)
}

// Create writes one record with typecast enabled.
func (c *Client) Create(ctx context.Context, fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", store.ErrEmptyFieldMap
	}

	var rec apiRecord
	if err := c.do(ctx, http.MethodPost, nil, createRequest{Fields: fields, Typecast: true}, &rec); err != nil {
		return "", fmt.Errorf("create failed: %w", err)
	}

	if rec.ID == "" {
		return "", ErrNoRecordID
	}

	return rec.ID, nil
}

func (c *Client) list(ctx context.Context, q url.Values) ([]store.Record, error) {
	q.Set("returnFieldsByFieldId", "true")
	q.Set("pageSize", strconv.Itoa(pageSize))

	var out []store.Record

	for page := 1; ; page++ {
		var resp listResponse
		if err := c.do(ctx, http.MethodGet, q, nil, &resp); err != nil {
			return nil, fmt.Errorf("list page %d failed: %w", page, err)
		}

		for _, r := range resp.Records {
			out = append(out, store.Record{ID: r.ID, Fields: r.Fields})
		}

		c.logger.Debug("Listed Airtable page", "page", page, "records", len(resp.Records))

		if resp.Offset == "" {
			return out, nil
		}

		q.Set("offset", resp.Offset)
	}
}

func (c *Client) do(ctx context.Context, method string, query url.Values, payload, target any) (err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.tableURL
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body := io.Reader(http.NoBody)

	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrRequest, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	// Limit response size to 10MB
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", store.ErrRequest, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Airtable request failed", "method", method, "status", resp.StatusCode, "body", string(respBody))

		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatusCode, resp.StatusCode, apiErrorMessage(respBody))
	}

	if err := json.Unmarshal(respBody, target); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

func apiErrorMessage(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Error) == 0 {
		return strings.TrimSpace(string(body))
	}

	var code string
	if err := json.Unmarshal(resp.Error, &code); err == nil {
		return fmt.Sprintf("%v: %s", ErrAPIError, code)
	}

	var detail errorDetail
	if err := json.Unmarshal(resp.Error, &detail); err == nil {
		return fmt.Sprintf("%v: %s: %s", ErrAPIError, detail.Type, detail.Message)
	}

	return string(resp.Error)
}

// EqualsFormula builds a filterByFormula expression matching fieldID exactly.
func EqualsFormula(fieldID, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)

	return fmt.Sprintf(`{%s}="%s"`, fieldID, escaped)
}
