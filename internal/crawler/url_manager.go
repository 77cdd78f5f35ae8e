package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"kornews/internal/config"
	"kornews/pkg/utils"
)

// URL manager errors.
var (
	ErrEmptyHref       = errors.New("empty href")
	ErrUnresolvableURL = errors.New("href does not resolve to an absolute http(s) URL")
)

// URLManager builds search page URLs, resolves article links against the
// site origin, and keeps a log of page fetch attempts.
type URLManager struct {
	origin     *url.URL
	links      *utils.HTTPHelper
	searchPath string
	attemptLog []AttemptResult
	mu         sync.Mutex
}

// AttemptResult records the result of a page fetch.
type AttemptResult struct {
	Timestamp  time.Time
	URL        string
	Error      string
	Page       int
	Attempts   int
	Duration   time.Duration
	StatusCode int
	Success    bool
}

// NewURLManager creates a new URL manager for the configured site.
func NewURLManager(site config.SiteConfig) (*URLManager, error) {
	origin, err := url.Parse(site.Origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", site.Origin, err)
	}

	searchPath := site.SearchPath
	if !strings.HasPrefix(searchPath, "/") {
		searchPath = "/" + searchPath
	}

	return &URLManager{
		origin:     origin,
		links:      utils.NewHTTPHelper(site.UserAgent),
		searchPath: searchPath,
	}, nil
}

// SearchURL returns {origin}{search_path}?word={keyword}&page={page}.
func (um *URLManager) SearchURL(keyword string, page int) string {
	u := *um.origin
	u.Path = strings.TrimSuffix(u.Path, "/") + um.searchPath
	u.RawQuery = "word=" + url.QueryEscape(keyword) + "&page=" + strconv.Itoa(page)
	u.Fragment = ""

	return u.String()
}

// Resolve turns an href found on a page into an absolute URL.
func (um *URLManager) Resolve(href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", ErrEmptyHref
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrUnresolvableURL, href, err)
	}

	abs := um.origin.ResolveReference(ref).String()
	if !um.links.IsValidURL(abs) {
		return "", fmt.Errorf("%w: %q", ErrUnresolvableURL, href)
	}

	return abs, nil
}

// RecordAttempt logs a page fetch attempt.
func (um *URLManager) RecordAttempt(page int, pageURL string, result *FetchResult, err error) {
	attempt := AttemptResult{
		Timestamp: time.Now(),
		URL:       pageURL,
		Page:      page,
		Success:   err == nil,
	}

	if result != nil {
		attempt.StatusCode = result.StatusCode
		attempt.Duration = result.Duration
		attempt.Attempts = result.Attempts
	}

	if err != nil {
		attempt.Error = err.Error()
	}

	um.mu.Lock()
	defer um.mu.Unlock()

	um.attemptLog = append(um.attemptLog, attempt)
}

// reset clears the attempt log before a new walk over the pages.
func (um *URLManager) reset() {
	um.mu.Lock()
	defer um.mu.Unlock()

	um.attemptLog = nil
}

// Attempts returns a copy of the attempt log.
func (um *URLManager) Attempts() []AttemptResult {
	um.mu.Lock()
	defer um.mu.Unlock()

	out := make([]AttemptResult, len(um.attemptLog))
	copy(out, um.attemptLog)

	return out
}

// FailedPages returns the page numbers whose fetch failed.
func (um *URLManager) FailedPages() []int {
	um.mu.Lock()
	defer um.mu.Unlock()

	var pages []int

	for _, a := range um.attemptLog {
		if !a.Success {
			pages = append(pages, a.Page)
		}
	}

	return pages
}
