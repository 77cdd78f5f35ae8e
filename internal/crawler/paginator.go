package crawler

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/PuerkitoBio/goquery"

	"kornews/internal/logger"
)

// Fetcher retrieves one document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// Page is the outcome of fetching and extracting one search result page.
type Page struct {
	Err        error
	URL        string
	Candidates []Candidate
	Dropped    []Drop
	Number     int
	StatusCode int
}

// Paginator walks search result pages 1..maxPages.
type Paginator struct {
	fetcher   Fetcher
	extractor *Extractor
	urls      *URLManager
	logger    *logger.Logger
	sleep     func(context.Context, time.Duration) error
	delay     time.Duration
}

// NewPaginator creates a paginator that waits delay between page fetches.
func NewPaginator(fetcher Fetcher, extractor *Extractor, urls *URLManager, delay time.Duration, log *logger.Logger) *Paginator {
	return &Paginator{
		fetcher:   fetcher,
		extractor: extractor,
		urls:      urls,
		logger:    log,
		sleep:     sleepContext,
		delay:     delay,
	}
}

// Pages lazily fetches and extracts pages 1..maxPages. A page that fails to
// fetch or parse is yielded with Err set and iteration continues.
// Each walk starts a fresh attempt log.
func (p *Paginator) Pages(ctx context.Context, keyword string, maxPages int) iter.Seq[Page] {
	return func(yield func(Page) bool) {
		p.urls.reset()

		for n := 1; n <= maxPages; n++ {
			if n > 1 {
				if err := p.sleep(ctx, p.delay); err != nil {
					return
				}
			}

			if ctx.Err() != nil {
				return
			}

			if !yield(p.fetchPage(ctx, keyword, n)) {
				return
			}
		}
	}
}

// Attempts returns the fetch log of the latest walk.
func (p *Paginator) Attempts() []AttemptResult {
	return p.urls.Attempts()
}

// FailedPages returns the pages of the latest walk that could not be fetched or parsed.
func (p *Paginator) FailedPages() []int {
	return p.urls.FailedPages()
}

func (p *Paginator) fetchPage(ctx context.Context, keyword string, n int) Page {
	pageURL := p.urls.SearchURL(keyword, n)
	page := Page{Number: n, URL: pageURL}

	res, err := p.fetcher.Fetch(ctx, pageURL)
	if res != nil {
		page.StatusCode = res.StatusCode
	}

	if err != nil {
		p.urls.RecordAttempt(n, pageURL, res, err)
		page.Err = fmt.Errorf("page %d: %w", n, err)
		p.logger.Warn("Skipping page", "page", n, "url", pageURL, "status", page.StatusCode, "error", err)

		return page
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	p.urls.RecordAttempt(n, pageURL, res, err)

	if err != nil {
		page.Err = fmt.Errorf("page %d: failed to parse HTML: %w", n, err)
		p.logger.Warn("Skipping page", "page", n, "url", pageURL, "error", err)

		return page
	}

	page.Candidates, page.Dropped = p.extractor.ExtractPage(doc)
	p.logger.Info("Fetched page", "page", n, "candidates", len(page.Candidates), "dropped", len(page.Dropped), "duration", res.Duration)

	return page
}
