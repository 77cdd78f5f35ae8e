// Package pipeline runs one harvest: search pages are crawled in order and every
// candidate is normalized, checked against the store, translated and uploaded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kornews/internal/crawler"
	"kornews/internal/dedup"
	"kornews/internal/logger"
	"kornews/internal/models"
	"kornews/internal/normalizer"
	"kornews/internal/translate"
	"kornews/internal/uploader"
)

// Run-level errors. Either one aborts the run before any article is processed.
var (
	ErrOriginUnreachable = errors.New("origin unreachable")
	ErrStoreUnreachable  = errors.New("record store unreachable")
)

// Status is the final state of one candidate.
type Status int

// Candidate statuses.
const (
	StatusUploaded Status = iota
	StatusSkipped
	StatusFailed
	StatusDropped
)

func (s Status) String() string {
	switch s {
	case StatusUploaded:
		return "uploaded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusDropped:
		return "dropped"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ArticleStatus is reported once per item fragment. Candidates come in page
// order, followed by the fragments the extractor dropped.
type ArticleStatus struct {
	Err      error
	Identity string
	Title    string
	RecordID string
	Page     int
	Status   Status
}

// Stats summarizes a run. Every item fragment found on a page is counted once
// in Fragments and once in exactly one of Uploaded, Skipped, Failed or Dropped.
type Stats struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	RunID       string
	FailedPages []int
	Attempts    []crawler.AttemptResult
	Pages       int
	Fragments   int
	Uploaded    int
	Skipped     int
	Failed      int
	Dropped     int
}

// Duration returns how long the run took.
func (s *Stats) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Stats) add(st ArticleStatus) {
	s.Fragments++

	switch st.Status {
	case StatusUploaded:
		s.Uploaded++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	case StatusDropped:
		s.Dropped++
	}
}

// PageSource yields search result pages and keeps the fetch log of its latest walk.
type PageSource interface {
	Pages(ctx context.Context, keyword string, maxPages int) iter.Seq[crawler.Page]
	Attempts() []crawler.AttemptResult
	FailedPages() []int
}

// Options are the per-run settings.
type Options struct {
	// OnStatus, when set, receives every article status in page order.
	OnStatus    func(ArticleStatus)
	Keyword     string
	DateVariant normalizer.Variant
	MaxPages    int
	Workers     int
}

// Pipeline wires the harvest stages together.
type Pipeline struct {
	pages    PageSource
	dedup    dedup.Deduplicator
	enricher translate.Enricher
	uploader *uploader.Uploader
	logger   *logger.Logger
	opts     Options
}

// New creates a pipeline from its stages.
func New(pages PageSource, d dedup.Deduplicator, enricher translate.Enricher, up *uploader.Uploader, opts Options, log *logger.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &Pipeline{
		pages:    pages,
		dedup:    d,
		enricher: enricher,
		uploader: up,
		logger:   log,
		opts:     opts,
	}
}

// Run harvests pages 1..MaxPages. Failed pages are skipped; the run is aborted
// only when the store cannot be prepared or the origin cannot be reached on the
// first page, or when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	defer func() { stats.FinishedAt = time.Now() }()

	walked := false

	defer func() {
		if walked {
			stats.Attempts = p.pages.Attempts()
			stats.FailedPages = p.pages.FailedPages()
		}
	}()

	log := p.logger.With("run_id", stats.RunID)
	log.Info("Starting harvest", "keyword", p.opts.Keyword, "max_pages", p.opts.MaxPages, "workers", p.opts.Workers)

	if err := p.dedup.Prepare(ctx); err != nil {
		log.Error("Store not reachable", "error", err)

		return stats, fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
	}

	walked = true

	for page := range p.pages.Pages(ctx, p.opts.Keyword, p.opts.MaxPages) {
		stats.Pages++

		if page.Err != nil {
			if stats.Pages == 1 && errors.Is(page.Err, crawler.ErrTransport) {
				log.Error("Origin not reachable", "url", page.URL, "error", page.Err)

				return stats, fmt.Errorf("%w: %w", ErrOriginUnreachable, page.Err)
			}

			continue
		}

		for _, st := range p.processPage(ctx, log, page) {
			p.emit(stats, st)
		}

		for _, d := range page.Dropped {
			p.emit(stats, ArticleStatus{
				Err:      d.Reason,
				Identity: d.Href,
				Title:    d.Title,
				Page:     page.Number,
				Status:   StatusDropped,
			})
		}
	}

	if err := ctx.Err(); err != nil {
		log.Warn("Harvest interrupted", "pages", stats.Pages, "error", err)

		return stats, err
	}

	log.Info("Harvest finished",
		"pages", stats.Pages,
		"failed_pages", p.pages.FailedPages(),
		"fragments", stats.Fragments,
		"uploaded", stats.Uploaded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)

	return stats, nil
}

func (p *Pipeline) emit(stats *Stats, st ArticleStatus) {
	stats.add(st)

	if p.opts.OnStatus != nil {
		p.opts.OnStatus(st)
	}
}

// processPage handles the candidates of one page concurrently and returns
// their statuses in page order.
func (p *Pipeline) processPage(ctx context.Context, log *logger.Logger, page crawler.Page) []ArticleStatus {
	statuses := make([]ArticleStatus, len(page.Candidates))

	var g errgroup.Group

	g.SetLimit(p.opts.Workers)

	for i, c := range page.Candidates {
		g.Go(func() error {
			statuses[i] = p.processCandidate(ctx, log, page.Number, c)

			return nil
		})
	}

	_ = g.Wait()

	return statuses
}

func (p *Pipeline) processCandidate(ctx context.Context, log *logger.Logger, pageNum int, c crawler.Candidate) ArticleStatus {
	st := ArticleStatus{Page: pageNum, Identity: c.Identity, Title: c.Title}

	a, err := p.buildArticle(log, c)
	if err != nil {
		st.Status = StatusDropped
		st.Err = err
		log.Debug("Dropped candidate", "identity", c.Identity, "error", err)

		return st
	}

	// Duplicates are skipped before paying for translation; the uploader re-checks under its lock.
	isNew, err := p.dedup.IsNew(ctx, a.Identity())
	if err != nil {
		st.Status = StatusFailed
		st.Err = err
		log.Error("Duplicate check failed", "identity", a.Identity(), "error", err)

		return st
	}

	if !isNew {
		st.Status = StatusSkipped

		return st
	}

	p.enricher.Enrich(ctx, a)

	res := p.uploader.Upload(ctx, a)
	st.Err = res.Err
	st.RecordID = res.RecordID

	switch res.Outcome {
	case uploader.Uploaded:
		st.Status = StatusUploaded
	case uploader.Skipped:
		st.Status = StatusSkipped
	default:
		st.Status = StatusFailed
	}

	return st
}

func (p *Pipeline) buildArticle(log *logger.Logger, c crawler.Candidate) (*models.Article, error) {
	a, err := models.NewArticle(c.Identity, c.Title)
	if err != nil {
		return nil, err
	}

	a.Category = c.Category
	a.Summary = c.Summary
	a.ImageURL = c.ImageURL

	if c.RawDate == "" {
		return a, nil
	}

	if d, ok := normalizer.Normalize(c.RawDate, p.opts.DateVariant); ok {
		a.PublishedDate = &d
	} else {
		log.Warn("Unparseable date", "identity", c.Identity, "field", "date", "raw", c.RawDate, "variant", p.opts.DateVariant)
	}

	return a, nil
}
