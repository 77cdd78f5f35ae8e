package translate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"kornews/internal/config"
	"kornews/internal/logger"
	"kornews/internal/models"
)

// Enricher fills the translated fields of an article.
type Enricher interface {
	Enrich(ctx context.Context, a *models.Article)
}

// Noop leaves articles untouched.
type Noop struct{}

// Enrich does nothing.
func (Noop) Enrich(context.Context, *models.Article) {}

// FieldEnricher translates title, category and summary independently.
type FieldEnricher struct {
	service Service
	logger  *logger.Logger
	source  string
	target  string
}

// NewEnricher creates an enricher translating from source to target.
func NewEnricher(service Service, source, target string, log *logger.Logger) *FieldEnricher {
	return &FieldEnricher{
		service: service,
		logger:  log,
		source:  source,
		target:  target,
	}
}

// FromConfig returns a Google backed enricher, or Noop when translation is disabled.
func FromConfig(cfg config.TranslationConfig, log *logger.Logger) Enricher {
	if !cfg.Enabled {
		return Noop{}
	}

	return NewEnricher(NewGoogleClient(cfg, log), cfg.SourceLang, cfg.TargetLang, log)
}

// Enrich translates every present text field concurrently. A failed field
// stays nil and is logged; the others are unaffected.
func (e *FieldEnricher) Enrich(ctx context.Context, a *models.Article) {
	var g errgroup.Group

	title := a.Title
	g.Go(func() error {
		a.TitleTranslated = e.field(ctx, a, config.FieldTitle, &title)

		return nil
	})

	if a.Category != nil {
		g.Go(func() error {
			a.CategoryTranslated = e.field(ctx, a, config.FieldCategory, a.Category)

			return nil
		})
	}

	if a.Summary != nil {
		g.Go(func() error {
			a.SummaryTranslated = e.field(ctx, a, config.FieldSummary, a.Summary)

			return nil
		})
	}

	_ = g.Wait()
}

func (e *FieldEnricher) field(ctx context.Context, a *models.Article, name string, text *string) *string {
	if text == nil || *text == "" {
		return nil
	}

	out, err := e.service.Translate(ctx, *text, e.source, e.target)
	if err != nil {
		e.logger.Warn("Translation failed", "identity", a.Identity(), "field", name, "error", err)

		return nil
	}

	return &out
}
