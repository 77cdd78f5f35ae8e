package pipeline

import (
	"context"
	"fmt"

	"kornews/internal/config"
	"kornews/internal/crawler"
	"kornews/internal/dedup"
	"kornews/internal/logger"
	"kornews/internal/normalizer"
	"kornews/internal/store"
	"kornews/internal/store/airtable"
	"kornews/internal/store/postgres"
	"kornews/internal/translate"
	"kornews/internal/uploader"
)

// BuildOptions adjust how Build wires a pipeline.
type BuildOptions struct {
	// Store replaces the configured backend when set.
	Store store.Store
	// Enricher replaces the configured translator when set.
	Enricher translate.Enricher
	OnStatus func(ArticleStatus)
	// MaxPages overrides harvester.site.max_pages when positive.
	MaxPages int
	// DryRun keeps every write in memory.
	DryRun bool
}

// OpenStore connects the configured backend. The returned func releases it.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (store.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemory(), func() {}, nil
	case config.BackendAirtable:
		apiKey, err := config.Secret(cfg.Airtable.APIKeyEnv)
		if err != nil {
			return nil, nil, err
		}

		return airtable.NewClient(cfg.Airtable, apiKey, log), func() {}, nil
	case config.BackendPostgres:
		dsn, err := config.Secret(cfg.Postgres.DSNEnv)
		if err != nil {
			return nil, nil, err
		}

		s, err := postgres.Open(ctx, cfg.Postgres, dsn, log)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
		}

		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
	}
}

// Build wires a pipeline from configuration. The returned func releases the store.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions, log *logger.Logger) (*Pipeline, func(), error) {
	h := cfg.Harvester

	variant, err := normalizer.ParseVariant(h.Site.DateVariant)
	if err != nil {
		return nil, nil, err
	}

	s, closeStore := opts.Store, func() {}
	if s == nil {
		s, closeStore, err = OpenStore(ctx, h.Store, log)
		if err != nil {
			return nil, nil, err
		}
	}

	if opts.DryRun {
		s = store.NewDryRun(s)
	}

	urls, err := crawler.NewURLManager(h.Site)
	if err != nil {
		closeStore()

		return nil, nil, err
	}

	scraper := crawler.NewScraperWithConfig(&h.Retry, h.Site.UserAgent, h.Site.MaxBodyKb, log)
	extractor := crawler.NewExtractor(h.Site.Selectors, urls, log)
	paginator := crawler.NewPaginator(scraper, extractor, urls, h.Site.PageDelay(), log)

	identityField := h.Store.FieldID(config.FieldURL)

	d, err := dedup.New(h.Store.DedupMode, s, identityField, log)
	if err != nil {
		closeStore()

		return nil, nil, err
	}

	enricher := opts.Enricher
	if enricher == nil {
		enricher = translate.FromConfig(h.Translation, log)
	}

	maxPages := h.Site.MaxPages
	if opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}

	p := New(paginator, d, enricher, uploader.NewUploader(s, d, h.Store.Fields, log), Options{
		OnStatus:    opts.OnStatus,
		Keyword:     h.Site.Keyword,
		DateVariant: variant,
		MaxPages:    maxPages,
		Workers:     h.Workers,
	}, log)

	return p, closeStore, nil
}
