// Package uploader writes new articles to the record store exactly once.
package uploader

import (
	"context"
	"errors"
	"fmt"

	"kornews/internal/config"
	"kornews/internal/dedup"
	"kornews/internal/logger"
	"kornews/internal/models"
	"kornews/internal/store"
)

// ErrCreateFailed wraps store write errors.
var ErrCreateFailed = errors.New("create failed")

// Outcome is the result kind of one upload.
type Outcome int

// Upload outcomes.
const (
	Uploaded Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Uploaded:
		return "uploaded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result describes what happened to one article.
type Result struct {
	Err      error
	Identity string
	RecordID string
	Outcome  Outcome
}

// Uploader creates a store record for an article unless one already exists.
type Uploader struct {
	store  store.Store
	dedup  dedup.Deduplicator
	locks  *keyLock
	logger *logger.Logger
	fields map[string]string
}

// NewUploader creates an uploader writing through fields, the semantic name to
// store field identifier map.
func NewUploader(s store.Store, d dedup.Deduplicator, fields map[string]string, log *logger.Logger) *Uploader {
	return &Uploader{
		store:  s,
		dedup:  d,
		locks:  newKeyLock(),
		logger: log,
		fields: fields,
	}
}

// Upload re-checks the identity and creates the record if it is still new.
// The re-check and create run under a per-identity lock. Nothing is retried.
func (u *Uploader) Upload(ctx context.Context, a *models.Article) Result {
	identity := a.Identity()
	res := Result{Identity: identity}

	unlock := u.locks.Lock(identity)
	defer unlock()

	isNew, err := u.dedup.IsNew(ctx, identity)
	if err != nil {
		res.Outcome = Failed
		res.Err = err
		u.logger.Error("Duplicate check failed", "identity", identity, "error", err)

		return res
	}

	if !isNew {
		res.Outcome = Skipped
		u.logger.Debug("Skipping duplicate", "identity", identity)

		return res
	}

	id, err := u.store.Create(ctx, u.FieldMap(a))
	if err != nil {
		res.Outcome = Failed
		res.Err = fmt.Errorf("%w: %w", ErrCreateFailed, err)
		u.logger.Error("Upload failed", "identity", identity, "error", err)

		return res
	}

	u.dedup.MarkUploaded(identity)

	res.Outcome = Uploaded
	res.RecordID = id
	u.logger.Info("Uploaded article", "identity", identity, "record_id", id, "title", a.Title)

	return res
}

// FieldMap maps an article to store field identifiers. Absent optional fields are omitted.
func (u *Uploader) FieldMap(a *models.Article) map[string]any {
	out := map[string]any{}

	u.set(out, config.FieldURL, a.Identity())
	u.set(out, config.FieldTitle, a.Title)
	u.setOptional(out, config.FieldCategory, a.Category)
	u.setOptional(out, config.FieldSummary, a.Summary)
	u.setOptional(out, config.FieldImageURL, a.ImageURL)
	u.setOptional(out, config.FieldTitleTranslated, a.TitleTranslated)
	u.setOptional(out, config.FieldCategoryTranslated, a.CategoryTranslated)
	u.setOptional(out, config.FieldSummaryTranslated, a.SummaryTranslated)

	if a.PublishedDate != nil {
		u.set(out, config.FieldDate, a.PublishedDate.String())
	}

	return out
}

func (u *Uploader) set(out map[string]any, name, value string) {
	if id := u.fields[name]; id != "" {
		out[id] = value
	}
}

func (u *Uploader) setOptional(out map[string]any, name string, value *string) {
	if value != nil {
		u.set(out, name, *value)
	}
}
