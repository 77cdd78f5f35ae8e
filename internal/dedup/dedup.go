// Package dedup decides whether an article identity is already in the record store.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kornews/internal/config"
	"kornews/internal/logger"
	"kornews/internal/store"
)

// Dedup errors.
var (
	ErrNotPrepared = errors.New("deduplicator not prepared")
	ErrPreload     = errors.New("failed to preload existing identities")
	ErrQuery       = errors.New("identity query failed")
)

// Deduplicator answers IsNew for article identities.
type Deduplicator interface {
	// Prepare loads or checks whatever the strategy needs before the first IsNew.
	Prepare(ctx context.Context) error
	// IsNew reports whether identity has no record in the store.
	IsNew(ctx context.Context, identity string) (bool, error)
	// MarkUploaded records that identity was created during this run.
	MarkUploaded(identity string)
}

// New returns the deduplicator for the configured mode.
func New(mode string, s store.Store, identityField string, log *logger.Logger) (Deduplicator, error) {
	switch mode {
	case config.DedupBulk:
		return NewBulk(s, identityField, log), nil
	case config.DedupOnline:
		return NewOnline(s, identityField, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidDedupMode, mode)
	}
}

// Bulk preloads every stored identity once and answers from memory.
type Bulk struct {
	store    store.Store
	logger   *logger.Logger
	existing map[string]struct{}
	field    string
	mu       sync.RWMutex
}

// NewBulk creates a bulk deduplicator projecting identityField.
func NewBulk(s store.Store, identityField string, log *logger.Logger) *Bulk {
	return &Bulk{
		store:  s,
		logger: log,
		field:  identityField,
	}
}

// Prepare projects the identity field over all records.
// Records without an identity are logged and excluded.
func (b *Bulk) Prepare(ctx context.Context) error {
	records, err := b.store.Project(ctx, b.field)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPreload, err)
	}

	existing := make(map[string]struct{}, len(records))

	for _, r := range records {
		identity, ok := r.String(b.field)
		if !ok {
			b.logger.Warn("Stored record has no identity", "record_id", r.ID)

			continue
		}

		existing[identity] = struct{}{}
	}

	b.mu.Lock()
	b.existing = existing
	b.mu.Unlock()

	b.logger.Info("Loaded existing identities", "records", len(records), "identities", len(existing))

	return nil
}

// IsNew is a set lookup.
func (b *Bulk) IsNew(_ context.Context, identity string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.existing == nil {
		return false, ErrNotPrepared
	}

	_, found := b.existing[identity]

	return !found, nil
}

// MarkUploaded adds identity to the set.
func (b *Bulk) MarkUploaded(identity string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.existing == nil {
		b.existing = map[string]struct{}{}
	}

	b.existing[identity] = struct{}{}
}

// Len returns the number of known identities.
func (b *Bulk) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.existing)
}

// Online queries the store for each candidate. Identities uploaded in this run
// are kept locally because store reads may lag behind writes.
type Online struct {
	store    store.Store
	logger   *logger.Logger
	uploaded map[string]struct{}
	field    string
	mu       sync.RWMutex
}

// NewOnline creates a per-candidate query deduplicator.
func NewOnline(s store.Store, identityField string, log *logger.Logger) *Online {
	return &Online{
		store:    s,
		logger:   log,
		uploaded: map[string]struct{}{},
		field:    identityField,
	}
}

// Prepare pings the store.
func (o *Online) Prepare(ctx context.Context) error {
	if err := o.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrQuery, err)
	}

	return nil
}

// IsNew issues one equality query unless identity was uploaded in this run.
func (o *Online) IsNew(ctx context.Context, identity string) (bool, error) {
	o.mu.RLock()
	_, done := o.uploaded[identity]
	o.mu.RUnlock()

	if done {
		return false, nil
	}

	records, err := o.store.FindByField(ctx, o.field, identity)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	for _, r := range records {
		if v, ok := r.String(o.field); ok && v == identity {
			return false, nil
		}
	}

	return true, nil
}

// MarkUploaded remembers identity for the rest of the run.
func (o *Online) MarkUploaded(identity string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.uploaded[identity] = struct{}{}
}
