package store

import (
	"context"
)

// DryRun reads through to an underlying store and keeps writes in memory.
type DryRun struct {
	Store

	writes *Memory
}

// NewDryRun wraps s so that Create never reaches it.
func NewDryRun(s Store) *DryRun {
	return &DryRun{Store: s, writes: NewMemory()}
}

// Create records fields locally and returns a synthetic id.
func (d *DryRun) Create(ctx context.Context, fields map[string]any) (string, error) {
	id, err := d.writes.Create(ctx, fields)
	if err != nil {
		return "", err
	}

	return "dry-run-" + id, nil
}

// Writes returns the records that would have been created.
func (d *DryRun) Writes() []Record {
	return d.writes.Records()
}
