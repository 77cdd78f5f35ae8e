// Package store defines the record store the harvester writes articles to.
//
// A store is a remote key-field table. Records are addressed by an opaque id
// and carry a map of field identifier to value. The harvester needs three
// things from it: project one field over every record, find records whose
// field equals a value, and create one record. There are no transactions and
// writes may become visible to queries with a delay.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store errors.
var (
	ErrEmptyFieldMap = errors.New("record has no fields")
	ErrRequest       = errors.New("store request failed")
)

// Record is one stored row.
type Record struct {
	Fields map[string]any
	ID     string
}

// String returns the named field as a trimmed string. It reports false when the
// field is missing, not a string, or blank.
func (r Record) String(fieldID string) (string, bool) {
	v, ok := r.Fields[fieldID]
	if !ok || v == nil {
		return "", false
	}

	var s string

	switch t := v.(type) {
	case string:
		s = t
	case *string:
		if t == nil {
			return "", false
		}

		s = *t
	case fmt.Stringer:
		s = t.String()
	default:
		return "", false
	}

	s = strings.TrimSpace(s)

	return s, s != ""
}

// Store is the record store contract.
type Store interface {
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	// Project returns every record with only fieldID populated.
	Project(ctx context.Context, fieldID string) ([]Record, error)
	// FindByField returns the records whose fieldID equals value exactly.
	FindByField(ctx context.Context, fieldID, value string) ([]Record, error)
	// Create writes one record and returns its id.
	Create(ctx context.Context, fields map[string]any) (string, error)
}
