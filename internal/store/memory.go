package store

import (
	"context"
	"maps"
	"strconv"
	"sync"
)

// Memory is an in-process Store used for dry runs and tests.
type Memory struct {
	records []Record
	creates int
	queries int
	mu      sync.Mutex
}

// NewMemory creates an empty in-memory store seeded with records.
func NewMemory(seed ...Record) *Memory {
	m := &Memory{}
	for _, r := range seed {
		m.records = append(m.records, Record{ID: r.ID, Fields: maps.Clone(r.Fields)})
	}

	return m
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Project returns every record with only fieldID populated.
func (m *Memory) Project(ctx context.Context, fieldID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries++

	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		fields := map[string]any{}
		if v, ok := r.Fields[fieldID]; ok {
			fields[fieldID] = v
		}

		out = append(out, Record{ID: r.ID, Fields: fields})
	}

	return out, nil
}

// FindByField returns records whose fieldID is the string value.
func (m *Memory) FindByField(ctx context.Context, fieldID, value string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries++

	var out []Record

	for _, r := range m.records {
		if s, ok := r.Fields[fieldID].(string); ok && s == value {
			out = append(out, Record{ID: r.ID, Fields: maps.Clone(r.Fields)})
		}
	}

	return out, nil
}

// Create appends a record.
func (m *Memory) Create(ctx context.Context, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if len(fields) == 0 {
		return "", ErrEmptyFieldMap
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	id := "rec" + strconv.Itoa(len(m.records)+1)
	m.records = append(m.records, Record{ID: id, Fields: maps.Clone(fields)})

	return id, nil
}

// Records returns a copy of the stored records.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, len(m.records))
	for i, r := range m.records {
		out[i] = Record{ID: r.ID, Fields: maps.Clone(r.Fields)}
	}

	return out
}

// Creates returns how many records were created.
func (m *Memory) Creates() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.creates
}

// Queries returns how many Project and FindByField calls were served.
func (m *Memory) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.queries
}
