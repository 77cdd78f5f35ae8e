package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CreateProjectFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Record{ID: "seed", Fields: map[string]any{"url": "https://a/1", "title": "one"}})

	id, err := m.Create(ctx, map[string]any{"url": "https://a/2", "title": "two"})
	require.NoError(t, err)
	assert.Equal(t, "rec2", id)

	projected, err := m.Project(ctx, "url")
	require.NoError(t, err)
	require.Len(t, projected, 2)

	for _, r := range projected {
		assert.Len(t, r.Fields, 1)
	}

	found, err := m.FindByField(ctx, "url", "https://a/2")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "two", found[0].Fields["title"])

	none, err := m.FindByField(ctx, "url", "https://a/3")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Equal(t, 1, m.Creates())
	assert.Equal(t, 3, m.Queries())
}

func TestMemory_CreateRejectsEmptyFieldMap(t *testing.T) {
	_, err := NewMemory().Create(context.Background(), map[string]any{})
	assert.True(t, errors.Is(err, ErrEmptyFieldMap))
}

func TestMemory_CallerCannotMutateStoredFields(t *testing.T) {
	m := NewMemory()
	fields := map[string]any{"url": "https://a/1"}

	_, err := m.Create(context.Background(), fields)
	require.NoError(t, err)

	fields["url"] = "changed"

	assert.Equal(t, "https://a/1", m.Records()[0].Fields["url"])
}

func TestRecord_String(t *testing.T) {
	s := "  https://a/1 "
	var nilPtr *string

	r := Record{ID: "r", Fields: map[string]any{
		"plain":  "https://a/1",
		"ptr":    &s,
		"nilptr": nilPtr,
		"blank":  "   ",
		"number": 42,
		"null":   nil,
	}}

	v, ok := r.String("plain")
	assert.True(t, ok)
	assert.Equal(t, "https://a/1", v)

	v, ok = r.String("ptr")
	assert.True(t, ok)
	assert.Equal(t, "https://a/1", v)

	for _, field := range []string{"nilptr", "blank", "number", "null", "missing"} {
		_, ok := r.String(field)
		assert.False(t, ok, field)
	}
}

func TestDryRun_KeepsWritesLocal(t *testing.T) {
	ctx := context.Background()
	backing := NewMemory(Record{ID: "rec1", Fields: map[string]any{"url": "https://a/1"}})
	d := NewDryRun(backing)

	found, err := d.FindByField(ctx, "url", "https://a/1")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	id, err := d.Create(ctx, map[string]any{"url": "https://a/2"})
	require.NoError(t, err)
	assert.Equal(t, "dry-run-rec1", id)

	assert.Zero(t, backing.Creates())
	require.Len(t, d.Writes(), 1)
	assert.Equal(t, "https://a/2", d.Writes()[0].Fields["url"])
}
