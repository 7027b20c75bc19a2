package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalys/internal/domain"
	"kalys/internal/vectorstore"
)

func rec(id, source string, v ...float32) domain.IndexRecord {
	return domain.IndexRecord{ID: id, Vector: v, Metadata: domain.Metadata{Source: source, Text: id}}
}

func newIndex(t *testing.T) *Storage {
	t.Helper()
	s := NewStorage()
	require.NoError(t, s.Reset(context.Background(), vectorstore.Spec{Name: "test", Dimension: 2, Metric: "cosine"}))
	return s
}

func TestQueryOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	s := newIndex(t)
	n, err := s.Upsert(ctx, []domain.IndexRecord{
		rec("a", "family.pdf", 1, 0),
		rec("b", "land.pdf", 0.9, 0.1),
		rec("c", "family.pdf", 0, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.Query(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)

	got, err = s.Query(ctx, []float32{1, 0}, 5, &vectorstore.Filter{Sources: []string{"family.pdf"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, "family.pdf", m.Metadata.Source)
	}

	got, err = s.Query(ctx, []float32{1, 0}, 5, &vectorstore.Filter{Sources: []string{"missing.pdf"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertReplacesAndResetClears(t *testing.T) {
	ctx := context.Background()
	s := newIndex(t)
	_, err := s.Upsert(ctx, []domain.IndexRecord{rec("a", "x.pdf", 1, 0)})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, []domain.IndexRecord{rec("a", "y.pdf", 0, 1)})
	require.NoError(t, err)

	n, _ := s.Count(ctx)
	assert.Equal(t, int64(1), n)
	got, err := s.Query(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "y.pdf", got[0].Metadata.Source)

	require.NoError(t, s.Reset(ctx, vectorstore.Spec{Name: "test", Dimension: 2}))
	n, _ = s.Count(ctx)
	assert.Zero(t, n)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	s := newIndex(t)
	_, err := s.Upsert(context.Background(), []domain.IndexRecord{rec("a", "x.pdf", 1, 0, 0)})
	assert.Error(t, err)
	n, _ := s.Count(context.Background())
	assert.Zero(t, n)
}

func TestQueryBeforeReset(t *testing.T) {
	_, err := NewStorage().Query(context.Background(), []float32{1}, 1, nil)
	assert.Error(t, err)
}
