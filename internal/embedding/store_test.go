package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostops/concierge/internal/domain"
)

// fakeEmbedder maps known texts to fixed 3-dim vectors so similarity is
// fully controlled by the test.
type fakeEmbedder struct {
	vectors map[string][]float64
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0, 0}, nil
}

type memEmbeddingRepo struct {
	rows []domain.AnswerEmbedding
}

func (r *memEmbeddingRepo) Insert(ctx context.Context, e *domain.AnswerEmbedding) error {
	r.rows = append(r.rows, *e)
	return nil
}

func (r *memEmbeddingRepo) Candidates(ctx context.Context, propertyCode string, limit int) ([]domain.AnswerEmbedding, error) {
	out := make([]domain.AnswerEmbedding, len(r.rows))
	copy(out, r.rows)
	return out, nil
}

func strPtr(s string) *string { return &s }

func seededStore(t *testing.T) (*Store, *memEmbeddingRepo) {
	t.Helper()
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"checkin time?":     {1, 0, 0},
		"what time checkin": {0.99, 0.14, 0}, // close to the query
		"parking?":          {0, 1, 0},       // orthogonal
		"late checkout":     {0.9, 0.43, 0},  // moderately close
	}}
	repo := &memEmbeddingRepo{}
	store := NewStore(emb, repo, 3)

	ctx := context.Background()
	require.NoError(t, store.StoreApproved(ctx, "what time checkin", "Check-in opens at 14:00.", strPtr("GONG-101"), false, nil))
	require.NoError(t, store.StoreApproved(ctx, "parking?", "Street parking only.", strPtr("GONG-101"), false, nil))
	require.NoError(t, store.StoreApproved(ctx, "late checkout", "Until noon when the calendar allows.", strPtr("MAPO-7"), true, nil))
	return store, repo
}

func TestStoreApproved_NormalizesVectors(t *testing.T) {
	_, repo := seededStore(t)
	for _, row := range repo.rows {
		var sum float64
		for _, x := range row.Embedding {
			sum += x * x
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "stored vectors must be unit length")
	}
}

func TestSearch_OrdersBySimilarityAndDropsBelowThreshold(t *testing.T) {
	store, _ := seededStore(t)

	matches, err := store.Search(context.Background(), "checkin time?", "", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 2, "orthogonal match must be dropped")
	assert.Equal(t, "Check-in opens at 14:00.", matches[0].AnswerText)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestSearch_SamePropertyBoost(t *testing.T) {
	store, _ := seededStore(t)

	// From MAPO-7's point of view the strongest raw match belongs to
	// GONG-101; the boost must not overturn a clearly better similarity,
	// but it must rank MAPO-7 above an equal cross-property score.
	matches, err := store.Search(context.Background(), "checkin time?", "MAPO-7", 5, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "Check-in opens at 14:00.", matches[0].AnswerText,
		"a much closer cross-property answer still wins")

	for _, m := range matches {
		if m.PropertyCode != nil && *m.PropertyCode == "MAPO-7" {
			assert.True(t, m.WasEdited)
		}
	}
}

func TestSearch_LimitsToK(t *testing.T) {
	store, _ := seededStore(t)
	matches, err := store.Search(context.Background(), "checkin time?", "", 1, 0.1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFewShotBlock(t *testing.T) {
	store, _ := seededStore(t)

	block, err := store.FewShotBlock(context.Background(), "checkin time?", "GONG-101", 2)
	require.NoError(t, err)
	assert.Contains(t, block, "Guest asked: what time checkin")
	assert.Contains(t, block, "Answer: Check-in opens at 14:00.")
}

func TestFewShotBlock_EmptyWhenNothingClears(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{"q": {0, 0, 1}}}
	repo := &memEmbeddingRepo{}
	store := NewStore(emb, repo, 3)

	block, err := store.FewShotBlock(context.Background(), "q", "", 3)
	require.NoError(t, err)
	assert.Empty(t, block)
}

func TestEmbed_RejectsWrongDimension(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{"q": {1, 0}}}
	store := NewStore(emb, &memEmbeddingRepo{}, 3)

	_, err := store.Embed(context.Background(), "q")
	assert.Error(t, err)
}
