package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostops/concierge/internal/domain"
)

// Repository is the persistence contract for answer embeddings.
type Repository interface {
	// Insert stores one approved pair. Rows are immutable after insert.
	Insert(ctx context.Context, e *domain.AnswerEmbedding) error
	// Candidates returns recent rows for the similarity scan, same-property
	// rows first when propertyCode is non-empty.
	Candidates(ctx context.Context, propertyCode string, limit int) ([]domain.AnswerEmbedding, error)
}

// Default retrieval tuning. Cross-property answers still rank, but a
// same-property answer of equal similarity always wins.
const (
	DefaultMinSimilarity = 0.78
	samePropertyBoost    = 0.05
	candidateCap         = 500
)

// Match is one retrieved prior answer.
type Match struct {
	GuestText    string  `json:"guest_text"`
	AnswerText   string  `json:"answer_text"`
	Similarity   float64 `json:"similarity"`
	PropertyCode *string `json:"property_code"`
	WasEdited    bool    `json:"was_edited"`
}

// Store combines the embedder with the repository. All vectors are
// L2-normalized before they are stored or compared, so the dot product is
// the cosine similarity.
type Store struct {
	embedder Embedder
	repo     Repository
	dim      int
}

// NewStore wires a store. dim is the provider's fixed vector dimension.
func NewStore(embedder Embedder, repo Repository, dim int) *Store {
	return &Store{embedder: embedder, repo: repo, dim: dim}
}

// Embed delegates to the provider.
func (s *Store) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if s.dim > 0 && len(vec) != s.dim {
		return nil, fmt.Errorf("embedding: provider returned dim %d, want %d", len(vec), s.dim)
	}
	return vec, nil
}

// StoreApproved inserts one operator-approved answer pair. Called only
// after approval; never from the draft path.
func (s *Store) StoreApproved(ctx context.Context, guest, answer string, propertyCode *string, wasEdited bool, threadRef *string) error {
	vec, err := s.Embed(ctx, guest)
	if err != nil {
		return fmt.Errorf("embed approved answer: %w", err)
	}

	e := &domain.AnswerEmbedding{
		ID:           uuid.New().String(),
		GuestText:    guest,
		AnswerText:   answer,
		Embedding:    normalize(vec),
		PropertyCode: propertyCode,
		WasEdited:    wasEdited,
		ThreadRef:    threadRef,
		CreatedAt:    time.Now().UTC(),
	}
	return s.repo.Insert(ctx, e)
}

// Search returns the k nearest prior answers at or above minSimilarity,
// ordered by boosted similarity descending.
func (s *Store) Search(ctx context.Context, queryText, propertyCode string, k int, minSimilarity float64) ([]Match, error) {
	if k <= 0 {
		k = 3
	}

	queryVec, err := s.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVec = normalize(queryVec)

	candidates, err := s.repo.Candidates(ctx, propertyCode, candidateCap)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, c := range candidates {
		sim := dot(queryVec, c.Embedding)
		if sim < minSimilarity {
			continue
		}
		ranked := sim
		if propertyCode != "" && c.PropertyCode != nil && *c.PropertyCode == propertyCode {
			ranked += samePropertyBoost
		}
		matches = append(matches, Match{
			GuestText:    c.GuestText,
			AnswerText:   c.AnswerText,
			Similarity:   ranked,
			PropertyCode: c.PropertyCode,
			WasEdited:    c.WasEdited,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// FewShotBlock composes a prompt fragment from the top-k retrieved pairs,
// or "" when nothing clears the threshold.
func (s *Store) FewShotBlock(ctx context.Context, queryText, propertyCode string, k int) (string, error) {
	matches, err := s.Search(ctx, queryText, propertyCode, k, DefaultMinSimilarity)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Past answers the operator approved for similar questions:\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "\nExample %d:\nGuest asked: %s\nAnswer: %s\n", i+1, m.GuestText, m.AnswerText)
	}
	return b.String(), nil
}

// normalize scales v to unit length. The zero vector stays zero.
func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

// dot assumes both sides are normalized; mismatched lengths score zero.
func dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
