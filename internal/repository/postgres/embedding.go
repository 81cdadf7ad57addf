package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/embedding"
)

// EmbeddingRepo implements embedding.Repository against PostgreSQL.
// Vectors are stored L2-normalized as double precision[]; similarity math
// happens in Go over a bounded candidate set.
type EmbeddingRepo struct{ db *sql.DB }

// NewEmbeddingRepo creates a Postgres-backed answer embedding repository.
func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo { return &EmbeddingRepo{db: db} }

func (r *EmbeddingRepo) Insert(ctx context.Context, e *domain.AnswerEmbedding) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO answer_embeddings (
			id, guest_text, answer_text, embedding, property_code,
			was_edited, thread_ref, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, e.ID, e.GuestText, e.AnswerText, pq.Array(e.Embedding), e.PropertyCode,
		e.WasEdited, e.ThreadRef, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert answer embedding: %w", err)
	}
	return nil
}

// Candidates returns the newest rows for the similarity scan. When a
// property code is given, that property's rows come first so they survive
// the cap.
func (r *EmbeddingRepo) Candidates(ctx context.Context, propertyCode string, limit int) ([]domain.AnswerEmbedding, error) {
	if limit <= 0 {
		limit = 500
	}

	var rows *sql.Rows
	var err error
	if propertyCode != "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, guest_text, answer_text, embedding, property_code,
			       was_edited, thread_ref, created_at
			FROM answer_embeddings
			ORDER BY (property_code = $1) DESC NULLS LAST, created_at DESC
			LIMIT $2
		`, propertyCode, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, guest_text, answer_text, embedding, property_code,
			       was_edited, thread_ref, created_at
			FROM answer_embeddings
			ORDER BY created_at DESC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list embedding candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.AnswerEmbedding
	for rows.Next() {
		var e domain.AnswerEmbedding
		var vec pq.Float64Array
		if err := rows.Scan(&e.ID, &e.GuestText, &e.AnswerText, &vec, &e.PropertyCode,
			&e.WasEdited, &e.ThreadRef, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer embedding: %w", err)
		}
		e.Embedding = []float64(vec)
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ embedding.Repository = (*EmbeddingRepo)(nil)
