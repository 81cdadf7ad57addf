package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostops/concierge/internal/autosend"
	"github.com/hostops/concierge/internal/domain"
)

// StatsRepo implements autosend.StatsRepository against PostgreSQL.
// Every read-modify-write runs under a row-level lock so concurrent
// approvals and edits compose correctly.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a Postgres-backed auto-send stats repository.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

func (r *StatsRepo) Get(ctx context.Context, propertyCode, faqKey string) (*domain.AutoSendStats, error) {
	s := &domain.AutoSendStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, property_code, faq_key, total_count, approved_count,
		       edited_count, approval_rate, eligible, updated_at
		FROM auto_send_stats
		WHERE property_code = $1 AND faq_key = $2
	`, propertyCode, faqKey).Scan(
		&s.ID, &s.PropertyCode, &s.FAQKey, &s.TotalCount, &s.ApprovedCount,
		&s.EditedCount, &s.ApprovalRate, &s.Eligible, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, autosend.ErrNoStats
	}
	if err != nil {
		return nil, fmt.Errorf("get auto send stats: %w", err)
	}
	return s, nil
}

// Record increments one (property, key) row atomically: lock the row,
// bump the counters, recompute rate and eligibility, write back. Missing
// rows are created first so the lock always has something to hold.
func (r *StatsRepo) Record(ctx context.Context, propertyCode, faqKey string, approved bool, minTotal int, minRate float64) (*domain.AutoSendStats, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin stats tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO auto_send_stats (id, property_code, faq_key, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (property_code, faq_key) DO NOTHING
	`, uuid.New().String(), propertyCode, faqKey)
	if err != nil {
		return nil, fmt.Errorf("seed stats row: %w", err)
	}

	s := &domain.AutoSendStats{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, property_code, faq_key, total_count, approved_count,
		       edited_count, approval_rate, eligible, updated_at
		FROM auto_send_stats
		WHERE property_code = $1 AND faq_key = $2
		FOR UPDATE
	`, propertyCode, faqKey).Scan(
		&s.ID, &s.PropertyCode, &s.FAQKey, &s.TotalCount, &s.ApprovedCount,
		&s.EditedCount, &s.ApprovalRate, &s.Eligible, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("lock stats row: %w", err)
	}

	s.TotalCount++
	if approved {
		s.ApprovedCount++
	} else {
		s.EditedCount++
	}
	s.Recompute(minTotal, minRate)
	s.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE auto_send_stats
		SET total_count = $3, approved_count = $4, edited_count = $5,
		    approval_rate = $6, eligible = $7, updated_at = $8
		WHERE property_code = $1 AND faq_key = $2
	`, propertyCode, faqKey, s.TotalCount, s.ApprovedCount, s.EditedCount,
		s.ApprovalRate, s.Eligible, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update stats row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit stats tx: %w", err)
	}
	return s, nil
}

var _ autosend.StatsRepository = (*StatsRepo)(nil)
