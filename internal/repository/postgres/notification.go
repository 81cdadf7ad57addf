package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/notify"
)

// NotificationRepo implements notify.Repository against PostgreSQL.
type NotificationRepo struct{ db *sql.DB }

// NewNotificationRepo creates a Postgres-backed staff notification repository.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

func (r *NotificationRepo) Create(ctx context.Context, n *domain.StaffNotification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO staff_notifications (
			id, message_id, property_code, kind, severity, title, body, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, n.ID, n.MessageID, n.PropertyCode, n.Kind, n.Severity, n.Title, n.Body, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert staff notification: %w", err)
	}
	return nil
}

func (r *NotificationRepo) List(ctx context.Context, openOnly bool, limit int) ([]domain.StaffNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, message_id, property_code, kind, severity, title, body,
		       done, done_by, done_at, created_at
		FROM staff_notifications`
	if openOnly {
		q += ` WHERE done = FALSE`
	}
	q += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list staff notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.StaffNotification
	for rows.Next() {
		var n domain.StaffNotification
		if err := rows.Scan(&n.ID, &n.MessageID, &n.PropertyCode, &n.Kind, &n.Severity,
			&n.Title, &n.Body, &n.Done, &n.DoneBy, &n.DoneAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan staff notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkDone transitions open→done once; a second call is a no-op error.
func (r *NotificationRepo) MarkDone(ctx context.Context, id, by string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE staff_notifications
		SET done = TRUE, done_by = $2, done_at = NOW()
		WHERE id = $1 AND done = FALSE
	`, id, by)
	if err != nil {
		return fmt.Errorf("mark notification done: %w", err)
	}
	return requireRow(res, notify.ErrNotFound)
}

var _ notify.Repository = (*NotificationRepo)(nil)
