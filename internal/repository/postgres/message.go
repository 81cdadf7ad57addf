package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/service/inbox"
)

// MessageRepo implements inbox.Repository against PostgreSQL.
type MessageRepo struct{ db *sql.DB }

// NewMessageRepo creates a Postgres-backed message repository.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

const messageColumns = `
	id, external_id, thread_id, mail_message_id, mail_references,
	received_at, sender, subject,
	COALESCE(body_text,''), COALESCE(body_html,''), COALESCE(guest_segment,''),
	sender_actor, actionability, ota, property_code, listing_id,
	intent, intent_confidence, fine_intent, suggested_action,
	guest_name, checkin_date, checkout_date, reservation_code,
	last_auto_reply_at, created_at, updated_at`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, external_id, thread_id, mail_message_id, mail_references,
			received_at, sender, subject,
			body_text, body_html, guest_segment,
			sender_actor, actionability, ota, property_code, listing_id,
			guest_name, checkin_date, checkout_date, reservation_code,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$21)
	`, m.ID, m.ExternalID, m.ThreadID, m.MailMessageID, m.MailReferences,
		m.ReceivedAt, m.Sender, m.Subject,
		m.BodyText, m.BodyHTML, m.GuestSegment,
		m.SenderActor, m.Actionability, m.OTA, m.PropertyCode, m.ListingID,
		m.GuestName, m.CheckinDate, m.CheckoutDate, m.ReservationCode,
		m.CreatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return inbox.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) Get(ctx context.Context, id string) (*domain.Message, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

func (r *MessageRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.Message, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE external_id = $1`, externalID))
}

func (r *MessageRepo) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM messages WHERE external_id = $1)`, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}
	return exists, nil
}

func (r *MessageRepo) List(ctx context.Context, f inbox.ListFilter) ([]domain.Message, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT ` + messageColumns + ` FROM messages WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.Actionability != "" {
		q += fmt.Sprintf(" AND actionability = $%d", idx)
		args = append(args, f.Actionability)
		idx++
	}
	if f.Actor != "" {
		q += fmt.Sprintf(" AND sender_actor = $%d", idx)
		args = append(args, f.Actor)
		idx++
	}
	if f.PropertyCode != "" {
		q += fmt.Sprintf(" AND property_code = $%d", idx)
		args = append(args, f.PropertyCode)
		idx++
	}
	if f.OTA != "" {
		q += fmt.Sprintf(" AND ota = $%d", idx)
		args = append(args, f.OTA)
		idx++
	}
	if f.NeedsDraft {
		q += " AND last_auto_reply_at IS NULL"
	}
	q += fmt.Sprintf(" ORDER BY received_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SetIntent writes the classifier's verdict. Origin columns are not in the
// statement, so actor/actionability immutability holds by construction.
func (r *MessageRepo) SetIntent(ctx context.Context, id string, intent domain.Intent, confidence float64, fine *string, action domain.ActionType) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET intent = $2, intent_confidence = $3, fine_intent = $4,
		    suggested_action = $5, updated_at = NOW()
		WHERE id = $1
	`, id, intent, confidence, fine, action)
	if err != nil {
		return fmt.Errorf("set intent: %w", err)
	}
	return requireRow(res, inbox.ErrNotFound)
}

func (r *MessageRepo) SetDenormalizedIntent(ctx context.Context, id string, intent domain.Intent) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET intent = $2, updated_at = NOW() WHERE id = $1
	`, id, intent)
	if err != nil {
		return fmt.Errorf("set denormalized intent: %w", err)
	}
	return requireRow(res, inbox.ErrNotFound)
}

// TouchAutoReplyAt only ever advances the timestamp.
func (r *MessageRepo) TouchAutoReplyAt(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET last_auto_reply_at = GREATEST(COALESCE(last_auto_reply_at, 'epoch'::timestamptz), NOW()),
		    updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("touch auto reply at: %w", err)
	}
	return requireRow(res, inbox.ErrNotFound)
}

func (r *MessageRepo) AppendLabel(ctx context.Context, label *domain.IntentLabel) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO intent_labels (id, message_id, intent, source, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, label.ID, label.MessageID, label.Intent, label.Source, label.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

func (r *MessageRepo) LabelHistory(ctx context.Context, messageID string) ([]domain.IntentLabel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, intent, source, created_at
		FROM intent_labels
		WHERE message_id = $1
		ORDER BY created_at ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("label history: %w", err)
	}
	defer rows.Close()

	var out []domain.IntentLabel
	for rows.Next() {
		var l domain.IntentLabel
		if err := rows.Scan(&l.ID, &l.MessageID, &l.Intent, &l.Source, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *MessageRepo) scanOne(row *sql.Row) (*domain.Message, error) {
	m, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, inbox.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepo) scanRow(s rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	err := s.Scan(
		&m.ID, &m.ExternalID, &m.ThreadID, &m.MailMessageID, &m.MailReferences,
		&m.ReceivedAt, &m.Sender, &m.Subject,
		&m.BodyText, &m.BodyHTML, &m.GuestSegment,
		&m.SenderActor, &m.Actionability, &m.OTA, &m.PropertyCode, &m.ListingID,
		&m.Intent, &m.IntentConfidence, &m.FineIntent, &m.SuggestedAction,
		&m.GuestName, &m.CheckinDate, &m.CheckoutDate, &m.ReservationCode,
		&m.LastAutoReplyAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return m, nil
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

var _ inbox.Repository = (*MessageRepo)(nil)
