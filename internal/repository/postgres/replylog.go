package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hostops/concierge/internal/autoreply"
	"github.com/hostops/concierge/internal/domain"
)

// ReplyLogRepo implements autoreply.LogRepository against PostgreSQL.
type ReplyLogRepo struct{ db *sql.DB }

// NewReplyLogRepo creates a Postgres-backed auto-reply log repository.
func NewReplyLogRepo(db *sql.DB) *ReplyLogRepo { return &ReplyLogRepo{db: db} }

const replyLogColumns = `
	id, message_id, property_code, ota, intent, fine_intent, intent_confidence,
	generation_mode, reply_text, send_mode, faq_keys, allow_auto_send,
	sent, sent_at, edited, edited_text, failure_reason, created_at`

func (r *ReplyLogRepo) Create(ctx context.Context, l *domain.AutoReplyLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auto_reply_logs (
			id, message_id, property_code, ota, intent, fine_intent,
			intent_confidence, generation_mode, reply_text, send_mode,
			faq_keys, allow_auto_send, sent, sent_at, failure_reason, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, l.ID, l.MessageID, l.PropertyCode, l.OTA, l.Intent, l.FineIntent,
		l.IntentConfidence, l.GenerationMode, l.ReplyText, l.SendMode,
		pq.Array(l.FAQKeys), l.AllowAutoSend, l.Sent, l.SentAt, l.FailureReason,
		l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert auto reply log: %w", err)
	}
	return nil
}

func (r *ReplyLogRepo) Get(ctx context.Context, id string) (*domain.AutoReplyLog, error) {
	l, err := scanReplyLog(r.db.QueryRowContext(ctx,
		`SELECT `+replyLogColumns+` FROM auto_reply_logs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, autoreply.ErrLogNotFound
	}
	return l, err
}

// LatestForMessage returns the newest log for a message, or ErrLogNotFound.
func (r *ReplyLogRepo) LatestForMessage(ctx context.Context, messageID string) (*domain.AutoReplyLog, error) {
	l, err := scanReplyLog(r.db.QueryRowContext(ctx, `
		SELECT `+replyLogColumns+` FROM auto_reply_logs
		WHERE message_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, messageID))
	if err == sql.ErrNoRows {
		return nil, autoreply.ErrLogNotFound
	}
	return l, err
}

// List returns recent logs for guest-authored NEEDS_REPLY messages, newest
// first, optionally filtered by property and OTA.
func (r *ReplyLogRepo) List(ctx context.Context, f autoreply.LogFilter) ([]domain.AutoReplyLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT ` + qualifyColumns("l", replyLogColumns) + `
		FROM auto_reply_logs l
		JOIN messages m ON m.id = l.message_id
		WHERE m.sender_actor = 'GUEST' AND m.actionability = 'NEEDS_REPLY'`
	args := []interface{}{}
	idx := 1

	if f.PropertyCode != "" {
		q += fmt.Sprintf(" AND l.property_code = $%d", idx)
		args = append(args, f.PropertyCode)
		idx++
	}
	if f.OTA != "" {
		q += fmt.Sprintf(" AND l.ota = $%d", idx)
		args = append(args, f.OTA)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY l.created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list auto reply logs: %w", err)
	}
	defer rows.Close()

	var out []domain.AutoReplyLog
	for rows.Next() {
		l, err := scanReplyLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// MarkSent transitions sent false→true exactly once.
func (r *ReplyLogRepo) MarkSent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE auto_reply_logs
		SET sent = TRUE, sent_at = NOW(), failure_reason = NULL
		WHERE id = $1 AND sent = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return requireRow(res, autoreply.ErrLogNotFound)
}

// MarkSendFailed records why an autopilot send did not go out.
func (r *ReplyLogRepo) MarkSendFailed(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE auto_reply_logs SET failure_reason = $2 WHERE id = $1 AND sent = FALSE
	`, id, reason)
	if err != nil {
		return fmt.Errorf("mark send failed: %w", err)
	}
	return requireRow(res, autoreply.ErrLogNotFound)
}

// MarkEdited stores the operator's corrected text. Monotone: a log never
// goes back to unedited.
func (r *ReplyLogRepo) MarkEdited(ctx context.Context, id, editedText string) error {
	if editedText == "" {
		return autoreply.ErrEmptyEdit
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE auto_reply_logs SET edited = TRUE, edited_text = $2 WHERE id = $1
	`, id, editedText)
	if err != nil {
		return fmt.Errorf("mark edited: %w", err)
	}
	return requireRow(res, autoreply.ErrLogNotFound)
}

// qualifyColumns prefixes every column in a comma-separated list with a
// table alias, for joined selects.
func qualifyColumns(alias, list string) string {
	parts := strings.Split(list, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanReplyLog(s rowScanner) (*domain.AutoReplyLog, error) {
	l := &domain.AutoReplyLog{}
	var keys pq.StringArray
	err := s.Scan(
		&l.ID, &l.MessageID, &l.PropertyCode, &l.OTA, &l.Intent, &l.FineIntent,
		&l.IntentConfidence, &l.GenerationMode, &l.ReplyText, &l.SendMode,
		&keys, &l.AllowAutoSend, &l.Sent, &l.SentAt, &l.Edited, &l.EditedText,
		&l.FailureReason, &l.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan auto reply log: %w", err)
	}
	l.FAQKeys = []string(keys)
	return l, nil
}

var _ autoreply.LogRepository = (*ReplyLogRepo)(nil)
