// Package notify maintains the operator's work queue: staff-review and
// staff-alert notifications raised by the pipeline, with best-effort email
// paging for the highest severity.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hostops/concierge/internal/domain"
)

// ErrNotFound is returned for an unknown or already-closed notification.
var ErrNotFound = errors.New("staff notification not found or already done")

// Repository is the persistence contract for staff notifications.
type Repository interface {
	Create(ctx context.Context, n *domain.StaffNotification) error
	List(ctx context.Context, openOnly bool, limit int) ([]domain.StaffNotification, error)
	// MarkDone transitions open→done exactly once.
	MarkDone(ctx context.Context, id, by string) error
}

// AlertMailer pages the on-call operator. Delivery is best-effort; the
// notification row is the durable record.
type AlertMailer interface {
	SendAlert(ctx context.Context, subject, body string) error
}

// Service raises and resolves staff notifications.
type Service struct {
	repo   Repository
	mailer AlertMailer // nil disables paging
}

// NewService wires the notification service. mailer may be nil.
func NewService(repo Repository, mailer AlertMailer) *Service {
	return &Service{repo: repo, mailer: mailer}
}

// Raise files one notification for a message the pipeline escalated.
// Severity 2 additionally emails the operator; a mail failure only logs.
func (s *Service) Raise(ctx context.Context, m *domain.Message, decision domain.ActionDecision) (*domain.StaffNotification, error) {
	kind := domain.NotifyStaffReview
	if decision.Action == domain.ActionStaffAlert {
		kind = domain.NotifyStaffAlert
	}

	title := fmt.Sprintf("%s: %s", kind, m.Subject)
	n := &domain.StaffNotification{
		ID:           uuid.New().String(),
		MessageID:    &m.ID,
		PropertyCode: m.PropertyCode,
		Kind:         kind,
		Severity:     decision.EscalationLevel,
		Title:        title,
		Body:         fmt.Sprintf("%s\n\nGuest wrote:\n%s", decision.Reason, m.GuestSegment),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("raise notification: %w", err)
	}

	if decision.EscalationLevel >= domain.EscalationAlert && s.mailer != nil {
		if err := s.mailer.SendAlert(ctx, title, n.Body); err != nil {
			log.Printf("[Notify] alert mail failed for %s: %v", n.ID, err)
		}
	}
	return n, nil
}

// List returns notifications, open ones only when openOnly is set.
func (s *Service) List(ctx context.Context, openOnly bool, limit int) ([]domain.StaffNotification, error) {
	return s.repo.List(ctx, openOnly, limit)
}

// MarkDone closes a notification. Resolution policy beyond "who and when"
// belongs to the operator UI.
func (s *Service) MarkDone(ctx context.Context, id, by string) error {
	if by == "" {
		by = "operator"
	}
	return s.repo.MarkDone(ctx, id, by)
}
