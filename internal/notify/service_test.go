package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostops/concierge/internal/domain"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.StaffNotification
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]*domain.StaffNotification)}
}

func (r *memRepo) Create(_ context.Context, n *domain.StaffNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.rows[n.ID] = &cp
	return nil
}

func (r *memRepo) List(_ context.Context, openOnly bool, limit int) ([]domain.StaffNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StaffNotification
	for _, n := range r.rows {
		if openOnly && n.Done {
			continue
		}
		out = append(out, *n)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) MarkDone(_ context.Context, id, by string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok || n.Done {
		return ErrNotFound
	}
	now := time.Now().UTC()
	n.Done = true
	n.DoneBy = &by
	n.DoneAt = &now
	return nil
}

type recordingMailer struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (m *recordingMailer) SendAlert(_ context.Context, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return m.err
}

func guestMessage() *domain.Message {
	property := "GONG-101"
	return &domain.Message{
		ID:           "msg-1",
		Subject:      "Airbnb: new message",
		GuestSegment: "히터가 고장났어요. 너무 추워요.",
		PropertyCode: &property,
	}
}

func TestRaise_StaffAlertPagesTheMailer(t *testing.T) {
	repo := newMemRepo()
	mailer := &recordingMailer{}
	svc := NewService(repo, mailer)

	n, err := svc.Raise(context.Background(), guestMessage(), domain.ActionDecision{
		Action:          domain.ActionStaffAlert,
		EscalationLevel: domain.EscalationAlert,
		Reason:          "guest complaint requires immediate attention",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.NotifyStaffAlert, n.Kind)
	assert.Equal(t, domain.EscalationAlert, n.Severity)
	assert.Contains(t, n.Title, "STAFF_ALERT")
	assert.Contains(t, n.Body, "히터가 고장났어요")
	require.Len(t, mailer.subjects, 1)
	assert.Equal(t, n.Title, mailer.subjects[0])
}

func TestRaise_StaffReviewDoesNotPage(t *testing.T) {
	repo := newMemRepo()
	mailer := &recordingMailer{}
	svc := NewService(repo, mailer)

	n, err := svc.Raise(context.Background(), guestMessage(), domain.ActionDecision{
		Action:          domain.ActionStaffReview,
		EscalationLevel: domain.EscalationReview,
		Reason:          "ambiguous intent",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.NotifyStaffReview, n.Kind)
	assert.Empty(t, mailer.subjects)
}

func TestRaise_MailFailureStillFilesTheRow(t *testing.T) {
	repo := newMemRepo()
	mailer := &recordingMailer{err: errors.New("ses throttled")}
	svc := NewService(repo, mailer)

	n, err := svc.Raise(context.Background(), guestMessage(), domain.ActionDecision{
		Action:          domain.ActionStaffAlert,
		EscalationLevel: domain.EscalationAlert,
		Reason:          "complaint",
	})
	require.NoError(t, err)

	rows, err := svc.List(context.Background(), true, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, n.ID, rows[0].ID)
}

func TestRaise_NilMailer(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	_, err := svc.Raise(context.Background(), guestMessage(), domain.ActionDecision{
		Action:          domain.ActionStaffAlert,
		EscalationLevel: domain.EscalationAlert,
	})
	assert.NoError(t, err)
}

func TestMarkDone_DefaultsOperator(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	require.NoError(t, repo.Create(context.Background(), &domain.StaffNotification{ID: "n1"}))

	require.NoError(t, svc.MarkDone(context.Background(), "n1", ""))
	assert.Equal(t, "operator", *repo.rows["n1"].DoneBy)

	assert.ErrorIs(t, svc.MarkDone(context.Background(), "n1", "jay"), ErrNotFound)
}
