package inbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hostops/concierge/internal/classify"
	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/otamail"
)

// Service implements message ingestion bookkeeping and the label ledger.
type Service struct {
	repo Repository
}

// NewService creates an inbox service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// IngestParsed persists one parsed message with its origin verdict.
// A duplicate external id is treated as success: the existing row is
// returned and created is false.
func (s *Service) IngestParsed(ctx context.Context, p *otamail.ParsedMessage, origin classify.Origin, propertyCode *string) (*domain.Message, bool, error) {
	m := &domain.Message{
		ID:            uuid.New().String(),
		ExternalID:    p.ExternalID,
		ThreadID:      p.ThreadID,
		ReceivedAt:    p.ReceivedAt,
		Sender:        p.From,
		Subject:       p.Subject,
		BodyText:      p.BodyText,
		BodyHTML:      p.BodyHTML,
		GuestSegment:  p.GuestSegment,
		SenderActor:   origin.Actor,
		Actionability: origin.Actionability,
		OTA:           p.OTA,
		PropertyCode:  propertyCode,
		CreatedAt:     time.Now().UTC(),
	}
	if p.MessageID != "" {
		m.MailMessageID = &p.MessageID
	}
	if p.References != "" {
		m.MailReferences = &p.References
	}
	if p.ListingID != "" {
		m.ListingID = &p.ListingID
	}
	if p.GuestName != "" {
		m.GuestName = &p.GuestName
	}
	m.CheckinDate = p.CheckinDate
	m.CheckoutDate = p.CheckoutDate
	if p.ReservationCode != "" {
		m.ReservationCode = &p.ReservationCode
	}

	err := s.repo.Create(ctx, m)
	if errors.Is(err, ErrDuplicate) {
		existing, getErr := s.repo.GetByExternalID(ctx, p.ExternalID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ingest message %s: %w", p.ExternalID, err)
	}
	return m, true, nil
}

// RecordClassification stores the intent verdict on the message and appends
// a SYSTEM ledger entry. Sender actor and actionability are already set and
// stay immutable.
func (s *Service) RecordClassification(ctx context.Context, messageID string, outcome classify.IntentOutcome, action domain.ActionType) error {
	var fine *string
	if outcome.FineIntent != "" {
		f := outcome.FineIntent
		fine = &f
	}

	if err := s.repo.SetIntent(ctx, messageID, outcome.Intent, outcome.Confidence, fine, action); err != nil {
		return fmt.Errorf("record classification: %w", err)
	}
	return s.appendLabel(ctx, messageID, outcome.Intent, domain.LabelSystem)
}

// Relabel appends a label from an operator (or an ML re-run) and, for human
// labels, updates the denormalized intent on the message.
func (s *Service) Relabel(ctx context.Context, messageID string, intent domain.Intent, source domain.LabelSource) error {
	if !intent.IsValid() {
		return ErrInvalidIntent
	}
	if _, err := s.repo.Get(ctx, messageID); err != nil {
		return err
	}

	if err := s.appendLabel(ctx, messageID, intent, source); err != nil {
		return err
	}
	if source == domain.LabelHuman || source == domain.LabelCorrected {
		if err := s.repo.SetDenormalizedIntent(ctx, messageID, intent); err != nil {
			return fmt.Errorf("update denormalized intent: %w", err)
		}
		log.Printf("[Inbox] message %s relabeled to %s by %s", messageID, intent, source)
	}
	return nil
}

// History returns the message's label ledger in creation order.
func (s *Service) History(ctx context.Context, messageID string) ([]domain.IntentLabel, error) {
	if _, err := s.repo.Get(ctx, messageID); err != nil {
		return nil, err
	}
	return s.repo.LabelHistory(ctx, messageID)
}

// Get returns one message.
func (s *Service) Get(ctx context.Context, id string) (*domain.Message, error) {
	return s.repo.Get(ctx, id)
}

// List returns messages matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Message, error) {
	return s.repo.List(ctx, f)
}

// Seen reports whether an external id is already ingested. Passed to the
// poller as its dedup check.
func (s *Service) Seen(ctx context.Context, externalID string) (bool, error) {
	return s.repo.ExistsByExternalID(ctx, externalID)
}

// TouchAutoReplyAt advances the auto-reply bookkeeping timestamp.
func (s *Service) TouchAutoReplyAt(ctx context.Context, id string) error {
	return s.repo.TouchAutoReplyAt(ctx, id)
}

func (s *Service) appendLabel(ctx context.Context, messageID string, intent domain.Intent, source domain.LabelSource) error {
	label := &domain.IntentLabel{
		ID:        uuid.New().String(),
		MessageID: messageID,
		Intent:    intent,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.AppendLabel(ctx, label); err != nil {
		return fmt.Errorf("append label: %w", err)
	}
	return nil
}
