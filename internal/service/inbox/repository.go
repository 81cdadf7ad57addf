package inbox

import (
	"context"

	"github.com/hostops/concierge/internal/domain"
)

// Repository is the data access contract for messages and labels.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts a new message. Returns ErrDuplicate when the external
	// id is already present; the existing row is untouched.
	Create(ctx context.Context, m *domain.Message) error

	// Get returns one message by surrogate id. ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Message, error)

	// GetByExternalID returns one message by provider id. ErrNotFound if absent.
	GetByExternalID(ctx context.Context, externalID string) (*domain.Message, error)

	// ExistsByExternalID reports whether the provider id was already ingested.
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)

	// List returns messages matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.Message, error)

	// SetIntent records the classifier's verdict on the denormalized
	// columns. Sender actor and actionability are never touched.
	SetIntent(ctx context.Context, id string, intent domain.Intent, confidence float64, fine *string, action domain.ActionType) error

	// SetDenormalizedIntent overwrites only the intent column (operator
	// relabel). Confidence and action are left as classified.
	SetDenormalizedIntent(ctx context.Context, id string, intent domain.Intent) error

	// TouchAutoReplyAt advances last_auto_reply_at; it never moves backward.
	TouchAutoReplyAt(ctx context.Context, id string) error

	// AppendLabel inserts one ledger row. Labels are never updated or deleted.
	AppendLabel(ctx context.Context, label *domain.IntentLabel) error

	// LabelHistory returns a message's labels ordered by created_at.
	LabelHistory(ctx context.Context, messageID string) ([]domain.IntentLabel, error)
}

// ListFilter narrows a message listing.
type ListFilter struct {
	Actionability domain.Actionability
	Actor         domain.SenderActor
	PropertyCode  string
	OTA           domain.OTA
	NeedsDraft    bool // only messages without a reply sent yet
	Limit         int
}
