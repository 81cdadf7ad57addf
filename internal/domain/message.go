package domain

import (
	"time"
)

// OTA identifies the booking platform a message arrived from.
type OTA string

const (
	OTAAirbnb  OTA = "AIRBNB"
	OTABooking OTA = "BOOKING"
	OTAAgoda   OTA = "AGODA"
	OTAUnknown OTA = "UNKNOWN"
)

// SenderActor says which side of the conversation authored a message.
type SenderActor string

const (
	ActorGuest   SenderActor = "GUEST"
	ActorHost    SenderActor = "HOST"
	ActorSystem  SenderActor = "SYSTEM"
	ActorUnknown SenderActor = "UNKNOWN"
)

// Actionability classifies what, if anything, the operator must do with
// a message.
type Actionability string

const (
	NeedsReply         Actionability = "NEEDS_REPLY"
	OutgoingCopy       Actionability = "OUTGOING_COPY"
	SystemNotification Actionability = "SYSTEM_NOTIFICATION"
	FYI                Actionability = "FYI"
	ActionabilityUnknown Actionability = "UNKNOWN"
)

// Message is one ingested mailbox message. Created by the parser, classified
// in place exactly once, and thereafter read-only except for the auto-reply
// bookkeeping fields.
type Message struct {
	ID              string        `json:"id" db:"id"`
	ExternalID      string        `json:"external_id" db:"external_id"`
	ThreadID        string        `json:"thread_id" db:"thread_id"`
	MailMessageID   *string       `json:"mail_message_id" db:"mail_message_id"`
	MailReferences  *string       `json:"-" db:"mail_references"`
	ReceivedAt      time.Time     `json:"received_at" db:"received_at"`
	Sender          string        `json:"sender" db:"sender"`
	Subject         string        `json:"subject" db:"subject"`
	BodyText        string        `json:"body_text" db:"body_text"`
	BodyHTML        string        `json:"-" db:"body_html"`
	GuestSegment    string        `json:"guest_segment" db:"guest_segment"`
	SenderActor     SenderActor   `json:"sender_actor" db:"sender_actor"`
	Actionability   Actionability `json:"actionability" db:"actionability"`
	OTA             OTA           `json:"ota" db:"ota"`
	PropertyCode    *string       `json:"property_code" db:"property_code"`
	ListingID       *string       `json:"listing_id" db:"listing_id"`

	Intent           *Intent     `json:"intent" db:"intent"`
	IntentConfidence *float64    `json:"intent_confidence" db:"intent_confidence"`
	FineIntent       *string     `json:"fine_intent" db:"fine_intent"`
	SuggestedAction  *ActionType `json:"suggested_action" db:"suggested_action"`

	GuestName       *string    `json:"guest_name" db:"guest_name"`
	CheckinDate     *time.Time `json:"checkin_date" db:"checkin_date"`
	CheckoutDate    *time.Time `json:"checkout_date" db:"checkout_date"`
	ReservationCode *string    `json:"reservation_code" db:"reservation_code"`

	LastAutoReplyAt *time.Time `json:"last_auto_reply_at" db:"last_auto_reply_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsClassified reports whether the intent stage has already run for this
// message.
func (m *Message) IsClassified() bool {
	return m.Intent != nil
}

// AwaitsReply reports whether the message is a guest inquiry the pipeline
// should draft a reply for.
func (m *Message) AwaitsReply() bool {
	return m.SenderActor == ActorGuest && m.Actionability == NeedsReply
}
