package otamail

import (
	"errors"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/mailbox"
)

// SenderRole is the side of the conversation the OTA labeled as the author.
// Computed once here; downstream code branches on the tag and never probes
// strings again.
type SenderRole string

const (
	RoleUnknown SenderRole = "UNKNOWN"
	RoleHost    SenderRole = "HOST"
	RoleCoHost  SenderRole = "CO_HOST"
	RoleGuest   SenderRole = "GUEST"
)

// ParsedMessage is the normalized output of parsing one OTA email.
type ParsedMessage struct {
	ExternalID   string
	ThreadID     string
	ReceivedAt   time.Time
	From         string
	MessageID    string // RFC Message-ID header, verbatim, for reply threading
	References   string // RFC References header, verbatim
	Subject      string
	Snippet      string
	BodyText     string
	BodyHTML     string
	GuestSegment string
	OTA          domain.OTA
	ListingID    string
	Role         SenderRole
	RoleLabel    string // the raw label line, verbatim, for audit

	GuestName       string
	CheckinDate     *time.Time
	CheckoutDate    *time.Time
	ReservationCode string
}

// Usable reports whether the message carried any body to classify.
func (p *ParsedMessage) Usable() bool {
	return p.BodyText != "" || p.BodyHTML != ""
}

// ErrNilMessage is returned when there is nothing to parse at all.
var ErrNilMessage = errors.New("otamail: nil raw message")

// Parse normalizes one raw mailbox message. A message with no decodable
// body still parses (with empty segment and UNKNOWN role); only a missing
// message or id is an error.
func Parse(raw *mailbox.RawMessage) (*ParsedMessage, error) {
	if raw == nil || raw.ID == "" {
		return nil, ErrNilMessage
	}

	p := &ParsedMessage{
		ExternalID: raw.ID,
		ThreadID:   raw.ThreadID,
		ReceivedAt: raw.ReceivedAt(),
		From:       senderAddress(raw.Header("From")),
		MessageID:  strings.TrimSpace(raw.Header("Message-ID")),
		References: strings.TrimSpace(raw.Header("References")),
		Subject:    decodeSubject(raw.Header("Subject")),
		Snippet:    raw.Snippet,
		BodyText:   raw.TextBody(),
		BodyHTML:   raw.HTMLBody(),
	}

	// Fall back to stripped HTML when the provider sent no plain part.
	text := p.BodyText
	if text == "" && p.BodyHTML != "" {
		text = HTMLToText(p.BodyHTML)
	}

	p.OTA = DetectOTA(p.From)
	p.Role, p.RoleLabel = DetectRole(text)
	p.ListingID = ExtractListingID(text + "\n" + p.BodyHTML)
	p.GuestSegment = ExtractGuestSegment(text)

	ref := p.ReceivedAt
	if ref.IsZero() {
		ref = time.Now().UTC()
	}
	meta := ExtractBookingMeta(text, p.Subject, ref)
	p.GuestName = meta.GuestName
	p.CheckinDate = meta.Checkin
	p.CheckoutDate = meta.Checkout
	p.ReservationCode = meta.ReservationCode

	return p, nil
}

// decodeSubject resolves RFC 2047 encoded-words; a malformed subject is
// returned as-is.
func decodeSubject(subject string) string {
	if subject == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(subject)
	if err != nil {
		return subject
	}
	return decoded
}

// senderAddress extracts the bare addr-spec from a From header.
func senderAddress(from string) string {
	if from == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(from)
}

// DetectOTA maps a sender address to the booking platform it belongs to.
func DetectOTA(sender string) domain.OTA {
	s := strings.ToLower(sender)
	switch {
	case strings.Contains(s, "airbnb"):
		return domain.OTAAirbnb
	case strings.Contains(s, "booking.com"):
		return domain.OTABooking
	case strings.Contains(s, "agoda"):
		return domain.OTAAgoda
	default:
		return domain.OTAUnknown
	}
}
