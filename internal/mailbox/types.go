package mailbox

import (
	"encoding/base64"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// Ref is one entry returned by a list call: just enough to decide whether
// the message needs a full fetch.
type Ref struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Header is a single MIME header on a payload or part.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Body carries the base64url-encoded content of one part.
type Body struct {
	Size int    `json:"size"`
	Data string `json:"data"`
}

// Part is a MIME part. The top-level payload of a message is itself a Part.
type Part struct {
	PartID   string   `json:"partId"`
	MimeType string   `json:"mimeType"`
	Filename string   `json:"filename"`
	Headers  []Header `json:"headers"`
	Body     Body     `json:"body"`
	Parts    []Part   `json:"parts"`
}

// RawMessage is a full message as returned by a get call.
type RawMessage struct {
	ID           string   `json:"id"`
	ThreadID     string   `json:"threadId"`
	LabelIDs     []string `json:"labelIds"`
	Snippet      string   `json:"snippet"`
	InternalDate string   `json:"internalDate"` // epoch millis, as string
	Payload      Part     `json:"payload"`
}

// Header returns the first header with the given name (case-insensitive),
// or "" if absent.
func (m *RawMessage) Header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ReceivedAt resolves the message timestamp: the provider's internal date
// when present, otherwise the Date header, otherwise the zero time.
func (m *RawMessage) ReceivedAt() time.Time {
	if m.InternalDate != "" {
		if ms, err := strconv.ParseInt(m.InternalDate, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC()
		}
	}
	if d := m.Header("Date"); d != "" {
		if t, err := mail.ParseDate(d); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// TextBody returns the decoded text/plain content of the message, walking
// nested multipart trees depth-first.
func (m *RawMessage) TextBody() string {
	return firstPartBody(&m.Payload, "text/plain")
}

// HTMLBody returns the decoded text/html content, if any.
func (m *RawMessage) HTMLBody() string {
	return firstPartBody(&m.Payload, "text/html")
}

func firstPartBody(p *Part, mimeType string) string {
	if strings.HasPrefix(p.MimeType, mimeType) && p.Body.Data != "" {
		if b, err := DecodeBody(p.Body.Data); err == nil {
			return string(b)
		}
	}
	for i := range p.Parts {
		if s := firstPartBody(&p.Parts[i], mimeType); s != "" {
			return s
		}
	}
	return ""
}

// DecodeBody decodes the provider's base64url body encoding. Providers are
// inconsistent about padding, so it is stripped before decoding.
func DecodeBody(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

// EncodeRaw encodes a full RFC 5322 message for a send call.
func EncodeRaw(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
