package mailbox

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"
)

// ReplyInput carries everything needed to compose an RFC 5322 reply.
type ReplyInput struct {
	From       string
	To         string
	Subject    string // original subject; "Re: " is prefixed if missing
	InReplyTo  string // original Message-ID header, may be empty
	References string // original References header, may be empty
	Body       string // UTF-8 plain text
}

// ComposeReply renders an RFC 5322 message ready for EncodeRaw. The body
// goes out base64-encoded with a UTF-8 charset.
func ComposeReply(in ReplyInput) []byte {
	var b strings.Builder

	b.WriteString("From: " + in.From + "\r\n")
	b.WriteString("To: " + in.To + "\r\n")
	b.WriteString("Subject: " + encodeSubject(ReplySubject(in.Subject)) + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	if in.InReplyTo != "" {
		b.WriteString("In-Reply-To: " + in.InReplyTo + "\r\n")
		refs := in.References
		if refs != "" {
			refs += " "
		}
		b.WriteString("References: " + refs + in.InReplyTo + "\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(wrapBase64(base64.StdEncoding.EncodeToString([]byte(in.Body))))

	return []byte(b.String())
}

// ReplySubject prefixes "Re: " unless the subject already carries one.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}

// encodeSubject applies RFC 2047 encoding when the subject is not plain ASCII.
func encodeSubject(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.QEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// wrapBase64 folds encoded body lines at 76 columns per RFC 2045.
func wrapBase64(s string) string {
	const width = 76
	if len(s) <= width {
		return s + "\r\n"
	}
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width] + "\r\n")
		s = s[width:]
	}
	if len(s) > 0 {
		b.WriteString(s + "\r\n")
	}
	return b.String()
}

// FormatAddress renders a display-name address pair, quoting when needed.
func FormatAddress(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", encodeSubject(name), email)
}
