package mailbox

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: hello", ReplySubject("hello"))
	assert.Equal(t, "Re: hello", ReplySubject("Re: hello"))
	assert.Equal(t, "re: hello", ReplySubject("re: hello"))
	assert.Equal(t, "RE: hello", ReplySubject("  RE: hello  "))
	assert.Equal(t, "Re: 에어비앤비: 새로운 메시지", ReplySubject("에어비앤비: 새로운 메시지"))
}

func TestComposeReplyHeaders(t *testing.T) {
	raw := string(ComposeReply(ReplyInput{
		From:       "desk@stayhelper.example",
		To:         "guest@example.com",
		Subject:    "Airbnb: new message",
		InReplyTo:  "<orig-123@mail.airbnb.com>",
		References: "<thread-root@mail.airbnb.com>",
		Body:       "체크인은 14:00부터 가능합니다. 감사합니다!",
	}))

	assert.Contains(t, raw, "From: desk@stayhelper.example\r\n")
	assert.Contains(t, raw, "To: guest@example.com\r\n")
	assert.Contains(t, raw, "Subject: Re: Airbnb: new message\r\n")
	assert.Contains(t, raw, "In-Reply-To: <orig-123@mail.airbnb.com>\r\n")
	assert.Contains(t, raw, "References: <thread-root@mail.airbnb.com> <orig-123@mail.airbnb.com>\r\n")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	assert.Contains(t, raw, "Content-Transfer-Encoding: base64\r\n")
}

func TestComposeReplyBodyRoundTrip(t *testing.T) {
	body := "체크인은 14:00부터 가능합니다.\n\n감사합니다."
	raw := string(ComposeReply(ReplyInput{
		From:    "desk@stayhelper.example",
		To:      "guest@example.com",
		Subject: "hi",
		Body:    body,
	}))

	// Body begins after the blank line; undo the 76-column folding.
	parts := strings.SplitN(raw, "\r\n\r\n", 2)
	require.Len(t, parts, 2)
	encoded := strings.ReplaceAll(parts[1], "\r\n", "")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestComposeReplyWithoutThreadHeaders(t *testing.T) {
	raw := string(ComposeReply(ReplyInput{
		From:    "desk@stayhelper.example",
		To:      "guest@example.com",
		Subject: "hi",
		Body:    "hello",
	}))
	assert.NotContains(t, raw, "In-Reply-To:")
	assert.NotContains(t, raw, "References:")
}

func TestComposeReplyEncodesNonASCIISubject(t *testing.T) {
	raw := string(ComposeReply(ReplyInput{
		From:    "desk@stayhelper.example",
		To:      "guest@example.com",
		Subject: "문의드립니다",
		Body:    "x",
	}))
	assert.Contains(t, raw, "Subject: =?UTF-8?q?")
}

func TestEncodeRawIsURLSafe(t *testing.T) {
	encoded := EncodeRaw([]byte{0xfb, 0xff, 0xfe})
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.NotContains(t, encoded, "=")
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "guest@example.com", FormatAddress("", "guest@example.com"))
	assert.Equal(t, "Desk <desk@stayhelper.example>", FormatAddress("Desk", "desk@stayhelper.example"))
}
