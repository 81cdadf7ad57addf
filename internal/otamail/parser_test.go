package otamail

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/mailbox"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func rawWith(body, from, subject string) *mailbox.RawMessage {
	return &mailbox.RawMessage{
		ID:           "msg-1",
		ThreadID:     "thread-1",
		InternalDate: "1756100000000",
		Payload: mailbox.Part{
			MimeType: "text/plain",
			Headers: []mailbox.Header{
				{Name: "From", Value: from},
				{Name: "Subject", Value: subject},
				{Name: "Message-ID", Value: "<msg-1@mail.example.com>"},
				{Name: "References", Value: "<root@mail.example.com>"},
			},
			Body: mailbox.Body{Data: b64(body)},
		},
	}
}

func TestParse_GuestInquiry(t *testing.T) {
	body := "김지민\n게스트\n대한민국\n2019년에 가입\n\n" +
		"체크인 몇 시부터 가능한가요?\n\n" +
		"https://www.airbnb.com/rooms/12345678 숙소 문의입니다\n\n" +
		"사전 승인 보내기\n"
	raw := rawWith(body, "Airbnb <express@airbnb.com>", "Airbnb: new message")

	p, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "msg-1", p.ExternalID)
	assert.Equal(t, "thread-1", p.ThreadID)
	assert.Equal(t, "express@airbnb.com", p.From)
	assert.Equal(t, "<msg-1@mail.example.com>", p.MessageID)
	assert.Equal(t, "<root@mail.example.com>", p.References)
	assert.Equal(t, domain.OTAAirbnb, p.OTA)
	assert.Equal(t, RoleGuest, p.Role)
	assert.Equal(t, "게스트", p.RoleLabel)
	assert.Equal(t, "12345678", p.ListingID)
	assert.Contains(t, p.GuestSegment, "체크인 몇 시부터 가능한가요?")
	assert.True(t, p.Usable())
}

func TestParse_RFC2047Subject(t *testing.T) {
	raw := rawWith("본문", "Airbnb <express@airbnb.com>",
		"=?UTF-8?B?7JeQ7Ja067mE7JWk67mEIOyDiCDrqZTsi5zsp4A=?=")
	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "에어비앤비 새 메시지", p.Subject)

	// A malformed encoded-word falls back to the raw header.
	raw = rawWith("본문", "Airbnb <express@airbnb.com>", "=?UTF-8?B?###?=")
	p, err = Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "=?UTF-8?B?###?=", p.Subject)
}

func TestParse_HTMLOnlyBodyFallsBackToStrippedText(t *testing.T) {
	html := "<html><body><p>게스트</p><p>대한민국</p>" +
		"<p>와이파이 비밀번호 알려주세요</p><p>사전 승인</p></body></html>"
	raw := &mailbox.RawMessage{
		ID:       "msg-2",
		ThreadID: "thread-2",
		Payload: mailbox.Part{
			MimeType: "multipart/alternative",
			Headers: []mailbox.Header{
				{Name: "From", Value: "Booking.com <noreply@booking.com>"},
				{Name: "Subject", Value: "New message"},
			},
			Parts: []mailbox.Part{
				{MimeType: "text/html", Body: mailbox.Body{Data: b64(html)}},
			},
		},
	}

	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.OTABooking, p.OTA)
	assert.Empty(t, p.BodyText)
	assert.NotEmpty(t, p.BodyHTML)
	assert.Contains(t, p.GuestSegment, "와이파이 비밀번호")
}

func TestParse_NilAndEmpty(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrNilMessage)

	_, err = Parse(&mailbox.RawMessage{})
	assert.ErrorIs(t, err, ErrNilMessage)

	// No body at all still parses; there is just nothing to classify.
	p, err := Parse(&mailbox.RawMessage{ID: "bare"})
	require.NoError(t, err)
	assert.False(t, p.Usable())
	assert.Equal(t, RoleUnknown, p.Role)
}

func TestDetectOTA(t *testing.T) {
	assert.Equal(t, domain.OTAAirbnb, DetectOTA("express@airbnb.com"))
	assert.Equal(t, domain.OTAAirbnb, DetectOTA("automated@reply.airbnb.com"))
	assert.Equal(t, domain.OTABooking, DetectOTA("noreply@mailer.booking.com"))
	assert.Equal(t, domain.OTAAgoda, DetectOTA("no-reply@agoda.com"))
	assert.Equal(t, domain.OTAUnknown, DetectOTA("someone@example.com"))
}

func TestDetectRole(t *testing.T) {
	tests := []struct {
		in    string
		role  SenderRole
		label string
	}{
		{"김지민\n게스트\n대한민국", RoleGuest, "게스트"},
		{"Sarah\nGuest\nUnited States", RoleGuest, "Guest"},
		{"박호스트\n호스트\n", RoleHost, "호스트"},
		{"Kim\nCo-Host\n", RoleCoHost, "Co-Host"},
		{"Kim\n공동 호스트\n", RoleCoHost, "공동 호스트"},
		{"no role label here", RoleUnknown, ""},
		// Inline mention is not a role line.
		{"게스트가 메시지를 보냈습니다", RoleUnknown, ""},
	}
	for _, tt := range tests {
		role, label := DetectRole(tt.in)
		assert.Equal(t, tt.role, role, tt.in)
		assert.Equal(t, tt.label, label, tt.in)
	}
}

func TestExtractListingID(t *testing.T) {
	assert.Equal(t, "12345678", ExtractListingID("https://www.airbnb.com/rooms/12345678?source=mail"))
	assert.Equal(t, "99", ExtractListingID("see /rooms/99 and /rooms/100"))
	assert.Equal(t, "", ExtractListingID("no listing url"))
}

func TestExtractBookingMeta(t *testing.T) {
	ref := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)

	t.Run("korean dates and code", func(t *testing.T) {
		meta := ExtractBookingMeta(
			"체크인: 2025년 9월 1일\n체크아웃: 2025년 9월 3일\n예약 번호: HMABC12345X",
			"김지민님이 보낸 메시지", ref)
		assert.Equal(t, "김지민", meta.GuestName)
		require.NotNil(t, meta.Checkin)
		assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), *meta.Checkin)
		require.NotNil(t, meta.Checkout)
		assert.Equal(t, time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC), *meta.Checkout)
		assert.Equal(t, "HMABC12345X", meta.ReservationCode)
	})

	t.Run("english dates", func(t *testing.T) {
		meta := ExtractBookingMeta(
			"Check-in: Sep 1, 2025\nCheck-out: Sep 3, 2025\nConfirmation code: HM8ZQK2W9T",
			"New message from Sarah", ref)
		assert.Equal(t, "Sarah", meta.GuestName)
		require.NotNil(t, meta.Checkin)
		assert.Equal(t, time.September, meta.Checkin.Month())
		assert.Equal(t, "HM8ZQK2W9T", meta.ReservationCode)
	})

	t.Run("yearless range takes year from message date", func(t *testing.T) {
		meta := ExtractBookingMeta("9월 1일 ~ 9월 3일 숙박", "", ref)
		require.NotNil(t, meta.Checkin)
		assert.Equal(t, 2025, meta.Checkin.Year())
	})

	t.Run("december to january crosses the year", func(t *testing.T) {
		meta := ExtractBookingMeta("12월 30일 ~ 1월 2일 숙박", "", ref)
		require.NotNil(t, meta.Checkin)
		require.NotNil(t, meta.Checkout)
		assert.Equal(t, 2025, meta.Checkin.Year())
		assert.Equal(t, 2026, meta.Checkout.Year())
	})

	t.Run("nothing found", func(t *testing.T) {
		meta := ExtractBookingMeta("그냥 인사드려요", "", ref)
		assert.Empty(t, meta.GuestName)
		assert.Nil(t, meta.Checkin)
		assert.Empty(t, meta.ReservationCode)
	})
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("<div>안녕하세요<br>반갑습니다</div><p>문의드립니다</p>")
	assert.Contains(t, got, "안녕하세요")
	assert.Contains(t, got, "반갑습니다")
	assert.Contains(t, got, "문의드립니다")
}
