package otamail

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Role labels appear on their own line in the notification layout, in the
// OTA's UI language. Co-host must precede host in the alternation.
var roleLineRe = regexp.MustCompile(`(?im)^\s*(co[- ]?host|공동\s*호스트|host|호스트|guest|게스트)\s*[::]?\s*$`)

// DetectRole finds a line-anchored role label in the body. The second
// return is the matched label verbatim, kept for audit.
func DetectRole(text string) (SenderRole, string) {
	m := roleLineRe.FindStringSubmatch(text)
	if m == nil {
		return RoleUnknown, ""
	}
	label := strings.TrimSpace(m[1])
	switch normalizeRole(label) {
	case "cohost":
		return RoleCoHost, label
	case "host":
		return RoleHost, label
	case "guest":
		return RoleGuest, label
	}
	return RoleUnknown, label
}

func normalizeRole(label string) string {
	l := strings.ToLower(label)
	l = strings.ReplaceAll(l, "-", "")
	l = strings.ReplaceAll(l, " ", "")
	switch l {
	case "cohost", "공동호스트":
		return "cohost"
	case "host", "호스트":
		return "host"
	case "guest", "게스트":
		return "guest"
	}
	return ""
}

// Listing ids ride on the canonical /rooms/<digits> URL form.
var listingRe = regexp.MustCompile(`/rooms/(\d+)`)

// ExtractListingID returns the first listing id referenced in the text, or "".
func ExtractListingID(text string) string {
	m := listingRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// BookingMeta is the small grammar's take on the reservation details
// mentioned in a notification.
type BookingMeta struct {
	GuestName       string
	Checkin         *time.Time
	Checkout        *time.Time
	ReservationCode string
}

var (
	guestNameEnRe = regexp.MustCompile(`(?i)(?:new )?message from ([^\n,!.]{1,40})`)
	guestNameKoRe = regexp.MustCompile(`([가-힣A-Za-z][가-힣A-Za-z ]{0,20}?)님(?:이|께서)?\s*(?:보낸|메시지)`)

	checkinKoRe  = regexp.MustCompile(`체크인\s*[::]?\s*(\d{4})[년.\-/\s]+(\d{1,2})[월.\-/\s]+(\d{1,2})`)
	checkoutKoRe = regexp.MustCompile(`체크아웃\s*[::]?\s*(\d{4})[년.\-/\s]+(\d{1,2})[월.\-/\s]+(\d{1,2})`)

	checkinEnRe  = regexp.MustCompile(`(?i)check[- ]?in\s*[::]?\s+([A-Za-z]{3,9}\.? \d{1,2},? \d{4})`)
	checkoutEnRe = regexp.MustCompile(`(?i)check[- ]?out\s*[::]?\s+([A-Za-z]{3,9}\.? \d{1,2},? \d{4})`)

	// "1월 5일 ~ 1월 7일" style ranges; the year comes from the message date.
	stayRangeKoRe = regexp.MustCompile(`(\d{1,2})월\s*(\d{1,2})일\s*[~–\-]\s*(\d{1,2})월\s*(\d{1,2})일`)

	reservationCodeRe = regexp.MustCompile(`(?i)(?:confirmation code|reservation code|예약\s*(?:코드|번호))\s*[::]?\s*([A-Z0-9]{6,12})`)
	airbnbCodeRe      = regexp.MustCompile(`\bHM[A-Z0-9]{8,10}\b`)
)

// ExtractBookingMeta pulls guest name, stay dates, and reservation code out
// of the text and subject. ref supplies the year for year-less date ranges.
func ExtractBookingMeta(text, subject string, ref time.Time) BookingMeta {
	joined := subject + "\n" + text
	var meta BookingMeta

	if m := guestNameKoRe.FindStringSubmatch(joined); m != nil {
		meta.GuestName = strings.TrimSpace(m[1])
	} else if m := guestNameEnRe.FindStringSubmatch(joined); m != nil {
		meta.GuestName = strings.TrimSpace(m[1])
	}

	meta.Checkin = parseKoDate(checkinKoRe.FindStringSubmatch(text))
	meta.Checkout = parseKoDate(checkoutKoRe.FindStringSubmatch(text))
	if meta.Checkin == nil {
		meta.Checkin = parseEnDate(checkinEnRe.FindStringSubmatch(text))
	}
	if meta.Checkout == nil {
		meta.Checkout = parseEnDate(checkoutEnRe.FindStringSubmatch(text))
	}
	if meta.Checkin == nil && meta.Checkout == nil {
		if m := stayRangeKoRe.FindStringSubmatch(text); m != nil {
			meta.Checkin = dateFrom(ref.Year(), m[1], m[2])
			meta.Checkout = dateFrom(ref.Year(), m[3], m[4])
			// A December→January stay crosses the year boundary.
			if meta.Checkin != nil && meta.Checkout != nil && meta.Checkout.Before(*meta.Checkin) {
				rolled := meta.Checkout.AddDate(1, 0, 0)
				meta.Checkout = &rolled
			}
		}
	}

	if m := reservationCodeRe.FindStringSubmatch(joined); m != nil {
		meta.ReservationCode = strings.ToUpper(m[1])
	} else if m := airbnbCodeRe.FindString(joined); m != "" {
		meta.ReservationCode = m
	}

	return meta
}

func parseKoDate(m []string) *time.Time {
	if m == nil {
		return nil
	}
	return dateFromYMD(m[1], m[2], m[3])
}

func parseEnDate(m []string) *time.Time {
	if m == nil {
		return nil
	}
	raw := strings.ReplaceAll(m[1], ".", "")
	for _, layout := range []string{"Jan 2, 2006", "Jan 2 2006", "January 2, 2006", "January 2 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func dateFromYMD(y, m, d string) *time.Time {
	year, err := strconv.Atoi(y)
	if err != nil {
		return nil
	}
	return dateFrom(year, m, d)
}

func dateFrom(year int, m, d string) *time.Time {
	month, err1 := strconv.Atoi(m)
	day, err2 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}
