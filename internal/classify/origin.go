package classify

import (
	"regexp"
	"strings"

	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/otamail"
)

// Origin is the verdict of the origin classifier: which side authored the
// message and what, if anything, must happen with it.
type Origin struct {
	Actor         domain.SenderActor
	Actionability domain.Actionability
	Confidence    float64
	Reason        string
}

// System-notification markers: reservation lifecycle, review nags, and
// checkin countdowns the platform sends on its own.
var systemKeywords = []string{
	"reservation confirmed",
	"reservation canceled",
	"reservation cancelled",
	"booking confirmed",
	"write a review",
	"leave a review",
	"review your stay",
	"until check-in",
	"checkin reminder",
	"check-in reminder",
	"예약이 확정",
	"예약이 취소",
	"후기를 남겨",
	"후기 작성",
	"체크인까지",
}

// Stand-alone role lines inside the body; weaker evidence than the
// parser's pre-detected role, so they classify at 0.9 instead of 0.95.
var bodyRoleRe = regexp.MustCompile(`(?im)^\s*(host|호스트|co[- ]?host|공동\s*호스트|guest|게스트)\s*$`)

// ClassifyOrigin decides actor and actionability from the parser's role
// tag and the message text. Deterministic; no external calls.
func ClassifyOrigin(text, subject, snippet string, role otamail.SenderRole) Origin {
	switch role {
	case otamail.RoleHost, otamail.RoleCoHost:
		return Origin{domain.ActorHost, domain.OutgoingCopy, 0.95, "parser detected host role label"}
	case otamail.RoleGuest:
		return Origin{domain.ActorGuest, domain.NeedsReply, 0.95, "parser detected guest role label"}
	}

	haystack := strings.ToLower(subject + "\n" + snippet + "\n" + text)
	for _, kw := range systemKeywords {
		if strings.Contains(haystack, kw) {
			return Origin{domain.ActorSystem, domain.SystemNotification, 0.9, "system notification keyword: " + kw}
		}
	}

	if m := bodyRoleRe.FindStringSubmatch(text); m != nil {
		switch normalizeRoleLine(m[1]) {
		case "host":
			return Origin{domain.ActorHost, domain.OutgoingCopy, 0.9, "body role line: " + m[1]}
		case "guest":
			return Origin{domain.ActorGuest, domain.NeedsReply, 0.9, "body role line: " + m[1]}
		}
	}

	return Origin{domain.ActorUnknown, domain.FYI, 0.3, "no origin signal"}
}

func normalizeRoleLine(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.ReplaceAll(l, "-", "")
	l = strings.ReplaceAll(l, " ", "")
	switch l {
	case "host", "호스트", "cohost", "공동호스트":
		return "host"
	case "guest", "게스트":
		return "guest"
	}
	return ""
}
