package otamail

import (
	"regexp"
	"strings"
)

// Profile anchor: the line in an OTA notification right above the guest's
// message, either a "joined <year>" label or a stand-alone country line.
var joinedRe = regexp.MustCompile(`(?i)joined in \d{4}|가입\s*(?:연도)?\s*[::]?\s*\d{4}|\d{4}년에?\s*가입`)

// Countries the profile block shows for our guest population. Lowercased.
var countryNames = map[string]bool{
	"south korea": true, "korea": true, "대한민국": true, "한국": true,
	"japan": true, "일본": true,
	"china": true, "중국": true,
	"taiwan": true, "대만": true,
	"hong kong": true, "홍콩": true,
	"singapore": true, "싱가포르": true,
	"united states": true, "미국": true,
	"canada": true, "캐나다": true,
	"united kingdom": true, "영국": true,
	"france": true, "프랑스": true,
	"germany": true, "독일": true,
	"australia": true, "호주": true,
	"thailand": true, "태국": true,
	"vietnam": true, "베트남": true,
	"philippines": true, "필리핀": true,
	"indonesia": true, "인도네시아": true,
	"malaysia": true, "말레이시아": true,
	"india": true, "인도": true,
	"spain": true, "스페인": true,
	"italy": true, "이탈리아": true,
}

// ctaPatterns mark where platform boilerplate resumes after the guest's
// message: action prompts, response-rate nags, FAQ and footer blocks.
var ctaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)pre-?approve`),
	regexp.MustCompile(`사전\s*승인`),
	regexp.MustCompile(`(?i)special offer`),
	regexp.MustCompile(`(?i)^\s*decline\s*$`),
	regexp.MustCompile(`거절하기`),
	regexp.MustCompile(`(?i)reply within 24 hours`),
	regexp.MustCompile(`24시간\s*이?내에?\s*(?:답장|응답)`),
	regexp.MustCompile(`응답률`),
	regexp.MustCompile(`(?i)respond to keep your response rate`),
	regexp.MustCompile(`(?i)frequently asked questions`),
	regexp.MustCompile(`자주 묻는 질문`),
	regexp.MustCompile(`(?i)^airbnb,? inc`),
	regexp.MustCompile(`(?i)^\W*(?:©|\(c\))?\s*\d{4}\s+airbnb`),
	regexp.MustCompile(`(?i)unsubscribe`),
	regexp.MustCompile(`수신\s*거부`),
	regexp.MustCompile(`(?i)get the (?:airbnb )?app`),
}

// Tracking debris that should never survive into a guest segment:
// standalone OTA links and inline image placeholders.
var (
	trackingURLRe  = regexp.MustCompile(`(?i)^https?://\S*(?:airbnb|booking|agoda)\.[a-z.]+\S*$`)
	imageTokenRe   = regexp.MustCompile(`(?i)^\[(?:image|이미지)[^\]]*\]$`)
	invisibleRunRe = regexp.MustCompile(`^[\x{200b}\x{200c}\x{200d}\x{feff}\s]*$`)
)

// ExtractGuestSegment isolates the guest-authored text from an OTA
// notification body.
//
// Strategy: find the profile anchor (the "joined <year>" or country line
// that closes the guest profile block) and collect lines from there until
// the first call-to-action. Without an anchor, cut at the earliest CTA and
// keep the last paragraph block before it.
func ExtractGuestSegment(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	lines := splitClean(text)

	if anchor := findAnchor(lines); anchor >= 0 {
		if seg := collectAfterAnchor(lines, anchor); seg != "" {
			return seg
		}
	}

	return lastBlockBeforeCTA(lines)
}

// splitClean normalizes line endings and drops tracking debris lines.
func splitClean(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trackingURLRe.MatchString(trimmed) || imageTokenRe.MatchString(trimmed) {
			continue
		}
		if trimmed != "" && invisibleRunRe.MatchString(trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func findAnchor(lines []string) int {
	for i, line := range lines {
		if joinedRe.MatchString(line) || isCountryLine(line) {
			return i
		}
	}
	return -1
}

// isCountryLine matches a stand-alone country or "locality, country" line.
func isCountryLine(line string) bool {
	l := strings.ToLower(strings.TrimSpace(line))
	if l == "" || len(l) > 60 {
		return false
	}
	if countryNames[l] {
		return true
	}
	if i := strings.LastIndex(l, ","); i >= 0 {
		return countryNames[strings.TrimSpace(l[i+1:])]
	}
	return false
}

func isCTA(line string) bool {
	for _, re := range ctaPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// collectAfterAnchor gathers lines after the profile anchor until the first
// CTA, collapsing blank runs to a single separator. The profile block may
// list the joined-year and country lines in either order, so any anchor-like
// lines directly after the anchor are still profile, not message.
func collectAfterAnchor(lines []string, anchor int) string {
	var collected []string
	blankPending := false
	started := false

	for _, line := range lines[anchor+1:] {
		if !started && (joinedRe.MatchString(line) || isCountryLine(line)) {
			continue
		}
		if isCTA(line) {
			break
		}
		if line == "" {
			if started {
				blankPending = true
			}
			continue
		}
		if blankPending {
			collected = append(collected, "")
			blankPending = false
		}
		collected = append(collected, line)
		started = true
	}

	return strings.TrimSpace(strings.Join(collected, "\n"))
}

// lastBlockBeforeCTA truncates at the earliest CTA and returns the final
// non-empty paragraph block.
func lastBlockBeforeCTA(lines []string) string {
	cut := len(lines)
	for i, line := range lines {
		if isCTA(line) {
			cut = i
			break
		}
	}
	lines = lines[:cut]

	var blocks [][]string
	var current []string
	for _, line := range lines {
		if line == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks[len(blocks)-1], "\n")
}
