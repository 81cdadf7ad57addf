package otamail

import (
	"html"
	"regexp"
	"strings"
)

var (
	styleBlockRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	headBlockRe   = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	commentRe     = regexp.MustCompile(`(?s)<!--.*?-->`)
	breakTagRe    = regexp.MustCompile(`(?i)<(?:br\s*/?|/p|/div|/tr|/li|/h[1-6])>`)
	anyTagRe      = regexp.MustCompile(`<[^>]*>`)
	multiBlankRe  = regexp.MustCompile(`\n{3,}`)
	trailingWSRe  = regexp.MustCompile(`[ \t]+\n`)
)

// HTMLToText renders an HTML body as plain text: block-level closers become
// newlines, every other tag is dropped, entities are unescaped.
func HTMLToText(s string) string {
	s = headBlockRe.ReplaceAllString(s, "")
	s = styleBlockRe.ReplaceAllString(s, "")
	s = scriptBlockRe.ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")
	s = breakTagRe.ReplaceAllString(s, "\n")
	s = anyTagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingWSRe.ReplaceAllString(s, "\n")
	s = multiBlankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
