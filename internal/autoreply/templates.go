package autoreply

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/hostops/concierge/internal/domain"
)

// ErrNoTemplate is returned when no template covers the (intent, locale)
// pair or the profile lacks the fact the template is built around.
var ErrNoTemplate = errors.New("no reply template for intent and locale")

// templateDef pairs the Liquid source with the binding the template cannot
// do without. Rendering with that binding empty would produce a reply that
// promises nothing, so the lookup misses instead.
type templateDef struct {
	source   string
	requires string
}

// Reply templates per (intent, locale). Korean properties are the primary
// market; English covers the rest.
var templateSources = map[domain.Intent]map[string]templateDef{
	domain.IntentCheckinQuestion: {
		"ko": {
			requires: "checkin_from",
			source: `{{ guest_name | default: "게스트" }}님, 안녕하세요!
체크인은 {{ checkin_from }}부터 {{ checkin_until }}까지 가능합니다.
{%- if access_guide != "" %}
{{ access_guide }}
{%- endif %}
더 궁금하신 점이 있으면 언제든 편하게 문의해 주세요. 감사합니다!`,
		},
		"en": {
			requires: "checkin_from",
			source: `Hello {{ guest_name | default: "there" }}!
Check-in is available from {{ checkin_from }} until {{ checkin_until }}.
{%- if access_guide != "" %}
{{ access_guide }}
{%- endif %}
Please let us know if there is anything else we can help with. Thank you!`,
		},
	},
	domain.IntentCheckoutQuestion: {
		"ko": {
			requires: "checkout_by",
			source: `{{ guest_name | default: "게스트" }}님, 안녕하세요!
체크아웃은 {{ checkout_by }}까지입니다. 퇴실 시 문만 닫아 주시면 됩니다.
이용해 주셔서 감사합니다. 편안한 남은 일정 되세요!`,
		},
		"en": {
			requires: "checkout_by",
			source: `Hello {{ guest_name | default: "there" }}!
Check-out is by {{ checkout_by }}. Just close the door behind you on the way out.
Thank you for staying with us, and enjoy the rest of your trip!`,
		},
	},
	domain.IntentLocationQuestion: {
		"ko": {
			requires: "address",
			source: `{{ guest_name | default: "게스트" }}님, 안녕하세요!
숙소 주소는 {{ address }}입니다.
{%- if location_guide != "" %}
{{ location_guide }}
{%- endif %}
오시는 길에 어려움이 있으면 언제든 연락 주세요. 감사합니다!`,
		},
		"en": {
			requires: "address",
			source: `Hello {{ guest_name | default: "there" }}!
The address is {{ address }}.
{%- if location_guide != "" %}
{{ location_guide }}
{%- endif %}
Feel free to reach out if you have trouble finding us. Thank you!`,
		},
	},
	domain.IntentAmenityQuestion: {
		"ko": {
			requires: "amenities",
			source: `{{ guest_name | default: "게스트" }}님, 안녕하세요!
숙소에는 다음 시설이 준비되어 있습니다: {{ amenities }}.
{%- if space_overview != "" %}
{{ space_overview }}
{%- endif %}
추가로 궁금하신 점이 있으면 말씀해 주세요. 감사합니다!`,
		},
		"en": {
			requires: "amenities",
			source: `Hello {{ guest_name | default: "there" }}!
The place offers: {{ amenities }}.
{%- if space_overview != "" %}
{{ space_overview }}
{%- endif %}
Let us know if you have any other questions. Thank you!`,
		},
	},
	domain.IntentPetPolicyQuestion: {
		"ko": {
			requires: "pet_policy",
			source: `{{ guest_name | default: "게스트" }}님, 안녕하세요!
반려동물 관련 안내드립니다: {{ pet_policy }}
더 궁금하신 점이 있으면 언제든 문의해 주세요. 감사합니다!`,
		},
		"en": {
			requires: "pet_policy",
			source: `Hello {{ guest_name | default: "there" }}!
About pets: {{ pet_policy }}
Please let us know if you have any further questions. Thank you!`,
		},
	},
	domain.IntentHouseRuleQuestion: {
		"ko": {
			requires: "house_rules",
			source: `{{ guest_name | default: "게스트" }}님, 안녕하세요!
숙소 이용 규칙을 안내드립니다: {{ house_rules }}
협조해 주셔서 감사합니다. 편안한 숙박 되세요!`,
		},
		"en": {
			requires: "house_rules",
			source: `Hello {{ guest_name | default: "there" }}!
A quick note on the house rules: {{ house_rules }}
Thanks for your understanding, and enjoy your stay!`,
		},
	},
}

// Templates renders reply templates with a shared Liquid engine. Parsed
// templates are cached per (intent, locale).
type Templates struct {
	engine *liquid.Engine
	cache  sync.Map // "<intent>|<locale>" → *liquid.Template
}

// NewTemplates builds the template renderer.
func NewTemplates() *Templates {
	return &Templates{engine: liquid.NewEngine()}
}

// Render looks up the template for (intent, locale) and renders it against
// the context bundle. Unknown locales fall back to English before giving up
// with ErrNoTemplate.
func (t *Templates) Render(c *ReplyContext) (string, error) {
	byLocale, ok := templateSources[c.Intent]
	if !ok {
		return "", ErrNoTemplate
	}
	locale := normalizeLocale(c.Locale)
	def, ok := byLocale[locale]
	if !ok {
		if def, ok = byLocale["en"]; !ok {
			return "", ErrNoTemplate
		}
		locale = "en"
	}

	bindings := c.bindings()
	if v, _ := bindings[def.requires].(string); strings.TrimSpace(v) == "" {
		return "", ErrNoTemplate
	}

	tpl, err := t.parse(string(c.Intent)+"|"+locale, def.source)
	if err != nil {
		return "", err
	}
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("rendering %s/%s template: %w", c.Intent, locale, err)
	}
	return strings.TrimSpace(out), nil
}

func (t *Templates) parse(key, source string) (*liquid.Template, error) {
	if cached, ok := t.cache.Load(key); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := t.engine.ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s template: %w", key, err)
	}
	t.cache.Store(key, tpl)
	return tpl, nil
}

// bindings flattens the bundle into Liquid variables. Section text wins over
// nothing: every variable is present, possibly empty, so templates can use
// {% if %} guards without strict-mode surprises.
func (c *ReplyContext) bindings() map[string]any {
	b := map[string]any{
		"guest_name":     c.GuestName,
		"property_name":  c.PropertyName,
		"guest_message":  c.GuestSegment,
		"checkin_from":   "",
		"checkin_until":  "",
		"checkout_by":    "",
		"address":        "",
		"access_guide":   "",
		"location_guide": "",
		"space_overview": "",
		"amenities":      "",
		"house_rules":    "",
		"pet_policy":     "",
		"parking_policy": "",
	}
	for _, s := range c.Sections {
		switch s.Title {
		case "Check-in window":
			// Stored as "from X until Y"; split back for the templates.
			var from, until string
			if _, err := fmt.Sscanf(s.Text, "from %s until %s", &from, &until); err == nil {
				b["checkin_from"] = from
				b["checkin_until"] = until
			}
		case "Check-out by":
			b["checkout_by"] = s.Text
		case "Address":
			b["address"] = s.Text
		case "Access guide":
			b["access_guide"] = s.Text
		case "Getting there":
			b["location_guide"] = s.Text
		case "The space", "About the place":
			b["space_overview"] = s.Text
		case "Amenities":
			b["amenities"] = s.Text
		case "House rules":
			b["house_rules"] = s.Text
		case "Pet policy":
			b["pet_policy"] = s.Text
		case "Parking":
			b["parking_policy"] = s.Text
		}
	}
	return b
}

// GenericFallback is the last-resort reply when both the LLM and the
// template table come up empty. It commits to nothing property-specific.
func GenericFallback(locale string) string {
	if normalizeLocale(locale) == "ko" {
		return "안녕하세요, 메시지 잘 받았습니다. 문의 주신 내용은 담당자가 확인한 뒤 빠르게 안내드리겠습니다. 조금만 기다려 주세요. 감사합니다!"
	}
	return "Hello, thank you for your message. Our team has received your inquiry and will get back to you shortly. Thank you for your patience!"
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	if locale == "" {
		return "en"
	}
	return locale
}
