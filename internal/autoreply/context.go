package autoreply

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hostops/concierge/internal/domain"
)

// Section is one knowledge fragment offered to the reply drafter, tagged
// with the FAQ key the auto-send gate tracks it under.
type Section struct {
	Title  string
	Text   string
	FAQKey string
}

// ReplyContext is the bundle a draft is built from: the guest's own words,
// thread coordinates, and a per-intent projection of the property profile.
type ReplyContext struct {
	Intent       domain.Intent
	FineIntent   string
	Locale       string
	ThreadID     string
	GuestSegment string
	GuestName    string
	PropertyCode string
	PropertyName string
	Sections     []Section
}

// FAQKeys returns the distinct keys of the projected sections, in section
// order. The gate is consulted with exactly this set.
func (c *ReplyContext) FAQKeys() []string {
	seen := make(map[string]bool, len(c.Sections))
	var keys []string
	for _, s := range c.Sections {
		if s.FAQKey == "" || seen[s.FAQKey] {
			continue
		}
		seen[s.FAQKey] = true
		keys = append(keys, s.FAQKey)
	}
	return keys
}

// PromptBlock renders the sections as plain text for prompt insertion.
func (c *ReplyContext) PromptBlock() string {
	if len(c.Sections) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Property information:\n")
	for _, s := range c.Sections {
		fmt.Fprintf(&b, "- %s: %s\n", s.Title, s.Text)
	}
	return b.String()
}

// BuildContext projects the property profile for one intent. profile may be
// nil (unmapped listing); the bundle then carries only the message fields
// and the gate sees no keys.
func BuildContext(profile *domain.PropertyProfile, m *domain.Message, intent domain.Intent, fineIntent, locale string) *ReplyContext {
	c := &ReplyContext{
		Intent:       intent,
		FineIntent:   fineIntent,
		Locale:       locale,
		ThreadID:     m.ThreadID,
		GuestSegment: m.GuestSegment,
	}
	if m.GuestName != nil {
		c.GuestName = *m.GuestName
	}
	if profile == nil {
		return c
	}

	c.PropertyCode = profile.PropertyCode
	c.PropertyName = profile.Name
	if c.Locale == "" {
		c.Locale = profile.Locale
	}

	add := func(title, text, key string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		c.Sections = append(c.Sections, Section{Title: title, Text: text, FAQKey: key})
	}
	checkinWindow := func() {
		if profile.CheckinFrom != "" {
			add("Check-in window",
				fmt.Sprintf("from %s until %s", profile.CheckinFrom, profile.CheckinUntil),
				domain.FAQKeyCheckinInfo)
		}
	}
	checkoutBy := func() {
		add("Check-out by", profile.CheckoutBy, domain.FAQKeyCheckoutInfo)
	}
	houseRules := func() {
		add("House rules", strings.Join(profile.HouseRules, "; "), domain.FAQKeyHouseRules)
	}
	amenities := func() {
		add("Amenities", flattenAmenities(profile.Amenities), domain.FAQKeyAmenityInfo)
	}

	switch intent {
	case domain.IntentCheckinQuestion:
		checkinWindow()
		add("Access guide", profile.AccessGuide, domain.FAQKeyCheckinInfo)
		add("Getting there", profile.LocationGuide, domain.FAQKeyLocationInfo)
		houseRules()
	case domain.IntentCheckoutQuestion:
		checkoutBy()
		houseRules()
	case domain.IntentPetPolicyQuestion:
		add("Pet policy", profile.PetPolicy, domain.FAQKeyPetPolicy)
		houseRules()
	case domain.IntentLocationQuestion:
		add("Address", profile.Address, domain.FAQKeyLocationInfo)
		add("Getting there", profile.LocationGuide, domain.FAQKeyLocationInfo)
		amenities()
	case domain.IntentAmenityQuestion:
		if fineIntent == "PARKING" {
			add("Parking", profile.ParkingPolicy, domain.FAQKeyParkingInfo)
		}
		amenities()
		add("The space", profile.SpaceOverview, domain.FAQKeyAmenityInfo)
	case domain.IntentHouseRuleQuestion:
		houseRules()
		add("Smoking", profile.SmokingPolicy, domain.FAQKeyHouseRules)
		add("Noise", profile.NoisePolicy, domain.FAQKeyHouseRules)
	default:
		// Broad projection for general and unclassified questions.
		add("About the place", profile.SpaceOverview, domain.FAQKeyGeneralInfo)
		checkinWindow()
		checkoutBy()
		add("Address", profile.Address, domain.FAQKeyLocationInfo)
		amenities()
		houseRules()
	}
	return c
}

// flattenAmenities renders the amenity map as "name" or "name: detail"
// items, sorted for stable prompts.
func flattenAmenities(amenities map[string]any) string {
	if len(amenities) == 0 {
		return ""
	}
	items := make([]string, 0, len(amenities))
	for name, v := range amenities {
		switch val := v.(type) {
		case bool:
			if val {
				items = append(items, name)
			}
		case string:
			if val != "" {
				items = append(items, name+": "+val)
			}
		default:
			items = append(items, fmt.Sprintf("%s: %v", name, v))
		}
	}
	sort.Strings(items)
	return strings.Join(items, ", ")
}
