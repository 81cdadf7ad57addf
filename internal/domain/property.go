package domain

import (
	"errors"
	"time"
)

// PropertyProfile is the knowledge card for one property: everything the
// reply builder may quote to a guest.
type PropertyProfile struct {
	ID            string         `json:"id" db:"id"`
	PropertyCode  string         `json:"property_code" db:"property_code"`
	GroupCode     *string        `json:"group_code" db:"group_code"`
	Name          string         `json:"name" db:"name"`
	Locale        string         `json:"locale" db:"locale"`
	CheckinFrom   string         `json:"checkin_from" db:"checkin_from"`
	CheckinUntil  string         `json:"checkin_until" db:"checkin_until"`
	CheckoutBy    string         `json:"checkout_by" db:"checkout_by"`
	Address       string         `json:"address" db:"address"`
	AccessGuide   string         `json:"access_guide" db:"access_guide"`
	LocationGuide string         `json:"location_guide" db:"location_guide"`
	SpaceOverview string         `json:"space_overview" db:"space_overview"`
	ParkingPolicy string         `json:"parking_policy" db:"parking_policy"`
	PetPolicy     string         `json:"pet_policy" db:"pet_policy"`
	SmokingPolicy string         `json:"smoking_policy" db:"smoking_policy"`
	NoisePolicy   string         `json:"noise_policy" db:"noise_policy"`
	Amenities     map[string]any `json:"amenities" db:"amenities"`
	HouseRules    []string       `json:"house_rules" db:"house_rules"`
	Metadata      map[string]any `json:"metadata" db:"metadata"`
	Active        bool           `json:"active" db:"active"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// ListingMapping resolves an OTA listing id to an internal property or
// property group. Unique on (OTA, listing id).
type ListingMapping struct {
	ID           string    `json:"id" db:"id"`
	OTA          OTA       `json:"ota" db:"ota"`
	ListingID    string    `json:"listing_id" db:"listing_id"`
	PropertyCode *string   `json:"property_code" db:"property_code"`
	GroupCode    *string   `json:"group_code" db:"group_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ErrUnboundMapping is returned when a listing mapping points at neither a
// property nor a group.
var ErrUnboundMapping = errors.New("listing mapping must carry a property code or a group code")

// Validate enforces the at-least-one-target rule.
func (m *ListingMapping) Validate() error {
	if (m.PropertyCode == nil || *m.PropertyCode == "") &&
		(m.GroupCode == nil || *m.GroupCode == "") {
		return ErrUnboundMapping
	}
	return nil
}

// AnswerEmbedding is one approved (guest question, final answer) pair with
// its embedding vector. Inserted once, never mutated.
type AnswerEmbedding struct {
	ID           string    `json:"id" db:"id"`
	GuestText    string    `json:"guest_text" db:"guest_text"`
	AnswerText   string    `json:"answer_text" db:"answer_text"`
	Embedding    []float64 `json:"-" db:"embedding"`
	PropertyCode *string   `json:"property_code" db:"property_code"`
	WasEdited    bool      `json:"was_edited" db:"was_edited"`
	ThreadRef    *string   `json:"thread_ref" db:"thread_ref"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
