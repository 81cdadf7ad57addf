package domain

import "time"

// Intent is the coarse semantic category of a guest message.
type Intent string

const (
	IntentCheckinQuestion    Intent = "CHECKIN_QUESTION"
	IntentCheckoutQuestion   Intent = "CHECKOUT_QUESTION"
	IntentReservationChange  Intent = "RESERVATION_CHANGE"
	IntentCancellation       Intent = "CANCELLATION"
	IntentComplaint          Intent = "COMPLAINT"
	IntentLocationQuestion   Intent = "LOCATION_QUESTION"
	IntentAmenityQuestion    Intent = "AMENITY_QUESTION"
	IntentPetPolicyQuestion  Intent = "PET_POLICY_QUESTION"
	IntentHouseRuleQuestion  Intent = "HOUSE_RULE_QUESTION"
	IntentGeneralQuestion    Intent = "GENERAL_QUESTION"
	IntentThanksOrGoodReview Intent = "THANKS_OR_GOOD_REVIEW"
	IntentOther              Intent = "OTHER"
)

// AllIntents lists every valid intent, in taxonomy order.
var AllIntents = []Intent{
	IntentCheckinQuestion,
	IntentCheckoutQuestion,
	IntentReservationChange,
	IntentCancellation,
	IntentComplaint,
	IntentLocationQuestion,
	IntentAmenityQuestion,
	IntentPetPolicyQuestion,
	IntentHouseRuleQuestion,
	IntentGeneralQuestion,
	IntentThanksOrGoodReview,
	IntentOther,
}

// IsValid reports whether i is a member of the closed intent set.
func (i Intent) IsValid() bool {
	for _, v := range AllIntents {
		if i == v {
			return true
		}
	}
	return false
}

// LabelSource records who (or what) assigned an intent label.
type LabelSource string

const (
	LabelSystem    LabelSource = "SYSTEM"
	LabelHuman     LabelSource = "HUMAN"
	LabelML        LabelSource = "ML"
	LabelCorrected LabelSource = "CORRECTED"
)

// IntentLabel is one append-only entry in a message's labeling history.
// Rows are never updated or deleted.
type IntentLabel struct {
	ID        string      `json:"id" db:"id"`
	MessageID string      `json:"message_id" db:"message_id"`
	Intent    Intent      `json:"intent" db:"intent"`
	Source    LabelSource `json:"source" db:"source"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// ActionType is the operator-facing outcome decided for a classified message.
type ActionType string

const (
	ActionAutoReply   ActionType = "AUTO_REPLY"
	ActionDraftOnly   ActionType = "DRAFT_ONLY"
	ActionStaffReview ActionType = "STAFF_REVIEW_REQUIRED"
	ActionStaffAlert  ActionType = "STAFF_ALERT"
	ActionNoAction    ActionType = "NO_ACTION"
)

// ActionDecision is the full verdict of the action decider for one message.
type ActionDecision struct {
	Action          ActionType `json:"action"`
	Reason          string     `json:"reason"`
	EscalationLevel int        `json:"escalation_level"`
	AllowAutoSend   bool       `json:"allow_auto_send"`
	BlockAutoReply  bool       `json:"block_auto_reply"`
}

// FAQ keys tag the knowledge fragments a draft was built from. Auto-send
// statistics are kept per (property, FAQ key).
const (
	FAQKeyCheckinInfo  = "CHECKIN_INFO"
	FAQKeyCheckoutInfo = "CHECKOUT_INFO"
	FAQKeyLocationInfo = "LOCATION_INFO"
	FAQKeyAmenityInfo  = "AMENITY_INFO"
	FAQKeyPetPolicy    = "PET_POLICY"
	FAQKeyHouseRules   = "HOUSE_RULES"
	FAQKeyParkingInfo  = "PARKING_INFO"
	FAQKeyGeneralInfo  = "GENERAL_INFO"
)
