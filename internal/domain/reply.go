package domain

import "time"

// GenerationMode records how a reply draft was produced.
type GenerationMode string

const (
	GenTemplate       GenerationMode = "TEMPLATE"
	GenLLM            GenerationMode = "LLM"
	GenLLMWithFewshot GenerationMode = "LLM_WITH_FEWSHOT"
	GenFallback       GenerationMode = "FALLBACK"
)

// SendMode says whether a draft may go out without operator review.
type SendMode string

const (
	SendAutopilot SendMode = "AUTOPILOT"
	SendHITL      SendMode = "HITL"
)

// AutoReplyLog is one auto-reply suggestion produced for a message.
// Immutable after insert except for the sent/edited fields, which only
// transition forward.
type AutoReplyLog struct {
	ID               string         `json:"id" db:"id"`
	MessageID        string         `json:"message_id" db:"message_id"`
	PropertyCode     *string        `json:"property_code" db:"property_code"`
	OTA              OTA            `json:"ota" db:"ota"`
	Intent           Intent         `json:"intent" db:"intent"`
	FineIntent       *string        `json:"fine_intent" db:"fine_intent"`
	IntentConfidence float64        `json:"intent_confidence" db:"intent_confidence"`
	GenerationMode   GenerationMode `json:"generation_mode" db:"generation_mode"`
	ReplyText        string         `json:"reply_text" db:"reply_text"`
	SendMode         SendMode       `json:"send_mode" db:"send_mode"`
	FAQKeys          []string       `json:"faq_keys" db:"faq_keys"`
	AllowAutoSend    bool           `json:"allow_auto_send" db:"allow_auto_send"`
	Sent             bool           `json:"sent" db:"sent"`
	SentAt           *time.Time     `json:"sent_at" db:"sent_at"`
	Edited           bool           `json:"edited" db:"edited"`
	EditedText       *string        `json:"edited_text" db:"edited_text"`
	FailureReason    *string        `json:"failure_reason" db:"failure_reason"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// FinalText returns the text the guest actually saw (or would see): the
// operator's edit when present, otherwise the generated draft.
func (l *AutoReplyLog) FinalText() string {
	if l.Edited && l.EditedText != nil && *l.EditedText != "" {
		return *l.EditedText
	}
	return l.ReplyText
}
