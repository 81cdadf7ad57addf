package classify

import "github.com/hostops/concierge/internal/domain"

// OutcomeKind tags the three ways an intent classification can end.
// Low confidence, unknown category, and LLM parse failure are distinct
// states; the action decider branches on the tag.
type OutcomeKind int

const (
	// OutcomeConfident means the classifier stands behind the intent.
	OutcomeConfident OutcomeKind = iota
	// OutcomeAmbiguous carries a best-guess candidate the decider must not
	// act on without a human.
	OutcomeAmbiguous
	// OutcomeFailed means classification itself broke (LLM transport or
	// unparseable output); the candidate is the OTHER fallback.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeConfident:
		return "CONFIDENT"
	case OutcomeAmbiguous:
		return "AMBIGUOUS"
	case OutcomeFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// IntentOutcome is the merged result of the rule and LLM stages.
type IntentOutcome struct {
	Kind       OutcomeKind
	Intent     domain.Intent
	FineIntent string // optional sub-category, "" when none
	Confidence float64
	Reasons    []string // audit trail from both stages, in stage order
}

// Ambiguous reports whether the decider must route this to a human.
func (o IntentOutcome) Ambiguous() bool {
	return o.Kind != OutcomeConfident
}
