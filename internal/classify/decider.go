package classify

import "github.com/hostops/concierge/internal/domain"

// autoReplyIntents are the FAQ-like categories safe to answer from the
// property profile without a human.
var autoReplyIntents = map[domain.Intent]bool{
	domain.IntentCheckinQuestion:   true,
	domain.IntentCheckoutQuestion:  true,
	domain.IntentLocationQuestion:  true,
	domain.IntentAmenityQuestion:   true,
	domain.IntentHouseRuleQuestion: true,
	domain.IntentPetPolicyQuestion: true,
}

// Decide maps an intent outcome to the operator-facing action. Pure and
// total over the closed intent set; rules apply in order, first match wins.
func Decide(outcome IntentOutcome) domain.ActionDecision {
	intent := outcome.Intent

	switch {
	case outcome.Ambiguous() || outcome.Confidence < 0.5:
		return domain.ActionDecision{
			Action:          domain.ActionStaffReview,
			Reason:          "classification is ambiguous or low confidence",
			EscalationLevel: domain.EscalationNone,
		}

	case intent == domain.IntentComplaint:
		return domain.ActionDecision{
			Action:          domain.ActionStaffAlert,
			Reason:          "guest complaint requires immediate staff attention",
			EscalationLevel: domain.EscalationAlert,
			BlockAutoReply:  false,
		}

	case intent == domain.IntentReservationChange || intent == domain.IntentCancellation:
		return domain.ActionDecision{
			Action:          domain.ActionStaffReview,
			Reason:          "booking changes carry money consequences; staff must confirm",
			EscalationLevel: domain.EscalationReview,
		}

	case autoReplyIntents[intent]:
		return domain.ActionDecision{
			Action:        domain.ActionAutoReply,
			Reason:        "FAQ-type question answerable from the property profile",
			AllowAutoSend: true,
		}

	case intent == domain.IntentThanksOrGoodReview:
		return domain.ActionDecision{
			Action:         domain.ActionNoAction,
			Reason:         "courtesy message; replying is optional",
			BlockAutoReply: true,
		}

	case intent == domain.IntentGeneralQuestion:
		return domain.ActionDecision{
			Action: domain.ActionDraftOnly,
			Reason: "open-ended question; draft for operator review",
		}

	default:
		return domain.ActionDecision{
			Action: domain.ActionDraftOnly,
			Reason: "uncategorized message; draft for operator review",
		}
	}
}
