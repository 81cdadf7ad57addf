package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/llm"
)

// llmThreshold is the rule-stage confidence under which the LLM stage is
// consulted.
const llmThreshold = 0.7

// Input is everything the intent classifier looks at.
type Input struct {
	GuestSegment string
	Subject      string
	Snippet      string
}

// IntentClassifier is the two-stage hybrid. A nil LLM client disables the
// second stage, leaving a pure function of the input (rule-only mode).
type IntentClassifier struct {
	llm llm.Client
}

// NewIntentClassifier builds the classifier. client may be nil.
func NewIntentClassifier(client llm.Client) *IntentClassifier {
	return &IntentClassifier{llm: client}
}

// Classify runs the rule stage, consults the LLM when the rules are unsure,
// and merges the two verdicts. It never writes anywhere.
func (c *IntentClassifier) Classify(ctx context.Context, in Input) IntentOutcome {
	rule := ruleClassify(in)

	if c.llm == nil || (rule.conf >= llmThreshold && rule.intent != domain.IntentOther) {
		return outcomeFromRule(rule)
	}

	llmOut, err := c.llmClassify(ctx, in)
	if err != nil {
		// Classification failure degrades to the documented floor; the
		// decider routes it to staff review.
		out := outcomeFromRule(rule)
		if rule.intent == domain.IntentOther || rule.conf < 0.5 {
			out = IntentOutcome{
				Kind:       OutcomeFailed,
				Intent:     domain.IntentOther,
				Confidence: 0.3,
			}
		} else {
			out.Kind = OutcomeAmbiguous
		}
		out.Reasons = append(rule.reasons, "llm stage failed: "+err.Error())
		return out
	}

	return merge(rule, llmOut)
}

// ruleResult is the rule stage's candidate.
type ruleResult struct {
	intent  domain.Intent
	fine    string
	conf    float64
	reasons []string
}

// intentRule is one priority-ordered keyword rule. The first rule whose
// pattern matches wins; later rules never override.
type intentRule struct {
	intent     domain.Intent
	fine       string
	confidence float64
	pattern    *regexp.Regexp
}

// Rules are ordered by specificity: escalation-bearing intents first so a
// broken amenity reads as a complaint, not an amenity question.
var intentRules = []intentRule{
	{domain.IntentComplaint, "", 0.9,
		regexp.MustCompile(`(?i)filthy|dirty|broken|not work|doesn'?t work|no hot water|leak|bed ?bug|cockroach|refund me|terrible|unacceptable|더럽|더러워|고장|작동(?:을|이)?\s*안|벌레|바퀴|불만|최악|냄새가? 나`)},
	{domain.IntentCancellation, "", 0.85,
		regexp.MustCompile(`(?i)cancel|cancellation|refund|취소|환불`)},
	{domain.IntentReservationChange, "", 0.85,
		regexp.MustCompile(`(?i)change (?:my )?(?:reservation|booking|dates?)|reschedule|extend (?:my|the) stay|add (?:a|one more) night|날짜.{0,6}변경|예약.{0,6}변경|변경하고 싶|연장하고 싶|하루 더`)},
	{domain.IntentPetPolicyQuestion, "", 0.85,
		regexp.MustCompile(`(?i)\bpets?\b|\bdogs?\b|\bcats?\b|pet[- ]?friendly|반려\s*동물|반려견|강아지|고양이|애완`)},
	{domain.IntentCheckinQuestion, "EARLY_CHECKIN", 0.85,
		regexp.MustCompile(`(?i)early check[- ]?in|check[- ]?in earlier|얼리\s*체크인|일찍\s*체크인|체크인.{0,10}(?:일찍|빨리|당겨)`)},
	{domain.IntentCheckinQuestion, "", 0.85,
		regexp.MustCompile(`(?i)check[- ]?in|self check|key ?(?:code|box)|door ?code|access code|체크인|입실|현관\s*비밀번호|출입|도어락|키박스`)},
	{domain.IntentCheckoutQuestion, "LATE_CHECKOUT", 0.85,
		regexp.MustCompile(`(?i)late check[- ]?out|check[- ]?out later|레이트\s*체크아웃|늦은\s*체크아웃|체크아웃.{0,10}(?:늦게|미뤄|연장)`)},
	{domain.IntentCheckoutQuestion, "", 0.85,
		regexp.MustCompile(`(?i)check[- ]?out|체크아웃|퇴실`)},
	{domain.IntentLocationQuestion, "", 0.8,
		regexp.MustCompile(`(?i)how (?:do|can) (?:i|we) get|directions?|address|where (?:is|exactly)|from the airport|nearest (?:station|subway)|주소|위치|오시는 길|찾아가|어떻게 가|가는 법|공항에서|역에서`)},
	{domain.IntentPetPolicyQuestion, "", 0.8,
		regexp.MustCompile(`(?i)bring (?:my|a) (?:dog|cat|pet)`)},
	{domain.IntentHouseRuleQuestion, "", 0.8,
		regexp.MustCompile(`(?i)house rules?|smok(?:e|ing)|party|extra guests?|more guests?|visitors? allowed|quiet hours?|규칙|흡연|담배|파티|인원\s*추가|추가\s*인원|방문객`)},
	{domain.IntentAmenityQuestion, "PARKING", 0.8,
		regexp.MustCompile(`(?i)parking|park (?:my|a|the) car|주차`)},
	{domain.IntentAmenityQuestion, "", 0.8,
		regexp.MustCompile(`(?i)wi[- ]?fi|wifi|internet|towels?|hair ?dryer|washer|laundry|dryer|kitchen|microwave|air ?condition|\ba\.?c\.?\b|heating|crib|iron\b|와이파이|인터넷|수건|드라이기|세탁기|주방|전자레인지|에어컨|난방|다리미|아기\s*침대`)},
	{domain.IntentThanksOrGoodReview, "", 0.8,
		regexp.MustCompile(`(?i)thank(?:s| you)|had a great (?:stay|time)|wonderful stay|loved (?:the|our) stay|will come again|감사합니다|감사해요|고맙습니다|잘 지냈|잘 쉬었|잘 묵었|좋았어요|최고였`)},
}

var questionRe = regexp.MustCompile(`(?i)\?|(?:나요|까요|가요|어요|나여|habnida)\s*$|^(?:what|when|where|how|is|are|can|could|do|does)\b`)

// ruleClassify scans the guest segment first, then subject and snippet.
func ruleClassify(in Input) ruleResult {
	primary := in.GuestSegment
	secondary := in.Subject + "\n" + in.Snippet

	for _, r := range intentRules {
		if r.pattern.MatchString(primary) {
			return ruleResult{r.intent, r.fine, r.confidence, []string{"rule match in guest segment: " + string(r.intent)}}
		}
	}
	for _, r := range intentRules {
		if r.pattern.MatchString(secondary) {
			// Subject/snippet evidence is weaker than segment evidence.
			return ruleResult{r.intent, r.fine, r.confidence - 0.15, []string{"rule match in subject/snippet: " + string(r.intent)}}
		}
	}

	if questionRe.MatchString(strings.TrimSpace(primary)) {
		return ruleResult{domain.IntentGeneralQuestion, "", 0.5, []string{"question form with no category keyword"}}
	}
	return ruleResult{domain.IntentOther, "", 0.3, []string{"no rule matched"}}
}

func outcomeFromRule(r ruleResult) IntentOutcome {
	kind := OutcomeConfident
	if r.conf < 0.5 {
		kind = OutcomeAmbiguous
	}
	return IntentOutcome{
		Kind:       kind,
		Intent:     r.intent,
		FineIntent: r.fine,
		Confidence: r.conf,
		Reasons:    r.reasons,
	}
}

// merge keeps the higher-confidence verdict. Disagreement with both sides
// unsure marks the outcome ambiguous per the decider's contract.
func merge(rule ruleResult, llmOut llmResult) IntentOutcome {
	out := IntentOutcome{Kind: OutcomeConfident}

	if llmOut.conf >= rule.conf {
		out.Intent = llmOut.intent
		out.Confidence = llmOut.conf
		out.FineIntent = rule.fine // the LLM stage carries no fine taxonomy
		if llmOut.intent != rule.intent {
			out.FineIntent = ""
		}
	} else {
		out.Intent = rule.intent
		out.FineIntent = rule.fine
		out.Confidence = rule.conf
	}

	if rule.intent != llmOut.intent && rule.conf <= llmThreshold && llmOut.conf <= llmThreshold {
		out.Kind = OutcomeAmbiguous
	}
	if out.Confidence < 0.5 {
		out.Kind = OutcomeAmbiguous
	}

	out.Reasons = append(append([]string{}, rule.reasons...), llmOut.reasons...)
	return out
}
