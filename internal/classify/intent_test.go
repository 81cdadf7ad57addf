package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hostops/concierge/internal/domain"
)

type fakeLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Chat(ctx context.Context, system, user string, temperature float64) (string, error) {
	f.calls++
	return f.reply, f.err
}

func TestRuleStage(t *testing.T) {
	tests := []struct {
		name       string
		segment    string
		wantIntent domain.Intent
		wantFine   string
		minConf    float64
	}{
		{"korean checkin time question", "체크인 몇 시부터 가능한가요?", domain.IntentCheckinQuestion, "", 0.7},
		{"english early checkin", "Could we do an early check-in around noon?", domain.IntentCheckinQuestion, "EARLY_CHECKIN", 0.7},
		{"late checkout", "Is late check-out possible? Our flight leaves at 9pm.", domain.IntentCheckoutQuestion, "LATE_CHECKOUT", 0.7},
		{"complaint beats amenity keywords", "The bathroom is filthy and the AC is broken.", domain.IntentComplaint, "", 0.85},
		{"cancellation", "I need to cancel my booking and get a refund.", domain.IntentCancellation, "", 0.7},
		{"korean date change", "예약 날짜 변경하고 싶어요. 가능할까요?", domain.IntentReservationChange, "", 0.7},
		{"pet policy", "반려동물 동반 가능한가요? 강아지 한 마리예요.", domain.IntentPetPolicyQuestion, "", 0.7},
		{"location from airport", "How do I get there from the airport?", domain.IntentLocationQuestion, "", 0.7},
		{"wifi amenity", "와이파이 비밀번호가 어떻게 되나요?", domain.IntentAmenityQuestion, "", 0.7},
		{"parking maps to amenity with fine intent", "Is parking available at the building?", domain.IntentAmenityQuestion, "PARKING", 0.7},
		{"house rules smoking", "Is smoking allowed on the balcony?", domain.IntentHouseRuleQuestion, "", 0.7},
		{"thanks", "Thank you so much, we had a great stay!", domain.IntentThanksOrGoodReview, "", 0.7},
		{"bare question falls to general", "Do you have any recommendations?", domain.IntentGeneralQuestion, "", 0.5},
		{"no signal falls to other", "asdf qwerty", domain.IntentOther, "", 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ruleClassify(Input{GuestSegment: tt.segment})
			assert.Equal(t, tt.wantIntent, got.intent)
			assert.Equal(t, tt.wantFine, got.fine)
			assert.GreaterOrEqual(t, got.conf, tt.minConf)
		})
	}
}

// With the LLM stage stubbed out the classifier must be a pure function:
// same inputs, same output, every time.
func TestClassify_DeterministicWithoutLLM(t *testing.T) {
	c := NewIntentClassifier(nil)
	in := Input{GuestSegment: "체크인 몇 시부터 가능한가요?", Subject: "Airbnb: new message"}

	first := c.Classify(context.Background(), in)
	assert.Equal(t, domain.IntentCheckinQuestion, first.Intent)
	assert.Equal(t, OutcomeConfident, first.Kind)
	assert.GreaterOrEqual(t, first.Confidence, 0.7)

	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Classify(context.Background(), in))
	}
}

func TestClassify_ConfidentRuleSkipsLLM(t *testing.T) {
	stub := &fakeLLM{reply: `{"intent":"OTHER","confidence":0.9}`}
	c := NewIntentClassifier(stub)

	out := c.Classify(context.Background(), Input{GuestSegment: "The bathroom is filthy and the AC is broken."})
	assert.Equal(t, domain.IntentComplaint, out.Intent)
	assert.Zero(t, stub.calls)
}

func TestClassify_LLMResolvesOther(t *testing.T) {
	stub := &fakeLLM{reply: `{"intent":"LOCATION_QUESTION","confidence":0.85,"reasons":["asks how to find the building"]}`}
	c := NewIntentClassifier(stub)

	out := c.Classify(context.Background(), Input{GuestSegment: "We are a bit lost, the alley looks different from the photos"})
	assert.Equal(t, domain.IntentLocationQuestion, out.Intent)
	assert.Equal(t, OutcomeConfident, out.Kind)
	assert.InDelta(t, 0.85, out.Confidence, 0.001)
	assert.Equal(t, 1, stub.calls)
	assert.Contains(t, out.Reasons[len(out.Reasons)-1], "llm:")
}

func TestClassify_LLMFenceAndFuzzIsTolerated(t *testing.T) {
	stub := &fakeLLM{reply: "```json\n{\"intent\":\"amenity_question\",\"confidence\":0.8}\n```"}
	c := NewIntentClassifier(stub)

	out := c.Classify(context.Background(), Input{GuestSegment: "hmm quick thing about the place"})
	assert.Equal(t, domain.IntentAmenityQuestion, out.Intent)
}

func TestClassify_DisagreementAtLowConfidenceIsAmbiguous(t *testing.T) {
	stub := &fakeLLM{reply: `{"intent":"HOUSE_RULE_QUESTION","confidence":0.6}`}
	c := NewIntentClassifier(stub)

	// Rule stage sees a bare question (GENERAL_QUESTION, 0.5); the LLM
	// disagrees at 0.6. Both are under the threshold.
	out := c.Classify(context.Background(), Input{GuestSegment: "Would that be okay for us?"})
	assert.Equal(t, OutcomeAmbiguous, out.Kind)
	assert.Equal(t, domain.IntentHouseRuleQuestion, out.Intent)
}

func TestClassify_LLMFailureDegrades(t *testing.T) {
	tests := []struct {
		name string
		stub *fakeLLM
	}{
		{"transport error", &fakeLLM{err: errors.New("connection refused")}},
		{"non-json reply", &fakeLLM{reply: "I think the guest wants to check in early."}},
		{"unknown intent name", &fakeLLM{reply: `{"intent":"SOMETHING_ELSE","confidence":0.9}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewIntentClassifier(tt.stub)
			out := c.Classify(context.Background(), Input{GuestSegment: "zzzz"})
			assert.Equal(t, OutcomeFailed, out.Kind)
			assert.Equal(t, domain.IntentOther, out.Intent)
			assert.InDelta(t, 0.3, out.Confidence, 0.001)
			assert.True(t, out.Ambiguous())
		})
	}
}
