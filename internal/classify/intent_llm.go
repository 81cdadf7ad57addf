package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hostops/concierge/internal/domain"
)

// llmResult is the LLM stage's parsed verdict.
type llmResult struct {
	intent  domain.Intent
	conf    float64
	reasons []string
}

type llmVerdict struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

const classifySystemPrompt = `You classify guest messages sent to a short-term-rental host.
Reply with a single JSON object and nothing else:
{"intent": "<INTENT>", "confidence": <0..1>, "reasons": ["..."]}
INTENT must be exactly one of:
%s
Messages may be in Korean, English, or mixed. Judge only the guest's request, not platform boilerplate.`

// llmClassify asks the model for an intent verdict and parses it strictly.
// Any transport failure or non-JSON reply is an error; the caller degrades.
func (c *IntentClassifier) llmClassify(ctx context.Context, in Input) (llmResult, error) {
	system := fmt.Sprintf(classifySystemPrompt, strings.Join(intentNames(), "\n"))
	user := fmt.Sprintf("Subject: %s\n\nMessage:\n%s", in.Subject, in.GuestSegment)

	raw, err := c.llm.Chat(ctx, system, user, 0.0)
	if err != nil {
		return llmResult{}, err
	}

	var v llmVerdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &v); err != nil {
		return llmResult{}, fmt.Errorf("unparseable llm verdict: %w", err)
	}

	intent := domain.Intent(strings.ToUpper(strings.TrimSpace(v.Intent)))
	if !intent.IsValid() {
		return llmResult{}, fmt.Errorf("llm returned unknown intent %q", v.Intent)
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}

	reasons := make([]string, 0, len(v.Reasons))
	for _, r := range v.Reasons {
		reasons = append(reasons, "llm: "+r)
	}
	return llmResult{intent: intent, conf: v.Confidence, reasons: reasons}, nil
}

func intentNames() []string {
	names := make([]string, 0, len(domain.AllIntents))
	for _, i := range domain.AllIntents {
		names = append(names, string(i))
	}
	return names
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one, and trims to the outermost object.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
