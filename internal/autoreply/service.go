package autoreply

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostops/concierge/internal/autosend"
	"github.com/hostops/concierge/internal/classify"
	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/embedding"
	"github.com/hostops/concierge/internal/events"
	"github.com/hostops/concierge/internal/llm"
	"github.com/hostops/concierge/internal/mailbox"
	"github.com/hostops/concierge/internal/notify"
	"github.com/hostops/concierge/internal/pkg/logger"
	"github.com/hostops/concierge/internal/service/inbox"
)

// LogFilter narrows the auto-reply log listing.
type LogFilter struct {
	PropertyCode string
	OTA          domain.OTA
	Limit        int
}

// LogRepository is the persistence contract for auto-reply logs. Rows are
// insert-once; only the sent/edited fields transition, and only forward.
type LogRepository interface {
	Create(ctx context.Context, l *domain.AutoReplyLog) error
	Get(ctx context.Context, id string) (*domain.AutoReplyLog, error)
	// LatestForMessage returns the newest log for a message, or ErrLogNotFound.
	LatestForMessage(ctx context.Context, messageID string) (*domain.AutoReplyLog, error)
	List(ctx context.Context, f LogFilter) ([]domain.AutoReplyLog, error)
	MarkSent(ctx context.Context, id string) error
	MarkSendFailed(ctx context.Context, id, reason string) error
	MarkEdited(ctx context.Context, id, editedText string) error
}

// ProfileStore resolves listings and loads property knowledge cards.
type ProfileStore interface {
	// GetProfile returns the active profile or ErrProfileNotFound.
	GetProfile(ctx context.Context, propertyCode string) (*domain.PropertyProfile, error)
	ResolveListing(ctx context.Context, ota domain.OTA, listingID string) (*domain.ListingMapping, error)
}

// Sender delivers a composed RFC 5322 reply into the guest's thread.
// mailbox.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, raw []byte, threadID string) (string, error)
}

// SuggestOptions are the per-request knobs of Suggest.
type SuggestOptions struct {
	// Force drafts again even when a log already exists for the message.
	Force bool
	// UseLLM overrides the service default when non-nil.
	UseLLM *bool
	// Locale overrides the profile locale.
	Locale string
	// PropertyCode overrides listing resolution.
	PropertyCode string
}

// Options wires the auto-reply service. Embeddings, LLM, Sender, Hub and
// Notifier may each be nil; the service degrades accordingly (no few-shot,
// template-only drafting, no autopilot, no events, no staff paging).
type Options struct {
	Inbox           *inbox.Service
	Logs            LogRepository
	Profiles        ProfileStore
	Classifier      *classify.IntentClassifier
	Gate            *autosend.Gate
	Embeddings      *embedding.Store
	LLM             llm.Client
	Templates       *Templates
	Sender          Sender
	Hub             *events.Hub
	Notifier        *notify.Service
	OperatorAddress string
	DefaultLocale   string
	UseLLM          bool
}

// Service drafts auto-replies for classified guest messages and decides,
// together with the auto-send gate, whether they go out unattended.
type Service struct {
	opts Options

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService builds the auto-reply orchestrator.
func NewService(opts Options) *Service {
	if opts.Templates == nil {
		opts.Templates = NewTemplates()
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "ko"
	}
	return &Service{opts: opts, inflight: make(map[string]struct{})}
}

// Suggest drafts (or returns the existing) auto-reply for one message.
// Returns (nil, nil) when the message is not a guest inquiry awaiting a
// reply. At most one draft per message id runs at a time.
func (s *Service) Suggest(ctx context.Context, messageID string, opts SuggestOptions) (*domain.AutoReplyLog, error) {
	release, ok := s.acquire(messageID)
	if !ok {
		return nil, ErrDraftInProgress
	}
	defer release()

	m, err := s.opts.Inbox.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !m.AwaitsReply() {
		return nil, nil
	}

	if !opts.Force {
		existing, err := s.opts.Logs.LatestForMessage(ctx, m.ID)
		switch {
		case err == nil:
			return existing, nil
		case !errors.Is(err, ErrLogNotFound):
			return nil, fmt.Errorf("looking up existing log: %w", err)
		}
	}

	outcome, err := s.resolveIntent(ctx, m)
	if err != nil {
		return nil, err
	}
	decision := classify.Decide(outcome)

	propertyCode := s.resolveProperty(ctx, m, opts.PropertyCode)
	profile := s.loadProfile(ctx, propertyCode)
	locale := s.pickLocale(opts.Locale, profile)

	if decision.BlockAutoReply {
		l := s.newLog(m, outcome, propertyCode, domain.GenFallback, GenericFallback(locale), nil, false)
		if err := s.opts.Logs.Create(ctx, l); err != nil {
			return nil, fmt.Errorf("persisting blocked suggestion: %w", err)
		}
		s.broadcast("auto-reply blocked")
		return l, nil
	}

	bundle := BuildContext(profile, m, outcome.Intent, outcome.FineIntent, locale)
	text, mode, degraded := s.draft(ctx, bundle, opts.UseLLM)
	faqKeys := bundle.FAQKeys()

	eligible := s.gateEligible(ctx, propertyCode, faqKeys)
	autopilot := decision.AllowAutoSend && eligible && !degraded && s.opts.Sender != nil

	l := s.newLog(m, outcome, propertyCode, mode, text, faqKeys, decision.AllowAutoSend && eligible)
	if autopilot {
		l.SendMode = domain.SendAutopilot
	}
	if err := s.opts.Logs.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("persisting suggestion: %w", err)
	}

	if autopilot {
		s.sendReply(ctx, m, l)
	}
	if decision.Action == domain.ActionStaffReview || decision.Action == domain.ActionStaffAlert {
		s.raiseNotification(ctx, m, decision)
	}
	s.broadcast("auto-reply drafted")
	return l, nil
}

// Get returns one log by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.AutoReplyLog, error) {
	return s.opts.Logs.Get(ctx, id)
}

// List returns recent logs for guest messages that needed a reply.
func (s *Service) List(ctx context.Context, f LogFilter) ([]domain.AutoReplyLog, error) {
	return s.opts.Logs.List(ctx, f)
}

// Approve records operator approval of a draft: the gate statistics for
// every FAQ key the draft used move toward eligibility, and the approved
// (question, answer) pair is stored for few-shot retrieval.
func (s *Service) Approve(ctx context.Context, logID string) (*domain.AutoReplyLog, error) {
	l, err := s.opts.Logs.Get(ctx, logID)
	if err != nil {
		return nil, err
	}

	if l.PropertyCode != nil && len(l.FAQKeys) > 0 {
		if err := s.opts.Gate.RecordApproved(ctx, *l.PropertyCode, l.FAQKeys); err != nil {
			return nil, fmt.Errorf("recording approval: %w", err)
		}
	}
	s.storeExemplar(ctx, l, l.FinalText(), false)
	s.broadcastDashboard("draft approved")
	return l, nil
}

// Edit replaces the draft text with the operator's version. An edit counts
// against auto-send eligibility, and the corrected pair is stored for
// few-shot retrieval with the edit flag set.
func (s *Service) Edit(ctx context.Context, logID, editedText string) (*domain.AutoReplyLog, error) {
	if strings.TrimSpace(editedText) == "" {
		return nil, ErrEmptyEdit
	}
	if err := s.opts.Logs.MarkEdited(ctx, logID, editedText); err != nil {
		return nil, err
	}
	l, err := s.opts.Logs.Get(ctx, logID)
	if err != nil {
		return nil, err
	}

	if l.PropertyCode != nil && len(l.FAQKeys) > 0 {
		if err := s.opts.Gate.RecordEdited(ctx, *l.PropertyCode, l.FAQKeys); err != nil {
			return nil, fmt.Errorf("recording edit: %w", err)
		}
	}
	s.storeExemplar(ctx, l, editedText, true)
	s.broadcastDashboard("draft edited")
	return l, nil
}

// resolveIntent returns the persisted classification, or runs the
// classifier and persists intent, confidence, and a SYSTEM label.
func (s *Service) resolveIntent(ctx context.Context, m *domain.Message) (classify.IntentOutcome, error) {
	if m.IsClassified() {
		out := classify.IntentOutcome{
			Kind:   classify.OutcomeConfident,
			Intent: *m.Intent,
		}
		if m.IntentConfidence != nil {
			out.Confidence = *m.IntentConfidence
		}
		if m.FineIntent != nil {
			out.FineIntent = *m.FineIntent
		}
		if out.Confidence < 0.5 {
			out.Kind = classify.OutcomeAmbiguous
		}
		return out, nil
	}

	text := m.GuestSegment
	if text == "" {
		text = m.BodyText
	}
	outcome := s.opts.Classifier.Classify(ctx, classify.Input{
		GuestSegment: text,
		Subject:      m.Subject,
	})
	action := classify.Decide(outcome).Action
	if err := s.opts.Inbox.RecordClassification(ctx, m.ID, outcome, action); err != nil {
		return outcome, err
	}
	m.Intent = &outcome.Intent
	m.IntentConfidence = &outcome.Confidence
	return outcome, nil
}

// resolveProperty prefers the explicit override, then the stored code,
// then the OTA listing mapping. Returns "" when nothing resolves.
func (s *Service) resolveProperty(ctx context.Context, m *domain.Message, override string) string {
	if override != "" {
		return override
	}
	if m.PropertyCode != nil && *m.PropertyCode != "" {
		return *m.PropertyCode
	}
	if m.ListingID == nil || *m.ListingID == "" {
		return ""
	}
	mapping, err := s.opts.Profiles.ResolveListing(ctx, m.OTA, *m.ListingID)
	if err != nil {
		log.Printf("[AutoReply] listing %s/%s unresolved: %v", m.OTA, *m.ListingID, err)
		return ""
	}
	if mapping.PropertyCode != nil {
		return *mapping.PropertyCode
	}
	return ""
}

func (s *Service) loadProfile(ctx context.Context, propertyCode string) *domain.PropertyProfile {
	if propertyCode == "" {
		return nil
	}
	profile, err := s.opts.Profiles.GetProfile(ctx, propertyCode)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			log.Printf("[AutoReply] profile lookup %s: %v", propertyCode, err)
		}
		return nil
	}
	return profile
}

func (s *Service) pickLocale(override string, profile *domain.PropertyProfile) string {
	if override != "" {
		return override
	}
	if profile != nil && profile.Locale != "" {
		return profile.Locale
	}
	return s.opts.DefaultLocale
}

// draft produces the reply text. Preference order: LLM (with few-shot when
// the store has neighbors), template, generic fallback. degraded is true
// when the LLM was supposed to draft but failed; a degraded draft never
// auto-sends.
func (s *Service) draft(ctx context.Context, bundle *ReplyContext, useLLMOverride *bool) (text string, mode domain.GenerationMode, degraded bool) {
	useLLM := s.opts.UseLLM
	if useLLMOverride != nil {
		useLLM = *useLLMOverride
	}

	if useLLM && s.opts.LLM != nil {
		fewShot := s.fewShot(ctx, bundle)
		out, err := s.opts.LLM.Chat(ctx, draftSystemPrompt(bundle.Locale), draftUserPrompt(bundle, fewShot), 0.4)
		if err == nil && strings.TrimSpace(out) != "" {
			mode = domain.GenLLM
			if fewShot != "" {
				mode = domain.GenLLMWithFewshot
			}
			return strings.TrimSpace(out), mode, false
		}
		if err != nil {
			log.Printf("[AutoReply] LLM draft failed, falling back: %v", err)
		}
		degraded = true
	}

	if out, err := s.opts.Templates.Render(bundle); err == nil {
		return out, domain.GenTemplate, degraded
	} else if !errors.Is(err, ErrNoTemplate) {
		log.Printf("[AutoReply] template render failed: %v", err)
	}
	return GenericFallback(bundle.Locale), domain.GenFallback, degraded
}

func (s *Service) fewShot(ctx context.Context, bundle *ReplyContext) string {
	if s.opts.Embeddings == nil || bundle.GuestSegment == "" {
		return ""
	}
	block, err := s.opts.Embeddings.FewShotBlock(ctx, bundle.GuestSegment, bundle.PropertyCode, 3)
	if err != nil {
		log.Printf("[AutoReply] few-shot retrieval failed: %v", err)
		return ""
	}
	return block
}

func (s *Service) gateEligible(ctx context.Context, propertyCode string, faqKeys []string) bool {
	if propertyCode == "" || len(faqKeys) == 0 {
		return false
	}
	eligible, err := s.opts.Gate.Eligible(ctx, propertyCode, faqKeys)
	if err != nil {
		log.Printf("[AutoReply] gate check failed for %s: %v", propertyCode, err)
		return false
	}
	return eligible
}

func (s *Service) newLog(m *domain.Message, outcome classify.IntentOutcome, propertyCode string, mode domain.GenerationMode, text string, faqKeys []string, allowAutoSend bool) *domain.AutoReplyLog {
	l := &domain.AutoReplyLog{
		ID:               uuid.New().String(),
		MessageID:        m.ID,
		OTA:              m.OTA,
		Intent:           outcome.Intent,
		IntentConfidence: outcome.Confidence,
		GenerationMode:   mode,
		ReplyText:        text,
		SendMode:         domain.SendHITL,
		FAQKeys:          faqKeys,
		AllowAutoSend:    allowAutoSend,
		CreatedAt:        time.Now().UTC(),
	}
	if propertyCode != "" {
		l.PropertyCode = &propertyCode
	}
	if outcome.FineIntent != "" {
		f := outcome.FineIntent
		l.FineIntent = &f
	}
	return l
}

// sendReply delivers an autopilot draft. A send failure leaves the log
// unsent with the reason recorded; the operator picks it up from there.
func (s *Service) sendReply(ctx context.Context, m *domain.Message, l *domain.AutoReplyLog) {
	in := mailbox.ReplyInput{
		From:    s.opts.OperatorAddress,
		To:      m.Sender,
		Subject: m.Subject,
		Body:    l.FinalText(),
	}
	if m.MailMessageID != nil {
		in.InReplyTo = *m.MailMessageID
	}
	if m.MailReferences != nil {
		in.References = *m.MailReferences
	}
	raw := mailbox.ComposeReply(in)

	if _, err := s.opts.Sender.Send(ctx, raw, m.ThreadID); err != nil {
		log.Printf("[AutoReply] autopilot send failed for message %s: %v", m.ID, err)
		if mErr := s.opts.Logs.MarkSendFailed(ctx, l.ID, err.Error()); mErr != nil {
			log.Printf("[AutoReply] recording send failure: %v", mErr)
		}
		reason := err.Error()
		l.FailureReason = &reason
		return
	}

	if err := s.opts.Logs.MarkSent(ctx, l.ID); err != nil {
		log.Printf("[AutoReply] marking log %s sent: %v", l.ID, err)
		return
	}
	log.Printf("[AutoReply] autopilot reply sent to %s (log %s)", logger.RedactEmail(m.Sender), l.ID)
	now := time.Now().UTC()
	l.Sent = true
	l.SentAt = &now
	if err := s.opts.Inbox.TouchAutoReplyAt(ctx, m.ID); err != nil {
		log.Printf("[AutoReply] advancing last_auto_reply_at for %s: %v", m.ID, err)
	}
}

func (s *Service) raiseNotification(ctx context.Context, m *domain.Message, decision domain.ActionDecision) {
	if s.opts.Notifier == nil {
		return
	}
	if _, err := s.opts.Notifier.Raise(ctx, m, decision); err != nil {
		log.Printf("[AutoReply] raising staff notification for %s: %v", m.ID, err)
	}
}

// storeExemplar saves an operator-reviewed (question, answer) pair for
// few-shot retrieval. Best-effort: retrieval quality degrades, the review
// flow does not.
func (s *Service) storeExemplar(ctx context.Context, l *domain.AutoReplyLog, answer string, wasEdited bool) {
	if s.opts.Embeddings == nil {
		return
	}
	m, err := s.opts.Inbox.Get(ctx, l.MessageID)
	if err != nil {
		log.Printf("[AutoReply] loading message for exemplar: %v", err)
		return
	}
	guest := m.GuestSegment
	if guest == "" {
		return
	}
	if err := s.opts.Embeddings.StoreApproved(ctx, guest, answer, l.PropertyCode, wasEdited, &m.ThreadID); err != nil {
		log.Printf("[AutoReply] storing exemplar for log %s: %v", l.ID, err)
	}
}

func (s *Service) broadcast(reason string) {
	if s.opts.Hub != nil {
		s.opts.Hub.BroadcastRefresh(events.ScopeConversations, reason)
	}
}

func (s *Service) broadcastDashboard(reason string) {
	if s.opts.Hub != nil {
		s.opts.Hub.BroadcastRefresh(events.ScopeDashboard, reason)
	}
}

func (s *Service) acquire(messageID string) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[messageID]; busy {
		return nil, false
	}
	s.inflight[messageID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, messageID)
		s.mu.Unlock()
	}, true
}

// draftSystemPrompt instructs the model; the locale decides the output
// language.
func draftSystemPrompt(locale string) string {
	lang := "English"
	switch normalizeLocale(locale) {
	case "ko":
		lang = "Korean"
	case "ja":
		lang = "Japanese"
	case "zh":
		lang = "Chinese"
	}
	return fmt.Sprintf(`You are a guest-messaging assistant for a short-term rental operator.
Write a reply to the guest in %s.
Use only facts stated in the property information. Never invent times, codes, or policies.
If the needed fact is missing, say a team member will follow up with the detail.
Keep the reply warm and concise and end with a polite closing line.
Respond with the reply text only.`, lang)
}

func draftUserPrompt(bundle *ReplyContext, fewShot string) string {
	var b strings.Builder
	if block := bundle.PromptBlock(); block != "" {
		b.WriteString(block)
		b.WriteString("\n")
	}
	if fewShot != "" {
		b.WriteString(fewShot)
		b.WriteString("\n")
	}
	if bundle.GuestName != "" {
		fmt.Fprintf(&b, "Guest name: %s\n", bundle.GuestName)
	}
	fmt.Fprintf(&b, "Guest message:\n%s\n", bundle.GuestSegment)
	return b.String()
}
