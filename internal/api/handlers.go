package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hostops/concierge/internal/autoreply"
	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/notify"
	"github.com/hostops/concierge/internal/pipeline"
	"github.com/hostops/concierge/internal/pkg/httputil"
	"github.com/hostops/concierge/internal/service/inbox"
)

// Handlers carries the services the HTTP layer fronts. Coordinator may be
// nil when the worker runs in a separate process; the tick endpoint then
// returns 503.
type Handlers struct {
	Inbox       *inbox.Service
	Replies     *autoreply.Service
	Notify      *notify.Service
	Coordinator *pipeline.Coordinator
	Health      Pinger
}

// NewHandlers bundles the services for route setup.
func NewHandlers(inboxSvc *inbox.Service, replies *autoreply.Service, notifySvc *notify.Service, coordinator *pipeline.Coordinator, health Pinger) *Handlers {
	return &Handlers{
		Inbox:       inboxSvc,
		Replies:     replies,
		Notify:      notifySvc,
		Coordinator: coordinator,
		Health:      health,
	}
}

// HealthCheck reports process and backend status.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := h.Health.Check(r.Context())
	status := "ok"
	code := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	httputil.JSON(w, code, map[string]any{"status": status, "checks": checks})
}

// GetMessage returns one ingested message.
func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	m, err := h.Inbox.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, inbox.ErrNotFound) {
		httputil.NotFound(w, "message not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, m)
}

// ListMessages returns recent messages, filterable by classification.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := inbox.ListFilter{
		Actionability: domain.Actionability(q.Get("actionability")),
		Actor:         domain.SenderActor(q.Get("actor")),
		PropertyCode:  q.Get("property_code"),
		OTA:           domain.OTA(q.Get("ota")),
		NeedsDraft:    q.Get("needs_draft") == "true",
		Limit:         intParam(q.Get("limit"), 50),
	}
	msgs, err := h.Inbox.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"messages": msgs, "count": len(msgs)})
}

type suggestRequest struct {
	Locale       string `json:"locale"`
	PropertyCode string `json:"property_code"`
	UseLLM       *bool  `json:"use_llm"`
	Force        bool   `json:"force"`
}

// SuggestAutoReply drafts (or returns) the auto-reply for a message.
func (h *Handlers) SuggestAutoReply(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}

	l, err := h.Replies.Suggest(r.Context(), chi.URLParam(r, "id"), autoreply.SuggestOptions{
		Force:        req.Force,
		UseLLM:       req.UseLLM,
		Locale:       req.Locale,
		PropertyCode: req.PropertyCode,
	})
	switch {
	case errors.Is(err, inbox.ErrNotFound):
		httputil.NotFound(w, "message not found")
	case errors.Is(err, autoreply.ErrDraftInProgress):
		httputil.Conflict(w, "a draft for this message is already in progress")
	case err != nil:
		httputil.InternalError(w, err)
	case l == nil:
		httputil.OK(w, map[string]any{"suggestion": nil, "reason": "message does not await a reply"})
	default:
		httputil.OK(w, map[string]any{"suggestion": l})
	}
}

// ListAutoReplies returns recent reply logs for guest inquiries.
func (h *Handlers) ListAutoReplies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logs, err := h.Replies.List(r.Context(), autoreply.LogFilter{
		PropertyCode: q.Get("property_code"),
		OTA:          domain.OTA(q.Get("ota")),
		Limit:        intParam(q.Get("limit"), 50),
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"auto_replies": logs, "count": len(logs)})
}

// ApproveAutoReply records operator approval for a draft.
func (h *Handlers) ApproveAutoReply(w http.ResponseWriter, r *http.Request) {
	l, err := h.Replies.Approve(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, autoreply.ErrLogNotFound) {
		httputil.NotFound(w, "auto-reply log not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"auto_reply": l})
}

type editRequest struct {
	EditedText string `json:"edited_text"`
}

// EditAutoReply replaces a draft with the operator's text.
func (h *Handlers) EditAutoReply(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	l, err := h.Replies.Edit(r.Context(), chi.URLParam(r, "id"), req.EditedText)
	switch {
	case errors.Is(err, autoreply.ErrEmptyEdit):
		httputil.BadRequest(w, "edited_text must not be empty")
	case errors.Is(err, autoreply.ErrLogNotFound):
		httputil.NotFound(w, "auto-reply log not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, map[string]any{"auto_reply": l})
	}
}

type labelRequest struct {
	Intent string `json:"intent"`
}

// PostIntentLabel appends an operator label and updates the denormalized
// intent.
func (h *Handlers) PostIntentLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	err := h.Inbox.Relabel(r.Context(), chi.URLParam(r, "id"), domain.Intent(req.Intent), domain.LabelHuman)
	switch {
	case errors.Is(err, inbox.ErrInvalidIntent):
		httputil.BadRequest(w, "unknown intent: "+req.Intent)
	case errors.Is(err, inbox.ErrNotFound):
		httputil.NotFound(w, "message not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, map[string]any{"status": "labeled", "intent": req.Intent})
	}
}

// GetIntentLabels returns a message's label history in creation order.
func (h *Handlers) GetIntentLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := h.Inbox.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"labels": labels, "count": len(labels)})
}

// ListNotifications returns staff notifications; ?status=open narrows to
// unresolved ones.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	openOnly := q.Get("status") == "open"
	rows, err := h.Notify.List(r.Context(), openOnly, intParam(q.Get("limit"), 50))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"notifications": rows, "count": len(rows)})
}

type doneRequest struct {
	By string `json:"by"`
}

// NotificationDone closes one staff notification.
func (h *Handlers) NotificationDone(w http.ResponseWriter, r *http.Request) {
	var req doneRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}

	err := h.Notify.MarkDone(r.Context(), chi.URLParam(r, "id"), req.By)
	if errors.Is(err, notify.ErrNotFound) {
		httputil.NotFound(w, "notification not found or already done")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"status": "done"})
}

type tickRequest struct {
	Max       int  `json:"max"`
	SinceDays int  `json:"since_days"`
	Force     bool `json:"force"`
}

// PipelineTick runs one full pipeline tick on demand.
func (h *Handlers) PipelineTick(w http.ResponseWriter, r *http.Request) {
	if h.Coordinator == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "pipeline runs in a separate worker process")
		return
	}

	var req tickRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}

	res, err := h.Coordinator.RunFullTick(r.Context(), req.Max, req.SinceDays, req.Force)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, res)
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
