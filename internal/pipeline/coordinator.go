// Package pipeline ties the stages together: poll the mailbox, parse OTA
// notifications, classify origin and intent, persist, and fan drafting out
// over thread-keyed worker lanes so one conversation is never written to by
// two workers at once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/hostops/concierge/internal/autoreply"
	"github.com/hostops/concierge/internal/classify"
	"github.com/hostops/concierge/internal/domain"
	"github.com/hostops/concierge/internal/events"
	"github.com/hostops/concierge/internal/mailbox"
	"github.com/hostops/concierge/internal/otamail"
	"github.com/hostops/concierge/internal/pkg/distlock"
	"github.com/hostops/concierge/internal/pkg/logger"
	"github.com/hostops/concierge/internal/service/inbox"
)

// Config tunes one coordinator instance.
type Config struct {
	Query        string // mailbox search without the freshness window
	Label        string
	BatchMax     int // per-tick fetch cap, default 50
	LookbackDays int // default 7
	Workers      int // drafting lanes, default 4
	QueueCap     int // per-lane backlog, default 256
}

func (c *Config) fill() {
	if c.BatchMax <= 0 {
		c.BatchMax = 50
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = 7
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueCap <= 0 {
		c.QueueCap = 256
	}
}

// Coordinator implements mailbox.Sink and drives full pipeline runs.
type Coordinator struct {
	client     mailbox.Client
	inbox      *inbox.Service
	profiles   autoreply.ProfileStore
	classifier *classify.IntentClassifier
	replies    *autoreply.Service
	hub        *events.Hub       // nil disables events
	lock       distlock.DistLock // nil disables leader election
	cfg        Config

	mu      sync.Mutex
	pending []*domain.Message
}

// NewCoordinator wires the pipeline. replies may be nil for an ingest-only
// deployment; hub and lock may be nil.
func NewCoordinator(client mailbox.Client, inboxSvc *inbox.Service, profiles autoreply.ProfileStore, classifier *classify.IntentClassifier, replies *autoreply.Service, hub *events.Hub, lock distlock.DistLock, cfg Config) *Coordinator {
	cfg.fill()
	return &Coordinator{
		client:     client,
		inbox:      inboxSvc,
		profiles:   profiles,
		classifier: classifier,
		replies:    replies,
		hub:        hub,
		lock:       lock,
		cfg:        cfg,
	}
}

// Ingest parses, classifies origin and intent, and persists one raw
// message. Messages awaiting a reply are queued for the drafting lanes of
// the current run.
func (c *Coordinator) Ingest(ctx context.Context, raw *mailbox.RawMessage) (mailbox.IngestResult, error) {
	parsed, err := otamail.Parse(raw)
	if err != nil {
		return mailbox.IngestResult{}, fmt.Errorf("parse %s: %w", rawID(raw), err)
	}

	text := parsed.BodyText
	if text == "" && parsed.BodyHTML != "" {
		text = otamail.HTMLToText(parsed.BodyHTML)
	}
	origin := classify.ClassifyOrigin(text, parsed.Subject, parsed.Snippet, parsed.Role)

	propertyCode := c.resolveProperty(ctx, parsed)
	m, created, err := c.inbox.IngestParsed(ctx, parsed, origin, propertyCode)
	if err != nil {
		return mailbox.IngestResult{}, err
	}

	if created && m.AwaitsReply() && !m.IsClassified() {
		outcome := c.classifier.Classify(ctx, classify.Input{
			GuestSegment: m.GuestSegment,
			Subject:      m.Subject,
			Snippet:      parsed.Snippet,
		})
		action := classify.Decide(outcome).Action
		if err := c.inbox.RecordClassification(ctx, m.ID, outcome, action); err != nil {
			log.Printf("[Pipeline] classify %s: %v", m.ID, err)
		} else {
			m.Intent = &outcome.Intent
			m.IntentConfidence = &outcome.Confidence
		}
	}

	if created && m.AwaitsReply() {
		name := ""
		if m.GuestName != nil {
			name = *m.GuestName
		}
		log.Printf("[Pipeline] new guest inquiry from %s on thread %s", logger.RedactName(name), m.ThreadID)
		c.mu.Lock()
		c.pending = append(c.pending, m)
		c.mu.Unlock()
	}

	return mailbox.IngestResult{
		Message: m,
		Parsed:  origin.Actor != domain.ActorUnknown,
		Created: created,
	}, nil
}

var _ mailbox.Sink = (*Coordinator)(nil)

// RunIngestOnly polls and persists without drafting replies.
func (c *Coordinator) RunIngestOnly(ctx context.Context, max, sinceDays int) (mailbox.TickResult, error) {
	res, held, err := c.pollOnce(ctx, max, sinceDays)
	if err != nil || !held {
		return res, err
	}
	c.takePending() // discard; no drafting on this path
	c.broadcast("ingest tick")
	return res, nil
}

// RunFullTick polls, persists, and drafts a reply for every guest inquiry
// not yet replied to — both the ones ingested this tick and older ones
// whose draft never happened. Inquiries that already have a draft reuse it;
// force redrafts them instead.
func (c *Coordinator) RunFullTick(ctx context.Context, max, sinceDays int, force bool) (mailbox.TickResult, error) {
	res, held, err := c.pollOnce(ctx, max, sinceDays)
	if err != nil || !held {
		return res, err
	}

	pending := c.addUndrafted(ctx, c.takePending())
	c.draftAll(ctx, pending, force)
	c.broadcast("pipeline tick")
	return res, nil
}

// RunForever runs full ticks at the given interval until the context is
// canceled. One failed tick is logged and retried whole on the next beat;
// nothing is partially committed across ticks.
func (c *Coordinator) RunForever(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	log.Printf("[Pipeline] run loop started, interval %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if res, err := c.RunFullTick(ctx, c.cfg.BatchMax, c.cfg.LookbackDays, false); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			log.Printf("[Pipeline] tick failed: %v", err)
		} else if res.Fetched > 0 {
			log.Printf("[Pipeline] tick: fetched=%d parsed=%d new=%d failed=%d",
				res.Fetched, res.Parsed, res.NewlyIngested, res.Failed)
		}

		select {
		case <-ctx.Done():
			log.Printf("[Pipeline] run loop draining")
			return
		case <-ticker.C:
		}
	}
}

// pollOnce runs a single poller tick under the leader lock. held is false
// when another instance holds the lock; that is a clean no-op.
func (c *Coordinator) pollOnce(ctx context.Context, max, sinceDays int) (mailbox.TickResult, bool, error) {
	if c.lock != nil {
		ok, err := c.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[Pipeline] poll lock unavailable, proceeding solo: %v", err)
		} else if !ok {
			log.Printf("[Pipeline] another instance holds the poll lock, skipping tick")
			return mailbox.TickResult{}, false, nil
		} else {
			defer func() {
				if err := c.lock.Release(context.WithoutCancel(ctx)); err != nil {
					log.Printf("[Pipeline] releasing poll lock: %v", err)
				}
			}()
		}
	}

	if max <= 0 {
		max = c.cfg.BatchMax
	}
	if sinceDays <= 0 {
		sinceDays = c.cfg.LookbackDays
	}

	c.resetPending()
	poller := mailbox.NewPoller(c.client, c.inbox.Seen, c, c.cfg.Query, c.cfg.Label, max, sinceDays)
	res, err := poller.Tick(ctx)
	if err != nil {
		return res, true, fmt.Errorf("pipeline tick: %w", err)
	}
	return res, true, nil
}

// draftAll fans messages out over thread-keyed lanes. Messages on the same
// thread land in the same lane, so drafts within a conversation stay
// ordered and never race.
func (c *Coordinator) draftAll(ctx context.Context, msgs []*domain.Message, force bool) {
	if c.replies == nil || len(msgs) == 0 {
		return
	}

	lanes := make([]chan *domain.Message, c.cfg.Workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan *domain.Message, c.cfg.QueueCap)
		wg.Add(1)
		go func(lane <-chan *domain.Message) {
			defer wg.Done()
			for m := range lane {
				if ctx.Err() != nil {
					continue // drain without drafting once canceled
				}
				if _, err := c.replies.Suggest(ctx, m.ID, autoreply.SuggestOptions{Force: force}); err != nil {
					log.Printf("[Pipeline] draft for %s: %v", m.ID, err)
				}
			}
		}(lanes[i])
	}

	for _, m := range msgs {
		lanes[laneFor(m.ThreadID, c.cfg.Workers)] <- m
	}
	for _, lane := range lanes {
		close(lane)
	}
	wg.Wait()
}

// addUndrafted appends guest inquiries that never had a reply sent,
// deduplicated against the current batch.
func (c *Coordinator) addUndrafted(ctx context.Context, pending []*domain.Message) []*domain.Message {
	msgs, err := c.inbox.List(ctx, inbox.ListFilter{
		Actor:         domain.ActorGuest,
		Actionability: domain.NeedsReply,
		NeedsDraft:    true,
		Limit:         c.cfg.BatchMax,
	})
	if err != nil {
		log.Printf("[Pipeline] listing undrafted inquiries: %v", err)
		return pending
	}

	have := make(map[string]bool, len(pending))
	for _, m := range pending {
		have[m.ID] = true
	}
	for i := range msgs {
		if !have[msgs[i].ID] {
			pending = append(pending, &msgs[i])
		}
	}
	return pending
}

func (c *Coordinator) resolveProperty(ctx context.Context, parsed *otamail.ParsedMessage) *string {
	if parsed.ListingID == "" || c.profiles == nil {
		return nil
	}
	mapping, err := c.profiles.ResolveListing(ctx, parsed.OTA, parsed.ListingID)
	if err != nil {
		if !errors.Is(err, autoreply.ErrProfileNotFound) {
			log.Printf("[Pipeline] listing %s/%s: %v", parsed.OTA, parsed.ListingID, err)
		}
		return nil
	}
	return mapping.PropertyCode
}

func (c *Coordinator) resetPending() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

func (c *Coordinator) takePending() []*domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

func (c *Coordinator) broadcast(reason string) {
	if c.hub != nil {
		c.hub.BroadcastRefresh(events.ScopeAll, reason)
	}
}

func laneFor(threadID string, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(threadID))
	return int(h.Sum32() % uint32(workers))
}

func rawID(raw *mailbox.RawMessage) string {
	if raw == nil {
		return "<nil>"
	}
	return raw.ID
}
