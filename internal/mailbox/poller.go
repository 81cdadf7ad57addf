package mailbox

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/hostops/concierge/internal/domain"
)

// IngestResult reports what the sink did with one raw message.
type IngestResult struct {
	Message *domain.Message
	Parsed  bool // false when the parser fell back to UNKNOWN actor/actionability
	Created bool // false when the external id was already ingested
}

// Sink consumes full raw messages pulled by the poller. The pipeline
// coordinator implements it: parse, classify, persist.
type Sink interface {
	Ingest(ctx context.Context, raw *RawMessage) (IngestResult, error)
}

// SeenFunc reports whether an external message id has already been ingested.
type SeenFunc func(ctx context.Context, externalID string) (bool, error)

// TickResult summarizes one poll tick.
type TickResult struct {
	Fetched       int `json:"fetched"`
	Parsed        int `json:"parsed"`
	NewlyIngested int `json:"newly_ingested"`
	Failed        int `json:"failed"`
}

// Poller pulls new OTA messages each tick and hands them to the sink.
// Dedup by external message id makes delivery at-least-once but ingestion
// idempotent. A failing message is counted and skipped; it never aborts
// the tick.
type Poller struct {
	client       Client
	seen         SeenFunc
	sink         Sink
	query        string
	label        string
	batchMax     int
	lookbackDays int

	listRetries int
	backoffBase time.Duration
	backoffMax  time.Duration

	totalTicks    int64
	totalFetched  int64
	totalIngested int64
	totalFailed   int64
}

// NewPoller wires a poller. query is the OTA sender query without the
// freshness window; the poller appends newer_than itself.
func NewPoller(client Client, seen SeenFunc, sink Sink, query, label string, batchMax, lookbackDays int) *Poller {
	if batchMax <= 0 {
		batchMax = 50
	}
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	return &Poller{
		client:       client,
		seen:         seen,
		sink:         sink,
		query:        query,
		label:        label,
		batchMax:     batchMax,
		lookbackDays: lookbackDays,
		listRetries:  5,
		backoffBase:  100 * time.Millisecond,
		backoffMax:   30 * time.Second,
	}
}

// Tick runs one poll cycle: list candidates, skip known ids, fetch and
// ingest the rest.
func (p *Poller) Tick(ctx context.Context) (TickResult, error) {
	atomic.AddInt64(&p.totalTicks, 1)
	var res TickResult

	refs, err := p.listWithBackoff(ctx)
	if err != nil {
		return res, fmt.Errorf("poller list: %w", err)
	}
	res.Fetched = len(refs)
	atomic.AddInt64(&p.totalFetched, int64(len(refs)))

	for _, ref := range refs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		exists, err := p.seen(ctx, ref.ID)
		if err != nil {
			log.Printf("Poller: dedup check failed for %s: %v", ref.ID, err)
			res.Failed++
			continue
		}
		if exists {
			continue
		}

		raw, err := p.client.Get(ctx, ref.ID)
		if err != nil {
			log.Printf("Poller: fetch failed for %s: %v", ref.ID, err)
			res.Failed++
			continue
		}

		out, err := p.sink.Ingest(ctx, raw)
		if err != nil {
			log.Printf("Poller: ingest failed for %s: %v", ref.ID, err)
			res.Failed++
			continue
		}
		if out.Parsed {
			res.Parsed++
		}
		if out.Created {
			res.NewlyIngested++
		}
	}

	atomic.AddInt64(&p.totalIngested, int64(res.NewlyIngested))
	atomic.AddInt64(&p.totalFailed, int64(res.Failed))
	return res, nil
}

// listWithBackoff retries transient list failures within the current tick.
// Backoff: base*2^n capped at backoffMax. The tick's context bounds the
// total wait, so one bad tick never delays the next.
func (p *Poller) listWithBackoff(ctx context.Context) ([]Ref, error) {
	query := fmt.Sprintf("%s newer_than:%dd", p.query, p.lookbackDays)

	var lastErr error
	delay := p.backoffBase
	for attempt := 0; attempt <= p.listRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
			delay *= 2
			if delay > p.backoffMax {
				delay = p.backoffMax
			}
		}

		refs, err := p.client.List(ctx, query, p.batchMax, p.label)
		if err == nil {
			return refs, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		log.Printf("Poller: list attempt %d/%d failed: %v", attempt+1, p.listRetries+1, err)
	}
	return nil, lastErr
}

// Stats returns lifetime poller counters.
func (p *Poller) Stats() map[string]int64 {
	return map[string]int64{
		"total_ticks":    atomic.LoadInt64(&p.totalTicks),
		"total_fetched":  atomic.LoadInt64(&p.totalFetched),
		"total_ingested": atomic.LoadInt64(&p.totalIngested),
		"total_failed":   atomic.LoadInt64(&p.totalFailed),
	}
}
