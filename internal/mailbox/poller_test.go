package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostops/concierge/internal/domain"
)

type fakeClient struct {
	refs      []Ref
	listErrs  int // fail the first N list calls
	listCalls int
	getErr    map[string]error
	messages  map[string]*RawMessage
	sent      []string
}

func (f *fakeClient) List(ctx context.Context, query string, max int, label string) ([]Ref, error) {
	f.listCalls++
	if f.listCalls <= f.listErrs {
		return nil, errors.New("transient list failure")
	}
	return f.refs, nil
}

func (f *fakeClient) Get(ctx context.Context, id string) (*RawMessage, error) {
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	if m, ok := f.messages[id]; ok {
		return m, nil
	}
	return &RawMessage{ID: id, ThreadID: "t-" + id}, nil
}

func (f *fakeClient) Send(ctx context.Context, raw []byte, threadID string) (string, error) {
	f.sent = append(f.sent, threadID)
	return "sent-1", nil
}

type fakeSink struct {
	results map[string]IngestResult
	errs    map[string]error
	calls   []string
}

func (f *fakeSink) Ingest(ctx context.Context, raw *RawMessage) (IngestResult, error) {
	f.calls = append(f.calls, raw.ID)
	if err := f.errs[raw.ID]; err != nil {
		return IngestResult{}, err
	}
	if r, ok := f.results[raw.ID]; ok {
		return r, nil
	}
	return IngestResult{Message: &domain.Message{ExternalID: raw.ID}, Parsed: true, Created: true}, nil
}

func seenSet(ids ...string) SeenFunc {
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	return func(ctx context.Context, externalID string) (bool, error) {
		return set[externalID], nil
	}
}

func TestTickSkipsAlreadyIngested(t *testing.T) {
	client := &fakeClient{refs: []Ref{{ID: "A"}, {ID: "B"}}}
	sink := &fakeSink{}
	p := NewPoller(client, seenSet("A"), sink, "from:ota", "", 50, 7)

	res, err := p.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 1, res.NewlyIngested)
	assert.Equal(t, 1, res.Parsed)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, []string{"B"}, sink.calls)
}

func TestTickCountsPerMessageFailures(t *testing.T) {
	client := &fakeClient{
		refs:   []Ref{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		getErr: map[string]error{"B": errors.New("boom")},
	}
	sink := &fakeSink{errs: map[string]error{"C": errors.New("db down")}}
	p := NewPoller(client, seenSet(), sink, "from:ota", "", 50, 7)

	res, err := p.Tick(context.Background())
	require.NoError(t, err)

	// A succeeds, B fails at fetch, C fails at ingest; the tick finishes.
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 1, res.NewlyIngested)
	assert.Equal(t, 2, res.Failed)
}

func TestTickUnparsedStillCreated(t *testing.T) {
	client := &fakeClient{refs: []Ref{{ID: "A"}}}
	sink := &fakeSink{results: map[string]IngestResult{
		"A": {Message: &domain.Message{ExternalID: "A"}, Parsed: false, Created: true},
	}}
	p := NewPoller(client, seenSet(), sink, "from:ota", "", 50, 7)

	res, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewlyIngested)
	assert.Equal(t, 0, res.Parsed)
}

func TestTickRetriesListWithBackoff(t *testing.T) {
	client := &fakeClient{refs: []Ref{{ID: "A"}}, listErrs: 2}
	sink := &fakeSink{}
	p := NewPoller(client, seenSet(), sink, "from:ota", "", 50, 7)
	p.backoffBase = time.Millisecond
	p.backoffMax = 2 * time.Millisecond

	res, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, client.listCalls)
	assert.Equal(t, 1, res.NewlyIngested)
}

func TestTickListExhaustionReturnsError(t *testing.T) {
	client := &fakeClient{refs: []Ref{{ID: "A"}}, listErrs: 100}
	p := NewPoller(client, seenSet(), &fakeSink{}, "from:ota", "", 50, 7)
	p.backoffBase = time.Microsecond
	p.backoffMax = time.Microsecond

	_, err := p.Tick(context.Background())
	assert.Error(t, err)
}

func TestTickHonorsCancellation(t *testing.T) {
	client := &fakeClient{refs: []Ref{{ID: "A"}, {ID: "B"}}}
	sink := &fakeSink{}
	p := NewPoller(client, seenSet(), sink, "from:ota", "", 50, 7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Tick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatsAccumulateAcrossTicks(t *testing.T) {
	client := &fakeClient{refs: []Ref{{ID: "A"}}}
	sink := &fakeSink{}
	p := NewPoller(client, seenSet(), sink, "from:ota", "", 50, 7)

	_, err := p.Tick(context.Background())
	require.NoError(t, err)
	// Second tick: A exists now? seenSet is static, so A ingests again;
	// the counters still accumulate per tick.
	_, err = p.Tick(context.Background())
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, int64(2), stats["total_ticks"])
	assert.Equal(t, int64(2), stats["total_fetched"])
	assert.Equal(t, int64(2), stats["total_ingested"])
}
