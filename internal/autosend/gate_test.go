package autosend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostops/concierge/internal/domain"
)

// memStatsRepo recomputes under a mutex, standing in for the row lock.
type memStatsRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.AutoSendStats
}

func newMemStatsRepo() *memStatsRepo {
	return &memStatsRepo{rows: map[string]*domain.AutoSendStats{}}
}

func (r *memStatsRepo) key(property, faqKey string) string { return property + "|" + faqKey }

func (r *memStatsRepo) Get(ctx context.Context, propertyCode, faqKey string) (*domain.AutoSendStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[r.key(propertyCode, faqKey)]
	if !ok {
		return nil, ErrNoStats
	}
	cp := *s
	return &cp, nil
}

func (r *memStatsRepo) Record(ctx context.Context, propertyCode, faqKey string, approved bool, minTotal int, minRate float64) (*domain.AutoSendStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(propertyCode, faqKey)
	s, ok := r.rows[k]
	if !ok {
		s = &domain.AutoSendStats{PropertyCode: propertyCode, FAQKey: faqKey}
		r.rows[k] = s
	}
	s.TotalCount++
	if approved {
		s.ApprovedCount++
	} else {
		s.EditedCount++
	}
	s.Recompute(minTotal, minRate)
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	return &cp, nil
}

// Walks the gating threshold scenario: 4 approvals, a 5th flips eligible,
// one edit keeps it, a second edit drops it.
func TestGate_ThresholdWalk(t *testing.T) {
	repo := newMemStatsRepo()
	gate := NewGate(repo, 0, 0) // defaults: 5 / 0.8
	ctx := context.Background()
	keys := []string{domain.FAQKeyCheckinInfo}

	for i := 0; i < 4; i++ {
		require.NoError(t, gate.RecordApproved(ctx, "P", keys))
	}
	eligible, err := gate.Eligible(ctx, "P", keys)
	require.NoError(t, err)
	assert.False(t, eligible, "4/4 is under the minimum total")

	require.NoError(t, gate.RecordApproved(ctx, "P", keys))
	s, err := repo.Get(ctx, "P", domain.FAQKeyCheckinInfo)
	require.NoError(t, err)
	assert.Equal(t, 5, s.TotalCount)
	assert.InDelta(t, 1.0, s.ApprovalRate, 1e-9)

	eligible, err = gate.Eligible(ctx, "P", keys)
	require.NoError(t, err)
	assert.True(t, eligible)

	require.NoError(t, gate.RecordEdited(ctx, "P", keys))
	s, _ = repo.Get(ctx, "P", domain.FAQKeyCheckinInfo)
	assert.Equal(t, 6, s.TotalCount)
	assert.InDelta(t, 5.0/6.0, s.ApprovalRate, 1e-9)
	eligible, _ = gate.Eligible(ctx, "P", keys)
	assert.True(t, eligible, "5/6 ≈ 0.833 still clears 0.8")

	require.NoError(t, gate.RecordEdited(ctx, "P", keys))
	s, _ = repo.Get(ctx, "P", domain.FAQKeyCheckinInfo)
	assert.Equal(t, 7, s.TotalCount)
	assert.InDelta(t, 5.0/7.0, s.ApprovalRate, 1e-9)
	eligible, _ = gate.Eligible(ctx, "P", keys)
	assert.False(t, eligible, "5/7 ≈ 0.714 is under 0.8")
}

// Approvals never lower the rate; edits never raise it.
func TestGate_RateMonotonicity(t *testing.T) {
	repo := newMemStatsRepo()
	gate := NewGate(repo, 5, 0.8)
	ctx := context.Background()
	keys := []string{domain.FAQKeyHouseRules}

	require.NoError(t, gate.RecordApproved(ctx, "P", keys))
	require.NoError(t, gate.RecordEdited(ctx, "P", keys))

	prev, _ := repo.Get(ctx, "P", domain.FAQKeyHouseRules)
	for i := 0; i < 10; i++ {
		require.NoError(t, gate.RecordApproved(ctx, "P", keys))
		cur, _ := repo.Get(ctx, "P", domain.FAQKeyHouseRules)
		assert.GreaterOrEqual(t, cur.ApprovalRate, prev.ApprovalRate)
		prev = cur
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, gate.RecordEdited(ctx, "P", keys))
		cur, _ := repo.Get(ctx, "P", domain.FAQKeyHouseRules)
		assert.LessOrEqual(t, cur.ApprovalRate, prev.ApprovalRate)
		prev = cur
	}
}

// Every key must individually clear; one cold key blocks the set.
func TestGate_AllKeysMustClear(t *testing.T) {
	repo := newMemStatsRepo()
	gate := NewGate(repo, 5, 0.8)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, gate.RecordApproved(ctx, "P", []string{domain.FAQKeyCheckinInfo}))
	}

	eligible, err := gate.Eligible(ctx, "P", []string{domain.FAQKeyCheckinInfo, domain.FAQKeyPetPolicy})
	require.NoError(t, err)
	assert.False(t, eligible, "PET_POLICY has no stats yet")

	eligible, err = gate.Eligible(ctx, "P", []string{domain.FAQKeyCheckinInfo})
	require.NoError(t, err)
	assert.True(t, eligible)
}

func TestGate_NoPropertyOrKeysIsIneligible(t *testing.T) {
	gate := NewGate(newMemStatsRepo(), 5, 0.8)

	eligible, err := gate.Eligible(context.Background(), "", []string{domain.FAQKeyCheckinInfo})
	require.NoError(t, err)
	assert.False(t, eligible)

	eligible, err = gate.Eligible(context.Background(), "P", nil)
	require.NoError(t, err)
	assert.False(t, eligible)
}

// Concurrent feedback must compose: counters add up exactly.
func TestGate_ConcurrentRecords(t *testing.T) {
	repo := newMemStatsRepo()
	gate := NewGate(repo, 5, 0.8)
	ctx := context.Background()
	keys := []string{domain.FAQKeyLocationInfo}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(approved bool) {
			defer wg.Done()
			if approved {
				_ = gate.RecordApproved(ctx, "P", keys)
			} else {
				_ = gate.RecordEdited(ctx, "P", keys)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	s, err := repo.Get(ctx, "P", domain.FAQKeyLocationInfo)
	require.NoError(t, err)
	assert.Equal(t, 20, s.TotalCount)
	assert.Equal(t, 10, s.ApprovedCount)
	assert.Equal(t, 10, s.EditedCount)
}
