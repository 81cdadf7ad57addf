// Package autosend decides whether a drafted reply may go out without an
// operator looking at it, based on per-(property, FAQ key) approval
// statistics that operator feedback keeps current.
package autosend

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hostops/concierge/internal/domain"
)

// ErrNoStats is returned when a (property, key) pair has no history yet.
var ErrNoStats = errors.New("no auto-send stats for key")

// StatsRepository is the persistence contract. Record must be atomic per
// (property, key) row; Get must observe a consistent row.
type StatsRepository interface {
	Get(ctx context.Context, propertyCode, faqKey string) (*domain.AutoSendStats, error)
	Record(ctx context.Context, propertyCode, faqKey string, approved bool, minTotal int, minRate float64) (*domain.AutoSendStats, error)
}

// Gate evaluates and updates auto-send eligibility.
type Gate struct {
	repo     StatsRepository
	minTotal int
	minRate  float64
}

// NewGate builds a gate with the configured thresholds; zero values fall
// back to the defaults (5 approvals, 80%).
func NewGate(repo StatsRepository, minTotal int, minRate float64) *Gate {
	if minTotal <= 0 {
		minTotal = domain.DefaultAutoSendMinTotal
	}
	if minRate <= 0 {
		minRate = domain.DefaultAutoSendMinRate
	}
	return &Gate{repo: repo, minTotal: minTotal, minRate: minRate}
}

// Eligible reports whether every key has stats and each one individually
// clears the thresholds. A key with no history disqualifies the whole set.
func (g *Gate) Eligible(ctx context.Context, propertyCode string, faqKeys []string) (bool, error) {
	if propertyCode == "" || len(faqKeys) == 0 {
		return false, nil
	}
	for _, key := range faqKeys {
		s, err := g.repo.Get(ctx, propertyCode, key)
		if errors.Is(err, ErrNoStats) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("gate eligibility for %s/%s: %w", propertyCode, key, err)
		}
		if !s.Eligible {
			return false, nil
		}
	}
	return true, nil
}

// RecordApproved counts an unedited operator approval for each key.
func (g *Gate) RecordApproved(ctx context.Context, propertyCode string, faqKeys []string) error {
	return g.record(ctx, propertyCode, faqKeys, true)
}

// RecordEdited counts an operator edit for each key. Edits never raise the
// approval rate.
func (g *Gate) RecordEdited(ctx context.Context, propertyCode string, faqKeys []string) error {
	return g.record(ctx, propertyCode, faqKeys, false)
}

func (g *Gate) record(ctx context.Context, propertyCode string, faqKeys []string, approved bool) error {
	if propertyCode == "" {
		return nil
	}
	for _, key := range faqKeys {
		s, err := g.repo.Record(ctx, propertyCode, key, approved, g.minTotal, g.minRate)
		if err != nil {
			return fmt.Errorf("record feedback for %s/%s: %w", propertyCode, key, err)
		}
		log.Printf("[AutoSendGate] %s/%s total=%d approved=%d rate=%.3f eligible=%v",
			propertyCode, key, s.TotalCount, s.ApprovedCount, s.ApprovalRate, s.Eligible)
	}
	return nil
}
