// Package pricing resolves SKU prices from their append-only price history.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrPriceNotFound = errors.New("price not found")

// Entry is one row of a SKU's price history. Seq is the insertion order and
// breaks ties between entries sharing an effective timestamp.
type Entry struct {
	SKU         string
	Price       decimal.Decimal
	EffectiveAt time.Time
	Seq         int64
}

// HistoryRepository loads the full price history of a SKU.
type HistoryRepository interface {
	PriceHistory(ctx context.Context, sku string) ([]Entry, error)
}

type Snapshot struct {
	history HistoryRepository
	now     func() time.Time
}

func NewSnapshot(history HistoryRepository, now func() time.Time) *Snapshot {
	if now == nil {
		now = time.Now
	}
	return &Snapshot{
		history: history,
		now:     now,
	}
}

// CurrentPrice returns the price in effect right now.
func (s *Snapshot) CurrentPrice(ctx context.Context, sku string) (decimal.Decimal, error) {
	return s.PriceAt(ctx, sku, s.now())
}

// PriceAt returns the price in effect at the given instant.
func (s *Snapshot) PriceAt(ctx context.Context, sku string, at time.Time) (decimal.Decimal, error) {
	if s == nil || s.history == nil {
		return decimal.Zero, fmt.Errorf("price history repository is not configured")
	}

	entries, err := s.history.PriceHistory(ctx, sku)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load price history for %s: %w", sku, err)
	}

	entry, err := Effective(entries, at)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: sku %s", err, sku)
	}
	return entry.Price, nil
}

// Effective picks the entry with the latest effective timestamp not after at.
// Entries sharing that timestamp resolve to the one written last, by Seq and
// then by position in the slice.
func Effective(entries []Entry, at time.Time) (Entry, error) {
	var (
		best  Entry
		found bool
	)
	for _, entry := range entries {
		if entry.EffectiveAt.After(at) {
			continue
		}
		if !found || supersedes(entry, best) {
			best = entry
			found = true
		}
	}
	if !found {
		return Entry{}, ErrPriceNotFound
	}
	return best, nil
}

func supersedes(candidate, current Entry) bool {
	if !candidate.EffectiveAt.Equal(current.EffectiveAt) {
		return candidate.EffectiveAt.After(current.EffectiveAt)
	}
	return candidate.Seq >= current.Seq
}
