// Package frequency keeps per-keyword word counts up to date as messages
// are scanned.
package frequency

import (
	"context"
	"fmt"
	"time"

	"github.com/channel-scout/internal/extract"
	"github.com/channel-scout/internal/storage"
)

// Aggregator accumulates word frequencies in the store
type Aggregator struct {
	repository storage.Repository
	now        func() time.Time
}

// NewAggregator creates a new aggregator backed by repository
func NewAggregator(repository storage.Repository) *Aggregator {
	return &Aggregator{
		repository: repository,
		now:        time.Now,
	}
}

// RecordOccurrences tokenizes text and adds one to the keyword's count for
// every token occurrence. It returns the number of tokens recorded.
func (a *Aggregator) RecordOccurrences(ctx context.Context, keywordID uint, text string) (int, error) {
	counts := extract.Counts(text)
	if len(counts) == 0 {
		return 0, nil
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	if err := a.repository.IncrementWordCounts(ctx, keywordID, counts, a.now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to record word counts: %w", err)
	}
	return total, nil
}
