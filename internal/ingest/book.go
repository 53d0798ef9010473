package ingest

import (
	"sync"
	"time"

	"ultra-signal-engine/internal/arbiter"
)

// Book holds the raw sources awaiting arbitration, keyed by
// (symbol, timeframe). Sources age out after maxAge; arbitration only
// ever sees the still-fresh ones.
type Book struct {
	mu      sync.Mutex
	sources map[string][]arbiter.RawSource
	maxAge  time.Duration
}

// NewBook creates a source book. A non-positive maxAge falls back to 30
// minutes.
func NewBook(maxAge time.Duration) *Book {
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	return &Book{
		sources: make(map[string][]arbiter.RawSource),
		maxAge:  maxAge,
	}
}

func bookKey(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

// Add records a raw source for the (symbol, timeframe)
func (b *Book) Add(symbol, timeframe string, source arbiter.RawSource) {
	key := bookKey(symbol, timeframe)
	b.mu.Lock()
	b.sources[key] = append(b.sources[key], source)
	b.mu.Unlock()
}

// Sources returns the fresh raw sources for the (symbol, timeframe),
// pruning stale ones as a side effect
func (b *Book) Sources(symbol, timeframe string, now time.Time) []arbiter.RawSource {
	key := bookKey(symbol, timeframe)
	cutoff := now.Add(-b.maxAge)

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.sources[key][:0]
	for _, src := range b.sources[key] {
		if src.GeneratedAt().Before(cutoff) {
			continue
		}
		kept = append(kept, src)
	}
	if len(kept) == 0 {
		delete(b.sources, key)
		return nil
	}
	b.sources[key] = kept

	out := make([]arbiter.RawSource, len(kept))
	copy(out, kept)
	return out
}

// Clear drops every source for the (symbol, timeframe)
func (b *Book) Clear(symbol, timeframe string) {
	b.mu.Lock()
	delete(b.sources, bookKey(symbol, timeframe))
	b.mu.Unlock()
}

// Len returns the total number of buffered sources across all keys
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, list := range b.sources {
		total += len(list)
	}
	return total
}
