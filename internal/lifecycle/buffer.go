package lifecycle

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ultra-signal-engine/internal/arbiter"
)

// Filter narrows a live-buffer listing. Zero values match everything.
type Filter struct {
	Symbol        string
	Timeframe     string
	Side          string
	MinConfidence float64
}

// Stats is a snapshot of buffer occupancy
type Stats struct {
	Total       int            `json:"total"`
	ByTimeframe map[string]int `json:"by_timeframe"`
	BySide      map[string]int `json:"by_side"`
}

type bufferEntry struct {
	signal   *arbiter.UltraSignal
	deadline time.Time
}

// deadlineItem is one scheduled eviction in the heap. Items are never
// removed early; a stale item is skipped when it pops because the map no
// longer agrees with it.
type deadlineItem struct {
	id       string
	deadline time.Time
}

type deadlineHeap []deadlineItem

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x interface{}) { *h = append(*h, x.(deadlineItem)) }
func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Buffer holds live signals keyed by id until their timeframe TTL runs
// out. One deadline heap plus a periodic sweep schedules every eviction;
// there is no per-entry timer. Eviction is idempotent: removing an id that
// is already gone is a no-op.
type Buffer struct {
	mu      sync.Mutex
	entries map[string]bufferEntry
	heap    deadlineHeap
	log     zerolog.Logger

	// onEvict runs outside the lock for every TTL eviction
	onEvict func(*arbiter.UltraSignal)
}

// NewBuffer creates an empty live buffer
func NewBuffer(log zerolog.Logger) *Buffer {
	return &Buffer{
		entries: make(map[string]bufferEntry),
		log:     log,
	}
}

// OnEvict registers a callback invoked for every signal the sweeper
// evicts. Must be set before the sweeper starts.
func (b *Buffer) OnEvict(fn func(*arbiter.UltraSignal)) {
	b.onEvict = fn
}

// Add inserts the signal and schedules its eviction at now + TTL.
// Re-adding an existing id replaces the entry and its deadline. Returns
// the eviction deadline.
func (b *Buffer) Add(signal *arbiter.UltraSignal, now time.Time) time.Time {
	deadline := now.Add(TTLForTimeframe(signal.Timeframe))

	b.mu.Lock()
	b.entries[signal.ID] = bufferEntry{signal: signal, deadline: deadline}
	heap.Push(&b.heap, deadlineItem{id: signal.ID, deadline: deadline})
	b.mu.Unlock()

	b.log.Debug().
		Str("signal_id", signal.ID).
		Str("symbol", signal.Symbol).
		Str("timeframe", signal.Timeframe).
		Time("expires_at", deadline).
		Msg("signal buffered")

	return deadline
}

// Remove deletes the signal by id. The scheduled heap item stays behind
// and is skipped when it surfaces. Returns whether the id was present.
func (b *Buffer) Remove(id string) bool {
	b.mu.Lock()
	_, present := b.entries[id]
	delete(b.entries, id)
	b.mu.Unlock()
	return present
}

// Get returns the live signal by id
func (b *Buffer) Get(id string) (*arbiter.UltraSignal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[id]
	if !ok {
		return nil, false
	}
	return entry.signal, true
}

// List returns the live signals matching the filter, a consistent
// snapshot taken under the lock
func (b *Buffer) List(filter Filter) []*arbiter.UltraSignal {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*arbiter.UltraSignal
	for _, entry := range b.entries {
		s := entry.signal
		if filter.Symbol != "" && s.Symbol != filter.Symbol {
			continue
		}
		if filter.Timeframe != "" && s.Timeframe != filter.Timeframe {
			continue
		}
		if filter.Side != "" && s.Side != filter.Side {
			continue
		}
		if filter.MinConfidence > 0 && s.FinalConfidence < filter.MinConfidence {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Len returns the number of live entries
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Stats returns occupancy counts by timeframe and side
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := Stats{
		Total:       len(b.entries),
		ByTimeframe: make(map[string]int),
		BySide:      make(map[string]int),
	}
	for _, entry := range b.entries {
		stats.ByTimeframe[entry.signal.Timeframe]++
		stats.BySide[entry.signal.Side]++
	}
	return stats
}

// Sweep evicts every entry whose deadline has passed and returns them.
// A heap item whose id was removed, or whose entry was re-added with a
// later deadline, is skipped.
func (b *Buffer) Sweep(now time.Time) []*arbiter.UltraSignal {
	b.mu.Lock()
	var evicted []*arbiter.UltraSignal
	for b.heap.Len() > 0 && !b.heap[0].deadline.After(now) {
		item := heap.Pop(&b.heap).(deadlineItem)
		entry, ok := b.entries[item.id]
		if !ok || entry.deadline.After(now) {
			continue // removed earlier or superseded by a re-add
		}
		delete(b.entries, item.id)
		evicted = append(evicted, entry.signal)
	}
	b.mu.Unlock()

	for _, signal := range evicted {
		b.log.Debug().
			Str("signal_id", signal.ID).
			Str("symbol", signal.Symbol).
			Str("timeframe", signal.Timeframe).
			Msg("signal expired")
		if b.onEvict != nil {
			b.onEvict(signal)
		}
	}
	return evicted
}

// Run sweeps on the given interval until the context ends
func (b *Buffer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.log.Info().Dur("interval", interval).Msg("live buffer sweeper started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("live buffer sweeper stopped")
			return
		case now := <-ticker.C:
			b.Sweep(now)
		}
	}
}
