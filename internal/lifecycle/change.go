package lifecycle

import (
	"math"
	"sync"

	"ultra-signal-engine/internal/arbiter"
)

// Change-detection reasons, in evaluation order
const (
	ReasonFirstSignal        = "first_signal"
	ReasonDirectionChanged   = "direction_changed"
	ReasonConfidenceChanged  = "confidence_changed"
	ReasonPriceChanged       = "price_changed"
	ReasonNoMeaningfulChange = "no_meaningful_change"
)

// Decision is the gate's verdict for one evaluation
type Decision struct {
	Reason  string `json:"reason"`
	Persist bool   `json:"persist"`
}

// ChangeDetector decides whether a freshly arbitrated signal differs
// meaningfully from the prior one for its (symbol, timeframe) and so
// deserves a durable history write. The comparison baseline advances on
// every evaluation, persisted or not, so a slow drift cannot hide behind
// a stale multi-step-old comparator.
type ChangeDetector struct {
	confidenceThreshold float64 // points
	priceThresholdPct   float64 // percent

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	last  map[string]*arbiter.UltraSignal
}

// NewChangeDetector creates a detector with the given thresholds.
// Non-positive thresholds fall back to 5 points and 0.2%.
func NewChangeDetector(confidenceThreshold, priceThresholdPct float64) *ChangeDetector {
	if confidenceThreshold <= 0 {
		confidenceThreshold = 5
	}
	if priceThresholdPct <= 0 {
		priceThresholdPct = 0.2
	}
	return &ChangeDetector{
		confidenceThreshold: confidenceThreshold,
		priceThresholdPct:   priceThresholdPct,
		locks:               make(map[string]*sync.Mutex),
		last:                make(map[string]*arbiter.UltraSignal),
	}
}

func key(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

// keyLock returns the mutex serializing evaluations for one (symbol,
// timeframe). Different keys proceed independently.
func (d *ChangeDetector) keyLock(k string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[k]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[k] = lock
	}
	return lock
}

// Evaluate compares the signal against the stored baseline and returns the
// first matching reason in fixed order: first_signal, direction_changed,
// confidence_changed, price_changed, no_meaningful_change. The read,
// compare and baseline update happen atomically per key.
func (d *ChangeDetector) Evaluate(signal *arbiter.UltraSignal) Decision {
	k := key(signal.Symbol, signal.Timeframe)
	lock := d.keyLock(k)
	lock.Lock()
	defer lock.Unlock()

	prior := d.last[k]
	d.last[k] = signal

	if prior == nil {
		return Decision{Reason: ReasonFirstSignal, Persist: true}
	}
	if signal.Side != prior.Side {
		return Decision{Reason: ReasonDirectionChanged, Persist: true}
	}
	if math.Abs(signal.FinalConfidence-prior.FinalConfidence) >= d.confidenceThreshold {
		return Decision{Reason: ReasonConfidenceChanged, Persist: true}
	}
	if priceChanged(prior.Entry, signal.Entry, d.priceThresholdPct) {
		return Decision{Reason: ReasonPriceChanged, Persist: true}
	}
	return Decision{Reason: ReasonNoMeaningfulChange, Persist: false}
}

// Baseline returns the current comparison baseline for a (symbol,
// timeframe), nil when none exists yet
func (d *ChangeDetector) Baseline(symbol, timeframe string) *arbiter.UltraSignal {
	k := key(symbol, timeframe)
	lock := d.keyLock(k)
	lock.Lock()
	defer lock.Unlock()
	return d.last[k]
}

// priceChanged applies the percent threshold against the prior entry.
// An entry appearing or disappearing counts as a change; two absent
// entries do not.
func priceChanged(prior, current, thresholdPct float64) bool {
	if prior == 0 && current == 0 {
		return false
	}
	if prior == 0 || current == 0 {
		return true
	}
	return math.Abs(current-prior)/prior*100 >= thresholdPct
}
