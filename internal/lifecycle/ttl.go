package lifecycle

import "time"

// DefaultTTL applies to any timeframe missing from the table
const DefaultTTL = 120 * time.Minute

var ttlByTimeframe = map[string]time.Duration{
	"1m":  10 * time.Minute,
	"3m":  15 * time.Minute,
	"5m":  20 * time.Minute,
	"15m": 45 * time.Minute,
	"30m": 120 * time.Minute,
	"1h":  240 * time.Minute,
	"4h":  720 * time.Minute,
	"1d":  4320 * time.Minute,
}

// TTLForTimeframe returns how long a live signal on the given timeframe
// stays in the buffer before eviction. Pure table lookup.
func TTLForTimeframe(timeframe string) time.Duration {
	if ttl, ok := ttlByTimeframe[timeframe]; ok {
		return ttl
	}
	return DefaultTTL
}
