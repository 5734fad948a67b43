package security

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// defaultMaxEntries bounds the number of identifiers tracked at once so
	// an attacker cycling identifiers cannot exhaust memory.
	defaultMaxEntries = 10000

	// staleAfter is how long an identifier may go unused before its limiter
	// is dropped by the cleanup pass.
	staleAfter = 10 * time.Minute
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter provides per-identifier token-bucket rate limiting. It is used
// to bound the logging of repeated security events (code replay, refresh
// token reuse) so an attacker cannot flood the audit stream.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*limiterEntry
	rate       rate.Limit
	burst      int
	maxEntries int
	logger     *slog.Logger
	lastSweep  time.Time
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond sustained
// events with the given burst per identifier.
func NewRateLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		limiters:   make(map[string]*limiterEntry),
		rate:       rate.Limit(requestsPerSecond),
		burst:      burst,
		maxEntries: defaultMaxEntries,
		logger:     logger,
		lastSweep:  time.Now(),
	}
}

// Allow reports whether an event for identifier is within its rate budget.
func (rl *RateLimiter) Allow(identifier string) bool {
	if rl == nil {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweepLocked(now)

	entry, ok := rl.limiters[identifier]
	if !ok {
		if len(rl.limiters) >= rl.maxEntries {
			// Table is full of live entries. Failing open here would let an
			// attacker disable limiting by cycling identifiers.
			rl.logger.Warn("Rate limiter table full, denying new identifier",
				"max_entries", rl.maxEntries)
			return false
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[identifier] = entry
	}
	entry.lastAccess = now

	return entry.limiter.Allow()
}

// Len returns the number of identifiers currently tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// sweepLocked drops stale entries. Runs at most once per staleAfter interval
// so the cost stays amortized; callers hold rl.mu.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < staleAfter {
		return
	}
	rl.lastSweep = now

	dropped := 0
	for id, entry := range rl.limiters {
		if now.Sub(entry.lastAccess) > staleAfter {
			delete(rl.limiters, id)
			dropped++
		}
	}
	if dropped > 0 {
		rl.logger.Debug("Rate limiter cleanup", "dropped", dropped, "remaining", len(rl.limiters))
	}
}
