package ratebucket

import "fmt"

// This file implements the pure token-bucket algorithm (C4): refill and
// the four consumption primitives from §4.2/§4.3. Every function here is
// free of side effects — given the same (Configuration, BucketState, now,
// args) it always returns the same (result, BucketState). That purity is
// what lets the local bucket (bucket.go) and the grid entry processors
// (grid/processors.go) share one implementation: the local bucket drives
// it through a compare-and-swap loop over an atomic cell, the grid drives
// it through the cache's own atomic read-modify-write.

// refill applies §4.2 independently to every bandwidth in cfg, returning a
// new BucketState. Bandwidths are refilled in isolation; there is no
// cross-bandwidth coupling at this stage (that happens in the consumption
// primitives below, via min-aggregation).
func refill(cfg Configuration, state BucketState, nowNanos int64) BucketState {
	bws := cfg.Bandwidths()
	out := state.clone()

	for i, b := range bws {
		slot := &out.slots[i]

		elapsed := nowNanos - slot.lastRefillNanos
		if elapsed <= 0 {
			// Monotonic refill: a clock that reports "now" at or before
			// the last refill (including the non-monotonic-clock edge
			// case in §4.3) contributes nothing.
			continue
		}

		var added int64
		switch b.shape {
		case RefillIntervally:
			periods := elapsed / b.refillPeriodNanos
			if periods <= 0 {
				continue
			}
			added = periods * b.refillTokens
			slot.lastRefillNanos += periods * b.refillPeriodNanos

		default: // RefillSmooth
			added = (elapsed * b.refillTokens) / b.refillPeriodNanos
			if added <= 0 {
				continue
			}
			// Advance lastRefillNanos only by the portion of elapsed
			// that produced whole tokens, leaving the fractional
			// remainder to be picked up on the next refill. This is
			// the §4.2 guarantee against drift.
			slot.lastRefillNanos += (added * b.refillPeriodNanos) / b.refillTokens
		}

		newTokens := slot.currentTokens + added
		if newTokens > b.capacity {
			newTokens = b.capacity
		}
		slot.currentTokens = newTokens
	}

	return out
}

// tryConsume implements §4.3's tryConsume primitive.
func tryConsume(cfg Configuration, state BucketState, nowNanos, n int64) (bool, BucketState) {
	refilled := refill(cfg, state, nowNanos)
	if refilled.MinAvailable() < n {
		return false, refilled
	}
	return true, debitAll(refilled, n)
}

// consumeAsMuchAsPossible implements §4.3's consumeAsMuchAsPossible
// primitive. limit <= 0 means unbounded (consume up to the effective
// limit, whatever it is).
func consumeAsMuchAsPossible(cfg Configuration, state BucketState, nowNanos, limit int64) (int64, BucketState) {
	refilled := refill(cfg, state, nowNanos)
	consumed := refilled.MinAvailable()
	if consumed < 0 {
		consumed = 0
	}
	if limit > 0 && limit < consumed {
		consumed = limit
	}
	if consumed == 0 {
		return 0, refilled
	}
	return consumed, debitAll(refilled, consumed)
}

// tryConsumeAndReserve implements §4.3's tryConsumeAndReserve primitive.
// It returns (nanosToWait, rejected, newState). When rejected is true,
// newState is the post-refill (but not post-debit) state and
// nanosToWait is meaningless.
func tryConsumeAndReserve(cfg Configuration, state BucketState, nowNanos, n, maxWaitNanos int64) (int64, bool, BucketState) {
	bws := cfg.Bandwidths()
	refilled := refill(cfg, state, nowNanos)

	var maxWait int64
	for i, b := range bws {
		if n > b.capacity {
			// Can never be satisfied regardless of wait.
			return 0, true, refilled
		}

		needed := n - refilled.slots[i].currentTokens
		if needed <= 0 {
			continue
		}

		wait := nanosToAccrue(b, needed)
		if wait > maxWait {
			maxWait = wait
		}
	}

	if maxWait > maxWaitNanos {
		return 0, true, refilled
	}

	return maxWait, false, debitAll(refilled, n)
}

// nanosToAccrue returns the minimal nanosecond delay after which bandwidth
// b will have accrued at least `needed` additional tokens, inverting the
// §4.2 refill formulas.
func nanosToAccrue(b Bandwidth, needed int64) int64 {
	switch b.shape {
	case RefillIntervally:
		periods := ceilDiv(needed, b.refillTokens)
		return periods * b.refillPeriodNanos
	default: // RefillSmooth
		return ceilDiv(needed*b.refillPeriodNanos, b.refillTokens)
	}
}

// ceilDiv computes ceil(a/b) for positive a, b using integer arithmetic.
func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// addTokens implements §4.3's addTokens primitive.
func addTokens(cfg Configuration, state BucketState, nowNanos, n int64) BucketState {
	refilled := refill(cfg, state, nowNanos)
	bws := cfg.Bandwidths()
	out := refilled.clone()
	for i, b := range bws {
		newTokens := out.slots[i].currentTokens + n
		if newTokens > b.capacity {
			newTokens = b.capacity
		}
		out.slots[i].currentTokens = newTokens
	}
	return out
}

// debitAll subtracts n from every bandwidth's currentTokens, allowed to go
// negative (the reservation mechanism in tryConsumeAndReserve relies on
// this; tryConsume/consumeAsMuchAsPossible only ever call it with an n
// already proven available, so it never drives them negative there).
func debitAll(state BucketState, n int64) BucketState {
	out := state.clone()
	for i := range out.slots {
		out.slots[i].currentTokens -= n
	}
	return out
}

// validateConsumeN is the fail-fast check shared by every public consuming
// operation (§4.3 edge cases: "requesting n <= 0 is a caller error").
func validateConsumeN(n int64) error {
	if n <= 0 {
		return fmt.Errorf("%w: n must be >= 1, got %d", ErrInvalidArgument, n)
	}
	return nil
}

// The exported Apply* functions below re-expose the same pure primitives
// for the grid package's entry processors (§4.5): a remote bucket applies
// the identical algorithm against a BucketState fetched from the cache,
// inside the grid's own atomic read-modify-write, instead of inside the
// CAS loop in bucket.go. Keeping one algorithm implementation behind both
// entry points is the point of C4 being a standalone component.

// ApplyRefill exports refill for out-of-package callers (grid processors).
func ApplyRefill(cfg Configuration, state BucketState, nowNanos int64) BucketState {
	return refill(cfg, state, nowNanos)
}

// ApplyTryConsume exports tryConsume for out-of-package callers.
func ApplyTryConsume(cfg Configuration, state BucketState, nowNanos, n int64) (bool, BucketState) {
	return tryConsume(cfg, state, nowNanos, n)
}

// ApplyConsumeAsMuchAsPossible exports consumeAsMuchAsPossible for
// out-of-package callers.
func ApplyConsumeAsMuchAsPossible(cfg Configuration, state BucketState, nowNanos, limit int64) (int64, BucketState) {
	return consumeAsMuchAsPossible(cfg, state, nowNanos, limit)
}

// ApplyTryConsumeAndReserve exports tryConsumeAndReserve for
// out-of-package callers.
func ApplyTryConsumeAndReserve(cfg Configuration, state BucketState, nowNanos, n, maxWaitNanos int64) (int64, bool, BucketState) {
	return tryConsumeAndReserve(cfg, state, nowNanos, n, maxWaitNanos)
}

// ApplyAddTokens exports addTokens for out-of-package callers.
func ApplyAddTokens(cfg Configuration, state BucketState, nowNanos, n int64) BucketState {
	return addTokens(cfg, state, nowNanos, n)
}

// ValidateConsumeN exports validateConsumeN for out-of-package callers.
func ValidateConsumeN(n int64) error {
	return validateConsumeN(n)
}
