// Package ratebucket implements a multi-bandwidth token-bucket rate
// limiter (§1-§9): a caller declares one or more Bandwidth limits, wraps
// them in a Configuration, and obtains a Bucket to throttle against. A
// Bucket may be local (this package, backed by an atomic CAS cell) or
// remote (see the grid subpackage, backed by a distributed cache's atomic
// entry processors) — both share the identical Bucket contract below,
// because both are driven by the same pure algorithm in algorithm.go.
//
// Design Philosophy (carried from the teacher's cache-manager/warming
// services, generalized from a single-bandwidth HTTP rate limiter to a
// multi-bandwidth embeddable one):
//   - Lock-free local fast path: state lives behind atomic.Pointer, CAS
//     loop retries without a cap (§4.4) — contention resolves itself
//     because a losing CAS means some other goroutine made progress.
//   - Reservation drives tokens negative rather than queuing (§4.3):
//     concurrent reservers see each other's pending demand for free.
//   - Blocking suspends outside the CAS loop (§5): the reservation
//     completes first (wait-free up to contention), then the caller
//     parks for the returned duration.
package ratebucket

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/otero-labs/ratebucket/clock"
)

// Bucket is the public contract callers program against (§6), satisfied
// identically by a local, in-process bucket and by a grid-backed remote
// bucket (grid.RemoteBucket).
type Bucket interface {
	// TryConsume attempts to consume n tokens without blocking. n must be
	// >= 1.
	TryConsume(n int64) (bool, error)

	// TryConsumeAsMuchAsPossible consumes up to limit tokens (or, if
	// limit <= 0, as many as are available) without blocking, and
	// reports how many were actually consumed.
	TryConsumeAsMuchAsPossible(limit int64) (consumed int64, err error)

	// TryConsumeAndReturnWaitNanos attempts to reserve n tokens, waiting
	// at most maxWaitNanos. On success it returns the nanoseconds the
	// caller must itself wait before treating the operation as complete,
	// and ok=true. If the reservation cannot be satisfied within
	// maxWaitNanos (or n exceeds a bandwidth's capacity outright), it
	// returns ok=false (REJECTED, §4.3) and the tokens are not debited.
	TryConsumeAndReturnWaitNanos(n, maxWaitNanos int64) (waitNanos int64, ok bool, err error)

	// Consume reserves n tokens and parks for as long as the reservation
	// requires, returning early with ErrInterruptedWait if ctx is
	// cancelled mid-park. Tokens already reserved remain debited even on
	// cancellation (§5 "Cancellation").
	Consume(ctx context.Context, n int64, strategy BlockingStrategy) error

	// ConsumeUninterruptibly behaves like Consume but never returns
	// early: it absorbs context cancellation and only returns once the
	// full park duration has elapsed.
	ConsumeUninterruptibly(n int64, strategy BlockingStrategy) error

	// ConsumeAsync is the non-parking sibling of Consume (§4.7): it
	// performs the same reservation and returns the wait duration
	// instead of parking, for callers integrated with an external
	// scheduler.
	ConsumeAsync(n int64) (waitNanos int64, err error)

	// AddTokens adds n tokens to every bandwidth, capped at each
	// bandwidth's capacity.
	AddTokens(n int64) error

	// AvailableTokens returns the effective (minimum across bandwidths)
	// token count after refilling as of now.
	AvailableTokens() (int64, error)

	// Reconfigure installs a new Configuration, matching bandwidths by Id
	// per §4.8. It fails with ErrReconfigureConflict, leaving the
	// current configuration and state untouched, if the bandwidth-id
	// sets cannot be mapped bijectively.
	Reconfigure(cfg Configuration) error
}

// LocalBucket is the in-process Bucket implementation (C5): a
// Configuration plus a BucketState held behind an atomic.Pointer and
// mutated only via compare-and-swap, matching the lock-free token bucket
// idiom the teacher uses in pkg/middleware/ratelimit.go, generalized here
// from one bandwidth to an arbitrary ordered list of them.
type LocalBucket struct {
	snap  atomic.Pointer[bucketSnapshot]
	clock clock.Source
	log   *logger
}

// bucketSnapshot pairs a Configuration with the BucketState it produced,
// swapped into place as a single atomic unit. cfg and state must never be
// updated independently: a reader that could observe one half of a
// reconfiguration (old cfg, new state, or vice versa) would index
// refill's per-bandwidth slots against a mismatched bandwidth count and
// panic (§5, "safe under arbitrary concurrent callers").
type bucketSnapshot struct {
	cfg   Configuration
	state BucketState
}

var _ Bucket = (*LocalBucket)(nil)

// NewLocalBucket constructs a LocalBucket for cfg, seeded at the current
// time read from src.
func NewLocalBucket(cfg Configuration, src clock.Source) *LocalBucket {
	if src == nil {
		src = clock.New()
	}
	b := &LocalBucket{clock: src, log: nopLogger()}
	now := src.NowNanos()
	b.snap.Store(&bucketSnapshot{cfg: cfg, state: NewBucketState(cfg, now)})
	return b
}

// WithLogger attaches a diagnostic logger (nil disables logging, the
// default). Returns the receiver for chaining.
func (b *LocalBucket) WithLogger(l *logger) *LocalBucket {
	if l == nil {
		l = nopLogger()
	}
	b.log = l
	return b
}

// casLoop is the read-modify-write retry structure described in §4.4.
// f observes the current Configuration/BucketState/now and returns the
// result plus the new state to attempt to install. casLoop retries until
// its CompareAndSwap wins; it never gives up (§4.4: "no retry cap").
func (b *LocalBucket) casLoop(f func(cfg Configuration, state BucketState, now int64) (BucketState, error)) error {
	_, err := casLoopResult(b, func(cfg Configuration, state BucketState, now int64) (struct{}, BucketState, error) {
		next, err := f(cfg, state, now)
		return struct{}{}, next, err
	})
	return err
}

// casLoopResult is casLoop's generalization for operations that also
// produce a caller-visible result (e.g. the boolean from TryConsume).
func casLoopResult[R any](b *LocalBucket, f func(cfg Configuration, state BucketState, now int64) (R, BucketState, error)) (R, error) {
	attempts := 0
	for {
		attempts++
		observed := b.snap.Load()
		now := b.clock.NowNanos()

		result, next, err := f(observed.cfg, observed.state, now)
		if err != nil {
			var zero R
			return zero, err
		}

		updated := &bucketSnapshot{cfg: observed.cfg, state: next}
		if b.snap.CompareAndSwap(observed, updated) {
			if attempts > 1 {
				b.log.Debugf("cas succeeded after %d attempts", attempts)
			}
			return result, nil
		}
		// Lost the race: some other goroutine made progress. Retry
		// unconditionally (§4.4 "no retry cap").
	}
}

// TryConsume implements Bucket.
func (b *LocalBucket) TryConsume(n int64) (bool, error) {
	if err := validateConsumeN(n); err != nil {
		return false, err
	}
	return casLoopResult(b, func(cfg Configuration, state BucketState, now int64) (bool, BucketState, error) {
		ok, next := tryConsume(cfg, state, now, n)
		return ok, next, nil
	})
}

// TryConsumeAsMuchAsPossible implements Bucket.
func (b *LocalBucket) TryConsumeAsMuchAsPossible(limit int64) (int64, error) {
	return casLoopResult(b, func(cfg Configuration, state BucketState, now int64) (int64, BucketState, error) {
		consumed, next := consumeAsMuchAsPossible(cfg, state, now, limit)
		return consumed, next, nil
	})
}

// waitResult bundles TryConsumeAndReturnWaitNanos's two-valued outcome
// through the generic casLoopResult helper.
type waitResult struct {
	nanos int64
	ok    bool
}

// TryConsumeAndReturnWaitNanos implements Bucket.
func (b *LocalBucket) TryConsumeAndReturnWaitNanos(n, maxWaitNanos int64) (int64, bool, error) {
	if err := validateConsumeN(n); err != nil {
		return 0, false, err
	}
	if maxWaitNanos < 0 {
		return 0, false, fmt.Errorf("%w: maxWaitNanos must be >= 0, got %d", ErrInvalidArgument, maxWaitNanos)
	}

	res, err := casLoopResult(b, func(cfg Configuration, state BucketState, now int64) (waitResult, BucketState, error) {
		wait, rejected, next := tryConsumeAndReserve(cfg, state, now, n, maxWaitNanos)
		return waitResult{nanos: wait, ok: !rejected}, next, nil
	})
	if err != nil {
		return 0, false, err
	}
	return res.nanos, res.ok, nil
}

// AddTokens implements Bucket.
func (b *LocalBucket) AddTokens(n int64) error {
	if err := validateConsumeN(n); err != nil {
		return err
	}
	return b.casLoop(func(cfg Configuration, state BucketState, now int64) (BucketState, error) {
		return addTokens(cfg, state, now, n), nil
	})
}

// AvailableTokens implements Bucket.
func (b *LocalBucket) AvailableTokens() (int64, error) {
	return casLoopResult(b, func(cfg Configuration, state BucketState, now int64) (int64, BucketState, error) {
		refilled := refill(cfg, state, now)
		return refilled.MinAvailable(), refilled, nil
	})
}

// Reconfigure implements Bucket, installing cfg as one more CAS-guarded
// transform over the snapshot cell (§4.8), so it is linearizable with
// concurrent consumption: cfg and state move together in a single CAS, so
// no racing reader can ever observe a configuration paired with a state
// computed under a different configuration.
func (b *LocalBucket) Reconfigure(newCfg Configuration) error {
	for {
		observed := b.snap.Load()
		now := b.clock.NowNanos()

		next, err := observed.state.reconfigure(observed.cfg, newCfg, now)
		if err != nil {
			return err
		}

		updated := &bucketSnapshot{cfg: newCfg, state: next}
		if !b.snap.CompareAndSwap(observed, updated) {
			continue
		}
		b.log.Debugf("reconfigured bucket to %d bandwidths", newCfg.Len())
		return nil
	}
}

// ConsumeAsync implements Bucket (§4.7): the reservation without the park.
func (b *LocalBucket) ConsumeAsync(n int64) (int64, error) {
	wait, ok, err := b.TryConsumeAndReturnWaitNanos(n, maxWaitUnbounded)
	if err != nil {
		return 0, err
	}
	if !ok {
		// maxWaitUnbounded means REJECTED can only happen when n exceeds
		// a bandwidth's capacity outright.
		return 0, fmt.Errorf("%w: %d tokens exceeds bucket capacity", ErrRejected, n)
	}
	return wait, nil
}

// maxWaitUnbounded stands in for "no timeout" (Consume/ConsumeUninterruptibly/
// ConsumeAsync all reserve with an effectively infinite budget, §4.6).
const maxWaitUnbounded = int64(1<<63 - 1)
