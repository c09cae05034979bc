package ratebucket

import (
	"context"
	"fmt"
	"time"
)

// BlockingStrategy is the injected parking capability used by Consume and
// ConsumeUninterruptibly (§4.6). Implementations get only two operations,
// the same "tagged capability, not a class hierarchy" shape the teacher's
// Config/Strategy interfaces use throughout cache-manager and warming.
type BlockingStrategy interface {
	// Park suspends the caller for approximately nanos nanoseconds,
	// returning early with ctx.Err() if ctx is cancelled first.
	Park(ctx context.Context, nanos int64) error

	// ParkUninterruptibly suspends for exactly nanos nanoseconds and
	// never returns early.
	ParkUninterruptibly(nanos int64)
}

// timerBlockingStrategy is the default BlockingStrategy: it loops on a
// timer, recomputing the remaining duration from a captured deadline via
// delta comparison (deadline-now <= 0 means done) rather than trusting a
// single timer to fire at exactly the right instant — the same safeguard
// against monotonic-clock wraparound the distilled spec calls out in §4.6
// and §8's clock-wrap-safety property.
type timerBlockingStrategy struct{}

// DefaultBlockingStrategy returns the library's built-in BlockingStrategy,
// suitable for production use. Consume/ConsumeUninterruptibly use this
// automatically when called with a nil strategy.
func DefaultBlockingStrategy() BlockingStrategy {
	return timerBlockingStrategy{}
}

func (timerBlockingStrategy) Park(ctx context.Context, nanos int64) error {
	if nanos <= 0 {
		return nil
	}
	deadline := time.Now().Add(time.Duration(nanos))

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Re-check the deadline on the next iteration.
		}
	}
}

func (timerBlockingStrategy) ParkUninterruptibly(nanos int64) {
	if nanos <= 0 {
		return
	}
	deadline := time.Now().Add(time.Duration(nanos))

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		time.Sleep(remaining)
	}
}

// Consume implements Bucket: reserve n tokens (§4.3's tryConsumeAndReserve
// with an unbounded wait budget) and park for the returned duration. A
// cancelled ctx propagates as ErrInterruptedWait; the tokens already
// reserved remain debited (§5 "Cancellation") — the library does not
// un-reserve on interruption.
func (b *LocalBucket) Consume(ctx context.Context, n int64, strategy BlockingStrategy) error {
	if strategy == nil {
		strategy = DefaultBlockingStrategy()
	}

	wait, ok, err := b.TryConsumeAndReturnWaitNanos(n, maxWaitUnbounded)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d tokens exceeds bucket capacity", ErrRejected, n)
	}
	if wait == 0 {
		return nil
	}

	if err := strategy.Park(ctx, wait); err != nil {
		b.log.Warnf("consume interrupted after reserving %d tokens (%d ns remaining)", n, wait)
		return fmt.Errorf("%w: %v", ErrInterruptedWait, err)
	}
	return nil
}

// ConsumeUninterruptibly implements Bucket: identical to Consume except
// the park absorbs cancellation and only returns once it has waited the
// full reserved duration.
func (b *LocalBucket) ConsumeUninterruptibly(n int64, strategy BlockingStrategy) error {
	if strategy == nil {
		strategy = DefaultBlockingStrategy()
	}

	wait, ok, err := b.TryConsumeAndReturnWaitNanos(n, maxWaitUnbounded)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d tokens exceeds bucket capacity", ErrRejected, n)
	}
	if wait == 0 {
		return nil
	}

	strategy.ParkUninterruptibly(wait)
	return nil
}
