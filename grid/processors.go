package grid

import (
	"fmt"

	"github.com/otero-labs/ratebucket"
)

// Apply is the server-side dispatch every Cache implementation should
// call from inside its own atomic section: given the entry currently
// stored at a key (nil if absent), the processor to apply, and the
// current time, it returns the Result, the GridBucketState, and whether
// that state should be written (false for GET_STATE on an existing entry;
// false with the zero value on the THROW/absent case and on any error).
// This is the "remote side dispatches on the
// opcode" mechanism from the distilled spec's design notes (§9),
// factored out so both the in-memory test double (grid/gridtest) and any
// real backend share one implementation, the same way
// ratebucket.ApplyTryConsume etc. are shared between the local CAS loop
// and this package.
func Apply(existing *GridBucketState, nowNanos int64, p EntryProcessor) (Result, GridBucketState, bool, error) {
	entry, err := resolveEntry(existing, nowNanos, p)
	if err != nil {
		return Result{}, GridBucketState{}, false, err
	}

	switch p.Opcode {
	case OpTryConsume:
		if err := ratebucket.ValidateConsumeN(p.N); err != nil {
			return Result{}, GridBucketState{}, false, err
		}
		ok, next := ratebucket.ApplyTryConsume(entry.Configuration, entry.State, nowNanos, p.N)
		entry.State = next
		return Result{Ok: ok, AvailableTokens: next.MinAvailable()}, entry, true, nil

	case OpConsumeAsMuchAsPossible:
		consumed, next := ratebucket.ApplyConsumeAsMuchAsPossible(entry.Configuration, entry.State, nowNanos, p.Limit)
		entry.State = next
		return Result{Consumed: consumed, AvailableTokens: next.MinAvailable()}, entry, true, nil

	case OpReserve:
		if err := ratebucket.ValidateConsumeN(p.N); err != nil {
			return Result{}, GridBucketState{}, false, err
		}
		wait, rejected, next := ratebucket.ApplyTryConsumeAndReserve(entry.Configuration, entry.State, nowNanos, p.N, p.MaxWaitNanos)
		entry.State = next
		return Result{Ok: !rejected, WaitNanos: wait, AvailableTokens: next.MinAvailable()}, entry, true, nil

	case OpAddTokens:
		if err := ratebucket.ValidateConsumeN(p.N); err != nil {
			return Result{}, GridBucketState{}, false, err
		}
		next := ratebucket.ApplyAddTokens(entry.Configuration, entry.State, nowNanos, p.N)
		entry.State = next
		return Result{AvailableTokens: next.MinAvailable()}, entry, true, nil

	case OpGetState:
		// Read-only: report the post-refill available tokens without
		// persisting the refill's advancement of lastRefillNanos, per
		// §4.5's "GET_STATE for read-only inspection". The freshly
		// RECONSTRUCTed entry above is still written, since the entry
		// itself must now exist for anyone to have something to read.
		refilled := ratebucket.ApplyRefill(entry.Configuration, entry.State, nowNanos)
		reconstructed := existing == nil
		return Result{AvailableTokens: refilled.MinAvailable()}, entry, reconstructed, nil

	case OpReconfigure:
		next, err := ratebucket.Reconfigure(entry.Configuration, entry.State, p.NewConfig, nowNanos)
		if err != nil {
			return Result{}, GridBucketState{}, false, err
		}
		entry.Configuration = p.NewConfig
		entry.State = next
		return Result{AvailableTokens: next.MinAvailable()}, entry, true, nil

	default:
		return Result{}, GridBucketState{}, false, fmt.Errorf("%w: unknown opcode %q", ratebucket.ErrInvalidArgument, p.Opcode)
	}
}

// resolveEntry implements §4.5's missing-entry semantics: RECONSTRUCT
// builds a fresh GridBucketState from p.Config; THROW returns
// ErrBucketNotFound without building anything.
func resolveEntry(existing *GridBucketState, nowNanos int64, p EntryProcessor) (GridBucketState, error) {
	if existing != nil {
		return *existing, nil
	}

	if p.Recovery == Throw {
		return GridBucketState{}, ratebucket.ErrBucketNotFound
	}

	return NewGridBucketState(p.Config, nowNanos), nil
}
