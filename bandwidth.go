package ratebucket

import (
	"fmt"
	"time"
)

// RefillShape distinguishes how a Bandwidth replenishes tokens over time.
type RefillShape int

const (
	// RefillSmooth continuously accrues fractional tokens internally but
	// only ever exposes whole tokens (§4.2). This is the shape most
	// production limiters want: no thundering-herd refill at period
	// boundaries.
	RefillSmooth RefillShape = iota

	// RefillIntervally adds refillTokens in one discrete burst every
	// refillPeriodNanos, with no accrual in between.
	RefillIntervally
)

func (s RefillShape) String() string {
	switch s {
	case RefillSmooth:
		return "smooth"
	case RefillIntervally:
		return "intervally"
	default:
		return fmt.Sprintf("RefillShape(%d)", int(s))
	}
}

// Bandwidth is one immutable rate rule: a capacity, a refill rate expressed
// as refillTokens added every refillPeriodNanos, and the number of tokens a
// freshly constructed bucket starts with.
//
// Bandwidth carries an optional Id used only for Reconfigure (§4.8)
// matching; two identified bandwidths are equivalent for reconfiguration
// purposes iff their ids match. Bandwidths without an Id are matched by
// their order among the unidentified ones.
type Bandwidth struct {
	id                string
	capacity          int64
	refillTokens      int64
	refillPeriodNanos int64
	initialTokens     int64
	shape             RefillShape
}

// Simple returns a Bandwidth that refills its full capacity once per
// period and starts full — the common "N per period" case.
//
// Example:
//
//	b := Simple(1000, time.Minute) // 1000 tokens/minute, starts at 1000
func Simple(capacity int64, period time.Duration) Bandwidth {
	b, err := NewBandwidth(Params{
		Capacity:          capacity,
		RefillTokens:      capacity,
		RefillPeriodNanos: int64(period),
		InitialTokens:     capacity,
		Shape:             RefillSmooth,
	})
	if err != nil {
		// Simple's inputs can only be invalid if capacity <= 0 or
		// period <= 0, which is a programmer error at the call site;
		// panic, matching the
		// teacher's NewTokenBucket constructor which panics on invalid
		// refillRate/bucketSize rather than returning an error.
		panic(err)
	}
	return b
}

// Params describes a Bandwidth's construction arguments for NewBandwidth.
type Params struct {
	// Id, if non-empty, is used to match this bandwidth across a
	// Reconfigure call (§4.8). Bandwidths with an empty Id are matched by
	// their order among the unidentified bandwidths of each configuration.
	Id string

	Capacity          int64
	RefillTokens      int64
	RefillPeriodNanos int64
	InitialTokens     int64
	Shape             RefillShape
}

// NewBandwidth validates Params and returns an immutable Bandwidth.
//
// Validates: capacity > 0, refillPeriodNanos > 0, 1 <= refillTokens <=
// capacity, 0 <= initialTokens <= capacity (§4.1).
func NewBandwidth(p Params) (Bandwidth, error) {
	if p.Capacity <= 0 {
		return Bandwidth{}, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidArgument, p.Capacity)
	}
	if p.RefillPeriodNanos <= 0 {
		return Bandwidth{}, fmt.Errorf("%w: refillPeriodNanos must be positive, got %d", ErrInvalidArgument, p.RefillPeriodNanos)
	}
	if p.RefillTokens < 1 || p.RefillTokens > p.Capacity {
		return Bandwidth{}, fmt.Errorf("%w: refillTokens must be in [1, capacity=%d], got %d", ErrInvalidArgument, p.Capacity, p.RefillTokens)
	}
	if p.InitialTokens < 0 || p.InitialTokens > p.Capacity {
		return Bandwidth{}, fmt.Errorf("%w: initialTokens must be in [0, capacity=%d], got %d", ErrInvalidArgument, p.Capacity, p.InitialTokens)
	}

	return Bandwidth{
		id:                p.Id,
		capacity:          p.Capacity,
		refillTokens:      p.RefillTokens,
		refillPeriodNanos: p.RefillPeriodNanos,
		initialTokens:     p.InitialTokens,
		shape:             p.Shape,
	}, nil
}

// Id returns the reconfiguration-matching identifier, or "" if unset.
func (b Bandwidth) Id() string { return b.id }

// Capacity returns the maximum token count.
func (b Bandwidth) Capacity() int64 { return b.capacity }

// RefillTokens returns the number of tokens added per RefillPeriodNanos.
func (b Bandwidth) RefillTokens() int64 { return b.refillTokens }

// RefillPeriodNanos returns the refill period in nanoseconds.
func (b Bandwidth) RefillPeriodNanos() int64 { return b.refillPeriodNanos }

// InitialTokens returns the token count a freshly constructed state seeds
// this bandwidth with.
func (b Bandwidth) InitialTokens() int64 { return b.initialTokens }

// Shape returns whether this bandwidth refills smoothly or intervally.
func (b Bandwidth) Shape() RefillShape { return b.shape }

// WithId returns a copy of b carrying the given reconfiguration id.
func (b Bandwidth) WithId(id string) Bandwidth {
	b.id = id
	return b
}

// WithInitialTokens returns a copy of b with a different starting token
// count (validated against capacity by NewConfiguration).
func (b Bandwidth) WithInitialTokens(initial int64) Bandwidth {
	b.initialTokens = initial
	return b
}
