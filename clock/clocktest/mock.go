// Package clocktest provides a deterministic clock.Source for tests that
// exercise refill math without sleeping real wall-clock time.
package clocktest

import (
	"sync/atomic"

	"github.com/otero-labs/ratebucket/clock"
)

// Mock is a clock.Source whose value only moves when Advance or Set is
// called. The zero value starts at nanosecond 0.
type Mock struct {
	nanos atomic.Int64
}

var _ clock.Source = (*Mock)(nil)

// NewMock returns a Mock starting at the given nanosecond value.
func NewMock(startNanos int64) *Mock {
	m := &Mock{}
	m.nanos.Store(startNanos)
	return m
}

// NowNanos implements clock.Source.
func (m *Mock) NowNanos() int64 {
	return m.nanos.Load()
}

// Advance moves the clock forward by delta nanoseconds. delta may be
// negative to exercise the "time went backwards" edge case; callers that
// want to simulate clock wraparound should use Set near math.MaxInt64 and
// then Advance past it.
func (m *Mock) Advance(delta int64) {
	m.nanos.Add(delta)
}

// Set pins the clock to an absolute nanosecond value.
func (m *Mock) Set(nanos int64) {
	m.nanos.Store(nanos)
}
