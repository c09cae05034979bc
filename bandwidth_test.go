package ratebucket

import (
	"errors"
	"testing"
	"time"
)

func TestNewBandwidthValidation(t *testing.T) {
	cases := []struct {
		name string
		p    Params
		ok   bool
	}{
		{"valid", Params{Capacity: 10, RefillTokens: 5, RefillPeriodNanos: int64(time.Second), InitialTokens: 10}, true},
		{"zero capacity", Params{Capacity: 0, RefillTokens: 1, RefillPeriodNanos: 1, InitialTokens: 0}, false},
		{"negative capacity", Params{Capacity: -5, RefillTokens: 1, RefillPeriodNanos: 1, InitialTokens: 0}, false},
		{"zero period", Params{Capacity: 10, RefillTokens: 1, RefillPeriodNanos: 0, InitialTokens: 0}, false},
		{"refillTokens zero", Params{Capacity: 10, RefillTokens: 0, RefillPeriodNanos: 1, InitialTokens: 0}, false},
		{"refillTokens over capacity", Params{Capacity: 10, RefillTokens: 11, RefillPeriodNanos: 1, InitialTokens: 0}, false},
		{"initialTokens negative", Params{Capacity: 10, RefillTokens: 1, RefillPeriodNanos: 1, InitialTokens: -1}, false},
		{"initialTokens over capacity", Params{Capacity: 10, RefillTokens: 1, RefillPeriodNanos: 1, InitialTokens: 11}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBandwidth(tc.p)
			if tc.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
			}
		})
	}
}

func TestSimple(t *testing.T) {
	b := Simple(1000, time.Minute)
	if b.Capacity() != 1000 {
		t.Errorf("Capacity() = %d, want 1000", b.Capacity())
	}
	if b.RefillTokens() != 1000 {
		t.Errorf("RefillTokens() = %d, want 1000", b.RefillTokens())
	}
	if b.RefillPeriodNanos() != int64(time.Minute) {
		t.Errorf("RefillPeriodNanos() = %d, want %d", b.RefillPeriodNanos(), int64(time.Minute))
	}
	if b.InitialTokens() != 1000 {
		t.Errorf("InitialTokens() = %d, want 1000", b.InitialTokens())
	}
	if b.Shape() != RefillSmooth {
		t.Errorf("Shape() = %v, want RefillSmooth", b.Shape())
	}
}

func TestSimplePanicsOnInvalidCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive capacity")
		}
	}()
	Simple(0, time.Second)
}

func TestWithIdAndWithInitialTokens(t *testing.T) {
	b := Simple(100, time.Second).WithId("burst").WithInitialTokens(50)
	if b.Id() != "burst" {
		t.Errorf("Id() = %q, want %q", b.Id(), "burst")
	}
	if b.InitialTokens() != 50 {
		t.Errorf("InitialTokens() = %d, want 50", b.InitialTokens())
	}
	// WithId/WithInitialTokens must not mutate the receiver.
	orig := Simple(100, time.Second)
	_ = orig.WithId("x")
	if orig.Id() != "" {
		t.Errorf("original bandwidth mutated, Id() = %q", orig.Id())
	}
}

func TestRefillShapeString(t *testing.T) {
	if RefillSmooth.String() != "smooth" {
		t.Errorf("RefillSmooth.String() = %q", RefillSmooth.String())
	}
	if RefillIntervally.String() != "intervally" {
		t.Errorf("RefillIntervally.String() = %q", RefillIntervally.String())
	}
}
