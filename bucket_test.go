package ratebucket

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/otero-labs/ratebucket/clock/clocktest"
)

func newLocalBucket(t *testing.T, mock *clocktest.Mock, bws ...Bandwidth) *LocalBucket {
	t.Helper()
	cfg, err := NewConfiguration(bws...)
	if err != nil {
		t.Fatalf("NewConfiguration: %v", err)
	}
	return NewLocalBucket(cfg, mock)
}

func TestLocalBucketTryConsume(t *testing.T) {
	mock := clocktest.NewMock(0)
	b := newLocalBucket(t, mock, Simple(10, time.Second))

	ok, err := b.TryConsume(5)
	if err != nil || !ok {
		t.Fatalf("TryConsume(5) = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = b.TryConsume(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("TryConsume(10) should fail: only 5 tokens remain")
	}
}

func TestLocalBucketTryConsumeRejectsNonPositiveN(t *testing.T) {
	b := newLocalBucket(t, clocktest.NewMock(0), Simple(10, time.Second))
	_, err := b.TryConsume(0)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLocalBucketAvailableTokensRefillsOverTime(t *testing.T) {
	mock := clocktest.NewMock(0)
	b := newLocalBucket(t, mock, Simple(10, time.Second))

	if _, err := b.TryConsumeAsMuchAsPossible(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	avail, err := b.AvailableTokens()
	if err != nil || avail != 0 {
		t.Fatalf("AvailableTokens() = (%d, %v), want (0, nil)", avail, err)
	}

	mock.Advance(int64(time.Second))
	avail, err = b.AvailableTokens()
	if err != nil || avail != 10 {
		t.Fatalf("AvailableTokens() after 1s = (%d, %v), want (10, nil)", avail, err)
	}
}

func TestLocalBucketAddTokens(t *testing.T) {
	mock := clocktest.NewMock(0)
	b := newLocalBucket(t, mock, Simple(10, time.Second))
	if _, err := b.TryConsumeAsMuchAsPossible(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.AddTokens(3); err != nil {
		t.Fatalf("AddTokens: %v", err)
	}
	avail, _ := b.AvailableTokens()
	if avail != 3 {
		t.Errorf("AvailableTokens() = %d, want 3", avail)
	}
}

func TestLocalBucketTryConsumeAndReturnWaitNanos(t *testing.T) {
	mock := clocktest.NewMock(0)
	b := newLocalBucket(t, mock, Simple(10, time.Second))

	wait, ok, err := b.TryConsumeAndReturnWaitNanos(20, int64(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected rejection: 20 exceeds capacity 10")
	}
	_ = wait
}

func TestLocalBucketReconfigure(t *testing.T) {
	mock := clocktest.NewMock(0)
	b := newLocalBucket(t, mock, Simple(10, time.Second).WithId("a"))

	newCfg, err := NewConfiguration(Simple(100, time.Second).WithId("a"))
	if err != nil {
		t.Fatalf("NewConfiguration: %v", err)
	}
	if err := b.Reconfigure(newCfg); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	avail, _ := b.AvailableTokens()
	if avail != 10 {
		t.Errorf("AvailableTokens() after reconfigure = %d, want 10 carried forward", avail)
	}
	mock.Advance(int64(time.Second))
	ok, _ := b.TryConsume(50)
	if !ok {
		t.Error("expected new capacity of 100 to allow consuming 50 once refilled")
	}
}

func TestLocalBucketReconfigureConflictLeavesStateUntouched(t *testing.T) {
	mock := clocktest.NewMock(0)
	b := newLocalBucket(t, mock, Simple(10, time.Second).WithId("a"))

	badCfg, _ := NewConfiguration(Simple(10, time.Second).WithId("different"))
	err := b.Reconfigure(badCfg)
	if !errors.Is(err, ErrReconfigureConflict) {
		t.Fatalf("expected ErrReconfigureConflict, got %v", err)
	}
	avail, _ := b.AvailableTokens()
	if avail != 10 {
		t.Errorf("AvailableTokens() = %d, want unchanged at 10", avail)
	}
}

func TestLocalBucketConcurrentTryConsumeNeverOverdraws(t *testing.T) {
	mock := clocktest.NewMock(0)
	b := newLocalBucket(t, mock, Simple(1000, time.Second))

	var wg sync.WaitGroup
	successes := make([]int32, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ok, err := b.TryConsume(10)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successes[idx] = 1
			}
		}(i)
	}
	wg.Wait()

	var total int32
	for _, s := range successes {
		total += s
	}
	if total != 100 {
		t.Errorf("successful consumptions = %d, want exactly 100 (1000 capacity / 10 per call)", total)
	}
	avail, _ := b.AvailableTokens()
	if avail != 0 {
		t.Errorf("AvailableTokens() = %d, want 0", avail)
	}
}

// TestLocalBucketConcurrentReconfigureShrinksSafely races Reconfigure calls
// that shrink both bandwidths' capacities and restore them against
// concurrent readers/consumers. Strict id matching keeps the bandwidth
// count fixed, so the reconfiguration changes capacities only; cfg and
// state must still move together so no caller sees a state paired with a
// configuration it was not computed under.
func TestLocalBucketConcurrentReconfigureShrinksSafely(t *testing.T) {
	mock := clocktest.NewMock(0)
	b := newLocalBucket(t, mock, Simple(1000, time.Second).WithId("a"), Simple(500, time.Second).WithId("b"))

	shrunk, err := NewConfiguration(Simple(100, time.Second).WithId("a"), Simple(50, time.Second).WithId("b"))
	if err != nil {
		t.Fatalf("NewConfiguration: %v", err)
	}
	original, err := NewConfiguration(Simple(1000, time.Second).WithId("a"), Simple(500, time.Second).WithId("b"))
	if err != nil {
		t.Fatalf("NewConfiguration: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := b.TryConsume(1); err != nil {
					t.Errorf("TryConsume: %v", err)
					return
				}
				if _, err := b.AvailableTokens(); err != nil {
					t.Errorf("AvailableTokens: %v", err)
					return
				}
				if err := b.AddTokens(1); err != nil {
					t.Errorf("AddTokens: %v", err)
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stop)
		for i := 0; i < 50; i++ {
			if err := b.Reconfigure(shrunk); err != nil {
				t.Errorf("Reconfigure: %v", err)
				return
			}
			if err := b.Reconfigure(original); err != nil {
				t.Errorf("Reconfigure: %v", err)
				return
			}
		}
	}()

	wg.Wait()
}

func TestLocalBucketConsumeAsync(t *testing.T) {
	mock := clocktest.NewMock(0)
	b := newLocalBucket(t, mock, Simple(10, time.Second))

	wait, err := b.ConsumeAsync(10)
	if err != nil || wait != 0 {
		t.Fatalf("ConsumeAsync(10) = (%d, %v), want (0, nil)", wait, err)
	}

	wait, err = b.ConsumeAsync(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wait <= 0 {
		t.Errorf("wait = %d, want > 0 since the bucket is exhausted", wait)
	}
}

func TestLocalBucketConsumeAsyncRejectsOverCapacity(t *testing.T) {
	mock := clocktest.NewMock(0)
	b := newLocalBucket(t, mock, Simple(10, time.Second))
	_, err := b.ConsumeAsync(11)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}
