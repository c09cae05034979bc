package grid

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/otero-labs/ratebucket"
)

// ProxyManager is a factory, parameterized by a Cache handle, that yields
// lazy RemoteBucket handles (§4.5 "ProxyManager"). It owns the
// config-supplier memoization and coalescing described there: a given
// key's configSupplier is evaluated at most once, and concurrent
// first-callers for the same key share one evaluation instead of each
// racing to compute (and ship) their own — the same stampede-prevention
// role the teacher's golang.org/x/sync/singleflight-based request
// coalescer plays for cache-manager/warming origin fetches, applied here
// to configuration resolution instead of origin data.
type ProxyManager struct {
	c Cache

	mu      sync.RWMutex
	configs map[string]ratebucket.Configuration
	sf      singleflight.Group
}

// NewProxyManager returns a ProxyManager backed by the given Cache. Time
// is entirely the Cache implementation's concern (each Invoke carries its
// own "now" server-side, as MemCache does); ProxyManager itself never
// reads a clock.
func NewProxyManager(c Cache) *ProxyManager {
	return &ProxyManager{
		c:       c,
		configs: make(map[string]ratebucket.Configuration),
	}
}

// GetProxy returns the RemoteBucket handle for key. configSupplier is
// called at most once for this key, on the first operation issued for the
// key through this ProxyManager, whether or not the grid entry is absent;
// its result is cached for the lifetime of the ProxyManager and reused by
// every subsequent RemoteBucket returned for the same key.
func (pm *ProxyManager) GetProxy(key string, configSupplier func() ratebucket.Configuration, recovery RecoveryStrategy) *RemoteBucket {
	return &RemoteBucket{
		pm:       pm,
		key:      key,
		supplier: configSupplier,
		recovery: recovery,
	}
}

// resolveConfig returns the memoized Configuration for key, calling
// configSupplier (coalesced across concurrent callers via singleflight)
// only on the first call for that key.
func (pm *ProxyManager) resolveConfig(key string, supplier func() ratebucket.Configuration) ratebucket.Configuration {
	pm.mu.RLock()
	cfg, ok := pm.configs[key]
	pm.mu.RUnlock()
	if ok {
		return cfg
	}

	v, _, _ := pm.sf.Do(key, func() (interface{}, error) {
		pm.mu.RLock()
		cfg, ok := pm.configs[key]
		pm.mu.RUnlock()
		if ok {
			return cfg, nil
		}

		resolved := supplier()
		pm.mu.Lock()
		pm.configs[key] = resolved
		pm.mu.Unlock()
		return resolved, nil
	})

	return v.(ratebucket.Configuration)
}

// RemoteBucket is the ratebucket.Bucket implementation backed by a grid
// Cache entry (§4.5, C6). Every public method ships one EntryProcessor to
// the Cache via a single Invoke call; there is no client-side retry loop
// here because the Cache's Invoke is specified to already be atomic
// end-to-end (the CAS-equivalent serialization happens inside the grid,
// not inside RemoteBucket).
type RemoteBucket struct {
	pm       *ProxyManager
	key      string
	supplier func() ratebucket.Configuration
	recovery RecoveryStrategy
}

var _ ratebucket.Bucket = (*RemoteBucket)(nil)

func (rb *RemoteBucket) invoke(ctx context.Context, p EntryProcessor) (Result, error) {
	p.Recovery = rb.recovery
	p.Config = rb.pm.resolveConfig(rb.key, rb.supplier)
	p.CorrelationID = uuid.New().String()

	res, err := rb.pm.c.Invoke(ctx, rb.key, p)
	if err != nil {
		if err == ratebucket.ErrBucketNotFound {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %w", ratebucket.ErrGridFailure, err)
	}
	return res, nil
}

// TryConsume implements ratebucket.Bucket.
func (rb *RemoteBucket) TryConsume(n int64) (bool, error) {
	if err := ratebucket.ValidateConsumeN(n); err != nil {
		return false, err
	}
	res, err := rb.invoke(context.Background(), EntryProcessor{Opcode: OpTryConsume, N: n})
	if err != nil {
		return false, err
	}
	return res.Ok, nil
}

// TryConsumeAsMuchAsPossible implements ratebucket.Bucket.
func (rb *RemoteBucket) TryConsumeAsMuchAsPossible(limit int64) (int64, error) {
	res, err := rb.invoke(context.Background(), EntryProcessor{Opcode: OpConsumeAsMuchAsPossible, Limit: limit})
	if err != nil {
		return 0, err
	}
	return res.Consumed, nil
}

// TryConsumeAndReturnWaitNanos implements ratebucket.Bucket.
func (rb *RemoteBucket) TryConsumeAndReturnWaitNanos(n, maxWaitNanos int64) (int64, bool, error) {
	if err := ratebucket.ValidateConsumeN(n); err != nil {
		return 0, false, err
	}
	if maxWaitNanos < 0 {
		return 0, false, fmt.Errorf("%w: maxWaitNanos must be >= 0, got %d", ratebucket.ErrInvalidArgument, maxWaitNanos)
	}
	res, err := rb.invoke(context.Background(), EntryProcessor{Opcode: OpReserve, N: n, MaxWaitNanos: maxWaitNanos})
	if err != nil {
		return 0, false, err
	}
	return res.WaitNanos, res.Ok, nil
}

// AddTokens implements ratebucket.Bucket.
func (rb *RemoteBucket) AddTokens(n int64) error {
	if err := ratebucket.ValidateConsumeN(n); err != nil {
		return err
	}
	_, err := rb.invoke(context.Background(), EntryProcessor{Opcode: OpAddTokens, N: n})
	return err
}

// AvailableTokens implements ratebucket.Bucket.
func (rb *RemoteBucket) AvailableTokens() (int64, error) {
	res, err := rb.invoke(context.Background(), EntryProcessor{Opcode: OpGetState})
	if err != nil {
		return 0, err
	}
	return res.AvailableTokens, nil
}

// Reconfigure implements ratebucket.Bucket via the RECONFIGURE opcode.
func (rb *RemoteBucket) Reconfigure(newCfg ratebucket.Configuration) error {
	_, err := rb.invoke(context.Background(), EntryProcessor{Opcode: OpReconfigure, NewConfig: newCfg})
	if err != nil {
		return err
	}
	rb.pm.mu.Lock()
	rb.pm.configs[rb.key] = newCfg
	rb.pm.mu.Unlock()
	return nil
}

const maxWaitUnbounded = int64(1<<63 - 1)

// ConsumeAsync implements ratebucket.Bucket (§4.7).
func (rb *RemoteBucket) ConsumeAsync(n int64) (int64, error) {
	wait, ok, err := rb.TryConsumeAndReturnWaitNanos(n, maxWaitUnbounded)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %d tokens exceeds bucket capacity", ratebucket.ErrRejected, n)
	}
	return wait, nil
}

// Consume implements ratebucket.Bucket: reserve over the grid, then park
// locally for the returned duration (§4.6) — parking is always a local
// concern regardless of where the state lives.
func (rb *RemoteBucket) Consume(ctx context.Context, n int64, strategy ratebucket.BlockingStrategy) error {
	if strategy == nil {
		strategy = ratebucket.DefaultBlockingStrategy()
	}
	wait, ok, err := rb.TryConsumeAndReturnWaitNanos(n, maxWaitUnbounded)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d tokens exceeds bucket capacity", ratebucket.ErrRejected, n)
	}
	if wait == 0 {
		return nil
	}
	if err := strategy.Park(ctx, wait); err != nil {
		return fmt.Errorf("%w: %v", ratebucket.ErrInterruptedWait, err)
	}
	return nil
}

// ConsumeUninterruptibly implements ratebucket.Bucket.
func (rb *RemoteBucket) ConsumeUninterruptibly(n int64, strategy ratebucket.BlockingStrategy) error {
	if strategy == nil {
		strategy = ratebucket.DefaultBlockingStrategy()
	}
	wait, ok, err := rb.TryConsumeAndReturnWaitNanos(n, maxWaitUnbounded)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d tokens exceeds bucket capacity", ratebucket.ErrRejected, n)
	}
	if wait == 0 {
		return nil
	}
	strategy.ParkUninterruptibly(wait)
	return nil
}
