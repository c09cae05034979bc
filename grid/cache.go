package grid

import "context"

// Cache is the grid collaborator contract (§6): a distributed key/value
// store capable of applying an EntryProcessor to one entry atomically
// (read-modify-write, whether executed locally or shipped to a remote
// node) and of storing/retrieving GridBucketState values. The library
// never defines more of the wire format than "GridBucketState round-trips
// losslessly" (§6); how Invoke ships bytes to a real distributed product
// (Redis, Hazelcast, an internal grid) is entirely the implementation's
// concern — binding to any specific product is explicitly out of scope
// (§1 Non-goals) and is represented here only as this interface, the same
// way the teacher's cache-manager.Service depends on a RemoteCache
// interface rather than a concrete Redis client.
type Cache interface {
	// Invoke applies processor to the entry at key atomically and
	// returns its Result. If the entry is absent, the Cache must honor
	// processor.Recovery per §4.5 ("Missing-entry semantics"). Any error
	// returned by the underlying transport/serialization is surfaced
	// unchanged to the caller (wrapped by RemoteBucket in
	// ratebucket.ErrGridFailure) — the library never partially applies
	// an operation.
	Invoke(ctx context.Context, key string, processor EntryProcessor) (Result, error)
}
