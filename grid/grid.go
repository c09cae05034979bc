// Package grid implements the remote/distributed Bucket (C6, §4.5): a
// Bucket whose BucketState lives in a distributed key/value cache and
// whose mutations execute as named-opcode entry processors applied
// atomically by that cache, instead of via an in-process atomic.Pointer
// CAS loop (ratebucket.LocalBucket).
//
// Design Notes (carried from the distilled spec's §9, and from how the
// teacher's cache-manager.Service treats its L2 RemoteCache: an interface
// the core depends on, with concrete backends — Redis, a real distributed
// grid product — left as external collaborators, specified here only at
// the interface boundary):
//   - Entry processors are named opcodes plus a small payload, not
//     serialized closures — this avoids shipping executable code across
//     process boundaries and lets any Cache implementation (even one in
//     another language) dispatch on the opcode string.
//   - The Configuration always travels with the BucketState in the cache
//     entry (GridBucketState) because the remote executor is stateless.
package grid

import (
	"fmt"

	"github.com/otero-labs/ratebucket"
)

// Opcode names the algorithm primitive an EntryProcessor applies. These
// are the opcodes named in the distilled spec's design notes, plus
// GET_STATE (read-only inspection) and RECONFIGURE (ambient extension,
// §4.8, wired into the remote bucket the same way it is the local one).
type Opcode string

const (
	OpTryConsume              Opcode = "TRY_CONSUME"
	OpConsumeAsMuchAsPossible Opcode = "CONSUME_AS_MUCH_AS_POSSIBLE"
	OpReserve                 Opcode = "RESERVE"
	OpAddTokens               Opcode = "ADD_TOKENS"
	OpGetState                Opcode = "GET_STATE"
	OpReconfigure             Opcode = "RECONFIGURE"
)

// RecoveryStrategy selects behavior when a remote bucket's grid entry is
// absent (§3, §4.5).
type RecoveryStrategy int

const (
	// Reconstruct silently recreates the entry from the configuration
	// carried by the EntryProcessor (or cached by the ProxyManager) and
	// applies the requested operation against the fresh state.
	Reconstruct RecoveryStrategy = iota

	// Throw writes nothing and signals ratebucket.ErrBucketNotFound.
	Throw
)

func (r RecoveryStrategy) String() string {
	switch r {
	case Reconstruct:
		return "RECONSTRUCT"
	case Throw:
		return "THROW"
	default:
		return fmt.Sprintf("RecoveryStrategy(%d)", int(r))
	}
}

// currentSchemaVersion is the schema-version byte reserved by §6's
// "Persisted layout" for future wire-format evolution.
const currentSchemaVersion byte = 1

// GridBucketState is a BucketState plus its Configuration, the unit
// transmitted to and stored in a grid cache entry (§3). It has no JSON
// methods of its own: encoding/json round-trips it losslessly through its
// field types' codecs (ratebucket.Configuration, ratebucket.BucketState)
// and the struct tags below.
type GridBucketState struct {
	SchemaVersion byte                     `json:"schema_version"`
	Configuration ratebucket.Configuration `json:"configuration"`
	State         ratebucket.BucketState   `json:"state"`
}

// NewGridBucketState seeds a fresh GridBucketState for cfg as of now,
// the RECONSTRUCT path's "build a fresh BucketState from the
// configuration" (§4.5).
func NewGridBucketState(cfg ratebucket.Configuration, nowNanos int64) GridBucketState {
	return GridBucketState{
		SchemaVersion: currentSchemaVersion,
		Configuration: cfg,
		State:         ratebucket.NewBucketState(cfg, nowNanos),
	}
}

// Equal reports whether g and other carry identical configuration and
// state — the round-trip law from §8 ("Serialize(GridBucketState) →
// Deserialize yields (==) state").
func (g GridBucketState) Equal(other GridBucketState) bool {
	return g.SchemaVersion == other.SchemaVersion &&
		g.Configuration.Equal(other.Configuration) &&
		g.State.Equal(other.State)
}

// EntryProcessor is the opcode + payload a RemoteBucket ships to a Cache's
// Invoke call (§4.5's "entryProcessor"). Config is only consulted when the
// targeted entry is absent and Recovery is Reconstruct; NewConfig is only
// consulted by OpReconfigure.
type EntryProcessor struct {
	Opcode Opcode

	N            int64 // TRY_CONSUME / RESERVE / ADD_TOKENS
	Limit        int64 // CONSUME_AS_MUCH_AS_POSSIBLE; <= 0 means unbounded
	MaxWaitNanos int64 // RESERVE

	Recovery RecoveryStrategy
	Config   ratebucket.Configuration // used to (re)build an absent entry

	NewConfig ratebucket.Configuration // RECONFIGURE's target configuration

	// CorrelationID tags this invocation with a per-call UUID minted by
	// RemoteBucket, the same role the teacher's
	// pkg/middleware/logging.go gives its uuid-derived request IDs. A
	// Cache implementation may log it; nothing in this module does.
	CorrelationID string
}

// Result carries the outcome of applying an EntryProcessor, across every
// opcode; only the fields relevant to the opcode that produced it are
// meaningful.
type Result struct {
	Ok              bool  // TRY_CONSUME success / RESERVE not-rejected
	Consumed        int64 // CONSUME_AS_MUCH_AS_POSSIBLE
	WaitNanos       int64 // RESERVE
	AvailableTokens int64 // GET_STATE, and the post-op min-available otherwise
}
