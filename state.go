package ratebucket

import "fmt"

// slotState is the per-bandwidth mutable tuple described in §3:
// (currentTokens, lastRefillNanos), plus a rounding-error accumulator slot
// kept for data-model fidelity with the distilled spec. This implementation
// folds the "fractional remainder" into how far lastRefillNanos is allowed
// to advance on each refill (§4.2) rather than into a separate float
// accumulator, so roundingErrorNanos is always zero here; it is kept as a
// named field (rather than dropped) so BucketState's shape matches §3
// exactly and a future alternate refill encoding has somewhere to put it.
type slotState struct {
	currentTokens      int64
	lastRefillNanos    int64
	roundingErrorNanos int64
}

// BucketState is the mutable snapshot described in §3: one slotState per
// bandwidth in the owning Configuration, in the same order. BucketState
// values are treated as immutable snapshots — every algorithm function in
// this package takes a BucketState and returns a new one rather than
// mutating in place, so it can be copied into and out of an atomic cell
// (local bucket, §4.4) or a grid cache entry (remote bucket, §4.5)
// wholesale.
type BucketState struct {
	slots []slotState
}

// NewBucketState seeds a BucketState for cfg as of nowNanos: each
// bandwidth starts at its InitialTokens with lastRefillNanos = nowNanos.
func NewBucketState(cfg Configuration, nowNanos int64) BucketState {
	bws := cfg.Bandwidths()
	slots := make([]slotState, len(bws))
	for i, b := range bws {
		slots[i] = slotState{
			currentTokens:   b.InitialTokens(),
			lastRefillNanos: nowNanos,
		}
	}
	return BucketState{slots: slots}
}

// clone returns a deep copy so callers mutating the result never alias the
// receiver's backing array.
func (s BucketState) clone() BucketState {
	out := make([]slotState, len(s.slots))
	copy(out, s.slots)
	return BucketState{slots: out}
}

// AvailableTokens returns currentTokens for bandwidth i without refilling.
// Callers almost always want Bucket.AvailableTokens instead, which refills
// first; this accessor is for inspecting a snapshot already obtained
// elsewhere (e.g. in tests or in a grid entry processor's GET_STATE reply).
func (s BucketState) AvailableTokens(i int) int64 {
	return s.slots[i].currentTokens
}

// LastRefillNanos returns the stamp for bandwidth i.
func (s BucketState) LastRefillNanos(i int) int64 {
	return s.slots[i].lastRefillNanos
}

// Len returns the number of per-bandwidth slots.
func (s BucketState) Len() int { return len(s.slots) }

// MinAvailable returns the minimum currentTokens across all slots without
// refilling — the "effective limit" read described in §3.
func (s BucketState) MinAvailable() int64 {
	if len(s.slots) == 0 {
		return 0
	}
	min := s.slots[0].currentTokens
	for _, slot := range s.slots[1:] {
		if slot.currentTokens < min {
			min = slot.currentTokens
		}
	}
	return min
}

// reconfigure implements §4.8's strict reconfiguration: every bandwidth in
// either oldCfg or newCfg must have exactly one id-match in the other, or
// ErrReconfigureConflict is returned. Matched bandwidths carry their token
// count forward (capped at the new capacity), with lastRefillNanos reset to
// nowNanos; no bandwidth is seeded from InitialTokens. Bandwidths with an
// empty Id are matched by order (Nth unidentified new to Nth unidentified
// old), which is allowed only when both configurations have the same
// number of unidentified bandwidths — see the Open Question decision in
// DESIGN.md.
func (s BucketState) reconfigure(oldCfg, newCfg Configuration, nowNanos int64) (BucketState, error) {
	oldBW := oldCfg.Bandwidths()
	newBW := newCfg.Bandwidths()

	oldById := make(map[string]int, len(oldBW))
	for i, b := range oldBW {
		if b.id != "" {
			oldById[b.id] = i
		}
	}
	newById := make(map[string]int, len(newBW))
	for i, b := range newBW {
		if b.id != "" {
			newById[b.id] = i
		}
	}

	// Every identified old bandwidth must still exist in newCfg, and vice
	// versa: the id sets must be equal, i.e. a bijection.
	for id := range oldById {
		if _, ok := newById[id]; !ok {
			return BucketState{}, fmt.Errorf("%w: bandwidth id %q removed by reconfiguration", ErrReconfigureConflict, id)
		}
	}
	for id := range newById {
		if _, ok := oldById[id]; !ok {
			return BucketState{}, fmt.Errorf("%w: bandwidth id %q introduced by reconfiguration", ErrReconfigureConflict, id)
		}
	}

	// Unidentified bandwidths are matched by order only when both sides
	// have exactly the same count of them; anything else is ambiguous and
	// rejected.
	oldUnidentifiedCount := len(oldBW) - len(oldById)
	newUnidentifiedCount := len(newBW) - len(newById)
	if oldUnidentifiedCount != newUnidentifiedCount {
		return BucketState{}, fmt.Errorf("%w: %d unidentified bandwidths before, %d after", ErrReconfigureConflict, oldUnidentifiedCount, newUnidentifiedCount)
	}

	newSlots := make([]slotState, len(newBW))
	unidentifiedSeen := 0
	for i, nb := range newBW {
		switch {
		case nb.id != "":
			oldIdx := oldById[nb.id]
			carried := s.slots[oldIdx].currentTokens
			if carried > nb.capacity {
				carried = nb.capacity
			}
			newSlots[i] = slotState{currentTokens: carried, lastRefillNanos: nowNanos}
		default:
			// Match the Nth unidentified new bandwidth to the Nth
			// unidentified old bandwidth, in declaration order.
			oldIdx := nthUnidentified(oldBW, unidentifiedSeen)
			unidentifiedSeen++
			carried := s.slots[oldIdx].currentTokens
			if carried > nb.capacity {
				carried = nb.capacity
			}
			newSlots[i] = slotState{currentTokens: carried, lastRefillNanos: nowNanos}
		}
	}

	return BucketState{slots: newSlots}, nil
}

// Reconfigure exports BucketState.reconfigure for out-of-package callers
// (grid's RECONFIGURE opcode), applying §4.8's strict id-matching
// reconfiguration rule against a state obtained from a grid entry instead
// of a LocalBucket's CAS cell.
func Reconfigure(oldCfg Configuration, state BucketState, newCfg Configuration, nowNanos int64) (BucketState, error) {
	return state.reconfigure(oldCfg, newCfg, nowNanos)
}

// nthUnidentified returns the index of the n-th (0-based) bandwidth with an
// empty Id in bws, in declaration order.
func nthUnidentified(bws []Bandwidth, n int) int {
	count := 0
	for i, b := range bws {
		if b.id == "" {
			if count == n {
				return i
			}
			count++
		}
	}
	return -1
}
