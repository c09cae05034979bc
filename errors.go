package ratebucket

import "errors"

// Sentinel error kinds. Callers should match on these with errors.Is; the
// library always wraps them with fmt.Errorf("...: %w", ...) for context,
// the same idiom the teacher's cache-manager service uses for its own
// errors.New/fmt.Errorf boundary errors.
var (
	// ErrInvalidArgument is returned for caller errors: n <= 0, a negative
	// wait, or a Bandwidth whose fields violate §4.1's constraints.
	ErrInvalidArgument = errors.New("ratebucket: invalid argument")

	// ErrBucketNotFound is returned by a remote bucket under the THROW
	// recovery strategy when its grid entry is absent.
	ErrBucketNotFound = errors.New("ratebucket: bucket not found")

	// ErrInterruptedWait is returned by Consume when its context is
	// cancelled while parked. Tokens already reserved remain debited.
	ErrInterruptedWait = errors.New("ratebucket: interrupted while waiting")

	// ErrGridFailure wraps an error returned by the grid collaborator's
	// Invoke call. It is never retried internally.
	ErrGridFailure = errors.New("ratebucket: grid failure")

	// ErrReconfigureConflict is returned when a new Configuration's
	// bandwidth ids cannot be mapped bijectively onto the current one.
	ErrReconfigureConflict = errors.New("ratebucket: reconfigure conflict")

	// ErrRejected is returned by Consume, ConsumeUninterruptibly and
	// ConsumeAsync when n exceeds a bandwidth's capacity outright.
	// TryConsumeAndReturnWaitNanos reports a rejection as ok=false
	// instead of returning this error.
	ErrRejected = errors.New("ratebucket: rejected")
)
