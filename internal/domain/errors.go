package domain

import "errors"

var (
	// ErrNotFound means a bet id has no record under the queried variant (or a
	// row is absent from a store). It is a normal outcome, never a failure.
	ErrNotFound = errors.New("not found")

	// ErrFetch is a transport-level RPC failure. Retryable.
	ErrFetch = errors.New("fetch failed")

	// ErrDecode means a log or return value did not match the expected shape.
	// Non-retryable; the offending item is dropped.
	ErrDecode = errors.New("decode failed")

	// ErrActionFailed means a mutating call was rejected by the signer or
	// reverted on chain.
	ErrActionFailed = errors.New("action failed")

	// ErrSessionStale marks a watch session torn down in favour of a newer
	// one after an account or network switch.
	ErrSessionStale = errors.New("session superseded")
)
