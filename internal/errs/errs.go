// Package errs classifies pipeline errors by kind rather than by source.
// Stages use the kind to decide whether to retry, skip, surface to the
// operator, or crash.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Kind partitions failures by how the pipeline must react to them.
type Kind int

const (
	// KindUnknown is an unclassified error.
	KindUnknown Kind = iota
	// KindTransientExternal covers provider timeouts and rate limits.
	// Recovered locally by retry with backoff.
	KindTransientExternal
	// KindPermanentExternal covers auth failures and 4xx contract
	// violations. Recorded, skipped for the cycle, raised to logs.
	KindPermanentExternal
	// KindStoreTransient covers lost connections and deadlocks. Retried
	// at the transaction boundary with bounded attempts.
	KindStoreTransient
	// KindStorePermanent covers constraint violations and schema
	// mismatches. Crashes the calling task; never swallowed.
	KindStorePermanent
	// KindInvalidInput is a caller error, returned without side effects.
	KindInvalidInput
	// KindPoison marks exhausted retry state requiring operator action.
	KindPoison
)

func (k Kind) String() string {
	switch k {
	case KindTransientExternal:
		return "transient_external"
	case KindPermanentExternal:
		return "permanent_external"
	case KindStoreTransient:
		return "store_transient"
	case KindStorePermanent:
		return "store_permanent"
	case KindInvalidInput:
		return "invalid_input"
	case KindPoison:
		return "poison"
	}
	return "unknown"
}

// Backoff is a retry hint carried by transient errors.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Retries int
}

// DefaultBackoff is the standard transient-external schedule: 5s doubling
// to a 120s cap, three retries.
var DefaultBackoff = Backoff{Initial: 5 * time.Second, Max: 120 * time.Second, Retries: 3}

// Delay returns the backoff delay for attempt n (0-based), doubling from
// Initial and capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// Error is a classified pipeline error.
type Error struct {
	Kind  Kind
	Op    string
	Err   error
	Retry *Backoff
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation context.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transient wraps err as a retryable external failure carrying the
// default backoff schedule.
func Transient(op string, err error) *Error {
	b := DefaultBackoff
	return &Error{Kind: KindTransientExternal, Op: op, Err: err, Retry: &b}
}

// Permanent wraps err as a non-retryable external failure.
func Permanent(op string, err error) *Error {
	return &Error{Kind: KindPermanentExternal, Op: op, Err: err}
}

// StoreTransient wraps err as a retryable store failure.
func StoreTransient(op string, err error) *Error {
	b := DefaultBackoff
	return &Error{Kind: KindStoreTransient, Op: op, Err: err, Retry: &b}
}

// StorePermanent wraps err as a fatal store failure.
func StorePermanent(op string, err error) *Error {
	return &Error{Kind: KindStorePermanent, Op: op, Err: err}
}

// Invalid wraps err as a caller error.
func Invalid(op string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: err}
}

// KindOf extracts the kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err carries a transient kind.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransientExternal, KindStoreTransient:
		return true
	}
	return false
}

// RetryHint returns the backoff schedule attached to err, if any.
func RetryHint(err error) (Backoff, bool) {
	var e *Error
	if errors.As(err, &e) && e.Retry != nil {
		return *e.Retry, true
	}
	return Backoff{}, false
}
