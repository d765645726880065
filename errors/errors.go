// Package errors defines the small set of error kinds the storage engine
// core returns to its callers (spec.md section 7 / SPEC_FULL.md section 1).
//
// No exceptions escape the core: every operation returns either success or
// one of these sentinels (optionally wrapped with context via Wrap). Callers
// compare with errors.Is against the sentinel, never against a formatted
// string.
package errors

import (
	"github.com/pkg/errors"
)

// Kind is a tagged error category a caller can switch on.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	// IoError signals a failure of the underlying storage medium. Fatal to
	// the operation that hit it; no retry is attempted internally.
	IoError Kind = "io error"

	// NoFreeFrame is returned by the buffer pool when every frame is
	// pinned and none can be evicted to satisfy a fetch/new page request.
	NoFreeFrame Kind = "no free frame"

	// DuplicateKey is returned by B+tree insert when the key already
	// exists in the index.
	DuplicateKey Kind = "duplicate key"

	// NotFound is returned by B+tree search/delete when the key is absent.
	NotFound Kind = "not found"

	// LockOnShrinking is returned when a transaction in the Shrinking
	// phase (or later) attempts to acquire a new lock, violating 2PL.
	LockOnShrinking Kind = "lock requested during shrinking phase"

	// UpgradeConflict is returned when a shared-to-exclusive lock upgrade
	// cannot proceed without risking a two-upgrader deadlock.
	UpgradeConflict Kind = "lock upgrade conflict"

	// TxnAborted is returned to a thread that notices, while blocked on a
	// lock grant, that its own transaction was asynchronously aborted.
	TxnAborted Kind = "transaction aborted"
)

// Wrap attaches context to err while keeping it comparable, via errors.Is,
// to the Kind sentinel(s) it wraps.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// Is reports whether err (or any error it wraps) matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// New constructs a plain error, for cases outside the Kind table above.
func New(msg string) error { return errors.New(msg) }
