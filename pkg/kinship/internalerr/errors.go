// Package internalerr holds the sentinel errors shared across kinship and
// the conversion of pipeline failures into user-visible messages.
package internalerr

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnresolvedIntent = errors.New("no intent resolved")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrTimeout          = errors.New("operation timed out")
)

// Messages shown at the outermost request boundary.
const (
	MsgUnresolved = "Could not understand the question. Please try again."
	MsgTimeout    = "The request took too long. Please try again."
)

// Invalid wraps ErrInvalidInput with a formatted message.
func Invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}

// Unresolved marks an extraction failure. The model reply, when there is
// one, is kept as a detail so it shows up in verbose output but never in
// the user message.
func Unresolved(cause error, reply string) error {
	err := ErrUnresolvedIntent
	if cause != nil {
		err = errors.Mark(errors.Wrap(cause, ErrUnresolvedIntent.Error()), ErrUnresolvedIntent)
	}
	if reply != "" {
		err = errors.WithDetail(err, reply)
	}
	return errors.WithHint(err, MsgUnresolved)
}

// Deadline converts a context deadline into ErrTimeout, leaving other
// errors untouched.
func Deadline(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.WithHint(errors.Mark(errors.Wrap(err, op), ErrTimeout), MsgTimeout)
	}
	return err
}

// UserMessage renders err the way the query and data-entry surfaces show it.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnresolvedIntent):
		return MsgUnresolved
	case errors.Is(err, ErrTimeout):
		return MsgTimeout
	}
	return "An error occurred: " + err.Error()
}

// SaveMessage renders a data-entry failure.
func SaveMessage(err error) string {
	if err == nil {
		return ""
	}
	return "Error saving data: " + err.Error()
}

// Hints returns the user-facing hints attached anywhere in err's chain.
func Hints(err error) string {
	return errors.FlattenHints(err)
}
