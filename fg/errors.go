package fg

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalState marks an invariant violation: an id reused by a
	// different object, mismatched tensor shapes, a NaN message. These are
	// bugs in the caller or in a factor implementation and are raised by
	// panicking with an error that wraps this value.
	ErrIllegalState = errors.New("fg: illegal state")

	// ErrUnsupported marks an operation a factor variant does not provide.
	ErrUnsupported = errors.New("fg: unsupported operation")
)

func illegalState(format string, args ...any) {
	panic(fmt.Errorf("%w: %s", ErrIllegalState, fmt.Sprintf(format, args...)))
}
