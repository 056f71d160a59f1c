// Package invariant provides contract assertions for the pattern language
// runtime.
//
// Use Precondition/Postcondition to express function contracts and
// Invariant for internal consistency checks (cursor progress, scope stack
// balance, pattern size accounting). All functions panic on violation -
// these are programming errors, never user-facing pattern errors, which go
// through core/errors and the diagnostics console instead.
package invariant

import (
	"fmt"
	"runtime"
)

// Precondition checks an input contract at function entry.
// Panics with PRECONDITION VIOLATION if condition is false.
func Precondition(condition bool, format string, args ...any) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Postcondition checks an output contract before function return.
// Panics with POSTCONDITION VIOLATION if condition is false.
func Postcondition(condition bool, format string, args ...any) {
	if !condition {
		fail("POSTCONDITION", format, args...)
	}
}

// Invariant checks an internal invariant during function execution.
// Panics with INVARIANT VIOLATION if condition is false.
//
// Example:
//
//	prev := p.pos
//	for !p.atEnd() {
//	    // ... consume tokens ...
//	    invariant.Invariant(p.pos > prev, "parser position must advance")
//	    prev = p.pos
//	}
func Invariant(condition bool, format string, args ...any) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil. Precondition check for pointer and
// interface arguments that must be supplied by the host (provider,
// console sink, function registry).
func NotNil(value any, name string) {
	if value == nil {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

// InRange panics if value is outside [minVal, maxVal].
func InRange(value, minVal, maxVal int, name string) {
	if value < minVal || value > maxVal {
		fail("PRECONDITION", "%s must be in range [%d, %d], got %d",
			name, minVal, maxVal, value)
	}
}

// fail panics with a formatted message including the frame where the
// violation occurred.
func fail(kind, format string, args ...any) {
	pc := make([]uintptr, 10)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	msg := fmt.Sprintf("%s VIOLATION: "+format, append([]any{kind}, args...)...)

	if frame, ok := frames.Next(); ok {
		msg += fmt.Sprintf("\n  at %s:%d", frame.File, frame.Line)
	}

	panic(msg)
}
