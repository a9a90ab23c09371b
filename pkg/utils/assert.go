// Package utils holds small helpers shared across the allocator packages.
package utils

import "fmt"

// Assert panics with message if condition is false. Used for invariant
// violations (I1-I7) that indicate corruption, and for programming errors
// such as a malformed tier table in CreatePool or a DestroyPool call with
// live allocations. Conditions a caller can recover from are returned as
// pkg/zerrors errors instead.
func Assert(condition bool, message string) {
	if !condition {
		panic(message)
	}
}

// Assertf is Assert with a formatted message.
func Assertf(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf(format, args...))
	}
}
