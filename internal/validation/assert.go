// Package validation provides helpers for constructor contract enforcement.
package validation

import "fmt"

// AssertNotNil panics if the provided pointer is nil. It is meant for
// constructors whose dependencies are mandatory: a nil dependency is a
// wiring bug, not a runtime condition to recover from.
//
// Usage:
//
//	validation.AssertNotNil(store, "user store")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}
