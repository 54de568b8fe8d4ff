// Package helpers provides common utility functions used across the project.
package helpers

// PtrOf creates a pointer to any value type, useful for optional config fields.
//
// Example:
//
//	cfg.Stream = helpers.PtrOf(false)
func PtrOf[T any](t T) *T { return &t }
