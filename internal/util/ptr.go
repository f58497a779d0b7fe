// Package util holds small generic helpers shared across packages.
package util

// Ptr returns a pointer to v. Handy for optional-field literals in update
// requests and config overrides.
func Ptr[T any](v T) *T {
	return &v
}
