// Package utils provides small cross-cutting helpers shared by the
// descriptor, page, node table, pager, and content-DB packages: contextual
// error wrapping, endian-aware binary I/O, a byte-buffer pool, and overflow
// checks for size arithmetic.
package utils

import "fmt"

// TreeError is a contextual error: it names the operation that failed and
// wraps the underlying cause so callers can still use errors.Is/As against
// the original error.
type TreeError struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *TreeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// WrapError creates a contextual error. It returns nil if cause is nil, so
// it is safe to call unconditionally at the end of a function:
//
//	return utils.WrapError("reading leaf page", err)
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &TreeError{
		Context: context,
		Cause:   cause,
	}
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *TreeError) Unwrap() error {
	return e.Cause
}
