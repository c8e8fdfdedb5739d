package blob

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every parser and writer in this module. Callers
// classify failures with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrCorruptData     = errors.New("corrupt data")
	ErrOutOfMemory     = errors.New("out of memory")
	ErrNotFound        = errors.New("not found")
	ErrUnsupported     = errors.New("unsupported")
)

// Corruptf returns an error wrapping ErrCorruptData.
func Corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptData, fmt.Sprintf(format, args...))
}

// Invalidf returns an error wrapping ErrInvalidArgument.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Unsupportedf returns an error wrapping ErrUnsupported.
func Unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}
