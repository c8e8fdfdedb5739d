package blob

import (
	"fmt"
	"os"
)

// WriteFunc stores one finished output file. Writers take one so callers can
// wrap the bytes (compression) or capture them (tests).
type WriteFunc func(path string, data []byte) error

// WriteFile is the default WriteFunc.
func WriteFile(path string, data []byte) error {
	if path == "" {
		return Invalidf("empty output path")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
