// Package split finds and loads the fragments of a logical archive that is
// stored across several files named <root>.00, <root>.01, ... (two-digit
// suffixes) or <root>.000, <root>.001, ... (three-digit suffixes).
package split

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// Suffix widths.
const (
	TwoDigits   = 2
	ThreeDigits = 3
)

// Info describes how a path relates to a split set.
type Info struct {
	Root   string
	Index  int // -1 when the path is not a fragment
	Digits int
}

// IsFragment reports whether the path carried a numeric fragment suffix.
func (i Info) IsFragment() bool { return i.Index >= 0 }

// Detect splits a trailing ".NN" or ".NNN" suffix off path.
func Detect(path string) Info {
	ext := filepath.Ext(path)
	digits := len(ext) - 1
	if digits != TwoDigits && digits != ThreeDigits {
		return Info{Root: path, Index: -1}
	}
	index := 0
	for _, c := range ext[1:] {
		if c < '0' || c > '9' {
			return Info{Root: path, Index: -1}
		}
		index = index*10 + int(c-'0')
	}
	return Info{Root: strings.TrimSuffix(path, ext), Index: index, Digits: digits}
}

// MaxIndex is the highest fragment index representable with digits.
func MaxIndex(digits int) int {
	if digits == ThreeDigits {
		return 999
	}
	return 99
}

// FragmentName returns root with a zero-padded fragment suffix.
func FragmentName(root string, index, digits int) string {
	return fmt.Sprintf("%s.%0*d", root, digits, index)
}

// Names returns the file names of count fragments of root.
func Names(root string, count, digits int) ([]string, error) {
	if count-1 > MaxIndex(digits) {
		return nil, blob.Invalidf("%d fragments do not fit %d-digit suffixes", count, digits)
	}
	names := make([]string, count)
	for i := range names {
		names[i] = FragmentName(root, i, digits)
	}
	return names, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Probe lists existing fragments of root by counting up from index 0 until a
// file is missing or the suffix width is exhausted.
func Probe(root string, digits int) ([]string, error) {
	var found []string
	for i := 0; i <= MaxIndex(digits); i++ {
		name := FragmentName(root, i, digits)
		if !exists(name) {
			break
		}
		found = append(found, name)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: no fragments of %s", blob.ErrNotFound, root)
	}
	return found, nil
}

// Resolve returns the fragment paths of root. A non-empty embedded list read
// from the root file is authoritative: every listed fragment must exist, and
// fragments found on disk beyond it are reported but ignored. Without one the
// file system is probed.
func Resolve(root string, digits int, embedded []string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(embedded) == 0 {
		paths, err := Probe(root, digits)
		if err != nil {
			return nil, err
		}
		logger.Debug("probed fragments", "root", root, "count", len(paths))
		return paths, nil
	}

	dir := filepath.Dir(root)
	paths := make([]string, len(embedded))
	for i, name := range embedded {
		if filepath.Base(name) != name || name == "." || name == ".." {
			return nil, blob.Corruptf("fragment name %q is not a plain file name", name)
		}
		paths[i] = filepath.Join(dir, name)
		if !exists(paths[i]) {
			return nil, fmt.Errorf("%w: fragment %s of %s", blob.ErrNotFound, name, root)
		}
	}
	if probed, err := Probe(root, digits); err == nil && len(probed) > len(paths) {
		logger.Warn("ignoring fragments not listed by root archive",
			"root", root, "listed", len(paths), "on_disk", len(probed))
	}
	logger.Debug("resolved fragments from split table", "root", root, "count", len(paths))
	return paths, nil
}

// LoadAll loads every path in order. Any failure aborts the whole load.
func LoadAll[T any](paths []string, load func(string) (T, error)) ([]T, error) {
	out := make([]T, 0, len(paths))
	for _, p := range paths {
		v, err := load(p)
		if err != nil {
			return nil, fmt.Errorf("load fragment %s: %w", filepath.Base(p), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Partition groups consecutive sizes into fragments holding at most limit
// bytes each. An element larger than limit gets a fragment of its own.
// A zero limit yields a single group.
func Partition(sizes []uint64, limit uint64) [][]int {
	if len(sizes) == 0 {
		return nil
	}
	var (
		groups  [][]int
		current []int
		total   uint64
	)
	for i, size := range sizes {
		if limit > 0 && len(current) > 0 && total+size > limit {
			groups = append(groups, current)
			current, total = nil, 0
		}
		current = append(current, i)
		total += size
	}
	return append(groups, current)
}
