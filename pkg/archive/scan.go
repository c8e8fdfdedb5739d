package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// ScanDir walks inputDir and returns one file-backed entry per regular file,
// named by its slash-separated path relative to inputDir and sorted by name.
func ScanDir(inputDir string) ([]blob.Entry, error) {
	st, err := os.Stat(inputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, inputDir)
		}
		return nil, fmt.Errorf("stat %s: %w", inputDir, err)
	}
	if !st.IsDir() {
		return nil, blob.Invalidf("%s is not a directory", inputDir)
	}

	var entries []blob.Entry
	err = filepath.Walk(inputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(inputDir, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}

		const maxUint32 = int64(^uint32(0))
		if info.Size() > maxUint32 {
			return blob.Invalidf("file too large: %s (size %d exceeds %d bytes)", path, info.Size(), maxUint32)
		}

		e, err := blob.NewFileEntry(filepath.ToSlash(relPath), path)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b blob.Entry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}
