package blob

import (
	"fmt"
	"os"
)

// Entry is one named blob handed to a writer. Its bytes come either from
// memory or from a file on disk, never both.
type Entry struct {
	name string
	size int64
	data []byte
	path string
}

// NewEntry creates an entry backed by data.
func NewEntry(name string, data []byte) (Entry, error) {
	if name == "" {
		return Entry{}, Invalidf("entry name is empty")
	}
	return Entry{name: name, size: int64(len(data)), data: data}, nil
}

// NewFileEntry creates an entry whose bytes are read from path when needed.
func NewFileEntry(name, path string) (Entry, error) {
	if name == "" {
		return Entry{}, Invalidf("entry name is empty")
	}
	if path == "" {
		return Entry{}, Invalidf("source path for %q is empty", name)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Entry{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Entry{}, Invalidf("source %s is a directory", path)
	}
	return Entry{name: name, size: info.Size(), path: path}, nil
}

func (e Entry) Name() string       { return e.name }
func (e Entry) Size() int64        { return e.size }
func (e Entry) SourcePath() string { return e.path }

// Bytes returns the entry contents, reading the source file if there is one.
func (e Entry) Bytes() ([]byte, error) {
	if e.path == "" {
		return e.data, nil
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.path, err)
	}
	if int64(len(data)) != e.size {
		return nil, fmt.Errorf("%s changed size: was %d, now %d", e.path, e.size, len(data))
	}
	return data, nil
}
