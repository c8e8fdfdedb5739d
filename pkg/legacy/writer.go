package legacy

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"path/filepath"

	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/EchoTools/pacFileTools/pkg/split"
)

// WriteOptions configures Write.
type WriteOptions struct {
	// SplitLimit starts a new fragment once the current one has grown past
	// it. Zero writes a single archive.
	SplitLimit uint64
	// Padding aligns payloads; zero means DefaultPadding.
	Padding uint32
	// GenerateIndex writes an ARL index next to the archive.
	GenerateIndex bool
	// IndexNames adds every entry name to the index.
	IndexNames bool

	WriteFile blob.WriteFunc
	Logger    *slog.Logger
}

// fragmentWriter accumulates one archive file in memory.
type fragmentWriter struct {
	buf     bytes.Buffer
	padding uint32
}

func newFragmentWriter(padding uint32) *fragmentWriter {
	f := &fragmentWriter{padding: padding}
	var hdr [HeaderSize]byte
	h := Header{FirstEntry: HeaderSize, EntryHeaderSize: EntryHeaderSize, Padding: padding}
	h.EncodeTo(hdr[:])
	f.buf.Write(hdr[:])
	return f
}

func (f *fragmentWriter) size() uint64 { return uint64(f.buf.Len()) }

func (f *fragmentWriter) add(name string, data []byte) error {
	start := f.size()
	nameEnd := start + EntryHeaderSize + uint64(len(name)) + 1
	dataPos := nameEnd
	if rem := dataPos % uint64(f.padding); rem != 0 {
		dataPos += uint64(f.padding) - rem
	}
	end := dataPos + uint64(len(data))
	if end > 0xFFFFFFFF {
		return blob.Invalidf("entry %q ends at %#x, past 32-bit offsets", name, end)
	}

	var hdr [EntryHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(end-start))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(data)))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(dataPos-start))
	f.buf.Write(hdr[:])
	f.buf.WriteString(name)
	f.buf.Write(make([]byte, dataPos-nameEnd+1))
	f.buf.Write(data)
	return nil
}

// Write stores entries as root, or as root.00, root.01, ... when a split
// limit is set. A fragment is closed once the entry just written took it past
// the limit, so a fragment may exceed the limit by one entry. It returns the
// paths written, index last.
func Write(root string, entries []blob.Entry, opts WriteOptions) ([]string, error) {
	if root == "" {
		return nil, blob.Invalidf("empty archive path")
	}
	padding := opts.Padding
	if padding == 0 {
		padding = DefaultPadding
	}
	if padding&(padding-1) != 0 {
		return nil, blob.Invalidf("padding %d is not a power of two", padding)
	}
	writeFile := opts.WriteFile
	if writeFile == nil {
		writeFile = blob.WriteFile
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Name()]; dup {
			return nil, blob.Invalidf("duplicate entry %q", e.Name())
		}
		seen[e.Name()] = struct{}{}
	}

	var (
		fragments []*fragmentWriter
		current   = newFragmentWriter(padding)
	)
	for i, e := range entries {
		data, err := e.Bytes()
		if err != nil {
			return nil, err
		}
		if err := current.add(e.Name(), data); err != nil {
			return nil, err
		}
		if opts.SplitLimit > 0 && current.size() > opts.SplitLimit && i < len(entries)-1 {
			logger.Debug("split limit reached, starting next fragment",
				"fragment", len(fragments), "size", current.size(), "limit", opts.SplitLimit)
			fragments = append(fragments, current)
			current = newFragmentWriter(padding)
		}
	}
	fragments = append(fragments, current)

	paths := []string{root}
	if opts.SplitLimit > 0 {
		var err error
		paths, err = split.Names(root, len(fragments), split.TwoDigits)
		if err != nil {
			return nil, err
		}
	}

	index := &Index{}
	for i, f := range fragments {
		if err := writeFile(paths[i], f.buf.Bytes()); err != nil {
			return nil, err
		}
		index.SplitSizes = append(index.SplitSizes, uint32(f.size()))
	}

	if opts.GenerateIndex {
		if opts.IndexNames {
			for _, e := range entries {
				index.Names = append(index.Names, e.Name())
			}
		}
		data, err := index.Encode()
		if err != nil {
			return nil, err
		}
		path := IndexPath(root)
		if err := writeFile(path, data); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	logger.Debug("wrote legacy archive", "root", filepath.Base(root), "fragments", len(fragments))
	return paths, nil
}
