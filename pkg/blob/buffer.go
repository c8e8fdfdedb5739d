// Package blob provides the owned byte buffers every archive format is parsed
// from, bounds-checked readers over them, and the relocatable offset model used
// in place of native pointers.
package blob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// Format is the coarse classification of a loaded buffer.
type Format uint8

const (
	FormatGeneric Format = iota
	FormatContainer
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatContainer:
		return "container"
	case FormatLegacy:
		return "legacy"
	default:
		return "generic"
	}
}

// MaxAlloc bounds any single allocation whose size is derived from file data.
const MaxAlloc = 1 << 31

// Buffer owns the bytes of one loaded file. Views handed out by the format
// packages alias Data and are only meaningful while the Buffer is reachable.
type Buffer struct {
	Data   []byte
	Format Format
	Kind   uint16           // container version (201, 301); 0 for legacy
	Order  binary.ByteOrder // order multi-byte fields are currently stored in
	Path   string
}

// New wraps data without copying it.
func New(data []byte, path string) *Buffer {
	return &Buffer{
		Data:  data,
		Order: binary.LittleEndian,
		Path:  path,
	}
}

// Load reads a whole file into a new Buffer.
func Load(path string) (*Buffer, error) {
	if path == "" {
		return nil, Invalidf("empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return New(data, path), nil
}

// Len returns the buffer length.
func (b *Buffer) Len() uint64 {
	return uint64(len(b.Data))
}

// Check reports ErrCorruptData unless [pos, pos+n) lies inside the buffer.
func (b *Buffer) Check(pos, n uint64) error {
	end := pos + n
	if end < pos || end > b.Len() {
		return Corruptf("range [%#x, +%#x) outside buffer of %#x bytes", pos, n, b.Len())
	}
	return nil
}

// Bytes returns a view of n bytes at pos.
func (b *Buffer) Bytes(pos, n uint64) ([]byte, error) {
	if err := b.Check(pos, n); err != nil {
		return nil, err
	}
	return b.Data[pos : pos+n : pos+n], nil
}

func (b *Buffer) Uint8(pos uint64) (uint8, error) {
	if err := b.Check(pos, 1); err != nil {
		return 0, err
	}
	return b.Data[pos], nil
}

func (b *Buffer) Uint16(pos uint64) (uint16, error) {
	if err := b.Check(pos, 2); err != nil {
		return 0, err
	}
	return b.Order.Uint16(b.Data[pos:]), nil
}

func (b *Buffer) Uint32(pos uint64) (uint32, error) {
	if err := b.Check(pos, 4); err != nil {
		return 0, err
	}
	return b.Order.Uint32(b.Data[pos:]), nil
}

func (b *Buffer) Int32(pos uint64) (int32, error) {
	v, err := b.Uint32(pos)
	return int32(v), err
}

func (b *Buffer) Uint64(pos uint64) (uint64, error) {
	if err := b.Check(pos, 8); err != nil {
		return 0, err
	}
	return b.Order.Uint64(b.Data[pos:]), nil
}

// CString reads a NUL-terminated string starting at pos. A missing terminator
// is corruption.
func (b *Buffer) CString(pos uint64) (string, error) {
	if pos >= b.Len() {
		return "", Corruptf("string at %#x outside buffer of %#x bytes", pos, b.Len())
	}
	end := bytes.IndexByte(b.Data[pos:], 0)
	if end < 0 {
		return "", Corruptf("unterminated string at %#x", pos)
	}
	return string(b.Data[pos : pos+uint64(end)]), nil
}

// CheckCount validates that count elements of size bytes starting at pos fit
// in the buffer before anything is allocated for them.
func (b *Buffer) CheckCount(pos, count, size uint64) error {
	if count == 0 {
		return nil
	}
	if size != 0 && count > MaxAlloc/size {
		return fmt.Errorf("%w: %d elements of %d bytes", ErrOutOfMemory, count, size)
	}
	return b.Check(pos, count*size)
}
