// Package legacy reads and writes the linear "AR" archive format: a 16-byte
// header followed by entries that each carry a small fixed header, a
// NUL-terminated name and an aligned payload. Large archives are written as
// numbered fragments with an optional "ARL" index file next to them.
package legacy

import (
	"encoding/binary"
	"path/filepath"
	"strings"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

const (
	// HeaderSize is the size of the archive header.
	HeaderSize = 0x10
	// EntryHeaderSize is the size of each entry header.
	EntryHeaderSize = 0x14
	// DefaultPadding aligns payloads to file positions.
	DefaultPadding = 0x40

	// Ext is the archive extension and IndexExt the index extension.
	Ext      = ".ar"
	IndexExt = ".arl"
)

// Header is the archive header. FileSize is not meaningful on disk and is
// replaced by the real length when a file is loaded.
type Header struct {
	FileSize        uint32
	FirstEntry      uint32
	EntryHeaderSize uint32
	Padding         uint32
}

// DecodeFrom reads the header from data, which must hold HeaderSize bytes.
func (h *Header) DecodeFrom(data []byte) {
	h.FileSize = binary.LittleEndian.Uint32(data[0:4])
	h.FirstEntry = binary.LittleEndian.Uint32(data[4:8])
	h.EntryHeaderSize = binary.LittleEndian.Uint32(data[8:12])
	h.Padding = binary.LittleEndian.Uint32(data[12:16])
}

// EncodeTo writes the header to buf, which must hold HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.FileSize)
	binary.LittleEndian.PutUint32(buf[4:8], h.FirstEntry)
	binary.LittleEndian.PutUint32(buf[8:12], h.EntryHeaderSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.Padding)
}

// Validate checks the constant fields.
func (h *Header) Validate(length uint64) error {
	if h.EntryHeaderSize != EntryHeaderSize {
		return blob.Corruptf("entry header size %#x, expected %#x", h.EntryHeaderSize, EntryHeaderSize)
	}
	if h.FirstEntry < HeaderSize || uint64(h.FirstEntry) > length {
		return blob.Corruptf("first entry offset %#x outside file of %#x bytes", h.FirstEntry, length)
	}
	return nil
}

// Looks reports whether data starts with a plausible archive header. It is
// used only when the file name does not identify the format.
func Looks(data []byte) bool {
	if len(data) < HeaderSize {
		return false
	}
	var h Header
	h.DecodeFrom(data)
	return h.Validate(uint64(len(data))) == nil
}

// IndexPath returns the index file belonging to an archive root path.
func IndexPath(root string) string {
	return strings.TrimSuffix(root, filepath.Ext(root)) + IndexExt
}
