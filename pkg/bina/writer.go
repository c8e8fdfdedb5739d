package bina

import (
	"encoding/binary"
	"math"

	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/EchoTools/pacFileTools/pkg/endian"
)

type stringRef struct {
	value string
	pos   uint64
	width uint8
}

// StringTable collects string fields to be emitted once and patched.
type StringTable []stringRef

// Writer builds a container image in host byte order. Offsets written
// through it are recorded in Offsets; string fields are recorded in Strings
// and resolved by WriteStrings.
type Writer struct {
	buf     []byte
	order   binary.ByteOrder
	Offsets OffsetTable
	Strings StringTable
}

// NewWriter creates an empty writer.
func NewWriter() *Writer {
	return &Writer{order: endian.Native()}
}

// Order is the byte order the image is built in.
func (w *Writer) Order() binary.ByteOrder { return w.order }

// Pos returns the current end of the image.
func (w *Writer) Pos() uint64 { return uint64(len(w.buf)) }

// Bytes returns the image built so far.
func (w *Writer) Bytes() []byte { return w.buf }

// Write appends p.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Reserve appends n zero bytes and returns their position.
func (w *Writer) Reserve(n uint64) uint64 {
	pos := w.Pos()
	w.buf = append(w.buf, make([]byte, n)...)
	return pos
}

// Align pads with zeros to a multiple of n.
func (w *Writer) Align(n uint64) {
	if n <= 1 {
		return
	}
	if rem := w.Pos() % n; rem != 0 {
		w.Reserve(n - rem)
	}
}

func (w *Writer) PutU8(pos uint64, v uint8)   { w.buf[pos] = v }
func (w *Writer) PutU16(pos uint64, v uint16) { w.order.PutUint16(w.buf[pos:], v) }
func (w *Writer) PutU32(pos uint64, v uint32) { w.order.PutUint32(w.buf[pos:], v) }
func (w *Writer) PutU64(pos uint64, v uint64) { w.order.PutUint64(w.buf[pos:], v) }

// PutSize32 stores a section size, failing if it does not fit 32 bits.
func (w *Writer) PutSize32(pos, v uint64) error {
	if v > math.MaxUint32 {
		return blob.Invalidf("size %d at %#x exceeds 32 bits", v, pos)
	}
	w.PutU32(pos, uint32(v))
	return nil
}

// SetOff32 stores a 32-bit offset to target at pos and records it.
func (w *Writer) SetOff32(pos, target uint64) error {
	if target > math.MaxUint32 {
		return blob.Invalidf("offset %#x at %#x exceeds 32 bits", target, pos)
	}
	w.PutU32(pos, uint32(target))
	w.Offsets.Add(pos)
	return nil
}

// SetOff64 stores a 64-bit offset to target at pos and records it.
func (w *Writer) SetOff64(pos, target uint64) {
	w.PutU64(pos, target)
	w.Offsets.Add(pos)
}

// SetOff stores an offset of the given width (4 or 8).
func (w *Writer) SetOff(pos, target uint64, width uint8) error {
	if width == 8 {
		w.SetOff64(pos, target)
		return nil
	}
	return w.SetOff32(pos, target)
}

// AddString records that the offset field at pos must point at s.
func (w *Writer) AddString(pos uint64, s string, width uint8) {
	w.Strings = append(w.Strings, stringRef{value: s, pos: pos, width: width})
}

// WriteStrings emits every distinct recorded string once, in first-use
// order, patches the fields that reference it and pads to 4. It returns the
// section size.
func (w *Writer) WriteStrings() (uint64, error) {
	start := w.Pos()
	placed := make(map[string]uint64, len(w.Strings))
	for _, ref := range w.Strings {
		target, ok := placed[ref.value]
		if !ok {
			target = w.Pos()
			w.buf = append(w.buf, ref.value...)
			w.buf = append(w.buf, 0)
			placed[ref.value] = target
		}
		if err := w.SetOff(ref.pos, target, ref.width); err != nil {
			return 0, err
		}
	}
	w.Strings = nil
	w.Align(4)
	return w.Pos() - start, nil
}

// WriteOffsetTable emits the encoded offset table and returns its size.
func (w *Writer) WriteOffsetTable() (uint64, error) {
	encoded, err := w.Offsets.Encode()
	if err != nil {
		return 0, err
	}
	w.buf = append(w.buf, encoded...)
	return uint64(len(encoded)), nil
}
