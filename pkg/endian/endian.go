// Package endian reverses the byte order of on-disk structures in place.
//
// Every on-disk struct type describes itself through Traits: the scalar
// fields that need a 2, 4 or 8 byte swap, in declaration order, and the
// offset-addressed children that must be visited after it. A Walker applies
// those traits to a byte slice exactly once per position, so the same code
// converts a freshly loaded big-endian file to host order and pre-swaps a
// host-order image before it is written big-endian.
package endian

import (
	"encoding/binary"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// MaxDepth bounds child recursion. Real archives nest a handful of levels.
const MaxDepth = 32

// Field is one multi-byte scalar inside a struct.
type Field struct {
	Off   uint64
	Width uint8
}

// Child is a run of Count structures described by Traits starting at Pos.
type Child struct {
	Pos    uint64
	Traits Traits
	Count  uint64
}

// Traits describes how one on-disk struct type is swapped.
type Traits interface {
	Name() string
	Size() uint64
	Fields() []Field
	// Children returns the structures reachable from the value at pos. It is
	// called before the value is swapped, so offsets and counts must be read
	// through the walker in its current order.
	Children(w *Walker, pos uint64) ([]Child, error)
}

type visitKey struct {
	pos  uint64
	name string
}

// Walker swaps structures inside Data. Order is the byte order Data is in
// when the walk starts; it does not change during the walk.
type Walker struct {
	Data  []byte
	Order binary.ByteOrder

	visited map[visitKey]struct{}
	swapped []uint64 // one bit per byte already swapped
}

// NewWalker creates a walker over data currently stored in order.
func NewWalker(data []byte, order binary.ByteOrder) *Walker {
	return &Walker{
		Data:    data,
		Order:   order,
		visited: make(map[visitKey]struct{}),
		swapped: make([]uint64, (len(data)+63)/64),
	}
}

// Opposite returns the other byte order.
func Opposite(order binary.ByteOrder) binary.ByteOrder {
	if order == binary.BigEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Native is the host byte order.
func Native() binary.ByteOrder {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (w *Walker) check(pos, n uint64) error {
	end := pos + n
	if end < pos || end > uint64(len(w.Data)) {
		return blob.Corruptf("swap range [%#x, +%#x) outside buffer of %#x bytes", pos, n, len(w.Data))
	}
	return nil
}

func (w *Walker) Uint8(pos uint64) (uint8, error) {
	if err := w.check(pos, 1); err != nil {
		return 0, err
	}
	return w.Data[pos], nil
}

func (w *Walker) Uint16(pos uint64) (uint16, error) {
	if err := w.check(pos, 2); err != nil {
		return 0, err
	}
	return w.Order.Uint16(w.Data[pos:]), nil
}

func (w *Walker) Uint32(pos uint64) (uint32, error) {
	if err := w.check(pos, 4); err != nil {
		return 0, err
	}
	return w.Order.Uint32(w.Data[pos:]), nil
}

func (w *Walker) Uint64(pos uint64) (uint64, error) {
	if err := w.check(pos, 8); err != nil {
		return 0, err
	}
	return w.Order.Uint64(w.Data[pos:]), nil
}

// CString reads a NUL-terminated string at pos. Strings are never swapped.
func (w *Walker) CString(pos uint64) (string, error) {
	if err := w.check(pos, 1); err != nil {
		return "", err
	}
	for end := pos; end < uint64(len(w.Data)); end++ {
		if w.Data[end] == 0 {
			return string(w.Data[pos:end]), nil
		}
	}
	return "", blob.Corruptf("unterminated string at %#x", pos)
}

func (w *Walker) mark(pos uint64, width uint8) error {
	for i := pos; i < pos+uint64(width); i++ {
		word, bit := i/64, uint64(1)<<(i%64)
		if w.swapped[word]&bit != 0 {
			return blob.Corruptf("overlapping structures at %#x", i)
		}
		w.swapped[word] |= bit
	}
	return nil
}

// Swap reverses the declared scalar fields of the value at pos, one level deep.
func Swap(w *Walker, t Traits, pos uint64) error {
	if err := w.check(pos, t.Size()); err != nil {
		return err
	}
	for _, f := range t.Fields() {
		at := pos + f.Off
		if err := w.mark(at, f.Width); err != nil {
			return err
		}
		b := w.Data[at : at+uint64(f.Width)]
		switch f.Width {
		case 2:
			binary.LittleEndian.PutUint16(b, binary.BigEndian.Uint16(b))
		case 4:
			binary.LittleEndian.PutUint32(b, binary.BigEndian.Uint32(b))
		case 8:
			binary.LittleEndian.PutUint64(b, binary.BigEndian.Uint64(b))
		}
	}
	return nil
}

// SwapRecursive swaps the value at pos and everything reachable from it.
// Positions already visited with the same traits are skipped, so shared
// children are swapped once.
func SwapRecursive(w *Walker, t Traits, pos uint64) error {
	return w.walk(t, pos, 0)
}

func (w *Walker) walk(t Traits, pos uint64, depth int) error {
	if depth > MaxDepth {
		return blob.Corruptf("structure nesting deeper than %d at %#x", MaxDepth, pos)
	}
	key := visitKey{pos: pos, name: t.Name()}
	if _, ok := w.visited[key]; ok {
		return nil
	}
	w.visited[key] = struct{}{}

	if err := w.check(pos, t.Size()); err != nil {
		return err
	}
	children, err := t.Children(w, pos)
	if err != nil {
		return err
	}
	if err := Swap(w, t, pos); err != nil {
		return err
	}

	for _, c := range children {
		size := c.Traits.Size()
		if c.Count > uint64(len(w.Data)) || (size != 0 && c.Count > uint64(len(w.Data))/size) {
			return blob.Corruptf("%d x %s at %#x exceeds buffer", c.Count, c.Traits.Name(), c.Pos)
		}
		if err := w.check(c.Pos, c.Count*size); err != nil {
			return err
		}
		for i := uint64(0); i < c.Count; i++ {
			if err := w.walk(c.Traits, c.Pos+i*size, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Scalar traits describe a bare 2, 4 or 8 byte value, used for index and
// size arrays.
type Scalar uint8

var (
	Scalar16 Traits = Scalar(2)
	Scalar32 Traits = Scalar(4)
	Scalar64 Traits = Scalar(8)
)

func (s Scalar) Name() string {
	switch s {
	case 2:
		return "u16"
	case 4:
		return "u32"
	default:
		return "u64"
	}
}

func (s Scalar) Size() uint64                              { return uint64(s) }
func (s Scalar) Fields() []Field                           { return []Field{{Off: 0, Width: uint8(s)}} }
func (s Scalar) Children(*Walker, uint64) ([]Child, error) { return nil, nil }

// Leaf describes a struct with fixed fields and no children.
type Leaf struct {
	Label  string
	Bytes  uint64
	Layout []Field
}

func (l Leaf) Name() string                              { return l.Label }
func (l Leaf) Size() uint64                              { return l.Bytes }
func (l Leaf) Fields() []Field                           { return l.Layout }
func (l Leaf) Children(*Walker, uint64) ([]Child, error) { return nil, nil }
