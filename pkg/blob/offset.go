package blob

// Off32 is a 32-bit on-disk offset relative to the start of its buffer.
type Off32 uint32

// Off64 is a 64-bit on-disk offset relative to the start of its buffer.
type Off64 uint64

// Offset is either on-disk offset width. Offsets are always resolved against
// the owning buffer's base, so a 32-bit offset never has to hold a host address.
type Offset interface {
	Off32 | Off64
}

// Off32 reads a 32-bit offset stored at pos.
func (b *Buffer) Off32(pos uint64) (Off32, error) {
	v, err := b.Uint32(pos)
	return Off32(v), err
}

// Off64 reads a 64-bit offset stored at pos.
func (b *Buffer) Off64(pos uint64) (Off64, error) {
	v, err := b.Uint64(pos)
	return Off64(v), err
}

// Resolve turns off into a position in b that has at least size bytes behind
// it. ok is false for the null offset; an offset pointing outside the buffer
// is ErrCorruptData.
func Resolve[O Offset](b *Buffer, off O, size uint64) (pos uint64, ok bool, err error) {
	if off == 0 {
		return 0, false, nil
	}
	pos = uint64(off)
	if err := b.Check(pos, size); err != nil {
		return 0, false, err
	}
	return pos, true, nil
}

// Required is Resolve for fields that may not be null.
func Required[O Offset](b *Buffer, off O, size uint64, what string) (uint64, error) {
	pos, ok, err := Resolve(b, off, size)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, Corruptf("null %s offset", what)
	}
	return pos, nil
}

// StringAt resolves a string offset. The null offset yields "" with ok false.
func StringAt[O Offset](b *Buffer, off O) (s string, ok bool, err error) {
	pos, ok, err := Resolve(b, off, 1)
	if err != nil || !ok {
		return "", ok, err
	}
	s, err = b.CString(pos)
	return s, err == nil, err
}
