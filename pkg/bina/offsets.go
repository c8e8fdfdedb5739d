package bina

import (
	"slices"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// OffsetTable lists every position in an output image that holds an offset.
// Positions are encoded as deltas in 4-byte units:
//
//	01dddddd                            6-bit delta
//	10dddddd dddddddd                   14-bit delta
//	11dddddd dddddddd dddddddd dddddddd 30-bit delta
//
// The list ends with a zero byte and is padded to 4 bytes.
type OffsetTable []uint64

// Add records pos.
func (t *OffsetTable) Add(pos uint64) {
	*t = append(*t, pos)
}

// Encode returns the compact form of the table.
func (t OffsetTable) Encode() ([]byte, error) {
	positions := slices.Clone([]uint64(t))
	slices.Sort(positions)

	out := make([]byte, 0, len(positions)+4)
	var prev uint64
	for i, pos := range positions {
		if i > 0 && pos == prev {
			continue
		}
		delta := pos - prev
		if delta%4 != 0 {
			return nil, blob.Invalidf("offset position %#x is not 4-byte aligned", pos)
		}
		d := delta >> 2
		switch {
		case d <= 0x3F:
			out = append(out, 0x40|byte(d))
		case d <= 0x3FFF:
			out = append(out, 0x80|byte(d>>8), byte(d))
		case d <= 0x3FFFFFFF:
			out = append(out, 0xC0|byte(d>>24), byte(d>>16), byte(d>>8), byte(d))
		default:
			return nil, blob.Invalidf("offset delta %#x too large", delta)
		}
		prev = pos
	}
	out = append(out, 0)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out, nil
}

// DecodeOffsets parses an encoded table.
func DecodeOffsets(data []byte) (OffsetTable, error) {
	var (
		table OffsetTable
		pos   uint64
	)
	for i := 0; i < len(data); {
		b := data[i]
		var d uint64
		switch b >> 6 {
		case 0:
			return table, nil
		case 1:
			d = uint64(b & 0x3F)
			i++
		case 2:
			if i+2 > len(data) {
				return nil, blob.Corruptf("truncated offset table entry at %d", i)
			}
			d = uint64(b&0x3F)<<8 | uint64(data[i+1])
			i += 2
		case 3:
			if i+4 > len(data) {
				return nil, blob.Corruptf("truncated offset table entry at %d", i)
			}
			d = uint64(b&0x3F)<<24 | uint64(data[i+1])<<16 | uint64(data[i+2])<<8 | uint64(data[i+3])
			i += 4
		}
		if d == 0 {
			return nil, blob.Corruptf("zero delta in offset table")
		}
		pos += d << 2
		table = append(table, pos)
	}
	return table, nil
}

// Verify checks that every listed position holds an in-bounds offset of the
// given width (4 or 8).
func (t OffsetTable) Verify(buf *blob.Buffer, width uint64) error {
	for _, pos := range t {
		var target uint64
		switch width {
		case 4:
			v, err := buf.Uint32(pos)
			if err != nil {
				return err
			}
			target = uint64(v)
		default:
			v, err := buf.Uint64(pos)
			if err != nil {
				return err
			}
			target = v
		}
		if target >= buf.Len() {
			return blob.Corruptf("offset at %#x points to %#x past end %#x", pos, target, buf.Len())
		}
	}
	return nil
}
