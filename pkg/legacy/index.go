package legacy

import (
	"encoding/binary"
	"fmt"

	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/EchoTools/pacFileTools/pkg/codec"
)

// IndexMagic starts every ARL file.
var IndexMagic = [4]byte{'A', 'R', 'L', '2'}

// Index is the content of an ARL file: the size of every fragment in order
// and optionally the names of all entries.
type Index struct {
	SplitSizes []uint32
	Names      []string
}

// Encode serializes the index.
func (x *Index) Encode() ([]byte, error) {
	out := make([]byte, 8, 8+4*len(x.SplitSizes))
	copy(out, IndexMagic[:])
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(x.SplitSizes)))
	for _, s := range x.SplitSizes {
		out = binary.LittleEndian.AppendUint32(out, s)
	}
	for _, n := range x.Names {
		if len(n) == 0 || len(n) > 0xFF {
			return nil, blob.Invalidf("index name %q must be 1 to 255 bytes", n)
		}
		out = append(out, byte(len(n)))
		out = append(out, n...)
	}
	return out, nil
}

// DecodeIndex parses an ARL file.
func DecodeIndex(data []byte) (*Index, error) {
	buf := blob.New(data, "")
	if buf.Len() < 8 {
		return nil, blob.Corruptf("index needs 8 bytes, got %d", buf.Len())
	}
	if [4]byte(data[0:4]) != IndexMagic {
		return nil, blob.Corruptf("invalid index magic %q", data[0:4])
	}
	count, _ := buf.Uint32(4)
	if err := buf.CheckCount(8, uint64(count), 4); err != nil {
		return nil, fmt.Errorf("split sizes: %w", err)
	}
	x := &Index{SplitSizes: make([]uint32, count)}
	pos := uint64(8)
	for i := range x.SplitSizes {
		x.SplitSizes[i], _ = buf.Uint32(pos)
		pos += 4
	}
	for pos < buf.Len() {
		n := uint64(data[pos])
		name, err := buf.Bytes(pos+1, n)
		if err != nil {
			return nil, fmt.Errorf("index name at %#x: %w", pos, err)
		}
		x.Names = append(x.Names, string(name))
		pos += 1 + n
	}
	return x, nil
}

// ReadIndex loads an ARL file from disk, removing any compression envelope.
func ReadIndex(path string) (*Index, error) {
	buf, _, err := codec.Load(path)
	if err != nil {
		return nil, err
	}
	x, err := DecodeIndex(buf.Data)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	return x, nil
}

// WriteIndex stores x at path.
func WriteIndex(path string, x *Index) error {
	data, err := x.Encode()
	if err != nil {
		return err
	}
	return blob.WriteFile(path, data)
}
