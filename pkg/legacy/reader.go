package legacy

import (
	"encoding/binary"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// Entry is one file in an archive. Data aliases the archive buffer.
type Entry struct {
	Name      string
	Data      []byte
	Reserved1 uint32
	Reserved2 uint32
}

// Archive is one parsed archive file or fragment.
type Archive struct {
	Buffer  *blob.Buffer
	Header  Header
	Entries []Entry
}

// Parse reads every entry of buf. The header's file size field is
// overwritten with the buffer length first, since the format does not
// record it reliably across fragments.
func Parse(buf *blob.Buffer) (*Archive, error) {
	if buf.Len() < HeaderSize {
		return nil, blob.Corruptf("archive needs %d bytes, got %d", HeaderSize, buf.Len())
	}
	if buf.Len() > 0xFFFFFFFF {
		return nil, blob.Corruptf("archive of %d bytes exceeds 32-bit offsets", buf.Len())
	}
	binary.LittleEndian.PutUint32(buf.Data[0:4], uint32(buf.Len()))
	buf.Format = blob.FormatLegacy
	buf.Kind = 0
	buf.Order = binary.LittleEndian

	a := &Archive{Buffer: buf}
	a.Header.DecodeFrom(buf.Data)
	if err := a.Header.Validate(buf.Len()); err != nil {
		return nil, err
	}

	end := uint64(a.Header.FileSize)
	for pos := uint64(a.Header.FirstEntry); pos < end; {
		e, size, err := readEntry(buf, pos)
		if err != nil {
			return nil, err
		}
		a.Entries = append(a.Entries, e)
		pos += size
	}
	return a, nil
}

func readEntry(buf *blob.Buffer, pos uint64) (Entry, uint64, error) {
	if err := buf.Check(pos, EntryHeaderSize); err != nil {
		return Entry{}, 0, err
	}
	entrySize, _ := buf.Uint32(pos)
	dataSize, _ := buf.Uint32(pos + 4)
	dataOffset, _ := buf.Uint32(pos + 8)
	r1, _ := buf.Uint32(pos + 12)
	r2, _ := buf.Uint32(pos + 16)

	if dataOffset <= EntryHeaderSize {
		return Entry{}, 0, blob.Corruptf("entry at %#x: data offset %#x leaves no room for a name", pos, dataOffset)
	}
	if uint64(dataOffset)+uint64(dataSize) > uint64(entrySize) {
		return Entry{}, 0, blob.Corruptf("entry at %#x: data [%#x, +%#x) outside entry of %#x bytes", pos, dataOffset, dataSize, entrySize)
	}
	if err := buf.Check(pos, uint64(entrySize)); err != nil {
		return Entry{}, 0, err
	}

	nameBytes := buf.Data[pos+EntryHeaderSize : pos+uint64(dataOffset)]
	n := 0
	for n < len(nameBytes) && nameBytes[n] != 0 {
		n++
	}
	if n == len(nameBytes) {
		return Entry{}, 0, blob.Corruptf("entry at %#x: name is not terminated before its data", pos)
	}
	if n == 0 {
		return Entry{}, 0, blob.Corruptf("entry at %#x has an empty name", pos)
	}

	data, err := buf.Bytes(pos+uint64(dataOffset), uint64(dataSize))
	if err != nil {
		return Entry{}, 0, err
	}
	return Entry{
		Name:      string(nameBytes[:n]),
		Data:      data,
		Reserved1: r1,
		Reserved2: r2,
	}, uint64(entrySize), nil
}
