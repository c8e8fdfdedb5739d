// Package bina holds the plumbing shared by the PACx container generations:
// header identification, byte-order normalization, the string table, the
// compact offset table and a section writer with backpatching.
package bina

import (
	"encoding/binary"

	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/EchoTools/pacFileTools/pkg/endian"
)

// Magic identifies every container generation.
var Magic = [4]byte{'P', 'A', 'C', 'x'}

const (
	// Version2 is the flat type/file tree generation.
	Version2 = 201
	// Version3 is the indexed trie generation with 64-bit offsets.
	Version3 = 301

	// IdentSize covers magic, version digits and the endian flag.
	IdentSize = 8

	flagPos = 7
)

// Header flags shared by both generations.
const (
	FlagRoot      = 0x1
	FlagSplit     = 0x2
	FlagHasSplits = 0x4
)

// Ident is the self-describing prefix of a container.
type Ident struct {
	Version uint16
	Order   binary.ByteOrder
}

// ReadIdent validates the magic and decodes the version triplet and endian
// flag.
func ReadIdent(data []byte) (Ident, error) {
	if len(data) < IdentSize {
		return Ident{}, blob.Corruptf("container header needs %d bytes, got %d", IdentSize, len(data))
	}
	if [4]byte(data[0:4]) != Magic {
		return Ident{}, blob.Corruptf("invalid magic: expected %q, got %q", Magic[:], data[0:4])
	}
	var version uint16
	for _, c := range data[4:7] {
		if c < '0' || c > '9' {
			return Ident{}, blob.Corruptf("invalid version %q", data[4:7])
		}
		version = version*10 + uint16(c-'0')
	}
	order, err := flagOrder(data[flagPos])
	if err != nil {
		return Ident{}, err
	}
	return Ident{Version: version, Order: order}, nil
}

// PutIdent writes magic, version and endian flag into the first IdentSize
// bytes of dst.
func PutIdent(dst []byte, version uint16, order binary.ByteOrder) {
	copy(dst[0:4], Magic[:])
	dst[4] = byte('0' + version/100%10)
	dst[5] = byte('0' + version/10%10)
	dst[6] = byte('0' + version%10)
	dst[flagPos] = orderFlag(order)
}

func flagOrder(flag byte) (binary.ByteOrder, error) {
	switch flag {
	case 'B':
		return binary.BigEndian, nil
	case 'L':
		return binary.LittleEndian, nil
	}
	return nil, blob.Corruptf("invalid endian flag %#x", flag)
}

func orderFlag(order binary.ByteOrder) byte {
	if order == binary.BigEndian {
		return 'B'
	}
	return 'L'
}

// SwapContainer reverses every structure reachable from root, which is
// described at position 0, and flips the endian flag to match. Applying it
// twice restores the original bytes.
func SwapContainer(data []byte, root endian.Traits) error {
	ident, err := ReadIdent(data)
	if err != nil {
		return err
	}
	w := endian.NewWalker(data, ident.Order)
	if err := endian.SwapRecursive(w, root, 0); err != nil {
		return err
	}
	data[flagPos] = orderFlag(endian.Opposite(ident.Order))
	return nil
}

// Normalize brings a loaded container to host byte order. It must run before
// any offset inside buf is followed.
func Normalize(buf *blob.Buffer, root endian.Traits) error {
	ident, err := ReadIdent(buf.Data)
	if err != nil {
		return err
	}
	native := endian.Native()
	if ident.Order != native {
		if err := SwapContainer(buf.Data, root); err != nil {
			return err
		}
	}
	buf.Format = blob.FormatContainer
	buf.Kind = ident.Version
	buf.Order = native
	return nil
}

// Convert rewrites a host-order image so it is stored in order.
func Convert(data []byte, root endian.Traits, order binary.ByteOrder) error {
	ident, err := ReadIdent(data)
	if err != nil {
		return err
	}
	if ident.Order == order {
		return nil
	}
	return SwapContainer(data, root)
}
