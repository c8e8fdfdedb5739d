package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// Envelope magics, one per codec.
var (
	MagicZstd = [4]byte{'Z', 'S', 'T', 'D'}
	MagicLZ4  = [4]byte{'L', 'Z', '4', 'F'}
	MagicZlib = [4]byte{'Z', 'L', 'I', 'B'}
)

// xcompressMagic starts native XMemCompress streams.
var xcompressMagic = [4]byte{0x0F, 0xF5, 0x12, 0xEE}

// HeaderSize is the fixed binary size of an envelope header.
const HeaderSize = 24 // 4 + 4 + 8 + 8 bytes

const headerLength = 16

// Header is the envelope header in front of a compressed file.
type Header struct {
	Magic            [4]byte
	HeaderLength     uint32
	Length           uint64 // Uncompressed size
	CompressedLength uint64 // Compressed size
}

// NewHeader creates a header for kind with the given sizes.
func NewHeader(kind Kind, uncompressedSize, compressedSize uint64) (*Header, error) {
	magic, err := magicFor(kind)
	if err != nil {
		return nil, err
	}
	return &Header{
		Magic:            magic,
		HeaderLength:     headerLength,
		Length:           uncompressedSize,
		CompressedLength: compressedSize,
	}, nil
}

func magicFor(kind Kind) ([4]byte, error) {
	switch kind {
	case Zstd:
		return MagicZstd, nil
	case LZ4:
		return MagicLZ4, nil
	case Zlib:
		return MagicZlib, nil
	default:
		return [4]byte{}, fmt.Errorf("%w: no envelope for %s", blob.ErrUnsupported, kind)
	}
}

// Kind returns the codec named by the magic, or None.
func (h *Header) Kind() Kind {
	switch h.Magic {
	case MagicZstd:
		return Zstd
	case MagicLZ4:
		return LZ4
	case MagicZlib:
		return Zlib
	default:
		return None
	}
}

// Size returns the binary size of the header.
func (h *Header) Size() int {
	return HeaderSize
}

// Validate checks the header for validity.
func (h *Header) Validate() error {
	if h.Kind() == None {
		return blob.Corruptf("invalid envelope magic %x", h.Magic)
	}
	if h.HeaderLength != headerLength {
		return blob.Corruptf("invalid header length: expected %d, got %d", headerLength, h.HeaderLength)
	}
	if h.Length == 0 {
		return blob.Corruptf("uncompressed size is zero")
	}
	if h.CompressedLength == 0 {
		return blob.Corruptf("compressed size is zero")
	}
	if h.Length > blob.MaxAlloc {
		return fmt.Errorf("%w: uncompressed size %d", blob.ErrOutOfMemory, h.Length)
	}
	return nil
}

// MarshalBinary encodes the header to binary format.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.EncodeTo(buf)
	return buf, nil
}

// EncodeTo writes the header to the given buffer.
// The buffer must be at least HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) {
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.HeaderLength)
	binary.LittleEndian.PutUint64(buf[8:16], h.Length)
	binary.LittleEndian.PutUint64(buf[16:24], h.CompressedLength)
}

// UnmarshalBinary decodes and validates the header.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return blob.Corruptf("header data too short: need %d, got %d", HeaderSize, len(data))
	}
	h.DecodeFrom(data)
	return h.Validate()
}

// DecodeFrom reads the header from the given buffer without validating it.
func (h *Header) DecodeFrom(data []byte) {
	copy(h.Magic[:], data[0:4])
	h.HeaderLength = binary.LittleEndian.Uint32(data[4:8])
	h.Length = binary.LittleEndian.Uint64(data[8:16])
	h.CompressedLength = binary.LittleEndian.Uint64(data[16:24])
}

// Sniff reports the envelope kind data starts with. XCompress is reported
// for native XMemCompress streams; plain data is None.
func Sniff(data []byte) Kind {
	if len(data) < 4 {
		return None
	}
	magic := [4]byte(data[0:4])
	if magic == xcompressMagic {
		return XCompress
	}
	h := Header{Magic: magic}
	return h.Kind()
}
