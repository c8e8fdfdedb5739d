package codec

import (
	"fmt"
	"io"

	"github.com/DataDog/zstd"
	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// DefaultCompressionLevel is used for zstd and zlib when no level is set.
const DefaultCompressionLevel = zstd.BestSpeed

// Writer compresses data behind an envelope header that is rewritten with the
// compressed size on Close.
type Writer struct {
	dst    io.WriteSeeker
	enc    io.WriteCloser
	header *Header
	level  int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompressionLevel sets the compression level for the writer. LZ4 ignores
// it.
func WithCompressionLevel(level int) WriterOption {
	return func(w *Writer) {
		w.level = level
	}
}

// NewWriter creates a writer for kind that writes to dst.
// The uncompressedSize is the expected size of the uncompressed data.
func NewWriter(dst io.WriteSeeker, kind Kind, uncompressedSize uint64, opts ...WriterOption) (*Writer, error) {
	header, err := NewHeader(kind, uncompressedSize, 0)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		dst:    dst,
		level:  DefaultCompressionLevel,
		header: header,
	}

	for _, opt := range opts {
		opt(w)
	}

	// Placeholder until the compressed size is known.
	headerBytes, err := w.header.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if _, err := dst.Write(headerBytes); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	switch kind {
	case Zstd:
		w.enc = zstd.NewWriterLevel(dst, w.level)
	case LZ4:
		w.enc = lz4.NewWriter(dst)
	case Zlib:
		zw, err := zlib.NewWriterLevel(dst, w.level)
		if err != nil {
			return nil, blob.Invalidf("zlib level %d: %v", w.level, err)
		}
		w.enc = zw
	}
	return w, nil
}

// Write writes compressed data.
func (w *Writer) Write(p []byte) (n int, err error) {
	return w.enc.Write(p)
}

// Close finalizes the envelope by updating the header with the compressed
// size.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}

	pos, err := w.dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("get position: %w", err)
	}

	w.header.CompressedLength = uint64(pos) - uint64(w.header.Size())

	if _, err := w.dst.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek to start: %w", err)
	}

	headerBytes, err := w.header.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	if _, err := w.dst.Write(headerBytes); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if _, err := w.dst.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	return nil
}

// Encode compresses data and writes it as an envelope to dst.
func Encode(dst io.WriteSeeker, kind Kind, data []byte, opts ...WriterOption) error {
	w, err := NewWriter(dst, kind, uint64(len(data)), opts...)
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}

	return w.Close()
}

// EncodeBytes returns data wrapped in an envelope for kind. None returns data
// unchanged.
func EncodeBytes(kind Kind, data []byte, opts ...WriterOption) ([]byte, error) {
	if kind == None {
		return data, nil
	}
	if len(data) == 0 {
		return nil, blob.Invalidf("cannot compress an empty file")
	}
	f := &memFile{}
	if err := Encode(f, kind, data, opts...); err != nil {
		return nil, err
	}
	return f.data, nil
}

// Wrap returns a blob.WriteFunc that compresses every file with kind before
// handing it to next.
func Wrap(kind Kind, next blob.WriteFunc, opts ...WriterOption) blob.WriteFunc {
	if next == nil {
		next = blob.WriteFile
	}
	if kind == None {
		return next
	}
	return func(path string, data []byte) error {
		out, err := EncodeBytes(kind, data, opts...)
		if err != nil {
			return fmt.Errorf("compress %s: %w", path, err)
		}
		return next(path, out)
	}
}

// memFile is an in-memory io.WriteSeeker.
type memFile struct {
	data []byte
	pos  int64
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-int64(len(m.data)))...)
	}
	copy(m.data[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = m.pos + offset
	case io.SeekEnd:
		pos = int64(len(m.data)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("seek: negative position %d", pos)
	}
	m.pos = pos
	return pos, nil
}
