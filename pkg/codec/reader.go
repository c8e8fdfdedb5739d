package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/DataDog/zstd"
	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// Reader decompresses the stream behind an envelope header.
type Reader struct {
	header    *Header
	dec       io.ReadCloser
	headerBuf [HeaderSize]byte
}

// NewReader reads and validates the header, then returns a reader for the
// decompressed content.
func NewReader(r io.Reader) (*Reader, error) {
	reader := &Reader{
		header: &Header{},
	}

	if _, err := io.ReadFull(r, reader.headerBuf[:]); err != nil {
		return nil, blob.Corruptf("read header: %v", err)
	}
	if err := reader.header.UnmarshalBinary(reader.headerBuf[:]); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	body := io.LimitReader(r, int64(reader.header.CompressedLength))
	switch reader.header.Kind() {
	case Zstd:
		reader.dec = zstd.NewReader(body)
	case LZ4:
		reader.dec = io.NopCloser(lz4.NewReader(body))
	case Zlib:
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, blob.Corruptf("open zlib stream: %v", err)
		}
		reader.dec = zr
	}
	return reader, nil
}

// Header returns the envelope header.
func (r *Reader) Header() *Header {
	return r.header
}

// Read reads decompressed data into p.
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.dec.Read(p)
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.dec.Close()
}

// Length returns the uncompressed data length.
func (r *Reader) Length() int {
	return int(r.header.Length)
}

// ReadAll reads the entire decompressed content of an envelope.
func ReadAll(r io.Reader) ([]byte, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data := make([]byte, reader.Length())
	if _, err := io.ReadFull(reader, data); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, blob.Corruptf("content shorter than declared %d bytes", reader.Length())
		}
		return nil, blob.Corruptf("read content: %v", err)
	}
	return data, nil
}

// Decode strips an envelope from data if there is one and reports the codec
// that was used. Plain data is returned as is.
func Decode(data []byte) ([]byte, Kind, error) {
	kind := Sniff(data)
	switch kind {
	case None:
		return data, None, nil
	case XCompress:
		return nil, kind, fmt.Errorf("%w: xcompress stream", blob.ErrUnsupported)
	}
	out, err := ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, kind, fmt.Errorf("decode %s envelope: %w", kind, err)
	}
	return out, kind, nil
}

// Load reads a file and strips its envelope.
func Load(path string) (*blob.Buffer, Kind, error) {
	buf, err := blob.Load(path)
	if err != nil {
		return nil, None, err
	}
	data, kind, err := Decode(buf.Data)
	if err != nil {
		return nil, kind, fmt.Errorf("%s: %w", path, err)
	}
	buf.Data = data
	return buf, kind, nil
}
