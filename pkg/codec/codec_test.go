package codec

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

func TestHeader(t *testing.T) {
	t.Run("MarshalUnmarshal", func(t *testing.T) {
		original, err := NewHeader(Zstd, 1024, 512)
		if err != nil {
			t.Fatalf("new header: %v", err)
		}

		data, err := original.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		decoded := &Header{}
		if err := decoded.UnmarshalBinary(data); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		if *decoded != *original {
			t.Errorf("mismatch: got %+v, want %+v", decoded, original)
		}
	})

	t.Run("InvalidMagic", func(t *testing.T) {
		h := &Header{
			Magic:            [4]byte{0x00, 0x00, 0x00, 0x00},
			HeaderLength:     16,
			Length:           1024,
			CompressedLength: 512,
		}
		if err := h.Validate(); !errors.Is(err, blob.ErrCorruptData) {
			t.Errorf("got %v, want ErrCorruptData", err)
		}
	})

	t.Run("ZeroLength", func(t *testing.T) {
		h := &Header{
			Magic:            MagicLZ4,
			HeaderLength:     16,
			Length:           0,
			CompressedLength: 512,
		}
		if err := h.Validate(); err == nil {
			t.Error("expected error for zero length")
		}
	})

	t.Run("HugeLength", func(t *testing.T) {
		h := &Header{
			Magic:            MagicZlib,
			HeaderLength:     16,
			Length:           blob.MaxAlloc + 1,
			CompressedLength: 512,
		}
		if err := h.Validate(); !errors.Is(err, blob.ErrOutOfMemory) {
			t.Errorf("got %v, want ErrOutOfMemory", err)
		}
	})

	t.Run("NoEnvelopeForNone", func(t *testing.T) {
		if _, err := NewHeader(None, 1, 1); !errors.Is(err, blob.ErrUnsupported) {
			t.Errorf("got %v, want ErrUnsupported", err)
		}
	})
}

func TestKind(t *testing.T) {
	for _, k := range []Kind{None, Zstd, LZ4, Zlib, XCompress} {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("parse %s: %v", k, err)
		}
		if got != k {
			t.Errorf("got %s, want %s", got, k)
		}
	}
	if _, err := ParseKind("brotli"); !errors.Is(err, blob.ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestReadWrite(t *testing.T) {
	original := bytes.Repeat([]byte("container payload "), 40)

	for _, kind := range []Kind{Zstd, LZ4, Zlib} {
		t.Run(kind.String(), func(t *testing.T) {
			f, err := os.Create(filepath.Join(t.TempDir(), "env.bin"))
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			if err := Encode(f, kind, original); err != nil {
				t.Fatalf("encode: %v", err)
			}
			raw, err := os.ReadFile(f.Name())
			if err != nil {
				t.Fatal(err)
			}
			if got := Sniff(raw); got != kind {
				t.Errorf("sniff: got %s, want %s", got, kind)
			}

			var h Header
			if err := h.UnmarshalBinary(raw[:HeaderSize]); err != nil {
				t.Fatalf("header: %v", err)
			}
			if h.Length != uint64(len(original)) || h.CompressedLength != uint64(len(raw)-HeaderSize) {
				t.Errorf("header sizes %d/%d for %d bytes on disk", h.Length, h.CompressedLength, len(raw))
			}

			decoded, err := ReadAll(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !bytes.Equal(decoded, original) {
				t.Errorf("got %d bytes back, want %d", len(decoded), len(original))
			}
		})
	}

	t.Run("EncodeBytesMatchesFile", func(t *testing.T) {
		mem := &memFile{}
		if err := Encode(mem, Zstd, original); err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := EncodeBytes(Zstd, original)
		if err != nil {
			t.Fatalf("encode bytes: %v", err)
		}
		if !bytes.Equal(got, mem.data) {
			t.Error("EncodeBytes differs from a streamed envelope")
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		if _, err := EncodeBytes(LZ4, nil); !errors.Is(err, blob.ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
		if out, err := EncodeBytes(None, nil); err != nil || out != nil {
			t.Errorf("none: %q, %v", out, err)
		}
	})
}

func TestDecode(t *testing.T) {
	t.Run("PlainPassesThrough", func(t *testing.T) {
		plain := []byte("PACx201L plain bytes")
		out, kind, err := Decode(plain)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if kind != None || !bytes.Equal(out, plain) {
			t.Errorf("got %s %q, want none %q", kind, out, plain)
		}
	})

	t.Run("XCompressUnsupported", func(t *testing.T) {
		data := append([]byte{0x0F, 0xF5, 0x12, 0xEE}, make([]byte, 32)...)
		if _, _, err := Decode(data); !errors.Is(err, blob.ErrUnsupported) {
			t.Errorf("got %v, want ErrUnsupported", err)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		data, err := EncodeBytes(Zlib, bytes.Repeat([]byte("abcdef"), 100))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, _, err := Decode(data[:HeaderSize+4]); !errors.Is(err, blob.ErrCorruptData) {
			t.Errorf("got %v, want ErrCorruptData", err)
		}
	})
}

func TestWrap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.pac")
	content := bytes.Repeat([]byte("payload "), 64)

	write := Wrap(LZ4, blob.WriteFile)
	if err := write(path, content); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if Sniff(raw) != LZ4 {
		t.Fatalf("file is not an lz4 envelope")
	}

	buf, kind, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if kind != LZ4 {
		t.Errorf("got %s, want lz4", kind)
	}
	if !bytes.Equal(buf.Data, content) {
		t.Error("content mismatch after load")
	}
}
