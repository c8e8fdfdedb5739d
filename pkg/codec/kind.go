// Package codec wraps whole output files in a small compression envelope: a
// fixed header naming the codec and both sizes, followed by the compressed
// stream. Files without an envelope pass through untouched.
package codec

import (
	"fmt"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// Kind identifies the compression algorithm of an envelope.
type Kind uint8

const (
	None Kind = iota
	Zstd
	LZ4
	Zlib
	// XCompress is recognized on load so it can be reported, but cannot be
	// decoded or produced.
	XCompress
)

// String returns the name used in configuration files and flags.
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	case Zlib:
		return "zlib"
	case XCompress:
		return "xcompress"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// ParseKind parses a codec name. The empty string is None.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "", "none":
		return None, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	case "zlib":
		return Zlib, nil
	case "xcompress":
		return XCompress, nil
	default:
		return 0, blob.Invalidf("unknown compression %q", name)
	}
}

// MarshalText lets Kind be used directly in YAML and JSON documents.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
