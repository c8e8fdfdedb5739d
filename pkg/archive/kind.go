package archive

import (
	"path/filepath"
	"strings"

	"github.com/EchoTools/pacFileTools/pkg/bina"
	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/EchoTools/pacFileTools/pkg/legacy"
	"github.com/EchoTools/pacFileTools/pkg/split"
)

// Kind selects an archive format.
type Kind uint8

const (
	// Auto detects the format from the file name, falling back to content.
	Auto Kind = iota
	Legacy
	Gen2
	Gen3
)

func (k Kind) String() string {
	switch k {
	case Auto:
		return "auto"
	case Legacy:
		return "legacy"
	case Gen2:
		return "gen2"
	case Gen3:
		return "gen3"
	default:
		return "unknown"
	}
}

// ParseKind parses a kind name. The empty string is Auto.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return Auto, nil
	case "legacy", "ar":
		return Legacy, nil
	case "gen2", "pacv2", "201":
		return Gen2, nil
	case "gen3", "pacv3", "301":
		return Gen3, nil
	default:
		return Auto, blob.Invalidf("unknown archive kind %q", name)
	}
}

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

// family is what a file name says about its format. Containers of both
// generations share the .pac extension, so only content tells them apart.
type family uint8

const (
	familyUnknown family = iota
	familyContainer
	familyLegacy
)

// familyOf classifies a root path (fragment suffix already removed).
func familyOf(path string) family {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pac":
		return familyContainer
	case legacy.Ext, legacy.IndexExt:
		return familyLegacy
	default:
		return familyUnknown
	}
}

// sniff classifies decoded file content. Legacy archives have no magic, so
// they are only considered when allowLegacy is set.
func sniff(data []byte, allowLegacy bool) (Kind, error) {
	ident, err := bina.ReadIdent(data)
	if err == nil {
		switch ident.Version / 100 {
		case 2:
			return Gen2, nil
		case 3:
			return Gen3, nil
		}
		return Auto, blob.Corruptf("unknown container version %d", ident.Version)
	}
	if !allowLegacy {
		return Auto, err
	}
	if legacy.Looks(data) {
		return Legacy, nil
	}
	return Auto, blob.Corruptf("unrecognized archive content")
}

// digits returns the fragment suffix width used by kind.
func (k Kind) digits() int {
	if k == Gen3 {
		return split.ThreeDigits
	}
	return split.TwoDigits
}
