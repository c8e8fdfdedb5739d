package bina

import (
	"slices"
	"strings"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// Item is one entry handed to a container writer.
type Item struct {
	Name string
	Data []byte

	// Proxy entries record Name and Size without a payload; the payload
	// lives in another fragment.
	Proxy bool
	Size  uint64
}

// PayloadSize is the declared size of the item.
func (it Item) PayloadSize() uint64 {
	if it.Proxy {
		return it.Size
	}
	return uint64(len(it.Data))
}

// TypeGroup is every item sharing one extension, sorted by name.
type TypeGroup struct {
	Ext   string
	Type  string
	Items []Item
}

// CheckName reports whether name survives being stored as a base name and an
// extension: the two must join back to name, and the extension cannot
// contain the type key separator.
func CheckName(name string) error {
	if name == "" {
		return blob.Invalidf("item with empty name")
	}
	base, ext := SplitName(name)
	if JoinName(base, ext) != name {
		return blob.Invalidf("entry %q has an empty extension after its dot", name)
	}
	if strings.ContainsRune(ext, ':') {
		return blob.Invalidf("entry %q has ':' in its extension", name)
	}
	return nil
}

// GroupItems buckets items by extension, sorting groups by type key and
// items by name. Names that would not load back unchanged and duplicate
// (base, extension) pairs are rejected.
func GroupItems(items []Item) ([]TypeGroup, error) {
	type nameKey struct{ base, ext string }
	byExt := make(map[string]*TypeGroup)
	seen := make(map[nameKey]struct{}, len(items))
	for _, it := range items {
		if err := CheckName(it.Name); err != nil {
			return nil, err
		}
		base, ext := SplitName(it.Name)
		if _, dup := seen[nameKey{base, ext}]; dup {
			return nil, blob.Invalidf("duplicate entry %q", it.Name)
		}
		seen[nameKey{base, ext}] = struct{}{}

		g, ok := byExt[ext]
		if !ok {
			g = &TypeGroup{Ext: ext, Type: TypeForExt(ext)}
			byExt[ext] = g
		}
		g.Items = append(g.Items, it)
	}

	groups := make([]TypeGroup, 0, len(byExt))
	for _, g := range byExt {
		slices.SortFunc(g.Items, func(a, b Item) int {
			return strings.Compare(a.Name, b.Name)
		})
		groups = append(groups, *g)
	}
	slices.SortFunc(groups, func(a, b TypeGroup) int {
		return strings.Compare(TypeKey(a.Ext, a.Type), TypeKey(b.Ext, b.Type))
	})
	return groups, nil
}

// ValidPadding reports whether pad can align payloads.
func ValidPadding(pad uint64) error {
	if pad < 4 || pad&(pad-1) != 0 {
		return blob.Invalidf("padding %d is not a power of two >= 4", pad)
	}
	if pad > 1<<16 {
		return blob.Invalidf("padding %d too large", pad)
	}
	return nil
}
