// Package pacv2 reads and writes generation 2 PACx containers: a type tree of
// "<ext>:<TypeName>" nodes, each pointing at a file tree whose nodes point at
// data entries followed by their payload. Offsets are 32 bits wide.
package pacv2

import (
	"github.com/EchoTools/pacFileTools/pkg/bina"
	"github.com/EchoTools/pacFileTools/pkg/endian"
)

// Header layout.
const (
	HeaderSize = 0x30

	posFileSize        = 0x08
	posNodeCount       = 0x0C
	posFlags           = 0x0E
	posDataSig         = 0x10
	posDataSize        = 0x14
	posDataEntriesSize = 0x18
	posTreesSize       = 0x1C
	posProxyTableSize  = 0x20
	posStringTableSize = 0x24
	posOffsetTableSize = 0x28
	posUnknown         = 0x2C
)

// Structure sizes.
const (
	treeSize       = 8
	nodeSize       = 8
	dataEntrySize  = 16
	splitTableSize = 8
	proxyTableSize = 8
	proxyEntrySize = 12
)

// FlagNotHere marks a data entry whose payload lives in another fragment.
const FlagNotHere = 0x80

// DataSignature opens the data block.
var DataSignature = [4]byte{'D', 'A', 'T', 'A'}

// DefaultPadding aligns payloads.
const DefaultPadding = 16

type headerTraits struct{}

func (headerTraits) Name() string { return "v2.header" }
func (headerTraits) Size() uint64 { return HeaderSize }
func (headerTraits) Fields() []endian.Field {
	return []endian.Field{
		{Off: posFileSize, Width: 4},
		{Off: posNodeCount, Width: 2},
		{Off: posFlags, Width: 2},
		{Off: posDataSize, Width: 4},
		{Off: posDataEntriesSize, Width: 4},
		{Off: posTreesSize, Width: 4},
		{Off: posProxyTableSize, Width: 4},
		{Off: posStringTableSize, Width: 4},
		{Off: posOffsetTableSize, Width: 4},
	}
}

func (headerTraits) Children(w *endian.Walker, pos uint64) ([]endian.Child, error) {
	trees, err := w.Uint32(pos + posTreesSize)
	if err != nil {
		return nil, err
	}
	entries, err := w.Uint32(pos + posDataEntriesSize)
	if err != nil {
		return nil, err
	}
	proxies, err := w.Uint32(pos + posProxyTableSize)
	if err != nil {
		return nil, err
	}
	var children []endian.Child
	if trees != 0 {
		children = append(children, endian.Child{Pos: HeaderSize, Traits: treeTraits{level: typeLevel}, Count: 1})
	}
	if proxies != 0 {
		at := uint64(HeaderSize) + uint64(trees) + uint64(entries)
		children = append(children, endian.Child{Pos: at, Traits: proxyTableTraits{}, Count: 1})
	}
	return children, nil
}

// Traits describes the whole container for byte-order conversion.
var Traits endian.Traits = headerTraits{}

type level uint8

const (
	typeLevel level = iota
	fileLevel
	dependencyLevel
)

var levelNames = [...]string{"type", "file", "dependency"}

type treeTraits struct{ level level }

func (t treeTraits) Name() string { return "v2.tree/" + levelNames[t.level] }
func (treeTraits) Size() uint64   { return treeSize }
func (treeTraits) Fields() []endian.Field {
	return []endian.Field{{Off: 0, Width: 4}, {Off: 4, Width: 4}}
}

func (t treeTraits) Children(w *endian.Walker, pos uint64) ([]endian.Child, error) {
	count, err := w.Uint32(pos)
	if err != nil {
		return nil, err
	}
	nodes, err := w.Uint32(pos + 4)
	if err != nil {
		return nil, err
	}
	if count == 0 || nodes == 0 {
		return nil, nil
	}
	return []endian.Child{{Pos: uint64(nodes), Traits: nodeTraits{level: t.level}, Count: uint64(count)}}, nil
}

type nodeTraits struct{ level level }

func (n nodeTraits) Name() string { return "v2.node/" + levelNames[n.level] }
func (nodeTraits) Size() uint64   { return nodeSize }
func (nodeTraits) Fields() []endian.Field {
	return []endian.Field{{Off: 0, Width: 4}, {Off: 4, Width: 4}}
}

func (n nodeTraits) Children(w *endian.Walker, pos uint64) ([]endian.Child, error) {
	data, err := w.Uint32(pos + 4)
	if err != nil {
		return nil, err
	}
	if data == 0 {
		return nil, nil
	}
	if n.level != typeLevel {
		return []endian.Child{{Pos: uint64(data), Traits: dataEntryTraits{dependency: n.level == dependencyLevel}, Count: 1}}, nil
	}

	name, err := w.Uint32(pos)
	if err != nil {
		return nil, err
	}
	files := fileLevel
	if name != 0 {
		key, err := w.CString(uint64(name))
		if err != nil {
			return nil, err
		}
		if ext, _, ok := bina.ParseTypeKey(key); ok && ext == bina.DependencyExt {
			files = dependencyLevel
		}
	}
	return []endian.Child{{Pos: uint64(data), Traits: treeTraits{level: files}, Count: 1}}, nil
}

type dataEntryTraits struct{ dependency bool }

func (d dataEntryTraits) Name() string {
	if d.dependency {
		return "v2.entry/dependency"
	}
	return "v2.entry"
}

func (dataEntryTraits) Size() uint64 { return dataEntrySize }
func (dataEntryTraits) Fields() []endian.Field {
	return []endian.Field{{Off: 0, Width: 4}, {Off: 4, Width: 4}, {Off: 8, Width: 4}}
}

func (d dataEntryTraits) Children(w *endian.Walker, pos uint64) ([]endian.Child, error) {
	if !d.dependency {
		return nil, nil
	}
	flags, err := w.Uint8(pos + 12)
	if err != nil {
		return nil, err
	}
	if flags&FlagNotHere == 0 {
		return nil, nil
	}
	return []endian.Child{{Pos: pos + dataEntrySize, Traits: splitTableTraits{}, Count: 1}}, nil
}

type splitTableTraits struct{}

func (splitTableTraits) Name() string { return "v2.splits" }
func (splitTableTraits) Size() uint64 { return splitTableSize }
func (splitTableTraits) Fields() []endian.Field {
	return []endian.Field{{Off: 0, Width: 4}, {Off: 4, Width: 4}}
}

func (splitTableTraits) Children(w *endian.Walker, pos uint64) ([]endian.Child, error) {
	splits, err := w.Uint32(pos)
	if err != nil {
		return nil, err
	}
	count, err := w.Uint32(pos + 4)
	if err != nil {
		return nil, err
	}
	if splits == 0 || count == 0 {
		return nil, nil
	}
	return []endian.Child{{Pos: uint64(splits), Traits: endian.Scalar32, Count: uint64(count)}}, nil
}

type proxyTableTraits struct{}

var proxyEntryTraits = endian.Leaf{
	Label:  "v2.proxy",
	Bytes:  proxyEntrySize,
	Layout: []endian.Field{{Off: 0, Width: 4}, {Off: 4, Width: 4}, {Off: 8, Width: 4}},
}

func (proxyTableTraits) Name() string { return "v2.proxies" }
func (proxyTableTraits) Size() uint64 { return proxyTableSize }
func (proxyTableTraits) Fields() []endian.Field {
	return []endian.Field{{Off: 0, Width: 4}, {Off: 4, Width: 4}}
}

func (proxyTableTraits) Children(w *endian.Walker, pos uint64) ([]endian.Child, error) {
	count, err := w.Uint32(pos)
	if err != nil {
		return nil, err
	}
	entries, err := w.Uint32(pos + 4)
	if err != nil {
		return nil, err
	}
	if count == 0 || entries == 0 {
		return nil, nil
	}
	return []endian.Child{{Pos: uint64(entries), Traits: proxyEntryTraits, Count: uint64(count)}}, nil
}
