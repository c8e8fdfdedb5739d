// Package pacv3 reads and writes generation 3 PACx containers. Names are
// stored as a radix tree in one flat node array per level: each node holds a
// name fragment, its parent index and an array of child indices, and the full
// name of an entry is the concatenation of fragments from the root. Offsets
// are 64 bits wide.
package pacv3

import (
	"github.com/EchoTools/pacFileTools/pkg/endian"
)

// Header layout.
const (
	HeaderSize = 0x30

	posUID             = 0x08
	posFileSize        = 0x0C
	posNodesSize       = 0x10
	posSplitTableSize  = 0x14
	posDataEntriesSize = 0x18
	posStringTableSize = 0x1C
	posFileDataSize    = 0x20
	posOffsetTableSize = 0x24
	posFlags           = 0x28
	posUnknown         = 0x2A
	posSplitCount      = 0x2C
)

// Structure sizes and field positions.
const (
	treeSize       = 24
	nodeSize       = 40
	dataEntrySize  = 48
	splitTableSize = 16

	nodeName       = 0
	nodeData       = 8
	nodeChildren   = 16
	nodeParent     = 24
	nodeGlobal     = 28
	nodeDataIndex  = 32
	nodeChildCount = 36
	nodeHasData    = 38
	nodePathSize   = 39

	entryUID      = 0
	entrySize     = 4
	entryData     = 16
	entryExt      = 32
	entryDataType = 40
)

// Data entry types.
const (
	DataRegular = 0
	DataNotHere = 1
	DataBINA    = 2
)

// DefaultPadding aligns payloads in the file data section.
const DefaultPadding = 16

const unknownValue = 0x108

type headerTraits struct{}

func (headerTraits) Name() string { return "v3.header" }
func (headerTraits) Size() uint64 { return HeaderSize }
func (headerTraits) Fields() []endian.Field {
	return []endian.Field{
		{Off: posUID, Width: 4},
		{Off: posFileSize, Width: 4},
		{Off: posNodesSize, Width: 4},
		{Off: posSplitTableSize, Width: 4},
		{Off: posDataEntriesSize, Width: 4},
		{Off: posStringTableSize, Width: 4},
		{Off: posFileDataSize, Width: 4},
		{Off: posOffsetTableSize, Width: 4},
		{Off: posFlags, Width: 2},
		{Off: posUnknown, Width: 2},
		{Off: posSplitCount, Width: 4},
	}
}

func (headerTraits) Children(w *endian.Walker, pos uint64) ([]endian.Child, error) {
	nodes, err := w.Uint32(pos + posNodesSize)
	if err != nil {
		return nil, err
	}
	entries, err := w.Uint32(pos + posDataEntriesSize)
	if err != nil {
		return nil, err
	}
	splits, err := w.Uint32(pos + posSplitTableSize)
	if err != nil {
		return nil, err
	}
	var children []endian.Child
	if nodes != 0 {
		children = append(children, endian.Child{Pos: HeaderSize, Traits: treeTraits{file: false}, Count: 1})
	}
	if splits != 0 {
		at := uint64(HeaderSize) + uint64(nodes) + uint64(entries)
		children = append(children, endian.Child{Pos: at, Traits: splitTableTraits{}, Count: 1})
	}
	return children, nil
}

// Traits describes the whole container for byte-order conversion.
var Traits endian.Traits = headerTraits{}

type treeTraits struct{ file bool }

func (t treeTraits) Name() string {
	if t.file {
		return "v3.tree/file"
	}
	return "v3.tree/type"
}

func (treeTraits) Size() uint64 { return treeSize }
func (treeTraits) Fields() []endian.Field {
	return []endian.Field{{Off: 0, Width: 4}, {Off: 4, Width: 4}, {Off: 8, Width: 8}, {Off: 16, Width: 8}}
}

func (t treeTraits) Children(w *endian.Walker, pos uint64) ([]endian.Child, error) {
	count, err := w.Uint32(pos)
	if err != nil {
		return nil, err
	}
	dataCount, err := w.Uint32(pos + 4)
	if err != nil {
		return nil, err
	}
	nodes, err := w.Uint64(pos + 8)
	if err != nil {
		return nil, err
	}
	indices, err := w.Uint64(pos + 16)
	if err != nil {
		return nil, err
	}
	var children []endian.Child
	if count != 0 && nodes != 0 {
		children = append(children, endian.Child{Pos: nodes, Traits: nodeTraits{file: t.file}, Count: uint64(count)})
	}
	if dataCount != 0 && indices != 0 {
		children = append(children, endian.Child{Pos: indices, Traits: endian.Scalar32, Count: uint64(dataCount)})
	}
	return children, nil
}

type nodeTraits struct{ file bool }

func (n nodeTraits) Name() string {
	if n.file {
		return "v3.node/file"
	}
	return "v3.node/type"
}

func (nodeTraits) Size() uint64 { return nodeSize }
func (nodeTraits) Fields() []endian.Field {
	return []endian.Field{
		{Off: nodeName, Width: 8},
		{Off: nodeData, Width: 8},
		{Off: nodeChildren, Width: 8},
		{Off: nodeParent, Width: 4},
		{Off: nodeGlobal, Width: 4},
		{Off: nodeDataIndex, Width: 4},
		{Off: nodeChildCount, Width: 2},
	}
}

func (n nodeTraits) Children(w *endian.Walker, pos uint64) ([]endian.Child, error) {
	kids, err := w.Uint64(pos + nodeChildren)
	if err != nil {
		return nil, err
	}
	count, err := w.Uint16(pos + nodeChildCount)
	if err != nil {
		return nil, err
	}
	hasData, err := w.Uint8(pos + nodeHasData)
	if err != nil {
		return nil, err
	}
	data, err := w.Uint64(pos + nodeData)
	if err != nil {
		return nil, err
	}
	var children []endian.Child
	if kids != 0 && count != 0 {
		children = append(children, endian.Child{Pos: kids, Traits: endian.Scalar32, Count: uint64(count)})
	}
	if hasData != 0 && data != 0 {
		if n.file {
			children = append(children, endian.Child{Pos: data, Traits: entryTraits, Count: 1})
		} else {
			children = append(children, endian.Child{Pos: data, Traits: treeTraits{file: true}, Count: 1})
		}
	}
	return children, nil
}

var entryTraits = endian.Leaf{
	Label: "v3.entry",
	Bytes: dataEntrySize,
	Layout: []endian.Field{
		{Off: entryUID, Width: 4},
		{Off: entrySize, Width: 4},
		{Off: 8, Width: 4},
		{Off: 12, Width: 4},
		{Off: entryData, Width: 8},
		{Off: 24, Width: 8},
		{Off: entryExt, Width: 8},
		{Off: entryDataType, Width: 8},
	},
}

type splitTableTraits struct{}

func (splitTableTraits) Name() string { return "v3.splits" }
func (splitTableTraits) Size() uint64 { return splitTableSize }
func (splitTableTraits) Fields() []endian.Field {
	return []endian.Field{{Off: 0, Width: 8}, {Off: 8, Width: 8}}
}

func (splitTableTraits) Children(w *endian.Walker, pos uint64) ([]endian.Child, error) {
	splits, err := w.Uint64(pos)
	if err != nil {
		return nil, err
	}
	count, err := w.Uint64(pos + 8)
	if err != nil {
		return nil, err
	}
	if splits == 0 || count == 0 {
		return nil, nil
	}
	return []endian.Child{{Pos: splits, Traits: endian.Scalar64, Count: count}}, nil
}
