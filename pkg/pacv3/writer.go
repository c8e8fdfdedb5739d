package pacv3

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/EchoTools/pacFileTools/pkg/bina"
)

// BuildOptions controls how a container image is laid out.
type BuildOptions struct {
	// Padding aligns every payload; zero means DefaultPadding.
	Padding uint64
	// Order is the byte order of the output; nil means little-endian.
	Order binary.ByteOrder
	UID   uint32
	Flags uint16
	// Splits lists the fragment file names of a root archive.
	Splits []string
}

type typeGroup struct {
	name  string
	items []bina.Item
}

// groupByType merges extension groups that share a resource type; within a
// type, entries are keyed by their name without extension, so two entries
// differing only in an extension of the same type cannot coexist.
func groupByType(items []bina.Item) ([]typeGroup, error) {
	groups, err := bina.GroupItems(items)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var out []typeGroup
	for _, g := range groups {
		i, ok := index[g.Type]
		if !ok {
			i = len(out)
			index[g.Type] = i
			out = append(out, typeGroup{name: g.Type})
		}
		out[i].items = append(out[i].items, g.Items...)
	}
	slices.SortFunc(out, func(a, b typeGroup) int {
		return strings.Compare(a.name, b.name)
	})
	return out, nil
}

type pendingData struct {
	node  uint64 // node whose data offset points at the entry
	entry uint64
	item  bina.Item
}

// writeTree emits one node tree and reports the data nodes it laid out in
// data-index order.
func writeTree(w *bina.Writer, keys []string) (tree uint64, dataNodes []uint64, order []int, err error) {
	trie := newTrie()
	for i, k := range keys {
		if err := trie.insert(k, i); err != nil {
			return 0, nil, nil, err
		}
	}
	flat, data, err := trie.flatten()
	if err != nil {
		return 0, nil, nil, err
	}

	w.Align(8)
	tree = w.Reserve(treeSize)
	w.PutU32(tree, uint32(len(flat)))
	w.PutU32(tree+4, uint32(len(data)))
	nodes := w.Reserve(uint64(len(flat)) * nodeSize)
	w.SetOff64(tree+8, nodes)

	for i, n := range flat {
		at := nodes + uint64(i)*nodeSize
		if n.name != "" {
			w.AddString(at+nodeName, n.name, 8)
		}
		w.PutU32(at+nodeParent, uint32(int32(n.parent)))
		w.PutU32(at+nodeGlobal, uint32(i))
		w.PutU32(at+nodeDataIndex, uint32(int32(n.dataIndex)))
		w.PutU16(at+nodeChildCount, uint16(len(n.children)))
		if n.leaf {
			w.PutU8(at+nodeHasData, 1)
		}
		w.PutU8(at+nodePathSize, uint8(n.pathLen))
	}
	for i, n := range flat {
		if len(n.children) == 0 {
			continue
		}
		kids := w.Reserve(uint64(len(n.children)) * 4)
		for j, c := range n.children {
			w.PutU32(kids+uint64(j)*4, uint32(c))
		}
		w.SetOff64(nodes+uint64(i)*nodeSize+nodeChildren, kids)
	}
	if len(data) > 0 {
		indices := w.Reserve(uint64(len(data)) * 4)
		for j, idx := range data {
			w.PutU32(indices+uint64(j)*4, uint32(idx))
		}
		w.SetOff64(tree+16, indices)
	}
	w.Align(8)

	for _, idx := range data {
		dataNodes = append(dataNodes, nodes+uint64(idx)*nodeSize)
		order = append(order, flat[idx].value)
	}
	return tree, dataNodes, order, nil
}

// Build serializes items into one generation 3 container image: node trees,
// data entries, split table, string table, file data and offset table, with
// the header sizes backpatched at the end.
func Build(items []bina.Item, opts BuildOptions) ([]byte, error) {
	pad := opts.Padding
	if pad == 0 {
		pad = DefaultPadding
	}
	if err := bina.ValidPadding(pad); err != nil {
		return nil, err
	}
	order := opts.Order
	if order == nil {
		order = binary.LittleEndian
	}
	groups, err := groupByType(items)
	if err != nil {
		return nil, err
	}

	w := bina.NewWriter()
	w.Reserve(HeaderSize)
	bina.PutIdent(w.Bytes(), bina.Version3, w.Order())
	w.PutU32(posUID, opts.UID)
	w.PutU16(posFlags, opts.Flags)
	w.PutU16(posUnknown, unknownValue)
	w.PutU32(posSplitCount, uint32(len(opts.Splits)))

	var pending []pendingData
	if len(groups) > 0 {
		typeNames := make([]string, len(groups))
		for i, g := range groups {
			typeNames[i] = g.name
		}
		_, typeData, typeOrder, err := writeTree(w, typeNames)
		if err != nil {
			return nil, err
		}
		for i, node := range typeData {
			g := groups[typeOrder[i]]
			keys := make([]string, len(g.items))
			for j, it := range g.items {
				keys[j], _ = bina.SplitName(it.Name)
			}
			fileTree, fileData, fileOrder, err := writeTree(w, keys)
			if err != nil {
				return nil, fmt.Errorf("type %s: %w", g.name, err)
			}
			w.SetOff64(node+nodeData, fileTree)
			for j, fn := range fileData {
				pending = append(pending, pendingData{node: fn, item: g.items[fileOrder[j]]})
			}
		}
	}
	nodesSize := w.Pos() - HeaderSize

	entriesStart := w.Pos()
	for i := range pending {
		p := &pending[i]
		p.entry = w.Reserve(dataEntrySize)
		w.SetOff64(p.node+nodeData, p.entry)
		w.PutU32(p.entry+entryUID, uint32(i))
		if err := w.PutSize32(p.entry+entrySize, p.item.PayloadSize()); err != nil {
			return nil, err
		}
		if _, ext := bina.SplitName(p.item.Name); ext != "" {
			w.AddString(p.entry+entryExt, ext, 8)
		}
		if p.item.Proxy {
			w.PutU64(p.entry+entryDataType, DataNotHere)
		}
	}
	entriesSize := w.Pos() - entriesStart

	splitStart := w.Pos()
	if len(opts.Splits) > 0 {
		table := w.Reserve(splitTableSize)
		w.PutU64(table+8, uint64(len(opts.Splits)))
		names := w.Reserve(uint64(len(opts.Splits)) * 8)
		w.SetOff64(table, names)
		for i, s := range opts.Splits {
			w.AddString(names+uint64(i)*8, s, 8)
		}
	}
	splitSize := w.Pos() - splitStart

	stringsSize, err := w.WriteStrings()
	if err != nil {
		return nil, err
	}

	dataStart := w.Pos()
	for _, p := range pending {
		if p.item.Proxy || len(p.item.Data) == 0 {
			continue
		}
		w.Align(pad)
		w.SetOff64(p.entry+entryData, w.Pos())
		w.Write(p.item.Data)
	}
	w.Align(8)
	dataSize := w.Pos() - dataStart

	offsetsSize, err := w.WriteOffsetTable()
	if err != nil {
		return nil, err
	}

	fileSize := w.Pos()
	sizes := []struct {
		pos uint64
		v   uint64
	}{
		{posFileSize, fileSize},
		{posNodesSize, nodesSize},
		{posSplitTableSize, splitSize},
		{posDataEntriesSize, entriesSize},
		{posStringTableSize, stringsSize},
		{posFileDataSize, dataSize},
		{posOffsetTableSize, offsetsSize},
	}
	for _, s := range sizes {
		if err := w.PutSize32(s.pos, s.v); err != nil {
			return nil, err
		}
	}

	out := w.Bytes()
	if err := bina.Convert(out, Traits, order); err != nil {
		return nil, err
	}
	return out, nil
}
