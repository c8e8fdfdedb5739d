package pacv2

import (
	"encoding/binary"

	"github.com/EchoTools/pacFileTools/pkg/bina"
	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// BuildOptions controls how a container image is laid out.
type BuildOptions struct {
	// Padding aligns every payload; zero means DefaultPadding.
	Padding uint64
	// Order is the byte order of the output; nil means little-endian.
	Order binary.ByteOrder
	Flags uint16
	// Splits, when set, are written into a dependency entry named
	// DependencyName so loaders can find the fragments.
	Splits         []string
	DependencyName string
}

type pendingNode struct {
	node uint64 // node position whose data offset is patched
	item bina.Item
	dep  bool
}

// Build serializes items into one generation 2 container image. Sections are
// emitted in a fixed order (trees, data entries, proxy table, string table,
// offset table) and the header sizes are backpatched at the end.
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

	all := items
	if len(opts.Splits) > 0 {
		name := opts.DependencyName
		if name == "" {
			return nil, blob.Invalidf("split list without a dependency name")
		}
		all = append(append([]bina.Item(nil), items...), bina.Item{
			Name:  bina.JoinName(name, bina.DependencyExt),
			Proxy: true,
			Size:  splitTableSize,
		})
	}
	groups, err := bina.GroupItems(all)
	if err != nil {
		return nil, err
	}

	w := bina.NewWriter()
	w.Reserve(HeaderSize)
	bina.PutIdent(w.Bytes(), bina.Version2, w.Order())
	w.PutU16(posNodeCount, 1)
	w.PutU16(posFlags, opts.Flags)
	copy(w.Bytes()[posDataSig:], DataSignature[:])
	w.PutU8(posUnknown, 1)

	// Trees: the type tree, its node array, then one file tree per type.
	typeTree := w.Reserve(treeSize)
	w.PutU32(typeTree, uint32(len(groups)))
	typeNodes := w.Reserve(uint64(len(groups)) * nodeSize)
	if len(groups) > 0 {
		if err := w.SetOff32(typeTree+4, typeNodes); err != nil {
			return nil, err
		}
	}

	var pending []pendingNode
	type proxyRow struct {
		typeName, name string
		index          uint32
	}
	var proxies []proxyRow
	for gi, g := range groups {
		tn := typeNodes + uint64(gi)*nodeSize
		w.AddString(tn, bina.TypeKey(g.Ext, g.Type), 4)

		fileTree := w.Reserve(treeSize)
		if err := w.SetOff32(tn+4, fileTree); err != nil {
			return nil, err
		}
		w.PutU32(fileTree, uint32(len(g.Items)))
		fileNodes := w.Reserve(uint64(len(g.Items)) * nodeSize)
		if err := w.SetOff32(fileTree+4, fileNodes); err != nil {
			return nil, err
		}
		for i, it := range g.Items {
			fn := fileNodes + uint64(i)*nodeSize
			base, _ := bina.SplitName(it.Name)
			w.AddString(fn, base, 4)
			dep := g.Ext == bina.DependencyExt
			pending = append(pending, pendingNode{node: fn, item: it, dep: dep})
			if it.Proxy && !dep {
				proxies = append(proxies, proxyRow{typeName: g.Type, name: it.Name, index: uint32(i)})
			}
		}
	}
	treesSize := w.Pos() - HeaderSize

	// Data entries, each immediately followed by its payload or split table.
	entriesStart := w.Pos()
	for _, p := range pending {
		w.Align(4)
		if rem := (w.Pos() + dataEntrySize) % pad; rem != 0 {
			w.Reserve(pad - rem)
		}
		entry := w.Reserve(dataEntrySize)
		if err := w.SetOff32(p.node+4, entry); err != nil {
			return nil, err
		}
		if err := w.PutSize32(entry, p.item.PayloadSize()); err != nil {
			return nil, err
		}
		if p.item.Proxy {
			w.PutU8(entry+12, FlagNotHere)
		}
		switch {
		case p.dep:
			if err := writeSplitTable(w, opts.Splits); err != nil {
				return nil, err
			}
		case !p.item.Proxy:
			w.Write(p.item.Data)
		}
	}
	w.Align(4)
	entriesSize := w.Pos() - entriesStart

	proxyStart := w.Pos()
	if len(proxies) > 0 {
		table := w.Reserve(proxyTableSize)
		w.PutU32(table, uint32(len(proxies)))
		rows := w.Reserve(uint64(len(proxies)) * proxyEntrySize)
		if err := w.SetOff32(table+4, rows); err != nil {
			return nil, err
		}
		for i, p := range proxies {
			row := rows + uint64(i)*proxyEntrySize
			w.AddString(row, p.typeName, 4)
			w.AddString(row+4, p.name, 4)
			w.PutU32(row+8, p.index)
		}
	}
	proxySize := w.Pos() - proxyStart

	stringsSize, err := w.WriteStrings()
	if err != nil {
		return nil, err
	}
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
		{posDataSize, fileSize - posDataSig},
		{posDataEntriesSize, entriesSize},
		{posTreesSize, treesSize},
		{posProxyTableSize, proxySize},
		{posStringTableSize, stringsSize},
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

func writeSplitTable(w *bina.Writer, splits []string) error {
	table := w.Reserve(splitTableSize)
	w.PutU32(table+4, uint32(len(splits)))
	names := w.Reserve(uint64(len(splits)) * 4)
	if err := w.SetOff32(table, names); err != nil {
		return err
	}
	for i, s := range splits {
		w.AddString(names+uint64(i)*4, s, 4)
	}
	return nil
}
