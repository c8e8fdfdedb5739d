package pacv3

import (
	"github.com/EchoTools/pacFileTools/pkg/bina"
	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// Entry is one data node of a parsed container. Data aliases the fragment
// buffer and is nil for proxies.
type Entry struct {
	Type  string
	Ext   string
	Name  string
	Size  uint32
	Proxy bool
	Data  []byte
}

// Fragment is the parsed content of one container file.
type Fragment struct {
	Buffer  *blob.Buffer
	UID     uint32
	Flags   uint16
	Entries []Entry
	Splits  []string
}

// IsRoot reports whether the fragment is the root of a split set.
func (f *Fragment) IsRoot() bool { return f.Flags&bina.FlagSplit == 0 }

type header struct {
	uid             uint32
	fileSize        uint32
	nodesSize       uint32
	splitTableSize  uint32
	dataEntriesSize uint32
	stringTableSize uint32
	fileDataSize    uint32
	offsetTableSize uint32
	flags           uint16
	splitCount      uint32
}

// Parse validates buf as a generation 3 container, converts it to host byte
// order in place and walks both tries.
func Parse(buf *blob.Buffer) (*Fragment, error) {
	ident, err := bina.ReadIdent(buf.Data)
	if err != nil {
		return nil, err
	}
	if ident.Version/100 != 3 {
		return nil, blob.Corruptf("version %d is not a generation 3 container", ident.Version)
	}
	if buf.Len() < HeaderSize {
		return nil, blob.Corruptf("header needs %d bytes, got %d", HeaderSize, buf.Len())
	}
	if size := uint64(ident.Order.Uint32(buf.Data[posFileSize:])); size != buf.Len() {
		return nil, blob.Corruptf("header file size %d does not match %d bytes", size, buf.Len())
	}
	if err := bina.Normalize(buf, Traits); err != nil {
		return nil, err
	}

	h, err := readHeader(buf)
	if err != nil {
		return nil, err
	}

	encoded, err := buf.Bytes(buf.Len()-uint64(h.offsetTableSize), uint64(h.offsetTableSize))
	if err != nil {
		return nil, err
	}
	table, err := bina.DecodeOffsets(encoded)
	if err != nil {
		return nil, err
	}
	if err := table.Verify(buf, 8); err != nil {
		return nil, err
	}

	frag := &Fragment{Buffer: buf, UID: h.uid, Flags: h.flags}
	if h.nodesSize != 0 {
		err := frag.walkTree(HeaderSize, func(typeName string, at uint64) error {
			return frag.walkTree(at, func(base string, entry uint64) error {
				return frag.readEntry(typeName, base, entry)
			})
		})
		if err != nil {
			return nil, err
		}
	}
	if h.splitTableSize != 0 {
		at := uint64(HeaderSize) + uint64(h.nodesSize) + uint64(h.dataEntriesSize)
		if err := frag.readSplits(at); err != nil {
			return nil, err
		}
		if uint32(len(frag.Splits)) != h.splitCount {
			return nil, blob.Corruptf("split table lists %d fragments, header says %d", len(frag.Splits), h.splitCount)
		}
	} else if h.splitCount != 0 {
		return nil, blob.Corruptf("header says %d fragments but has no split table", h.splitCount)
	}
	return frag, nil
}

func readHeader(buf *blob.Buffer) (header, error) {
	var h header
	fields := []struct {
		pos uint64
		dst *uint32
	}{
		{posUID, &h.uid},
		{posFileSize, &h.fileSize},
		{posNodesSize, &h.nodesSize},
		{posSplitTableSize, &h.splitTableSize},
		{posDataEntriesSize, &h.dataEntriesSize},
		{posStringTableSize, &h.stringTableSize},
		{posFileDataSize, &h.fileDataSize},
		{posOffsetTableSize, &h.offsetTableSize},
		{posSplitCount, &h.splitCount},
	}
	for _, f := range fields {
		v, err := buf.Uint32(f.pos)
		if err != nil {
			return h, err
		}
		*f.dst = v
	}
	flags, err := buf.Uint16(posFlags)
	if err != nil {
		return h, err
	}
	h.flags = flags

	total := uint64(HeaderSize) + uint64(h.nodesSize) + uint64(h.splitTableSize) +
		uint64(h.dataEntriesSize) + uint64(h.stringTableSize) + uint64(h.fileDataSize) +
		uint64(h.offsetTableSize)
	if total != uint64(h.fileSize) {
		return h, blob.Corruptf("section sizes add up to %d, file is %d bytes", total, h.fileSize)
	}
	return h, nil
}

// walkTree visits every data node of the node tree at pos depth-first,
// passing the reconstructed path and the position the node's data offset
// resolves to.
func (f *Fragment) walkTree(pos uint64, visit func(path string, data uint64) error) error {
	buf := f.Buffer
	if err := buf.Check(pos, treeSize); err != nil {
		return err
	}
	count, _ := buf.Uint32(pos)
	dataCount, _ := buf.Uint32(pos + 4)
	nodesOff, _ := buf.Off64(pos + 8)
	indicesOff, _ := buf.Off64(pos + 16)
	if count == 0 {
		if dataCount != 0 {
			return blob.Corruptf("tree at %#x has %d data nodes and no nodes", pos, dataCount)
		}
		return nil
	}
	if err := buf.CheckCount(uint64(nodesOff), uint64(count), nodeSize); err != nil {
		return err
	}
	nodes, err := blob.Required(buf, nodesOff, uint64(count)*nodeSize, "node array")
	if err != nil {
		return err
	}
	if err := f.checkDataIndices(nodes, uint64(count), indicesOff, uint64(dataCount)); err != nil {
		return err
	}

	type frame struct {
		index  int32
		parent int32
		prefix string
	}
	visited := make([]bool, count)
	stack := []frame{{index: 0, parent: -1}}
	seen := uint32(0)
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.index < 0 || uint32(fr.index) >= count {
			return blob.Corruptf("child index %d outside %d nodes", fr.index, count)
		}
		if visited[fr.index] {
			return blob.Corruptf("node %d reached twice", fr.index)
		}
		visited[fr.index] = true

		at := nodes + uint64(fr.index)*nodeSize
		n, err := f.readNode(at)
		if err != nil {
			return err
		}
		if n.parent != fr.parent || n.global != fr.index {
			return blob.Corruptf("node %d records parent %d index %d, reached from %d", fr.index, n.parent, n.global, fr.parent)
		}
		path := fr.prefix + n.name
		if len(path)&0xFF != int(n.pathSize) {
			return blob.Corruptf("node %d path %q does not match recorded length %d", fr.index, path, n.pathSize)
		}

		if n.hasData {
			if n.dataIndex < 0 || uint32(n.dataIndex) >= dataCount {
				return blob.Corruptf("node %d data index %d outside %d", fr.index, n.dataIndex, dataCount)
			}
			seen++
			data, err := blob.Required(buf, n.data, 1, "node data")
			if err != nil {
				return err
			}
			if err := visit(path, data); err != nil {
				return err
			}
		}

		// Push children in reverse so they are visited in stored order.
		for i := len(n.children) - 1; i >= 0; i-- {
			c := n.children[i]
			if c == -1 {
				continue
			}
			stack = append(stack, frame{index: c, parent: fr.index, prefix: path})
		}
	}
	if seen != dataCount {
		return blob.Corruptf("tree at %#x reached %d data nodes, header says %d", pos, seen, dataCount)
	}
	return nil
}

type node struct {
	name      string
	data      blob.Off64
	children  []int32
	parent    int32
	global    int32
	dataIndex int32
	hasData   bool
	pathSize  uint8
}

func (f *Fragment) readNode(at uint64) (node, error) {
	buf := f.Buffer
	var n node
	nameOff, _ := buf.Off64(at + nodeName)
	name, _, err := blob.StringAt(buf, nameOff)
	if err != nil {
		return n, err
	}
	n.name = name
	n.data, _ = buf.Off64(at + nodeData)
	kidsOff, _ := buf.Off64(at + nodeChildren)
	n.parent, _ = buf.Int32(at + nodeParent)
	n.global, _ = buf.Int32(at + nodeGlobal)
	n.dataIndex, _ = buf.Int32(at + nodeDataIndex)
	kidCount, _ := buf.Uint16(at + nodeChildCount)
	hasData, _ := buf.Uint8(at + nodeHasData)
	n.hasData = hasData != 0
	n.pathSize, _ = buf.Uint8(at + nodePathSize)

	if kidCount > 0 {
		kids, err := blob.Required(buf, kidsOff, uint64(kidCount)*4, "child index array")
		if err != nil {
			return n, err
		}
		n.children = make([]int32, kidCount)
		for i := range n.children {
			n.children[i], _ = buf.Int32(kids + uint64(i)*4)
		}
	}
	return n, nil
}

func (f *Fragment) checkDataIndices(nodes, count uint64, off blob.Off64, dataCount uint64) error {
	if dataCount == 0 {
		return nil
	}
	buf := f.Buffer
	if err := buf.CheckCount(uint64(off), dataCount, 4); err != nil {
		return err
	}
	at, err := blob.Required(buf, off, dataCount*4, "data node indices")
	if err != nil {
		return err
	}
	for i := range dataCount {
		idx, _ := buf.Int32(at + i*4)
		if idx < 0 || uint64(idx) >= count {
			return blob.Corruptf("data node index %d outside %d nodes", idx, count)
		}
		hasData, _ := buf.Uint8(nodes + uint64(idx)*nodeSize + nodeHasData)
		if hasData == 0 {
			return blob.Corruptf("data node index %d names a node without data", idx)
		}
	}
	return nil
}

func (f *Fragment) readEntry(typeName, base string, at uint64) error {
	buf := f.Buffer
	if err := buf.Check(at, dataEntrySize); err != nil {
		return err
	}
	size, _ := buf.Uint32(at + entrySize)
	dataOff, _ := buf.Off64(at + entryData)
	extOff, _ := buf.Off64(at + entryExt)
	kind, _ := buf.Uint64(at + entryDataType)

	ext, _, err := blob.StringAt(buf, extOff)
	if err != nil {
		return err
	}
	e := Entry{
		Type: typeName,
		Ext:  ext,
		Name: bina.JoinName(base, ext),
		Size: size,
	}
	switch kind {
	case DataNotHere:
		e.Proxy = true
	case DataRegular, DataBINA:
		if size > 0 {
			pos, err := blob.Required(buf, dataOff, uint64(size), "payload")
			if err != nil {
				return err
			}
			e.Data = buf.Data[pos : pos+uint64(size) : pos+uint64(size)]
		} else {
			e.Data = []byte{}
		}
	default:
		return blob.Corruptf("entry %q has unknown data type %d", e.Name, kind)
	}
	f.Entries = append(f.Entries, e)
	return nil
}

func (f *Fragment) readSplits(pos uint64) error {
	buf := f.Buffer
	if err := buf.Check(pos, splitTableSize); err != nil {
		return err
	}
	off, _ := buf.Off64(pos)
	count, _ := buf.Uint64(pos + 8)
	if count == 0 {
		return nil
	}
	if err := buf.CheckCount(uint64(off), count, 8); err != nil {
		return err
	}
	at, err := blob.Required(buf, off, count*8, "split table")
	if err != nil {
		return err
	}
	for i := range count {
		nameOff, _ := buf.Off64(at + i*8)
		name, ok, err := blob.StringAt(buf, nameOff)
		if err != nil {
			return err
		}
		if !ok || name == "" {
			return blob.Corruptf("empty split name %d", i)
		}
		f.Splits = append(f.Splits, name)
	}
	return nil
}
