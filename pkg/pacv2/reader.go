package pacv2

import (
	"github.com/EchoTools/pacFileTools/pkg/bina"
	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// Entry is one file node of a parsed container. Data aliases the fragment
// buffer and is nil for proxies.
type Entry struct {
	Type  string
	Ext   string
	Name  string
	Size  uint32
	Proxy bool
	Data  []byte
}

// ProxyRecord is one row of the proxy table.
type ProxyRecord struct {
	Type  string
	Name  string
	Index uint32
}

// Fragment is the parsed content of one container file.
type Fragment struct {
	Buffer  *blob.Buffer
	Flags   uint16
	Entries []Entry
	Splits  []string
	Proxies []ProxyRecord
}

// IsRoot reports whether the fragment is the root of a split set.
func (f *Fragment) IsRoot() bool { return f.Flags&bina.FlagSplit == 0 }

// Parse validates buf as a generation 2 container, converts it to host byte
// order in place and walks its trees.
func Parse(buf *blob.Buffer) (*Fragment, error) {
	ident, err := bina.ReadIdent(buf.Data)
	if err != nil {
		return nil, err
	}
	if ident.Version/100 != 2 {
		return nil, blob.Corruptf("version %d is not a generation 2 container", ident.Version)
	}
	if buf.Len() < HeaderSize {
		return nil, blob.Corruptf("header needs %d bytes, got %d", HeaderSize, buf.Len())
	}
	if [4]byte(buf.Data[posDataSig:posDataSig+4]) != DataSignature {
		return nil, blob.Corruptf("missing DATA block")
	}

	if err := checkSize(buf, ident); err != nil {
		return nil, err
	}
	if err := bina.Normalize(buf, Traits); err != nil {
		return nil, err
	}

	h, err := readHeader(buf)
	if err != nil {
		return nil, err
	}

	offsetsAt := buf.Len() - uint64(h.offsetTableSize)
	encoded, err := buf.Bytes(offsetsAt, uint64(h.offsetTableSize))
	if err != nil {
		return nil, err
	}
	table, err := bina.DecodeOffsets(encoded)
	if err != nil {
		return nil, err
	}
	if err := table.Verify(buf, 4); err != nil {
		return nil, err
	}

	frag := &Fragment{Buffer: buf, Flags: h.flags}
	if h.treesSize != 0 {
		if err := frag.walkTypes(HeaderSize); err != nil {
			return nil, err
		}
	}
	if h.proxyTableSize != 0 {
		at := uint64(HeaderSize) + uint64(h.treesSize) + uint64(h.dataEntriesSize)
		if err := frag.readProxies(at); err != nil {
			return nil, err
		}
	}
	return frag, nil
}

type header struct {
	fileSize        uint32
	flags           uint16
	dataSize        uint32
	dataEntriesSize uint32
	treesSize       uint32
	proxyTableSize  uint32
	stringTableSize uint32
	offsetTableSize uint32
}

// checkSize compares the stored file size with the real length before any
// swapping, so a truncated file is rejected early.
func checkSize(buf *blob.Buffer, ident bina.Ident) error {
	size := uint64(ident.Order.Uint32(buf.Data[posFileSize:]))
	if size != buf.Len() {
		return blob.Corruptf("header file size %d does not match %d bytes", size, buf.Len())
	}
	return nil
}

func readHeader(buf *blob.Buffer) (header, error) {
	var h header
	fields := []struct {
		pos uint64
		dst *uint32
	}{
		{posFileSize, &h.fileSize},
		{posDataSize, &h.dataSize},
		{posDataEntriesSize, &h.dataEntriesSize},
		{posTreesSize, &h.treesSize},
		{posProxyTableSize, &h.proxyTableSize},
		{posStringTableSize, &h.stringTableSize},
		{posOffsetTableSize, &h.offsetTableSize},
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

	if uint64(h.dataSize)+posDataSig != uint64(h.fileSize) {
		return h, blob.Corruptf("data block size %d does not match file size %d", h.dataSize, h.fileSize)
	}
	total := uint64(HeaderSize) + uint64(h.treesSize) + uint64(h.dataEntriesSize) +
		uint64(h.proxyTableSize) + uint64(h.stringTableSize) + uint64(h.offsetTableSize)
	if total != uint64(h.fileSize) {
		return h, blob.Corruptf("section sizes add up to %d, file is %d bytes", total, h.fileSize)
	}
	return h, nil
}

// tree reads a {count, nodes} header and returns the node array position.
func (f *Fragment) tree(pos uint64) (nodes, count uint64, err error) {
	buf := f.Buffer
	n, err := buf.Uint32(pos)
	if err != nil {
		return 0, 0, err
	}
	off, err := buf.Off32(pos + 4)
	if err != nil {
		return 0, 0, err
	}
	if n == 0 {
		return 0, 0, nil
	}
	if err := buf.CheckCount(uint64(off), uint64(n), nodeSize); err != nil {
		return 0, 0, err
	}
	at, err := blob.Required(buf, off, uint64(n)*nodeSize, "node array")
	if err != nil {
		return 0, 0, err
	}
	return at, uint64(n), nil
}

func (f *Fragment) node(pos uint64, what string) (name string, data uint64, err error) {
	buf := f.Buffer
	nameOff, err := buf.Off32(pos)
	if err != nil {
		return "", 0, err
	}
	name, ok, err := blob.StringAt(buf, nameOff)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, blob.Corruptf("%s node at %#x has no name", what, pos)
	}
	dataOff, err := buf.Off32(pos + 4)
	if err != nil {
		return "", 0, err
	}
	data, err = blob.Required(buf, dataOff, 1, what+" data")
	return name, data, err
}

func (f *Fragment) walkTypes(pos uint64) error {
	nodes, count, err := f.tree(pos)
	if err != nil {
		return err
	}
	for i := range count {
		key, files, err := f.node(nodes+i*nodeSize, "type")
		if err != nil {
			return err
		}
		ext, typeName, ok := bina.ParseTypeKey(key)
		if !ok {
			return blob.Corruptf("type node %q is not <ext>:<type>", key)
		}
		if err := f.walkFiles(files, ext, typeName); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fragment) walkFiles(pos uint64, ext, typeName string) error {
	buf := f.Buffer
	nodes, count, err := f.tree(pos)
	if err != nil {
		return err
	}
	for i := range count {
		base, at, err := f.node(nodes+i*nodeSize, "file")
		if err != nil {
			return err
		}
		if err := buf.Check(at, dataEntrySize); err != nil {
			return err
		}
		size, _ := buf.Uint32(at)
		flags, _ := buf.Uint8(at + 12)

		e := Entry{
			Type: typeName,
			Ext:  ext,
			Name: bina.JoinName(base, ext),
			Size: size,
		}
		switch {
		case flags&FlagNotHere != 0:
			e.Proxy = true
			if ext == bina.DependencyExt {
				splits, err := f.readSplits(at + dataEntrySize)
				if err != nil {
					return err
				}
				f.Splits = append(f.Splits, splits...)
			}
		default:
			data, err := buf.Bytes(at+dataEntrySize, uint64(size))
			if err != nil {
				return err
			}
			e.Data = data
		}
		f.Entries = append(f.Entries, e)
	}
	return nil
}

func (f *Fragment) readSplits(pos uint64) ([]string, error) {
	buf := f.Buffer
	off, err := buf.Off32(pos)
	if err != nil {
		return nil, err
	}
	count, err := buf.Uint32(pos + 4)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	if err := buf.CheckCount(uint64(off), uint64(count), 4); err != nil {
		return nil, err
	}
	at, err := blob.Required(buf, off, uint64(count)*4, "split table")
	if err != nil {
		return nil, err
	}
	splits := make([]string, 0, count)
	for i := range uint64(count) {
		nameOff, err := buf.Off32(at + i*4)
		if err != nil {
			return nil, err
		}
		name, ok, err := blob.StringAt(buf, nameOff)
		if err != nil {
			return nil, err
		}
		if !ok || name == "" {
			return nil, blob.Corruptf("empty split name %d", i)
		}
		splits = append(splits, name)
	}
	return splits, nil
}

func (f *Fragment) readProxies(pos uint64) error {
	buf := f.Buffer
	count, err := buf.Uint32(pos)
	if err != nil {
		return err
	}
	off, err := buf.Off32(pos + 4)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if err := buf.CheckCount(uint64(off), uint64(count), proxyEntrySize); err != nil {
		return err
	}
	at, err := blob.Required(buf, off, uint64(count)*proxyEntrySize, "proxy table")
	if err != nil {
		return err
	}
	for i := range uint64(count) {
		p := at + i*proxyEntrySize
		typeOff, _ := buf.Off32(p)
		nameOff, _ := buf.Off32(p + 4)
		index, _ := buf.Uint32(p + 8)
		typeName, ok1, err := blob.StringAt(buf, typeOff)
		if err != nil {
			return err
		}
		name, ok2, err := blob.StringAt(buf, nameOff)
		if err != nil {
			return err
		}
		if !ok1 || !ok2 {
			return blob.Corruptf("proxy record %d has a null name", i)
		}
		f.Proxies = append(f.Proxies, ProxyRecord{Type: typeName, Name: name, Index: index})
	}
	return nil
}
