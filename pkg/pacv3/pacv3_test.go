package pacv3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/EchoTools/pacFileTools/pkg/bina"
	"github.com/EchoTools/pacFileTools/pkg/blob"
)

func sampleItems() []bina.Item {
	return []bina.Item{
		{Name: "a.txt", Data: []byte("hello")},
		{Name: "b.txt", Data: []byte("world")},
		{Name: "chr_sonic.skl.hkx", Data: bytes.Repeat([]byte{0xAB}, 40)},
		{Name: "chr_shadow.skl.hkx", Data: bytes.Repeat([]byte{0xCD}, 24)},
		{Name: "chr_sonic.model", Data: []byte("mesh")},
		{Name: "chr.model", Data: []byte("short")},
		{Name: "empty.bin", Data: nil},
		{Name: ".hidden", Data: []byte("dotfile")},
	}
}

func parseBytes(t *testing.T, data []byte) *Fragment {
	t.Helper()
	f, err := Parse(blob.New(bytes.Clone(data), "test.pac"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return f
}

func entryMap(f *Fragment) map[string]Entry {
	m := make(map[string]Entry, len(f.Entries))
	for _, e := range f.Entries {
		m[e.Name] = e
	}
	return m
}

func TestTrie(t *testing.T) {
	trie := newTrie()
	keys := []string{"chr_sonic", "chr_shadow", "chr", "obj"}
	for i, k := range keys {
		if err := trie.insert(k, i); err != nil {
			t.Fatalf("insert %s: %v", k, err)
		}
	}
	if err := trie.insert("chr", 9); !errors.Is(err, blob.ErrInvalidArgument) {
		t.Errorf("duplicate key: got %v", err)
	}

	flat, data, err := trie.flatten()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != len(keys) {
		t.Fatalf("got %d data nodes, want %d", len(data), len(keys))
	}

	// Rebuild every key from the flattened parent links.
	var got []string
	for _, idx := range data {
		path := ""
		for n := flat[idx].parent; n >= 0; n = flat[n].parent {
			path = flat[n].name + path
		}
		if flat[idx].name != "" {
			t.Errorf("data node %d is named %q", idx, flat[idx].name)
		}
		if flat[idx].pathLen != len(path) {
			t.Errorf("data node %d path length %d, want %d", idx, flat[idx].pathLen, len(path))
		}
		got = append(got, path)
	}
	slices.Sort(got)
	want := slices.Clone(keys)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}

	for i, n := range flat {
		for _, c := range n.children {
			if flat[c].parent != i {
				t.Errorf("node %d lists child %d whose parent is %d", i, c, flat[c].parent)
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			data, err := Build(sampleItems(), BuildOptions{Order: order, UID: 0x1234})
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if string(data[:7]) != "PACx301" {
				t.Fatalf("ident %q", data[:8])
			}

			f := parseBytes(t, data)
			if f.UID != 0x1234 {
				t.Errorf("uid: got %#x", f.UID)
			}
			got := entryMap(f)
			if len(got) != len(sampleItems()) {
				t.Fatalf("got %d entries, want %d", len(got), len(sampleItems()))
			}
			for _, it := range sampleItems() {
				e, ok := got[it.Name]
				if !ok {
					t.Errorf("missing %s", it.Name)
					continue
				}
				if !bytes.Equal(e.Data, it.Data) || int(e.Size) != len(it.Data) {
					t.Errorf("%s: got %d bytes %q", it.Name, e.Size, e.Data)
				}
				_, ext := bina.SplitName(it.Name)
				if e.Type != bina.TypeForExt(ext) || e.Ext != ext {
					t.Errorf("%s: type %q ext %q", it.Name, e.Type, e.Ext)
				}
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	data, err := Build(nil, BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	f := parseBytes(t, data)
	if len(f.Entries) != 0 || len(f.Splits) != 0 {
		t.Errorf("got %+v", f)
	}
}

func TestPayloadAlignment(t *testing.T) {
	data, err := Build(sampleItems(), BuildOptions{Padding: 128})
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range sampleItems() {
		if len(it.Data) == 0 {
			continue
		}
		off := bytes.Index(data, it.Data)
		if off < 0 || off%128 != 0 {
			t.Errorf("%s payload at %#x is not 128-aligned", it.Name, off)
		}
	}
}

func TestEndianSymmetry(t *testing.T) {
	original, err := Build(sampleItems(), BuildOptions{Splits: []string{"x.pac.000", "x.pac.001"}})
	if err != nil {
		t.Fatal(err)
	}
	data := bytes.Clone(original)
	if err := bina.SwapContainer(data, Traits); err != nil {
		t.Fatalf("first swap: %v", err)
	}
	if bytes.Equal(data, original) {
		t.Fatal("swap changed nothing")
	}
	if err := bina.SwapContainer(data, Traits); err != nil {
		t.Fatalf("second swap: %v", err)
	}
	if !bytes.Equal(data, original) {
		t.Error("two swaps did not restore the container")
	}
}

func TestSplitTable(t *testing.T) {
	items := []bina.Item{
		{Name: "far.dds", Proxy: true, Size: 1000},
		{Name: "near.txt", Data: []byte("x")},
	}
	data, err := Build(items, BuildOptions{
		Order:  binary.BigEndian,
		Flags:  bina.FlagRoot | bina.FlagHasSplits,
		Splits: []string{"w.pac.000", "w.pac.001"},
	})
	if err != nil {
		t.Fatal(err)
	}
	f := parseBytes(t, data)
	if !f.IsRoot() || f.Flags&bina.FlagHasSplits == 0 {
		t.Errorf("flags %#x", f.Flags)
	}
	if !slices.Equal(f.Splits, []string{"w.pac.000", "w.pac.001"}) {
		t.Errorf("splits %q", f.Splits)
	}
	if e := entryMap(f)["far.dds"]; !e.Proxy || e.Size != 1000 || e.Data != nil {
		t.Errorf("proxy: %+v", e)
	}
}

func TestBuildRejects(t *testing.T) {
	t.Run("SameTypeSameBase", func(t *testing.T) {
		items := []bina.Item{{Name: "a.txt"}, {Name: "a.TXT"}}
		if _, err := Build(items, BuildOptions{}); !errors.Is(err, blob.ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
	})
	t.Run("LongPath", func(t *testing.T) {
		name := string(bytes.Repeat([]byte{'n'}, 300)) + ".txt"
		if _, err := Build([]bina.Item{{Name: name}}, BuildOptions{}); !errors.Is(err, blob.ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
	})
	t.Run("Padding", func(t *testing.T) {
		if _, err := Build(nil, BuildOptions{Padding: 3}); !errors.Is(err, blob.ErrInvalidArgument) {
			t.Errorf("got %v", err)
		}
	})
}

func TestParseRejects(t *testing.T) {
	good, err := Build(sampleItems(), BuildOptions{Splits: []string{"x.pac.000"}})
	if err != nil {
		t.Fatal(err)
	}
	put32 := func(d []byte, pos uint64, v uint32) []byte {
		binary.LittleEndian.PutUint32(d[pos:], v)
		return d
	}

	corrupt := map[string]func([]byte) []byte{
		"Truncated":     func(d []byte) []byte { return d[:len(d)-4] },
		"ShortHeader":   func(d []byte) []byte { return d[:0x20] },
		"BadMagic":      func(d []byte) []byte { d[1] = 'B'; return d },
		"Gen2Version":   func(d []byte) []byte { d[4] = '2'; return d },
		"SectionSizes":  func(d []byte) []byte { return put32(d, posNodesSize, binary.LittleEndian.Uint32(d[posNodesSize:])+8) },
		"SplitCount":    func(d []byte) []byte { return put32(d, posSplitCount, 7) },
		"DanglingNodes": func(d []byte) []byte { return put32(d, HeaderSize+8, uint32(len(d)+64)) },
		"ZeroNodes":     func(d []byte) []byte { return put32(d, HeaderSize, 0) },
		"HugeNodes":     func(d []byte) []byte { return put32(d, HeaderSize, 0x7FFFFFFF) },
	}
	for name, mutate := range corrupt {
		t.Run(name, func(t *testing.T) {
			data := mutate(bytes.Clone(good))
			_, err := Parse(blob.New(data, ""))
			if !errors.Is(err, blob.ErrCorruptData) && !errors.Is(err, blob.ErrOutOfMemory) {
				t.Errorf("got %v, want ErrCorruptData", err)
			}
		})
	}

	t.Run("SplitCountWithoutTable", func(t *testing.T) {
		data, err := Build(sampleItems(), BuildOptions{})
		if err != nil {
			t.Fatal(err)
		}
		binary.LittleEndian.PutUint32(data[posSplitCount:], 5)
		if _, err := Parse(blob.New(data, "")); !errors.Is(err, blob.ErrCorruptData) {
			t.Errorf("got %v, want ErrCorruptData", err)
		}
	})
}

func TestWriteSplit(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "stage.pac")
	var items []bina.Item
	for i := 0; i < 5; i++ {
		items = append(items, bina.Item{Name: fmt.Sprintf("obj%d.bin", i), Data: bytes.Repeat([]byte{byte(i)}, 50)})
	}

	paths, err := WriteSplit(root, items, WriteOptions{SplitLimit: 100})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	want := []string{
		filepath.Join(dir, "stage.pac.000"),
		filepath.Join(dir, "stage.pac.001"),
		filepath.Join(dir, "stage.pac.002"),
		root,
	}
	if !slices.Equal(paths, want) {
		t.Fatalf("paths: got %q, want %q", paths, want)
	}

	buf, err := blob.Load(root)
	if err != nil {
		t.Fatal(err)
	}
	r, err := Parse(buf)
	if err != nil {
		t.Fatalf("parse root: %v", err)
	}
	if !slices.Equal(r.Splits, []string{"stage.pac.000", "stage.pac.001", "stage.pac.002"}) {
		t.Errorf("splits %q", r.Splits)
	}
	if len(r.Entries) != 5 {
		t.Errorf("root lists %d entries, want 5", len(r.Entries))
	}

	buf, err = blob.Load(want[2])
	if err != nil {
		t.Fatal(err)
	}
	last, err := Parse(buf)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	if last.IsRoot() || len(last.Entries) != 1 || last.Entries[0].Name != "obj4.bin" {
		t.Errorf("last fragment: flags %#x entries %+v", last.Flags, last.Entries)
	}
}
