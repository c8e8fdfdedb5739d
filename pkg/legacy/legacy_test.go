package legacy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// memFS collects written files.
type memFS map[string][]byte

func (m memFS) write(path string, data []byte) error {
	m[path] = bytes.Clone(data)
	return nil
}

func entries(t *testing.T, n, size int) []blob.Entry {
	t.Helper()
	var out []blob.Entry
	for i := 0; i < n; i++ {
		e, err := blob.NewEntry(fmt.Sprintf("f%d", i), bytes.Repeat([]byte{byte('a' + i)}, size))
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, e)
	}
	return out
}

func parse(t *testing.T, data []byte) *Archive {
	t.Helper()
	a, err := Parse(blob.New(bytes.Clone(data), ""))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return a
}

func TestRoundTrip(t *testing.T) {
	hello, _ := blob.NewEntry("a.txt", []byte("hello"))
	world, _ := blob.NewEntry("dir/b.txt", []byte("world"))
	empty, _ := blob.NewEntry("empty", nil)

	fs := memFS{}
	paths, err := Write("x.ar", []blob.Entry{hello, world, empty}, WriteOptions{WriteFile: fs.write})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(paths, []string{"x.ar"}) {
		t.Fatalf("paths %q", paths)
	}

	data := fs["x.ar"]
	if !Looks(data) {
		t.Error("Looks rejected a written archive")
	}
	a := parse(t, data)
	if len(a.Entries) != 3 {
		t.Fatalf("got %d entries", len(a.Entries))
	}
	want := map[string]string{"a.txt": "hello", "dir/b.txt": "world", "empty": ""}
	for _, e := range a.Entries {
		if string(e.Data) != want[e.Name] {
			t.Errorf("%s: got %q", e.Name, e.Data)
		}
	}
	if a.Header.Padding != DefaultPadding || a.Header.FileSize != uint32(len(data)) {
		t.Errorf("header %+v", a.Header)
	}
}

func TestPayloadAlignment(t *testing.T) {
	fs := memFS{}
	if _, err := Write("x.ar", entries(t, 3, 10), WriteOptions{Padding: 0x20, WriteFile: fs.write}); err != nil {
		t.Fatal(err)
	}
	a := parse(t, fs["x.ar"])
	for _, e := range a.Entries {
		off := bytes.Index(fs["x.ar"], e.Data)
		if off%0x20 != 0 {
			t.Errorf("%s payload at %#x", e.Name, off)
		}
	}
}

func TestRollover(t *testing.T) {
	tests := []struct {
		limit  uint64
		counts []int
	}{
		// Each entry occupies 0xA4 bytes at the default padding.
		{150, []int{1, 1, 1}},
		{200, []int{2, 1}},
		{300, []int{3}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.limit), func(t *testing.T) {
			fs := memFS{}
			paths, err := Write("d.ar", entries(t, 3, 100), WriteOptions{
				SplitLimit:    tt.limit,
				GenerateIndex: true,
				IndexNames:    true,
				WriteFile:     fs.write,
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(paths) != len(tt.counts)+1 || paths[len(paths)-1] != "d.arl" {
				t.Fatalf("paths %q", paths)
			}

			x, err := DecodeIndex(fs["d.arl"])
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(x.Names, []string{"f0", "f1", "f2"}) {
				t.Errorf("index names %q", x.Names)
			}
			for i, want := range tt.counts {
				name := fmt.Sprintf("d.ar.%02d", i)
				if paths[i] != name {
					t.Errorf("path %d = %q, want %q", i, paths[i], name)
				}
				a := parse(t, fs[name])
				if len(a.Entries) != want {
					t.Errorf("%s: %d entries, want %d", name, len(a.Entries), want)
				}
				if x.SplitSizes[i] != uint32(len(fs[name])) {
					t.Errorf("%s: index size %d, file %d", name, x.SplitSizes[i], len(fs[name]))
				}
			}
		})
	}
}

func TestWriteRejects(t *testing.T) {
	a, _ := blob.NewEntry("same", []byte("1"))
	b, _ := blob.NewEntry("same", []byte("2"))
	tests := map[string]struct {
		root    string
		entries []blob.Entry
		opts    WriteOptions
	}{
		"Duplicate": {"x.ar", []blob.Entry{a, b}, WriteOptions{}},
		"EmptyPath": {"", []blob.Entry{a}, WriteOptions{}},
		"Padding":   {"x.ar", []blob.Entry{a}, WriteOptions{Padding: 24}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tt.opts.WriteFile = memFS{}.write
			if _, err := Write(tt.root, tt.entries, tt.opts); !errors.Is(err, blob.ErrInvalidArgument) {
				t.Errorf("got %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	fs := memFS{}
	if _, err := Write("x.ar", entries(t, 2, 8), WriteOptions{WriteFile: fs.write}); err != nil {
		t.Fatal(err)
	}
	good := fs["x.ar"]
	put := func(d []byte, pos int, v uint32) []byte {
		binary.LittleEndian.PutUint32(d[pos:], v)
		return d
	}

	corrupt := map[string]func([]byte) []byte{
		"Short":           func(d []byte) []byte { return d[:8] },
		"EntryHeaderSize": func(d []byte) []byte { return put(d, 8, 0x18) },
		"FirstEntry":      func(d []byte) []byte { return put(d, 4, uint32(len(d)+1)) },
		"EntryPastEnd":    func(d []byte) []byte { return put(d, HeaderSize, uint32(len(d))) },
		"DataOffset":      func(d []byte) []byte { return put(d, HeaderSize+8, EntryHeaderSize) },
		"DataPastEntry":   func(d []byte) []byte { return put(d, HeaderSize+4, 0x1000) },
		"Unterminated":    func(d []byte) []byte { return put(d, HeaderSize+8, EntryHeaderSize+2) },
		"EmptyName":       func(d []byte) []byte { d[HeaderSize+EntryHeaderSize] = 0; return d },
		"TruncatedEntry":  func(d []byte) []byte { return d[:len(d)-4] },
	}
	for name, mutate := range corrupt {
		t.Run(name, func(t *testing.T) {
			data := mutate(bytes.Clone(good))
			if _, err := Parse(blob.New(data, "")); !errors.Is(err, blob.ErrCorruptData) {
				t.Errorf("got %v, want ErrCorruptData", err)
			}
		})
	}
}

func TestIndex(t *testing.T) {
	x := &Index{SplitSizes: []uint32{10, 20}, Names: []string{"a", "bb"}}
	data, err := x.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "ARL2" || binary.LittleEndian.Uint32(data[4:]) != 2 {
		t.Errorf("header % x", data[:8])
	}
	got, err := DecodeIndex(data)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.SplitSizes, x.SplitSizes) || !slices.Equal(got.Names, x.Names) {
		t.Errorf("got %+v", got)
	}

	if _, err := (&Index{Names: []string{""}}).Encode(); !errors.Is(err, blob.ErrInvalidArgument) {
		t.Errorf("empty name: got %v", err)
	}

	for name, bad := range map[string][]byte{
		"Magic":     append([]byte("ARL1"), 0, 0, 0, 0),
		"Count":     append([]byte("ARL2"), 9, 0, 0, 0),
		"NameShort": append(bytes.Clone(data), 5, 'x'),
	} {
		if _, err := DecodeIndex(bad); !errors.Is(err, blob.ErrCorruptData) {
			t.Errorf("%s: got %v, want ErrCorruptData", name, err)
		}
	}

	path := filepath.Join(t.TempDir(), "d.arl")
	if err := WriteIndex(path, x); err != nil {
		t.Fatal(err)
	}
	read, err := ReadIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(read.Names, x.Names) {
		t.Errorf("read %+v", read)
	}
}

func TestIndexPath(t *testing.T) {
	for in, want := range map[string]string{
		"data.ar":    "data.arl",
		"dir/x.y.ar": "dir/x.y.arl",
		"noext":      "noext.arl",
	} {
		if got := IndexPath(in); got != want {
			t.Errorf("IndexPath(%q) = %q, want %q", in, got, want)
		}
	}
}
