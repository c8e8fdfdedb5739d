package blob

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuffer(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 'h', 'i', 0}
	b := New(data, "mem")

	t.Run("Reads", func(t *testing.T) {
		v16, err := b.Uint16(0)
		if err != nil || v16 != 0x0201 {
			t.Errorf("Uint16: got %#x, %v", v16, err)
		}
		v32, err := b.Uint32(0)
		if err != nil || v32 != 0x04030201 {
			t.Errorf("Uint32: got %#x, %v", v32, err)
		}
		v64, err := b.Uint64(0)
		if err != nil || v64 != 0x0807060504030201 {
			t.Errorf("Uint64: got %#x, %v", v64, err)
		}
		s, err := b.CString(8)
		if err != nil || s != "hi" {
			t.Errorf("CString: got %q, %v", s, err)
		}
	})

	t.Run("BigEndian", func(t *testing.T) {
		be := New(data, "mem")
		be.Order = binary.BigEndian
		v, _ := be.Uint32(0)
		if v != 0x01020304 {
			t.Errorf("got %#x, want 0x01020304", v)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		checks := map[string]error{}
		_, checks["Uint64"] = b.Uint64(4)
		_, checks["Uint8"] = b.Uint8(11)
		_, checks["Bytes"] = b.Bytes(10, 2)
		_, checks["Overflow"] = b.Bytes(^uint64(0), 2)
		_, checks["CStringPastEnd"] = b.CString(20)
		for name, err := range checks {
			if !errors.Is(err, ErrCorruptData) {
				t.Errorf("%s: got %v, want ErrCorruptData", name, err)
			}
		}
	})

	t.Run("Unterminated", func(t *testing.T) {
		u := New([]byte("abc"), "")
		if _, err := u.CString(0); !errors.Is(err, ErrCorruptData) {
			t.Errorf("got %v, want ErrCorruptData", err)
		}
	})

	t.Run("CheckCount", func(t *testing.T) {
		if err := b.CheckCount(0, 2, 4); err != nil {
			t.Errorf("in range: %v", err)
		}
		if err := b.CheckCount(0, 3, 4); !errors.Is(err, ErrCorruptData) {
			t.Errorf("past end: got %v, want ErrCorruptData", err)
		}
		if err := b.CheckCount(0, 1<<40, 8); !errors.Is(err, ErrOutOfMemory) {
			t.Errorf("huge: got %v, want ErrOutOfMemory", err)
		}
	})
}

func TestOffsets(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[0:], 8)
	copy(data[8:], "name\x00")
	b := New(data, "")

	off, err := b.Off32(0)
	if err != nil {
		t.Fatal(err)
	}
	pos, ok, err := Resolve(b, off, 4)
	if err != nil || !ok || pos != 8 {
		t.Errorf("Resolve: got %d %v %v", pos, ok, err)
	}

	if _, ok, err := Resolve(b, Off32(0), 4); ok || err != nil {
		t.Errorf("null offset: got ok=%v err=%v", ok, err)
	}
	if _, _, err := Resolve(b, Off64(14), 4); !errors.Is(err, ErrCorruptData) {
		t.Errorf("out of range: got %v", err)
	}
	if _, err := Required(b, Off32(0), 1, "name"); !errors.Is(err, ErrCorruptData) {
		t.Errorf("required null: got %v", err)
	}

	s, ok, err := StringAt(b, off)
	if err != nil || !ok || s != "name" {
		t.Errorf("StringAt: got %q %v %v", s, ok, err)
	}
}

func TestEntry(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		e, err := NewEntry("a.txt", []byte("hello"))
		if err != nil {
			t.Fatal(err)
		}
		if e.Name() != "a.txt" || e.Size() != 5 || e.SourcePath() != "" {
			t.Errorf("got %q %d %q", e.Name(), e.Size(), e.SourcePath())
		}
		got, _ := e.Bytes()
		if string(got) != "hello" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "b.txt")
		if err := os.WriteFile(path, []byte("world"), 0644); err != nil {
			t.Fatal(err)
		}
		e, err := NewFileEntry("b.txt", path)
		if err != nil {
			t.Fatal(err)
		}
		if e.Size() != 5 {
			t.Errorf("got size %d, want 5", e.Size())
		}
		got, err := e.Bytes()
		if err != nil || string(got) != "world" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		if _, err := NewEntry("", nil); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("empty name: got %v", err)
		}
		if _, err := NewFileEntry("x", ""); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("empty path: got %v", err)
		}
		if _, err := NewFileEntry("x", t.TempDir()); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("directory: got %v", err)
		}
		if _, err := NewFileEntry("x", filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing: got %v", err)
		}
	})
}

func TestLoad(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.pac")); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := Load(""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}
