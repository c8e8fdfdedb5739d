package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/EchoTools/pacFileTools/pkg/archive"
	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/EchoTools/pacFileTools/pkg/codec"
)

func TestParse(t *testing.T) {
	t.Run("Full", func(t *testing.T) {
		cfg, err := Parse([]byte(`
kind: gen2
split_limit: 64 MiB
padding: 64
index: true
compression: zstd
big_endian: true
log_level: debug
`))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if cfg.Kind != archive.Gen2 {
			t.Errorf("kind: got %s, want gen2", cfg.Kind)
		}
		if cfg.SplitLimit != 64<<20 {
			t.Errorf("split limit: got %d, want %d", cfg.SplitLimit, 64<<20)
		}
		if cfg.Padding != 64 {
			t.Errorf("padding: got %d, want 64", cfg.Padding)
		}
		if !cfg.Index || !cfg.BigEndian {
			t.Errorf("flags not set: %+v", cfg)
		}
		if cfg.Compression != codec.Zstd {
			t.Errorf("compression: got %s, want zstd", cfg.Compression)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Errorf("log level: got %s, want DEBUG", cfg.LogLevel)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		cfg, err := Parse(nil)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if *cfg != *Default() {
			t.Errorf("got %+v, want defaults", cfg)
		}
	})

	t.Run("PlainNumberSize", func(t *testing.T) {
		cfg, err := Parse([]byte("split_limit: 4096\n"))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if cfg.SplitLimit != 4096 {
			t.Errorf("got %d, want 4096", cfg.SplitLimit)
		}
	})

	invalid := map[string]string{
		"UnknownKey":      "splitlimit: 10\n",
		"BadKind":         "kind: gen9\n",
		"BadPadding":      "padding: 12\n",
		"BadSize":         "split_limit: lots\n",
		"LegacyBigEndian": "kind: legacy\nbig_endian: true\n",
		"UnknownCodec":    "compression: brotli\n",
		"XCompressOutput": "compression: xcompress\n",
	}
	for name, doc := range invalid {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Errorf("expected error for %q", doc)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("NoEnv", func(t *testing.T) {
		t.Setenv(EnvVar, "")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if *cfg != *Default() {
			t.Errorf("got %+v, want defaults", cfg)
		}
	})

	t.Run("FromEnv", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pactools.yaml")
		if err := os.WriteFile(path, []byte("kind: legacy\nindex: true\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv(EnvVar, path)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		opts := cfg.Options(nil)
		if opts.Kind != archive.Legacy || !opts.GenerateIndex {
			t.Errorf("got %+v", opts)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		if !errors.Is(err, blob.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestSize(t *testing.T) {
	tests := []struct {
		in   string
		want Size
	}{
		{"", 0},
		{"0", 0},
		{"512", 512},
		{"1 KiB", 1024},
		{"2MB", 2000000},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if err != nil {
			t.Errorf("ParseSize(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q): got %d, want %d", tt.in, got, tt.want)
		}
	}
}
