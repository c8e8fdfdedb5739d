package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/EchoTools/pacFileTools/pkg/config"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPackListExtract(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{
		"a.txt":       "hello",
		"b.txt":       "world",
		"tex/sky.dds": "DDS sky texture",
	})

	for _, kind := range []string{"gen2", "gen3", "legacy"} {
		t.Run(kind, func(t *testing.T) {
			ext := ".pac"
			if kind == "legacy" {
				ext = ".ar"
			}
			out := filepath.Join(dir, kind, "test"+ext)
			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				t.Fatal(err)
			}

			var stdout, stderr bytes.Buffer
			args := []string{"--mode", "pack", "--input", in, "--output", out, "--kind", kind, "--compression", "zstd"}
			if err := run(args, &stdout, &stderr); err != nil {
				t.Fatalf("pack: %v\n%s", err, stderr.String())
			}

			stdout.Reset()
			if err := run([]string{"-m", "list", "-i", out, "--format", "json", "--digest"}, &stdout, &stderr); err != nil {
				t.Fatalf("list: %v", err)
			}
			var rows []listing
			if err := json.Unmarshal(stdout.Bytes(), &rows); err != nil {
				t.Fatalf("decode listing: %v\n%s", err, stdout.String())
			}
			if len(rows) != 3 {
				t.Fatalf("got %d rows, want 3", len(rows))
			}
			for _, r := range rows {
				if len(r.Checksum) != 64 {
					t.Errorf("%s: checksum %q", r.Name, r.Checksum)
				}
			}

			extracted := filepath.Join(dir, kind, "out")
			if err := run([]string{"-m", "extract", "-i", out, "-o", extracted}, &stdout, &stderr); err != nil {
				t.Fatalf("extract: %v", err)
			}
			got, err := os.ReadFile(filepath.Join(extracted, "tex", "sky.dds"))
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "DDS sky texture" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestListCBOR(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"a.txt": "hello"})
	out := filepath.Join(dir, "one.pac")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-m", "pack", "-i", in, "-o", out}, &stdout, &stderr); err != nil {
		t.Fatalf("pack: %v", err)
	}
	stdout.Reset()
	if err := run([]string{"-m", "list", "-i", out, "--format", "cbor"}, &stdout, &stderr); err != nil {
		t.Fatalf("list: %v", err)
	}
	var rows []listing
	if err := cbor.Unmarshal(stdout.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "a.txt" || rows[0].Type != "ResText" {
		t.Errorf("got %+v", rows)
	}
}

func TestFlagValidation(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"NoMode", []string{"-i", "x"}, "mode is required"},
		{"NoInput", []string{"-m", "list"}, "input is required"},
		{"ExtractNoOutput", []string{"-m", "extract", "-i", "x.pac"}, "requires --output"},
		{"BadMode", []string{"-m", "mount", "-i", "x"}, "mode must be"},
		{"BadFormat", []string{"-m", "list", "-i", "x", "--format", "xml"}, "format must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(tt.args, &stdout, &stderr)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestExtractRefusesNonEmptyDir(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"a.txt": "hello"})
	out := filepath.Join(dir, "a.pac")
	var stdout, stderr bytes.Buffer
	if err := run([]string{"-m", "pack", "-i", in, "-o", out}, &stdout, &stderr); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if err := run([]string{"-m", "extract", "-i", out, "-o", in}, &stdout, &stderr); err == nil {
		t.Error("expected error for non-empty output directory")
	}
}
