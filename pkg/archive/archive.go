// Package archive is the entry point for reading and writing game archives.
// It detects the format, gathers every fragment of a split archive, merges
// them into one logical view and dispatches entries to per-type handlers.
package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/EchoTools/pacFileTools/pkg/bina"
	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/EchoTools/pacFileTools/pkg/codec"
	"github.com/EchoTools/pacFileTools/pkg/legacy"
	"github.com/EchoTools/pacFileTools/pkg/pacv2"
	"github.com/EchoTools/pacFileTools/pkg/pacv3"
	"github.com/EchoTools/pacFileTools/pkg/split"
)

// Entry is one file of a loaded archive. Data aliases the buffer of the file
// it came from and is nil for proxies, which only announce an entry stored
// in a fragment that did not provide it.
type Entry struct {
	Type     string
	Name     string
	Size     uint64
	Proxy    bool
	Data     []byte
	Fragment int // index into Archive.Paths
}

// Archive is the merged content of a root file and its fragments.
type Archive struct {
	Kind Kind
	Root string
	// Paths lists every file that was read, the root (or first fragment)
	// first.
	Paths []string
	// Compression is the envelope found on the first file.
	Compression codec.Kind

	entries []Entry
}

// Entries returns every entry, including proxies no fragment satisfied. A
// generation 2 split root also contributes its dependency entry, a proxy of
// type ResPacDepend named after the root.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of entries.
func (a *Archive) Len() int { return len(a.entries) }

// Find returns the first entry with the given full name.
func (a *Archive) Find(name string) (Entry, bool) {
	for _, e := range a.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Walk calls fn for every entry in load order and stops at the first error.
func (a *Archive) Walk(fn func(Entry) error) error {
	for _, e := range a.entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

type loadConfig struct {
	logger *slog.Logger
	// containersOnly is set when the file name already says .pac.
	containersOnly bool
}

// LoadOption configures Load and LoadKind.
type LoadOption func(*loadConfig)

// WithLogger sets the logger used while locating fragments.
func WithLogger(l *slog.Logger) LoadOption {
	return func(c *loadConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Load reads the archive at path, detecting its format. A fragment path
// loads the whole set when its root file is present.
func Load(path string, opts ...LoadOption) (*Archive, error) {
	return LoadKind(path, Auto, opts...)
}

// LoadKind reads the archive at path as kind. Any missing or malformed
// fragment fails the whole load.
func LoadKind(path string, kind Kind, opts ...LoadOption) (*Archive, error) {
	cfg := loadConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if path == "" {
		return nil, blob.Invalidf("empty path")
	}
	if kind > Gen3 {
		return nil, blob.Invalidf("unknown archive kind %d", kind)
	}

	root := path
	info := split.Detect(path)
	if info.IsFragment() {
		root = info.Root
	}
	if strings.EqualFold(filepath.Ext(root), legacy.IndexExt) {
		root = strings.TrimSuffix(root, filepath.Ext(root)) + legacy.Ext
	}
	switch familyOf(root) {
	case familyLegacy:
		if kind == Auto {
			kind = Legacy
		}
	case familyContainer:
		cfg.containersOnly = true
	}

	var (
		a   *Archive
		err error
	)
	if kind == Legacy {
		a, err = loadLegacySet(root, cfg)
	} else {
		target := path
		if info.IsFragment() && fileExists(root) {
			target = root
		}
		a, err = loadContainerSet(target, kind, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return a, nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// parsed is one file's contribution to an archive.
type parsed struct {
	kind      Kind
	entries   []Entry
	splits    []string
	hasSplits bool
	isRoot    bool
}

func parseBuffer(kind Kind, buf *blob.Buffer) (parsed, error) {
	p := parsed{kind: kind}
	switch kind {
	case Gen2:
		f, err := pacv2.Parse(buf)
		if err != nil {
			return p, err
		}
		for _, e := range f.Entries {
			p.entries = append(p.entries, Entry{Type: e.Type, Name: e.Name, Size: uint64(e.Size), Proxy: e.Proxy, Data: e.Data})
		}
		p.splits = f.Splits
		p.hasSplits = f.Flags&bina.FlagHasSplits != 0 || len(f.Splits) > 0
		p.isRoot = f.IsRoot()
	case Gen3:
		f, err := pacv3.Parse(buf)
		if err != nil {
			return p, err
		}
		for _, e := range f.Entries {
			p.entries = append(p.entries, Entry{Type: e.Type, Name: e.Name, Size: uint64(e.Size), Proxy: e.Proxy, Data: e.Data})
		}
		p.splits = f.Splits
		p.hasSplits = f.Flags&bina.FlagHasSplits != 0 || len(f.Splits) > 0
		p.isRoot = f.IsRoot()
	case Legacy:
		f, err := legacy.Parse(buf)
		if err != nil {
			return p, err
		}
		for _, e := range f.Entries {
			_, ext := bina.SplitName(e.Name)
			p.entries = append(p.entries, Entry{Type: bina.TypeForExt(ext), Name: e.Name, Size: uint64(len(e.Data)), Data: e.Data})
		}
		p.isRoot = true
	default:
		return p, blob.Invalidf("cannot parse kind %s", kind)
	}
	return p, nil
}

// loadFile reads, unwraps and parses one file. want is Auto or the kind the
// content must have.
func loadFile(path string, want Kind, cfg loadConfig) (parsed, codec.Kind, error) {
	buf, comp, err := codec.Load(path)
	if err != nil {
		return parsed{}, comp, err
	}
	got, err := sniff(buf.Data, !cfg.containersOnly)
	if err != nil {
		if want == Auto {
			return parsed{}, comp, err
		}
		got = want
	}
	if want != Auto && got != want {
		return parsed{}, comp, blob.Corruptf("%s holds a %s archive, not %s", filepath.Base(path), got, want)
	}
	p, err := parseBuffer(got, buf)
	return p, comp, err
}

func loadContainerSet(path string, kind Kind, cfg loadConfig) (*Archive, error) {
	first, comp, err := loadFile(path, kind, cfg)
	if err != nil {
		return nil, err
	}
	a := &Archive{Kind: first.kind, Root: path, Paths: []string{path}, Compression: comp}
	all := tag(first.entries, 0)

	if first.isRoot && first.hasSplits && first.kind != Legacy {
		paths, err := split.Resolve(path, first.kind.digits(), first.splits, cfg.logger)
		if err != nil {
			return nil, err
		}
		frags, err := split.LoadAll(paths, func(p string) (parsed, error) {
			frag, _, err := loadFile(p, first.kind, cfg)
			return frag, err
		})
		if err != nil {
			return nil, err
		}
		for i, frag := range frags {
			if frag.hasSplits {
				return nil, blob.Corruptf("fragment %s declares its own splits", filepath.Base(paths[i]))
			}
			a.Paths = append(a.Paths, paths[i])
			all = append(all, tag(frag.entries, i+1)...)
		}
		cfg.logger.Debug("loaded split archive", "root", path, "fragments", len(frags))
	}

	a.entries, err = union(all)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func loadLegacySet(root string, cfg loadConfig) (*Archive, error) {
	var (
		paths []string
		sizes []uint32
	)
	switch indexPath := legacy.IndexPath(root); {
	case fileExists(root):
		paths = []string{root}
	case fileExists(indexPath):
		idx, err := legacy.ReadIndex(indexPath)
		if err != nil {
			return nil, err
		}
		names, err := split.Names(filepath.Base(root), len(idx.SplitSizes), split.TwoDigits)
		if err != nil {
			return nil, blob.Corruptf("index %s: %v", filepath.Base(indexPath), err)
		}
		paths, err = split.Resolve(root, split.TwoDigits, names, cfg.logger)
		if err != nil {
			return nil, err
		}
		sizes = idx.SplitSizes
	default:
		var err error
		paths, err = split.Probe(root, split.TwoDigits)
		if err != nil {
			return nil, err
		}
		cfg.logger.Debug("probed legacy fragments", "root", root, "count", len(paths))
	}

	a := &Archive{Kind: Legacy, Root: root, Paths: paths}
	var all []Entry
	for i, p := range paths {
		buf, comp, err := codec.Load(p)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			a.Compression = comp
		}
		if sizes != nil && buf.Len() != uint64(sizes[i]) {
			return nil, blob.Corruptf("%s is %d bytes, index records %d", filepath.Base(p), buf.Len(), sizes[i])
		}
		frag, err := parseBuffer(Legacy, buf)
		if err != nil {
			return nil, fmt.Errorf("fragment %s: %w", filepath.Base(p), err)
		}
		all = append(all, tag(frag.entries, i)...)
	}

	var err error
	a.entries, err = union(all)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func tag(entries []Entry, fragment int) []Entry {
	for i := range entries {
		entries[i].Fragment = fragment
	}
	return entries
}

// union drops proxies that some file satisfied. Two real entries with the
// same type and name are corruption.
func union(all []Entry) ([]Entry, error) {
	type key struct{ typ, name string }
	real := make(map[key]int, len(all))
	for i, e := range all {
		if e.Proxy {
			continue
		}
		k := key{e.Type, e.Name}
		if j, dup := real[k]; dup {
			return nil, blob.Corruptf("entry %q stored in fragments %d and %d", e.Name, all[j].Fragment, e.Fragment)
		}
		real[k] = i
	}
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.Proxy {
			if _, ok := real[key{e.Type, e.Name}]; ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}
