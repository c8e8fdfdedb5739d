package archive

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/EchoTools/pacFileTools/pkg/bina"
	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/EchoTools/pacFileTools/pkg/codec"
	"github.com/EchoTools/pacFileTools/pkg/legacy"
	"github.com/EchoTools/pacFileTools/pkg/pacv2"
	"github.com/EchoTools/pacFileTools/pkg/pacv3"
)

// Options configures Save.
type Options struct {
	// Kind of archive to write. Auto picks Legacy for an .ar root and Gen3
	// otherwise.
	Kind Kind
	// SplitLimit is the fragment size limit in bytes; zero disables
	// splitting.
	SplitLimit uint64
	// Padding aligns payloads; zero uses the format default.
	Padding uint32
	// GenerateIndex writes an ARL index for legacy archives.
	GenerateIndex bool
	// IndexNames adds entry names to the ARL index.
	IndexNames bool
	// Compression wraps every output file in an envelope.
	Compression codec.Kind
	// BigEndian writes containers in big-endian order.
	BigEndian bool

	// WriteFile stores finished files; nil writes to disk.
	WriteFile blob.WriteFunc
	Logger    *slog.Logger
}

func (o Options) resolveKind(root string) Kind {
	if o.Kind != Auto {
		return o.Kind
	}
	if strings.EqualFold(filepath.Ext(root), legacy.Ext) {
		return Legacy
	}
	return Gen3
}

// Save writes entries as an archive at root and returns every path written.
func Save(entries []blob.Entry, opts Options, root string) ([]string, error) {
	if root == "" {
		return nil, blob.Invalidf("empty archive path")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch opts.Compression {
	case codec.None, codec.Zstd, codec.LZ4, codec.Zlib:
	default:
		return nil, fmt.Errorf("%w: cannot write %s envelopes", blob.ErrUnsupported, opts.Compression)
	}
	writeFile := codec.Wrap(opts.Compression, opts.WriteFile)

	kind := opts.resolveKind(root)
	logger.Debug("saving archive", "root", root, "kind", kind, "entries", len(entries),
		"split_limit", opts.SplitLimit, "compression", opts.Compression)

	var (
		paths []string
		err   error
	)
	switch kind {
	case Legacy:
		if opts.BigEndian {
			return nil, blob.Invalidf("legacy archives are always little-endian")
		}
		paths, err = legacy.Write(root, entries, legacy.WriteOptions{
			SplitLimit:    opts.SplitLimit,
			Padding:       opts.Padding,
			GenerateIndex: opts.GenerateIndex,
			IndexNames:    opts.IndexNames,
			WriteFile:     writeFile,
			Logger:        logger,
		})
	case Gen2, Gen3:
		if opts.GenerateIndex {
			logger.Debug("index files only exist for legacy archives", "kind", kind)
		}
		var items []bina.Item
		items, err = toItems(entries)
		if err != nil {
			return nil, err
		}
		var order binary.ByteOrder = binary.LittleEndian
		if opts.BigEndian {
			order = binary.BigEndian
		}
		if kind == Gen2 {
			paths, err = pacv2.WriteSplit(root, items, pacv2.WriteOptions{
				BuildOptions: pacv2.BuildOptions{Padding: uint64(opts.Padding), Order: order},
				SplitLimit:   opts.SplitLimit,
				WriteFile:    writeFile,
				Logger:       logger,
			})
		} else {
			paths, err = pacv3.WriteSplit(root, items, pacv3.WriteOptions{
				BuildOptions: pacv3.BuildOptions{Padding: uint64(opts.Padding), Order: order},
				SplitLimit:   opts.SplitLimit,
				WriteFile:    writeFile,
				Logger:       logger,
			})
		}
	default:
		return nil, blob.Invalidf("unknown archive kind %d", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", root, err)
	}
	return paths, nil
}

func toItems(entries []blob.Entry) ([]bina.Item, error) {
	items := make([]bina.Item, 0, len(entries))
	for _, e := range entries {
		data, err := e.Bytes()
		if err != nil {
			return nil, err
		}
		items = append(items, bina.Item{Name: e.Name(), Data: data})
	}
	return items, nil
}
