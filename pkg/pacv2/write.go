package pacv2

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/EchoTools/pacFileTools/pkg/bina"
	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/EchoTools/pacFileTools/pkg/split"
)

// WriteOptions configures WriteSplit.
type WriteOptions struct {
	BuildOptions
	// SplitLimit caps the payload bytes per fragment. Zero disables
	// splitting.
	SplitLimit uint64

	WriteFile blob.WriteFunc
	Logger    *slog.Logger
}

// WriteSplit writes items to root. When they exceed the split limit the
// payloads go to root.00, root.01, ... and root only carries the dependency
// entry naming those fragments plus a proxy for every entry. It returns the
// paths written, root last.
func WriteSplit(root string, items []bina.Item, opts WriteOptions) ([]string, error) {
	writeFile := opts.WriteFile
	if writeFile == nil {
		writeFile = blob.WriteFile
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fragments, proxies := bina.PlanSplit(items, opts.SplitLimit)
	if fragments == nil {
		bo := opts.BuildOptions
		bo.Flags |= bina.FlagRoot
		data, err := Build(items, bo)
		if err != nil {
			return nil, err
		}
		if err := writeFile(root, data); err != nil {
			return nil, err
		}
		return []string{root}, nil
	}

	base := filepath.Base(root)
	names, err := split.Names(base, len(fragments), split.TwoDigits)
	if err != nil {
		return nil, err
	}
	var paths []string
	for i, frag := range fragments {
		bo := opts.BuildOptions
		bo.Flags = bina.FlagSplit
		bo.Splits = nil
		data, err := Build(frag, bo)
		if err != nil {
			return nil, fmt.Errorf("fragment %s: %w", names[i], err)
		}
		path := filepath.Join(filepath.Dir(root), names[i])
		if err := writeFile(path, data); err != nil {
			return nil, err
		}
		logger.Debug("wrote fragment", "path", path, "entries", len(frag), "bytes", len(data))
		paths = append(paths, path)
	}

	bo := opts.BuildOptions
	bo.Flags = bina.FlagRoot | bina.FlagHasSplits
	bo.Splits = names
	bo.DependencyName, _ = bina.SplitName(base)
	data, err := Build(proxies, bo)
	if err != nil {
		return nil, err
	}
	if err := writeFile(root, data); err != nil {
		return nil, err
	}
	return append(paths, root), nil
}
