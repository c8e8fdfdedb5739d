package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

type extractConfig struct {
	typeDirs     bool
	allowedTypes map[string]bool
}

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

// WithTypeDirs places every entry under a directory named after its type.
func WithTypeDirs(enabled bool) ExtractOption {
	return func(c *extractConfig) {
		c.typeDirs = enabled
	}
}

// WithTypeFilter limits extraction to the given resource types.
func WithTypeFilter(types []string) ExtractOption {
	return func(c *extractConfig) {
		if len(types) == 0 {
			return
		}
		c.allowedTypes = make(map[string]bool, len(types))
		for _, t := range types {
			c.allowedTypes[t] = true
		}
	}
}

// Extract writes every entry with a payload below outputDir and returns how
// many files were written. Names that would escape outputDir are rejected.
func (a *Archive) Extract(outputDir string, opts ...ExtractOption) (int, error) {
	cfg := &extractConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	createdDirs := make(map[string]struct{})
	written := 0
	for _, e := range a.entries {
		if e.Proxy {
			continue
		}
		if len(cfg.allowedTypes) > 0 && !cfg.allowedTypes[e.Type] {
			continue
		}

		rel, err := safeRel(e.Name)
		if err != nil {
			return written, err
		}
		if cfg.typeDirs {
			rel = filepath.Join(e.Type, rel)
		}
		filePath := filepath.Join(outputDir, rel)

		dir := filepath.Dir(filePath)
		if _, exists := createdDirs[dir]; !exists {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return written, fmt.Errorf("create dir %s: %w", dir, err)
			}
			createdDirs[dir] = struct{}{}
		}

		if err := os.WriteFile(filePath, e.Data, 0644); err != nil {
			return written, fmt.Errorf("write file %s: %w", filePath, err)
		}
		written++
	}
	return written, nil
}

// safeRel turns an entry name into a relative path that stays inside the
// output directory.
func safeRel(name string) (string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if rel == "" || filepath.IsAbs(rel) || !filepath.IsLocal(rel) {
		return "", blob.Invalidf("entry name %q escapes the output directory", name)
	}
	return rel, nil
}
