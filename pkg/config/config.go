// Package config loads the defaults used when packing archives.
//
// Configuration comes from a single YAML file named by the PACTOOLS_CONFIG
// environment variable or the --config flag. Without either, built-in
// defaults apply. Command-line flags override whatever the file sets.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/EchoTools/pacFileTools/pkg/archive"
	"github.com/EchoTools/pacFileTools/pkg/blob"
	"github.com/EchoTools/pacFileTools/pkg/codec"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "PACTOOLS_CONFIG"

// Size is a byte count written either as a number or with a unit ("64 MiB").
type Size uint64

func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}

func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Size) UnmarshalText(text []byte) error {
	v, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSize parses a byte count such as "1048576", "512KiB" or "64 MB".
func ParseSize(text string) (Size, error) {
	if text == "" || text == "0" {
		return 0, nil
	}
	v, err := humanize.ParseBytes(text)
	if err != nil {
		return 0, blob.Invalidf("size %q: %v", text, err)
	}
	return Size(v), nil
}

// Config holds pack defaults.
type Config struct {
	// Kind is the archive format to write.
	Kind archive.Kind `yaml:"kind"`

	// SplitLimit is the fragment size limit. Zero disables splitting.
	SplitLimit Size `yaml:"split_limit"`

	// Padding is the payload alignment; zero uses the format default.
	Padding uint32 `yaml:"padding"`

	// Index writes an ARL index next to legacy archives, with entry names
	// when IndexNames is set.
	Index      bool `yaml:"index"`
	IndexNames bool `yaml:"index_names"`

	// Compression wraps each output file in an envelope.
	Compression codec.Kind `yaml:"compression"`

	// BigEndian writes containers in big-endian byte order.
	BigEndian bool `yaml:"big_endian"`

	// LogLevel is the minimum level logged to stderr.
	LogLevel slog.Level `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Kind:     archive.Auto,
		LogLevel: slog.LevelWarn,
	}
}

// Load reads the file named by PACTOOLS_CONFIG, or returns the defaults when
// the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path on top of the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config %s", blob.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of the defaults. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", blob.ErrInvalidArgument, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field combinations.
func (c *Config) Validate() error {
	if c.Kind > archive.Gen3 {
		return blob.Invalidf("unknown archive kind %d", c.Kind)
	}
	if c.Padding != 0 && (c.Padding < 4 || c.Padding&(c.Padding-1) != 0) {
		return blob.Invalidf("padding %d is not a power of two >= 4", c.Padding)
	}
	if c.Compression == codec.XCompress {
		return fmt.Errorf("%w: xcompress output", blob.ErrUnsupported)
	}
	if c.Kind == archive.Legacy && c.BigEndian {
		return blob.Invalidf("legacy archives cannot be big-endian")
	}
	return nil
}

// Options converts the configuration into save options.
func (c *Config) Options(logger *slog.Logger) archive.Options {
	return archive.Options{
		Kind:          c.Kind,
		SplitLimit:    uint64(c.SplitLimit),
		Padding:       c.Padding,
		GenerateIndex: c.Index,
		IndexNames:    c.IndexNames,
		Compression:   c.Compression,
		BigEndian:     c.BigEndian,
		Logger:        logger,
	}
}
