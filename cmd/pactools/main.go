// Package main provides a command-line tool for extracting, packing and
// listing game archives.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"

	"github.com/EchoTools/pacFileTools/pkg/archive"
	"github.com/EchoTools/pacFileTools/pkg/codec"
	"github.com/EchoTools/pacFileTools/pkg/config"
)

type options struct {
	mode           string
	input          string
	output         string
	configPath     string
	kind           string
	splitLimit     string
	padding        uint32
	index          bool
	indexNames     bool
	compression    string
	bigEndian      bool
	forceOverwrite bool
	typeDirs       bool
	types          []string
	format         string
	digest         bool
	verbose        bool
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("pactools", pflag.ContinueOnError)
	fs.StringVarP(&o.mode, "mode", "m", "", "Operation mode: extract, pack, list")
	fs.StringVarP(&o.input, "input", "i", "", "Archive to read (extract, list) or directory to pack")
	fs.StringVarP(&o.output, "output", "o", "", "Output directory (extract) or archive path (pack)")
	fs.StringVar(&o.configPath, "config", "", "YAML config file (default $"+config.EnvVar+")")
	fs.StringVar(&o.kind, "kind", "", "Archive kind: auto, legacy, gen2, gen3")
	fs.StringVar(&o.splitLimit, "split-limit", "", "Fragment size limit, e.g. 64MiB (0 disables splitting)")
	fs.Uint32Var(&o.padding, "padding", 0, "Payload alignment in bytes")
	fs.BoolVar(&o.index, "index", false, "Write an ARL index for legacy archives")
	fs.BoolVar(&o.indexNames, "index-names", false, "Include entry names in the ARL index")
	fs.StringVar(&o.compression, "compression", "", "Output envelope: none, zstd, lz4, zlib")
	fs.BoolVar(&o.bigEndian, "big-endian", false, "Write containers in big-endian byte order")
	fs.BoolVar(&o.forceOverwrite, "force", false, "Allow non-empty output directory")
	fs.BoolVar(&o.typeDirs, "type-dirs", false, "Extract into one directory per resource type")
	fs.StringSliceVar(&o.types, "types", nil, "Only extract these resource types")
	fs.StringVar(&o.format, "format", "text", "List format: text, json, cbor")
	fs.BoolVar(&o.digest, "digest", false, "Include a BLAKE3 digest per entry when listing")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "Log debug output to stderr")
	return fs
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var o options
	fs := newFlagSet(&o)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validateFlags(&o); err != nil {
		fmt.Fprintln(stderr, "Usage of pactools:")
		fs.PrintDefaults()
		return err
	}

	cfg, err := loadConfig(&o, fs)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	switch o.mode {
	case "extract":
		return runExtract(&o, stdout, logger)
	case "pack":
		return runPack(&o, cfg, stdout, logger)
	case "list":
		return runList(&o, stdout, logger)
	default:
		return fmt.Errorf("unknown mode: %s", o.mode)
	}
}

func validateFlags(o *options) error {
	if o.mode == "" {
		return fmt.Errorf("mode is required")
	}
	if o.input == "" {
		return fmt.Errorf("input is required")
	}

	switch o.mode {
	case "extract", "pack":
		if o.output == "" {
			return fmt.Errorf("%s mode requires --output", o.mode)
		}
	case "list":
		switch o.format {
		case "text", "json", "cbor":
		default:
			return fmt.Errorf("format must be text, json or cbor")
		}
	default:
		return fmt.Errorf("mode must be 'extract', 'pack' or 'list'")
	}
	return nil
}

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig(o *options, fs *pflag.FlagSet) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if fs.Changed("kind") {
		if cfg.Kind, err = archive.ParseKind(o.kind); err != nil {
			return nil, err
		}
	}
	if fs.Changed("split-limit") {
		if cfg.SplitLimit, err = config.ParseSize(o.splitLimit); err != nil {
			return nil, err
		}
	}
	if fs.Changed("padding") {
		cfg.Padding = o.padding
	}
	if fs.Changed("index") {
		cfg.Index = o.index
	}
	if fs.Changed("index-names") {
		cfg.IndexNames = o.indexNames
	}
	if fs.Changed("compression") {
		if cfg.Compression, err = codec.ParseKind(o.compression); err != nil {
			return nil, err
		}
	}
	if fs.Changed("big-endian") {
		cfg.BigEndian = o.bigEndian
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func prepareOutputDir(dir string, force bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if !force {
		empty, err := isDirEmpty(dir)
		if err != nil {
			return fmt.Errorf("check output directory: %w", err)
		}
		if !empty {
			return fmt.Errorf("output directory is not empty (use --force to override)")
		}
	}
	return nil
}

func isDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdir(1)
	return err == io.EOF, nil
}

func runExtract(o *options, stdout io.Writer, logger *slog.Logger) error {
	a, err := archive.Load(o.input, archive.WithLogger(logger))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Archive loaded: %d entries from %d files (%s)\n", a.Len(), len(a.Paths), a.Kind)

	if err := prepareOutputDir(o.output, o.forceOverwrite); err != nil {
		return err
	}

	n, err := a.Extract(o.output, archive.WithTypeDirs(o.typeDirs), archive.WithTypeFilter(o.types))
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	fmt.Fprintf(stdout, "Extraction complete. %d files written to %s\n", n, o.output)
	return nil
}

func runPack(o *options, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	entries, err := archive.ScanDir(o.input)
	if err != nil {
		return fmt.Errorf("scan files: %w", err)
	}
	var total uint64
	for _, e := range entries {
		total += uint64(e.Size())
	}
	fmt.Fprintf(stdout, "Found %d files (%s)\n", len(entries), humanize.IBytes(total))

	paths, err := archive.Save(entries, cfg.Options(logger), o.output)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(stdout, "  %s\n", p)
	}
	fmt.Fprintf(stdout, "Pack complete. %d files written\n", len(paths))
	return nil
}

// listing is one row of list output.
type listing struct {
	Name     string `json:"name" cbor:"1,keyasint"`
	Type     string `json:"type" cbor:"2,keyasint"`
	Size     uint64 `json:"size" cbor:"3,keyasint"`
	Proxy    bool   `json:"proxy,omitempty" cbor:"4,keyasint,omitempty"`
	File     string `json:"file" cbor:"5,keyasint"`
	Checksum string `json:"blake3,omitempty" cbor:"6,keyasint,omitempty"`
}

func runList(o *options, stdout io.Writer, logger *slog.Logger) error {
	a, err := archive.Load(o.input, archive.WithLogger(logger))
	if err != nil {
		return err
	}

	rows := make([]listing, 0, a.Len())
	err = a.Walk(func(e archive.Entry) error {
		row := listing{
			Name:  e.Name,
			Type:  e.Type,
			Size:  e.Size,
			Proxy: e.Proxy,
			File:  a.Paths[e.Fragment],
		}
		if o.digest && !e.Proxy {
			sum := blake3.Sum256(e.Data)
			row.Checksum = hex.EncodeToString(sum[:])
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return err
	}

	switch o.format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "cbor":
		data, err := cbor.Marshal(rows)
		if err != nil {
			return fmt.Errorf("encode cbor: %w", err)
		}
		_, err = stdout.Write(data)
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TYPE\tSIZE\tNAME\n")
	for _, r := range rows {
		name := r.Name
		if r.Proxy {
			name += " (proxy)"
		}
		if r.Checksum != "" {
			name += "  " + r.Checksum
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Type, humanize.IBytes(r.Size), name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d entries, %s, %s\n", len(rows), a.Kind, a.Compression)
	return nil
}
