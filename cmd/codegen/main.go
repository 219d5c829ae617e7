// Command codegen drives the analyzer/emitter/manifest pipeline end to
// end: load a config describing an already-loaded image, discover its
// functions, translate them to Go source, and persist the result
// through internal/manifest. Flag registration in init() plus a thin
// main() dispatch mirrors virtualxt.go's shape, generalized from
// emulator startup flags to translation-run flags.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"github.com/xenonrecomp/xenonrecomp/internal/analyzer"
	"github.com/xenonrecomp/xenonrecomp/internal/emitter"
	"github.com/xenonrecomp/xenonrecomp/internal/manifest"
	"github.com/xenonrecomp/xenonrecomp/version"
)

var (
	configPath              string
	force                   bool
	enableExceptionHandlers bool
	printVersion            bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the translation run config (required)")
	flag.BoolVar(&force, "force", false, "Continue past validation diagnostics instead of failing")
	flag.BoolVar(&enableExceptionHandlers, "enable-exception-handlers", false, "Seed discovery from the hints sidecar's exception_handler_func_hints")
	flag.BoolVar(&printVersion, "version", false, "Print the codegen tool version and exit")
}

// segmentConfig describes one already-extracted image segment. codegen
// builds an analyzer.Image directly from these rather than parsing a
// container format itself, since XEX/ELF parsing happens upstream of
// internal/analyzer (and therefore of this command too).
type segmentConfig struct {
	File    string `json:"file"`
	Base    string `json:"base"`
	Read    bool   `json:"read"`
	Write   bool   `json:"write"`
	Execute bool   `json:"execute"`
}

// config is the --config file's schema: enough to construct an
// analyzer.Image and analyzer.Options without a real XEX/ELF loader,
// plus the output location internal/manifest writes to.
type config struct {
	Project    string          `json:"project"`
	Package    string          `json:"package"`
	OutputDir  string          `json:"output_dir"`
	EntryPoint string          `json:"entry_point"`
	Segments   []segmentConfig `json:"segments"`
	Hints      string          `json:"hints,omitempty"`
}

func parseHex32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("parse address %q: %w", s, err)
	}
	return uint32(v), nil
}

func loadConfig(fs afero.Fs, path string) (*config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// buildImage resolves every segment's backing file relative to dir
// (the config file's own directory, so configs are relocatable) and
// assembles the analyzer.Image the discovery pass walks.
func buildImage(fs afero.Fs, dir string, cfg *config) (*analyzer.Image, error) {
	entry, err := parseHex32(cfg.EntryPoint)
	if err != nil {
		return nil, err
	}

	img := &analyzer.Image{EntryPoint: entry}
	for _, sc := range cfg.Segments {
		base, err := parseHex32(sc.Base)
		if err != nil {
			return nil, err
		}
		path := sc.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("read segment %s: %w", sc.File, err)
		}

		var flags analyzer.SegmentFlags
		if sc.Read {
			flags |= analyzer.SegRead
		}
		if sc.Write {
			flags |= analyzer.SegWrite
		}
		if sc.Execute {
			flags |= analyzer.SegExecute
		}
		img.Segments = append(img.Segments, analyzer.Segment{GuestBase: base, Data: data, Flags: flags})
	}
	return img, nil
}

func main() {
	flag.Parse()
	if printVersion {
		fmt.Printf("codegen %s (%s)\n", version.Current.FullString(), version.Hash)
		return
	}
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "codegen: -config is required")
		os.Exit(2)
	}

	fs := afero.NewOsFs()
	dir := filepath.Dir(configPath)

	cfg, err := loadConfig(fs, configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	img, err := buildImage(fs, dir, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	hints := analyzer.EmptyHints()
	if cfg.Hints != "" {
		hintsPath := cfg.Hints
		if !filepath.IsAbs(hintsPath) {
			hintsPath = filepath.Join(dir, hintsPath)
		}
		hints, err = analyzer.LoadHints(fs, hintsPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	opts := analyzer.DefaultOptions()
	opts.Force = force
	opts.EnableExceptionHandlers = enableExceptionHandlers

	graph, diags := analyzer.Load(img, hints, opts)
	if !reportDiagnostics(diags, force) {
		os.Exit(1)
	}

	e := &emitter.Emitter{PackageName: cfg.Package}
	decls, emitDiags := e.EmitGraph(img, graph)
	if !reportDiagnostics(emitDiags, force) {
		os.Exit(1)
	}

	w := &manifest.Writer{Fs: fs, Dir: cfg.OutputDir, Project: cfg.Project, Package: cfg.Package}
	m, err := w.Write(decls)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("wrote %d functions across %d source files to %s\n", m.FunctionCount, len(m.SourceFiles), cfg.OutputDir)
}

// reportDiagnostics prints every diagnostic in diags and reports
// whether the run should continue: a non-empty list is fatal unless
// -force was given, in which case it's printed as a warning set.
func reportDiagnostics(diags []error, force bool) bool {
	if len(diags) == 0 {
		return true
	}
	combined := analyzer.Combine(diags)
	if force {
		fmt.Fprintf(os.Stderr, "codegen: %d diagnostics (continuing, -force set):\n%s\n", len(diags), combined)
		return true
	}
	fmt.Fprintf(os.Stderr, "codegen: %d diagnostics:\n%s\n", len(diags), combined)
	return false
}
