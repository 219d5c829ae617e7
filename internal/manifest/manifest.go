// Package manifest persists a translation run's output through an
// afero.Fs: one or more sharded host source files, a separate
// function-table initialization file, and a build manifest enumerating
// both, the same afero seam internal/analyzer's LoadHints uses so the
// writer can be driven against afero.NewMemMapFs() in tests and the OS
// filesystem in cmd/codegen.
package manifest

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/xenonrecomp/xenonrecomp/internal/emitter"
	"github.com/xenonrecomp/xenonrecomp/version"
)

// DefaultShardSize bounds how many functions land in one source file,
// keeping individual host files at a size gofmt/go vet/an editor can
// still comfortably handle for a large image.
const DefaultShardSize = 256

// Manifest enumerates every file one Write call produced.
type Manifest struct {
	Project       string   `json:"project"`
	SourceFiles   []string `json:"source_files"`
	FuncTableFile string   `json:"func_table_file"`
	FunctionCount int      `json:"function_count"`
	ToolVersion   string   `json:"tool_version"`
}

// Writer shards an emitted function set to disk (or any afero.Fs).
type Writer struct {
	Fs        afero.Fs
	Dir       string
	Project   string
	Package   string
	ShardSize int // functions per source file; 0 means DefaultShardSize
}

func (w *Writer) shardSize() int {
	if w.ShardSize > 0 {
		return w.ShardSize
	}
	return DefaultShardSize
}

// Write renders decls into sharded `<project>_ppc_recomp_N.go` source
// files, a `<project>_ppc_recomp_functable.go` function-table file, and
// a `<project>_manifest.json` enumerating all of it, and returns the
// manifest that was written.
func (w *Writer) Write(decls []emitter.FuncDecl) (*Manifest, error) {
	if err := w.Fs.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("manifest: create output dir %s: %w", w.Dir, err)
	}

	sourceFiles, err := w.writeShards(decls)
	if err != nil {
		return nil, err
	}

	tableFile := fmt.Sprintf("%s_ppc_recomp_functable.go", w.Project)
	tableSrc, err := emitter.PrintFuncTable(w.Package, decls)
	if err != nil {
		return nil, fmt.Errorf("manifest: render %s: %w", tableFile, err)
	}
	if err := w.writeFile(tableFile, tableSrc); err != nil {
		return nil, err
	}

	m := &Manifest{
		Project:       w.Project,
		SourceFiles:   sourceFiles,
		FuncTableFile: tableFile,
		FunctionCount: len(decls),
		ToolVersion:   version.Current.FullString(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal manifest: %w", err)
	}
	manifestName := w.Project + "_manifest.json"
	if err := w.writeFile(manifestName, string(data)); err != nil {
		return nil, err
	}
	return m, nil
}

func (w *Writer) writeShards(decls []emitter.FuncDecl) ([]string, error) {
	shardSize := w.shardSize()
	var names []string

	if len(decls) == 0 {
		name := fmt.Sprintf("%s_ppc_recomp_0.go", w.Project)
		src, err := emitter.PrintSources(w.Package, nil)
		if err != nil {
			return nil, fmt.Errorf("manifest: render %s: %w", name, err)
		}
		if err := w.writeFile(name, src); err != nil {
			return nil, err
		}
		return []string{name}, nil
	}

	for i := 0; i < len(decls); i += shardSize {
		end := i + shardSize
		if end > len(decls) {
			end = len(decls)
		}
		name := fmt.Sprintf("%s_ppc_recomp_%d.go", w.Project, i/shardSize)
		src, err := emitter.PrintSources(w.Package, decls[i:end])
		if err != nil {
			return nil, fmt.Errorf("manifest: render %s: %w", name, err)
		}
		if err := w.writeFile(name, src); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (w *Writer) writeFile(name, contents string) error {
	path := filepath.Join(w.Dir, name)
	if err := afero.WriteFile(w.Fs, path, []byte(contents), 0644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}

// Read loads a previously written manifest back from fs, for a build
// step that wants the file list without re-running translation.
func Read(fs afero.Fs, dir, project string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, filepath.Join(dir, project+"_manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("manifest: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse manifest: %w", err)
	}
	return &m, nil
}
