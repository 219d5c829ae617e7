package manifest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/xenonrecomp/xenonrecomp/internal/emitter"
)

func declsNamed(n int) []emitter.FuncDecl {
	decls := make([]emitter.FuncDecl, n)
	for i := range decls {
		addr := uint32(0x80000000 + i*4)
		decls[i] = emitter.FuncDecl{
			Name: fmt.Sprintf("Fn_%08X", addr),
			Addr: addr,
			Body: []emitter.Stmt{emitter.Raw("ctx.GPR[3].SetU32(0)")},
		}
	}
	return decls
}

func TestWriteShardsAcrossMultipleSourceFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := &Writer{Fs: fs, Dir: "/out", Project: "game", Package: "recompiled", ShardSize: 2}

	m, err := w.Write(declsNamed(5))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(m.SourceFiles) != 3 {
		t.Fatalf("expected 3 shards for 5 functions at size 2, got %d: %v", len(m.SourceFiles), m.SourceFiles)
	}
	if m.FunctionCount != 5 {
		t.Fatalf("expected function count 5, got %d", m.FunctionCount)
	}
	if m.FuncTableFile != "game_ppc_recomp_functable.go" {
		t.Fatalf("unexpected func table file name %q", m.FuncTableFile)
	}

	for _, name := range m.SourceFiles {
		data, err := afero.ReadFile(fs, "/out/"+name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if strings.Contains(string(data), "FuncMappings") {
			t.Fatalf("%s should not contain the func-mapping table", name)
		}
	}

	tableData, err := afero.ReadFile(fs, "/out/"+m.FuncTableFile)
	if err != nil {
		t.Fatalf("read func table: %v", err)
	}
	if !strings.Contains(string(tableData), "FuncMappings") {
		t.Fatal("expected the func table file to declare FuncMappings")
	}
	if strings.Count(string(tableData), "{Address:") != 5 {
		t.Fatalf("expected 5 mapping entries, got:\n%s", tableData)
	}
}

func TestWriteEmptyFunctionSetStillProducesABuildableShard(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := &Writer{Fs: fs, Dir: "/out", Project: "empty", Package: "recompiled"}

	m, err := w.Write(nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(m.SourceFiles) != 1 {
		t.Fatalf("expected exactly one empty shard, got %v", m.SourceFiles)
	}
}

func TestReadRoundTripsAPreviouslyWrittenManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := &Writer{Fs: fs, Dir: "/out", Project: "game", Package: "recompiled", ShardSize: 4}
	written, err := w.Write(declsNamed(4))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(fs, "/out", "game")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.FunctionCount != written.FunctionCount || len(got.SourceFiles) != len(written.SourceFiles) {
		t.Fatalf("round trip mismatch: wrote %+v, read %+v", written, got)
	}
}
