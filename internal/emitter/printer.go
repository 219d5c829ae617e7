package emitter

import (
	"bytes"
	"fmt"
	"go/format"
)

// printer accumulates indented lines and is handed to each Stmt's emit
// method; it has no knowledge of PowerPC semantics, only of Go text
// layout, the same separation codegen.go keeps between per-instruction
// emit functions and the shared x86 assembler.
type printer struct {
	buf    bytes.Buffer
	indent int
}

func (p *printer) line(s string) {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteByte('\t')
	}
	p.buf.WriteString(s)
	p.buf.WriteByte('\n')
}

// imports every emitted file needs: the register context, the flat
// arena load/store helpers, the runtime support package, and the
// dispatch table for indirect/tail calls.
var imports = []string{
	`"math"`,
	`"math/bits"`,
	`"github.com/xenonrecomp/xenonrecomp/internal/dispatch"`,
	`"github.com/xenonrecomp/xenonrecomp/internal/guestctx"`,
	`"github.com/xenonrecomp/xenonrecomp/internal/guestmem"`,
	`"github.com/xenonrecomp/xenonrecomp/internal/runtime"`,
}

func printHeader(p *printer, pkgName string) {
	p.line(fmt.Sprintf("package %s", pkgName))
	p.line("")
	p.line("import (")
	p.indent++
	for _, imp := range imports {
		p.line(imp)
	}
	p.indent--
	p.line(")")
	p.line("")
	p.line("// every import above is only referenced conditionally, depending on")
	p.line("// which opcodes this particular image exercises")
	p.line("var (")
	p.indent++
	p.line("_ = math.Abs")
	p.line("_ = bits.LeadingZeros32")
	p.line("_ = runtime.ReadTimebase")
	p.line("_ = guestmem.LoadU8")
	p.line("_ = dispatch.CodeBase")
	p.indent--
	p.line(")")
	p.line("")
}

func printDecls(p *printer, decls []FuncDecl) {
	for _, d := range decls {
		p.line(fmt.Sprintf("func %s(ctx *guestctx.Context, base []byte) {", d.Name))
		p.indent++
		for _, s := range d.Body {
			s.emit(p)
		}
		p.indent--
		p.line("}")
		p.line("")
	}
}

func printFuncMappings(p *printer, decls []FuncDecl) {
	p.line("// FuncMappings is installed into the dispatch table at process start.")
	p.line("var FuncMappings = []dispatch.FuncMapping{")
	p.indent++
	for _, d := range decls {
		p.line(fmt.Sprintf("{Address: 0x%X, Fn: %s},", d.Addr, d.Name))
	}
	p.indent--
	p.line("}")
}

func render(p *printer) (string, error) {
	src := p.buf.Bytes()
	out, err := format.Source(src)
	if err != nil {
		return string(src), err
	}
	return string(out), nil
}

// PrintFile renders every decl plus the dispatch.FuncMapping table into
// one gofmt'd Go source file. Returns the unformatted text alongside
// the error when format.Source fails, so callers can still inspect
// what went wrong. Used directly by small inputs and by tests; larger
// images go through PrintSources/PrintFuncTable instead, so the
// function-table entries aren't duplicated across every source shard.
func PrintFile(pkgName string, decls []FuncDecl) (string, error) {
	p := &printer{}
	printHeader(p, pkgName)
	printDecls(p, decls)
	printFuncMappings(p, decls)
	return render(p)
}

// PrintSources renders decls only (no FuncMappings table) into one
// gofmt'd Go source file, the shape internal/manifest's Writer shards
// a large image's functions across, producing the
// `<project>_ppc_recomp_N.go` host source files spec.md §6 names.
func PrintSources(pkgName string, decls []FuncDecl) (string, error) {
	p := &printer{}
	printHeader(p, pkgName)
	printDecls(p, decls)
	return render(p)
}

// PrintFuncTable renders the dispatch.FuncMapping table alone into its
// own gofmt'd Go source file, spec.md §6's "function-table
// initialization file" persisted separately from the host sources so
// it can be regenerated without touching already-translated function
// bodies.
func PrintFuncTable(pkgName string, decls []FuncDecl) (string, error) {
	p := &printer{}
	p.line(fmt.Sprintf("package %s", pkgName))
	p.line("")
	p.line(`import "github.com/xenonrecomp/xenonrecomp/internal/dispatch"`)
	p.line("")
	printFuncMappings(p, decls)
	return render(p)
}
