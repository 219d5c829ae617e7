// Package emitter turns one analyzed function into Go source text: a
// small typed IR (this file) built by one emit function per opcode
// group (arith.go/loadstore.go/fp.go/vector.go/branch.go/flags.go),
// rendered by printer.go. This mirrors
// ascrivener-jam/pkg/pvm/jit/codegen*.go's split — one file per
// instruction category, each emitting into a shared compiler/builder —
// adapted from emitting x86 machine code bytes to emitting Go source
// text.
package emitter

import "fmt"

// Stmt is one typed IR node. Each concrete type owns its own rendering
// so the printer never pattern-matches on instruction semantics, only
// on IR shape.
type Stmt interface {
	emit(p *printer)
}

// Raw is an already-formatted Go statement, used for the common case
// where building a dedicated node type would add indirection without
// adding safety (the left/right-hand sides are always Go expression
// strings the emit*.go files compose from typed accessors, never guest
// input).
type Raw string

func (s Raw) emit(p *printer) { p.line(string(s)) }

// Comment documents a translation decision inline, the same sparse,
// invariant-naming style virtualxt's cpu.execute switch uses.
type Comment string

func (s Comment) emit(p *printer) { p.line("// " + string(s)) }

// Assign renders `LHS = RHS`.
type Assign struct{ LHS, RHS string }

func (s Assign) emit(p *printer) { p.line(fmt.Sprintf("%s = %s", s.LHS, s.RHS)) }

// If renders a one-armed `if Cond { Then }` block.
type If struct {
	Cond string
	Then []Stmt
}

func (s If) emit(p *printer) {
	p.line(fmt.Sprintf("if %s {", s.Cond))
	p.indent++
	for _, st := range s.Then {
		st.emit(p)
	}
	p.indent--
	p.line("}")
}

// Block is a flat sequence of statements, used when an emit function
// wants to return one Stmt built from several.
type Block []Stmt

func (b Block) emit(p *printer) {
	for _, s := range b {
		s.emit(p)
	}
}

// FuncDecl is one emitted guest function: `func Name(ctx *guestctx.
// Context, base []byte) { Body }`, the `Fn_<addr>` ABI every emitted
// function and dispatch mapping entry shares.
type FuncDecl struct {
	Name string
	Addr uint32
	Body []Stmt
}
