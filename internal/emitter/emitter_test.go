package emitter

import (
	"strings"
	"testing"

	"github.com/xenonrecomp/xenonrecomp/internal/analyzer"
)

func word32(op, a, b, c uint32) uint32 {
	return op<<26 | a<<21 | b<<16 | c
}

func bePut(buf []byte, off int, w uint32) {
	buf[off] = byte(w >> 24)
	buf[off+1] = byte(w >> 16)
	buf[off+2] = byte(w >> 8)
	buf[off+3] = byte(w)
}

func addiWord(rd, ra int, imm uint32) uint32 { return word32(14, uint32(rd), uint32(ra), imm&0xFFFF) }
func blrWord() uint32                        { return word32(19, 20, 0, 16<<1) }
func bWord(li uint32) uint32                 { return word32(18, 0, 0, 0) | (li << 2) }
func bcWord(bo, bi, bd uint32) uint32        { return word32(16, bo, bi, bd<<2) }

func newImage(base uint32, words []uint32) *analyzer.Image {
	data := make([]byte, len(words)*4)
	for i, w := range words {
		bePut(data, i*4, w)
	}
	return &analyzer.Image{
		EntryPoint: base,
		Segments:   []analyzer.Segment{{GuestBase: base, Data: data, Flags: analyzer.SegExecute | analyzer.SegRead}},
	}
}

// TestEmitStraightLineFunction exercises the full analyzer -> emitter
// -> printer pipeline on a minimal addi/blr function and checks the
// generated text has the shape a real translation unit needs: a
// package clause, the forced-usage import guard, the function
// signature the dispatch table locks in, and a mapping table entry.
func TestEmitStraightLineFunction(t *testing.T) {
	base := uint32(0x80001000)
	img := newImage(base, []uint32{
		addiWord(3, 0, 42),
		blrWord(),
	})
	graph, diags := analyzer.Load(img, nil, analyzer.DefaultOptions())
	if len(diags) != 0 {
		t.Fatalf("unexpected analyzer diagnostics: %v", diags)
	}

	e := &Emitter{PackageName: "recompiled"}
	decls, emitDiags := e.EmitGraph(img, graph)
	if len(emitDiags) != 0 {
		t.Fatalf("unexpected emit diagnostics: %v", emitDiags)
	}
	if len(decls) != 1 {
		t.Fatalf("expected 1 decl, got %d", len(decls))
	}

	src, err := PrintFile("recompiled", decls)
	if err != nil {
		t.Fatalf("PrintFile failed: %v\n---\n%s", err, src)
	}

	wantSubstrings := []string{
		"package recompiled",
		"func Fn_80001000(ctx *guestctx.Context, base []byte) {",
		"ctx.GPR[3].SetS32(int32(0) + 42)",
		"return",
		"var FuncMappings = []dispatch.FuncMapping{",
		"{Address: 0x80001000, Fn: Fn_80001000},",
	}
	for _, want := range wantSubstrings {
		if !strings.Contains(src, want) {
			t.Errorf("expected generated source to contain %q, got:\n%s", want, src)
		}
	}
}

// TestEmitConditionalBranchUsesGotoLabels verifies that a function
// with more than one basic block emits loc_ labels and that a
// conditional branch lowers to an `if` guarding a goto, rather than an
// unconditional jump.
func TestEmitConditionalBranchUsesGotoLabels(t *testing.T) {
	base := uint32(0x80002000)
	img := newImage(base, []uint32{
		addiWord(3, 0, 1),
		bcWord(12, 2, 1), // bo=12 (branch if CR bit set, no ctr test), bi=2 (cr0 eq), target +4 from the bc site
		addiWord(4, 0, 9),
		blrWord(),
	})
	graph, diags := analyzer.Load(img, nil, analyzer.DefaultOptions())
	if len(diags) != 0 {
		t.Fatalf("unexpected analyzer diagnostics: %v", diags)
	}

	e := &Emitter{PackageName: "recompiled"}
	decls, emitDiags := e.EmitGraph(img, graph)
	if len(emitDiags) != 0 {
		t.Fatalf("unexpected emit diagnostics: %v", emitDiags)
	}

	src, err := PrintFile("recompiled", decls)
	if err != nil {
		t.Fatalf("PrintFile failed: %v\n---\n%s", err, src)
	}

	if !strings.Contains(src, "loc_80002008:") {
		t.Errorf("expected a label at the branch target, got:\n%s", src)
	}
	if !strings.Contains(src, "ctx.CR[0].EQ") {
		t.Errorf("expected the branch condition to reference CR[0].EQ, got:\n%s", src)
	}
}

// TestEmitUnimplementedOpcodeRecordsDiagnostic confirms that an
// instruction this emitter has no registered handler for (here, a word
// with unassigned primary opcode 1, which the analyzer keeps in its
// block as ppc.Unknown) surfaces as a diagnostic
// and a comment rather than aborting the whole translation unit.
func TestEmitUnimplementedOpcodeRecordsDiagnostic(t *testing.T) {
	base := uint32(0x80003000)
	img := newImage(base, []uint32{
		1 << 26, // primary opcode 1: unassigned/unknown
		blrWord(),
	})
	graph, _ := analyzer.Load(img, nil, analyzer.DefaultOptions())
	if len(graph.Functions) == 0 {
		t.Skip("analyzer did not discover a function over an unknown leading opcode")
	}

	e := &Emitter{PackageName: "recompiled"}
	_, emitDiags := e.EmitGraph(img, graph)
	if len(emitDiags) == 0 {
		t.Fatal("expected a diagnostic for the unrecognized opcode")
	}
}
