package emitter

import (
	"strings"
	"testing"

	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

// TestEmitTwiUnconditionalCallsTrapService exercises §8 Scenario 6:
// twi 31,r0,20 must lower to an unconditional runtime.TrapService call
// carrying the raw 16-bit immediate as selector.
func TestEmitTwiUnconditionalCallsTrapService(t *testing.T) {
	src := renderStmts(emitTwi(ppc.Instruction{TO: 31, RA: 0, Imm: 20}))
	if !strings.Contains(src, "runtime.TrapService(ctx, base, uint16(20))") {
		t.Fatalf("expected an unconditional trap service call, got:\n%s", src)
	}
	if strings.Contains(src, "if ") {
		t.Fatalf("unconditional trap must not be guarded, got:\n%s", src)
	}
}

// TestEmitTwiConditionalGuardsTheCall confirms a non-31 TO field
// expands to the inline "if (cond) trap_service(selector)" form §4.2
// describes, rather than always trapping.
func TestEmitTwiConditionalGuardsTheCall(t *testing.T) {
	src := renderStmts(emitTwi(ppc.Instruction{TO: 0x04, RA: 3, Imm: 7}))
	if !strings.Contains(src, "if ") {
		t.Fatalf("expected a guarded trap, got:\n%s", src)
	}
	if !strings.Contains(src, "runtime.TrapService(ctx, base, uint16(7))") {
		t.Fatalf("expected the selector to carry the literal immediate, got:\n%s", src)
	}
	if !strings.Contains(src, "ctx.GPR[3].S32() == int32(7)") {
		t.Fatalf("expected an equal-to comparison for to=0x04, got:\n%s", src)
	}
}

func TestEmitTwUnconditionalTrapsWithSelectorZero(t *testing.T) {
	src := renderStmts(emitTw(ppc.Instruction{TO: 31, RA: 3, RB: 4}))
	if !strings.Contains(src, "runtime.TrapService(ctx, base, 0)") {
		t.Fatalf("expected the register-compare trap form to use selector 0, got:\n%s", src)
	}
}

func TestEmitTdConditionalComparesSignedAndUnsigned64(t *testing.T) {
	src := renderStmts(emitTd(ppc.Instruction{TO: 0x10 | 0x02, RA: 3, RB: 4}))
	if !strings.Contains(src, "ctx.GPR[3].S64() < ctx.GPR[4].S64()") {
		t.Fatalf("expected a signed less-than comparison, got:\n%s", src)
	}
	if !strings.Contains(src, "ctx.GPR[3].U64() < ctx.GPR[4].U64()") {
		t.Fatalf("expected an unsigned less-than comparison, got:\n%s", src)
	}
}
