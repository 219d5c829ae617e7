package emitter

import (
	"strings"
	"testing"

	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

// TestEmitLvxReversesBytesToMatchElementAccessors confirms lvx reverses
// the 16 loaded bytes rather than copying them straight across, since
// guest byte 0 lives at Vec128 host index 15 (see U8Elem/U32Elem).
func TestEmitLvxReversesBytesToMatchElementAccessors(t *testing.T) {
	src := renderStmts(emitLvx(ppc.Instruction{VD: 2, RA: 3, RB: 4}))
	if !strings.Contains(src, "ctx.VMX[2][i] = raw[15-i]") {
		t.Fatalf("expected a full 16-byte reversal into VMX[2], got:\n%s", src)
	}
	if strings.Contains(src, "copy(ctx.VMX") {
		t.Fatalf("expected no straight block copy, got:\n%s", src)
	}
}

func TestEmitStvxReversesBytesToMatchElementAccessors(t *testing.T) {
	src := renderStmts(emitStvx(ppc.Instruction{VB: 5, RA: 3, RB: 4}))
	if !strings.Contains(src, "raw[i] = ctx.VMX[5][15-i]") {
		t.Fatalf("expected a full 16-byte reversal out of VMX[5], got:\n%s", src)
	}
	if !strings.Contains(src, "guestmem.StoreBytes(base, ea, raw)") {
		t.Fatalf("expected the reversed buffer to be stored, got:\n%s", src)
	}
}
