package emitter

import (
	"strings"
	"testing"

	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

func TestEmitMtsprCtrDrivesIndirectDispatch(t *testing.T) {
	src := renderStmts(emitMtspr(ppc.Instruction{SPR: sprCTR, RS: 5}))
	if !strings.Contains(src, "ctx.CTR = ctx.GPR[5].U32()") {
		t.Fatalf("expected mtspr ctr to write ctx.CTR, got:\n%s", src)
	}
}

func TestEmitMtsprLrFeedsBclr(t *testing.T) {
	src := renderStmts(emitMtspr(ppc.Instruction{SPR: sprLR, RS: 2}))
	if !strings.Contains(src, "ctx.LR = ctx.GPR[2].U32()") {
		t.Fatalf("expected mtspr lr to write ctx.LR, got:\n%s", src)
	}
}

func TestEmitMfsprReadsCtr(t *testing.T) {
	src := renderStmts(emitMfspr(ppc.Instruction{SPR: sprCTR, RD: 7}))
	if !strings.Contains(src, "ctx.GPR[7].SetU32(ctx.CTR)") {
		t.Fatalf("expected mfspr ctr to read ctx.CTR, got:\n%s", src)
	}
}

func TestEmitMftbCallsReadTimebase(t *testing.T) {
	src := renderStmts(emitMftb(ppc.Instruction{RD: 3}))
	if !strings.Contains(src, "ctx.GPR[3].SetU64(runtime.ReadTimebase())") {
		t.Fatalf("expected mftb to call runtime.ReadTimebase, got:\n%s", src)
	}
}

func TestEmitMtmsrdCallsMTMSRD(t *testing.T) {
	src := renderStmts(emitMtmsrd(ppc.Instruction{RS: 13}))
	if !strings.Contains(src, "runtime.MTMSRD(13)") {
		t.Fatalf("expected mtmsrd to call runtime.MTMSRD with the source register, got:\n%s", src)
	}
}

func TestEmitMfmsrCallsMFMSR(t *testing.T) {
	src := renderStmts(emitMfmsr(ppc.Instruction{RD: 4}))
	if !strings.Contains(src, "ctx.GPR[4].SetU32(runtime.MFMSR())") {
		t.Fatalf("expected mfmsr to call runtime.MFMSR, got:\n%s", src)
	}
}

// TestEmitMtcrfOnlyTouchesSelectedFields confirms CRM gates which of
// the eight cr fields get assignments, resolved at translation time.
func TestEmitMtcrfOnlyTouchesSelectedFields(t *testing.T) {
	src := renderStmts(emitMtcrf(ppc.Instruction{RS: 3, CRM: 0x80}))
	if !strings.Contains(src, "ctx.CR[0].EQ") {
		t.Fatalf("expected cr0 to be assigned for crm bit 0, got:\n%s", src)
	}
	if strings.Contains(src, "ctx.CR[1].") {
		t.Fatalf("expected cr1 to be untouched when crm only selects cr0, got:\n%s", src)
	}
}

func TestEmitMfcrPacksAllEightFields(t *testing.T) {
	src := renderStmts(emitMfcr(ppc.Instruction{RD: 3}))
	if !strings.Contains(src, "ctx.CR[7].SO") {
		t.Fatalf("expected mfcr to read cr7, got:\n%s", src)
	}
	if !strings.Contains(src, "ctx.GPR[3].SetU32(v)") {
		t.Fatalf("expected the packed word to land in rD, got:\n%s", src)
	}
}

func TestEmitSyncAndIsyncCallMemoryFence(t *testing.T) {
	if !strings.Contains(renderStmts(emitSync(ppc.Instruction{})), "runtime.MemoryFence()") {
		t.Fatal("expected sync to call runtime.MemoryFence")
	}
	if !strings.Contains(renderStmts(emitIsync(ppc.Instruction{})), "runtime.MemoryFence()") {
		t.Fatal("expected isync to call runtime.MemoryFence")
	}
}
