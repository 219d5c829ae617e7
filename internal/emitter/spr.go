package emitter

import (
	"fmt"
	"strings"

	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

// Conventional SPR numbers mtspr/mfspr alias to named registers rather
// than the generic SPR file.
const (
	sprLR  = 8
	sprCTR = 9
)

// registerSPR wires the special-purpose-register, timebase, MSR-lock,
// and memory-ordering opcodes into dispatchTable. Grounded on
// cpu.execute()'s MSR/EFLAGS-adjacent instructions generalized from
// x86's flat flag register to PowerPC's CR/XER/MSR split.
func registerSPR(table *[int(ppc.Td) + 1]emitFn) {
	table[ppc.Mtspr] = emitMtspr
	table[ppc.Mfspr] = emitMfspr
	table[ppc.Mftb] = emitMftb
	table[ppc.Mtmsrd] = emitMtmsrd
	table[ppc.Mfmsr] = emitMfmsr
	table[ppc.Mtcrf] = emitMtcrf
	table[ppc.Mfcr] = emitMfcr
	table[ppc.Sync] = emitSync
	table[ppc.Isync] = emitIsync
}

func emitMtspr(in ppc.Instruction) []Stmt {
	switch in.SPR {
	case sprLR:
		return wrap("mtspr lr,rS", fmt.Sprintf("ctx.LR = %s", gprU32(in.RS)))
	case sprCTR:
		return wrap("mtspr ctr,rS", fmt.Sprintf("ctx.CTR = %s", gprU32(in.RS)))
	default:
		return wrap(fmt.Sprintf("mtspr %d,rS (unmodeled spr)", in.SPR), "")
	}
}

func emitMfspr(in ppc.Instruction) []Stmt {
	switch in.SPR {
	case sprLR:
		return wrap("mfspr rD,lr", fmt.Sprintf("%s.SetU32(ctx.LR)", gpr(in.RD)))
	case sprCTR:
		return wrap("mfspr rD,ctr", fmt.Sprintf("%s.SetU32(ctx.CTR)", gpr(in.RD)))
	default:
		return wrap(fmt.Sprintf("mfspr rD,%d (unmodeled spr)", in.SPR), fmt.Sprintf("%s.SetU32(0)", gpr(in.RD)))
	}
}

func emitMftb(in ppc.Instruction) []Stmt {
	return wrap("mftb", fmt.Sprintf("%s.SetU64(runtime.ReadTimebase())", gpr(in.RD)))
}

func emitMtmsrd(in ppc.Instruction) []Stmt {
	return wrap(fmt.Sprintf("mtmsrd r%d", in.RS), fmt.Sprintf("runtime.MTMSRD(%d)", in.RS))
}

func emitMfmsr(in ppc.Instruction) []Stmt {
	return wrap("mfmsr", fmt.Sprintf("%s.SetU32(runtime.MFMSR())", gpr(in.RD)))
}

// crFieldBits renders the four flag-to-bit assignments for cr field i
// packed into a 32-bit word at its architectural nibble offset.
func crFieldBits(i int) (lt, gt, eq, so uint32) {
	shift := uint((7 - i) * 4)
	return 8 << shift, 4 << shift, 2 << shift, 1 << shift
}

// emitMtcrf unpacks rS into the cr fields CRM selects; CRM is resolved
// at translation time, so only the selected fields' assignments are
// emitted.
func emitMtcrf(in ppc.Instruction) []Stmt {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("v := %s", gprU32(in.RS)))
	for i := 0; i < 8; i++ {
		if in.CRM&(0x80>>uint(i)) == 0 {
			continue
		}
		lt, gt, eq, so := crFieldBits(i)
		fmt.Fprintf(&b, "\nctx.CR[%d].LT = v&0x%X != 0", i, lt)
		fmt.Fprintf(&b, "\nctx.CR[%d].GT = v&0x%X != 0", i, gt)
		fmt.Fprintf(&b, "\nctx.CR[%d].EQ = v&0x%X != 0", i, eq)
		fmt.Fprintf(&b, "\nctx.CR[%d].SO = v&0x%X != 0", i, so)
	}
	return wrap(fmt.Sprintf("mtcrf 0x%02X,r%d", in.CRM, in.RS), b.String())
}

// emitMfcr packs all eight cr fields into rD, the inverse of mtcrf.
func emitMfcr(in ppc.Instruction) []Stmt {
	var b strings.Builder
	b.WriteString("var v uint32")
	for i := 0; i < 8; i++ {
		lt, gt, eq, so := crFieldBits(i)
		fmt.Fprintf(&b, "\nif ctx.CR[%d].LT { v |= 0x%X }", i, lt)
		fmt.Fprintf(&b, "\nif ctx.CR[%d].GT { v |= 0x%X }", i, gt)
		fmt.Fprintf(&b, "\nif ctx.CR[%d].EQ { v |= 0x%X }", i, eq)
		fmt.Fprintf(&b, "\nif ctx.CR[%d].SO { v |= 0x%X }", i, so)
	}
	fmt.Fprintf(&b, "\n%s.SetU32(v)", gpr(in.RD))
	return wrap("mfcr", b.String())
}

func emitSync(in ppc.Instruction) []Stmt  { return wrap("sync", "runtime.MemoryFence()") }
func emitIsync(in ppc.Instruction) []Stmt { return wrap("isync", "runtime.MemoryFence()") }
