package emitter

import (
	"fmt"
	"strings"

	"github.com/xenonrecomp/xenonrecomp/internal/analyzer"
	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

// registerBranch wires the control-flow opcodes into dispatchTable.
// Grounded on cpu.execute()'s branch-instruction handling generalized
// from "jump the instruction pointer" to "goto/return/call in the
// emitted source", the same shift ascrivener-jam's codegen.go makes
// when lowering a branch IR node to either a conditional jmp or a
// direct CALL encoding.
func registerBranch(table *[int(ppc.Td) + 1]emitFn) {
	table[ppc.B] = emitB
	table[ppc.Bc] = emitBc
	table[ppc.Bclr] = emitBclr
	table[ppc.Bcctr] = emitBcctr
	table[ppc.Sc] = emitSc
}

func branchTarget(in ppc.Instruction) uint32 {
	if in.AA {
		return uint32(in.LI)
	}
	return uint32(int64(in.Addr) + int64(in.LI))
}

func condTarget(in ppc.Instruction) uint32 {
	if in.AA {
		return uint32(in.BD)
	}
	return uint32(int64(in.Addr) + int64(in.BD))
}

// boCondition renders the BO/BI condition an instruction's BO field
// encodes, per the architecture's condensed bo-field truth table: bit
// 0 (0x10) set skips the CR bit test, bit 2 (0x04) set skips the CTR
// decrement/test.
func boCondition(in ppc.Instruction) (string, bool) {
	decrementCTR := in.BO&0x04 == 0
	testCR := in.BO&0x10 == 0
	crBitExpr := fmt.Sprintf("ctx.CR[%d].%s", in.BI/4, crBitName(int(in.BI%4)))
	if in.BO&0x08 == 0 {
		crBitExpr = "!" + crBitExpr
	}

	var parts []string
	if decrementCTR {
		ctrNotZero := "ctx.CTR != 0"
		if in.BO&0x02 != 0 {
			ctrNotZero = "ctx.CTR == 0"
		}
		parts = append(parts, ctrNotZero)
	}
	if testCR {
		parts = append(parts, crBitExpr)
	}
	if len(parts) == 0 {
		return "", true
	}
	return strings.Join(parts, " && "), false
}

func crBitName(bit int) string {
	switch bit {
	case 0:
		return "LT"
	case 1:
		return "GT"
	case 2:
		return "EQ"
	default:
		return "SO"
	}
}

// ctrDecrement renders the CTR-- side effect every BO encoding with
// bit 2 clear performs, independent of whether the branch is taken.
func ctrDecrement(in ppc.Instruction) string {
	if in.BO&0x04 == 0 {
		return "ctx.CTR--\n"
	}
	return ""
}

func emitB(in ppc.Instruction) []Stmt {
	target := branchTarget(in)
	var body string
	if in.LK {
		body = fmt.Sprintf("ctx.LR = 0x%08X\n%s(ctx, base)", in.Addr+4, funcName(target))
	} else {
		body = fmt.Sprintf("goto loc_%08X", target)
	}
	return wrap(fmt.Sprintf("b 0x%08X (lk=%v)", target, in.LK), body)
}

func emitBc(in ppc.Instruction) []Stmt {
	target := condTarget(in)
	cond, always := boCondition(in)
	dec := ctrDecrement(in)

	var taken string
	if in.LK {
		taken = fmt.Sprintf("ctx.LR = 0x%08X\n%s(ctx, base)", in.Addr+4, funcName(target))
	} else {
		taken = fmt.Sprintf("goto loc_%08X", target)
	}

	if always {
		return wrap(fmt.Sprintf("bc (always) 0x%08X", target), dec+taken)
	}
	body := fmt.Sprintf("%sif %s {\n%s\n}", dec, cond, taken)
	return wrap(fmt.Sprintf("bc 0x%08X", target), body)
}

func emitBclr(in ppc.Instruction) []Stmt {
	cond, always := boCondition(in)
	dec := ctrDecrement(in)

	var taken string
	if in.LK {
		taken = fmt.Sprintf("ctx.LR = 0x%08X\ndispatch.Active.Call(ctx.LR, ctx, base)", in.Addr+4)
	} else {
		taken = "return"
	}

	if always {
		return wrap("bclr (always, blr)", dec+taken)
	}
	body := fmt.Sprintf("%sif %s {\n%s\n}", dec, cond, taken)
	return wrap("bclr", body)
}

// emitBcctr handles the generic branch-to-CTR case: statically
// recovered jump tables never reach this function (emitter.go
// special-cases those block terminators into a switch before falling
// back here), so what remains is a genuine computed call/tail-call
// resolved through the indirect dispatch table at run time.
func emitBcctr(in ppc.Instruction) []Stmt {
	cond, always := boCondition(in)

	var taken string
	if in.LK {
		taken = "ctx.LR = " + fmt.Sprintf("0x%08X\n", in.Addr+4) + "dispatch.Active.Call(ctx.CTR, ctx, base)"
	} else {
		taken = "dispatch.Active.Call(ctx.CTR, ctx, base)\nreturn"
	}

	if always {
		return wrap("bcctr (always)", taken)
	}
	body := fmt.Sprintf("if %s {\n%s\n}", cond, taken)
	return wrap("bcctr", body)
}

func emitSc(in ppc.Instruction) []Stmt {
	body := "runtime.TrapService(ctx, base, uint16(ctx.GPR[0].U32()))"
	return wrap("sc", body)
}

// emitJumpTableSwitch renders a recovered jump table as a bounds-
// checked Go switch over the guard register, one case per recovered
// target, falling back to the generic indirect dispatch for any
// out-of-range value (a guest logic error or an incomplete recovery,
// either way something the dispatch table's ErrUnmapped path already
// reports).
func emitJumpTableSwitch(jt analyzer.JumpTable) Stmt {
	var b strings.Builder
	fmt.Fprintf(&b, "{ // jump table at 0x%08X, guard r%d\n", jt.Site, jt.GuardReg)
	fmt.Fprintf(&b, "switch ctx.GPR[%d].U32() {\n", jt.GuardReg)
	for i, target := range jt.Targets {
		fmt.Fprintf(&b, "case %d:\n\tgoto loc_%08X\n", i, target)
	}
	b.WriteString("default:\n\tdispatch.Active.Call(ctx.CTR, ctx, base)\n\treturn\n")
	b.WriteString("}\n}")
	return Raw(b.String())
}
