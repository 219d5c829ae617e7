package emitter

import (
	"fmt"
	"strings"

	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

// registerTrap wires tw/twi/td into dispatchTable. Grounded on
// cpu.execute()'s INT3/bound-check handling generalized from a fixed
// host trap to a selector dispatched through runtime.TrapService.
func registerTrap(table *[int(ppc.Td) + 1]emitFn) {
	table[ppc.Twi] = emitTwi
	table[ppc.Tw] = emitTw
	table[ppc.Td] = emitTd
}

// trapCondition renders the TO-field truth table (§4.2): bit 0x10 is
// signed less-than, 0x08 signed greater-than, 0x04 equal, 0x02 unsigned
// less-than, 0x01 unsigned greater-than. to=31 sets every bit, matching
// the unconditional trap encoding.
func trapCondition(to uint32, aS, bS, aU, bU string) string {
	var parts []string
	if to&0x10 != 0 {
		parts = append(parts, fmt.Sprintf("%s < %s", aS, bS))
	}
	if to&0x08 != 0 {
		parts = append(parts, fmt.Sprintf("%s > %s", aS, bS))
	}
	if to&0x04 != 0 {
		parts = append(parts, fmt.Sprintf("%s == %s", aS, bS))
	}
	if to&0x02 != 0 {
		parts = append(parts, fmt.Sprintf("%s < %s", aU, bU))
	}
	if to&0x01 != 0 {
		parts = append(parts, fmt.Sprintf("%s > %s", aU, bU))
	}
	if len(parts) == 0 {
		return "false"
	}
	return strings.Join(parts, " || ")
}

// emitTwi is the only trap form carrying a literal selector: the
// unconditional encoding (to=31, rA=0) from §8 Scenario 6 calls
// runtime.TrapService unconditionally with the raw 16-bit immediate;
// any other TO/rA combination expands to an inline guarded call that
// falls through, per §4.2's "conditional traps expand to
// if (cond) trap_service(selector); and fall through".
func emitTwi(in ppc.Instruction) []Stmt {
	selector := fmt.Sprintf("uint16(%d)", uint16(in.Imm))
	call := fmt.Sprintf("runtime.TrapService(ctx, base, %s)", selector)

	if in.TO == 31 && in.RA == 0 {
		return wrap(fmt.Sprintf("twi 31,r0,%d (unconditional)", int32(in.Imm)), call)
	}

	aS, bS := gprS32(in.RA), fmt.Sprintf("int32(%d)", in.Imm)
	aU, bU := gprU32(in.RA), fmt.Sprintf("uint32(int32(%d))", in.Imm)
	cond := trapCondition(in.TO, aS, bS, aU, bU)
	body := fmt.Sprintf("if %s {\n%s\n}", cond, call)
	return wrap(fmt.Sprintf("twi %d,r%d,%d", in.TO, in.RA, int32(in.Imm)), body)
}

// emitTw and emitTd compare two registers rather than carrying an
// immediate selector, so there is no instruction-supplied selector to
// forward; they still route through runtime.TrapService using
// selector 0, which the runtime handles as a debug break.
func emitTw(in ppc.Instruction) []Stmt {
	return emitRegisterTrap("tw", in, gprS32, gprU32)
}

func emitTd(in ppc.Instruction) []Stmt {
	return emitRegisterTrap("td", in, gprS64, gprU64)
}

func emitRegisterTrap(mnemonic string, in ppc.Instruction, sigView, unsView func(int) string) []Stmt {
	call := "runtime.TrapService(ctx, base, 0)"

	if in.TO == 31 {
		return wrap(fmt.Sprintf("%s %d,r%d,r%d (unconditional)", mnemonic, in.TO, in.RA, in.RB), call)
	}

	cond := trapCondition(in.TO, sigView(in.RA), sigView(in.RB), unsView(in.RA), unsView(in.RB))
	body := fmt.Sprintf("if %s {\n%s\n}", cond, call)
	return wrap(fmt.Sprintf("%s %d,r%d,r%d", mnemonic, in.TO, in.RA, in.RB), body)
}
