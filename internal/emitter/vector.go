package emitter

import (
	"fmt"

	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

// registerVector wires the AltiVec/VMX opcodes into dispatchTable.
// Grounded on decodeOp4's representative vector coverage; element
// access goes through guestctx.Vec128's guest-indexed accessors so the
// host-lane reversal lives in one place rather than being re-derived
// per instruction.
func registerVector(table *[int(ppc.Td) + 1]emitFn) {
	table[ppc.Vaddubm] = emitVaddubm
	table[ppc.Vaddubs] = emitVaddubs
	table[ppc.Vaddfp] = emitVaddfp
	table[ppc.Vsubfp] = emitVsubfp
	table[ppc.Vperm] = emitVperm
	table[ppc.Vcmpequw] = emitVcmpequw
	table[ppc.Vspltw] = emitVspltw
}

// emitVaddubm adds sixteen byte lanes modulo 256; no saturation, no
// CR6 update.
func emitVaddubm(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`for i := 0; i < 16; i++ {
	ctx.VMX[%d].SetU8Elem(i, ctx.VMX[%d].U8Elem(i)+ctx.VMX[%d].U8Elem(i))
}`, in.VD, in.VA, in.VB)
	return wrap(fmt.Sprintf("vaddubm v%d,v%d,v%d", in.VD, in.VA, in.VB), body)
}

func emitVaddfp(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`for i := 0; i < 4; i++ {
	a := math.Float32frombits(ctx.VMX[%d].U32Elem(i))
	b := math.Float32frombits(ctx.VMX[%d].U32Elem(i))
	ctx.VMX[%d].SetU32Elem(i, math.Float32bits(a+b))
}`, in.VA, in.VB, in.VD)
	return wrap(fmt.Sprintf("vaddfp v%d,v%d,v%d", in.VD, in.VA, in.VB), body)
}

func emitVsubfp(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`for i := 0; i < 4; i++ {
	a := math.Float32frombits(ctx.VMX[%d].U32Elem(i))
	b := math.Float32frombits(ctx.VMX[%d].U32Elem(i))
	ctx.VMX[%d].SetU32Elem(i, math.Float32bits(a-b))
}`, in.VA, in.VB, in.VD)
	return wrap(fmt.Sprintf("vsubfp v%d,v%d,v%d", in.VD, in.VA, in.VB), body)
}

// emitVperm selects sixteen result bytes from the 32-byte concatenation
// of VA:VB, indexed by the low 5 bits of each VC byte lane; VC's own
// guest-element numbering applies to the selector bytes the same as
// any other byte lane read.
func emitVperm(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`var src [32]byte
for i := 0; i < 16; i++ {
	src[i] = ctx.VMX[%d].U8Elem(i)
	src[16+i] = ctx.VMX[%d].U8Elem(i)
}
var result guestctx.Vec128
for i := 0; i < 16; i++ {
	sel := ctx.VMX[%d].U8Elem(i) & 0x1F
	result.SetU8Elem(i, src[sel])
}
ctx.VMX[%d] = result`, in.VA, in.VB, in.VC, in.VD)
	return wrap(fmt.Sprintf("vperm v%d,v%d,v%d,v%d", in.VD, in.VA, in.VB, in.VC), body)
}

// emitVcmpequw compares four word lanes and writes cr6 from the two
// reduction bits the compare record form always sets: LT for "all
// sixteen bytes of the mask are 1" (all elements equal) and EQ for
// "the mask is entirely 0" (no elements equal).
func emitVcmpequw(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`allTrue := true
allFalse := true
for i := 0; i < 4; i++ {
	eq := ctx.VMX[%d].U32Elem(i) == ctx.VMX[%d].U32Elem(i)
	var v uint32
	if eq {
		v = 0xFFFFFFFF
		allFalse = false
	} else {
		allTrue = false
	}
	ctx.VMX[%d].SetU32Elem(i, v)
}
ctx.CR[6] = guestctx.CRField{LT: allTrue, EQ: allFalse}`, in.VA, in.VB, in.VD)
	return wrap(fmt.Sprintf("vcmpequw v%d,v%d,v%d", in.VD, in.VA, in.VB), body)
}

// emitVaddubs adds sixteen byte lanes with unsigned saturation,
// setting the sticky vscr[SAT] bit the first time any lane clamps.
func emitVaddubs(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`for i := 0; i < 16; i++ {
	sum := uint16(ctx.VMX[%d].U8Elem(i)) + uint16(ctx.VMX[%d].U8Elem(i))
	if sum > 0xFF {
		sum = 0xFF
		ctx.VSCRSat = true
	}
	ctx.VMX[%d].SetU8Elem(i, uint8(sum))
}`, in.VA, in.VB, in.VD)
	return wrap(fmt.Sprintf("vaddubs v%d,v%d,v%d", in.VD, in.VA, in.VB), body)
}

// emitVspltw splats one word lane, selected by the VA field's low two
// bits (the UIMM this encoding repurposes it for), across all four
// word lanes of VD.
func emitVspltw(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`elem := ctx.VMX[%d].U32Elem(%d & 0x3)
for i := 0; i < 4; i++ {
	ctx.VMX[%d].SetU32Elem(i, elem)
}`, in.VB, in.VA, in.VD)
	return wrap(fmt.Sprintf("vspltw v%d,v%d,%d", in.VD, in.VB, in.VA), body)
}
