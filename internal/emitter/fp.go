package emitter

import (
	"fmt"

	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

// registerFP wires the scalar floating-point opcodes into
// dispatchTable. Every FP-producing instruction (fadd, fsub, fmul,
// fdiv, fmadd, fneg, fabs) routes its result through
// runtime.ApplyFlushToZero64 before it lands in the destination
// register, per the FPSCR flush-to-zero rule; the integer conversions
// fctiwz and fcfid write their converted values directly. Registers
// always carry the double-precision view internally,
// matching the architecture's "every FPR is 64 bits" rule regardless
// of whether the single- or double-precision opcode form touched it.
func registerFP(table *[int(ppc.Td) + 1]emitFn) {
	table[ppc.Fadd] = emitFBinOp("+")
	table[ppc.Fsub] = emitFBinOp("-")
	table[ppc.Fmul] = emitFMul
	table[ppc.Fdiv] = emitFBinOp("/")
	table[ppc.Fmadd] = emitFmadd
	table[ppc.Fneg] = emitFneg
	table[ppc.Fabs] = emitFabs
	table[ppc.Fcmpu] = emitFcmpu
	table[ppc.Fctiwz] = emitFctiwz
	table[ppc.Fcfid] = emitFcfid
}

func emitFBinOp(op string) emitFn {
	return func(in ppc.Instruction) []Stmt {
		body := fmt.Sprintf(`result := ctx.FPR[%d].F64() %s ctx.FPR[%d].F64()
ctx.FPR[%d].SetF64(runtime.ApplyFlushToZero64(ctx, result))`, in.FA, op, in.FB, in.FD)
		if in.Rc {
			body += "\n" + recordCR1()
		}
		return wrap(fmt.Sprintf("f(op=%q) f%d,f%d,f%d", op, in.FD, in.FA, in.FB), body)
	}
}

// fmul is an A-form instruction (FA * FC, FB unused) rather than the
// X-form FA op FB every other binary FP opcode here decodes, per the
// architecture's operand layout for the multiply form.
func emitFMul(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`result := ctx.FPR[%d].F64() * ctx.FPR[%d].F64()
ctx.FPR[%d].SetF64(runtime.ApplyFlushToZero64(ctx, result))`, in.FA, in.FC, in.FD)
	if in.Rc {
		body += "\n" + recordCR1()
	}
	return wrap(fmt.Sprintf("fmul f%d,f%d,f%d", in.FD, in.FA, in.FC), body)
}

func emitFmadd(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`result := ctx.FPR[%d].F64()*ctx.FPR[%d].F64() + ctx.FPR[%d].F64()
ctx.FPR[%d].SetF64(runtime.ApplyFlushToZero64(ctx, result))`, in.FA, in.FC, in.FB, in.FD)
	if in.Rc {
		body += "\n" + recordCR1()
	}
	return wrap(fmt.Sprintf("fmadd f%d,f%d,f%d,f%d", in.FD, in.FA, in.FC, in.FB), body)
}

func emitFneg(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf("ctx.FPR[%d].SetF64(runtime.ApplyFlushToZero64(ctx, -ctx.FPR[%d].F64()))", in.FD, in.FB)
	if in.Rc {
		body += "\n" + recordCR1()
	}
	return wrap(fmt.Sprintf("fneg f%d,f%d", in.FD, in.FB), body)
}

func emitFabs(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf("ctx.FPR[%d].SetF64(runtime.ApplyFlushToZero64(ctx, math.Abs(ctx.FPR[%d].F64())))", in.FD, in.FB)
	if in.Rc {
		body += "\n" + recordCR1()
	}
	return wrap(fmt.Sprintf("fabs f%d,f%d", in.FD, in.FB), body)
}

// emitFcmpu compares two doubles, recording an unordered result as
// FU (all of LT/GT/EQ clear) per the architecture's NaN-comparison
// rule rather than Go's default false-for-all comparisons against NaN,
// which happens to already produce that result for every operator.
func emitFcmpu(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`a, b := ctx.FPR[%d].F64(), ctx.FPR[%d].F64()
ctx.CR[%d].LT = a < b
ctx.CR[%d].GT = a > b
ctx.CR[%d].EQ = a == b
ctx.CR[%d].SO = math.IsNaN(a) || math.IsNaN(b)`, in.FA, in.FB, in.CRFD, in.CRFD, in.CRFD, in.CRFD)
	return wrap(fmt.Sprintf("fcmpu crf%d,f%d,f%d", in.CRFD, in.FA, in.FB), body)
}

func emitFctiwz(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`v := ctx.FPR[%d].F64()
var iv int32
switch {
case v >= math.MaxInt32:
	iv = math.MaxInt32
case v <= math.MinInt32:
	iv = math.MinInt32
default:
	iv = int32(v)
}
ctx.FPR[%d].SetU64(uint64(uint32(iv)))`, in.FB, in.FD)
	return wrap(fmt.Sprintf("fctiwz f%d,f%d", in.FD, in.FB), body)
}

func emitFcfid(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf("ctx.FPR[%d].SetF64(float64(int64(ctx.FPR[%d].U64())))", in.FD, in.FB)
	return wrap(fmt.Sprintf("fcfid f%d,f%d", in.FD, in.FB), body)
}
