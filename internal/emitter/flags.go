package emitter

import "fmt"

// recordCR0 renders the record-form (`.` suffix) CR0 update: LT/GT/EQ
// from a signed comparison of result against zero, SO copied from
// XER.SO.
func recordCR0(resultExpr string) string {
	return fmt.Sprintf("ctx.CR[0].SetFromSigned32(int32(%s), ctx.XER.SO)", resultExpr)
}

func recordCR0_64(resultExpr string) string {
	return fmt.Sprintf("ctx.CR[0].SetFromSigned64(int64(%s), ctx.XER.SO)", resultExpr)
}

// recordCR1 renders the record-form (`.` suffix) CR1 update PowerPC's
// floating-point instructions perform: unlike CR0, cr1 is not a
// comparison against the result, it's the FPSCR exception-summary
// bits FX/FEX/VX/OX copied verbatim into cr1's four flag slots.
func recordCR1() string {
	return `ctx.CR[1].LT = ctx.FPSCR.Reserved&0x80000000 != 0
ctx.CR[1].GT = ctx.FPSCR.Reserved&0x40000000 != 0
ctx.CR[1].EQ = ctx.FPSCR.Reserved&0x20000000 != 0
ctx.CR[1].SO = ctx.FPSCR.Reserved&0x10000000 != 0`
}

// overflowAdd renders the XER.OV/SO update for an add-family
// overflow-form instruction: signed overflow occurs when both operands
// share a sign and the result's sign differs from theirs.
func overflowAdd(aExpr, bExpr, resultExpr string) string {
	return fmt.Sprintf(`ov := (int32(%s) < 0) == (int32(%s) < 0) && (int32(%s) < 0) != (int32(%s) < 0)
ctx.XER.OV = ov
if ov {
	ctx.XER.SO = true
}`, aExpr, bExpr, aExpr, resultExpr)
}

// overflowSub renders the XER.OV/SO update for subf-family
// instructions: a - b overflows when a and -b share a sign the result
// doesn't, equivalently when a and b differ in sign and the result's
// sign matches b's.
func overflowSub(aExpr, bExpr, resultExpr string) string {
	return fmt.Sprintf(`ov := (int32(%s) < 0) != (int32(%s) < 0) && (int32(%s) < 0) == (int32(%s) < 0)
ctx.XER.OV = ov
if ov {
	ctx.XER.SO = true
}`, aExpr, bExpr, bExpr, resultExpr)
}

// overflowMulDiv renders the XER.OV/SO update in terms of a
// caller-supplied boolean expression, since multiply/divide overflow
// conditions (truncation, divide-by-zero, INT_MIN/-1) don't reduce to
// the add/sub sign-comparison shape.
func overflowMulDiv(condExpr string) string {
	return fmt.Sprintf(`ov := %s
ctx.XER.OV = ov
if ov {
	ctx.XER.SO = true
}`, condExpr)
}

// carryAdd renders the XER.CA update for an add-with-carry producing
// instruction: carry out of bit 31, computed on the 64-bit widened sum.
func carryAdd(aExpr, bExpr string) string {
	return fmt.Sprintf("ctx.XER.CA = (uint64(%s)+uint64(%s))>>32 != 0", aExpr, bExpr)
}

// carrySub renders the XER.CA update for subf-family instructions,
// which PowerPC defines as carry = NOT borrow (set when no borrow
// occurred, i.e. b >= a unsigned for the b - a that subf computes
// without carry-in).
func carrySub(aExpr, bExpr string) string {
	return fmt.Sprintf("ctx.XER.CA = uint64(%s) >= uint64(%s)", bExpr, aExpr)
}

// rotl32Mask computes the PowerPC M-form mask(MB,ME): 32 bits numbered
// MSB-first (bit 0 is the sign bit), all bits from MB through ME set,
// wrapping around bit 31 back to bit 0 when ME < MB. MB/ME are fixed
// at decode time, so rotateMask (arith.go) calls this once per
// instruction and bakes the result into the generated source as a
// literal rather than recomputing it at guest-execution time.
func rotl32Mask(mb, me uint32) uint32 {
	var mask uint32
	bit := mb
	for {
		mask |= 1 << (31 - bit)
		if bit == me {
			break
		}
		bit = (bit + 1) % 32
	}
	return mask
}
