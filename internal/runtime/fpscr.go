package runtime

import (
	"math"

	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
)

// fpscrBits mirrors the subset of the real FPSCR the emitter and
// kernel ABI glue need to cross the host/guest boundary through
// mtfsf/mffs: rounding mode in bits 30-31 and flush-to-zero in bit 29
// (RN/NI in the real encoding): the guest's flush-to-zero and
// rounding-mode bits.
const (
	fpscrRNMask = 0x3
	fpscrNIBit  = 1 << 2
)

// MFFS implements `mffs`: packs ctx.FPSCR into the 32-bit guest
// representation.
func MFFS(ctx *guestctx.Context) uint32 {
	var v uint32
	v |= uint32(ctx.FPSCR.RoundingMode) & fpscrRNMask
	if ctx.FPSCR.FlushToZero {
		v |= fpscrNIBit
	}
	v |= ctx.FPSCR.Reserved &^ (fpscrRNMask | fpscrNIBit)
	return v
}

// MTFSF implements `mtfsf`: unpacks the 32-bit guest representation
// into ctx.FPSCR.
func MTFSF(ctx *guestctx.Context, v uint32) {
	ctx.FPSCR.RoundingMode = guestctx.RoundingMode(v & fpscrRNMask)
	ctx.FPSCR.FlushToZero = v&fpscrNIBit != 0
	ctx.FPSCR.Reserved = v &^ (fpscrRNMask | fpscrNIBit)
}

// ApplyFlushToZero32 flushes a subnormal single-precision FP-producing
// result to zero (preserving sign) when ctx.FPSCR.FlushToZero is set.
// Emitted code does not call it: the emitter keeps FPRs in double
// precision and flushes results through ApplyFlushToZero64.
func ApplyFlushToZero32(ctx *guestctx.Context, v float32) float32 {
	if !ctx.FPSCR.FlushToZero {
		return v
	}
	if v != 0 && math.Abs(float64(v)) < math.SmallestNonzeroFloat32*float64(1<<23) {
		if math.Signbit(float64(v)) {
			return float32(math.Copysign(0, -1))
		}
		return 0
	}
	return v
}

// ApplyFlushToZero64 is the double-precision counterpart.
func ApplyFlushToZero64(ctx *guestctx.Context, v float64) float64 {
	if !ctx.FPSCR.FlushToZero {
		return v
	}
	if v != 0 && math.Abs(v) < math.SmallestNonzeroFloat64*float64(uint64(1)<<52) {
		if math.Signbit(v) {
			return math.Copysign(0, -1)
		}
		return 0
	}
	return v
}

// HostRoundingMode projects the guest rounding-mode bits to the
// nearest host rounding intrinsic name, for callers that need to
// configure hardware rounding (e.g. via a host FP control register);
// this recompiler does not change the host FPU's rounding mode
// directly since Go exposes no portable intrinsic for it, so FP
// emission instead computes every result at default (round-to-nearest)
// and no emitted code calls this. Kept as a one-line lookup table rather than a bespoke
// enum to match the FPSCR bit encoding directly.
func HostRoundingMode(ctx *guestctx.Context) string {
	switch ctx.FPSCR.RoundingMode {
	case guestctx.RoundTowardZero:
		return "toward-zero"
	case guestctx.RoundTowardPositive:
		return "toward-positive"
	case guestctx.RoundTowardNegative:
		return "toward-negative"
	default:
		return "nearest"
	}
}
