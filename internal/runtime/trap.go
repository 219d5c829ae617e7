// Package runtime hosts the guest-runtime support emitted code links
// against but that doesn't belong to the register context, the flat
// arena, or the dispatch table specifically: trap services, the
// setjmp/longjmp shim, the guest timebase, the cooperative global
// lock modeling the EE bit, and the FPSCR wrapper.
package runtime

import (
	"log"

	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
	"github.com/xenonrecomp/xenonrecomp/internal/guestmem"
)

// Trap selectors.
const (
	TrapDebugPrintA = 20
	TrapDebugPrintB = 26
	TrapDebugBreakA = 0
	TrapDebugBreakB = 22
	TrapNoOp        = 25
)

// TrapService is the runtime entry point emitted trap instructions
// call: twi passes its 16-bit immediate as the selector, tw/td pass 0.
// The unconditional encodings call it directly; conditional traps
// expand to `if (cond) trapService(selector)` inline at the call site,
// reach here only when the condition holds, and always fall through
// afterward. base is the same raw arena slice every emitted
// function receives, not an *Arena, so this reads through
// guestmem's free accessors the same way emitted loads/stores do.
func TrapService(ctx *guestctx.Context, base []byte, selector uint16) {
	switch selector {
	case TrapDebugPrintA, TrapDebugPrintB:
		debugPrint(ctx, base)
	case TrapDebugBreakA, TrapDebugBreakB:
		log.Print("guest debug break")
	case TrapNoOp:
		// no-op selector; intentionally does nothing.
	default:
		log.Printf("guest trap: unrecognized selector %d", selector)
	}
}

// debugPrint implements the {20,26} selector: read a guest pointer and
// length pair from r3/r4 and log the bytes as a string.
func debugPrint(ctx *guestctx.Context, base []byte) {
	ptr := ctx.GPR[3].U32()
	length := ctx.GPR[4].U32()
	buf := make([]byte, length)
	for i := uint32(0); i < length; i++ {
		buf[i] = guestmem.LoadU8(base, ptr+i)
	}
	log.Printf("guest: %s", string(buf))
}
