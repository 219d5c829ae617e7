package kernelabi

import (
	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
	"github.com/xenonrecomp/xenonrecomp/internal/runtime"
)

// DbgPrint(LPCSTR Format, ...) is exported as a fixed-arity wrapper
// over the varargs-free convention this recompiler uses everywhere
// else a guest formats a string for the host: r3/r4 hold a pointer
// and length, the same pair the tw/td debug-print trap selectors
// (runtime.TrapDebugPrintA/B) already consume, so this export just
// hands off to the trap handler instead of duplicating its logic.
func DbgPrint(ctx *guestctx.Context, base []byte) {
	runtime.TrapService(ctx, base, runtime.TrapDebugPrintA)
}
