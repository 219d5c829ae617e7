// Package dispatch implements the indirect-call mapping table: a flat
// array of host function pointers keyed by guest_pc - CODE_BASE, used
// to compile bctr/blr-through-ctr and computed calls. The table is
// populated once at startup from the emitter-generated FuncMappings[]
// array and is read-only for the remainder of the process, mirroring
// how virtualxt's CPU.InstallMemoryDevice/InstallIODevice tables are
// built once during installPeripherals and never mutated afterward.
package dispatch

import (
	"fmt"

	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
)

// CodeBase is the lowest guest address the function mapping table
// covers; entries are indexed by guest_pc - CodeBase.
const CodeBase = 0x80000000

// GuestFunc is the signature every emitted guest function has:
// void fn(GuestContext& ctx, u8* base) in the host-language spelling.
type GuestFunc func(ctx *guestctx.Context, base []byte)

// FuncMapping is one entry of the emitter-generated mapping array.
type FuncMapping struct {
	Address uint32
	Fn      GuestFunc
}

// Active is the process-wide table instance emitted code calls
// through for bctr/indirect-blr. Installed once at startup via
// Active.Install, mirroring guestmem.activeMMIO's single package-level
// binding point.
var Active Table

// Table is the process-wide indirect-dispatch table. It is populated
// exactly once via Install and is safe for concurrent read-only lookup
// thereafter without additional locking.
type Table struct {
	entries []GuestFunc
	built   bool
}

// Install populates the table from the emitter's generated mapping
// array. Calling Install a second time is a programmer error (the
// table must be built once before any guest thread runs) and panics,
// matching virtualxt's log.Panic-on-misuse style in register.go's
// Exchange.
func (t *Table) Install(mappings []FuncMapping, highestAddress uint32) {
	if t.built {
		panic("dispatch: table already installed")
	}
	size := highestAddress - CodeBase + 1
	t.entries = make([]GuestFunc, size)
	for _, m := range mappings {
		if m.Address < CodeBase {
			panic(fmt.Sprintf("dispatch: mapping 0x%X below CodeBase 0x%X", m.Address, CodeBase))
		}
		t.entries[m.Address-CodeBase] = m.Fn
	}
	t.built = true
}

// ErrUnmapped is returned by Lookup and Call when an indirect branch
// targets an address with no registered function.
type ErrUnmapped struct {
	Address uint32
}

func (e *ErrUnmapped) Error() string {
	return fmt.Sprintf("dispatch: no function mapped at guest address 0x%X", e.Address)
}

// Lookup resolves a guest program counter to its emitted host
// function, or returns ErrUnmapped for an empty slot.
func (t *Table) Lookup(pc uint32) (GuestFunc, error) {
	if pc < CodeBase || int(pc-CodeBase) >= len(t.entries) {
		return nil, &ErrUnmapped{Address: pc}
	}
	fn := t.entries[pc-CodeBase]
	if fn == nil {
		return nil, &ErrUnmapped{Address: pc}
	}
	return fn, nil
}

// Call resolves and invokes the function at pc against ctx/base. This
// is what an emitted bctr/indirect-blr compiles to: M[pc](ctx, base).
func (t *Table) Call(pc uint32, ctx *guestctx.Context, base []byte) error {
	fn, err := t.Lookup(pc)
	if err != nil {
		return err
	}
	fn(ctx, base)
	return nil
}
