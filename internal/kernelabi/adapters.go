// Package kernelabi implements the kernel-export surface emitted code
// calls into for `__imp__*` thunks: a name-keyed dispatch table plus
// typed parameter adapters over the guest's raw GPR/memory calling
// convention, and a representative slice of the kernel exports
// themselves, adapted over internal/vmm.
package kernelabi

import (
	"github.com/xenonrecomp/xenonrecomp/internal/guestmem"
	"github.com/xenonrecomp/xenonrecomp/internal/vmm"
)

// State is the host-side kernel state every export function reaches
// through ctx.Kernel: one VMM manager for the process lifetime, plus
// the handle-less bookkeeping the implemented exports need. A single
// State is constructed once at process start and shared by every
// guest thread's Context, the same "populate once, treat as shared
// state thereafter" rule the VMM's own heap map follows.
type State struct {
	VMM *vmm.Manager
}

// DWord is a 32-bit value parameter passed by value in a single GPR.
type DWord uint32

// QWord is a 64-bit value parameter passed by value in a single GPR.
type QWord uint64

// LPVoid is an opaque guest pointer: an address this adapter layer
// passes through without interpreting its pointee.
type LPVoid uint32

// LPDWord is a guest pointer to one 32-bit in/out parameter, the shape
// NtAllocateVirtualMemory's BaseAddress/RegionSize parameters take.
type LPDWord uint32

func (p LPDWord) Load(base []byte) uint32     { return guestmem.LoadU32(base, uint32(p)) }
func (p LPDWord) Store(base []byte, v uint32) { guestmem.StoreU32(base, uint32(p), v) }
func (p LPDWord) IsNull() bool                { return p == 0 }

// Pointer is a typed guest pointer to a DWord- or QWord-sized
// out-parameter, for exports whose signature names a typed parameter
// rather than LPDWord's untyped uint32.
type Pointer[T DWord | QWord] uint32

func (p Pointer[T]) Load(base []byte) T {
	var zero T
	switch any(zero).(type) {
	case QWord:
		return T(QWord(guestmem.LoadU64(base, uint32(p))))
	default:
		return T(DWord(guestmem.LoadU32(base, uint32(p))))
	}
}

func (p Pointer[T]) Store(base []byte, v T) {
	switch vv := any(v).(type) {
	case QWord:
		guestmem.StoreU64(base, uint32(p), uint64(vv))
	case DWord:
		guestmem.StoreU32(base, uint32(p), uint32(vv))
	}
}

func (p Pointer[T]) IsNull() bool { return p == 0 }
