package kernelabi

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
	"github.com/xenonrecomp/xenonrecomp/internal/vmm"
)

// Guest-visible MEM_* allocation-type flags (winnt.h numbering).
const (
	memCommit     = 0x00001000
	memReserve    = 0x00002000
	memReset      = 0x00080000
	memTopDown    = 0x00100000
	memLargePages = 0x20000000
)

// Guest-visible PAGE_* protection flags.
const (
	pageNoAccess     = 0x01
	pageReadOnly     = 0x02
	pageReadWrite    = 0x04
	pageNoCache      = 0x200
	pageWriteCombine = 0x400
)

// NTSTATUS values this recompiler's exports actually return. The
// guest never inspects more than success-or-not for the ones below.
const (
	statusSuccess            = 0x00000000
	statusInvalidParameter   = 0xC000000D
	statusNoMemory           = 0xC0000017
	statusAccessDenied       = 0xC0000022
	statusAlreadyCommitted   = 0xC0000021
	statusMemoryNotAllocated = 0xC00000A0
)

// translateAllocType maps the guest's alloc_type flags onto
// vmm.AllocType. MEM_RESET (discard-without-freeing, a hint the real
// kernel uses to let the pager drop clean pages under memory pressure)
// has no equivalent in this recompiler's heap model: there is no
// pager to hint, so a request naming it panics with the flag value
// rather than silently discarding the hint, surfacing the gap instead
// of masking it.
func translateAllocType(flags uint32) vmm.AllocType {
	if flags&memReset != 0 {
		panic(fmt.Sprintf("kernelabi: MEM_RESET (alloc_type 0x%X) is not implemented", flags))
	}
	var t vmm.AllocType
	if flags&memReserve != 0 {
		t |= vmm.AllocReserve
	}
	if flags&memCommit != 0 {
		t |= vmm.AllocCommit
	}
	return t
}

func translateProtect(flags uint32) vmm.Protect {
	var p vmm.Protect
	switch {
	case flags&pageReadWrite != 0:
		p = vmm.ProtectRead | vmm.ProtectWrite
	case flags&pageReadOnly != 0:
		p = vmm.ProtectRead
	case flags&pageNoAccess != 0:
		p = vmm.ProtectNone
	default:
		p = vmm.ProtectRead | vmm.ProtectWrite
	}
	if flags&pageNoCache != 0 {
		p |= vmm.ProtectNoCache
	}
	if flags&pageWriteCombine != 0 {
		p |= vmm.ProtectWriteCombine
	}
	return p
}

func untranslateProtect(p vmm.Protect) uint32 {
	var flags uint32
	switch {
	case p&vmm.ProtectWrite != 0:
		flags = pageReadWrite
	case p&vmm.ProtectRead != 0:
		flags = pageReadOnly
	default:
		flags = pageNoAccess
	}
	if p&vmm.ProtectNoCache != 0 {
		flags |= pageNoCache
	}
	if p&vmm.ProtectWriteCombine != 0 {
		flags |= pageWriteCombine
	}
	return flags
}

func pageSizeFor(flags uint32) vmm.PageSize {
	if flags&memLargePages != 0 {
		return vmm.Page64KiB
	}
	return vmm.Page4KiB
}

// ntStatus maps a vmm error to the NTSTATUS code NtXxxVirtualMemory
// returns in r3; errors.Is unwraps the fmt.Errorf("%w: ...", ...)
// wrapping vmm's accessors use.
func ntStatus(err error) uint32 {
	switch {
	case err == nil:
		return statusSuccess
	case errors.Is(err, vmm.ErrOutOfMemory):
		return statusNoMemory
	case errors.Is(err, vmm.ErrInvalidParameter):
		return statusInvalidParameter
	case errors.Is(err, vmm.ErrAccessDenied):
		return statusAccessDenied
	case errors.Is(err, vmm.ErrAlreadyCommitted):
		return statusAlreadyCommitted
	case errors.Is(err, vmm.ErrMemoryNotAllocated):
		return statusMemoryNotAllocated
	default:
		return statusInvalidParameter
	}
}

func state(ctx *guestctx.Context) *State { return ctx.Kernel.(*State) }

// NtAllocateVirtualMemory(PVOID *BaseAddress, SIZE_T *RegionSize,
// DWORD AllocationType, DWORD Protect). BaseAddress/RegionSize arrive
// in r3/r4 as pointers to in/out parameters, AllocationType/Protect in
// r5/r6 by value; the result status is returned in r3, the guest ABI's
// convention for every Nt*/Mm* export in this table.
func NtAllocateVirtualMemory(ctx *guestctx.Context, base []byte) {
	k := state(ctx)
	baseAddrPtr := LPDWord(ctx.GPR[3].U32())
	sizePtr := LPDWord(ctx.GPR[4].U32())
	allocType := ctx.GPR[5].U32()
	protect := translateProtect(ctx.GPR[6].U32())
	pageSize := pageSizeFor(allocType)

	reqBase := baseAddrPtr.Load(base)
	size := sizePtr.Load(base)

	var (
		addr uint32
		err  error
	)
	if reqBase != 0 {
		addr = reqBase
		err = k.VMM.AllocFixed(reqBase, size, pageSize, translateAllocType(allocType), protect)
	} else {
		addr, err = k.VMM.Alloc(size, pageSize, translateAllocType(allocType), protect, allocType&memTopDown != 0)
	}
	if err != nil {
		ctx.GPR[3].SetU32(ntStatus(err))
		return
	}

	baseAddrPtr.Store(base, addr)
	sizePtr.Store(base, size)
	ctx.GPR[3].SetU32(statusSuccess)
}

// NtFreeVirtualMemory(PVOID *BaseAddress, SIZE_T *RegionSize, DWORD
// FreeType). FreeType==MEM_DECOMMIT (0x4000) decommits without
// releasing the reservation; anything else releases it outright.
func NtFreeVirtualMemory(ctx *guestctx.Context, base []byte) {
	const memDecommit = 0x4000

	k := state(ctx)
	baseAddrPtr := LPDWord(ctx.GPR[3].U32())
	sizePtr := LPDWord(ctx.GPR[4].U32())
	freeType := ctx.GPR[5].U32()

	addr := baseAddrPtr.Load(base)
	size := sizePtr.Load(base)

	if freeType&memDecommit != 0 {
		if err := k.VMM.Decommit(addr, size); err != nil {
			ctx.GPR[3].SetU32(ntStatus(err))
			return
		}
		ctx.GPR[3].SetU32(statusSuccess)
		return
	}

	released, err := k.VMM.Release(addr)
	if err != nil {
		ctx.GPR[3].SetU32(ntStatus(err))
		return
	}
	sizePtr.Store(base, released)
	ctx.GPR[3].SetU32(statusSuccess)
}

// NtProtectVirtualMemory(PVOID *BaseAddress, SIZE_T *RegionSize, DWORD
// NewProtect, DWORD *OldProtect).
func NtProtectVirtualMemory(ctx *guestctx.Context, base []byte) {
	k := state(ctx)
	baseAddrPtr := LPDWord(ctx.GPR[3].U32())
	sizePtr := LPDWord(ctx.GPR[4].U32())
	newProtect := translateProtect(ctx.GPR[5].U32())
	oldProtectPtr := Pointer[DWord](ctx.GPR[6].U32())

	addr := baseAddrPtr.Load(base)
	size := sizePtr.Load(base)

	old, err := k.VMM.Protect(addr, size, newProtect)
	if err != nil {
		ctx.GPR[3].SetU32(ntStatus(err))
		return
	}
	if !oldProtectPtr.IsNull() {
		oldProtectPtr.Store(base, DWord(untranslateProtect(old)))
	}
	ctx.GPR[3].SetU32(statusSuccess)
}

// NtQueryVirtualMemory(PVOID BaseAddress, MEMORY_BASIC_INFORMATION
// *MemoryInformation). The guest's MEMORY_BASIC_INFORMATION struct is
// laid out as six consecutive DWORDs starting at MemoryInformation:
// BaseAddress, AllocationBase, AllocationProtect, RegionSize, State,
// Protect.
func NtQueryVirtualMemory(ctx *guestctx.Context, base []byte) {
	k := state(ctx)
	addr := ctx.GPR[3].U32()
	infoPtr := ctx.GPR[4].U32()

	info, err := k.VMM.QueryRegionInfo(addr)
	if err != nil {
		ctx.GPR[3].SetU32(ntStatus(err))
		return
	}

	write := func(off uint32, v uint32) { LPDWord(infoPtr+off).Store(base, v) }
	write(0, info.Base)
	write(4, info.AllocationBase)
	write(8, untranslateProtect(info.AllocationProtect))
	write(12, info.RegionSize)
	write(16, uint32(info.State))
	write(20, untranslateProtect(info.Protect))
	ctx.GPR[3].SetU32(statusSuccess)
}

// MmAllocatePhysicalMemory(SIZE_T Size, DWORD Protect) -> PVOID,
// allocating from the top-down physical pool the way the real kernel
// favors high physical addresses for device-visible buffers.
func MmAllocatePhysicalMemory(ctx *guestctx.Context, base []byte) {
	k := state(ctx)
	size := ctx.GPR[3].U32()
	protect := translateProtect(ctx.GPR[4].U32())

	// The physical-64k heap spans [0xA0000000, 0xC0000000).
	addr, err := k.VMM.AllocRange(0xA0000000, 0xC0000000, size, uint32(vmm.Page64KiB), vmm.AllocReserve|vmm.AllocCommit, protect, true)
	if err != nil {
		ctx.GPR[3].SetU32(0)
		return
	}
	ctx.GPR[3].SetU32(addr)
}

// MmFreePhysicalMemory(PVOID BaseAddress).
func MmFreePhysicalMemory(ctx *guestctx.Context, base []byte) {
	k := state(ctx)
	addr := ctx.GPR[3].U32()
	k.VMM.Release(addr)
}

// MmQueryAddressProtect(PVOID VirtualAddress) -> DWORD.
func MmQueryAddressProtect(ctx *guestctx.Context, base []byte) {
	k := state(ctx)
	addr := ctx.GPR[3].U32()
	p, err := k.VMM.QueryProtect(addr)
	if err != nil {
		ctx.GPR[3].SetU32(pageNoAccess)
		return
	}
	ctx.GPR[3].SetU32(untranslateProtect(p))
}

// MmQueryStatistics(XBOX_MEMORY_STATISTICS *Statistics) fills a
// three-DWORD struct with live figures derived from the physical heap
// map, rather than the fixed numbers a fully emulated kernel would
// report from the console's actual BIOS-reported memory map.
func MmQueryStatistics(ctx *guestctx.Context, base []byte) {
	k := state(ctx)
	statsPtr := ctx.GPR[3].U32()
	s := k.VMM.Statistics()

	write := func(off uint32, v uint32) { LPDWord(statsPtr+off).Store(base, v) }
	write(0, s.TotalPhysicalPages)
	write(4, s.AvailablePages)
	write(8, s.PoolPagesAllocated)
	ctx.GPR[3].SetU32(statusSuccess)
}

// KeGetImagePageTableEntry(PVOID Address) -> DWORD. The real export
// walks the console's page tables for per-page PTE flags; no emitted
// code in this recompiler inspects the returned value beyond checking
// it is non-zero, so this stays a documented stub rather than building
// a PTE model no caller exercises.
func KeGetImagePageTableEntry(ctx *guestctx.Context, base []byte) {
	ctx.GPR[3].SetU32(1)
}
