//go:build windows

package vmm

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/windows"

	"github.com/xenonrecomp/xenonrecomp/internal/guestmem"
)

// reserveArena reserves the 4 GiB guest arena with a single
// VirtualAlloc(MEM_RESERVE) call; commits happen on sub-ranges of this
// one reservation via VirtualAlloc(MEM_COMMIT), matching the host's
// own NtAllocateVirtualMemory two-phase model directly (the guest
// kernel export this package backs is itself a thin NT veneer).
func reserveArena(size uint64) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, errors.Wrap(err, "VirtualAlloc reserve")
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func hostGranularity() guestmem.Granularity {
	return guestmem.Granularity64KiB
}

func hostProtectFlag(p Protect) uint32 {
	switch {
	case p&ProtectWrite != 0 && p&ProtectRead != 0:
		return windows.PAGE_READWRITE
	case p&ProtectRead != 0:
		return windows.PAGE_READONLY
	default:
		return windows.PAGE_NOACCESS
	}
}

func baseAddr(base []byte) uintptr {
	return uintptr(unsafe.Pointer(&base[0]))
}

func commitRange(base []byte, offset, size uint64, protect Protect) error {
	addr := baseAddr(base) + uintptr(offset)
	_, err := windows.VirtualAlloc(addr, uintptr(size), windows.MEM_COMMIT, hostProtectFlag(protect))
	if err != nil {
		return errors.Wrap(err, "VirtualAlloc commit")
	}
	return nil
}

func protectRange(base []byte, offset, size uint64, protect Protect) error {
	addr := baseAddr(base) + uintptr(offset)
	var old uint32
	if err := windows.VirtualProtect(addr, uintptr(size), hostProtectFlag(protect), &old); err != nil {
		return errors.Wrap(err, "VirtualProtect")
	}
	return nil
}

func decommitRange(base []byte, offset, size uint64) error {
	addr := baseAddr(base) + uintptr(offset)
	if err := windows.VirtualFree(addr, uintptr(size), windows.MEM_DECOMMIT); err != nil {
		return errors.Wrap(err, "VirtualFree decommit")
	}
	return nil
}

// releaseRange resets the range to PAGE_NOACCESS rather than issuing
// VirtualFree(MEM_RELEASE): the arena is reserved once, as a single
// 4 GiB placeholder, so a real MEM_RELEASE of a sub-range would need
// the Windows 10 placeholder-split API
// (VirtualAlloc2/MEM_PRESERVE_PLACEHOLDER). The guest-visible
// reserve/commit/decommit/release state machine lives entirely in
// Manager's page map, so the host mapping only needs to track
// accessibility, not the VAD-level distinction between "released" and
// "decommitted"; true placeholder splitting would be needed only if
// this process ever handed the freed range to an unrelated host
// allocation, which it does not.
func releaseRange(base []byte, offset, size uint64) error {
	return decommitRange(base, offset, size)
}
