//go:build !windows

package vmm

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/xenonrecomp/xenonrecomp/internal/guestmem"
)

// reserveArena maps the entire 4 GiB guest arena as a single
// anonymous, PROT_NONE mapping. Individual heaps commit sub-ranges
// with mprotect rather than creating separate mappings, so Release
// can hand a hole back to the kernel without disturbing neighboring
// heaps. Grounded on ascrivener-jam's pkg/pvm.RAM, which reserves its
// whole address space the same way with a single mmap call.
func reserveArena(size uint64) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, errors.Wrap(err, "mmap arena")
	}
	return b, nil
}

func hostGranularity() guestmem.Granularity {
	return guestmem.Granularity4KiB
}

func hostProt(p Protect) int {
	prot := unix.PROT_NONE
	if p&ProtectRead != 0 {
		prot |= unix.PROT_READ
	}
	if p&ProtectWrite != 0 {
		prot |= unix.PROT_WRITE
	}
	return prot
}

func commitRange(base []byte, offset, size uint64, protect Protect) error {
	region := base[offset : offset+size]
	if err := unix.Mprotect(region, hostProt(protect)); err != nil {
		return errors.Wrap(err, "mprotect commit")
	}
	return nil
}

func protectRange(base []byte, offset, size uint64, protect Protect) error {
	region := base[offset : offset+size]
	if err := unix.Mprotect(region, hostProt(protect)); err != nil {
		return errors.Wrap(err, "mprotect")
	}
	return nil
}

func decommitRange(base []byte, offset, size uint64) error {
	region := base[offset : offset+size]
	if err := unix.Mprotect(region, unix.PROT_NONE); err != nil {
		return errors.Wrap(err, "mprotect decommit")
	}
	if err := unix.Madvise(region, unix.MADV_DONTNEED); err != nil {
		return errors.Wrap(err, "madvise decommit")
	}
	return nil
}

// releaseRange hands the range back to PROT_NONE and advises the
// kernel to drop its backing pages, mirroring a Windows MEM_RELEASE
// without fragmenting the single backing mapping the arena relies on
// for the physical-heap aliasing windows.
func releaseRange(base []byte, offset, size uint64) error {
	region := base[offset : offset+size]
	if err := unix.Madvise(region, unix.MADV_DONTNEED); err != nil {
		return errors.Wrap(err, "madvise release")
	}
	if err := unix.Mprotect(region, unix.PROT_NONE); err != nil {
		return errors.Wrap(err, "mprotect release")
	}
	return nil
}

// aliasPhysical maps count bytes of a memfd-backed shared region at
// guestAddr, used to give a single physical allocation more than one
// virtual window (the 0xA0000000/0xC0000000/0xE0000000 physical
// heaps), keeping the aliasing as address arithmetic rather than a
// copy. Hosts without memfd_create (non-Linux POSIX) fall back to a plain
// anonymous mapping at that window, which loses the aliasing property
// but keeps single-window access working; documented in DESIGN.md.
func aliasPhysical(base []byte, fd int, fileOffset int64, guestAddr, size uint32, protect Protect) error {
	dstAddr := uintptr(unsafe.Pointer(&base[guestAddr]))
	_, _, errno := unix.Syscall6(unix.SYS_MMAP, dstAddr, uintptr(size),
		uintptr(hostProt(protect)), uintptr(unix.MAP_SHARED|unix.MAP_FIXED),
		uintptr(fd), uintptr(fileOffset))
	if errno != 0 {
		return errors.Wrap(errno, "mmap alias")
	}
	return nil
}
