package guestmem

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// activeMMIO is the process-wide MMIO handler emitted functions consult.
// Emitted functions receive only a raw base []byte (the arena's backing
// slice, mirroring the original's `u8* base` ABI), not an *Arena, so the
// MMIO window needs a process-wide binding the same way the dispatch
// table and the VMM are process-wide singletons.
var activeMMIO MMIOHandler = NullMMIOHandler{}

// BindMMIO installs the MMIO handler emitted load/store helpers route
// through. Called once during runtime startup, before any guest
// function runs, mirroring dispatch.Table.Install's one-time build.
func BindMMIO(h MMIOHandler) {
	activeMMIO = h
}

// LoadU8 and StoreU8 read/write one raw byte directly on base, the
// emitted-function ABI's second parameter. Byte accesses never route
// through MMIO, matching Arena.LoadU8/StoreU8.
func LoadU8(base []byte, guest uint32) uint8     { return base[RawAddr(guest)] }
func StoreU8(base []byte, guest uint32, v uint8) { base[RawAddr(guest)] = v }

func LoadU16(base []byte, guest uint32) uint16 {
	if inMMIOWindow(guest) {
		return uint16(activeMMIO.Load(guest, 2))
	}
	return binary.BigEndian.Uint16(base[RawAddr(guest):])
}

func StoreU16(base []byte, guest uint32, v uint16) {
	if inMMIOWindow(guest) {
		activeMMIO.Store(guest, 2, uint64(v))
		return
	}
	binary.BigEndian.PutUint16(base[RawAddr(guest):], v)
}

func LoadU32(base []byte, guest uint32) uint32 {
	if inMMIOWindow(guest) {
		return uint32(activeMMIO.Load(guest, 4))
	}
	return binary.BigEndian.Uint32(base[RawAddr(guest):])
}

func StoreU32(base []byte, guest uint32, v uint32) {
	if inMMIOWindow(guest) {
		activeMMIO.Store(guest, 4, uint64(v))
		return
	}
	binary.BigEndian.PutUint32(base[RawAddr(guest):], v)
}

// LoadU64 and StoreU64 decompose into two 32-bit transactions,
// high-word-first, inside the MMIO window.
func LoadU64(base []byte, guest uint32) uint64 {
	if inMMIOWindow(guest) {
		hi := uint64(activeMMIO.Load(guest, 4))
		lo := uint64(activeMMIO.Load(guest+4, 4))
		return hi<<32 | lo
	}
	return binary.BigEndian.Uint64(base[RawAddr(guest):])
}

func StoreU64(base []byte, guest uint32, v uint64) {
	if inMMIOWindow(guest) {
		activeMMIO.Store(guest, 4, v>>32)
		activeMMIO.Store(guest+4, 4, v&0xFFFFFFFF)
		return
	}
	binary.BigEndian.PutUint64(base[RawAddr(guest):], v)
}

// CompareAndSwapU32 performs a host atomic compare-and-swap on the
// big-endian 32-bit word at guest, the primitive lwarx/stwcx. compile
// down to ("compile to a host compare-and-swap on the aligned word").
// old/new are logical decoded values; bigEndianWord re-encodes each to
// the same raw byte pattern the arena actually stores before handing
// them to atomic.CompareAndSwapUint32, so the comparison is against
// what's really in memory regardless of host endianness.
func CompareAndSwapU32(base []byte, guest, old, new uint32) bool {
	ptr := (*uint32)(unsafe.Pointer(&base[RawAddr(guest)]))
	return atomic.CompareAndSwapUint32(ptr, bigEndianWord32(old), bigEndianWord32(new))
}

// CompareAndSwapU64 is CompareAndSwapU32's 64-bit counterpart, backing
// ldarx/stdcx.
func CompareAndSwapU64(base []byte, guest uint32, old, new uint64) bool {
	ptr := (*uint64)(unsafe.Pointer(&base[RawAddr(guest)]))
	return atomic.CompareAndSwapUint64(ptr, bigEndianWord64(old), bigEndianWord64(new))
}

func bigEndianWord32(v uint32) uint32 {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return *(*uint32)(unsafe.Pointer(&buf[0]))
}

func bigEndianWord64(v uint64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return *(*uint64)(unsafe.Pointer(&buf[0]))
}

// LoadBytes and StoreBytes move a raw byte range with no width
// conversion, for the 128-bit vector load/store unit; the MMIO window
// is defined only for scalar-width transactions, so vector accesses
// always address the flat arena directly.
func LoadBytes(base []byte, guest uint32, n int) []byte {
	off := RawAddr(guest)
	return base[off : off+uint32(n)]
}

func StoreBytes(base []byte, guest uint32, data []byte) {
	off := RawAddr(guest)
	copy(base[off:off+uint32(len(data))], data)
}
