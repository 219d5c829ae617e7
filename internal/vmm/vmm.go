package vmm

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/xenonrecomp/xenonrecomp/internal/guestmem"
)

// Runtime memory errors, surfaced to the guest as NTSTATUS equivalents
// by internal/kernelabi.
var (
	ErrOutOfMemory        = errors.New("vmm: out of memory")
	ErrInvalidParameter   = errors.New("vmm: invalid parameter")
	ErrAccessDenied       = errors.New("vmm: access denied")
	ErrMemoryNotAllocated = errors.New("vmm: memory not allocated")
	ErrAlreadyCommitted   = errors.New("vmm: already committed")
)

// AllocType mirrors the guest alloc_type flags.
type AllocType uint8

const (
	AllocReserve AllocType = 1 << iota
	AllocCommit
)

// heapLayout is the canonical partition of the 4 GiB arena.
type heapLayout struct {
	name     string
	base     uint32
	size     uint32
	pageSize PageSize
	kind     Kind
}

var canonicalLayout = []heapLayout{
	{"virtual-small", 0x00000000, 0x40000000, Page4KiB, KindVirtual},
	{"virtual-large", 0x40000000, 0x3F000000, Page64KiB, KindVirtual},
	// 0x7F000000-0x80000000 is the MMIO window: no backing heap.
	{"image", 0x80000000, 0x20000000, Page4KiB, KindVirtual},
	{"physical-64k", 0xA0000000, 0x20000000, Page64KiB, KindPhysical},
	{"physical-16m", 0xC0000000, 0x20000000, Page16MiB, KindPhysical},
	{"physical-4k", 0xE0000000, 0x20000000, Page4KiB, KindPhysical},
}

// Manager owns the heap map and serializes its own state-mutating
// calls with a single lock; concurrent queries are allowed when no
// mutator is active. This mirrors virtualxt's
// sync.Mutex-guarded disk.Device and jit.ExecutableMemory allocators.
type Manager struct {
	mu    sync.RWMutex
	heaps []*Heap
	arena *guestmem.Arena
}

// NewManager reserves the 4 GiB arena at the host level and
// partitions it into the canonical heaps.
func NewManager() (*Manager, error) {
	raw, err := reserveArena(guestmem.ArenaSize)
	if err != nil {
		return nil, errors.Wrap(err, "vmm: reserve arena")
	}
	guestmem.SetHostGranularity(hostGranularity())

	m := &Manager{arena: &guestmem.Arena{Base: raw, MMIO: guestmem.NullMMIOHandler{}}}
	for _, l := range canonicalLayout {
		m.heaps = append(m.heaps, newHeap(l.name, l.base, l.size, l.pageSize, l.kind))
	}
	return m, nil
}

// Arena exposes the backing arena for the guest runtime's load/store
// paths.
func (m *Manager) Arena() *guestmem.Arena { return m.arena }

func (m *Manager) heapFor(addr uint32) *Heap {
	for _, h := range m.heaps {
		if h.contains(addr) {
			return h
		}
	}
	return nil
}

// AllocFixed commits or reserves a specific run. On
// commit-over-existing-reserve, only the page state and host
// protection are updated; no new host mapping is created.
func (m *Manager) AllocFixed(base, size uint32, pageSize PageSize, allocType AllocType, protect Protect) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.heapFor(base)
	if h == nil {
		return fmt.Errorf("%w: address 0x%X not in any heap", ErrInvalidParameter, base)
	}
	if h.PageSize != pageSize {
		return fmt.Errorf("%w: heap %s uses %d-byte pages, not %d", ErrInvalidParameter, h.Name, h.PageSize, pageSize)
	}
	if err := h.validateRange(base, size); err != nil {
		return err
	}

	startIdx := h.pageIndex(base)
	endIdx := h.pageIndex(base + size)

	if allocType&AllocCommit != 0 {
		offset := uint64(base)
		if err := commitRange(m.arena.Base, offset, uint64(size), protect); err != nil {
			return errors.Wrap(err, "vmm: commit")
		}
		for i := startIdx; i < endIdx; i++ {
			h.pages[i] = pageState{state: stateCommitted, protect: protect, allocationBase: base}
		}
		return nil
	}

	// Reserve only: no host-level change beyond software bookkeeping,
	// since the whole arena is already PROT_NONE-backed.
	for i := startIdx; i < endIdx; i++ {
		if h.pages[i].state != stateFree {
			return fmt.Errorf("%w: page at 0x%X already allocated", ErrAlreadyCommitted, h.pageAddr(i))
		}
		h.pages[i] = pageState{state: stateReserved, protect: ProtectNone, allocationBase: base}
	}
	return nil
}

// Alloc finds and reserves (optionally commits) size bytes in the
// heap matching pageSize, scanning top-down when requested.
func (m *Manager) Alloc(size uint32, pageSize PageSize, allocType AllocType, protect Protect, topDown bool) (uint32, error) {
	h := m.heapForPageSize(pageSize)
	if h == nil {
		return 0, fmt.Errorf("%w: no heap uses %d-byte pages", ErrInvalidParameter, pageSize)
	}
	return m.allocIn(h, h.Base, h.Base+h.Size, size, pageSize, allocType, protect, topDown)
}

// AllocRange constrains Alloc to [min, max), used for bounded physical
// allocations.
func (m *Manager) AllocRange(min, max, size uint32, alignment uint32, allocType AllocType, protect Protect, topDown bool) (uint32, error) {
	h := m.heapFor(min)
	if h == nil {
		return 0, fmt.Errorf("%w: range base 0x%X not in any heap", ErrInvalidParameter, min)
	}
	return m.allocIn(h, min, max, size, h.PageSize, allocType, protect, topDown)
}

func (m *Manager) heapForPageSize(pageSize PageSize) *Heap {
	for _, h := range m.heaps {
		if h.PageSize == pageSize && h.Kind == KindVirtual {
			return h
		}
	}
	for _, h := range m.heaps {
		if h.PageSize == pageSize {
			return h
		}
	}
	return nil
}

func (m *Manager) allocIn(h *Heap, rangeMin, rangeMax, size uint32, pageSize PageSize, allocType AllocType, protect Protect, topDown bool) (uint32, error) {
	m.mu.RLock()
	ps := uint32(pageSize)
	size = h.alignUp(size)
	needed := int(size / ps)

	lo := (rangeMin - h.Base) / ps
	hi := (rangeMax - h.Base) / ps
	if hi > uint32(len(h.pages)) {
		hi = uint32(len(h.pages))
	}

	var found = -1
	if topDown {
		for i := int(hi) - needed; i >= int(lo); i-- {
			if m.runFree(h, i, needed) {
				found = i
				break
			}
		}
	} else {
		for i := int(lo); i+needed <= int(hi); i++ {
			if m.runFree(h, i, needed) {
				found = i
				break
			}
		}
	}
	m.mu.RUnlock()

	if found < 0 {
		return 0, ErrOutOfMemory
	}
	base := h.pageAddr(found)
	if err := m.AllocFixed(base, size, pageSize, allocType, protect); err != nil {
		return 0, err
	}
	return base, nil
}

func (m *Manager) runFree(h *Heap, start, count int) bool {
	if start < 0 || start+count > len(h.pages) {
		return false
	}
	for i := start; i < start+count; i++ {
		if h.pages[i].state != stateFree {
			return false
		}
	}
	return true
}

// Protect changes protection on a uniform region; it fails across a
// reservation boundary.
func (m *Manager) Protect(base, size uint32, newProtect Protect) (Protect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.heapFor(base)
	if h == nil {
		return 0, fmt.Errorf("%w: address 0x%X not in any heap", ErrInvalidParameter, base)
	}
	if err := h.validateRange(base, size); err != nil {
		return 0, err
	}

	startIdx := h.pageIndex(base)
	endIdx := h.pageIndex(base + size)

	allocBase := h.pages[startIdx].allocationBase
	var old Protect
	for i := startIdx; i < endIdx; i++ {
		p := h.pages[i]
		if p.state != stateCommitted {
			return 0, fmt.Errorf("%w: page at 0x%X not committed", ErrMemoryNotAllocated, h.pageAddr(i))
		}
		if p.allocationBase != allocBase {
			return 0, fmt.Errorf("%w: protect range crosses a reservation boundary", ErrAccessDenied)
		}
		if i == startIdx {
			old = p.protect
		}
	}

	if err := protectRange(m.arena.Base, uint64(base), uint64(size), newProtect); err != nil {
		return 0, errors.Wrap(err, "vmm: protect")
	}
	for i := startIdx; i < endIdx; i++ {
		h.pages[i].protect = newProtect
	}
	return old, nil
}

// Decommit leaves pages reserved.
func (m *Manager) Decommit(base, size uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.heapFor(base)
	if h == nil {
		return fmt.Errorf("%w: address 0x%X not in any heap", ErrInvalidParameter, base)
	}
	if err := h.validateRange(base, size); err != nil {
		return err
	}
	startIdx := h.pageIndex(base)
	endIdx := h.pageIndex(base + size)

	for i := startIdx; i < endIdx; i++ {
		if h.pages[i].state == stateFree {
			return fmt.Errorf("%w: page at 0x%X not allocated", ErrMemoryNotAllocated, h.pageAddr(i))
		}
	}
	if err := decommitRange(m.arena.Base, uint64(base), uint64(size)); err != nil {
		return errors.Wrap(err, "vmm: decommit")
	}
	for i := startIdx; i < endIdx; i++ {
		allocBase := h.pages[i].allocationBase
		h.pages[i] = pageState{state: stateReserved, protect: ProtectNone, allocationBase: allocBase}
	}
	return nil
}

// Release releases the entire original reservation; base must equal
// the reservation's start. The extent released is the maximal
// contiguous run of non-free pages sharing base's allocationBase.
func (m *Manager) Release(base uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.heapFor(base)
	if h == nil {
		return 0, fmt.Errorf("%w: address 0x%X not in any heap", ErrInvalidParameter, base)
	}
	idx := h.pageIndex(base)
	if h.pages[idx].state == stateFree {
		return 0, ErrMemoryNotAllocated
	}
	if h.pages[idx].allocationBase != base {
		return 0, fmt.Errorf("%w: 0x%X is not a reservation base", ErrInvalidParameter, base)
	}

	start, end := idx, idx
	allocBase := h.pages[idx].allocationBase
	for end < len(h.pages) && h.pages[end].allocationBase == allocBase && h.pages[end].state != stateFree {
		end++
	}
	size := uint32(end-start) * uint32(h.PageSize)

	if err := releaseRange(m.arena.Base, uint64(base), uint64(size)); err != nil {
		return 0, errors.Wrap(err, "vmm: release")
	}
	for i := start; i < end; i++ {
		h.pages[i] = pageState{}
	}
	return size, nil
}

// QueryRegionInfo reports the allocation state of the region
// containing addr, the Manager-level counterpart to Heap's own.
func (m *Manager) QueryRegionInfo(addr uint32) (RegionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.heapFor(addr)
	if h == nil {
		return RegionInfo{}, fmt.Errorf("%w: address 0x%X not in any heap", ErrInvalidParameter, addr)
	}
	info, ok := h.QueryRegionInfo(addr)
	if !ok {
		return RegionInfo{}, ErrMemoryNotAllocated
	}
	return info, nil
}

// QueryProtect returns the current protection for addr.
func (m *Manager) QueryProtect(addr uint32) (Protect, error) {
	info, err := m.QueryRegionInfo(addr)
	if err != nil {
		return 0, err
	}
	return info.Protect, nil
}

// QuerySize returns the size of the region containing addr.
func (m *Manager) QuerySize(addr uint32) (uint32, error) {
	info, err := m.QueryRegionInfo(addr)
	if err != nil {
		return 0, err
	}
	return info.RegionSize, nil
}

// GetPhysicalAddress translates a virtual address inside a physical
// heap window to the underlying physical offset; this is pure address
// arithmetic, not a copy.
func (m *Manager) GetPhysicalAddress(virt uint32) (uint32, error) {
	h := m.heapFor(virt)
	if h == nil || h.Kind != KindPhysical {
		return 0, fmt.Errorf("%w: 0x%X is not in a physical heap", ErrInvalidParameter, virt)
	}
	return virt - h.Base, nil
}

// Zero zeroes guest memory. When the target is currently read-only,
// the VMM temporarily elevates protection, zeroes, then restores,
// matching the guest's zero-on-commit convention.
func (m *Manager) Zero(base, size uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.heapFor(base)
	if h == nil {
		return fmt.Errorf("%w: address 0x%X not in any heap", ErrInvalidParameter, base)
	}
	idx := h.pageIndex(base)
	orig := h.pages[idx].protect
	if orig&ProtectWrite == 0 {
		if err := protectRange(m.arena.Base, uint64(base), uint64(size), orig.ReadWrite()); err != nil {
			return errors.Wrap(err, "vmm: zero elevate")
		}
	}
	for i := uint32(0); i < size; i++ {
		m.arena.Base[base+i] = 0
	}
	if orig&ProtectWrite == 0 {
		if err := protectRange(m.arena.Base, uint64(base), uint64(size), orig); err != nil {
			return errors.Wrap(err, "vmm: zero restore")
		}
	}
	return nil
}

// HeapSummary is one heap's layout as a sequence of uniform-state
// runs, the read-only view cmd/heapinspect renders without reaching
// into the Heap type's unexported page array.
type HeapSummary struct {
	Name     string
	Base     uint32
	Size     uint32
	PageSize PageSize
	Kind     Kind
	Regions  []RegionInfo
}

// Summarize walks every heap with QueryRegionInfo, collapsing it into
// its uniform-state runs, the same run-coalescing findRun already does
// for a single address.
func (m *Manager) Summarize() []HeapSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]HeapSummary, len(m.heaps))
	for i, h := range m.heaps {
		s := HeapSummary{Name: h.Name, Base: h.Base, Size: h.Size, PageSize: h.PageSize, Kind: h.Kind}
		addr := h.Base
		for addr < h.Base+h.Size {
			info, ok := h.QueryRegionInfo(addr)
			if !ok {
				break
			}
			s.Regions = append(s.Regions, info)
			addr = info.Base + info.RegionSize
		}
		summaries[i] = s
	}
	return summaries
}

// Statistics reports live figures derived from the heap map, for
// MmQueryStatistics (Design Notes Open Question 1: virtualxt's
// source fabricates these numbers; this implementation derives them).
type Statistics struct {
	TotalPhysicalPages uint32
	AvailablePages     uint32
	PoolPagesAllocated uint32
}

func (m *Manager) Statistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s Statistics
	for _, h := range m.heaps {
		if h.Kind != KindPhysical {
			continue
		}
		pages := uint32(len(h.pages))
		s.TotalPhysicalPages += pages
		for _, p := range h.pages {
			if p.state == stateFree {
				s.AvailablePages++
			} else {
				s.PoolPagesAllocated++
			}
		}
	}
	return s
}
