package vmm

// State is the guest-visible allocation state of a region, as
// reported by QueryRegionInfo.
type State int

const (
	StateFree State = iota
	StateReserved
	StateCommitted
)

func (s allocState) toState() State {
	switch s {
	case stateReserved:
		return StateReserved
	case stateCommitted:
		return StateCommitted
	default:
		return StateFree
	}
}

// RegionInfo is the result of QueryRegionInfo: the maximal uniform run
// of pages containing the queried address, plus the allocation's
// original base/protection for NtQueryVirtualMemory-style callers.
type RegionInfo struct {
	Base              uint32
	AllocationBase    uint32
	AllocationProtect Protect
	RegionSize        uint32
	State             State
	Protect           Protect
}

// findRun returns the [start,end) page index range of the maximal run
// of pages around idx that share identical state+protect.
func (h *Heap) findRun(idx int) (start, end int) {
	p := h.pages[idx]
	start, end = idx, idx
	for start > 0 && samePage(h.pages[start-1], p) {
		start--
	}
	for end < len(h.pages)-1 && samePage(h.pages[end+1], p) {
		end++
	}
	return start, end + 1
}

func samePage(a, b pageState) bool {
	return a.state == b.state && a.protect == b.protect && a.allocationBase == b.allocationBase
}

// QueryRegionInfo returns the maximal uniform run of pages containing
// addr, mirroring the guest's VirtualQuery semantics.
func (h *Heap) QueryRegionInfo(addr uint32) (RegionInfo, bool) {
	if !h.contains(addr) {
		return RegionInfo{}, false
	}
	idx := h.pageIndex(addr)
	start, end := h.findRun(idx)
	p := h.pages[idx]

	allocBase := p.allocationBase
	if p.state == stateFree {
		allocBase = h.pageAddr(start)
	}

	return RegionInfo{
		Base:              h.pageAddr(start),
		AllocationBase:    allocBase,
		AllocationProtect: p.protect,
		RegionSize:        uint32(end-start) * uint32(h.PageSize),
		State:             p.state.toState(),
		Protect:           p.protect,
	}, true
}
