package vmm

import "testing"

func newTestHeap() *Heap {
	return newHeap("test", 0x40000000, 16*uint32(Page64KiB), Page64KiB, KindVirtual)
}

func TestReserveThenCommitThenFreeScenario(t *testing.T) {
	h := newTestHeap()
	base := h.Base
	size := 4 * uint32(h.PageSize)

	for i := 0; i < int(size/uint32(h.PageSize)); i++ {
		h.pages[i] = pageState{state: stateReserved, allocationBase: base}
	}
	info, ok := h.QueryRegionInfo(base)
	if !ok || info.State != StateReserved || info.RegionSize != size {
		t.Fatalf("expected reserved region of size 0x%X, got %+v", size, info)
	}

	for i := 0; i < 2; i++ {
		h.pages[i] = pageState{state: stateCommitted, protect: ProtectRead | ProtectWrite, allocationBase: base}
	}
	info, ok = h.QueryRegionInfo(base)
	if !ok || info.State != StateCommitted || info.RegionSize != 2*uint32(h.PageSize) {
		t.Fatalf("expected committed run of 2 pages, got %+v", info)
	}

	info, ok = h.QueryRegionInfo(base + 2*uint32(h.PageSize))
	if !ok || info.State != StateReserved || info.RegionSize != 2*uint32(h.PageSize) {
		t.Fatalf("expected remaining reserved run of 2 pages, got %+v", info)
	}

	for i := range h.pages[:4] {
		h.pages[i] = pageState{}
	}
	info, ok = h.QueryRegionInfo(base)
	if !ok || info.State != StateFree {
		t.Fatalf("expected free after release, got %+v", info)
	}
}

func TestProtectionSplitScenario(t *testing.T) {
	h := newTestHeap()
	base := h.Base
	for i := 0; i < 4; i++ {
		h.pages[i] = pageState{state: stateCommitted, protect: ProtectRead | ProtectWrite, allocationBase: base}
	}

	h.pages[1] = pageState{state: stateCommitted, protect: ProtectRead, allocationBase: base}

	info, ok := h.QueryRegionInfo(base)
	if !ok || info.RegionSize != uint32(h.PageSize) {
		t.Fatalf("expected first run to be exactly one page, got %+v", info)
	}
	info, ok = h.QueryRegionInfo(base + uint32(h.PageSize))
	if !ok || info.Protect != ProtectRead || info.RegionSize != uint32(h.PageSize) {
		t.Fatalf("expected the read-only page to be its own run, got %+v", info)
	}
	info, ok = h.QueryRegionInfo(base + 2*uint32(h.PageSize))
	if !ok || info.RegionSize != 2*uint32(h.PageSize) || info.Protect != (ProtectRead|ProtectWrite) {
		t.Fatalf("expected the remaining two pages to merge into one run, got %+v", info)
	}
}

func TestValidateRangeRejectsMisalignedAndOutOfBounds(t *testing.T) {
	h := newTestHeap()
	if err := h.validateRange(h.Base+1, uint32(h.PageSize)); err == nil {
		t.Fatal("expected misaligned base to be rejected")
	}
	if err := h.validateRange(h.Base, uint32(h.PageSize)+1); err == nil {
		t.Fatal("expected misaligned size to be rejected")
	}
	if err := h.validateRange(h.Base+h.Size, uint32(h.PageSize)); err == nil {
		t.Fatal("expected out-of-range base to be rejected")
	}
}

func TestCanonicalLayoutCoversNoOverlap(t *testing.T) {
	for i, a := range canonicalLayout {
		for j, b := range canonicalLayout {
			if i == j {
				continue
			}
			if a.base < b.base+b.size && b.base < a.base+a.size {
				t.Fatalf("heaps %s and %s overlap", a.name, b.name)
			}
		}
	}
}

func TestGetPhysicalAddressIsArithmeticNotCopy(t *testing.T) {
	m := &Manager{}
	for _, l := range canonicalLayout {
		m.heaps = append(m.heaps, newHeap(l.name, l.base, l.size, l.pageSize, l.kind))
	}
	phys, err := m.GetPhysicalAddress(0xA0010000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if phys != 0x00010000 {
		t.Fatalf("expected physical offset 0x10000, got 0x%X", phys)
	}
	if _, err := m.GetPhysicalAddress(0x00010000); err == nil {
		t.Fatal("expected error for virtual-heap address")
	}
}

func TestStatisticsReflectLiveHeapState(t *testing.T) {
	m := &Manager{}
	for _, l := range canonicalLayout {
		m.heaps = append(m.heaps, newHeap(l.name, l.base, l.size, l.pageSize, l.kind))
	}
	s := m.Statistics()
	if s.AvailablePages != s.TotalPhysicalPages {
		t.Fatalf("expected all physical pages free initially, got %+v", s)
	}

	for _, h := range m.heaps {
		if h.Kind == KindPhysical {
			h.pages[0] = pageState{state: stateCommitted, allocationBase: h.Base}
			break
		}
	}
	s2 := m.Statistics()
	if s2.PoolPagesAllocated != 1 {
		t.Fatalf("expected one allocated physical page, got %+v", s2)
	}
}
