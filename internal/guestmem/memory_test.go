package guestmem

import "testing"

func newTestArena() *Arena {
	return &Arena{Base: make([]byte, 1<<20), MMIO: NullMMIOHandler{}}
}

func TestU32RoundTrip(t *testing.T) {
	a := newTestArena()
	a.StoreU32(0x100, 0xDEADBEEF)
	if got := a.LoadU32(0x100); got != 0xDEADBEEF {
		t.Fatalf("round trip: got 0x%X", got)
	}
}

func TestU64SplitsIntoHighLowOnBigEndianBytes(t *testing.T) {
	a := newTestArena()
	a.StoreU64(0x200, 0x1122334455667788)
	hi := a.LoadU32(0x200)
	lo := a.LoadU32(0x204)
	if hi != 0x11223344 || lo != 0x55667788 {
		t.Fatalf("split mismatch: hi=0x%X lo=0x%X", hi, lo)
	}
}

func TestBigEndianByteLayout(t *testing.T) {
	a := newTestArena()
	a.StoreU32(0x100, 0x11223344)
	if a.Base[0x100] != 0x11 || a.Base[0x101] != 0x22 || a.Base[0x102] != 0x33 || a.Base[0x103] != 0x44 {
		t.Fatalf("unexpected byte layout: %v", a.Base[0x100:0x104])
	}
	if got := a.LoadU16(0x102); got != 0x3344 {
		t.Fatalf("lhz-equivalent load: got 0x%X", got)
	}
}

type recordingMMIO struct {
	loads, stores int
	lastStore     uint64
}

func (m *recordingMMIO) Load(guest uint32, width int) uint64 {
	m.loads++
	return 0
}

func (m *recordingMMIO) Store(guest uint32, width int, value uint64) {
	m.stores++
	m.lastStore = value
}

func TestMMIODispatchesExactlyOncePerAccess(t *testing.T) {
	mmio := &recordingMMIO{}
	a := &Arena{Base: make([]byte, 16), MMIO: mmio}

	a.StoreU32(0x7F001000, 0xCAFEBABE)
	if mmio.stores != 1 {
		t.Fatalf("expected exactly one MMIO store, got %d", mmio.stores)
	}
	if mmio.lastStore != 0xCAFEBABE {
		t.Fatalf("unexpected MMIO store value: 0x%X", mmio.lastStore)
	}

	a.LoadU32(0x7F001000)
	if mmio.loads != 1 {
		t.Fatalf("expected exactly one MMIO load, got %d", mmio.loads)
	}
}

func TestU64MMIODecomposesHighWordFirst(t *testing.T) {
	var seen []uint32
	h := &orderRecordingMMIO{onStore: func(guest uint32, v uint64) { seen = append(seen, guest) }}
	a := &Arena{Base: make([]byte, 16), MMIO: h}
	a.StoreU64(0x7F002000, 0x1122334455667788)

	if len(seen) != 2 || seen[0] != 0x7F002000 || seen[1] != 0x7F002004 {
		t.Fatalf("expected high word first, got %v", seen)
	}
}

type orderRecordingMMIO struct {
	onStore func(guest uint32, v uint64)
}

func (o *orderRecordingMMIO) Load(guest uint32, width int) uint64 { return 0 }
func (o *orderRecordingMMIO) Store(guest uint32, width int, value uint64) {
	o.onStore(guest, value)
}

func TestPhysOffsetCompensatesOnlyFor64KiBGranularity(t *testing.T) {
	SetHostGranularity(Granularity4KiB)
	if PhysOffset(physicalHeapBase+0x10) != 0 {
		t.Fatalf("expected zero offset on 4KiB granularity")
	}

	SetHostGranularity(Granularity64KiB)
	defer SetHostGranularity(Granularity4KiB)
	if PhysOffset(physicalHeapBase+0x10) != physicalHeapCompensation {
		t.Fatalf("expected compensation on 64KiB granularity")
	}
	if PhysOffset(0x1000) != 0 {
		t.Fatalf("compensation must not apply below the physical heap base")
	}
}
