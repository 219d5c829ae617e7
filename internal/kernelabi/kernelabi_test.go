package kernelabi

import (
	"bytes"
	"testing"

	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
	"github.com/xenonrecomp/xenonrecomp/internal/guestmem"
	"github.com/xenonrecomp/xenonrecomp/internal/vmm"
)

func newTestContext(t *testing.T) (*guestctx.Context, []byte) {
	t.Helper()
	m, err := vmm.NewManager()
	if err != nil {
		t.Fatalf("vmm.NewManager: %v", err)
	}
	// The tests place their parameter blocks in [0, 0x10000), so commit it.
	if err := m.AllocFixed(0, 0x10000, vmm.Page4KiB, vmm.AllocReserve|vmm.AllocCommit, vmm.ProtectRead|vmm.ProtectWrite); err != nil {
		t.Fatalf("commit scratch page: %v", err)
	}
	ctx := &guestctx.Context{Kernel: &State{VMM: m}}
	return ctx, m.Arena().Base
}

func TestNtAllocateThenProtectThenFreeVirtualMemory(t *testing.T) {
	ctx, base := newTestContext(t)

	const sizePtrAddr, basePtrAddr = 0x1000, 0x1008
	LPDWord(basePtrAddr).Store(base, 0)
	LPDWord(sizePtrAddr).Store(base, 0x10000)

	ctx.GPR[3].SetU32(basePtrAddr)
	ctx.GPR[4].SetU32(sizePtrAddr)
	ctx.GPR[5].SetU32(memReserve | memCommit)
	ctx.GPR[6].SetU32(pageReadWrite)
	NtAllocateVirtualMemory(ctx, base)
	if ctx.GPR[3].U32() != statusSuccess {
		t.Fatalf("expected success, got NTSTATUS 0x%X", ctx.GPR[3].U32())
	}

	allocBase := LPDWord(basePtrAddr).Load(base)
	if allocBase == 0 {
		t.Fatal("expected a nonzero allocated base")
	}

	guestmem.StoreU8(base, allocBase, 0xAA)
	if got := guestmem.LoadU8(base, allocBase); got != 0xAA {
		t.Fatalf("committed page did not accept a write: got 0x%X", got)
	}

	const oldProtectAddr = 0x1010
	LPDWord(basePtrAddr).Store(base, allocBase)
	LPDWord(sizePtrAddr).Store(base, 0x10000)
	ctx.GPR[3].SetU32(basePtrAddr)
	ctx.GPR[4].SetU32(sizePtrAddr)
	ctx.GPR[5].SetU32(pageReadOnly)
	ctx.GPR[6].SetU32(oldProtectAddr)
	NtProtectVirtualMemory(ctx, base)
	if ctx.GPR[3].U32() != statusSuccess {
		t.Fatalf("expected protect success, got NTSTATUS 0x%X", ctx.GPR[3].U32())
	}
	if old := LPDWord(oldProtectAddr).Load(base); old != pageReadWrite {
		t.Fatalf("expected old protect PAGE_READWRITE, got 0x%X", old)
	}

	LPDWord(basePtrAddr).Store(base, allocBase)
	ctx.GPR[3].SetU32(basePtrAddr)
	ctx.GPR[4].SetU32(sizePtrAddr)
	ctx.GPR[5].SetU32(0)
	NtFreeVirtualMemory(ctx, base)
	if ctx.GPR[3].U32() != statusSuccess {
		t.Fatalf("expected free success, got NTSTATUS 0x%X", ctx.GPR[3].U32())
	}
}

func TestNtAllocateVirtualMemoryRejectsUnknownAddress(t *testing.T) {
	ctx, base := newTestContext(t)

	const basePtrAddr, sizePtrAddr = 0x2000, 0x2008
	LPDWord(basePtrAddr).Store(base, 0xFFFFFFF0)
	LPDWord(sizePtrAddr).Store(base, 0x1000)

	ctx.GPR[3].SetU32(basePtrAddr)
	ctx.GPR[4].SetU32(sizePtrAddr)
	ctx.GPR[5].SetU32(memReserve | memCommit)
	ctx.GPR[6].SetU32(pageReadWrite)
	NtAllocateVirtualMemory(ctx, base)
	if ctx.GPR[3].U32() != statusInvalidParameter {
		t.Fatalf("expected STATUS_INVALID_PARAMETER, got 0x%X", ctx.GPR[3].U32())
	}
}

func TestMmQueryStatisticsReflectsLivePhysicalAllocations(t *testing.T) {
	ctx, base := newTestContext(t)
	k := ctx.Kernel.(*State)

	const statsAddr = 0x3000
	ctx.GPR[3].SetU32(statsAddr)
	MmQueryStatistics(ctx, base)
	before := LPDWord(statsAddr + 4).Load(base)

	if _, err := k.VMM.AllocRange(0xA0000000, 0xC0000000, uint32(vmm.Page64KiB), uint32(vmm.Page64KiB), vmm.AllocReserve|vmm.AllocCommit, vmm.ProtectRead|vmm.ProtectWrite, false); err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	ctx.GPR[3].SetU32(statsAddr)
	MmQueryStatistics(ctx, base)
	after := LPDWord(statsAddr + 4).Load(base)
	if after != before-1 {
		t.Fatalf("expected available pages to drop by one, before=%d after=%d", before, after)
	}
}

func TestKeGetImagePageTableEntryStub(t *testing.T) {
	ctx, base := newTestContext(t)
	ctx.GPR[3].SetU32(0x80001000)
	KeGetImagePageTableEntry(ctx, base)
	if ctx.GPR[3].U32() != 1 {
		t.Fatalf("expected stub value 1, got %d", ctx.GPR[3].U32())
	}
}

func TestNetSendBuildsAnEthernetIPv4UDPFrame(t *testing.T) {
	ctx, base := newTestContext(t)
	var sink bytes.Buffer
	old := NetSink
	NetSink = &sink
	defer func() { NetSink = old }()

	const payloadAddr = 0x4000
	payload := []byte("hello console")
	for i, b := range payload {
		guestmem.StoreU8(base, payloadAddr+uint32(i), b)
	}

	ctx.GPR[3].SetU32(payloadAddr)
	ctx.GPR[4].SetU32(uint32(len(payload)))
	NetSend(ctx, base)
	if ctx.GPR[3].U32() != uint32(len(payload)) {
		t.Fatalf("expected return value %d, got %d", len(payload), ctx.GPR[3].U32())
	}
	if sink.Len() == 0 {
		t.Fatal("expected a nonempty serialized frame")
	}
	if !bytes.Contains(sink.Bytes(), payload) {
		t.Fatal("expected the serialized frame to carry the payload bytes")
	}
}

func TestReadWideAndAnsiStrings(t *testing.T) {
	_, base := newTestContext(t)

	const wideAddr = 0x5000
	word := []uint16{'O', 'K', 0}
	for i, w := range word {
		guestmem.StoreU16(base, uint32(wideAddr+i*2), w)
	}
	got, err := ReadWideString(base, wideAddr, 16)
	if err != nil {
		t.Fatalf("ReadWideString: %v", err)
	}
	if got != "OK" {
		t.Fatalf("expected %q, got %q", "OK", got)
	}

	const ansiAddr = 0x5100
	for i, c := range []byte("fine\x00") {
		guestmem.StoreU8(base, ansiAddr+uint32(i), c)
	}
	if s := ReadAnsiString(base, ansiAddr, 16); s != "fine" {
		t.Fatalf("expected %q, got %q", "fine", s)
	}
}
