package runtime

import (
	"testing"

	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
)

func TestTrapServiceDebugPrint(t *testing.T) {
	base := make([]byte, 1<<16)
	copy(base[0x10:], []byte("hello"))

	var ctx guestctx.Context
	ctx.GPR[3].SetU32(0x10)
	ctx.GPR[4].SetU32(5)

	// Should not panic; output goes to the standard logger.
	TrapService(&ctx, base, TrapDebugPrintA)
}

func TestSetJmpLongJmpRoundTrip(t *testing.T) {
	const guestBuf = 0x2000
	got := CallProtected(guestBuf, func() {
		LongJmp(guestBuf, 42)
	})
	if got != 42 {
		t.Fatalf("expected longjmp value 42, got %d", got)
	}
}

func TestLongJmpUnregisteredAborts(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for longjmp with unregistered key")
		}
	}()
	LongJmp(0xBADADD, 1)
}

func TestMTMSRDLocksAndUnlocksCooperatively(t *testing.T) {
	if got := MFMSR(); got != 0x8000 {
		t.Fatalf("expected unlocked state, got 0x%X", got)
	}
	MTMSRD(13)
	if got := MFMSR(); got != 0 {
		t.Fatalf("expected locked state, got 0x%X", got)
	}
	MTMSRD(13) // re-entrant
	MTMSRD(3)  // one release, still held
	if got := MFMSR(); got != 0 {
		t.Fatalf("expected still locked after one release, got 0x%X", got)
	}
	MTMSRD(3) // final release
	if got := MFMSR(); got != 0x8000 {
		t.Fatalf("expected unlocked state after final release, got 0x%X", got)
	}
}

func TestFPSCRRoundTrip(t *testing.T) {
	var ctx guestctx.Context
	MTFSF(&ctx, fpscrNIBit|0x2)
	if !ctx.FPSCR.FlushToZero {
		t.Fatal("expected flush-to-zero set")
	}
	if ctx.FPSCR.RoundingMode != guestctx.RoundTowardPositive {
		t.Fatalf("unexpected rounding mode: %v", ctx.FPSCR.RoundingMode)
	}
	if got := MFFS(&ctx); got&fpscrNIBit == 0 {
		t.Fatalf("expected NI bit set in packed FPSCR: 0x%X", got)
	}
}

func TestFlushToZeroPreservesNormalValues(t *testing.T) {
	var ctx guestctx.Context
	ctx.FPSCR.FlushToZero = true
	if got := ApplyFlushToZero32(&ctx, 1.5); got != 1.5 {
		t.Fatalf("normal value must not be flushed: got %v", got)
	}
}

func TestTimebaseIsMonotonic(t *testing.T) {
	a := ReadTimebase()
	b := ReadTimebase()
	if b < a {
		t.Fatalf("timebase must be monotonic: %d then %d", a, b)
	}
}
