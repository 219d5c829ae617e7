package guestctx

import "testing"

func TestCellNarrowWriteLeavesUpperBitsUntouched(t *testing.T) {
	var c Cell
	c.SetU32(0x11223344)
	c.SetU8(0xFF)
	if got := c.U32(); got != 0x112233FF {
		t.Fatalf("SetU8 should leave upper bits: got 0x%X", got)
	}
}

func TestCellFloatRoundTrip(t *testing.T) {
	var c Cell
	c.SetF64(3.25)
	if got := c.F64(); got != 3.25 {
		t.Fatalf("F64 round-trip: got %v", got)
	}
}

func TestVec128GuestElementReversal(t *testing.T) {
	// vA.u32 = [0x01020304, 0x05060708, 0x090A0B0C, 0x0D0E0F10] in
	// guest element order.
	var vA Vec128
	vA.SetU32Elem(0, 0x01020304)
	vA.SetU32Elem(1, 0x05060708)
	vA.SetU32Elem(2, 0x090A0B0C)
	vA.SetU32Elem(3, 0x0D0E0F10)

	// Guest element 0 must reside in host lane 3 (the last 4 bytes),
	// MSB-first so v[15] holds the most significant byte.
	if vA[12] != 0x04 || vA[13] != 0x03 || vA[14] != 0x02 || vA[15] != 0x01 {
		t.Fatalf("guest element 0 not stored MSB-first in host lane 3: %v", vA)
	}
	if vA.U32Elem(0) != 0x01020304 || vA.U32Elem(3) != 0x0D0E0F10 {
		t.Fatalf("U32Elem readback mismatch: %v", vA)
	}
}

// TestVec128ByteAndWordViewsAgreeOnByteOrder catches the cross-view
// inconsistency where a word write (vaddfp, vspltw, vcmpequw) and a
// byte write (vaddubm, vaddubs, vperm) disagreed on which host byte
// holds guest element 0's most significant byte.
func TestVec128ByteAndWordViewsAgreeOnByteOrder(t *testing.T) {
	var v Vec128
	v.SetU32Elem(0, 0x01020304)
	if got := v.U8Elem(0); got != 0x01 {
		t.Fatalf("expected guest byte element 0 to be word element 0's MSB, got 0x%X", got)
	}
	if got := v.U8Elem(3); got != 0x04 {
		t.Fatalf("expected guest byte element 3 to be word element 0's LSB, got 0x%X", got)
	}

	var w Vec128
	w.SetU8Elem(0, 0xAA)
	w.SetU8Elem(1, 0xBB)
	w.SetU8Elem(2, 0xCC)
	w.SetU8Elem(3, 0xDD)
	if got := w.U32Elem(0); got != 0xAABBCCDD {
		t.Fatalf("expected byte writes to compose MSB-first into the word view, got 0x%X", got)
	}
}

// TestVec128LvxRoundTripMatchesElementAccessors mirrors the full
// 16-byte reversal emitLvx performs on a raw big-endian guest vector
// (guest byte i lands at host index 15-i) and confirms the resulting
// Vec128 reads back correctly through both element views.
func TestVec128LvxRoundTripMatchesElementAccessors(t *testing.T) {
	raw := [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10}
	var v Vec128
	for i := 0; i < 16; i++ {
		v[i] = raw[15-i]
	}
	if v.U32Elem(0) != 0x01020304 {
		t.Fatalf("expected guest word element 0 to be 0x01020304, got 0x%X", v.U32Elem(0))
	}
	if v.U8Elem(0) != 0x01 || v.U8Elem(15) != 0x10 {
		t.Fatalf("expected byte elements to match the raw guest bytes, got %v", v)
	}
}

func TestCRFieldFromSigned32(t *testing.T) {
	var f CRField
	f.SetFromSigned32(-5, true)
	if !f.LT || f.GT || f.EQ || !f.SO {
		t.Fatalf("unexpected CR field: %+v", f)
	}
	f.SetFromSigned32(0, false)
	if f.LT || f.GT || !f.EQ || f.SO {
		t.Fatalf("unexpected CR field: %+v", f)
	}
}
