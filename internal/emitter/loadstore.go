package emitter

import (
	"fmt"

	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

// registerLoadStore wires the memory-access opcodes into dispatchTable.
// Grounded on memory.Bus.Read/Write generalized from a byte-addressed
// bus with device routing to guestmem's flat arena + MMIO-window
// helpers, keeping the big-endian/MMIO-routing decision inside
// guestmem rather than duplicating it at every call site.
func registerLoadStore(table *[int(ppc.Td) + 1]emitFn) {
	table[ppc.Lbz] = emitLoad("U8", false, false)
	table[ppc.Lbzu] = emitLoad("U8", false, true)
	table[ppc.Lhz] = emitLoad("U16", false, false)
	table[ppc.Lhzu] = emitLoad("U16", false, true)
	table[ppc.Lha] = emitLoad("U16", true, false)
	table[ppc.Lwz] = emitLoad("U32", false, false)
	table[ppc.Lwzu] = emitLoad("U32", false, true)
	table[ppc.Ld] = emitLoad("U64", false, false)
	table[ppc.Ldu] = emitLoad("U64", false, true)

	table[ppc.Lbzx] = emitLoadX("U8")
	table[ppc.Lhzx] = emitLoadX("U16")
	table[ppc.Lwzx] = emitLoadX("U32")
	table[ppc.Ldx] = emitLoadX("U64")

	table[ppc.Stb] = emitStore("U8", false)
	table[ppc.Stbu] = emitStore("U8", true)
	table[ppc.Sth] = emitStore("U16", false)
	table[ppc.Sthu] = emitStore("U16", true)
	table[ppc.Stw] = emitStore("U32", false)
	table[ppc.Stwu] = emitStore("U32", true)
	table[ppc.Std] = emitStore("U64", false)
	table[ppc.Stdu] = emitStore("U64", true)

	table[ppc.Stbx] = emitStoreX("U8")
	table[ppc.Sthx] = emitStoreX("U16")
	table[ppc.Stwx] = emitStoreX("U32")
	table[ppc.Stdx] = emitStoreX("U64")

	table[ppc.Lwarx] = emitLwarx
	table[ppc.Ldarx] = emitLdarx
	table[ppc.Stwcx] = emitStwcx
	table[ppc.Stdcx] = emitStdcx

	table[ppc.Lfs] = emitLoadFloat(32)
	table[ppc.Lfd] = emitLoadFloat(64)
	table[ppc.Stfs] = emitStoreFloat(32)
	table[ppc.Stfd] = emitStoreFloat(64)

	table[ppc.Lvx] = emitLvx
	table[ppc.Stvx] = emitStvx
}

// emitLoad builds D-form loads (lbz/lhz/lha/lwz/ld and their update
// forms). width selects the guestmem accessor; every load here except
// lha zero-extends, so the destination always goes through SetU32
// (SetU64 for the full-width ld), and signExtend switches in lha's
// sign-extending halfword path. update appends RA <- EA after the
// access (RA==0 is illegal for the update forms per the architecture,
// so raOrZero is not needed there).
func emitLoad(width string, signExtend bool, update bool) emitFn {
	return func(in ppc.Instruction) []Stmt {
		addr := raOrZero(in.RA)
		if update {
			addr = gprU32(in.RA)
		}
		ea := fmt.Sprintf("%s + uint32(%d)", addr, in.Disp)
		var body string
		switch {
		case signExtend:
			body = fmt.Sprintf("ea := %s\nctx.GPR[%d].SetS32(int32(int16(guestmem.LoadU16(base, ea))))", ea, in.RD)
		case width == "U64":
			body = fmt.Sprintf("ea := %s\nctx.GPR[%d].SetU64(guestmem.LoadU64(base, ea))", ea, in.RD)
		default:
			body = fmt.Sprintf("ea := %s\nctx.GPR[%d].SetU32(uint32(guestmem.Load%s(base, ea)))", ea, in.RD, width)
		}
		if update {
			body += fmt.Sprintf("\nctx.GPR[%d].SetU32(ea)", in.RA)
		}
		return wrap(fmt.Sprintf("load%s r%d,%d(r%d)", width, in.RD, in.Disp, in.RA), body)
	}
}

func emitLoadX(width string) emitFn {
	return func(in ppc.Instruction) []Stmt {
		var body string
		if width == "U64" {
			body = fmt.Sprintf("ea := %s + %s\nctx.GPR[%d].SetU64(guestmem.LoadU64(base, ea))", raOrZero(in.RA), gprU32(in.RB), in.RD)
		} else {
			body = fmt.Sprintf("ea := %s + %s\nctx.GPR[%d].SetU32(uint32(guestmem.Load%s(base, ea)))", raOrZero(in.RA), gprU32(in.RB), in.RD, width)
		}
		return wrap(fmt.Sprintf("load%sx r%d,r%d,r%d", width, in.RD, in.RA, in.RB), body)
	}
}

func emitStore(width string, update bool) emitFn {
	return func(in ppc.Instruction) []Stmt {
		addr := raOrZero(in.RA)
		if update {
			addr = gprU32(in.RA)
		}
		ea := fmt.Sprintf("%s + uint32(%d)", addr, in.Disp)
		valueExpr := storeValueExpr(width, in.RS)
		body := fmt.Sprintf("ea := %s\nguestmem.Store%s(base, ea, %s)\n%s", ea, width, valueExpr, invalidateReservation)
		if update {
			body += fmt.Sprintf("\nctx.GPR[%d].SetU32(ea)", in.RA)
		}
		return wrap(fmt.Sprintf("store%s r%d,%d(r%d)", width, in.RS, in.Disp, in.RA), body)
	}
}

func emitStoreX(width string) emitFn {
	return func(in ppc.Instruction) []Stmt {
		valueExpr := storeValueExpr(width, in.RS)
		body := fmt.Sprintf("ea := %s + %s\nguestmem.Store%s(base, ea, %s)\n%s", raOrZero(in.RA), gprU32(in.RB), width, valueExpr, invalidateReservation)
		return wrap(fmt.Sprintf("store%sx r%d,r%d,r%d", width, in.RS, in.RA, in.RB), body)
	}
}

func storeValueExpr(width string, reg int) string {
	switch width {
	case "U8":
		return gpr(reg) + ".U8()"
	case "U16":
		return gpr(reg) + ".U16()"
	case "U64":
		return gpr(reg) + ".U64()"
	default:
		return gprU32(reg)
	}
}

// emitLwarx/emitLdarx establish the load-and-reserve half of the
// lwarx/stwcx. pair: the loaded value and address are recorded on the
// per-thread Context so the paired stwcx./stdcx. can later compile to
// a real host compare-and-swap against the aligned word rather than an
// unconditional store.
func emitLwarx(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`ea := %s + %s
v := guestmem.LoadU32(base, ea)
ctx.GPR[%d].SetU32(v)
ctx.Reservation = guestctx.Reservation{Valid: true, Addr: ea, Value: uint64(v)}`, raOrZero(in.RA), gprU32(in.RB), in.RD)
	return wrap(fmt.Sprintf("lwarx r%d,r%d,r%d", in.RD, in.RA, in.RB), body)
}

func emitLdarx(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`ea := %s + %s
v := guestmem.LoadU64(base, ea)
ctx.GPR[%d].SetU64(v)
ctx.Reservation = guestctx.Reservation{Valid: true, Addr: ea, Value: v}`, raOrZero(in.RA), gprU32(in.RB), in.RD)
	return wrap(fmt.Sprintf("ldarx r%d,r%d,r%d", in.RD, in.RA, in.RB), body)
}

// emitStwcx/emitStdcx compile to a host atomic compare-and-swap on the
// aligned word, gated by the reservation lwarx/ldarx left behind: the
// CAS only runs if the reservation is still valid for this exact
// address, and the reservation is always consumed afterward, win or
// lose, per the architecture's "stwcx. always clears the reservation"
// rule.
func emitStwcx(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`ea := %s + %s
ok := ctx.Reservation.Valid && ctx.Reservation.Addr == ea &&
	guestmem.CompareAndSwapU32(base, ea, uint32(ctx.Reservation.Value), ctx.GPR[%d].U32())
ctx.Reservation.Valid = false
ctx.CR[0].LT = false
ctx.CR[0].GT = false
ctx.CR[0].EQ = ok
ctx.CR[0].SO = ctx.XER.SO`, raOrZero(in.RA), gprU32(in.RB), in.RS)
	return wrap(fmt.Sprintf("stwcx. r%d,r%d,r%d", in.RS, in.RA, in.RB), body)
}

func emitStdcx(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`ea := %s + %s
ok := ctx.Reservation.Valid && ctx.Reservation.Addr == ea &&
	guestmem.CompareAndSwapU64(base, ea, ctx.Reservation.Value, ctx.GPR[%d].U64())
ctx.Reservation.Valid = false
ctx.CR[0].LT = false
ctx.CR[0].GT = false
ctx.CR[0].EQ = ok
ctx.CR[0].SO = ctx.XER.SO`, raOrZero(in.RA), gprU32(in.RB), in.RS)
	return wrap(fmt.Sprintf("stdcx. r%d,r%d,r%d", in.RS, in.RA, in.RB), body)
}

// invalidateReservation renders the side effect every store
// instruction other than stwcx./stdcx. has on a pending reservation:
// any store from the same thread forgets it, regardless of address.
const invalidateReservation = "ctx.Reservation.Valid = false"

func emitLoadFloat(width int) emitFn {
	return func(in ppc.Instruction) []Stmt {
		var body string
		if width == 32 {
			body = fmt.Sprintf(`ea := %s + uint32(%d)
bits := guestmem.LoadU32(base, ea)
ctx.FPR[%d].SetF64(float64(math.Float32frombits(bits)))`, raOrZero(in.RA), in.Disp, in.FD)
		} else {
			body = fmt.Sprintf(`ea := %s + uint32(%d)
ctx.FPR[%d].SetF64(math.Float64frombits(guestmem.LoadU64(base, ea)))`, raOrZero(in.RA), in.Disp, in.FD)
		}
		return wrap(fmt.Sprintf("lf%d f%d,%d(r%d)", width, in.FD, in.Disp, in.RA), body)
	}
}

func emitStoreFloat(width int) emitFn {
	return func(in ppc.Instruction) []Stmt {
		var body string
		if width == 32 {
			body = fmt.Sprintf(`ea := %s + uint32(%d)
guestmem.StoreU32(base, ea, math.Float32bits(float32(ctx.FPR[%d].F64())))
%s`, raOrZero(in.RA), in.Disp, in.FS, invalidateReservation)
		} else {
			body = fmt.Sprintf(`ea := %s + uint32(%d)
guestmem.StoreU64(base, ea, math.Float64bits(ctx.FPR[%d].F64()))
%s`, raOrZero(in.RA), in.Disp, in.FS, invalidateReservation)
		}
		return wrap(fmt.Sprintf("stf%d f%d,%d(r%d)", width, in.FS, in.Disp, in.RA), body)
	}
}

// emitLvx/emitStvx load/store a full 128-bit vector register. lvx's
// effective address is masked to a 16-byte boundary per the
// architecture. guest byte 0 is the MSB of guest word element 0, which
// Vec128 stores at host index 15 (see U8Elem/U32Elem), so the 16 bytes
// must be fully reversed on the way in and out rather than copied
// straight across.
func emitLvx(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`ea := (%s + %s) &^ 0xF
raw := guestmem.LoadBytes(base, ea, 16)
for i := 0; i < 16; i++ {
	ctx.VMX[%d][i] = raw[15-i]
}`, raOrZero(in.RA), gprU32(in.RB), in.VD)
	return wrap(fmt.Sprintf("lvx v%d,r%d,r%d", in.VD, in.RA, in.RB), body)
}

func emitStvx(in ppc.Instruction) []Stmt {
	body := fmt.Sprintf(`ea := (%s + %s) &^ 0xF
raw := make([]byte, 16)
for i := 0; i < 16; i++ {
	raw[i] = ctx.VMX[%d][15-i]
}
guestmem.StoreBytes(base, ea, raw)
%s`, raOrZero(in.RA), gprU32(in.RB), in.VB, invalidateReservation)
	return wrap(fmt.Sprintf("stvx v%d,r%d,r%d", in.VB, in.RA, in.RB), body)
}
