package ppc

import "fmt"

// Mnemonic identifies a decoded instruction's operation, independent
// of its encoded operand values.
type Mnemonic int

const (
	Unknown Mnemonic = iota
	Add
	Addc
	Adde
	Addi
	Addis
	Addic
	Subf
	Subfc
	Neg
	Mulli
	Mullw
	Mulhw
	Mulhwu
	Divw
	Divwu
	And
	Andi
	Andis
	Or
	Ori
	Oris
	Xor
	Xori
	Xoris
	Nand
	Nor
	Eqv
	Andc
	Orc
	Extsb
	Extsh
	Extsw
	Cntlzw
	Cntlzd
	Slw
	Srw
	Sraw
	Srawi
	Rlwinm
	Rlwimi
	Rlwnm
	Sld
	Srd
	Srad
	Rldicl
	Rldicr
	Rldimi
	Lbz
	Lhz
	Lha
	Lwz
	Ld
	Lbzu
	Lhzu
	Lwzu
	Ldu
	Lbzx
	Lhzx
	Lwzx
	Ldx
	Lwarx
	Ldarx
	Stb
	Sth
	Stw
	Std
	Stbu
	Sthu
	Stwu
	Stdu
	Stbx
	Sthx
	Stwx
	Stdx
	Stwcx
	Stdcx
	Lfs
	Lfd
	Stfs
	Stfd
	Lvx
	Stvx
	Cmp
	Cmpi
	Cmpl
	Cmpli
	B
	Bc
	Bclr
	Bcctr
	Mfspr
	Mtspr
	Mfcr
	Mtcrf
	Mfmsr
	Mtmsrd
	Sc
	Isync
	Sync
	Fadd
	Fsub
	Fmul
	Fdiv
	Fmadd
	Fneg
	Fabs
	Fcmpu
	Fctiwz
	Fcfid
	Vaddubm
	Vaddubs
	Vaddfp
	Vsubfp
	Vperm
	Vcmpequw
	Vspltw
	Mftb
	Twi
	Tw
	Td
)

var mnemonicNames = map[Mnemonic]string{
	Add: "add", Addc: "addc", Adde: "adde", Addi: "addi", Addis: "addis", Addic: "addic",
	Subf: "subf", Subfc: "subfc", Neg: "neg",
	Mulli: "mulli", Mullw: "mullw", Mulhw: "mulhw", Mulhwu: "mulhwu",
	Divw: "divw", Divwu: "divwu",
	And: "and", Andi: "andi", Andis: "andis", Or: "or", Ori: "ori", Oris: "oris",
	Xor: "xor", Xori: "xori", Xoris: "xoris", Nand: "nand", Nor: "nor", Eqv: "eqv",
	Andc: "andc", Orc: "orc",
	Extsb: "extsb", Extsh: "extsh", Extsw: "extsw",
	Cntlzw: "cntlzw", Cntlzd: "cntlzd",
	Slw: "slw", Srw: "srw", Sraw: "sraw", Srawi: "srawi",
	Rlwinm: "rlwinm", Rlwimi: "rlwimi", Rlwnm: "rlwnm",
	Sld: "sld", Srd: "srd", Srad: "srad", Rldicl: "rldicl", Rldicr: "rldicr", Rldimi: "rldimi",
	Lbz: "lbz", Lhz: "lhz", Lha: "lha", Lwz: "lwz", Ld: "ld",
	Lbzu: "lbzu", Lhzu: "lhzu", Lwzu: "lwzu", Ldu: "ldu",
	Lbzx: "lbzx", Lhzx: "lhzx", Lwzx: "lwzx", Ldx: "ldx",
	Lwarx: "lwarx", Ldarx: "ldarx",
	Stb: "stb", Sth: "sth", Stw: "stw", Std: "std",
	Stbu: "stbu", Sthu: "sthu", Stwu: "stwu", Stdu: "stdu",
	Stbx: "stbx", Sthx: "sthx", Stwx: "stwx", Stdx: "stdx",
	Stwcx: "stwcx.", Stdcx: "stdcx.",
	Lfs: "lfs", Lfd: "lfd", Stfs: "stfs", Stfd: "stfd",
	Lvx: "lvx", Stvx: "stvx",
	Cmp: "cmp", Cmpi: "cmpi", Cmpl: "cmpl", Cmpli: "cmpli",
	B: "b", Bc: "bc", Bclr: "bclr", Bcctr: "bcctr",
	Mfspr: "mfspr", Mtspr: "mtspr", Mfcr: "mfcr", Mtcrf: "mtcrf", Mfmsr: "mfmsr", Mtmsrd: "mtmsrd",
	Sc: "sc", Isync: "isync", Sync: "sync",
	Fadd: "fadd", Fsub: "fsub", Fmul: "fmul", Fdiv: "fdiv", Fmadd: "fmadd",
	Fneg: "fneg", Fabs: "fabs", Fcmpu: "fcmpu", Fctiwz: "fctiwz", Fcfid: "fcfid",
	Vaddubm: "vaddubm", Vaddubs: "vaddubs", Vaddfp: "vaddfp", Vsubfp: "vsubfp", Vperm: "vperm",
	Vcmpequw: "vcmpequw", Vspltw: "vspltw",
	Mftb: "mftb",
	Twi:  "twi", Tw: "tw", Td: "td",
}

func (m Mnemonic) String() string {
	if s, ok := mnemonicNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mnemonic(%d)", int(m))
}

// Instruction is the decoded form of one 32-bit PowerPC instruction
// word, with all operand fields resolved to their semantic meaning.
// The analyzer and emitter work over this type exclusively; they
// never re-inspect the raw Word.
type Instruction struct {
	Raw  Word
	Addr uint32
	Op   Mnemonic

	RD, RA, RB, RS int
	FD, FA, FB, FC int
	FS             int
	VD, VA, VB, VC int

	Imm  int32
	UImm uint32
	Disp int32
	BD   int32
	LI   int32
	BO   uint32
	BI   uint32
	CRFD int
	CRFS int
	SPR  uint32
	SH   uint32
	MB   uint32
	ME   uint32
	TO   uint32
	CRM  uint32

	AA, LK, Rc, OE, L bool
}

// ErrUnknownInstruction is returned by Decode for a bit pattern this
// recompiler does not recognize. Rather than aborting, the analyzer
// keeps a short run of such words in their block as Unknown
// instructions, which the emitter reports as diagnostics, and carves a
// run reaching its data-region threshold out as a data region.
type ErrUnknownInstruction struct {
	Word Word
	Addr uint32
}

func (e *ErrUnknownInstruction) Error() string {
	return fmt.Sprintf("ppc: unknown instruction 0x%08X at 0x%08X", uint32(e.Word), e.Addr)
}

// Decode decodes one instruction word at guest address addr.
func Decode(w Word, addr uint32) (Instruction, error) {
	in := Instruction{Raw: w, Addr: addr}

	switch w.Opcode() {
	case 14:
		in.Op, in.RD, in.RA, in.Imm = Addi, w.RD(), w.RA(), w.SImm16()
	case 15:
		in.Op, in.RD, in.RA, in.Imm = Addis, w.RD(), w.RA(), w.SImm16()
	case 12:
		in.Op, in.RD, in.RA, in.Imm = Addic, w.RD(), w.RA(), w.SImm16()
	case 7:
		in.Op, in.RD, in.RA, in.Imm = Mulli, w.RD(), w.RA(), w.SImm16()
	case 28:
		in.Op, in.RS, in.RA, in.UImm = Andi, w.RS(), w.RA(), w.UImm16()
	case 29:
		in.Op, in.RS, in.RA, in.UImm = Andis, w.RS(), w.RA(), w.UImm16()
	case 24:
		in.Op, in.RS, in.RA, in.UImm = Ori, w.RS(), w.RA(), w.UImm16()
	case 25:
		in.Op, in.RS, in.RA, in.UImm = Oris, w.RS(), w.RA(), w.UImm16()
	case 26:
		in.Op, in.RS, in.RA, in.UImm = Xori, w.RS(), w.RA(), w.UImm16()
	case 27:
		in.Op, in.RS, in.RA, in.UImm = Xoris, w.RS(), w.RA(), w.UImm16()
	case 11:
		in.Op, in.CRFD, in.L, in.RA, in.Imm = Cmpi, w.CRFD(), w.L(), w.RA(), w.SImm16()
	case 10:
		in.Op, in.CRFD, in.L, in.RA, in.UImm = Cmpli, w.CRFD(), w.L(), w.RA(), w.UImm16()
	case 20:
		in.Op, in.RA, in.RS, in.SH, in.MB, in.ME, in.Rc = Rlwimi, w.RA(), w.RS(), w.SH(), w.MB(), w.ME(), w.Rc()
	case 21:
		in.Op, in.RA, in.RS, in.SH, in.MB, in.ME, in.Rc = Rlwinm, w.RA(), w.RS(), w.SH(), w.MB(), w.ME(), w.Rc()
	case 23:
		in.Op, in.RA, in.RS, in.RB, in.MB, in.ME, in.Rc = Rlwnm, w.RA(), w.RS(), w.RB(), w.MB(), w.ME(), w.Rc()
	case 34:
		in.Op, in.RD, in.RA, in.Disp = Lbz, w.RD(), w.RA(), w.SImm16()
	case 35:
		in.Op, in.RD, in.RA, in.Disp = Lbzu, w.RD(), w.RA(), w.SImm16()
	case 40:
		in.Op, in.RD, in.RA, in.Disp = Lhz, w.RD(), w.RA(), w.SImm16()
	case 41:
		in.Op, in.RD, in.RA, in.Disp = Lhzu, w.RD(), w.RA(), w.SImm16()
	case 42:
		in.Op, in.RD, in.RA, in.Disp = Lha, w.RD(), w.RA(), w.SImm16()
	case 32:
		in.Op, in.RD, in.RA, in.Disp = Lwz, w.RD(), w.RA(), w.SImm16()
	case 33:
		in.Op, in.RD, in.RA, in.Disp = Lwzu, w.RD(), w.RA(), w.SImm16()
	case 58:
		switch w.UImm16() & 0x3 {
		case 1:
			in.Op, in.RD, in.RA, in.Disp = Ldu, w.RD(), w.RA(), int32(w.UImm16()&^0x3)
		default:
			in.Op, in.RD, in.RA, in.Disp = Ld, w.RD(), w.RA(), int32(w.UImm16()&^0x3)
		}
	case 48:
		in.Op, in.FD, in.RA, in.Disp = Lfs, w.FD(), w.RA(), w.SImm16()
	case 50:
		in.Op, in.FD, in.RA, in.Disp = Lfd, w.FD(), w.RA(), w.SImm16()
	case 38:
		in.Op, in.RS, in.RA, in.Disp = Stb, w.RS(), w.RA(), w.SImm16()
	case 39:
		in.Op, in.RS, in.RA, in.Disp = Stbu, w.RS(), w.RA(), w.SImm16()
	case 44:
		in.Op, in.RS, in.RA, in.Disp = Sth, w.RS(), w.RA(), w.SImm16()
	case 45:
		in.Op, in.RS, in.RA, in.Disp = Sthu, w.RS(), w.RA(), w.SImm16()
	case 36:
		in.Op, in.RS, in.RA, in.Disp = Stw, w.RS(), w.RA(), w.SImm16()
	case 37:
		in.Op, in.RS, in.RA, in.Disp = Stwu, w.RS(), w.RA(), w.SImm16()
	case 62:
		switch w.UImm16() & 0x3 {
		case 1:
			in.Op, in.RS, in.RA, in.Disp = Stdu, w.RS(), w.RA(), int32(w.UImm16()&^0x3)
		default:
			in.Op, in.RS, in.RA, in.Disp = Std, w.RS(), w.RA(), int32(w.UImm16()&^0x3)
		}
	case 52:
		in.Op, in.FS, in.RA, in.Disp = Stfs, w.FS(), w.RA(), w.SImm16()
	case 54:
		in.Op, in.FS, in.RA, in.Disp = Stfd, w.FS(), w.RA(), w.SImm16()
	case 18:
		in.Op, in.LI, in.AA, in.LK = B, w.LI(), w.AA(), w.LK()
	case 16:
		in.Op, in.BO, in.BI, in.BD, in.AA, in.LK = Bc, w.BO(), w.BI(), w.BD(), w.AA(), w.LK()
	case 17:
		in.Op = Sc
	case 3:
		in.Op, in.TO, in.RA, in.Imm = Twi, w.TO(), w.RA(), w.SImm16()
	case 19:
		decodeOp19(w, &in)
	case 31:
		decodeOp31(w, &in)
	case 63:
		decodeOp63(w, &in)
	case 59:
		decodeOp59(w, &in)
	case 4:
		decodeOp4(w, &in)
	default:
		return in, &ErrUnknownInstruction{Word: w, Addr: addr}
	}

	if in.Op == Unknown {
		return in, &ErrUnknownInstruction{Word: w, Addr: addr}
	}
	return in, nil
}

// decodeOp19 covers XL-form branch/condition-register instructions
// (primary opcode 19): bclr, bcctr and isync.
func decodeOp19(w Word, in *Instruction) {
	switch w.ExtendedOpcode() {
	case 16:
		in.Op, in.BO, in.BI, in.LK = Bclr, w.BO(), w.BI(), w.LK()
	case 528:
		in.Op, in.BO, in.BI, in.LK = Bcctr, w.BO(), w.BI(), w.LK()
	case 150:
		in.Op = Isync
	}
}

// decodeOp31 covers X/XO-form register-register instructions
// (primary opcode 31): the bulk of integer arithmetic, logical,
// shift, compare, and indexed load/store encodings.
func decodeOp31(w Word, in *Instruction) {
	in.RD, in.RS, in.RA, in.RB = w.RD(), w.RS(), w.RA(), w.RB()
	in.OE, in.Rc = w.OE(), w.Rc()

	xo := w.ExtendedOpcode()
	switch xo &^ 0x200 {
	case 266, 10, 138, 40, 8, 104, 235, 491, 459:
		// XO-form: bit 21 is the OE flag, not part of the opcode.
		xo &^= 0x200
	}

	switch xo {
	case 266:
		in.Op = Add
	case 10:
		in.Op = Addc
	case 138:
		in.Op = Adde
	case 40:
		in.Op = Subf
	case 8:
		in.Op = Subfc
	case 104:
		in.Op = Neg
	case 235:
		in.Op = Mullw
	case 75:
		in.Op = Mulhw
	case 11:
		in.Op = Mulhwu
	case 491:
		in.Op = Divw
	case 459:
		in.Op = Divwu
	case 28:
		in.Op = And
	case 444:
		in.Op = Or
	case 316:
		in.Op = Xor
	case 476:
		in.Op = Nand
	case 124:
		in.Op = Nor
	case 284:
		in.Op = Eqv
	case 60:
		in.Op = Andc
	case 412:
		in.Op = Orc
	case 954:
		in.Op = Extsb
	case 922:
		in.Op = Extsh
	case 986:
		in.Op = Extsw
	case 26:
		in.Op = Cntlzw
	case 58:
		in.Op = Cntlzd
	case 24:
		in.Op = Slw
	case 536:
		in.Op = Srw
	case 792:
		in.Op = Sraw
	case 824:
		in.Op = Srawi
		in.SH = w.SH()
	case 27:
		in.Op = Sld
	case 539:
		in.Op = Srd
	case 794:
		in.Op = Srad
	case 0:
		in.Op, in.CRFD, in.L = Cmp, w.CRFD(), w.L()
	case 32:
		in.Op, in.CRFD, in.L = Cmpl, w.CRFD(), w.L()
	case 87:
		in.Op = Lbzx
	case 279:
		in.Op = Lhzx
	case 23:
		in.Op = Lwzx
	case 21:
		in.Op = Ldx
	case 20:
		in.Op = Lwarx
	case 84:
		in.Op = Ldarx
	case 215:
		in.Op = Stbx
	case 407:
		in.Op = Sthx
	case 151:
		in.Op = Stwx
	case 149:
		in.Op = Stdx
	case 150:
		in.Op = Stwcx
	case 214:
		in.Op = Stdcx
	case 103:
		in.Op = Lvx
	case 231:
		in.Op = Stvx
	case 339:
		in.Op, in.SPR = Mfspr, w.SPR()
	case 467:
		in.Op, in.SPR = Mtspr, w.SPR()
	case 19:
		in.Op = Mfcr
	case 144:
		in.Op, in.CRM = Mtcrf, w.CRM()
	case 83:
		in.Op = Mfmsr
	case 178:
		in.Op = Mtmsrd
	case 371:
		in.Op, in.SPR = Mftb, w.SPR()
	case 598:
		in.Op = Sync
	case 4:
		in.Op, in.TO = Tw, w.TO()
	case 68:
		in.Op, in.TO = Td, w.TO()
	}
}

// decodeOp63 covers X/A-form double-precision FP instructions
// (primary opcode 63).
func decodeOp63(w Word, in *Instruction) {
	in.FD, in.FA, in.FB, in.FC = w.FD(), w.FA(), w.FB(), w.FC()
	in.Rc = w.Rc()

	xo := w.ExtendedOpcode()
	if xo&0x1F >= 16 {
		// A-form: bits 21-25 hold FC; only bits 26-30 select the opcode.
		xo &= 0x1F
	}

	switch xo {
	case 21:
		in.Op = Fadd
	case 20:
		in.Op = Fsub
	case 25:
		in.Op = Fmul
	case 18:
		in.Op = Fdiv
	case 29:
		in.Op = Fmadd
	case 40:
		in.Op = Fneg
	case 264:
		in.Op = Fabs
	case 0:
		in.Op, in.CRFD = Fcmpu, w.CRFD()
	case 15:
		in.Op = Fctiwz
	case 846:
		in.Op = Fcfid
	}
}

// decodeOp59 covers the single-precision subset of the FP extended
// opcode space (primary opcode 59).
func decodeOp59(w Word, in *Instruction) {
	in.FD, in.FA, in.FB, in.FC = w.FD(), w.FA(), w.FB(), w.FC()
	in.Rc = w.Rc()

	// Every opcode here is A-form: bits 21-25 hold FC, bits 26-30 the opcode.
	switch w.ExtendedOpcode() & 0x1F {
	case 21:
		in.Op = Fadd
	case 20:
		in.Op = Fsub
	case 25:
		in.Op = Fmul
	case 18:
		in.Op = Fdiv
	case 29:
		in.Op = Fmadd
	}
}

// decodeOp4 covers AltiVec/VMX vector instructions (primary opcode
// 4), distinguished by their own extended-opcode encoding in bits
// 21-31 rather than 21-30.
func decodeOp4(w Word, in *Instruction) {
	in.VD, in.VA, in.VB, in.VC = w.VD(), w.VA(), w.VB(), w.VC()

	switch field(w, 21, 31) {
	case 0:
		in.Op = Vaddubm
	case 512:
		in.Op = Vaddubs
	case 10:
		in.Op = Vaddfp
	case 74:
		in.Op = Vsubfp
	case 646:
		in.Op = Vcmpequw
	case 652:
		// vspltw: the VA field (bits 11-15) carries the 2-bit word
		// selector, not a vector register, for this one encoding.
		in.Op = Vspltw
	}
	if field(w, 26, 31) == 43 {
		in.Op = Vperm
	}
}
