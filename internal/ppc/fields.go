// Package ppc decodes 32-bit, big-endian PowerPC instruction words
// into a typed Instruction the analyzer and emitter consume. Field
// extraction is grounded on virtualxt's bit-flag decomposition style
// in emulator/processor/cpu/decode.go (getReg/regLocation-style
// accessors pulled straight out of the raw opcode byte), generalized
// from x86's byte-granular modRegRM to PowerPC's fixed-width bitfields.
package ppc

// Word is one big-endian-encoded 32-bit instruction.
type Word uint32

// field extracts PowerPC bits [hi:lo] using the manual's native
// numbering (bit 0 = MSB), returning the unsigned value right-aligned.
func field(w Word, hi, lo int) uint32 {
	n := uint(lo - hi + 1)
	shift := uint(31 - lo)
	mask := uint32(1)<<n - 1
	return (uint32(w) >> shift) & mask
}

func signExtend(v uint32, bits int) int32 {
	shift := uint(32 - bits)
	return int32(v<<shift) >> shift
}

// Opcode is the primary 6-bit opcode, bits 0-5.
func (w Word) Opcode() uint32 { return field(w, 0, 5) }

// ExtendedOpcode is the secondary opcode used by X/XO/XL/XFX-form
// instructions, bits 21-30.
func (w Word) ExtendedOpcode() uint32 { return field(w, 21, 30) }

// RD/RS/RA/RB are the 5-bit GPR fields common to D/X/XO-form
// instructions.
func (w Word) RD() int { return int(field(w, 6, 10)) }
func (w Word) RS() int { return int(field(w, 6, 10)) }
func (w Word) RA() int { return int(field(w, 11, 15)) }
func (w Word) RB() int { return int(field(w, 16, 20)) }

// FD/FS/FA/FB/FC are the FPR fields for A/X-form FP instructions.
func (w Word) FD() int { return int(field(w, 6, 10)) }
func (w Word) FS() int { return int(field(w, 6, 10)) }
func (w Word) FA() int { return int(field(w, 11, 15)) }
func (w Word) FB() int { return int(field(w, 16, 20)) }
func (w Word) FC() int { return int(field(w, 21, 25)) }

// VD/VA/VB/VC are the vector-register fields for VMX instructions.
func (w Word) VD() int { return int(field(w, 6, 10)) }
func (w Word) VA() int { return int(field(w, 11, 15)) }
func (w Word) VB() int { return int(field(w, 16, 20)) }
func (w Word) VC() int { return int(field(w, 21, 25)) }

// SImm16/UImm16 are the 16-bit immediate for D-form instructions.
func (w Word) SImm16() int32  { return signExtend(field(w, 16, 31), 16) }
func (w Word) UImm16() uint32 { return field(w, 16, 31) }

// BD is the 14-bit signed branch displacement for B-form
// instructions, pre-shifted by 2 (word-aligned).
func (w Word) BD() int32 { return signExtend(field(w, 16, 29), 14) << 2 }

// LI is the 24-bit signed branch displacement for I-form
// instructions, pre-shifted by 2.
func (w Word) LI() int32 { return signExtend(field(w, 6, 29), 24) << 2 }

// AA reports whether a branch target is absolute rather than
// PC-relative.
func (w Word) AA() bool { return field(w, 30, 30) != 0 }

// LK reports whether a branch instruction sets the link register.
func (w Word) LK() bool { return field(w, 31, 31) != 0 }

// BO/BI are the condition-branch control fields for B-form
// instructions.
func (w Word) BO() uint32 { return field(w, 6, 10) }
func (w Word) BI() uint32 { return field(w, 11, 15) }

// CRFD/CRFS select a condition register field (0-7) for
// compare/mfcr-family instructions.
func (w Word) CRFD() int { return int(field(w, 6, 8)) }
func (w Word) CRFS() int { return int(field(w, 11, 13)) }

// L selects the 32/64-bit form of compare and some load/store
// instructions.
func (w Word) L() bool { return field(w, 10, 10) != 0 }

// Rc reports whether an arithmetic/logical instruction's record form
// (the "." suffix) is selected: it updates CR0 from the result.
func (w Word) Rc() bool { return field(w, 31, 31) != 0 }

// OE reports whether an arithmetic instruction's overflow form (the
// "o" suffix) is selected: it updates XER.OV/SO.
func (w Word) OE() bool { return field(w, 21, 21) != 0 }

// SH/MB/ME are the shift/mask fields for rotate instructions.
func (w Word) SH() uint32 { return field(w, 16, 20) }
func (w Word) MB() uint32 { return field(w, 21, 25) }
func (w Word) ME() uint32 { return field(w, 26, 30) }

// SPR decodes the split spr field used by mfspr/mtspr into its
// conventional register number.
func (w Word) SPR() uint32 {
	lo := field(w, 11, 15)
	hi := field(w, 16, 20)
	return (hi << 5) | lo
}

// TO is the trap-condition field for tw/twi.
func (w Word) TO() uint32 { return field(w, 6, 10) }

// CRM is the 8-bit field mask for mtcrf, selecting which of the eight
// cr0..cr7 fields the instruction updates.
func (w Word) CRM() uint32 { return field(w, 12, 19) }
