// Package descriptor defines the fixed-width predecoded instruction
// representation shared by the decoder, the translation cache and the
// strand interpreter.
//
// Layout follows insn_t in cavatools' caveat/insn.h: an opcode ordinal,
// two 8-bit register fields, and a payload that is either a 16-bit
// immediate plus two more 8-bit register fields, or a single
// sign-extended 32-bit immediate.
package descriptor

// Opcode is an ordinal into the attribute and mnemonic tables.
type Opcode uint16

const (
	// OpZero signals "not predecoded" — never dispatched.
	OpZero Opcode = iota
	OpIllegal
	OpUnknown
)

// NOREG marks "no register used" (matches insn.h's NOREG == 64, widened
// to fit a byte the way the spec calls for).
const NOREG uint8 = 255

// longImmBit is the payload discriminator of insn_t's packed layout.
// Descriptor does not pack its payload and does not read this constant:
// its longImm field tells the two payload forms apart.
const longImmBit = 1

// Descriptor is immutable once produced by the decoder.
type Descriptor struct {
	Op  Opcode
	Rd  uint8
	Rs1 uint8

	// payload holds either (rs2, rs3, imm16) or a 32-bit sign-extended
	// immediate, discriminated by longImm.
	longImm bool
	rs2     uint8
	rs3     uint8
	imm16   int16
	imm32   int32
}

// NewShort builds a descriptor for the {rs2,rs3,imm16} payload form
// (register-register ops, branches, stores with a 16-bit displacement).
func NewShort(op Opcode, rd, rs1, rs2, rs3 uint8, imm16 int16) Descriptor {
	return Descriptor{Op: op, Rd: rd, Rs1: rs1, rs2: rs2, rs3: rs3, imm16: imm16}
}

// NewLong builds a descriptor for the 32-bit sign-extended immediate
// payload form (LUI/AUIPC/JAL-shaped instructions).
func NewLong(op Opcode, rd, rs1 uint8, imm32 int32) Descriptor {
	return Descriptor{Op: op, Rd: rd, Rs1: rs1, longImm: true, imm32: imm32}
}

// Rs2 is valid only when !LongImm().
func (d Descriptor) Rs2() uint8 { return d.rs2 }

// Rs3 is valid only when !LongImm() (used by the CAS substitution's
// CasW/CasD pseudo-ops).
func (d Descriptor) Rs3() uint8 { return d.rs3 }

// Imm16 is valid only when !LongImm().
func (d Descriptor) Imm16() int16 { return d.imm16 }

// Imm32 is valid only when LongImm().
func (d Descriptor) Imm32() int32 { return d.imm32 }

// LongImm reports which payload union member is populated.
func (d Descriptor) LongImm() bool { return d.longImm }

// Imm returns the immediate sign-extended to 64 bits regardless of which
// payload form is in use.
func (d Descriptor) Imm() int64 {
	if d.longImm {
		return int64(d.imm32)
	}
	return int64(d.imm16)
}

// WithRs3 returns a copy of d with Rs3 replaced and every other field
// unchanged. Nothing in this module calls it: CAS substitution builds
// its merged descriptor with NewShort.
func (d Descriptor) WithRs3(rs3 uint8) Descriptor {
	d.rs3 = rs3
	return d
}

// Valid reports whether the descriptor has been predecoded.
func (d Descriptor) Valid() bool { return d.Op != OpZero }
