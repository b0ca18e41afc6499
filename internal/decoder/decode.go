package decoder

import "github.com/oisee/rv64ui/internal/descriptor"

// Decode implements the pure function described in §4.1: given raw bytes
// at pc (at least 4 bytes, or 2 at the tail of a page), it returns a
// Descriptor and the instruction's length in bytes (2 or 4). Decode never
// touches machine state and is safe to call repeatedly for the same
// address; callers needing to know only the length without building a
// full Descriptor should use Peek instead.
//
// Bit-field extraction follows the standard RV64GC instruction formats;
// x/xs name the unsigned/sign-extending field-extraction helpers used by
// cavatools' own decoder (caveat/decoder.cc's x()/xs() macros), rewritten
// here as ordinary Go functions since Go has no preprocessor.
func Decode(code []byte, pc uint64) (descriptor.Descriptor, int) {
	if len(code) < 2 {
		return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0), 0
	}
	lo16 := uint32(code[0]) | uint32(code[1])<<8
	if lo16&3 != 3 {
		return decodeCompressed(lo16)
	}
	if len(code) < 4 {
		return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0), 0
	}
	b := uint32(code[0]) | uint32(code[1])<<8 | uint32(code[2])<<16 | uint32(code[3])<<24
	return decodeLong(b), 4
}

// Peek returns only the instruction length (2 or 4) without building a
// Descriptor; used by block discovery when only the stop/continue
// address matters.
func Peek(code []byte) int {
	if len(code) < 2 {
		return 0
	}
	lo16 := uint32(code[0]) | uint32(code[1])<<8
	if lo16&3 != 3 {
		return 2
	}
	return 4
}

func x(b uint32, lo, length uint) uint32 {
	return (b >> lo) & ((1 << length) - 1)
}

func xs(b uint32, lo, length uint) int32 {
	shift := 32 - lo - length
	return int32(b<<shift) >> (32 - length)
}

func reg(b uint32, lo uint) uint8 { return uint8(x(b, lo, 5)) }

func decodeLong(b uint32) descriptor.Descriptor {
	opcode := x(b, 0, 7)
	rd := reg(b, 7)
	funct3 := x(b, 12, 3)
	rs1 := reg(b, 15)
	rs2 := reg(b, 20)
	funct7 := x(b, 25, 7)

	switch opcode {
	case 0x37: // LUI
		return descriptor.NewLong(OpLui, rd, descriptor.NOREG, int32(b&0xfffff000))
	case 0x17: // AUIPC
		return descriptor.NewLong(OpAuipc, rd, descriptor.NOREG, int32(b&0xfffff000))
	case 0x6f: // JAL
		imm := (x(b, 21, 10) << 1) | (x(b, 20, 1) << 11) | (x(b, 12, 8) << 12) | (x(b, 31, 1) << 20)
		return descriptor.NewLong(OpJal, rd, descriptor.NOREG, signExtend21(imm))
	case 0x67: // JALR
		return descriptor.NewShort(OpJalr, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(xs(b, 20, 12)))
	case 0x63: // branches
		imm := (x(b, 8, 4) << 1) | (x(b, 25, 6) << 5) | (x(b, 7, 1) << 11) | (x(b, 31, 1) << 12)
		op := branchOp(funct3)
		return descriptor.NewShort(op, descriptor.NOREG, rs1, rs2, descriptor.NOREG, int16(signExtend13(imm)))
	case 0x03: // loads
		op := loadOp(funct3)
		return descriptor.NewShort(op, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(xs(b, 20, 12)))
	case 0x23: // stores
		imm := x(b, 7, 5) | (x(b, 25, 7) << 5)
		op := storeOp(funct3)
		return descriptor.NewShort(op, descriptor.NOREG, rs1, rs2, descriptor.NOREG, int16(signExtend12(imm)))
	case 0x13: // immediate ALU
		return decodeOpImm(rd, rs1, funct3, b)
	case 0x33: // register ALU (+ M extension)
		return decodeOp(rd, rs1, rs2, funct3, funct7)
	case 0x0f:
		if funct3 == 1 {
			return descriptor.NewShort(OpFenceI, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFence, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
	case 0x73: // system (ecall/ebreak/csr)
		return decodeSystem(rd, rs1, funct3, b)
	case 0x1b: // 32-bit immediate ALU (addiw/slliw/srliw/sraiw)
		return decodeOpImm32(rd, rs1, funct3, b)
	case 0x3b: // 32-bit register ALU (addw/subw/... + M extension .w forms)
		return decodeOp32(rd, rs1, rs2, funct3, funct7)
	case 0x2f: // A extension
		return decodeAMO(rd, rs1, rs2, funct3, b)
	case 0x07: // FLW/FLD
		op := OpFlw
		if funct3 == 3 {
			op = OpFld
		}
		return descriptor.NewShort(op, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(xs(b, 20, 12)))
	case 0x27: // FSW/FSD
		imm := x(b, 7, 5) | (x(b, 25, 7) << 5)
		op := OpFsw
		if funct3 == 3 {
			op = OpFsd
		}
		return descriptor.NewShort(op, descriptor.NOREG, rs1, rs2, descriptor.NOREG, int16(signExtend12(imm)))
	case 0x53: // F/D compute
		return decodeFP(rd, rs1, rs2, funct3, funct7)
	}
	return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
}

func signExtend12(v uint32) int32 {
	return int32(v<<20) >> 20
}

func signExtend13(v uint32) int32 {
	return int32(v<<19) >> 19
}

func signExtend21(v uint32) int32 {
	return int32(v<<11) >> 11
}

func branchOp(funct3 uint32) descriptor.Opcode {
	switch funct3 {
	case 0:
		return OpBeq
	case 1:
		return OpBne
	case 4:
		return OpBlt
	case 5:
		return OpBge
	case 6:
		return OpBltu
	case 7:
		return OpBgeu
	}
	return descriptor.OpIllegal
}

func loadOp(funct3 uint32) descriptor.Opcode {
	switch funct3 {
	case 0:
		return OpLb
	case 1:
		return OpLh
	case 2:
		return OpLw
	case 3:
		return OpLd
	case 4:
		return OpLbu
	case 5:
		return OpLhu
	case 6:
		return OpLwu
	}
	return descriptor.OpIllegal
}

func storeOp(funct3 uint32) descriptor.Opcode {
	switch funct3 {
	case 0:
		return OpSb
	case 1:
		return OpSh
	case 2:
		return OpSw
	case 3:
		return OpSd
	}
	return descriptor.OpIllegal
}

func decodeOpImm(rd, rs1 uint8, funct3 uint32, b uint32) descriptor.Descriptor {
	shamt := int16(x(b, 20, 6))
	switch funct3 {
	case 0:
		return descriptor.NewShort(OpAddi, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(xs(b, 20, 12)))
	case 1:
		return descriptor.NewShort(OpSlli, rd, rs1, descriptor.NOREG, descriptor.NOREG, shamt)
	case 2:
		return descriptor.NewShort(OpSlti, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(xs(b, 20, 12)))
	case 3:
		return descriptor.NewShort(OpSltiu, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(xs(b, 20, 12)))
	case 4:
		return descriptor.NewShort(OpXori, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(xs(b, 20, 12)))
	case 5:
		if x(b, 26, 6) == 0x10 {
			return descriptor.NewShort(OpSrai, rd, rs1, descriptor.NOREG, descriptor.NOREG, shamt)
		}
		return descriptor.NewShort(OpSrli, rd, rs1, descriptor.NOREG, descriptor.NOREG, shamt)
	case 6:
		return descriptor.NewShort(OpOri, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(xs(b, 20, 12)))
	case 7:
		return descriptor.NewShort(OpAndi, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(xs(b, 20, 12)))
	}
	return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
}

func decodeOpImm32(rd, rs1 uint8, funct3 uint32, b uint32) descriptor.Descriptor {
	shamt := int16(x(b, 20, 5))
	switch funct3 {
	case 0:
		return descriptor.NewShort(OpAddiw, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(xs(b, 20, 12)))
	case 1:
		return descriptor.NewShort(OpSlliw, rd, rs1, descriptor.NOREG, descriptor.NOREG, shamt)
	case 5:
		if x(b, 25, 7) == 0x20 {
			return descriptor.NewShort(OpSraiw, rd, rs1, descriptor.NOREG, descriptor.NOREG, shamt)
		}
		return descriptor.NewShort(OpSrliw, rd, rs1, descriptor.NOREG, descriptor.NOREG, shamt)
	}
	return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
}

func decodeOp(rd, rs1, rs2 uint8, funct3, funct7 uint32) descriptor.Descriptor {
	if funct7 == 0x01 { // M extension
		ops := [8]descriptor.Opcode{OpMul, OpMulh, OpMulhsu, OpMulhu, OpDiv, OpDivu, OpRem, OpRemu}
		return descriptor.NewShort(ops[funct3], rd, rs1, rs2, descriptor.NOREG, 0)
	}
	switch funct3 {
	case 0:
		if funct7 == 0x20 {
			return descriptor.NewShort(OpSub, rd, rs1, rs2, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpAdd, rd, rs1, rs2, descriptor.NOREG, 0)
	case 1:
		return descriptor.NewShort(OpSll, rd, rs1, rs2, descriptor.NOREG, 0)
	case 2:
		return descriptor.NewShort(OpSlt, rd, rs1, rs2, descriptor.NOREG, 0)
	case 3:
		return descriptor.NewShort(OpSltu, rd, rs1, rs2, descriptor.NOREG, 0)
	case 4:
		return descriptor.NewShort(OpXor, rd, rs1, rs2, descriptor.NOREG, 0)
	case 5:
		if funct7 == 0x20 {
			return descriptor.NewShort(OpSra, rd, rs1, rs2, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpSrl, rd, rs1, rs2, descriptor.NOREG, 0)
	case 6:
		return descriptor.NewShort(OpOr, rd, rs1, rs2, descriptor.NOREG, 0)
	case 7:
		return descriptor.NewShort(OpAnd, rd, rs1, rs2, descriptor.NOREG, 0)
	}
	return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
}

func decodeOp32(rd, rs1, rs2 uint8, funct3, funct7 uint32) descriptor.Descriptor {
	if funct7 == 0x01 { // RV64M .w forms
		switch funct3 {
		case 0:
			return descriptor.NewShort(OpMulw, rd, rs1, rs2, descriptor.NOREG, 0)
		case 4:
			return descriptor.NewShort(OpDivw, rd, rs1, rs2, descriptor.NOREG, 0)
		case 5:
			return descriptor.NewShort(OpDivuw, rd, rs1, rs2, descriptor.NOREG, 0)
		case 6:
			return descriptor.NewShort(OpRemw, rd, rs1, rs2, descriptor.NOREG, 0)
		case 7:
			return descriptor.NewShort(OpRemuw, rd, rs1, rs2, descriptor.NOREG, 0)
		}
	}
	switch funct3 {
	case 0:
		if funct7 == 0x20 {
			return descriptor.NewShort(OpSubw, rd, rs1, rs2, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpAddw, rd, rs1, rs2, descriptor.NOREG, 0)
	case 1:
		return descriptor.NewShort(OpSllw, rd, rs1, rs2, descriptor.NOREG, 0)
	case 5:
		if funct7 == 0x20 {
			return descriptor.NewShort(OpSraw, rd, rs1, rs2, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpSrlw, rd, rs1, rs2, descriptor.NOREG, 0)
	}
	return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
}

func decodeSystem(rd, rs1 uint8, funct3 uint32, b uint32) descriptor.Descriptor {
	csr := int16(x(b, 20, 12))
	switch funct3 {
	case 0:
		if x(b, 20, 12) == 1 {
			return descriptor.NewShort(OpEbreak, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpEcall, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
	case 1:
		return descriptor.NewShort(OpCsrrw, rd, rs1, descriptor.NOREG, descriptor.NOREG, csr)
	case 2:
		return descriptor.NewShort(OpCsrrs, rd, rs1, descriptor.NOREG, descriptor.NOREG, csr)
	case 3:
		return descriptor.NewShort(OpCsrrc, rd, rs1, descriptor.NOREG, descriptor.NOREG, csr)
	case 5:
		return descriptor.NewShort(OpCsrrwi, rd, rs1, descriptor.NOREG, descriptor.NOREG, csr)
	case 6:
		return descriptor.NewShort(OpCsrrsi, rd, rs1, descriptor.NOREG, descriptor.NOREG, csr)
	case 7:
		return descriptor.NewShort(OpCsrrci, rd, rs1, descriptor.NOREG, descriptor.NOREG, csr)
	}
	return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
}

// decodeAMO covers the A extension, §4.2's LR/SC and AMO* ops. The
// LR/BNE/SC → CAS substitution (§4.2/§9) happens post-decode in the
// translation cache builder, not here: Decode always returns the literal
// LR/SC pair faithfully.
func decodeAMO(rd, rs1, rs2 uint8, funct3 uint32, b uint32) descriptor.Descriptor {
	funct5 := x(b, 27, 5)
	wide := funct3 == 3 // .d forms
	ops32 := [...]descriptor.Opcode{
		0x02: OpLrW, 0x03: OpScW, 0x01: OpAmoswapW, 0x00: OpAmoaddW,
		0x04: OpAmoxorW, 0x0c: OpAmoandW, 0x08: OpAmoorW, 0x10: OpAmominW,
		0x14: OpAmomaxW, 0x18: OpAmominuW, 0x1c: OpAmomaxuW,
	}
	ops64 := [...]descriptor.Opcode{
		0x02: OpLrD, 0x03: OpScD, 0x01: OpAmoswapD, 0x00: OpAmoaddD,
		0x04: OpAmoxorD, 0x0c: OpAmoandD, 0x08: OpAmoorD, 0x10: OpAmominD,
		0x14: OpAmomaxD, 0x18: OpAmominuD, 0x1c: OpAmomaxuD,
	}
	var op descriptor.Opcode
	switch {
	case int(funct5) >= len(ops32):
		// no A-extension op at funct5 0x1d..0x1f: op stays OpZero
	case wide:
		op = ops64[funct5]
	default:
		op = ops32[funct5]
	}
	if op == descriptor.OpZero {
		return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
	}
	if op == OpLrW || op == OpLrD {
		return descriptor.NewShort(op, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
	}
	return descriptor.NewShort(op, rd, rs1, rs2, descriptor.NOREG, 0)
}

func decodeFP(rd, rs1, rs2 uint8, funct3, funct7 uint32) descriptor.Descriptor {
	single := funct7&1 == 0
	switch funct7 >> 2 {
	case 0: // FADD
		if single {
			return descriptor.NewShort(OpFaddS, rd, rs1, rs2, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFaddD, rd, rs1, rs2, descriptor.NOREG, 0)
	case 1: // FSUB
		if single {
			return descriptor.NewShort(OpFsubS, rd, rs1, rs2, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFsubD, rd, rs1, rs2, descriptor.NOREG, 0)
	case 2: // FMUL
		if single {
			return descriptor.NewShort(OpFmulS, rd, rs1, rs2, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFmulD, rd, rs1, rs2, descriptor.NOREG, 0)
	case 3: // FDIV
		if single {
			return descriptor.NewShort(OpFdivS, rd, rs1, rs2, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFdivD, rd, rs1, rs2, descriptor.NOREG, 0)
	case 0xb: // FSQRT
		if single {
			return descriptor.NewShort(OpFsqrtS, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFsqrtD, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
	case 0x4: // FSGNJ family (only J variant modeled, funct3==0)
		if funct3 != 0 {
			return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
		}
		if single {
			return descriptor.NewShort(OpFsgnjS, rd, rs1, rs2, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFsgnjD, rd, rs1, rs2, descriptor.NOREG, 0)
	case 0x14: // FEQ/FLT/FLE
		var op descriptor.Opcode
		switch funct3 {
		case 0:
			op = pick(single, OpFleS, OpFleD)
		case 1:
			op = pick(single, OpFltS, OpFltD)
		case 2:
			op = pick(single, OpFeqS, OpFeqD)
		default:
			return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(op, rd, rs1, rs2, descriptor.NOREG, 0)
	case 0x1c: // FCLASS / FMV.X.W
		if funct3 == 1 {
			return descriptor.NewShort(pick(single, OpFclassS, OpFclassD), rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFmvXW, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
	case 0x1e: // FMV.W.X
		return descriptor.NewShort(OpFmvWX, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
	case 0x08: // FCVT.S.D / FCVT.D.S
		if single {
			return descriptor.NewShort(OpFcvtSD, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFcvtDS, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
	case 0x18: // FCVT.W.S / FCVT.W.D
		if single {
			return descriptor.NewShort(OpFcvtWS, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFcvtWD, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
	case 0x1a: // FCVT.S.W / FCVT.D.W
		if single {
			return descriptor.NewShort(OpFcvtSW, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
		}
		return descriptor.NewShort(OpFcvtDW, rd, rs1, descriptor.NOREG, descriptor.NOREG, 0)
	}
	return descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
}

func pick(single bool, s, d descriptor.Opcode) descriptor.Opcode {
	if single {
		return s
	}
	return d
}
