package decoder

import "github.com/oisee/rv64ui/internal/descriptor"

// decodeCompressed handles the selected RVC subset named in §4.1: the
// handful of 16-bit encodings that appear often enough in real binaries
// to be worth decompressing inline rather than falling back to a table
// of full 32-bit equivalents. Anything else decodes to OpIllegal, which
// is conservative but correct: the interpreter never executes a
// mis-decoded instruction, it just refuses to accelerate it.
func decodeCompressed(b uint32) (descriptor.Descriptor, int) {
	illegal := descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
	if b&0xffff == 0 {
		return illegal, 2
	}
	op := x(b, 0, 2)
	funct3 := x(b, 13, 3)

	switch op {
	case 0: // quadrant 0
		switch funct3 {
		case 2: // C.LW
			rd := crdq(b)
			rs1 := crs1q(b)
			imm := (x(b, 6, 1) << 2) | (x(b, 10, 3) << 3) | (x(b, 5, 1) << 6)
			return descriptor.NewShort(OpCLw, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(imm)), 2
		case 3: // C.LD
			rd := crdq(b)
			rs1 := crs1q(b)
			imm := (x(b, 10, 3) << 3) | (x(b, 5, 2) << 6)
			return descriptor.NewShort(OpCLd, rd, rs1, descriptor.NOREG, descriptor.NOREG, int16(imm)), 2
		case 6: // C.SW
			rs1 := crs1q(b)
			rs2 := crdq(b)
			imm := (x(b, 6, 1) << 2) | (x(b, 10, 3) << 3) | (x(b, 5, 1) << 6)
			return descriptor.NewShort(OpCSw, descriptor.NOREG, rs1, rs2, descriptor.NOREG, int16(imm)), 2
		case 7: // C.SD
			rs1 := crs1q(b)
			rs2 := crdq(b)
			imm := (x(b, 10, 3) << 3) | (x(b, 5, 2) << 6)
			return descriptor.NewShort(OpCSd, descriptor.NOREG, rs1, rs2, descriptor.NOREG, int16(imm)), 2
		}
	case 1: // quadrant 1
		switch funct3 {
		case 0: // C.ADDI (rd=0 is C.NOP)
			rd := crd(b)
			imm := cImm6(b)
			if rd == 0 {
				return descriptor.NewShort(OpCNop, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0), 2
			}
			return descriptor.NewShort(OpCAddi, rd, rd, descriptor.NOREG, descriptor.NOREG, int16(imm)), 2
		case 1: // C.ADDIW: not in the selected subset, decodes as illegal
		case 2: // C.LI
			rd := crd(b)
			imm := cImm6(b)
			return descriptor.NewShort(OpCLi, rd, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, int16(imm)), 2
		case 5: // C.J
			imm := cJImm(b)
			return descriptor.NewLong(OpCJ, descriptor.NOREG, descriptor.NOREG, imm), 2
		case 6: // C.BEQZ
			rs1 := crs1q(b)
			imm := cBImm(b)
			return descriptor.NewShort(OpCBeqz, descriptor.NOREG, rs1, descriptor.NOREG, descriptor.NOREG, int16(imm)), 2
		case 7: // C.BNEZ
			rs1 := crs1q(b)
			imm := cBImm(b)
			return descriptor.NewShort(OpCBnez, descriptor.NOREG, rs1, descriptor.NOREG, descriptor.NOREG, int16(imm)), 2
		}
	case 2: // quadrant 2
		switch funct3 {
		case 0: // C.SLLI — not in selected subset, fall through to illegal
		case 4:
			rd := crd(b)
			rs2 := crs2(b)
			bit12 := x(b, 12, 1)
			switch {
			case bit12 == 0 && rs2 == 0: // C.JR
				return descriptor.NewShort(OpCJr, descriptor.NOREG, rd, descriptor.NOREG, descriptor.NOREG, 0), 2
			case bit12 == 0: // C.MV
				return descriptor.NewShort(OpCMv, rd, descriptor.NOREG, rs2, descriptor.NOREG, 0), 2
			case bit12 == 1 && rd == 0 && rs2 == 0: // C.EBREAK
				return descriptor.NewShort(OpCEbreak, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0), 2
			case bit12 == 1 && rs2 == 0: // C.JALR
				return descriptor.NewShort(OpCJalr, descriptor.NOREG, rd, descriptor.NOREG, descriptor.NOREG, 0), 2
			default: // C.ADD
				return descriptor.NewShort(OpCAdd, rd, rd, rs2, descriptor.NOREG, 0), 2
			}
		}
	}
	return illegal, 2
}

// crdq/crs1q extract the 3-bit "quadrant" register fields (x8-x15) used
// by the C/CL/CS/CB/CIW compressed formats.
func crdq(b uint32) uint8  { return uint8(x(b, 2, 3)) + 8 }
func crs1q(b uint32) uint8 { return uint8(x(b, 7, 3)) + 8 }

// crd/crs2 extract the full 5-bit register fields used by the CR/CI
// compressed formats.
func crd(b uint32) uint8  { return uint8(x(b, 7, 5)) }
func crs2(b uint32) uint8 { return uint8(x(b, 2, 5)) }

func cImm6(b uint32) int32 {
	v := x(b, 2, 5) | (x(b, 12, 1) << 5)
	return int32(v<<26) >> 26
}

func cJImm(b uint32) int32 {
	v := (x(b, 3, 3) << 1) | (x(b, 11, 1) << 4) | (x(b, 2, 1) << 5) |
		(x(b, 7, 1) << 6) | (x(b, 6, 1) << 7) | (x(b, 9, 2) << 8) |
		(x(b, 8, 1) << 10) | (x(b, 12, 1) << 11)
	return int32(v<<20) >> 20
}

func cBImm(b uint32) int32 {
	v := (x(b, 3, 2) << 1) | (x(b, 10, 2) << 3) | (x(b, 2, 1) << 5) |
		(x(b, 5, 2) << 6) | (x(b, 12, 1) << 8)
	return int32(v<<23) >> 23
}
