package decoder

import (
	"testing"

	"github.com/oisee/rv64ui/internal/descriptor"
)

func encodeRType(opcode, funct3, funct7, rd, rs1, rs2 uint32) []byte {
	b := opcode | (rd << 7) | (funct3 << 12) | (rs1 << 15) | (rs2 << 20) | (funct7 << 25)
	return []byte{byte(b), byte(b >> 8), byte(b >> 16), byte(b >> 24)}
}

func encodeIType(opcode, funct3, rd, rs1 uint32, imm int32) []byte {
	b := opcode | (rd << 7) | (funct3 << 12) | (rs1 << 15) | (uint32(imm) << 20)
	return []byte{byte(b), byte(b >> 8), byte(b >> 16), byte(b >> 24)}
}

// TestDecodeIdempotent verifies testable property 1 (§8): decoding the
// same bytes twice yields identical descriptors.
func TestDecodeIdempotent(t *testing.T) {
	code := encodeRType(0x33, 0, 0, 5, 6, 7) // add x5, x6, x7
	d1, n1 := Decode(code, 0x1000)
	d2, n2 := Decode(code, 0x1000)
	if n1 != n2 || d1 != d2 {
		t.Fatalf("decode not idempotent: %v/%d vs %v/%d", d1, n1, d2, n2)
	}
}

func TestDecodeAdd(t *testing.T) {
	code := encodeRType(0x33, 0, 0, 5, 6, 7)
	d, n := Decode(code, 0)
	if n != 4 {
		t.Fatalf("expected 4-byte instruction, got %d", n)
	}
	if d.Op != OpAdd || d.Rd != 5 || d.Rs1 != 6 || d.Rs2() != 7 {
		t.Fatalf("unexpected decode: %+v", d)
	}
}

func TestDecodeSub(t *testing.T) {
	code := encodeRType(0x33, 0, 0x20, 1, 2, 3)
	d, _ := Decode(code, 0)
	if d.Op != OpSub {
		t.Fatalf("expected OpSub, got %v", d.Op)
	}
}

func TestDecodeAddi(t *testing.T) {
	code := encodeIType(0x13, 0, 5, 6, -1)
	d, _ := Decode(code, 0)
	if d.Op != OpAddi || d.Imm() != -1 {
		t.Fatalf("unexpected decode: %+v", d)
	}
}

func TestDecodeMulRemW(t *testing.T) {
	code := encodeRType(0x3b, 6, 1, 1, 2, 3) // remw x1, x2, x3
	d, _ := Decode(code, 0)
	if d.Op != OpRemw {
		t.Fatalf("expected OpRemw, got %v", d.Op)
	}
}

func TestDecodeIllegalOpcode(t *testing.T) {
	code := []byte{0xff, 0xff, 0xff, 0xff}
	d, _ := Decode(code, 0)
	if d.Op != descriptor.OpIllegal {
		t.Fatalf("expected OpIllegal, got %v", d.Op)
	}
}

func TestDecodeCompressedNop(t *testing.T) {
	// C.NOP is 0x0001 (addi x0,x0,0 compressed form).
	code := []byte{0x01, 0x00}
	d, n := Decode(code, 0)
	if n != 2 || d.Op != OpCNop {
		t.Fatalf("expected 2-byte C.NOP, got op=%v n=%d", d.Op, n)
	}
}

func TestDecodeCompressedLi(t *testing.T) {
	// c.li x5, 3: quadrant 1, funct3=2, rd=5, imm=3 -> 0b010_0_00011_00101_01
	var b uint32
	b |= 1            // quadrant 1
	b |= 5 << 7        // rd
	b |= (3 & 0x1f) << 2
	b |= 2 << 13 // funct3
	code := []byte{byte(b), byte(b >> 8)}
	d, n := Decode(code, 0)
	if n != 2 || d.Op != OpCLi || d.Rd != 5 || d.Imm() != 3 {
		t.Fatalf("unexpected decode: %+v n=%d", d, n)
	}
}

func TestPeekMatchesDecodeLength(t *testing.T) {
	code := encodeRType(0x33, 0, 0, 5, 6, 7)
	_, n := Decode(code, 0)
	if got := Peek(code); got != n {
		t.Fatalf("Peek()=%d, Decode length=%d", got, n)
	}
}

func TestCompressedPartition(t *testing.T) {
	if !Compressed(OpCLi) {
		t.Fatalf("OpCLi should report Compressed")
	}
	if Compressed(OpAdd) {
		t.Fatalf("OpAdd should not report Compressed")
	}
}

func TestAttrsBranchStopsBlock(t *testing.T) {
	if !StopAfter(OpBeq) {
		t.Fatalf("OpBeq must set StopAfter")
	}
	if !IsBranch(OpBeq) {
		t.Fatalf("OpBeq must set AttrBranch")
	}
}
