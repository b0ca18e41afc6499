package strand

import (
	"encoding/binary"
	"testing"

	"github.com/oisee/rv64ui/internal/tcache"
)

type fakeMem struct {
	buf [4096]byte
}

func (m *fakeMem) Fetch(addr uint64) []byte {
	if addr >= uint64(len(m.buf)) {
		return nil
	}
	end := addr + 4
	if end > uint64(len(m.buf)) {
		end = uint64(len(m.buf))
	}
	return m.buf[addr:end]
}
func (m *fakeMem) Load8(addr uint64) uint8    { return m.buf[addr] }
func (m *fakeMem) Load16(addr uint64) uint16  { return binary.LittleEndian.Uint16(m.buf[addr:]) }
func (m *fakeMem) Load32(addr uint64) uint32  { return binary.LittleEndian.Uint32(m.buf[addr:]) }
func (m *fakeMem) Load64(addr uint64) uint64  { return binary.LittleEndian.Uint64(m.buf[addr:]) }
func (m *fakeMem) Store8(addr uint64, v uint8)   { m.buf[addr] = v }
func (m *fakeMem) Store16(addr uint64, v uint16) { binary.LittleEndian.PutUint16(m.buf[addr:], v) }
func (m *fakeMem) Store32(addr uint64, v uint32) { binary.LittleEndian.PutUint32(m.buf[addr:], v) }
func (m *fakeMem) Store64(addr uint64, v uint64) { binary.LittleEndian.PutUint64(m.buf[addr:], v) }
func (m *fakeMem) CAS32(addr uint64, expect, replace uint32) (uint32, bool) {
	old := m.Load32(addr)
	if old == expect {
		m.Store32(addr, replace)
		return old, true
	}
	return old, false
}
func (m *fakeMem) CAS64(addr uint64, expect, replace uint64) (uint64, bool) {
	old := m.Load64(addr)
	if old == expect {
		m.Store64(addr, replace)
		return old, true
	}
	return old, false
}

func encodeR(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return opcode | (rd << 7) | (funct3 << 12) | (rs1 << 15) | (rs2 << 20) | (funct7 << 25)
}

func encodeI(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return opcode | (rd << 7) | (funct3 << 12) | (rs1 << 15) | (uint32(imm) << 20)
}

func newTestStrand(mem *fakeMem) *Strand {
	return &Strand{Mem: mem, TC: tcache.New(64, 11)}
}

func TestRunAddThenEcallExit(t *testing.T) {
	mem := &fakeMem{}
	// x1 = 5 (addi x1, x0, 5); x2 = 7 (addi x2, x0, 7); x3 = x1+x2 (add x3,x1,x2); ecall
	binary.LittleEndian.PutUint32(mem.buf[0:], encodeI(0x13, 0, 1, 0, 5))
	binary.LittleEndian.PutUint32(mem.buf[4:], encodeI(0x13, 0, 2, 0, 7))
	binary.LittleEndian.PutUint32(mem.buf[8:], encodeR(0x33, 0, 0, 3, 1, 2))
	binary.LittleEndian.PutUint32(mem.buf[12:], 0x00000073) // ecall

	s := newTestStrand(mem)
	exited := false
	s.ECall = func(s *Strand) bool {
		exited = true
		return false
	}
	s.Run(nil)

	if !exited {
		t.Fatalf("expected ECall to fire")
	}
	if s.Xrf[3] != 12 {
		t.Fatalf("expected x3==12, got %d", s.Xrf[3])
	}
}

func TestBranchNotTakenFallsThrough(t *testing.T) {
	mem := &fakeMem{}
	// beq x0, x0, +8 is never exercised here; instead: bne x0,x0,+100 (not taken) then ecall
	bne := 0x63 | (0 << 7) | (1 << 12) | (0 << 15) | (0 << 20) | (uint32(100) << 25)
	binary.LittleEndian.PutUint32(mem.buf[0:], uint32(bne))
	binary.LittleEndian.PutUint32(mem.buf[4:], 0x00000073)

	s := newTestStrand(mem)
	var seenPC uint64
	s.ECall = func(s *Strand) bool {
		seenPC = s.PC
		return false
	}
	s.Run(nil)
	if seenPC != 4 {
		t.Fatalf("expected fallthrough to pc=4, got %d", seenPC)
	}
}

func TestBranchTakenJumps(t *testing.T) {
	mem := &fakeMem{}
	// beq x0, x0, +8 (taken), skip a bad instruction, land on ecall at pc=8
	beq := encodeBType(0x63, 0, 0, 0, 8)
	binary.LittleEndian.PutUint32(mem.buf[0:], beq)
	binary.LittleEndian.PutUint32(mem.buf[4:], 0xffffffff) // would be illegal if reached
	binary.LittleEndian.PutUint32(mem.buf[8:], 0x00000073) // ecall

	s := newTestStrand(mem)
	exited := false
	s.ECall = func(s *Strand) bool {
		exited = true
		return false
	}
	s.Run(nil)
	if !exited {
		t.Fatalf("expected to reach ecall via taken branch")
	}
}

func encodeBType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	b := opcode | (funct3 << 12) | (rs1 << 15) | (rs2 << 20)
	b |= ((u >> 11) & 1) << 7
	b |= ((u >> 1) & 0xf) << 8
	b |= ((u >> 5) & 0x3f) << 25
	b |= ((u >> 12) & 1) << 31
	return b
}

func encodeAMO(rd, rs1, rs2, funct3, funct5 uint32) uint32 {
	return 0x2f | (rd << 7) | (funct3 << 12) | (rs1 << 15) | (rs2 << 20) | ((funct5 << 2) << 25)
}

// TestCASSubstitution exercises the LR/BNE/SC idiom (§4.2, §8 Testable
// Property 3): lr.w x4,(x1); bne x4,x2,+8; sc.w x5,x3,(x1); ecall, with
// the BNE's target landing exactly on the ecall right after the SC.
// translate() should collapse this into a single CasW pseudo-op whose
// compare-and-swap succeeds against the seeded memory word, and exec()
// must land PC on the ecall rather than falling through by 4 bytes.
func TestCASSubstitution(t *testing.T) {
	mem := &fakeMem{}
	binary.LittleEndian.PutUint32(mem.buf[0x100:], 42)

	binary.LittleEndian.PutUint32(mem.buf[0:], encodeAMO(4, 1, 0, 2, 0x02))  // lr.w x4, (x1)
	binary.LittleEndian.PutUint32(mem.buf[4:], encodeBType(0x63, 1, 4, 2, 8)) // bne x4, x2, +8
	binary.LittleEndian.PutUint32(mem.buf[8:], encodeAMO(5, 1, 3, 2, 0x03))  // sc.w x5, x3, (x1)
	binary.LittleEndian.PutUint32(mem.buf[12:], 0x00000073)                  // ecall

	s := newTestStrand(mem)
	s.Xrf[1] = 0x100 // address
	s.Xrf[2] = 42    // expected value
	s.Xrf[3] = 99    // replacement value
	s.Xrf[5] = 7     // SC flag register, overwritten with 0 on success

	var seenPC uint64
	s.ECall = func(s *Strand) bool {
		seenPC = s.PC
		return false
	}
	s.Run(nil)

	if seenPC != 12 {
		t.Fatalf("expected ecall reached at pc=12, got %d", seenPC)
	}
	if s.Xrf[5] != 0 {
		t.Fatalf("expected x5==0 (cas succeeded), got %d", s.Xrf[5])
	}
	if got := mem.Load32(0x100); got != 99 {
		t.Fatalf("expected memory word replaced with 99, got %d", got)
	}
}

// TestCASSubstitutionDeclinesWrongTarget checks the Open Question
// restriction (spec.md §9): when the BNE does not fall through to the
// instruction immediately after SC, the idiom must be left as literal
// LR/BNE/SC rather than accelerated.
func TestCASSubstitutionDeclinesWrongTarget(t *testing.T) {
	mem := &fakeMem{}
	binary.LittleEndian.PutUint32(mem.buf[0x100:], 42)

	binary.LittleEndian.PutUint32(mem.buf[0:], encodeAMO(4, 1, 0, 2, 0x02))   // lr.w x4, (x1)
	binary.LittleEndian.PutUint32(mem.buf[4:], encodeBType(0x63, 1, 4, 2, 100)) // bne x4, x2, +100 (retry loop, not the idiom)
	binary.LittleEndian.PutUint32(mem.buf[8:], encodeAMO(5, 1, 3, 2, 0x03))   // sc.w x5, x3, (x1)
	binary.LittleEndian.PutUint32(mem.buf[12:], 0x00000073)                   // ecall

	s := newTestStrand(mem)
	s.Xrf[1] = 0x100
	s.Xrf[2] = 42
	s.Xrf[3] = 99

	var seenPC uint64
	s.ECall = func(s *Strand) bool {
		seenPC = s.PC
		return false
	}
	s.Run(nil)

	// x4 mismatches x2 is false here (they're equal), so the literal BNE
	// is not taken and execution falls through to the literal SC at
	// pc=8, then to ecall at pc=12 — same outcome as the accelerated
	// path, but reached through the un-substituted LR/BNE/SC sequence.
	if seenPC != 12 {
		t.Fatalf("expected ecall reached at pc=12, got %d", seenPC)
	}
	if got := mem.Load32(0x100); got != 99 {
		t.Fatalf("expected sc.w to still store 99 via plain LR/SC emulation, got %d", got)
	}
}

func TestLoadStoreRoundTrip(t *testing.T) {
	mem := &fakeMem{}
	// addi x1, x0, 0x100 ; addi x2, x0, 99 ; sw x2, 0(x1) ; lw x3, 0(x1) ; ecall
	binary.LittleEndian.PutUint32(mem.buf[0:], encodeI(0x13, 0, 1, 0, 0x100))
	binary.LittleEndian.PutUint32(mem.buf[4:], encodeI(0x13, 0, 2, 0, 99))
	sw := 0x23 | (2 << 12) | (1 << 15) | (2 << 20) // sw x2, 0(x1)
	binary.LittleEndian.PutUint32(mem.buf[8:], uint32(sw))
	binary.LittleEndian.PutUint32(mem.buf[12:], encodeI(0x03, 2, 3, 1, 0)) // lw x3, 0(x1)
	binary.LittleEndian.PutUint32(mem.buf[16:], 0x00000073)

	s := newTestStrand(mem)
	s.ECall = func(s *Strand) bool { return false }
	s.Run(nil)
	if s.Xrf[3] != 99 {
		t.Fatalf("expected x3==99, got %d", s.Xrf[3])
	}
}
