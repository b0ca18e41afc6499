// Package strand implements the per-hart interpreter loop (SPEC_FULL.md
// §7, [E] strand/interpreter), grounded on
// _examples/original_source/uspike/strand.h's strand_t: one register
// file, one PC, one fcsr, executing basic blocks out of a shared
// translation cache until a syscall, a trap, or a simulator-requested
// stop.
package strand

import (
	"github.com/oisee/rv64ui/internal/decoder"
	"github.com/oisee/rv64ui/internal/descriptor"
	"github.com/oisee/rv64ui/internal/tcache"
)

// Memory is the guest address space a strand reads and writes. Hart
// owns the concrete implementation (a flat byte slice, possibly shared
// across harts for shared-memory multithreading per §5).
type Memory interface {
	Fetch(addr uint64) []byte // returns at least 4 bytes (or fewer at a page tail)
	Load8(addr uint64) uint8
	Load16(addr uint64) uint16
	Load32(addr uint64) uint32
	Load64(addr uint64) uint64
	Store8(addr uint64, v uint8)
	Store16(addr uint64, v uint16)
	Store32(addr uint64, v uint32)
	Store64(addr uint64, v uint64)
	// CAS64/CAS32 implement the AMO and substituted-CAS memory ordering
	// primitive (§4.2/§9); true on success.
	CAS32(addr uint64, expect, replace uint32) (old uint32, ok bool)
	CAS64(addr uint64, expect, replace uint64) (old uint64, ok bool)
}

// SimCallback is the injection point for the pluggable timing simulator
// (§4.6/§7's "simulator observes retired blocks"): invoked once per
// retired basic block with the block and the strand that executed it.
// A nil SimCallback runs functionally only, at native dispatch speed.
type SimCallback func(s *Strand, b *tcache.Block)

// Softfloat abstracts the F/D arithmetic the strand does not implement
// itself, mirroring the original's dependency on Berkeley SoftFloat
// (uspike/strand.h includes softfloat.h directly). A pure-Go build
// backs this with math.Float32/64 bit tricks; see internal/strand/fp.go.
type Softfloat interface {
	AddS(a, b uint32, rm uint8) (uint32, uint8)
	SubS(a, b uint32, rm uint8) (uint32, uint8)
	MulS(a, b uint32, rm uint8) (uint32, uint8)
	DivS(a, b uint32, rm uint8) (uint32, uint8)
	SqrtS(a uint32, rm uint8) (uint32, uint8)
	AddD(a, b uint64, rm uint8) (uint64, uint8)
	SubD(a, b uint64, rm uint8) (uint64, uint8)
	MulD(a, b uint64, rm uint8) (uint64, uint8)
	DivD(a, b uint64, rm uint8) (uint64, uint8)
	SqrtD(a uint64, rm uint8) (uint64, uint8)
	CvtWS(a uint32, rm uint8) (int32, uint8)
	CvtSW(a int32, rm uint8) (uint32, uint8)
	CvtWD(a uint64, rm uint8) (int32, uint8)
	CvtDW(a int32, rm uint8) (uint64, uint8)
	CvtSD(a uint64, rm uint8) (uint32, uint8)
	CvtDS(a uint32, rm uint8) (uint64, uint8)
	EqS(a, b uint32) bool
	LtS(a, b uint32) bool
	LeS(a, b uint32) bool
	EqD(a, b uint64) bool
	LtD(a, b uint64) bool
	LeD(a, b uint64) bool
	ClassifyS(a uint32) uint64
	ClassifyD(a uint64) uint64
}

// Fcsr packs the floating-point control/status register (flags + rm),
// grounded directly on the anonymous union in strand_t: {flags:5, rm:3}.
type Fcsr struct {
	Flags uint8 // NV DZ OF UF NX, bit 0..4
	RM    uint8 // rounding mode, 0..7
}

const (
	FFlagNX uint8 = 1 << iota
	FFlagUF
	FFlagOF
	FFlagDZ
	FFlagNV
)

// Strand is one RISC-V hardware thread's architectural state.
type Strand struct {
	Xrf [32]uint64
	Frf [32][2]uint64 // NaN-boxed float128 per register, low/high halves
	PC  uint64
	Fcsr

	TID  int
	Addrs [10]uint64 // scratch list of recent load/store addresses, for trace/debug

	// reservation tracks the single outstanding LR for this strand,
	// a simplified stand-in for the original's hardware reservation
	// set: good enough to make the uncontended LR/SC and LR/BNE/SC-as-
	// CAS paths behave correctly, without modeling cache-line eviction
	// of the reservation under true multi-hart contention.
	reservedValid bool
	reservedAddr  uint64
	reservedVal   uint64

	Mem   Memory
	TC    *tcache.Cache
	FP    Softfloat
	OnSim SimCallback

	executed int64

	// ECall is invoked when the strand decodes an ECALL; it returns
	// true to keep running, false to stop (process exit).
	ECall func(s *Strand) bool
	// Ebreak is invoked on EBREAK/C.EBREAK, primarily for --gdb (§6).
	Ebreak func(s *Strand)
}

// Executed returns the number of retired instructions, used by
// Hart.TotalExecuted and the perf-shm periodic reporting (§6).
func (s *Strand) Executed() int64 { return s.executed }

func (s *Strand) reg(i uint8) uint64 {
	if i == 0 {
		return 0
	}
	return s.Xrf[i]
}

func (s *Strand) setReg(i uint8, v uint64) {
	if i == 0 || i == descriptor.NOREG {
		return
	}
	s.Xrf[i] = v
}

// maxBlockLen bounds how many instructions a single translation-cache
// block may hold, matching the spec's "basic blocks are bounded so the
// translation cache never stalls on a pathological straight-line run"
// framing in §4.2.
const maxBlockLen = 1024

// translate decodes a fresh basic block starting at addr, stopping after
// the first branch or StopAfter instruction (inclusive), before a
// StopBefore instruction that would not be the block's first, or at
// maxBlockLen, whichever comes first. It performs the LR/BNE/SC -> CAS substitution
// described in §4.2/§9 before returning.
func (s *Strand) translate(addr uint64) *tcache.Block {
	var code []descriptor.Descriptor
	pc := addr
	length := uint32(0)

	for len(code) < maxBlockLen {
		bytes := s.Mem.Fetch(pc)
		d, n := decoder.Decode(bytes, pc)
		if n == 0 {
			d = descriptor.NewShort(descriptor.OpIllegal, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, descriptor.NOREG, 0)
			n = 4
		}
		code = append(code, d)
		length += uint32(n)
		pc += uint64(n)

		if decoder.IsBranch(d.Op) {
			// §4.2's CAS idiom is LR; BNE; SC, so the SC that would
			// complete it sits one instruction past this branch. Pull it
			// into the block only when the full three-instruction shape
			// validates (matchCAS): a bare conditional branch still has
			// to end its block here, since execBlock walks b.Code
			// sequentially and a taken branch elsewhere in the middle of
			// a block would otherwise fall straight into an unrelated SC.
			if scD, scN, ok := s.casLookahead(code, pc); ok {
				code = append(code, scD)
				length += uint32(scN)
				pc += uint64(scN)
			}
			break
		}
		if decoder.StopAfter(d.Op) {
			break
		}
		if n2 := decoder.Peek(s.Mem.Fetch(pc)); n2 > 0 && decoder.StopBefore(decodeOpOnly(s.Mem.Fetch(pc), pc)) {
			break
		}
	}

	code = substituteCAS(code)
	conditional := len(code) > 0 && decoder.IsBranch(code[len(code)-1].Op)

	return &tcache.Block{Addr: addr, Code: code, Length: length, Conditional: conditional}
}

// casLookahead decodes the instruction at pc and reports whether it
// completes the LR/BNE/SC idiom started by the last two entries of code.
func (s *Strand) casLookahead(code []descriptor.Descriptor, pc uint64) (descriptor.Descriptor, int, bool) {
	if len(code) < 2 {
		return descriptor.Descriptor{}, 0, false
	}
	lr, bne := code[len(code)-2], code[len(code)-1]
	scD, scN := decoder.Decode(s.Mem.Fetch(pc), pc)
	if scN == 0 {
		return descriptor.Descriptor{}, 0, false
	}
	if _, ok := matchCAS(lr, bne, scD, instrLen(lr.Op), instrLen(bne.Op), instrLen(scD.Op)); !ok {
		return descriptor.Descriptor{}, 0, false
	}
	return scD, scN, true
}

func decodeOpOnly(bytes []byte, pc uint64) descriptor.Opcode {
	d, _ := decoder.Decode(bytes, pc)
	return d.Op
}

func instrLen(op descriptor.Opcode) int64 {
	if decoder.Compressed(op) {
		return 2
	}
	return 4
}

// matchCAS reports whether lr, bne, sc form the canonical LR/BNE/SC
// idiom (§4.2, §8 Testable Property 3, Glossary): LR loads rd, BNE
// compares that same register against an expected value, and SC stores
// back through LR's own address register. The implementer note in §9
// requires confirming the three instructions decode successfully and
// that the register numbers line up; the Open Question there further
// restricts the match to a BNE whose target is the instruction
// immediately after SC (the fall-through-on-success shape), since that
// is the only shape the substitution is defined for. On a match it
// returns the merged CasW/CasD descriptor, with imm16 carrying the
// combined byte length of the three original instructions so the
// interpreter can advance PC past all of them at once.
func matchCAS(lr, bne, sc descriptor.Descriptor, lrLen, bneLen, scLen int64) (descriptor.Descriptor, bool) {
	if !isLR(lr.Op) || bne.Op != decoder.OpBne || sc.Op != scFor(lr.Op) {
		return descriptor.Descriptor{}, false
	}
	if bne.Rs1 != lr.Rd || sc.Rs1 != lr.Rs1 {
		return descriptor.Descriptor{}, false
	}
	if bne.Imm() != bneLen+scLen {
		return descriptor.Descriptor{}, false
	}
	casOp := decoder.OpCasW
	if lr.Op == decoder.OpLrD {
		casOp = decoder.OpCasD
	}
	// merged.Rd carries SC's success/fail flag register; Rs2 carries the
	// replacement value (sc's data register); Rs3 carries the expected
	// value (bne's comparand register).
	merged := descriptor.NewShort(casOp, sc.Rd, lr.Rs1, sc.Rs2(), bne.Rs2(), int16(lrLen+bneLen+scLen))
	return merged, true
}

// substituteCAS recognizes the canonical LR; BNE; SC idiom (§4.2, §8
// Testable Property 3, Glossary) and replaces the three instructions
// with a single CasW/CasD pseudo-op, grounded on substitute_cas() in
// _examples/original_source/caveat/interpreter.cc.
func substituteCAS(code []descriptor.Descriptor) []descriptor.Descriptor {
	out := make([]descriptor.Descriptor, 0, len(code))
	for i := 0; i < len(code); i++ {
		if i+2 < len(code) {
			lr, bne, sc := code[i], code[i+1], code[i+2]
			if merged, ok := matchCAS(lr, bne, sc, instrLen(lr.Op), instrLen(bne.Op), instrLen(sc.Op)); ok {
				out = append(out, merged)
				i += 2
				continue
			}
		}
		out = append(out, code[i])
	}
	return out
}

func isLR(op descriptor.Opcode) bool { return op == decoder.OpLrW || op == decoder.OpLrD }
func scFor(lr descriptor.Opcode) descriptor.Opcode {
	if lr == decoder.OpLrD {
		return decoder.OpScD
	}
	return decoder.OpScW
}
