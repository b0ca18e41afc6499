package strand

import (
	"github.com/oisee/rv64ui/internal/decoder"
	"github.com/oisee/rv64ui/internal/descriptor"
	"github.com/oisee/rv64ui/internal/tcache"
)

// Run executes basic blocks until stop returns true or the strand's
// ECall hook returns false (process exit), grounded on strand_t's
// interpreter() loop: translate-or-fetch, execute, retire, repeat.
func (s *Strand) Run(stop func() bool) {
	for {
		if stop != nil && stop() {
			return
		}
		b := s.TC.Find(s.PC)
		if b == nil {
			b = s.TC.Add(s.translate(s.PC))
		}
		if !s.execBlock(b) {
			return
		}
		if s.OnSim != nil {
			s.OnSim(s, b)
		}
	}
}

// execBlock runs every Descriptor in b in order, returning false if the
// block's ECall handler requested process exit. exec() is the sole
// writer of s.PC: execBlock only derives the fetch address for the next
// instruction while walking sequentially down the block, and trusts
// whatever s.PC holds once the last instruction has run (every exec path
// that returns true leaves s.PC at the next instruction to execute).
func (s *Strand) execBlock(b *tcache.Block) bool {
	pc := b.Addr
	for _, d := range b.Code {
		n := 4
		if decoder.Compressed(d.Op) {
			n = 2
		}
		if !s.exec(d, pc, uint64(n)) {
			return false
		}
		pc = s.PC
	}
	s.executed += int64(len(b.Code))
	return true
}

// exec dispatches a single predecoded instruction located at pc and size
// bytes long. pc+size, the address of the instruction immediately after
// this one, is the default next-PC for every non-control-flow opcode.
func (s *Strand) exec(d descriptor.Descriptor, pc, size uint64) bool {
	next := pc + size
	switch d.Op {
	case descriptor.OpIllegal, descriptor.OpUnknown:
		// Treated as SIGILL by the real kernel; here we simply stop the
		// strand rather than fabricate a signal-delivery path the spec
		// doesn't ask for.
		return false

	case decoder.OpLui:
		s.setReg(d.Rd, uint64(int64(d.Imm32())))
	case decoder.OpAuipc:
		s.setReg(d.Rd, pc+uint64(int64(d.Imm32())))
	case decoder.OpJal:
		s.setReg(d.Rd, next)
		s.PC = uint64(int64(pc) + int64(d.Imm32()))
		return true
	case decoder.OpJalr, decoder.OpCJalr:
		target := (s.reg(d.Rs1) + uint64(int64(d.Imm16()))) &^ 1
		s.setReg(d.Rd, next)
		s.PC = target
		return true
	case decoder.OpCJr:
		s.PC = s.reg(d.Rs1)
		return true
	case decoder.OpCJ:
		s.PC = uint64(int64(pc) + int64(d.Imm32()))
		return true

	case decoder.OpBeq:
		s.branch(s.reg(d.Rs1) == s.reg(d.Rs2()), pc, d, next)
		return true
	case decoder.OpBne:
		s.branch(s.reg(d.Rs1) != s.reg(d.Rs2()), pc, d, next)
		return true
	case decoder.OpBlt:
		s.branch(int64(s.reg(d.Rs1)) < int64(s.reg(d.Rs2())), pc, d, next)
		return true
	case decoder.OpBge:
		s.branch(int64(s.reg(d.Rs1)) >= int64(s.reg(d.Rs2())), pc, d, next)
		return true
	case decoder.OpBltu:
		s.branch(s.reg(d.Rs1) < s.reg(d.Rs2()), pc, d, next)
		return true
	case decoder.OpBgeu:
		s.branch(s.reg(d.Rs1) >= s.reg(d.Rs2()), pc, d, next)
		return true
	case decoder.OpCBeqz:
		s.branch(s.reg(d.Rs1) == 0, pc, d, next)
		return true
	case decoder.OpCBnez:
		s.branch(s.reg(d.Rs1) != 0, pc, d, next)
		return true

	case decoder.OpLb:
		s.setReg(d.Rd, uint64(int64(int8(s.Mem.Load8(s.addr(d))))))
	case decoder.OpLbu:
		s.setReg(d.Rd, uint64(s.Mem.Load8(s.addr(d))))
	case decoder.OpLh:
		s.setReg(d.Rd, uint64(int64(int16(s.Mem.Load16(s.addr(d))))))
	case decoder.OpLhu:
		s.setReg(d.Rd, uint64(s.Mem.Load16(s.addr(d))))
	case decoder.OpLw:
		s.setReg(d.Rd, uint64(int64(int32(s.Mem.Load32(s.addr(d))))))
	case decoder.OpLwu:
		s.setReg(d.Rd, uint64(s.Mem.Load32(s.addr(d))))
	case decoder.OpLd:
		s.setReg(d.Rd, s.Mem.Load64(s.addr(d)))
	case decoder.OpCLw:
		s.setReg(d.Rd, uint64(int64(int32(s.Mem.Load32(s.reg(d.Rs1)+uint64(d.Imm16()))))))
	case decoder.OpCLd:
		s.setReg(d.Rd, s.Mem.Load64(s.reg(d.Rs1)+uint64(d.Imm16())))

	case decoder.OpSb:
		s.Mem.Store8(s.addrStore(d), uint8(s.reg(d.Rs2())))
	case decoder.OpSh:
		s.Mem.Store16(s.addrStore(d), uint16(s.reg(d.Rs2())))
	case decoder.OpSw:
		s.Mem.Store32(s.addrStore(d), uint32(s.reg(d.Rs2())))
	case decoder.OpSd:
		s.Mem.Store64(s.addrStore(d), s.reg(d.Rs2()))
	case decoder.OpCSw:
		s.Mem.Store32(s.reg(d.Rs1)+uint64(d.Imm16()), uint32(s.reg(d.Rs2())))
	case decoder.OpCSd:
		s.Mem.Store64(s.reg(d.Rs1)+uint64(d.Imm16()), s.reg(d.Rs2()))

	case decoder.OpAddi, decoder.OpCAddi:
		s.setReg(d.Rd, uint64(int64(s.reg(d.Rs1))+d.Imm()))
	case decoder.OpCLi:
		s.setReg(d.Rd, uint64(d.Imm()))
	case decoder.OpCMv:
		s.setReg(d.Rd, s.reg(d.Rs2()))
	case decoder.OpCAdd:
		s.setReg(d.Rd, s.reg(d.Rs1)+s.reg(d.Rs2()))
	case decoder.OpCNop:
		// nop
	case decoder.OpSlti:
		s.setReg(d.Rd, boolU64(int64(s.reg(d.Rs1)) < d.Imm()))
	case decoder.OpSltiu:
		s.setReg(d.Rd, boolU64(s.reg(d.Rs1) < uint64(d.Imm())))
	case decoder.OpXori:
		s.setReg(d.Rd, s.reg(d.Rs1)^uint64(d.Imm()))
	case decoder.OpOri:
		s.setReg(d.Rd, s.reg(d.Rs1)|uint64(d.Imm()))
	case decoder.OpAndi:
		s.setReg(d.Rd, s.reg(d.Rs1)&uint64(d.Imm()))
	case decoder.OpSlli:
		s.setReg(d.Rd, s.reg(d.Rs1)<<uint(d.Imm16()&0x3f))
	case decoder.OpSrli:
		s.setReg(d.Rd, s.reg(d.Rs1)>>uint(d.Imm16()&0x3f))
	case decoder.OpSrai:
		s.setReg(d.Rd, uint64(int64(s.reg(d.Rs1))>>uint(d.Imm16()&0x3f)))

	case decoder.OpAdd:
		s.setReg(d.Rd, s.reg(d.Rs1)+s.reg(d.Rs2()))
	case decoder.OpSub:
		s.setReg(d.Rd, s.reg(d.Rs1)-s.reg(d.Rs2()))
	case decoder.OpSll:
		s.setReg(d.Rd, s.reg(d.Rs1)<<(s.reg(d.Rs2())&0x3f))
	case decoder.OpSlt:
		s.setReg(d.Rd, boolU64(int64(s.reg(d.Rs1)) < int64(s.reg(d.Rs2()))))
	case decoder.OpSltu:
		s.setReg(d.Rd, boolU64(s.reg(d.Rs1) < s.reg(d.Rs2())))
	case decoder.OpXor:
		s.setReg(d.Rd, s.reg(d.Rs1)^s.reg(d.Rs2()))
	case decoder.OpSrl:
		s.setReg(d.Rd, s.reg(d.Rs1)>>(s.reg(d.Rs2())&0x3f))
	case decoder.OpSra:
		s.setReg(d.Rd, uint64(int64(s.reg(d.Rs1))>>(s.reg(d.Rs2())&0x3f)))
	case decoder.OpOr:
		s.setReg(d.Rd, s.reg(d.Rs1)|s.reg(d.Rs2()))
	case decoder.OpAnd:
		s.setReg(d.Rd, s.reg(d.Rs1)&s.reg(d.Rs2()))

	case decoder.OpAddiw:
		s.setReg(d.Rd, uint64(int32(s.reg(d.Rs1))+int32(d.Imm())))
	case decoder.OpSlliw:
		s.setReg(d.Rd, uint64(int32(uint32(s.reg(d.Rs1))<<uint(d.Imm16()&0x1f))))
	case decoder.OpSrliw:
		s.setReg(d.Rd, uint64(int32(uint32(s.reg(d.Rs1))>>uint(d.Imm16()&0x1f))))
	case decoder.OpSraiw:
		s.setReg(d.Rd, uint64(int32(s.reg(d.Rs1))>>uint(d.Imm16()&0x1f)))
	case decoder.OpAddw:
		s.setReg(d.Rd, uint64(int32(s.reg(d.Rs1))+int32(s.reg(d.Rs2()))))
	case decoder.OpSubw:
		s.setReg(d.Rd, uint64(int32(s.reg(d.Rs1))-int32(s.reg(d.Rs2()))))
	case decoder.OpSllw:
		s.setReg(d.Rd, uint64(int32(uint32(s.reg(d.Rs1))<<(s.reg(d.Rs2())&0x1f))))
	case decoder.OpSrlw:
		s.setReg(d.Rd, uint64(int32(uint32(s.reg(d.Rs1))>>(s.reg(d.Rs2())&0x1f))))
	case decoder.OpSraw:
		s.setReg(d.Rd, uint64(int32(s.reg(d.Rs1))>>(s.reg(d.Rs2())&0x1f)))

	case decoder.OpMul:
		s.setReg(d.Rd, s.reg(d.Rs1)*s.reg(d.Rs2()))
	case decoder.OpMulh:
		s.setReg(d.Rd, uint64(mulh(int64(s.reg(d.Rs1)), int64(s.reg(d.Rs2())))))
	case decoder.OpMulhu:
		s.setReg(d.Rd, mulhu(s.reg(d.Rs1), s.reg(d.Rs2())))
	case decoder.OpMulhsu:
		s.setReg(d.Rd, uint64(mulhsu(int64(s.reg(d.Rs1)), s.reg(d.Rs2()))))
	case decoder.OpDiv:
		s.setReg(d.Rd, uint64(divs(int64(s.reg(d.Rs1)), int64(s.reg(d.Rs2())))))
	case decoder.OpDivu:
		s.setReg(d.Rd, divu(s.reg(d.Rs1), s.reg(d.Rs2())))
	case decoder.OpRem:
		s.setReg(d.Rd, uint64(rems(int64(s.reg(d.Rs1)), int64(s.reg(d.Rs2())))))
	case decoder.OpRemu:
		s.setReg(d.Rd, remu(s.reg(d.Rs1), s.reg(d.Rs2())))
	case decoder.OpMulw:
		s.setReg(d.Rd, uint64(int32(s.reg(d.Rs1))*int32(s.reg(d.Rs2()))))
	case decoder.OpDivw:
		s.setReg(d.Rd, uint64(divw(int32(s.reg(d.Rs1)), int32(s.reg(d.Rs2())))))
	case decoder.OpDivuw:
		s.setReg(d.Rd, uint64(int32(divuw(uint32(s.reg(d.Rs1)), uint32(s.reg(d.Rs2()))))))
	case decoder.OpRemw:
		s.setReg(d.Rd, uint64(remw(int32(s.reg(d.Rs1)), int32(s.reg(d.Rs2())))))
	case decoder.OpRemuw:
		s.setReg(d.Rd, uint64(int32(remuw(uint32(s.reg(d.Rs1)), uint32(s.reg(d.Rs2()))))))

	case decoder.OpFence, decoder.OpFenceI:
		// No host-visible effect: Go's memory model plus the CAS
		// substitution already give us the ordering guarantees fence.i
		// exists to paper over on real hardware.

	case decoder.OpEcall:
		if s.ECall != nil && !s.ECall(s) {
			return false
		}
	case decoder.OpEbreak, decoder.OpCEbreak:
		if s.Ebreak != nil {
			s.Ebreak(s)
		}

	case decoder.OpCsrrw, decoder.OpCsrrs, decoder.OpCsrrc, decoder.OpCsrrwi, decoder.OpCsrrsi, decoder.OpCsrrci:
		s.execCSR(d)

	case decoder.OpLrW, decoder.OpScW, decoder.OpLrD, decoder.OpScD,
		decoder.OpAmoswapW, decoder.OpAmoaddW, decoder.OpAmoxorW, decoder.OpAmoandW, decoder.OpAmoorW,
		decoder.OpAmominW, decoder.OpAmomaxW, decoder.OpAmominuW, decoder.OpAmomaxuW,
		decoder.OpAmoswapD, decoder.OpAmoaddD, decoder.OpAmoxorD, decoder.OpAmoandD, decoder.OpAmoorD,
		decoder.OpAmominD, decoder.OpAmomaxD, decoder.OpAmominuD, decoder.OpAmomaxuD:
		s.execAtomic(d)

	case decoder.OpCasW, decoder.OpCasD:
		s.execAtomic(d)
		// The merged pseudo-op stands in for three original instructions
		// (LR/BNE/SC), not the one `size` reported above, so `next` is
		// wrong here regardless of match or mismatch. On a match the SC
		// completes and execution continues after it; on a mismatch the
		// literal BNE would jump to its target, and matchCAS only accepts
		// the idiom when that target is the instruction right after SC,
		// so match and mismatch converge on the same PC, carried through
		// d.Imm() as the combined byte length.
		s.PC = pc + uint64(d.Imm())
		return true

	case decoder.OpFlw, decoder.OpFld, decoder.OpFsw, decoder.OpFsd,
		decoder.OpFaddS, decoder.OpFsubS, decoder.OpFmulS, decoder.OpFdivS, decoder.OpFsqrtS,
		decoder.OpFaddD, decoder.OpFsubD, decoder.OpFmulD, decoder.OpFdivD, decoder.OpFsqrtD,
		decoder.OpFsgnjS, decoder.OpFsgnjD, decoder.OpFmvXW, decoder.OpFmvWX,
		decoder.OpFcvtWS, decoder.OpFcvtSW, decoder.OpFcvtWD, decoder.OpFcvtDW, decoder.OpFcvtSD, decoder.OpFcvtDS,
		decoder.OpFeqS, decoder.OpFltS, decoder.OpFleS, decoder.OpFeqD, decoder.OpFltD, decoder.OpFleD,
		decoder.OpFclassS, decoder.OpFclassD:
		s.execFP(d)

	default:
		return false
	}
	s.PC = next
	return true
}

// branch sets PC either to the branch target (taken) or to fallthroughPC
// (not taken). Its callers in exec return right after it, so neither
// path goes through exec's shared `s.PC = next` tail.
func (s *Strand) branch(taken bool, pc uint64, d descriptor.Descriptor, fallthroughPC uint64) {
	if taken {
		s.PC = uint64(int64(pc) + d.Imm())
	} else {
		s.PC = fallthroughPC
	}
}

func (s *Strand) addr(d descriptor.Descriptor) uint64 {
	return s.reg(d.Rs1) + uint64(d.Imm())
}

func (s *Strand) addrStore(d descriptor.Descriptor) uint64 {
	return s.reg(d.Rs1) + uint64(d.Imm16())
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
