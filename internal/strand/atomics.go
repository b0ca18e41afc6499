package strand

import "github.com/oisee/rv64ui/internal/decoder"
import "github.com/oisee/rv64ui/internal/descriptor"

// execAtomic implements the A extension plus the substituted CAS
// pseudo-ops, grounded on strand_t's amo_uint32/amo_uint64 templates and
// the cas<T> method in _examples/original_source/uspike/strand.h: both
// are a load-compute-CAS retry loop, expressed here with the Memory
// interface's CAS32/CAS64 instead of a raw pointer and
// __sync_bool_compare_and_swap.
func (s *Strand) execAtomic(d descriptor.Descriptor) {
	switch d.Op {
	case decoder.OpLrW:
		addr := s.reg(d.Rs1)
		v := s.Mem.Load32(addr)
		s.reservedValid, s.reservedAddr, s.reservedVal = true, addr, uint64(v)
		s.setReg(d.Rd, uint64(int64(int32(v))))
		return
	case decoder.OpLrD:
		addr := s.reg(d.Rs1)
		v := s.Mem.Load64(addr)
		s.reservedValid, s.reservedAddr, s.reservedVal = true, addr, v
		s.setReg(d.Rd, v)
		return
	case decoder.OpScW:
		addr := s.reg(d.Rs1)
		ok := s.reservedValid && s.reservedAddr == addr
		if ok {
			_, ok = s.Mem.CAS32(addr, uint32(s.reservedVal), uint32(s.reg(d.Rs2())))
		}
		s.reservedValid = false
		s.setReg(d.Rd, boolU64(!ok))
		return
	case decoder.OpScD:
		addr := s.reg(d.Rs1)
		ok := s.reservedValid && s.reservedAddr == addr
		if ok {
			_, ok = s.Mem.CAS64(addr, s.reservedVal, s.reg(d.Rs2()))
		}
		s.reservedValid = false
		s.setReg(d.Rd, boolU64(!ok))
		return
	case decoder.OpCasW:
		addr := s.reg(d.Rs1)
		expect := uint32(s.reg(d.Rs3()))
		replace := uint32(s.reg(d.Rs2()))
		old, ok := s.Mem.CAS32(addr, expect, replace)
		if ok {
			s.setReg(d.Rd, 0) // SC's success flag; on a mismatch the literal BNE skips the SC
		}
		s.Addrs[0] = uint64(old)
		return
	case decoder.OpCasD:
		addr := s.reg(d.Rs1)
		expect := s.reg(d.Rs3())
		replace := s.reg(d.Rs2())
		old, ok := s.Mem.CAS64(addr, expect, replace)
		if ok {
			s.setReg(d.Rd, 0) // SC's success flag; on a mismatch the literal BNE skips the SC
		}
		s.Addrs[0] = old
		return
	}

	addr := s.reg(d.Rs1)
	wide := d.Op >= decoder.OpAmoswapD && d.Op <= decoder.OpAmomaxuD
	if wide {
		for {
			old := s.Mem.Load64(addr)
			nv := amoCompute64(d.Op, old, s.reg(d.Rs2()))
			if _, ok := s.Mem.CAS64(addr, old, nv); ok {
				s.setReg(d.Rd, old)
				return
			}
		}
	}
	for {
		old := s.Mem.Load32(addr)
		nv := amoCompute32(d.Op, old, uint32(s.reg(d.Rs2())))
		if _, ok := s.Mem.CAS32(addr, old, nv); ok {
			s.setReg(d.Rd, uint64(int64(int32(old))))
			return
		}
	}
}

func amoCompute32(op descriptor.Opcode, old, operand uint32) uint32 {
	switch op {
	case decoder.OpAmoswapW:
		return operand
	case decoder.OpAmoaddW:
		return old + operand
	case decoder.OpAmoxorW:
		return old ^ operand
	case decoder.OpAmoandW:
		return old & operand
	case decoder.OpAmoorW:
		return old | operand
	case decoder.OpAmominW:
		if int32(old) < int32(operand) {
			return old
		}
		return operand
	case decoder.OpAmomaxW:
		if int32(old) > int32(operand) {
			return old
		}
		return operand
	case decoder.OpAmominuW:
		if old < operand {
			return old
		}
		return operand
	case decoder.OpAmomaxuW:
		if old > operand {
			return old
		}
		return operand
	}
	return old
}

func amoCompute64(op descriptor.Opcode, old, operand uint64) uint64 {
	switch op {
	case decoder.OpAmoswapD:
		return operand
	case decoder.OpAmoaddD:
		return old + operand
	case decoder.OpAmoxorD:
		return old ^ operand
	case decoder.OpAmoandD:
		return old & operand
	case decoder.OpAmoorD:
		return old | operand
	case decoder.OpAmominD:
		if int64(old) < int64(operand) {
			return old
		}
		return operand
	case decoder.OpAmomaxD:
		if int64(old) > int64(operand) {
			return old
		}
		return operand
	case decoder.OpAmominuD:
		if old < operand {
			return old
		}
		return operand
	case decoder.OpAmomaxuD:
		if old > operand {
			return old
		}
		return operand
	}
	return old
}

// --- M extension helpers, grounded on the plain Go arithmetic the
// teacher uses throughout pkg/cpu (no bignum library: RISC-V multiply/
// divide fits entirely in 64x64 native ops plus math/bits for the high
// half of a 128-bit product). ---

func mulh(a, b int64) int64 {
	hi, _ := mul128(a, b)
	return hi
}

func mulhu(a, b uint64) uint64 {
	hi, _ := mul128u(a, b)
	return hi
}

func mulhsu(a int64, b uint64) int64 {
	neg := a < 0
	ua := uint64(a)
	if neg {
		ua = uint64(-a)
	}
	hi, lo := mul128u(ua, b)
	if !neg {
		return int64(hi)
	}
	// negate the 128-bit product
	lo = ^lo + 1
	hi = ^hi
	if lo == 0 {
		hi++
	}
	return int64(hi)
}

func mul128u(a, b uint64) (hi, lo uint64) {
	const mask = 0xffffffff
	aLo, aHi := a&mask, a>>32
	bLo, bHi := b&mask, b>>32
	lo = aLo * bLo
	mid1 := aHi * bLo
	mid2 := aLo * bHi
	carry := (lo>>32 + mid1&mask + mid2&mask) >> 32
	hi = aHi*bHi + mid1>>32 + mid2>>32 + carry
	lo = a * b
	return
}

func mul128(a, b int64) (hi, lo int64) {
	uhi, ulo := mul128u(uint64(a), uint64(b))
	hi = int64(uhi)
	lo = int64(ulo)
	if a < 0 {
		hi -= b
	}
	if b < 0 {
		hi -= a
	}
	return
}

func divs(a, b int64) int64 {
	if b == 0 {
		return -1
	}
	if a == -1<<63 && b == -1 {
		return a
	}
	return a / b
}

func divu(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

func rems(a, b int64) int64 {
	if b == 0 {
		return a
	}
	if a == -1<<63 && b == -1 {
		return 0
	}
	return a % b
}

func remu(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

func divw(a, b int32) int32 {
	if b == 0 {
		return -1
	}
	if a == -1<<31 && b == -1 {
		return a
	}
	return a / b
}

func divuw(a, b uint32) uint32 {
	if b == 0 {
		return ^uint32(0)
	}
	return a / b
}

func remw(a, b int32) int32 {
	if b == 0 {
		return a
	}
	if a == -1<<31 && b == -1 {
		return 0
	}
	return a % b
}

func remuw(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}
