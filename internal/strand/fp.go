package strand

import (
	"math"

	"github.com/oisee/rv64ui/internal/decoder"
	"github.com/oisee/rv64ui/internal/descriptor"
)

// DefaultSoftfloat backs the Softfloat injection point with Go's native
// float32/float64 arithmetic. The original links against Berkeley
// SoftFloat (uspike/strand.h's `extern "C" { #include "softfloat.h" }`);
// no library in the retrieved corpus provides an equivalent, so this
// uses the host FPU's IEEE 754 single/double arithmetic instead. Every
// method ignores rm (arithmetic rounds to nearest-even, float-to-integer
// conversion truncates toward zero) and reports zero exception flags.
// This is the one place the module reaches for the standard library
// over a third-party dependency — see DESIGN.md.
type DefaultSoftfloat struct{}

func (DefaultSoftfloat) AddS(a, b uint32, rm uint8) (uint32, uint8) {
	return math.Float32bits(f32(a) + f32(b)), 0
}
func (DefaultSoftfloat) SubS(a, b uint32, rm uint8) (uint32, uint8) {
	return math.Float32bits(f32(a) - f32(b)), 0
}
func (DefaultSoftfloat) MulS(a, b uint32, rm uint8) (uint32, uint8) {
	return math.Float32bits(f32(a) * f32(b)), 0
}
func (DefaultSoftfloat) DivS(a, b uint32, rm uint8) (uint32, uint8) {
	return math.Float32bits(f32(a) / f32(b)), 0
}
func (DefaultSoftfloat) SqrtS(a uint32, rm uint8) (uint32, uint8) {
	return math.Float32bits(float32(math.Sqrt(float64(f32(a))))), 0
}
func (DefaultSoftfloat) AddD(a, b uint64, rm uint8) (uint64, uint8) {
	return math.Float64bits(f64(a) + f64(b)), 0
}
func (DefaultSoftfloat) SubD(a, b uint64, rm uint8) (uint64, uint8) {
	return math.Float64bits(f64(a) - f64(b)), 0
}
func (DefaultSoftfloat) MulD(a, b uint64, rm uint8) (uint64, uint8) {
	return math.Float64bits(f64(a) * f64(b)), 0
}
func (DefaultSoftfloat) DivD(a, b uint64, rm uint8) (uint64, uint8) {
	return math.Float64bits(f64(a) / f64(b)), 0
}
func (DefaultSoftfloat) SqrtD(a uint64, rm uint8) (uint64, uint8) {
	return math.Float64bits(math.Sqrt(f64(a))), 0
}
func (DefaultSoftfloat) CvtWS(a uint32, rm uint8) (int32, uint8) { return int32(f32(a)), 0 }
func (DefaultSoftfloat) CvtSW(a int32, rm uint8) (uint32, uint8) {
	return math.Float32bits(float32(a)), 0
}
func (DefaultSoftfloat) CvtWD(a uint64, rm uint8) (int32, uint8) { return int32(f64(a)), 0 }
func (DefaultSoftfloat) CvtDW(a int32, rm uint8) (uint64, uint8) {
	return math.Float64bits(float64(a)), 0
}
func (DefaultSoftfloat) CvtSD(a uint64, rm uint8) (uint32, uint8) {
	return math.Float32bits(float32(f64(a))), 0
}
func (DefaultSoftfloat) CvtDS(a uint32, rm uint8) (uint64, uint8) {
	return math.Float64bits(float64(f32(a))), 0
}
func (DefaultSoftfloat) EqS(a, b uint32) bool { return f32(a) == f32(b) }
func (DefaultSoftfloat) LtS(a, b uint32) bool { return f32(a) < f32(b) }
func (DefaultSoftfloat) LeS(a, b uint32) bool { return f32(a) <= f32(b) }
func (DefaultSoftfloat) EqD(a, b uint64) bool { return f64(a) == f64(b) }
func (DefaultSoftfloat) LtD(a, b uint64) bool { return f64(a) < f64(b) }
func (DefaultSoftfloat) LeD(a, b uint64) bool { return f64(a) <= f64(b) }

// ClassifyS/ClassifyD implement FCLASS per the RISC-V spec's 10-bit
// classification mask (bit 0 = -inf ... bit 9 = quiet NaN).
func (DefaultSoftfloat) ClassifyS(a uint32) uint64 { return classify(float64(f32(a)), math.IsNaN(float64(f32(a))) && a&0x00400000 != 0, a&0x7f800000 == 0 && a&0x007fffff != 0) }
func (DefaultSoftfloat) ClassifyD(a uint64) uint64 { return classify(f64(a), math.IsNaN(f64(a)) && a&(1<<51) != 0, a&0x7ff0000000000000 == 0 && a&0x000fffffffffffff != 0) }

func classify(v float64, quietNaN, subnormal bool) uint64 {
	switch {
	case math.IsNaN(v):
		if quietNaN {
			return 1 << 9
		}
		return 1 << 8
	case math.IsInf(v, -1):
		return 1 << 0
	case math.IsInf(v, 1):
		return 1 << 7
	case subnormal:
		if math.Signbit(v) {
			return 1 << 2
		}
		return 1 << 5
	case v == 0:
		if math.Signbit(v) {
			return 1 << 3
		}
		return 1 << 4
	case v < 0:
		return 1 << 1
	default:
		return 1 << 6
	}
}

func f32(bits uint32) float32 { return math.Float32frombits(bits) }
func f64(bits uint64) float64 { return math.Float64frombits(bits) }

// boxF32 NaN-boxes a 32-bit float result into the 64-bit float register
// file slot per the RISC-V NaN-boxing rule (§4.1's "NaN-boxed float128
// registers", narrowed here to the single/double subset the spec
// actually models: the upper 32 bits of the low 64-bit word are all 1s).
func boxF32(bits uint32) uint64 { return 0xffffffff00000000 | uint64(bits) }

func (s *Strand) fget(i uint8) uint64  { return s.Frf[i][0] }
func (s *Strand) fsetS(i uint8, v uint32) { s.Frf[i][0] = boxF32(v); s.Frf[i][1] = ^uint64(0) }
func (s *Strand) fsetD(i uint8, v uint64) { s.Frf[i][0] = v; s.Frf[i][1] = ^uint64(0) }

func (s *Strand) orFlags(flags uint8) { s.Flags |= flags }

// execFP implements the selected F/D subset (§4.1), dispatching through
// the Softfloat injection point and OR-ing accrued exception flags into
// fcsr the way strand_t's csr_func helper folds flag updates in.
func (s *Strand) execFP(d descriptor.Descriptor) {
	fp := s.FP
	if fp == nil {
		fp = DefaultSoftfloat{}
	}
	rm := s.RM

	switch d.Op {
	case decoder.OpFlw:
		s.fsetS(d.Rd, s.Mem.Load32(s.addr(d)))
	case decoder.OpFld:
		s.fsetD(d.Rd, s.Mem.Load64(s.addr(d)))
	case decoder.OpFsw:
		s.Mem.Store32(s.addrStore(d), uint32(s.fget(d.Rs1)))
	case decoder.OpFsd:
		s.Mem.Store64(s.addrStore(d), s.fget(d.Rs1))

	case decoder.OpFaddS:
		v, fl := fp.AddS(uint32(s.fget(d.Rs1)), uint32(s.fget(d.Rs2())), rm)
		s.fsetS(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFsubS:
		v, fl := fp.SubS(uint32(s.fget(d.Rs1)), uint32(s.fget(d.Rs2())), rm)
		s.fsetS(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFmulS:
		v, fl := fp.MulS(uint32(s.fget(d.Rs1)), uint32(s.fget(d.Rs2())), rm)
		s.fsetS(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFdivS:
		v, fl := fp.DivS(uint32(s.fget(d.Rs1)), uint32(s.fget(d.Rs2())), rm)
		s.fsetS(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFsqrtS:
		v, fl := fp.SqrtS(uint32(s.fget(d.Rs1)), rm)
		s.fsetS(d.Rd, v)
		s.orFlags(fl)

	case decoder.OpFaddD:
		v, fl := fp.AddD(s.fget(d.Rs1), s.fget(d.Rs2()), rm)
		s.fsetD(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFsubD:
		v, fl := fp.SubD(s.fget(d.Rs1), s.fget(d.Rs2()), rm)
		s.fsetD(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFmulD:
		v, fl := fp.MulD(s.fget(d.Rs1), s.fget(d.Rs2()), rm)
		s.fsetD(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFdivD:
		v, fl := fp.DivD(s.fget(d.Rs1), s.fget(d.Rs2()), rm)
		s.fsetD(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFsqrtD:
		v, fl := fp.SqrtD(s.fget(d.Rs1), rm)
		s.fsetD(d.Rd, v)
		s.orFlags(fl)

	case decoder.OpFsgnjS:
		a, b := uint32(s.fget(d.Rs1)), uint32(s.fget(d.Rs2()))
		s.fsetS(d.Rd, (a&0x7fffffff)|(b&0x80000000))
	case decoder.OpFsgnjD:
		a, b := s.fget(d.Rs1), s.fget(d.Rs2())
		s.fsetD(d.Rd, (a&0x7fffffffffffffff)|(b&0x8000000000000000))

	case decoder.OpFmvXW:
		s.setReg(d.Rd, uint64(int64(int32(uint32(s.fget(d.Rs1))))))
	case decoder.OpFmvWX:
		s.fsetS(d.Rd, uint32(s.reg(d.Rs1)))

	case decoder.OpFcvtWS:
		v, fl := fp.CvtWS(uint32(s.fget(d.Rs1)), rm)
		s.setReg(d.Rd, uint64(int64(v)))
		s.orFlags(fl)
	case decoder.OpFcvtSW:
		v, fl := fp.CvtSW(int32(s.reg(d.Rs1)), rm)
		s.fsetS(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFcvtWD:
		v, fl := fp.CvtWD(s.fget(d.Rs1), rm)
		s.setReg(d.Rd, uint64(int64(v)))
		s.orFlags(fl)
	case decoder.OpFcvtDW:
		v, fl := fp.CvtDW(int32(s.reg(d.Rs1)), rm)
		s.fsetD(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFcvtSD:
		v, fl := fp.CvtSD(s.fget(d.Rs1), rm)
		s.fsetS(d.Rd, v)
		s.orFlags(fl)
	case decoder.OpFcvtDS:
		v, fl := fp.CvtDS(uint32(s.fget(d.Rs1)), rm)
		s.fsetD(d.Rd, v)
		s.orFlags(fl)

	case decoder.OpFeqS:
		s.setReg(d.Rd, boolU64(fp.EqS(uint32(s.fget(d.Rs1)), uint32(s.fget(d.Rs2())))))
	case decoder.OpFltS:
		s.setReg(d.Rd, boolU64(fp.LtS(uint32(s.fget(d.Rs1)), uint32(s.fget(d.Rs2())))))
	case decoder.OpFleS:
		s.setReg(d.Rd, boolU64(fp.LeS(uint32(s.fget(d.Rs1)), uint32(s.fget(d.Rs2())))))
	case decoder.OpFeqD:
		s.setReg(d.Rd, boolU64(fp.EqD(s.fget(d.Rs1), s.fget(d.Rs2()))))
	case decoder.OpFltD:
		s.setReg(d.Rd, boolU64(fp.LtD(s.fget(d.Rs1), s.fget(d.Rs2()))))
	case decoder.OpFleD:
		s.setReg(d.Rd, boolU64(fp.LeD(s.fget(d.Rs1), s.fget(d.Rs2()))))

	case decoder.OpFclassS:
		s.setReg(d.Rd, fp.ClassifyS(uint32(s.fget(d.Rs1))))
	case decoder.OpFclassD:
		s.setReg(d.Rd, fp.ClassifyD(s.fget(d.Rs1)))
	}
}
