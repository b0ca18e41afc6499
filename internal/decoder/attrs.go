package decoder

import "github.com/oisee/rv64ui/internal/descriptor"

// Attr is a per-opcode bitset, grounded on ATTR_bv_t / ATTR_* in
// _examples/original_source/nsosim/components.h and insnAttr_t.flags in
// caveat/insn.h.
type Attr uint16

const (
	AttrALU Attr = 1 << iota
	AttrLoad
	AttrStore
	AttrBranch // conditional branch
	AttrJump   // unconditional jump (JAL/JALR/compressed equivalents)
	AttrFP
	AttrAMO
	AttrSystem // ecall/ebreak/csr/fence
	// StopAfter/StopBefore drive basic-block discovery (§4.2).
	AttrStopAfter
	AttrStopBefore
)

// attrTable is indexed by Opcode ordinal.
var attrTable [OpCodeCount]Attr

func set(op descriptor.Opcode, a Attr) { attrTable[op] |= a }

func init() {
	branchOrJump := []descriptor.Opcode{OpBeq, OpBne, OpBlt, OpBge, OpBltu, OpBgeu, OpCBeqz, OpCBnez}
	for _, op := range branchOrJump {
		set(op, AttrBranch|AttrStopAfter)
	}
	jumps := []descriptor.Opcode{OpJal, OpJalr, OpCJ, OpCJr, OpCJalr}
	for _, op := range jumps {
		set(op, AttrJump|AttrStopAfter)
	}

	loads := []descriptor.Opcode{OpLb, OpLh, OpLw, OpLd, OpLbu, OpLhu, OpLwu, OpCLw, OpCLd, OpFlw, OpFld}
	for _, op := range loads {
		set(op, AttrLoad)
	}
	stores := []descriptor.Opcode{OpSb, OpSh, OpSw, OpSd, OpCSw, OpCSd, OpFsw, OpFsd}
	for _, op := range stores {
		set(op, AttrStore)
	}

	alu := []descriptor.Opcode{
		OpLui, OpAuipc, OpAddi, OpSlti, OpSltiu, OpXori, OpOri, OpAndi,
		OpSlli, OpSrli, OpSrai, OpAdd, OpSub, OpSll, OpSlt, OpSltu, OpXor,
		OpSrl, OpSra, OpOr, OpAnd, OpAddiw, OpSlliw, OpSrliw, OpSraiw,
		OpAddw, OpSubw, OpSllw, OpSrlw, OpSraw,
		OpMul, OpMulh, OpMulhsu, OpMulhu, OpDiv, OpDivu, OpRem, OpRemu,
		OpMulw, OpDivw, OpDivuw, OpRemw, OpRemuw,
		OpCAddi, OpCLi, OpCMv, OpCAdd, OpCNop,
	}
	for _, op := range alu {
		set(op, AttrALU)
	}

	// Literal AMO ops (including LR/SC) are only stop-before (§4.2: "amo*
	// serialize the issue queue"), so one may still be the first
	// instruction of a block and have later instructions follow it in
	// the same block — in particular, LR must stay in the same block as
	// the BNE/SC that could complete the CAS substitution idiom. Only
	// the substituted CasW/CasD pseudo-op is itself stop-after, per
	// §4.2's "CAS-substituted store-conditional".
	amo := []descriptor.Opcode{
		OpLrW, OpScW, OpAmoswapW, OpAmoaddW, OpAmoxorW, OpAmoandW, OpAmoorW,
		OpAmominW, OpAmomaxW, OpAmominuW, OpAmomaxuW,
		OpLrD, OpScD, OpAmoswapD, OpAmoaddD, OpAmoxorD, OpAmoandD, OpAmoorD,
		OpAmominD, OpAmomaxD, OpAmominuD, OpAmomaxuD,
	}
	for _, op := range amo {
		set(op, AttrAMO|AttrStopBefore)
	}
	cas := []descriptor.Opcode{OpCasW, OpCasD}
	for _, op := range cas {
		set(op, AttrAMO|AttrStopAfter|AttrStopBefore)
	}

	fp := []descriptor.Opcode{
		OpFaddS, OpFsubS, OpFmulS, OpFdivS, OpFsqrtS, OpFaddD, OpFsubD,
		OpFmulD, OpFdivD, OpFsqrtD, OpFsgnjS, OpFsgnjD, OpFmvXW, OpFmvWX,
		OpFcvtWS, OpFcvtSW, OpFcvtWD, OpFcvtDW, OpFcvtSD, OpFcvtDS,
		OpFeqS, OpFltS, OpFleS, OpFeqD, OpFltD, OpFleD, OpFclassS, OpFclassD,
	}
	for _, op := range fp {
		set(op, AttrFP)
	}

	sys := []descriptor.Opcode{
		OpFence, OpFenceI, OpEcall, OpEbreak, OpCsrrw, OpCsrrs, OpCsrrc,
		OpCsrrwi, OpCsrrsi, OpCsrrci, OpCEbreak,
	}
	for _, op := range sys {
		set(op, AttrSystem|AttrStopBefore)
	}
	// ecall always ends a block even as the first instruction (it may
	// be followed by a clone, which needs a clean dispatch boundary).
	set(OpEcall, AttrSystem|AttrStopAfter)
}

// Attrs returns the attribute bitset for op.
func Attrs(op descriptor.Opcode) Attr { return attrTable[op] }

// IsLoad, IsStore, IsBranch, IsJump, IsAMO, IsSystem are convenience
// wrappers used throughout the strand and OoO packages.
func IsLoad(op descriptor.Opcode) bool   { return attrTable[op]&AttrLoad != 0 }
func IsStore(op descriptor.Opcode) bool  { return attrTable[op]&AttrStore != 0 }
func IsBranch(op descriptor.Opcode) bool { return attrTable[op]&AttrBranch != 0 }
func IsJump(op descriptor.Opcode) bool   { return attrTable[op]&AttrJump != 0 }
func IsAMO(op descriptor.Opcode) bool    { return attrTable[op]&AttrAMO != 0 }
func IsSystem(op descriptor.Opcode) bool { return attrTable[op]&AttrSystem != 0 }

// StopAfter/StopBefore drive basic-block discovery per §4.2.
func StopAfter(op descriptor.Opcode) bool  { return attrTable[op]&AttrStopAfter != 0 }
func StopBefore(op descriptor.Opcode) bool { return attrTable[op]&AttrStopBefore != 0 }

// DefaultLatency returns the default cycle cost used by the OoO core
// (§4.6): FP = 3, load = 4, store = 10, ALU = 1, everything else 1.
func DefaultLatency(op descriptor.Opcode) int {
	switch {
	case attrTable[op]&AttrFP != 0:
		return 3
	case attrTable[op]&AttrLoad != 0:
		return 4
	case attrTable[op]&AttrStore != 0:
		return 10
	default:
		return 1
	}
}
