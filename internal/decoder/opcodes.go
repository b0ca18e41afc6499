package decoder

import "github.com/oisee/rv64ui/internal/descriptor"

// Opcode ordinals. The compressed partition (§4.1: "a compile-time
// constant partitions opcodes into short and long") occupies the block
// immediately after the three sentinels defined in package descriptor;
// firstLongOpcode marks where the long (4-byte) partition begins.
// Compressed instructions are decoded straight into their canonical
// semantics (e.g. OpCAddi behaves exactly like OpAddi) so the strand
// interpreter's dispatch switch can group cases instead of duplicating
// bodies, while Compressed() still reports the ordinal partition the
// spec calls for.
const (
	opCompressedBase descriptor.Opcode = 3 // past OpZero, OpIllegal, OpUnknown

	OpCAddi descriptor.Opcode = opCompressedBase + iota
	OpCLi
	OpCLw
	OpCLd
	OpCSw
	OpCSd
	OpCJ
	OpCBeqz
	OpCBnez
	OpCMv
	OpCAdd
	OpCJr
	OpCJalr
	OpCEbreak
	OpCNop

	firstLongOpcode
)

// --- RV64I base ---
const (
	OpLui descriptor.Opcode = firstLongOpcode + iota
	OpAuipc
	OpJal
	OpJalr
	OpBeq
	OpBne
	OpBlt
	OpBge
	OpBltu
	OpBgeu
	OpLb
	OpLh
	OpLw
	OpLd
	OpLbu
	OpLhu
	OpLwu
	OpSb
	OpSh
	OpSw
	OpSd
	OpAddi
	OpSlti
	OpSltiu
	OpXori
	OpOri
	OpAndi
	OpSlli
	OpSrli
	OpSrai
	OpAdd
	OpSub
	OpSll
	OpSlt
	OpSltu
	OpXor
	OpSrl
	OpSra
	OpOr
	OpAnd
	OpFence
	OpFenceI
	OpEcall
	OpEbreak
	OpCsrrw
	OpCsrrs
	OpCsrrc
	OpCsrrwi
	OpCsrrsi
	OpCsrrci
	OpAddiw
	OpSlliw
	OpSrliw
	OpSraiw
	OpAddw
	OpSubw
	OpSllw
	OpSrlw
	OpSraw

	// --- M extension ---
	OpMul
	OpMulh
	OpMulhsu
	OpMulhu
	OpDiv
	OpDivu
	OpRem
	OpRemu
	OpMulw
	OpDivw
	OpDivuw
	OpRemw
	OpRemuw

	// --- A extension ---
	OpLrW
	OpScW
	OpAmoswapW
	OpAmoaddW
	OpAmoxorW
	OpAmoandW
	OpAmoorW
	OpAmominW
	OpAmomaxW
	OpAmominuW
	OpAmomaxuW
	OpLrD
	OpScD
	OpAmoswapD
	OpAmoaddD
	OpAmoxorD
	OpAmoandD
	OpAmoorD
	OpAmominD
	OpAmomaxD
	OpAmominuD
	OpAmomaxuD
	// CAS pseudo-opcodes substituted for the LR/BNE/SC idiom (§4.2/§9).
	OpCasW
	OpCasD

	// --- F/D extension (selected) ---
	OpFlw
	OpFld
	OpFsw
	OpFsd
	OpFaddS
	OpFsubS
	OpFmulS
	OpFdivS
	OpFsqrtS
	OpFaddD
	OpFsubD
	OpFmulD
	OpFdivD
	OpFsqrtD
	OpFsgnjS
	OpFsgnjD
	OpFmvXW
	OpFmvWX
	OpFcvtWS
	OpFcvtSW
	OpFcvtWD
	OpFcvtDW
	OpFcvtSD
	OpFcvtDS
	OpFeqS
	OpFltS
	OpFleS
	OpFeqD
	OpFltD
	OpFleD
	OpFclassS
	OpFclassD

	opcodeCount
)

// OpCodeCount bounds the attribute/latency/mnemonic tables.
const OpCodeCount = int(opcodeCount)

// Compressed reports whether op belongs to the short (2-byte) partition.
func Compressed(op descriptor.Opcode) bool {
	return op >= OpCAddi && op < firstLongOpcode
}
