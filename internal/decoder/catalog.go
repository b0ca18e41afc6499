package decoder

import "github.com/oisee/rv64ui/internal/descriptor"

// Info holds static metadata for an opcode, grounded on the teacher's
// pkg/inst.Info pattern (Mnemonic/Bytes/TStates generalized to
// Mnemonic/Latency).
type Info struct {
	Mnemonic string
	Latency  int
}

// Catalog maps each Opcode to its Info.
var Catalog [OpCodeCount]Info

func mnem(op descriptor.Opcode, name string) {
	Catalog[op] = Info{Mnemonic: name, Latency: DefaultLatency(op)}
}

func init() {
	mnem(OpLui, "lui")
	mnem(OpAuipc, "auipc")
	mnem(OpJal, "jal")
	mnem(OpJalr, "jalr")
	mnem(OpBeq, "beq")
	mnem(OpBne, "bne")
	mnem(OpBlt, "blt")
	mnem(OpBge, "bge")
	mnem(OpBltu, "bltu")
	mnem(OpBgeu, "bgeu")
	mnem(OpLb, "lb")
	mnem(OpLh, "lh")
	mnem(OpLw, "lw")
	mnem(OpLd, "ld")
	mnem(OpLbu, "lbu")
	mnem(OpLhu, "lhu")
	mnem(OpLwu, "lwu")
	mnem(OpSb, "sb")
	mnem(OpSh, "sh")
	mnem(OpSw, "sw")
	mnem(OpSd, "sd")
	mnem(OpAddi, "addi")
	mnem(OpSlti, "slti")
	mnem(OpSltiu, "sltiu")
	mnem(OpXori, "xori")
	mnem(OpOri, "ori")
	mnem(OpAndi, "andi")
	mnem(OpSlli, "slli")
	mnem(OpSrli, "srli")
	mnem(OpSrai, "srai")
	mnem(OpAdd, "add")
	mnem(OpSub, "sub")
	mnem(OpSll, "sll")
	mnem(OpSlt, "slt")
	mnem(OpSltu, "sltu")
	mnem(OpXor, "xor")
	mnem(OpSrl, "srl")
	mnem(OpSra, "sra")
	mnem(OpOr, "or")
	mnem(OpAnd, "and")
	mnem(OpFence, "fence")
	mnem(OpFenceI, "fence.i")
	mnem(OpEcall, "ecall")
	mnem(OpEbreak, "ebreak")
	mnem(OpCsrrw, "csrrw")
	mnem(OpCsrrs, "csrrs")
	mnem(OpCsrrc, "csrrc")
	mnem(OpCsrrwi, "csrrwi")
	mnem(OpCsrrsi, "csrrsi")
	mnem(OpCsrrci, "csrrci")
	mnem(OpAddiw, "addiw")
	mnem(OpSlliw, "slliw")
	mnem(OpSrliw, "srliw")
	mnem(OpSraiw, "sraiw")
	mnem(OpAddw, "addw")
	mnem(OpSubw, "subw")
	mnem(OpSllw, "sllw")
	mnem(OpSrlw, "srlw")
	mnem(OpSraw, "sraw")

	mnem(OpMul, "mul")
	mnem(OpMulh, "mulh")
	mnem(OpMulhsu, "mulhsu")
	mnem(OpMulhu, "mulhu")
	mnem(OpDiv, "div")
	mnem(OpDivu, "divu")
	mnem(OpRem, "rem")
	mnem(OpRemu, "remu")
	mnem(OpMulw, "mulw")
	mnem(OpDivw, "divw")
	mnem(OpDivuw, "divuw")
	mnem(OpRemw, "remw")
	mnem(OpRemuw, "remuw")

	mnem(OpLrW, "lr.w")
	mnem(OpScW, "sc.w")
	mnem(OpAmoswapW, "amoswap.w")
	mnem(OpAmoaddW, "amoadd.w")
	mnem(OpAmoxorW, "amoxor.w")
	mnem(OpAmoandW, "amoand.w")
	mnem(OpAmoorW, "amoor.w")
	mnem(OpAmominW, "amomin.w")
	mnem(OpAmomaxW, "amomax.w")
	mnem(OpAmominuW, "amominu.w")
	mnem(OpAmomaxuW, "amomaxu.w")
	mnem(OpLrD, "lr.d")
	mnem(OpScD, "sc.d")
	mnem(OpAmoswapD, "amoswap.d")
	mnem(OpAmoaddD, "amoadd.d")
	mnem(OpAmoxorD, "amoxor.d")
	mnem(OpAmoandD, "amoand.d")
	mnem(OpAmoorD, "amoor.d")
	mnem(OpAmominD, "amomin.d")
	mnem(OpAmomaxD, "amomax.d")
	mnem(OpAmominuD, "amominu.d")
	mnem(OpAmomaxuD, "amomaxu.d")
	mnem(OpCasW, "cas.w") // pseudo-op, §4.2/§9
	mnem(OpCasD, "cas.d")

	mnem(OpFlw, "flw")
	mnem(OpFld, "fld")
	mnem(OpFsw, "fsw")
	mnem(OpFsd, "fsd")
	mnem(OpFaddS, "fadd.s")
	mnem(OpFsubS, "fsub.s")
	mnem(OpFmulS, "fmul.s")
	mnem(OpFdivS, "fdiv.s")
	mnem(OpFsqrtS, "fsqrt.s")
	mnem(OpFaddD, "fadd.d")
	mnem(OpFsubD, "fsub.d")
	mnem(OpFmulD, "fmul.d")
	mnem(OpFdivD, "fdiv.d")
	mnem(OpFsqrtD, "fsqrt.d")
	mnem(OpFsgnjS, "fsgnj.s")
	mnem(OpFsgnjD, "fsgnj.d")
	mnem(OpFmvXW, "fmv.x.w")
	mnem(OpFmvWX, "fmv.w.x")
	mnem(OpFcvtWS, "fcvt.w.s")
	mnem(OpFcvtSW, "fcvt.s.w")
	mnem(OpFcvtWD, "fcvt.w.d")
	mnem(OpFcvtDW, "fcvt.d.w")
	mnem(OpFcvtSD, "fcvt.s.d")
	mnem(OpFcvtDS, "fcvt.d.s")
	mnem(OpFeqS, "feq.s")
	mnem(OpFltS, "flt.s")
	mnem(OpFleS, "fle.s")
	mnem(OpFeqD, "feq.d")
	mnem(OpFltD, "flt.d")
	mnem(OpFleD, "fle.d")
	mnem(OpFclassS, "fclass.s")
	mnem(OpFclassD, "fclass.d")

	mnem(OpCAddi, "c.addi")
	mnem(OpCLi, "c.li")
	mnem(OpCLw, "c.lw")
	mnem(OpCLd, "c.ld")
	mnem(OpCSw, "c.sw")
	mnem(OpCSd, "c.sd")
	mnem(OpCJ, "c.j")
	mnem(OpCBeqz, "c.beqz")
	mnem(OpCBnez, "c.bnez")
	mnem(OpCMv, "c.mv")
	mnem(OpCAdd, "c.add")
	mnem(OpCJr, "c.jr")
	mnem(OpCJalr, "c.jalr")
	mnem(OpCEbreak, "c.ebreak")
	mnem(OpCNop, "c.nop")
}

// Mnemonic returns the assembly mnemonic for op, or "" for ILLEGAL/UNKNOWN.
func Mnemonic(op descriptor.Opcode) string { return Catalog[op].Mnemonic }

// Latency returns the default single-issue cycle cost for op.
func Latency(op descriptor.Opcode) int { return Catalog[op].Latency }
