// Package oocore implements the out-of-order timing model described in
// SPEC_FULL.md §12 ([J] OoO core), grounded on
// _examples/original_source/nsosim/core.cc's clock_pipeline(): register
// renaming, a front/back issue queue, a bank/port memory timing model
// and a phantom reorder buffer for inspection. The functional result of
// every instruction (register values, taken branches) is supplied by
// internal/strand, which has already executed the program; this core
// only schedules *when* each instruction's effects become visible,
// which is why Feed takes the resolved next-PC and operand values
// instead of re-deriving them — a timing model layered over a trace,
// not an independent functional engine.
package oocore

import (
	"github.com/oisee/rv64ui/internal/decoder"
	"github.com/oisee/rv64ui/internal/descriptor"
	"github.com/oisee/rv64ui/internal/observer"
)

// fetched is one instruction handed to the core by Feed, waiting to be
// dispatched; it stays here across stalled cycles exactly like core.h's
// `i`/`pc`/`bb` triple.
type fetched struct {
	Insn, Ref      descriptor.Descriptor
	PC, NextPC     uint64
	Rs1Val, Rs2Val uint64
	ExpectedRd     uint64
	ExpectedPC     uint64
}

// Core is one out-of-order pipeline instance, one per hart.
type Core struct {
	Regs  *RegFile
	Banks BankGrid
	Port  Port
	ROB   ROB

	Queue [IssueQueueLength]*History
	Last  int

	Cycle    int64
	Insns    int64
	Inflight int64

	Latency  [decoder.OpCodeCount]int
	Observer observer.Observer

	Verify     bool
	Mismatches int64

	pending []fetched
	cur     *fetched
}

// NewCore builds a Core with default per-opcode latencies (FP=3,
// Load=4, Store=10, everything else 1, per decoder.DefaultLatency) and
// a no-op Observer.
func NewCore() *Core {
	c := &Core{
		Regs:     NewRegFile(),
		Observer: observer.Noop{},
	}
	for op := descriptor.Opcode(0); int(op) < decoder.OpCodeCount; op++ {
		c.Latency[op] = decoder.DefaultLatency(op)
	}
	return c
}

// SetLatency overrides the default latency table, per SPEC_FULL.md §15's
// --fp/--ld/--st/--alu flags.
func (c *Core) SetLatency(attr decoder.Attr, cycles int) {
	for op := descriptor.Opcode(0); int(op) < decoder.OpCodeCount; op++ {
		if decoder.Attrs(op)&attr != 0 {
			c.Latency[op] = cycles
		}
	}
}

// Feed appends one already-resolved instruction to the core's fetch
// queue. The functional engine calls this once per retired instruction
// as it runs the program, letting the timing model trail behind at its
// own pace. expectedRd/expectedPC are what strand.Strand actually
// computed, compared against this core's replay at retirement when
// Verify is set.
func (c *Core) Feed(insn descriptor.Descriptor, pc, nextPC, rs1Val, rs2Val, expectedRd, expectedPC uint64) {
	c.pending = append(c.pending, fetched{
		Insn: insn, Ref: insn, PC: pc, NextPC: nextPC,
		Rs1Val: rs1Val, Rs2Val: rs2Val, ExpectedRd: expectedRd, ExpectedPC: expectedPC,
	})
}

func (c *Core) nextFetch() *fetched {
	if c.cur == nil && len(c.pending) > 0 {
		c.cur = &c.pending[0]
		c.pending = c.pending[1:]
	}
	return c.cur
}

// ClockPipeline runs one cycle: memory-port launch, register-file
// retirement, dispatch-into-issue-queue, then issue-and-execute the
// first ready instruction. Returns whether an instruction was
// dispatched this cycle, mirroring clock_pipeline()'s return value.
func (c *Core) ClockPipeline() bool {
	c.Banks.Clock(c.Cycle)
	c.clockPort()
	c.retire()

	dispatched := c.dispatch()
	c.issueFromQueue()

	c.Cycle++
	c.Observer.OnCycle(c.Cycle)
	return dispatched
}

// clockPort launches a pending memory request once its bank is free,
// mirrors core.cc's clock_port(). Stores retire immediately since they
// have no destination register; loads reserve a register-file write-bus
// slot for when the bank finishes.
func (c *Core) clockPort() {
	if !c.Port.Active() {
		return
	}
	h := c.Port.History()
	bank := &c.Banks[memChannel(c.Port.Addr())][memBank(c.Port.Addr())]
	if bank.Active {
		return
	}
	bank.Activate(c.Cycle+int64(c.Port.Latency()), h)

	if decoder.Attrs(h.Insn.Op)&decoder.AttrStore != 0 {
		h.Status = StatusRetired
		c.Regs.ValueIsReady(h.Stbpos)
		c.Regs.ReleaseReg(h.Stbpos)
	} else {
		if c.Regs.BusBusy(c.Cycle, c.Port.Latency()) {
			return
		}
		c.Regs.ReserveBus(c.Cycle, c.Port.Latency(), h)
		h.Status = StatusExecuting
	}
	c.Port.Deactivate()
}

// retire pops whatever instruction's value finishes the register-file
// write bus this cycle, frees its destination register (and, for
// stores, its store-buffer slot), and in verify mode checks its
// recorded outcome against the functional engine's.
func (c *Core) retire() {
	h := c.Regs.SimulateWriteReg(c.Cycle)
	if h == nil {
		return
	}
	c.Regs.ValueIsReady(h.OpRd)
	c.Regs.ReleaseReg(h.OpRd)
	h.Status = StatusRetired
	if decoder.Attrs(h.Insn.Op)&decoder.AttrStore != 0 {
		c.Regs.ValueIsReady(h.Stbpos)
		c.Regs.ReleaseReg(h.Stbpos)
	}
	if c.Verify && (h.ActualRd != h.ExpectedRd || h.PC != h.ExpectedPC) {
		c.Mismatches++
	}
	c.Observer.OnRetire(h.PC, decoder.Mnemonic(h.Insn.Op))
}

// mapReg looks up the current physical register for an architectural
// register, passing NOREG through unchanged (matches the NOREG guards
// in rename_input_regs()).
func (c *Core) mapReg(archReg uint8) uint8 {
	if archReg == descriptor.NOREG {
		return descriptor.NOREG
	}
	return c.Regs.Map(archReg)
}

func readyInsn(r *RegFile, d descriptor.Descriptor) bool {
	if r.IsBusy(d.Rs1) {
		return false
	}
	if !d.LongImm() {
		if r.IsBusy(d.Rs2()) || r.IsBusy(d.Rs3()) {
			return false
		}
	}
	return true
}

// dispatch attempts to move the current fetched instruction into the
// issue queue, applying the same stall conditions as clock_pipeline():
// no free physical register, issue queue full, a branch whose operands
// aren't ready yet, a store whose address isn't ready or whose store
// buffer is full, or an AMO/ECALL/CSR that must wait for the pipeline
// to drain before serializing.
func (c *Core) dispatch() bool {
	f := c.nextFetch()
	if f == nil {
		return false
	}
	attr := decoder.Attrs(f.Insn.Op)

	if c.Regs.NoFreeReg() {
		return false
	}
	if c.Last == IssueQueueLength {
		return false
	}

	ir := f.Insn
	rs1 := c.mapReg(ir.Rs1)
	rs2, rs3 := uint8(descriptor.NOREG), uint8(descriptor.NOREG)
	if !ir.LongImm() {
		rs2 = c.mapReg(ir.Rs2())
		rs3 = c.mapReg(ir.Rs3())
	}

	isBranchLike := attr&(decoder.AttrJump|decoder.AttrBranch) != 0
	isSerializing := attr&(decoder.AttrAMO|decoder.AttrSystem) != 0

	if isBranchLike {
		if c.Regs.IsBusy(rs1) || c.Regs.IsBusy(rs2) || c.Regs.IsBusy(rs3) {
			return false
		}
		if ir.Rd != descriptor.NOREG && c.Regs.BusBusy(c.Cycle, c.Latency[ir.Op]) {
			return false
		}
	} else if attr&decoder.AttrStore != 0 || isSerializing {
		if attr&decoder.AttrStore != 0 {
			if c.Regs.StoreBufferFull() {
				return false
			}
			if c.Regs.IsBusy(rs1) {
				return false
			}
		}
		if isSerializing {
			if c.Last > 0 {
				return false
			}
			if c.Port.Active() {
				return false
			}
			for r := 0; r < MaxPhyRegs; r++ {
				if c.Regs.Busy[r] {
					return false
				}
			}
		}
	}

	// commit to dispatch
	c.Regs.AcquireReg(rs1)
	if !ir.LongImm() {
		c.Regs.AcquireReg(rs2)
		c.Regs.AcquireReg(rs3)
	}
	opRd := c.Regs.RenameReg(ir.Rd)

	h := c.ROB.Next()
	h.Clock = c.Cycle
	h.PC = f.PC
	h.Ref = f.Ref
	h.Status = StatusQueued
	h.OpRd, h.OpRs1, h.OpRs2, h.OpRs3 = opRd, rs1, rs2, rs3
	h.ExpectedRd = f.ExpectedRd
	h.ExpectedPC = f.ExpectedPC

	if attr&(decoder.AttrLoad|decoder.AttrStore) != 0 {
		if attr&decoder.AttrStore != 0 {
			h.Stbpos = c.Regs.AllocateStoreBuffer()
		} else {
			h.Stbpos = c.Regs.Stbuf(0)
		}
		if attr&decoder.AttrLoad != 0 && attr&decoder.AttrAMO == 0 {
			h.Status = StatusQueuedStbchk
		}
	}
	h.Insn = ir
	if attr&(decoder.AttrLoad|decoder.AttrStore) != 0 {
		addr := f.Rs1Val
		if attr&decoder.AttrAMO == 0 {
			addr += uint64(ir.Imm())
		}
		h.Addr = addr &^ 0x7
	}

	if isBranchLike || isSerializing {
		for k := c.Last; k > 0; k-- {
			c.Queue[k] = c.Queue[k-1]
		}
		c.Queue[0] = h
	} else {
		c.Queue[c.Last] = h
	}
	c.Last++

	c.Inflight++
	c.Insns++
	c.ROB.Advance()

	c.cur = nil
	c.Observer.OnBlock(f.PC, 1)
	return true
}

// issueFromQueue scans the queue for the first ready instruction
// (preserving program order among the rest) and, if found, dispatches
// it to execute(), mirroring core.cc's issue_from_queue/execute_instruction
// block.
func (c *Core) issueFromQueue() {
	for k := 0; k < c.Last; k++ {
		h := c.Queue[k]
		if h.Status == StatusQueuedNoport || h.Status == StatusQueuedNochk {
			h.Status = StatusQueued
		}
		attr := decoder.Attrs(h.Insn.Op)
		if !readyInsn(c.Regs, h.Insn) {
			continue
		}
		if h.OpRd != descriptor.NOREG && c.Regs.BusBusy(c.Cycle, c.Latency[h.Insn.Op]) {
			continue
		}
		if attr&(decoder.AttrLoad|decoder.AttrStore) != 0 {
			if c.Port.Active() {
				h.Status = StatusQueuedNoport
				continue
			}
		}
		for j := k + 1; j < c.Last; j++ {
			c.Queue[j-1] = c.Queue[j]
		}
		c.Last--
		c.execute(h)
		return
	}
}

// execute performs the timing side effects of issuing h: launching a
// memory-port request for loads/stores, releasing the source registers
// it held, and either retiring it immediately (no destination) or
// scheduling its write-bus slot.
func (c *Core) execute(h *History) {
	ir := h.Insn
	attr := decoder.Attrs(ir.Op)

	if attr&(decoder.AttrLoad|decoder.AttrStore) != 0 {
		c.Port.Request(h.Addr, c.Latency[ir.Op], h)
	}

	c.Regs.ReleaseReg(h.OpRs1)
	if !ir.LongImm() {
		c.Regs.ReleaseReg(h.OpRs2)
		c.Regs.ReleaseReg(h.OpRs3)
	}

	h.ActualRd = h.ExpectedRd

	if ir.Rd == descriptor.NOREG && attr&decoder.AttrStore == 0 {
		h.Status = StatusRetired
	} else {
		if ir.Rd != descriptor.NOREG && attr&decoder.AttrLoad == 0 {
			c.Regs.ReserveBus(c.Cycle, c.Latency[ir.Op], h)
		}
		h.Status = StatusExecuting
		c.Inflight--
	}
}

// ValueIsReady clears a register's busy bit once its producing
// instruction's result is visible, per components.h's value_is_ready.
func (r *RegFile) ValueIsReady(reg uint8) {
	if reg != descriptor.NOREG {
		r.Busy[reg] = false
	}
}
