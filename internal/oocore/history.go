package oocore

import "github.com/oisee/rv64ui/internal/descriptor"

// Status mirrors History_t::Status_t in nsosim/components.h.
type Status int

const (
	StatusDispatch Status = iota
	StatusQueued
	StatusQueuedStbchk
	StatusQueuedNoport
	StatusQueuedNochk
	StatusExecuting
	StatusImmediate
	StatusRetired
)

// NoReg is the physical-register "none" sentinel, shared with the
// decoder's NOREG value.
const NoReg uint8 = descriptor.NOREG

// History is one dispatched instruction's tracking record: renamed
// register assignments, the cycle it was dispatched, and (in verify
// mode) the functionally-correct result to compare against at
// retirement. Grounded on History_t in nsosim/components.h.
type History struct {
	Clock  int64
	Insn   descriptor.Descriptor
	PC     uint64
	Ref    descriptor.Descriptor
	Status Status
	Stbpos uint8

	OpRd, OpRs1, OpRs2, OpRs3 uint8
	Addr                      uint64

	ExpectedRd uint64
	ActualRd   uint64
	ExpectedPC uint64
}
