package oocore

import (
	"testing"

	"github.com/oisee/rv64ui/internal/decoder"
	"github.com/oisee/rv64ui/internal/descriptor"
)

// drainOneInsn pumps ClockPipeline until the fed instruction both
// dispatches and retires, or the cycle budget runs out.
func drainOneInsn(t *testing.T, c *Core) {
	t.Helper()
	dispatched := false
	for cyc := 0; cyc < 64; cyc++ {
		if c.ClockPipeline() {
			dispatched = true
		}
		if dispatched && c.Last == 0 && !c.Port.Active() && wheelEmpty(c) {
			return
		}
	}
	t.Fatalf("instruction never finished draining through the pipeline")
}

// wheelEmpty reports whether no executed instruction is still waiting on
// the timing wheel to retire.
func wheelEmpty(c *Core) bool {
	for _, h := range c.Regs.Wheel {
		if h != nil {
			return false
		}
	}
	return true
}

func TestDispatchAddRenamesDestination(t *testing.T) {
	c := NewCore()
	add := descriptor.NewShort(decoder.OpAdd, 5, 1, 2, descriptor.NOREG, 0)
	c.Feed(add, 0x1000, 0x1004, 10, 20, 30, 0x1000)

	drainOneInsn(t, c)

	if c.Insns != 1 {
		t.Fatalf("expected 1 instruction dispatched, got %d", c.Insns)
	}
	if c.Mismatches != 0 {
		t.Fatalf("expected no mismatches in non-verify mode, got %d", c.Mismatches)
	}
}

func TestVerifyModeCountsMismatch(t *testing.T) {
	c := NewCore()
	c.Verify = true
	add := descriptor.NewShort(decoder.OpAdd, 5, 1, 2, descriptor.NOREG, 0)
	// ExpectedPC deliberately disagrees with the dispatched PC to
	// exercise the mismatch counter (the core's replayed Rd is, by
	// construction, always the functional engine's ExpectedRd — see
	// DESIGN.md's verify-mode note — so PC is the meaningful check here).
	c.Feed(add, 0x2000, 0x2004, 10, 20, 30, 0xdead)

	drainOneInsn(t, c)

	if c.Mismatches != 1 {
		t.Fatalf("expected 1 mismatch, got %d", c.Mismatches)
	}
}

func TestVerifyModeNoMismatchWhenConsistent(t *testing.T) {
	c := NewCore()
	c.Verify = true
	add := descriptor.NewShort(decoder.OpAdd, 5, 1, 2, descriptor.NOREG, 0)
	c.Feed(add, 0x2000, 0x2004, 10, 20, 30, 0x2000)

	drainOneInsn(t, c)

	if c.Mismatches != 0 {
		t.Fatalf("expected no mismatches when PC/Rd are consistent, got %d", c.Mismatches)
	}
}

func TestStoreLoadThroughMemoryPort(t *testing.T) {
	c := NewCore()
	sw := descriptor.NewShort(decoder.OpSw, descriptor.NOREG, 1, 2, descriptor.NOREG, 0)
	c.Feed(sw, 0x3000, 0x3004, 0x8000, 42, 0, 0x3000)

	drainOneInsn(t, c)

	if c.Insns != 1 {
		t.Fatalf("expected the store to dispatch, got Insns=%d", c.Insns)
	}
}

func TestQueueLengthBounded(t *testing.T) {
	c := NewCore()
	if c.Last != 0 {
		t.Fatalf("expected an empty issue queue on a fresh core")
	}
	if IssueQueueLength != 16 {
		t.Fatalf("issue queue length drifted from the ported constant")
	}
}
