// Package observer defines the inspection hooks that cmd/rv64ui's
// per-block OnSim callback and the OoO core call on every block,
// retirement and cycle, per SPEC_FULL.md §13 ([K] observer/TUI
// interface); internal/strand itself does not call them. No ncurses
// binding exists anywhere in the example pack (the nearest relative,
// lookbusy1344-arm_emulator, is a manifest-only other_examples entry,
// not a full teacher repo to copy code from), so the "visual" half of
// the original caveat/uspike display layer is represented here only as
// a logrus-backed trace, matching --show/--ecall in SPEC_FULL.md §15.
package observer

import "github.com/sirupsen/logrus"

// Observer receives block-boundary, retirement and cycle notifications.
// Implementations must not block or panic — callers invoke these on the
// hot interpretation path.
type Observer interface {
	OnBlock(addr uint64, length int)
	OnRetire(pc uint64, mnemonic string)
	OnCycle(cycle int64)
}

// Noop discards every notification; it is the default Observer so
// instrumentation is opt-in.
type Noop struct{}

func (Noop) OnBlock(addr uint64, length int)   {}
func (Noop) OnRetire(pc uint64, mnemonic string) {}
func (Noop) OnCycle(cycle int64)               {}

// LogObserver writes each notification as a structured logrus entry,
// gated by which traces are enabled (--show traces blocks and
// retirements, --ecall traces are handled by the syscall proxy's own
// caller, not here).
type LogObserver struct {
	Log         *logrus.Logger
	ShowBlocks  bool
	ShowRetires bool
	ShowCycles  bool
}

func NewLogObserver(log *logrus.Logger) *LogObserver {
	return &LogObserver{Log: log}
}

func (o *LogObserver) OnBlock(addr uint64, length int) {
	if !o.ShowBlocks {
		return
	}
	o.Log.WithFields(logrus.Fields{"addr": addr, "length": length}).Trace("block")
}

func (o *LogObserver) OnRetire(pc uint64, mnemonic string) {
	if !o.ShowRetires {
		return
	}
	o.Log.WithFields(logrus.Fields{"pc": pc, "insn": mnemonic}).Trace("retire")
}

func (o *LogObserver) OnCycle(cycle int64) {
	if !o.ShowCycles {
		return
	}
	o.Log.WithField("cycle", cycle).Trace("cycle")
}
