package oocore

// Register file geometry, ported from nsosim/components.h. The
// original's max_phy_regs is 64 architectural + 16 issue-queue slack +
// 16 extra renames; SPEC_FULL.md widens the rename pool to 32 slots
// (absorbing both headroom terms) while keeping everything else the
// same shape.
const (
	ArchRegs          = 64
	RenameSlots       = 32
	StoreBufferLength = 8
	MaxPhyRegs        = ArchRegs + RenameSlots
	RegFileSize       = MaxPhyRegs + StoreBufferLength

	IssueQueueLength = 16
	MaxLatency       = 32
	wheelSize        = MaxLatency + 1
)

// RegFile is the unified physical register file plus store buffer,
// grounded line-for-line on Remapping_Regfile_t in
// nsosim/components.h/.cc: a register-rename map, a reference-counted
// busy/uses table, an explicit free-list stack, and a timing wheel that
// schedules when a renamed register's value becomes ready.
type RegFile struct {
	RegMap   [ArchRegs]uint8
	Busy     [RegFileSize]bool
	Uses     [RegFileSize]int
	FreeList [MaxPhyRegs]uint8
	NumFree  int
	StbTail  int
	Wheel    [wheelSize]*History
}

// NewRegFile returns a RegFile in its just-Reset state.
func NewRegFile() *RegFile {
	r := &RegFile{}
	r.Reset()
	return r
}

// Reset maps every architectural register to the identically-numbered
// physical register (each with one use, held by the rename map, so it
// returns to the free list once renamed away and unreferenced), and
// pushes every remaining physical register onto the free list.
func (r *RegFile) Reset() {
	for k := 0; k < ArchRegs; k++ {
		r.RegMap[k] = uint8(k)
		r.Uses[k] = 1
		r.Busy[k] = false
	}
	r.NumFree = 0
	for k := ArchRegs; k < MaxPhyRegs; k++ {
		r.FreeList[r.NumFree] = uint8(k)
		r.NumFree++
		r.Uses[k] = 0
	}
	r.StbTail = 0
	for i := range r.Wheel {
		r.Wheel[i] = nil
	}
}

func isStoreBuffer(r uint8) bool { return r >= MaxPhyRegs && r < RegFileSize }

func (r *RegFile) Map(arch uint8) uint8 { return r.RegMap[arch] }
func (r *RegFile) IsBusy(reg uint8) bool {
	if reg == NoReg {
		return false
	}
	return r.Busy[reg]
}
func (r *RegFile) UsesOf(reg uint8) int { return r.Uses[reg] }

func (r *RegFile) NoFreeReg() bool { return r.NumFree == 0 }

func wheelIndex(cycle int64, k int) int {
	return int((cycle + int64(k)) % wheelSize)
}

func (r *RegFile) BusBusy(cycle int64, latency int) bool {
	return r.Wheel[wheelIndex(cycle, latency)] != nil
}

// SimulateWriteReg pops whatever History is scheduled to finish this
// cycle off the timing wheel, or nil if none is.
func (r *RegFile) SimulateWriteReg(cycle int64) *History {
	idx := wheelIndex(cycle, 0)
	h := r.Wheel[idx]
	r.Wheel[idx] = nil
	return h
}

func (r *RegFile) ReserveBus(cycle int64, latency int, h *History) {
	r.Wheel[wheelIndex(cycle, latency)] = h
}

func (r *RegFile) AcquireReg(reg uint8) {
	if reg != NoReg {
		r.Uses[reg]++
	}
}

// ReleaseReg drops a reference; once the count reaches zero the
// register is no longer busy, and (unless it's a store-buffer slot,
// which is recycled via StbTail instead) returned to the free list.
func (r *RegFile) ReleaseReg(reg uint8) {
	if reg == NoReg {
		return
	}
	r.Uses[reg]--
	if r.Uses[reg] == 0 {
		r.Busy[reg] = false
		if !isStoreBuffer(reg) {
			r.FreeList[r.NumFree] = reg
			r.NumFree++
		}
	}
}

// RenameReg drops the rename map's use of the physical register
// currently mapped to archReg (which goes back on the free list, and so
// may be popped again right here, if nothing else references it), pops
// a register off the free list, marks it busy (the producing
// instruction hasn't executed yet), and installs the new mapping.
func (r *RegFile) RenameReg(archReg uint8) uint8 {
	if archReg == NoReg {
		return NoReg
	}
	r.ReleaseReg(r.RegMap[archReg])
	r.NumFree--
	reg := r.FreeList[r.NumFree]
	r.AcquireReg(reg) // held by the rename map
	r.RegMap[archReg] = reg
	r.AcquireReg(reg) // held by the dispatching instruction
	r.Busy[reg] = true
	return reg
}

// Stbuf returns the store-buffer slot k places behind StbTail in the
// circular store-buffer range: k=0 is the slot the next
// AllocateStoreBuffer call claims, k=1 the most recently allocated one.
func (r *RegFile) Stbuf(k int) uint8 {
	return uint8((r.StbTail-k+StoreBufferLength)%StoreBufferLength + MaxPhyRegs)
}

func (r *RegFile) StoreBufferFull() bool { return r.Uses[r.Stbuf(0)] > 0 }

// AllocateStoreBuffer claims the next circular store-buffer slot for an
// in-flight store's address.
func (r *RegFile) AllocateStoreBuffer() uint8 {
	n := r.Stbuf(0)
	r.StbTail = (r.StbTail + 1) % StoreBufferLength
	r.AcquireReg(n)
	r.Busy[n] = true
	return n
}
