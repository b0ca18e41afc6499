package oocore

// DispatchHistory is the phantom reorder buffer's ring size, ported
// from nsosim/components.h's dispatch_history.
const DispatchHistory = 4096

// ROB is a ring of the most recently dispatched instructions, kept for
// inspection (the observer interface) only — nothing on the hot
// dispatch/issue/execute path reads it back, matching core.cc's
// nextrob() usage.
type ROB struct {
	entries [DispatchHistory]History
	insns   int64
}

// Next returns the slot the next dispatched instruction will occupy.
func (r *ROB) Next() *History {
	return &r.entries[r.insns%DispatchHistory]
}

// Advance records that one more instruction was dispatched.
func (r *ROB) Advance() { r.insns++ }

// At returns the entry dispatched `insns` instructions ago, or the zero
// value if it has already been overwritten by the ring wrapping around.
func (r *ROB) At(insns int64) History {
	if insns < 0 || r.insns-insns >= DispatchHistory || insns > r.insns {
		return History{}
	}
	return r.entries[insns%DispatchHistory]
}
