// Package lrucache implements a set-associative LRU line tracker
// (SPEC_FULL.md §10, [H] LRU cache model); no other package in this
// module imports it. It is grounded on fsm_cache_t in
// _examples/original_source/cachesim/cache.h: a precomputed
// way/next-state transition table walked once per lookup instead of an
// explicit linked list, so a hit costs one table read plus one tag
// compare per way rather than pointer chasing.
package lrucache

// Tag is one cache line's bookkeeping: whether it holds a valid block,
// whether that block has been written (and so needs writeback on
// eviction), and the block's address tag (addr>>LgLine).
type Tag struct {
	Valid bool
	Dirty bool
	Addr  uint64
}

// Model is one set-associative cache: Ways lines per row, 1<<LgLine
// bytes per line, 1<<LgRows rows.
type Model struct {
	Ways   int
	LgLine uint
	LgRows uint

	rowMask uint64
	fsm     []Transition
	tags    []Tag    // [way*rows+row]
	states  []uint16 // [row], current FSM state index

	Refs      int64
	Misses    int64
	Updates   int64
	Evictions int64
}

// NewModel builds a cache model with the given associativity and
// geometry, precomputing its LRU FSM once up front.
func NewModel(ways int, lgLine, lgRows uint) *Model {
	rows := 1 << lgRows
	m := &Model{
		Ways:    ways,
		LgLine:  lgLine,
		LgRows:  lgRows,
		rowMask: uint64(rows - 1),
		fsm:     BuildLRUFSM(ways),
		tags:    make([]Tag, ways*rows),
		states:  make([]uint16, rows),
	}
	return m
}

// Flush resets every line to invalid/clean and every row to the
// identity (all-ways-clean) LRU state, mirroring fsm_cache_t::flush.
func (m *Model) Flush() {
	for i := range m.tags {
		m.tags[i] = Tag{}
	}
	for i := range m.states {
		m.states[i] = 0
	}
}

// Lookup probes the cache for addr, returning whether it hit, and if it
// missed and evicted a dirty line, that line's address tag so the
// caller can schedule a writeback. Mirrors fsm_cache_t::lookup: walk
// the current row's FSM entries in order, matching Way's tag against
// addr; the last entry checked before exhausting the row is always the
// current LRU line, the one evicted on a miss.
func (m *Model) Lookup(addr uint64, write bool) (hit, evictedDirty bool, evictedAddr uint64) {
	m.Refs++
	tag := addr >> m.LgLine
	row := tag & m.rowMask
	state := m.states[row]
	base := int(state) * m.Ways

	for pos := 0; pos < m.Ways; pos++ {
		tr := m.fsm[base+pos]
		idx := int(tr.Way)*len(m.states) + int(row)
		t := &m.tags[idx]
		if t.Valid && t.Addr == tag {
			hit = true
			m.states[row] = tr.Next
			if write {
				t.Dirty = true
				m.Updates++
			}
			return
		}
		if pos == m.Ways-1 {
			m.Misses++
			if t.Valid && t.Dirty {
				evictedDirty = true
				evictedAddr = t.Addr
				m.Evictions++
			}
			t.Valid = true
			t.Dirty = write
			if write {
				m.Updates++
			}
			t.Addr = tag
			m.states[row] = tr.Next
		}
	}
	return
}
