package lrucache

// Transition is one entry of a per-state row in a precomputed LRU state
// machine: at the current state, checking the ways in FSM row order,
// a hit on Way moves the row to Next. Grounded on struct lru_fsm_t in
// _examples/original_source/cachesim/cache.h ("way to look up" / "state
// number if hit"), generalized here to any way-count instead of the
// original's six hand-written lru_fsm_Nway.h tables.
type Transition struct {
	Way  uint16
	Next uint16
}

// BuildLRUFSM constructs the full transition table for an n-way LRU set:
// states ways! permutations of the n ways from MRU to LRU, Next being
// the state reached by promoting the matched way to MRU. The table is
// flat, indexed [state*ways+pos], matching the row layout fsm_cache_t
// walks via pointer arithmetic in the original (fsm + *state).
func BuildLRUFSM(ways int) []Transition {
	if ways <= 0 {
		return nil
	}
	perms := permutations(ways)
	index := make(map[string]uint16, len(perms))
	for i, p := range perms {
		index[key(p)] = uint16(i)
	}

	fsm := make([]Transition, len(perms)*ways)
	for s, p := range perms {
		for pos := 0; pos < ways; pos++ {
			way := p[pos]
			promoted := promote(p, pos)
			fsm[s*ways+pos] = Transition{Way: uint16(way), Next: index[key(promoted)]}
		}
	}
	return fsm
}

// permutations returns every permutation of 0..n-1 in a fixed, canonical
// order; state 0 is always the identity order [0,1,2,...], matching the
// original's "all-ways-clean" reset state after flush().
func permutations(n int) [][]int {
	base := make([]int, n)
	for i := range base {
		base[i] = i
	}
	var out [][]int
	var rec func(prefix, remaining []int)
	rec = func(prefix, remaining []int) {
		if len(remaining) == 0 {
			cp := make([]int, len(prefix))
			copy(cp, prefix)
			out = append(out, cp)
			return
		}
		for i, v := range remaining {
			next := make([]int, 0, len(remaining)-1)
			next = append(next, remaining[:i]...)
			next = append(next, remaining[i+1:]...)
			rec(append(prefix, v), next)
		}
	}
	rec(nil, base)
	return out
}

// promote returns a copy of order with the element at pos moved to the
// front, the rest shifted down one slot, i.e. the new MRU-to-LRU order
// after a hit at pos.
func promote(order []int, pos int) []int {
	out := make([]int, len(order))
	out[0] = order[pos]
	j := 1
	for i, v := range order {
		if i == pos {
			continue
		}
		out[j] = v
		j++
	}
	return out
}

func key(order []int) string {
	b := make([]byte, len(order))
	for i, v := range order {
		b[i] = byte(v)
	}
	return string(b)
}
