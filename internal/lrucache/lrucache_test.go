package lrucache

import "testing"

func TestBuildLRUFSM2Way(t *testing.T) {
	fsm := BuildLRUFSM(2)
	if len(fsm) != 2*2 {
		t.Fatalf("expected 4 entries for 2-way, got %d", len(fsm))
	}
	// state 0 is the identity order [0,1]: checking way 0 first keeps
	// state 0, checking way 1 (the LRU line) promotes to state 1.
	if fsm[0].Way != 0 || fsm[0].Next != 0 {
		t.Fatalf("state0 pos0 = %+v, want {0,0}", fsm[0])
	}
	if fsm[1].Way != 1 || fsm[1].Next != 1 {
		t.Fatalf("state0 pos1 = %+v, want {1,1}", fsm[1])
	}
}

func TestBuildLRUFSMStateCount(t *testing.T) {
	for ways := 1; ways <= 5; ways++ {
		fsm := BuildLRUFSM(ways)
		want := factorial(ways) * ways
		if len(fsm) != want {
			t.Fatalf("ways=%d: got %d entries, want %d", ways, len(fsm), want)
		}
	}
}

func factorial(n int) int {
	r := 1
	for i := 2; i <= n; i++ {
		r *= i
	}
	return r
}

func TestLookupMissThenHit(t *testing.T) {
	m := NewModel(2, 6, 4) // 2-way, 64B lines, 16 rows
	hit, _, _ := m.Lookup(0x1000, false)
	if hit {
		t.Fatalf("expected first access to miss")
	}
	hit, _, _ = m.Lookup(0x1000, false)
	if !hit {
		t.Fatalf("expected second access to the same line to hit")
	}
}

func TestLookupEvictionIsLRU(t *testing.T) {
	m := NewModel(2, 6, 0) // single row, 2-way, so every tag collides
	m.Lookup(0x0000, true) // fills way A, dirty
	m.Lookup(0x0040, false) // fills way B, clean; A is now LRU
	// A third distinct line evicts the LRU line (A, which is dirty).
	hit, evictedDirty, evictedAddr := m.Lookup(0x0080, false)
	if hit {
		t.Fatalf("expected third distinct line to miss")
	}
	if !evictedDirty {
		t.Fatalf("expected the dirty line to be evicted")
	}
	if evictedAddr != 0x0000>>6 {
		t.Fatalf("expected evicted tag %#x, got %#x", uint64(0x0000>>6), evictedAddr)
	}
}

func TestLookupRefsAndMissesCounted(t *testing.T) {
	m := NewModel(4, 6, 4)
	m.Lookup(0x100, false)
	m.Lookup(0x100, false)
	if m.Refs != 2 {
		t.Fatalf("expected Refs==2, got %d", m.Refs)
	}
	if m.Misses != 1 {
		t.Fatalf("expected Misses==1, got %d", m.Misses)
	}
}

func TestFlushResetsState(t *testing.T) {
	m := NewModel(2, 6, 4)
	m.Lookup(0x1000, true)
	m.Flush()
	hit, _, _ := m.Lookup(0x1000, false)
	if hit {
		t.Fatalf("expected a miss after Flush")
	}
}
