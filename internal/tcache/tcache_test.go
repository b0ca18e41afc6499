package tcache

import (
	"sync"
	"testing"

	"github.com/oisee/rv64ui/internal/descriptor"
)

func TestFindMissReturnsNil(t *testing.T) {
	c := New(16, 7)
	if c.Find(0x1000) != nil {
		t.Fatalf("expected miss on empty cache")
	}
}

func TestAddThenFind(t *testing.T) {
	c := New(16, 7)
	b := &Block{Addr: 0x1000, Code: []descriptor.Descriptor{descriptor.NewShort(1, 0, 0, 0, 0, 0)}}
	got := c.Add(b)
	if got.Addr != 0x1000 {
		t.Fatalf("unexpected block: %+v", got)
	}
	if found := c.Find(0x1000); found != got {
		t.Fatalf("Find did not return the inserted block")
	}
}

// TestConcurrentAddConverges covers testable property 2: every block
// returned by concurrent discovery of the same basic block describes the
// same guest PC as the block the cache finally holds.
func TestConcurrentAddConverges(t *testing.T) {
	c := New(64, 11)
	const n = 32
	results := make([]*Block, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i] = c.Add(&Block{Addr: 0x4000})
		}()
	}
	wg.Wait()
	final := c.Find(0x4000)
	for i, r := range results {
		if r.Addr != final.Addr {
			t.Fatalf("goroutine %d saw a different address than the final cache state", i)
		}
	}
}

func TestClearResetsOccupancy(t *testing.T) {
	c := New(8, 3)
	c.Add(&Block{Addr: 0x10})
	c.Add(&Block{Addr: 0x20})
	if c.Len() != 2 {
		t.Fatalf("expected Len()==2, got %d", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected Len()==0 after Clear, got %d", c.Len())
	}
	if c.Find(0x10) != nil {
		t.Fatalf("expected miss after Clear")
	}
}

func TestArenaOverflowDegradesGracefully(t *testing.T) {
	c := New(1, 3)
	c.Add(&Block{Addr: 0x10})
	overflow := c.Add(&Block{Addr: 0x20})
	if overflow == nil || overflow.Addr != 0x20 {
		t.Fatalf("expected degraded pass-through block, got %+v", overflow)
	}
}
