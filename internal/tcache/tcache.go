// Package tcache implements the lock-free basic-block translation cache
// described in SPEC_FULL.md §6 ([D] translation cache): a bump-allocated
// arena of *Block pointers plus a open-chained hash index keyed by
// guest PC, shared read-mostly across every hart's strand.
//
// The allocator/hash-chain shape is grounded on the teacher's
// pkg/search/worker.go atomic work-distribution idiom (an
// atomic.Uint64 cursor advanced with Add, never a mutex),
// generalized here from "claim the next work item" to "claim the next
// arena slot and splice it into a hash bucket".
package tcache

import (
	"sync/atomic"

	"github.com/oisee/rv64ui/internal/descriptor"
)

// Block is one translated basic block: a contiguous run of Descriptors
// ending where the strand's translate stopped (a branch, a StopAfter
// instruction, just before a StopBefore one, or its max block length),
// plus the metadata needed to locate and re-validate it.
type Block struct {
	Addr        uint64 // guest PC of the first instruction
	Code        []descriptor.Descriptor
	Length      uint32 // bytes of original guest code this block covers
	Conditional bool   // block ends on a conditional branch, not a jump/stop
	next        atomic.Uint64
}

// nilIndex marks an empty hash bucket or end of chain.
const nilIndex = ^uint64(0)

// Cache is safe for concurrent Find/Add from multiple strands. Bucket
// heads are updated by CompareAndSwap, but two strands adding the same
// PC concurrently can both insert their blocks: each Add then returns
// whichever block for that PC is nearest the chain head when it looks
// again, and Find returns that nearest one from then on, so racing
// callers get blocks for the same PC but not always the same *Block.
type Cache struct {
	blocks  []atomic.Pointer[Block]
	cursor  atomic.Uint64
	table   []atomic.Uint64 // hash(pc) -> index into blocks, or nilIndex
	hashLen uint64
}

// New builds a Cache with room for capacity blocks and a hash table of
// hashBuckets buckets. hashBuckets should be prime-sized to spread
// guest PCs (which cluster on instruction-aligned, often power-of-two,
// boundaries) evenly across buckets.
func New(capacity, hashBuckets int) *Cache {
	c := &Cache{
		blocks:  make([]atomic.Pointer[Block], capacity),
		table:   make([]atomic.Uint64, hashBuckets),
		hashLen: uint64(hashBuckets),
	}
	for i := range c.table {
		c.table[i].Store(nilIndex)
	}
	return c
}

func (c *Cache) bucket(addr uint64) uint64 {
	// Fibonacci hashing: mix then fold into the table, grounded on the
	// same "cheap integer mix, no crypto hash" posture as the teacher's
	// fingerprint.go checksum.
	h := addr * 0x9E3779B97F4A7C15
	return (h >> 24) % c.hashLen
}

// Find looks up the block starting at addr, walking the hash chain.
// Find never allocates and never blocks; it is the hot path executed on
// every basic-block-boundary jump.
func (c *Cache) Find(addr uint64) *Block {
	idx := c.table[c.bucket(addr)].Load()
	for idx != nilIndex {
		b := c.blocks[idx].Load()
		if b == nil {
			return nil
		}
		if b.Addr == addr {
			return b
		}
		idx = b.next.Load()
	}
	return nil
}

// Add inserts block, returning the Block actually present in the cache
// afterward (which may be a different, concurrently-inserted Block for
// the same address — callers must always use the returned value, not
// their own argument, as the cache's source of truth).
func (c *Cache) Add(block *Block) *Block {
	if existing := c.Find(block.Addr); existing != nil {
		return existing
	}
	slot := c.cursor.Add(1) - 1
	if int(slot) >= len(c.blocks) {
		// Arena exhausted: the block is returned uncached rather than
		// panicking mid-execution. Add neither grows nor flushes the
		// arena, so every later miss is decoded afresh and never cached.
		return block
	}
	c.blocks[slot].Store(block)

	b := &c.table[c.bucket(block.Addr)]
	for {
		head := b.Load()
		block.next.Store(head)
		if b.CompareAndSwap(head, slot) {
			break
		}
	}

	if existing := c.Find(block.Addr); existing != block {
		return existing
	}
	return block
}

// Clear resets the cache to empty. Nothing in the interpreter calls it:
// FENCE.I executes as a no-op and a full arena is not flushed.
func (c *Cache) Clear() {
	c.cursor.Store(0)
	for i := range c.blocks {
		c.blocks[i].Store(nil)
	}
	for i := range c.table {
		c.table[i].Store(nilIndex)
	}
}

// Len reports how many blocks are currently resident, for the observer's
// occupancy readout.
func (c *Cache) Len() int {
	n := int(c.cursor.Load())
	if n > len(c.blocks) {
		n = len(c.blocks)
	}
	return n
}

// Cap reports the arena's fixed block capacity.
func (c *Cache) Cap() int { return len(c.blocks) }
