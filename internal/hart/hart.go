// Package hart owns the shared guest address space and the set of
// strands (hardware threads) running against it, grounded on
// _examples/original_source/caveat/multithread.c's parent/child clone
// protocol and core_t intrusive linked list, and on
// _examples/original_source/uspike/hart.h's hart_t grouping of strands
// that share an mmu.
package hart

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/oisee/rv64ui/internal/strand"
)

// Memory is the flat byte-addressable guest address space shared by
// every strand spawned from the same Hart, implementing
// strand.Memory via simple little-endian byte-slice access plus
// CAS32/CAS64, all guarded by one sync.RWMutex (§5's "atomics and AMOs
// must be observably atomic across all harts sharing the address
// space", satisfied here without real hardware LL/SC by holding that
// mutex's write lock around the read-compare-write).
type Memory struct {
	mu  sync.RWMutex
	buf []byte
}

// NewMemory allocates a guest address space of the given size.
func NewMemory(size uint64) *Memory {
	return &Memory{buf: make([]byte, size)}
}

func (m *Memory) Size() uint64 { return uint64(len(m.buf)) }

func (m *Memory) Grow(newSize uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if newSize <= uint64(len(m.buf)) {
		return
	}
	grown := make([]byte, newSize)
	copy(grown, m.buf)
	m.buf = grown
}

func (m *Memory) WriteAt(addr uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.buf[addr:], data)
}

func (m *Memory) Fetch(addr uint64) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	end := addr + 4
	if end > uint64(len(m.buf)) {
		end = uint64(len(m.buf))
	}
	if addr >= uint64(len(m.buf)) {
		return nil
	}
	out := make([]byte, end-addr)
	copy(out, m.buf[addr:end])
	return out
}

func (m *Memory) Load8(addr uint64) uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buf[addr]
}
func (m *Memory) Load16(addr uint64) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return le16(m.buf[addr:])
}
func (m *Memory) Load32(addr uint64) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return le32(m.buf[addr:])
}
func (m *Memory) Load64(addr uint64) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return le64(m.buf[addr:])
}
func (m *Memory) Store8(addr uint64, v uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[addr] = v
}
func (m *Memory) Store16(addr uint64, v uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	putLE16(m.buf[addr:], v)
}
func (m *Memory) Store32(addr uint64, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	putLE32(m.buf[addr:], v)
}
func (m *Memory) Store64(addr uint64, v uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	putLE64(m.buf[addr:], v)
}

func (m *Memory) CAS32(addr uint64, expect, replace uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := le32(m.buf[addr:])
	if old == expect {
		putLE32(m.buf[addr:], replace)
		return old, true
	}
	return old, false
}

func (m *Memory) CAS64(addr uint64, expect, replace uint64) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := le64(m.buf[addr:])
	if old == expect {
		putLE64(m.buf[addr:], replace)
		return old, true
	}
	return old, false
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le64(b []byte) uint64 {
	return uint64(le32(b)) | uint64(le32(b[4:]))<<32
}
func putLE16(b []byte, v uint16) { b[0], b[1] = byte(v), byte(v>>8) }
func putLE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putLE64(b []byte, v uint64) {
	putLE32(b, uint32(v))
	putLE32(b[4:], uint32(v>>32))
}

// Hart owns a set of strands that share Mem and a translation cache,
// joined via an errgroup — the Go-idiomatic replacement for
// multithread.c's pthread_cond/pthread_mutex clone handshake. Strand
// goroutines always return nil, so a strand that stops on a fault does
// not stop its siblings: the run as a whole ends only when every strand
// has returned or Stop is called, and Wait always returns nil.
type Hart struct {
	Mem *Memory
	Log *logrus.Logger

	mu      sync.Mutex
	strands []*strand.Strand
	nextTID int32

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Hart ready to run strands against mem.
func New(mem *Memory, log *logrus.Logger) *Hart {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	return &Hart{Mem: mem, Log: log, group: group, ctx: ctx, cancel: cancel}
}

// Spawn registers s and launches its interpreter loop in a new
// goroutine, stopping when the Hart's context is canceled (by Stop) or
// when s's own Run loop returns.
func (h *Hart) Spawn(s *strand.Strand) {
	h.mu.Lock()
	s.TID = int(atomic.AddInt32(&h.nextTID, 1))
	h.strands = append(h.strands, s)
	h.mu.Unlock()

	h.group.Go(func() error {
		s.Run(func() bool {
			select {
			case <-h.ctx.Done():
				return true
			default:
				return false
			}
		})
		return nil
	})
}

// Strands returns a snapshot of every strand registered so far, for the
// observer's per-hart counters.
func (h *Hart) Strands() []*strand.Strand {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*strand.Strand, len(h.strands))
	copy(out, h.strands)
	return out
}

// Stop cancels every strand's run loop, used when one strand's ECall
// handler decides the whole process should exit (exit_group).
func (h *Hart) Stop() { h.cancel() }

// Wait blocks until every spawned strand's goroutine has returned.
func (h *Hart) Wait() error { return h.group.Wait() }

// TotalExecuted sums the retired-instruction counters across every
// strand, grounded on strand_t::total_count() in uspike/strand.h.
func (h *Hart) TotalExecuted() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var total int64
	for _, s := range h.strands {
		total += s.Executed()
	}
	return total
}
