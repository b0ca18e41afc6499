// Package perfshm implements the performance-counter shared-memory
// segment described in SPEC_FULL.md §14, grounded on
// _examples/original_source/caveat/core.h's perf_header_t/perf_t: a
// small fixed header followed by one counter record per core, mapped
// so an external viewer process can attach and read live CPI stats
// without this interpreter implementing a query protocol itself. The
// mapping itself uses golang.org/x/sys/unix, the same dependency
// internal/syscallproxy already wraps host syscalls with.
package perfshm

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Header mirrors perf_header_t: segment geometry plus how many cores
// are active right now.
type Header struct {
	Size   int64
	Base   int64
	Bound  int64
	Cores  int32
	Active int32
}

const headerSize = 8 + 8 + 8 + 4 + 4

// Counter is one core's running totals. The segment holds one Counter
// per core; it does not keep per-parcel counts as perf_t's count[i]
// array does.
type Counter struct {
	Fetches uint64
	Cycles  uint64
}

const counterSize = 8 + 8

// Segment is a writer-only mapping of a /dev/shm-backed file: this
// process owns Header and every Counter slot; reading them back for
// display is explicitly out of scope (external viewer), per spec.md §1.
type Segment struct {
	f    *os.File
	data []byte
}

// Create opens (or truncates) /dev/shm/<name> sized for a Header plus
// cores Counter slots, and maps it in.
func Create(name string, cores int) (*Segment, error) {
	return CreateAt("/dev/shm", name, cores)
}

// CreateAt is Create with an overridable base directory, used by tests
// that can't write to the real /dev/shm.
func CreateAt(dir, name string, cores int) (*Segment, error) {
	path := filepath.Join(dir, name)
	size := int64(headerSize + cores*counterSize)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("perfshm: open %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("perfshm: truncate %s: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("perfshm: mmap %s: %w", path, err)
	}

	s := &Segment{f: f, data: data}
	s.putHeader(Header{Size: size, Cores: int32(cores)})
	return s, nil
}

// Close unmaps and closes the backing file. The shared-memory file
// itself is left in /dev/shm for a viewer that may still be attached.
func (s *Segment) Close() error {
	if err := unix.Munmap(s.data); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func (s *Segment) putHeader(h Header) {
	b := s.data[:headerSize]
	binary.LittleEndian.PutUint64(b[0:8], uint64(h.Size))
	binary.LittleEndian.PutUint64(b[8:16], uint64(h.Base))
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.Bound))
	binary.LittleEndian.PutUint32(b[24:28], uint32(h.Cores))
	binary.LittleEndian.PutUint32(b[28:32], uint32(h.Active))
}

// SetActive updates the header's active-core count and text-segment
// bounds, called once after the guest image is mapped.
func (s *Segment) SetActive(active int, base, bound int64) {
	b := s.data[:headerSize]
	binary.LittleEndian.PutUint64(b[8:16], uint64(base))
	binary.LittleEndian.PutUint64(b[16:24], uint64(bound))
	binary.LittleEndian.PutUint32(b[28:32], uint32(active))
}

func (s *Segment) counterOffset(core int) int {
	return headerSize + core*counterSize
}

// PutCounter writes core's current counter values into the segment.
func (s *Segment) PutCounter(core int, c Counter) {
	off := s.counterOffset(core)
	b := s.data[off : off+counterSize]
	binary.LittleEndian.PutUint64(b[0:8], c.Fetches)
	binary.LittleEndian.PutUint64(b[8:16], c.Cycles)
}
