// Package elfload maps a statically-linked RV64GC ELF binary into a
// flat guest address space and reports the entry point, program-header
// location and symbols a RISC-V libc startup needs, per SPEC_FULL.md §5
// ([C] ELF loader). It does not build the initial stack or auxv;
// cmd/rv64ui does that from the returned Image.
//
// The segment-mapping sequence and auxv fields are grounded on
// _examples/original_source/caveat/elf_loader.cc's load_elf_binary();
// unlike that implementation (mmap(MAP_FIXED) into the host's own
// address space) this one copies bytes into a Memory implementation
// supplied by the caller, since a pure-Go interpreter's guest memory is
// just a byte slice, not the host's mapped address space.
package elfload

import (
	"debug/elf"
	"fmt"
	"sort"
)

const (
	pageShift = 12
	pageSize  = 1 << pageShift

	stackSize = 8 << 20
	brkSize   = 16 << 20
)

// Memory is the minimal guest-memory surface the loader needs. Strand
// and hart packages implement a superset of this for instruction fetch
// and load/store; keeping the loader's dependency narrow lets it be
// tested against a plain byte-slice fake.
type Memory interface {
	WriteAt(addr uint64, data []byte)
	Size() uint64
	Grow(newSize uint64)
}

// Segment records one mapped PT_LOAD region, kept for diagnostics and
// for the observer's memory map dump.
type Segment struct {
	VAddr uint64
	Size  uint64
	Flags elf.ProgFlag
}

// Symbol is a (address, name) pair used by the strand interpreter's
// fault reporting and by the observer's disassembly view.
type Symbol struct {
	Addr uint64
	Name string
}

// Image is the result of loading one ELF binary.
type Image struct {
	Entry      uint64
	Segments   []Segment
	BrkMin     uint64 // lowest address the initial brk() may not go below
	Symbols    []Symbol
	Platform   string
	IsPIE      bool
	Interp     string // PT_INTERP path, empty if statically linked

	// Phdr, Phentsize and Phnum mirror the ELF header fields a libc
	// startup reads back out of AT_PHDR/AT_PHENT/AT_PHNUM to walk its
	// own program headers (needed for TLS setup and static-PIE
	// relocation), per spec.md §6's documented auxv vector.
	Phdr      uint64
	Phentsize int
	Phnum     int
}

// SymbolAt returns the tightest-fitting symbol name covering addr, or
// "" if none is known. Symbols must be sorted by Addr (Load keeps them
// sorted).
func (img *Image) SymbolAt(addr uint64) string {
	i := sort.Search(len(img.Symbols), func(i int) bool { return img.Symbols[i].Addr > addr })
	if i == 0 {
		return ""
	}
	return img.Symbols[i-1].Name
}

func roundUp(v, align uint64) uint64   { return (v + align - 1) / align * align }
func roundDown(v, align uint64) uint64 { return v / align * align }

// Load reads an ELF64 RISC-V binary from raw, copies its PT_LOAD
// segments into mem (growing mem as needed) and returns the resulting
// Image. includeData mirrors the original loader's include_data flag:
// when false, only executable (PF_X) segments are mapped, which
// the spec's ELF-loader Non-goal ("no dynamic loader, no shared
// libraries") uses to keep the text-only decode-correctness fixtures
// small.
func Load(raw []byte, mem Memory, includeData bool) (*Image, error) {
	f, err := elf.NewFile(newReaderAt(raw))
	if err != nil {
		return nil, fmt.Errorf("elfload: %w", err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("elfload: not a 64-bit ELF")
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("elfload: not a RISC-V binary (machine=%v)", f.Machine)
	}

	img := &Image{Platform: "riscv64"}

	var bias uint64
	if f.Type == elf.ET_DYN {
		img.IsPIE = true
		bias = pageSize
	}
	img.Entry = f.Entry + bias
	img.Phentsize = 56 // sizeof(Elf64_Phdr), fixed by the ELF64 format
	img.Phnum = len(f.Progs)

	for _, ph := range f.Progs {
		if ph.Type == elf.PT_PHDR {
			img.Phdr = ph.Vaddr + bias
		}
		if ph.Type == elf.PT_INTERP {
			data := make([]byte, ph.Filesz)
			if _, err := ph.ReadAt(data, 0); err == nil {
				img.Interp = trimNul(data)
			}
			continue
		}
		if ph.Type != elf.PT_LOAD || ph.Memsz == 0 {
			continue
		}
		if !includeData && ph.Flags&elf.PF_X == 0 {
			continue
		}
		vaddr := ph.Vaddr + bias
		prepad := vaddr % pageSize
		base := vaddr - prepad

		data := make([]byte, ph.Filesz)
		if _, err := ph.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("elfload: reading segment at 0x%x: %w", vaddr, err)
		}

		mapped := roundUp(ph.Filesz+prepad, pageSize) - prepad
		end := base + mapped
		if ph.Memsz > mapped {
			end = base + roundUp(ph.Memsz+prepad, pageSize) - prepad
		}
		if end > mem.Size() {
			mem.Grow(end)
		}
		mem.WriteAt(vaddr, data)

		if vaddr+ph.Memsz > img.BrkMin {
			img.BrkMin = vaddr + ph.Memsz
		}
		img.Segments = append(img.Segments, Segment{VAddr: vaddr, Size: ph.Memsz, Flags: ph.Flags})
	}

	img.BrkMin = roundUp(img.BrkMin, pageSize)

	syms, err := f.Symbols()
	if err == nil {
		for _, s := range syms {
			if s.Name == "" || elf.ST_TYPE(s.Info) != elf.STT_FUNC {
				continue
			}
			img.Symbols = append(img.Symbols, Symbol{Addr: s.Value + bias, Name: s.Name})
		}
		sort.Slice(img.Symbols, func(i, j int) bool { return img.Symbols[i].Addr < img.Symbols[j].Addr })
	}

	return img, nil
}

func trimNul(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// reader adapts a byte slice to io.ReaderAt without pulling in bytes.Reader's
// sync.Mutex-free but slightly heavier bytes.Reader type; debug/elf only
// needs ReadAt.
type reader struct{ b []byte }

func newReaderAt(b []byte) *reader { return &reader{b: b} }

func (r *reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(r.b)) {
		return 0, fmt.Errorf("elfload: offset %d out of range", off)
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, fmt.Errorf("elfload: short read at offset %d", off)
	}
	return n, nil
}
