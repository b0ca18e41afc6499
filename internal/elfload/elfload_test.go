package elfload

import "testing"

type fakeMem struct {
	buf []byte
}

func (m *fakeMem) WriteAt(addr uint64, data []byte) {
	if addr+uint64(len(data)) > uint64(len(m.buf)) {
		m.Grow(addr + uint64(len(data)))
	}
	copy(m.buf[addr:], data)
}

func (m *fakeMem) Size() uint64 { return uint64(len(m.buf)) }

func (m *fakeMem) Grow(newSize uint64) {
	if newSize <= uint64(len(m.buf)) {
		return
	}
	grown := make([]byte, newSize)
	copy(grown, m.buf)
	m.buf = grown
}

func TestRoundUpDown(t *testing.T) {
	if roundUp(4097, pageSize) != 2*pageSize {
		t.Fatalf("roundUp wrong: %d", roundUp(4097, pageSize))
	}
	if roundDown(4097, pageSize) != pageSize {
		t.Fatalf("roundDown wrong: %d", roundDown(4097, pageSize))
	}
}

func TestLoadRejectsNonELF(t *testing.T) {
	mem := &fakeMem{}
	if _, err := Load([]byte("not an elf"), mem, true); err == nil {
		t.Fatalf("expected error for non-ELF input")
	}
}

func TestSymbolAtEmpty(t *testing.T) {
	img := &Image{}
	if got := img.SymbolAt(0x1000); got != "" {
		t.Fatalf("expected empty symbol, got %q", got)
	}
}

func TestSymbolAtLookup(t *testing.T) {
	img := &Image{Symbols: []Symbol{
		{Addr: 0x1000, Name: "_start"},
		{Addr: 0x2000, Name: "main"},
	}}
	if got := img.SymbolAt(0x1500); got != "_start" {
		t.Fatalf("expected _start, got %q", got)
	}
	if got := img.SymbolAt(0x2500); got != "main" {
		t.Fatalf("expected main, got %q", got)
	}
	if got := img.SymbolAt(0x500); got != "" {
		t.Fatalf("expected empty below first symbol, got %q", got)
	}
}
