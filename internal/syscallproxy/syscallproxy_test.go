package syscallproxy

import (
	"testing"

	"golang.org/x/sys/unix"
)

type fakeMem struct{ buf [256]byte }

func (m *fakeMem) Fetch(addr uint64) []byte { return m.buf[addr:] }
func (m *fakeMem) Load8(addr uint64) uint8  { return m.buf[addr] }
func (m *fakeMem) Load16(addr uint64) uint16 {
	return uint16(m.buf[addr]) | uint16(m.buf[addr+1])<<8
}
func (m *fakeMem) Load32(addr uint64) uint32 {
	return uint32(m.buf[addr]) | uint32(m.buf[addr+1])<<8 | uint32(m.buf[addr+2])<<16 | uint32(m.buf[addr+3])<<24
}
func (m *fakeMem) Load64(addr uint64) uint64 {
	return uint64(m.Load32(addr)) | uint64(m.Load32(addr+4))<<32
}
func (m *fakeMem) Store8(addr uint64, v uint8) { m.buf[addr] = v }
func (m *fakeMem) Store16(addr uint64, v uint16) {
	m.buf[addr], m.buf[addr+1] = byte(v), byte(v>>8)
}
func (m *fakeMem) Store32(addr uint64, v uint32) {
	m.buf[addr], m.buf[addr+1], m.buf[addr+2], m.buf[addr+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func (m *fakeMem) Store64(addr uint64, v uint64) {
	m.Store32(addr, uint32(v))
	m.Store32(addr+4, uint32(v>>32))
}
func (m *fakeMem) CAS32(addr uint64, expect, replace uint32) (uint32, bool) { return 0, false }
func (m *fakeMem) CAS64(addr uint64, expect, replace uint64) (uint64, bool) { return 0, false }

func TestTranslateKnown(t *testing.T) {
	_, name, ok := Translate(64)
	if !ok || name != "write" {
		t.Fatalf("expected write, got name=%q ok=%v", name, ok)
	}
}

func TestTranslateUnknown(t *testing.T) {
	if _, _, ok := Translate(999999); ok {
		t.Fatalf("expected unknown syscall number to report !ok")
	}
}

func TestConvertStatRoundTrip(t *testing.T) {
	mem := &fakeMem{}
	st := &unix.Stat_t{Dev: 1, Ino: 2, Mode: 0644, Size: 4096}
	ConvertStat(mem, 0, st)
	if mem.Load64(0) != 1 {
		t.Fatalf("expected Dev==1, got %d", mem.Load64(0))
	}
	if mem.Load64(8) != 2 {
		t.Fatalf("expected Ino==2, got %d", mem.Load64(8))
	}
	if mem.Load32(16) != 0644 {
		t.Fatalf("expected Mode==0644, got %d", mem.Load32(16))
	}
	if int64(mem.Load64(48)) != 4096 {
		t.Fatalf("expected Size==4096, got %d", mem.Load64(48))
	}
}
