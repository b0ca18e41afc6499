package perfshm

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateSizesSegment(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateAt(dir, "rv64ui-test", 4)
	if err != nil {
		t.Fatalf("CreateAt: %v", err)
	}
	defer s.Close()

	info, err := os.Stat(filepath.Join(dir, "rv64ui-test"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	want := int64(headerSize + 4*counterSize)
	if info.Size() != want {
		t.Fatalf("segment size = %d, want %d", info.Size(), want)
	}
}

func TestPutCounterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateAt(dir, "rv64ui-test2", 2)
	if err != nil {
		t.Fatalf("CreateAt: %v", err)
	}
	defer s.Close()

	s.PutCounter(1, Counter{Fetches: 100, Cycles: 250})

	off := s.counterOffset(1)
	fetches := binary.LittleEndian.Uint64(s.data[off : off+8])
	cycles := binary.LittleEndian.Uint64(s.data[off+8 : off+16])
	if fetches != 100 || cycles != 250 {
		t.Fatalf("got fetches=%d cycles=%d, want 100/250", fetches, cycles)
	}
}

func TestSetActiveUpdatesHeader(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateAt(dir, "rv64ui-test3", 1)
	if err != nil {
		t.Fatalf("CreateAt: %v", err)
	}
	defer s.Close()

	s.SetActive(3, 0x10000, 0x20000)
	active := binary.LittleEndian.Uint32(s.data[28:32])
	if active != 3 {
		t.Fatalf("active = %d, want 3", active)
	}
}
