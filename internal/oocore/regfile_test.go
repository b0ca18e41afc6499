package oocore

import "testing"

func TestResetMapsArchToIdentity(t *testing.T) {
	r := NewRegFile()
	for k := uint8(0); k < ArchRegs; k++ {
		if r.Map(k) != k {
			t.Fatalf("arch reg %d mapped to %d, want identity", k, r.Map(k))
		}
	}
	if r.NoFreeReg() {
		t.Fatalf("expected free rename slots right after reset")
	}
}

func TestRenameRegAllocatesAndMarksBusy(t *testing.T) {
	r := NewRegFile()
	before := r.NumFree
	r.AcquireReg(r.Map(5)) // an in-flight reader keeps the old mapping off the free list
	phys := r.RenameReg(5)
	if phys < ArchRegs {
		t.Fatalf("expected a renamed slot >= %d, got %d", ArchRegs, phys)
	}
	if !r.IsBusy(phys) {
		t.Fatalf("expected freshly renamed register to be busy")
	}
	if r.Map(5) != phys {
		t.Fatalf("expected arch reg 5 now mapped to %d, got %d", phys, r.Map(5))
	}
	if r.NumFree != before-1 {
		t.Fatalf("expected free count to drop by one")
	}
}

func TestReleaseRegReturnsToFreeListWhenUnreferenced(t *testing.T) {
	r := NewRegFile()
	phys := r.RenameReg(5) // uses: rename-map(1) + dispatching instr(1) = 2
	r.ReleaseReg(phys)
	if !r.IsBusy(phys) {
		t.Fatalf("register should still be busy with one outstanding use")
	}
	r.ReleaseReg(phys)
	if r.IsBusy(phys) {
		t.Fatalf("register should no longer be busy once uses hit zero")
	}
}

func TestStoreBufferAllocationCycles(t *testing.T) {
	r := NewRegFile()
	first := r.AllocateStoreBuffer()
	if first < MaxPhyRegs {
		t.Fatalf("expected a store-buffer slot >= %d, got %d", MaxPhyRegs, first)
	}
	for i := 1; i < StoreBufferLength; i++ {
		r.AllocateStoreBuffer()
	}
	if !r.StoreBufferFull() {
		t.Fatalf("expected store buffer to report full once every slot is allocated")
	}
	r.ReleaseReg(first)
	if r.StoreBufferFull() {
		t.Fatalf("expected store buffer to report free after release")
	}
}

func TestNoFreeRegWhenExhausted(t *testing.T) {
	r := NewRegFile()
	for i := 0; i < RenameSlots; i++ {
		r.AcquireReg(r.Map(uint8(i))) // keep each old mapping referenced
		r.RenameReg(uint8(i))
	}
	if !r.NoFreeReg() {
		t.Fatalf("expected free list exhausted after renaming every slot")
	}
}
