package hart

import "github.com/oisee/rv64ui/internal/strand"

// CloneRequest carries the RISC-V clone(2) argument registers, grounded
// on the a0..a5 comment block in
// _examples/original_source/caveat/multithread.c.
type CloneRequest struct {
	Flags      uint64
	ChildStack uint64
	ParentTID  uint64
	TLS        uint64
	ChildTID   uint64
}

// Clone creates a new strand sharing parent's Hart and address space,
// per §5's "clone spawns a sibling strand with its own register file,
// sharing memory and the translation cache". The pthread_cond_t
// handshake in multithread.c exists to hand the child's assigned TID
// back to the parent before it resumes; here that's just the ordinary
// synchronous return value of Clone itself, since Spawn registers the
// child and its TID before returning.
func (h *Hart) Clone(parent *strand.Strand, req CloneRequest) *strand.Strand {
	child := &strand.Strand{
		Xrf:    parent.Xrf,
		Frf:    parent.Frf,
		PC:     parent.PC + 4, // past the clone ecall, where the parent resumes too
		Fcsr:   parent.Fcsr,
		Mem:    parent.Mem,
		TC:     parent.TC,
		FP:     parent.FP,
		OnSim:  parent.OnSim,
		ECall:  parent.ECall,
		Ebreak: parent.Ebreak,
	}
	if req.ChildStack != 0 {
		child.Xrf[2] = req.ChildStack // sp
	}
	if req.TLS != 0 {
		child.Xrf[4] = req.TLS // tp
	}
	child.Xrf[10] = 0 // a0: child sees return value 0

	h.Spawn(child)
	return child
}
