package strand

import "github.com/oisee/rv64ui/internal/decoder"
import "github.com/oisee/rv64ui/internal/descriptor"

// CSR addresses the strand understands. Only the floating-point control
// registers are modeled (§4.1's "selected F/D subset"); any other CSR
// reads/writes as zero, matching a minimal user-mode-only machine.
const (
	csrFFlags = 0x001
	csrFRM    = 0x002
	csrFCSR   = 0x003
)

// execCSR implements the Zicsr instructions against the strand's Fcsr,
// grounded on strand_t's get_csr/set_csr pair and csr_func template in
// uspike/strand.h, specialized here to the one CSR group the spec
// actually exercises.
func (s *Strand) execCSR(d descriptor.Descriptor) {
	csr := uint16(d.Imm16())
	old := s.readCSR(csr)

	var src uint64
	switch d.Op {
	case decoder.OpCsrrwi, decoder.OpCsrrsi, decoder.OpCsrrci:
		src = uint64(d.Rs1) // the 5-bit uimm is packed into Rs1 by the decoder
	default:
		src = s.reg(d.Rs1)
	}

	var nv uint64
	switch d.Op {
	case decoder.OpCsrrw, decoder.OpCsrrwi:
		nv = src
	case decoder.OpCsrrs, decoder.OpCsrrsi:
		nv = old | src
	case decoder.OpCsrrc, decoder.OpCsrrci:
		nv = old &^ src
	}
	s.writeCSR(csr, nv)
	s.setReg(d.Rd, old)
}

func (s *Strand) readCSR(csr uint16) uint64 {
	switch csr {
	case csrFFlags:
		return uint64(s.Flags)
	case csrFRM:
		return uint64(s.RM)
	case csrFCSR:
		return uint64(s.Flags) | uint64(s.RM)<<5
	}
	return 0
}

func (s *Strand) writeCSR(csr uint16, v uint64) {
	switch csr {
	case csrFFlags:
		s.Flags = uint8(v) & 0x1f
	case csrFRM:
		s.RM = uint8(v) & 0x7
	case csrFCSR:
		s.Flags = uint8(v) & 0x1f
		s.RM = uint8(v>>5) & 0x7
	}
}
