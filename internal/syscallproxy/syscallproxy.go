// Package syscallproxy implements the RISC-V-to-host ecall proxy
// described in SPEC_FULL.md §8 ([F] syscall proxy), grounded on
// _examples/original_source/caveat/proxy_syscall.cc's riscv_syscall()/
// host_syscall() pair: translate the RISC-V syscall number in a7/x17,
// special-case the handful of calls that can't just pass through
// (clone, exit/exit_group, brk, stat family, futex), and forward
// everything else to the host kernel.
package syscallproxy

import (
	"golang.org/x/sys/unix"

	"github.com/oisee/rv64ui/internal/strand"
)

// Args are the six RISC-V syscall argument registers, a0..a5 (x10-x15).
type Args [6]uint64

// ExitError is returned by Handle when the guest called exit/exit_group;
// the caller (hart controller) treats this as a clean process exit
// rather than a proxy failure.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return "guest process exited" }

// Brk is the injection point for brk(2) emulation, since unlike every
// other syscall here it must be served against the guest's own address
// space (§8's "brk grows/shrinks the guest heap, it is never forwarded
// to the host") rather than passed straight to Linux.
type Brk func(addr uint64) uint64

// Cloner is the injection point for clone(2), handed to the hart
// controller rather than implemented here: syscallproxy only decides
// *that* a clone happened, internal/hart decides *how* to spin up the
// sibling strand.
type Cloner func(s *strand.Strand, flags, childStack, parentTID, tls, childTID uint64) uint64

// Proxy holds the two injection points plus the main thread's tid.
// Handle does not consult MainTID: exit and exit_group both end the
// whole process, whichever thread calls them.
type Proxy struct {
	Brk     Brk
	Clone   Cloner
	MainTID int
}

// Handle implements one ecall: it reads the RISC-V syscall number and
// arguments out of s's register file per the standard Linux RISC-V ABI
// (a7=number, a0..a5=args, return value in a0) and either services it
// locally or forwards it to the host via golang.org/x/sys/unix.
func (p *Proxy) Handle(s *strand.Strand) (bool, error) {
	num := s.Xrf[17]
	args := Args{s.Xrf[10], s.Xrf[11], s.Xrf[12], s.Xrf[13], s.Xrf[14], s.Xrf[15]}

	host, name, ok := Translate(num)
	if !ok {
		s.Xrf[10] = ^uint64(unix.ENOSYS) + 1 // -ENOSYS
		return true, nil
	}

	switch name {
	case "exit", "exit_group":
		return false, &ExitError{Code: int(int64(args[0]))}

	case "brk":
		if p.Brk != nil {
			s.Xrf[10] = p.Brk(args[0])
		}
		return true, nil

	case "clone":
		if p.Clone != nil {
			s.Xrf[10] = p.Clone(s, args[0], args[1], args[2], args[3], args[4])
		}
		return true, nil

	case "futex":
		return true, p.hostFutex(s, args)

	case "fstat", "stat", "lstat", "newfstatat":
		return true, p.hostStat(s, name, args)

	case "ppoll":
		return true, p.hostPpoll(s, args)
	}

	rc, _, errno := unix.Syscall6(uintptr(host), uintptr(args[0]), uintptr(args[1]),
		uintptr(args[2]), uintptr(args[3]), uintptr(args[4]), uintptr(args[5]))
	if errno != 0 {
		s.Xrf[10] = uint64(int64(-int(errno)))
	} else {
		s.Xrf[10] = uint64(rc)
	}
	return true, nil
}

func (p *Proxy) hostFutex(s *strand.Strand, a Args) error {
	rc, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(a[0]), uintptr(a[1]), uintptr(a[2]), 0, 0, 0)
	if errno != 0 {
		s.Xrf[10] = uint64(int64(-int(errno)))
	} else {
		s.Xrf[10] = uint64(rc)
	}
	return nil
}

// hostPpoll forwards to the host's poll(2), since Linux's raw ppoll
// syscall ABI (timespec + sigmask pointer pair) doesn't map cleanly
// onto unix.Syscall6 without building a kernel_sigset_t by hand; poll
// is the documented glibc fallback for the common "no signal mask"
// case, matching how proxy_syscall.cc already special-cases futex for
// ABI reasons rather than for semantic ones.
func (p *Proxy) hostPpoll(s *strand.Strand, a Args) error {
	n := a[1]
	if n == 0 {
		s.Xrf[10] = 0
		return nil
	}
	fds := make([]unix.PollFd, n)
	base := a[0]
	for i := range fds {
		off := base + uint64(i)*8 // struct pollfd { int fd; short events; short revents; }
		fds[i].Fd = int32(s.Mem.Load32(off))
		fds[i].Events = int16(s.Mem.Load16(off + 4))
	}
	rc, err := unix.Poll(fds, -1)
	for i := range fds {
		off := base + uint64(i)*8
		s.Mem.Store16(off+6, uint16(fds[i].Revents))
	}
	if err != nil {
		s.Xrf[10] = uint64(int64(-int(err.(unix.Errno))))
	} else {
		s.Xrf[10] = uint64(rc)
	}
	return nil
}
