package syscallproxy

import (
	"golang.org/x/sys/unix"

	"github.com/oisee/rv64ui/internal/strand"
)

// rvStat is the fixed 128-byte struct stat layout a RISC-V musl/glibc
// libc expects from fstat/newfstatat, per the Linux RISC-V ABI. Field
// order and widths differ from the host's unix.Stat_t (whose layout is
// architecture-specific), so fstat/stat/lstat/newfstatat are handled
// here rather than forwarded byte-for-byte like the other passthrough
// syscalls — the one place this proxy must translate a struct layout
// instead of just relaying register values, mirrored on proxy_syscall.cc's
// special-casing of the same four calls.
type rvStat struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint64
	_       uint64
	Size    int64
	Blksize int32
	_       int32
	Blocks  int64
	Atime   int64
	AtimeNs int64
	Mtime   int64
	MtimeNs int64
	Ctime   int64
	CtimeNs int64
	_       [2]int32
}

// ConvertStat marshals a host unix.Stat_t into the 128-byte RV64 struct
// stat layout, writing it into guest memory at addr through mem.
func ConvertStat(mem strand.Memory, addr uint64, st *unix.Stat_t) {
	rv := rvStat{
		Dev:     st.Dev,
		Ino:     st.Ino,
		Mode:    st.Mode,
		Nlink:   uint32(st.Nlink),
		UID:     st.Uid,
		GID:     st.Gid,
		Rdev:    st.Rdev,
		Size:    st.Size,
		Blksize: int32(st.Blksize),
		Blocks:  st.Blocks,
		Atime:   st.Atim.Sec,
		AtimeNs: st.Atim.Nsec,
		Mtime:   st.Mtim.Sec,
		MtimeNs: st.Mtim.Nsec,
		Ctime:   st.Ctim.Sec,
		CtimeNs: st.Ctim.Nsec,
	}
	putStat(mem, addr, &rv)
}

// hostStat services fstat/stat/lstat/newfstatat by calling the matching
// host syscall into a host-layout unix.Stat_t, then repacking the
// result into the guest's struct stat at the buffer address the guest
// passed in.
func (p *Proxy) hostStat(s *strand.Strand, name string, a Args) error {
	var st unix.Stat_t
	var err error
	var bufAddr uint64

	switch name {
	case "fstat":
		err = unix.Fstat(int(a[0]), &st)
		bufAddr = a[1]
	case "stat", "lstat":
		path := readCString(s, a[0])
		if name == "lstat" {
			err = unix.Lstat(path, &st)
		} else {
			err = unix.Stat(path, &st)
		}
		bufAddr = a[1]
	case "newfstatat":
		path := readCString(s, a[1])
		err = unix.Fstatat(int(a[0]), path, &st, 0)
		bufAddr = a[2]
	}
	if err != nil {
		s.Xrf[10] = uint64(int64(-int(err.(unix.Errno))))
		return nil
	}
	ConvertStat(s.Mem, bufAddr, &st)
	s.Xrf[10] = 0
	return nil
}

func readCString(s *strand.Strand, addr uint64) string {
	var b []byte
	for i := uint64(0); i < 4096; i++ {
		c := s.Mem.Load8(addr + i)
		if c == 0 {
			break
		}
		b = append(b, c)
	}
	return string(b)
}

func putStat(mem strand.Memory, base uint64, rv *rvStat) {
	mem.Store64(base+0, rv.Dev)
	mem.Store64(base+8, rv.Ino)
	mem.Store32(base+16, rv.Mode)
	mem.Store32(base+20, rv.Nlink)
	mem.Store32(base+24, rv.UID)
	mem.Store32(base+28, rv.GID)
	mem.Store64(base+32, rv.Rdev)
	mem.Store64(base+48, uint64(rv.Size))
	mem.Store32(base+56, uint32(rv.Blksize))
	mem.Store64(base+64, uint64(rv.Blocks))
	mem.Store64(base+72, uint64(rv.Atime))
	mem.Store64(base+80, uint64(rv.AtimeNs))
	mem.Store64(base+88, uint64(rv.Mtime))
	mem.Store64(base+96, uint64(rv.MtimeNs))
	mem.Store64(base+104, uint64(rv.Ctime))
	mem.Store64(base+112, uint64(rv.CtimeNs))
}
