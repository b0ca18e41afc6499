package syscallproxy

import "golang.org/x/sys/unix"

// entry mirrors one row of the rv_to_host[] table built from
// ecall_nums.h in proxy_syscall.cc: a RISC-V syscall number maps to a
// host syscall number and a name used for dispatch and for the
// --ecall trace (§8).
type entry struct {
	host int64
	name string
}

// table covers the RISC-V Linux syscall numbers a statically-linked
// musl/glibc RV64 binary actually issues for the workloads this
// interpreter targets; unlisted numbers fall through to ENOSYS, same as
// proxy_syscall.cc's "no mapping for this system call" abort path, made
// non-fatal here so a single unsupported syscall doesn't take down an
// otherwise-successful run.
var table = map[uint64]entry{
	56:  {unix.SYS_OPENAT, "openat"},
	57:  {unix.SYS_CLOSE, "close"},
	63:  {unix.SYS_READ, "read"},
	64:  {unix.SYS_WRITE, "write"},
	66:  {unix.SYS_WRITEV, "writev"},
	78:  {unix.SYS_READLINKAT, "readlinkat"},
	79:  {0, "newfstatat"},
	80:  {0, "fstat"},
	93:  {0, "exit"},
	94:  {0, "exit_group"},
	98:  {0, "futex"},
	134: {unix.SYS_RT_SIGACTION, "rt_sigaction"},
	135: {unix.SYS_RT_SIGPROCMASK, "rt_sigprocmask"},
	172: {unix.SYS_GETPID, "getpid"},
	173: {unix.SYS_GETPPID, "getppid"},
	174: {unix.SYS_GETUID, "getuid"},
	175: {unix.SYS_GETEUID, "geteuid"},
	176: {unix.SYS_GETGID, "getgid"},
	177: {unix.SYS_GETEGID, "getegid"},
	178: {unix.SYS_GETTID, "gettid"},
	214: {0, "brk"},
	215: {unix.SYS_MUNMAP, "munmap"},
	220: {0, "clone"},
	222: {unix.SYS_MMAP, "mmap"},
	226: {unix.SYS_MPROTECT, "mprotect"},
	261: {0, "ppoll"},
	278: {unix.SYS_GETRANDOM, "getrandom"},
	291: {unix.SYS_STATX, "statx"},
}

// Translate looks up a RISC-V syscall number, returning the host
// syscall number (meaningless/unused for the special-cased names),
// its name, and whether the number is known at all.
func Translate(rvnum uint64) (host int64, name string, ok bool) {
	e, ok := table[rvnum]
	if !ok {
		return 0, "", false
	}
	return e.host, e.name, true
}
