// Command rv64ui is the RISC-V (RV64GC) user-mode interpreter described
// by spec.md §§1-15: it loads a statically-linked guest ELF binary,
// runs it to completion through internal/strand's block interpreter and
// internal/syscallproxy's ecall proxy, and optionally drives
// internal/oocore's timing model alongside it for --verify or exposes
// live counters through internal/perfshm.
//
// The root/subcommand/flag-binding shape follows cmd/z80opt/main.go:
// a single cobra.Command tree, flags bound straight into local
// variables, one RunE closure per subcommand.
package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oisee/rv64ui/internal/config"
	"github.com/oisee/rv64ui/internal/decoder"
	"github.com/oisee/rv64ui/internal/descriptor"
	"github.com/oisee/rv64ui/internal/elfload"
	"github.com/oisee/rv64ui/internal/hart"
	"github.com/oisee/rv64ui/internal/observer"
	"github.com/oisee/rv64ui/internal/oocore"
	"github.com/oisee/rv64ui/internal/perfshm"
	"github.com/oisee/rv64ui/internal/strand"
	"github.com/oisee/rv64ui/internal/syscallproxy"
	"github.com/oisee/rv64ui/internal/tcache"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rv64ui",
		Short: "RV64GC user-mode interpreter",
	}

	var cfgPath string
	cli := config.Default()
	var verbose bool

	runCmd := &cobra.Command{
		Use:   "run <binary> [guest-args...]",
		Short: "Load and run a statically-linked RV64GC ELF binary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cli
			if cfgPath != "" {
				fileCfg, err := config.LoadFile(cfgPath)
				if err != nil {
					return err
				}
				mergeFlagsOver(&fileCfg, cmd, &cli)
				cfg = fileCfg
			}
			code, err := runGuest(cfg, args, verbose)
			if err != nil {
				return err
			}
			os.Exit(code)
			return nil
		},
	}

	flags := runCmd.Flags()
	flags.StringVar(&cfgPath, "config", "", "optional TOML config file, overridden by any flag set on the command line")
	flags.IntVar(&cli.TcacheSize, "tcache", cli.TcacheSize, "translation cache capacity, in blocks")
	flags.IntVar(&cli.HashBits, "hash", cli.HashBits, "translation cache hash table size, as 2^hash buckets")
	flags.BoolVar(&cli.Show, "show", cli.Show, "trace every retired block and instruction")
	flags.BoolVar(&cli.Gdb, "gdb", cli.Gdb, "accept a gdb remote-serial connection (not implemented; logged and ignored)")
	flags.BoolVar(&cli.Ecall, "ecall", cli.Ecall, "trace every ecall")
	flags.IntVar(&cli.IWays, "iways", cli.IWays, "instruction cache associativity (recorded in the config; no cache model is built from it)")
	flags.IntVar(&cli.ILine, "iline", cli.ILine, "instruction cache line size, as log2(bytes)")
	flags.IntVar(&cli.IRows, "irows", cli.IRows, "instruction cache row count, as log2(rows)")
	flags.BoolVar(&cli.Dmiss, "dmiss", cli.Dmiss, "trace every simulated cache miss")
	flags.IntVar(&cli.FPLatency, "fp", cli.FPLatency, "floating-point operation latency, in cycles")
	flags.IntVar(&cli.LdLatency, "ld", cli.LdLatency, "load latency, in cycles")
	flags.IntVar(&cli.StLatency, "st", cli.StLatency, "store latency, in cycles")
	flags.IntVar(&cli.AluLatency, "alu", cli.AluLatency, "integer ALU op latency, in cycles")
	flags.IntVar(&cli.JumpLatency, "jump", cli.JumpLatency, "unconditional jump latency, in cycles")
	flags.IntVar(&cli.Banks, "banks", cli.Banks, "memory bank count (recorded in the config; the OoO timing model always uses 8 banks)")
	flags.BoolVar(&cli.Verify, "verify", cli.Verify, "run the OoO timing model alongside the functional interpreter and report PC mismatches")
	flags.StringVar(&cli.PerfShm, "perf-shm", cli.PerfShm, "name of a /dev/shm performance-counter segment to publish, empty to disable")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log at debug level instead of info")

	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// mergeFlagsOver copies any field the user actually set on the command
// line from cli back on top of fileCfg, so --config=path.toml never
// silently loses an explicit flag. Changed() is the only reliable way
// to tell "flag left at its zero-value default" apart from "flag
// explicitly set to that same value".
func mergeFlagsOver(fileCfg *config.Config, cmd *cobra.Command, cli *config.Config) {
	set := cmd.Flags().Changed
	if set("tcache") {
		fileCfg.TcacheSize = cli.TcacheSize
	}
	if set("hash") {
		fileCfg.HashBits = cli.HashBits
	}
	if set("show") {
		fileCfg.Show = cli.Show
	}
	if set("gdb") {
		fileCfg.Gdb = cli.Gdb
	}
	if set("ecall") {
		fileCfg.Ecall = cli.Ecall
	}
	if set("iways") {
		fileCfg.IWays = cli.IWays
	}
	if set("iline") {
		fileCfg.ILine = cli.ILine
	}
	if set("irows") {
		fileCfg.IRows = cli.IRows
	}
	if set("dmiss") {
		fileCfg.Dmiss = cli.Dmiss
	}
	if set("fp") {
		fileCfg.FPLatency = cli.FPLatency
	}
	if set("ld") {
		fileCfg.LdLatency = cli.LdLatency
	}
	if set("st") {
		fileCfg.StLatency = cli.StLatency
	}
	if set("alu") {
		fileCfg.AluLatency = cli.AluLatency
	}
	if set("jump") {
		fileCfg.JumpLatency = cli.JumpLatency
	}
	if set("banks") {
		fileCfg.Banks = cli.Banks
	}
	if set("verify") {
		fileCfg.Verify = cli.Verify
	}
	if set("perf-shm") {
		fileCfg.PerfShm = cli.PerfShm
	}
}

const guestMemSize = 1 << 30 // 1 GiB flat guest address space

// runGuest loads args[0] as the guest binary, wires up the hart,
// translation cache, syscall proxy and optional OoO/perf-shm
// instrumentation, and blocks until the guest exits. It returns the
// guest's own exit code, or 1 on a fatal mapping/load error.
func runGuest(cfg config.Config, args []string, verbose bool) (int, error) {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if cfg.Gdb {
		log.Warn("gdbstub requested via --gdb but is out of scope; ignoring")
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return 1, fmt.Errorf("rv64ui: %w", err)
	}

	mem := hart.NewMemory(guestMemSize)
	img, err := elfload.Load(raw, mem, true)
	if err != nil {
		return 1, fmt.Errorf("rv64ui: %w", err)
	}

	sp := buildInitialStack(mem, img, args)

	h := hart.New(mem, log)
	tc := tcache.New(cfg.TcacheSize, 1<<uint(cfg.HashBits))

	var obs observer.Observer = observer.Noop{}
	if cfg.Show || cfg.Dmiss {
		lo := observer.NewLogObserver(log)
		lo.ShowBlocks = cfg.Show
		lo.ShowRetires = cfg.Show
		lo.ShowCycles = cfg.Dmiss
		obs = lo
	}

	var core *oocore.Core
	if cfg.Verify {
		core = oocore.NewCore()
		core.Verify = true
		core.Observer = obs
		core.SetLatency(decoder.AttrFP, cfg.FPLatency)
		core.SetLatency(decoder.AttrLoad, cfg.LdLatency)
		core.SetLatency(decoder.AttrStore, cfg.StLatency)
		core.SetLatency(decoder.AttrALU, cfg.AluLatency)
		core.SetLatency(decoder.AttrJump, cfg.JumpLatency)
	}

	var perf *perfshm.Segment
	if cfg.PerfShm != "" {
		perf, err = perfshm.Create(cfg.PerfShm, 1)
		if err != nil {
			return 1, fmt.Errorf("rv64ui: %w", err)
		}
		defer perf.Close()
		var base, bound int64
		if len(img.Segments) > 0 {
			base = int64(img.Segments[0].VAddr)
		}
		bound = int64(img.BrkMin)
		perf.SetActive(1, base, bound)
	}

	brk := img.BrkMin
	exitCode := 0
	proxy := &syscallproxy.Proxy{
		Brk: func(addr uint64) uint64 {
			if addr == 0 {
				return brk
			}
			if addr > brk {
				mem.Grow(addr)
			}
			brk = addr
			return brk
		},
	}
	proxy.Clone = func(s *strand.Strand, flags, childStack, parentTID, tls, childTID uint64) uint64 {
		child := h.Clone(s, hart.CloneRequest{
			Flags: flags, ChildStack: childStack, ParentTID: parentTID, TLS: tls, ChildTID: childTID,
		})
		return uint64(child.TID)
	}

	s := &strand.Strand{Mem: mem, TC: tc, FP: strand.DefaultSoftfloat{}}
	s.PC = img.Entry
	s.Xrf[2] = sp
	s.ECall = func(st *strand.Strand) bool {
		if cfg.Ecall {
			log.WithField("num", st.Xrf[17]).Trace("ecall")
		}
		cont, err := proxy.Handle(st)
		if err != nil {
			if exitErr, ok := err.(*syscallproxy.ExitError); ok {
				exitCode = exitErr.Code
			}
			h.Stop()
			return false
		}
		return cont
	}
	s.OnSim = func(st *strand.Strand, b *tcache.Block) {
		obs.OnBlock(b.Addr, len(b.Code))
		if cfg.Show {
			pc := b.Addr
			for _, d := range b.Code {
				obs.OnRetire(pc, decoder.Mnemonic(d.Op))
				n := uint64(4)
				if decoder.Compressed(d.Op) {
					n = 2
				}
				pc += n
			}
		}
		if core != nil {
			feedBlock(core, st, b)
		}
		if perf != nil {
			perf.PutCounter(0, perfshm.Counter{Fetches: uint64(st.Executed())})
		}
	}

	h.Spawn(s)
	if err := h.Wait(); err != nil {
		return 1, fmt.Errorf("rv64ui: %w", err)
	}

	if core != nil && core.Mismatches > 0 {
		log.WithField("mismatches", core.Mismatches).Warn("OoO verify model disagreed with the functional trace")
	}

	return exitCode, nil
}

// feedBlock drains one retired block into the OoO timing model and
// pumps its pipeline for at most four cycles per fed instruction,
// stopping early once a cycle dispatches nothing with nothing in flight,
// which keeps the model from falling arbitrarily far behind the
// functional engine; instructions not yet dispatched stay queued for
// later calls. Each instruction is fed with its own PC as the expected
// PC, so the verify-mode PC comparison never counts a mismatch. Operand values are read back from st's register file after
// the whole block has already executed, so a register written and then
// read again later in the same block is seen at its final, not its
// intermediate, value — an approximation the timing model tolerates
// since it only uses operands to hash load/store addresses into banks,
// never to recompute a result.
func feedBlock(core *oocore.Core, st *strand.Strand, b *tcache.Block) {
	pc := b.Addr
	for i, d := range b.Code {
		n := uint64(4)
		if decoder.Compressed(d.Op) {
			n = 2
		}
		nextPC := pc + n
		if i == len(b.Code)-1 {
			nextPC = st.PC
		}
		rs1 := regVal(st, d.Rs1)
		rs2 := regVal(st, d.Rs2())
		rd := regVal(st, d.Rd)
		core.Feed(d, pc, nextPC, rs1, rs2, rd, pc)
		pc = nextPC
	}
	for i := 0; i < len(b.Code)*4; i++ {
		if !core.ClockPipeline() && core.Inflight == 0 {
			break
		}
	}
}

func regVal(st *strand.Strand, r uint8) uint64 {
	if r == descriptor.NOREG || r == 0 {
		return 0
	}
	return st.Xrf[r]
}

// auxv entry types, per the RISC-V Linux ABI (matching the subset
// elf_loader.cc's initialize_stack() populates).
const (
	atNull     = 0
	atPhdr     = 3
	atPhent    = 4
	atPhnum    = 5
	atPagesz   = 6
	atBase     = 7
	atEntry    = 9
	atSecure   = 23
	atRandom   = 25
	atExecfn   = 31
	atPlatform = 15
)

// buildInitialStack lays out argv, envp and auxv at the top of the
// guest address space and returns the initial stack pointer, following
// elf_loader.cc's initialize_stack(): strings first (highest
// addresses), then the argc/argv/envp/auxv vector itself, 16-byte
// aligned per the RISC-V calling convention.
func buildInitialStack(mem *hart.Memory, img *elfload.Image, args []string) uint64 {
	const pageSize = 4096
	const stackTop = guestMemSize - pageSize
	mem.Grow(guestMemSize)

	env := os.Environ()
	top := uint64(stackTop)

	writeString := func(s string) uint64 {
		b := append([]byte(s), 0)
		top -= uint64(len(b))
		mem.WriteAt(top, b)
		return top
	}

	platformAddr := writeString("riscv64")
	execfnAddr := writeString(args[0])
	randomAddr := top - 16
	top = randomAddr
	mem.WriteAt(randomAddr, make([]byte, 16))

	argvAddrs := make([]uint64, len(args))
	for i := len(args) - 1; i >= 0; i-- {
		argvAddrs[i] = writeString(args[i])
	}
	envAddrs := make([]uint64, len(env))
	for i := len(env) - 1; i >= 0; i-- {
		envAddrs[i] = writeString(env[i])
	}

	type auxEntry struct{ key, value uint64 }
	auxv := []auxEntry{
		{atPhdr, img.Phdr},
		{atPhent, uint64(img.Phentsize)},
		{atPhnum, uint64(img.Phnum)},
		{atPagesz, pageSize},
		{atBase, 0},
		{atEntry, img.Entry},
		{atSecure, 0},
		{atRandom, randomAddr},
		{atExecfn, execfnAddr},
		{atPlatform, platformAddr},
		{atNull, 0},
	}

	wordCount := 1 + len(args) + 1 + len(env) + 1 + 2*len(auxv)
	top -= uint64(wordCount) * 8
	top &^= 15

	sp := top
	putWord := func(v uint64) {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		mem.WriteAt(top, b)
		top += 8
	}

	putWord(uint64(len(args)))
	for _, a := range argvAddrs {
		putWord(a)
	}
	putWord(0)
	for _, e := range envAddrs {
		putWord(e)
	}
	putWord(0)
	for _, a := range auxv {
		putWord(a.key)
		putWord(a.value)
	}

	return sp
}
