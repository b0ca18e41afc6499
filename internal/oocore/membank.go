package oocore

// Memory geometry constants, ported verbatim from
// _examples/original_source/nsosim/memory.h.
const (
	memWordSize = 8
	memChannels = 1
	memBanks    = 8
)

func memChannel(addr uint64) int {
	return int((addr / memWordSize) % memChannels)
}

func memBank(addr uint64) int {
	return int((addr / memChannels / memWordSize) % memBanks)
}

// Bank models one memory bank's occupancy, grounded on memory.h's
// Memory_t: a bank is busy until Finish, then clockMemorySystem()
// (Core.clockBanks in this port) frees it for the next request.
type Bank struct {
	Active bool
	Finish int64
	Owner  *History
}

func (b *Bank) Activate(finish int64, h *History) {
	b.Active = true
	b.Finish = finish
	b.Owner = h
}

func (b *Bank) Deactivate() {
	b.Active = false
	b.Owner = nil
}

// Port holds at most one pending memory request, the structure implied
// by core.cc's clock_port()/port.request()/port.active() calls; nsosim
// never retrieved a standalone Port_t header, so its shape here is
// inferred directly from that call pattern.
type Port struct {
	active  bool
	addr    uint64
	latency int
	owner   *History
}

func (p *Port) Active() bool       { return p.active }
func (p *Port) Addr() uint64       { return p.addr }
func (p *Port) Latency() int       { return p.latency }
func (p *Port) History() *History  { return p.owner }
func (p *Port) Deactivate()        { p.active = false; p.owner = nil }
func (p *Port) Request(addr uint64, latency int, h *History) {
	p.active = true
	p.addr = addr
	p.latency = latency
	p.owner = h
}

// BankGrid is the [channels][banks] array clock_port() indexes into.
type BankGrid [memChannels][memBanks]Bank

// Clock retires any bank whose request finishes this cycle, grounded on
// memory.cc's clock_memory_system().
func (g *BankGrid) Clock(cycle int64) {
	for j := range g {
		for k := range g[j] {
			b := &g[j][k]
			if b.Active && b.Finish == cycle {
				b.Deactivate()
			}
		}
	}
}
