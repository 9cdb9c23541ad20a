package bcm283x

// System timer register offsets (words).
const (
	stCLO = 0x04 / 4
	stCHI = 0x08 / 4
)

// Micros reads the free-running 64-bit microsecond counter. The two halves
// are separate registers, so the high word is read before and after the low
// word and the read retried when a rollover slipped in between. Returns 0 if
// the system timer window was not mapped.
func (p *Peripherals) Micros() uint64 {
	if !p.st.valid() {
		return 0
	}
	for {
		hi := p.st.Get(stCHI)
		lo := p.st.Get(stCLO)
		if p.st.Get(stCHI) == hi {
			return uint64(hi)<<32 | uint64(lo)
		}
	}
}
