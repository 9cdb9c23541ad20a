package bcm283x

import (
	"time"

	"tinygo.org/x/drivers"
)

// SPI0 register offsets (words).
const (
	spiCS   = 0x00 / 4
	spiFIFO = 0x04 / 4
	spiCLK  = 0x08 / 4
)

// CS register fields.
const (
	spiCSSelMask = 0x3 // two-bit chip select field at bit 0
	spiCPHA      = 2
	spiCPOL      = 3
	spiClearPos  = 4 // two-bit FIFO clear field, one-shot
	spiTA        = 7 // transfer active
	spiLEN       = 13
	spiDone      = 16
	spiRxD       = 17 // receive FIFO holds at least one byte
	spiTxD       = 18 // transmit FIFO has space for at least one byte
	spiCSPol0    = 21 // per-chip polarity bits 21..23
)

// SPI drives the four-wire bus controller: full-duplex byte streams with
// explicit chip select and clock mode, no address phase. Obtain the engine
// from Peripherals.SPI0, call Configure before the first transfer and Close
// when done with the bus.
type SPI struct {
	p  *Peripherals
	hw *Window
	// CE1, CE0, MISO, MOSI and SCLK, on GPIO 7 through 11.
	pins [5]Pin
	dl   deadliner
}

// SPI0 returns the four-wire engine.
func (p *Peripherals) SPI0() *SPI {
	s := &SPI{p: p, hw: p.spi0}
	for n := uint8(0); n < 5; n++ {
		s.pins[n] = p.Pin(7 + n)
	}
	return s
}

// SetTimeout bounds every FIFO polling loop on this engine. The default is
// no bound, matching the hardware-faithful busy wait.
func (s *SPI) SetTimeout(d time.Duration) { s.dl.setTimeout(d) }

// Configure claims the five bus pins, forces standard controller mode and
// flushes both FIFOs.
func (s *SPI) Configure() error {
	if !s.hw.valid() {
		return ErrMissingWindow
	}
	for _, pin := range s.pins {
		pin.SetFunction(FuncAlt0)
	}
	s.p.sleep(10 * time.Millisecond)
	s.hw.ClearBit(spiCS, spiLEN)
	s.clearFIFOs()
	return nil
}

// Close flushes the FIFOs and releases all five pins back to inputs.
// Closing an engine that was never configured is a no-op.
func (s *SPI) Close() {
	if !s.hw.valid() {
		return
	}
	s.clearFIFOs()
	for _, pin := range s.pins {
		pin.SetFunction(FuncInput)
	}
}

func (s *SPI) clearFIFOs() {
	s.hw.SetBits(spiCS, 3<<spiClearPos)
}

// SetClockDivider programs the SCLK divider off the core clock.
func (s *SPI) SetClockDivider(div uint16) error {
	if !s.hw.valid() {
		return ErrMissingWindow
	}
	s.hw.Set(spiCLK, uint32(div))
	return nil
}

// SetMode sets clock phase and polarity from the usual mode numbering.
// The two bits are independent; the four modes are distinct combinations,
// not a linear encoding.
func (s *SPI) SetMode(mode uint8) error {
	if !s.hw.valid() {
		return ErrMissingWindow
	}
	switch mode {
	case 0:
		s.hw.ClearBit(spiCS, spiCPHA)
		s.hw.ClearBit(spiCS, spiCPOL)
	case 1:
		s.hw.SetBit(spiCS, spiCPHA)
		s.hw.ClearBit(spiCS, spiCPOL)
	case 2:
		s.hw.ClearBit(spiCS, spiCPHA)
		s.hw.SetBit(spiCS, spiCPOL)
	case 3:
		s.hw.SetBit(spiCS, spiCPHA)
		s.hw.SetBit(spiCS, spiCPOL)
	default:
		return ErrInvalidMode
	}
	return nil
}

// ChipSelect routes the transfer to chip 0, 1 or 2. Value 3 is reserved by
// the hardware and refused.
func (s *SPI) ChipSelect(cs uint8) error {
	if !s.hw.valid() {
		return ErrMissingWindow
	}
	if cs > 2 {
		return ErrInvalidChipSelect
	}
	s.hw.ReplaceBits(spiCS, uint32(cs), spiCSSelMask, 0)
	return nil
}

// SetChipSelectPolarity sets one chip's select line active-high or
// active-low. Each chip has its own polarity bit; the other two are left
// alone.
func (s *SPI) SetChipSelectPolarity(cs uint8, activeHigh bool) error {
	if !s.hw.valid() {
		return ErrMissingWindow
	}
	if cs > 2 {
		return ErrInvalidChipSelect
	}
	pos := uint8(spiCSPol0) + cs
	if activeHigh {
		s.hw.SetBit(spiCS, pos)
	} else {
		s.hw.ClearBit(spiCS, pos)
	}
	return nil
}

// Tx clocks len bytes through the bus in full duplex: outgoing bytes from w,
// incoming bytes into r. A nil w sends zeros; a nil r discards the incoming
// stream; when both are given their lengths must match. It implements the
// drivers.SPI interface.
func (s *SPI) Tx(w, r []byte) error {
	if !s.hw.valid() {
		return ErrMissingWindow
	}
	if len(w) != 0 && len(r) != 0 && len(w) != len(r) {
		return ErrBufferMismatch
	}
	n := len(w)
	if len(r) > n {
		n = len(r)
	}

	s.clearFIFOs()
	s.hw.SetBit(spiCS, spiTA)

	dl := s.dl.newDeadline()
	tx, rx := 0, 0
	for tx < n || rx < n {
		progress := false
		for tx < n && s.hw.BitIsSet(spiCS, spiTxD) {
			var b byte
			if tx < len(w) {
				b = w[tx]
			}
			s.hw.Set(spiFIFO, uint32(b))
			tx++
			progress = true
		}
		for rx < n && s.hw.BitIsSet(spiCS, spiRxD) {
			b := byte(s.hw.Get(spiFIFO))
			if rx < len(r) {
				r[rx] = b
			}
			rx++
			progress = true
		}
		if dl.expired() {
			s.hw.ClearBit(spiCS, spiTA)
			return ErrTimeout
		}
		if !progress {
			gosched()
		}
	}

	s.hw.ClearBit(spiCS, spiTA)
	if s.hw.BitIsSet(spiCS, spiDone) {
		return ErrIncompleteTransfer
	}
	return nil
}

// Transfer clocks a single byte out and returns the byte that came back.
func (s *SPI) Transfer(b byte) (byte, error) {
	w := [1]byte{b}
	var r [1]byte
	err := s.Tx(w[:], r[:])
	return r[0], err
}

// Write pushes p through the transmit FIFO and leaves the transfer active so
// a following Read can collect the peer's response. Protocols that need true
// duplex exchange should use Tx instead.
func (s *SPI) Write(p []byte) error {
	if !s.hw.valid() {
		return ErrMissingWindow
	}
	s.clearFIFOs()
	s.hw.SetBit(spiCS, spiTA)

	dl := s.dl.newDeadline()
	n := 0
	for n < len(p) {
		if s.hw.BitIsSet(spiCS, spiTxD) {
			s.hw.Set(spiFIFO, uint32(p[n]))
			n++
			continue
		}
		if dl.expired() {
			return ErrTimeout
		}
		gosched()
	}
	return nil
}

// Read drains the receive FIFO of a transfer started by a prior Write and
// ends it. Calling Read without an active transfer is an error.
func (s *SPI) Read(p []byte) error {
	if !s.hw.valid() {
		return ErrMissingWindow
	}
	if !s.hw.BitIsSet(spiCS, spiTA) {
		return ErrTransferNotActive
	}
	dl := s.dl.newDeadline()
	n := 0
	for n < len(p) {
		if s.hw.BitIsSet(spiCS, spiRxD) {
			p[n] = byte(s.hw.Get(spiFIFO))
			n++
			continue
		}
		if dl.expired() {
			return ErrTimeout
		}
		gosched()
	}
	s.hw.ClearBit(spiCS, spiTA)
	return nil
}

var _ drivers.SPI = (*SPI)(nil)
