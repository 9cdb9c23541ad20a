package bcm283x

import (
	"time"

	"tinygo.org/x/drivers"
)

// BSC register offsets (words).
const (
	bscC    = 0x00 / 4
	bscS    = 0x04 / 4
	bscDLEN = 0x08 / 4
	bscA    = 0x0C / 4
	bscFIFO = 0x10 / 4
	bscDIV  = 0x14 / 4
	bscDEL  = 0x18 / 4
)

// Control register bits.
const (
	bscCRead     = 0 // 1 = read transfer, 0 = write transfer
	bscCClearPos = 4 // two-bit FIFO clear field, one-shot
	bscCStart    = 7
	bscCEnable   = 15
)

// Status register bits. Done, Err and ClkT are sticky and clear on a
// written one.
const (
	bscSTA   = 0
	bscSDone = 1
	bscSTxW  = 2 // transmit FIFO has space for at least one byte
	bscSRxD  = 5 // receive FIFO holds at least one byte
	bscSErr  = 8 // address or data byte not acknowledged
	bscSClkT = 9 // slave held the clock beyond the stretch limit
)

// i2cFIFODepth bounds one transfer cycle. The controller FIFO holds sixteen
// bytes; Write drops anything beyond it.
const i2cFIFODepth = 16

// I2C drives one of the two-wire bus controllers. Transfers are FIFO-fed
// with the CPU polling the status register; there is no interrupt or DMA
// path. Obtain an engine from Peripherals.I2C, call Configure before the
// first transfer and Close when done with the bus.
type I2C struct {
	p        *Peripherals
	hw       *Window
	sda, scl Pin
	dl       deadliner
}

// I2C returns the two-wire engine for bus 0 (GPIO 0/1) or bus 1 (GPIO 2/3).
// Bus 1 is the one routed to the expansion header on all supported boards.
func (p *Peripherals) I2C(bus uint8) *I2C {
	if bus > 1 {
		panic(badBusIndex)
	}
	return &I2C{
		p:   p,
		hw:  p.bsc[bus],
		sda: p.Pin(2 * bus),
		scl: p.Pin(2*bus + 1),
	}
}

// SetTimeout bounds every status polling loop on this engine. Without a
// timeout a bus head that never completes stalls the loop forever; callers
// talking to hardware that may not respond should always set one.
func (i *I2C) SetTimeout(d time.Duration) { i.dl.setTimeout(d) }

// Configure claims the bus pins into their bus function and enables the
// controller. It fails with ErrMissingWindow if the controller's register
// page was never mapped.
func (i *I2C) Configure() error {
	if !i.hw.valid() {
		return ErrMissingWindow
	}
	i.sda.SetFunction(FuncAlt0)
	i.scl.SetFunction(FuncAlt0)
	i.p.sleep(10 * time.Millisecond)
	i.hw.SetBit(bscC, bscCEnable)
	return nil
}

// Close disables the controller and releases both pins back to inputs.
// Closing an engine that was never configured is a no-op.
func (i *I2C) Close() {
	if !i.hw.valid() {
		return
	}
	i.clearTransferState()
	i.hw.ClearBit(bscC, bscCEnable)
	i.sda.SetFunction(FuncInput)
	i.scl.SetFunction(FuncInput)
}

// clearTransferState flushes the FIFO and acknowledges the sticky error and
// done bits left over from the previous cycle.
func (i *I2C) clearTransferState() {
	i.hw.SetBits(bscC, 3<<bscCClearPos)
	i.hw.SetBit(bscS, bscSClkT)
	i.hw.SetBit(bscS, bscSErr)
	i.hw.SetBit(bscS, bscSDone)
}

// SetClockDivider programs the SCL divider off the core clock and a
// one-cycle rising/falling edge delay. The edge delays must stay under half
// the divider or the controller malfunctions.
func (i *I2C) SetClockDivider(div uint16) error {
	if !i.hw.valid() {
		return ErrMissingWindow
	}
	i.hw.Set(bscDIV, uint32(div))
	const fedl, redl = 1, 1
	if limit := uint32(div) / 2; fedl < limit && redl < limit {
		i.hw.Set(bscDEL, fedl<<16|redl)
	}
	return nil
}

// SetBaudRate derives the clock divider for the requested transfer rate in
// bits per second.
func (i *I2C) SetBaudRate(baud uint32) error {
	if baud == 0 {
		return ErrInvalidDivisor
	}
	return i.SetClockDivider(uint16(i.p.coreFreq / baud))
}

// SelectSlave latches the peer address and probes it with a one-byte write
// so an absent or deaf device reports ErrNotAcknowledged immediately instead
// of on the first real transfer.
func (i *I2C) SelectSlave(addr uint8) error {
	if !i.hw.valid() {
		return ErrMissingWindow
	}
	i.hw.Set(bscA, uint32(addr))
	_, err := i.Write([]byte{0x01})
	return err
}

// Write sends p to the selected slave in one transfer cycle and returns the
// number of bytes handed to the FIFO. One cycle moves at most i2cFIFODepth
// bytes; the excess is dropped and visible to the caller as n < len(p).
func (i *I2C) Write(p []byte) (int, error) {
	if !i.hw.valid() {
		return 0, ErrMissingWindow
	}
	n := len(p)
	if n > i2cFIFODepth {
		n = i2cFIFODepth
	}
	i.clearTransferState()
	i.hw.Set(bscDLEN, uint32(n))
	i.hw.ClearBit(bscC, bscCRead)
	i.hw.SetBit(bscC, bscCStart)

	dl := i.dl.newDeadline()
	sent := 0
	for !i.hw.BitIsSet(bscS, bscSDone) {
		for sent < n && i.hw.BitIsSet(bscS, bscSTxW) {
			i.hw.Set(bscFIFO, uint32(p[sent]))
			sent++
		}
		if dl.expired() {
			return sent, ErrTimeout
		}
		gosched()
	}
	return sent, i.classify(sent, n)
}

// Read fills p from the selected slave in one transfer cycle and returns the
// number of bytes collected.
func (i *I2C) Read(p []byte) (int, error) {
	if !i.hw.valid() {
		return 0, ErrMissingWindow
	}
	i.clearTransferState()
	i.hw.Set(bscDLEN, uint32(len(p)))
	i.hw.SetBit(bscC, bscCRead)
	i.hw.SetBit(bscC, bscCStart)

	dl := i.dl.newDeadline()
	got := 0
	for !i.hw.BitIsSet(bscS, bscSDone) {
		for got < len(p) && i.hw.BitIsSet(bscS, bscSRxD) {
			p[got] = byte(i.hw.Get(bscFIFO))
			got++
		}
		if dl.expired() {
			return got, ErrTimeout
		}
		gosched()
	}
	// Bytes that arrived with the final clocks are still in the FIFO.
	for got < len(p) && i.hw.BitIsSet(bscS, bscSRxD) {
		p[got] = byte(i.hw.Get(bscFIFO))
		got++
	}
	return got, i.classify(got, len(p))
}

// ReadByte runs a one-byte read cycle.
func (i *I2C) ReadByte() (byte, error) {
	var buf [1]byte
	_, err := i.Read(buf[:])
	return buf[0], err
}

// classify decodes the status register after a transfer cycle. A missing
// acknowledge always wins over a simultaneous clock-stretch timeout, and
// both win over a short byte count. On success the done bit is acknowledged.
func (i *I2C) classify(moved, want int) error {
	switch {
	case i.hw.BitIsSet(bscS, bscSErr):
		return ErrNotAcknowledged
	case i.hw.BitIsSet(bscS, bscSClkT):
		return ErrClockStretchTimeout
	case moved < want:
		return ErrIncompleteTransfer
	}
	if i.hw.BitIsSet(bscS, bscSDone) && !i.hw.BitIsSet(bscS, bscSTA) {
		i.hw.SetBit(bscS, bscSDone)
		return nil
	}
	return ErrIncompleteTransfer
}

// Tx addresses addr, writes w if non-empty, then reads into r if non-empty.
// It implements the drivers.I2C interface so existing device drivers can run
// on this bus. Writes longer than one FIFO cycle are refused rather than
// silently split into multiple start conditions.
func (i *I2C) Tx(addr uint16, w, r []byte) error {
	if !i.hw.valid() {
		return ErrMissingWindow
	}
	if len(w) > i2cFIFODepth {
		return ErrTxTooLong
	}
	i.hw.Set(bscA, uint32(addr))
	if len(w) > 0 {
		if _, err := i.Write(w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		if _, err := i.Read(r); err != nil {
			return err
		}
	}
	return nil
}

// ReadRegister writes the register number and reads buf in one addressed
// exchange.
func (i *I2C) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return i.Tx(uint16(addr), []byte{reg}, buf)
}

// WriteRegister writes the register number followed by buf.
func (i *I2C) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	if len(buf)+1 > i2cFIFODepth {
		return ErrTxTooLong
	}
	w := make([]byte, 0, len(buf)+1)
	w = append(w, reg)
	w = append(w, buf...)
	return i.Tx(uint16(addr), w, nil)
}

var _ drivers.I2C = (*I2C)(nil)
