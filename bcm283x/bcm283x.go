// Package bcm283x provides direct register-level control of the GPIO,
// clock-manager, PWM and serial bus peripherals on BCM283x SoCs (the
// Raspberry Pi 1, 2, 3 and Zero families).
//
// All hardware state is reached through an explicit Peripherals value; the
// package keeps no global register pointers. Mapping the physical register
// pages into the process is the caller's job (the parent rpi package does it
// via /dev/mem); tests substitute plain in-memory windows.
//
// The package assumes a single synchronous actor drives the hardware.
// Nothing here locks, retries or runs in the background: every operation is
// a plain sequence of register accesses, hardware settle waits and status
// polling loops.
package bcm283x

import (
	"errors"
	"time"
)

// Errors returned by peripheral operations. Transaction-level failures are
// ordinary return values; the caller decides whether to retry the whole
// transaction.
var (
	ErrMissingWindow       = errors.New("bcm283x: peripheral window not mapped")
	ErrInvalidMode         = errors.New("bcm283x: invalid mode")
	ErrInvalidPull         = errors.New("bcm283x: invalid pull setting")
	ErrInvalidDivisor      = errors.New("bcm283x: clock divisor out of range")
	ErrInvalidChipSelect   = errors.New("bcm283x: invalid chip select")
	ErrNotPWMCapable       = errors.New("bcm283x: pin has no PWM function")
	ErrClockBusy           = errors.New("bcm283x: clock generator stuck busy")
	ErrNotAcknowledged     = errors.New("bcm283x: slave did not acknowledge")
	ErrClockStretchTimeout = errors.New("bcm283x: clock stretch timeout")
	ErrIncompleteTransfer  = errors.New("bcm283x: transfer did not complete")
	ErrTransferNotActive   = errors.New("bcm283x: no transfer in progress")
	ErrBufferMismatch      = errors.New("bcm283x: buffer lengths differ")
	ErrTxTooLong           = errors.New("bcm283x: write exceeds bus FIFO depth")
	ErrTimeout             = errors.New("bcm283x: polling deadline expired")
)

const badBusIndex = "bcm283x: invalid bus index"

// DefaultCoreFrequency is the core clock used for bus baud-rate divider
// calculations when PeripheralConfig does not say otherwise. Pi 1 and 2
// boards run the core at 250 MHz, Pi 3 at 400 MHz.
const DefaultCoreFrequency = 250_000_000

// PeripheralConfig hands New one register window per peripheral. The GPIO
// window is mandatory; any other window may be left nil, in which case the
// operations needing it report ErrMissingWindow.
type PeripheralConfig struct {
	SysTimer *Window
	ClockMgr *Window
	GPIO     *Window
	PWM      *Window
	SPI0     *Window
	BSC0     *Window
	BSC1     *Window

	// CoreFreq is the core clock in Hz. Zero selects DefaultCoreFrequency.
	CoreFreq uint32
}

// Peripherals owns the mapped register windows of one SoC and is the root
// of every pin, clock and bus handle. The zero value is not usable; call New.
type Peripherals struct {
	st   *Window
	cm   *Window
	gpio *Window
	pwm  *Window
	spi0 *Window
	bsc  [2]*Window

	coreFreq uint32

	// sleep performs the fixed-duration settle waits the hardware mandates.
	// Tests swap it out to record wait ordering.
	sleep func(time.Duration)
}

// New validates the windows and returns the register access layer. A nil
// GPIO window is irrecoverable: nothing can be driven without the pin
// multiplexer, so the caller should treat the error as fatal.
func New(cfg PeripheralConfig) (*Peripherals, error) {
	if !cfg.GPIO.valid() {
		return nil, ErrMissingWindow
	}
	p := &Peripherals{
		st:       cfg.SysTimer,
		cm:       cfg.ClockMgr,
		gpio:     cfg.GPIO,
		pwm:      cfg.PWM,
		spi0:     cfg.SPI0,
		bsc:      [2]*Window{cfg.BSC0, cfg.BSC1},
		coreFreq: cfg.CoreFreq,
		sleep:    time.Sleep,
	}
	if p.coreFreq == 0 {
		p.coreFreq = DefaultCoreFrequency
	}
	return p, nil
}

// CoreFrequency returns the core clock the bus divider math runs on.
func (p *Peripherals) CoreFrequency() uint32 { return p.coreFreq }
