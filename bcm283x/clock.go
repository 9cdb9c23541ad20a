package bcm283x

import "time"

// Clock-manager register offsets (words). These are the GP2 generator
// registers, the divider feeding the PWM block.
const (
	cmCtl = 0x28
	cmDiv = 0x29
)

// Control register fields. Every store to the clock manager must carry the
// password in the top byte or the hardware ignores it.
const (
	cmPassword = 0x5A000000
	cmSrcMask  = 0xF
	cmEnable   = 4
	cmKill     = 5
	cmBusy     = 7
	cmDivShift = 12
	cmDivMax   = 4096
)

// ClockSource selects the oscillator feeding the generator.
type ClockSource uint8

const (
	SourceOscillator ClockSource = 0x1 // 19.2 MHz crystal
	SourcePLLD       ClockSource = 0x6 // PLLD
)

// ClockGenerator reprograms the shared clock divider. The generator is
// running hardware: its divider may only be written while the busy flag
// reads false, so SetDivisor walks the stop/kill/reprogram sequence rather
// than storing blindly.
type ClockGenerator struct {
	p  *Peripherals
	hw *Window
}

// Clock returns the clock generator handle.
func (p *Peripherals) Clock() *ClockGenerator {
	return &ClockGenerator{p: p, hw: p.cm}
}

// Busy reports whether the generator is currently running.
func (c *ClockGenerator) Busy() bool {
	return c.hw.BitIsSet(cmCtl, cmBusy)
}

// Source returns the 4-bit source field of the control register.
func (c *ClockGenerator) Source() ClockSource {
	return ClockSource(c.hw.Get(cmCtl) & cmSrcMask)
}

// Divisor reads back the integer divider field.
func (c *ClockGenerator) Divisor() uint32 {
	return c.hw.Get(cmDiv) >> cmDivShift & 0xFFF
}

func (c *ClockGenerator) enable(src ClockSource) {
	c.hw.Set(cmCtl, cmPassword|1<<cmEnable|uint32(src))
}

// SetDivisor stops the generator, writes the new integer divisor and
// restarts it from the source that was active before the call (falling back
// to the crystal when the source field holds an unknown value).
//
// Divisors outside (0, 4096) leave the divider register untouched: the
// previous configuration is re-enabled and ErrInvalidDivisor returned.
func (c *ClockGenerator) SetDivisor(div uint32) error {
	if !c.hw.valid() {
		return ErrMissingWindow
	}
	src := c.Source()
	if src != SourceOscillator && src != SourcePLLD {
		src = SourceOscillator
	}
	if div == 0 || div >= cmDivMax {
		c.enable(src)
		return ErrInvalidDivisor
	}

	// Park the consumer while the generator is reprogrammed.
	if c.p.pwm.valid() {
		c.p.pwm.ClearBit(pwmCtl, pwmPWEN1)
		c.p.pwm.ClearBit(pwmCtl, pwmPWEN2)
	}
	c.p.sleep(10 * time.Microsecond)

	// Stop the running source. The stop command must name the source that is
	// actually active.
	switch c.Source() {
	case SourceOscillator:
		c.hw.Set(cmCtl, cmPassword|uint32(SourceOscillator))
	case SourcePLLD:
		c.hw.Set(cmCtl, cmPassword|uint32(SourcePLLD))
	}
	c.p.sleep(20 * time.Microsecond)

	// A generator that ignored the stop gets killed.
	if c.Busy() {
		c.hw.Set(cmCtl, cmPassword|1<<cmKill)
		c.p.sleep(100 * time.Microsecond)
	}
	if c.Busy() {
		c.enable(src)
		return ErrClockBusy
	}

	c.hw.Set(cmDiv, cmPassword|div<<cmDivShift)
	c.p.sleep(20 * time.Microsecond)

	c.enable(src)
	c.p.sleep(10 * time.Microsecond)
	return nil
}
