package bcm283x

import "time"

// PWM register offsets (words).
const (
	pwmCtl  = 0x00 / 4
	pwmSta  = 0x04 / 4
	pwmRng1 = 0x10 / 4
	pwmDat1 = 0x14 / 4
	pwmRng2 = 0x20 / 4
	pwmDat2 = 0x24 / 4
)

// Control register bits for channel 1. The channel 2 bits sit 8 positions
// higher.
const (
	pwmPWEN1 = 0
	pwmPOLA1 = 4
	pwmMSEN1 = 7
	pwmPWEN2 = 8
)

// Status register bits.
const (
	pwmWErr = 2
	pwmRErr = 3
	pwmBErr = 8
	pwmSta1 = 9
	pwmSta2 = 10
)

// PWM drives the two-channel pulse generator. The generator's clock comes
// from the shared divider (see ClockGenerator); the duty and range setters
// are plain register stores.
//
// Channels are addressed by the GPIO line carrying them: GPIO 12 and 18
// drive channel 1, GPIO 13 and 19 channel 2.
type PWM struct {
	p  *Peripherals
	hw *Window
}

// PWM returns the pulse generator handle.
func (p *Peripherals) PWM() *PWM {
	return &PWM{p: p, hw: p.pwm}
}

// pwmChannel maps a GPIO line to its channel and alternate function.
func pwmChannel(num uint8) (ch uint8, fn PinFunc, ok bool) {
	switch num {
	case 12:
		return 1, FuncAlt0, true
	case 18:
		return 1, FuncAlt5, true
	case 13:
		return 2, FuncAlt0, true
	case 19:
		return 2, FuncAlt5, true
	}
	return 0, 0, false
}

// EnablePin multiplexes pin into its PWM function.
func (pwm *PWM) EnablePin(pin Pin) error {
	if !pwm.hw.valid() {
		return ErrMissingWindow
	}
	_, fn, ok := pwmChannel(pin.num)
	if !ok {
		return ErrNotPWMCapable
	}
	pin.SetFunction(fn)
	return nil
}

// ReleasePin returns pin to a plain input.
func (pwm *PWM) ReleasePin(pin Pin) error {
	if _, _, ok := pwmChannel(pin.num); !ok {
		return ErrNotPWMCapable
	}
	pin.SetFunction(FuncInput)
	return nil
}

// ReleaseAllPins returns every PWM-capable pin to a plain input, with a
// settle wait between pins.
func (pwm *PWM) ReleaseAllPins() {
	for _, num := range [...]uint8{18, 13, 12, 19} {
		pwm.p.Pin(num).SetFunction(FuncInput)
		pwm.p.sleep(10 * time.Millisecond)
	}
}

// ctrl flips one control bit for the channel carrying pin.
func (pwm *PWM) ctrl(pin Pin, pos1 uint8, on bool) error {
	if !pwm.hw.valid() {
		return ErrMissingWindow
	}
	ch, _, ok := pwmChannel(pin.num)
	if !ok {
		return ErrNotPWMCapable
	}
	pos := pos1
	if ch == 2 {
		pos += 8
	}
	if on {
		pwm.hw.SetBit(pwmCtl, pos)
	} else {
		pwm.hw.ClearBit(pwmCtl, pos)
	}
	pwm.p.sleep(10 * time.Microsecond)
	return nil
}

// Enable starts or stops the channel carrying pin.
func (pwm *PWM) Enable(pin Pin, on bool) error {
	return pwm.ctrl(pin, pwmPWEN1, on)
}

// SetMarkSpace selects mark/space output instead of the default distributed
// duty algorithm.
func (pwm *PWM) SetMarkSpace(pin Pin, on bool) error {
	return pwm.ctrl(pin, pwmMSEN1, on)
}

// SetPolarity inverts the channel's duty cycle.
func (pwm *PWM) SetPolarity(pin Pin, reversed bool) error {
	return pwm.ctrl(pin, pwmPOLA1, reversed)
}

// SetRange programs the period of the channel carrying pin.
func (pwm *PWM) SetRange(pin Pin, rng uint32) error {
	if !pwm.hw.valid() {
		return ErrMissingWindow
	}
	ch, _, ok := pwmChannel(pin.num)
	if !ok {
		return ErrNotPWMCapable
	}
	if ch == 1 {
		pwm.hw.Set(pwmRng1, rng)
	} else {
		pwm.hw.Set(pwmRng2, rng)
	}
	pwm.clearStatus()
	return nil
}

// SetData programs the pulse width of the channel carrying pin.
func (pwm *PWM) SetData(pin Pin, data uint32) error {
	if !pwm.hw.valid() {
		return ErrMissingWindow
	}
	ch, _, ok := pwmChannel(pin.num)
	if !ok {
		return ErrNotPWMCapable
	}
	if ch == 1 {
		pwm.hw.Set(pwmDat1, data)
	} else {
		pwm.hw.Set(pwmDat2, data)
	}
	pwm.clearStatus()
	return nil
}

// SetClockDivisor reprograms the shared divider feeding both channels.
func (pwm *PWM) SetClockDivisor(div uint32) error {
	return pwm.p.Clock().SetDivisor(div)
}

// clearStatus acknowledges the sticky FIFO and bus error flags while the
// channel state flags show the generator idle. The error bits clear on a
// written one.
func (pwm *PWM) clearStatus() {
	sta1 := pwm.hw.BitIsSet(pwmSta, pwmSta1)
	sta2 := pwm.hw.BitIsSet(pwmSta, pwmSta2)
	if !sta1 || !sta2 {
		for _, pos := range [...]uint8{pwmRErr, pwmWErr, pwmBErr} {
			if pwm.hw.BitIsSet(pwmSta, pos) {
				pwm.hw.SetBit(pwmSta, pos)
			}
		}
	}
	pwm.p.sleep(10 * time.Microsecond)
}
