package bcm283x

import "time"

// GPIO register offsets, in 32-bit words from the window base. The set,
// clear, level, event and pull-clock registers come in banks of two covering
// pins 0-31 and 32-53.
const (
	gpfsel0   = 0x00 / 4
	gpset0    = 0x1C / 4
	gpclr0    = 0x28 / 4
	gplev0    = 0x34 / 4
	gpeds0    = 0x40 / 4
	gpren0    = 0x4C / 4
	gpfen0    = 0x58 / 4
	gphen0    = 0x64 / 4
	gplen0    = 0x70 / 4
	gparen0   = 0x7C / 4
	gpafen0   = 0x88 / 4
	gppud     = 0x94 / 4
	gppudclk0 = 0x98 / 4
)

// NumPins is the number of multiplexed GPIO lines on the SoC.
const NumPins = 54

const badPinNumber = "bcm283x: pin number out of range"

// PinFunc is the 3-bit function-select code of a pin. The alternate
// functions are not encoded in numeric order; these constants carry the
// values the hardware expects.
type PinFunc uint8

const (
	FuncInput  PinFunc = 0x0
	FuncOutput PinFunc = 0x1
	FuncAlt0   PinFunc = 0x4
	FuncAlt1   PinFunc = 0x5
	FuncAlt2   PinFunc = 0x6
	FuncAlt3   PinFunc = 0x7
	FuncAlt4   PinFunc = 0x3
	FuncAlt5   PinFunc = 0x2
)

// PinMode selects the direction of a pin in Configure.
type PinMode uint8

const (
	PinInput PinMode = iota
	PinOutput
)

// PinConfig holds the Configure settings for a pin.
type PinConfig struct {
	Mode PinMode
}

// Pull selects the state of a pin's internal pull resistor.
type Pull uint8

const (
	PullOff Pull = iota
	PullDown
	PullUp
)

// Event is one of the six independently enableable input event detectors.
type Event uint8

const (
	EventRising Event = iota
	EventFalling
	EventHigh
	EventLow
	EventAsyncRising
	EventAsyncFalling
	numEvents
)

// eventRegs maps each detector to its bank-0 enable register.
var eventRegs = [numEvents]uint32{gpren0, gpfen0, gphen0, gplen0, gparen0, gpafen0}

// Pin is a handle to one GPIO line. Pins are cheap values; obtain them from
// Peripherals.Pin and copy them freely.
type Pin struct {
	p   *Peripherals
	num uint8
}

// Pin returns a handle to GPIO line num. It panics if num is not a line this
// SoC has, which is a programmer error rather than a runtime condition.
func (p *Peripherals) Pin(num uint8) Pin {
	if num >= NumPins {
		panic(badPinNumber)
	}
	return Pin{p: p, num: num}
}

// fsel returns the function-select register and field shift for the pin.
// Ten pins share each register, three bits per pin.
func (pin Pin) fsel() (reg, shift uint32) {
	return gpfsel0 + uint32(pin.num)/10, uint32(pin.num) % 10 * 3
}

// bankBit returns the pin's bank offset and bit position for the two-register
// banks (set/clear/level/event/pull-clock).
func (pin Pin) bankBit() (bank uint32, pos uint8) {
	return uint32(pin.num) / 32, pin.num % 32
}

// SetFunction multiplexes the pin into fn. The field is cleared and then
// written in two separate register operations so the nine sibling fields in
// the same register are reproduced exactly.
func (pin Pin) SetFunction(fn PinFunc) {
	reg, shift := pin.fsel()
	pin.p.gpio.ClearBits(reg, 7<<shift)
	pin.p.gpio.SetBits(reg, uint32(fn&7)<<shift)
}

// Function reads back the pin's current function-select code.
func (pin Pin) Function() PinFunc {
	reg, shift := pin.fsel()
	return PinFunc(pin.p.gpio.Get(reg) >> shift & 7)
}

// Configure sets the pin direction. Only PinInput and PinOutput are valid;
// alternate functions are claimed by the peripheral engines themselves.
func (pin Pin) Configure(cfg PinConfig) error {
	switch cfg.Mode {
	case PinInput:
		pin.SetFunction(FuncInput)
	case PinOutput:
		pin.SetFunction(FuncOutput)
	default:
		return ErrInvalidMode
	}
	return nil
}

// Set drives an output pin high or low. The set and clear registers act on
// written ones only, so this never read-modify-writes and never disturbs
// other pins.
func (pin Pin) Set(high bool) {
	bank, pos := pin.bankBit()
	if high {
		pin.p.gpio.Set(gpset0+bank, 1<<pos)
	} else {
		pin.p.gpio.Set(gpclr0+bank, 1<<pos)
	}
}

// High drives an output pin high.
func (pin Pin) High() { pin.Set(true) }

// Low drives an output pin low.
func (pin Pin) Low() { pin.Set(false) }

// Get reads the current level of the pin.
func (pin Pin) Get() bool {
	bank, pos := pin.bankBit()
	return pin.p.gpio.BitIsSet(gplev0+bank, pos)
}

// SetEventDetect enables or disables one of the pin's event detectors.
func (pin Pin) SetEventDetect(e Event, enable bool) error {
	if e >= numEvents {
		return ErrInvalidMode
	}
	bank, pos := pin.bankBit()
	if enable {
		pin.p.gpio.SetBit(eventRegs[e]+bank, pos)
	} else {
		pin.p.gpio.ClearBit(eventRegs[e]+bank, pos)
	}
	return nil
}

// EventSeen reports whether one of the pin's enabled detectors has fired
// since the last ClearEvent.
func (pin Pin) EventSeen() bool {
	bank, pos := pin.bankBit()
	return pin.p.gpio.BitIsSet(gpeds0+bank, pos)
}

// ClearEvent acknowledges a pending event. The status register clears on
// written ones, so only this pin's bit is stored.
func (pin Pin) ClearEvent() {
	bank, pos := pin.bankBit()
	pin.p.gpio.Set(gpeds0+bank, 1<<pos)
}

// ResetAllEvents disables all six detectors for the pin and acknowledges any
// event still pending.
func (pin Pin) ResetAllEvents() {
	bank, pos := pin.bankBit()
	for _, reg := range eventRegs {
		pin.p.gpio.ClearBit(reg+bank, pos)
	}
	pin.ClearEvent()
}

// pullSettle is the wait the datasheet mandates between the pull control
// write, the clock pulse and the teardown. Skipping it leaves the resistor
// state undefined.
const pullSettle = 150 * time.Microsecond

// SetPull programs the pin's pull resistor. The control write, the settle
// waits and the per-pin clock pulse must happen in exactly this order.
func (pin Pin) SetPull(pull Pull) error {
	if pull > PullUp {
		return ErrInvalidPull
	}
	bank, pos := pin.bankBit()
	g := pin.p.gpio
	g.Set(gppud, uint32(pull))
	pin.p.sleep(pullSettle)
	g.SetBit(gppudclk0+bank, pos)
	pin.p.sleep(pullSettle)
	g.Set(gppud, 0)
	g.ClearBit(gppudclk0+bank, pos)
	return nil
}
