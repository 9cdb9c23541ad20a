package bcm283x

import "sync/atomic"

// WindowWords is the size of a peripheral register window in 32-bit words.
// Every BCM283x peripheral occupies one 4KiB page.
const WindowWords = 4096 / 4

const badRegisterOffset = "bcm283x: register offset outside window"

// Window is a bounds-checked view of a single peripheral's register page,
// addressed in 32-bit words from the page base. Production windows sit on
// memory-mapped device pages; tests pass ordinary in-memory slices.
//
// All loads and stores are atomic. That prevents torn register accesses and
// orders them with the surrounding memory operations, which the hardware
// requires around every register touch.
type Window struct {
	mem []uint32

	// Test hooks: beforeLoad may mutate mem to model hardware-driven status
	// bits, onStore observes completed stores. Both are nil outside tests.
	beforeLoad func(offset uint32)
	onStore    func(offset, value uint32)
}

// NewWindow wraps mem as a register window. The slice must cover every
// register the peripheral defines; windows mapped from hardware are one full
// page (WindowWords) long.
func NewWindow(mem []uint32) *Window {
	return &Window{mem: mem}
}

func (w *Window) valid() bool { return w != nil && len(w.mem) > 0 }

func (w *Window) check(offset uint32) {
	if w == nil || offset >= uint32(len(w.mem)) {
		panic(badRegisterOffset)
	}
}

// Get returns the register at the given word offset.
func (w *Window) Get(offset uint32) uint32 {
	w.check(offset)
	if w.beforeLoad != nil {
		w.beforeLoad(offset)
	}
	return atomic.LoadUint32(&w.mem[offset])
}

// Set stores value into the register at the given word offset.
func (w *Window) Set(offset, value uint32) {
	w.check(offset)
	atomic.StoreUint32(&w.mem[offset], value)
	if w.onStore != nil {
		w.onStore(offset, value)
	}
}

// SetBits ORs bits into the register, leaving all other bits unchanged.
func (w *Window) SetBits(offset, bits uint32) {
	w.Set(offset, w.Get(offset)|bits)
}

// ClearBits ANDs bits out of the register, leaving all other bits unchanged.
func (w *Window) ClearBits(offset, bits uint32) {
	w.Set(offset, w.Get(offset)&^bits)
}

// HasBits reports whether any of bits is set in the register.
func (w *Window) HasBits(offset, bits uint32) bool {
	return w.Get(offset)&bits != 0
}

// ReplaceBits writes value into the field selected by mask<<pos, leaving the
// bits outside the field untouched.
func (w *Window) ReplaceBits(offset, value, mask, pos uint32) {
	w.Set(offset, w.Get(offset)&^(mask<<pos)|value<<pos)
}

// SetBit sets the single bit at pos.
func (w *Window) SetBit(offset uint32, pos uint8) { w.SetBits(offset, 1<<pos) }

// ClearBit clears the single bit at pos.
func (w *Window) ClearBit(offset uint32, pos uint8) { w.ClearBits(offset, 1<<pos) }

// BitIsSet reports the current value of the bit at pos.
func (w *Window) BitIsSet(offset uint32, pos uint8) bool { return w.HasBits(offset, 1<<pos) }
