package bcm283x

import (
	"fmt"
	"testing"
	"time"
)

// traceEvent is one recorded register store or settle wait, used by the tests
// that check ordered hardware sequences.
type traceEvent struct {
	kind string // "store" or "sleep"
	off  uint32
	val  uint32
	d    time.Duration
}

// traceWindow records every store to w and every settle wait on p into one
// ordered list.
func traceWindow(p *Peripherals, w *Window) *[]traceEvent {
	var events []traceEvent
	w.onStore = func(off, val uint32) {
		events = append(events, traceEvent{kind: "store", off: off, val: val})
	}
	p.sleep = func(d time.Duration) {
		events = append(events, traceEvent{kind: "sleep", d: d})
	}
	return &events
}

var allPinFuncs = [...]PinFunc{
	FuncInput, FuncOutput, FuncAlt0, FuncAlt1, FuncAlt2, FuncAlt3, FuncAlt4, FuncAlt5,
}

func TestPinFunctionRoundTrip(t *testing.T) {
	p := testPeripherals(t)
	for num := uint8(0); num < NumPins; num++ {
		pin := p.Pin(num)
		for _, fn := range allPinFuncs {
			pin.SetFunction(fn)
			if got := pin.Function(); got != fn {
				t.Fatalf("pin %d: set %#x, read back %#x", num, fn, got)
			}
		}
	}
}

func TestPinFunctionPreservesSiblings(t *testing.T) {
	p := testPeripherals(t)
	for num := uint8(0); num < NumPins; num++ {
		p.Pin(num).SetFunction(FuncAlt3)
	}
	p.Pin(13).SetFunction(FuncOutput)
	for num := uint8(0); num < NumPins; num++ {
		want := FuncAlt3
		if num == 13 {
			want = FuncOutput
		}
		if got := p.Pin(num).Function(); got != want {
			t.Errorf("pin %d: got %#x, want %#x", num, got, want)
		}
	}
}

func TestPinOutOfRangePanics(t *testing.T) {
	p := testPeripherals(t)
	defer func() {
		if r := recover(); r != badPinNumber {
			t.Errorf("Pin(54) panicked with %v", r)
		}
	}()
	p.Pin(NumPins)
}

func TestPinSetLevel(t *testing.T) {
	p := testPeripherals(t)
	events := traceWindow(p, p.gpio)

	p.Pin(5).High()
	p.Pin(5).Low()
	p.Pin(35).High() // bank 1
	p.Pin(35).Low()

	want := []traceEvent{
		{kind: "store", off: gpset0, val: 1 << 5},
		{kind: "store", off: gpclr0, val: 1 << 5},
		{kind: "store", off: gpset0 + 1, val: 1 << 3},
		{kind: "store", off: gpclr0 + 1, val: 1 << 3},
	}
	if len(*events) != len(want) {
		t.Fatalf("got %d stores, want %d", len(*events), len(want))
	}
	for n, ev := range want {
		if (*events)[n] != ev {
			t.Errorf("store %d: got %+v, want %+v", n, (*events)[n], ev)
		}
	}
}

func TestPinGet(t *testing.T) {
	p := testPeripherals(t)
	p.gpio.Set(gplev0, 1<<17)
	p.gpio.Set(gplev0+1, 1<<1) // pin 33
	if !p.Pin(17).Get() {
		t.Error("pin 17 level not seen")
	}
	if p.Pin(16).Get() {
		t.Error("pin 16 level phantom")
	}
	if !p.Pin(33).Get() {
		t.Error("pin 33 level not seen in bank 1")
	}
}

func TestPinEventDetect(t *testing.T) {
	p := testPeripherals(t)
	pin := p.Pin(22)
	for e := EventRising; e < numEvents; e++ {
		if err := pin.SetEventDetect(e, true); err != nil {
			t.Fatalf("enable event %d: %v", e, err)
		}
		if !p.gpio.BitIsSet(eventRegs[e], 22) {
			t.Errorf("event %d enable bit not set", e)
		}
		if err := pin.SetEventDetect(e, false); err != nil {
			t.Fatalf("disable event %d: %v", e, err)
		}
		if p.gpio.BitIsSet(eventRegs[e], 22) {
			t.Errorf("event %d enable bit not cleared", e)
		}
	}
	if err := pin.SetEventDetect(numEvents, true); err != ErrInvalidMode {
		t.Errorf("invalid event: got %v, want %v", err, ErrInvalidMode)
	}
}

func TestPinEventSeenAndClear(t *testing.T) {
	p := testPeripherals(t)
	pin := p.Pin(40) // bank 1, bit 8
	p.gpio.Set(gpeds0+1, 1<<8|1<<9)
	if !pin.EventSeen() {
		t.Fatal("pending event not seen")
	}

	// The acknowledge must be a pure store of this pin's mask. A
	// read-modify-write would write back the sibling's pending bit too and
	// acknowledge it by accident.
	events := traceWindow(p, p.gpio)
	pin.ClearEvent()
	if len(*events) != 1 {
		t.Fatalf("got %d stores, want 1", len(*events))
	}
	if ev := (*events)[0]; ev.off != gpeds0+1 || ev.val != 1<<8 {
		t.Errorf("acknowledge store: got off=%d val=%#x, want off=%d val=%#x",
			ev.off, ev.val, gpeds0+1, uint32(1)<<8)
	}
}

func TestPinResetAllEvents(t *testing.T) {
	p := testPeripherals(t)
	pin := p.Pin(7)
	for e := EventRising; e < numEvents; e++ {
		pin.SetEventDetect(e, true)
	}
	pin.ResetAllEvents()
	for e := EventRising; e < numEvents; e++ {
		if p.gpio.BitIsSet(eventRegs[e], 7) {
			t.Errorf("event %d still enabled after reset", e)
		}
	}
}

func TestPinConfigure(t *testing.T) {
	p := testPeripherals(t)
	pin := p.Pin(9)
	if err := pin.Configure(PinConfig{Mode: PinOutput}); err != nil {
		t.Fatal(err)
	}
	if got := pin.Function(); got != FuncOutput {
		t.Errorf("after output configure: function %#x", got)
	}
	if err := pin.Configure(PinConfig{Mode: PinInput}); err != nil {
		t.Fatal(err)
	}
	if got := pin.Function(); got != FuncInput {
		t.Errorf("after input configure: function %#x", got)
	}
	if err := pin.Configure(PinConfig{Mode: PinMode(9)}); err != ErrInvalidMode {
		t.Errorf("invalid mode: got %v, want %v", err, ErrInvalidMode)
	}
}

func TestPinSetPullSequence(t *testing.T) {
	p := testPeripherals(t)
	events := traceWindow(p, p.gpio)

	if err := p.Pin(36).SetPull(PullUp); err != nil { // bank 1, bit 4
		t.Fatal(err)
	}

	want := []traceEvent{
		{kind: "store", off: gppud, val: uint32(PullUp)},
		{kind: "sleep", d: pullSettle},
		{kind: "store", off: gppudclk0 + 1, val: 1 << 4},
		{kind: "sleep", d: pullSettle},
		{kind: "store", off: gppud, val: 0},
		{kind: "store", off: gppudclk0 + 1, val: 0},
	}
	if len(*events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(*events), len(want), *events)
	}
	for n, ev := range want {
		if (*events)[n] != ev {
			t.Errorf("event %d: got %+v, want %+v", n, (*events)[n], ev)
		}
	}
}

func TestPinSetPullInvalid(t *testing.T) {
	p := testPeripherals(t)
	if err := p.Pin(0).SetPull(Pull(3)); err != ErrInvalidPull {
		t.Errorf("got %v, want %v", err, ErrInvalidPull)
	}
}

func ExamplePin() {
	p, _ := New(PeripheralConfig{GPIO: NewWindow(make([]uint32, WindowWords))})
	led := p.Pin(17)
	led.Configure(PinConfig{Mode: PinOutput})
	led.High()
	fmt.Println(led.Function() == FuncOutput)
	// Output: true
}
