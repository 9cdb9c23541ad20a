package bcm283x

import (
	"testing"
	"time"
)

// testPeripherals returns a register layer backed by plain in-memory windows
// with the settle waits stubbed out.
func testPeripherals(t *testing.T) *Peripherals {
	t.Helper()
	p, err := New(PeripheralConfig{
		SysTimer: NewWindow(make([]uint32, WindowWords)),
		ClockMgr: NewWindow(make([]uint32, WindowWords)),
		GPIO:     NewWindow(make([]uint32, WindowWords)),
		PWM:      NewWindow(make([]uint32, WindowWords)),
		SPI0:     NewWindow(make([]uint32, WindowWords)),
		BSC0:     NewWindow(make([]uint32, WindowWords)),
		BSC1:     NewWindow(make([]uint32, WindowWords)),
	})
	if err != nil {
		t.Fatal(err)
	}
	p.sleep = func(time.Duration) {}
	return p
}

func TestNewRequiresGPIO(t *testing.T) {
	_, err := New(PeripheralConfig{})
	if err != ErrMissingWindow {
		t.Fatalf("New without GPIO window: got %v, want %v", err, ErrMissingWindow)
	}
}

func TestNewDefaultsCoreFrequency(t *testing.T) {
	p, err := New(PeripheralConfig{GPIO: NewWindow(make([]uint32, WindowWords))})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.CoreFrequency(); got != DefaultCoreFrequency {
		t.Errorf("CoreFrequency: got %d, want %d", got, DefaultCoreFrequency)
	}
}

func TestMicrosWithoutTimer(t *testing.T) {
	p, err := New(PeripheralConfig{GPIO: NewWindow(make([]uint32, WindowWords))})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Micros(); got != 0 {
		t.Errorf("Micros without timer window: got %d, want 0", got)
	}
}

func TestMicrosRetriesOnRollover(t *testing.T) {
	p := testPeripherals(t)
	st := p.st
	st.mem[stCHI] = 1
	st.mem[stCLO] = 0xFFFFFFFF

	// Roll the counter over between the low read and the confirming high
	// read so the first sample must be discarded.
	hiReads := 0
	st.beforeLoad = func(off uint32) {
		if off == stCHI {
			hiReads++
			if hiReads == 2 {
				st.mem[stCHI] = 2
				st.mem[stCLO] = 0
			}
		}
	}

	if got, want := p.Micros(), uint64(2)<<32; got != want {
		t.Errorf("Micros: got %#x, want %#x", got, want)
	}
	if hiReads != 4 {
		t.Errorf("high word reads: got %d, want 4 (one retry)", hiReads)
	}
}
