package bcm283x

import (
	"runtime"
	"time"
)

// gosched yields the processor between status polls so a spinning transfer
// loop does not starve the rest of the program.
func gosched() {
	runtime.Gosched()
}

// deadline bounds one status polling loop. The zero value never expires,
// which is the hardware-faithful behaviour: a peripheral that never raises
// its completion bit stalls the loop until the caller imposes a timeout.
type deadline struct {
	t time.Time
}

func (dl deadline) expired() bool {
	if dl.t.IsZero() {
		return false
	}
	return time.Since(dl.t) > 0
}

// deadliner stamps out deadlines for an engine's polling loops. The timeout
// is stored as a power-of-two exponent: register polling does not need exact
// bounds, only a cheap one that rounds up.
type deadliner struct {
	timeout uint8
}

func (ch deadliner) newDeadline() deadline {
	var t time.Time
	if ch.timeout != 0 {
		t = time.Now().Add(time.Duration(1 << ch.timeout))
	}
	return deadline{t: t}
}

// setTimeout rounds the timeout up to the next power-of-two duration. Zero or
// negative removes the bound.
func (ch *deadliner) setTimeout(timeout time.Duration) {
	if timeout <= 0 {
		ch.timeout = 0
		return
	}
	for i := uint8(0); i < 64; i++ {
		if time.Duration(1<<i) > timeout {
			ch.timeout = i
			return
		}
	}
}
