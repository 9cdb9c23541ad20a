// Package rpi maps the BCM283x peripheral register pages of a Raspberry Pi
// into the process and hands them to package bcm283x. Opening needs
// read/write access to /dev/mem, so programs normally run as root.
package rpi

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/fakstory/rpi/bcm283x"
)

// Peripheral page offsets from the SoC peripheral base.
const (
	sysTimerOff = 0x003000
	clockOff    = 0x101000
	gpioOff     = 0x200000
	spi0Off     = 0x204000
	bsc0Off     = 0x205000
	pwmOff      = 0x20C000
	bsc1Off     = 0x804000
)

const pageSize = 4096

// Board describes the detected SoC variant: where the peripheral block sits
// in physical memory and how fast the core clock runs.
type Board struct {
	PeripheralBase uint32
	CoreFrequency  uint32
}

// Pi 3 revision codes; these boards run the 400 MHz core clock.
var fastCoreRevisions = []string{"a02082", "a22082", "a32082", "a020a0"}

// DetectBoard classifies the running board from /proc/cpuinfo.
func DetectBoard() (Board, error) {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return Board{}, err
	}
	defer f.Close()
	return readBoardInfo(f)
}

func readBoardInfo(r io.Reader) (Board, error) {
	// ARMv6 boards put the peripherals at 0x20000000; everything newer at
	// 0x3F000000.
	b := Board{PeripheralBase: 0x20000000, CoreFrequency: 250_000_000}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "model name"):
			if strings.Contains(line, "ARMv7") || strings.Contains(line, "ARMv8") {
				b.PeripheralBase = 0x3F000000
			}
			if strings.Contains(line, "ARMv8") {
				b.CoreFrequency = 400_000_000
			}
		case strings.HasPrefix(line, "Revision"):
			for _, rev := range fastCoreRevisions {
				if strings.Contains(line, rev) {
					b.CoreFrequency = 400_000_000
				}
			}
		}
	}
	return b, sc.Err()
}

// Device owns the mapped register pages. The embedded Peripherals value is
// valid until Close; using any pin or bus handle after Close is undefined.
type Device struct {
	*bcm283x.Peripherals
	board   Board
	regions [][]byte
}

// Open detects the board, maps every peripheral page and returns the ready
// register layer.
func Open() (*Device, error) {
	board, err := DetectBoard()
	if err != nil {
		return nil, err
	}
	return openBoard(board)
}

func openBoard(board Board) (*Device, error) {
	fd, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("rpi: open /dev/mem (needs root): %w", err)
	}
	defer unix.Close(fd)

	offsets := [...]uint32{sysTimerOff, clockOff, gpioOff, pwmOff, spi0Off, bsc0Off, bsc1Off}
	d := &Device{board: board}
	windows := make([]*bcm283x.Window, len(offsets))
	for n, off := range offsets {
		mem, err := unix.Mmap(fd, int64(board.PeripheralBase+off), pageSize,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			d.unmap()
			return nil, fmt.Errorf("rpi: mmap peripheral page %#x: %w", off, err)
		}
		d.regions = append(d.regions, mem)
		windows[n] = bcm283x.NewWindow(wordsOf(mem))
		// Zero the base register for a clean start.
		windows[n].Set(0, 0)
	}

	p, err := bcm283x.New(bcm283x.PeripheralConfig{
		SysTimer: windows[0],
		ClockMgr: windows[1],
		GPIO:     windows[2],
		PWM:      windows[3],
		SPI0:     windows[4],
		BSC0:     windows[5],
		BSC1:     windows[6],
		CoreFreq: board.CoreFrequency,
	})
	if err != nil {
		d.unmap()
		return nil, err
	}
	d.Peripherals = p
	return d, nil
}

// Board returns the detected board description.
func (d *Device) Board() Board { return d.board }

// Close unmaps every peripheral page at once. No handle obtained from this
// device may be used afterwards.
func (d *Device) Close() error {
	d.Peripherals = nil
	return d.unmap()
}

func (d *Device) unmap() error {
	var first error
	for _, mem := range d.regions {
		if err := unix.Munmap(mem); err != nil && first == nil {
			first = err
		}
	}
	d.regions = nil
	return first
}

func wordsOf(mem []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&mem[0])), len(mem)/4)
}
