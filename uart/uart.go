// Package uart implements the full-duplex, timer-driven, bit-banged 8N1
// software UART: a transmit engine and a receive engine, each a small state
// machine advanced by one channel of a shared internal/counter.Counter, with
// start-bit detection handed off from an internal/edge.Detector. It is the
// host-simulatable port of fd-serial.c.
package uart

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/halfbit/fdserial/internal/counter"
	"github.com/halfbit/fdserial/internal/edge"
	"github.com/halfbit/fdserial/internal/timing"
)

type txState int

const (
	txIdle txState = iota
	txStartBit
	txDataBit
	txStopBit
	txReturn
	txDelay
)

type rxState int

const (
	rxIdle rxState = iota
	// rxStartMid is the midpoint of the (presumed) start bit, and the state
	// the receive engine is armed into by the edge handoff. spec.md §9
	// notes that the original declares a second state ("ReadingStartBit")
	// that is reachable only by external assignment and never entered by
	// the ISR; this port omits it, matching spec.md's suggested resolution.
	rxStartMid
	rxDataBit
	rxAwaitHigh
)

// Device is the single process-wide (per simulated peripheral set) UART
// instance. Build one with New; it owns one Counter and one edge Detector,
// matching spec.md §9's "hardware makes multiple instances meaningless" —
// nothing stops constructing more than one in Go, but each must be wired to
// its own line pair, never shared.
//
// On real silicon the foreground and the ISRs never truly run in parallel:
// an interrupt preempts the foreground and runs to completion before it
// resumes. Go's goroutines give no such guarantee, so mu stands in for that
// hardware mutual exclusion — it is held for the full duration of Tick
// (the "ISR" path) and for the brief check-and-arm sequence in Send/Alarm
// (the foreground's arming window), never across a busy-wait spin. The ring
// buffer is the one part of the state that stays genuinely lock-free, per
// spec.md §5's explicit SPSC requirement; see ring.go.
type Device struct {
	cfg Config
	tm  timing.Constants

	counter *counter.Counter
	edgeDet *edge.Detector

	yield func()

	mu sync.Mutex

	// Transmit state. Owned by the foreground only during the arming
	// window (sendReady observed true, about to enable the A tick);
	// owned by onTxCompare otherwise. Guarded by mu. See spec.md §5/§9.
	txState   txState
	sendByte  byte
	sendBits  int
	txDelay   uint32
	sendReady bool

	txLevel atomic.Bool // true = line high (idle/stop), false = low

	// Receive state. Owned exclusively by the edge/B-compare handlers
	// (invoked from DriveRX and Tick respectively); the foreground never
	// touches these, but they are still guarded by mu since Tick and
	// DriveRX can run from different goroutines than each other.
	rxState   rxState
	recvShift byte
	recvBits  int

	rxLevel atomic.Bool // last observed level of the watched RX line

	// Single-slot receive buffer (used when cfg.RingBufferSize == 0).
	// Guarded by mu: both Recv (foreground) and publish (Tick) touch it.
	recvByte  byte
	available bool

	// Ring-buffer receive buffer (used when cfg.RingBufferSize > 0): a
	// genuinely lock-free SPSC ring, not guarded by mu.
	ring *ring

	droppedBytes atomic.Uint64
}

// New builds and initializes a Device for the given configuration. An
// error is returned only for invalid configuration (spec.md §6/§7's
// "unsupported rate... hard build failure", realized here as a
// constructor-time error since Go has no preprocessor to reject it at
// build time). yield, if non-nil, is called on every iteration of a
// busy-wait spin; pass nil to use runtime.Gosched, or supply one to let a
// host scheduler substitute its own yield, per spec.md §5.
func New(cfg Config, yield func()) (*Device, error) {
	cfg = cfg.resolve()
	tm, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if yield == nil {
		yield = runtime.Gosched
	}

	d := &Device{cfg: cfg, tm: tm, yield: yield}
	d.counter = counter.New(tm.Top, d.onTxCompare, d.onRxCompare)
	d.edgeDet = edge.New(d.onFallingEdge)
	if cfg.RingBufferSize > 0 {
		d.ring = newRing(cfg.RingBufferSize)
	}
	d.Init()
	return d, nil
}

// Init performs the idempotent-safe initialization of spec.md §4.6: it
// clears all transmit and receive state, arms the edge detector for
// falling edges, sets the counter's compare registers to sane initial
// values (OCR1A=16, OCR1B=32 in fd-serial.c), and starts the counter.
func (d *Device) Init() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.txState = txIdle
	d.sendByte = 0
	d.sendBits = 0
	d.txDelay = 0
	d.sendReady = true
	d.txLevel.Store(true)

	d.rxState = rxIdle
	d.recvShift = 0
	d.recvBits = 0
	d.rxLevel.Store(true)
	d.recvByte = 0
	d.available = false
	if d.ring != nil {
		d.ring = newRing(d.cfg.RingBufferSize)
	}
	d.droppedBytes.Store(0)

	d.counter.Stop()
	d.counter.DisableTxTick()
	d.counter.DisableRxTick()
	d.counter.SetTxCompare(16)
	d.counter.SetRxCompare(32)
	d.counter.Start()

	d.edgeDet.Disable()
	d.edgeDet.Enable()
}

// Tick advances this device's counter by exactly one count, invoking
// whichever compare handler matches. It is the host-side stand-in for one
// CPU clock tick; a simulation harness (see package sim) drives it.
func (d *Device) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counter.Tick()
}

// TXLevel returns the current level driven onto the TX output line: true
// for high (idle/stop bit), false for low (start bit / a zero data bit).
func (d *Device) TXLevel() bool { return d.txLevel.Load() }

// DriveRX reports the new level observed on the RX input line. A
// simulation harness calls this whenever the wire it is connected to
// changes level; it both records the level for bit sampling and feeds the
// falling-edge detector.
func (d *Device) DriveRX(level bool) {
	d.rxLevel.Store(level)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edgeDet.Observe(level)
}

// DroppedBytes returns the number of received bytes silently lost to
// overflow (ring mode: oldest dropped; single-slot mode: previous
// unread byte overwritten). This is purely observational, per spec.md §7's
// invitation to expose "overflow... counters" without changing the
// silent-loss behavior itself.
func (d *Device) DroppedBytes() uint64 { return d.droppedBytes.Load() }

// Send blocks until the transmit engine is idle, then arms it to shift out
// b: start bit, eight data bits LSB-first, stop bit. Per spec.md §5,
// bytes passed to successive Send calls are transmitted in call order.
func (d *Device) Send(b byte) {
	for {
		d.mu.Lock()
		if d.sendReady {
			d.counter.SetTxCompare(d.counter.Count())
			d.sendReady = false
			d.sendByte = b
			d.txState = txStartBit
			d.counter.EnableTxTick()
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
		d.yield()
	}
}

// SendOK reports whether the transmit engine is idle and will accept a new
// byte without blocking.
func (d *Device) SendOK() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendReady
}

// Recv blocks until a byte has been received, then removes and returns it.
func (d *Device) Recv() byte {
	if d.ring != nil {
		for d.ring.empty() {
			d.yield()
		}
		return d.ring.pop()
	}
	for {
		d.mu.Lock()
		if d.available {
			b := d.recvByte
			d.recvByte = 0 // matches the original's defensive clear-on-read
			d.available = false
			d.mu.Unlock()
			return b
		}
		d.mu.Unlock()
		d.yield()
	}
}

// Available returns the number of bytes waiting to be read: 0 or 1 in
// single-slot mode, or the ring occupancy in ring mode.
func (d *Device) Available() uint32 {
	if d.ring != nil {
		return d.ring.available()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.available {
		return 1
	}
	return 0
}

// Alarm programs the transmit engine to occupy the bit clock for
// approximately ms milliseconds without emitting any line transitions,
// reusing the A-compare channel the way fdserial_alarm() does. send_ready
// is cleared for the duration. Concurrent transmission is unavailable
// while an alarm runs; reception is unaffected, per spec.md §4.6/§9.
func (d *Device) Alarm(ms uint32) {
	prescaler := uint64(d.tm.Prescaler)
	period := uint64(d.tm.Top) + 1

	timerTicks := uint64(ms) * uint64(d.cfg.CPUFreq) / prescaler / 1000
	cycles := timerTicks / period
	remainder := timerTicks - cycles*period

	for {
		d.mu.Lock()
		if d.sendReady {
			break
		}
		d.mu.Unlock()
		d.yield()
	}
	defer d.mu.Unlock()

	// Schedule the first A-compare match `remainder` counts forward of now,
	// modulo the counter's own period — not modulo 256 the way the real
	// 8-bit OCR1A register wraps. The virtual counter only ever holds
	// values in [0, Top], so an 8-bit-wrapped back-date can land above Top
	// and never match; a forward-dated match within the counter's own
	// modulus always will. Counter.Tick only fires a compare after the
	// counter has moved at least once, so a remainder of 0 resolves to a
	// full period rather than an immediate match, the same as Send's
	// OCR_A = TCNT1 idiom. One extra decrement (cycles+1, not cycles) pays
	// for that forward offset, so the total elapsed ticks before
	// send_ready is set again is always >= timerTicks, matching spec.md
	// §8's "no earlier than ms" requirement.
	tcnt := uint64(d.counter.Count())
	ocrA := (tcnt + remainder) % period
	d.counter.SetTxCompare(uint16(ocrA))

	d.txDelay = uint32(cycles) + 1
	d.sendReady = false
	d.txState = txDelay
	// spec.md §5 states the A-compare interrupt is enabled while and only
	// while tx_state != Idle; Delay is one such state, so it is armed
	// here even though fd-serial.c's fdserial_alarm() omits the call to
	// _start_tx() (see DESIGN.md).
	d.counter.EnableTxTick()
}

// Delay blocks for approximately ms milliseconds by calling Alarm and then
// spinning until the transmit engine returns to idle.
func (d *Device) Delay(ms uint32) {
	d.Alarm(ms)
	for !d.SendOK() {
		d.yield()
	}
}
