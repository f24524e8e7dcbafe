// Package sim provides a deterministic, tick-driven test and simulation
// harness for the uart package: a Link wires two uart.Device line pairs
// together (TX-to-RX, RX-to-TX, a null modem) and advances both counters
// in lockstep, the way c64.C64.Step advances its peripherals one CPU cycle
// at a time. No wall-clock time elapses; Link.Run(n) is "n counter ticks
// happened", letting tests exercise the spec.md §8 properties without
// waiting on a real clock.
package sim

import "github.com/halfbit/fdserial/uart"

// Link connects two devices' TX/RX lines: A's TX feeds B's RX and vice
// versa. Both devices keep their own independent counters — nothing here
// shares a counter between instances, consistent with spec.md §9's "do
// not attempt to make multiple instances... hardware makes this
// meaningless" note (each simulated instance owns its own peripheral set;
// only the wire between them is shared).
type Link struct {
	A, B *uart.Device
}

// NewLink builds a Link between two devices.
func NewLink(a, b *uart.Device) *Link {
	return &Link{A: a, B: b}
}

// Step advances the link by exactly one counter tick: it propagates each
// device's current TX level onto the other's RX input, then ticks both
// counters. Propagation happens before ticking, so a level change takes
// effect for the tick in which it was driven.
func (l *Link) Step() {
	aOut := l.A.TXLevel()
	bOut := l.B.TXLevel()
	l.B.DriveRX(aOut)
	l.A.DriveRX(bOut)
	l.A.Tick()
	l.B.Tick()
}

// Run advances the link by n counter ticks.
func (l *Link) Run(n int) {
	for i := 0; i < n; i++ {
		l.Step()
	}
}
