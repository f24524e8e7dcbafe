// Package counter models the one free-running CTC counter with two
// independent compare channels that the software UART is built on, the way
// cia.CIA models the 6526's timer A/B pair: a Top (wrap) value, two compare
// registers, and per-channel enable bits that gate whether a match raises a
// callback.
//
// Unlike cia.CIA there is no silicon underneath: Update advances a plain
// uint16 and invokes the registered callbacks synchronously, standing in for
// the AVR's TIMER1_COMPA/TIMER1_COMPB interrupt vectors.
package counter

// Counter is the virtual timer/counter. The zero value is not usable; build
// one with New.
type Counter struct {
	top  uint16 // CTC top: counter wraps to 0 the tick after reaching top
	tcnt uint16

	running bool

	ocrA      uint16
	ocrB      uint16
	txEnabled bool
	rxEnabled bool

	onTxCompare func()
	onRxCompare func()
}

// New builds a Counter with the given top value. onTxCompare and
// onRxCompare are invoked synchronously from Tick/Update when the counter
// matches OCR A / OCR B respectively, while that channel is enabled.
func New(top uint16, onTxCompare, onRxCompare func()) *Counter {
	return &Counter{
		top:         top,
		onTxCompare: onTxCompare,
		onRxCompare: onRxCompare,
	}
}

// Start begins free-running. The counter holds its current value until
// Start is called, matching _starttimer() in fd-serial.c.
func (c *Counter) Start() { c.running = true }

// Stop halts the counter in place. No compare callback fires while stopped.
func (c *Counter) Stop() { c.running = false }

// Running reports whether the counter is currently advancing.
func (c *Counter) Running() bool { return c.running }

// EnableTxTick arms the A-compare channel. Any stale match against the
// current count is suppressed for this tick, mirroring _start_tx()'s clear
// of TIFR's pending OCF1A-equivalent before unmasking (TIMER1_COMPA has no
// separate pending flag in the original, but TIMER1_COMPB's does, and this
// Counter treats both symmetrically for simplicity).
func (c *Counter) EnableTxTick() { c.txEnabled = true }

// DisableTxTick masks the A-compare channel.
func (c *Counter) DisableTxTick() { c.txEnabled = false }

// EnableRxTick arms the B-compare channel, matching _start_rx()'s clear of
// the pending OCF1B flag before unmasking TIMER1_COMPB.
func (c *Counter) EnableRxTick() { c.rxEnabled = true }

// DisableRxTick masks the B-compare channel.
func (c *Counter) DisableRxTick() { c.rxEnabled = false }

// TxTickEnabled reports whether the A-compare channel is armed.
func (c *Counter) TxTickEnabled() bool { return c.txEnabled }

// RxTickEnabled reports whether the B-compare channel is armed.
func (c *Counter) RxTickEnabled() bool { return c.rxEnabled }

// SetTxCompare writes OCR A. The next match fires when the counter next
// reaches v, wrapping through Top first if v is behind the current count.
func (c *Counter) SetTxCompare(v uint16) { c.ocrA = v }

// SetRxCompare writes OCR B, same wrap semantics as SetTxCompare.
func (c *Counter) SetRxCompare(v uint16) { c.ocrB = v }

// TxCompare returns the current OCR A value.
func (c *Counter) TxCompare() uint16 { return c.ocrA }

// RxCompare returns the current OCR B value.
func (c *Counter) RxCompare() uint16 { return c.ocrB }

// Count returns the current counter value (TCNT1 in the original).
func (c *Counter) Count() uint16 { return c.tcnt }

// Top returns the configured CTC top value.
func (c *Counter) Top() uint16 { return c.top }

// Tick advances the counter by exactly one count, then fires any enabled
// compare callback whose register matches the new count — matching real
// CTC hardware, where the compare match is against the counter's live
// value, so "the A-compare fires when the counter reaches v" means after
// (v - start) mod (Top+1) increments from wherever it started, or a full
// Top+1 increments when v equals the start, never zero. No-op while stopped.
func (c *Counter) Tick() {
	if !c.running {
		return
	}
	if c.tcnt == c.top {
		c.tcnt = 0
	} else {
		c.tcnt++
	}
	if c.txEnabled && c.tcnt == c.ocrA {
		c.onTxCompare()
	}
	if c.rxEnabled && c.tcnt == c.ocrB {
		c.onRxCompare()
	}
}

// Update advances the counter by n ticks, firing compare callbacks along
// the way. It is the host-side stand-in for "n CPU cycles elapsed".
func (c *Counter) Update(n int) {
	for i := 0; i < n; i++ {
		c.Tick()
	}
}
