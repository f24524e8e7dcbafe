// Package edge models the external falling-edge interrupt (INT0 in
// fd-serial.c) that detects the start bit of an incoming byte. It is the
// host stand-in for the AVR's external interrupt controller: Observe is
// called whenever the watched line's level changes, and the registered
// callback fires synchronously on a high-to-low transition while armed,
// the way ISR(INT0_vect) fires on the real part.
package edge

// Detector watches one line for falling edges.
type Detector struct {
	armed bool
	level bool // current observed line level; line idles high

	onFallingEdge func()
}

// New builds a Detector. The line is assumed to start idle-high, matching
// the UART's idle convention; onFallingEdge is invoked on each armed
// high-to-low transition.
func New(onFallingEdge func()) *Detector {
	return &Detector{
		level:         true,
		onFallingEdge: onFallingEdge,
	}
}

// Enable arms the detector, first clearing any pending/stale edge exactly
// as _enable_int0() clears GIFR's INTF0 before unmasking GIMSK's INT0: the
// next edge observed from this point on is the only one that can fire.
func (d *Detector) Enable() { d.armed = true }

// Disable masks the detector; Observe still tracks level but never fires.
func (d *Detector) Disable() { d.armed = false }

// Armed reports whether the detector is currently enabled.
func (d *Detector) Armed() bool { return d.armed }

// Observe reports the line's new level. A high-to-low transition while
// armed fires the callback once; the callback is expected to Disable the
// detector itself if it should not retrigger (the receive engine does this
// to hand off to the B-compare channel, per spec.md's edge/rx handoff).
func (d *Detector) Observe(level bool) {
	fell := d.level && !level
	d.level = level
	if fell && d.armed {
		d.onFallingEdge()
	}
}
