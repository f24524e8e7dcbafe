package uart

// onRxCompare is invoked synchronously by the counter's B-compare channel
// while it is enabled. It is the direct port of ISR(TIMER1_COMPB_vect):
// the line is sampled first, before any state update, to land the read as
// close as possible to the scheduled bit-center tick.
func (d *Device) onRxCompare() {
	bit := d.rxLevel.Load()

	switch d.rxState {
	case rxStartMid:
		d.recvBits = 8
		d.rxState = rxDataBit

	case rxDataBit:
		d.recvShift >>= 1
		if bit {
			d.recvShift |= 0x80
		}
		d.recvBits--
		if d.recvBits == 0 {
			d.rxState = rxAwaitHigh
		}

	case rxAwaitHigh:
		if bit {
			d.publish(d.recvShift)
			d.rxState = rxIdle
			d.counter.DisableRxTick()
			d.edgeDet.Enable()
		}
		// else: stay in AwaitHigh, giving up to one more bit time of
		// stop-bit slack before rearming, per spec.md §4.5.

	case rxIdle:
		// The B-compare channel is disabled whenever rxState is Idle, so
		// this is unreachable; kept only for exhaustiveness.
	}
}

// onFallingEdge is invoked by the edge detector on a high-to-low RX
// transition while armed. It is the direct port of ISR(INT0_vect):
// schedule the first data sample half a bit after now, handling the wrap
// through Top, then hand off from the edge detector to the B-compare
// channel.
func (d *Device) onFallingEdge() {
	tcnt := d.counter.Count()
	half := d.tm.HalfBit

	var ocrB uint16
	if tcnt >= half {
		ocrB = tcnt - half
	} else {
		ocrB = tcnt + half
	}
	d.counter.SetRxCompare(ocrB)

	d.edgeDet.Disable()
	d.rxState = rxStartMid
	d.counter.EnableRxTick()
}

// publish delivers a completed byte to the foreground, via the ring
// buffer or the single-slot buffer depending on configuration. Overflow
// is silent data loss by design (spec.md §7); DroppedBytes is purely
// observational.
func (d *Device) publish(b byte) {
	if d.ring != nil {
		if d.ring.push(b) {
			d.droppedBytes.Add(1)
		}
		return
	}
	if d.available {
		d.droppedBytes.Add(1)
	}
	d.recvByte = b
	d.available = true
}
