package uart

// onTxCompare is invoked synchronously by the counter's A-compare channel
// while it is enabled. It is the direct port of
// ISR(TIMER1_COMPA_vect) in fd-serial.c: line polarity is idle-high,
// start-low, stop-high, data bits LSB-first, one counter-top period per
// state.
func (d *Device) onTxCompare() {
	switch d.txState {
	case txIdle:
		return

	case txStartBit:
		d.txLevel.Store(false)
		d.sendBits = 8
		d.txState = txDataBit

	case txDataBit:
		d.txLevel.Store(d.sendByte&1 != 0)
		d.sendByte >>= 1
		d.sendBits--
		if d.sendBits == 0 {
			d.txState = txStopBit
		}

	case txStopBit:
		d.txLevel.Store(true)
		d.txState = txReturn

	case txReturn:
		d.sendReady = true
		d.txState = txIdle
		d.counter.DisableTxTick()

	case txDelay:
		d.txDelay--
		if d.txDelay == 0 {
			d.sendReady = true
			d.txState = txIdle
			d.counter.DisableTxTick()
		}
	}
}
