package uart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T, ringSize int) *Device {
	t.Helper()
	d, err := New(Config{CPUFreq: 8_000_000, Rate: 9600, RingBufferSize: ringSize}, func() {})
	require.NoError(t, err)
	return d
}

// TestIdleInvariants covers spec.md §8 property 5: after Init and with no
// traffic, both ticks are disabled, the edge detector is armed,
// send_ready is true, and available is zero/false.
func TestIdleInvariants(t *testing.T) {
	d := newTestDevice(t, 0)

	assert.False(t, d.counter.TxTickEnabled())
	assert.False(t, d.counter.RxTickEnabled())
	assert.True(t, d.edgeDet.Armed())
	assert.True(t, d.SendOK())
	assert.Equal(t, uint32(0), d.Available())
	assert.True(t, d.TXLevel(), "TX line should idle high")
}

// TestTxPattern covers spec.md §8's concrete scenarios: 0x55 emits
// start + 10101010 LSB-first + stop, 0x00 emits all lows, 0xFF all highs.
func TestTxPattern(t *testing.T) {
	cases := []struct {
		name string
		b    byte
		want []bool // expected levels for: start, d0..d7, stop
	}{
		{"0x55", 0x55, []bool{false, true, false, true, false, true, false, true, false, true}},
		{"0x00", 0x00, []bool{false, false, false, false, false, false, false, false, false, true}},
		{"0xFF", 0xFF, []bool{false, true, true, true, true, true, true, true, true, true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newTestDevice(t, 0)
			d.Send(tc.b)

			var observed []bool
			top := int(d.tm.Top) + 1
			for i := 0; i < len(tc.want); i++ {
				// advance exactly one bit period to land on the next
				// A-compare tick, recording the level it set.
				for j := 0; j < top; j++ {
					d.Tick()
				}
				observed = append(observed, d.TXLevel())
			}
			assert.Equal(t, tc.want, observed)

			// One more bit period lets the Return state fire and
			// publish send_ready = true.
			for j := 0; j < top; j++ {
				d.Tick()
			}
			assert.True(t, d.SendOK(), "device should return to idle after stop bit")
		})
	}
}

// TestSamplingAlignment covers spec.md §8 property 4: a falling edge at an
// arbitrary counter phase schedules the first B-compare HALFBIT counts
// later (mod Top+1), and subsequent compares fire every Top+1 counts.
func TestSamplingAlignment(t *testing.T) {
	d := newTestDevice(t, 0)

	// Move the counter to phase 50 without letting it wrap oddly: tick it
	// there directly.
	for d.counter.Count() != 50 {
		d.Tick()
	}

	d.DriveRX(false) // falling edge at phase 50

	assert.False(t, d.edgeDet.Armed(), "edge detector disables itself on handoff")
	assert.True(t, d.counter.RxTickEnabled())
	assert.Equal(t, uint16(154), d.counter.RxCompare(), "50 + HALFBIT(104) = 154")
}

// TestReceive0xA5 is the concrete scenario from spec.md §8: a falling edge
// at phase 50, data samples H L H L L H L H (0xA5 LSB-first), and recv()
// returns 0xA5.
func TestReceive0xA5(t *testing.T) {
	d := newTestDevice(t, 0)

	for d.counter.Count() != 50 {
		d.Tick()
	}
	d.DriveRX(false) // start bit

	// Bits of 0xA5 = 1010_0101, LSB first: 1,0,1,0,0,1,0,1
	bits := []bool{true, false, true, false, false, true, false, true}

	period := int(d.tm.Top) + 1
	// First sample (start-bit midpoint) fires HALFBIT ticks after the
	// edge; after that each state advances every full bit period.
	for i := 0; i < int(d.tm.HalfBit); i++ {
		d.Tick()
	}
	// Now at StartMid -> DataBit transition tick already fired.
	for _, bit := range bits {
		d.DriveRX(bit)
		for j := 0; j < period; j++ {
			d.Tick()
		}
	}
	d.DriveRX(true) // stop bit, line returns high
	for j := 0; j < period; j++ {
		d.Tick()
	}

	require.Equal(t, uint32(1), d.Available())
	assert.Equal(t, byte(0xA5), d.Recv())
}

func TestRingOverflowDropsOldest(t *testing.T) {
	d := newTestDevice(t, 4)

	for _, b := range []byte{1, 2, 3, 4, 5, 6} {
		d.publish(b)
	}

	assert.Equal(t, uint32(4), d.Available())
	assert.Equal(t, byte(3), d.Recv())
	assert.Equal(t, byte(4), d.Recv())
	assert.Equal(t, byte(5), d.Recv())
	assert.Equal(t, byte(6), d.Recv())
	assert.Equal(t, uint64(2), d.DroppedBytes())
}

func TestSingleSlotOverwrite(t *testing.T) {
	d := newTestDevice(t, 0)

	d.publish(0x11)
	d.publish(0x22) // overwrites unread 0x11

	assert.Equal(t, byte(0x22), d.Recv())
	assert.Equal(t, uint64(1), d.DroppedBytes())
}

func TestAlarmSchedulesDelayState(t *testing.T) {
	d := newTestDevice(t, 0)

	d.Alarm(1) // 1ms at 8MHz/4 = 2000 ticks = 9 full bit periods + remainder

	assert.False(t, d.SendOK())
	assert.Equal(t, txDelay, d.txState)
	assert.True(t, d.counter.TxTickEnabled())
}

func TestDelayBlocksApproximatelyRequestedDuration(t *testing.T) {
	d, err := New(Config{CPUFreq: 8_000_000, Rate: 9600}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		d.Delay(1)
		close(done)
	}()

	// 1ms at 8MHz/4 prescale = 2000 ticks exactly (Top=207 -> period=208,
	// cycles=9, remainder=128; Alarm's forward-dated schedule lands on
	// exactly remainder + cycles*period = 2000 ticks from whenever it
	// acquires the lock). Measured ticks can only be >= 2000, never less;
	// the upper bound leaves headroom for goroutine scheduling slack
	// before Alarm's first lock acquisition.
	ticks := 0
	for {
		select {
		case <-done:
			assert.GreaterOrEqual(t, ticks, 2000)
			assert.LessOrEqual(t, ticks, 2500)
			return
		default:
		}
		d.Tick()
		ticks++
		if ticks > 10000 {
			t.Fatal("delay never completed")
		}
	}
}

func TestConfigRejectsUnsupportedRate(t *testing.T) {
	_, err := New(Config{CPUFreq: 8_000_000, Rate: 4800}, nil)
	assert.Error(t, err)
}

func TestConfigRejectsRingSizeOfOne(t *testing.T) {
	_, err := New(Config{CPUFreq: 8_000_000, Rate: 9600, RingBufferSize: 1}, nil)
	assert.Error(t, err)
}
