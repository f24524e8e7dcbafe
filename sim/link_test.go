package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halfbit/fdserial/uart"
)

func newLinkedPair(t *testing.T) (*uart.Device, *uart.Device, *Link) {
	t.Helper()
	a, err := uart.New(uart.Config{CPUFreq: 8_000_000, Rate: 9600}, func() {})
	require.NoError(t, err)
	b, err := uart.New(uart.Config{CPUFreq: 8_000_000, Rate: 9600}, func() {})
	require.NoError(t, err)
	return a, b, NewLink(a, b)
}

// runUntil drives the link one tick at a time until fn reports done, or a
// generous tick budget is exhausted, whichever comes first.
func runUntil(t *testing.T, link *Link, budget int, fn func() bool) {
	t.Helper()
	for i := 0; i < budget; i++ {
		if fn() {
			return
		}
		link.Step()
	}
	t.Fatal("link simulation did not converge within tick budget")
}

// TestLoopbackAllBytes covers spec.md §8 property 1: every one of the 256
// possible byte values survives a trip across the link unchanged.
func TestLoopbackAllBytes(t *testing.T) {
	a, b, link := newLinkedPair(t)

	var want []byte
	for v := 0; v < 256; v++ {
		want = append(want, byte(v))
	}

	done := make(chan struct{})
	go func() {
		for _, v := range want {
			a.Send(v)
		}
		close(done)
	}()

	got := make([]byte, 0, len(want))
	recvDone := make(chan struct{})
	go func() {
		for range want {
			got = append(got, b.Recv())
		}
		close(recvDone)
	}()

	// 256 bytes * ~10 bit periods * ~210 ticks, generous headroom.
	budget := 256 * 10 * 300
	runUntil(t, link, budget, func() bool {
		select {
		case <-recvDone:
			return true
		default:
			return false
		}
	})
	<-done

	assert.Equal(t, want, got, "order and value must be preserved across the link")
}

// TestIndependentStreams covers spec.md §8 property 3: simultaneous traffic
// in both directions does not corrupt either stream, since TX and RX run on
// independent state machines sharing only the counter.
func TestIndependentStreams(t *testing.T) {
	a, b, link := newLinkedPair(t)

	const n = 200
	wantAtoB := make([]byte, n)
	wantBtoA := make([]byte, n)
	for i := 0; i < n; i++ {
		wantAtoB[i] = byte(i)
		wantBtoA[i] = byte(255 - i)
	}

	doneSendA := make(chan struct{})
	doneSendB := make(chan struct{})
	go func() {
		for _, v := range wantAtoB {
			a.Send(v)
		}
		close(doneSendA)
	}()
	go func() {
		for _, v := range wantBtoA {
			b.Send(v)
		}
		close(doneSendB)
	}()

	gotAtoB := make([]byte, 0, n)
	gotBtoA := make([]byte, 0, n)
	doneRecvB := make(chan struct{})
	doneRecvA := make(chan struct{})
	go func() {
		for range wantAtoB {
			gotAtoB = append(gotAtoB, b.Recv())
		}
		close(doneRecvB)
	}()
	go func() {
		for range wantBtoA {
			gotBtoA = append(gotBtoA, a.Recv())
		}
		close(doneRecvA)
	}()

	budget := n * 10 * 300
	runUntil(t, link, budget, func() bool {
		select {
		case <-doneRecvB:
			select {
			case <-doneRecvA:
				return true
			default:
				return false
			}
		default:
			return false
		}
	})
	<-doneSendA
	<-doneSendB

	assert.Equal(t, wantAtoB, gotAtoB, "A->B stream must survive independent of B->A traffic")
	assert.Equal(t, wantBtoA, gotBtoA, "B->A stream must survive independent of A->B traffic")
}

// TestAlarmDoesNotBlockReception covers spec.md §4.6/§9: an Alarm on one
// side occupies only its own transmit engine, so the alarmed side can
// still receive a byte sent by the other side while the alarm runs.
func TestAlarmDoesNotBlockReception(t *testing.T) {
	a, b, link := newLinkedPair(t)

	alarmDone := make(chan struct{})
	go func() {
		a.Alarm(1)
		close(alarmDone)
	}()

	sendDone := make(chan struct{})
	go func() {
		b.Send(0x42)
		close(sendDone)
	}()

	recvDone := make(chan struct{})
	var got byte
	go func() {
		got = a.Recv()
		close(recvDone)
	}()

	budget := 20000
	runUntil(t, link, budget, func() bool {
		select {
		case <-recvDone:
			return true
		default:
			return false
		}
	})
	<-sendDone

	assert.Equal(t, byte(0x42), got, "reception must proceed while the other engine is alarming")
}
