// Command fdserialecho drives a loopback uart.Device pair over a sim.Link
// and reports how long a message takes to cross it, a headless smoke-test
// for the bit-banged software UART.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/halfbit/fdserial/sim"
	"github.com/halfbit/fdserial/uart"
)

func main() {
	message := flag.String("message", "hello", "message to send across the loopback link")
	ring := flag.Int("ring", 0, "ring buffer size on the receiving device (0 = single-slot)")
	rate := flag.Int("rate", 9600, "serial rate in bits/sec")
	cpuFreq := flag.Int("cpufreq", 8_000_000, "simulated CPU clock frequency in Hz")
	flag.Parse()

	cfg := uart.Config{CPUFreq: *cpuFreq, Rate: *rate}
	a, err := uart.New(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: tx device: %v\n", err)
		os.Exit(1)
	}
	cfg.RingBufferSize = *ring
	b, err := uart.New(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: rx device: %v\n", err)
		os.Exit(1)
	}

	link := sim.NewLink(a, b)
	payload := []byte(*message)

	sendDone := make(chan struct{})
	go func() {
		for _, c := range payload {
			a.Send(c)
		}
		close(sendDone)
	}()

	got := make([]byte, 0, len(payload))
	recvDone := make(chan struct{})
	go func() {
		for range payload {
			got = append(got, b.Recv())
		}
		close(recvDone)
	}()

	ticks := 0
	const tickBudget = 10_000_000
	for {
		select {
		case <-recvDone:
			<-sendDone
			fmt.Printf("sent %q, received %q, transferred in %d counter ticks\n", payload, got, ticks)
			fmt.Printf("tx dropped=%d rx dropped=%d\n", a.DroppedBytes(), b.DroppedBytes())
			return
		default:
		}
		link.Step()
		ticks++
		if ticks > tickBudget {
			fmt.Fprintln(os.Stderr, "error: loopback did not complete within tick budget")
			os.Exit(1)
		}
	}
}
