package uart

import (
	"fmt"

	"github.com/halfbit/fdserial/internal/timing"
)

// Config is the build-time configuration of spec.md §6: CPU_FREQ,
// SERIAL_RATE and the optional RING_BUFFER capacity. Go has no
// preprocessor, so the "hard build failure" on an unsupported rate
// becomes a constructor-time error instead (the check is in
// timing.Derive).
type Config struct {
	// CPUFreq is the simulated CPU clock in hertz. Zero defaults to 8MHz,
	// the only configuration the original validates.
	CPUFreq int

	// Rate is the line rate in bits/sec. Only 9600 is supported.
	Rate int

	// RingBufferSize, when non-zero, selects ring-buffer receive mode with
	// this capacity. Zero selects single-slot receive mode.
	RingBufferSize int
}

// DefaultConfig returns the one validated configuration: 8MHz CPU clock,
// 9600bps, single-slot receive.
func DefaultConfig() Config {
	return Config{CPUFreq: 8_000_000, Rate: 9600}
}

func (c Config) resolve() Config {
	if c.CPUFreq == 0 {
		c.CPUFreq = 8_000_000
	}
	if c.Rate == 0 {
		c.Rate = timing.SupportedRate
	}
	return c
}

func (c Config) validate() (timing.Constants, error) {
	tm, err := timing.Derive(c.CPUFreq, c.Rate)
	if err != nil {
		return timing.Constants{}, err
	}
	if c.RingBufferSize < 0 {
		return timing.Constants{}, fmt.Errorf("uart: negative ring buffer size %d", c.RingBufferSize)
	}
	if c.RingBufferSize == 1 {
		return timing.Constants{}, fmt.Errorf("uart: ring buffer size of 1 behaves like single-slot mode; use 0 for single-slot")
	}
	return tm, nil
}
