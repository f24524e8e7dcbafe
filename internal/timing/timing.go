// Package timing derives the counter constants for the software UART from
// a CPU clock and a line rate, the way fd-serial.c's preprocessor constants
// (SERIAL_TOP, SERIAL_HALFBIT, PRESCALER_DIVISOR) were derived by hand for
// 8MHz/9600bps.
package timing

import "fmt"

// SupportedRate is the only line rate this module validates. Matching
// spec.md's "rates other than 9600 bps... must be rejected", this is
// enforced at Derive time rather than at compile time since Go has no
// preprocessor.
const SupportedRate = 9600

// Prescaler is the fixed CK/4 divisor used for the validated rate. Other
// prescaler values would change Top and HalfBit but are not exercised here.
const Prescaler = 4

// Constants holds the derived counter values for one (CPUFreq, Rate) pair.
type Constants struct {
	CPUFreq      int    // hertz
	Rate         int    // bits/sec
	Prescaler    int    // counter clock divisor
	Top          uint16 // CTC top value (counter wraps at Top, period = Top+1 counts)
	HalfBit      uint16 // half a bit period in counter counts
	EffectiveHz  float64
	ErrorPercent float64
}

// Derive computes the counter constants for a CPU clock and line rate.
// It returns an error for any rate other than SupportedRate, mirroring the
// original's "#error" build failure as a constructor-time check.
func Derive(cpuFreq, rate int) (Constants, error) {
	if rate != SupportedRate {
		return Constants{}, fmt.Errorf("timing: serial rate %d not supported (only %d is validated)", rate, SupportedRate)
	}
	if cpuFreq <= 0 {
		return Constants{}, fmt.Errorf("timing: cpu frequency must be positive, got %d", cpuFreq)
	}

	// F/(P*R) lands just above an integer T; Top = T-1, matching
	// 8000000/4/9600 = 208.333 -> T=208 -> Top=207 in fd-serial.c.
	divisor := float64(cpuFreq) / float64(Prescaler) / float64(rate)
	t := int(divisor) // truncation matches the original's integer division
	top := uint16(t - 1)
	halfBit := (top + 1) / 2

	effective := float64(cpuFreq) / float64(Prescaler) / float64(int(top)+1)
	errPct := (effective - float64(rate)) / float64(rate) * 100

	return Constants{
		CPUFreq:      cpuFreq,
		Rate:         rate,
		Prescaler:    Prescaler,
		Top:          top,
		HalfBit:      halfBit,
		EffectiveHz:  effective,
		ErrorPercent: errPct,
	}, nil
}

// Default8MHz returns the constants for the one configuration spec.md
// validates: F=8MHz, R=9600 (Top=207, HalfBit=104, effective 9615bps).
func Default8MHz() Constants {
	c, err := Derive(8_000_000, SupportedRate)
	if err != nil {
		// unreachable: 8MHz/9600 is the validated configuration.
		panic(err)
	}
	return c
}
