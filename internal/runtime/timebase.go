package runtime

import "time"

// guestTicksPerSecond is the Xbox 360's documented timebase frequency:
// mftb reads a monotonic 50 MHz guest tick counter.
const guestTicksPerSecond = 50_000_000

var processStart = time.Now()

// nowFunc is overridable in tests to avoid relying on wall-clock
// timing for deterministic assertions.
var nowFunc = time.Now

// ReadTimebase implements mftb: a monotonic guest tick counter driven
// by the host's monotonic clock and scaled to guest ticks. Unlike the
// teacher's 8253 PIT (which counts down a programmable divisor on a
// fixed oscillator), this is free-running and never programmed by the
// guest; there is no PPC equivalent of the 8253's channel/mode
// registers to emulate.
func ReadTimebase() uint64 {
	elapsed := nowFunc().Sub(processStart)
	return uint64(elapsed.Seconds() * guestTicksPerSecond)
}
