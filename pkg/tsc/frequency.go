// Copyright 2026 The darlingserver Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

package tsc

import (
	"fmt"
	"math/bits"
	"time"

	"golang.org/x/sys/unix"

	"github.com/t0rr3sp3dr0/darlingserver/pkg/log"
)

const (
	// measureWindow is how long MeasureFrequency lets the counter run
	// between its two reference samples. Longer windows amortize sample
	// overhead; 50ms keeps boot fast while staying well under 0.1%
	// measurement error for overheads in the hundreds of cycles.
	measureWindow = 50 * time.Millisecond

	// sampleAttempts is how many raw samples to take when looking for one
	// with low overhead.
	sampleAttempts = 10
)

// sample is a reference clock reading bracketed by two counter readings.
type sample struct {
	before uint64
	after  uint64
	ref    int64
}

// overhead returns the sample overhead in counter cycles.
func (s sample) overhead() uint64 {
	return s.after - s.before
}

// midpoint returns the counter value assumed to correspond to ref.
func (s sample) midpoint() uint64 {
	return s.before + s.overhead()/2
}

// referenceClocks collects individual samples from a reference clock and the
// cycle counter.
type referenceClocks interface {
	// Sample returns a single bracketed reference sample.
	Sample() (sample, error)
}

// rawReferenceClocks samples CLOCK_MONOTONIC_RAW, the one host clock that is
// never slewed by NTP and so reflects the raw counter rate.
type rawReferenceClocks struct{}

// Sample implements referenceClocks.Sample.
func (rawReferenceClocks) Sample() (sample, error) {
	var (
		s  sample
		ts unix.Timespec
	)

	s.before = Read()
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		return sample{}, fmt.Errorf("clock_gettime(CLOCK_MONOTONIC_RAW): %w", err)
	}
	s.after = Read()
	s.ref = ts.Nano()

	return s, nil
}

// MeasureFrequency returns the cycle counter frequency in Hz.
//
// If the hardware advertises its frequency (arm64), that value is returned
// without measurement. Otherwise the counter is measured against
// CLOCK_MONOTONIC_RAW over a short window.
//
// MeasureFrequency blocks for the duration of the measurement window. It is
// intended to run once at boot; re-measurement after calibration is not
// supported.
func MeasureFrequency() (uint64, error) {
	if f := counterFrequency(); f != 0 {
		return f, nil
	}
	return measure(rawReferenceClocks{}, measureWindow)
}

// measure computes the counter frequency from two low-overhead samples taken
// window apart.
func measure(clocks referenceClocks, window time.Duration) (uint64, error) {
	first, err := lowOverheadSample(clocks)
	if err != nil {
		return 0, err
	}

	time.Sleep(window)

	last, err := lowOverheadSample(clocks)
	if err != nil {
		return 0, err
	}

	dNS := last.ref - first.ref
	if dNS <= 0 {
		return 0, fmt.Errorf("reference clock did not advance: %d -> %d", first.ref, last.ref)
	}
	dCycles := last.midpoint() - first.midpoint()

	freq, ok := muldiv64(dCycles, uint64(time.Second.Nanoseconds()), uint64(dNS))
	if !ok {
		return 0, fmt.Errorf("frequency computation overflowed: %d cycles in %d ns", dCycles, dNS)
	}
	if freq == 0 {
		return 0, fmt.Errorf("cycle counter did not advance in %v", window)
	}

	log.Debugf("Measured cycle counter frequency: %d Hz", freq)
	return freq, nil
}

// lowOverheadSample returns the sample with the lowest overhead out of a
// fixed number of attempts.
func lowOverheadSample(clocks referenceClocks) (sample, error) {
	var (
		best sample
		got  bool
	)
	for i := 0; i < sampleAttempts; i++ {
		s, err := clocks.Sample()
		if err != nil {
			return sample{}, err
		}
		if s.after < s.before {
			log.Warningf("Cycle counter went backwards: %v > %v", s.before, s.after)
			continue
		}
		if !got || s.overhead() < best.overhead() {
			best = s
			got = true
		}
	}
	if !got {
		return sample{}, fmt.Errorf("no usable reference sample in %d attempts", sampleAttempts)
	}
	return best, nil
}

// muldiv64 multiplies two 64-bit numbers, then divides the result by another
// 64-bit number.
//
// It requires that the result fit in 64 bits, but doesn't require that
// intermediate values do; in particular, the result of the multiplication may
// require 128 bits.
//
// It returns !ok if divisor is zero or the result does not fit in 64 bits.
func muldiv64(value, multiplier, divisor uint64) (uint64, bool) {
	if divisor == 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(value, multiplier)
	if hi >= divisor {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, divisor)
	return q, true
}
