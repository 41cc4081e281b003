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

package rtclock

import (
	"fmt"

	"github.com/t0rr3sp3dr0/darlingserver/pkg/log"
)

const (
	// slowTSCThreshold is the cycle frequency below which the 32-bit
	// fixed-point scale would overflow. Frequencies at or below it are
	// doubled, with a compensating pre-shift, until they exceed it.
	slowTSCThreshold = 1000067800

	// speedRoundingFactor rounds the exported processor speed to a
	// number fit for humans.
	speedRoundingFactor = 10000000
)

// FrequencyInfo is the exported processor speed bookkeeping, for the
// platform expert layer. ACPI may update the min/max later if
// speed-stepping is detected; that happens outside this package, through
// the adjustment operations.
type FrequencyInfo struct {
	// ClockRateHz is the measured rate, clamped to 32 bits for legacy
	// consumers.
	ClockRateHz uint32

	// FrequencyHz is the measured rate rounded to speedRoundingFactor.
	FrequencyHz uint64

	// MinHz and MaxHz bound the rate across power states.
	MinHz, MaxHz uint64
}

// DeriveScale converts a measured cycles-per-second value into the
// fixed-point (scale, shift) pair used by the timebase.
//
// While cyclesPerSec is at or below the slow-counter threshold it is
// doubled with a compensating shift increment; shift is 0 in the common
// case and grows without bound for pathologically slow counters.
func DeriveScale(cyclesPerSec uint64) (scale uint32, shift uint32) {
	if cyclesPerSec == 0 {
		panic("rtclock: cycle frequency is zero or unmeasured")
	}

	cycles := cyclesPerSec
	for cycles <= slowTSCThreshold {
		shift++
		cycles <<= 1
	}

	scale = uint32((uint64(NSecPerSec) << 32) / cycles)
	return scale, shift
}

// SetTimescale establishes the clock's conversion ratio from the measured
// counter frequency and initializes the first timebase at nanotime 0.
//
// tscAtBoot is the counter reading captured at the earliest point of boot;
// the cycles elapsed since then are recorded, in nanoseconds, as the
// one-time rebase offset.
//
// SetTimescale is called exactly once per boot, on the master processor,
// with interrupts masked, before any reader can observe the clock.
func (c *Clock) SetTimescale(cpu *CPU, cyclesPerSec, tscAtBoot uint64) {
	assertNonReentrant(cpu)

	scale, shift := DeriveScale(cyclesPerSec)
	if shift != 0 {
		log.Infof("Slow cycle counter, timebase shift == %d", shift)
	}

	// On some platforms the counter is not reset at warm boot, so the
	// rebase time cannot be derived from nanotime later. Convert the
	// cycles since boot entry now, first caller wins.
	if c.rebaseOffset.Load() == 0 {
		c.rebaseOffset.Store(tscToNanoseconds(c.cycles.Cycles()-tscAtBoot, scale, shift))
	}

	c.initNanotime(0, scale, shift)
}

// initNanotime reinitializes the timebase at the current counter reading
// with the given nanosecond origin, recording the displaced tuple as the
// last-sleep reference and the new tuple as the last-wake reference.
//
// Preconditions: non-reentrancy, as for store.
func (c *Clock) initNanotime(nsBase uint64, scale, shift uint32) {
	old := c.Timebase()
	c.lastSleepTSC.Store(old.TSCBase)
	c.lastSleepNS.Store(old.NSBase)

	tb := Timebase{
		TSCBase: c.cycles.Cycles(),
		NSBase:  nsBase,
		Scale:   scale,
		Shift:   shift,
	}
	c.store(tb)

	c.lastWakeTSC.Store(tb.TSCBase)
	c.lastWakeNS.Store(tb.NSBase)
}

// Init initializes the clock device on the calling processor. The master
// processor additionally records the exported processor speed. Interrupts
// must be masked.
func (c *Clock) Init(cpu *CPU, master bool, cyclesPerSec uint64) {
	assertNonReentrant(cpu)

	if master {
		if cyclesPerSec == 0 {
			panic("rtclock: master init before frequency measurement")
		}
		cycles := c.exportSpeed(cyclesPerSec)

		// Set min/max to actual. ACPI may update these later if
		// speed-stepping is detected.
		c.freq.MinHz = cycles
		c.freq.MaxHz = cycles
	}

	// Apply the fixed timer configuration and force a deadline
	// re-evaluation.
	c.timer.Configure()
	c.TimerStart(cpu)
}

// exportSpeed records and returns the rounded processor speed.
func (c *Clock) exportSpeed(cyclesPerSec uint64) uint64 {
	if c.shift.Load() != 0 {
		log.Infof("Slow cycle counter, timebase shift == %d", c.shift.Load())
	}

	// Round:
	cycles := ((cyclesPerSec + speedRoundingFactor/2) / speedRoundingFactor) * speedRoundingFactor

	if cycles >= 1<<32 {
		c.freq.ClockRateHz = ^uint32(0)
	} else {
		c.freq.ClockRateHz = uint32(cycles)
	}
	c.freq.FrequencyHz = cycles

	log.Infof("rtclock: frequency %d (%d)", cycles, cyclesPerSec)
	return cycles
}

// Frequency returns the exported processor speed bookkeeping. Valid after
// master Init.
func (c *Clock) Frequency() FrequencyInfo {
	return c.freq
}

// RebaseOffset returns the nanosecond equivalent of the cycles elapsed
// between hardware reset and timebase initialization, for diagnostic
// export. Zero means SetTimescale has not run.
func (c *Clock) RebaseOffset() uint64 {
	return c.rebaseOffset.Load()
}

// TimebaseInfo describes the ratio between the clock's absolute time unit
// and nanoseconds. This clock defines absolute time to already be
// nanoseconds.
func TimebaseInfo() (numer, denom uint32) {
	return 1, 1
}

// String implements fmt.Stringer.
func (f FrequencyInfo) String() string {
	return fmt.Sprintf("%d Hz (min %d, max %d)", f.FrequencyHz, f.MinHz, f.MaxHz)
}
