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
)

// maxAdjustDelta bounds Adjust deltas to the order of a counter quantum, so
// the resulting nudge is invisible to nanotime readers.
const maxAdjustDelta = 100

// Napped rebases the clock after exit from a deep idle state in which the
// cycle counter stopped. Power management supplies the nanosecond value
// nsBase that the clock should report at counter reading tscBase.
//
// The rebase applies only if the proposed base reports a later nanotime at
// the current counter reading than the standing base does; a rebase that
// would make nanotime regress is silently discarded, leaving the standing
// tuple in effect.
//
// Preconditions: interrupts masked on the calling processor.
func (c *Clock) Napped(cpu *CPU, nsBase, tscBase uint64) {
	assertNonReentrant(cpu)

	tb := c.Timebase()
	now := c.cycles.Cycles()
	oldNS := tb.Nanotime(now)
	newNS := Timebase{TSCBase: tscBase, NSBase: nsBase, Scale: tb.Scale, Shift: tb.Shift}.Nanotime(now)

	// Only update the base values if time using the new base values is
	// later than the time using the old base values.
	if oldNS < newNS {
		c.store(Timebase{TSCBase: tscBase, NSBase: nsBase, Scale: tb.Scale, Shift: tb.Shift})
	}
}

// SleepWakeup rebases the clock after wake from a full sleep, across which
// the cycle counter was reset to zero while nanotime (uptime) marches
// onward. nsBase is the nanosecond origin for the new epoch.
//
// Programmed deadlines were invalidated by the counter reset, so the timer
// device is reconfigured before the timebase is rebuilt.
//
// Preconditions: interrupts masked on the calling processor.
func (c *Clock) SleepWakeup(cpu *CPU, nsBase uint64) {
	assertNonReentrant(cpu)

	// Restore the fixed timer configuration lost across sleep.
	c.timer.Configure()

	tb := c.Timebase()
	c.initNanotime(nsBase, tb.Scale, tb.Shift)
}

// Adjust corrects small counter drift by nudging TSCBase backward by
// tscDelta counter ticks, leaving the nanosecond base and ratio untouched.
// Subsequent reads report a sub-quantum amount more elapsed time for the
// same counter value, so callers of Now never see time going backwards.
//
// Preconditions: interrupts masked on the calling processor; tscDelta is on
// the order of a counter quantum (under maxAdjustDelta ticks).
func (c *Clock) Adjust(cpu *CPU, tscDelta uint64) {
	assertNonReentrant(cpu)
	if tscDelta >= maxAdjustDelta {
		panic(fmt.Sprintf("rtclock: drift adjustment of %d ticks exceeds bound of %d", tscDelta, maxAdjustDelta))
	}

	tb := c.Timebase()
	tb.TSCBase -= tscDelta
	c.store(tb)
}

// LastSleep returns the timebase reference pair displaced by the most
// recent timebase reinitialization, for diagnostic export.
func (c *Clock) LastSleep() (tscBase, nsBase uint64) {
	return c.lastSleepTSC.Load(), c.lastSleepNS.Load()
}

// LastWake returns the timebase reference pair installed by the most recent
// timebase reinitialization, for diagnostic export.
func (c *Clock) LastWake() (tscBase, nsBase uint64) {
	return c.lastWakeTSC.Load(), c.lastWakeNS.Load()
}
