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

	"github.com/t0rr3sp3dr0/darlingserver/pkg/arch"
)

// EndOfAllTime is the deadline sentinel meaning "never": requesting it (or
// 0) clears the timer instead of arming it.
const EndOfAllTime = ^uint64(0)

// SetPop requests a timer pop from the hardware at nanosecond deadline t
// and records the requested and achieved deadlines for the calling
// processor. It returns the relative time until the achieved pop.
//
// 0 and EndOfAllTime are special-cases for "clear the timer"; both disarm
// the hardware and return 0.
//
// The deadline state is owned by the calling processor's execution context;
// SetPop performs no cross-processor synchronization.
func (c *Clock) SetPop(cpu *CPU, t uint64) uint64 {
	var now, pop uint64

	if t == 0 || t == EndOfAllTime {
		t = EndOfAllTime
		now = 0
		pop = c.timer.Set(0, 0)
	} else {
		now = c.Now()
		pop = c.timer.Set(t, now)
	}

	// Record requested and actual deadlines set.
	cpu.deadline = t
	cpu.pop = pop

	return pop - now
}

// TimerStart forces a complete re-evaluation of timer deadlines on the
// calling processor, discarding whatever deadline was recorded. The expiry
// queue ends the re-evaluation by arming the next real deadline through
// SetPop.
func (c *Clock) TimerStart(cpu *CPU) {
	cpu.deadline = EndOfAllTime
	c.queue.ResyncDeadlines()
}

// Interrupt is the clock's timer interrupt entry point. It normalizes the
// interrupted context into (userMode, pc) and forwards the pair to the
// generic timer-expiry queue, which decides what fires and re-arms the next
// deadline.
//
// Preconditions: called with interrupts masked and preemption raised on the
// interrupted processor.
func (c *Clock) Interrupt(cpu *CPU, state *arch.SavedState) {
	if cpu.PreemptionLevel() <= 0 {
		panic(fmt.Sprintf("rtclock: timer interrupt without raised preemption on cpu %d", cpu.ID))
	}
	if cpu.InterruptsEnabled() {
		panic(fmt.Sprintf("rtclock: timer interrupt with interrupts enabled on cpu %d", cpu.ID))
	}

	userMode, pc := state.Interrupted()

	// Call the generic timer-expiry layer.
	c.queue.Intr(userMode, pc)
}
