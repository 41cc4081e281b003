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

	"github.com/t0rr3sp3dr0/darlingserver/pkg/atomicbitops"
)

// CPU is the per-processor clock state. Deadline fields are owned by the
// processor's own execution context and need no synchronization; the
// interrupt and preemption flags model the execution state that the
// precondition assertions check.
type CPU struct {
	// ID is the processor number.
	ID int

	// intsEnabled is whether interrupts are enabled on this processor.
	// Processors come out of reset with interrupts masked, matching the
	// zero value.
	intsEnabled atomicbitops.Bool

	// preemptLevel is the preemption-disable depth.
	preemptLevel atomicbitops.Int32

	// deadline is the nanosecond deadline last requested through SetPop.
	deadline uint64

	// pop is the deadline the hardware actually achieved.
	pop uint64
}

// SetInterruptsEnabled records the processor's interrupt-enable state. The
// interrupt glue calls this on entry/exit; the clock itself only asserts on
// it.
func (c *CPU) SetInterruptsEnabled(enabled bool) {
	c.intsEnabled.Store(enabled)
}

// InterruptsEnabled returns whether interrupts are enabled on this
// processor.
func (c *CPU) InterruptsEnabled() bool {
	return c.intsEnabled.Load()
}

// RaisePreemption increments the preemption-disable depth.
func (c *CPU) RaisePreemption() {
	c.preemptLevel.Add(1)
}

// LowerPreemption decrements the preemption-disable depth.
func (c *CPU) LowerPreemption() {
	if c.preemptLevel.Add(-1) < 0 {
		panic(fmt.Sprintf("rtclock: preemption level underflow on cpu %d", c.ID))
	}
}

// PreemptionLevel returns the preemption-disable depth.
func (c *CPU) PreemptionLevel() int32 {
	return c.preemptLevel.Load()
}

// Deadline returns the nanosecond deadline last requested on this
// processor.
func (c *CPU) Deadline() uint64 {
	return c.deadline
}

// Pop returns the deadline the hardware reported it will achieve for this
// processor.
func (c *CPU) Pop() uint64 {
	return c.pop
}

// assertNonReentrant panics unless the processor holds the documented
// update precondition: interrupts masked. A corrupted shared timebase has
// no safe degraded mode, so the contract is fatal rather than recoverable.
func assertNonReentrant(cpu *CPU) {
	if cpu.InterruptsEnabled() {
		panic(fmt.Sprintf("rtclock: timebase update with interrupts enabled on cpu %d", cpu.ID))
	}
}
