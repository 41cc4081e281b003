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
	"testing"

	"github.com/t0rr3sp3dr0/darlingserver/pkg/arch"
)

func TestSetPopSentinels(t *testing.T) {
	for _, tc := range []struct {
		name string
		t    uint64
	}{
		{name: "zero", t: 0},
		{name: "end of all time", t: EndOfAllTime},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, cycles, _, timer, cpu := testClock(t)
			cycles.advance(5000)

			if delta := c.SetPop(cpu, tc.t); delta != 0 {
				t.Errorf("SetPop got %d want 0", delta)
			}
			if cpu.Deadline() != EndOfAllTime {
				t.Errorf("recorded deadline got %d want EndOfAllTime", cpu.Deadline())
			}
			if cpu.Pop() != 0 {
				t.Errorf("recorded pop got %d want 0", cpu.Pop())
			}
			if len(timer.sets) != 1 || timer.sets[0].deadline != 0 {
				t.Errorf("hardware sets got %v want a single disarm", timer.sets)
			}
		})
	}
}

func TestSetPopArms(t *testing.T) {
	c, cycles, _, timer, cpu := testClock(t)
	timer.slack = 7

	cycles.advance(5000)
	delta := c.SetPop(cpu, 8000)

	// The fake reports the pop landing slack ns past the request.
	if want := uint64(8000 + 7 - 5000); delta != want {
		t.Errorf("SetPop got %d want %d", delta, want)
	}
	if cpu.Deadline() != 8000 {
		t.Errorf("recorded deadline got %d want 8000", cpu.Deadline())
	}
	if cpu.Pop() != 8007 {
		t.Errorf("recorded pop got %d want 8007", cpu.Pop())
	}
	if len(timer.sets) != 1 || timer.sets[0].deadline != 8000 || timer.sets[0].now != 5000 {
		t.Errorf("hardware sets got %v want [{8000 5000}]", timer.sets)
	}
}

func TestTimerStartResyncs(t *testing.T) {
	cycles := &fakeCycles{}
	queue := &fakeQueue{}
	c := New(Options{Cycles: cycles, Queue: queue})
	cpu := &CPU{}
	cpu.deadline = 42

	c.TimerStart(cpu)
	if cpu.Deadline() != EndOfAllTime {
		t.Errorf("deadline after TimerStart got %d want EndOfAllTime", cpu.Deadline())
	}
	if queue.resyncs != 1 {
		t.Errorf("resyncs got %d want 1", queue.resyncs)
	}
}

func TestInterruptForwardsContext(t *testing.T) {
	for _, tc := range []struct {
		name         string
		state        *arch.SavedState
		wantUserMode bool
		wantPC       uint64
	}{
		{
			name:         "64-bit user",
			state:        arch.NewSavedState64(arch.State64{RIP: 0x7fff12345678, CS: 0x2b, RFlags: 0x202, RSP: 0x7ffe0000, SS: 0x23}),
			wantUserMode: true,
			wantPC:       0x7fff12345678,
		},
		{
			name:         "64-bit kernel",
			state:        arch.NewSavedState64(arch.State64{RIP: 0xffffff8000201000, CS: 0x08, RFlags: 0x202, RSP: 0xffffff8000300000, SS: 0x10}),
			wantUserMode: false,
			wantPC:       0xffffff8000201000,
		},
		{
			name:         "32-bit user",
			state:        arch.NewSavedState32(arch.State32{EIP: 0x08048000, CS: 0x1b, EFlags: 0x202, UESP: 0xbffff000, SS: 0x23}),
			wantUserMode: true,
			wantPC:       0x08048000,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cycles := &fakeCycles{}
			queue := &fakeQueue{}
			c := New(Options{Cycles: cycles, Queue: queue})
			cpu := &CPU{}
			cpu.RaisePreemption()

			c.Interrupt(cpu, tc.state)

			if len(queue.intrs) != 1 {
				t.Fatalf("deliveries got %d want 1", len(queue.intrs))
			}
			got := queue.intrs[0]
			if got.userMode != tc.wantUserMode || got.pc != tc.wantPC {
				t.Errorf("delivery got (%t, %#x) want (%t, %#x)", got.userMode, got.pc, tc.wantUserMode, tc.wantPC)
			}
		})
	}
}

func TestInterruptPreconditions(t *testing.T) {
	state := arch.NewSavedState64(arch.State64{RIP: 0x1000, CS: 0x2b, RFlags: 0x202, RSP: 0x2000, SS: 0x23})

	t.Run("preemption not raised", func(t *testing.T) {
		c, _, _, _, cpu := testClock(t)
		defer func() {
			if recover() == nil {
				t.Errorf("Interrupt without raised preemption: got no panic, wanted panic")
			}
		}()
		c.Interrupt(cpu, state)
	})

	t.Run("interrupts enabled", func(t *testing.T) {
		c, _, _, _, cpu := testClock(t)
		cpu.RaisePreemption()
		cpu.SetInterruptsEnabled(true)
		defer func() {
			if recover() == nil {
				t.Errorf("Interrupt with interrupts enabled: got no panic, wanted panic")
			}
		}()
		c.Interrupt(cpu, state)
	})
}
