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

// Package rtclock maintains the kernel's monotonic nanosecond clock.
//
// The hardware cycle counter - which can be read efficiently from any
// context - is the reference for all timing. Its rate is platform-dependent
// and the counter may stop or be reset when a processor is napped or slept,
// so nanotime is the software abstraction used to maintain a monotonic
// clock, rebased from power management as needed.
//
// The clock records:
//
//   - the ratio of cycles to nanoseconds, expressed as a 32-bit fixed-point
//     scale and a power-of-two pre-shift for slow counters;
//
//   - a {TSCBase, NSBase} pair of corresponding timestamps.
//
// The tuple {TSCBase, NSBase, Scale, Shift} is forwarded to a publication
// sink (the commpage) after every update so userspace can evaluate nanotime
// with the same protocol.
//
// All of the routines which update the tuple are non-reentrant. This must be
// guaranteed by the caller, conventionally by running them with interrupts
// masked on the updating processor. Reads take no locks, never block, and
// are safe from any processor and any interrupt context.
package rtclock

import (
	"math/bits"

	"github.com/t0rr3sp3dr0/darlingserver/pkg/atomicbitops"
	"github.com/t0rr3sp3dr0/darlingserver/pkg/log"
	"github.com/t0rr3sp3dr0/darlingserver/pkg/sync"
	"github.com/t0rr3sp3dr0/darlingserver/pkg/tsc"
)

const (
	// NSecPerSec is the number of nanoseconds in a second.
	NSecPerSec = 1000 * 1000 * 1000

	// NSecPerUSec is the number of nanoseconds in a microsecond.
	NSecPerUSec = 1000
)

// Timebase is the reference point used to convert a cycle counter reading
// into nanoseconds:
//
//	ns = NSBase + (((cycles - TSCBase) << Shift) * Scale) >> 32
//
// Shift is zero unless the counter is too slow for the 32-bit fixed-point
// scale, in which case cycle deltas are pre-shifted into range.
type Timebase struct {
	// TSCBase is the cycle counter value at the reference instant.
	TSCBase uint64

	// NSBase is the nanosecond reading at the reference instant.
	NSBase uint64

	// Scale is the cycles-to-nanoseconds ratio in 32.32 fixed point.
	Scale uint32

	// Shift is the pre-shift applied to cycle deltas before scaling.
	Shift uint32
}

// tscToNanoseconds converts a cycle delta to nanoseconds using a 128-bit
// intermediate product, so the full 64-bit delta range is usable.
func tscToNanoseconds(delta uint64, scale uint32, shift uint32) uint64 {
	hi, lo := bits.Mul64(delta<<shift, uint64(scale))
	return hi<<32 | lo>>32
}

// Nanotime evaluates the timebase at the given counter reading.
func (tb Timebase) Nanotime(cycles uint64) uint64 {
	if cycles < tb.TSCBase {
		// The counter reading predates the reference instant; the
		// snapshot raced with a rebase. The base reading is the
		// closest answer the tuple can give.
		log.Warningf("rtclock: cycle reading %d predates timebase %d", cycles, tb.TSCBase)
		return tb.NSBase
	}
	return tb.NSBase + tscToNanoseconds(cycles-tb.TSCBase, tb.Scale, tb.Shift)
}

// CycleSource is the hardware cycle counter seam. Implementations must be
// callable from any context without blocking.
type CycleSource interface {
	// Cycles returns the current cycle counter value.
	Cycles() uint64
}

// Sink receives the timebase tuple after every update, typically to expose
// it to userspace through shared read-only memory.
type Sink interface {
	// SetNanotime publishes a new timebase tuple. Implementations must
	// make the tuple visible to their readers torn-read-safely.
	SetNanotime(tscBase, nsBase uint64, scale, shift uint32)
}

// TimerDevice is the hardware timer used to request deadline pops.
type TimerDevice interface {
	// Configure applies the device's fixed one-shot configuration. It is
	// called at boot and again after sleep invalidates the device state.
	Configure()

	// Set arms the timer to fire at the requested nanosecond deadline,
	// given the current reading now, and returns the deadline actually
	// achievable by the hardware. Set(0, 0) disarms the timer and
	// returns 0.
	Set(deadline, now uint64) uint64
}

// TimerQueue is the generic timer-expiry layer that consumes deadline pops
// and decides which software timers fire.
type TimerQueue interface {
	// Intr delivers a timer interrupt taken while running the given
	// context.
	Intr(userMode bool, pc uint64)

	// ResyncDeadlines forces a complete re-evaluation of timer
	// deadlines, ending in a SetPop for the next one.
	ResyncDeadlines()
}

// Clock maintains the monotonic nanosecond clock for the whole machine.
//
// There is one Clock. Updates are serialized by the caller (interrupts
// masked on the updating processor); reads are lock-free from anywhere.
type Clock struct {
	cycles CycleSource
	sink   Sink
	timer  TimerDevice
	queue  TimerQueue

	// seq guards whole-tuple consistency for readers. The four tuple
	// fields are individually atomic so racing readers see only values
	// some writer actually stored; seq detects mixes of old and new.
	seq     sync.SeqCount
	tscBase atomicbitops.Uint64
	nsBase  atomicbitops.Uint64
	scale   atomicbitops.Uint32
	shift   atomicbitops.Uint32

	// Last sleep/wake reference points, retained for diagnostics.
	// Written only inside timebase reinitialization.
	lastSleepTSC atomicbitops.Uint64
	lastSleepNS  atomicbitops.Uint64
	lastWakeTSC  atomicbitops.Uint64
	lastWakeNS   atomicbitops.Uint64

	// rebaseOffset is the nanosecond equivalent of the cycles elapsed
	// between hardware reset and timebase initialization. On some
	// platforms the counter is not reset at warm boot, so this cannot be
	// derived later; it is computed once, first caller wins.
	rebaseOffset atomicbitops.Uint64

	// freq is the exported processor speed bookkeeping, written only
	// during master processor initialization.
	freq FrequencyInfo
}

// Options configures a Clock's collaborators. Nil fields get inert defaults
// (and, for Cycles, the real hardware counter).
type Options struct {
	// Cycles is the hardware cycle counter.
	Cycles CycleSource

	// Sink receives every published timebase tuple.
	Sink Sink

	// Timer is the deadline timer device.
	Timer TimerDevice

	// Queue is the generic timer-expiry layer.
	Queue TimerQueue
}

// New returns a Clock reading from the given collaborators. The clock
// reports 0 nanoseconds until SetTimescale establishes the first timebase.
func New(opts Options) *Clock {
	c := &Clock{
		cycles: opts.Cycles,
		sink:   opts.Sink,
		timer:  opts.Timer,
		queue:  opts.Queue,
	}
	if c.cycles == nil {
		c.cycles = tsc.Counter{}
	}
	if c.sink == nil {
		c.sink = nopSink{}
	}
	if c.timer == nil {
		c.timer = nopTimer{}
	}
	if c.queue == nil {
		c.queue = nopQueue{}
	}
	return c
}

// Timebase returns a consistent snapshot of the current timebase tuple.
//
// The snapshot protocol never yields a mix of old and new fields: the
// epoch is captured before the field loads and revalidated after, retrying
// on a detected concurrent update. Retries happen only while a writer is
// mid-update, which is rare and brief.
func (c *Clock) Timebase() Timebase {
	for {
		epoch := c.seq.BeginRead()
		tb := Timebase{
			TSCBase: c.tscBase.Load(),
			NSBase:  c.nsBase.Load(),
			Scale:   c.scale.Load(),
			Shift:   c.shift.Load(),
		}
		if c.seq.ReadOk(epoch) {
			return tb
		}
	}
}

// Now returns the current nanotime value. It is callable from any context:
// it takes no locks, never blocks, and never goes backwards as long as
// writers respect the rebase guards.
func (c *Clock) Now() uint64 {
	tb := c.Timebase()
	return tb.Nanotime(c.cycles.Cycles())
}

// ApproximateNow returns a low-cost estimate of Now. This implementation
// has no cheaper estimate available and returns exactly Now.
func (c *Clock) ApproximateNow() uint64 {
	return c.Now()
}

// store replaces the timebase tuple and forwards it to the publication
// sink.
//
// Preconditions: the caller guarantees non-reentrancy (interrupts masked on
// the updating processor, no concurrent store from another processor).
func (c *Clock) store(tb Timebase) {
	c.seq.BeginWrite()
	c.tscBase.Store(tb.TSCBase)
	c.nsBase.Store(tb.NSBase)
	c.scale.Store(tb.Scale)
	c.shift.Store(tb.Shift)
	c.seq.EndWrite()

	c.sink.SetNanotime(tb.TSCBase, tb.NSBase, tb.Scale, tb.Shift)
}

// Republish forwards the current tuple to the publication sink again. It is
// used when the sink's backing memory is (re)created after the clock is
// already running.
func (c *Clock) Republish() {
	tb := c.Timebase()
	c.sink.SetNanotime(tb.TSCBase, tb.NSBase, tb.Scale, tb.Shift)
}

type nopSink struct{}

func (nopSink) SetNanotime(tscBase, nsBase uint64, scale, shift uint32) {}

type nopTimer struct{}

func (nopTimer) Configure() {}

func (nopTimer) Set(deadline, now uint64) uint64 {
	if deadline == 0 {
		return 0
	}
	return deadline
}

type nopQueue struct{}

func (nopQueue) Intr(userMode bool, pc uint64) {}

func (nopQueue) ResyncDeadlines() {}
