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

// Package commpage implements the shared memory page through which the
// kernel publishes the timebase tuple to userspace.
//
// The page is mapped read-only into every address space; userspace nanotime
// evaluates the tuple locally instead of trapping into the kernel. Tuple
// updates use a generation counter: the kernel zeroes the generation, writes
// the fields, then installs the next nonzero generation. Readers retry while
// the generation is zero or changes across their field reads, so they never
// evaluate a mix of old and new fields. ReadNanotime in this package is the
// reference implementation of the reader side.
package commpage

import (
	"fmt"
	"math/bits"
	"runtime"

	"golang.org/x/sys/unix"
)

// Page layout. The generation counter leads so a reader's first load tells
// it whether an update is in flight.
const (
	offGeneration = 0
	offTSCBase    = 8
	offNSBase     = 16
	offScale      = 24
	offShift      = 28

	// dataSize is the number of bytes the nanotime data occupies.
	dataSize = 32
)

// Commpage is the kernel-side handle to the shared publication page.
type Commpage struct {
	// data is the backing memory. Only the leading dataSize bytes are
	// used; the rest of the page is reserved for other commpage
	// residents.
	data []byte

	// mapped is true if data was mmap'd by New and must be unmapped on
	// Close.
	mapped bool
}

// New maps a fresh shared page for publication.
func New() (*Commpage, error) {
	data, err := unix.Mmap(-1, 0, unix.Getpagesize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap commpage: %w", err)
	}
	return &Commpage{data: data, mapped: true}, nil
}

// FromBytes wraps an existing mapping (for example, one shared with an
// emulated process) as a Commpage. The slice must hold at least dataSize
// bytes and be 8-byte aligned.
func FromBytes(data []byte) (*Commpage, error) {
	if len(data) < dataSize {
		return nil, fmt.Errorf("commpage backing too small: %d bytes, need %d", len(data), dataSize)
	}
	if !aligned8(data) {
		return nil, fmt.Errorf("commpage backing not 8-byte aligned")
	}
	return &Commpage{data: data}, nil
}

// Close releases the page mapping, if this Commpage owns one.
func (c *Commpage) Close() error {
	if !c.mapped {
		return nil
	}
	c.mapped = false
	return unix.Munmap(c.data)
}

// SetNanotime publishes a new timebase tuple. It implements rtclock.Sink.
//
// Non-reentrancy is inherited from the publishing path: only the timebase
// writer calls SetNanotime, and it already holds the update precondition.
func (c *Commpage) SetNanotime(tscBase, nsBase uint64, scale, shift uint32) {
	gen := c.generation().Load()

	// Disable the tuple while it is inconsistent.
	c.generation().Store(0)

	c.tscBase().Store(tscBase)
	c.nsBase().Store(nsBase)
	c.scale().Store(scale)
	c.shift().Store(shift)

	gen++
	if gen == 0 {
		// Generation 0 means "update in flight"; skip it.
		gen = 1
	}
	c.generation().Store(gen)
}

// ReadNanotime returns a consistent snapshot of the published tuple. It is
// the same retry protocol userspace uses against the read-only mapping.
func (c *Commpage) ReadNanotime() (tscBase, nsBase uint64, scale, shift uint32) {
	for {
		gen := c.generation().Load()
		if gen == 0 {
			// Update in flight. Yield so the writer can finish.
			runtime.Gosched()
			continue
		}
		tscBase = c.tscBase().Load()
		nsBase = c.nsBase().Load()
		scale = c.scale().Load()
		shift = c.shift().Load()
		if c.generation().Load() == gen {
			return tscBase, nsBase, scale, shift
		}
	}
}

// Nanotime evaluates the published tuple at the given counter reading, the
// way a userspace nanotime routine would.
func (c *Commpage) Nanotime(cycles uint64) uint64 {
	tscBase, nsBase, scale, shift := c.ReadNanotime()
	if cycles < tscBase {
		return nsBase
	}
	hi, lo := bits.Mul64((cycles-tscBase)<<shift, uint64(scale))
	return nsBase + (hi<<32 | lo>>32)
}
