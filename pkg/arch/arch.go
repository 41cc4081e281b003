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

// Package arch provides architecture-specific context for interrupted
// threads.
//
// A thread interrupted in 64-bit mode and one interrupted in 32-bit
// compatibility mode save different register layouts. SavedState carries
// either shape, tagged by flavor, and is normalized exactly once at interrupt
// entry; nothing past the entry point looks at raw registers.
package arch

import (
	"fmt"
)

// StateFlavor identifies which saved register layout a SavedState carries.
type StateFlavor uint32

const (
	// StateFlavor32 is the 32-bit compatibility-mode register layout.
	StateFlavor32 StateFlavor = iota + 1

	// StateFlavor64 is the 64-bit register layout.
	StateFlavor64
)

// userCodeSelector masks the requested privilege level bits of a segment
// selector. A nonzero RPL means the interrupted context was not running in
// the kernel ring.
const userCodeSelector = 0x03

// State32 is the register state saved for a thread interrupted in 32-bit
// compatibility mode.
type State32 struct {
	EIP    uint32
	CS     uint32
	EFlags uint32
	UESP   uint32
	SS     uint32
}

// State64 is the register state saved for a thread interrupted in 64-bit
// mode. The fields mirror the hardware interrupt stack frame.
type State64 struct {
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// SavedState is the tagged union of the two saved register layouts.
//
// The zero value has no flavor and is invalid; construct values with
// NewSavedState32 or NewSavedState64.
type SavedState struct {
	flavor StateFlavor
	ss32   State32
	ss64   State64
}

// NewSavedState32 returns a SavedState carrying 32-bit saved registers.
func NewSavedState32(s State32) *SavedState {
	return &SavedState{flavor: StateFlavor32, ss32: s}
}

// NewSavedState64 returns a SavedState carrying 64-bit saved registers.
func NewSavedState64(s State64) *SavedState {
	return &SavedState{flavor: StateFlavor64, ss64: s}
}

// Flavor returns the saved register layout tag.
func (s *SavedState) Flavor() StateFlavor {
	return s.flavor
}

// Is64 returns true if the state carries the 64-bit register layout.
func (s *SavedState) Is64() bool {
	return s.flavor == StateFlavor64
}

// State32 returns the 32-bit register layout.
//
// Preconditions: s.Flavor() == StateFlavor32.
func (s *SavedState) State32() *State32 {
	if s.flavor != StateFlavor32 {
		panic(fmt.Sprintf("arch: saved state flavor is %d, not 32-bit", s.flavor))
	}
	return &s.ss32
}

// State64 returns the 64-bit register layout.
//
// Preconditions: s.Flavor() == StateFlavor64.
func (s *SavedState) State64() *State64 {
	if s.flavor != StateFlavor64 {
		panic(fmt.Sprintf("arch: saved state flavor is %d, not 64-bit", s.flavor))
	}
	return &s.ss64
}

// Interrupted normalizes the saved state into the pair every consumer wants:
// whether the interrupted context was running in user mode, and its
// instruction pointer.
func (s *SavedState) Interrupted() (userMode bool, pc uint64) {
	switch s.flavor {
	case StateFlavor64:
		regs := s.State64()
		return regs.CS&userCodeSelector != 0, regs.RIP
	case StateFlavor32:
		regs := s.State32()
		return regs.CS&userCodeSelector != 0, uint64(regs.EIP)
	default:
		panic(fmt.Sprintf("arch: invalid saved state flavor %d", s.flavor))
	}
}
