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

// Package tsc provides access to the host's free-running hardware cycle
// counter: the timestamp counter on amd64, the virtual counter-timer on
// arm64, and the Go runtime's monotonic clock elsewhere.
//
// The counter is readable in O(1) from any context and increases
// monotonically while the processor is powered and running. Its rate is not
// architecturally guaranteed across power-state transitions; converting it
// to time is the business of package rtclock.
package tsc

// Read returns the current value of the hardware cycle counter.
//
//go:nosplit
func Read() uint64 {
	return readCycles()
}

// Frequency returns the counter frequency in Hz if the hardware advertises
// one, and 0 if the frequency must be measured.
func Frequency() uint64 {
	return counterFrequency()
}

// Counter reads the real hardware cycle counter. It is a plug-in cycle
// source for rtclock.
type Counter struct{}

// Cycles returns the current cycle counter value.
func (Counter) Cycles() uint64 {
	return Read()
}
