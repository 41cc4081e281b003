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
	"runtime"
)

// IntervalToAbsolute converts an interval expressed in units of scaleFactor
// nanoseconds into absolute time.
func IntervalToAbsolute(interval, scaleFactor uint32) uint64 {
	return uint64(interval) * uint64(scaleFactor)
}

// SecondsAndNanoseconds splits an absolute time into whole seconds and the
// nanosecond remainder.
func SecondsAndNanoseconds(abs uint64) (secs uint64, nanosecs uint32) {
	return abs / NSecPerSec, uint32(abs % NSecPerSec)
}

// SecondsAndMicroseconds splits an absolute time into whole seconds and the
// microsecond remainder.
func SecondsAndMicroseconds(abs uint64) (secs uint64, microsecs uint32) {
	secs = abs / NSecPerSec
	microsecs = uint32(abs%NSecPerSec) / NSecPerUSec
	return secs, microsecs
}

// NanotimeToAbsolute combines a seconds and nanoseconds pair into absolute
// time.
func NanotimeToAbsolute(secs uint64, nanosecs uint32) uint64 {
	return secs*NSecPerSec + uint64(nanosecs)
}

// AbsoluteToNanoseconds converts absolute time to nanoseconds. This clock's
// absolute time unit is already nanoseconds, so this is the identity.
func AbsoluteToNanoseconds(abs uint64) uint64 {
	return abs
}

// NanosecondsToAbsolute converts nanoseconds to absolute time. This clock's
// absolute time unit is already nanoseconds, so this is the identity.
func NanosecondsToAbsolute(ns uint64) uint64 {
	return ns
}

// SystemMicrotime returns the current nanotime split into seconds and
// microseconds.
func (c *Clock) SystemMicrotime() (secs uint64, microsecs uint32) {
	return SecondsAndMicroseconds(c.Now())
}

// SystemNanotime returns the current nanotime split into seconds and
// nanoseconds.
func (c *Clock) SystemNanotime() (secs uint64, nanosecs uint32) {
	return SecondsAndNanoseconds(c.Now())
}

// DelayUntil spins until nanotime passes deadline. There is no blocking:
// the calling context busy-waits, yielding the processor between polls.
func (c *Clock) DelayUntil(deadline uint64) {
	for c.Now() < deadline {
		runtime.Gosched()
	}
}
