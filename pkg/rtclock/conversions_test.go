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

	"github.com/t0rr3sp3dr0/darlingserver/pkg/sync"
)

func TestSecondsAndNanoseconds(t *testing.T) {
	for _, tc := range []struct {
		abs      uint64
		secs     uint64
		nanosecs uint32
	}{
		{abs: 0, secs: 0, nanosecs: 0},
		{abs: 999999999, secs: 0, nanosecs: 999999999},
		{abs: NSecPerSec, secs: 1, nanosecs: 0},
		{abs: 3*NSecPerSec + 42, secs: 3, nanosecs: 42},
	} {
		secs, nanosecs := SecondsAndNanoseconds(tc.abs)
		if secs != tc.secs || nanosecs != tc.nanosecs {
			t.Errorf("SecondsAndNanoseconds(%d) got (%d, %d) want (%d, %d)", tc.abs, secs, nanosecs, tc.secs, tc.nanosecs)
		}
		if rt := NanotimeToAbsolute(secs, nanosecs); rt != tc.abs {
			t.Errorf("NanotimeToAbsolute(%d, %d) got %d want %d", secs, nanosecs, rt, tc.abs)
		}
	}
}

func TestSecondsAndMicroseconds(t *testing.T) {
	secs, microsecs := SecondsAndMicroseconds(2*NSecPerSec + 1234567)
	if secs != 2 || microsecs != 1234 {
		t.Errorf("SecondsAndMicroseconds got (%d, %d) want (2, 1234)", secs, microsecs)
	}
}

func TestIntervalToAbsolute(t *testing.T) {
	if got := IntervalToAbsolute(5, NSecPerUSec); got != 5000 {
		t.Errorf("IntervalToAbsolute(5, %d) got %d want 5000", NSecPerUSec, got)
	}

	// The product must not truncate to 32 bits.
	if got, want := IntervalToAbsolute(^uint32(0), ^uint32(0)), uint64(^uint32(0))*uint64(^uint32(0)); got != want {
		t.Errorf("IntervalToAbsolute at the 32-bit limits got %d want %d", got, want)
	}
}

func TestAbsoluteNanosecondIdentities(t *testing.T) {
	for _, v := range []uint64{0, 1, NSecPerSec, ^uint64(0)} {
		if got := AbsoluteToNanoseconds(v); got != v {
			t.Errorf("AbsoluteToNanoseconds(%d) got %d", v, got)
		}
		if got := NanosecondsToAbsolute(v); got != v {
			t.Errorf("NanosecondsToAbsolute(%d) got %d", v, got)
		}
	}
}

func TestSystemTimeSplits(t *testing.T) {
	c, cycles, _, _, _ := testClock(t)
	cycles.advance(2*NSecPerSec + 1500)

	if secs, nanosecs := c.SystemNanotime(); secs != 2 || nanosecs != 1500 {
		t.Errorf("SystemNanotime got (%d, %d) want (2, 1500)", secs, nanosecs)
	}
	if secs, microsecs := c.SystemMicrotime(); secs != 2 || microsecs != 1 {
		t.Errorf("SystemMicrotime got (%d, %d) want (2, 1)", secs, microsecs)
	}
}

func TestDelayUntil(t *testing.T) {
	c, cycles, _, _, _ := testClock(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.DelayUntil(5000)
	}()

	// Walk the counter forward until the waiter's deadline passes.
	for c.Now() < 5000 {
		cycles.advance(100)
	}
	wg.Wait()

	if now := c.Now(); now < 5000 {
		t.Errorf("Now after DelayUntil got %d want >= 5000", now)
	}
}
