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

//go:build linux

package hosttimer

import (
	"testing"
	"time"
)

func TestSetSentinelDisarms(t *testing.T) {
	d, err := New()
	if err != nil {
		t.Fatalf("New got err %v want nil", err)
	}
	defer d.Close()

	if pop := d.Set(0, 0); pop != 0 {
		t.Errorf("Set(0, 0) got pop %d want 0", pop)
	}
}

func TestSetRoundsUpPastDeadlines(t *testing.T) {
	d, err := New()
	if err != nil {
		t.Fatalf("New got err %v want nil", err)
	}
	defer d.Close()

	// A deadline already in the past still pops, the guard interval
	// away.
	now := uint64(5000000)
	pop := d.Set(now-1000, now)
	if pop != now+minDeadlineNS {
		t.Errorf("Set(past) got pop %d want %d", pop, now+minDeadlineNS)
	}
	d.Set(0, 0)
}

func TestArmAndWait(t *testing.T) {
	d, err := New()
	if err != nil {
		t.Fatalf("New got err %v want nil", err)
	}
	defer d.Close()

	// Pop 2ms out.
	now := uint64(0)
	delta := uint64(2 * time.Millisecond)
	pop := d.Set(now+delta, now)
	if pop != now+delta {
		t.Errorf("Set got pop %d want %d", pop, now+delta)
	}

	n, err := d.Wait()
	if err != nil {
		t.Fatalf("Wait got err %v want nil", err)
	}
	if n != 1 {
		t.Errorf("Wait got %d expirations, want 1", n)
	}
}

func TestConfigureCancelsPending(t *testing.T) {
	d, err := New()
	if err != nil {
		t.Fatalf("New got err %v want nil", err)
	}
	defer d.Close()

	d.Set(uint64(time.Hour), 0)
	d.Configure()

	// The cancelled pop must not be pending; a fresh short pop should be
	// the first to fire.
	start := time.Now()
	d.Set(uint64(time.Millisecond), 0)
	if _, err := d.Wait(); err != nil {
		t.Fatalf("Wait got err %v want nil", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait took %v; cancelled pop appears to have been pending", elapsed)
	}
}
