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

package arch

import (
	"testing"
)

func TestInterrupted64(t *testing.T) {
	for _, tc := range []struct {
		name     string
		cs       uint64
		wantUser bool
	}{
		{name: "kernel", cs: 0x08, wantUser: false},
		{name: "user", cs: 0x2b, wantUser: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSavedState64(State64{RIP: 0xffffff8000123456, CS: tc.cs})
			user, pc := s.Interrupted()
			if user != tc.wantUser {
				t.Errorf("Interrupted userMode: got %v, wanted %v", user, tc.wantUser)
			}
			if pc != 0xffffff8000123456 {
				t.Errorf("Interrupted pc: got %#x, wanted %#x", pc, uint64(0xffffff8000123456))
			}
		})
	}
}

func TestInterrupted32(t *testing.T) {
	for _, tc := range []struct {
		name     string
		cs       uint32
		wantUser bool
	}{
		{name: "kernel", cs: 0x08, wantUser: false},
		{name: "user", cs: 0x1b, wantUser: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSavedState32(State32{EIP: 0x08001234, CS: tc.cs})
			user, pc := s.Interrupted()
			if user != tc.wantUser {
				t.Errorf("Interrupted userMode: got %v, wanted %v", user, tc.wantUser)
			}
			if pc != 0x08001234 {
				t.Errorf("Interrupted pc: got %#x, wanted %#x", pc, uint64(0x08001234))
			}
		})
	}
}

func TestFlavorMismatchPanics(t *testing.T) {
	s := NewSavedState64(State64{})
	defer func() {
		if recover() == nil {
			t.Errorf("State32 on 64-bit state: got no panic, wanted panic")
		}
	}()
	s.State32()
}
