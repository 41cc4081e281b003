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

package commpage

import (
	"runtime"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestSetAndRead(t *testing.T) {
	cp, err := New()
	if err != nil {
		t.Fatalf("New got err %v want nil", err)
	}
	defer cp.Close()

	cp.SetNanotime(1000, 2000, 0x80000000, 1)

	tscBase, nsBase, scale, shift := cp.ReadNanotime()
	if tscBase != 1000 || nsBase != 2000 || scale != 0x80000000 || shift != 1 {
		t.Errorf("ReadNanotime got (%d, %d, %#x, %d), want (1000, 2000, 0x80000000, 1)", tscBase, nsBase, scale, shift)
	}
}

func TestNanotimeEvaluation(t *testing.T) {
	cp, err := New()
	if err != nil {
		t.Fatalf("New got err %v want nil", err)
	}
	defer cp.Close()

	// Scale 1<<31 is half a nanosecond per cycle.
	cp.SetNanotime(1000, 5000, 1<<31, 0)

	// 2000 cycles past base, at half a nanosecond per cycle.
	if got, want := cp.Nanotime(3000), uint64(5000+1000); got != want {
		t.Errorf("Nanotime(3000) got %d want %d", got, want)
	}

	// Readings before the base clamp to the base time.
	if got, want := cp.Nanotime(500), uint64(5000); got != want {
		t.Errorf("Nanotime(500) got %d want %d", got, want)
	}
}

func TestGenerationNeverZero(t *testing.T) {
	cp, err := New()
	if err != nil {
		t.Fatalf("New got err %v want nil", err)
	}
	defer cp.Close()

	for i := 0; i < 10; i++ {
		cp.SetNanotime(uint64(i), uint64(i), 1, 0)
		if gen := cp.generation().Load(); gen == 0 {
			t.Fatalf("generation is 0 after update %d; readers would spin forever", i)
		}
	}
}

func TestFromBytesValidation(t *testing.T) {
	if _, err := FromBytes(make([]byte, 8)); err == nil {
		t.Errorf("FromBytes with short backing: got nil error, wanted error")
	}
}

func TestReaderWaitsOutUpdate(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	cp, err := New()
	if err != nil {
		t.Fatalf("New got err %v want nil", err)
	}
	defer cp.Close()

	cp.SetNanotime(7, 14, 1, 0)

	// Leave an update in flight, then hand the only processor to a
	// reader. The reader must yield it back for the update to complete.
	cp.generation().Store(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tscBase, nsBase, _, _ := cp.ReadNanotime()
		if tscBase != 7 || nsBase != 14 {
			t.Errorf("ReadNanotime got (%d, %d) want (7, 14)", tscBase, nsBase)
		}
	}()
	runtime.Gosched()
	cp.generation().Store(1)
	<-done
}

func TestConcurrentReaders(t *testing.T) {
	cp, err := New()
	if err != nil {
		t.Fatalf("New got err %v want nil", err)
	}
	defer cp.Close()

	// Establish publications where NSBase is always exactly twice
	// TSCBase; a torn read breaks the relation.
	cp.SetNanotime(1, 2, 1, 0)

	const updates = 10000
	var g errgroup.Group
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for {
				select {
				case <-stop:
					return nil
				default:
				}
				tscBase, nsBase, _, _ := cp.ReadNanotime()
				if nsBase != 2*tscBase {
					t.Errorf("torn read: tscBase %d, nsBase %d", tscBase, nsBase)
					return nil
				}
			}
		})
	}

	g.Go(func() error {
		for i := uint64(1); i <= updates; i++ {
			cp.SetNanotime(i, 2*i, 1, 0)
		}
		close(stop)
		return nil
	})

	g.Wait()
}
