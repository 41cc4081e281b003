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

//go:build arm64

package tsc

// readCycles reads the virtual counter-timer (CNTVCT_EL0).
//
// Implemented in tsc_arm64.s.
//
//go:noescape
func readCycles() uint64

// getCNTFRQ reads the counter-timer frequency register (CNTFRQ_EL0).
//
// Implemented in tsc_arm64.s.
//
//go:noescape
func getCNTFRQ() uint64

// counterFrequency returns the architected counter frequency. Unlike the
// x86 TSC, the ARM counter-timer advertises its rate, so no measurement is
// needed.
func counterFrequency() uint64 {
	return getCNTFRQ()
}
