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

//go:build !amd64 && !arm64

package tsc

import (
	"time"
)

var bootTime = time.Now()

// readCycles falls back to the Go runtime's monotonic clock on platforms
// without assembly support, making the counter a nanosecond-rate source.
func readCycles() uint64 {
	return uint64(time.Since(bootTime))
}

// counterFrequency returns the nanosecond rate of the fallback counter.
func counterFrequency() uint64 {
	return 1000000000
}
