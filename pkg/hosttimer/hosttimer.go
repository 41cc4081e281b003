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

// Package hosttimer implements the deadline timer device on top of a Linux
// timerfd. It stands in for the local timer hardware a native kernel would
// program: the clock requests a pop at an absolute nanotime deadline, the
// device arms a host one-shot for the equivalent relative interval, and an
// interrupt-delivery loop waits for expirations.
package hosttimer

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/t0rr3sp3dr0/darlingserver/pkg/log"
)

// minDeadlineNS is the soonest pop the device will program. Deadlines in
// the past or nearer than this are rounded up, mirroring the guard interval
// real local timers need between write and fire.
const minDeadlineNS = 1000

// Device is a one-shot deadline timer backed by a timerfd.
type Device struct {
	fd int
}

// New opens a timer device on the host monotonic clock.
func New() (*Device, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("timerfd_create: %w", err)
	}
	return &Device{fd: fd}, nil
}

// Configure applies the device's fixed one-shot configuration, cancelling
// any pending pop. It implements rtclock.TimerDevice.
//
// Errors are logged rather than returned: the configure path is called from
// power transitions that have no way to recover from a dead timer anyway,
// and the next Set will fail loudly.
func (d *Device) Configure() {
	if err := d.settime(0); err != nil {
		log.Warningf("hosttimer: configure failed: %v", err)
	}
}

// Set arms the timer to pop at the requested nanosecond deadline given the
// current reading now, and returns the deadline the device will actually
// achieve. Set(0, 0) disarms the timer and returns 0. It implements
// rtclock.TimerDevice.
func (d *Device) Set(deadline, now uint64) uint64 {
	if deadline == 0 {
		if err := d.settime(0); err != nil {
			log.Warningf("hosttimer: disarm failed: %v", err)
		}
		return 0
	}

	// The hardware can only honor deadlines at least the guard interval
	// away.
	delta := uint64(minDeadlineNS)
	if deadline > now && deadline-now > delta {
		delta = deadline - now
	}

	if err := d.settime(delta); err != nil {
		log.Warningf("hosttimer: arm failed: %v", err)
	}
	return now + delta
}

// settime programs a relative one-shot pop delta nanoseconds away, or
// disarms the timer if delta is 0.
func (d *Device) settime(delta uint64) error {
	ts := unix.ItimerSpec{
		Value: unix.NsecToTimespec(int64(delta)),
	}
	if err := unix.TimerfdSettime(d.fd, 0, &ts, nil); err != nil {
		return fmt.Errorf("timerfd_settime: %w", err)
	}
	return nil
}

// Wait blocks until the armed pop fires and returns the number of
// expirations consumed. It returns 0 with no error if the timer was
// disarmed out from under the wait.
func (d *Device) Wait() (uint64, error) {
	var buf [8]byte
	for {
		n, err := unix.Read(d.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("timerfd read: %w", err)
		}
		if n != len(buf) {
			return 0, fmt.Errorf("timerfd read returned %d bytes, want %d", n, len(buf))
		}
		// The counter is in host byte order; every supported host is
		// little-endian.
		return binary.LittleEndian.Uint64(buf[:]), nil
	}
}

// Close releases the timer device.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	fd := d.fd
	d.fd = -1
	return unix.Close(fd)
}
