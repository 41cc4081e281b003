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
	"sync/atomic"
	"unsafe"
)

// aligned8 returns whether the backing memory is 8-byte aligned, as the
// atomic field views require.
func aligned8(data []byte) bool {
	return uintptr(unsafe.Pointer(&data[0]))%8 == 0
}

// u64 is an atomically-accessed 64-bit field view into the page.
type u64 struct {
	p *uint64
}

func (v u64) Load() uint64 {
	return atomic.LoadUint64(v.p)
}

func (v u64) Store(x uint64) {
	atomic.StoreUint64(v.p, x)
}

// u32 is an atomically-accessed 32-bit field view into the page.
type u32 struct {
	p *uint32
}

func (v u32) Load() uint32 {
	return atomic.LoadUint32(v.p)
}

func (v u32) Store(x uint32) {
	atomic.StoreUint32(v.p, x)
}

func (c *Commpage) generation() u64 {
	return u64{(*uint64)(unsafe.Pointer(&c.data[offGeneration]))}
}

func (c *Commpage) tscBase() u64 {
	return u64{(*uint64)(unsafe.Pointer(&c.data[offTSCBase]))}
}

func (c *Commpage) nsBase() u64 {
	return u64{(*uint64)(unsafe.Pointer(&c.data[offNSBase]))}
}

func (c *Commpage) scale() u32 {
	return u32{(*uint32)(unsafe.Pointer(&c.data[offScale]))}
}

func (c *Commpage) shift() u32 {
	return u32{(*uint32)(unsafe.Pointer(&c.data[offShift]))}
}
