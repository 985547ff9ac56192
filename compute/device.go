// Copyright 2026 Zheng Tzer
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


package compute

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/ZhengTzer/cf-step/core"
)

// Device names accepted by Open.
const (
	// DeviceCPU runs all scoring serially on the calling goroutine.
	DeviceCPU = "cpu"

	// DeviceAccel fans bulk scoring out over a worker pool sized to the host.
	DeviceAccel = "accel"
)

// chunkRows is the number of rows handed to one worker task. Bulk inputs
// smaller than this run serially; the pool overhead is not worth it.
const chunkRows = 256

// Device executes embedding arithmetic. Open it once, bind it to a model,
// and Close it when the owning engine shuts down.
type Device struct {
	name string
	pool *ants.Pool
}

// Open creates a device by name. The empty string selects DeviceCPU.
// Unrecognized names fail with core.ErrUnknownDevice.
func Open(name string) (*Device, error) {
	switch name {
	case "", DeviceCPU:
		return &Device{name: DeviceCPU}, nil
	case DeviceAccel:
		workers := runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
		pool, err := ants.NewPool(workers)
		if err != nil {
			return nil, fmt.Errorf("creating accel pool: %w", err)
		}
		return &Device{name: DeviceAccel, pool: pool}, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownDevice, name)
	}
}

// Name returns the device name as accepted by Open.
func (d *Device) Name() string {
	return d.name
}

// Close releases the device's worker pool, if any.
func (d *Device) Close() error {
	if d.pool != nil {
		d.pool.Release()
		d.pool = nil
	}
	return nil
}

// Dot returns the dot product of a and b, truncating to the shorter vector.
func (d *Device) Dot(a, b []float32) float32 {
	return dotProduct(a, b)
}

// ScorePairs computes the pairwise dot products left[i]·right[i] into a new
// slice. Both sides must have equal length.
func (d *Device) ScorePairs(left, right [][]float32) []float32 {
	out := make([]float32, len(left))
	d.parallelRows(len(left), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = dotProduct(left[i], right[i])
		}
	})
	return out
}

// ScoreAll computes query·vectors[i] for every row into a new slice.
func (d *Device) ScoreAll(query []float32, vectors [][]float32) []float32 {
	out := make([]float32, len(vectors))
	d.parallelRows(len(vectors), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = dotProduct(query, vectors[i])
		}
	})
	return out
}

// parallelRows runs fn over [0,n) in chunks. On the cpu device, or when n is
// small, the work runs inline on the calling goroutine.
func (d *Device) parallelRows(n int, fn func(lo, hi int)) {
	if d.pool == nil || n < chunkRows*2 {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunkRows {
		hi := lo + chunkRows
		if hi > n {
			hi = n
		}

		wg.Add(1)
		task := func(lo, hi int) func() {
			return func() {
				defer wg.Done()
				fn(lo, hi)
			}
		}(lo, hi)

		if err := d.pool.Submit(task); err != nil {
			// Pool unavailable, run the chunk inline.
			task()
		}
	}
	wg.Wait()
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
