// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"math/bits"

	"honnef.co/go/retro/renderer"
)

const (
	// Pool buckets are powers of two between these bounds. Requests
	// below the minimum share the smallest bucket; requests above the
	// maximum get clamped, callers needing more must allocate exact
	// buffers outside the pool.
	minBucketSize = 256
	maxBucketSize = 16 << 20

	// A pooled buffer that hasn't been reused for this many frames
	// gets destroyed during the next-frame sweep.
	bufferPoolSweepAge = 300
)

// bucketSize rounds a request up to the pool's bucket for it.
func bucketSize(requested uint64) uint64 {
	if requested <= minBucketSize {
		return minBucketSize
	}
	if requested >= maxBucketSize {
		return maxBucketSize
	}
	return 1 << bits.Len64(requested-1)
}

type poolKey struct {
	usage renderer.UsageClass
	size  uint64
}

type pooledBuffer[B any] struct {
	buf      B
	lastUsed uint64
}

type PoolClassStats struct {
	// Buffers and Bytes describe what's currently sitting idle in the
	// pool. Allocations and Reuses are cumulative.
	Buffers     int
	Bytes       uint64
	Allocations uint64
	Reuses      uint64
}

type PoolStats struct {
	Buffers int
	Bytes   uint64
	Classes map[renderer.UsageClass]PoolClassStats
}

// BufferPool recycles GPU buffers across frames, bucketed by usage
// class and power-of-two size. It is generic over the buffer handle so
// tests can run it against plain values instead of device objects; the
// engine instantiates it with *wgpu.Buffer.
//
// The pool doesn't retain buffers that are in use. Acquire hands
// ownership to the caller, Release hands it back.
type BufferPool[B any] struct {
	create  func(usage renderer.UsageClass, size uint64) (B, error)
	destroy func(B)

	buckets map[poolKey][]pooledBuffer[B]
	classes map[renderer.UsageClass]*PoolClassStats
	frame   uint64
	lost    bool

	frameAllocs int
}

func NewBufferPool[B any](
	create func(usage renderer.UsageClass, size uint64) (B, error),
	destroy func(B),
) *BufferPool[B] {
	return &BufferPool[B]{
		create:  create,
		destroy: destroy,
		buckets: map[poolKey][]pooledBuffer[B]{},
		classes: map[renderer.UsageClass]*PoolClassStats{},
	}
}

func (p *BufferPool[B]) class(usage renderer.UsageClass) *PoolClassStats {
	cs, ok := p.classes[usage]
	if !ok {
		cs = &PoolClassStats{}
		p.classes[usage] = cs
	}
	return cs
}

// Acquire returns a buffer of at least requested bytes, preferring a
// pooled one. The second return value is the bucket size actually
// backing the buffer.
func (p *BufferPool[B]) Acquire(usage renderer.UsageClass, requested uint64) (B, uint64, error) {
	var zero B
	if p.lost {
		return zero, 0, ErrDeviceLost
	}
	size := bucketSize(requested)
	key := poolKey{usage, size}
	cs := p.class(usage)
	if bucket := p.buckets[key]; len(bucket) > 0 {
		pb := bucket[len(bucket)-1]
		p.buckets[key] = bucket[:len(bucket)-1]
		cs.Reuses++
		return pb.buf, size, nil
	}
	buf, err := p.create(usage, size)
	if err != nil {
		return zero, 0, err
	}
	cs.Allocations++
	p.frameAllocs++
	return buf, size, nil
}

// Release returns a buffer to the pool. requested must be the size the
// buffer was acquired with, so it lands back in its bucket.
func (p *BufferPool[B]) Release(usage renderer.UsageClass, requested uint64, buf B) {
	if p.lost {
		p.destroy(buf)
		return
	}
	key := poolKey{usage, bucketSize(requested)}
	p.buckets[key] = append(p.buckets[key], pooledBuffer[B]{buf, p.frame})
}

// NextFrame advances the pool's frame counter, resets the per-frame
// allocation count, and destroys buffers that have sat unused too long.
func (p *BufferPool[B]) NextFrame() {
	p.frame++
	p.frameAllocs = 0
	for key, bucket := range p.buckets {
		kept := bucket[:0]
		for _, pb := range bucket {
			if p.frame-pb.lastUsed > bufferPoolSweepAge {
				p.destroy(pb.buf)
			} else {
				kept = append(kept, pb)
			}
		}
		if len(kept) == 0 {
			delete(p.buckets, key)
		} else {
			p.buckets[key] = kept
		}
	}
}

// FrameAllocations reports how many buffers were created, rather than
// reused, since the last NextFrame.
func (p *BufferPool[B]) FrameAllocations() int {
	return p.frameAllocs
}

// Clear destroys all pooled buffers.
func (p *BufferPool[B]) Clear() {
	for key, bucket := range p.buckets {
		for _, pb := range bucket {
			p.destroy(pb.buf)
		}
		delete(p.buckets, key)
	}
}

// HandleDeviceLoss destroys all pooled buffers, freeing their
// host-side wrappers even though the device's memory died with it, and
// makes future Acquires fail with ErrDeviceLost until Reset.
func (p *BufferPool[B]) HandleDeviceLoss() {
	p.Clear()
	p.lost = true
}

// Reset makes the pool usable again after device recovery.
func (p *BufferPool[B]) Reset() {
	p.lost = false
	p.frame = 0
	p.frameAllocs = 0
}

func (p *BufferPool[B]) Stats() PoolStats {
	s := PoolStats{Classes: map[renderer.UsageClass]PoolClassStats{}}
	for usage, cs := range p.classes {
		s.Classes[usage] = *cs
	}
	for key, bucket := range p.buckets {
		cs := s.Classes[key.usage]
		cs.Buffers += len(bucket)
		cs.Bytes += key.size * uint64(len(bucket))
		s.Classes[key.usage] = cs
		s.Buffers += len(bucket)
		s.Bytes += key.size * uint64(len(bucket))
	}
	return s
}
