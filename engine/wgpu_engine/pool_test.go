// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"errors"
	"testing"

	"honnef.co/go/retro/renderer"
)

type fakeBuffer struct {
	size      uint64
	destroyed bool
}

func newFakePool() (*BufferPool[*fakeBuffer], *int) {
	created := 0
	pool := NewBufferPool(
		func(usage renderer.UsageClass, size uint64) (*fakeBuffer, error) {
			created++
			return &fakeBuffer{size: size}, nil
		},
		func(buf *fakeBuffer) { buf.destroyed = true },
	)
	return pool, &created
}

func TestBufferPoolBucketing(t *testing.T) {
	pool, _ := newFakePool()
	for _, tc := range []struct {
		requested uint64
		want      uint64
	}{
		{0, 256},
		{100, 256},
		{256, 256},
		{257, 512},
		{500, 512},
		{4096, 4096},
		{32 << 20, 16 << 20},
	} {
		buf, size, err := pool.Acquire(renderer.UsageVertex, tc.requested)
		if err != nil {
			t.Fatal(err)
		}
		if size != tc.want || buf.size != tc.want {
			t.Errorf("Acquire(%d): got bucket %d, want %d", tc.requested, size, tc.want)
		}
	}
}

func TestBufferPoolReuse(t *testing.T) {
	pool, created := newFakePool()

	buf, _, err := pool.Acquire(renderer.UsageVertex, 500)
	if err != nil {
		t.Fatal(err)
	}
	pool.Release(renderer.UsageVertex, 500, buf)
	again, _, err := pool.Acquire(renderer.UsageVertex, 500)
	if err != nil {
		t.Fatal(err)
	}
	if again != buf {
		t.Error("pool did not return the released buffer")
	}
	if *created != 1 {
		t.Errorf("pool created %d buffers, want 1", *created)
	}
	cs := pool.Stats().Classes[renderer.UsageVertex]
	if cs.Allocations != 1 || cs.Reuses != 1 {
		t.Errorf("got %d allocations and %d reuses, want 1 and 1", cs.Allocations, cs.Reuses)
	}

	// Same size, different usage class must not share buffers.
	other, _, err := pool.Acquire(renderer.UsageIndex, 500)
	if err != nil {
		t.Fatal(err)
	}
	if other == buf {
		t.Error("pool shared a buffer across usage classes")
	}
}

func TestBufferPoolSweep(t *testing.T) {
	pool, _ := newFakePool()

	buf, _, err := pool.Acquire(renderer.UsageIndex, 100)
	if err != nil {
		t.Fatal(err)
	}
	pool.Release(renderer.UsageIndex, 100, buf)

	for i := 0; i < bufferPoolSweepAge; i++ {
		pool.NextFrame()
	}
	if buf.destroyed {
		t.Fatalf("buffer was destroyed before frame %d", bufferPoolSweepAge+1)
	}
	pool.NextFrame()
	if !buf.destroyed {
		t.Error("buffer survived the sweep")
	}
	if got := pool.Stats().Buffers; got != 0 {
		t.Errorf("pool still tracks %d buffers", got)
	}
}

func TestBufferPoolFrameAllocations(t *testing.T) {
	pool, _ := newFakePool()

	buf, _, _ := pool.Acquire(renderer.UsageVertex, 100)
	if got := pool.FrameAllocations(); got != 1 {
		t.Errorf("got %d frame allocations, want 1", got)
	}
	pool.Release(renderer.UsageVertex, 100, buf)
	pool.NextFrame()
	if got := pool.FrameAllocations(); got != 0 {
		t.Errorf("frame allocation counter did not reset, got %d", got)
	}
	pool.Acquire(renderer.UsageVertex, 100)
	if got := pool.FrameAllocations(); got != 0 {
		t.Errorf("pool hit counted as allocation, got %d", got)
	}
}

func TestBufferPoolDeviceLoss(t *testing.T) {
	pool, _ := newFakePool()

	buf, _, _ := pool.Acquire(renderer.UsageVertex, 100)
	pool.Release(renderer.UsageVertex, 100, buf)
	pool.HandleDeviceLoss()

	if !buf.destroyed {
		t.Error("pooled buffer's wrapper survived device loss")
	}
	if _, _, err := pool.Acquire(renderer.UsageVertex, 100); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Acquire after device loss: got %v, want ErrDeviceLost", err)
	}
	pool.Reset()
	if _, _, err := pool.Acquire(renderer.UsageVertex, 100); err != nil {
		t.Errorf("Acquire after reset failed: %v", err)
	}
}

func TestBufferPoolClear(t *testing.T) {
	pool, _ := newFakePool()
	var bufs []*fakeBuffer
	for i := 0; i < 4; i++ {
		buf, _, _ := pool.Acquire(renderer.UsageVertex, 1024)
		bufs = append(bufs, buf)
	}
	for _, buf := range bufs {
		pool.Release(renderer.UsageVertex, 1024, buf)
	}
	pool.Clear()
	for i, buf := range bufs {
		if !buf.destroyed {
			t.Errorf("buffer %d survived Clear", i)
		}
	}
}
