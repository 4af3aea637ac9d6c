// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"honnef.co/go/safeish"
	"honnef.co/go/wgpu"
)

// FrameTiming is the GPU-side duration of one frame, in device ticks.
type FrameTiming struct {
	Frame uint64
	Start uint64
	End   uint64
}

const timerSlots = 3

// frameTimer writes one timestamp pair per frame and reads it back
// asynchronously. Read-back rotates over three slots so that a slot
// whose map is still pending is never reused for a new frame's write;
// when all slots are pending the frame simply goes unmeasured.
//
// A nil *frameTimer is valid and does nothing, mirroring how profiling
// is switched off.
type frameTimer struct {
	dev   *wgpu.Device
	slots [timerSlots]timerSlot
	// active is the slot recording the current frame, or -1.
	active int
}

type timerSlot struct {
	set     *wgpu.QuerySet
	resolve *wgpu.Buffer
	read    *wgpu.Buffer
	pending bool
	ch      <-chan error
	frame   uint64
}

func newFrameTimer(dev *wgpu.Device) *frameTimer {
	t := &frameTimer{dev: dev, active: -1}
	for i := range t.slots {
		t.slots[i] = timerSlot{
			set: dev.CreateQuerySet(&wgpu.QuerySetDescriptor{
				Type:  wgpu.QueryTypeTimestamp,
				Count: 2,
			}),
			resolve: dev.CreateBuffer(&wgpu.BufferDescriptor{
				Usage: wgpu.BufferUsageQueryResolve | wgpu.BufferUsageCopySrc,
				Size:  2 * 8,
			}),
			read: dev.CreateBuffer(&wgpu.BufferDescriptor{
				Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
				Size:  2 * 8,
			}),
		}
	}
	return t
}

func (t *frameTimer) begin(enc *wgpu.CommandEncoder, frame uint64) {
	if t == nil {
		return
	}
	t.active = -1
	for i := range t.slots {
		if !t.slots[i].pending {
			t.active = i
			break
		}
	}
	if t.active == -1 {
		return
	}
	slot := &t.slots[t.active]
	slot.frame = frame
	enc.WriteTimestamp(slot.set, 0)
}

func (t *frameTimer) end(enc *wgpu.CommandEncoder) {
	if t == nil || t.active == -1 {
		return
	}
	enc.WriteTimestamp(t.slots[t.active].set, 1)
}

func (t *frameTimer) resolve(enc *wgpu.CommandEncoder) {
	if t == nil || t.active == -1 {
		return
	}
	slot := &t.slots[t.active]
	enc.ResolveQuerySet(slot.set, 0, 2, slot.resolve, 0)
	enc.CopyBufferToBuffer(slot.resolve, 0, slot.read, 0, 2*8)
}

func (t *frameTimer) afterSubmit() {
	if t == nil || t.active == -1 {
		return
	}
	slot := &t.slots[t.active]
	slot.ch = slot.read.Map(t.dev, wgpu.MapModeRead, 0, 2*8)
	slot.pending = true
	t.active = -1
}

// Collect returns the timings whose read-back has completed, oldest
// frame first. Slots still in flight are skipped, not waited for.
func (t *frameTimer) Collect() []FrameTiming {
	if t == nil {
		return nil
	}
	var out []FrameTiming
	for i := range t.slots {
		slot := &t.slots[i]
		if !slot.pending {
			continue
		}
		select {
		case err := <-slot.ch:
			slot.pending = false
			if err != nil {
				continue
			}
			values := safeish.SliceCast[[]uint64](slot.read.ReadOnlyMappedRange(0, 2*8))
			out = append(out, FrameTiming{
				Frame: slot.frame,
				Start: values[0],
				End:   values[1],
			})
			slot.read.Unmap()
		default:
		}
	}
	// Rotation doesn't visit slots in frame order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Frame > out[j].Frame; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
