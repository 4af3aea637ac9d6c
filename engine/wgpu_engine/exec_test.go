// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"errors"
	"strings"
	"testing"

	"honnef.co/go/retro/renderer"
	"honnef.co/go/wgpu"
)

func TestVertexSlotValidation(t *testing.T) {
	e := &Engine{caps: Caps{MaxVertexBuffers: 8}}

	err := e.validateVertexSlots(&renderer.DrawState{
		Label:         "oob",
		VertexBuffers: map[uint32]renderer.BufferID{0: 1, 9: 2},
	})
	if err == nil || !strings.Contains(err.Error(), "slot 9") {
		t.Errorf("out-of-range slot: got %v, want slot error", err)
	}

	err = e.validateVertexSlots(&renderer.DrawState{
		Label:         "gap",
		VertexBuffers: map[uint32]renderer.BufferID{0: 1, 2: 2},
	})
	if err != nil {
		t.Errorf("non-contiguous slots must not be fatal, got %v", err)
	}
	if w := e.Warnings(); len(w) != 1 || !strings.Contains(w[0], "not contiguous") {
		t.Errorf("expected a contiguity warning, got %q", w)
	}

	err = e.validateVertexSlots(&renderer.DrawState{
		Label:         "ok",
		VertexBuffers: map[uint32]renderer.BufferID{0: 1, 1: 2},
	})
	if err != nil {
		t.Errorf("contiguous slots rejected: %v", err)
	}
	if w := e.Warnings(); len(w) != 0 {
		t.Errorf("unexpected warnings %q", w)
	}
}

func TestFrameStateErrors(t *testing.T) {
	e := &Engine{}

	if err := e.BeginRenderPass(0, PassOptions{}); !errors.Is(err, ErrFrameState) {
		t.Errorf("BeginRenderPass with no frame: got %v, want ErrFrameState", err)
	}
	if err := e.EndRenderPass(); !errors.Is(err, ErrFrameState) {
		t.Errorf("EndRenderPass with no pass: got %v, want ErrFrameState", err)
	}
	if err := e.EndFrame(); !errors.Is(err, ErrFrameState) {
		t.Errorf("EndFrame with no frame: got %v, want ErrFrameState", err)
	}
	if err := e.Execute(&renderer.Draw{}); !errors.Is(err, ErrFrameState) {
		t.Errorf("draw outside a pass: got %v, want ErrFrameState", err)
	}
	if err := e.Execute(&renderer.DispatchCompute{}); !errors.Is(err, ErrFrameState) {
		t.Errorf("dispatch outside a frame: got %v, want ErrFrameState", err)
	}
}

func TestIndirectRequiresIndexFormat(t *testing.T) {
	e := &Engine{state: statePass}
	err := e.Execute(&renderer.DrawIndirect{Indexed: true})
	if !errors.Is(err, ErrIndexFormatMissing) {
		t.Errorf("got %v, want ErrIndexFormatMissing", err)
	}
}

func TestDeviceLostFailFast(t *testing.T) {
	e := &Engine{lost: true, lostReason: "test"}
	if err := e.BeginFrame(nil); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("BeginFrame while lost: got %v, want ErrDeviceLost", err)
	}
	if err := e.Execute(&renderer.Draw{}); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Execute while lost: got %v, want ErrDeviceLost", err)
	}
	if _, err := e.CreateShader("s", "@vertex fn v() {}"); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("CreateShader while lost: got %v, want ErrDeviceLost", err)
	}
	if lost, reason := e.Lost(); !lost || reason != "test" {
		t.Errorf("Lost() = %v, %q", lost, reason)
	}
}

func TestDeviceLossReleasesDepthBudget(t *testing.T) {
	e := &Engine{
		vram: NewVRAMProfiler(1 << 20),
		res: &Resources{pool: NewBufferPool(
			func(renderer.UsageClass, uint64) (*wgpu.Buffer, error) { return nil, nil },
			func(*wgpu.Buffer) {},
		)},
	}
	if !e.vram.Allocate(depthTargetID, CategoryRenderTarget, 4096) {
		t.Fatal("initial depth target allocation failed")
	}

	e.NotifyDeviceLost("test")

	// The depth texture died with the device; its budget record must
	// not survive it, or the recovered device can never allocate a new
	// depth target.
	if !e.vram.Allocate(depthTargetID, CategoryRenderTarget, 4096) {
		t.Errorf("depth target allocation after device loss failed: %v", e.vram.Warnings())
	}
}

func TestCapsDefaults(t *testing.T) {
	caps := capsFrom(DeviceInfo{})
	if caps.MaxVertexBuffers != 8 || caps.MaxBindGroups != 4 || caps.MaxTextureDimension != 8192 {
		t.Errorf("unexpected fallback caps %+v", caps)
	}
	caps = capsFrom(DeviceInfo{Limits: DeviceLimits{MaxVertexBuffers: 16, MaxSamplerAnisotropy: 16}})
	if caps.MaxVertexBuffers != 16 {
		t.Error("reported limit was overridden by the default")
	}
	if !caps.Anisotropy {
		t.Error("anisotropy capability not derived from limits")
	}
}
