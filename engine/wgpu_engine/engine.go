// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package wgpu_engine implements the rendering contract from package
// renderer on a WebGPU device: resource lifecycle with VRAM budgets
// and buffer pooling, the frame/render-pass state machine, draw
// command execution, and device-loss recovery.
package wgpu_engine

import (
	"context"
	"fmt"
	"time"

	"honnef.co/go/retro/mem"
	"honnef.co/go/retro/renderer"
	"honnef.co/go/wgpu"
)

type Options struct {
	// SurfaceFormat is the format of the swap-chain views handed to
	// BeginFrame. Defaults to FormatBGRA8.
	SurfaceFormat renderer.TextureFormat
	// DepthFormat is used for the lazily allocated default depth
	// target. Defaults to FormatDepth24.
	DepthFormat renderer.TextureFormat
	// Width and Height are the initial canvas dimensions.
	Width, Height uint32
	// VRAMBudget caps tracked GPU memory. Defaults to 256 MiB.
	VRAMBudget uint64
	// RecoveryAttempts bounds device-loss recovery retries. Defaults
	// to 3.
	RecoveryAttempts int
	// RecoveryDelay is the fixed delay between recovery attempts.
	// Defaults to 500ms.
	RecoveryDelay time.Duration
	// Profile enables GPU timestamp collection, if the device supports
	// timestamp queries.
	Profile bool
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.SurfaceFormat == renderer.FormatNone {
		out.SurfaceFormat = renderer.FormatBGRA8
	}
	if out.DepthFormat == renderer.FormatNone {
		out.DepthFormat = renderer.FormatDepth24
	}
	if out.VRAMBudget == 0 {
		out.VRAMBudget = 256 << 20
	}
	if out.RecoveryAttempts == 0 {
		out.RecoveryAttempts = 3
	}
	if out.RecoveryDelay == 0 {
		out.RecoveryDelay = 500 * time.Millisecond
	}
	return out
}

type frameState int

const (
	stateIdle frameState = iota
	stateFrame
	statePass
)

// Engine composes the resource manager, frame lifecycle, and command
// execution into one backend instance. All methods must be called from
// a single goroutine; the engine holds no locks because nothing
// mutates concurrently.
type Engine struct {
	source  DeviceSource
	options Options

	dev   *wgpu.Device
	queue *wgpu.Queue
	caps  Caps

	vram  *VRAMProfiler
	res   *Resources
	timer *frameTimer

	// arena backs descriptor allocations whose lifetime is one frame.
	// Reset at BeginFrame.
	arena *mem.Arena

	width, height uint32
	depth         depthTarget

	state       frameState
	frame       uint64
	encoder     *wgpu.CommandEncoder
	pass        *wgpu.RenderPassEncoder
	surfaceView *wgpu.TextureView
	stats       renderer.FrameStats

	lost       bool
	lostReason string

	warnings []string
}

type depthTarget struct {
	texture       *wgpu.Texture
	view          *wgpu.TextureView
	width, height uint32
}

// New acquires a device through source and builds an engine on it.
func New(ctx context.Context, source DeviceSource, options *Options) (*Engine, error) {
	opts := options.withDefaults()
	info, err := source(ctx)
	if err != nil {
		return nil, fmt.Errorf("device acquisition: %w", err)
	}
	e := &Engine{
		source:  source,
		options: opts,
		dev:     info.Device,
		queue:   info.Queue,
		caps:    capsFrom(info),
		vram:    NewVRAMProfiler(opts.VRAMBudget),
		arena:   mem.NewArena(),
		width:   opts.Width,
		height:  opts.Height,
	}
	e.res = newResources(e.dev, e.queue, e.vram)
	if opts.Profile && info.Features.TimestampQuery {
		e.timer = newFrameTimer(e.dev)
	}
	return e, nil
}

func (e *Engine) Caps() Caps { return e.caps }

// VRAMStats returns a snapshot of tracked GPU memory usage.
func (e *Engine) VRAMStats() VRAMStats { return e.vram.Stats() }

// PoolStats returns a snapshot of the buffer pool.
func (e *Engine) PoolStats() PoolStats { return e.res.pool.Stats() }

// FrameStats returns the statistics of the frame being recorded, or of
// the last finished frame when called between frames.
func (e *Engine) FrameStats() renderer.FrameStats { return e.stats }

// Timings returns GPU frame timings whose asynchronous read-back has
// completed. Returns nil when profiling is off.
func (e *Engine) Timings() []FrameTiming { return e.timer.Collect() }

// Warnings drains accumulated non-fatal findings: VRAM pressure,
// shader layout smells, suspicious slot assignments.
func (e *Engine) Warnings() []string {
	w := append(e.warnings, e.vram.Warnings()...)
	e.warnings = nil
	return w
}

func (e *Engine) warnf(format string, args ...any) {
	e.warnings = append(e.warnings, fmt.Sprintf(format, args...))
}

// NotifyDeviceLost transitions the engine into the device-lost state.
// It is meant to be called from the platform's device-loss callback.
// Every device-dependent call fails with ErrDeviceLost until Recover
// succeeds.
func (e *Engine) NotifyDeviceLost(reason string) {
	e.lost = true
	e.lostReason = reason
	e.res.pool.HandleDeviceLoss()
	e.releaseDepth()
	e.state = stateIdle
	e.encoder = nil
	e.pass = nil
	e.surfaceView = nil
	e.timer = nil
}

// Lost reports whether the engine is in the device-lost state, and why.
func (e *Engine) Lost() (bool, string) {
	return e.lost, e.lostReason
}

// Recover reacquires a device and replays resource creation, retrying
// up to the configured attempt count with a fixed delay in between.
// Exhausting the retries is terminal: the engine stays lost.
func (e *Engine) Recover(ctx context.Context) error {
	if !e.lost {
		return nil
	}
	var lastErr error
	for attempt := 0; attempt < e.options.RecoveryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(e.options.RecoveryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		info, err := e.source(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if err := e.res.replay(info.Device, info.Queue); err != nil {
			lastErr = err
			continue
		}
		e.dev = info.Device
		e.queue = info.Queue
		e.caps = capsFrom(info)
		if e.options.Profile && info.Features.TimestampQuery {
			e.timer = newFrameTimer(e.dev)
		}
		e.lost = false
		e.lostReason = ""
		return nil
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrRecoveryFailed, e.options.RecoveryAttempts, lastErr)
}

// Close releases all resources. The engine is unusable afterwards.
func (e *Engine) Close() {
	if e.state != stateIdle {
		e.EndFrame()
	}
	e.releaseDepth()
	e.res.Dispose()
}

// Resource creation and destruction forward to the resource manager,
// failing fast while the device is lost.

func (e *Engine) CreateShader(name, source string) (renderer.ShaderID, error) {
	if e.lost {
		return 0, ErrDeviceLost
	}
	id, err := e.res.CreateShader(name, source)
	if err == nil {
		if info := e.res.shaders[id].info; len(info.Warnings) > 0 {
			e.warnings = append(e.warnings, info.Warnings...)
		}
	}
	return id, err
}

func (e *Engine) CreateBuffer(name string, data []byte, usage renderer.UsageClass, mode renderer.BufferMode) (renderer.BufferID, error) {
	if e.lost {
		return 0, ErrDeviceLost
	}
	return e.res.CreateBuffer(name, data, usage, mode)
}

func (e *Engine) UpdateBuffer(id renderer.BufferID, offset uint64, data []byte) error {
	if e.lost {
		return ErrDeviceLost
	}
	return e.res.UpdateBuffer(id, offset, data)
}

func (e *Engine) DestroyBuffer(id renderer.BufferID) error {
	if e.lost {
		return ErrDeviceLost
	}
	return e.res.DestroyBuffer(id)
}

func (e *Engine) CreateTexture(name string, width, height uint32, format renderer.TextureFormat, data []byte) (renderer.TextureID, error) {
	if e.lost {
		return 0, ErrDeviceLost
	}
	if width > e.caps.MaxTextureDimension || height > e.caps.MaxTextureDimension {
		return 0, fmt.Errorf("texture %q: %dx%d exceeds device maximum %d",
			name, width, height, e.caps.MaxTextureDimension)
	}
	return e.res.CreateTexture(name, width, height, format, data)
}

func (e *Engine) DestroyTexture(id renderer.TextureID) error {
	if e.lost {
		return ErrDeviceLost
	}
	return e.res.DestroyTexture(id)
}

func (e *Engine) CreateSampler(name string, desc renderer.SamplerDesc) (renderer.SamplerID, error) {
	if e.lost {
		return 0, ErrDeviceLost
	}
	return e.res.CreateSampler(name, desc)
}

func (e *Engine) CreateFramebuffer(name string, colors []renderer.TextureID, depth renderer.TextureID) (renderer.FramebufferID, error) {
	if e.lost {
		return 0, ErrDeviceLost
	}
	if uint32(len(colors)) > e.caps.MaxColorAttachments {
		return 0, fmt.Errorf("framebuffer %q: %d color attachments exceeds device maximum %d",
			name, len(colors), e.caps.MaxColorAttachments)
	}
	return e.res.CreateFramebuffer(name, colors, depth)
}

func (e *Engine) DestroyFramebuffer(id renderer.FramebufferID) error {
	if e.lost {
		return ErrDeviceLost
	}
	return e.res.DestroyFramebuffer(id)
}

func (e *Engine) CreateBindGroup(name string, shader renderer.ShaderID, group uint32, entries []renderer.BindingResource) (renderer.BindGroupID, error) {
	if e.lost {
		return 0, ErrDeviceLost
	}
	return e.res.CreateBindGroup(name, shader, group, entries)
}

func (e *Engine) CreateRenderPipeline(name string, shader renderer.ShaderID, desc renderer.RenderPipelineDesc) (renderer.PipelineID, error) {
	if e.lost {
		return 0, ErrDeviceLost
	}
	return e.res.CreateRenderPipeline(name, shader, desc)
}

func (e *Engine) CreateComputePipeline(name string, shader renderer.ShaderID) (renderer.PipelineID, error) {
	if e.lost {
		return 0, ErrDeviceLost
	}
	return e.res.CreateComputePipeline(name, shader)
}
