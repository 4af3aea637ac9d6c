// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"fmt"

	"honnef.co/go/color"
	"honnef.co/go/retro/gfx"
	"honnef.co/go/retro/mem"
	"honnef.co/go/retro/renderer"
	"honnef.co/go/wgpu"
)

// depthTargetID is the VRAM profiler record for the engine's default
// depth texture.
const depthTargetID = "texture:depth-target"

// PassOptions configures one render pass. Nil clear values mean "load
// existing contents".
type PassOptions struct {
	Label string
	// ClearColor clears all color attachments to the given color at
	// the start of the pass.
	ClearColor *color.Color
	// ClearDepth clears the depth attachment. Ignored when the pass
	// has no depth attachment.
	ClearDepth *float32
	// Depth requests a depth attachment for default-target passes,
	// using the engine's lazily allocated depth texture. Framebuffer
	// passes get their depth attachment from the framebuffer instead.
	Depth bool
}

// BeginFrame starts recording a frame. surface is this frame's
// swap-chain view; it may be nil for frames that only render to
// framebuffers. Frame statistics and the pool's per-frame allocation
// counter reset here and nowhere else.
func (e *Engine) BeginFrame(surface *wgpu.TextureView) error {
	if e.lost {
		return ErrDeviceLost
	}
	if e.state != stateIdle {
		return fmt.Errorf("%w: BeginFrame while a frame is open", ErrFrameState)
	}
	e.arena.Reset()
	e.stats = renderer.FrameStats{}
	e.res.pool.NextFrame()
	e.frame++
	e.surfaceView = surface
	e.encoder = e.dev.CreateCommandEncoder(mem.Make(e.arena, wgpu.CommandEncoderDescriptor{
		Label: "frame",
	}))
	e.timer.begin(e.encoder, e.frame)
	e.state = stateFrame
	return nil
}

// BeginRenderPass opens a render pass targeting a framebuffer, or the
// frame's surface when target is zero. Only one pass may be open at a
// time.
func (e *Engine) BeginRenderPass(target renderer.FramebufferID, opts PassOptions) error {
	switch e.state {
	case stateIdle:
		return fmt.Errorf("%w: BeginRenderPass with no open frame", ErrFrameState)
	case statePass:
		return fmt.Errorf("%w: BeginRenderPass while another pass is open", ErrFrameState)
	}

	var colors []*wgpu.TextureView
	var depthView *wgpu.TextureView
	if target == 0 {
		if e.surfaceView == nil {
			return fmt.Errorf("%w: default-target pass in a frame without a surface", ErrFrameState)
		}
		colors = mem.Varargs(e.arena, e.surfaceView)
		if opts.Depth {
			var err error
			depthView, err = e.ensureDepth(e.width, e.height)
			if err != nil {
				return err
			}
		}
	} else {
		fb, err := e.res.framebuffer(target)
		if err != nil {
			return err
		}
		colors = mem.NewSlice[[]*wgpu.TextureView](e.arena, 0, len(fb.colors))
		for _, tid := range fb.colors {
			colors = mem.Append(e.arena, colors, e.res.textures[tid].view)
		}
		if fb.depth != 0 {
			depthView = e.res.textures[fb.depth].view
		}
	}

	attachments := mem.NewSlice[[]wgpu.RenderPassColorAttachment](e.arena, 0, len(colors))
	for _, view := range colors {
		att := wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
		if opts.ClearColor != nil {
			c := gfx.Linear4(opts.ClearColor)
			att.LoadOp = wgpu.LoadOpClear
			att.ClearValue = wgpu.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
		}
		attachments = mem.Append(e.arena, attachments, att)
	}

	desc := mem.Make(e.arena, wgpu.RenderPassDescriptor{
		Label:            opts.Label,
		ColorAttachments: attachments,
	})
	if depthView != nil {
		att := mem.Make(e.arena, wgpu.RenderPassDepthStencilAttachment{
			View:         depthView,
			DepthLoadOp:  wgpu.LoadOpLoad,
			DepthStoreOp: wgpu.StoreOpStore,
		})
		if opts.ClearDepth != nil {
			att.DepthLoadOp = wgpu.LoadOpClear
			att.DepthClearValue = *opts.ClearDepth
		}
		desc.DepthStencilAttachment = att
	}
	e.pass = e.encoder.BeginRenderPass(desc)
	e.state = statePass
	return nil
}

// EndRenderPass closes the open render pass.
func (e *Engine) EndRenderPass() error {
	if e.state != statePass {
		return fmt.Errorf("%w: EndRenderPass with no open pass", ErrFrameState)
	}
	e.pass.End()
	e.pass.Release()
	e.pass = nil
	e.state = stateFrame
	return nil
}

// EndFrame finishes recording and submits the frame. An open render
// pass is closed first. No new pass is opened here: once a caller has
// composited to the surface, a fresh default-target pass would clobber
// their output with a cleared frame.
func (e *Engine) EndFrame() error {
	switch e.state {
	case stateIdle:
		return fmt.Errorf("%w: EndFrame with no open frame", ErrFrameState)
	case statePass:
		if err := e.EndRenderPass(); err != nil {
			return err
		}
	}
	e.stats.PoolReallocations = e.res.pool.FrameAllocations()
	e.timer.end(e.encoder)
	e.timer.resolve(e.encoder)
	cmd := e.encoder.Finish(nil)
	e.encoder.Release()
	e.queue.Submit(cmd)
	cmd.Release()
	e.timer.afterSubmit()
	e.encoder = nil
	e.surfaceView = nil
	e.state = stateIdle
	return nil
}

// Resize updates the canvas dimensions. The default depth target is
// dropped and reallocated at the new size on the next pass that wants
// depth.
func (e *Engine) Resize(width, height uint32) {
	if width == e.width && height == e.height {
		return
	}
	e.width = width
	e.height = height
	e.releaseDepth()
}

// ensureDepth returns the default depth target's view, allocating or
// reallocating the texture when the canvas size changed since last
// use.
func (e *Engine) ensureDepth(width, height uint32) (*wgpu.TextureView, error) {
	if e.depth.texture != nil && e.depth.width == width && e.depth.height == height {
		return e.depth.view, nil
	}
	e.releaseDepth()

	format := e.options.DepthFormat
	size := uint64(width) * uint64(height) * uint64(format.BytesPerPixel())
	if !e.vram.Allocate(depthTargetID, CategoryRenderTarget, size) {
		return nil, fmt.Errorf("depth target: %dx%d, %d bytes of %s memory: %w",
			width, height, size, CategoryRenderTarget, ErrBudgetExceeded)
	}
	texture := e.dev.CreateTexture(&wgpu.TextureDescriptor{
		Label: "depth target",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormatToWGPU(format),
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	e.depth = depthTarget{
		texture: texture,
		view:    texture.CreateView(nil),
		width:   width,
		height:  height,
	}
	return e.depth.view, nil
}

func (e *Engine) releaseDepth() {
	e.vram.Deallocate(depthTargetID)
	if e.depth.texture != nil {
		e.depth.view.Release()
		e.depth.texture.Release()
	}
	e.depth = depthTarget{}
}
