// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"fmt"

	"honnef.co/go/retro/mem"
	"honnef.co/go/retro/renderer"
	"honnef.co/go/wgpu"
)

// Execute translates one declarative command into backend calls.
// Render-type commands need an open render pass; compute dispatches
// need an open frame but must not run inside a render pass, they
// record their own compute pass on the frame's encoder.
func (e *Engine) Execute(cmd renderer.Command) error {
	if e.lost {
		return ErrDeviceLost
	}
	switch cmd := cmd.(type) {
	case *renderer.DrawIndexed:
		return e.execDrawIndexed(cmd)
	case *renderer.Draw:
		return e.execDraw(cmd)
	case *renderer.DrawIndirect:
		return e.execDrawIndirect(cmd)
	case *renderer.DispatchCompute:
		return e.execDispatch(cmd)
	default:
		panic(fmt.Sprintf("unhandled command type %T", cmd))
	}
}

// applyDrawState validates and binds the pipeline, bind groups, and
// vertex buffers shared by all render-type commands.
func (e *Engine) applyDrawState(state *renderer.DrawState) error {
	if e.state != statePass {
		return fmt.Errorf("%w: draw %q outside a render pass", ErrFrameState, state.Label)
	}
	pl, err := e.res.pipeline(state.Pipeline)
	if err != nil {
		return err
	}
	if pl.compute {
		return fmt.Errorf("draw %q: pipeline %q is a compute pipeline", state.Label, pl.name)
	}
	if err := e.validateVertexSlots(state); err != nil {
		return err
	}

	e.pass.SetPipeline(pl.render)
	for slot, id := range state.BindGroups {
		bg, err := e.res.bindGroup(id)
		if err != nil {
			return fmt.Errorf("draw %q: %w", state.Label, err)
		}
		e.pass.SetBindGroup(slot, bg.bg, nil)
	}
	for slot, id := range state.VertexBuffers {
		buf, err := e.res.buffer(id)
		if err != nil {
			return fmt.Errorf("draw %q: %w", state.Label, err)
		}
		e.pass.SetVertexBuffer(slot, buf.buf, 0, ^uint64(0))
	}
	return nil
}

// validateVertexSlots rejects slots past the device limit and warns
// about non-contiguous assignments. Gaps work, but they usually mean a
// slot index was mistyped.
func (e *Engine) validateVertexSlots(state *renderer.DrawState) error {
	if len(state.VertexBuffers) == 0 {
		return nil
	}
	contiguous := true
	for slot := range state.VertexBuffers {
		if slot >= e.caps.MaxVertexBuffers {
			return fmt.Errorf("draw %q: vertex buffer slot %d exceeds device maximum %d",
				state.Label, slot, e.caps.MaxVertexBuffers-1)
		}
		// Slots are contiguous from 0 exactly when every slot index is
		// below the slot count.
		if slot >= uint32(len(state.VertexBuffers)) {
			contiguous = false
		}
	}
	if !contiguous {
		e.warnf("draw %q: vertex buffer slots are not contiguous from 0", state.Label)
	}
	return nil
}

func (e *Engine) execDrawIndexed(cmd *renderer.DrawIndexed) error {
	if err := e.applyDrawState(&cmd.DrawState); err != nil {
		return err
	}
	buf, err := e.res.buffer(cmd.IndexBuffer)
	if err != nil {
		return fmt.Errorf("draw %q: index buffer: %w", cmd.Label, err)
	}
	e.pass.SetIndexBuffer(buf.buf, indexFormatToWGPU(cmd.IndexFormat), 0, ^uint64(0))
	instances := cmd.InstanceCount
	if instances == 0 {
		instances = 1
	}
	e.pass.DrawIndexed(cmd.IndexCount, instances, cmd.FirstIndex, cmd.BaseVertex, cmd.FirstInstance)
	e.stats.CountDraw(cmd.IndexCount, cmd.InstanceCount)
	return nil
}

func (e *Engine) execDraw(cmd *renderer.Draw) error {
	if err := e.applyDrawState(&cmd.DrawState); err != nil {
		return err
	}
	instances := cmd.InstanceCount
	if instances == 0 {
		instances = 1
	}
	e.pass.Draw(cmd.VertexCount, instances, cmd.FirstVertex, cmd.FirstInstance)
	e.stats.CountDraw(cmd.VertexCount, cmd.InstanceCount)
	return nil
}

func (e *Engine) execDrawIndirect(cmd *renderer.DrawIndirect) error {
	if cmd.Indexed && cmd.IndexFormat == 0 {
		return fmt.Errorf("draw %q: %w", cmd.Label, ErrIndexFormatMissing)
	}
	if err := e.applyDrawState(&cmd.DrawState); err != nil {
		return err
	}
	buf, err := e.res.buffer(cmd.Buffer)
	if err != nil {
		return fmt.Errorf("draw %q: argument buffer: %w", cmd.Label, err)
	}
	if cmd.Indexed {
		ibuf, err := e.res.buffer(cmd.IndexBuffer)
		if err != nil {
			return fmt.Errorf("draw %q: index buffer: %w", cmd.Label, err)
		}
		e.pass.SetIndexBuffer(ibuf.buf, indexFormatToWGPU(cmd.IndexFormat), 0, ^uint64(0))
		e.pass.DrawIndexedIndirect(buf.buf, cmd.Offset)
	} else {
		e.pass.DrawIndirect(buf.buf, cmd.Offset)
	}
	e.stats.CountIndirect()
	return nil
}

func (e *Engine) execDispatch(cmd *renderer.DispatchCompute) error {
	switch e.state {
	case stateIdle:
		return fmt.Errorf("%w: dispatch %q with no open frame", ErrFrameState, cmd.Label)
	case statePass:
		return fmt.Errorf("%w: dispatch %q inside a render pass", ErrFrameState, cmd.Label)
	}
	pl, err := e.res.pipeline(cmd.Pipeline)
	if err != nil {
		return err
	}
	if !pl.compute {
		return fmt.Errorf("dispatch %q: pipeline %q is a render pipeline", cmd.Label, pl.name)
	}
	cpass := e.encoder.BeginComputePass(mem.Make(e.arena, wgpu.ComputePassDescriptor{
		Label: cmd.Label,
	}))
	cpass.SetPipeline(pl.cpl)
	for slot, id := range cmd.BindGroups {
		bg, err := e.res.bindGroup(id)
		if err != nil {
			cpass.End()
			cpass.Release()
			return fmt.Errorf("dispatch %q: %w", cmd.Label, err)
		}
		cpass.SetBindGroup(slot, bg.bg, nil)
	}
	cpass.DispatchWorkgroups(cmd.Workgroups[0], cmd.Workgroups[1], cmd.Workgroups[2])
	cpass.End()
	cpass.Release()
	e.stats.CountDispatch()
	return nil
}

func indexFormatToWGPU(f renderer.IndexFormat) wgpu.IndexFormat {
	if f == renderer.IndexUint32 {
		return wgpu.IndexFormatUint32
	}
	return wgpu.IndexFormatUint16
}
