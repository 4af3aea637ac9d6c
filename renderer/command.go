// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

// Command is a declarative description of one GPU draw or compute dispatch.
// The backend translates commands into API state changes; scene code only
// builds them.
type Command interface {
	isCommand()
}

func (*DrawIndexed) isCommand()     {}
func (*Draw) isCommand()            {}
func (*DrawIndirect) isCommand()    {}
func (*DispatchCompute) isCommand() {}

// DrawState carries what every render-type command needs: the pipeline, the
// bind groups by slot, and the vertex buffers by slot.
type DrawState struct {
	Pipeline      PipelineID
	BindGroups    map[uint32]BindGroupID
	VertexBuffers map[uint32]BufferID
	Label         string
}

// DrawIndexed draws indexed geometry.
type DrawIndexed struct {
	DrawState
	IndexBuffer   BufferID
	IndexFormat   IndexFormat
	IndexCount    uint32
	InstanceCount uint32 // 0 means 1
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// Draw draws non-indexed geometry.
type Draw struct {
	DrawState
	VertexCount   uint32
	InstanceCount uint32 // 0 means 1
	FirstVertex   uint32
	FirstInstance uint32
}

// DrawIndirect reads its draw parameters from a GPU buffer at submission
// time. Indexed indirect draws must declare an index format explicitly; the
// CPU cannot inspect the parameter buffer, so nothing can be defaulted.
type DrawIndirect struct {
	DrawState
	Buffer  BufferID
	Offset  uint64
	Indexed bool
	// Required when Indexed is set.
	IndexBuffer BufferID
	IndexFormat IndexFormat
}

// DispatchCompute dispatches a compute workload. It requires an open frame
// but is independent of the render-pass state machine.
type DispatchCompute struct {
	Pipeline   PipelineID
	BindGroups map[uint32]BindGroupID
	Workgroups [3]uint32
	Label      string
}

// FrameStats accumulates per-frame counters. They are reset exactly once per
// frame, at beginFrame.
type FrameStats struct {
	DrawCalls         int
	Vertices          int
	Triangles         int
	ComputeDispatches int
	// PoolReallocations counts buffer-pool misses this frame; a persistently
	// non-zero value means the pool's steady state hasn't been reached.
	PoolReallocations int
}

// CountDraw adds one draw of primitives vertices (index count for indexed
// draws) with the given instance count to the statistics.
func (s *FrameStats) CountDraw(primitives, instances uint32) {
	if instances == 0 {
		instances = 1
	}
	s.DrawCalls++
	s.Vertices += int(primitives) * int(instances)
	s.Triangles += int(primitives/3) * int(instances)
}

// CountIndirect adds one indirect draw. Vertex and triangle counts are not
// knowable on the CPU for indirect draws, so only the call counter moves.
func (s *FrameStats) CountIndirect() {
	s.DrawCalls++
}

func (s *FrameStats) CountDispatch() {
	s.ComputeDispatches++
}
