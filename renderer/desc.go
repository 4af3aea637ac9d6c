// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

// FilterMode selects texel filtering. Nearest is the zero value; retro
// rendering wants unfiltered texels unless told otherwise.
type FilterMode int

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// AddressMode selects how texture coordinates outside [0, 1] resolve.
type AddressMode int

const (
	AddressClampToEdge AddressMode = iota
	AddressRepeat
	AddressMirrorRepeat
)

// SamplerDesc describes a texture sampler. The zero value is a
// nearest-filtered, clamping sampler.
type SamplerDesc struct {
	MinFilter FilterMode
	MagFilter FilterMode
	AddressU  AddressMode
	AddressV  AddressMode
}

// VertexFormat declares the in-memory format of one vertex attribute.
type VertexFormat int

const (
	VertexFloat32 VertexFormat = iota + 1
	VertexFloat32x2
	VertexFloat32x3
	VertexFloat32x4
	VertexUint32
	VertexUint8x4Norm
)

// Size returns the attribute's byte width.
func (f VertexFormat) Size() uint64 {
	switch f {
	case VertexFloat32, VertexUint32, VertexUint8x4Norm:
		return 4
	case VertexFloat32x2:
		return 8
	case VertexFloat32x3:
		return 12
	case VertexFloat32x4:
		return 16
	default:
		return 0
	}
}

// VertexAttribute binds one shader @location to a slice of each vertex.
type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint64
}

// VertexLayout describes one vertex buffer slot: its stride and the
// attributes read from it. PerInstance layouts advance once per
// instance instead of once per vertex.
type VertexLayout struct {
	Stride      uint64
	PerInstance bool
	Attributes  []VertexAttribute
}

// PrimitiveTopology selects how vertices are assembled.
type PrimitiveTopology int

const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyTriangleStrip
	TopologyLineList
)

// CullMode selects back-face culling. None is the zero value.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// BindingResource names the resource bound at one binding slot of a
// bind group. Exactly one of Buffer, Texture, and Sampler is set; the
// others stay zero.
type BindingResource struct {
	Binding uint32
	Buffer  BufferID
	Texture TextureID
	Sampler SamplerID
}

// RenderPipelineDesc describes a render pipeline over a shader. Bind
// group layouts and entry points come from shader reflection, not from
// this descriptor. A zero DepthFormat means the pipeline renders
// without a depth attachment.
type RenderPipelineDesc struct {
	VertexLayouts []VertexLayout
	ColorFormats  []TextureFormat
	DepthFormat   TextureFormat
	DepthWrite    bool
	Topology      PrimitiveTopology
	CullMode      CullMode
}
