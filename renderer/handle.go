// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package renderer defines the declarative contract between scene code and
// the GPU backend: typed resource handles, draw commands and frame
// statistics. Scene code never touches backend objects; it holds opaque
// handles and submits commands that the backend executes.
package renderer

// Handles name backend-owned resources. Each resource kind gets its own
// integer type so a buffer handle cannot be passed where a texture handle is
// expected. The zero value of every handle type is invalid; handles are only
// valid between their creation call and their explicit destroy call.
type (
	ShaderID          uint32
	BufferID          uint32
	TextureID         uint32
	FramebufferID     uint32
	SamplerID         uint32
	BindGroupLayoutID uint32
	BindGroupID       uint32
	PipelineID        uint32
)

// UsageClass partitions buffers by their role, which decides pooling and
// VRAM accounting.
type UsageClass int

const (
	UsageVertex UsageClass = iota
	UsageIndex
	UsageUniform
	UsageStorage
	UsageIndirect
)

func (u UsageClass) String() string {
	switch u {
	case UsageVertex:
		return "vertex"
	case UsageIndex:
		return "index"
	case UsageUniform:
		return "uniform"
	case UsageStorage:
		return "storage"
	case UsageIndirect:
		return "indirect"
	default:
		return "unknown"
	}
}

// BufferMode selects the allocation strategy for vertex and index buffers.
// Dynamic buffers are pooled and rewritten every frame; static buffers are
// allocated exactly once at their requested size.
type BufferMode int

const (
	BufferStatic BufferMode = iota
	BufferDynamic
)

// TextureFormat is the subset of formats the backend supports. Retro-style
// rendering sticks to 8-bit color and a 16-bit depth option. The zero value
// FormatNone marks the absence of an attachment in descriptors.
type TextureFormat int

const (
	FormatNone TextureFormat = iota
	FormatRGBA8
	FormatBGRA8
	FormatDepth16
	FormatDepth24
)

// IsDepth reports whether the format is a depth attachment format.
func (f TextureFormat) IsDepth() bool {
	return f == FormatDepth16 || f == FormatDepth24
}

// BytesPerPixel returns the per-texel size used for VRAM accounting. Depth16
// costs 2 bytes; every other supported format costs 4.
func (f TextureFormat) BytesPerPixel() int {
	if f == FormatDepth16 {
		return 2
	}
	return 4
}

// IndexFormat declares the width of index buffer entries.
type IndexFormat int

const (
	IndexUint16 IndexFormat = iota + 1
	IndexUint32
)
