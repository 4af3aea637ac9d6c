// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"context"

	"honnef.co/go/wgpu"
)

// DeviceLimits mirrors the limits the platform layer read from the
// device. Zero fields fall back to WebGPU's defaults.
type DeviceLimits struct {
	MaxTextureDimension2D       uint32
	MaxUniformBufferBindingSize uint64
	MaxVertexAttributes         uint32
	MaxVertexBuffers            uint32
	MaxColorAttachments         uint32
	MaxBindGroups               uint32
	MaxSamplerAnisotropy        uint32
}

// DeviceFeatures lists the optional device features the engine cares
// about.
type DeviceFeatures struct {
	TimestampQuery         bool
	TextureCompressionBC   bool
	TextureCompressionETC2 bool
}

// DeviceInfo is what a DeviceSource hands the engine after device
// acquisition completes.
type DeviceInfo struct {
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Limits   DeviceLimits
	Features DeviceFeatures
}

// DeviceSource acquires a device. It is called once at startup and
// again for each recovery attempt after device loss. Acquisition is
// the engine's only startup-time suspension point; no other engine
// call is valid before it completes.
type DeviceSource func(ctx context.Context) (DeviceInfo, error)

// Caps reports what the backend can do, derived from device limits
// with WebGPU defaults filling in anything the device didn't report.
type Caps struct {
	MaxTextureDimension  uint32
	MaxUniformBufferSize uint64
	MaxVertexAttributes  uint32
	MaxVertexBuffers     uint32
	MaxColorAttachments  uint32
	MaxBindGroups        uint32
	Anisotropy           bool
	CompressionBC        bool
	CompressionETC2      bool
}

func capsFrom(info DeviceInfo) Caps {
	c := Caps{
		MaxTextureDimension:  info.Limits.MaxTextureDimension2D,
		MaxUniformBufferSize: info.Limits.MaxUniformBufferBindingSize,
		MaxVertexAttributes:  info.Limits.MaxVertexAttributes,
		MaxVertexBuffers:     info.Limits.MaxVertexBuffers,
		MaxColorAttachments:  info.Limits.MaxColorAttachments,
		MaxBindGroups:        info.Limits.MaxBindGroups,
		Anisotropy:           info.Limits.MaxSamplerAnisotropy > 1,
		CompressionBC:        info.Features.TextureCompressionBC,
		CompressionETC2:      info.Features.TextureCompressionETC2,
	}
	// WebGPU guaranteed defaults.
	if c.MaxTextureDimension == 0 {
		c.MaxTextureDimension = 8192
	}
	if c.MaxUniformBufferSize == 0 {
		c.MaxUniformBufferSize = 65536
	}
	if c.MaxVertexAttributes == 0 {
		c.MaxVertexAttributes = 16
	}
	if c.MaxVertexBuffers == 0 {
		c.MaxVertexBuffers = 8
	}
	if c.MaxColorAttachments == 0 {
		c.MaxColorAttachments = 8
	}
	if c.MaxBindGroups == 0 {
		c.MaxBindGroups = 4
	}
	return c
}
