// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"fmt"
	"strings"

	"honnef.co/go/retro/renderer"
	"honnef.co/go/wgpu"
)

type shaderResource struct {
	name   string
	source string
	info   *ShaderInfo
	module *wgpu.ShaderModule
	// layouts holds one bind group layout per group index the shader
	// declares, derived from reflection.
	layouts []*wgpu.BindGroupLayout
}

type bufferResource struct {
	name  string
	usage renderer.UsageClass
	mode  renderer.BufferMode
	// size is what the caller asked for; allocated is what the VRAM
	// profiler was told, which for pooled buffers is the bucket size.
	size      uint64
	allocated uint64
	pooled    bool
	buf       *wgpu.Buffer
	// data is kept for replay after device loss. Pooled buffers are
	// rewritten every frame anyway and skip the copy.
	data []byte
}

type textureResource struct {
	name          string
	width, height uint32
	format        renderer.TextureFormat
	texture       *wgpu.Texture
	view          *wgpu.TextureView
	data          []byte
}

type framebufferResource struct {
	name          string
	colors        []renderer.TextureID
	depth         renderer.TextureID
	width, height uint32
}

type samplerResource struct {
	name    string
	desc    renderer.SamplerDesc
	sampler *wgpu.Sampler
}

type bindGroupResource struct {
	name    string
	shader  renderer.ShaderID
	group   uint32
	entries []renderer.BindingResource
	bg      *wgpu.BindGroup
}

type pipelineResource struct {
	name    string
	shader  renderer.ShaderID
	compute bool
	desc    renderer.RenderPipelineDesc
	render  *wgpu.RenderPipeline
	cpl     *wgpu.ComputePipeline
}

type resourceKind int

const (
	kindShader resourceKind = iota
	kindBuffer
	kindTexture
	kindFramebuffer
	kindSampler
	kindBindGroup
	kindPipeline
)

type resourceRef struct {
	kind resourceKind
	id   uint32
}

// Resources owns every GPU object the engine creates and hands out
// opaque handles for them. It doubles as the descriptor log for device
// recovery: each record keeps its creation parameters (and upload data
// where feasible), so replay can rebuild the device-side objects under
// the same handles.
type Resources struct {
	dev   *wgpu.Device
	queue *wgpu.Queue
	vram  *VRAMProfiler
	pool  *BufferPool[*wgpu.Buffer]
	refl  *ReflectionCache

	shaders      map[renderer.ShaderID]*shaderResource
	buffers      map[renderer.BufferID]*bufferResource
	textures     map[renderer.TextureID]*textureResource
	framebuffers map[renderer.FramebufferID]*framebufferResource
	samplers     map[renderer.SamplerID]*samplerResource
	bindGroups   map[renderer.BindGroupID]*bindGroupResource
	pipelines    map[renderer.PipelineID]*pipelineResource

	// order records creation order, which replay must respect because
	// bind groups and pipelines reference earlier resources.
	order  []resourceRef
	nextID uint32
}

func newResources(dev *wgpu.Device, queue *wgpu.Queue, vram *VRAMProfiler) *Resources {
	m := &Resources{
		dev:          dev,
		queue:        queue,
		vram:         vram,
		refl:         NewReflectionCache(),
		shaders:      map[renderer.ShaderID]*shaderResource{},
		buffers:      map[renderer.BufferID]*bufferResource{},
		textures:     map[renderer.TextureID]*textureResource{},
		framebuffers: map[renderer.FramebufferID]*framebufferResource{},
		samplers:     map[renderer.SamplerID]*samplerResource{},
		bindGroups:   map[renderer.BindGroupID]*bindGroupResource{},
		pipelines:    map[renderer.PipelineID]*pipelineResource{},
	}
	m.pool = NewBufferPool(
		func(usage renderer.UsageClass, size uint64) (*wgpu.Buffer, error) {
			return m.dev.CreateBuffer(&wgpu.BufferDescriptor{
				Label: "pool: " + usage.String(),
				Size:  size,
				Usage: bufferUsageFlags(usage),
			}), nil
		},
		func(buf *wgpu.Buffer) { buf.Release() },
	)
	return m
}

func (m *Resources) id() uint32 {
	m.nextID++
	return m.nextID
}

func bufferUsageFlags(usage renderer.UsageClass) wgpu.BufferUsage {
	switch usage {
	case renderer.UsageVertex:
		return wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	case renderer.UsageIndex:
		return wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	case renderer.UsageUniform:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	case renderer.UsageStorage:
		return wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	case renderer.UsageIndirect:
		return wgpu.BufferUsageIndirect | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	default:
		panic(fmt.Sprintf("unhandled usage class %d", usage))
	}
}

func vramCategory(usage renderer.UsageClass) VRAMCategory {
	switch usage {
	case renderer.UsageVertex:
		return CategoryVertex
	case renderer.UsageIndex:
		return CategoryIndex
	case renderer.UsageUniform:
		return CategoryUniform
	default:
		return CategoryStorage
	}
}

func textureFormatToWGPU(format renderer.TextureFormat) wgpu.TextureFormat {
	switch format {
	case renderer.FormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm
	case renderer.FormatBGRA8:
		return wgpu.TextureFormatBGRA8Unorm
	case renderer.FormatDepth16:
		return wgpu.TextureFormatDepth16Unorm
	case renderer.FormatDepth24:
		return wgpu.TextureFormatDepth24Plus
	default:
		panic(fmt.Sprintf("unhandled texture format %d", format))
	}
}

// CreateShader registers WGSL source under a handle, reflecting it and
// building one bind group layout per declared group. A shader with no
// entry points is rejected.
func (m *Resources) CreateShader(name, source string) (renderer.ShaderID, error) {
	info, err := m.refl.Reflect(source)
	if err != nil {
		return 0, fmt.Errorf("shader %q: %w", name, err)
	}
	res := &shaderResource{name: name, source: source, info: info}
	m.instantiateShader(res)
	id := renderer.ShaderID(m.id())
	m.shaders[id] = res
	m.order = append(m.order, resourceRef{kindShader, uint32(id)})
	return id, nil
}

func (m *Resources) instantiateShader(res *shaderResource) {
	res.module = m.dev.CreateShaderModule(wgpu.ShaderModuleDescriptor{
		Label:  res.name,
		Source: wgpu.ShaderSourceWGSL(res.source),
	})
	res.layouts = res.layouts[:0]
	for group := 0; group <= res.info.MaxGroup(); group++ {
		res.layouts = append(res.layouts, m.bindGroupLayout(res.name, res.info, uint32(group)))
	}
}

func (m *Resources) bindGroupLayout(name string, info *ShaderInfo, group uint32) *wgpu.BindGroupLayout {
	visibility := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	if info.ComputeEntry != "" {
		visibility = wgpu.ShaderStageCompute
	}
	var entries []wgpu.BindGroupLayoutEntry
	for _, b := range info.GroupBindings(group) {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    b.Binding,
			Visibility: visibility,
		}
		switch {
		case strings.HasPrefix(b.Type, "texture_storage_"):
			entry.StorageTexture = &wgpu.StorageTextureBindingLayout{
				Access:        wgpu.StorageTextureAccessWriteOnly,
				Format:        wgpu.TextureFormatRGBA8Unorm,
				ViewDimension: wgpu.TextureViewDimension2D,
			}
		case strings.HasPrefix(b.Type, "texture_"):
			entry.Texture = &wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			}
		case strings.HasPrefix(b.Type, "sampler"):
			entry.Sampler = &wgpu.SamplerBindingLayout{
				Type: wgpu.SamplerBindingTypeFiltering,
			}
		default:
			entry.Buffer = &wgpu.BufferBindingLayout{
				Type: bufferBindingType(b.AddressSpace),
			}
		}
		entries = append(entries, entry)
	}
	return m.dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("%s group %d", name, group),
		Entries: entries,
	})
}

func bufferBindingType(addressSpace string) wgpu.BufferBindingType {
	switch addressSpace {
	case "uniform", "":
		return wgpu.BufferBindingTypeUniform
	case "storage", "storage, read_write":
		return wgpu.BufferBindingTypeStorage
	case "storage, read":
		return wgpu.BufferBindingTypeReadOnlyStorage
	default:
		return wgpu.BufferBindingTypeUniform
	}
}

// CreateBuffer allocates a buffer and uploads data to it. Dynamic
// vertex and index buffers come from the pool, and the pool's bucket
// size, not the request size, is what counts against the VRAM budget.
// Uniform and storage buffers are allocated exactly.
func (m *Resources) CreateBuffer(name string, data []byte, usage renderer.UsageClass, mode renderer.BufferMode) (renderer.BufferID, error) {
	size := uint64(len(data))
	pooled := mode == renderer.BufferDynamic &&
		(usage == renderer.UsageVertex || usage == renderer.UsageIndex)

	accounted := size
	if pooled {
		accounted = bucketSize(size)
	}
	id := renderer.BufferID(m.id())
	category := vramCategory(usage)
	if !m.vram.Allocate(vramKey("buffer", uint32(id), name), category, accounted) {
		return 0, fmt.Errorf("buffer %q: %d bytes of %s memory (used %d of %d): %w",
			name, accounted, category,
			m.vram.used[category], m.vram.budgets[category], ErrBudgetExceeded)
	}

	res := &bufferResource{
		name:      name,
		usage:     usage,
		mode:      mode,
		size:      size,
		allocated: accounted,
		pooled:    pooled,
	}
	var err error
	if pooled {
		res.buf, _, err = m.pool.Acquire(usage, size)
	} else {
		res.buf = m.dev.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name,
			Size:  size,
			Usage: bufferUsageFlags(usage),
		})
		res.data = append([]byte(nil), data...)
	}
	if err != nil {
		m.vram.Deallocate(vramKey("buffer", uint32(id), name))
		return 0, fmt.Errorf("buffer %q: %w", name, err)
	}
	if len(data) > 0 {
		m.queue.WriteBuffer(res.buf, 0, data)
	}
	m.buffers[id] = res
	m.order = append(m.order, resourceRef{kindBuffer, uint32(id)})
	return id, nil
}

// UpdateBuffer overwrites part or all of a buffer's contents.
func (m *Resources) UpdateBuffer(id renderer.BufferID, offset uint64, data []byte) error {
	res, ok := m.buffers[id]
	if !ok {
		return fmt.Errorf("buffer %d: %w", id, ErrUnknownHandle)
	}
	if offset+uint64(len(data)) > max(res.size, res.allocated) {
		return fmt.Errorf("buffer %d (%q): write of %d bytes at offset %d exceeds size %d",
			id, res.name, len(data), offset, res.size)
	}
	m.queue.WriteBuffer(res.buf, offset, data)
	if res.data != nil {
		end := offset + uint64(len(data))
		if end > uint64(len(res.data)) {
			end = uint64(len(res.data))
		}
		copy(res.data[offset:end], data)
	}
	return nil
}

// DestroyBuffer releases a buffer. Pooled buffers go back to the pool
// rather than being freed; either way the VRAM record is dropped.
func (m *Resources) DestroyBuffer(id renderer.BufferID) error {
	res, ok := m.buffers[id]
	if !ok {
		return fmt.Errorf("buffer %d: %w", id, ErrUnknownHandle)
	}
	// Remove from tracking first so a second destroy can't release the
	// same buffer into the pool twice.
	delete(m.buffers, id)
	m.dropRef(resourceRef{kindBuffer, uint32(id)})
	m.vram.Deallocate(vramKey("buffer", uint32(id), res.name))
	if res.pooled {
		m.pool.Release(res.usage, res.size, res.buf)
	} else {
		res.buf.Release()
	}
	return nil
}

// CreateTexture allocates a 2D texture and optionally uploads initial
// texel data. Depth formats become render attachments only and never
// take initial data; color formats can be sampled and copied into.
func (m *Resources) CreateTexture(name string, width, height uint32, format renderer.TextureFormat, data []byte) (renderer.TextureID, error) {
	if format == renderer.FormatNone {
		return 0, fmt.Errorf("texture %q: no format specified", name)
	}
	if format.IsDepth() && data != nil {
		return 0, fmt.Errorf("texture %q: depth textures take no initial data", name)
	}
	size := uint64(width) * uint64(height) * uint64(format.BytesPerPixel())
	category := CategoryTexture
	if format.IsDepth() {
		category = CategoryRenderTarget
	}
	id := renderer.TextureID(m.id())
	if !m.vram.Allocate(vramKey("texture", uint32(id), name), category, size) {
		return 0, fmt.Errorf("texture %q: %dx%d, %d bytes of %s memory (used %d of %d): %w",
			name, width, height, size, category,
			m.vram.used[category], m.vram.budgets[category], ErrBudgetExceeded)
	}
	res := &textureResource{
		name:   name,
		width:  width,
		height: height,
		format: format,
	}
	if data != nil {
		res.data = append([]byte(nil), data...)
	}
	m.instantiateTexture(res)
	m.textures[id] = res
	m.order = append(m.order, resourceRef{kindTexture, uint32(id)})
	return id, nil
}

func (m *Resources) instantiateTexture(res *textureResource) {
	var usage wgpu.TextureUsage
	if res.format.IsDepth() {
		usage = wgpu.TextureUsageRenderAttachment
	} else {
		usage = wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment
	}
	res.texture = m.dev.CreateTexture(&wgpu.TextureDescriptor{
		Label: res.name,
		Size: wgpu.Extent3D{
			Width:              res.width,
			Height:             res.height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormatToWGPU(res.format),
		Usage:         usage,
	})
	res.view = res.texture.CreateView(&wgpu.TextureViewDescriptor{
		Format:          textureFormatToWGPU(res.format),
		Dimension:       wgpu.TextureViewDimension2D,
		Aspect:          wgpu.TextureAspectAll,
		BaseMipLevel:    0,
		MipLevelCount:   ^uint32(0),
		BaseArrayLayer:  0,
		ArrayLayerCount: ^uint32(0),
	})
	if res.data != nil {
		m.uploadTexture(res)
	}
}

func (m *Resources) uploadTexture(res *textureResource) {
	m.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  res.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
			Aspect:   wgpu.TextureAspectAll,
		},
		res.data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  res.width * uint32(res.format.BytesPerPixel()),
			RowsPerImage: ^uint32(0),
		},
		&wgpu.Extent3D{
			Width:              res.width,
			Height:             res.height,
			DepthOrArrayLayers: 1,
		},
	)
}

// DestroyTexture releases a texture and its VRAM record.
func (m *Resources) DestroyTexture(id renderer.TextureID) error {
	res, ok := m.textures[id]
	if !ok {
		return fmt.Errorf("texture %d: %w", id, ErrUnknownHandle)
	}
	delete(m.textures, id)
	m.dropRef(resourceRef{kindTexture, uint32(id)})
	m.vram.Deallocate(vramKey("texture", uint32(id), res.name))
	res.view.Release()
	res.texture.Release()
	return nil
}

// CreateFramebuffer groups textures into a render target. At least one
// color attachment is required; dimensions come from the first one.
func (m *Resources) CreateFramebuffer(name string, colors []renderer.TextureID, depth renderer.TextureID) (renderer.FramebufferID, error) {
	if len(colors) == 0 {
		return 0, fmt.Errorf("framebuffer %q: needs at least one color attachment", name)
	}
	for _, tid := range colors {
		tex, ok := m.textures[tid]
		if !ok {
			return 0, fmt.Errorf("framebuffer %q: color attachment texture %d: %w", name, tid, ErrUnknownHandle)
		}
		if tex.format.IsDepth() {
			return 0, fmt.Errorf("framebuffer %q: texture %d (%q) is a depth format, not usable as color attachment",
				name, tid, tex.name)
		}
	}
	if depth != 0 {
		tex, ok := m.textures[depth]
		if !ok {
			return 0, fmt.Errorf("framebuffer %q: depth attachment texture %d: %w", name, depth, ErrUnknownHandle)
		}
		if !tex.format.IsDepth() {
			return 0, fmt.Errorf("framebuffer %q: texture %d (%q) is not a depth format", name, depth, tex.name)
		}
	}
	first := m.textures[colors[0]]
	id := renderer.FramebufferID(m.id())
	m.framebuffers[id] = &framebufferResource{
		name:   name,
		colors: append([]renderer.TextureID(nil), colors...),
		depth:  depth,
		width:  first.width,
		height: first.height,
	}
	m.order = append(m.order, resourceRef{kindFramebuffer, uint32(id)})
	return id, nil
}

// DestroyFramebuffer drops a framebuffer. Its attachment textures stay
// alive; they have their own handles.
func (m *Resources) DestroyFramebuffer(id renderer.FramebufferID) error {
	if _, ok := m.framebuffers[id]; !ok {
		return fmt.Errorf("framebuffer %d: %w", id, ErrUnknownHandle)
	}
	delete(m.framebuffers, id)
	m.dropRef(resourceRef{kindFramebuffer, uint32(id)})
	return nil
}

// CreateSampler allocates a texture sampler.
func (m *Resources) CreateSampler(name string, desc renderer.SamplerDesc) (renderer.SamplerID, error) {
	res := &samplerResource{name: name, desc: desc}
	m.instantiateSampler(res)
	id := renderer.SamplerID(m.id())
	m.samplers[id] = res
	m.order = append(m.order, resourceRef{kindSampler, uint32(id)})
	return id, nil
}

func (m *Resources) instantiateSampler(res *samplerResource) {
	res.sampler = m.dev.CreateSampler(&wgpu.SamplerDescriptor{
		Label:        res.name,
		AddressModeU: addressModeToWGPU(res.desc.AddressU),
		AddressModeV: addressModeToWGPU(res.desc.AddressV),
		MagFilter:    filterModeToWGPU(res.desc.MagFilter),
		MinFilter:    filterModeToWGPU(res.desc.MinFilter),
	})
}

func addressModeToWGPU(mode renderer.AddressMode) wgpu.AddressMode {
	switch mode {
	case renderer.AddressRepeat:
		return wgpu.AddressModeRepeat
	case renderer.AddressMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeClampToEdge
	}
}

func filterModeToWGPU(mode renderer.FilterMode) wgpu.FilterMode {
	if mode == renderer.FilterLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

// CreateBindGroup binds concrete resources to one of a shader's bind
// groups, using the layout derived from the shader's reflection.
func (m *Resources) CreateBindGroup(name string, shader renderer.ShaderID, group uint32, entries []renderer.BindingResource) (renderer.BindGroupID, error) {
	res := &bindGroupResource{
		name:    name,
		shader:  shader,
		group:   group,
		entries: append([]renderer.BindingResource(nil), entries...),
	}
	if err := m.instantiateBindGroup(res); err != nil {
		return 0, err
	}
	id := renderer.BindGroupID(m.id())
	m.bindGroups[id] = res
	m.order = append(m.order, resourceRef{kindBindGroup, uint32(id)})
	return id, nil
}

func (m *Resources) instantiateBindGroup(res *bindGroupResource) error {
	sh, ok := m.shaders[res.shader]
	if !ok {
		return fmt.Errorf("bind group %q: shader %d: %w", res.name, res.shader, ErrUnknownHandle)
	}
	if int(res.group) >= len(sh.layouts) {
		return fmt.Errorf("bind group %q: shader %q declares no group %d", res.name, sh.name, res.group)
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(res.entries))
	for _, e := range res.entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != 0:
			buf, ok := m.buffers[e.Buffer]
			if !ok {
				return fmt.Errorf("bind group %q: buffer %d: %w", res.name, e.Buffer, ErrUnknownHandle)
			}
			entry.Buffer = buf.buf
		case e.Texture != 0:
			tex, ok := m.textures[e.Texture]
			if !ok {
				return fmt.Errorf("bind group %q: texture %d: %w", res.name, e.Texture, ErrUnknownHandle)
			}
			entry.TextureView = tex.view
		case e.Sampler != 0:
			smp, ok := m.samplers[e.Sampler]
			if !ok {
				return fmt.Errorf("bind group %q: sampler %d: %w", res.name, e.Sampler, ErrUnknownHandle)
			}
			entry.Sampler = smp.sampler
		default:
			return fmt.Errorf("bind group %q: binding %d names no resource", res.name, e.Binding)
		}
		entries = append(entries, entry)
	}
	res.bg = m.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   res.name,
		Layout:  sh.layouts[res.group],
		Entries: entries,
	})
	return nil
}

// CreateRenderPipeline builds a render pipeline from a shader and a
// vertex/target description. Entry points and bind group layouts come
// from the shader's reflection.
func (m *Resources) CreateRenderPipeline(name string, shader renderer.ShaderID, desc renderer.RenderPipelineDesc) (renderer.PipelineID, error) {
	res := &pipelineResource{name: name, shader: shader, desc: desc}
	if err := m.instantiateRenderPipeline(res); err != nil {
		return 0, err
	}
	id := renderer.PipelineID(m.id())
	m.pipelines[id] = res
	m.order = append(m.order, resourceRef{kindPipeline, uint32(id)})
	return id, nil
}

func (m *Resources) instantiateRenderPipeline(res *pipelineResource) error {
	sh, ok := m.shaders[res.shader]
	if !ok {
		return fmt.Errorf("pipeline %q: shader %d: %w", res.name, res.shader, ErrUnknownHandle)
	}
	if sh.info.VertexEntry == "" {
		return fmt.Errorf("pipeline %q: shader %q has no vertex entry point", res.name, sh.name)
	}
	layout := m.dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            res.name + " layout",
		BindGroupLayouts: sh.layouts,
	})
	defer layout.Release()

	buffers := make([]wgpu.VertexBufferLayout, len(res.desc.VertexLayouts))
	for i, vl := range res.desc.VertexLayouts {
		attrs := make([]wgpu.VertexAttribute, len(vl.Attributes))
		for j, a := range vl.Attributes {
			attrs[j] = wgpu.VertexAttribute{
				Format:         vertexFormatToWGPU(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.Location,
			}
		}
		stepMode := wgpu.VertexStepModeVertex
		if vl.PerInstance {
			stepMode = wgpu.VertexStepModeInstance
		}
		buffers[i] = wgpu.VertexBufferLayout{
			ArrayStride: vl.Stride,
			StepMode:    stepMode,
			Attributes:  attrs,
		}
	}

	targets := make([]wgpu.ColorTargetState, len(res.desc.ColorFormats))
	for i, f := range res.desc.ColorFormats {
		targets[i] = wgpu.ColorTargetState{
			Format:    textureFormatToWGPU(f),
			WriteMask: wgpu.ColorWriteMaskAll,
		}
	}

	pd := &wgpu.RenderPipelineDescriptor{
		Label:  res.name,
		Layout: layout,
		Vertex: &wgpu.VertexState{
			Module:     sh.module,
			EntryPoint: sh.info.VertexEntry,
			Buffers:    buffers,
		},
		Primitive: &wgpu.PrimitiveState{
			Topology:  topologyToWGPU(res.desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullModeToWGPU(res.desc.CullMode),
		},
		Multisample: &wgpu.MultisampleState{
			Count: 1,
			Mask:  ^uint32(0),
		},
	}
	if sh.info.FragmentEntry != "" {
		pd.Fragment = &wgpu.FragmentState{
			Module:     sh.module,
			EntryPoint: sh.info.FragmentEntry,
			Targets:    targets,
		}
	}
	if res.desc.DepthFormat != renderer.FormatNone {
		pd.DepthStencil = &wgpu.DepthStencilState{
			Format:            textureFormatToWGPU(res.desc.DepthFormat),
			DepthWriteEnabled: res.desc.DepthWrite,
			DepthCompare:      wgpu.CompareFunctionLess,
		}
	}
	res.render = m.dev.CreateRenderPipeline(pd)
	return nil
}

func vertexFormatToWGPU(f renderer.VertexFormat) wgpu.VertexFormat {
	switch f {
	case renderer.VertexFloat32:
		return wgpu.VertexFormatFloat32
	case renderer.VertexFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case renderer.VertexFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case renderer.VertexFloat32x4:
		return wgpu.VertexFormatFloat32x4
	case renderer.VertexUint32:
		return wgpu.VertexFormatUint32
	case renderer.VertexUint8x4Norm:
		return wgpu.VertexFormatUnorm8x4
	default:
		panic(fmt.Sprintf("unhandled vertex format %d", f))
	}
}

func topologyToWGPU(t renderer.PrimitiveTopology) wgpu.PrimitiveTopology {
	switch t {
	case renderer.TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case renderer.TopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func cullModeToWGPU(c renderer.CullMode) wgpu.CullMode {
	switch c {
	case renderer.CullBack:
		return wgpu.CullModeBack
	case renderer.CullFront:
		return wgpu.CullModeFront
	default:
		return wgpu.CullModeNone
	}
}

// CreateComputePipeline builds a compute pipeline from a shader's
// compute entry point.
func (m *Resources) CreateComputePipeline(name string, shader renderer.ShaderID) (renderer.PipelineID, error) {
	res := &pipelineResource{name: name, shader: shader, compute: true}
	if err := m.instantiateComputePipeline(res); err != nil {
		return 0, err
	}
	id := renderer.PipelineID(m.id())
	m.pipelines[id] = res
	m.order = append(m.order, resourceRef{kindPipeline, uint32(id)})
	return id, nil
}

func (m *Resources) instantiateComputePipeline(res *pipelineResource) error {
	sh, ok := m.shaders[res.shader]
	if !ok {
		return fmt.Errorf("pipeline %q: shader %d: %w", res.name, res.shader, ErrUnknownHandle)
	}
	if sh.info.ComputeEntry == "" {
		return fmt.Errorf("pipeline %q: shader %q has no compute entry point", res.name, sh.name)
	}
	layout := m.dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            res.name + " layout",
		BindGroupLayouts: sh.layouts,
	})
	defer layout.Release()
	res.cpl = m.dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  res.name,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     sh.module,
			EntryPoint: sh.info.ComputeEntry,
		},
	})
	return nil
}

func (m *Resources) buffer(id renderer.BufferID) (*bufferResource, error) {
	res, ok := m.buffers[id]
	if !ok {
		return nil, fmt.Errorf("buffer %d: %w", id, ErrUnknownHandle)
	}
	return res, nil
}

func (m *Resources) framebuffer(id renderer.FramebufferID) (*framebufferResource, error) {
	res, ok := m.framebuffers[id]
	if !ok {
		return nil, fmt.Errorf("framebuffer %d: %w", id, ErrUnknownHandle)
	}
	return res, nil
}

func (m *Resources) bindGroup(id renderer.BindGroupID) (*bindGroupResource, error) {
	res, ok := m.bindGroups[id]
	if !ok {
		return nil, fmt.Errorf("bind group %d: %w", id, ErrUnknownHandle)
	}
	return res, nil
}

func (m *Resources) pipeline(id renderer.PipelineID) (*pipelineResource, error) {
	res, ok := m.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("pipeline %d: %w", id, ErrUnknownHandle)
	}
	return res, nil
}

func (m *Resources) dropRef(ref resourceRef) {
	for i, r := range m.order {
		if r == ref {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// Dispose releases every live resource. Pooled buffers are removed
// from tracking before going back to the pool, so no buffer can be
// released twice; the pool itself is cleared last.
func (m *Resources) Dispose() {
	for id, res := range m.buffers {
		delete(m.buffers, id)
		m.vram.Deallocate(vramKey("buffer", uint32(id), res.name))
		if res.pooled {
			m.pool.Release(res.usage, res.size, res.buf)
		} else {
			res.buf.Release()
		}
	}
	for id, res := range m.textures {
		delete(m.textures, id)
		m.vram.Deallocate(vramKey("texture", uint32(id), res.name))
		res.view.Release()
		res.texture.Release()
	}
	for id, res := range m.samplers {
		delete(m.samplers, id)
		res.sampler.Release()
	}
	for id, res := range m.bindGroups {
		delete(m.bindGroups, id)
		res.bg.Release()
	}
	for id, res := range m.pipelines {
		delete(m.pipelines, id)
		if res.compute {
			res.cpl.Release()
		} else {
			res.render.Release()
		}
	}
	for id, res := range m.shaders {
		delete(m.shaders, id)
		for _, l := range res.layouts {
			l.Release()
		}
		res.module.Release()
	}
	clear(m.framebuffers)
	m.order = m.order[:0]
	m.pool.Clear()
}

// replay rebuilds every device-side object on a fresh device, keeping
// all handles valid. Pooled buffer contents are not restored; dynamic
// buffers are rewritten each frame by their owners.
func (m *Resources) replay(dev *wgpu.Device, queue *wgpu.Queue) error {
	m.dev = dev
	m.queue = queue
	m.pool.Reset()
	for _, ref := range m.order {
		switch ref.kind {
		case kindShader:
			m.instantiateShader(m.shaders[renderer.ShaderID(ref.id)])
		case kindBuffer:
			res := m.buffers[renderer.BufferID(ref.id)]
			if res.pooled {
				buf, _, err := m.pool.Acquire(res.usage, res.size)
				if err != nil {
					return fmt.Errorf("replay buffer %q: %w", res.name, err)
				}
				res.buf = buf
			} else {
				res.buf = m.dev.CreateBuffer(&wgpu.BufferDescriptor{
					Label: res.name,
					Size:  res.size,
					Usage: bufferUsageFlags(res.usage),
				})
				if len(res.data) > 0 {
					m.queue.WriteBuffer(res.buf, 0, res.data)
				}
			}
		case kindTexture:
			m.instantiateTexture(m.textures[renderer.TextureID(ref.id)])
		case kindFramebuffer:
			// Framebuffers hold no device objects.
		case kindSampler:
			m.instantiateSampler(m.samplers[renderer.SamplerID(ref.id)])
		case kindBindGroup:
			res := m.bindGroups[renderer.BindGroupID(ref.id)]
			if err := m.instantiateBindGroup(res); err != nil {
				return fmt.Errorf("replay: %w", err)
			}
		case kindPipeline:
			res := m.pipelines[renderer.PipelineID(ref.id)]
			var err error
			if res.compute {
				err = m.instantiateComputePipeline(res)
			} else {
				err = m.instantiateRenderPipeline(res)
			}
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
		}
	}
	return nil
}

func vramKey(kind string, id uint32, name string) string {
	return fmt.Sprintf("%s:%d:%s", kind, id, name)
}
