// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"errors"
	"testing"
)

const testShader = `
struct VertexInput {
	@location(0) position: vec3<f32>,
	@location(1) uv: vec2<f32>,
}

struct Uniforms {
	mvp: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> uniforms: Uniforms;
@group(0) @binding(1) var color_map: texture_2d<f32>;
@group(0) @binding(2) var color_sampler: sampler;
@group(1) @binding(0) var<storage, read> instances: array<mat4x4<f32>>;

@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4<f32> {
	return uniforms.mvp * vec4(in.position, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
	return vec4(1.0);
}
`

func TestReflectEntryPoints(t *testing.T) {
	info, err := NewReflectionCache().Reflect(testShader)
	if err != nil {
		t.Fatal(err)
	}
	if info.VertexEntry != "vs_main" {
		t.Errorf("got vertex entry %q, want vs_main", info.VertexEntry)
	}
	if info.FragmentEntry != "fs_main" {
		t.Errorf("got fragment entry %q, want fs_main", info.FragmentEntry)
	}
	if info.ComputeEntry != "" {
		t.Errorf("got unexpected compute entry %q", info.ComputeEntry)
	}
}

func TestReflectBindings(t *testing.T) {
	info, err := NewReflectionCache().Reflect(testShader)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Bindings) != 4 {
		t.Fatalf("got %d bindings, want 4", len(info.Bindings))
	}
	if info.MaxGroup() != 1 {
		t.Errorf("got max group %d, want 1", info.MaxGroup())
	}

	b := info.Bindings[0]
	if b.Group != 0 || b.Binding != 0 || b.Name != "uniforms" || b.AddressSpace != "uniform" {
		t.Errorf("unexpected first binding %+v", b)
	}
	b = info.Bindings[1]
	if b.Type != "texture_2d<f32>" {
		t.Errorf("got binding type %q, want texture_2d<f32>", b.Type)
	}
	b = info.Bindings[3]
	if b.Group != 1 || b.AddressSpace != "storage, read" {
		t.Errorf("unexpected storage binding %+v", b)
	}
	if len(info.Warnings) != 0 {
		t.Errorf("unexpected warnings %q", info.Warnings)
	}
}

func TestReflectAttributes(t *testing.T) {
	info, err := NewReflectionCache().Reflect(testShader)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Attributes) != 2 {
		t.Fatalf("got %d attributes, want 2", len(info.Attributes))
	}
	if info.Attributes[0].Name != "position" || info.Attributes[0].Location != 0 {
		t.Errorf("unexpected attribute %+v", info.Attributes[0])
	}
	if info.Attributes[1].Name != "uv" || info.Attributes[1].Type != "vec2<f32>" {
		t.Errorf("unexpected attribute %+v", info.Attributes[1])
	}
}

func TestReflectDirectParameterAttributes(t *testing.T) {
	const src = `
@vertex
fn vs_main(@location(0) pos: vec3<f32>, @location(1) uv: vec2<f32>, @builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
	return vec4(pos, 1.0);
}
`
	info, err := NewReflectionCache().Reflect(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Attributes) != 2 {
		t.Fatalf("got attributes %+v, want pos and uv", info.Attributes)
	}
	if info.Attributes[0].Name != "pos" || info.Attributes[0].Location != 0 || info.Attributes[0].Type != "vec3<f32>" {
		t.Errorf("unexpected attribute %+v", info.Attributes[0])
	}
	if info.Attributes[1].Name != "uv" || info.Attributes[1].Location != 1 {
		t.Errorf("unexpected attribute %+v", info.Attributes[1])
	}
	if len(info.Warnings) != 0 {
		t.Errorf("unexpected warnings %q", info.Warnings)
	}
}

func TestReflectCompute(t *testing.T) {
	const src = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(64, 1, 1)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
	data[id.x] = data[id.x] * 2u;
}
`
	info, err := NewReflectionCache().Reflect(src)
	if err != nil {
		t.Fatal(err)
	}
	if info.ComputeEntry != "cs_main" {
		t.Errorf("got compute entry %q, want cs_main", info.ComputeEntry)
	}
	if info.WorkgroupSize != [3]uint32{64, 1, 1} {
		t.Errorf("got workgroup size %v, want [64 1 1]", info.WorkgroupSize)
	}
	if info.Bindings[0].AddressSpace != "storage, read_write" {
		t.Errorf("unexpected address space %q", info.Bindings[0].AddressSpace)
	}
}

func TestReflectNoEntryPoint(t *testing.T) {
	_, err := NewReflectionCache().Reflect(`var<uniform> x: f32;`)
	if !errors.Is(err, ErrNoEntryPoint) {
		t.Errorf("got %v, want ErrNoEntryPoint", err)
	}
}

func TestReflectNonContiguousWarnings(t *testing.T) {
	const src = `
@group(0) @binding(0) var<uniform> a: f32;
@group(0) @binding(2) var<uniform> b: f32;

@vertex
fn vs_main(@location(1) position: vec3<f32>) -> @builtin(position) vec4<f32> {
	return vec4(position, 1.0);
}
`
	info, err := NewReflectionCache().Reflect(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Warnings) != 2 {
		t.Errorf("got warnings %q, want one for bindings and one for attributes", info.Warnings)
	}
}

func TestReflectIgnoresComments(t *testing.T) {
	const src = `
// @group(7) @binding(9) var<uniform> ghost: f32;
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return vec4(0.0); }
`
	info, err := NewReflectionCache().Reflect(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Bindings) != 0 {
		t.Errorf("reflected bindings out of a comment: %+v", info.Bindings)
	}
}

func TestReflectionCache(t *testing.T) {
	c := NewReflectionCache()
	first, err := c.Reflect(testShader)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Reflect(testShader)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("cache returned a different instance for identical source")
	}
	hits, misses := c.CacheStats()
	if hits != 1 || misses != 1 {
		t.Errorf("got %d hits and %d misses, want 1 and 1", hits, misses)
	}
}
