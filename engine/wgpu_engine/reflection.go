// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrNoEntryPoint is returned when a shader declares no @vertex,
// @fragment, or @compute function at all.
var ErrNoEntryPoint = errors.New("shader has no entry points")

// ShaderBinding describes one @group/@binding declaration in a shader.
type ShaderBinding struct {
	Group   uint32
	Binding uint32
	Name    string
	// Type is the declared WGSL type, e.g. "texture_2d<f32>".
	Type string
	// AddressSpace is the var template, e.g. "uniform" or
	// "storage, read_write". Empty for handle types like textures and
	// samplers.
	AddressSpace string
}

// ShaderAttribute describes one @location input of the vertex entry
// point.
type ShaderAttribute struct {
	Location uint32
	Name     string
	Type     string
}

// ShaderInfo is the reflected interface of a WGSL module. The engine
// derives bind group layouts and vertex layouts from it instead of
// requiring callers to restate what the shader already says.
type ShaderInfo struct {
	VertexEntry   string
	FragmentEntry string
	ComputeEntry  string
	// WorkgroupSize is only meaningful when ComputeEntry is set.
	// Unspecified dimensions default to 1.
	WorkgroupSize [3]uint32

	Bindings   []ShaderBinding
	Attributes []ShaderAttribute

	// Warnings records suspicious but survivable findings, like
	// non-contiguous binding indices.
	Warnings []string
}

// MaxGroup returns the highest bind group index used, or -1 when the
// shader has no bindings.
func (info *ShaderInfo) MaxGroup() int {
	max := -1
	for _, b := range info.Bindings {
		if int(b.Group) > max {
			max = int(b.Group)
		}
	}
	return max
}

// GroupBindings returns the bindings of one group, ordered by binding
// index.
func (info *ShaderInfo) GroupBindings(group uint32) []ShaderBinding {
	var out []ShaderBinding
	for _, b := range info.Bindings {
		if b.Group == group {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b ShaderBinding) int { return int(a.Binding) - int(b.Binding) })
	return out
}

// WGSL has a small, rigid annotation grammar, so regular expressions
// are enough here. A full parser would only pay off once we care about
// struct layouts, which we get from the pipeline descriptors instead.
var (
	reShaderBinding = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+);`)
	// The parameter list may itself contain parentheses, from
	// annotations like @location(1) or @builtin(vertex_index), so the
	// capture allows one level of nesting.
	reVertexEntry   = regexp.MustCompile(`@vertex\s+fn\s+(\w+)\s*\(((?:[^()]|\([^()]*\))*)\)`)
	reFragmentEntry = regexp.MustCompile(`@fragment\s+fn\s+(\w+)`)
	reComputeEntry  = regexp.MustCompile(`@compute\s*(@workgroup_size\(([^)]*)\))?\s*fn\s+(\w+)`)
	reAttribute     = regexp.MustCompile(`@location\((\d+)\)\s+(\w+)\s*:\s*(\w+(?:<[^>]+>)?)`)
	reLineComment   = regexp.MustCompile(`//[^\n]*`)
)

// ReflectionCache parses WGSL sources and caches the result by content
// hash, so recompiling the same shader across device recoveries or hot
// reloads is free.
type ReflectionCache struct {
	entries map[uint64]*ShaderInfo
	hits    uint64
	misses  uint64
}

func NewReflectionCache() *ReflectionCache {
	return &ReflectionCache{entries: map[uint64]*ShaderInfo{}}
}

// Reflect returns the reflected interface of source. The returned info
// is shared and must not be mutated by the caller.
func (c *ReflectionCache) Reflect(source string) (*ShaderInfo, error) {
	h := fnv.New64a()
	h.Write([]byte(source))
	key := h.Sum64()
	if info, ok := c.entries[key]; ok {
		c.hits++
		return info, nil
	}
	info, err := reflectWGSL(source)
	if err != nil {
		return nil, err
	}
	c.misses++
	c.entries[key] = info
	return info, nil
}

// CacheStats reports hits and misses since creation.
func (c *ReflectionCache) CacheStats() (hits, misses uint64) {
	return c.hits, c.misses
}

func reflectWGSL(source string) (*ShaderInfo, error) {
	// Comments may legally contain annotation-shaped text.
	source = reLineComment.ReplaceAllString(source, "")

	info := &ShaderInfo{WorkgroupSize: [3]uint32{1, 1, 1}}

	if m := reVertexEntry.FindStringSubmatch(source); m != nil {
		info.VertexEntry = m[1]
		info.Attributes = vertexAttributes(source, m[2])
	}
	if m := reFragmentEntry.FindStringSubmatch(source); m != nil {
		info.FragmentEntry = m[1]
	}
	if m := reComputeEntry.FindStringSubmatch(source); m != nil {
		info.ComputeEntry = m[3]
		if m[2] != "" {
			for i, dim := range strings.Split(m[2], ",") {
				if i >= 3 {
					break
				}
				info.WorkgroupSize[i] = parseU32(strings.TrimSpace(dim))
			}
		}
	}
	if info.VertexEntry == "" && info.FragmentEntry == "" && info.ComputeEntry == "" {
		return nil, ErrNoEntryPoint
	}

	for _, m := range reShaderBinding.FindAllStringSubmatch(source, -1) {
		info.Bindings = append(info.Bindings, ShaderBinding{
			Group:        parseU32(m[1]),
			Binding:      parseU32(m[2]),
			AddressSpace: strings.TrimSpace(m[3]),
			Name:         m[4],
			Type:         strings.TrimSpace(m[5]),
		})
	}
	slices.SortFunc(info.Bindings, func(a, b ShaderBinding) int {
		if a.Group != b.Group {
			return int(a.Group) - int(b.Group)
		}
		return int(a.Binding) - int(b.Binding)
	})

	checkContiguous(info)
	return info, nil
}

// vertexAttributes extracts @location inputs from a vertex entry
// point's parameter list. A parameter without @location is assumed to
// name an input struct, whose fields are scanned instead.
func vertexAttributes(source, params string) []ShaderAttribute {
	var out []ShaderAttribute
	seen := map[uint32]bool{}
	add := func(text string) {
		for _, m := range reAttribute.FindAllStringSubmatch(text, -1) {
			loc := parseU32(m[1])
			if seen[loc] {
				continue
			}
			seen[loc] = true
			out = append(out, ShaderAttribute{
				Location: loc,
				Name:     m[2],
				Type:     strings.TrimSpace(m[3]),
			})
		}
	}
	add(params)
	for _, param := range strings.Split(params, ",") {
		if strings.Contains(param, "@") {
			continue
		}
		_, typ, ok := strings.Cut(param, ":")
		if !ok {
			continue
		}
		reStruct := regexp.MustCompile(`struct\s+` + regexp.QuoteMeta(strings.TrimSpace(typ)) + `\s*\{([^}]*)\}`)
		if sm := reStruct.FindStringSubmatch(source); sm != nil {
			add(sm[1])
		}
	}
	slices.SortFunc(out, func(a, b ShaderAttribute) int { return int(a.Location) - int(b.Location) })
	return out
}

func checkContiguous(info *ShaderInfo) {
	for group := uint32(0); int(group) <= info.MaxGroup(); group++ {
		bindings := info.GroupBindings(group)
		for i, b := range bindings {
			if b.Binding != uint32(i) {
				info.Warnings = append(info.Warnings,
					fmt.Sprintf("group %d bindings are not contiguous from 0 (found @binding(%d) at position %d)",
						group, b.Binding, i))
				break
			}
		}
	}
	for i, a := range info.Attributes {
		if a.Location != uint32(i) {
			info.Warnings = append(info.Warnings,
				fmt.Sprintf("vertex attributes are not contiguous from 0 (found @location(%d) at position %d)",
					a.Location, i))
			break
		}
	}
}

func parseU32(s string) uint32 {
	n, _ := strconv.ParseUint(s, 10, 32)
	return uint32(n)
}
