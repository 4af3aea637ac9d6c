// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"fmt"
	"strings"

	"honnef.co/go/retro/mem"
)

// VRAMCategory groups GPU allocations by what they're used for. Each
// category carries its own budget so that one resource class (say,
// textures) can't starve the others.
type VRAMCategory int

const (
	CategoryTexture VRAMCategory = iota
	CategoryRenderTarget
	CategoryVertex
	CategoryIndex
	CategoryUniform
	CategoryStorage

	numVRAMCategories
)

func (c VRAMCategory) String() string {
	switch c {
	case CategoryTexture:
		return "texture"
	case CategoryRenderTarget:
		return "render target"
	case CategoryVertex:
		return "vertex"
	case CategoryIndex:
		return "index"
	case CategoryUniform:
		return "uniform"
	case CategoryStorage:
		return "storage"
	default:
		return fmt.Sprintf("VRAMCategory(%d)", int(c))
	}
}

// Fractions of the total budget assigned to each category when the
// user doesn't override them. They sum to 1.
var defaultBudgetSplit = [numVRAMCategories]float64{
	CategoryTexture:      0.35,
	CategoryRenderTarget: 0.25,
	CategoryVertex:       0.15,
	CategoryIndex:        0.10,
	CategoryUniform:      0.05,
	CategoryStorage:      0.10,
}

const (
	vramWarnFraction  = 0.80
	vramErrorFraction = 0.95
)

type vramAllocation struct {
	category VRAMCategory
	size     uint64
}

// VRAMProfiler tracks every GPU allocation the engine makes, enforces
// per-category budgets, and reports usage. It sees sizes as the engine
// requested them; actual driver-side padding is invisible to us and
// deliberately not estimated.
//
// Allocations are keyed by a caller-chosen ID, usually
// "kind:resource-name". The profiler never talks to the GPU.
type VRAMProfiler struct {
	arena    *mem.Arena
	budgets  [numVRAMCategories]uint64
	used     [numVRAMCategories]uint64
	total    uint64
	allocs   mem.BinaryTreeMap[string, vramAllocation]
	count    int
	warnings []string
}

func NewVRAMProfiler(totalBudget uint64) *VRAMProfiler {
	p := &VRAMProfiler{
		arena: mem.NewArena(),
		total: totalBudget,
	}
	for c := VRAMCategory(0); c < numVRAMCategories; c++ {
		p.budgets[c] = uint64(float64(totalBudget) * defaultBudgetSplit[c])
	}
	return p
}

// SetBudget overrides the budget for a single category. It does not
// rebalance the others; the sum of category budgets may then exceed or
// undershoot the total, which still caps overall usage.
func (p *VRAMProfiler) SetBudget(category VRAMCategory, bytes uint64) {
	p.budgets[category] = bytes
}

// Allocate records an allocation of size bytes under id. It reports
// false, without recording anything, when the ID is already live or
// when the allocation would exceed the category's or the total budget.
func (p *VRAMProfiler) Allocate(id string, category VRAMCategory, size uint64) bool {
	if _, ok := p.allocs.Get(id); ok {
		p.warnf("duplicate allocation %q", id)
		return false
	}
	if !p.fits(category, size) {
		return false
	}
	p.allocs.Insert(p.arena, id, vramAllocation{category, size})
	p.used[category] += size
	p.count++
	p.checkPressure(category)
	return true
}

// Deallocate releases the allocation recorded under id. Unknown IDs
// are ignored, which makes release paths idempotent.
func (p *VRAMProfiler) Deallocate(id string) {
	a, ok := p.allocs.Get(id)
	if !ok {
		return
	}
	p.allocs.Delete(id)
	p.used[a.category] -= a.size
	p.count--
}

// Resize adjusts a live allocation to a new size, subject to the same
// budget checks as Allocate. On failure the old size remains recorded.
func (p *VRAMProfiler) Resize(id string, size uint64) bool {
	a, ok := p.allocs.Get(id)
	if !ok {
		p.warnf("resize of unknown allocation %q", id)
		return false
	}
	if size > a.size && !p.fits(a.category, size-a.size) {
		return false
	}
	p.used[a.category] += size
	p.used[a.category] -= a.size
	p.allocs.Insert(p.arena, id, vramAllocation{a.category, size})
	if size > a.size {
		p.checkPressure(a.category)
	}
	return true
}

func (p *VRAMProfiler) fits(category VRAMCategory, extra uint64) bool {
	if p.used[category]+extra > p.budgets[category] {
		return false
	}
	return p.totalUsed()+extra <= p.total
}

func (p *VRAMProfiler) totalUsed() uint64 {
	var n uint64
	for _, u := range p.used {
		n += u
	}
	return n
}

func (p *VRAMProfiler) checkPressure(category VRAMCategory) {
	budget := p.budgets[category]
	if budget == 0 {
		return
	}
	frac := float64(p.used[category]) / float64(budget)
	switch {
	case frac >= vramErrorFraction:
		p.warnf("%s memory at %.0f%% of budget (%d of %d bytes)",
			category, frac*100, p.used[category], budget)
	case frac >= vramWarnFraction:
		p.warnf("%s memory nearing budget (%d of %d bytes)",
			category, p.used[category], budget)
	}
}

func (p *VRAMProfiler) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

// Warnings returns and clears accumulated warnings. A nil profiler
// has none.
func (p *VRAMProfiler) Warnings() []string {
	if p == nil {
		return nil
	}
	w := p.warnings
	p.warnings = nil
	return w
}

type VRAMCategoryStats struct {
	Used   uint64
	Budget uint64
}

type VRAMStats struct {
	Used       uint64
	Budget     uint64
	Count      int
	Categories [numVRAMCategories]VRAMCategoryStats
}

// OverBudget reports whether total use exceeds the total budget.
// Pressure short of that shows up in the profiler's warnings instead.
func (s VRAMStats) OverBudget() bool {
	return s.Used > s.Budget
}

func (s VRAMStats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "VRAM: %d allocations, %s of %s used",
		s.Count, formatBytes(s.Used), formatBytes(s.Budget))
	for c := VRAMCategory(0); c < numVRAMCategories; c++ {
		cs := s.Categories[c]
		if cs.Used == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n  %-13s %s of %s", c, formatBytes(cs.Used), formatBytes(cs.Budget))
	}
	return sb.String()
}

func (p *VRAMProfiler) Stats() VRAMStats {
	s := VRAMStats{
		Used:   p.totalUsed(),
		Budget: p.total,
		Count:  p.count,
	}
	for c := VRAMCategory(0); c < numVRAMCategories; c++ {
		s.Categories[c] = VRAMCategoryStats{Used: p.used[c], Budget: p.budgets[c]}
	}
	return s
}

func formatBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
