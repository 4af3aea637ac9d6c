// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"strings"
	"testing"
)

func TestVRAMBudgetEnforcement(t *testing.T) {
	p := NewVRAMProfiler(1000)
	p.SetBudget(CategoryTexture, 100)

	if !p.Allocate("texture:1:a", CategoryTexture, 60) {
		t.Fatal("allocation within budget was rejected")
	}
	if p.Allocate("texture:2:b", CategoryTexture, 60) {
		t.Error("allocation past the category budget was accepted")
	}
	if got := p.Stats().Categories[CategoryTexture].Used; got != 60 {
		t.Errorf("failed allocation changed recorded usage: got %d, want 60", got)
	}
	if !p.Allocate("texture:2:b", CategoryTexture, 40) {
		t.Error("allocation exactly at the category budget was rejected")
	}
}

func TestVRAMTotalBudget(t *testing.T) {
	p := NewVRAMProfiler(100)
	p.SetBudget(CategoryVertex, 100)
	p.SetBudget(CategoryIndex, 100)

	if !p.Allocate("buffer:1:v", CategoryVertex, 80) {
		t.Fatal("allocation within budget was rejected")
	}
	// Fits its category but not the total.
	if p.Allocate("buffer:2:i", CategoryIndex, 40) {
		t.Error("allocation past the total budget was accepted")
	}
}

func TestVRAMDuplicateID(t *testing.T) {
	p := NewVRAMProfiler(1000)
	if !p.Allocate("buffer:1:a", CategoryVertex, 10) {
		t.Fatal("allocation was rejected")
	}
	if p.Allocate("buffer:1:a", CategoryVertex, 10) {
		t.Error("duplicate ID was accepted")
	}
	if got := p.Stats().Used; got != 10 {
		t.Errorf("got %d bytes used, want 10", got)
	}
}

func TestVRAMDeallocate(t *testing.T) {
	p := NewVRAMProfiler(1000)
	p.Allocate("texture:1:a", CategoryTexture, 100)
	p.Deallocate("texture:1:a")
	if got := p.Stats().Used; got != 0 {
		t.Errorf("got %d bytes used after deallocate, want 0", got)
	}
	// Idempotent, and the ID is free for reuse.
	p.Deallocate("texture:1:a")
	if !p.Allocate("texture:1:a", CategoryTexture, 50) {
		t.Error("could not reuse ID after deallocation")
	}
	if got := p.Stats().Used; got != 50 {
		t.Errorf("got %d bytes used, want 50", got)
	}
}

func TestVRAMResize(t *testing.T) {
	p := NewVRAMProfiler(1000)
	p.SetBudget(CategoryVertex, 100)
	p.Allocate("buffer:1:v", CategoryVertex, 40)

	if !p.Resize("buffer:1:v", 80) {
		t.Fatal("resize within budget was rejected")
	}
	if got := p.Stats().Categories[CategoryVertex].Used; got != 80 {
		t.Errorf("got %d bytes used after resize, want 80", got)
	}
	if p.Resize("buffer:1:v", 120) {
		t.Error("resize past the category budget was accepted")
	}
	if got := p.Stats().Categories[CategoryVertex].Used; got != 80 {
		t.Errorf("failed resize changed recorded usage: got %d, want 80", got)
	}
	if p.Resize("buffer:2:unknown", 10) {
		t.Error("resize of unknown allocation was accepted")
	}
}

func TestVRAMPressureWarnings(t *testing.T) {
	p := NewVRAMProfiler(1000)
	p.SetBudget(CategoryTexture, 100)

	p.Allocate("texture:1:a", CategoryTexture, 85)
	warnings := p.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "nearing budget") {
		t.Errorf("expected a nearing-budget warning, got %q", warnings)
	}
	if len(p.Warnings()) != 0 {
		t.Error("Warnings did not drain")
	}

	p.Allocate("texture:2:b", CategoryTexture, 11)
	warnings = p.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "of budget") {
		t.Errorf("expected an at-budget warning, got %q", warnings)
	}
}

func TestVRAMStats(t *testing.T) {
	p := NewVRAMProfiler(1 << 20)
	p.Allocate("texture:1:a", CategoryTexture, 1024)
	p.Allocate("buffer:2:v", CategoryVertex, 512)

	s := p.Stats()
	if s.Count != 2 {
		t.Errorf("got %d allocations, want 2", s.Count)
	}
	if s.Used != 1536 {
		t.Errorf("got %d bytes used, want 1536", s.Used)
	}
	if s.OverBudget() {
		t.Error("stats report over budget at low usage")
	}
	if !strings.Contains(s.String(), "2 allocations") {
		t.Errorf("unexpected stats string %q", s.String())
	}

	// A full category is pressure, not over-budget; only total use past
	// the total budget flips the flag.
	p.SetBudget(CategoryVertex, 512)
	if p.Stats().OverBudget() {
		t.Error("stats report over budget while total use is within the total budget")
	}
	if !(VRAMStats{Used: 2048, Budget: 1024}).OverBudget() {
		t.Error("stats do not report over budget when total use exceeds the total budget")
	}
}
