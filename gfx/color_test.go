// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx_test

import (
	"testing"

	"honnef.co/go/color"
	"honnef.co/go/retro/gfx"
)

func TestLinear4CarriesAlpha(t *testing.T) {
	c := color.Make(color.LinearSRGB, 0.25, 0.5, 1, 0.75)
	got := gfx.Linear4(&c)
	want := [4]float64{0.25, 0.5, 1, 0.75}
	if got != want {
		t.Errorf("Linear4 = %v, want %v", got, want)
	}
}

func TestPremul32MultipliesAlpha(t *testing.T) {
	c := color.Make(color.LinearSRGB, 1, 0.5, 0, 0.5)
	got := gfx.Premul32(&c)
	want := [4]float32{0.5, 0.25, 0, 0.5}
	if got != want {
		t.Errorf("Premul32 = %v, want %v", got, want)
	}
}
