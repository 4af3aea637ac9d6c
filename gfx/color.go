// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package gfx provides color conversions between the color management layer
// and the raw values the GPU backend consumes.
package gfx

import "honnef.co/go/color"

// Linear4 converts c to linear sRGB and returns straight-alpha RGBA
// components, the form render-pass clear values take.
func Linear4(c *color.Color) [4]float64 {
	cc := c.Convert(color.LinearSRGB)
	return [4]float64{
		cc.Values[0],
		cc.Values[1],
		cc.Values[2],
		cc.Values[3],
	}
}

// Premul32 converts c to linear sRGB with premultiplied alpha, packed as
// float32 for upload into uniform data.
func Premul32(c *color.Color) [4]float32 {
	cc := c.Convert(color.LinearSRGB)
	a := cc.Values[3]
	return [4]float32{
		float32(cc.Values[0] * a),
		float32(cc.Values[1] * a),
		float32(cc.Values[2] * a),
		float32(a),
	}
}
