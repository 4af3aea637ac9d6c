// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package rmath implements the 4x4 matrix and vector math used by the
// renderer and the transform system. Matrices are column-major, matching the
// memory layout WGSL expects for mat4x4<f32> uniforms.
package rmath

import "math"

const Epsilon = 1e-5

func Abs32(f float32) float32 {
	return float32(math.Abs(float64(f)))
}

func Sin32(f float32) float32 { return float32(math.Sin(float64(f))) }
func Cos32(f float32) float32 { return float32(math.Cos(float64(f))) }
func Tan32(f float32) float32 { return float32(math.Tan(float64(f))) }

type Vec3 [3]float32

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

func (v Vec3) Scale(s float32) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }

func (v Vec3) Dot(o Vec3) float32 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalize returns the unit vector pointing in v's direction. The zero
// vector normalizes to itself.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l < Epsilon {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

type Vec4 [4]float32

// Mat4 is a 4x4 matrix stored column-major: element (row, col) lives at
// m[col*4+row].
type Mat4 [16]float32

func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * o[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

func (m Mat4) MulVec4(v Vec4) Vec4 {
	var out Vec4
	for row := 0; row < 4; row++ {
		out[row] = m[0*4+row]*v[0] + m[1*4+row]*v[1] + m[2*4+row]*v[2] + m[3*4+row]*v[3]
	}
	return out
}

func (m Mat4) Transpose() Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			out[row*4+col] = m[col*4+row]
		}
	}
	return out
}

// Invert returns the inverse of m. The second return value is false when m is
// singular within Epsilon, for example a TRS matrix with a zero scale; the
// returned matrix is the zero matrix in that case.
func (m Mat4) Invert() (Mat4, bool) {
	a00, a01, a02, a03 := m[0], m[1], m[2], m[3]
	a10, a11, a12, a13 := m[4], m[5], m[6], m[7]
	a20, a21, a22, a23 := m[8], m[9], m[10], m[11]
	a30, a31, a32, a33 := m[12], m[13], m[14], m[15]

	b00 := a00*a11 - a01*a10
	b01 := a00*a12 - a02*a10
	b02 := a00*a13 - a03*a10
	b03 := a01*a12 - a02*a11
	b04 := a01*a13 - a03*a11
	b05 := a02*a13 - a03*a12
	b06 := a20*a31 - a21*a30
	b07 := a20*a32 - a22*a30
	b08 := a20*a33 - a23*a30
	b09 := a21*a32 - a22*a31
	b10 := a21*a33 - a23*a31
	b11 := a22*a33 - a23*a32

	det := b00*b11 - b01*b10 + b02*b09 + b03*b08 - b04*b07 + b05*b06
	if Abs32(det) < Epsilon {
		return Mat4{}, false
	}
	inv := 1 / det

	return Mat4{
		(a11*b11 - a12*b10 + a13*b09) * inv,
		(a02*b10 - a01*b11 - a03*b09) * inv,
		(a31*b05 - a32*b04 + a33*b03) * inv,
		(a22*b04 - a21*b05 - a23*b03) * inv,
		(a12*b08 - a10*b11 - a13*b07) * inv,
		(a00*b11 - a02*b08 + a03*b07) * inv,
		(a32*b02 - a30*b05 - a33*b01) * inv,
		(a20*b05 - a22*b02 + a23*b01) * inv,
		(a10*b10 - a11*b08 + a13*b06) * inv,
		(a01*b08 - a00*b10 - a03*b06) * inv,
		(a30*b04 - a31*b02 + a33*b00) * inv,
		(a21*b02 - a20*b04 - a23*b00) * inv,
		(a11*b07 - a10*b09 - a12*b06) * inv,
		(a00*b09 - a01*b07 + a02*b06) * inv,
		(a31*b01 - a30*b03 - a32*b00) * inv,
		(a20*b03 - a21*b01 + a22*b00) * inv,
	}, true
}

func Translate(v Vec3) Mat4 {
	out := Identity()
	out[12] = v[0]
	out[13] = v[1]
	out[14] = v[2]
	return out
}

func Scale(v Vec3) Mat4 {
	var out Mat4
	out[0] = v[0]
	out[5] = v[1]
	out[10] = v[2]
	out[15] = 1
	return out
}

func RotateX(angle float32) Mat4 {
	s, c := Sin32(angle), Cos32(angle)
	out := Identity()
	out[5] = c
	out[6] = s
	out[9] = -s
	out[10] = c
	return out
}

func RotateY(angle float32) Mat4 {
	s, c := Sin32(angle), Cos32(angle)
	out := Identity()
	out[0] = c
	out[2] = -s
	out[8] = s
	out[10] = c
	return out
}

func RotateZ(angle float32) Mat4 {
	s, c := Sin32(angle), Cos32(angle)
	out := Identity()
	out[0] = c
	out[1] = s
	out[4] = -s
	out[5] = c
	return out
}

// TRS composes translation, rotation (XYZ Euler angles in radians, applied
// Z then Y then X) and scale into a single model matrix.
func TRS(translation, rotation, scale Vec3) Mat4 {
	m := Translate(translation)
	m = m.Mul(RotateX(rotation[0]))
	m = m.Mul(RotateY(rotation[1]))
	m = m.Mul(RotateZ(rotation[2]))
	return m.Mul(Scale(scale))
}

// Perspective returns a right-handed perspective projection with a [0, 1]
// clip-space depth range, as used by WebGPU.
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1 / Tan32(fovY/2)
	nf := 1 / (near - far)
	var out Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far * nf
	out[11] = -1
	out[14] = far * near * nf
	return out
}

// Orthographic returns a right-handed orthographic projection with a [0, 1]
// clip-space depth range.
func Orthographic(left, right, bottom, top, near, far float32) Mat4 {
	var out Mat4
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = 1 / (near - far)
	out[12] = (left + right) / (left - right)
	out[13] = (top + bottom) / (bottom - top)
	out[14] = near / (near - far)
	out[15] = 1
	return out
}

// LookAt returns a view matrix for a camera at eye looking at center.
func LookAt(eye, center, up Vec3) Mat4 {
	f := center.Sub(eye).Normalize()
	s := f.Cross(up).Normalize()
	u := s.Cross(f)

	return Mat4{
		s[0], u[0], -f[0], 0,
		s[1], u[1], -f[1], 0,
		s[2], u[2], -f[2], 0,
		-s.Dot(eye), -u.Dot(eye), f.Dot(eye), 1,
	}
}
