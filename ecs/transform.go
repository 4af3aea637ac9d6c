// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ecs

import "honnef.co/go/retro/rmath"

// Position is an entity's translation in world units.
type Position struct {
	X, Y, Z float32
}

// Rotation is an entity's orientation as XYZ Euler angles in radians.
type Rotation struct {
	X, Y, Z float32
}

// Scale is an entity's per-axis scale factor.
type Scale struct {
	X, Y, Z float32
}

// LocalToWorld holds the model matrix composed by the TransformSystem.
type LocalToWorld struct {
	Matrix rmath.Mat4
}

// Camera describes a perspective projection. Combined with Position and
// Rotation it yields the view-projection matrix for a frame.
type Camera struct {
	FovY   float32
	Aspect float32
	Near   float32
	Far    float32
}

// TransformSystem composes Position, Rotation and Scale into LocalToWorld
// matrices for every entity that carries them.
type TransformSystem struct {
	world *World

	position     ComponentID
	localToWorld ComponentID
}

func NewTransformSystem(w *World) *TransformSystem {
	return &TransformSystem{
		world:        w,
		position:     Register[Position](w.reg),
		localToWorld: Register[LocalToWorld](w.reg),
	}
}

// Update recomputes LocalToWorld for every archetype storing both Position
// and LocalToWorld. Rotation defaults to zero and Scale to one when the
// archetype does not store them.
func (s *TransformSystem) Update() {
	for _, a := range s.world.store.Archetypes() {
		if !a.HasAll(s.position, s.localToWorld) {
			continue
		}
		positions, _ := column[Position](s.world.store, a)
		matrices, _ := column[LocalToWorld](s.world.store, a)
		rotations, hasRot := column[Rotation](s.world.store, a)
		scales, hasScale := column[Scale](s.world.store, a)

		for row := range positions {
			t := rmath.Vec3{positions[row].X, positions[row].Y, positions[row].Z}
			r := rmath.Vec3{}
			if hasRot {
				r = rmath.Vec3{rotations[row].X, rotations[row].Y, rotations[row].Z}
			}
			sc := rmath.Vec3{1, 1, 1}
			if hasScale {
				sc = rmath.Vec3{scales[row].X, scales[row].Y, scales[row].Z}
			}
			matrices[row].Matrix = rmath.TRS(t, r, sc)
		}
	}
}

// CameraMatrices derives the view and projection matrices for a camera
// entity from its transform. The view matrix is the inverse of the camera's
// model transform; a camera with a degenerate transform yields the identity
// view.
func CameraMatrices(pos Position, rot Rotation, cam Camera) (view, proj rmath.Mat4) {
	model := rmath.TRS(
		rmath.Vec3{pos.X, pos.Y, pos.Z},
		rmath.Vec3{rot.X, rot.Y, rot.Z},
		rmath.Vec3{1, 1, 1},
	)
	view, ok := model.Invert()
	if !ok {
		view = rmath.Identity()
	}
	proj = rmath.Perspective(cam.FovY, cam.Aspect, cam.Near, cam.Far)
	return view, proj
}
