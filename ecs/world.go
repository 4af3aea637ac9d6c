// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ecs

import "reflect"

// Entity identifies an object in a World. The generation counter protects
// against stale handles: destroying an entity and reusing its ID bumps the
// generation, so handles to the old incarnation stop validating.
type Entity struct {
	ID         uint32
	Generation uint32
}

// entityMeta tracks where an entity's components live. row is -1 while the
// entity has no archetype.
type entityMeta struct {
	generation uint32
	archetype  *Archetype
	row        int
	alive      bool
}

// World ties together an entity allocator, a component registry and an
// archetype store. Worlds are self-contained: two worlds never share
// registries or storage.
type World struct {
	reg   *Registry
	store *Store

	nextID uint32
	free   []uint32
	metas  []entityMeta // indexed by entity ID; index 0 is unused
}

func NewWorld() *World {
	reg := NewRegistry()
	return &World{
		reg:    reg,
		store:  NewStore(reg),
		nextID: 1,
		metas:  make([]entityMeta, 1),
	}
}

// Registry returns the world's component registry.
func (w *World) Registry() *Registry { return w.reg }

// Store returns the world's archetype store.
func (w *World) Store() *Store { return w.store }

// CreateEntity allocates an entity with no components. Recycled IDs are
// reused (with an incremented generation) before new IDs are minted; the
// first ID ever handed out is 1.
func (w *World) CreateEntity() Entity {
	var id uint32
	if n := len(w.free); n > 0 {
		id = w.free[n-1]
		w.free = w.free[:n-1]
		w.metas[id].generation++
	} else {
		id = w.nextID
		w.nextID++
		for uint32(len(w.metas)) <= id {
			w.metas = append(w.metas, entityMeta{})
		}
	}
	m := &w.metas[id]
	m.archetype = nil
	m.row = -1
	m.alive = true
	return Entity{ID: id, Generation: m.generation}
}

// Alive reports whether e refers to a live entity of the current generation.
func (w *World) Alive(e Entity) bool {
	if e.ID == 0 || e.ID >= uint32(len(w.metas)) {
		return false
	}
	m := &w.metas[e.ID]
	return m.alive && m.generation == e.Generation
}

// DestroyEntity removes e's components and returns its ID to the recycle
// pool. Destroying a dead or stale entity is a no-op.
func (w *World) DestroyEntity(e Entity) {
	if !w.Alive(e) {
		return
	}
	m := &w.metas[e.ID]
	if m.archetype != nil {
		w.removeFromArchetype(m)
	}
	m.archetype = nil
	m.row = -1
	m.alive = false
	w.free = append(w.free, e.ID)
}

func (w *World) removeFromArchetype(m *entityMeta) {
	moved, ok := w.store.RemoveEntity(m.archetype, m.row)
	if ok {
		w.metas[moved.ID].row = m.row
	}
}

// SetComponent adds component v to e, moving it to the archetype with the
// extended type set, or overwrites the existing value when e already has one.
// It reports whether e was alive. T must be registered beforehand.
func SetComponent[T any](w *World, e Entity, v T) bool {
	if !w.Alive(e) {
		return false
	}
	id := Register[T](w.reg)
	m := &w.metas[e.ID]

	if m.archetype != nil {
		if _, ok := m.archetype.columnIndex(id); ok {
			return Set(w.store, m.archetype, m.row, v)
		}
	}
	types := appendType(m.archetype, id)
	if !w.moveEntity(e, m, types) {
		return false
	}
	return Set(w.store, m.archetype, m.row, v)
}

// RemoveComponent removes component T from e, moving it to the archetype
// with the reduced type set. Removing a component the entity does not have is
// a no-op.
func RemoveComponent[T any](w *World, e Entity) bool {
	if !w.Alive(e) {
		return false
	}
	id, ok := w.reg.byType[reflect.TypeFor[T]()]
	if !ok {
		return false
	}
	m := &w.metas[e.ID]
	if m.archetype == nil {
		return false
	}
	if _, ok := m.archetype.columnIndex(id); !ok {
		return false
	}
	types := make([]ComponentID, 0, len(m.archetype.types)-1)
	for _, t := range m.archetype.types {
		if t != id {
			types = append(types, t)
		}
	}
	return w.moveEntity(e, m, types)
}

// Component returns e's component of type T as an independent copy.
func Component[T any](w *World, e Entity) (T, bool) {
	var zero T
	if !w.Alive(e) {
		return zero, false
	}
	m := &w.metas[e.ID]
	if m.archetype == nil {
		return zero, false
	}
	return Get[T](w.store, m.archetype, m.row)
}

// moveEntity transplants e into the archetype storing exactly types,
// preserving the values of every component both archetypes share.
func (w *World) moveEntity(e Entity, m *entityMeta, types []ComponentID) bool {
	dst := w.store.GetOrCreate(types...)
	row, err := w.store.AddEntity(dst, e)
	if err != nil {
		return false
	}
	if m.archetype != nil {
		w.store.copyRow(dst, row, m.archetype, m.row)
		w.removeFromArchetype(m)
	}
	m.archetype = dst
	m.row = row
	return true
}

// Clear destroys all entities and archetypes and resets the entity ID
// counter and recycle pool.
func (w *World) Clear() {
	w.store.Clear()
	w.nextID = 1
	w.free = nil
	w.metas = make([]entityMeta, 1)
}

func appendType(a *Archetype, id ComponentID) []ComponentID {
	if a == nil {
		return []ComponentID{id}
	}
	types := make([]ComponentID, len(a.types), len(a.types)+1)
	copy(types, a.types)
	return append(types, id)
}
