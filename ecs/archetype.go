// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ecs

import (
	"errors"
	"reflect"
	"unsafe"

	"honnef.co/go/safeish"
)

const (
	// initialCapacity is the number of rows an archetype allocates up front.
	initialCapacity = 256
	// maxRows caps archetype growth. Doubling past this limit fails with
	// ErrRowOverflow instead of allocating.
	maxRows = 1 << 30
)

// ErrRowOverflow is returned by AddEntity when growing the archetype would
// exceed the absolute row ceiling.
var ErrRowOverflow = errors.New("ecs: archetype row count overflow")

// Archetype stores all entities that share one exact component-type set. Each
// component type occupies one column: a byte buffer holding capacity rows of
// that component's fixed layout, indexed by row * size.
type Archetype struct {
	id       int
	mask     bitmask256
	types    []ComponentID // sorted ascending
	columns  [][]byte      // parallel to types
	entities []Entity
	count    int
	capacity int
}

// ID returns the archetype's stable integer ID.
func (a *Archetype) ID() int { return a.id }

// Count returns the number of active rows.
func (a *Archetype) Count() int { return a.count }

// Capacity returns the number of allocated rows.
func (a *Archetype) Capacity() int { return a.capacity }

// HasAll reports whether the archetype stores every one of the given
// component types.
func (a *Archetype) HasAll(types ...ComponentID) bool {
	return a.mask.containsAll(maskOf(types))
}

// Entities returns a copy of the active entity IDs, one per row. The backing
// array is never exposed and unused capacity is never included.
func (a *Archetype) Entities() []Entity {
	out := make([]Entity, a.count)
	copy(out, a.entities[:a.count])
	return out
}

// EntityAt returns the entity occupying the given row.
func (a *Archetype) EntityAt(row int) (Entity, bool) {
	if row < 0 || row >= a.count {
		return Entity{}, false
	}
	return a.entities[row], true
}

func (a *Archetype) columnIndex(id ComponentID) (int, bool) {
	for i, t := range a.types {
		if t == id {
			return i, true
		}
	}
	return 0, false
}

// Store owns all archetypes, keyed by their canonical component-type set.
type Store struct {
	reg    *Registry
	byMask map[bitmask256]*Archetype
	all    []*Archetype
	nextID int
}

func NewStore(reg *Registry) *Store {
	return &Store{
		reg:    reg,
		byMask: make(map[bitmask256]*Archetype),
	}
}

// GetOrCreate returns the archetype storing exactly the given component-type
// set, creating it on first request. The set is canonicalized, so any
// permutation of the same types returns the identical archetype.
func (s *Store) GetOrCreate(types ...ComponentID) *Archetype {
	mask := maskOf(types)
	if a, ok := s.byMask[mask]; ok {
		return a
	}

	sorted := make([]ComponentID, 0, len(types))
	for id := 0; id < MaxComponentTypes; id++ {
		if mask.contains(ComponentID(id)) {
			sorted = append(sorted, ComponentID(id))
		}
	}

	a := &Archetype{
		id:       s.nextID,
		mask:     mask,
		types:    sorted,
		columns:  make([][]byte, len(sorted)),
		entities: make([]Entity, initialCapacity),
		capacity: initialCapacity,
	}
	for i, id := range sorted {
		typ, _ := s.reg.typeByID(id)
		a.columns[i] = make([]byte, initialCapacity*int(typ.Size))
	}
	s.nextID++
	s.byMask[mask] = a
	s.all = append(s.all, a)
	return a
}

// Archetypes returns all live archetypes in creation order. The slice is
// shared; callers must not modify it.
func (s *Store) Archetypes() []*Archetype { return s.all }

// AddEntity appends one row for e and returns its row index. Component values
// are written into their columns; types the archetype does not store are
// ignored, and unset components are zero. Fails with ErrRowOverflow when the
// archetype is full and doubling would exceed the row ceiling.
func (s *Store) AddEntity(a *Archetype, e Entity, values ...any) (int, error) {
	if a.count == a.capacity {
		if err := s.grow(a); err != nil {
			return 0, err
		}
	}
	row := a.count
	a.entities[row] = e
	a.count++
	// Swap-and-pop removal leaves the previous occupant's bytes in
	// freed rows, so a reused row must be cleared before partial writes.
	for i, id := range a.types {
		typ, _ := s.reg.typeByID(id)
		size := int(typ.Size)
		clear(a.columns[i][row*size : (row+1)*size])
	}
	for _, v := range values {
		s.writeValue(a, row, v)
	}
	return row, nil
}

func (s *Store) grow(a *Archetype) error {
	newCap := a.capacity * 2
	if newCap > maxRows {
		return ErrRowOverflow
	}
	for i, id := range a.types {
		typ, _ := s.reg.typeByID(id)
		col := make([]byte, newCap*int(typ.Size))
		copy(col, a.columns[i])
		a.columns[i] = col
	}
	entities := make([]Entity, newCap)
	copy(entities, a.entities)
	a.entities = entities
	a.capacity = newCap
	return nil
}

// RemoveEntity removes the given row using swap-and-pop: the last active
// row's data overwrites the removed slot and the count shrinks by one. It
// returns the entity that moved into row so the caller can update its row
// bookkeeping; ok is false when the removed row was already last (or the row
// was out of range) and nothing moved.
func (s *Store) RemoveEntity(a *Archetype, row int) (moved Entity, ok bool) {
	if row < 0 || row >= a.count {
		return Entity{}, false
	}
	last := a.count - 1
	if row < last {
		moved = a.entities[last]
		a.entities[row] = moved
		for i, id := range a.types {
			typ, _ := s.reg.typeByID(id)
			size := int(typ.Size)
			if size == 0 {
				continue
			}
			col := a.columns[i]
			copy(col[row*size:(row+1)*size], col[last*size:(last+1)*size])
		}
		a.count--
		return moved, true
	}
	a.count--
	return Entity{}, false
}

// Get materializes the component of type T stored at the given row. The
// returned value is an independent copy; mutating it never alters the column.
// ok is false when the archetype does not store T or the row is out of range.
func Get[T any](s *Store, a *Archetype, row int) (T, bool) {
	var zero T
	id, ok := s.reg.byType[reflect.TypeFor[T]()]
	if !ok {
		return zero, false
	}
	ci, ok := a.columnIndex(id)
	if !ok || row < 0 || row >= a.count {
		return zero, false
	}
	if unsafe.Sizeof(zero) == 0 {
		return zero, true
	}
	return safeish.SliceCast[[]T](a.columns[ci])[row], true
}

// Set overwrites the component of type T at the given row. It reports
// whether the archetype stores T and the row is in range.
func Set[T any](s *Store, a *Archetype, row int, v T) bool {
	id, ok := s.reg.byType[reflect.TypeFor[T]()]
	if !ok {
		return false
	}
	ci, ok := a.columnIndex(id)
	if !ok || row < 0 || row >= a.count {
		return false
	}
	if unsafe.Sizeof(v) == 0 {
		return true
	}
	safeish.SliceCast[[]T](a.columns[ci])[row] = v
	return true
}

// column returns the first count rows of the column for T, viewed as a typed
// slice. Systems in this package use it for bulk iteration; the view aliases
// storage and is invalidated by growth.
func column[T any](s *Store, a *Archetype) ([]T, bool) {
	id, ok := s.reg.byType[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	ci, ok := a.columnIndex(id)
	if !ok {
		return nil, false
	}
	var zero T
	if unsafe.Sizeof(zero) == 0 {
		return nil, false
	}
	return safeish.SliceCast[[]T](a.columns[ci])[:a.count], true
}

// writeValue stores v, whose dynamic type must be a registered component
// type, into its column at row. Unregistered or unstored types are ignored.
func (s *Store) writeValue(a *Archetype, row int, v any) {
	rv := reflect.ValueOf(v)
	id, ok := s.reg.byType[rv.Type()]
	if !ok {
		return
	}
	ci, ok := a.columnIndex(id)
	if !ok {
		return
	}
	size := int(rv.Type().Size())
	if size == 0 {
		return
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	src := unsafe.Slice((*byte)(ptr.UnsafePointer()), size)
	copy(a.columns[ci][row*size:(row+1)*size], src)
}

// copyRow transplants every component both archetypes store from row srcRow
// of src into row dstRow of dst. Types only one side stores are skipped.
func (s *Store) copyRow(dst *Archetype, dstRow int, src *Archetype, srcRow int) {
	for i, id := range src.types {
		di, ok := dst.columnIndex(id)
		if !ok {
			continue
		}
		typ, _ := s.reg.typeByID(id)
		size := int(typ.Size)
		if size == 0 {
			continue
		}
		copy(
			dst.columns[di][dstRow*size:(dstRow+1)*size],
			src.columns[i][srcRow*size:(srcRow+1)*size],
		)
	}
}

// Clear discards every archetype and resets the archetype ID counter.
func (s *Store) Clear() {
	s.byMask = make(map[bitmask256]*Archetype)
	s.all = nil
	s.nextID = 0
}

// ArchetypeStats describes one archetype for diagnostics.
type ArchetypeStats struct {
	Components []string
	Entities   int
}

// StoreStats is a snapshot of the store's archetype population.
type StoreStats struct {
	Archetypes int
	Details    []ArchetypeStats
}

func (s *Store) Stats() StoreStats {
	stats := StoreStats{
		Archetypes: len(s.all),
		Details:    make([]ArchetypeStats, len(s.all)),
	}
	for i, a := range s.all {
		names := make([]string, len(a.types))
		for j, id := range a.types {
			typ, _ := s.reg.typeByID(id)
			names[j] = typ.Name
		}
		stats.Details[i] = ArchetypeStats{Components: names, Entities: a.count}
	}
	return stats
}
