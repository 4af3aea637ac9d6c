// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package ecs implements an archetype-based entity-component system. Entities
// with the same set of component types share one archetype, which stores each
// component type in a contiguous column for cache-friendly iteration. Rows
// are removed with swap-and-pop, so add and remove are O(1).
package ecs

import (
	"fmt"
	"reflect"
)

// MaxComponentTypes is the maximum number of component types a Registry can
// hold. Component IDs index into bitmask256.
const MaxComponentTypes = 256

// ComponentID identifies a registered component type within one Registry.
type ComponentID uint8

// ComponentType describes a registered component: its Go type and the fixed
// byte layout a column stores per row.
type ComponentType struct {
	ID   ComponentID
	Name string
	Type reflect.Type
	Size uintptr
}

// Registry maps Go types to component IDs. Every World owns its own Registry;
// there is no process-global state shared between worlds.
type Registry struct {
	types  []ComponentType
	byType map[reflect.Type]ComponentID
}

func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]ComponentID, 16),
	}
}

// Register registers T as a component type and returns its ID. Registering
// the same type twice returns the existing ID. T must consist of fixed-size
// primitive fields only: components are stored as raw bytes and materialized
// by copy, which is only sound when a copy cannot alias the column.
func Register[T any](reg *Registry) ComponentID {
	typ := reflect.TypeFor[T]()
	if id, ok := reg.byType[typ]; ok {
		return id
	}
	if len(reg.types) >= MaxComponentTypes {
		panic("ecs: too many component types")
	}
	if err := validateLayout(typ); err != nil {
		panic(fmt.Sprintf("ecs: cannot register %s: %s", typ, err))
	}
	id := ComponentID(len(reg.types))
	reg.types = append(reg.types, ComponentType{
		ID:   id,
		Name: typ.Name(),
		Type: typ,
		Size: typ.Size(),
	})
	reg.byType[typ] = id
	return id
}

// Lookup returns the ID registered for typ.
func (reg *Registry) Lookup(typ reflect.Type) (ComponentID, bool) {
	id, ok := reg.byType[typ]
	return id, ok
}

func (reg *Registry) typeByID(id ComponentID) (ComponentType, bool) {
	if int(id) >= len(reg.types) {
		return ComponentType{}, false
	}
	return reg.types[id], true
}

func validateLayout(typ reflect.Type) error {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return validateLayout(typ.Elem())
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			if err := validateLayout(typ.Field(i).Type); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("field kind %s is not a fixed-size primitive", typ.Kind())
	}
}

// bitmask256 is the canonical, order-independent key for a component-type
// set. Bit i corresponds to ComponentID i.
type bitmask256 [4]uint64

func (m *bitmask256) set(bit ComponentID) {
	m[bit>>6] |= 1 << (bit & 63)
}

func (m *bitmask256) unset(bit ComponentID) {
	m[bit>>6] &^= 1 << (bit & 63)
}

func (m bitmask256) contains(bit ComponentID) bool {
	return m[bit>>6]&(1<<(bit&63)) != 0
}

func (m bitmask256) containsAll(sub bitmask256) bool {
	return m[0]&sub[0] == sub[0] &&
		m[1]&sub[1] == sub[1] &&
		m[2]&sub[2] == sub[2] &&
		m[3]&sub[3] == sub[3]
}

func maskOf(types []ComponentID) bitmask256 {
	var m bitmask256
	for _, t := range types {
		m.set(t)
	}
	return m
}
