package ecs

import (
	"errors"
	"testing"
)

// Growing past the row ceiling must fail before any column is reallocated.
func TestRowOverflowIsFatal(t *testing.T) {
	reg := NewRegistry()
	id := Register[struct{ V int64 }](reg)
	s := NewStore(reg)
	a := s.GetOrCreate(id)

	// Pretend the archetype is full at the ceiling. AddEntity must reject the
	// growth before touching storage, so the undersized columns are never
	// indexed.
	a.count = maxRows
	a.capacity = maxRows

	_, err := s.AddEntity(a, Entity{ID: 1})
	if !errors.Is(err, ErrRowOverflow) {
		t.Fatalf("err = %v, want ErrRowOverflow", err)
	}
	if a.count != maxRows || a.capacity != maxRows {
		t.Error("failed growth must not change count or capacity")
	}
}

func TestGrowDoubles(t *testing.T) {
	reg := NewRegistry()
	id := Register[struct{ V int32 }](reg)
	s := NewStore(reg)
	a := s.GetOrCreate(id)

	if a.capacity != initialCapacity {
		t.Fatalf("initial capacity = %d, want %d", a.capacity, initialCapacity)
	}
	if err := s.grow(a); err != nil {
		t.Fatal(err)
	}
	if a.capacity != 2*initialCapacity {
		t.Errorf("capacity = %d, want %d", a.capacity, 2*initialCapacity)
	}
	if len(a.columns[0]) != a.capacity*4 {
		t.Errorf("column not resized with capacity: %d bytes", len(a.columns[0]))
	}
}
