package model

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestNewWorldObject(t *testing.T) {
	loc := NewLocation(100, 200, 300)
	obj := NewWorldObject(12345, "TestObject", loc)

	if obj == nil {
		t.Fatal("NewWorldObject() returned nil")
	}
	if obj.ObjectID() != 12345 {
		t.Errorf("ObjectID() = %d, want 12345", obj.ObjectID())
	}
	if obj.Name() != "TestObject" {
		t.Errorf("Name() = %q, want %q", obj.Name(), "TestObject")
	}
	if got := obj.Location(); got != loc {
		t.Errorf("Location() = %+v, want %+v", got, loc)
	}
	if !obj.Attached() {
		t.Error("new object should be attached")
	}
	if obj.Removable() {
		t.Error("new object should not be removable")
	}
}

func TestWorldObject_Move(t *testing.T) {
	obj := NewWorldObject(1, "Test", NewLocation(10, 0, 10))

	got := obj.Move(10, 1, -5)
	want := NewLocation(20, 1, 5)
	if got != want {
		t.Errorf("Move() = %+v, want %+v", got, want)
	}
	if obj.Location() != want {
		t.Errorf("Location() after Move = %+v, want %+v", obj.Location(), want)
	}

	// Location() возвращает копию — изменение копии не трогает объект
	cp := obj.Location().WithCoordinates(999, 999, 999)
	if obj.Location().X == 999 {
		t.Error("Location() did not return a copy - original was mutated")
	}
	if cp.X != 999 {
		t.Errorf("modified copy X = %d, want 999", cp.X)
	}
}

func TestWorldObject_Tick(t *testing.T) {
	obj := NewWorldObject(1, "Test", NewLocation(0, 0, 0))

	// Без TickFunc — no-op
	if err := obj.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() without func error = %v", err)
	}

	errBoom := errors.New("boom")
	obj.SetTickFunc(func(ctx context.Context, o *WorldObject) error {
		return errBoom
	})
	if err := obj.Tick(context.Background()); !errors.Is(err, errBoom) {
		t.Errorf("Tick() error = %v, want %v", err, errBoom)
	}

	if obj.TickCount() != 2 {
		t.Errorf("TickCount() = %d, want 2", obj.TickCount())
	}
}

func TestWorldObject_Flags(t *testing.T) {
	obj := NewWorldObject(1, "Test", NewLocation(0, 0, 0))

	obj.MarkRemoved()
	obj.Detach()

	if !obj.Removable() {
		t.Error("Removable() = false after MarkRemoved")
	}
	if obj.Attached() {
		t.Error("Attached() = true after Detach")
	}
}

func TestSlotsOf(t *testing.T) {
	obj := NewWorldObject(1, "Test", NewLocation(0, 0, 0))
	if got := SlotsOf(obj); got != SlotNone {
		t.Errorf("SlotsOf(default) = %b, want %b", got, SlotNone)
	}

	obj.SetLockSlots(SlotNeighbours)
	got := SlotsOf(obj)
	for _, s := range []LockSlots{SlotSelf, SlotXPlus, SlotXMinus, SlotZPlus, SlotZMinus} {
		if !got.Has(s) {
			t.Errorf("SlotsOf(neighbours) missing slot %b", s)
		}
	}
}

func TestWorldObject_ConcurrentLocationUpdates(t *testing.T) {
	obj := NewWorldObject(1, "Test", NewLocation(0, 0, 0))

	const numUpdaters = 50
	var wg sync.WaitGroup
	wg.Add(numUpdaters)

	// 50 горутин двигают объект, ещё столько же читают координаты
	for range numUpdaters {
		go func() {
			defer wg.Done()
			for range 100 {
				obj.Move(1, 0, 0)
				_ = obj.Location()
			}
		}()
	}
	wg.Wait()

	if got := obj.Location().X; got != numUpdaters*100 {
		t.Errorf("X after concurrent moves = %d, want %d", got, numUpdaters*100)
	}
}
