package world

import (
	"container/list"

	"github.com/udisondev/tickregion/internal/model"
)

// member is a region-owned object plus the location at which the region last saw it.
// The cached location is compared each tick to detect movement across a region boundary.
type member struct {
	obj  model.Trackable
	last model.Location
}

// memberSet is an insertion-ordered set keyed by ObjectID. Not concurrent-safe.
type memberSet struct {
	order *list.List               // of *member
	index map[uint32]*list.Element // objectID → element
}

func newMemberSet() *memberSet {
	return &memberSet{
		order: list.New(),
		index: make(map[uint32]*list.Element),
	}
}

// add inserts obj at the tail. Returns false if already present.
func (s *memberSet) add(obj model.Trackable) bool {
	id := obj.ObjectID()
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = s.order.PushBack(&member{obj: obj, last: obj.Location()})
	return true
}

// remove deletes obj. Returns false if not present.
func (s *memberSet) remove(obj model.Trackable) bool {
	return s.removeID(obj.ObjectID())
}

func (s *memberSet) removeID(id uint32) bool {
	e, ok := s.index[id]
	if !ok {
		return false
	}
	s.order.Remove(e)
	delete(s.index, id)
	return true
}

func (s *memberSet) contains(obj model.Trackable) bool {
	_, ok := s.index[obj.ObjectID()]
	return ok
}

func (s *memberSet) len() int {
	return len(s.index)
}

// each iterates members in insertion order. fn may remove the current member.
// Iteration stops when fn returns false.
func (s *memberSet) each(fn func(m *member) bool) {
	for e := s.order.Front(); e != nil; {
		next := e.Next()
		if !fn(e.Value.(*member)) {
			return
		}
		e = next
	}
}

// objects returns members in insertion order (copy).
func (s *memberSet) objects() []model.Trackable {
	out := make([]model.Trackable, 0, len(s.index))
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*member).obj)
	}
	return out
}

func (s *memberSet) clear() {
	s.order.Init()
	clear(s.index)
}
