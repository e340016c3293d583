package cspace

import (
	"fmt"

	"github.com/mattjoyce/capinvoke/internal/capability"
)

// Slot holds at most one capability. Slots are owned by CNodes and by the
// IRQ table; the derivation links record which slot a capability was copied
// from so that deleting a slot also removes what was derived from it.
type Slot struct {
	cap      capability.Cap
	parent   *Slot
	children []*Slot
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{cap: capability.Null{}}
}

// Cap returns the occupant, or capability.Null when the slot is empty.
func (s *Slot) Cap() capability.Cap {
	if s.cap == nil {
		return capability.Null{}
	}
	return s.cap
}

// IsEmpty reports whether the slot holds a Null capability.
func (s *Slot) IsEmpty() bool {
	return capability.KindOf(s.cap) == capability.KindNull
}

// Parent returns the slot this occupant was derived from, if any.
func (s *Slot) Parent() *Slot {
	return s.parent
}

// Children returns the slots whose occupants were derived from this one.
func (s *Slot) Children() []*Slot {
	out := make([]*Slot, len(s.children))
	copy(out, s.children)
	return out
}

// Insert places c into dest, recording src as the slot it was derived
// from. dest must be empty; src may be nil for root capabilities.
func Insert(c capability.Cap, src, dest *Slot) error {
	if dest == nil {
		return fmt.Errorf("insert %s: destination slot is nil", capability.KindOf(c))
	}
	if capability.KindOf(c) == capability.KindNull {
		return fmt.Errorf("insert: refusing to insert a null capability")
	}
	if !dest.IsEmpty() {
		return fmt.Errorf("insert %s: destination slot holds %s", capability.KindOf(c), dest.Cap().Kind())
	}
	dest.cap = c
	if src != nil {
		dest.parent = src
		src.children = append(src.children, dest)
	}
	return nil
}

// DeleteOne empties s, first removing every capability derived from it.
// Deleting an empty slot is a no-op.
func DeleteOne(s *Slot) {
	if s == nil {
		return
	}
	for len(s.children) > 0 {
		DeleteOne(s.children[len(s.children)-1])
	}
	if s.parent != nil {
		s.parent.removeChild(s)
		s.parent = nil
	}
	s.cap = capability.Null{}
}

func (s *Slot) removeChild(child *Slot) {
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// Move transfers the occupant of src, with its derivation links, into the
// empty slot dest.
func Move(src, dest *Slot) error {
	if src == nil || dest == nil {
		return fmt.Errorf("move: nil slot")
	}
	if src.IsEmpty() {
		return fmt.Errorf("move: source slot is empty")
	}
	if !dest.IsEmpty() {
		return fmt.Errorf("move: destination slot holds %s", dest.Cap().Kind())
	}
	dest.cap = src.cap
	dest.parent = src.parent
	dest.children = src.children
	if dest.parent != nil {
		for i, c := range dest.parent.children {
			if c == src {
				dest.parent.children[i] = dest
			}
		}
	}
	for _, c := range dest.children {
		c.parent = dest
	}
	src.cap = capability.Null{}
	src.parent = nil
	src.children = nil
	return nil
}
