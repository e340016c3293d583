// Package cspace implements capability slots, derivation-aware insert and
// delete, and resolution of CSpace addresses through CNode tables.
package cspace

import (
	"fmt"

	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/syserr"
)

// WordBits is the width of a CSpace address.
const WordBits = 64

// CNode is a table of 1<<Radix slots.
type CNode struct {
	Ptr   capability.Pointer
	Radix uint
	slots []*Slot
}

// Slot returns slot i of the table.
func (n *CNode) Slot(i uint64) *Slot {
	return n.slots[i]
}

// Len returns the number of slots.
func (n *CNode) Len() int {
	return len(n.slots)
}

// Directory maps CNode pointers to their tables.
type Directory struct {
	cnodes map[capability.Pointer]*CNode
}

func NewDirectory() *Directory {
	return &Directory{cnodes: make(map[capability.Pointer]*CNode)}
}

// NewCNode allocates a table of 1<<radix empty slots at ptr.
func (d *Directory) NewCNode(ptr capability.Pointer, radix uint) (*CNode, error) {
	if radix == 0 || radix > 16 {
		return nil, fmt.Errorf("cnode %#x: radix %d out of range [1, 16]", uint64(ptr), radix)
	}
	if _, exists := d.cnodes[ptr]; exists {
		return nil, fmt.Errorf("cnode %#x already exists", uint64(ptr))
	}
	n := &CNode{Ptr: ptr, Radix: radix, slots: make([]*Slot, 1<<radix)}
	for i := range n.slots {
		n.slots[i] = NewSlot()
	}
	d.cnodes[ptr] = n
	return n, nil
}

// Get returns the CNode at ptr.
func (d *Directory) Get(ptr capability.Pointer) (*CNode, bool) {
	n, ok := d.cnodes[ptr]
	return n, ok
}

// Resolution is the outcome of a successful address resolution. BitsRemaining
// is non-zero when resolution stopped early at a non-CNode capability.
type Resolution struct {
	Slot          *Slot
	BitsRemaining uint
}

// ResolveAddressBits walks capptr, an nBits-wide address, from root. Each
// level must match its guard and consume radix bits; resolution ends when
// the bits run out or a non-CNode capability is reached.
func (d *Directory) ResolveAddressBits(root capability.Cap, capptr uint64, nBits uint) (Resolution, *syserr.LookupFault) {
	node, ok := root.(capability.CNode)
	if !ok {
		f := syserr.NewInvalidRoot()
		return Resolution{}, &f
	}
	for {
		radixBits := node.Radix
		guardBits := node.GuardSize
		levelBits := radixBits + guardBits

		if guardBits > nBits || extract(capptr, nBits-guardBits, guardBits) != node.Guard {
			f := syserr.NewGuardMismatch(uint64(nBits), node.Guard, uint64(guardBits))
			return Resolution{}, &f
		}
		if levelBits > nBits {
			f := syserr.NewDepthMismatch(uint64(nBits), uint64(levelBits))
			return Resolution{}, &f
		}

		table, ok := d.cnodes[node.Ptr]
		if !ok || table.Radix != radixBits {
			f := syserr.NewInvalidRoot()
			return Resolution{}, &f
		}
		slot := table.slots[extract(capptr, nBits-levelBits, radixBits)]
		if nBits == levelBits {
			return Resolution{Slot: slot}, nil
		}
		nBits -= levelBits

		next, ok := slot.Cap().(capability.CNode)
		if !ok {
			return Resolution{Slot: slot, BitsRemaining: nBits}, nil
		}
		node = next
	}
}

// LookupSlot resolves cptr through a full-width address, as done when a
// thread names the capability it invokes.
func (d *Directory) LookupSlot(root capability.Cap, cptr uint64) (*Slot, *syserr.LookupFault) {
	res, fault := d.ResolveAddressBits(root, cptr, WordBits)
	if fault != nil {
		return nil, fault
	}
	return res.Slot, nil
}

// LookupTargetSlot resolves a (root, index, depth) triple naming the
// destination of a CNode-style operation. The address must resolve to a
// slot using exactly depth bits.
func (d *Directory) LookupTargetSlot(root capability.Cap, index uint64, depth uint) (*Slot, *syserr.Error) {
	return d.lookupSlotForOp(false, root, index, depth)
}

// LookupSourceSlot is LookupTargetSlot for the source of an operation.
func (d *Directory) LookupSourceSlot(root capability.Cap, index uint64, depth uint) (*Slot, *syserr.Error) {
	return d.lookupSlotForOp(true, root, index, depth)
}

func (d *Directory) lookupSlotForOp(isSource bool, root capability.Cap, index uint64, depth uint) (*Slot, *syserr.Error) {
	if capability.KindOf(root) != capability.KindCNode {
		return nil, syserr.NewFailedLookup(isSource, syserr.NewInvalidRoot())
	}
	if depth < 1 || depth > WordBits {
		return nil, syserr.NewRangeError(1, WordBits)
	}
	res, fault := d.ResolveAddressBits(root, index, depth)
	if fault != nil {
		return nil, syserr.NewFailedLookup(isSource, *fault)
	}
	if res.BitsRemaining != 0 {
		return nil, syserr.NewFailedLookup(isSource, syserr.NewDepthMismatch(uint64(res.BitsRemaining), 0))
	}
	return res.Slot, nil
}

// extract returns the bits [shift, shift+width) of v.
func extract(v uint64, shift, width uint) uint64 {
	if width == 0 {
		return 0
	}
	if shift >= 64 {
		return 0
	}
	v >>= shift
	if width >= 64 {
		return v
	}
	return v & (1<<width - 1)
}
