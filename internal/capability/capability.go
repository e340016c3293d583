// Package capability defines the closed set of capability kinds the kernel
// understands and the slots that hold them.
//
// A capability is one of a fixed number of variant structs. Each variant
// carries only its own fields; callers classify with Kind and then use a type
// switch (or type assertion) to reach the fields, so a field of the wrong
// variant is unreachable.
package capability

import "fmt"

// Kind classifies a capability.
type Kind int

const (
	KindNull Kind = iota
	KindZombie
	KindEndpoint
	KindNotification
	KindReply
	KindThread
	KindDomain
	KindCNode
	KindUntyped
	KindIRQControl
	KindIRQHandler

	// Architecture-specific kinds.
	KindFrame
	KindPageTable
	KindASIDControl
	KindASIDPool
)

var kindNames = map[Kind]string{
	KindNull:         "null",
	KindZombie:       "zombie",
	KindEndpoint:     "endpoint",
	KindNotification: "notification",
	KindReply:        "reply",
	KindThread:       "thread",
	KindDomain:       "domain",
	KindCNode:        "cnode",
	KindUntyped:      "untyped",
	KindIRQControl:   "irq_control",
	KindIRQHandler:   "irq_handler",
	KindFrame:        "frame",
	KindPageTable:    "page_table",
	KindASIDControl:  "asid_control",
	KindASIDPool:     "asid_pool",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsArch reports whether k belongs to the architecture-specific subset.
func (k Kind) IsArch() bool {
	switch k {
	case KindFrame, KindPageTable, KindASIDControl, KindASIDPool:
		return true
	}
	return false
}

// ParseKind maps a kind name as produced by String back to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown capability kind %q", name)
}

// KnownKinds returns every kind in the closed set, in declaration order.
func KnownKinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := KindNull; k <= KindASIDPool; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Pointer identifies a kernel object. It plays the role of the object
// address stored in a capability word.
type Pointer uint64

// Cap is implemented only by the variant types in this package.
type Cap interface {
	Kind() Kind
	isCap()
}

type Null struct{}

type Zombie struct {
	Ptr Pointer
}

type Endpoint struct {
	Ptr           Pointer
	CanSend       bool
	CanReceive    bool
	CanGrant      bool
	CanGrantReply bool
	Badge         uint64
}

type Notification struct {
	Ptr        Pointer
	CanSend    bool
	CanReceive bool
	Badge      uint64
}

// Reply authorises exactly one reply to the thread TCB. A master reply is
// the non-invokable template from which invokable replies are derived.
type Reply struct {
	TCB      Pointer
	Master   bool
	CanGrant bool
}

type Thread struct {
	TCB Pointer
}

type Domain struct{}

// CNode is a capability to a table of 1<<Radix slots, addressed after
// skipping a GuardSize-bit Guard.
type CNode struct {
	Ptr       Pointer
	Radix     uint
	GuardSize uint
	Guard     uint64
}

type Untyped struct {
	Ptr      Pointer
	SizeBits uint
}

type IRQControl struct{}

type IRQHandler struct {
	IRQ uint64
}

type Frame struct {
	Ptr      Pointer
	SizeBits uint
}

type PageTable struct {
	Ptr Pointer
}

type ASIDControl struct{}

type ASIDPool struct {
	Ptr Pointer
}

func (Null) Kind() Kind         { return KindNull }
func (Zombie) Kind() Kind       { return KindZombie }
func (Endpoint) Kind() Kind     { return KindEndpoint }
func (Notification) Kind() Kind { return KindNotification }
func (Reply) Kind() Kind        { return KindReply }
func (Thread) Kind() Kind       { return KindThread }
func (Domain) Kind() Kind       { return KindDomain }
func (CNode) Kind() Kind        { return KindCNode }
func (Untyped) Kind() Kind      { return KindUntyped }
func (IRQControl) Kind() Kind   { return KindIRQControl }
func (IRQHandler) Kind() Kind   { return KindIRQHandler }
func (Frame) Kind() Kind        { return KindFrame }
func (PageTable) Kind() Kind    { return KindPageTable }
func (ASIDControl) Kind() Kind  { return KindASIDControl }
func (ASIDPool) Kind() Kind     { return KindASIDPool }

func (Null) isCap()         {}
func (Zombie) isCap()       {}
func (Endpoint) isCap()     {}
func (Notification) isCap() {}
func (Reply) isCap()        {}
func (Thread) isCap()       {}
func (Domain) isCap()       {}
func (CNode) isCap()        {}
func (Untyped) isCap()      {}
func (IRQControl) isCap()   {}
func (IRQHandler) isCap()   {}
func (Frame) isCap()        {}
func (PageTable) isCap()    {}
func (ASIDControl) isCap()  {}
func (ASIDPool) isCap()     {}

// NewIRQHandler returns a fresh handler capability for irq.
func NewIRQHandler(irq uint64) IRQHandler {
	return IRQHandler{IRQ: irq}
}

// KindOf returns the kind of c, treating a nil Cap as Null.
func KindOf(c Cap) Kind {
	if c == nil {
		return KindNull
	}
	return c.Kind()
}
