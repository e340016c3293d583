// Package thread models the thread control block the invocation layer acts
// on: its register file, scheduling state and message registers.
package thread

import (
	"fmt"

	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/msginfo"
	"github.com/mattjoyce/capinvoke/internal/syserr"
)

// Register names a slot of the architecture register file.
type Register int

const (
	Badge Register = iota
	MsgInfo
	MR0
	MR1
	MR2
	MR3
	NumRegisters
)

// NumMsgRegisters is how many message registers live in the register file.
// Higher message indices are stored in the IPC buffer.
const NumMsgRegisters = int(NumRegisters - MR0)

// State is the scheduling state of a thread.
type State int

const (
	Inactive State = iota
	Running
	Restart
	BlockedOnReceive
	BlockedOnSend
	BlockedOnReply
	BlockedOnNotification
	IdleThreadState
)

var stateNames = map[State]string{
	Inactive:              "inactive",
	Running:               "running",
	Restart:               "restart",
	BlockedOnReceive:      "blocked_on_receive",
	BlockedOnSend:         "blocked_on_send",
	BlockedOnReply:        "blocked_on_reply",
	BlockedOnNotification: "blocked_on_notification",
	IdleThreadState:       "idle",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsRunnable reports whether a thread in state s may trap into the kernel.
func (s State) IsRunnable() bool {
	return s == Running || s == Restart
}

// ParseState maps a state name back to its State.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown thread state %q", name)
}

// IPCBuffer is the user-visible page holding message words that do not
// fit in registers, plus the CPtrs of extra capabilities.
type IPCBuffer struct {
	Msg  [msginfo.MsgMaxLength]uint64
	Caps [msginfo.MsgMaxExtraCaps]uint64
}

// Blocking records what a blocked thread is waiting on and the rights it
// blocked with.
type Blocking struct {
	Object        capability.Pointer
	Badge         uint64
	CanGrant      bool
	CanGrantReply bool
	IsCall        bool
}

// TCB is a thread control block.
type TCB struct {
	ID   capability.Pointer
	Name string

	regs  [NumRegisters]uint64
	state State

	// Buffer is nil when the thread has no IPC buffer mapped.
	Buffer *IPCBuffer

	// CSpaceRoot holds the root CNode capability of the thread's CSpace.
	CSpaceRoot *cspace.Slot
	// ReplySlot holds the thread's master reply capability.
	ReplySlot *cspace.Slot
	// CallerSlot receives the reply capability when the thread accepts a call.
	CallerSlot *cspace.Slot

	Blocking Blocking
}

// New returns an inactive thread with empty CSpace, reply and caller slots.
func New(id capability.Pointer, name string) *TCB {
	t := &TCB{
		ID:         id,
		Name:       name,
		CSpaceRoot: cspace.NewSlot(),
		ReplySlot:  cspace.NewSlot(),
		CallerSlot: cspace.NewSlot(),
	}
	if err := cspace.Insert(capability.Reply{TCB: id, Master: true, CanGrant: true}, nil, t.ReplySlot); err != nil {
		panic(fmt.Sprintf("thread %s: install master reply: %v", name, err))
	}
	return t
}

func (t *TCB) Register(r Register) uint64 {
	return t.regs[r]
}

func (t *TCB) SetRegister(r Register, v uint64) {
	t.regs[r] = v
}

// Registers returns a copy of the register file.
func (t *TCB) Registers() [NumRegisters]uint64 {
	return t.regs
}

func (t *TCB) State() State {
	return t.state
}

func (t *TCB) SetState(s State) {
	t.state = s
}

// SetMR stores v as message word i and returns the index of the next word.
// Words beyond the register file go to the IPC buffer; without a buffer
// they are dropped and NumMsgRegisters is returned.
func (t *TCB) SetMR(i int, v uint64) int {
	if i < NumMsgRegisters {
		t.regs[MR0+Register(i)] = v
		return i + 1
	}
	if t.Buffer == nil {
		return NumMsgRegisters
	}
	if i >= msginfo.MsgMaxLength {
		return msginfo.MsgMaxLength
	}
	t.Buffer.Msg[i] = v
	return i + 1
}

// MR returns message word i, or 0 when it is not addressable.
func (t *TCB) MR(i int) uint64 {
	if i < NumMsgRegisters {
		return t.regs[MR0+Register(i)]
	}
	if t.Buffer == nil || i >= msginfo.MsgMaxLength {
		return 0
	}
	return t.Buffer.Msg[i]
}

// SyscallArg returns argument i of the current syscall, read from the
// message registers and then buf. ok is false when the argument lives in
// the buffer and buf is nil.
func (t *TCB) SyscallArg(i int, buf *IPCBuffer) (uint64, bool) {
	if i < NumMsgRegisters {
		return t.regs[MR0+Register(i)], true
	}
	if buf == nil || i >= msginfo.MsgMaxLength {
		return 0, false
	}
	return buf.Msg[i], true
}

// SetLookupFaultMRs marshals f into message words starting at offset and
// returns the index after the last word written. The first word is the
// fault type plus one so that zero never names a fault.
func (t *TCB) SetLookupFaultMRs(offset int, f syserr.LookupFault) int {
	i := t.SetMR(offset, uint64(f.Type)+1)
	switch f.Type {
	case syserr.InvalidRoot:
		return i
	case syserr.MissingCapability:
		return t.SetMR(i, f.BitsLeft)
	case syserr.DepthMismatch:
		i = t.SetMR(i, f.BitsLeft)
		return t.SetMR(i, f.BitsFound)
	case syserr.GuardMismatch:
		i = t.SetMR(i, f.BitsLeft)
		i = t.SetMR(i, f.GuardFound)
		return t.SetMR(i, f.BitsFound)
	}
	panic(fmt.Sprintf("invalid lookup fault type %d", uint64(f.Type)))
}
