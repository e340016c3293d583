package invocation

import (
	"log/slog"

	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/syserr"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

//go:generate mockgen -destination=mocks/mock_invocation.go -package=mocks github.com/mattjoyce/capinvoke/internal/invocation IPC,Decoders

// IPC performs the object operations the dispatcher triggers directly.
type IPC interface {
	SendIPC(ep capability.Pointer, sender *thread.TCB, block, call, canGrant bool, badge uint64, canGrantReply bool)
	SendSignal(ntfn capability.Pointer, badge uint64)
	DoReply(sender *thread.TCB, receiver capability.Pointer, slot *cspace.Slot, canGrant bool)
}

// Decoders handles the kinds the dispatcher delegates. Each method receives
// only the inputs it needs.
type Decoders interface {
	DecodeTCB(label uint64, length int, c capability.Thread, slot *cspace.Slot, call bool, buf *thread.IPCBuffer) *syserr.Error
	DecodeDomain(label uint64, length int, buf *thread.IPCBuffer) *syserr.Error
	DecodeCNode(label uint64, length int, c capability.CNode, buf *thread.IPCBuffer) *syserr.Error
	DecodeUntyped(label uint64, length int, slot *cspace.Slot, c capability.Untyped, buf *thread.IPCBuffer) *syserr.Error
	DecodeIRQControl(label uint64, length int, slot *cspace.Slot, buf *thread.IPCBuffer) *syserr.Error
	DecodeIRQHandler(label uint64, irq uint64) *syserr.Error
	DecodeArch(label uint64, length int, c capability.Cap, slot *cspace.Slot, call bool, buf *thread.IPCBuffer) *syserr.Error
}

// Invocation is one decoded syscall naming a capability.
type Invocation struct {
	// Thread is the invoking thread.
	Thread *thread.TCB
	Label  uint64
	// Length is the word count of the caller's message.
	Length int
	// Slot is the slot Cap was read from.
	Slot *cspace.Slot
	Cap  capability.Cap
	// CapIndex is the CPtr the caller used. It is only used in diagnostics.
	CapIndex uint64
	Block    bool
	Call     bool
	Buffer   *thread.IPCBuffer
}

// Dispatcher routes invocations by capability kind.
type Dispatcher struct {
	ipc      IPC
	decoders Decoders
	logger   *slog.Logger
}

func New(ipc IPC, decoders Decoders, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		ipc:      ipc,
		decoders: decoders,
		logger:   logger,
	}
}

// DecodeInvocation checks the caller's rights on inv.Cap and performs or
// delegates the operation. A nil result means the invocation went ahead.
func (d *Dispatcher) DecodeInvocation(inv Invocation) *syserr.Error {
	switch c := inv.Cap.(type) {
	case nil, capability.Null, capability.Zombie:
		d.logger.Debug("attempted to invoke a null or zombie cap",
			"cap_index", inv.CapIndex, "kind", capability.KindOf(inv.Cap).String())
		return syserr.NewInvalidCapability(0)

	case capability.Endpoint:
		if !c.CanSend {
			d.logger.Debug("attempted to invoke a read-only endpoint cap", "cap_index", inv.CapIndex)
			return syserr.NewInvalidCapability(0)
		}
		inv.Thread.SetState(thread.Restart)
		d.ipc.SendIPC(c.Ptr, inv.Thread, inv.Block, inv.Call, c.CanGrant, c.Badge, c.CanGrantReply)
		return nil

	case capability.Notification:
		if !c.CanSend {
			d.logger.Debug("attempted to invoke a read-only notification cap", "cap_index", inv.CapIndex)
			return syserr.NewInvalidCapability(0)
		}
		inv.Thread.SetState(thread.Restart)
		d.ipc.SendSignal(c.Ptr, c.Badge)
		return nil

	case capability.Reply:
		if c.Master {
			d.logger.Debug("attempted to invoke an invalid reply cap", "cap_index", inv.CapIndex)
			return syserr.NewInvalidCapability(0)
		}
		inv.Thread.SetState(thread.Restart)
		d.ipc.DoReply(inv.Thread, c.TCB, inv.Slot, c.CanGrant)
		return nil

	case capability.Thread:
		return d.decoders.DecodeTCB(inv.Label, inv.Length, c, inv.Slot, inv.Call, inv.Buffer)
	case capability.Domain:
		return d.decoders.DecodeDomain(inv.Label, inv.Length, inv.Buffer)
	case capability.CNode:
		return d.decoders.DecodeCNode(inv.Label, inv.Length, c, inv.Buffer)
	case capability.Untyped:
		return d.decoders.DecodeUntyped(inv.Label, inv.Length, inv.Slot, c, inv.Buffer)
	case capability.IRQControl:
		return d.decoders.DecodeIRQControl(inv.Label, inv.Length, inv.Slot, inv.Buffer)
	case capability.IRQHandler:
		return d.decoders.DecodeIRQHandler(inv.Label, c.IRQ)

	default:
		if kind := inv.Cap.Kind(); !kind.IsArch() {
			d.logger.Error("capability kind has no dispatch arm, routing to architecture decoder",
				"cap_index", inv.CapIndex, "kind", kind.String())
		}
		return d.decoders.DecodeArch(inv.Label, inv.Length, inv.Cap, inv.Slot, inv.Call, inv.Buffer)
	}
}
