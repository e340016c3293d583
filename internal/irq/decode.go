package irq

import (
	"log/slog"

	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/label"
	"github.com/mattjoyce/capinvoke/internal/syserr"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

// Context gives decoders access to per-core syscall state that is not part
// of their arguments.
type Context interface {
	CurrentThread() *thread.TCB
	// ExtraCap returns extra capability i of the current syscall and the
	// slot it was read from.
	ExtraCap(i int) (capability.Cap, *cspace.Slot, bool)
}

// Decoder decodes IRQ control and IRQ handler invocations.
type Decoder struct {
	table  *Table
	cspace *cspace.Directory
	ctx    Context
	logger *slog.Logger
}

func NewDecoder(table *Table, dir *cspace.Directory, ctx Context, logger *slog.Logger) *Decoder {
	return &Decoder{
		table:  table,
		cspace: dir,
		ctx:    ctx,
		logger: logger,
	}
}

// DecodeIRQControl handles IssueIRQHandler: args (irq, index, depth) name
// the destination slot inside the CNode passed as extra cap 0.
func (d *Decoder) DecodeIRQControl(lbl uint64, length int, slot *cspace.Slot, buf *thread.IPCBuffer) *syserr.Error {
	if lbl != label.IRQIssueIRQHandler {
		d.logger.Debug("IRQControl: illegal operation", "label", label.Name(lbl))
		return syserr.New(syserr.IllegalOperation)
	}

	destRoot, _, haveRoot := d.ctx.ExtraCap(0)
	if length < 3 || !haveRoot {
		d.logger.Debug("IRQControl: truncated message", "length", length)
		return syserr.New(syserr.TruncatedMessage)
	}

	t := d.ctx.CurrentThread()
	irq, _ := t.SyscallArg(0, buf)
	index, _ := t.SyscallArg(1, buf)
	depth, _ := t.SyscallArg(2, buf)

	if irq > d.table.MaxIRQ() {
		d.logger.Debug("IRQControl: irq out of range", "irq", irq, "max_irq", d.table.MaxIRQ())
		return syserr.NewRangeError(0, d.table.MaxIRQ())
	}
	if d.table.IsActive(irq) {
		d.logger.Debug("IRQControl: irq already active", "irq", irq)
		return syserr.New(syserr.RevokeFirst)
	}

	destSlot, err := d.cspace.LookupTargetSlot(destRoot, index, uint(depth))
	if err != nil {
		d.logger.Debug("IRQControl: target slot lookup failed", "error", err)
		return err
	}
	if !destSlot.IsEmpty() {
		d.logger.Debug("IRQControl: destination slot not empty")
		return syserr.New(syserr.DeleteFirst)
	}

	t.SetState(thread.Restart)
	return d.table.InvokeIRQControl(irq, destSlot, slot)
}

// DecodeIRQHandler handles Ack, SetIRQHandler and ClearIRQHandler on the
// handler for irq.
func (d *Decoder) DecodeIRQHandler(lbl uint64, irq uint64) *syserr.Error {
	switch lbl {
	case label.IRQAckIRQ:
		d.ctx.CurrentThread().SetState(thread.Restart)
		d.table.InvokeAckIRQ(irq)
		return nil

	case label.IRQSetIRQHandler:
		c, src, ok := d.ctx.ExtraCap(0)
		if !ok {
			d.logger.Debug("IRQSetHandler: truncated message")
			return syserr.New(syserr.TruncatedMessage)
		}
		ntfn, isNtfn := c.(capability.Notification)
		if !isNtfn || !ntfn.CanSend {
			if !isNtfn {
				d.logger.Debug("IRQSetHandler: provided cap is not a notification capability", "kind", capability.KindOf(c).String())
			} else {
				d.logger.Debug("IRQSetHandler: caller does not have send rights on the notification")
			}
			return syserr.NewInvalidCapability(0)
		}
		d.ctx.CurrentThread().SetState(thread.Restart)
		d.table.InvokeSetIRQHandler(irq, ntfn, src)
		return nil

	case label.IRQClearIRQHandler:
		d.ctx.CurrentThread().SetState(thread.Restart)
		d.table.InvokeClearIRQHandler(irq)
		return nil

	default:
		d.logger.Debug("IRQHandler: illegal operation", "label", label.Name(lbl))
		return syserr.New(syserr.IllegalOperation)
	}
}
