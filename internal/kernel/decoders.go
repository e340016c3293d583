package kernel

import (
	"log/slog"

	"github.com/mattjoyce/capinvoke/internal/arch"
	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/irq"
	"github.com/mattjoyce/capinvoke/internal/label"
	"github.com/mattjoyce/capinvoke/internal/syserr"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

// decoders routes delegated invocations to the decoders this kernel build
// carries. Thread, Domain, CNode and Untyped object management are not
// built in and are rejected as illegal operations.
type decoders struct {
	irqDecoder  *irq.Decoder
	archDecoder *arch.Decoder
	logger      *slog.Logger
}

func (d *decoders) DecodeIRQControl(lbl uint64, length int, slot *cspace.Slot, buf *thread.IPCBuffer) *syserr.Error {
	return d.irqDecoder.DecodeIRQControl(lbl, length, slot, buf)
}

func (d *decoders) DecodeIRQHandler(lbl uint64, line uint64) *syserr.Error {
	return d.irqDecoder.DecodeIRQHandler(lbl, line)
}

func (d *decoders) DecodeArch(lbl uint64, length int, c capability.Cap, slot *cspace.Slot, call bool, buf *thread.IPCBuffer) *syserr.Error {
	return d.archDecoder.DecodeArch(lbl, length, c, slot, call, buf)
}

func (d *decoders) unsupported(kind capability.Kind, lbl uint64) *syserr.Error {
	d.logger.Debug("invocation not supported by this kernel build", "kind", kind.String(), "label", label.Name(lbl))
	return syserr.New(syserr.IllegalOperation)
}

func (d *decoders) DecodeTCB(lbl uint64, length int, c capability.Thread, slot *cspace.Slot, call bool, buf *thread.IPCBuffer) *syserr.Error {
	return d.unsupported(capability.KindThread, lbl)
}

func (d *decoders) DecodeDomain(lbl uint64, length int, buf *thread.IPCBuffer) *syserr.Error {
	return d.unsupported(capability.KindDomain, lbl)
}

func (d *decoders) DecodeCNode(lbl uint64, length int, c capability.CNode, buf *thread.IPCBuffer) *syserr.Error {
	return d.unsupported(capability.KindCNode, lbl)
}

func (d *decoders) DecodeUntyped(lbl uint64, length int, slot *cspace.Slot, c capability.Untyped, buf *thread.IPCBuffer) *syserr.Error {
	return d.unsupported(capability.KindUntyped, lbl)
}
