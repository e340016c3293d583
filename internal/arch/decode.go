// Package arch decodes invocations on architecture-specific capabilities.
//
// Every kind the generic dispatcher does not enumerate ends up here, so the
// decoder matches exhaustively on its own closed set and rejects anything
// else instead of letting it fall through.
package arch

import (
	"log/slog"

	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/label"
	"github.com/mattjoyce/capinvoke/internal/syserr"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

// Decoder rejects MMU invocations: page-table management is not part of
// this kernel build.
type Decoder struct {
	logger *slog.Logger
}

func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger}
}

func (d *Decoder) DecodeArch(lbl uint64, length int, c capability.Cap, slot *cspace.Slot, call bool, buf *thread.IPCBuffer) *syserr.Error {
	switch c.(type) {
	case capability.Frame, capability.PageTable, capability.ASIDControl, capability.ASIDPool:
		d.logger.Debug("MMU invocation not supported",
			"kind", c.Kind().String(), "label", label.Name(lbl), "length", length)
		return syserr.New(syserr.IllegalOperation)
	default:
		d.logger.Error("architecture decoder received a non-architecture capability",
			"kind", capability.KindOf(c).String())
		return syserr.NewInvalidCapability(0)
	}
}
