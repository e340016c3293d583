// Package irq holds the interrupt line table and the invocations that bind
// lines to handler capabilities.
package irq

import (
	"fmt"
	"log/slog"

	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/syserr"
)

// State is the configuration of an interrupt line.
type State int

const (
	Inactive State = iota
	Signal
	Timer
	Reserved
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Signal:
		return "signal"
	case Timer:
		return "timer"
	case Reserved:
		return "reserved"
	}
	return fmt.Sprintf("irq_state(%d)", int(s))
}

// Signaler delivers a notification signal when a bound line fires.
type Signaler interface {
	SendSignal(ntfn capability.Pointer, badge uint64)
}

// Table holds, for every line 0..MaxIRQ, its state, its mask bit and the
// one fixed slot for its handler capability.
type Table struct {
	maxIRQ uint64
	states []State
	masked []bool
	slots  []*cspace.Slot
	logger *slog.Logger
}

// MaxIRQLimit is the largest maxIRQ a table can be built with.
const MaxIRQLimit = 1023

// NewTable returns a table with every line inactive and masked. It panics
// if maxIRQ exceeds MaxIRQLimit.
func NewTable(maxIRQ uint64, logger *slog.Logger) *Table {
	if maxIRQ > MaxIRQLimit {
		panic(fmt.Sprintf("irq table: max irq %d exceeds limit %d", maxIRQ, MaxIRQLimit))
	}
	n := maxIRQ + 1
	t := &Table{
		maxIRQ: maxIRQ,
		states: make([]State, n),
		masked: make([]bool, n),
		slots:  make([]*cspace.Slot, n),
		logger: logger,
	}
	for i := range t.slots {
		t.slots[i] = cspace.NewSlot()
		t.masked[i] = true
	}
	return t
}

func (t *Table) MaxIRQ() uint64 {
	return t.maxIRQ
}

func (t *Table) State(irq uint64) State {
	return t.states[irq]
}

func (t *Table) SetState(state State, irq uint64) {
	t.states[irq] = state
}

// IsActive reports whether irq has been issued to a handler.
func (t *Table) IsActive(irq uint64) bool {
	return t.states[irq] != Inactive
}

func (t *Table) Masked(irq uint64) bool {
	return t.masked[irq]
}

func (t *Table) maskInterrupt(disable bool, irq uint64) {
	t.masked[irq] = disable
}

// HandlerSlot returns the fixed handler slot of irq.
func (t *Table) HandlerSlot(irq uint64) *cspace.Slot {
	return t.slots[irq]
}

// InvokeIRQControl marks irq as signalling and places a fresh handler
// capability for it in handlerSlot, derived from controlSlot. Range and
// availability checks belong to the decoder; this step always succeeds.
func (t *Table) InvokeIRQControl(irq uint64, handlerSlot, controlSlot *cspace.Slot) *syserr.Error {
	t.SetState(Signal, irq)
	mustInsert(capability.NewIRQHandler(irq), controlSlot, handlerSlot)
	return nil
}

// InvokeSetIRQHandler replaces the occupant of irq's handler slot with c,
// derived from src. The previous occupant and everything derived from it
// are deleted first.
func (t *Table) InvokeSetIRQHandler(irq uint64, c capability.Cap, src *cspace.Slot) {
	slot := t.HandlerSlot(irq)
	cspace.DeleteOne(slot)
	mustInsert(c, src, slot)
}

// InvokeClearIRQHandler empties irq's handler slot.
func (t *Table) InvokeClearIRQHandler(irq uint64) {
	cspace.DeleteOne(t.HandlerSlot(irq))
}

// InvokeAckIRQ unmasks irq so that it can fire again.
func (t *Table) InvokeAckIRQ(irq uint64) {
	t.maskInterrupt(false, irq)
}

// HandleInterrupt delivers a hardware interrupt on irq. A signalling line
// with a notification handler signals it with that capability's badge and
// stays masked until acknowledged.
func (t *Table) HandleInterrupt(irq uint64, s Signaler) {
	if irq > t.maxIRQ {
		t.logger.Warn("received irq beyond table", "irq", irq, "max_irq", t.maxIRQ)
		return
	}

	switch t.states[irq] {
	case Signal:
		if ntfn, ok := t.slots[irq].Cap().(capability.Notification); ok && ntfn.CanSend {
			s.SendSignal(ntfn.Ptr, ntfn.Badge)
		} else {
			t.logger.Debug("undelivered irq: no notification bound", "irq", irq)
		}
		t.maskInterrupt(true, irq)
	case Inactive:
		t.logger.Warn("received disabled irq", "irq", irq)
		t.maskInterrupt(true, irq)
	case Timer, Reserved:
	}
}

func mustInsert(c capability.Cap, src, dest *cspace.Slot) {
	if err := cspace.Insert(c, src, dest); err != nil {
		panic(fmt.Sprintf("irq: %v", err))
	}
}
