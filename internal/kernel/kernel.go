// Package kernel wires the invocation layer into per-core contexts.
//
// A Kernel owns the objects every core can reach: the CSpace directory, the
// IRQ table and the IPC system. A Core owns what exists for the duration
// of one syscall on one CPU: the invoking thread and the extra capabilities
// resolved for it. A Core is used by one goroutine at a time and its
// scratch state is never shared with another Core.
package kernel

import (
	"fmt"
	"log/slog"

	"github.com/mattjoyce/capinvoke/internal/arch"
	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/invocation"
	"github.com/mattjoyce/capinvoke/internal/ipc"
	"github.com/mattjoyce/capinvoke/internal/irq"
	"github.com/mattjoyce/capinvoke/internal/msginfo"
	"github.com/mattjoyce/capinvoke/internal/syscall"
	"github.com/mattjoyce/capinvoke/internal/syserr"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

// Options configures a Kernel.
type Options struct {
	MaxIRQ uint64
	Cores  int
	Logger *slog.Logger
}

// Kernel holds the shared kernel objects and one Core per CPU.
type Kernel struct {
	CSpace *cspace.Directory
	IRQ    *irq.Table
	IPC    *ipc.System

	cores  []*Core
	logger *slog.Logger
}

func New(opts Options) (*Kernel, error) {
	if opts.Cores <= 0 {
		return nil, fmt.Errorf("kernel needs at least one core, got %d", opts.Cores)
	}
	if opts.MaxIRQ > irq.MaxIRQLimit {
		return nil, fmt.Errorf("max irq %d exceeds limit %d", opts.MaxIRQ, irq.MaxIRQLimit)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	k := &Kernel{
		CSpace: cspace.NewDirectory(),
		IRQ:    irq.NewTable(opts.MaxIRQ, logger.With("component", "irq")),
		IPC:    ipc.NewSystem(logger.With("component", "ipc")),
		logger: logger,
	}
	for i := range opts.Cores {
		k.cores = append(k.cores, newCore(k, i))
	}
	return k, nil
}

// Core returns core i.
func (k *Kernel) Core(i int) (*Core, error) {
	if i < 0 || i >= len(k.cores) {
		return nil, fmt.Errorf("core %d out of range [0, %d)", i, len(k.cores))
	}
	return k.cores[i], nil
}

// NumCores returns how many cores the kernel was built with.
func (k *Kernel) NumCores() int {
	return len(k.cores)
}

// Interrupt delivers a hardware interrupt on irq.
func (k *Kernel) Interrupt(irq uint64) {
	k.IRQ.HandleInterrupt(irq, k.IPC)
}

type extraCap struct {
	cap  capability.Cap
	slot *cspace.Slot
}

// Core is the per-CPU syscall context.
type Core struct {
	ID int

	kernel     *Kernel
	dispatcher *invocation.Dispatcher
	logger     *slog.Logger

	current   *thread.TCB
	extraCaps []extraCap
}

func newCore(k *Kernel, id int) *Core {
	logger := k.logger.With("core", id)
	c := &Core{ID: id, kernel: k, logger: logger}
	dec := &decoders{
		irqDecoder:  irq.NewDecoder(k.IRQ, k.CSpace, c, logger.With("component", "irq_decode")),
		archDecoder: arch.NewDecoder(logger.With("component", "arch_decode")),
		logger:      logger.With("component", "decode"),
	}
	c.dispatcher = invocation.New(k.IPC, dec, logger.With("component", "invocation"))
	return c
}

// CurrentThread returns the thread whose syscall the core is running, or
// nil between syscalls.
func (c *Core) CurrentThread() *thread.TCB {
	return c.current
}

// ExtraCap returns extra capability i resolved for the current syscall.
func (c *Core) ExtraCap(i int) (capability.Cap, *cspace.Slot, bool) {
	if i < 0 || i >= len(c.extraCaps) {
		return nil, nil, false
	}
	return c.extraCaps[i].cap, c.extraCaps[i].slot, true
}

// Syscall selects the send semantics of an invocation.
type Syscall int

const (
	SysCall Syscall = iota
	SysSend
	SysNBSend
)

func (s Syscall) String() string {
	switch s {
	case SysCall:
		return "call"
	case SysSend:
		return "send"
	case SysNBSend:
		return "nbsend"
	}
	return fmt.Sprintf("syscall(%d)", int(s))
}

// ParseSyscall maps a syscall name as produced by String back to a Syscall.
func ParseSyscall(name string) (Syscall, error) {
	for _, s := range []Syscall{SysCall, SysSend, SysNBSend} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown syscall %q", name)
}

// CapFault is returned when the capability a thread names cannot be found.
// Delivering the fault to the thread's fault handler is outside the
// invocation layer, so the caller receives it as a Go error instead.
type CapFault struct {
	CPtr  uint64
	Fault syserr.LookupFault
}

func (f *CapFault) Error() string {
	return fmt.Sprintf("cap fault at cptr %#x: %s", f.CPtr, f.Fault)
}

// NotRunnableError reports a syscall attempted by a thread that is blocked
// or inactive.
type NotRunnableError struct {
	Thread string
	State  thread.State
}

func (e *NotRunnableError) Error() string {
	return fmt.Sprintf("thread %s is %s and cannot make a syscall", e.Thread, e.State)
}

// CheckRunnable returns a *NotRunnableError unless t may trap into the
// kernel.
func CheckRunnable(t *thread.TCB) error {
	if !t.State().IsRunnable() {
		return &NotRunnableError{Thread: t.Name, State: t.State()}
	}
	return nil
}

// Invoke runs an invocation syscall for t on the capability at cptr. The
// message info in t's MsgInfo register gives the label, length and extra
// cap count. The returned *syserr.Error is the structured error already
// written to t's reply registers; the Go error reports a cap fault or a
// thread that cannot trap, either of which stops decoding.
func (c *Core) Invoke(t *thread.TCB, sys Syscall, cptr uint64) (*syserr.Error, error) {
	if err := CheckRunnable(t); err != nil {
		return nil, err
	}
	dir := c.kernel.CSpace
	slot, fault := dir.LookupSlot(t.CSpaceRoot.Cap(), cptr)
	if fault != nil {
		return nil, &CapFault{CPtr: cptr, Fault: *fault}
	}

	info := msginfo.FromWord(t.Register(thread.MsgInfo))
	extras := make([]extraCap, 0, info.ExtraCaps)
	if t.Buffer != nil {
		for i := range int(info.ExtraCaps) {
			extraPtr := t.Buffer.Caps[i]
			s, fault := dir.LookupSlot(t.CSpaceRoot.Cap(), extraPtr)
			if fault != nil {
				return nil, &CapFault{CPtr: extraPtr, Fault: *fault}
			}
			extras = append(extras, extraCap{cap: s.Cap(), slot: s})
		}
	}

	length := int(info.Length)
	if length > thread.NumMsgRegisters && t.Buffer == nil {
		length = thread.NumMsgRegisters
	}

	c.current = t
	c.extraCaps = extras
	defer func() {
		c.current = nil
		c.extraCaps = nil
	}()

	inv := invocation.Invocation{
		Thread:   t,
		Label:    info.Label,
		Length:   length,
		Slot:     slot,
		Cap:      slot.Cap(),
		CapIndex: cptr,
		Block:    sys != SysNBSend,
		Call:     sys == SysCall,
		Buffer:   t.Buffer,
	}
	c.logger.Debug("invoke", "thread", t.Name, "syscall", sys.String(), "cptr", cptr,
		"kind", capability.KindOf(inv.Cap).String(), "label", info.Label)
	return syscall.HandleInvocation(c.dispatcher, inv), nil
}

// Recv waits on the endpoint or notification at cptr. Any reply capability
// left in t's caller slot is deleted first.
func (c *Core) Recv(t *thread.TCB, cptr uint64, block bool) error {
	if err := CheckRunnable(t); err != nil {
		return err
	}
	slot, fault := c.kernel.CSpace.LookupSlot(t.CSpaceRoot.Cap(), cptr)
	if fault != nil {
		return &CapFault{CPtr: cptr, Fault: *fault}
	}

	switch obj := slot.Cap().(type) {
	case capability.Endpoint:
		if !obj.CanReceive {
			return fmt.Errorf("recv: endpoint at cptr %#x lacks the receive right", cptr)
		}
		cspace.DeleteOne(t.CallerSlot)
		c.kernel.IPC.ReceiveIPC(obj.Ptr, t, block, obj.CanGrant)
	case capability.Notification:
		if !obj.CanReceive {
			return fmt.Errorf("recv: notification at cptr %#x lacks the receive right", cptr)
		}
		c.kernel.IPC.Wait(obj.Ptr, t, block)
	default:
		return fmt.Errorf("recv: cptr %#x names a %s capability", cptr, capability.KindOf(obj))
	}
	return nil
}

// Reply answers the call t last received, using the reply capability in
// t's caller slot. Without one the reply is dropped.
func (c *Core) Reply(t *thread.TCB) {
	reply, ok := t.CallerSlot.Cap().(capability.Reply)
	if !ok {
		c.logger.Debug("reply with no caller", "thread", t.Name)
		return
	}
	c.kernel.IPC.DoReply(t, reply.TCB, t.CallerSlot, reply.CanGrant)
}

// SaveCaller moves the reply capability in t's caller slot into the empty
// slot at cptr, so that it can later be invoked like any other capability.
func (c *Core) SaveCaller(t *thread.TCB, cptr uint64) error {
	slot, fault := c.kernel.CSpace.LookupSlot(t.CSpaceRoot.Cap(), cptr)
	if fault != nil {
		return &CapFault{CPtr: cptr, Fault: *fault}
	}
	if err := cspace.Move(t.CallerSlot, slot); err != nil {
		return fmt.Errorf("save caller: %w", err)
	}
	return nil
}
