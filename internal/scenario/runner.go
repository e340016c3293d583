package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/config"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/kernel"
	"github.com/mattjoyce/capinvoke/internal/label"
	"github.com/mattjoyce/capinvoke/internal/msginfo"
	"github.com/mattjoyce/capinvoke/internal/thread"
	"github.com/mattjoyce/capinvoke/internal/trace"
)

const (
	resultCapFault = "cap_fault"
	resultRejected = "rejected"
)

// Outcome is the result of running a scenario. Failures lists the expect
// clauses that did not hold.
type Outcome struct {
	Run      trace.Run
	Failures []string
}

// Passed reports whether every expectation held.
func (o *Outcome) Passed() bool {
	return len(o.Failures) == 0
}

// Runner builds a kernel for one scenario and executes its steps.
type Runner struct {
	sc      *Scenario
	kernel  *kernel.Kernel
	threads map[string]*thread.TCB
	logger  *slog.Logger
}

// NewRunner builds the kernel objects sc declares. cfg sizes the kernel
// unless the scenario overrides it.
func NewRunner(sc *Scenario, cfg config.KernelConfig, logger *slog.Logger) (*Runner, error) {
	if sc.MaxIRQ != nil {
		cfg.MaxIRQ = *sc.MaxIRQ
	}
	if sc.Cores != nil {
		cfg.Cores = *sc.Cores
	}
	k, err := kernel.New(kernel.Options{MaxIRQ: cfg.MaxIRQ, Cores: cfg.Cores, Logger: logger})
	if err != nil {
		return nil, err
	}

	r := &Runner{
		sc:      sc,
		kernel:  k,
		threads: make(map[string]*thread.TCB),
		logger:  logger,
	}
	if err := r.build(); err != nil {
		return nil, err
	}
	return r, nil
}

// Kernel exposes the kernel the runner drives.
func (r *Runner) Kernel() *kernel.Kernel {
	return r.kernel
}

// Thread returns the thread declared under name.
func (r *Runner) Thread(name string) (*thread.TCB, bool) {
	t, ok := r.threads[name]
	return t, ok
}

func (r *Runner) build() error {
	cnodeSpecs := make(map[uint64]CNodeSpec)
	for _, spec := range r.sc.CNodes {
		if _, err := r.kernel.CSpace.NewCNode(capability.Pointer(spec.Ptr), spec.Radix); err != nil {
			return err
		}
		cnodeSpecs[spec.Ptr] = spec
	}
	for _, ptr := range r.sc.Endpoints {
		if _, err := r.kernel.IPC.NewEndpoint(capability.Pointer(ptr)); err != nil {
			return err
		}
	}
	for _, ptr := range r.sc.Notifications {
		if _, err := r.kernel.IPC.NewNotification(capability.Pointer(ptr)); err != nil {
			return err
		}
	}

	for _, spec := range r.sc.Threads {
		t := thread.New(capability.Pointer(spec.ID), spec.Name)
		if spec.IPCBuffer {
			t.Buffer = &thread.IPCBuffer{}
		}
		state := thread.Running
		if spec.State != "" {
			s, err := thread.ParseState(spec.State)
			if err != nil {
				return err
			}
			state = s
		}
		t.SetState(state)
		if err := r.kernel.IPC.AddThread(t); err != nil {
			return err
		}
		r.threads[spec.Name] = t
	}

	for _, spec := range r.sc.CNodes {
		if err := r.fillSlots(spec, cnodeSpecs); err != nil {
			return err
		}
	}

	for _, spec := range r.sc.Threads {
		root := cnodeCap(cnodeSpecs[spec.CSpace], nil, nil)
		if err := cspace.Insert(root, nil, r.threads[spec.Name].CSpaceRoot); err != nil {
			return fmt.Errorf("thread %s cspace root: %w", spec.Name, err)
		}
	}
	return nil
}

// fillSlots inserts spec's capabilities, parents before the slots derived
// from them.
func (r *Runner) fillSlots(spec CNodeSpec, cnodeSpecs map[uint64]CNodeSpec) error {
	table, _ := r.kernel.CSpace.Get(capability.Pointer(spec.Ptr))

	pending := make([]uint64, 0, len(spec.Slots))
	for idx := range spec.Slots {
		pending = append(pending, idx)
	}
	slices.Sort(pending)

	for len(pending) > 0 {
		progressed := false
		for i := 0; i < len(pending); i++ {
			idx := pending[i]
			cs := spec.Slots[idx]
			var parent *cspace.Slot
			if cs.From != nil {
				parent = table.Slot(*cs.From)
				if parent.IsEmpty() {
					continue
				}
			}
			c, err := r.buildCap(cs, cnodeSpecs)
			if err != nil {
				return fmt.Errorf("cnode %#x slot %d: %w", spec.Ptr, idx, err)
			}
			if err := cspace.Insert(c, parent, table.Slot(idx)); err != nil {
				return fmt.Errorf("cnode %#x slot %d: %w", spec.Ptr, idx, err)
			}
			pending = slices.Delete(pending, i, i+1)
			i--
			progressed = true
		}
		if !progressed {
			return fmt.Errorf("cnode %#x: derivation cycle among slots %v", spec.Ptr, pending)
		}
	}
	return nil
}

func (r *Runner) buildCap(cs CapSpec, cnodeSpecs map[uint64]CNodeSpec) (capability.Cap, error) {
	kind, err := capability.ParseKind(cs.Kind)
	if err != nil {
		return nil, err
	}
	rights, err := parseRights(cs.Rights)
	if err != nil {
		return nil, err
	}
	ptr := capability.Pointer(cs.Ptr)

	switch kind {
	case capability.KindNull:
		return nil, fmt.Errorf("null capabilities cannot be placed in a slot")
	case capability.KindZombie:
		return capability.Zombie{Ptr: ptr}, nil
	case capability.KindEndpoint:
		return capability.Endpoint{
			Ptr:           ptr,
			CanSend:       rights["send"],
			CanReceive:    rights["receive"],
			CanGrant:      rights["grant"],
			CanGrantReply: rights["grant_reply"],
			Badge:         cs.Badge,
		}, nil
	case capability.KindNotification:
		return capability.Notification{
			Ptr:        ptr,
			CanSend:    rights["send"],
			CanReceive: rights["receive"],
			Badge:      cs.Badge,
		}, nil
	case capability.KindReply:
		t, ok := r.threads[cs.Thread]
		if !ok {
			return nil, fmt.Errorf("reply cap names unknown thread %q", cs.Thread)
		}
		return capability.Reply{TCB: t.ID, Master: cs.Master, CanGrant: rights["grant"]}, nil
	case capability.KindThread:
		t, ok := r.threads[cs.Thread]
		if !ok {
			return nil, fmt.Errorf("thread cap names unknown thread %q", cs.Thread)
		}
		return capability.Thread{TCB: t.ID}, nil
	case capability.KindDomain:
		return capability.Domain{}, nil
	case capability.KindCNode:
		target, ok := cnodeSpecs[cs.Ptr]
		if !ok {
			return nil, fmt.Errorf("cnode cap names undeclared cnode %#x", cs.Ptr)
		}
		c := cnodeCap(target, cs.Radix, cs.GuardSize)
		if c.Radix != target.Radix {
			return nil, fmt.Errorf("cnode cap radix %d does not match cnode %#x radix %d", c.Radix, cs.Ptr, target.Radix)
		}
		if c.GuardSize+c.Radix > cspace.WordBits {
			return nil, fmt.Errorf("cnode cap guard_size + radix exceeds %d bits", cspace.WordBits)
		}
		c.Guard = cs.Guard
		return c, nil
	case capability.KindUntyped:
		return capability.Untyped{Ptr: ptr, SizeBits: cs.SizeBits}, nil
	case capability.KindIRQControl:
		return capability.IRQControl{}, nil
	case capability.KindIRQHandler:
		if limit := r.kernel.IRQ.MaxIRQ(); cs.IRQ > limit {
			return nil, fmt.Errorf("irq handler for line %d beyond max_irq %d", cs.IRQ, limit)
		}
		return capability.NewIRQHandler(cs.IRQ), nil
	case capability.KindFrame:
		return capability.Frame{Ptr: ptr, SizeBits: cs.SizeBits}, nil
	case capability.KindPageTable:
		return capability.PageTable{Ptr: ptr}, nil
	case capability.KindASIDControl:
		return capability.ASIDControl{}, nil
	case capability.KindASIDPool:
		return capability.ASIDPool{Ptr: ptr}, nil
	}
	return nil, fmt.Errorf("unsupported capability kind %s", kind)
}

func cnodeCap(spec CNodeSpec, radix, guardSize *uint) capability.CNode {
	c := capability.CNode{Ptr: capability.Pointer(spec.Ptr), Radix: spec.Radix, GuardSize: spec.guardSize()}
	if radix != nil {
		c.Radix = *radix
	}
	if guardSize != nil {
		c.GuardSize = *guardSize
	}
	return c
}

func parseRights(names []string) (map[string]bool, error) {
	rights := make(map[string]bool, len(names))
	for _, n := range names {
		switch n {
		case "send", "receive", "grant", "grant_reply":
			rights[n] = true
		default:
			return nil, fmt.Errorf("unknown right %q", n)
		}
	}
	return rights, nil
}

// Run executes every step in order and returns what each one produced.
func (r *Runner) Run() (*Outcome, error) {
	out := &Outcome{
		Run: trace.Run{
			Scenario:     r.sc.Source,
			ScenarioHash: r.sc.Hash,
			Cores:        r.kernel.NumCores(),
			MaxIRQ:       r.kernel.IRQ.MaxIRQ(),
			StartedAt:    time.Now().UTC(),
		},
	}
	if out.Run.Scenario == "" {
		out.Run.Scenario = r.sc.Name
	}

	for i, spec := range r.sc.Steps {
		st, err := r.step(i, spec)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		out.Run.Steps = append(out.Run.Steps, st)
		if spec.Expect != nil {
			for _, f := range checkExpect(*spec.Expect, st) {
				out.Failures = append(out.Failures, fmt.Sprintf("step %d (%s %s): %s", i, spec.Op, spec.Thread, f))
			}
		}
		r.logger.Debug("scenario step", "seq", i, "op", string(spec.Op), "thread", spec.Thread, "result", st.Result)
	}

	completed := time.Now().UTC()
	out.Run.CompletedAt = &completed
	out.Run.StepCount = len(out.Run.Steps)
	for _, st := range out.Run.Steps {
		if st.IsError() {
			out.Run.ErrorCount++
		}
	}
	return out, nil
}

func (r *Runner) step(seq int, spec StepSpec) (trace.Step, error) {
	core, err := r.kernel.Core(spec.Core)
	if err != nil {
		return trace.Step{}, err
	}
	st := trace.Step{
		Seq:    seq,
		Core:   spec.Core,
		Thread: spec.Thread,
		Op:     string(spec.Op),
		CPtr:   spec.CPtr,
		Result: trace.ResultOK,
	}

	if spec.Op == OpInterrupt {
		st.Label = fmt.Sprintf("irq(%d)", spec.IRQ)
		r.kernel.Interrupt(spec.IRQ)
		if t, ok := r.threads[spec.Thread]; ok {
			snapshot(&st, t)
		}
		return st, nil
	}

	t, ok := r.threads[spec.Thread]
	if !ok {
		return st, fmt.Errorf("unknown thread %q", spec.Thread)
	}

	// A blocked thread cannot trap; leave its registers untouched.
	if err := kernel.CheckRunnable(t); err != nil {
		st.Result = resultRejected
		st.Fault = err.Error()
		snapshot(&st, t)
		return st, nil
	}

	var opErr error
	switch spec.Op {
	case OpCall, OpSend, OpNBSend:
		lbl := label.InvalidInvocation
		if spec.Label != "" {
			if lbl, err = label.Parse(spec.Label); err != nil {
				return st, err
			}
		}
		st.Label = label.Name(lbl)
		loadMessage(t, lbl, spec.Args, spec.ExtraCaps)

		sys := map[Op]kernel.Syscall{OpCall: kernel.SysCall, OpSend: kernel.SysSend, OpNBSend: kernel.SysNBSend}[spec.Op]
		serr, err := core.Invoke(t, sys, spec.CPtr)
		if err != nil {
			opErr = err
		} else if serr != nil {
			st.Result = serr.Kind.String()
			st.Fault = serr.Error()
		}
	case OpRecv, OpNBRecv:
		opErr = core.Recv(t, spec.CPtr, spec.Op == OpRecv)
	case OpReply:
		loadMessage(t, label.InvalidInvocation, spec.Args, nil)
		core.Reply(t)
	case OpSaveCaller:
		opErr = core.SaveCaller(t, spec.CPtr)
	}

	if opErr != nil {
		var fault *kernel.CapFault
		if errors.As(opErr, &fault) {
			st.Result = resultCapFault
		} else {
			st.Result = resultRejected
		}
		st.Fault = opErr.Error()
	}
	snapshot(&st, t)
	return st, nil
}

// loadMessage writes a message into t's registers and IPC buffer the way
// user space would before trapping.
func loadMessage(t *thread.TCB, lbl uint64, args, extraCaps []uint64) {
	n := len(args)
	for i, a := range args {
		if next := t.SetMR(i, a); next <= i {
			n = i
			break
		}
	}
	if t.Buffer != nil {
		copy(t.Buffer.Caps[:], extraCaps)
	}
	t.SetRegister(thread.MsgInfo, msginfo.New(lbl, 0, uint64(len(extraCaps)), uint64(n)).Word())
}

func snapshot(st *trace.Step, t *thread.TCB) {
	info := msginfo.FromWord(t.Register(thread.MsgInfo))
	st.Thread = t.Name
	st.MsgInfo = t.Register(thread.MsgInfo)
	st.Badge = t.Register(thread.Badge)
	st.State = t.State().String()

	n := int(info.Length)
	if t.Buffer == nil && n > thread.NumMsgRegisters {
		n = thread.NumMsgRegisters
	}
	st.MRs = make([]uint64, n)
	for i := range n {
		st.MRs[i] = t.MR(i)
	}

	regs := t.Registers()
	st.RegDigest = trace.RegisterDigest(regs[:])
}

func checkExpect(e Expect, st trace.Step) []string {
	var failures []string
	if e.Result != "" && e.Result != st.Result {
		failures = append(failures, fmt.Sprintf("result = %s, want %s", st.Result, e.Result))
	}
	if e.State != "" && e.State != st.State {
		failures = append(failures, fmt.Sprintf("state = %s, want %s", st.State, e.State))
	}
	if e.Badge != nil && *e.Badge != st.Badge {
		failures = append(failures, fmt.Sprintf("badge = %#x, want %#x", st.Badge, *e.Badge))
	}
	if e.MRs != nil && !slices.Equal(e.MRs, st.MRs) {
		failures = append(failures, fmt.Sprintf("mrs = %v, want %v", st.MRs, e.MRs))
	}
	return failures
}
