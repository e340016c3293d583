// Package scenario loads kernel scenarios from YAML and runs them step by
// step against a kernel.
//
// A scenario declares the kernel objects (CNodes with their slot contents,
// endpoints, notifications and threads) and an ordered list of steps. Each
// step is one syscall, a reply, a caller-cap save or a hardware interrupt.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/config"
	"github.com/mattjoyce/capinvoke/internal/label"
	"github.com/mattjoyce/capinvoke/internal/msginfo"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

// Op names what a step does.
type Op string

const (
	OpCall       Op = "call"
	OpSend       Op = "send"
	OpNBSend     Op = "nbsend"
	OpRecv       Op = "recv"
	OpNBRecv     Op = "nbrecv"
	OpReply      Op = "reply"
	OpSaveCaller Op = "save_caller"
	OpInterrupt  Op = "interrupt"
)

var knownOps = map[Op]bool{
	OpCall: true, OpSend: true, OpNBSend: true,
	OpRecv: true, OpNBRecv: true,
	OpReply: true, OpSaveCaller: true, OpInterrupt: true,
}

// Scenario is the parsed form of a scenario file.
type Scenario struct {
	Name          string       `yaml:"name"`
	MaxIRQ        *uint64      `yaml:"max_irq,omitempty"`
	Cores         *int         `yaml:"cores,omitempty"`
	CNodes        []CNodeSpec  `yaml:"cnodes"`
	Endpoints     []uint64     `yaml:"endpoints,omitempty"`
	Notifications []uint64     `yaml:"notifications,omitempty"`
	Threads       []ThreadSpec `yaml:"threads"`
	Steps         []StepSpec   `yaml:"steps"`

	// Source and Hash identify the file the scenario was loaded from.
	Source string `yaml:"-"`
	Hash   string `yaml:"-"`
}

// CNodeSpec declares a CNode table and the capabilities in its slots.
type CNodeSpec struct {
	Ptr   uint64 `yaml:"ptr"`
	Radix uint   `yaml:"radix"`
	// GuardSize is the guard width of capabilities naming this CNode when
	// they do not set their own. Unset means 64-radix, so a full-width cptr
	// resolves in this table alone.
	GuardSize *uint              `yaml:"guard_size,omitempty"`
	Slots     map[uint64]CapSpec `yaml:"slots,omitempty"`
}

func (c CNodeSpec) guardSize() uint {
	if c.GuardSize != nil {
		return *c.GuardSize
	}
	return 64 - c.Radix
}

// CapSpec describes one capability. Which fields apply depends on Kind.
type CapSpec struct {
	Kind   string   `yaml:"kind"`
	Ptr    uint64   `yaml:"ptr,omitempty"`
	Rights []string `yaml:"rights,omitempty"`
	Badge  uint64   `yaml:"badge,omitempty"`
	// Thread names the TCB a thread or reply capability refers to.
	Thread    string `yaml:"thread,omitempty"`
	Master    bool   `yaml:"master,omitempty"`
	IRQ       uint64 `yaml:"irq,omitempty"`
	Radix     *uint  `yaml:"radix,omitempty"`
	GuardSize *uint  `yaml:"guard_size,omitempty"`
	Guard     uint64 `yaml:"guard,omitempty"`
	SizeBits  uint   `yaml:"size_bits,omitempty"`
	// From is the slot index, in the same CNode, this capability is
	// derived from.
	From *uint64 `yaml:"from,omitempty"`
}

// ThreadSpec declares a thread.
type ThreadSpec struct {
	Name string `yaml:"name"`
	ID   uint64 `yaml:"id"`
	// CSpace is the pointer of the thread's root CNode.
	CSpace    uint64 `yaml:"cspace"`
	IPCBuffer bool   `yaml:"ipc_buffer"`
	State     string `yaml:"state,omitempty"`
}

// StepSpec is one scenario step.
type StepSpec struct {
	Core      int      `yaml:"core,omitempty"`
	Thread    string   `yaml:"thread,omitempty"`
	Op        Op       `yaml:"op"`
	CPtr      uint64   `yaml:"cptr,omitempty"`
	Label     string   `yaml:"label,omitempty"`
	Args      []uint64 `yaml:"args,omitempty"`
	ExtraCaps []uint64 `yaml:"extra_caps,omitempty"`
	IRQ       uint64   `yaml:"irq,omitempty"`
	Expect    *Expect  `yaml:"expect,omitempty"`
}

// Expect lists what a step must produce. Unset fields are not checked.
type Expect struct {
	Result string   `yaml:"result,omitempty"`
	State  string   `yaml:"state,omitempty"`
	Badge  *uint64  `yaml:"badge,omitempty"`
	MRs    []uint64 `yaml:"mrs,omitempty"`
}

// Load reads and validates the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	sc.Source = filepath.Base(path)
	return sc, nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	sc.Hash = config.HashBytes(data)
	return &sc, nil
}

// Validate reports every structural problem in the scenario at once.
func (s *Scenario) Validate() error {
	var errs []error

	if s.MaxIRQ != nil && *s.MaxIRQ > config.MaxIRQLimit {
		errs = append(errs, fmt.Errorf("max_irq must be at most %d (got %d)", config.MaxIRQLimit, *s.MaxIRQ))
	}

	cnodes := make(map[uint64]bool)
	for i, cn := range s.CNodes {
		if cn.Radix == 0 || cn.Radix > 16 {
			errs = append(errs, fmt.Errorf("cnodes[%d]: radix must be in [1, 16] (got %d)", i, cn.Radix))
		}
		if cnodes[cn.Ptr] {
			errs = append(errs, fmt.Errorf("cnodes[%d]: duplicate ptr %#x", i, cn.Ptr))
		}
		cnodes[cn.Ptr] = true
		if cn.guardSize()+cn.Radix > 64 {
			errs = append(errs, fmt.Errorf("cnodes[%d]: guard_size + radix exceeds 64 bits", i))
		}
		for idx, c := range cn.Slots {
			if cn.Radix <= 16 && idx >= 1<<cn.Radix {
				errs = append(errs, fmt.Errorf("cnodes[%d]: slot %d beyond radix %d", i, idx, cn.Radix))
			}
			if _, err := capability.ParseKind(c.Kind); err != nil {
				errs = append(errs, fmt.Errorf("cnodes[%d].slots[%d]: %w", i, idx, err))
			}
			if c.From != nil {
				if _, ok := cn.Slots[*c.From]; !ok {
					errs = append(errs, fmt.Errorf("cnodes[%d].slots[%d]: from slot %d is empty", i, idx, *c.From))
				}
			}
		}
	}

	threads := make(map[string]ThreadSpec)
	for i, th := range s.Threads {
		if th.Name == "" {
			errs = append(errs, fmt.Errorf("threads[%d]: name is required", i))
		}
		if _, dup := threads[th.Name]; dup {
			errs = append(errs, fmt.Errorf("threads[%d]: duplicate name %q", i, th.Name))
		}
		threads[th.Name] = th
		if !cnodes[th.CSpace] {
			errs = append(errs, fmt.Errorf("threads[%d] (%s): cspace %#x is not a declared cnode", i, th.Name, th.CSpace))
		}
		if th.State != "" {
			if _, err := thread.ParseState(th.State); err != nil {
				errs = append(errs, fmt.Errorf("threads[%d] (%s): %w", i, th.Name, err))
			}
		}
	}

	cores := 1
	if s.Cores != nil {
		cores = *s.Cores
	}
	for i, st := range s.Steps {
		if !knownOps[st.Op] {
			errs = append(errs, fmt.Errorf("steps[%d]: unknown op %q", i, st.Op))
			continue
		}
		if st.Core < 0 || st.Core >= cores {
			errs = append(errs, fmt.Errorf("steps[%d]: core %d out of range [0, %d)", i, st.Core, cores))
		}
		if st.Op == OpInterrupt {
			continue
		}
		th, ok := threads[st.Thread]
		if !ok {
			errs = append(errs, fmt.Errorf("steps[%d]: unknown thread %q", i, st.Thread))
			continue
		}
		if st.Label != "" {
			if _, err := label.Parse(st.Label); err != nil {
				errs = append(errs, fmt.Errorf("steps[%d]: %w", i, err))
			}
		}
		if len(st.ExtraCaps) > msginfo.MsgMaxExtraCaps {
			errs = append(errs, fmt.Errorf("steps[%d]: at most %d extra caps", i, msginfo.MsgMaxExtraCaps))
		}
		if len(st.ExtraCaps) > 0 && !th.IPCBuffer {
			errs = append(errs, fmt.Errorf("steps[%d]: extra caps need thread %q to have an ipc_buffer", i, st.Thread))
		}
		if len(st.Args) > msginfo.MsgMaxLength {
			errs = append(errs, fmt.Errorf("steps[%d]: at most %d args", i, msginfo.MsgMaxLength))
		}
		if st.Expect != nil && st.Expect.State != "" {
			if _, err := thread.ParseState(st.Expect.State); err != nil {
				errs = append(errs, fmt.Errorf("steps[%d].expect: %w", i, err))
			}
		}
	}

	return errors.Join(errs...)
}
