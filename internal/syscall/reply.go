// Package syscall turns the outcome of an invocation into the reply the
// invoking thread sees in its registers.
package syscall

import (
	"fmt"

	"github.com/mattjoyce/capinvoke/internal/invocation"
	"github.com/mattjoyce/capinvoke/internal/msginfo"
	"github.com/mattjoyce/capinvoke/internal/syserr"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

// ReplySuccessFromKernel writes an empty, unbadged success reply.
func ReplySuccessFromKernel(t *thread.TCB) {
	t.SetRegister(thread.Badge, 0)
	t.SetRegister(thread.MsgInfo, msginfo.New(0, 0, 0, 0).Word())
}

// ReplyErrorFromKernel writes e into t's message registers and sets the
// reply label to e's wire code.
func ReplyErrorFromKernel(t *thread.TCB, e *syserr.Error) {
	t.SetRegister(thread.Badge, 0)
	n := SetMRsForSyscallError(t, e)
	t.SetRegister(thread.MsgInfo, msginfo.New(e.Kind.WireCode(), 0, 0, uint64(n)).Word())
}

// SetMRsForSyscallError marshals e's payload into message registers from
// index 0 and returns the number of words written. It panics on a kind
// outside the closed taxonomy.
func SetMRsForSyscallError(t *thread.TCB, e *syserr.Error) int {
	switch e.Kind {
	case syserr.InvalidArgument:
		return t.SetMR(0, e.InvalidArgumentNumber)
	case syserr.InvalidCapability:
		return t.SetMR(0, e.InvalidCapNumber)
	case syserr.RangeError:
		t.SetMR(0, e.RangeMin)
		return t.SetMR(1, e.RangeMax)
	case syserr.FailedLookup:
		t.SetMR(0, boolWord(e.FailedLookupWasSource))
		return t.SetLookupFaultMRs(1, e.LookupFault)
	case syserr.IllegalOperation,
		syserr.AlignmentError,
		syserr.TruncatedMessage,
		syserr.DeleteFirst,
		syserr.RevokeFirst:
		return 0
	case syserr.NotEnoughMemory:
		return t.SetMR(0, e.MemoryLeft)
	default:
		panic(fmt.Sprintf("invalid syscall error kind %d", uint64(e.Kind)))
	}
}

// HandleInvocation runs inv through d and writes the reply. On error the
// error reply is written and returned. On success a thread still in
// Restart was not blocked by the invocation: it gets an empty reply if it
// made a call, and runs again.
//
// Unlike seL4's handleInvocation, which replies only when the syscall is a
// call, the error reply is written for sends too.
func HandleInvocation(d *invocation.Dispatcher, inv invocation.Invocation) *syserr.Error {
	if err := d.DecodeInvocation(inv); err != nil {
		ReplyErrorFromKernel(inv.Thread, err)
		return err
	}

	if inv.Thread.State() == thread.Restart {
		if inv.Call {
			ReplySuccessFromKernel(inv.Thread)
		}
		inv.Thread.SetState(thread.Running)
	}
	return nil
}

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
