package syscall

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mattjoyce/capinvoke/internal/arch"
	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/invocation"
	"github.com/mattjoyce/capinvoke/internal/ipc"
	"github.com/mattjoyce/capinvoke/internal/msginfo"
	"github.com/mattjoyce/capinvoke/internal/syserr"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

func TestSetMRsForSyscallError(t *testing.T) {
	tests := []struct {
		name  string
		err   *syserr.Error
		words []uint64
	}{
		{"invalid argument", syserr.NewInvalidArgument(2), []uint64{2}},
		{"invalid capability", syserr.NewInvalidCapability(1), []uint64{1}},
		{"range error", syserr.NewRangeError(1, 64), []uint64{1, 64}},
		{"illegal operation", syserr.New(syserr.IllegalOperation), nil},
		{"alignment error", syserr.New(syserr.AlignmentError), nil},
		{"truncated message", syserr.New(syserr.TruncatedMessage), nil},
		{"delete first", syserr.New(syserr.DeleteFirst), nil},
		{"revoke first", syserr.New(syserr.RevokeFirst), nil},
		{"not enough memory", syserr.NewNotEnoughMemory(4096), []uint64{4096}},
		{"failed lookup invalid root", syserr.NewFailedLookup(true, syserr.NewInvalidRoot()), []uint64{1, 1}},
		{"failed lookup missing cap", syserr.NewFailedLookup(false, syserr.NewMissingCapability(9)), []uint64{0, 2, 9}},
		{"failed lookup depth mismatch", syserr.NewFailedLookup(false, syserr.NewDepthMismatch(3, 0)), []uint64{0, 3, 3, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tcb := thread.New(1, "t")
			n := SetMRsForSyscallError(tcb, tt.err)
			assert.Equal(t, len(tt.words), n)
			for i, w := range tt.words {
				assert.Equal(t, w, tcb.MR(i), "mr %d", i)
			}
		})
	}
}

func TestSetMRsForSyscallError_GuardMismatchNeedsBuffer(t *testing.T) {
	err := syserr.NewFailedLookup(true, syserr.NewGuardMismatch(10, 5, 2))

	noBuf := thread.New(1, "nobuf")
	assert.Equal(t, thread.NumMsgRegisters, SetMRsForSyscallError(noBuf, err))
	assert.Equal(t, []uint64{1, 4, 10, 5}, []uint64{noBuf.MR(0), noBuf.MR(1), noBuf.MR(2), noBuf.MR(3)})

	withBuf := thread.New(2, "buf")
	withBuf.Buffer = &thread.IPCBuffer{}
	assert.Equal(t, 5, SetMRsForSyscallError(withBuf, err))
	assert.Equal(t, uint64(2), withBuf.MR(4))
}

func TestSetMRsForSyscallError_PanicsOnUnknownKind(t *testing.T) {
	tcb := thread.New(1, "t")
	assert.PanicsWithValue(t, "invalid syscall error kind 99", func() {
		SetMRsForSyscallError(tcb, &syserr.Error{Kind: 99})
	})
}

func TestReplyErrorFromKernel(t *testing.T) {
	tcb := thread.New(1, "t")
	tcb.SetRegister(thread.Badge, 77)

	ReplyErrorFromKernel(tcb, syserr.NewRangeError(0, 31))

	info := msginfo.FromWord(tcb.Register(thread.MsgInfo))
	assert.Equal(t, uint64(syserr.RangeError), info.Label)
	assert.Equal(t, uint64(2), info.Length)
	assert.Zero(t, info.ExtraCaps)
	assert.Zero(t, info.CapsUnwrapped)
	assert.Zero(t, tcb.Register(thread.Badge))
	assert.Equal(t, uint64(31), tcb.MR(1))
}

func TestReplySuccessFromKernel(t *testing.T) {
	tcb := thread.New(1, "t")
	tcb.SetRegister(thread.Badge, 77)
	tcb.SetRegister(thread.MsgInfo, msginfo.New(5, 1, 1, 3).Word())

	ReplySuccessFromKernel(tcb)

	assert.Zero(t, tcb.Register(thread.Badge))
	assert.Zero(t, tcb.Register(thread.MsgInfo))
}

type rejectingDecoders struct{ *arch.Decoder }

func (rejectingDecoders) DecodeTCB(uint64, int, capability.Thread, *cspace.Slot, bool, *thread.IPCBuffer) *syserr.Error {
	return syserr.New(syserr.IllegalOperation)
}
func (rejectingDecoders) DecodeDomain(uint64, int, *thread.IPCBuffer) *syserr.Error {
	return syserr.New(syserr.IllegalOperation)
}
func (rejectingDecoders) DecodeCNode(uint64, int, capability.CNode, *thread.IPCBuffer) *syserr.Error {
	return syserr.New(syserr.IllegalOperation)
}
func (rejectingDecoders) DecodeUntyped(uint64, int, *cspace.Slot, capability.Untyped, *thread.IPCBuffer) *syserr.Error {
	return syserr.New(syserr.IllegalOperation)
}
func (rejectingDecoders) DecodeIRQControl(uint64, int, *cspace.Slot, *thread.IPCBuffer) *syserr.Error {
	return syserr.New(syserr.IllegalOperation)
}
func (rejectingDecoders) DecodeIRQHandler(uint64, uint64) *syserr.Error {
	return syserr.New(syserr.IllegalOperation)
}

func newDispatcher(t *testing.T) (*invocation.Dispatcher, *ipc.System) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sys := ipc.NewSystem(logger)
	return invocation.New(sys, rejectingDecoders{arch.NewDecoder(logger)}, logger), sys
}

func TestHandleInvocation_ErrorWritesReply(t *testing.T) {
	d, _ := newDispatcher(t)
	tcb := thread.New(1, "caller")
	tcb.SetState(thread.Running)

	err := HandleInvocation(d, invocation.Invocation{Thread: tcb, Cap: capability.Null{}, Call: true})

	if assert.NotNil(t, err) {
		assert.Equal(t, syserr.InvalidCapability, err.Kind)
	}
	assert.Equal(t, thread.Running, tcb.State())
	info := msginfo.FromWord(tcb.Register(thread.MsgInfo))
	assert.Equal(t, uint64(syserr.InvalidCapability), info.Label)
	assert.Equal(t, uint64(1), info.Length)
	assert.Zero(t, tcb.MR(0))
}

func TestHandleInvocation_SendErrorWritesReply(t *testing.T) {
	d, _ := newDispatcher(t)
	tcb := thread.New(1, "sender")
	tcb.SetState(thread.Running)
	tcb.SetRegister(thread.MsgInfo, msginfo.New(9, 0, 0, 3).Word())

	err := HandleInvocation(d, invocation.Invocation{Thread: tcb, Cap: capability.Null{}, Block: true})

	assert.NotNil(t, err)
	info := msginfo.FromWord(tcb.Register(thread.MsgInfo))
	assert.Equal(t, uint64(syserr.InvalidCapability), info.Label)
	assert.Equal(t, uint64(1), info.Length)
}

func TestHandleInvocation_CallWithoutBlockingGetsEmptyReply(t *testing.T) {
	d, sys := newDispatcher(t)
	_, err := sys.NewNotification(0x20)
	assert.NoError(t, err)

	tcb := thread.New(1, "caller")
	tcb.SetState(thread.Running)
	tcb.SetRegister(thread.MsgInfo, msginfo.New(9, 0, 0, 1).Word())

	serr := HandleInvocation(d, invocation.Invocation{
		Thread: tcb,
		Cap:    capability.Notification{Ptr: 0x20, CanSend: true, Badge: 4},
		Call:   true,
		Block:  true,
	})

	assert.Nil(t, serr)
	assert.Equal(t, thread.Running, tcb.State())
	assert.Zero(t, tcb.Register(thread.MsgInfo))
	n, _ := sys.Notification(0x20)
	assert.Equal(t, uint64(4), n.Word())
}

func TestHandleInvocation_SendLeavesRegistersAlone(t *testing.T) {
	d, sys := newDispatcher(t)
	_, err := sys.NewNotification(0x20)
	assert.NoError(t, err)

	tcb := thread.New(1, "sender")
	tcb.SetState(thread.Running)
	word := msginfo.New(9, 0, 0, 1).Word()
	tcb.SetRegister(thread.MsgInfo, word)

	serr := HandleInvocation(d, invocation.Invocation{
		Thread: tcb,
		Cap:    capability.Notification{Ptr: 0x20, CanSend: true},
		Block:  true,
	})

	assert.Nil(t, serr)
	assert.Equal(t, thread.Running, tcb.State())
	assert.Equal(t, word, tcb.Register(thread.MsgInfo))
}

func TestHandleInvocation_BlockedSenderStaysBlocked(t *testing.T) {
	d, sys := newDispatcher(t)
	_, err := sys.NewEndpoint(0x30)
	assert.NoError(t, err)

	tcb := thread.New(1, "sender")
	tcb.SetState(thread.Running)

	serr := HandleInvocation(d, invocation.Invocation{
		Thread: tcb,
		Cap:    capability.Endpoint{Ptr: 0x30, CanSend: true, CanGrant: true},
		Block:  true,
		Call:   true,
	})

	assert.Nil(t, serr)
	assert.Equal(t, thread.BlockedOnSend, tcb.State())
	assert.True(t, tcb.Blocking.IsCall)
}
