package kernel

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/irq"
	"github.com/mattjoyce/capinvoke/internal/label"
	"github.com/mattjoyce/capinvoke/internal/msginfo"
	"github.com/mattjoyce/capinvoke/internal/syserr"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

const (
	cptrEndpoint     = 1
	cptrNotification = 2
	cptrIRQControl   = 3
	cptrRoot         = 4
	cptrHandler      = 8
	cptrSavedReply   = 9
	cptrReadOnlyEP   = 10
)

type fixture struct {
	kernel *Kernel
	core   *Core
	cnode  *cspace.CNode
	client *thread.TCB
	server *thread.TCB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	k, err := New(Options{MaxIRQ: 15, Cores: 2, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)

	cnode, err := k.CSpace.NewCNode(0x1000, 4)
	require.NoError(t, err)
	root := capability.CNode{Ptr: 0x1000, Radix: 4, GuardSize: cspace.WordBits - 4}

	install := map[uint64]capability.Cap{
		cptrEndpoint:     capability.Endpoint{Ptr: 0x10, CanSend: true, CanReceive: true, CanGrant: true},
		cptrNotification: capability.Notification{Ptr: 0x20, CanSend: true, CanReceive: true, Badge: 0x4},
		cptrIRQControl:   capability.IRQControl{},
		cptrRoot:         root,
		cptrReadOnlyEP:   capability.Endpoint{Ptr: 0x10, CanReceive: true},
	}
	for i, c := range install {
		require.NoError(t, cspace.Insert(c, nil, cnode.Slot(i)))
	}
	_, err = k.IPC.NewEndpoint(0x10)
	require.NoError(t, err)
	_, err = k.IPC.NewNotification(0x20)
	require.NoError(t, err)

	f := &fixture{kernel: k, cnode: cnode}
	f.core, err = k.Core(0)
	require.NoError(t, err)

	f.client = thread.New(0x100, "client")
	f.server = thread.New(0x200, "server")
	for _, tcb := range []*thread.TCB{f.client, f.server} {
		require.NoError(t, cspace.Insert(root, cnode.Slot(cptrRoot), tcb.CSpaceRoot))
		tcb.Buffer = &thread.IPCBuffer{}
		tcb.SetState(thread.Running)
		require.NoError(t, k.IPC.AddThread(tcb))
	}
	return f
}

func setMessage(tcb *thread.TCB, lbl uint64, extraCaps []uint64, words ...uint64) {
	tcb.SetRegister(thread.MsgInfo, msginfo.New(lbl, 0, uint64(len(extraCaps)), uint64(len(words))).Word())
	for i, w := range words {
		tcb.SetMR(i, w)
	}
	for i, c := range extraCaps {
		tcb.Buffer.Caps[i] = c
	}
}

func TestNewRejectsZeroCores(t *testing.T) {
	_, err := New(Options{MaxIRQ: 1})
	assert.Error(t, err)
}

func TestNewRejectsOversizedIRQTable(t *testing.T) {
	_, err := New(Options{MaxIRQ: ^uint64(0), Cores: 1})
	assert.ErrorContains(t, err, "exceeds limit")

	_, err = New(Options{MaxIRQ: irq.MaxIRQLimit, Cores: 1})
	assert.NoError(t, err)
}

func TestCoresAreIndependent(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 2, f.kernel.NumCores())

	other, err := f.kernel.Core(1)
	require.NoError(t, err)
	assert.NotSame(t, f.core, other)
	assert.Equal(t, 1, other.ID)

	_, err = f.kernel.Core(2)
	assert.Error(t, err)
}

func TestInvokeNullCapRepliesWithError(t *testing.T) {
	f := newFixture(t)
	setMessage(f.client, 0, nil)

	serr, err := f.core.Invoke(f.client, SysCall, 5)

	require.NoError(t, err)
	require.NotNil(t, serr)
	assert.Equal(t, syserr.InvalidCapability, serr.Kind)
	info := msginfo.FromWord(f.client.Register(thread.MsgInfo))
	assert.Equal(t, uint64(2), info.Label)
	assert.Equal(t, uint64(1), info.Length)
	assert.Zero(t, f.client.MR(0))
	assert.Equal(t, thread.Running, f.client.State())
}

func TestInvokeReadOnlyEndpoint(t *testing.T) {
	f := newFixture(t)
	setMessage(f.client, 0, nil)

	serr, err := f.core.Invoke(f.client, SysSend, cptrReadOnlyEP)

	require.NoError(t, err)
	require.NotNil(t, serr)
	assert.Equal(t, syserr.NewInvalidCapability(0), serr)
	ep, _ := f.kernel.IPC.Endpoint(0x10)
	assert.Empty(t, ep.Queue())
}

func TestInvokeCapFault(t *testing.T) {
	f := newFixture(t)
	cspace.DeleteOne(f.client.CSpaceRoot)

	_, err := f.core.Invoke(f.client, SysCall, cptrEndpoint)

	var fault *CapFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, syserr.InvalidRoot, fault.Fault.Type)
	assert.Equal(t, uint64(cptrEndpoint), fault.CPtr)
}

func TestCallRecvReply(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.core.Recv(f.server, cptrEndpoint, true))
	assert.Equal(t, thread.BlockedOnReceive, f.server.State())

	setMessage(f.client, 5, nil, 11)
	serr, err := f.core.Invoke(f.client, SysCall, cptrEndpoint)
	require.NoError(t, err)
	assert.Nil(t, serr)

	assert.Equal(t, thread.BlockedOnReply, f.client.State())
	assert.Equal(t, thread.Running, f.server.State())
	assert.Equal(t, uint64(11), f.server.MR(0))
	assert.Equal(t, uint64(5), msginfo.FromWord(f.server.Register(thread.MsgInfo)).Label)

	setMessage(f.server, 0, nil, 12)
	f.core.Reply(f.server)

	assert.Equal(t, thread.Running, f.client.State())
	assert.Equal(t, uint64(12), f.client.MR(0))
	assert.True(t, f.server.CallerSlot.IsEmpty())
}

func TestSavedReplyCapCanBeInvoked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.core.Recv(f.server, cptrEndpoint, true))
	setMessage(f.client, 5, nil)
	_, err := f.core.Invoke(f.client, SysCall, cptrEndpoint)
	require.NoError(t, err)

	require.NoError(t, f.core.SaveCaller(f.server, cptrSavedReply))
	assert.True(t, f.server.CallerSlot.IsEmpty())

	setMessage(f.server, 0, nil, 99)
	serr, err := f.core.Invoke(f.server, SysSend, cptrSavedReply)

	require.NoError(t, err)
	assert.Nil(t, serr)
	assert.Equal(t, thread.Running, f.server.State())
	assert.Equal(t, thread.Running, f.client.State())
	assert.Equal(t, uint64(99), f.client.MR(0))
	assert.True(t, f.cnode.Slot(cptrSavedReply).IsEmpty())

	assert.Error(t, f.core.SaveCaller(f.server, cptrSavedReply), "no caller to save")
}

func TestMasterReplyCapIsRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, cspace.Insert(f.client.ReplySlot.Cap(), f.client.ReplySlot, f.cnode.Slot(cptrSavedReply)))
	setMessage(f.client, 0, nil)

	serr, err := f.core.Invoke(f.client, SysCall, cptrSavedReply)

	require.NoError(t, err)
	assert.Equal(t, syserr.NewInvalidCapability(0), serr)
}

func TestIRQLifecycle(t *testing.T) {
	f := newFixture(t)
	const line = 2

	setMessage(f.client, label.IRQIssueIRQHandler, []uint64{cptrRoot}, line, cptrHandler, cspace.WordBits)
	serr, err := f.core.Invoke(f.client, SysCall, cptrIRQControl)
	require.NoError(t, err)
	require.Nil(t, serr)
	assert.Equal(t, capability.IRQHandler{IRQ: line}, f.cnode.Slot(cptrHandler).Cap())
	assert.Equal(t, irq.Signal, f.kernel.IRQ.State(line))
	assert.Zero(t, f.client.Register(thread.MsgInfo), "call gets an empty success reply")
	assert.Equal(t, thread.Running, f.client.State())
	assert.Nil(t, f.core.CurrentThread())

	// Issuing the same line again must revoke first.
	setMessage(f.client, label.IRQIssueIRQHandler, []uint64{cptrRoot}, line, cptrSavedReply, cspace.WordBits)
	serr, err = f.core.Invoke(f.client, SysCall, cptrIRQControl)
	require.NoError(t, err)
	assert.Equal(t, syserr.New(syserr.RevokeFirst), serr)
	assert.Equal(t, uint64(syserr.RevokeFirst), msginfo.FromWord(f.client.Register(thread.MsgInfo)).Label)

	setMessage(f.client, label.IRQSetIRQHandler, []uint64{cptrNotification})
	serr, err = f.core.Invoke(f.client, SysCall, cptrHandler)
	require.NoError(t, err)
	require.Nil(t, serr)
	assert.Equal(t, f.cnode.Slot(cptrNotification), f.kernel.IRQ.HandlerSlot(line).Parent())

	setMessage(f.client, label.IRQAckIRQ, nil)
	serr, err = f.core.Invoke(f.client, SysCall, cptrHandler)
	require.NoError(t, err)
	require.Nil(t, serr)
	assert.False(t, f.kernel.IRQ.Masked(line))

	f.kernel.Interrupt(line)
	assert.True(t, f.kernel.IRQ.Masked(line))

	require.NoError(t, f.core.Recv(f.server, cptrNotification, false))
	assert.Equal(t, uint64(0x4), f.server.Register(thread.Badge))

	setMessage(f.client, label.IRQClearIRQHandler, nil)
	serr, err = f.core.Invoke(f.client, SysSend, cptrHandler)
	require.NoError(t, err)
	require.Nil(t, serr)
	assert.True(t, f.kernel.IRQ.HandlerSlot(line).IsEmpty())
}

func TestSetIRQHandlerWithoutExtraCapIsTruncated(t *testing.T) {
	f := newFixture(t)
	require.Nil(t, f.kernel.IRQ.InvokeIRQControl(3, f.cnode.Slot(cptrHandler), f.cnode.Slot(cptrIRQControl)))

	setMessage(f.client, label.IRQSetIRQHandler, nil)
	serr, err := f.core.Invoke(f.client, SysCall, cptrHandler)

	require.NoError(t, err)
	assert.Equal(t, syserr.New(syserr.TruncatedMessage), serr)
	assert.True(t, f.kernel.IRQ.HandlerSlot(3).IsEmpty())
}

func TestUnsupportedObjectInvocations(t *testing.T) {
	f := newFixture(t)
	setMessage(f.client, label.CNodeCopy, nil)

	serr, err := f.core.Invoke(f.client, SysCall, cptrRoot)

	require.NoError(t, err)
	assert.Equal(t, syserr.New(syserr.IllegalOperation), serr)
	assert.Equal(t, uint64(syserr.IllegalOperation), msginfo.FromWord(f.client.Register(thread.MsgInfo)).Label)
}

func TestRecvRejectsWrongCaps(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.core.Recv(f.server, cptrIRQControl, true))
	assert.Error(t, f.core.Recv(f.server, cptrReadOnlyEP+1, true))

	var fault *CapFault
	cspace.DeleteOne(f.server.CSpaceRoot)
	assert.True(t, errors.As(f.core.Recv(f.server, cptrEndpoint, true), &fault))
}

func TestParseSyscall(t *testing.T) {
	for _, s := range []Syscall{SysCall, SysSend, SysNBSend} {
		got, err := ParseSyscall(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseSyscall("recv")
	assert.Error(t, err)
}

func TestBlockedThreadCannotTrap(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.core.Recv(f.server, cptrEndpoint, true))
	require.Equal(t, thread.BlockedOnReceive, f.server.State())

	setMessage(f.server, 0, nil, 7)
	before := f.server.Registers()

	var notRunnable *NotRunnableError
	_, err := f.core.Invoke(f.server, SysSend, cptrEndpoint)
	require.True(t, errors.As(err, &notRunnable))
	assert.Equal(t, thread.BlockedOnReceive, notRunnable.State)
	assert.True(t, errors.As(f.core.Recv(f.server, cptrEndpoint, true), &notRunnable))
	assert.Equal(t, before, f.server.Registers())

	// The server is queued once: one call wakes it and leaves no receiver.
	setMessage(f.client, 5, nil, 11)
	serr, err := f.core.Invoke(f.client, SysCall, cptrEndpoint)
	require.NoError(t, err)
	require.Nil(t, serr)
	assert.Equal(t, thread.Running, f.server.State())

	setMessage(f.client, 5, nil, 12)
	f.client.SetState(thread.Running) // as if the reply had arrived
	_, err = f.core.Invoke(f.client, SysSend, cptrEndpoint)
	require.NoError(t, err)
	assert.Equal(t, thread.BlockedOnSend, f.client.State())
	assert.Equal(t, uint64(11), f.server.MR(0))
}
