// Package ipc implements the kernel objects an invocation can send to:
// synchronous endpoints, asynchronous notifications, and reply delivery to
// a thread blocked in a call.
//
// Blocking never suspends the caller. A thread that has to wait is put in a
// blocked state and queued on the object; a later operation from another
// thread completes the rendezvous.
package ipc

import (
	"fmt"
	"log/slog"

	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/cspace"
	"github.com/mattjoyce/capinvoke/internal/msginfo"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

// System owns every endpoint, notification and thread reachable by pointer.
type System struct {
	endpoints     map[capability.Pointer]*Endpoint
	notifications map[capability.Pointer]*Notification
	threads       map[capability.Pointer]*thread.TCB
	logger        *slog.Logger
}

func NewSystem(logger *slog.Logger) *System {
	return &System{
		endpoints:     make(map[capability.Pointer]*Endpoint),
		notifications: make(map[capability.Pointer]*Notification),
		threads:       make(map[capability.Pointer]*thread.TCB),
		logger:        logger,
	}
}

func (s *System) AddThread(t *thread.TCB) error {
	if _, exists := s.threads[t.ID]; exists {
		return fmt.Errorf("thread %#x already registered", uint64(t.ID))
	}
	s.threads[t.ID] = t
	return nil
}

func (s *System) Thread(ptr capability.Pointer) (*thread.TCB, bool) {
	t, ok := s.threads[ptr]
	return t, ok
}

func (s *System) NewEndpoint(ptr capability.Pointer) (*Endpoint, error) {
	if _, exists := s.endpoints[ptr]; exists {
		return nil, fmt.Errorf("endpoint %#x already exists", uint64(ptr))
	}
	ep := &Endpoint{Ptr: ptr}
	s.endpoints[ptr] = ep
	return ep, nil
}

func (s *System) Endpoint(ptr capability.Pointer) (*Endpoint, bool) {
	ep, ok := s.endpoints[ptr]
	return ep, ok
}

func (s *System) NewNotification(ptr capability.Pointer) (*Notification, error) {
	if _, exists := s.notifications[ptr]; exists {
		return nil, fmt.Errorf("notification %#x already exists", uint64(ptr))
	}
	n := &Notification{Ptr: ptr}
	s.notifications[ptr] = n
	return n, nil
}

func (s *System) Notification(ptr capability.Pointer) (*Notification, bool) {
	n, ok := s.notifications[ptr]
	return n, ok
}

// transfer copies the sender's message into the receiver and delivers badge.
// Capability transfer is not modelled: the receiver always sees zero extra
// caps.
func transfer(sender, receiver *thread.TCB, badge uint64) {
	info := msginfo.FromWord(sender.Register(thread.MsgInfo))
	n := int(info.Length)
	for i := 0; i < n; i++ {
		if next := receiver.SetMR(i, sender.MR(i)); next <= i {
			n = i
			break
		}
	}
	receiver.SetRegister(thread.MsgInfo, msginfo.New(info.Label, 0, 0, uint64(n)).Word())
	receiver.SetRegister(thread.Badge, badge)
}

// setupCallerCap blocks sender on its reply and hands receiver a reply
// capability, derived from sender's master reply, in its caller slot.
func (s *System) setupCallerCap(sender, receiver *thread.TCB, canGrant bool) {
	sender.SetState(thread.BlockedOnReply)
	cspace.DeleteOne(receiver.CallerSlot)
	reply := capability.Reply{TCB: sender.ID, CanGrant: canGrant}
	if err := cspace.Insert(reply, sender.ReplySlot, receiver.CallerSlot); err != nil {
		panic(fmt.Sprintf("setup caller cap: %v", err))
	}
}

// DoReply delivers sender's message to the thread receiver is blocked on a
// reply from, consumes the reply capability in slot, and resumes receiver.
func (s *System) DoReply(sender *thread.TCB, receiver capability.Pointer, slot *cspace.Slot, canGrant bool) {
	target, ok := s.threads[receiver]
	if !ok || target.State() != thread.BlockedOnReply {
		s.logger.Debug("reply target is not waiting for a reply", "receiver", uint64(receiver))
		cspace.DeleteOne(slot)
		return
	}
	transfer(sender, target, 0)
	cspace.DeleteOne(slot)
	target.Blocking = thread.Blocking{}
	target.SetState(thread.Running)
}
