package ipc

import (
	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

// EndpointState says which kind of thread, if any, is queued.
type EndpointState int

const (
	EndpointIdle EndpointState = iota
	EndpointSend
	EndpointRecv
)

func (s EndpointState) String() string {
	switch s {
	case EndpointSend:
		return "send"
	case EndpointRecv:
		return "recv"
	}
	return "idle"
}

// Endpoint is a rendezvous point. Its queue holds only senders or only
// receivers at any time.
type Endpoint struct {
	Ptr   capability.Pointer
	state EndpointState
	queue []*thread.TCB
}

func (ep *Endpoint) State() EndpointState {
	return ep.state
}

// Queue returns the threads waiting on the endpoint, oldest first.
func (ep *Endpoint) Queue() []*thread.TCB {
	out := make([]*thread.TCB, len(ep.queue))
	copy(out, ep.queue)
	return out
}

func (ep *Endpoint) enqueue(t *thread.TCB, state EndpointState) {
	ep.queue = append(ep.queue, t)
	ep.state = state
}

func (ep *Endpoint) dequeue() *thread.TCB {
	t := ep.queue[0]
	ep.queue = ep.queue[1:]
	if len(ep.queue) == 0 {
		ep.state = EndpointIdle
	}
	return t
}

// SendIPC sends sender's message on the endpoint at ptr. With a receiver
// waiting the message is transferred at once; otherwise a blocking sender
// is queued and a non-blocking send is dropped.
func (s *System) SendIPC(ptr capability.Pointer, sender *thread.TCB, block, call, canGrant bool, badge uint64, canGrantReply bool) {
	ep, ok := s.endpoints[ptr]
	if !ok {
		s.logger.Debug("send to unknown endpoint", "endpoint", uint64(ptr))
		return
	}

	switch ep.state {
	case EndpointIdle, EndpointSend:
		if !block {
			return
		}
		sender.Blocking = thread.Blocking{
			Object:        ptr,
			Badge:         badge,
			CanGrant:      canGrant,
			CanGrantReply: canGrantReply,
			IsCall:        call,
		}
		sender.SetState(thread.BlockedOnSend)
		ep.enqueue(sender, EndpointSend)

	case EndpointRecv:
		receiver := ep.dequeue()
		replyCanGrant := receiver.Blocking.CanGrant
		transfer(sender, receiver, badge)
		receiver.Blocking = thread.Blocking{}
		receiver.SetState(thread.Running)

		if call {
			if canGrant || canGrantReply {
				s.setupCallerCap(sender, receiver, replyCanGrant)
			} else {
				sender.SetState(thread.Inactive)
			}
		}
	}
}

// ReceiveIPC waits on the endpoint at ptr. canGrant is the grant right of
// the receiver's endpoint capability and decides whether a reply to a call
// may grant.
func (s *System) ReceiveIPC(ptr capability.Pointer, receiver *thread.TCB, block, canGrant bool) {
	ep, ok := s.endpoints[ptr]
	if !ok {
		s.logger.Debug("receive on unknown endpoint", "endpoint", uint64(ptr))
		return
	}

	switch ep.state {
	case EndpointIdle, EndpointRecv:
		if !block {
			receiver.SetRegister(thread.Badge, 0)
			return
		}
		receiver.Blocking = thread.Blocking{Object: ptr, CanGrant: canGrant}
		receiver.SetState(thread.BlockedOnReceive)
		ep.enqueue(receiver, EndpointRecv)

	case EndpointSend:
		sender := ep.dequeue()
		info := sender.Blocking
		transfer(sender, receiver, info.Badge)
		sender.Blocking = thread.Blocking{}

		if info.IsCall {
			if info.CanGrant || info.CanGrantReply {
				s.setupCallerCap(sender, receiver, canGrant)
			} else {
				sender.SetState(thread.Inactive)
			}
		} else {
			sender.SetState(thread.Running)
		}
	}
}
