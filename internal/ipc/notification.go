package ipc

import (
	"github.com/mattjoyce/capinvoke/internal/capability"
	"github.com/mattjoyce/capinvoke/internal/thread"
)

type NotificationState int

const (
	NotificationIdle NotificationState = iota
	NotificationWaiting
	NotificationActive
)

func (s NotificationState) String() string {
	switch s {
	case NotificationWaiting:
		return "waiting"
	case NotificationActive:
		return "active"
	}
	return "idle"
}

// Notification accumulates signalled badges by bitwise OR until a thread
// waits on it.
type Notification struct {
	Ptr   capability.Pointer
	state NotificationState
	word  uint64
	queue []*thread.TCB
}

func (n *Notification) State() NotificationState {
	return n.state
}

// Word returns the pending badge bits.
func (n *Notification) Word() uint64 {
	return n.word
}

// SendSignal signals the notification at ptr with badge.
func (s *System) SendSignal(ptr capability.Pointer, badge uint64) {
	n, ok := s.notifications[ptr]
	if !ok {
		s.logger.Debug("signal to unknown notification", "notification", uint64(ptr))
		return
	}

	switch n.state {
	case NotificationIdle, NotificationActive:
		n.word |= badge
		n.state = NotificationActive
	case NotificationWaiting:
		t := n.queue[0]
		n.queue = n.queue[1:]
		if len(n.queue) == 0 {
			n.state = NotificationIdle
		}
		t.Blocking = thread.Blocking{}
		t.SetState(thread.Running)
		t.SetRegister(thread.Badge, badge)
	}
}

// Wait consumes pending badges for t, or blocks t when none are pending and
// block is set.
func (s *System) Wait(ptr capability.Pointer, t *thread.TCB, block bool) {
	n, ok := s.notifications[ptr]
	if !ok {
		s.logger.Debug("wait on unknown notification", "notification", uint64(ptr))
		return
	}

	if n.state == NotificationActive {
		t.SetRegister(thread.Badge, n.word)
		n.word = 0
		n.state = NotificationIdle
		return
	}
	if !block {
		t.SetRegister(thread.Badge, 0)
		return
	}
	t.Blocking = thread.Blocking{Object: ptr}
	t.SetState(thread.BlockedOnNotification)
	n.queue = append(n.queue, t)
	n.state = NotificationWaiting
}
