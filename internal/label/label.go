// Package label enumerates the invocation labels the kernel decodes.
package label

import (
	"fmt"
	"strconv"
)

const (
	InvalidInvocation uint64 = iota
	UntypedRetype
	TCBReadRegisters
	TCBWriteRegisters
	TCBCopyRegisters
	TCBConfigure
	TCBSetPriority
	TCBSetMCPriority
	TCBSetSchedParams
	TCBSetIPCBuffer
	TCBSetSpace
	TCBSuspend
	TCBResume
	TCBBindNotification
	TCBUnbindNotification
	TCBSetTLSBase
	CNodeRevoke
	CNodeDelete
	CNodeCancelBadgedSends
	CNodeCopy
	CNodeMint
	CNodeMove
	CNodeMutate
	CNodeRotate
	IRQIssueIRQHandler
	IRQAckIRQ
	IRQSetIRQHandler
	IRQClearIRQHandler
	DomainSetSet
	numLabels
)

var names = [numLabels]string{
	"InvalidInvocation",
	"UntypedRetype",
	"TCBReadRegisters",
	"TCBWriteRegisters",
	"TCBCopyRegisters",
	"TCBConfigure",
	"TCBSetPriority",
	"TCBSetMCPriority",
	"TCBSetSchedParams",
	"TCBSetIPCBuffer",
	"TCBSetSpace",
	"TCBSuspend",
	"TCBResume",
	"TCBBindNotification",
	"TCBUnbindNotification",
	"TCBSetTLSBase",
	"CNodeRevoke",
	"CNodeDelete",
	"CNodeCancelBadgedSends",
	"CNodeCopy",
	"CNodeMint",
	"CNodeMove",
	"CNodeMutate",
	"CNodeRotate",
	"IRQIssueIRQHandler",
	"IRQAckIRQ",
	"IRQSetIRQHandler",
	"IRQClearIRQHandler",
	"DomainSetSet",
}

// Name returns the symbolic name of l.
func Name(l uint64) string {
	if l < numLabels {
		return names[l]
	}
	return fmt.Sprintf("label(%d)", l)
}

// Parse accepts either a symbolic label name or a decimal number.
func Parse(s string) (uint64, error) {
	for i, n := range names {
		if n == s {
			return uint64(i), nil
		}
	}
	l, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown invocation label %q", s)
	}
	return l, nil
}
