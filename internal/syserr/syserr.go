// Package syserr defines the closed taxonomy of errors a kernel invocation
// can report to user space.
//
// An invocation step reports failure by returning a non-nil *Error. The
// value carries its own payload, so there is no shared scratch state to
// overwrite: each rejection builds a fresh Error and the reply encoder
// consumes exactly that value. A nil *Error means the step succeeded.
package syserr

import "fmt"

// Kind is the syscall error discriminant. Its integer value is the wire
// code placed in the reply MsgInfo label.
type Kind uint64

const (
	InvalidArgument   Kind = 1
	InvalidCapability Kind = 2
	IllegalOperation  Kind = 3
	RangeError        Kind = 4
	AlignmentError    Kind = 5
	FailedLookup      Kind = 6
	TruncatedMessage  Kind = 7
	DeleteFirst       Kind = 8
	RevokeFirst       Kind = 9
	NotEnoughMemory   Kind = 10
)

var kindNames = map[Kind]string{
	InvalidArgument:   "InvalidArgument",
	InvalidCapability: "InvalidCapability",
	IllegalOperation:  "IllegalOperation",
	RangeError:        "RangeError",
	AlignmentError:    "AlignmentError",
	FailedLookup:      "FailedLookup",
	TruncatedMessage:  "TruncatedMessage",
	DeleteFirst:       "DeleteFirst",
	RevokeFirst:       "RevokeFirst",
	NotEnoughMemory:   "NotEnoughMemory",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint64(k))
}

// WireCode returns the value user space sees as the reply label.
func (k Kind) WireCode() uint64 {
	return uint64(k)
}

// Valid reports whether k is in the closed taxonomy.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Error is a structured syscall error. Only the payload fields belonging
// to Kind are meaningful.
type Error struct {
	Kind Kind

	InvalidArgumentNumber uint64
	InvalidCapNumber      uint64
	RangeMin              uint64
	RangeMax              uint64
	FailedLookupWasSource bool
	LookupFault           LookupFault
	MemoryLeft            uint64
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidArgument:
		return fmt.Sprintf("%s: argument %d", e.Kind, e.InvalidArgumentNumber)
	case InvalidCapability:
		return fmt.Sprintf("%s: capability %d", e.Kind, e.InvalidCapNumber)
	case RangeError:
		return fmt.Sprintf("%s: want [%d, %d]", e.Kind, e.RangeMin, e.RangeMax)
	case FailedLookup:
		return fmt.Sprintf("%s: source=%t: %s", e.Kind, e.FailedLookupWasSource, e.LookupFault)
	case NotEnoughMemory:
		return fmt.Sprintf("%s: %d bytes left", e.Kind, e.MemoryLeft)
	default:
		return e.Kind.String()
	}
}

func NewInvalidArgument(argument uint64) *Error {
	return &Error{Kind: InvalidArgument, InvalidArgumentNumber: argument}
}

func NewInvalidCapability(capNumber uint64) *Error {
	return &Error{Kind: InvalidCapability, InvalidCapNumber: capNumber}
}

func NewRangeError(min, max uint64) *Error {
	return &Error{Kind: RangeError, RangeMin: min, RangeMax: max}
}

// NewFailedLookup reports a capability lookup failure. wasSource tells user
// space whether the source or the destination of the operation failed.
func NewFailedLookup(wasSource bool, fault LookupFault) *Error {
	return &Error{Kind: FailedLookup, FailedLookupWasSource: wasSource, LookupFault: fault}
}

func NewNotEnoughMemory(memoryLeft uint64) *Error {
	return &Error{Kind: NotEnoughMemory, MemoryLeft: memoryLeft}
}

// New returns an error of a kind that carries no payload.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}
