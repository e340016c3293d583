package syserr

import "fmt"

// LookupFaultType says why a CSpace address could not be resolved.
type LookupFaultType uint64

const (
	InvalidRoot LookupFaultType = iota
	MissingCapability
	DepthMismatch
	GuardMismatch
)

func (t LookupFaultType) String() string {
	switch t {
	case InvalidRoot:
		return "invalid_root"
	case MissingCapability:
		return "missing_capability"
	case DepthMismatch:
		return "depth_mismatch"
	case GuardMismatch:
		return "guard_mismatch"
	}
	return fmt.Sprintf("lookup_fault(%d)", uint64(t))
}

// LookupFault describes a failed address resolution. BitsLeft is the number
// of address bits still unresolved when the lookup stopped.
type LookupFault struct {
	Type       LookupFaultType
	BitsLeft   uint64
	BitsFound  uint64
	GuardFound uint64
}

func (f LookupFault) String() string {
	switch f.Type {
	case MissingCapability:
		return fmt.Sprintf("%s bits_left=%d", f.Type, f.BitsLeft)
	case DepthMismatch:
		return fmt.Sprintf("%s bits_left=%d bits_found=%d", f.Type, f.BitsLeft, f.BitsFound)
	case GuardMismatch:
		return fmt.Sprintf("%s bits_left=%d guard_found=%#x bits_found=%d", f.Type, f.BitsLeft, f.GuardFound, f.BitsFound)
	}
	return f.Type.String()
}

func NewInvalidRoot() LookupFault {
	return LookupFault{Type: InvalidRoot}
}

func NewMissingCapability(bitsLeft uint64) LookupFault {
	return LookupFault{Type: MissingCapability, BitsLeft: bitsLeft}
}

func NewDepthMismatch(bitsLeft, bitsFound uint64) LookupFault {
	return LookupFault{Type: DepthMismatch, BitsLeft: bitsLeft, BitsFound: bitsFound}
}

func NewGuardMismatch(bitsLeft, guardFound, bitsFound uint64) LookupFault {
	return LookupFault{Type: GuardMismatch, BitsLeft: bitsLeft, GuardFound: guardFound, BitsFound: bitsFound}
}
