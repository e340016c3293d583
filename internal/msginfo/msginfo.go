// Package msginfo packs the message-info word that accompanies every IPC
// and kernel reply.
//
// Layout, low bits first: length (7), extraCaps (2), capsUnwrapped (3),
// label (remaining 52).
package msginfo

import "fmt"

const (
	lengthBits        = 7
	extraCapsBits     = 2
	capsUnwrappedBits = 3
	labelBits         = 64 - lengthBits - extraCapsBits - capsUnwrappedBits

	extraCapsShift     = lengthBits
	capsUnwrappedShift = extraCapsShift + extraCapsBits
	labelShift         = capsUnwrappedShift + capsUnwrappedBits
)

// MsgMaxLength is the largest message length, in words, a MessageInfo
// can describe.
const MsgMaxLength = 120

// MsgMaxExtraCaps is the largest number of extra capabilities a message
// can carry.
const MsgMaxExtraCaps = 1<<extraCapsBits - 1

// MessageInfo is the decoded form of a message-info word.
type MessageInfo struct {
	Label         uint64
	CapsUnwrapped uint64
	ExtraCaps     uint64
	Length        uint64
}

// New builds a MessageInfo. Fields wider than their slot are truncated the
// way the hardware word would truncate them.
func New(label, capsUnwrapped, extraCaps, length uint64) MessageInfo {
	return MessageInfo{
		Label:         label & mask(labelBits),
		CapsUnwrapped: capsUnwrapped & mask(capsUnwrappedBits),
		ExtraCaps:     extraCaps & mask(extraCapsBits),
		Length:        length & mask(lengthBits),
	}
}

// Word encodes m into a single machine word.
func (m MessageInfo) Word() uint64 {
	return (m.Label&mask(labelBits))<<labelShift |
		(m.CapsUnwrapped&mask(capsUnwrappedBits))<<capsUnwrappedShift |
		(m.ExtraCaps&mask(extraCapsBits))<<extraCapsShift |
		m.Length&mask(lengthBits)
}

// FromWord decodes a message-info word. Lengths beyond MsgMaxLength are
// clamped, matching what the kernel does with user-supplied words.
func FromWord(w uint64) MessageInfo {
	m := MessageInfo{
		Label:         w >> labelShift,
		CapsUnwrapped: (w >> capsUnwrappedShift) & mask(capsUnwrappedBits),
		ExtraCaps:     (w >> extraCapsShift) & mask(extraCapsBits),
		Length:        w & mask(lengthBits),
	}
	if m.Length > MsgMaxLength {
		m.Length = MsgMaxLength
	}
	return m
}

func (m MessageInfo) String() string {
	return fmt.Sprintf("label=%d caps_unwrapped=%d extra_caps=%d length=%d",
		m.Label, m.CapsUnwrapped, m.ExtraCaps, m.Length)
}

func mask(bits uint) uint64 {
	return 1<<bits - 1
}
