package dm

import "strings"

// AccessMask is a bitwise OR of access rights.
type AccessMask uint16

// Access rights.
const (
	AccessRead    AccessMask = 1 << 0
	AccessWrite   AccessMask = 1 << 1
	AccessExecute AccessMask = 1 << 2
	AccessDelete  AccessMask = 1 << 3
	AccessCreate  AccessMask = 1 << 4

	// AccessNone grants nothing.
	AccessNone AccessMask = 0

	// AccessFull is the union of all defined rights.
	AccessFull = AccessRead | AccessWrite | AccessExecute | AccessDelete | AccessCreate
)

// Has returns true if every bit of want is set in m.
func (m AccessMask) Has(want AccessMask) bool {
	return m&want == want
}

// Valid returns true if m contains only defined bits.
func (m AccessMask) Valid() bool {
	return m&^AccessFull == 0
}

// String renders the mask as five flags, e.g. "R-E--" or "----C".
func (m AccessMask) String() string {
	var b strings.Builder
	flags := []struct {
		bit  AccessMask
		char byte
	}{
		{AccessRead, 'R'},
		{AccessWrite, 'W'},
		{AccessExecute, 'E'},
		{AccessDelete, 'D'},
		{AccessCreate, 'C'},
	}
	for _, f := range flags {
		if m&f.bit != 0 {
			b.WriteByte(f.char)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
