// Package fatal reports runtime invariant violations discovered while
// walking a stack. A violated invariant means the frame state can no longer
// be trusted, so continuing would produce wrong unwind targets or wrong GC
// roots; the violation is raised as a panic carrying an *Error and is not
// meant to be recovered anywhere in this module.
package fatal

import "fmt"

// Error is the value carried by a fatal panic.
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

// Unexpected raises a fatal condition with a formatted description.
func Unexpected(format string, args ...interface{}) {
	panic(&Error{msg: fmt.Sprintf(format, args...)})
}

// Check raises a fatal condition with the given description unless cond
// holds.
func Check(cond bool, msg string) {
	if !cond {
		panic(&Error{msg: msg})
	}
}
