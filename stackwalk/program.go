package stackwalk

import (
	"github.com/embervm/stackwalk-go/internal/fatal"
)

// ProgramCode is a CodeDescriptor for compiled code whose frame layout is
// described by an unwind program instead of hand-written stepping logic.
// Compilers with a fixed frame shape can emit one small program per method
// and reuse this descriptor for all of them.
//
// A ProgramCode is immutable after construction and safe to share between
// walkers; per-walk evaluation state lives in the walker.
type ProgramCode struct {
	method Method
	start  uintptr
	prog   []byte
}

var _ CodeDescriptor = (*ProgramCode)(nil)

// NewProgramCode creates a descriptor for code starting at start whose
// frames are stepped by the given unwind program. See
// internal/unwindprog.Builder for assembling programs.
func NewProgramCode(method Method, start uintptr, prog []byte) *ProgramCode {
	return &ProgramCode{
		method: method,
		start:  start,
		prog:   prog,
	}
}

func (c *ProgramCode) Method() Method {
	return c.method
}

func (c *ProgramCode) CodeStart() uintptr {
	return c.start
}

// AdvanceFrame visits the current frame according to purpose, then runs the
// unwind program to move the walk to the caller. A malformed program is
// fatal except for the inspection purposes, which treat it as the end of
// the walkable stack.
func (c *ProgramCode) AdvanceFrame(
	current, callee *Cursor,
	isTopFrame bool,
	lastManagedCallee CodeDescriptor,
	purpose Purpose,
	ctx interface{},
) bool {
	w := current.Walker()
	switch purpose {
	case Inspecting:
		frame := &Frame{
			Kind:               FrameCompiled,
			Code:               c,
			InstructionPointer: current.InstructionPointer(),
			FramePointer:       current.FramePointer(),
			StackPointer:       current.StackPointer(),
			Callee:             w.CalleeFrame(),
		}
		if !ctx.(FrameVisitor).VisitFrame(frame) {
			return false
		}
	case RawInspecting:
		flags := makeRawFrameFlags(isTopFrame, false)
		if !ctx.(RawFrameVisitor).VisitRawFrame(
			c, current.InstructionPointer(), current.FramePointer(), current.StackPointer(), flags,
		) {
			return false
		}
	case ReferenceMapPreparing:
		if !ctx.(ReferenceMapPreparer).PrepareFrame(current, callee) {
			return false
		}
	}

	caller, ok := w.runUnwindProgram(c.prog)
	if !ok {
		if purpose.inspecting() {
			return false
		}
		fatal.Unexpected("malformed unwind program for method %q at %#x",
			c.method.Name(), current.InstructionPointer())
	}
	w.Advance(caller.IP, caller.SP, caller.FP)
	return true
}
