package stackwalk

// Cursor encapsulates the state of a single stack frame: the resolved code
// descriptor, the instruction pointer, stack pointer, frame pointer, the
// register-save area and whether the frame is the top frame. The walker
// manages two cursors internally, the current frame and its callee, and
// destructively updates their contents while walking rather than allocating
// new ones, since allocation is disallowed when walking for reference-map
// preparation or exception handling.
type Cursor struct {
	walker *Walker

	code               CodeDescriptor
	instructionPointer uintptr
	stackPointer       uintptr
	framePointer       uintptr
	registerSaveArea   uintptr
	topFrame           bool
}

// Advance updates the cursor to point to the next stack frame. It implicitly
// clears the cursor's resolved code descriptor, register-save area and
// top-frame flag.
func (c *Cursor) Advance(ip, sp, fp uintptr) {
	c.setFields(nil, ip, sp, fp, 0, false)
}

func (c *Cursor) reset() {
	c.setFields(nil, 0, 0, 0, 0, false)
}

func (c *Cursor) copyFrom(other *Cursor) {
	c.setFields(other.code, other.instructionPointer, other.stackPointer, other.framePointer, other.registerSaveArea, other.topFrame)
}

func (c *Cursor) setFields(code CodeDescriptor, ip, sp, fp, registerSaveArea uintptr, topFrame bool) {
	c.code = code
	c.instructionPointer = ip
	c.stackPointer = sp
	c.framePointer = fp
	c.registerSaveArea = registerSaveArea
	c.topFrame = topFrame
}

// Walker returns the stack frame walker owning this cursor.
func (c *Cursor) Walker() *Walker {
	return c.walker
}

// Code returns the descriptor of the compiled code containing the
// instruction pointer, or nil for a native frame.
func (c *Cursor) Code() CodeDescriptor {
	return c.code
}

// InstructionPointer returns the frame's instruction pointer.
func (c *Cursor) InstructionPointer() uintptr {
	return c.instructionPointer
}

// StackPointer returns the frame's stack pointer.
func (c *Cursor) StackPointer() uintptr {
	return c.stackPointer
}

// FramePointer returns the frame's frame pointer.
func (c *Cursor) FramePointer() uintptr {
	return c.framePointer
}

// RegisterSaveArea returns the address of the frame's saved-register block,
// or zero if the frame saved no registers.
func (c *Cursor) RegisterSaveArea() uintptr {
	return c.registerSaveArea
}

// SetRegisterSaveArea records the address of the frame's saved-register
// block. Called by frame steppers of code that saves a full register set,
// such as the trap stub.
func (c *Cursor) SetRegisterSaveArea(addr uintptr) {
	c.registerSaveArea = addr
}

// IsTopFrame reports whether this frame is the top frame of the walk.
func (c *Cursor) IsTopFrame() bool {
	return c.topFrame
}
