package stackwalk

// FrameKind classifies a visited frame.
type FrameKind uint8

const (
	// FrameCompiled is a frame of compiled managed code.
	FrameCompiled FrameKind = iota
	// FrameNative is a frame of native code with no code descriptor.
	FrameNative
	// FrameBridging is a frame of generated code adapting between calling
	// conventions; not application visible.
	FrameBridging
)

func (k FrameKind) String() string {
	switch k {
	case FrameCompiled:
		return "compiled"
	case FrameNative:
		return "native"
	case FrameBridging:
		return "bridging"
	default:
		return "unknown"
	}
}

// Frame is one logical stack frame constructed during an Inspecting walk.
// Frames form a chain through Callee, linking each frame to the frame one
// step closer to the top of the stack.
type Frame struct {
	// Kind classifies the frame.
	Kind FrameKind
	// Code is the descriptor of the frame's compiled code; nil for native
	// frames.
	Code CodeDescriptor
	// InstructionPointer, FramePointer and StackPointer locate the frame.
	InstructionPointer uintptr
	FramePointer       uintptr
	StackPointer       uintptr
	// Callee is the previously visited frame, or nil for the top frame.
	Callee *Frame
}

// IsSame reports whether other denotes the same activation record as f. Two
// frames are the same if they agree on kind, stack pointer, frame pointer
// and code.
func (f *Frame) IsSame(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Kind == other.Kind &&
		f.StackPointer == other.StackPointer &&
		f.FramePointer == other.FramePointer &&
		f.Code == other.Code
}

// FrameVisitor is the context for an Inspecting walk. VisitFrame is invoked
// once per logical frame, top frame first; returning false stops the walk.
type FrameVisitor interface {
	VisitFrame(frame *Frame) bool
}

// RawFrameFlags is the bitmask passed to a RawFrameVisitor.
type RawFrameFlags uint8

const (
	// RawFrameTop is set for the top frame of the walk.
	RawFrameTop RawFrameFlags = 1 << iota
	// RawFrameBridging is set for bridging frames.
	RawFrameBridging
)

func makeRawFrameFlags(topFrame, bridging bool) RawFrameFlags {
	var f RawFrameFlags
	if topFrame {
		f |= RawFrameTop
	}
	if bridging {
		f |= RawFrameBridging
	}
	return f
}

// RawFrameVisitor is the context for a RawInspecting walk. It receives raw
// frame addresses instead of constructed Frame values; code is nil for
// native frames. Implementations must not allocate. Returning false stops
// the walk.
type RawFrameVisitor interface {
	VisitRawFrame(code CodeDescriptor, ip, fp, sp uintptr, flags RawFrameFlags) bool
}
