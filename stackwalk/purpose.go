package stackwalk

// Purpose is one of the finite set of reasons for which a stack walk can be
// performed. Every frame stepper must deal with each purpose. The purpose
// determines the type of the context value threaded through the walk and
// whether the walk may allocate.
type Purpose int

const (
	// ExceptionHandling is a walk searching for an exception handler. It is
	// allocation free. Context type: *UnwindContext.
	ExceptionHandling Purpose = iota

	// ReferenceMapPreparing is a walk preparing or verifying the stack
	// reference map of a thread. It is allocation free. Context type:
	// ReferenceMapPreparer.
	ReferenceMapPreparing

	// RawInspecting is a walk reflecting on the frames of a thread's stack
	// without allocating. Context type: RawFrameVisitor.
	RawInspecting

	// Inspecting is a walk reflecting on the frames of a thread's stack,
	// delivering constructed Frame values. It is not allocation free.
	// Context type: FrameVisitor.
	Inspecting
)

func (p Purpose) String() string {
	switch p {
	case ExceptionHandling:
		return "exception handling"
	case ReferenceMapPreparing:
		return "reference map preparing"
	case RawInspecting:
		return "raw inspecting"
	case Inspecting:
		return "inspecting"
	default:
		return "invalid purpose"
	}
}

// Allocating reports whether walks for this purpose may allocate.
func (p Purpose) Allocating() bool {
	return p == Inspecting
}

func (p Purpose) inspecting() bool {
	return p == Inspecting || p == RawInspecting
}

// isValidContext determines if a context value is of the type required by
// this purpose.
func (p Purpose) isValidContext(ctx interface{}) bool {
	switch p {
	case ExceptionHandling:
		_, ok := ctx.(*UnwindContext)
		return ok
	case ReferenceMapPreparing:
		_, ok := ctx.(ReferenceMapPreparer)
		return ok
	case RawInspecting:
		_, ok := ctx.(RawFrameVisitor)
		return ok
	case Inspecting:
		_, ok := ctx.(FrameVisitor)
		return ok
	default:
		return false
	}
}

// UnwindContext is the context for an ExceptionHandling walk: the stack
// pointer at which the search for a handler started and the exception being
// raised. The unwind machinery consults it when transferring control to the
// chosen handler frame.
type UnwindContext struct {
	// StackPointer is the stack pointer of the frame in which the exception
	// was raised; handlers in frames below it are not candidates.
	StackPointer uintptr
	// Exception is the managed exception value being propagated.
	Exception interface{}
}

// ReferenceMapPreparer is the context for a ReferenceMapPreparing walk. The
// walk loop does not invoke it directly; each managed frame's stepper calls
// PrepareFrame with the frame's cursors so the preparer can record which
// stack slots hold references. Implementations must not allocate.
type ReferenceMapPreparer interface {
	PrepareFrame(current, callee *Cursor) bool
}
