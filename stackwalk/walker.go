// Package stackwalk implements the mechanism for iterating over the frames
// in a thread's stack, crossing between compiled managed code, native code
// and the bridging stubs between them.
//
// A Walker owns exactly two cursors and mutates them in place, so walks for
// exception handling, reference-map preparation and raw inspection perform
// no heap allocation; those walks are legal even while the allocator itself
// is unavailable. A walker is bound to one thread and is not safe for
// concurrent or nested use.
package stackwalk

import (
	"github.com/embervm/stackwalk-go/internal/fatal"
	"github.com/embervm/stackwalk-go/internal/fifo"
	"github.com/embervm/stackwalk-go/internal/unwindprog"
)

// noPurpose is the purpose field value of an idle walker.
const noPurpose Purpose = -1

// Walker walks the frames of one thread's stack. Construct one walker per
// walkable thread with NewWalker and reuse it for every walk of that thread.
type Walker struct {
	target  Target
	cfg     config
	anchors AnchorLayout

	// The two cursors are the only per-frame state of a walk. They are
	// destructively updated as the walk advances.
	current Cursor
	callee  Cursor

	purpose       Purpose
	currentAnchor uintptr
	calleeFrame   *Frame
	trapState     uintptr

	// Reused across walks so exception walks stay allocation free.
	unwindContext UnwindContext

	// Reused by ProgramCode frame stepping.
	machine  unwindprog.Machine
	readWord unwindprog.WordFunc
}

// Option configures a Walker.
type Option interface {
	apply(*config)
}

type config struct {
	trace       bool
	traceLogger Logger
	anchors     AnchorLayout
}

type optionFunc func(cfg *config)

func (f optionFunc) apply(cfg *config) {
	f(cfg)
}

// WithTracing enables or disables walk tracing: a line at walk start and
// end, one per managed frame and one per native-boundary frame. The trace
// sink may allocate, so tracing should stay off when the allocation-free
// guarantee matters. Defaults to the STACKWALK_TRACE environment variable.
func WithTracing(enabled bool) Option {
	return optionFunc(func(cfg *config) {
		cfg.trace = enabled
	})
}

// WithTraceLogger sets the sink for trace output. Defaults to log.Printf.
func WithTraceLogger(f Logger) Option {
	return optionFunc(func(cfg *config) {
		cfg.traceLogger = f
	})
}

// WithAnchorLayout overrides the transition anchor layout. Defaults to
// DefaultAnchorLayout.
func WithAnchorLayout(layout AnchorLayout) Option {
	return optionFunc(func(cfg *config) {
		cfg.anchors = layout
	})
}

// NewWalker constructs a walker over the given target thread.
func NewWalker(target Target, opts ...Option) *Walker {
	cfg := makeDefaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	w := &Walker{
		target:  target,
		cfg:     cfg,
		anchors: cfg.anchors,
		purpose: noPurpose,
	}
	w.current.walker = w
	w.callee.walker = w
	w.readWord = func(addr uintptr) uintptr {
		return w.target.ReadWord(addr, 0)
	}
	return w
}

// runUnwindProgram evaluates prog against the current frame with the
// walker's reusable machine.
func (w *Walker) runUnwindProgram(prog []byte) (unwindprog.Caller, bool) {
	return w.machine.Run(prog, w.readWord,
		w.current.instructionPointer, w.current.stackPointer, w.current.framePointer)
}

// / walk drives the frame-walk loop. It does not reset the walker: a walk for
// exception handling leaves the walker in use until the unwind machinery
// transfers control to the handler frame; for all other purposes the public
// entry points reset before returning.
func (w *Walker) walk(ip, sp, fp uintptr, purpose Purpose, ctx interface{}) {
	w.checkPurpose(purpose, ctx)

	w.current.reset()
	w.callee.reset()

	w.current.instructionPointer = ip
	w.current.stackPointer = sp
	w.current.framePointer = fp
	w.current.topFrame = true

	w.trapState = 0
	w.purpose = purpose
	w.currentAnchor = w.target.ReadThreadLocal(SlotLastAnchor)
	topFrame := true
	inNative := w.currentAnchor != 0 && w.target.ReadWord(w.currentAnchor, w.anchors.PCOffset) != 0

	var lastManagedCallee CodeDescriptor

loop:
	for w.current.stackPointer != 0 {
		code := w.target.ResolveCode(w.current.instructionPointer)
		w.current.code = code
		if code != nil && (!inNative || purpose.inspecting()) {
			// Compiled managed frame.
			inNative = false
			w.traceCompiledFrame(topFrame, code)
			w.checkVMEntryPointCaller(lastManagedCallee, code)

			// Record the last managed callee from the current frame before
			// the stepper rewrites the current frame below.
			if !code.AdvanceFrame(&w.current, &w.callee, topFrame, lastManagedCallee, purpose, ctx) {
				break loop
			}
			lastManagedCallee = code
			if m := code.Method(); m == nil || !m.IsTrapStub() {
				// Trap state is only meaningful for the single frame
				// immediately below the trap stub.
				w.trapState = 0
			}
		} else {
			// Native-boundary frame.
			w.traceNativeFrame()
			switch purpose {
			case Inspecting:
				frame := &Frame{
					Kind:               FrameNative,
					InstructionPointer: w.current.instructionPointer,
					FramePointer:       w.current.framePointer,
					StackPointer:       w.current.stackPointer,
					Callee:             w.calleeFrame,
				}
				if !ctx.(FrameVisitor).VisitFrame(frame) {
					break loop
				}
			case RawInspecting:
				flags := makeRawFrameFlags(topFrame, false)
				if !ctx.(RawFrameVisitor).VisitRawFrame(nil, w.current.instructionPointer, w.current.framePointer, w.current.stackPointer, flags) {
					break loop
				}
			}

			if inNative {
				inNative = false
				w.advanceFrameInNative(purpose)
			} else {
				if lastManagedCallee == nil {
					// A native function entered the runtime directly, e.g.
					// the initial thread entry. The outermost boundary.
					break loop
				}
				m := lastManagedCallee.Method()
				switch {
				case m != nil && m.IsVMEntryPoint():
					if m.IsTrapStub() {
						// Only occurs when an inspector observes a thread
						// paused in the trap stub's prologue, before the
						// trap frame has been completed.
						break loop
					}
					if !w.advanceVMEntryPointFrame(lastManagedCallee) {
						break loop
					}
				case m == nil:
					fatal.Unexpected("unrecognized compiled code at %#x without a method identity", w.current.instructionPointer)
				default:
					fatal.Unexpected("native code called managed method %q which is not a bridging stub, trap stub or VM entry point", m.Name())
				}
			}
			lastManagedCallee = nil
		}
		topFrame = false
	}
}

func (w *Walker) checkPurpose(purpose Purpose, ctx interface{}) {
	w.traceWalkStart(purpose)
	if !purpose.isValidContext(ctx) {
		fatal.Unexpected("invalid context of type %T for stack walk purpose %s", ctx, purpose)
	}
	if w.current.stackPointer != 0 {
		inUseFor := w.purpose
		w.current.stackPointer = 0
		w.purpose = noPurpose
		fatal.Unexpected("stack frame walker already in use for %s", inUseFor)
	}
}

func (w *Walker) checkVMEntryPointCaller(lastManagedCallee, code CodeDescriptor) {
	if lastManagedCallee == nil {
		return
	}
	m := lastManagedCallee.Method()
	if m != nil && m.IsVMEntryPoint() && !m.IsTrapStub() {
		name := "<no method>"
		if cm := code.Method(); cm != nil {
			name = cm.Name()
		}
		fatal.Unexpected("caller of VM entry point %q must be native code, found %q", m.Name(), name)
	}
}

// UnwindForException walks the stack searching for an exception handler.
//
// This entry point does not reset the walker: the code that unwinds the
// stack to the chosen handler frame is expected to reset it, so that a
// reentrant exception raised while unwinding is detected as such.
func (w *Walker) UnwindForException(ip, sp, fp uintptr, exception interface{}) {
	w.unwindContext = UnwindContext{StackPointer: sp, Exception: exception}
	w.walk(ip, sp, fp, ExceptionHandling, &w.unwindContext)
}

// PrepareReferenceMap walks the stack to prepare the thread's stack
// reference map. The walker is reset before returning.
func (w *Walker) PrepareReferenceMap(ip, sp, fp uintptr, preparer ReferenceMapPreparer) {
	w.walk(ip, sp, fp, ReferenceMapPreparing, preparer)
	w.Reset()
}

// VerifyReferenceMap walks the stack to verify the thread's stack reference
// map. The walker is reset before returning.
func (w *Walker) VerifyReferenceMap(ip, sp, fp uintptr, preparer ReferenceMapPreparer) {
	w.walk(ip, sp, fp, ReferenceMapPreparing, preparer)
	w.Reset()
}

// InspectRaw walks the stack delivering raw frame addresses to visitor
// without allocating. The walker is reset before returning.
func (w *Walker) InspectRaw(ip, sp, fp uintptr, visitor RawFrameVisitor) {
	w.walk(ip, sp, fp, RawInspecting, visitor)
	w.calleeFrame = nil
	w.Reset()
}

// inspectWrapper records each visited frame as the callee context for the
// next frame to be visited.
type inspectWrapper struct {
	w       *Walker
	visitor FrameVisitor
}

func (iw *inspectWrapper) VisitFrame(frame *Frame) bool {
	if iw.w.calleeFrame == nil || !frame.IsSame(iw.w.calleeFrame) {
		iw.w.calleeFrame = frame
	} else {
		iw.w.tracef("stackwalk: same frame visited twice: %s@%#x", frame.Kind, frame.StackPointer)
	}
	return iw.visitor.VisitFrame(frame)
}

// Inspect walks the stack delivering constructed Frame values to visitor.
// The walker is reset before returning.
func (w *Walker) Inspect(ip, sp, fp uintptr, visitor FrameVisitor) {
	wrapper := inspectWrapper{w: w, visitor: visitor}
	w.walk(ip, sp, fp, Inspecting, &wrapper)
	w.calleeFrame = nil
	w.Reset()
}

type framesCollector struct {
	q fifo.Queue[*Frame]
}

func (c *framesCollector) VisitFrame(frame *Frame) bool {
	c.q.PushBack(frame)
	return true
}

// Frames collects every frame of the stack, top frame first, including
// native and bridging frames, appending to dst (which may be nil).
func (w *Walker) Frames(dst []*Frame, ip, sp, fp uintptr) []*Frame {
	var c framesCollector
	w.Inspect(ip, sp, fp, &c)
	for c.q.Len() > 0 {
		dst = append(dst, c.q.PopFront())
	}
	return dst
}

// Reset terminates the current stack walk, returning the walker to its idle
// state. Resetting an idle walker is a no-op.
func (w *Walker) Reset() {
	w.traceWalkEnd(w.purpose)
	w.current.reset()
	w.callee.reset()
	w.trapState = 0
	w.purpose = noPurpose
}

// IsInUse reports whether a walk is active on this walker. Fault handlers
// use this to detect a fault raised while already walking the thread's
// stack.
func (w *Walker) IsInUse() bool {
	return w.current.stackPointer != 0
}

// Advance records the current frame as the callee and repositions the
// current cursor at (ip, sp, fp). Frame steppers call this to step to the
// caller frame.
func (w *Walker) Advance(ip, sp, fp uintptr) {
	w.callee.copyFrom(&w.current)
	w.current.Advance(ip, sp, fp)
}

// UseABI updates the walker's logical stack and frame pointers from the
// registers designated by abi. By default the walker uses the pointers
// defined by the CPU; a frame whose calling convention keeps them elsewhere
// switches the walker over with this method.
func (w *Walker) UseABI(abi *ABI) {
	w.current.stackPointer = w.target.ReadRegister(RoleStackPointer, abi)
	w.current.framePointer = w.target.ReadRegister(RoleFramePointer, abi)
}

// StackPointer returns the current cursor's stack pointer. Zero while the
// walker is idle.
func (w *Walker) StackPointer() uintptr {
	return w.current.stackPointer
}

// FramePointer returns the current cursor's frame pointer.
func (w *Walker) FramePointer() uintptr {
	return w.current.framePointer
}

// InstructionPointer returns the current cursor's instruction pointer.
func (w *Walker) InstructionPointer() uintptr {
	return w.current.instructionPointer
}

// CalleeFrame returns the frame most recently visited during an Inspecting
// walk, i.e. the callee of the next frame to be visited.
func (w *Walker) CalleeFrame() *Frame {
	return w.calleeFrame
}

// SetTrapState records the trap state while walking a trap stub frame. The
// state can be read while walking the frame in which the trap occurred and
// is cleared after that frame.
func (w *Walker) SetTrapState(trapState uintptr) {
	w.trapState = trapState
}

// TrapState returns the state stored by the trap stub frame just below the
// frame currently being walked, or zero if the current frame is not one in
// which a trap occurred.
func (w *Walker) TrapState() uintptr {
	return w.trapState
}

// ReadWord reads a pointer-sized value from the target at addr+off.
func (w *Walker) ReadWord(addr uintptr, off int) uintptr {
	return w.target.ReadWord(addr, off)
}

// ReadByte reads one byte from the target at addr+off.
func (w *Walker) ReadByte(addr uintptr, off int) byte {
	return w.target.ReadByte(addr, off)
}

// ReadInt reads a 32-bit value from the target at addr+off.
func (w *Walker) ReadInt(addr uintptr, off int) int32 {
	return w.target.ReadInt(addr, off)
}

// ReadRegister reads the saved value of the register filling role under abi.
func (w *Walker) ReadRegister(role RegisterRole, abi *ABI) uintptr {
	return w.target.ReadRegister(role, abi)
}
