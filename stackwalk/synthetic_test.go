package stackwalk_test

// Synthetic stacks for exercising the walker: code regions, methods, frame
// records and transition anchors are all laid out in a fake word-addressed
// memory, and each synthetic code region steps frames by reading the
// caller's (ip, sp, fp) triple stored at the frame's stack pointer.

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embervm/stackwalk-go/internal/fatal"
	"github.com/embervm/stackwalk-go/stackwalk"
)

type testMethod struct {
	name      string
	vmEntry   bool
	trapStub  bool
	invisible bool
}

func (m *testMethod) Name() string               { return m.name }
func (m *testMethod) IsVMEntryPoint() bool       { return m.vmEntry }
func (m *testMethod) IsTrapStub() bool           { return m.trapStub }
func (m *testMethod) IsApplicationVisible() bool { return !m.invisible }

// Offsets of the caller triple stored at a synthetic frame's stack pointer.
const (
	callerIPOff = 0
	callerSPOff = 8
	callerFPOff = 16
)

// testCode is one region of synthetic compiled code.
type testCode struct {
	method   *testMethod
	start    uintptr
	size     uintptr
	bridging bool
	inlined  []stackwalk.Method
	// onWalk observes the walker while this code's frame is being stepped.
	onWalk func(w *stackwalk.Walker)
	// stop makes the stepper request termination after visiting the frame.
	stop bool
	// self is the descriptor registered with the resolver, set when the
	// testCode is embedded in a larger descriptor type.
	self stackwalk.CodeDescriptor
}

func (c *testCode) Method() stackwalk.Method {
	if c.method == nil {
		return nil
	}
	return c.method
}

func (c *testCode) CodeStart() uintptr { return c.start }

func (c *testCode) MethodsAt(ip uintptr) []stackwalk.Method { return c.inlined }

func (c *testCode) desc() stackwalk.CodeDescriptor {
	if c.self != nil {
		return c.self
	}
	return c
}

func (c *testCode) kind() stackwalk.FrameKind {
	if c.bridging {
		return stackwalk.FrameBridging
	}
	return stackwalk.FrameCompiled
}

func (c *testCode) AdvanceFrame(
	current, callee *stackwalk.Cursor,
	isTopFrame bool,
	lastManagedCallee stackwalk.CodeDescriptor,
	purpose stackwalk.Purpose,
	ctx interface{},
) bool {
	w := current.Walker()
	if c.onWalk != nil {
		c.onWalk(w)
	}
	switch purpose {
	case stackwalk.Inspecting:
		frame := &stackwalk.Frame{
			Kind:               c.kind(),
			Code:               c.desc(),
			InstructionPointer: current.InstructionPointer(),
			FramePointer:       current.FramePointer(),
			StackPointer:       current.StackPointer(),
			Callee:             w.CalleeFrame(),
		}
		if !ctx.(stackwalk.FrameVisitor).VisitFrame(frame) {
			return false
		}
	case stackwalk.RawInspecting:
		var flags stackwalk.RawFrameFlags
		if isTopFrame {
			flags |= stackwalk.RawFrameTop
		}
		if c.bridging {
			flags |= stackwalk.RawFrameBridging
		}
		if !ctx.(stackwalk.RawFrameVisitor).VisitRawFrame(
			c.desc(), current.InstructionPointer(), current.FramePointer(), current.StackPointer(), flags,
		) {
			return false
		}
	case stackwalk.ReferenceMapPreparing:
		if !ctx.(stackwalk.ReferenceMapPreparer).PrepareFrame(current, callee) {
			return false
		}
	}
	if c.stop {
		return false
	}
	sp := current.StackPointer()
	w.Advance(
		w.ReadWord(sp, callerIPOff),
		w.ReadWord(sp, callerSPOff),
		w.ReadWord(sp, callerFPOff),
	)
	return true
}

// testStub is a bridging stub with call-site records.
type testStub struct {
	testCode
	callSites []int
}

func newTestStub(method *testMethod, start, size uintptr, callSites []int) *testStub {
	s := &testStub{
		testCode:  testCode{method: method, start: start, size: size, bridging: true},
		callSites: callSites,
	}
	s.self = s
	return s
}

func (s *testStub) CodePositionFor(ip uintptr) int { return int(ip - s.start) }

func (s *testStub) NextCallSite(pos int) int {
	for _, cs := range s.callSites {
		if cs >= pos {
			return cs
		}
	}
	return -1
}

type codeRange struct {
	start, end uintptr
	desc       stackwalk.CodeDescriptor
}

// testTarget is a synthetic walkable thread.
type testTarget struct {
	codes []codeRange
	mem   map[uintptr]uintptr
	regs  []uintptr
	tls   []uintptr
}

func newTestTarget() *testTarget {
	return &testTarget{
		mem: make(map[uintptr]uintptr),
		tls: make([]uintptr, 1),
	}
}

func (t *testTarget) addCode(c *testCode) *testCode {
	t.codes = append(t.codes, codeRange{start: c.start, end: c.start + c.size, desc: c.desc()})
	return c
}

func (t *testTarget) addStub(s *testStub) *testStub {
	t.codes = append(t.codes, codeRange{start: s.start, end: s.start + s.size, desc: s})
	return s
}

// setFrameRecord stores the caller triple a synthetic stepper reads at sp.
func (t *testTarget) setFrameRecord(sp, callerIP, callerSP, callerFP uintptr) {
	t.mem[sp+callerIPOff] = callerIP
	t.mem[sp+callerSPOff] = callerSP
	t.mem[sp+callerFPOff] = callerFP
}

// setAnchor lays out a transition anchor at addr using DefaultAnchorLayout.
func (t *testTarget) setAnchor(addr, prev, pc, sp, fp uintptr) {
	layout := stackwalk.DefaultAnchorLayout
	t.mem[addr+uintptr(layout.PreviousOffset)] = prev
	t.mem[addr+uintptr(layout.PCOffset)] = pc
	t.mem[addr+uintptr(layout.SPOffset)] = sp
	t.mem[addr+uintptr(layout.FPOffset)] = fp
}

func (t *testTarget) ResolveCode(ip uintptr) stackwalk.CodeDescriptor {
	for i := range t.codes {
		if ip >= t.codes[i].start && ip < t.codes[i].end {
			return t.codes[i].desc
		}
	}
	return nil
}

func (t *testTarget) ReadWord(addr uintptr, off int) uintptr {
	return t.mem[addr+uintptr(off)]
}

func (t *testTarget) ReadByte(addr uintptr, off int) byte {
	return byte(t.mem[addr+uintptr(off)])
}

func (t *testTarget) ReadInt(addr uintptr, off int) int32 {
	return int32(t.mem[addr+uintptr(off)])
}

func (t *testTarget) ReadRegister(role stackwalk.RegisterRole, abi *stackwalk.ABI) uintptr {
	r := abi.RegisterFor(role)
	if int(r) < 0 || int(r) >= len(t.regs) {
		return 0
	}
	return t.regs[r]
}

func (t *testTarget) ReadThreadLocal(slot stackwalk.ThreadLocalSlot) uintptr {
	if int(slot) >= len(t.tls) {
		return 0
	}
	return t.tls[slot]
}

// collectingVisitor collects frames during Inspecting walks.
type collectingVisitor struct {
	frames []*stackwalk.Frame
	limit  int
}

func (v *collectingVisitor) VisitFrame(frame *stackwalk.Frame) bool {
	v.frames = append(v.frames, frame)
	return v.limit == 0 || len(v.frames) < v.limit
}

// countingRawVisitor counts raw frames without allocating.
type countingRawVisitor struct {
	compiled int
	native   int
}

func (v *countingRawVisitor) VisitRawFrame(
	code stackwalk.CodeDescriptor, ip, fp, sp uintptr, flags stackwalk.RawFrameFlags,
) bool {
	if code == nil {
		v.native++
	} else {
		v.compiled++
	}
	return true
}

// countingPreparer counts prepared frames without allocating.
type countingPreparer struct {
	frames int
}

func (p *countingPreparer) PrepareFrame(current, callee *stackwalk.Cursor) bool {
	p.frames++
	return true
}

// requireFatal asserts that f raises a fatal condition whose message
// contains want.
func requireFatal(t *testing.T, want string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a fatal condition")
		err, ok := r.(*fatal.Error)
		require.True(t, ok, "panic value is %T, not *fatal.Error", r)
		require.Contains(t, err.Error(), want)
	}()
	f()
}

// managedStack lays out three plain managed frames f0 (top) -> f1 -> f2 and
// returns the walk start triple.
func managedStack(t *testTarget, m0, m1, m2 *testMethod) (ip, sp, fp uintptr) {
	t.addCode(&testCode{method: m0, start: 0x1000, size: 0x100})
	t.addCode(&testCode{method: m1, start: 0x2000, size: 0x100})
	t.addCode(&testCode{method: m2, start: 0x3000, size: 0x100})
	t.setFrameRecord(0x8000, 0x2010, 0x8100, 0x8100)
	t.setFrameRecord(0x8100, 0x3010, 0x8200, 0x8200)
	t.setFrameRecord(0x8200, 0, 0, 0)
	return 0x1010, 0x8000, 0x8000
}
