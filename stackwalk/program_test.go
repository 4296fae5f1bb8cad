package stackwalk_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embervm/stackwalk-go/internal/unwindprog"
	"github.com/embervm/stackwalk-go/stackwalk"
)

func (t *testTarget) addProgramCode(c *stackwalk.ProgramCode, size uintptr) *stackwalk.ProgramCode {
	t.codes = append(t.codes, codeRange{start: c.CodeStart(), end: c.CodeStart() + size, desc: c})
	return c
}

// programStack lays out three frames of program-stepped code f0 (top) -> f1
// -> f2 and returns the walk start triple.
func programStack(t *testTarget, prog []byte) (ip, sp, fp uintptr) {
	t.addProgramCode(stackwalk.NewProgramCode(&testMethod{name: "prog.f0"}, 0x1000, prog), 0x100)
	t.addProgramCode(stackwalk.NewProgramCode(&testMethod{name: "prog.f1"}, 0x2000, prog), 0x100)
	t.addProgramCode(stackwalk.NewProgramCode(&testMethod{name: "prog.f2"}, 0x3000, prog), 0x100)
	t.setFrameRecord(0x8000, 0x2010, 0x8100, 0x8100)
	t.setFrameRecord(0x8100, 0x3010, 0x8200, 0x8200)
	t.setFrameRecord(0x8200, 0, 0, 0)
	return 0x1010, 0x8000, 0x8000
}

func TestProgramCodeInspect(t *testing.T) {
	target := newTestTarget()
	ip, sp, fp := programStack(target, unwindprog.FrameRecord(0))
	w := stackwalk.NewWalker(target)

	v := &collectingVisitor{}
	w.Inspect(ip, sp, fp, v)
	require.Len(t, v.frames, 3)
	require.Equal(t, "prog.f0", v.frames[0].Code.Method().Name())
	require.Equal(t, "prog.f2", v.frames[2].Code.Method().Name())
	require.Equal(t, uintptr(0x3010), v.frames[2].InstructionPointer)
	require.Same(t, v.frames[0], v.frames[1].Callee)
}

func TestProgramCodeStrictPurposes(t *testing.T) {
	target := newTestTarget()
	ip, sp, fp := programStack(target, unwindprog.FrameRecord(0))
	w := stackwalk.NewWalker(target)

	raw := &countingRawVisitor{}
	w.InspectRaw(ip, sp, fp, raw)
	require.Equal(t, 3, raw.compiled)
	require.Zero(t, raw.native)

	p := &countingPreparer{}
	w.PrepareReferenceMap(ip, sp, fp, p)
	require.Equal(t, 3, p.frames)
}

func TestProgramCodeOffsetRecord(t *testing.T) {
	// Caller triple stored two words above the stack pointer.
	target := newTestTarget()
	target.addProgramCode(
		stackwalk.NewProgramCode(&testMethod{name: "prog.top"}, 0x1000, unwindprog.FrameRecord(16)), 0x100)
	target.addProgramCode(
		stackwalk.NewProgramCode(&testMethod{name: "prog.main"}, 0x2000, unwindprog.FrameRecord(16)), 0x100)
	target.setFrameRecord(0x8010, 0x2010, 0x8100, 0x8100)
	target.setFrameRecord(0x8110, 0, 0, 0)
	w := stackwalk.NewWalker(target)

	v := &collectingVisitor{}
	w.Inspect(0x1010, 0x8000, 0x8000, v)
	require.Len(t, v.frames, 2)
	require.Equal(t, uintptr(0x2010), v.frames[1].InstructionPointer)
}

func TestProgramCodeMalformedProgram(t *testing.T) {
	malformed := []byte{0xff}

	target := newTestTarget()
	ip, sp, fp := programStack(target, malformed)
	w := stackwalk.NewWalker(target)

	// Inspection treats the malformed program as the end of the walkable
	// stack after visiting the frame.
	v := &collectingVisitor{}
	w.Inspect(ip, sp, fp, v)
	require.Len(t, v.frames, 1)

	// Reference map preparation cannot tolerate a partial walk.
	requireFatal(t, "malformed unwind program", func() {
		w.PrepareReferenceMap(ip, sp, fp, &countingPreparer{})
	})
	w.Reset()
}

func TestProgramCodeWalkDoesNotAllocate(t *testing.T) {
	target := newTestTarget()
	ip, sp, fp := programStack(target, unwindprog.FrameRecord(0))
	w := stackwalk.NewWalker(target)
	raw := &countingRawVisitor{}

	allocs := testing.AllocsPerRun(100, func() {
		w.InspectRaw(ip, sp, fp, raw)
	})
	require.Zero(t, allocs)
}
