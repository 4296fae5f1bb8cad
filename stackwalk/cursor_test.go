package stackwalk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type nullTarget struct{}

func (nullTarget) ResolveCode(ip uintptr) CodeDescriptor            { return nil }
func (nullTarget) ReadWord(addr uintptr, off int) uintptr           { return 0 }
func (nullTarget) ReadByte(addr uintptr, off int) byte              { return 0 }
func (nullTarget) ReadInt(addr uintptr, off int) int32              { return 0 }
func (nullTarget) ReadRegister(role RegisterRole, abi *ABI) uintptr { return 0 }
func (nullTarget) ReadThreadLocal(slot ThreadLocalSlot) uintptr     { return 0 }

type stubCode struct{}

func (stubCode) Method() Method     { return nil }
func (stubCode) CodeStart() uintptr { return 0 }
func (stubCode) AdvanceFrame(current, callee *Cursor, isTopFrame bool, lastManagedCallee CodeDescriptor, purpose Purpose, ctx interface{}) bool {
	return false
}

func TestCursorAdvanceCopiesCurrentIntoCallee(t *testing.T) {
	w := NewWalker(nullTarget{})
	w.current.setFields(stubCode{}, 0x10, 0x20, 0x30, 0x40, true)

	w.Advance(0x11, 0x21, 0x31)

	require.Equal(t, stubCode{}, w.callee.Code())
	require.Equal(t, uintptr(0x10), w.callee.InstructionPointer())
	require.Equal(t, uintptr(0x20), w.callee.StackPointer())
	require.Equal(t, uintptr(0x30), w.callee.FramePointer())
	require.Equal(t, uintptr(0x40), w.callee.RegisterSaveArea())
	require.True(t, w.callee.IsTopFrame())

	// Advancing clears the resolved descriptor, register-save area and
	// top-frame flag.
	require.Nil(t, w.current.Code())
	require.Equal(t, uintptr(0x11), w.current.InstructionPointer())
	require.Equal(t, uintptr(0x21), w.current.StackPointer())
	require.Equal(t, uintptr(0x31), w.current.FramePointer())
	require.Zero(t, w.current.RegisterSaveArea())
	require.False(t, w.current.IsTopFrame())
}

func TestCursorWalkerBackref(t *testing.T) {
	w := NewWalker(nullTarget{})
	require.Same(t, w, w.current.Walker())
	require.Same(t, w, w.callee.Walker())
}

func TestWalkerSentinel(t *testing.T) {
	w := NewWalker(nullTarget{})
	require.False(t, w.IsInUse())
	require.Zero(t, w.StackPointer())
	require.Equal(t, noPurpose, w.purpose)
}

func TestResetIsIdempotent(t *testing.T) {
	w := NewWalker(nullTarget{})
	w.current.setFields(stubCode{}, 0x10, 0x20, 0x30, 0, true)
	w.callee.setFields(stubCode{}, 0x11, 0x21, 0x31, 0, false)
	w.purpose = RawInspecting
	w.trapState = 0x50

	w.Reset()
	require.False(t, w.IsInUse())
	require.Zero(t, w.StackPointer())
	require.Zero(t, w.trapState)
	require.Equal(t, noPurpose, w.purpose)
	firstCurrent, firstCallee := w.current, w.callee

	w.Reset()
	require.Equal(t, firstCurrent, w.current)
	require.Equal(t, firstCallee, w.callee)
	require.Zero(t, w.trapState)
	require.Equal(t, noPurpose, w.purpose)
}
