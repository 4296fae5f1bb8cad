package inspector

import (
	"github.com/embervm/stackwalk-go/internal/memread"
	"github.com/embervm/stackwalk-go/stackwalk"
)

// Memory provides raw reads of a suspended thread's address space. A remote
// attach substitutes a reader over the target process; self-inspection uses
// LocalMemory.
type Memory interface {
	Word(addr uintptr, off int) uintptr
	Byte(addr uintptr, off int) byte
	Int(addr uintptr, off int) int32
}

// LocalMemory reads the current address space directly. Only valid for
// walking threads of this process while they are suspended.
type LocalMemory struct{}

func (LocalMemory) Word(addr uintptr, off int) uintptr { return memread.Word(addr, off) }
func (LocalMemory) Byte(addr uintptr, off int) byte    { return memread.Byte(addr, off) }
func (LocalMemory) Int(addr uintptr, off int) int32    { return memread.Int(addr, off) }

// ThreadState is the captured state of one suspended thread: its saved
// register file, its thread-local slots and a capability over its memory. It
// implements stackwalk.Target so a walker can be pointed directly at it.
type ThreadState struct {
	// Code resolves instruction pointers to compiled-code descriptors.
	Code stackwalk.CodeResolver
	// Mem reads the thread's address space.
	Mem Memory
	// Registers holds the saved register file, indexed by
	// stackwalk.Register.
	Registers []uintptr
	// ThreadLocals holds the thread's fixed-slot local storage, indexed by
	// stackwalk.ThreadLocalSlot.
	ThreadLocals []uintptr
}

var _ stackwalk.Target = (*ThreadState)(nil)

func (t *ThreadState) ResolveCode(ip uintptr) stackwalk.CodeDescriptor {
	return t.Code.ResolveCode(ip)
}

func (t *ThreadState) ReadWord(addr uintptr, off int) uintptr {
	return t.Mem.Word(addr, off)
}

func (t *ThreadState) ReadByte(addr uintptr, off int) byte {
	return t.Mem.Byte(addr, off)
}

func (t *ThreadState) ReadInt(addr uintptr, off int) int32 {
	return t.Mem.Int(addr, off)
}

func (t *ThreadState) ReadRegister(role stackwalk.RegisterRole, abi *stackwalk.ABI) uintptr {
	r := abi.RegisterFor(role)
	if int(r) < 0 || int(r) >= len(t.Registers) {
		return 0
	}
	return t.Registers[r]
}

func (t *ThreadState) ReadThreadLocal(slot stackwalk.ThreadLocalSlot) uintptr {
	if int(slot) < 0 || int(slot) >= len(t.ThreadLocals) {
		return 0
	}
	return t.ThreadLocals[slot]
}

// Start returns the (ip, sp, fp) triple at which a walk of this thread
// begins, read from the registers designated by abi.
func (t *ThreadState) Start(abi *stackwalk.ABI) (ip, sp, fp uintptr) {
	return t.ReadRegister(stackwalk.RoleInstructionPointer, abi),
		t.ReadRegister(stackwalk.RoleStackPointer, abi),
		t.ReadRegister(stackwalk.RoleFramePointer, abi)
}
