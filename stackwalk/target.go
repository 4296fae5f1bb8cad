package stackwalk

// Register identifies one hardware register of the target architecture. The
// numbering is architecture-specific; the walker never interprets it beyond
// passing it back to the target's register reader.
type Register int

// RegisterRole names the logical role a register plays during a walk. Which
// hardware register fills a role depends on the ABI in effect.
type RegisterRole int

const (
	// RoleInstructionPointer is the logical program counter.
	RoleInstructionPointer RegisterRole = iota
	// RoleStackPointer is the logical stack pointer.
	RoleStackPointer
	// RoleFramePointer is the logical frame pointer.
	RoleFramePointer
)

// ABI maps register roles to hardware registers for one calling convention.
// Compiled code mostly runs under the platform default, but some bridging
// stubs keep their logical stack and frame pointers in other registers; a
// frame stepper switches the walker over with Walker.UseABI.
type ABI struct {
	Name               string
	InstructionPointer Register
	StackPointer       Register
	FramePointer       Register
}

// RegisterFor returns the hardware register filling the given role.
func (a *ABI) RegisterFor(role RegisterRole) Register {
	switch role {
	case RoleInstructionPointer:
		return a.InstructionPointer
	case RoleStackPointer:
		return a.StackPointer
	default:
		return a.FramePointer
	}
}

// ThreadLocalSlot identifies one fixed slot in a thread's local storage
// block.
type ThreadLocalSlot int

// SlotLastAnchor holds the pointer to the most recent transition anchor
// written by a bridging stub, or zero if the thread has never left managed
// code.
const SlotLastAnchor ThreadLocalSlot = 0

// Method is the identity of a managed method as seen by the walker. It is
// supplied by the code metadata owner; the walker consults only the flags.
type Method interface {
	// Name returns a human-readable identifier, used in trace and fatal
	// output only.
	Name() string
	// IsVMEntryPoint reports whether the method is reachable only as a call
	// target from native code (thread start, upcalls).
	IsVMEntryPoint() bool
	// IsTrapStub reports whether the method is the distinguished stub that
	// runs on a hardware trap.
	IsTrapStub() bool
	// IsApplicationVisible reports whether the method should appear in
	// application-facing call chains.
	IsApplicationVisible() bool
}

// CodeDescriptor associates a range of compiled code with its frame layout
// and stepping behavior. Descriptors are owned by the code metadata system;
// the walker resolves one per frame and consults only its flags and its
// stepping callback.
type CodeDescriptor interface {
	// Method returns the managed method this code was compiled from, or nil
	// for compiler-generated code with no method identity.
	Method() Method

	// CodeStart returns the first instruction address of the compiled code.
	CodeStart() uintptr

	// AdvanceFrame steps the walker from the frame described by current to
	// its caller. The implementation must mutate current (via
	// current.Walker().Advance or Cursor mutators) to the caller frame's
	// location. For the inspecting purposes it is also responsible for
	// delivering the frame to the visitor carried in ctx, and for the
	// reference-map purpose for invoking the preparer. Returning false stops
	// the walk without error.
	//
	// AdvanceFrame must not allocate unless purpose.Allocating() is true.
	AdvanceFrame(current, callee *Cursor, isTopFrame bool, lastManagedCallee CodeDescriptor, purpose Purpose, ctx interface{}) bool
}

// NativeStubCode is implemented by descriptors of bridging stubs, the
// generated code that performs managed-to-native transitions. It exposes the
// stub's call-site records so the walker can locate the outbound native call
// when resuming a walk from a transition anchor.
type NativeStubCode interface {
	CodeDescriptor

	// CodePositionFor converts an instruction pointer inside the stub to a
	// code offset.
	CodePositionFor(ip uintptr) int

	// NextCallSite returns the offset of the first call instruction at or
	// after pos, or -1 if the stub has no further call site.
	NextCallSite(pos int) int
}

// InlinedCode is implemented by descriptors whose compiled code may
// represent several inlined calls at one instruction pointer.
type InlinedCode interface {
	CodeDescriptor

	// MethodsAt returns the method identities live at ip, outermost caller
	// first. An empty result means ip carries no inlining metadata.
	MethodsAt(ip uintptr) []Method
}

// CodeResolver maps an instruction pointer to the descriptor of the compiled
// code containing it, or nil if the address is not in managed code.
type CodeResolver interface {
	ResolveCode(ip uintptr) CodeDescriptor
}

// Target supplies the walker's view of one walkable thread: code metadata
// resolution plus raw access to the thread's memory, saved registers, and
// thread-local storage. For a self-walk the accessors read the live address
// space; in an inspector they read a suspended thread's state, possibly
// across address spaces.
//
// None of the methods may allocate; they are called from allocation-free
// walks.
type Target interface {
	CodeResolver

	// ReadWord reads a pointer-sized value at addr+off.
	ReadWord(addr uintptr, off int) uintptr
	// ReadByte reads one byte at addr+off.
	ReadByte(addr uintptr, off int) byte
	// ReadInt reads a 32-bit value at addr+off.
	ReadInt(addr uintptr, off int) int32

	// ReadRegister reads the saved value of the hardware register filling
	// role under the given ABI.
	ReadRegister(role RegisterRole, abi *ABI) uintptr

	// ReadThreadLocal reads one fixed slot of the thread's local storage.
	ReadThreadLocal(slot ThreadLocalSlot) uintptr
}
