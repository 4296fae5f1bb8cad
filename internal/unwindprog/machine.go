// Package unwindprog implements a small stack machine evaluating unwind
// programs: compact bytecode describing how to recover a caller's
// instruction pointer, stack pointer and frame pointer from a frame's
// current position. Code with a fixed frame layout can carry an unwind
// program instead of hand-written stepping logic.
package unwindprog

// WordFunc reads one word of target memory.
type WordFunc func(addr uintptr) uintptr

const (
	stackDepth = 16
	stepBudget = 4096
)

// Machine evaluates unwind programs. The zero value is ready to use and a
// Machine can be reused across frames. Run does not allocate, so it is safe
// in allocation-sensitive walks.
type Machine struct {
	stack   [stackDepth]uintptr
	n       int
	decoder OpDecoder
}

// Caller is the frame position recovered by an unwind program.
type Caller struct {
	IP uintptr
	SP uintptr
	FP uintptr
}

// Run evaluates prog against a frame at (ip, sp, fp), reading target memory
// through read. It reports false for a malformed program: an invalid or
// truncated opcode, operand stack underflow or overflow, or a program that
// does not terminate within the step budget.
func (m *Machine) Run(prog []byte, read WordFunc, ip, sp, fp uintptr) (Caller, bool) {
	m.n = 0
	m.decoder = MakeOpDecoder(prog)
	var out Caller

	for i := 0; i < stepBudget; i++ {
		if int(m.decoder.pc) >= len(prog) {
			return Caller{}, false
		}
		code := OpCode(prog[m.decoder.pc])
		if n := operandLen(code); n < 0 || int(m.decoder.pc)+1+n > len(prog) {
			return Caller{}, false
		}

		switch m.decoder.PopOpCode() {
		case OpCodePushIP:
			if !m.push(ip) {
				return Caller{}, false
			}
		case OpCodePushSP:
			if !m.push(sp) {
				return Caller{}, false
			}
		case OpCodePushFP:
			if !m.push(fp) {
				return Caller{}, false
			}
		case OpCodePushImm:
			imm := m.decoder.DecodePushImm()
			if !m.push(uintptr(imm.Value)) {
				return Caller{}, false
			}
		case OpCodeAddImm:
			addImm := m.decoder.DecodeAddImm()
			if m.n == 0 {
				return Caller{}, false
			}
			m.stack[m.n-1] += uintptr(addImm.Delta)
		case OpCodeAdd:
			if m.n < 2 {
				return Caller{}, false
			}
			m.stack[m.n-2] += m.stack[m.n-1]
			m.n--
		case OpCodeDeref:
			if m.n == 0 {
				return Caller{}, false
			}
			m.stack[m.n-1] = read(m.stack[m.n-1])
		case OpCodeSetCallerIP:
			v, ok := m.pop()
			if !ok {
				return Caller{}, false
			}
			out.IP = v
		case OpCodeSetCallerSP:
			v, ok := m.pop()
			if !ok {
				return Caller{}, false
			}
			out.SP = v
		case OpCodeSetCallerFP:
			v, ok := m.pop()
			if !ok {
				return Caller{}, false
			}
			out.FP = v
		case OpCodeDone:
			return out, true
		}
	}
	return Caller{}, false
}

func (m *Machine) push(v uintptr) bool {
	if m.n == stackDepth {
		return false
	}
	m.stack[m.n] = v
	m.n++
	return true
}

func (m *Machine) pop() (uintptr, bool) {
	if m.n == 0 {
		return 0, false
	}
	m.n--
	return m.stack[m.n], true
}
