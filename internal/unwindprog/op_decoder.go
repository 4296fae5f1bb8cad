package unwindprog

import (
	"encoding/binary"
	"fmt"
)

// OpDecoder is a decoder for unwind program operations.
type OpDecoder struct {
	pc    uint32
	opBuf []byte
}

// MakeOpDecoder creates a new OpDecoder.
func MakeOpDecoder(opBuf []byte) OpDecoder {
	return OpDecoder{
		pc:    0,
		opBuf: opBuf,
	}
}

// SetPC sets the program counter of the decoder.
func (d *OpDecoder) SetPC(pc uint32) bool {
	if pc >= uint32(len(d.opBuf)) {
		return false
	}
	d.pc = pc
	return true
}

// PC returns the program counter of the decoder.
func (d *OpDecoder) PC() uint32 {
	return d.pc
}

type OpCode uint8

const (
	OpCodeInvalid     OpCode = 0
	OpCodePushIP      OpCode = 1
	OpCodePushSP      OpCode = 2
	OpCodePushFP      OpCode = 3
	OpCodePushImm     OpCode = 4
	OpCodeAddImm      OpCode = 5
	OpCodeAdd         OpCode = 6
	OpCodeDeref       OpCode = 7
	OpCodeSetCallerIP OpCode = 8
	OpCodeSetCallerSP OpCode = 9
	OpCodeSetCallerFP OpCode = 10
	OpCodeDone        OpCode = 11
)

func (c OpCode) String() string {
	switch c {
	case OpCodePushIP:
		return "PushIP"
	case OpCodePushSP:
		return "PushSP"
	case OpCodePushFP:
		return "PushFP"
	case OpCodePushImm:
		return "PushImm"
	case OpCodeAddImm:
		return "AddImm"
	case OpCodeAdd:
		return "Add"
	case OpCodeDeref:
		return "Deref"
	case OpCodeSetCallerIP:
		return "SetCallerIP"
	case OpCodeSetCallerSP:
		return "SetCallerSP"
	case OpCodeSetCallerFP:
		return "SetCallerFP"
	case OpCodeDone:
		return "Done"
	default:
		return fmt.Sprintf("Invalid(%d)", uint8(c))
	}
}

type (
	OpPushImm struct {
		Value uint32
	}
	OpAddImm struct {
		Delta int32
	}
)

func (d *OpDecoder) PopOpCode() OpCode {
	code := OpCode(d.opBuf[d.pc])
	d.pc += 1
	return code
}

func (d *OpDecoder) DecodePushImm() OpPushImm {
	value := binary.LittleEndian.Uint32(d.opBuf[d.pc:])
	d.pc += 4
	return OpPushImm{
		Value: value,
	}
}

func (d *OpDecoder) DecodeAddImm() OpAddImm {
	delta := int32(binary.LittleEndian.Uint32(d.opBuf[d.pc:]))
	d.pc += 4
	return OpAddImm{
		Delta: delta,
	}
}

// operandLen returns the number of operand bytes following an opcode, or -1
// for an invalid opcode.
func operandLen(code OpCode) int {
	switch code {
	case OpCodePushImm, OpCodeAddImm:
		return 4
	case OpCodePushIP, OpCodePushSP, OpCodePushFP,
		OpCodeAdd, OpCodeDeref,
		OpCodeSetCallerIP, OpCodeSetCallerSP, OpCodeSetCallerFP,
		OpCodeDone:
		return 0
	default:
		return -1
	}
}

// Op is one decoded operation, for diagnostics.
type Op struct {
	Pc   int32
	Code OpCode
	Op   any
}

func (d *Op) String() string {
	return fmt.Sprintf("Op{Pc: %d, Code: %s, Op: %v}", d.Pc, d.Code, d.Op)
}

// PeekOp decodes the operation at the decoder's position without consuming
// it.
func (d *OpDecoder) PeekOp() Op {
	pc := d.pc
	defer func() { d.pc = pc }()

	code := d.PopOpCode()
	var op any
	switch code {
	case OpCodePushImm:
		op = d.DecodePushImm()
	case OpCodeAddImm:
		op = d.DecodeAddImm()
	}
	return Op{
		Pc:   int32(pc),
		Code: code,
		Op:   op,
	}
}
