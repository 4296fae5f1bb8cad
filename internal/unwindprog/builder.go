package unwindprog

import "encoding/binary"

// Builder assembles unwind programs.
type Builder struct {
	buf []byte
}

func (b *Builder) op(code OpCode) *Builder {
	b.buf = append(b.buf, byte(code))
	return b
}

func (b *Builder) u32(v uint32) *Builder {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
	return b
}

func (b *Builder) PushIP() *Builder      { return b.op(OpCodePushIP) }
func (b *Builder) PushSP() *Builder      { return b.op(OpCodePushSP) }
func (b *Builder) PushFP() *Builder      { return b.op(OpCodePushFP) }
func (b *Builder) Add() *Builder         { return b.op(OpCodeAdd) }
func (b *Builder) Deref() *Builder       { return b.op(OpCodeDeref) }
func (b *Builder) SetCallerIP() *Builder { return b.op(OpCodeSetCallerIP) }
func (b *Builder) SetCallerSP() *Builder { return b.op(OpCodeSetCallerSP) }
func (b *Builder) SetCallerFP() *Builder { return b.op(OpCodeSetCallerFP) }

func (b *Builder) PushImm(v uint32) *Builder {
	return b.op(OpCodePushImm).u32(v)
}

func (b *Builder) AddImm(delta int32) *Builder {
	return b.op(OpCodeAddImm).u32(uint32(delta))
}

// Done terminates the program and returns the assembled bytecode.
func (b *Builder) Done() []byte {
	b.op(OpCodeDone)
	return b.buf
}

// FrameRecord assembles the common program for code that stores the caller's
// (ip, sp, fp) triple as three consecutive words at a fixed offset from the
// frame's stack pointer.
func FrameRecord(spOffset int32) []byte {
	var b Builder
	return b.
		PushSP().AddImm(spOffset).Deref().SetCallerIP().
		PushSP().AddImm(spOffset + 8).Deref().SetCallerSP().
		PushSP().AddImm(spOffset + 16).Deref().SetCallerFP().
		Done()
}
