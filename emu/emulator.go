package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/oomsim/insts"
)

// StepResult reports the outcome of executing a single instruction.
type StepResult struct {
	Exited   bool
	ExitCode int64
	Err      error
}

// Emulator is a trimmed functional (non-timing) reference model. It
// executes the same decoded insts.Instruction stream the timing
// pipeline does, and is used in tests as the golden model that the
// out-of-order core's architectural end state must match.
type Emulator struct {
	regFile      *RegFile
	memory       *Memory
	alu          *ALU
	branch       *BranchUnit
	instructions []*insts.Instruction
	textBase     uint32

	stdout io.Writer
	stderr io.Writer

	instructionCount uint64
	maxInstructions  uint64
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) Option { return func(e *Emulator) { e.stdout = w } }

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) Option { return func(e *Emulator) { e.stderr = w } }

// WithMaxInstructions bounds execution; 0 means unlimited.
func WithMaxInstructions(max uint64) Option {
	return func(e *Emulator) { e.maxInstructions = max }
}

// WithStackPointer sets the initial $sp value.
func WithStackPointer(sp uint64) Option {
	return func(e *Emulator) { e.regFile.WriteReg(RegSp, sp) }
}

// NewEmulator creates an emulator over the given program.
func NewEmulator(memory *Memory, instructions []*insts.Instruction, textBase, entryPC uint32, opts ...Option) *Emulator {
	regFile := &RegFile{}
	regFile.PC = uint64(entryPC)

	e := &Emulator{
		regFile:      regFile,
		memory:       memory,
		instructions: instructions,
		textBase:     textBase,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.alu = NewALU(regFile)
	e.branch = NewBranchUnit(regFile)
	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile { return e.regFile }

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory { return e.memory }

// InstructionCount returns the number of instructions executed so far.
func (e *Emulator) InstructionCount() uint64 { return e.instructionCount }

func (e *Emulator) fetch() *insts.Instruction {
	idx := (uint32(e.regFile.PC) - e.textBase) / 4
	if int(idx) < 0 || int(idx) >= len(e.instructions) {
		return nil
	}
	return e.instructions[idx]
}

// Step executes a single instruction and advances PC.
func (e *Emulator) Step() (result StepResult) {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: fmt.Errorf("max instructions reached")}
	}

	defer func() {
		if r := recover(); r != nil {
			if fault, ok := r.(*FaultError); ok {
				result = StepResult{Err: fault}
				return
			}
			panic(r)
		}
	}()

	in := e.fetch()
	if in == nil {
		return StepResult{Err: fmt.Errorf("fetch out of range at PC=0x%X", e.regFile.PC)}
	}

	result = e.execute(in)
	e.instructionCount++
	return result
}

// Run executes until the program halts or faults; returns the exit code.
func (e *Emulator) Run() int64 {
	for {
		result := e.Step()
		if result.Exited {
			return result.ExitCode
		}
		if result.Err != nil {
			_, _ = fmt.Fprintf(e.stderr, "emulation error: %v\n", result.Err)
			return -1
		}
	}
}

func (e *Emulator) execute(in *insts.Instruction) StepResult {
	rs1, rs2, rd := int(in.Rs1), int(in.Rs2), int(in.Rd)

	switch in.Op {
	case insts.OpAdd:
		e.alu.Add(rd, rs1, rs2)
	case insts.OpAddi:
		e.alu.AddImm(rd, rs1, in.Imm)
	case insts.OpSub:
		e.alu.Sub(rd, rs1, rs2)
	case insts.OpMul:
		e.alu.Mul(rd, rs1, rs2)
	case insts.OpAnd:
		e.alu.And(rd, rs1, rs2)
	case insts.OpOr:
		e.alu.Or(rd, rs1, rs2)
	case insts.OpXor:
		e.alu.Xor(rd, rs1, rs2)
	case insts.OpSll:
		e.alu.Sll(rd, rs1, uint32(in.Imm))
	case insts.OpSrl:
		e.alu.Srl(rd, rs1, uint32(in.Imm))
	case insts.OpSlt:
		e.alu.Slt(rd, rs1, rs2)
	case insts.OpLi:
		e.alu.Li(rd, in.Imm)
	case insts.OpLa:
		e.alu.La(rd, in.Target)
	case insts.OpAddS:
		e.alu.AddS(rd, rs1, rs2)
	case insts.OpMulS:
		e.alu.MulS(rd, rs1, rs2)
	case insts.OpLw:
		addr := uint64(int64(e.regFile.ReadReg(rs1)) + int64(in.Imm))
		e.regFile.WriteReg(rd, uint64(e.memory.Read32(addr)))
	case insts.OpSw:
		addr := uint64(int64(e.regFile.ReadReg(rs1)) + int64(in.Imm))
		e.memory.Write32(addr, uint32(e.regFile.ReadReg(rd)))
	case insts.OpBeq, insts.OpBne, insts.OpBgt, insts.OpBge, insts.OpBle, insts.OpBlt:
		if e.branch.Taken(in.Op.String(), rs1, rs2) {
			e.regFile.PC = uint64(in.Target)
			return StepResult{}
		}
	case insts.OpJ:
		e.regFile.PC = uint64(in.Target)
		return StepResult{}
	case insts.OpJal:
		e.regFile.WriteReg(RegRa, e.regFile.PC+4)
		e.regFile.PC = uint64(in.Target)
		return StepResult{}
	case insts.OpJr:
		e.regFile.PC = e.regFile.ReadReg(rs1)
		return StepResult{}
	case insts.OpNop:
		// no-op
	case insts.OpSyscall:
		e.regFile.PC += 4
		r := HandleSyscall(e.regFile)
		return StepResult{Exited: r.Exited, ExitCode: r.ExitCode}
	default:
		return StepResult{Err: fmt.Errorf("unknown opcode at PC=0x%X", e.regFile.PC)}
	}

	e.regFile.PC += 4
	return StepResult{}
}
