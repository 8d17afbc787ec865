package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/oomsim/emu"
	"github.com/sarchlab/oomsim/insts"
)

var _ = Describe("Emulator", func() {
	It("runs a tight RAW chain and halts via syscall", func() {
		// li $t0,1; addi $t1,$t0,1; addi $t2,$t1,1; addi $t3,$t2,1; li $v0,10; syscall
		program := []*insts.Instruction{
			{SeqNo: 0, PC: 0x1000, Op: insts.OpLi, Rd: emu.RegT0, Imm: 1},
			{SeqNo: 1, PC: 0x1004, Op: insts.OpAddi, Rd: emu.RegT1, Rs1: emu.RegT0, Imm: 1},
			{SeqNo: 2, PC: 0x1008, Op: insts.OpAddi, Rd: emu.RegT2, Rs1: emu.RegT1, Imm: 1},
			{SeqNo: 3, PC: 0x100C, Op: insts.OpAddi, Rd: emu.RegT3, Rs1: emu.RegT2, Imm: 1},
			{SeqNo: 4, PC: 0x1010, Op: insts.OpLi, Rd: emu.RegV0, Imm: 10},
			{SeqNo: 5, PC: 0x1014, Op: insts.OpSyscall},
		}

		mem := emu.NewMemoryOfSize(8192)
		e := emu.NewEmulator(mem, program, 0x1000, 0x1000)
		exitCode := e.Run()

		Expect(exitCode).To(Equal(int64(0)))
		Expect(e.RegFile().ReadReg(emu.RegT3)).To(Equal(uint64(4)))
		Expect(e.InstructionCount()).To(Equal(uint64(6)))
	})

	It("forwards a stored value through memory on lw after sw", func() {
		program := []*insts.Instruction{
			{SeqNo: 0, PC: 0x1000, Op: insts.OpLi, Rd: emu.RegT0, Imm: 42},
			{SeqNo: 1, PC: 0x1004, Op: insts.OpSw, Rd: emu.RegT0, Rs1: emu.RegSp, Imm: 0},
			{SeqNo: 2, PC: 0x1008, Op: insts.OpLw, Rd: emu.RegT1, Rs1: emu.RegSp, Imm: 0},
			{SeqNo: 3, PC: 0x100C, Op: insts.OpLi, Rd: emu.RegV0, Imm: 10},
			{SeqNo: 4, PC: 0x1010, Op: insts.OpSyscall},
		}

		mem := emu.NewMemoryOfSize(8192)
		e := emu.NewEmulator(mem, program, 0x1000, 0x1000, emu.WithStackPointer(0x1F00))
		e.Run()

		Expect(e.RegFile().ReadReg(emu.RegT1)).To(Equal(uint64(42)))
	})

	It("reports a fault on an out-of-range load", func() {
		program := []*insts.Instruction{
			{SeqNo: 0, PC: 0x1000, Op: insts.OpLw, Rd: emu.RegT0, Rs1: emu.RegZero, Imm: 0x7FFFFFFF},
		}
		mem := emu.NewMemoryOfSize(4096)
		e := emu.NewEmulator(mem, program, 0x1000, 0x1000)
		result := e.Step()

		Expect(result.Err).To(HaveOccurred())
	})
})
