package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/oomsim/timing/core"
	"github.com/sarchlab/oomsim/timing/pipeline"
)

var _ = Describe("Core", func() {
	var cfg *pipeline.Config

	BeforeEach(func() {
		cfg = pipeline.DefaultConfig()
	})

	It("assembles a program and builds a driver", func() {
		c, err := core.NewCore(cfg, "\n.text\nmain:\n\tli $t0, 1\n\tsyscall\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).NotTo(BeNil())
		Expect(c.Driver()).NotTo(BeNil())
	})

	It("rejects a program with an unresolved label", func() {
		_, err := core.NewCore(cfg, "\n.text\nmain:\n\tbeq $zero, $zero, nowhere\n\tsyscall\n")
		Expect(err).To(HaveOccurred())
	})

	It("is not halted initially", func() {
		c, err := core.NewCore(cfg, "\n.text\nmain:\n\tli $t0, 1\n\tsyscall\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Halted()).To(BeFalse())
	})

	It("executes instructions through Tick", func() {
		c, err := core.NewCore(cfg, "\n.text\nmain:\n\tli $t0, 42\n\tli $v0, 10\n\tsyscall\n")
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 50 && !c.Halted(); i++ {
			c.Tick()
		}

		Expect(c.Halted()).To(BeTrue())
	})

	It("runs until halt and reports an exit code", func() {
		c, err := core.NewCore(cfg, "\n.text\nmain:\n\tli $v0, 10\n\tsyscall\n")
		Expect(err).NotTo(HaveOccurred())

		c.Run(1000)

		Expect(c.Halted()).To(BeTrue())
		Expect(c.ExitCode()).To(Equal(int64(0))) // no real exit-code register, see emu.HandleSyscall
	})

	It("reports cycle count through Results", func() {
		c, err := core.NewCore(cfg, "\n.text\nmain:\n\tli $t0, 1\n\tsyscall\n")
		Expect(err).NotTo(HaveOccurred())

		c.Run(1000)

		Expect(c.Results().Cycles).To(BeNumerically(">", 0))
		Expect(c.Results().InstructionsCommitted).To(Equal(uint64(2)))
	})

	It("stops Run at maxCycles when the program keeps running", func() {
		c, err := core.NewCore(cfg, "\n.text\nmain:\n\tli $t0, 0\nloop:\n\taddi $t0, $t0, 1\n\tbeq $zero, $zero, loop\n")
		Expect(err).NotTo(HaveOccurred())

		c.Run(20)

		Expect(c.Halted()).To(BeFalse())
		Expect(c.Results().Cycles).To(Equal(uint64(20)))
	})
})
