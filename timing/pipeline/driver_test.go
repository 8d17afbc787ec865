package pipeline_test

import (
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/oomsim/emu"
	"github.com/sarchlab/oomsim/loader"
	"github.com/sarchlab/oomsim/timing/pipeline"
)

func buildDriver(cfg *pipeline.Config, source string) (*pipeline.Driver, *emu.Memory) {
	prog, err := loader.Assemble(source)
	Expect(err).NotTo(HaveOccurred())

	mem := emu.NewMemoryOfSize(cfg.MemorySize)
	mem.LoadProgram(0, prog.Memory)

	d := pipeline.NewDriver(cfg, mem, prog.Instructions, prog.TextBase, prog.EntryPC)
	return d, mem
}

func runToHalt(d *pipeline.Driver, maxCycles uint64) {
	for i := uint64(0); i < maxCycles; i++ {
		if d.Halted() || d.Fault() != nil || d.Drained() {
			return
		}
		d.Tick()
	}
}

var _ = Describe("Driver", func() {
	var cfg *pipeline.Config

	BeforeEach(func() {
		cfg = pipeline.DefaultConfig()
	})

	Describe("tight RAW chain", func() {
		It("commits in order and resolves every dependency through the CDB", func() {
			source := `
.text
main:
	li $t0, 1
	addi $t1, $t0, 1
	addi $t2, $t1, 1
	addi $t3, $t2, 1
	li $v0, 10
	syscall
`
			cfg.ALU.Latency = 1
			d, _ := buildDriver(cfg, source)
			runToHalt(d, 1000)

			Expect(d.Halted()).To(BeTrue())
			results := d.Results()
			Expect(results.InstructionsCommitted).To(Equal(uint64(6)))
			Expect(results.IPC).To(BeNumerically(">", 0))
			Expect(results.BranchMispredictions).To(Equal(uint64(0)))
		})
	})

	Describe("predicted-not-taken loop", func() {
		It("achieves high branch accuracy once gshare warms up", func() {
			var b strings.Builder
			b.WriteString(".text\nmain:\n\tli $t0, 0\n\tli $t1, 100\nloop:\n\taddi $t0, $t0, 1\n\tbne $t0, $t1, loop\n\tli $v0, 10\n\tsyscall\n")
			cfg.BranchPredictorType = "gshare"
			d, _ := buildDriver(cfg, b.String())
			runToHalt(d, 100000)

			Expect(d.Halted()).To(BeTrue())
			results := d.Results()
			Expect(results.BranchAccuracy).To(BeNumerically(">=", 0.9))
		})
	})

	Describe("store-to-load forwarding", func() {
		It("forwards the stored value without an extra D-cache read", func() {
			source := `
.text
main:
	li $t0, 42
	sw $t0, 0($sp)
	lw $t1, 0($sp)
	li $v0, 10
	syscall
`
			d, _ := buildDriver(cfg, source)
			runToHalt(d, 1000)

			Expect(d.Halted()).To(BeTrue())
			results := d.Results()
			Expect(results.DCacheAccesses).To(Equal(uint64(1))) // only the commit-time store write
		})
	})

	Describe("mispredict squash", func() {
		It("discards every speculative effect down the wrong path", func() {
			// Two passes through the same branch: taken on the first
			// (loop back), not-taken on the second (fall through and
			// exit) — guaranteed to disagree with an always-taken bias
			// at least once.
			source := `
.text
main:
	li $t0, 0
	li $t1, 2
loop:
	addi $t0, $t0, 1
	li $t2, 99
	bne $t0, $t1, loop
	li $t3, 7
	li $v0, 10
	syscall
`
			cfg.BranchPredictorType = "always_taken"
			d, _ := buildDriver(cfg, source)

			before := d.Results().StallsByCause["rob_full"]
			runToHalt(d, 1000)
			after := d.Results().StallsByCause["rob_full"]

			Expect(d.Halted()).To(BeTrue())
			Expect(after).To(Equal(before))
			Expect(d.Results().BranchMispredictions).To(BeNumerically(">=", uint64(1)))
		})
	})

	Describe("cache miss stall", func() {
		It("counts the access without a hit and stalls for the miss penalty", func() {
			source := `
.text
main:
	lw $t0, 0($sp)
	syscall
`
			d, _ := buildDriver(cfg, source)
			runToHalt(d, 1000)

			results := d.Results()
			Expect(results.DCacheAccesses).To(Equal(uint64(1)))
			Expect(results.DCacheHits).To(Equal(uint64(0)))
			Expect(results.StallsByCause["dcache_miss"]).To(BeNumerically(">", 0))
		})
	})

	Describe("4x4 identity multiply", func() {
		It("reproduces the original matrix and commits every instruction", func() {
			var b strings.Builder
			b.WriteString(".data\n")
			b.WriteString("a: .word 1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16\n")
			b.WriteString("ident: .word 1,0,0,0,0,1,0,0,0,0,1,0,0,0,0,1\n")
			b.WriteString("out: .space 64\n")
			b.WriteString(".text\nmain:\n")
			for row := 0; row < 4; row++ {
				for col := 0; col < 4; col++ {
					b.WriteString(fmt.Sprintf("\tli $t0, 0\n"))
					for k := 0; k < 4; k++ {
						aOff := (row*4 + k) * 4
						identOff := (k*4 + col) * 4
						b.WriteString(fmt.Sprintf("\tla $t1, a\n\tlw $t2, %d($t1)\n", aOff))
						b.WriteString(fmt.Sprintf("\tla $t3, ident\n\tlw $t4, %d($t3)\n", identOff))
						b.WriteString("\tmul $t5, $t2, $t4\n\tadd $t0, $t0, $t5\n")
					}
					outOff := (row*4 + col) * 4
					b.WriteString(fmt.Sprintf("\tla $t6, out\n\tsw $t0, %d($t6)\n", outOff))
				}
			}
			b.WriteString("\tli $v0, 10\n\tsyscall\n")

			d, mem := buildDriver(cfg, b.String())
			runToHalt(d, 2_000_000)
			Expect(d.Halted()).To(BeTrue())

			prog, err := loader.Assemble(b.String())
			Expect(err).NotTo(HaveOccurred())
			outBase := prog.Labels["out"]
			aBase := prog.Labels["a"]
			for i := 0; i < 16; i++ {
				Expect(mem.Read32(uint64(outBase) + uint64(i*4))).To(Equal(mem.Read32(uint64(aBase) + uint64(i*4))))
			}

			Expect(d.Results().InstructionsCommitted).To(Equal(uint64(len(prog.Instructions))))
		})
	})

	Describe("universal invariants", func() {
		It("never lets ROB occupancy exceed its capacity", func() {
			source := `
.text
main:
	li $t0, 1
	li $t1, 2
	li $t2, 3
	li $v0, 10
	syscall
`
			d, _ := buildDriver(cfg, source)
			runToHalt(d, 1000)
			Expect(d.Halted()).To(BeTrue())
		})

		It("reports ipc consistent with instructions_committed / cycles", func() {
			source := "\n.text\nmain:\n\tli $t0, 1\n\tsyscall\n"
			d, _ := buildDriver(cfg, source)
			runToHalt(d, 1000)
			r := d.Results()
			if r.Cycles > 0 {
				Expect(r.IPC).To(BeNumerically("~", float64(r.InstructionsCommitted)/float64(r.Cycles), 1e-9))
			}
		})

		It("reports branch_accuracy = 1.0 for a branch-free program", func() {
			source := "\n.text\nmain:\n\tli $t0, 1\n\tsyscall\n"
			d, _ := buildDriver(cfg, source)
			runToHalt(d, 1000)
			Expect(d.Results().BranchAccuracy).To(Equal(1.0))
		})
	})

	Describe("runtime memory fault", func() {
		It("halts with a diagnostic fault instead of panicking the driver", func() {
			source := `
.text
main:
	li $t0, 8388608
	lw $t1, 0($t0)
	syscall
`
			d, _ := buildDriver(cfg, source)
			runToHalt(d, 1000)

			Expect(d.Fault()).To(HaveOccurred())
			Expect(d.Halted()).To(BeTrue())
		})
	})
})
