package benchmarks_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/oomsim/benchmarks"
)

var _ = Describe("Harness", func() {
	It("runs a batch of benchmarks and produces distinct run IDs", func() {
		h := benchmarks.NewHarness(benchmarks.HarnessConfig{Output: &bytes.Buffer{}})
		h.AddBenchmarks([]benchmarks.Benchmark{
			{
				Name:        "raw-chain",
				Description: "a tight RAW dependency chain through the ALU",
				Source:      "\n.text\nmain:\n\tli $t0, 1\n\taddi $t1, $t0, 1\n\taddi $t2, $t1, 1\n\tsyscall\n",
			},
			{
				Name:        "loop-100",
				Description: "a 100-iteration counted loop",
				Source:      "\n.text\nmain:\n\tli $t0, 0\n\tli $t1, 100\nloop:\n\taddi $t0, $t0, 1\n\tbne $t0, $t1, loop\n\tsyscall\n",
			},
		})

		results := h.RunAll()

		Expect(results).To(HaveLen(2))
		Expect(results[0].RunID).NotTo(Equal(results[1].RunID))
		for _, r := range results {
			Expect(r.Cycles).To(BeNumerically(">", 0))
			Expect(r.InstructionsCommitted).To(BeNumerically(">", 0))
		}
	})

	It("reports a loader error instead of panicking on an invalid program", func() {
		h := benchmarks.NewHarness(benchmarks.HarnessConfig{Output: &bytes.Buffer{}})
		h.AddBenchmark(benchmarks.Benchmark{
			Name:   "bad-label",
			Source: "\n.text\nmain:\n\tbeq $zero, $zero, nowhere\n",
		})

		results := h.RunAll()

		Expect(results).To(HaveLen(1))
		Expect(results[0].ExitCode).To(Equal(int64(-1)))
	})

	It("prints a human-readable report containing every benchmark name", func() {
		var buf bytes.Buffer
		h := benchmarks.NewHarness(benchmarks.HarnessConfig{Output: &buf})
		h.AddBenchmark(benchmarks.Benchmark{
			Name:   "exit-only",
			Source: "\n.text\nmain:\n\tli $v0, 10\n\tsyscall\n",
		})

		results := h.RunAll()
		h.PrintResults(results)

		Expect(buf.String()).To(ContainSubstring("exit-only"))
	})

	It("prints a CSV header followed by one row per benchmark", func() {
		var buf bytes.Buffer
		h := benchmarks.NewHarness(benchmarks.HarnessConfig{Output: &buf})
		h.AddBenchmark(benchmarks.Benchmark{
			Name:   "exit-only",
			Source: "\n.text\nmain:\n\tli $v0, 10\n\tsyscall\n",
		})

		results := h.RunAll()
		h.PrintCSV(results)

		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(HavePrefix("run_id,name,cycles"))
	})

	It("prints a JSON report with an aggregate summary", func() {
		var buf bytes.Buffer
		h := benchmarks.NewHarness(benchmarks.HarnessConfig{Output: &buf})
		h.AddBenchmark(benchmarks.Benchmark{
			Name:   "exit-only",
			Source: "\n.text\nmain:\n\tli $v0, 10\n\tsyscall\n",
		})

		results := h.RunAll()
		err := h.PrintJSON(results)

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("\"total_benchmarks\": 1"))
	})
})
