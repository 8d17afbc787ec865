// Package benchmarks provides timing benchmark infrastructure for
// calibrating and comparing oomsim configurations against a suite of
// assembled programs.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/oomsim/loader"
	"github.com/sarchlab/oomsim/timing/pipeline"
)

// Result holds the outcome of one benchmark run.
type Result struct {
	// RunID opaquely identifies this run, minted independently of the
	// benchmark name so repeated runs of the same program are still
	// distinguishable in a report.
	RunID string `json:"run_id"`

	Name        string `json:"name"`
	Description string `json:"description"`

	pipeline.Results

	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single assembled program to run through the
// timing pipeline.
type Benchmark struct {
	// Name identifies the benchmark.
	Name string

	// Description explains what the benchmark measures.
	Description string

	// Source is the MIPS-subset assembly to assemble and run.
	Source string

	// Config overrides pipeline.DefaultConfig() for this benchmark; nil
	// uses the harness-wide default.
	Config *pipeline.Config

	// MaxCycles bounds the run; 0 uses the config's MaxCycles.
	MaxCycles uint64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// DefaultPipelineConfig is used for any Benchmark that doesn't
	// supply its own Config. Defaults to pipeline.DefaultConfig().
	DefaultPipelineConfig *pipeline.Config

	// Output is where PrintResults/PrintCSV/PrintJSON write. Defaults
	// to os.Stdout.
	Output io.Writer
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.DefaultPipelineConfig == nil {
		config.DefaultPipelineConfig = pipeline.DefaultConfig()
	}
	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll assembles and executes every registered benchmark, returning
// one Result per benchmark in registration order. A benchmark whose
// source fails to assemble is skipped with a zero-valued Results and
// its exit code left at the loader-error sentinel -1.
func (h *Harness) RunAll() []Result {
	results := make([]Result, 0, len(h.benchmarks))
	for _, b := range h.benchmarks {
		results = append(results, h.run(b))
	}
	return results
}

func (h *Harness) run(b Benchmark) Result {
	cfg := b.Config
	if cfg == nil {
		cfg = h.config.DefaultPipelineConfig
	}
	maxCycles := b.MaxCycles
	if maxCycles == 0 {
		maxCycles = cfg.MaxCycles
	}

	result := Result{RunID: xid.New().String(), Name: b.Name, Description: b.Description}

	prog, err := loader.Assemble(b.Source)
	if err != nil {
		result.Results.ExitCode = -1
		return result
	}

	driver, err := newDriver(cfg, prog)
	if err != nil {
		result.Results.ExitCode = -1
		return result
	}

	start := time.Now()
	driver.Run(maxCycles)
	result.WallTime = time.Since(start)
	result.Results = driver.Results()

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out, "=== oomsim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "Benchmark: %s (%s)\n", r.Name, r.RunID)
		_, _ = fmt.Fprintf(out, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(out, "  Exit Code: %d\n", r.ExitCode)
		_, _ = fmt.Fprintln(out, "  --- Timing ---")
		_, _ = fmt.Fprintf(out, "  Cycles:                 %d\n", r.Cycles)
		_, _ = fmt.Fprintf(out, "  Instructions Committed: %d\n", r.InstructionsCommitted)
		_, _ = fmt.Fprintf(out, "  IPC:                    %.3f\n", r.IPC)
		_, _ = fmt.Fprintln(out, "  --- Caches ---")
		_, _ = fmt.Fprintf(out, "  I-Cache: %d/%d hits\n", r.ICacheHits, r.ICacheAccesses)
		_, _ = fmt.Fprintf(out, "  D-Cache: %d/%d hits\n", r.DCacheHits, r.DCacheAccesses)
		_, _ = fmt.Fprintln(out, "  --- Branch Predictor ---")
		_, _ = fmt.Fprintf(out, "  Predictions:     %d\n", r.BranchPredictions)
		_, _ = fmt.Fprintf(out, "  Mispredictions:  %d\n", r.BranchMispredictions)
		_, _ = fmt.Fprintf(out, "  Accuracy:        %.1f%%\n", r.BranchAccuracy*100)
		if len(r.StallsByCause) > 0 {
			_, _ = fmt.Fprintln(out, "  --- Stalls ---")
			for cause, n := range r.StallsByCause {
				_, _ = fmt.Fprintf(out, "  %-16s %d\n", cause, n)
			}
		}
		_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(out, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []Result) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out, "run_id,name,cycles,instructions_committed,ipc,branch_predictions,branch_mispredictions,branch_accuracy,icache_accesses,icache_hits,dcache_accesses,dcache_hits,exit_code")
	for _, r := range results {
		_, _ = fmt.Fprintf(out, "%s,%s,%d,%d,%.3f,%d,%d,%.3f,%d,%d,%d,%d,%d\n",
			r.RunID, r.Name, r.Cycles, r.InstructionsCommitted, r.IPC,
			r.BranchPredictions, r.BranchMispredictions, r.BranchAccuracy,
			r.ICacheAccesses, r.ICacheHits, r.DCacheAccesses, r.DCacheHits, r.ExitCode)
	}
}

// Report is the complete output format for a batch of benchmark results.
type Report struct {
	Metadata ReportMetadata `json:"metadata"`
	Results  []Result       `json:"results"`
	Summary  ReportSummary  `json:"summary"`
}

// ReportMetadata carries information about when/how a benchmark batch ran.
type ReportMetadata struct {
	Timestamp string `json:"timestamp"`
}

// ReportSummary aggregates statistics across every result in a batch.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageIPC        float64       `json:"average_ipc"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results, plus an aggregate summary, as JSON.
func (h *Harness) PrintJSON(results []Result) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalCycles += r.Cycles
		totalInstructions += r.InstructionsCommitted
		totalWallTime += r.WallTime
	}

	avgIPC := 0.0
	if totalCycles > 0 {
		avgIPC = float64(totalInstructions) / float64(totalCycles)
	}

	report := Report{
		Metadata: ReportMetadata{Timestamp: time.Now().UTC().Format(time.RFC3339)},
		Results:  results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageIPC:        avgIPC,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
