// Package main provides the entry point for oomsim, a cycle-accurate
// simulator of a superscalar, out-of-order MIPS-subset processor core.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/oomsim/emu"
	"github.com/sarchlab/oomsim/loader"
	"github.com/sarchlab/oomsim/timing/pipeline"
)

var (
	configPath = flag.String("config", "", "path to a JSON pipeline configuration file")
	format     = flag.String("format", "table", "result output format: table, csv, or json")
	maxCycles  = flag.Uint64("max-cycles", 0, "override the config's simulation.max_cycles (0 keeps the config value)")
	trace      = flag.Bool("trace", false, "print a one-line trace of every committed instruction")
	verbose    = flag.Bool("v", false, "verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: oomsim [options] <program.s>\n\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	sourcePath := flag.Arg(0)
	exitCode, err := run(sourcePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oomsim: %v\n", err)
		os.Exit(1)
	}
	os.Exit(int(exitCode))
}

func run(sourcePath string) (int64, error) {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return 0, fmt.Errorf("reading program: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return 0, err
	}
	if *maxCycles > 0 {
		cfg.MaxCycles = *maxCycles
	}
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid configuration: %w", err)
	}

	prog, err := loader.Assemble(string(source))
	if err != nil {
		return 0, fmt.Errorf("assembling program: %w", err)
	}

	memory := emu.NewMemoryOfSize(cfg.MemorySize)
	memory.LoadProgram(0, prog.Memory)

	var opts []pipeline.Option
	if *trace {
		opts = append(opts, pipeline.WithTraceWriter(os.Stdout))
	}
	driver := pipeline.NewDriver(cfg, memory, prog.Instructions, prog.TextBase, prog.EntryPC, opts...)

	if *verbose {
		fmt.Printf("Loaded: %s\n", sourcePath)
		fmt.Printf("Entry point: 0x%x\n", prog.EntryPC)
		fmt.Printf("Instructions: %d\n", len(prog.Instructions))
	}

	exitCode := driver.Run(cfg.MaxCycles)

	if fault := driver.Fault(); fault != nil {
		fmt.Fprintf(os.Stderr, "oomsim: %v\n", fault)
	}

	printResults(driver.Results())

	return exitCode, nil
}

func loadConfig() (*pipeline.Config, error) {
	if *configPath == "" {
		return pipeline.DefaultConfig(), nil
	}
	return pipeline.LoadConfig(*configPath)
}

func printResults(results pipeline.Results) {
	switch *format {
	case "json":
		printResultsJSON(results)
	case "csv":
		printResultsCSV(results)
	default:
		printResultsTable(results)
	}
}
