// Package core wires an assembled program to a timing/pipeline.Driver,
// giving callers that don't need the driver's full constructor surface
// (config, program arrays, text base) a thin assemble-and-run handle.
package core

import (
	"github.com/sarchlab/oomsim/emu"
	"github.com/sarchlab/oomsim/loader"
	"github.com/sarchlab/oomsim/timing/pipeline"
)

// Core wraps an assembled program and its Driver.
type Core struct {
	driver *pipeline.Driver
	memory *emu.Memory
	prog   *loader.Program
}

// NewCore assembles source and builds a Driver against it using cfg.
// A nil cfg falls back to pipeline.DefaultConfig().
func NewCore(cfg *pipeline.Config, source string, opts ...pipeline.Option) (*Core, error) {
	if cfg == nil {
		cfg = pipeline.DefaultConfig()
	}

	prog, err := loader.Assemble(source)
	if err != nil {
		return nil, err
	}

	memory := emu.NewMemoryOfSize(cfg.MemorySize)
	memory.LoadProgram(0, prog.Memory)

	d := pipeline.NewDriver(cfg, memory, prog.Instructions, prog.TextBase, prog.EntryPC, opts...)

	return &Core{driver: d, memory: memory, prog: prog}, nil
}

// Driver exposes the underlying pipeline driver.
func (c *Core) Driver() *pipeline.Driver { return c.driver }

// Memory exposes the backing flat memory image.
func (c *Core) Memory() *emu.Memory { return c.memory }

// Labels returns the assembled program's label table.
func (c *Core) Labels() map[string]uint32 { return c.prog.Labels }

// Tick advances the core by one cycle.
func (c *Core) Tick() { c.driver.Tick() }

// Halted reports whether the core has stopped: the exit syscall
// committed, or a fault reached commit (see Fault).
func (c *Core) Halted() bool { return c.driver.Halted() }

// ExitCode returns the exit code once Halted is true.
func (c *Core) ExitCode() int64 { return c.driver.ExitCode() }

// Fault returns the fatal fault observed at commit, if any.
func (c *Core) Fault() error { return c.driver.Fault() }

// Run ticks the core until it halts, faults, or drains, or until
// maxCycles cycles pass, returning the exit code.
func (c *Core) Run(maxCycles uint64) int64 {
	for i := uint64(0); i < maxCycles; i++ {
		if c.driver.Halted() || c.driver.Fault() != nil || c.driver.Drained() {
			break
		}
		c.driver.Tick()
	}
	return c.driver.ExitCode()
}

// Results returns the final metrics snapshot.
func (c *Core) Results() pipeline.Results { return c.driver.Results() }
