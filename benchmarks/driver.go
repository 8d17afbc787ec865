package benchmarks

import (
	"github.com/sarchlab/oomsim/emu"
	"github.com/sarchlab/oomsim/loader"
	"github.com/sarchlab/oomsim/timing/pipeline"
)

// newDriver wires an assembled program's memory image and instruction
// stream to a fresh pipeline.Driver under cfg.
func newDriver(cfg *pipeline.Config, prog *loader.Program) (*pipeline.Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	memory := emu.NewMemoryOfSize(cfg.MemorySize)
	memory.LoadProgram(0, prog.Memory)

	return pipeline.NewDriver(cfg, memory, prog.Instructions, prog.TextBase, prog.EntryPC), nil
}
