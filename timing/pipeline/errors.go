package pipeline

import "fmt"

// FaultKind classifies a runtime Fault surfaced at commit.
type FaultKind int

// Fault kinds surfaced at commit.
const (
	FaultMemory FaultKind = iota
	FaultArithmetic
)

// Fault is attached to an ROB entry when its functional unit or memory
// access hits a §7 kind-3/kind-4 error. It is surfaced only when the
// entry reaches the ROB head, preserving program-order reporting.
type Fault struct {
	Kind  FaultKind
	PC    uint32
	SeqNo uint64
	Addr  uint64
}

func (f *Fault) Error() string {
	switch f.Kind {
	case FaultMemory:
		return fmt.Sprintf("runtime memory fault at pc=0x%X seq_no=%d addr=0x%X", f.PC, f.SeqNo, f.Addr)
	default:
		return fmt.Sprintf("arithmetic hazard at pc=0x%X seq_no=%d", f.PC, f.SeqNo)
	}
}

// InvariantError is the §7 kind-5 error: a bug, not an expected
// runtime outcome. The driver treats it as fatal.
type InvariantError struct {
	Msg   string
	Cycle uint64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal invariant violation at cycle %d: %s", e.Cycle, e.Msg)
}
