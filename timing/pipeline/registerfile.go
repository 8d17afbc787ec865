package pipeline

import "github.com/sarchlab/oomsim/emu"

// noProducer marks a register entry whose value is architecturally
// committed (no in-flight producer).
const noProducer = -1

// RegisterFile holds architectural register values plus the rename
// map (producer ROB index + ready bit).
type RegisterFile struct {
	Value    [emu.NumRegs]uint64
	Producer [emu.NumRegs]int // ROB index of latest in-flight producer, or noProducer
	Ready    [emu.NumRegs]bool
}

// NewRegisterFile creates a register file with every register
// architecturally ready.
func NewRegisterFile() *RegisterFile {
	rf := &RegisterFile{}
	for i := range rf.Producer {
		rf.Producer[i] = noProducer
		rf.Ready[i] = true
	}
	return rf
}

// Snapshot is the compact rename-map diff captured at a branch's
// decode: only registers whose producer tag changed since dispatch
// need to be reverted on squash.
type Snapshot struct {
	regs     []int
	producer []int
	ready    []bool
	recorded map[int]bool
}

// Lookup reads (value, producerTag, ready) for reg. $zero is always
// ready with value 0 (enforced by the caller never renaming it).
func (rf *RegisterFile) Lookup(reg int) (value uint64, producer int, ready bool) {
	if reg == emu.RegZero {
		return 0, noProducer, true
	}
	return rf.Value[reg], rf.Producer[reg], rf.Ready[reg]
}

// Rename allocates robIndex as the new producer of reg, clearing its
// ready bit. Returns the prior (producer, ready) pair so the caller
// can extend a branch's Snapshot.
func (rf *RegisterFile) Rename(reg int, robIndex int) (prevProducer int, prevReady bool) {
	if reg == emu.RegZero {
		return noProducer, true
	}
	prevProducer, prevReady = rf.Producer[reg], rf.Ready[reg]
	rf.Producer[reg] = robIndex
	rf.Ready[reg] = false
	return
}

// CommitWrite writes value to reg and clears its producer tag only if
// robIndex is still the register's current producer.
func (rf *RegisterFile) CommitWrite(reg int, robIndex int, value uint64) {
	if reg == emu.RegZero {
		return
	}
	rf.Value[reg] = value
	if rf.Producer[reg] == robIndex {
		rf.Producer[reg] = noProducer
		rf.Ready[reg] = true
	}
}

// BroadcastReady marks any register whose producer equals robIndex as
// ready, without yet committing the architectural value (used when an
// RS operand adopts a CDB value — the register file itself only
// tracks readiness for subsequent renames, not operand values).
func (rf *RegisterFile) BroadcastReady(robIndex int) {
	for i := range rf.Producer {
		if rf.Producer[i] == robIndex {
			rf.Ready[i] = true
		}
	}
}

// BeginSnapshot starts an empty Snapshot to be extended by RecordIfChanged.
func BeginSnapshot() *Snapshot {
	return &Snapshot{recorded: make(map[int]bool)}
}

// RecordIfChanged appends reg's pre-rename producer/ready to the
// snapshot, the first time (and only the first time) reg is renamed
// while this snapshot is live. Later renames of the same reg are
// skipped: the snapshot must restore the producer/ready pair reg had
// at the branch's own decode time, not some intermediate value from a
// rename that happened after the branch but before the squash.
func (s *Snapshot) RecordIfChanged(reg, prevProducer int, prevReady bool) {
	if s.recorded[reg] {
		return
	}
	s.recorded[reg] = true
	s.regs = append(s.regs, reg)
	s.producer = append(s.producer, prevProducer)
	s.ready = append(s.ready, prevReady)
}

// Restore reverts every recorded register to its pre-branch producer
// and ready state.
func (rf *RegisterFile) Restore(s *Snapshot) {
	for i, reg := range s.regs {
		rf.Producer[reg] = s.producer[i]
		rf.Ready[reg] = s.ready[i]
	}
}
