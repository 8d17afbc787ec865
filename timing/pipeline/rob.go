package pipeline

import "github.com/sarchlab/oomsim/insts"

// ROBEntry is a single in-flight instruction's commit-time state.
type ROBEntry struct {
	Valid     bool
	SeqNo     uint64
	PC        uint32
	DestReg   int // -1 if the instruction writes no architectural register
	Result    uint64
	Exception error
	Completed bool

	IsBranch        bool
	PredictedTaken  bool
	PredictedTarget uint32
	ActualTaken     bool
	ActualTarget    uint32
	HistorySnapshot uint32 // gshare global-history value captured at Predict time

	IsStore    bool
	StoreAddr  uint64
	StoreValue uint64

	Snapshot *Snapshot // only set for IsBranch entries
}

// ROB is the fixed-capacity, in-order reorder buffer ring.
type ROB struct {
	entries  []ROBEntry
	head     int
	tail     int
	occ      int
	capacity int
}

// NewROB creates a ROB with the given capacity.
func NewROB(capacity int) *ROB {
	return &ROB{entries: make([]ROBEntry, capacity), capacity: capacity}
}

// Occupancy returns the number of in-flight entries; the hard
// invariant 0 <= occupancy <= capacity always holds.
func (r *ROB) Occupancy() int { return r.occ }

// Full reports whether the ROB has no free slot.
func (r *ROB) Full() bool { return r.occ == r.capacity }

// Empty reports whether the ROB has no in-flight entry.
func (r *ROB) Empty() bool { return r.occ == 0 }

// Alloc reserves the next slot (at tail) for a newly decoded
// instruction and returns its ROB index. Caller must check Full first.
func (r *ROB) Alloc(in *insts.Instruction, destReg int) int {
	idx := r.tail
	r.entries[idx] = ROBEntry{
		Valid:   true,
		SeqNo:   in.SeqNo,
		PC:      in.PC,
		DestReg: destReg,
		IsBranch: insts.IsBranch(in.Op),
		IsStore:  insts.IsStore(in.Op),
	}
	r.tail = (r.tail + 1) % r.capacity
	r.occ++
	return idx
}

// At returns a pointer to the entry at robIndex for in-place mutation
// by the execute/memory stages.
func (r *ROB) At(robIndex int) *ROBEntry { return &r.entries[robIndex] }

// Head returns the ROB index currently at the head (next to commit).
func (r *ROB) Head() int { return r.head }

// HeadEntry returns a pointer to the head entry, or nil if empty.
func (r *ROB) HeadEntry() *ROBEntry {
	if r.Empty() {
		return nil
	}
	return &r.entries[r.head]
}

// RetireHead frees the head slot after a successful commit.
func (r *ROB) RetireHead() {
	r.entries[r.head].Valid = false
	r.head = (r.head + 1) % r.capacity
	r.occ--
}

// LiveBranches returns the ROB indices of every valid, not-yet-resolved
// branch currently in the buffer, walking head to tail. Every one of
// these is older than (or equal to) whatever instruction is dispatching
// right now, since ROB indices are allocated in program order.
func (r *ROB) LiveBranches() []int {
	var indices []int
	i := r.head
	for n := 0; n < r.occ; n++ {
		if r.entries[i].Valid && r.entries[i].IsBranch {
			indices = append(indices, i)
		}
		i = (i + 1) % r.capacity
	}
	return indices
}

// SquashYounger frees every entry younger than (strictly after)
// branchIdx, walking tail-ward. branchIdx itself survives — the
// branch still commits normally through RetireHead, since a misprediction is a
// control-flow correction, not grounds for discarding the branch's
// own completed state. Returns the freed SeqNos so the driver can
// reconcile the other arenas (RS/LSQ/FU) by SeqNo.
func (r *ROB) SquashYounger(branchIdx int) (freedSeqNos []uint64) {
	idx := (r.tail - 1 + r.capacity) % r.capacity
	for idx != branchIdx {
		if r.entries[idx].Valid {
			freedSeqNos = append(freedSeqNos, r.entries[idx].SeqNo)
			r.entries[idx].Valid = false
			r.occ--
		}
		idx = (idx - 1 + r.capacity) % r.capacity
	}
	r.tail = (branchIdx + 1) % r.capacity
	return freedSeqNos
}
