package pipeline

import "github.com/sarchlab/oomsim/insts"

// Operand is one operand slot of a reservation-station entry: a
// value, the producer tag that will supply it, and a ready bit.
type Operand struct {
	Value    uint64
	Producer int // ROB index of the producer, meaningless if Ready
	Ready    bool
}

// RSEntry is the C5 reservation-station entry.
type RSEntry struct {
	Busy        bool
	ROBIndex    int
	SeqNo       uint64
	Op          insts.Op
	Class       insts.Class
	Op1, Op2    Operand
	DestROB     int
	IssuedCycle uint64
	Imm         int32
	PC          uint32
	Target      uint32 // resolved branch/jump/la target address, if any
	LSQIndex    int    // index into the LSQ, meaningful only for ClassLSU entries
}

// ReservationStation is a fixed-capacity, unordered set of entries for
// one functional-unit class.
type ReservationStation struct {
	entries []RSEntry
}

// NewReservationStation creates a station with the given capacity.
func NewReservationStation(capacity int) *ReservationStation {
	return &ReservationStation{entries: make([]RSEntry, capacity)}
}

// Full reports whether every slot is occupied.
func (rs *ReservationStation) Full() bool {
	for i := range rs.entries {
		if !rs.entries[i].Busy {
			return false
		}
	}
	return true
}

// Alloc installs a new entry into a free slot and returns its index.
// Caller must check Full first.
func (rs *ReservationStation) Alloc(entry RSEntry) int {
	for i := range rs.entries {
		if !rs.entries[i].Busy {
			entry.Busy = true
			rs.entries[i] = entry
			return i
		}
	}
	panic("reservation station: Alloc called while full")
}

// Free releases the slot at index.
func (rs *ReservationStation) Free(index int) {
	rs.entries[index] = RSEntry{}
}

// At returns a pointer to the entry at index for in-place mutation.
func (rs *ReservationStation) At(index int) *RSEntry { return &rs.entries[index] }

// Len returns the station's capacity.
func (rs *ReservationStation) Len() int { return len(rs.entries) }

// ReadyEntries returns indices of entries with both operands ready,
// ordered by ascending SeqNo (oldest first) — ties go to the oldest
// ready entry.
func (rs *ReservationStation) ReadyEntries() []int {
	var ready []int
	for i := range rs.entries {
		e := &rs.entries[i]
		if e.Busy && e.Op1.Ready && e.Op2.Ready {
			ready = append(ready, i)
		}
	}
	for i := 1; i < len(ready); i++ {
		for j := i; j > 0 && rs.entries[ready[j-1]].SeqNo > rs.entries[ready[j]].SeqNo; j-- {
			ready[j], ready[j-1] = ready[j-1], ready[j]
		}
	}
	return ready
}

// BroadcastCDB updates any operand slot whose producer matches tag,
// the sole mechanism by which RS entries become ready.
func (rs *ReservationStation) BroadcastCDB(tag int, value uint64) {
	for i := range rs.entries {
		e := &rs.entries[i]
		if !e.Busy {
			continue
		}
		if !e.Op1.Ready && e.Op1.Producer == tag {
			e.Op1.Value = value
			e.Op1.Ready = true
		}
		if !e.Op2.Ready && e.Op2.Producer == tag {
			e.Op2.Value = value
			e.Op2.Ready = true
		}
	}
}

// SquashSeqNos frees every entry whose SeqNo is in the given set.
func (rs *ReservationStation) SquashSeqNos(squashed map[uint64]bool) {
	for i := range rs.entries {
		if rs.entries[i].Busy && squashed[rs.entries[i].SeqNo] {
			rs.entries[i] = RSEntry{}
		}
	}
}
