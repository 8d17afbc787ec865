package pipeline

import "github.com/sarchlab/oomsim/insts"

// FunctionalUnit holds at most one instruction at a time, counting
// remaining-cycles down to zero.
type FunctionalUnit struct {
	Busy            bool
	ROBIndex        int
	SeqNo           uint64
	RemainingCycles int
	Result          uint64
	IsBranch        bool
	ActualTaken     bool
	ActualTarget    uint32
	StoreAddr       uint64
	StoreValue      uint64
	IsStore         bool
	LSQIndex        int // meaningful only for load/store completions, -1 otherwise
	Fault           error
}

// FUPool manages every functional unit of one class.
type FUPool struct {
	Class   insts.Class
	Latency int
	units   []FunctionalUnit
}

// NewFUPool creates a pool of count units with the given per-op latency.
func NewFUPool(class insts.Class, count, latency int) *FUPool {
	return &FUPool{Class: class, Latency: latency, units: make([]FunctionalUnit, count)}
}

// FreeUnit returns the index of a free unit, or -1 if none.
func (p *FUPool) FreeUnit() int {
	for i := range p.units {
		if !p.units[i].Busy {
			return i
		}
	}
	return -1
}

// Dispatch binds a ready RS entry's work to unit index idx and begins
// its countdown at the pool's configured latency plus extraCycles
// (used by the LSU pool to add a cache-miss or forwarding-stall
// penalty on top of the base access latency).
func (p *FUPool) Dispatch(idx int, robIndex int, seqNo uint64, result uint64, extraCycles int) {
	p.units[idx] = FunctionalUnit{
		Busy:            true,
		ROBIndex:        robIndex,
		SeqNo:           seqNo,
		RemainingCycles: p.Latency + extraCycles,
		Result:          result,
		LSQIndex:        -1,
	}
}

// Tick decrements every busy unit's countdown and returns the units
// that complete this cycle (RemainingCycles reaches 0). Completed units
// stay busy until the caller frees each one with Release.
// A unit busy longer than its latency is an internal invariant
// violation, not a runtime outcome, and panics.
func (p *FUPool) Tick() []*FunctionalUnit {
	var completed []*FunctionalUnit
	for i := range p.units {
		u := &p.units[i]
		if !u.Busy {
			continue
		}
		u.RemainingCycles--
		if u.RemainingCycles < 0 {
			panic(&InvariantError{Msg: "functional unit busy past its configured latency"})
		}
		if u.RemainingCycles == 0 {
			completed = append(completed, u)
		}
	}
	return completed
}

// Release frees the unit identified by robIndex after its result has
// been consumed by the CDB.
func (p *FUPool) Release(robIndex int) {
	for i := range p.units {
		if p.units[i].Busy && p.units[i].ROBIndex == robIndex {
			p.units[i] = FunctionalUnit{}
			return
		}
	}
}

// At returns a pointer to the unit at idx, for filling in class-specific
// fields (IsBranch, IsStore, Fault, ...) right after Dispatch.
func (p *FUPool) At(idx int) *FunctionalUnit { return &p.units[idx] }

// SquashSeqNos clears any in-flight unit whose SeqNo is in the given
// set, discarding speculative work down a mispredicted path.
func (p *FUPool) SquashSeqNos(squashed map[uint64]bool) {
	for i := range p.units {
		if p.units[i].Busy && squashed[p.units[i].SeqNo] {
			p.units[i] = FunctionalUnit{}
		}
	}
}

// Utilization returns the fraction of units currently busy.
func (p *FUPool) Utilization() float64 {
	if len(p.units) == 0 {
		return 0
	}
	busy := 0
	for _, u := range p.units {
		if u.Busy {
			busy++
		}
	}
	return float64(busy) / float64(len(p.units))
}
