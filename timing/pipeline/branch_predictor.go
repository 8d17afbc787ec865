package pipeline

import "container/list"

// PredictorType selects a branch-prediction algorithm.
type PredictorType int

// Supported predictor variants.
const (
	PredictorAlwaysTaken PredictorType = iota
	PredictorBimodal
	PredictorGshare
)

// 2-bit saturating counter states: 0=strongly not-taken .. 3=strongly taken.
const (
	counterWeaklyNotTaken uint8 = 0b01
	counterWeaklyTaken    uint8 = 0b10
)

// BranchPredictorConfig configures the predictor family.
type BranchPredictorConfig struct {
	// Type selects which variant Predict/Update implement.
	Type PredictorType
	// BHTSize is the number of entries in the counter table. Must be a
	// power of 2. Default is 1024.
	BHTSize uint32
	// BTBSize is the number of entries in the shared LRU branch-target
	// buffer. Must be a power of 2. Default is 256.
	BTBSize uint32
	// HistoryLength is the gshare global-history register width in bits.
	HistoryLength uint32
}

// DefaultBranchPredictorConfig returns the module-wide default: gshare
// with a 1024-entry table and a 256-entry BTB.
func DefaultBranchPredictorConfig() BranchPredictorConfig {
	return BranchPredictorConfig{
		Type:          PredictorGshare,
		BHTSize:       1024,
		BTBSize:       256,
		HistoryLength: 10,
	}
}

// BranchPredictorStats holds statistics for the branch predictor.
type BranchPredictorStats struct {
	Predictions    uint64
	Correct        uint64
	Mispredictions uint64
	BTBHits        uint64
	BTBMisses      uint64
}

// Accuracy returns the prediction accuracy as a fraction in [0,1]. A
// program with zero branches reports 1.0 by convention.
func (s BranchPredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 1.0
	}
	return float64(s.Correct) / float64(s.Predictions)
}

// MispredictionRate returns the misprediction rate as a fraction in [0,1].
func (s BranchPredictorStats) MispredictionRate() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.Predictions)
}

// BTBHitRate returns the BTB hit rate as a fraction in [0,1].
func (s BranchPredictorStats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total)
}

// Prediction represents a branch prediction result. HistorySnapshot is
// the gshare global-history value immediately before this prediction's
// speculative update, needed to recover it on a later squash.
type Prediction struct {
	Taken           bool
	Target          uint64
	TargetKnown     bool
	HistorySnapshot uint32
}

// btbEntry represents an entry in the Branch Target Buffer.
type btbEntry struct {
	pc     uint64
	target uint64
}

// btbLRU is a fully-associative, LRU-evicting PC -> target map, shared
// across predictor variants (Open Question (c): this spec assumes shared).
type btbLRU struct {
	capacity int
	ll       *list.List
	index    map[uint64]*list.Element
}

func newBTBLRU(capacity int) *btbLRU {
	return &btbLRU{capacity: capacity, ll: list.New(), index: make(map[uint64]*list.Element)}
}

func (b *btbLRU) lookup(pc uint64) (uint64, bool) {
	el, ok := b.index[pc]
	if !ok {
		return 0, false
	}
	b.ll.MoveToFront(el)
	return el.Value.(*btbEntry).target, true
}

func (b *btbLRU) update(pc, target uint64) {
	if el, ok := b.index[pc]; ok {
		el.Value.(*btbEntry).target = target
		b.ll.MoveToFront(el)
		return
	}
	if b.ll.Len() >= b.capacity {
		if oldest := b.ll.Back(); oldest != nil {
			delete(b.index, oldest.Value.(*btbEntry).pc)
			b.ll.Remove(oldest)
		}
	}
	el := b.ll.PushFront(&btbEntry{pc: pc, target: target})
	b.index[pc] = el
}

// BranchPredictor implements always-taken, bimodal, and gshare
// direction prediction sharing one LRU branch-target buffer.
type BranchPredictor struct {
	cfg           BranchPredictorConfig
	counters      []uint8
	globalHistory uint32
	historyMask   uint32
	btb           *btbLRU
	stats         BranchPredictorStats
}

// NewBranchPredictor creates a new branch predictor with the given configuration.
func NewBranchPredictor(config BranchPredictorConfig) *BranchPredictor {
	bhtSize := config.BHTSize
	if bhtSize == 0 {
		bhtSize = 1024
	}
	btbSize := config.BTBSize
	if btbSize == 0 {
		btbSize = 256
	}
	historyLen := config.HistoryLength
	if historyLen == 0 {
		historyLen = 10
	}
	config.BHTSize, config.BTBSize, config.HistoryLength = bhtSize, btbSize, historyLen

	counters := make([]uint8, bhtSize)
	for i := range counters {
		counters[i] = counterWeaklyNotTaken
	}

	return &BranchPredictor{
		cfg:         config,
		counters:    counters,
		historyMask: (uint32(1) << historyLen) - 1,
		btb:         newBTBLRU(int(btbSize)),
	}
}

func (bp *BranchPredictor) bhtIndex(pc uint64) uint32 {
	return uint32((pc >> 2) & uint64(bp.cfg.BHTSize-1))
}

func (bp *BranchPredictor) gshareIndex(pc uint64) uint32 {
	return (uint32(pc>>2) ^ bp.globalHistory) & (bp.cfg.BHTSize - 1)
}

// Predict makes a branch prediction for the given PC. The global
// history register is updated speculatively at predict time
// (Open Question (a): yes, standard practice); HistorySnapshot carries
// the pre-update value so a later squash can recover it.
func (bp *BranchPredictor) Predict(pc uint64) Prediction {
	snapshot := bp.globalHistory
	bp.stats.Predictions++

	var taken bool
	switch bp.cfg.Type {
	case PredictorAlwaysTaken:
		taken = true
	case PredictorBimodal:
		taken = bp.counters[bp.bhtIndex(pc)] >= counterWeaklyTaken
	case PredictorGshare:
		taken = bp.counters[bp.gshareIndex(pc)] >= counterWeaklyTaken
	}

	target, known := bp.btb.lookup(pc)
	if known {
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
		if taken {
			// No static target available: predicted not-taken until
			// the BTB learns one, regardless of the configured bias.
			taken = false
		}
	}

	bp.globalHistory = ((bp.globalHistory << 1) | boolToBit(taken)) & bp.historyMask

	return Prediction{Taken: taken, Target: target, TargetKnown: known, HistorySnapshot: snapshot}
}

// Update updates the predictor with the actual branch outcome.
func (bp *BranchPredictor) Update(pc uint64, predictedTaken, actualTaken bool, target uint64) {
	if predictedTaken == actualTaken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	switch bp.cfg.Type {
	case PredictorBimodal:
		idx := bp.bhtIndex(pc)
		bp.counters[idx] = saturate(bp.counters[idx], actualTaken)
	case PredictorGshare:
		idx := bp.gshareIndex(pc)
		bp.counters[idx] = saturate(bp.counters[idx], actualTaken)
	}

	if actualTaken {
		bp.btb.update(pc, target)
	}
}

// RecoverHistory restores the global history register to a snapshot
// captured at an earlier Predict call, undoing speculative updates
// made by squashed younger branches.
func (bp *BranchPredictor) RecoverHistory(snapshot uint32) {
	bp.globalHistory = snapshot
}

// Stats returns the branch predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Reset clears all predictor state and statistics.
func (bp *BranchPredictor) Reset() {
	for i := range bp.counters {
		bp.counters[i] = counterWeaklyNotTaken
	}
	bp.globalHistory = 0
	bp.btb = newBTBLRU(int(bp.cfg.BTBSize))
	bp.stats = BranchPredictorStats{}
}

func boolToBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func saturate(counter uint8, taken bool) uint8 {
	if taken {
		if counter < 0b11 {
			counter++
		}
	} else if counter > 0b00 {
		counter--
	}
	return counter
}
