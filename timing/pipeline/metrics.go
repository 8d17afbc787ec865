package pipeline

// Metrics accumulates the counters the driver updates every cycle.
// Results() turns this into the derived-metric snapshot handed to callers.
type Metrics struct {
	Cycles                uint64
	InstructionsCommitted uint64

	ICacheAccesses uint64
	ICacheHits     uint64
	DCacheAccesses uint64
	DCacheHits     uint64

	StallsByCause map[string]uint64

	fuBusySum  map[string]uint64
	fuTicks    map[string]uint64
}

// NewMetrics creates a zeroed metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		StallsByCause: map[string]uint64{},
		fuBusySum:     map[string]uint64{},
		fuTicks:       map[string]uint64{},
	}
}

// RecordStall increments the counter for the given stall cause.
func (m *Metrics) RecordStall(cause string) {
	m.StallsByCause[cause]++
}

// RecordFUSample records one cycle's worth of occupancy for a
// functional-unit class, feeding the per-FU utilization histogram.
func (m *Metrics) RecordFUSample(class string, busyUnits, totalUnits int) {
	m.fuBusySum[class] += uint64(busyUnits)
	m.fuTicks[class] += uint64(totalUnits)
}

// Results is the full results surface reported at the end of a run.
type Results struct {
	Cycles                uint64  `json:"cycles"`
	InstructionsCommitted uint64  `json:"instructions_committed"`
	IPC                   float64 `json:"ipc"`

	BranchPredictions    uint64  `json:"branch_predictions"`
	BranchMispredictions uint64  `json:"branch_mispredictions"`
	BranchAccuracy       float64 `json:"branch_accuracy"`

	ICacheAccesses uint64 `json:"icache_accesses"`
	ICacheHits     uint64 `json:"icache_hits"`
	DCacheAccesses uint64 `json:"dcache_accesses"`
	DCacheHits     uint64 `json:"dcache_hits"`

	StallsByCause map[string]uint64 `json:"stalls_by_cause"`
	FUUtilization map[string]float64 `json:"fu_utilization"`

	ExitCode int64 `json:"exit_code"`
}

// Results assembles the final snapshot from the accumulated metrics,
// the branch predictor's own stats, and the exit code the driver observed.
func (m *Metrics) Results(bp BranchPredictorStats, exitCode int64) Results {
	ipc := 0.0
	if m.Cycles > 0 {
		ipc = float64(m.InstructionsCommitted) / float64(m.Cycles)
	}

	util := make(map[string]float64, len(m.fuTicks))
	for class, ticks := range m.fuTicks {
		if ticks == 0 {
			util[class] = 0
			continue
		}
		util[class] = float64(m.fuBusySum[class]) / float64(ticks)
	}

	return Results{
		Cycles:                m.Cycles,
		InstructionsCommitted: m.InstructionsCommitted,
		IPC:                   ipc,
		BranchPredictions:     bp.Predictions,
		BranchMispredictions:  bp.Mispredictions,
		BranchAccuracy:        bp.Accuracy(),
		ICacheAccesses:        m.ICacheAccesses,
		ICacheHits:            m.ICacheHits,
		DCacheAccesses:        m.DCacheAccesses,
		DCacheHits:            m.DCacheHits,
		StallsByCause:         m.StallsByCause,
		FUUtilization:         util,
		ExitCode:              exitCode,
	}
}
