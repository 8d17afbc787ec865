package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/oomsim/timing/pipeline"
)

var _ = Describe("BranchPredictor", func() {
	var bp *pipeline.BranchPredictor

	BeforeEach(func() {
		config := pipeline.BranchPredictorConfig{
			Type:    pipeline.PredictorBimodal,
			BHTSize: 16,
			BTBSize: 8,
		}
		bp = pipeline.NewBranchPredictor(config)
	})

	Describe("Prediction", func() {
		It("should initially predict not-taken (weakly-not-taken counter)", func() {
			pred := bp.Predict(0x1000)
			Expect(pred.Taken).To(BeFalse())
		})

		It("should not know target initially", func() {
			pred := bp.Predict(0x1000)
			Expect(pred.TargetKnown).To(BeFalse())
		})

		It("should learn branch patterns", func() {
			pc := uint64(0x1000)
			target := uint64(0x2000)

			for i := 0; i < 10; i++ {
				bp.Update(pc, false, true, target)
			}

			pred := bp.Predict(pc)
			Expect(pred.Taken).To(BeTrue())
			Expect(pred.TargetKnown).To(BeTrue())
			Expect(pred.Target).To(Equal(target))
		})

		It("should learn not-taken pattern", func() {
			pc := uint64(0x1000)

			for i := 0; i < 10; i++ {
				bp.Update(pc, false, false, 0)
			}

			pred := bp.Predict(pc)
			Expect(pred.Taken).To(BeFalse())
		})
	})

	Describe("2-bit saturating counter", func() {
		It("should require 2 mispredictions to change direction", func() {
			pc := uint64(0x1000)
			target := uint64(0x2000)

			// Drive the counter to strongly-taken (11).
			bp.Update(pc, false, true, target)
			bp.Update(pc, false, true, target)
			bp.Update(pc, false, true, target)

			// One not-taken update -> counter drops to weakly-taken (10), still predicts taken.
			bp.Update(pc, true, false, 0)
			pred := bp.Predict(pc)
			Expect(pred.Taken).To(BeTrue())

			// Another not-taken update -> counter drops to weakly-not-taken (01), now predicts not-taken.
			bp.Update(pc, true, false, 0)
			pred = bp.Predict(pc)
			Expect(pred.Taken).To(BeFalse())
		})
	})

	Describe("BTB", func() {
		It("should cache branch targets on taken outcomes", func() {
			pc := uint64(0x1000)
			target := uint64(0x2000)

			pred := bp.Predict(pc)
			Expect(pred.TargetKnown).To(BeFalse())

			bp.Update(pc, false, true, target)

			pred = bp.Predict(pc)
			Expect(pred.TargetKnown).To(BeTrue())
			Expect(pred.Target).To(Equal(target))
		})

		It("should not cache not-taken branches", func() {
			pc := uint64(0x1000)

			bp.Update(pc, false, false, 0)

			pred := bp.Predict(pc)
			Expect(pred.TargetKnown).To(BeFalse())
		})

		It("evicts the least-recently-used entry when full", func() {
			config := pipeline.BranchPredictorConfig{
				Type:    pipeline.PredictorBimodal,
				BHTSize: 16,
				BTBSize: 2,
			}
			bp = pipeline.NewBranchPredictor(config)

			bp.Update(0x100, false, true, 0x200)
			bp.Update(0x300, false, true, 0x400)
			// Touch 0x100 so 0x300 becomes the LRU entry.
			bp.Predict(0x100)
			bp.Update(0x500, false, true, 0x600)

			Expect(bp.Predict(0x100).TargetKnown).To(BeTrue())
			Expect(bp.Predict(0x300).TargetKnown).To(BeFalse())
			Expect(bp.Predict(0x500).TargetKnown).To(BeTrue())
		})
	})

	Describe("Statistics", func() {
		It("should track predictions", func() {
			pc := uint64(0x1000)
			bp.Predict(pc)
			bp.Predict(pc)
			bp.Predict(pc)

			stats := bp.Stats()
			Expect(stats.Predictions).To(Equal(uint64(3)))
		})

		It("should track correct and mispredicted outcomes", func() {
			pc := uint64(0x1000)

			pred := bp.Predict(pc) // predicts not-taken
			bp.Update(pc, pred.Taken, false, 0)

			stats := bp.Stats()
			Expect(stats.Correct).To(Equal(uint64(1)))
			Expect(stats.Mispredictions).To(Equal(uint64(0)))

			pred = bp.Predict(pc)
			bp.Update(pc, pred.Taken, true, 0x2000)

			stats = bp.Stats()
			Expect(stats.Mispredictions).To(Equal(uint64(1)))
		})

		It("should track BTB hits and misses", func() {
			pc := uint64(0x1000)
			target := uint64(0x2000)

			bp.Predict(pc) // miss
			bp.Update(pc, false, true, target)
			bp.Predict(pc) // hit

			stats := bp.Stats()
			Expect(stats.BTBHits).To(Equal(uint64(1)))
			Expect(stats.BTBMisses).To(Equal(uint64(1)))
		})
	})

	Describe("Reset", func() {
		It("should clear all state", func() {
			pc := uint64(0x1000)
			target := uint64(0x2000)

			bp.Update(pc, false, true, target)
			bp.Predict(pc)
			bp.Predict(pc)

			bp.Reset()

			stats := bp.Stats()
			Expect(stats.Predictions).To(Equal(uint64(0)))
			Expect(stats.Correct).To(Equal(uint64(0)))

			pred := bp.Predict(pc)
			Expect(pred.TargetKnown).To(BeFalse())
		})
	})

	Describe("Zero-branch accuracy convention", func() {
		It("reports 1.0 accuracy when no predictions were ever made", func() {
			fresh := pipeline.NewBranchPredictor(pipeline.DefaultBranchPredictorConfig())
			Expect(fresh.Stats().Accuracy()).To(Equal(1.0))
		})
	})

	Describe("Default configuration", func() {
		It("should use sensible defaults", func() {
			config := pipeline.DefaultBranchPredictorConfig()
			Expect(config.Type).To(Equal(pipeline.PredictorGshare))
			Expect(config.BHTSize).To(Equal(uint32(1024)))
			Expect(config.BTBSize).To(Equal(uint32(256)))
		})
	})
})
