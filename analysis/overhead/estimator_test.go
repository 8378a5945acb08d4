package overhead

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/rowpressure/mem/cache"
	"github.com/sarchlab/rowpressure/mem/dram/rowcounter"
	"github.com/sarchlab/rowpressure/mem/trace"
	"github.com/sarchlab/rowpressure/sim"
)

const rowSize = 8192

func read(ts, row uint64) trace.Event {
	return trace.Event{
		Timestamp:    ts,
		StartAddress: row * rowSize,
		EndAddress:   row*rowSize + 64,
		Op:           trace.Read,
	}
}

func write(ts, row uint64) trace.Event {
	e := read(ts, row)
	e.Op = trace.Write

	return e
}

var _ = Describe("Estimator", func() {
	var (
		mockCtrl *gomock.Controller
		builder  Builder
		e        *Estimator
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		builder = MakeBuilder().
			WithConfig(Config{
				WindowDuration:   100,
				RefreshThreshold: 3,
				AvgDRAMLatency:   10,
			}).
			WithRowCounterConfig(rowcounter.Config{
				DRAMSize:     1024 * rowSize,
				RowSize:      rowSize,
				CounterWidth: 8,
			})

		var err error
		e, err = builder.Build()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reject an invalid model", func() {
		_, err := builder.WithConfig(Config{RefreshThreshold: 1}).Build()
		Expect(err).To(HaveOccurred())

		_, err = builder.WithConfig(Config{WindowDuration: 1}).Build()
		Expect(err).To(HaveOccurred())
	})

	It("should reject an invalid cache geometry", func() {
		_, err := builder.
			WithCacheBuilder(cache.MakeBuilder().WithLineSize(6)).
			Build()

		Expect(err).To(HaveOccurred())
	})

	It("should summarize a window once, then flush the cache", func() {
		hook := NewMockHook(mockCtrl)
		e.AcceptHook(hook)

		hook.EXPECT().Func(gomock.Any()).Do(func(ctx sim.HookCtx) {
			Expect(ctx.Pos).To(BeIdenticalTo(HookPosWindowEnd))
			Expect(ctx.Domain).To(BeIdenticalTo(e))
			Expect(e.Cache().ValidLines()).To(BeZero())
			Expect(e.Cache().Stats()).To(BeZero())

			r := ctx.Item.(WindowReport)
			Expect(r.WindowID).To(Equal(uint64(0)))
			Expect(r.NumEvents).To(Equal(uint64(3)))
			Expect(r.CacheStats).To(Equal(cache.Stats{
				ReadHits:    1,
				ReadMisses:  1,
				WriteHits:   1,
				WriteMisses: 1,
			}))
			Expect(r.ExtraRefreshes).To(Equal(uint64(2)))
		}).Times(1)

		Expect(e.Feed(read(10, 7))).To(Succeed())
		Expect(e.Feed(read(20, 7))).To(Succeed())
		Expect(e.Feed(write(30, 7))).To(Succeed())
		Expect(e.Feed(read(110, 7))).To(Succeed())

		Expect(e.Reports()).To(HaveLen(1))
		Expect(e.Cache().ValidLines()).To(Equal(1))
	})

	It("should compute the overheads", func() {
		Expect(e.Feed(read(0, 0))).To(Succeed())
		Expect(e.Feed(read(10, 0))).To(Succeed())
		Expect(e.Feed(read(20, 0))).To(Succeed())
		Expect(e.Feed(write(30, 40))).To(Succeed())
		Expect(e.Feed(read(150, 0))).To(Succeed())

		Expect(e.Reports()).To(HaveLen(1))
		r := e.Reports()[0]
		Expect(r.CacheStats).To(Equal(cache.Stats{
			ReadHits:    2,
			ReadMisses:  1,
			WriteMisses: 2,
		}))
		Expect(r.ExtraRefreshes).To(Equal(uint64(3)))
		Expect(r.ThresholdRefreshes).To(Equal(uint64(1)))
		Expect(r.HotRows).To(Equal(uint64(1)))
		Expect(r.RowsTouched).To(Equal(uint64(2)))
		Expect(r.Duration).To(Equal(uint64(150)))
		Expect(r.StartTimestamp).To(Equal(uint64(0)))
		Expect(r.RealisticOverhead).To(BeNumerically("~", 4.0*10/150*800, 1e-9))
		Expect(r.WorstCaseOverhead).To(
			BeNumerically("~", (2.0/3+3)*10/100*800, 1e-9))
	})

	It("should close the open window on finish", func() {
		Expect(e.Feed(read(0, 0))).To(Succeed())
		Expect(e.Feed(read(150, 0))).To(Succeed())

		e.Finish()

		Expect(e.Reports()).To(HaveLen(2))
		r := e.Reports()[1]
		Expect(r.WindowID).To(Equal(uint64(1)))
		Expect(r.Duration).To(Equal(uint64(100)))
		Expect(r.ExtraRefreshes).To(Equal(uint64(2)))
		Expect(r.RealisticOverhead).To(BeNumerically("~", 2.0*10/100*800, 1e-9))
	})

	It("should use the last event to time the final window", func() {
		Expect(e.Feed(read(0, 0))).To(Succeed())
		Expect(e.Feed(read(40, 0))).To(Succeed())

		e.Finish()
		e.Finish()

		Expect(e.Reports()).To(HaveLen(1))
		Expect(e.Reports()[0].Duration).To(Equal(uint64(40)))
		Expect(e.Reports()[0].RealisticOverhead).To(
			BeNumerically("~", 2.0*10/40*800, 1e-9))
		Expect(e.Reports()[0].WorstCaseOverhead).To(
			BeNumerically("~", (1.0/3+2)*10/100*800, 1e-9))
	})

	It("should not report anything without events", func() {
		e.Finish()

		Expect(e.Reports()).To(BeEmpty())
	})

	It("should skip windows without traffic", func() {
		Expect(e.Feed(read(5, 0))).To(Succeed())
		Expect(e.Feed(read(355, 0))).To(Succeed())
		e.Finish()

		Expect(e.Reports()).To(HaveLen(2))
		Expect(e.Reports()[0].WindowID).To(Equal(uint64(0)))
		Expect(e.Reports()[1].WindowID).To(Equal(uint64(3)))
	})

	It("should anchor windows at the first event", func() {
		Expect(e.Feed(read(1000, 0))).To(Succeed())
		Expect(e.Feed(read(1099, 0))).To(Succeed())
		Expect(e.Feed(read(1100, 0))).To(Succeed())

		Expect(e.Reports()).To(HaveLen(1))
		Expect(e.Reports()[0].NumEvents).To(Equal(uint64(2)))
	})

	It("should track rows, not addresses", func() {
		Expect(e.Feed(read(0, 3))).To(Succeed())
		evt := read(1, 3)
		evt.StartAddress += 4096
		Expect(e.Feed(evt)).To(Succeed())
		e.Finish()

		Expect(e.Reports()[0].CacheStats.ReadHits).To(Equal(uint64(1)))
		Expect(e.Counters().Get(3)).To(Equal(uint64(2)))
	})

	It("should keep counting rows across windows", func() {
		Expect(e.Feed(read(0, 9))).To(Succeed())
		Expect(e.Feed(read(100, 9))).To(Succeed())
		Expect(e.Feed(write(200, 9))).To(Succeed())
		Expect(e.Feed(read(210, 2))).To(Succeed())
		e.Finish()

		Expect(e.Counters().Get(9)).To(Equal(uint64(3)))
		Expect(e.HotRows(1)).To(Equal([]rowcounter.RowCount{{Row: 9, Count: 3}}))
		Expect(e.HotRows(-1)).To(HaveLen(2))
		for _, r := range e.Reports() {
			Expect(r.ThresholdRefreshes).To(BeZero())
		}
	})

	It("should fail on timestamps going backwards", func() {
		Expect(e.Feed(read(10, 1))).To(Succeed())

		err := e.Feed(read(9, 2))

		var monoErr *cache.MonotonicityError
		Expect(errors.As(err, &monoErr)).To(BeTrue())
	})

	It("should fail on rows outside the DRAM", func() {
		err := e.Feed(read(10, 1024))

		var idxErr *rowcounter.IndexError
		Expect(errors.As(err, &idxErr)).To(BeTrue())
		Expect(e.Cache().Stats()).To(BeZero())
	})
})
