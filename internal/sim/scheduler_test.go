package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/metrics"
)

// frame is one 60 Hz frame, rounded up to whole nanoseconds.
var frame = (time.Second + 59) / 60

var _ = Describe("Scheduler", func() {
	var (
		ctx     context.Context
		factory *fakeFactory
		sched   *Scheduler
	)

	BeforeEach(func() {
		ctx = context.Background()
		factory = &fakeFactory{}
		var err error
		sched, err = New(testScene(), factory.build, Options{
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Realtime", func() {
		It("runs one step per nominal frame", func() {
			for i := 0; i < 120; i++ {
				report, err := sched.Tick(ctx, frame)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Steps).To(Equal(1))
			}
			Expect(sched.Clock().TotalSteps).To(Equal(uint64(120)))
			Expect(sched.Clock().SimTime).To(BeNumerically("~", 2.0, 1e-9))
			Expect(sched.Clock().Lag()).To(BeNumerically(">=", 0))
		})

		It("never runs ahead of the wall over a long session", func() {
			short := time.Second / 60
			for i := 0; i < 60*60*10; i++ {
				_, err := sched.Tick(ctx, short)
				Expect(err).NotTo(HaveOccurred())
				Expect(sched.Clock().Lag()).To(BeNumerically(">=", 0))
			}
			c := sched.Clock()
			Expect(c.Lag()).To(BeNumerically("<", sched.Dt()))
			Expect(c.Accumulator).To(BeNumerically("~", c.Lag(), 1e-6))
		})

		It("carries partial steps in the accumulator", func() {
			half := frame / 2
			r1, _ := sched.Tick(ctx, half)
			r2, _ := sched.Tick(ctx, half+time.Millisecond)
			Expect(r1.Steps).To(Equal(0))
			Expect(r2.Steps).To(Equal(1))
			Expect(sched.Clock().Accumulator).To(BeNumerically("<", sched.Dt()))
		})

		It("caps catch-up after a long stall and never runs ahead of the wall", func() {
			report, err := sched.Tick(ctx, 10*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Steps).To(Equal(8))
			Expect(factory.last().steps).To(Equal(8))
			Expect(report.Dropped).To(BeNumerically(">", 9.8))
			Expect(report.Lag).To(BeNumerically(">=", 0))
			Expect(sched.Clock().Lag()).To(BeNumerically(">=", 0))
			Expect(sched.Clock().Accumulator).To(BeNumerically("<", sched.Dt()))

			// the dropped time is gone for good: the next frame is a single step
			report, err = sched.Tick(ctx, frame)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Steps).To(Equal(1))
		})

		It("honours an explicit cap", func() {
			s, err := New(testScene(), factory.build, Options{MaxStepsPerTick: 3})
			Expect(err).NotTo(HaveOccurred())
			report, _ := s.Tick(ctx, time.Second)
			Expect(report.Steps).To(Equal(3))
		})
	})

	Describe("SimulateAndRender", func() {
		It("runs every step wall time asks for", func() {
			Expect(sched.SetStatus(SimulateAndRender{})).To(Succeed())
			report, err := sched.Tick(ctx, 10*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Steps).To(Equal(600))
			Expect(report.Dropped).To(BeZero())
		})

		It("carries truncated wall time instead of stepping early", func() {
			Expect(sched.SetStatus(SimulateAndRender{})).To(Succeed())
			short := time.Second / 60
			report, _ := sched.Tick(ctx, short)
			Expect(report.Steps).To(BeZero())
			for i := 0; i < 600; i++ {
				_, err := sched.Tick(ctx, short)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(sched.Clock().TotalSteps).To(Equal(uint64(600)))
			Expect(sched.Clock().Lag()).To(BeNumerically(">=", 0))
		})
	})

	Describe("Record", func() {
		DescribeTable("performs round(T/dt) steps however ticks arrive",
			func(deltas []time.Duration) {
				Expect(sched.StartRecording(30)).To(Succeed())
				frames := 0
				for frames < 60 {
					d := deltas[frames%len(deltas)]
					report, err := sched.Tick(ctx, d)
					Expect(err).NotTo(HaveOccurred())
					Expect(report.Steps).To(Equal(2))
					sched.FrameRendered()
					frames++
				}
				// 60 frames at 30 fps is two simulated seconds
				Expect(sched.Clock().TotalSteps).To(Equal(uint64(120)))
				Expect(sched.Clock().SimTime).To(BeNumerically("~", 2.0, 1e-9))
				Expect(sched.Clock().FramesRendered).To(Equal(uint64(60)))
			},
			Entry("steady", []time.Duration{frame}),
			Entry("irregular", []time.Duration{time.Millisecond, 500 * time.Millisecond, 0, 33 * time.Millisecond}),
			Entry("stalled", []time.Duration{10 * time.Second, 0}),
		)

		It("resets before the first frame", func() {
			sched.Tick(ctx, time.Second)
			Expect(sched.Clock().TotalSteps).NotTo(BeZero())

			Expect(sched.StartRecording(60)).To(Succeed())
			Expect(factory.built).To(HaveLen(2))
			Expect(sched.Clock()).To(Equal(Clock{}))
			Expect(sched.Status()).To(Equal(Record{FPS: 60}))
		})

		It("rounds the frame interval to whole steps", func() {
			Expect(sched.StartRecording(25)).To(Succeed())
			report, _ := sched.Tick(ctx, frame)
			Expect(report.Steps).To(Equal(2))
		})

		It("rejects a non-positive frame rate", func() {
			err := sched.StartRecording(0)
			Expect(errors.Is(err, dynamo.ErrInvalidConfiguration)).To(BeTrue())
			Expect(factory.built).To(HaveLen(1))
			Expect(sched.Status()).To(Equal(Realtime{}))
		})

		It("rejects a frame rate too fast to hold a whole step", func() {
			err := sched.StartRecording(200)
			Expect(errors.Is(err, dynamo.ErrInvalidConfiguration)).To(BeTrue())
			Expect(sched.Status()).To(Equal(Realtime{}))
			Expect(errors.Is(sched.SetStatus(Record{FPS: 200}), dynamo.ErrInvalidConfiguration)).To(BeTrue())

			_, err = New(testScene(), factory.build, Options{Status: Record{FPS: 200}})
			Expect(errors.Is(err, dynamo.ErrInvalidConfiguration)).To(BeTrue())
		})

		It("keeps recording when a new scene's step is too coarse for the frame rate", func() {
			Expect(sched.StartRecording(60)).To(Succeed())
			coarse := testScene()
			coarse.Solver.Dt = 0.05
			coarse.Scheduler.RecordFPS = 10
			err := sched.LoadScene(coarse)
			Expect(errors.Is(err, dynamo.ErrInvalidConfiguration)).To(BeTrue())
			Expect(sched.Dt()).To(Equal(1.0 / 60.0))
			Expect(sched.Status()).To(Equal(Record{FPS: 60}))
		})

		It("pauses when stopped", func() {
			Expect(sched.StartRecording(30)).To(Succeed())
			sched.StopRecording()
			Expect(sched.Status()).To(Equal(Paused{}))
		})
	})

	Describe("Paused", func() {
		It("runs nothing and accumulates nothing", func() {
			sched.Pause()
			report, err := sched.Tick(ctx, 5*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Steps).To(BeZero())
			Expect(sched.Clock().Accumulator).To(BeZero())
			Expect(sched.Clock().WallTime).To(BeZero())
		})

		It("resumes the previous status", func() {
			Expect(sched.SetStatus(SimulateAndRender{})).To(Succeed())
			sched.TogglePause()
			Expect(sched.Status()).To(Equal(Paused{}))
			sched.TogglePause()
			Expect(sched.Status()).To(Equal(SimulateAndRender{}))
		})
	})

	Describe("FastForward", func() {
		It("runs round(seconds/dt) steps without touching wall time", func() {
			sched.Pause()
			n, err := sched.FastForward(ctx, 1.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(90))
			Expect(sched.Clock().TotalSteps).To(Equal(uint64(90)))
			Expect(sched.Clock().WallTime).To(BeZero())
			Expect(sched.Status()).To(Equal(Paused{}))
		})

		It("stops when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			n, err := sched.FastForward(cctx, 1)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(n).To(BeZero())
		})

		It("rejects negative durations", func() {
			_, err := sched.FastForward(ctx, -1)
			Expect(errors.Is(err, dynamo.ErrInvalidConfiguration)).To(BeTrue())
		})
	})

	Describe("scene changes", func() {
		It("keeps the old scene when the new one fails to build", func() {
			old := sched.Solver()
			sched.Tick(ctx, frame)

			bad := testScene()
			bad.Name = "broken"
			err := sched.LoadScene(bad)
			Expect(errors.Is(err, errBroken)).To(BeTrue())
			Expect(sched.Scene().Name).To(Equal("test"))
			Expect(sched.Solver()).To(BeIdenticalTo(old))
			Expect(sched.Clock().TotalSteps).To(Equal(uint64(1)))
		})

		It("keeps the old scene when the new one is invalid", func() {
			bad := testScene()
			bad.Solver.Dt = 0
			err := sched.LoadScene(bad)
			Expect(errors.Is(err, dynamo.ErrInvalidConfiguration)).To(BeTrue())
			Expect(factory.built).To(HaveLen(1))
		})

		It("swaps in a valid scene and restarts the clock", func() {
			sched.Tick(ctx, frame)
			next := testScene()
			next.Name = "next"
			next.Solver.Dt = 0.01
			Expect(sched.LoadScene(next)).To(Succeed())
			Expect(sched.Scene().Name).To(Equal("next"))
			Expect(sched.Dt()).To(Equal(0.01))
			Expect(sched.Clock().TotalSteps).To(BeZero())
		})

		It("keeps gravity changes across resets", func() {
			up := dynamo.V(0, 9.81, 0)
			Expect(sched.SetGravity(up)).To(Succeed())
			Expect(factory.last().gravity).To(Equal(up))
			Expect(sched.Reset()).To(Succeed())
			Expect(factory.last().gravity).To(Equal(up))
			Expect(sched.SetGravity(dynamo.V(math.NaN(), 0, 0))).NotTo(Succeed())
		})
	})

	It("reports solver failures with the steps that completed", func() {
		Expect(sched.SetStatus(SimulateAndRender{})).To(Succeed())
		factory.last().failAt = 3
		report, err := sched.Tick(ctx, time.Second)
		Expect(err).To(HaveOccurred())
		Expect(report.Steps).To(Equal(2))
		Expect(sched.Clock().TotalSteps).To(Equal(uint64(2)))
	})

	It("feeds metrics and observers", func() {
		r := metrics.NewResidual()
		sched.AddMetric(r)
		seen := 0
		sched.AddObserver(ObserverFunc(func(s Solver, c Clock) { seen++ }))

		Expect(sched.SetStatus(SimulateAndRender{})).To(Succeed())
		sched.Tick(ctx, 5*frame)
		Expect(seen).To(Equal(5))
		Expect(sched.Metrics()).To(HaveKeyWithValue("residual", 5.0))

		Expect(sched.Reset()).To(Succeed())
		Expect(sched.Metrics()).To(HaveKeyWithValue("residual", 0.0))
	})
})
