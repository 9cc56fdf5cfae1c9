package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/fluidsim/internal/analysis"
	"github.com/san-kum/fluidsim/internal/automation"
	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/experiment"
	"github.com/san-kum/fluidsim/internal/export"
	"github.com/san-kum/fluidsim/internal/metrics"
	"github.com/san-kum/fluidsim/internal/particles"
	"github.com/san-kum/fluidsim/internal/sim"
	"github.com/san-kum/fluidsim/internal/solver"
	"github.com/san-kum/fluidsim/internal/storage"
	"github.com/san-kum/fluidsim/internal/viz"
)

func recordOptions() (experiment.RecordOptions, error) {
	vol, err := solver.ParseVolumeMode(volumeName)
	if err != nil {
		return experiment.RecordOptions{}, err
	}
	proj, err := viz.ParseProjection(projectionName)
	if err != nil {
		return experiment.RecordOptions{}, err
	}
	return experiment.RecordOptions{
		ParticlesEvery: particlesEvery,
		SVGEvery:       svgEvery,
		VolumeEvery:    volumeEvery,
		Volume:         vol,
		Projection:     proj,
	}, nil
}

func runHeadless(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	scene, err := loadScene(cmd, reg)
	if err != nil {
		return err
	}
	status, err := sim.ParseStatus(mode, scene.Scheduler.RecordFPS)
	if err != nil {
		return err
	}
	return execute(cmd.Context(), reg, experiment.Config{
		Scene:       scene,
		Status:      status,
		Duration:    duration,
		FastForward: fastForward,
		TickRate:    tickRate,
	}, save)
}

func runRecord(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	scene, err := loadScene(cmd, reg)
	if err != nil {
		return err
	}
	return execute(cmd.Context(), reg, experiment.Config{
		Scene:    scene,
		Status:   sim.Record{FPS: scene.Scheduler.RecordFPS},
		Duration: duration,
	}, true)
}

func execute(ctx context.Context, reg *experiment.Registry, cfg experiment.Config, store bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	exp, err := experiment.New(cfg, reg)
	if err != nil {
		return err
	}
	if store {
		opts, err := recordOptions()
		if err != nil {
			return err
		}
		if _, err := exp.Record(storage.New(dataDir), opts); err != nil {
			return err
		}
	}

	fmt.Printf("running %s (%s, %s grid) to %.2fs...\n",
		cfg.Scene.Name, exp.Scheduler().Status(), cfg.Scene.Grid.Dims, cfg.Duration)
	res, err := exp.Run(ctx)
	if res != nil {
		printResult(res)
	}
	return err
}

func printResult(res *experiment.Result) {
	c := res.Clock
	fmt.Printf("completed in %v\n", res.Elapsed.Round(time.Millisecond))
	if res.RunID != "" {
		fmt.Printf("run id: %s\n", res.RunID)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "frames\t%d\n", c.FramesRendered)
	fmt.Fprintf(w, "steps\t%d\n", c.TotalSteps)
	fmt.Fprintf(w, "sim time\t%.3fs\n", c.SimTime)
	fmt.Fprintf(w, "wall time\t%.3fs\n", c.WallTime.Seconds())
	fmt.Fprintf(w, "dropped\t%.3fs\n", c.Dropped)
	fmt.Fprintf(w, "particles\t%d\n", res.Diagnostics.Particles)
	fmt.Fprintf(w, "residual\t%.4g (converged: %v)\n", res.Diagnostics.Residual, res.Diagnostics.Converged)
	if res.Perf.Samples > 0 {
		fmt.Fprintf(w, "step avg\t%v\n", res.Perf.AvgStepDuration.Round(time.Microsecond))
		fmt.Fprintf(w, "steps/sec\t%.1f\n", res.Perf.StepsPerSecond)
	}
	w.Flush()

	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, res.Metrics[name])
	}
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var st *storage.Store
	if save {
		st = storage.New(dataDir)
	}
	fmt.Printf("scenario %s: %d events over %.2fs\n", args[0], len(sc.Events), sc.Duration)
	if sc.Description != "" {
		fmt.Println(sc.Description)
	}
	res, err := automation.RunScenario(ctx, sc, experiment.NewRegistry(), st)
	if res != nil {
		printResult(res)
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	scene, err := loadScene(cmd, reg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("sweeping %s over %v on %s (%.2fs each)\n", sweepParam, sweepValues, scene.Name, sweepTime)
	results, err := automation.RunSweep(ctx, scene, automation.Sweep{
		Param:    sweepParam,
		Values:   sweepValues,
		Duration: sweepTime,
	}, reg)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VALUE\tSTEPS\tRESIDUAL\tCONVERGED\tMAX SPEED\tENERGY\tSTABILITY\tSTEPS/SEC")
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%d\t%.4g\t%v\t%.3f\t%.4g\t%.3f\t%.1f\n",
			r.Value, r.Steps, r.Residual, r.Converged, r.MaxSpeed, r.Energy, r.Stability, r.StepsPerSecond)
	}
	w.Flush()
	return err
}

func runLive(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	viz.SetTheme(themeName)

	proj, err := viz.ParseProjection(projectionName)
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	opts := viz.Options{
		RecordFPS:   fps,
		FastForward: skipStep,
		Projection:  proj,
		Record: func(s *sim.Scheduler) (viz.Recording, error) {
			sink, err := experiment.NewSink(st, s, experiment.RecordOptions{Projection: proj})
			if err != nil {
				return nil, err
			}
			return sink, nil
		},
	}

	launch := func(scene *config.Scene) (*sim.Scheduler, error) {
		status, err := sim.ParseStatus(mode, scene.Scheduler.RecordFPS)
		if err != nil {
			return nil, err
		}
		s, err := sim.New(scene, reg.Factory(), sim.Options{Status: status})
		if err != nil {
			return nil, err
		}
		for _, m := range reg.DefaultMetrics() {
			s.AddMetric(m)
		}
		return s, nil
	}

	if preset == "" && configFile == "" {
		return viz.RunInteractive(launch, opts)
	}
	scene, err := loadScene(cmd, reg)
	if err != nil {
		return err
	}
	s, err := launch(scene)
	if err != nil {
		return err
	}
	return viz.Run(s, opts)
}

func runBench(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	if preset == "" && configFile == "" {
		preset = "dam"
	}
	scene, err := loadScene(cmd, reg)
	if err != nil {
		return err
	}
	b, err := reg.GetBackend(scene.Solver.Backend, scene.Solver.Workers)
	if err != nil {
		return err
	}
	defer b.Cleanup()

	sv, err := solver.New(scene, b)
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %s: %s grid, %d particles, %s backend x%d\n\n",
		scene.Name, scene.Grid.Dims, sv.Particles().Count(), b.Name(), b.Workers())

	start := time.Now()
	for i := 0; i < benchSteps; i++ {
		if err := sv.Step(); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)
	perf := sv.Perf()
	slog.Debug("bench", "perf", perf)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tAVG\tSHARE")
	for _, stage := range metrics.Stages {
		fmt.Fprintf(w, "%s\t%v\t%.1f%%\n", stage, perf.StageAvg[stage].Round(time.Microsecond), perf.StagePct[stage])
	}
	fmt.Fprintf(w, "\t\t\n")
	fmt.Fprintf(w, "steps\t%d\t\n", benchSteps)
	fmt.Fprintf(w, "total\t%v\t\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "steps/sec\t%.1f\t\n", float64(benchSteps)/elapsed.Seconds())
	fmt.Fprintf(w, "residual\t%.4g\t\n", sv.Diagnostics().Residual)
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGRID\tPARTICLES\tCAPACITY\tDT\tITERATIONS")
	for _, name := range config.ListPresets() {
		scene := config.GetPreset(name)
		n := 0
		for _, r := range scene.Fluid.Fill {
			lo, hi := scene.WorldRegion(r)
			n += particles.CubeCount(lo, hi, scene.Spacing())
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.4fs\t%d\n",
			name, scene.Grid.Dims, n, scene.Fluid.MaxParticles, scene.Solver.Dt, scene.Solver.PressureIterations)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tMODE\tTIME\tSIM TIME\tFRAMES\tSTEPS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%d\t%d\n",
			run.ID,
			run.Scene,
			run.Mode,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.SimTime,
			run.Frames,
			run.Steps,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	if jsonOut {
		return st.ExportJSON(runID, os.Stdout)
	}

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s (%s grid, %d particles)\n", meta.Scene, meta.Dims, meta.Particles)
	fmt.Printf("mode: %s\n", meta.Mode)
	fmt.Printf("frames: %d, steps: %d, sim time: %.2fs\n\n", meta.Frames, meta.Steps, meta.SimTime)
	if len(frames) < 2 {
		fmt.Println("not enough frames to plot")
		return nil
	}

	series := []struct {
		caption string
		value   func(storage.FrameRecord) float64
	}{
		{"residual", func(f storage.FrameRecord) float64 { return f.Residual }},
		{"max speed", func(f storage.FrameRecord) float64 { return f.MaxSpeed }},
		{"kinetic energy", func(f storage.FrameRecord) float64 { return f.KineticEnergy }},
		{"mean height", func(f storage.FrameRecord) float64 { return f.MeanHeight }},
		{"steps per frame", func(f storage.FrameRecord) float64 { return float64(f.Steps) }},
	}
	for _, s := range series {
		data := make([]float64, len(frames))
		for i, f := range frames {
			data[i] = s.value(f)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()

		if svgOut != "" && s.caption == "residual" {
			svg := export.SeriesToSVG(data, 800, 240, string(viz.CurrentTheme.Primary))
			if err := os.WriteFile(svgOut, []byte(svg), 0644); err != nil {
				return err
			}
		}
	}

	rate := meta.FPS
	if rate <= 0 && meta.SimTime > 0 {
		rate = float64(len(frames)) / meta.SimTime
	}
	heights := make([]float64, len(frames))
	for i, f := range frames {
		heights[i] = f.MeanHeight
	}
	if peak, ok := analysis.DominantFrequency(heights, rate); ok {
		fmt.Printf("sloshing: %.3f Hz (amplitude %.4f)\n\n", peak.Frequency, peak.Amplitude)
	}

	names := make([]string, 0, len(meta.Metrics))
	for name := range meta.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("metrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, meta.Metrics[name])
	}
	return nil
}
