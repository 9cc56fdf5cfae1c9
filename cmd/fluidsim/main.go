package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/san-kum/fluidsim/internal/automation"
	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/experiment"
)

var (
	dataDir  string
	logLevel string

	// scene selection and overrides
	preset     string
	configFile string
	dt         float64
	iterations int
	flipRatio  float64
	backend    string
	workers    int
	seed       int64
	maxSteps   int

	// driving
	duration    float64
	mode        string
	fps         float64
	fastForward float64
	skipStep    float64
	tickRate    float64
	save        bool

	// recording outputs
	particlesEvery int
	svgEvery       int
	volumeEvery    int
	volumeName     string
	projectionName string
	themeName      string

	benchSteps int
	jsonOut    bool
	svgOut     string

	sweepParam  string
	sweepValues []float64
	sweepTime   float64
)

// main registers the commands and flags and executes the root command,
// exiting with status 1 when it fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "fluidsim",
		Short:         "PIC/FLIP fluid simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd)
		},
		RunE: runLive,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".fluidsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scene headless with synthetic ticks",
		Args:  cobra.NoArgs,
		RunE:  runHeadless,
	}
	sceneFlags(runCmd)
	runCmd.Flags().Float64Var(&duration, "time", 5.0, "simulated time to reach (s)")
	runCmd.Flags().StringVar(&mode, "mode", "realtime", "scheduling mode (realtime, simulate, record)")
	runCmd.Flags().Float64Var(&fps, "fps", config.DefaultRecordFPS, "frame rate in record mode")
	runCmd.Flags().Float64Var(&fastForward, "fast-forward", 0, "simulated time to skip before the first frame (s)")
	runCmd.Flags().Float64Var(&tickRate, "tick-rate", experiment.DefaultTickRate, "synthetic ticks per wall second")
	runCmd.Flags().BoolVar(&save, "save", false, "store the run in the data directory")
	recordFlags(runCmd)

	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "reset a scene and record it frame by frame",
		Args:  cobra.NoArgs,
		RunE:  runRecord,
	}
	sceneFlags(recordCmd)
	recordCmd.Flags().Float64Var(&duration, "time", 5.0, "simulated time to record (s)")
	recordCmd.Flags().Float64Var(&fps, "fps", config.DefaultRecordFPS, "recorded frames per simulated second")
	recordFlags(recordCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a scene in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	sceneFlags(liveCmd)
	liveCmd.Flags().StringVar(&mode, "mode", "realtime", "initial mode (realtime, simulate, paused)")
	liveCmd.Flags().Float64Var(&fps, "fps", config.DefaultRecordFPS, "frame rate when recording")
	liveCmd.Flags().Float64Var(&skipStep, "skip", 1.0, "simulated time skipped by f (s)")
	liveCmd.Flags().StringVar(&projectionName, "projection", "front", "projection (front, side, top, perspective)")
	liveCmd.Flags().StringVar(&themeName, "theme", "ocean", "color theme")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time solver steps per stage",
		Args:  cobra.NoArgs,
		RunE:  runBench,
	}
	sceneFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchSteps, "steps", 60, "steps to time")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenes",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "plot a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().BoolVar(&jsonOut, "json", false, "print metadata and frames as JSON")
	showCmd.Flags().StringVar(&svgOut, "svg", "", "write the residual series to this SVG file")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "play a scripted scenario headless",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&save, "save", false, "store the run in the data directory")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a scene once per value of a parameter",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	sceneFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "flip_ratio", fmt.Sprintf("parameter to vary %v", automation.SweepParams))
	sweepCmd.Flags().Float64SliceVar(&sweepValues, "values", []float64{0, 0.5, 0.95, 1}, "values to try")
	sweepCmd.Flags().Float64Var(&sweepTime, "time", 1.0, "simulated time per run (s)")

	rootCmd.AddCommand(runCmd, recordCmd, liveCmd, benchCmd, scenarioCmd, sweepCmd, presetsCmd, listCmd, showCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func sceneFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "built-in scene (see presets)")
	cmd.Flags().StringVar(&configFile, "config", "", "scene file (.yaml, .gcfg or .ini)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "fixed step (s)")
	cmd.Flags().IntVar(&iterations, "iterations", config.DefaultPressureIterations, "pressure iterations per step")
	cmd.Flags().Float64Var(&flipRatio, "flip", config.DefaultFlipRatio, "FLIP share of the PIC/FLIP blend")
	cmd.Flags().StringVar(&backend, "backend", "cpu", "compute backend (cpu, serial)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines, 0 for GOMAXPROCS")
	cmd.Flags().Int64Var(&seed, "seed", 1, "particle jitter seed")
	cmd.Flags().IntVar(&maxSteps, "max-steps", config.DefaultMaxStepsPerTick, "realtime catch-up cap per tick")
}

func recordFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&particlesEvery, "particles-every", 0, "dump particles every n frames")
	cmd.Flags().IntVar(&svgEvery, "svg-every", 0, "render an SVG of the particles every n frames")
	cmd.Flags().IntVar(&volumeEvery, "volume-every", 0, "render an SVG of a volume slice every n frames")
	cmd.Flags().StringVar(&volumeName, "volume", "velocity", "volume for SVG slices (velocity, divergence, pressure, marker)")
	cmd.Flags().StringVar(&projectionName, "projection", "front", "projection (front, side, top, perspective)")
}

// loadScene resolves --config or --preset, then applies explicitly set flags
// on top of it.
func loadScene(cmd *cobra.Command, reg *experiment.Registry) (*config.Scene, error) {
	scene, err := reg.Scene(preset, configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		scene.Solver.Dt = dt
	}
	if flags.Changed("iterations") {
		scene.Solver.PressureIterations = iterations
	}
	if flags.Changed("flip") {
		scene.Fluid.FlipRatio = flipRatio
	}
	if flags.Changed("backend") {
		scene.Solver.Backend = backend
	}
	if flags.Changed("workers") {
		scene.Solver.Workers = workers
	}
	if flags.Changed("seed") {
		scene.Fluid.Seed = seed
	}
	if flags.Changed("max-steps") {
		scene.Scheduler.MaxStepsPerTick = maxSteps
	}
	if flags.Changed("fps") {
		scene.Scheduler.RecordFPS = fps
	}
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	return scene, nil
}

func setupLogging(cmd *cobra.Command) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}

	out := os.Stderr
	// the live view owns the terminal; its logs go to a file
	if cmd.Name() == "live" || cmd.Name() == "fluidsim" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(dataDir, "live.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		out = f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return nil
}
