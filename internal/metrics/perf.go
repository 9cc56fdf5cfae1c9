package metrics

import (
	"log/slog"
	"time"
)

// Stage names for one solver step.
const (
	StageClassify   = "classify"
	StageTransfer   = "transfer"
	StageForces     = "forces"
	StageDivergence = "divergence"
	StagePressure   = "pressure"
	StageCorrection = "correction"
	StageGather     = "gather"
	StageAdvect     = "advect"
)

// Stages lists the step stages in execution order.
var Stages = []string{
	StageClassify, StageTransfer, StageForces, StageDivergence,
	StagePressure, StageCorrection, StageGather, StageAdvect,
}

// PerfSample holds timing data for a single step.
type PerfSample struct {
	StepDuration time.Duration
	Stages       map[string]time.Duration
}

// PerfCollector tracks step timing over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentStages map[string]time.Duration
	stepStart     time.Time
	stageStart    time.Time
	lastStage     string

	lastFrameTime time.Time
	frameDuration time.Duration
}

// NewPerfCollector averages over windowSize steps.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentStages: make(map[string]time.Duration),
	}
}

func (p *PerfCollector) StartStep() {
	p.stepStart = time.Now()
	p.currentStages = make(map[string]time.Duration, len(Stages))
	p.lastStage = ""
}

// StartStage closes the running stage, if any, and starts timing the next.
func (p *PerfCollector) StartStage(stage string) {
	now := time.Now()
	if p.lastStage != "" {
		p.currentStages[p.lastStage] += now.Sub(p.stageStart)
	}
	p.stageStart = now
	p.lastStage = stage
}

func (p *PerfCollector) EndStep() {
	now := time.Now()
	if p.lastStage != "" {
		p.currentStages[p.lastStage] += now.Sub(p.stageStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		StepDuration: now.Sub(p.stepStart),
		Stages:       p.currentStages,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.lastStage = ""
}

// RecordFrame records the interval between rendered frames.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

func (p *PerfCollector) Reset() {
	p.samples = make([]PerfSample, p.windowSize)
	p.writeIndex = 0
	p.sampleCount = 0
	p.lastStage = ""
}

// PerfStats holds aggregated step timing.
type PerfStats struct {
	Samples         int
	AvgStepDuration time.Duration
	MinStepDuration time.Duration
	MaxStepDuration time.Duration

	StageAvg map[string]time.Duration
	StagePct map[string]float64

	StepsPerSecond float64

	FrameDuration time.Duration
	FPS           float64
}

// Stats aggregates the current window.
func (p *PerfCollector) Stats() PerfStats {
	var fps float64
	if p.frameDuration > 0 {
		fps = float64(time.Second) / float64(p.frameDuration)
	}

	if p.sampleCount == 0 {
		return PerfStats{
			StageAvg:      make(map[string]time.Duration),
			StagePct:      make(map[string]float64),
			FrameDuration: p.frameDuration,
			FPS:           fps,
		}
	}

	var total, minStep, maxStep time.Duration
	stageSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.StepDuration
		if i == 0 || s.StepDuration < minStep {
			minStep = s.StepDuration
		}
		if s.StepDuration > maxStep {
			maxStep = s.StepDuration
		}
		for stage, d := range s.Stages {
			stageSum[stage] += d
		}
	}

	avg := total / time.Duration(p.sampleCount)
	stageAvg := make(map[string]time.Duration, len(stageSum))
	stagePct := make(map[string]float64, len(stageSum))
	for stage, sum := range stageSum {
		stageAvg[stage] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			stagePct[stage] = float64(stageAvg[stage]) / float64(avg) * 100
		}
	}

	var perSec float64
	if avg > 0 {
		perSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		Samples:         p.sampleCount,
		AvgStepDuration: avg,
		MinStepDuration: minStep,
		MaxStepDuration: maxStep,
		StageAvg:        stageAvg,
		StagePct:        stagePct,
		StepsPerSecond:  perSec,
		FrameDuration:   p.frameDuration,
		FPS:             fps,
	}
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_step_us", s.AvgStepDuration.Microseconds()),
		slog.Int64("min_step_us", s.MinStepDuration.Microseconds()),
		slog.Int64("max_step_us", s.MaxStepDuration.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, stage := range Stages {
		if pct, ok := s.StagePct[stage]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(stage+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}
