// Package automation runs scripted scenarios and parameter sweeps over fluid
// scenes without a terminal.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/experiment"
	"github.com/san-kum/fluidsim/internal/sim"
	"github.com/san-kum/fluidsim/internal/storage"
)

// Scenario scripts what a user would do in the live view: events fire at
// fixed points of synthetic wall time.
type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Preset      string  `yaml:"preset"`
	SceneFile   string  `yaml:"scene_file"`
	Mode        string  `yaml:"mode"`
	Duration    float64 `yaml:"duration"`
	TickRate    float64 `yaml:"tick_rate"`
	Events      []Event `yaml:"events"`
}

// Event is one scripted action. Exactly one action field should be set.
type Event struct {
	At          float64      `yaml:"at"`
	Gravity     *dynamo.Vec3 `yaml:"gravity,omitempty"`
	Mode        string       `yaml:"mode,omitempty"`
	FastForward float64      `yaml:"fast_forward,omitempty"`
	Reset       bool         `yaml:"reset,omitempty"`
	Load        string       `yaml:"load,omitempty"`
}

func (ev Event) String() string {
	switch {
	case ev.Gravity != nil:
		return "gravity " + ev.Gravity.String()
	case ev.Mode != "":
		return "mode " + ev.Mode
	case ev.FastForward > 0:
		return fmt.Sprintf("fast forward %gs", ev.FastForward)
	case ev.Reset:
		return "reset"
	case ev.Load != "":
		return "load " + ev.Load
	}
	return "noop"
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (sc *Scenario) Validate() error {
	if !(sc.Duration > 0) || math.IsInf(sc.Duration, 0) {
		return dynamo.InvalidConfig("duration", "must be positive, got %g", sc.Duration)
	}
	for i, ev := range sc.Events {
		field := fmt.Sprintf("events[%d]", i)
		if ev.At < 0 || ev.At > sc.Duration {
			return dynamo.InvalidConfig(field, "at %g outside [0, %g]", ev.At, sc.Duration)
		}
		if ev.String() == "noop" {
			return dynamo.InvalidConfig(field, "has no action")
		}
		if ev.Load != "" && config.GetPreset(ev.Load) == nil {
			return dynamo.InvalidConfig(field, "unknown preset %q", ev.Load)
		}
	}
	return nil
}

// RunScenario plays the scenario and records it into st when st is not nil.
func RunScenario(ctx context.Context, sc *Scenario, reg *experiment.Registry, st *storage.Store) (*experiment.Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	scene, err := reg.Scene(sc.Preset, sc.SceneFile)
	if err != nil {
		return nil, err
	}
	if sc.Name != "" {
		scene.Name = sc.Name
	}
	status, err := sim.ParseStatus(sc.Mode, scene.Scheduler.RecordFPS)
	if err != nil {
		return nil, err
	}

	exp, err := experiment.New(experiment.Config{Scene: scene, Status: status, TickRate: sc.TickRate}, reg)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if _, err := exp.Record(st, experiment.RecordOptions{}); err != nil {
			return nil, err
		}
	}

	events := append([]Event(nil), sc.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	s := exp.Scheduler()
	ticks := int(math.Round(sc.Duration * exp.TickRate()))
	next := 0
	for i := 0; i < ticks; i++ {
		wall := float64(i) / exp.TickRate()
		for next < len(events) && events[next].At <= wall {
			slog.Info("scenario event", "at", events[next].At, "event", events[next].String())
			if err := apply(ctx, s, events[next]); err != nil {
				return exp.Finish(fmt.Errorf("event at %gs (%s): %w", events[next].At, events[next], err))
			}
			next++
		}
		if _, err := exp.Tick(ctx); err != nil {
			return exp.Finish(err)
		}
	}
	return exp.Finish(nil)
}

func apply(ctx context.Context, s *sim.Scheduler, ev Event) error {
	switch {
	case ev.Gravity != nil:
		return s.SetGravity(*ev.Gravity)
	case ev.Mode != "":
		st, err := sim.ParseStatus(ev.Mode, s.Scene().Scheduler.RecordFPS)
		if err != nil {
			return err
		}
		if r, ok := st.(sim.Record); ok {
			return s.StartRecording(r.FPS)
		}
		return s.SetStatus(st)
	case ev.FastForward > 0:
		_, err := s.FastForward(ctx, ev.FastForward)
		return err
	case ev.Reset:
		return s.Reset()
	case ev.Load != "":
		return s.LoadScene(config.GetPreset(ev.Load))
	}
	return nil
}
