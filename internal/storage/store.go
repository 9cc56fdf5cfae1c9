// Package storage keeps recorded runs on disk: one directory per run holding
// metadata.json, the scene as scene.yaml, per-frame statistics in frames.csv
// and optional particle dumps.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/san-kum/fluidsim/internal/config"
)

const (
	metadataFile = "metadata.json"
	sceneFile    = "scene.yaml"
	framesFile   = "frames.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Scene     string             `json:"scene"`
	Mode      string             `json:"mode"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Dt        float64            `json:"dt"`
	FPS       float64            `json:"fps,omitempty"`
	Dims      string             `json:"dims"`
	Particles int                `json:"particles"`
	SimTime   float64            `json:"sim_time"`
	Steps     uint64             `json:"steps"`
	Frames    int                `json:"frames"`
	WallTime  float64            `json:"wall_time"`
	Metrics   map[string]float64 `json:"metrics"`
}

// FrameRecord is one row of frames.csv.
type FrameRecord struct {
	Frame         int     `csv:"frame"`
	Step          uint64  `csv:"step"`
	SimTime       float64 `csv:"sim_time"`
	Steps         int     `csv:"steps"`
	TickMS        float64 `csv:"tick_ms"`
	Particles     int     `csv:"particles"`
	FluidCells    int     `csv:"fluid_cells"`
	KineticEnergy float64 `csv:"kinetic_energy"`
	MaxSpeed      float64 `csv:"max_speed"`
	MeanHeight    float64 `csv:"mean_height"`
	MaxDivergence float64 `csv:"max_divergence"`
	Residual      float64 `csv:"residual"`
	Converged     bool    `csv:"converged"`
}

// ParticleRecord is one row of a particle dump.
type ParticleRecord struct {
	ID int     `csv:"id"`
	X  float64 `csv:"x"`
	Y  float64 `csv:"y"`
	Z  float64 `csv:"z"`
	VX float64 `csv:"vx"`
	VY float64 `csv:"vy"`
	VZ float64 `csv:"vz"`
}

// Create makes a new run directory and writes the scene into it.
func (s *Store) Create(scene *config.Scene, mode string) (*Recorder, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	now := time.Now()
	base := fmt.Sprintf("%s_%s", scene.Name, now.Format("20060102-150405"))
	runID := base
	for i := 1; ; i++ {
		err := os.Mkdir(s.Dir(runID), 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating run directory: %w", err)
		}
		runID = fmt.Sprintf("%s-%d", base, i)
	}

	dir := s.Dir(runID)
	if err := config.Save(filepath.Join(dir, sceneFile), scene); err != nil {
		return nil, fmt.Errorf("writing scene: %w", err)
	}

	return newRecorder(dir, RunMetadata{
		ID:        runID,
		Scene:     scene.Name,
		Mode:      mode,
		Timestamp: now,
		Seed:      scene.Fluid.Seed,
		Dt:        scene.Solver.Dt,
		Dims:      scene.Grid.Dims.String(),
	})
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readMetadata(filepath.Join(s.baseDir, entry.Name(), metadataFile))
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	meta, err := readMetadata(filepath.Join(s.Dir(runID), metadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return meta, err
}

func readMetadata(path string) (*RunMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadScene reads back the scene a run was recorded with.
func (s *Store) LoadScene(runID string) (*config.Scene, error) {
	return config.Load(filepath.Join(s.Dir(runID), sceneFile))
}

func (s *Store) LoadFrames(runID string) ([]FrameRecord, error) {
	f, err := os.Open(filepath.Join(s.Dir(runID), framesFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()

	var frames []FrameRecord
	if err := gocsv.UnmarshalFile(f, &frames); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return []FrameRecord{}, nil
		}
		return nil, fmt.Errorf("reading frames: %w", err)
	}
	return frames, nil
}

func (s *Store) LoadParticles(runID string, frame int) ([]ParticleRecord, error) {
	f, err := os.Open(filepath.Join(s.Dir(runID), particleFile(frame)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ps []ParticleRecord
	if err := gocsv.UnmarshalFile(f, &ps); err != nil {
		return nil, fmt.Errorf("reading particles: %w", err)
	}
	return ps, nil
}

func particleFile(frame int) string {
	return fmt.Sprintf("particles_%05d.csv", frame)
}

// Export is a whole run in one document.
type Export struct {
	Metadata RunMetadata   `json:"metadata"`
	Frames   []FrameRecord `json:"frames"`
}

// ExportJSON writes metadata and frames of a run as indented JSON.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	frames, err := s.LoadFrames(runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export{Metadata: *meta, Frames: frames})
}
