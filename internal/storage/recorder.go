package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/san-kum/fluidsim/internal/dynamo"
)

// Recorder appends frames to an open run. Close writes metadata.json; a run
// without it is not listed.
type Recorder struct {
	dir           string
	meta          RunMetadata
	frames        *os.File
	headerWritten bool
}

func newRecorder(dir string, meta RunMetadata) (*Recorder, error) {
	f, err := os.Create(filepath.Join(dir, framesFile))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", framesFile, err)
	}
	return &Recorder{dir: dir, meta: meta, frames: f}, nil
}

func (r *Recorder) ID() string  { return r.meta.ID }
func (r *Recorder) Dir() string { return r.dir }

// SetFPS records the frame rate a record-mode run used.
func (r *Recorder) SetFPS(fps float64) { r.meta.FPS = fps }

func (r *Recorder) WriteFrame(rec FrameRecord) error {
	records := []FrameRecord{rec}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.frames); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
		r.headerWritten = true
	} else if err := gocsv.MarshalWithoutHeaders(records, r.frames); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	r.meta.Frames++
	r.meta.Particles = rec.Particles
	return nil
}

// WriteParticles dumps every particle of a frame into its own CSV file.
func (r *Recorder) WriteParticles(frame int, pos, vel []dynamo.Vec3) error {
	records := make([]ParticleRecord, len(pos))
	for i, p := range pos {
		v := vel[i]
		records[i] = ParticleRecord{ID: i, X: p.X, Y: p.Y, Z: p.Z, VX: v.X, VY: v.Y, VZ: v.Z}
	}
	f, err := os.Create(filepath.Join(r.dir, particleFile(frame)))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gocsv.Marshal(records, f); err != nil {
		return fmt.Errorf("writing particles: %w", err)
	}
	return nil
}

// WriteFile stores an auxiliary artifact, such as a rendered frame, in the run.
func (r *Recorder) WriteFile(name string, data []byte) error {
	return os.WriteFile(filepath.Join(r.dir, name), data, 0644)
}

// Close finalises the run with its totals and closing metric values.
func (r *Recorder) Close(simTime, wallTime float64, steps uint64, metrics map[string]float64) error {
	if err := r.frames.Close(); err != nil {
		return err
	}
	r.meta.SimTime = simTime
	r.meta.WallTime = wallTime
	r.meta.Steps = steps
	r.meta.Metrics = metrics

	f, err := os.Create(filepath.Join(r.dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(r.meta)
}
