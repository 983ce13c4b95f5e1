package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/physics"
)

const (
	metadataFile  = "metadata.json"
	positionsFile = "positions.csv"
	speedsFile    = "speeds.csv"
)

// ErrRunExists is returned by SaveAs when the run directory already exists.
var ErrRunExists = errors.New("storage: run already exists")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Rule        string             `json:"rule"`
	Params      physics.Params     `json:"params"`
	Dt          float64            `json:"dt"`
	Steps       int                `json:"steps"`
	Collisions  dynamo.StepStats   `json:"collisions"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Duration is the simulated time covered by the recorded steps.
func (m RunMetadata) Duration() float64 {
	return m.Dt * float64(m.Steps)
}

// Save stores a run under a fresh id derived from name and the current time.
func (s *Store) Save(name string, cfg *config.Config, result *dynamo.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", name, now.UnixNano())
	return runID, s.save(runID, name, now, cfg, result)
}

// SaveAs stores a run under an explicit id. It refuses to overwrite.
func (s *Store) SaveAs(runID string, cfg *config.Config, result *dynamo.Result) error {
	if _, err := os.Stat(filepath.Join(s.baseDir, runID)); err == nil {
		return fmt.Errorf("%w: %s", ErrRunExists, runID)
	}
	return s.save(runID, runID, time.Now(), cfg, result)
}

func (s *Store) save(runID, name string, ts time.Time, cfg *config.Config, result *dynamo.Result) error {
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}

	traj := result.Trajectory
	if traj == nil {
		traj = &dynamo.Trajectory{}
	}

	meta := RunMetadata{
		ID:          runID,
		Name:        name,
		Timestamp:   ts,
		Seed:        cfg.Seed,
		Rule:        cfg.Rule,
		Params:      cfg.Params(),
		Dt:          traj.Dt,
		Steps:       traj.Len(),
		Collisions:  result.Collisions,
		EnergyDrift: finiteOrZero(result.EnergyDrift),
		Metrics:     finiteMetrics(result.Metrics),
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return err
	}

	if err := writeFile(filepath.Join(runDir, positionsFile), func(f *os.File) error {
		return WritePositionsCSV(f, traj)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(runDir, speedsFile), func(f *os.File) error {
		return WriteSpeedsCSV(f, traj)
	})
}

// finiteMetrics drops values JSON cannot represent, such as the +Inf
// minimum separation of a single-particle run.
func finiteMetrics(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func writeJSON(path string, v any) error {
	return writeFile(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func writeFile(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every readable run, oldest first.
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
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrajectory reads back the positions and speeds of a run.
func (s *Store) LoadTrajectory(runID string) (*dynamo.Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	runDir := filepath.Join(s.baseDir, runID)

	pf, err := os.Open(filepath.Join(runDir, positionsFile))
	if err != nil {
		return nil, err
	}
	defer pf.Close()
	positions, err := ReadPositionsCSV(pf, meta.Params.Count)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", positionsFile, err)
	}

	sf, err := os.Open(filepath.Join(runDir, speedsFile))
	if err != nil {
		return nil, err
	}
	defer sf.Close()
	speeds, err := ReadSpeedsCSV(sf)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", speedsFile, err)
	}

	if len(positions) != len(speeds) {
		return nil, fmt.Errorf("storage: %s has %d steps of positions but %d of speeds",
			runID, len(positions), len(speeds))
	}

	return &dynamo.Trajectory{Dt: meta.Dt, Positions: positions, Speeds: speeds}, nil
}

func (s *Store) Delete(runID string) error {
	if _, err := s.Load(runID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.baseDir, runID))
}
