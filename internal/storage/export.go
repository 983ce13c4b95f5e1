package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/gassim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WritePositionsCSV writes one row per particle per step:
// step,time,particle,x,y.
func WritePositionsCSV(w io.Writer, traj *dynamo.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"step", "time", "particle", "x", "y"}); err != nil {
		return err
	}
	for k, snap := range traj.Positions {
		step, t := strconv.Itoa(k), formatFloat(traj.Time(k))
		for i, p := range snap {
			row := []string{step, t, strconv.Itoa(i), formatFloat(p.X), formatFloat(p.Y)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSpeedsCSV writes one row per step: step,time,v0,...,vN-1.
func WriteSpeedsCSV(w io.Writer, traj *dynamo.Trajectory) error {
	cw := csv.NewWriter(w)

	header := []string{"step", "time"}
	for i := 0; i < traj.Particles(); i++ {
		header = append(header, fmt.Sprintf("v%d", i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for k, speeds := range traj.Speeds {
		row := make([]string, 0, len(speeds)+2)
		row = append(row, strconv.Itoa(k), formatFloat(traj.Time(k)))
		for _, v := range speeds {
			row = append(row, formatFloat(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPositionsCSV parses the format written by WritePositionsCSV. Rows are
// grouped by their step column; n sizes each snapshot.
func ReadPositionsCSV(r io.Reader, n int) ([][]r2.Vec, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	positions := make([][]r2.Vec, 0)
	for line, rec := range records {
		if len(rec) != 5 {
			return nil, fmt.Errorf("line %d: expected 5 fields, got %d", line+2, len(rec))
		}
		vals, err := parseFloats(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		step, particle := int(vals[0]), int(vals[2])
		if step < 0 || particle < 0 || particle >= n {
			return nil, fmt.Errorf("line %d: step %d particle %d out of range", line+2, step, particle)
		}
		for len(positions) <= step {
			positions = append(positions, make([]r2.Vec, n))
		}
		positions[step][particle] = r2.Vec{X: vals[3], Y: vals[4]}
	}
	return positions, nil
}

// ReadSpeedsCSV parses the format written by WriteSpeedsCSV.
func ReadSpeedsCSV(r io.Reader) ([][]float64, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	speeds := make([][]float64, 0, len(records))
	for line, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: expected step and time", line+2)
		}
		vals, err := parseFloats(rec[2:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		speeds = append(speeds, vals)
	}
	return speeds, nil
}

// readRecords returns the data rows without the header.
func readRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return [][]string{}, nil
	}
	return records[1:], nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ExportData is the single-document JSON form of a run.
type ExportData struct {
	Run       RunMetadata `json:"run"`
	Times     []float64   `json:"times"`
	Positions [][]r2.Vec  `json:"positions"`
	Speeds    [][]float64 `json:"speeds"`
}

func ExportJSON(w io.Writer, meta *RunMetadata, traj *dynamo.Trajectory) error {
	data := ExportData{
		Run:       *meta,
		Times:     make([]float64, traj.Len()),
		Positions: traj.Positions,
		Speeds:    traj.Speeds,
	}
	for k := range data.Times {
		data.Times[k] = traj.Time(k)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
