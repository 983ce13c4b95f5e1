package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/gassim/internal/analysis"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/experiment"
	"github.com/san-kum/gassim/internal/export"
	"github.com/san-kum/gassim/internal/storage"
	"github.com/san-kum/gassim/internal/viz"
	"github.com/spf13/cobra"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, nil).WithLogger(logger)
	if err := exp.Setup(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	result, runErr := exp.Run(ctx)
	if result == nil {
		return runErr
	}
	elapsed := time.Since(start)

	// a diverged or interrupted run is still stored up to where it stopped
	runID, err := st.Save(runName, cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("collisions: %d wall, %d pair\n", result.Collisions.WallHits, result.Collisions.PairHits)
	fmt.Printf("energy drift: %.3e\n", result.EnergyDrift)
	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)

	return runErr
}

func printMetrics(metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, metrics[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, nil).WithLogger(logger)
	if err := exp.Setup(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	result, err := exp.Run(ctx)
	if result == nil {
		return err
	}
	if err != nil {
		logger.Warn("replaying partial run", "err", err)
	}

	m := viz.NewReplay(result.Trajectory, cfg.BoxSize, cfg.Radius, analysis.For(exp.Gas())).
		WithName(fmt.Sprintf("%d particles, seed %d", cfg.Count, cfg.Seed)).
		WithTheme(theme).
		WithGIFPath(gifPath)
	return viz.Run(m)
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
	fmt.Fprintln(w, "ID\tNAME\tTIME\tN\tSTEPS\tDT\tRULE\tDRIFT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4g\t%s\t%.2e\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Params.Count,
			run.Steps,
			run.Dt,
			run.Rule,
			run.EnergyDrift,
		)
	}

	return w.Flush()
}

func deleteRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if err := st.Delete(args[0]); err != nil {
		return err
	}
	logger.Info("deleted run", "id", args[0])
	return nil
}

// loadRun reads a stored run's metadata and trajectory.
func loadRun(runID string) (*storage.RunMetadata, *dynamo.Trajectory, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	traj, err := st.LoadTrajectory(runID)
	if err != nil {
		return nil, nil, err
	}
	if traj.Len() == 0 {
		return nil, nil, fmt.Errorf("run %s has no data", runID)
	}
	return meta, traj, nil
}

func theoryFor(meta *storage.RunMetadata) analysis.MaxwellBoltzmann {
	return analysis.MaxwellBoltzmann{Mass: meta.Params.Mass, InitialSpeed: meta.Params.InitialSpeed}
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0])
	if err != nil {
		return err
	}

	energy := make([]float64, traj.Len())
	meanSpeed := make([]float64, traj.Len())
	for k := range energy {
		energy[k] = traj.KineticEnergy(k, meta.Params.Mass)
		s := 0.0
		for _, v := range traj.Speeds[k] {
			s += v
		}
		meanSpeed[k] = s / float64(len(traj.Speeds[k]))
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("particles: %d, rule: %s\n", meta.Params.Count, meta.Rule)
	fmt.Printf("samples: %d\n\n", traj.Len())

	fmt.Println(asciigraph.Plot(energy,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("total kinetic energy"),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(meanSpeed,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("mean speed (theory %.3f)", theoryFor(meta).MeanSpeed())),
	))
	return nil
}

func histRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if fromFrac < 0 || fromFrac >= 1 {
		return fmt.Errorf("--from must be in [0, 1), got %g", fromFrac)
	}

	mb := theoryFor(meta)
	speeds := analysis.PooledSpeeds(traj, int(fromFrac*float64(traj.Len())))
	h := analysis.SpeedHistogram(speeds, bins, vmax)

	ref := make([]float64, len(h.Density))
	for i, c := range h.Centers() {
		ref[i] = mb.Density(c)
	}

	fmt.Printf("speed distribution: %s\n\n", meta.ID)
	fmt.Println(asciigraph.PlotMany([][]float64{h.Density, ref},
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Yellow),
		asciigraph.Caption("measured (cyan) vs Maxwell-Boltzmann (yellow)"),
	))
	fmt.Println()

	sum := analysis.Summarize(speeds)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "samples\t%d\n", sum.N)
	fmt.Fprintf(w, "mean speed\t%.4f\t(theory %.4f)\n", sum.Mean, mb.MeanSpeed())
	fmt.Fprintf(w, "std dev\t%.4f\n", sum.StdDev)
	fmt.Fprintf(w, "most probable\t\t(theory %.4f)\n", mb.MostProbableSpeed())
	fmt.Fprintf(w, "ks distance\t%.4f\n", analysis.KolmogorovSmirnov(speeds, mb))
	if h.Overflow > 0 {
		fmt.Fprintf(w, "above vmax\t%d\n", h.Overflow)
	}
	return w.Flush()
}

func occupancyRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if cells < 1 {
		return fmt.Errorf("--cells must be positive")
	}
	grid := analysis.Occupancy(traj, meta.Params.BoxSize, cells)
	fmt.Printf("box occupancy: %s (%dx%d cells)\n\n", meta.ID, cells, cells)
	fmt.Print(analysis.OccupancyToASCII(grid))
	return nil
}

func printDensity(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if points < 2 {
		return fmt.Errorf("--points must be at least 2")
	}

	mb := analysis.MaxwellBoltzmann{Mass: cfg.Mass, InitialSpeed: cfg.InitialSpeed}
	top := vmax
	if top <= 0 {
		top = 4 * mb.MostProbableSpeed()
	}

	fmt.Printf("maxwell-boltzmann, m=%g v0=%g kT=%g\n\n", cfg.Mass, cfg.InitialSpeed, mb.KT())
	_, fine := mb.Curve(top, 80)
	fmt.Println(asciigraph.Plot(fine, asciigraph.Height(10), asciigraph.Width(80), asciigraph.Caption("f(v)")))
	fmt.Println()

	vs, fs := mb.Curve(top, points)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "V\tF(V)\tCDF")
	for i := range vs {
		fmt.Fprintf(w, "%.4f\t%.6f\t%.6f\n", vs[i], fs[i], mb.CDF(vs[i]))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nmean %.4f, most probable %.4f, integral over [0, %.3g] %.6f\n",
		mb.MeanSpeed(), mb.MostProbableSpeed(), top, mb.Normalization(top, 1001))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, meta, traj)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, traj, err := loadRun(args[0])
	if err != nil {
		return err
	}
	switch strings.ToLower(csvKind) {
	case "positions":
		return storage.WritePositionsCSV(os.Stdout, traj)
	case "speeds":
		return storage.WriteSpeedsCSV(os.Stdout, traj)
	}
	return fmt.Errorf("unknown --kind %q (positions or speeds)", csvKind)
}

func renderSVG(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0])
	if err != nil {
		return err
	}

	var svg string
	if snapStep >= 0 {
		if snapStep >= traj.Len() {
			return fmt.Errorf("step %d out of range (run has %d)", snapStep, traj.Len())
		}
		svg = export.SnapshotSVG(traj.Positions[snapStep], meta.Params.Radius, meta.Params.BoxSize, scale)
	} else {
		svg = export.PathsSVG(traj, meta.Params.Radius, meta.Params.BoxSize, scale, maxPaths)
	}

	if outFile == "" {
		_, err := fmt.Print(svg)
		return err
	}
	if err := os.WriteFile(outFile, []byte(svg), 0644); err != nil {
		return err
	}
	logger.Info("wrote svg", "path", outFile)
	return nil
}

func replayRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no run %q in %s", args[0], dataDir)
		}
		return err
	}

	m := viz.NewReplay(traj, meta.Params.BoxSize, meta.Params.Radius, theoryFor(meta)).
		WithName(meta.Name).
		WithTheme(theme).
		WithGIFPath(gifPath)
	return viz.Run(m)
}
