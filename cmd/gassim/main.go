package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/storage"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string

	// gas parameters
	count        int
	mass         float64
	radius       float64
	boxSize      float64
	initialSpeed float64
	dt           float64
	duration     float64
	steps        int
	seed         int64
	rule         string
	noValidate   bool

	runName string

	// analysis and output
	bins      int
	fromFrac  float64
	vmax      float64
	points    int
	cells     int
	scale     float64
	maxPaths  int
	snapStep  int
	csvKind   string
	outFile   string
	theme     string
	gifPath   string
	epsilon   float64
	saturate  float64
	addr      string
	interval  time.Duration
	runs      int
	seedStart int64

	sweepParam  string
	sweepMin    float64
	sweepMax    float64
	sweepPoints int

	gridRanges []string
	objective  string
)

var logger *log.Logger

// main registers commands and flags and executes the root command. It exits
// with status 1 if the command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "gassim",
		Short:         "2D ideal gas collision simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("data") {
				dataDir = config.Env(config.EnvDataDir, dataDir)
			}
			if !cmd.Flags().Changed("log-level") {
				logLevel = config.Env(config.EnvLogLevel, logLevel)
			}
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger = log.NewWithOptions(os.Stderr, log.Options{
				ReportTimestamp: true,
				TimeFormat:      time.Kitchen,
				Prefix:          "gassim",
				Level:           level,
			})
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gassim", "data directory (env "+config.EnvDataDir+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error (env "+config.EnvLogLevel+")")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	gasFlags(runCmd)
	runCmd.Flags().StringVar(&runName, "name", "gas", "run name")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation and replay it in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	gasFlags(liveCmd)
	replayFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot energy and mean speed over time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	histCmd := &cobra.Command{
		Use:   "hist [run_id]",
		Short: "compare the speed histogram with Maxwell-Boltzmann",
		Args:  cobra.ExactArgs(1),
		RunE:  histRun,
	}
	histCmd.Flags().IntVar(&bins, "bins", 20, "histogram bins")
	histCmd.Flags().Float64Var(&fromFrac, "from", 0.5, "fraction of the run to skip before pooling speeds")
	histCmd.Flags().Float64Var(&vmax, "vmax", 0, "upper histogram edge (0 = largest speed)")

	occupancyCmd := &cobra.Command{
		Use:   "occupancy [run_id]",
		Short: "show how often each region of the box is visited",
		Args:  cobra.ExactArgs(1),
		RunE:  occupancyRun,
	}
	occupancyCmd.Flags().IntVar(&cells, "cells", 16, "grid cells per side")

	densityCmd := &cobra.Command{
		Use:   "density",
		Short: "print the Maxwell-Boltzmann speed density for a configuration",
		Args:  cobra.NoArgs,
		RunE:  printDensity,
	}
	gasFlags(densityCmd)
	densityCmd.Flags().Float64Var(&vmax, "vmax", 0, "largest speed to tabulate (0 = 4x most probable)")
	densityCmd.Flags().IntVar(&points, "points", 11, "number of table rows")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export positions or speeds to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVar(&csvKind, "kind", "positions", "positions or speeds")

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "render a snapshot or particle paths as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  renderSVG,
	}
	svgCmd.Flags().IntVar(&snapStep, "step", -1, "snapshot step (-1 = draw paths instead)")
	svgCmd.Flags().Float64Var(&scale, "scale", 10, "pixels per unit length")
	svgCmd.Flags().IntVar(&maxPaths, "paths", 8, "particles to trace in path mode")
	svgCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	replayCmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "replay a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  replayRun,
	}
	replayFlags(replayCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "stream live runs over WebSocket",
		Args:  cobra.NoArgs,
		RunE:  serveStream,
	}
	gasFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().DurationVar(&interval, "interval", 0, "pause between frames (default: the timestep)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the resolved configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}
	gasFlags(initCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark step throughput at growing particle counts",
		Args:  cobra.NoArgs,
		RunE:  benchGas,
	}
	gasFlags(benchCmd)

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "compare collision rules on the same initial state",
		Args:  cobra.NoArgs,
		RunE:  compareRules,
	}
	gasFlags(compareCmd)

	chaosCmd := &cobra.Command{
		Use:   "chaos",
		Short: "estimate how fast nearby initial states separate",
		Args:  cobra.NoArgs,
		RunE:  chaosRun,
	}
	gasFlags(chaosCmd)
	chaosCmd.Flags().Float64Var(&epsilon, "eps", 1e-9, "velocity perturbation of the first particle")
	chaosCmd.Flags().Float64Var(&saturate, "saturate", 0, "separation where the fit stops (0 = radius)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a YAML scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one parameter and report drift and equilibrium",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	gasFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "initial_speed", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 1, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 5, "last value")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 5, "number of values")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "run many seeds concurrently and pool their speeds",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	gasFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&runs, "runs", 8, "number of runs")
	ensembleCmd.Flags().Int64Var(&seedStart, "seed-start", 1, "seed of the first run")

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "grid search parameters for the lowest objective",
		Args:  cobra.NoArgs,
		RunE:  searchGrid,
	}
	gasFlags(searchCmd)
	searchCmd.Flags().StringArrayVar(&gridRanges, "grid", nil, "parameter range as name=min:max:n or name=value (repeatable)")
	searchCmd.Flags().StringVar(&objective, "objective", "ks", "ks or the name of a metric to minimize")
	_ = searchCmd.MarkFlagRequired("grid")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, deleteCmd, plotCmd, histCmd, occupancyCmd, densityCmd,
		exportCmd, exportJSONCmd, exportCSVCmd, svgCmd, replayCmd, serveCmd, presetsCmd, initCmd,
		benchCmd, compareCmd, chaosCmd, scenarioCmd, sweepCmd, ensembleCmd, searchCmd)

	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error(err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// gasFlags registers the configuration flags shared by every command that
// builds a gas.
func gasFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml or toml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.IntVarP(&count, "count", "n", d.Count, "number of particles")
	f.Float64Var(&mass, "mass", d.Mass, "particle mass")
	f.Float64VarP(&radius, "radius", "r", d.Radius, "particle radius")
	f.Float64VarP(&boxSize, "box", "L", d.BoxSize, "box side length")
	f.Float64Var(&initialSpeed, "speed", d.InitialSpeed, "initial speed of every particle")
	f.Float64Var(&dt, "dt", 0, "timestep (0 = duration/steps)")
	f.Float64Var(&duration, "time", d.Duration, "simulated duration")
	f.IntVar(&steps, "steps", d.Steps, "number of steps")
	f.Int64Var(&seed, "seed", 0, "random seed (default: time based)")
	f.StringVar(&rule, "rule", d.Rule, "collision rule: elastic or literal")
	f.BoolVar(&noValidate, "no-validate", false, "skip the NaN/Inf check after each step")
}

func replayFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme")
	cmd.Flags().StringVar(&gifPath, "gif", "replay.gif", "where the G key writes recordings")
}

// resolveConfig layers the preset, then the config file, then any flags the
// user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("count") {
		cfg.Count = count
	}
	if f.Changed("mass") {
		cfg.Mass = mass
	}
	if f.Changed("radius") {
		cfg.Radius = radius
	}
	if f.Changed("box") {
		cfg.BoxSize = boxSize
	}
	if f.Changed("speed") {
		cfg.InitialSpeed = initialSpeed
	}
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("time") {
		cfg.Duration = duration
	}
	if f.Changed("steps") {
		cfg.Steps = steps
	}
	if f.Changed("rule") {
		cfg.Rule = rule
	}
	if f.Changed("no-validate") {
		cfg.ValidateState = !noValidate
	}
	switch {
	case f.Changed("seed"):
		cfg.Seed = seed
	case cfg.Seed == 0:
		cfg.Seed = time.Now().UnixNano()
	}

	return cfg, cfg.Validate()
}

func openStore() (*storage.Store, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

// signalContext is canceled on the first interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
