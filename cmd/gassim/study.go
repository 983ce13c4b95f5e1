package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/gassim/internal/automation"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/experiment"
	"github.com/san-kum/gassim/internal/optim"
	"github.com/san-kum/gassim/internal/stream"
	"github.com/spf13/cobra"
)

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tN\tMASS\tRADIUS\tBOX\tSPEED\tDT\tSTEPS\tRULE")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%g\t%g\t%g\t%g\t%.4g\t%d\t%s\n",
			name, p.Count, p.Mass, p.Radius, p.BoxSize, p.InitialSpeed,
			p.SimConfig().Timestep(), p.Steps, p.Rule)
	}
	return w.Flush()
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("seed") {
		cfg.Seed = 0
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	logger.Info("wrote config", "path", args[0])
	return nil
}

func serveStream(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	srv := stream.NewServer(cfg, nil).WithLogger(logger)
	if cmd.Flags().Changed("interval") {
		srv.WithInterval(interval)
	}

	ctx, cancel := signalContext()
	defer cancel()
	return srv.Serve(ctx, addr)
}

// benchGas times full runs at four sizes. The box grows with the particle
// count so the area fraction stays that of the base config.
func benchGas(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	registry := experiment.NewRegistry()

	fmt.Printf("benchmarking %d steps per run\n\n", base.Steps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tBOX\tSTEPS\tTIME\tSTEPS/SEC\tPAIRS/SEC")

	for _, factor := range []int{1, 4, 16, 64} {
		cfg := base.Clone()
		cfg.Count = base.Count * factor
		cfg.BoxSize = base.BoxSize * math.Sqrt(float64(factor))

		exp := experiment.New(cfg, registry).WithLogger(logger)
		if err := exp.Setup("energy_drift"); err != nil {
			fmt.Fprintf(w, "%d\t%.1f\terror: %v\n", cfg.Count, cfg.BoxSize, err)
			continue
		}

		start := time.Now()
		result, err := exp.Run(context.Background())
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		stepsPerSec := float64(result.StepsTaken) / elapsed.Seconds()
		pairs := float64(cfg.Count*(cfg.Count-1)/2) * stepsPerSec
		fmt.Fprintf(w, "%d\t%.1f\t%d\t%v\t%.0f\t%.3g\n",
			cfg.Count, cfg.BoxSize, result.StepsTaken, elapsed.Round(time.Microsecond), stepsPerSec, pairs)
	}

	return w.Flush()
}

func compareRules(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	out, err := automation.CompareRules(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}

	fmt.Printf("comparing collision rules (n=%d, seed=%d, %d steps)\n\n", cfg.Count, cfg.Seed, cfg.Steps)
	fmt.Printf("%-10s  %-12s  %-12s  %-12s  %-8s  %-8s\n", "rule", "E_initial", "E_final", "drift", "ks", "pairs")
	fmt.Println(strings.Repeat("-", 72))
	for _, c := range out {
		fmt.Printf("%-10s  %12.6f  %12.6f  %12.2e  %8.4f  %8d\n",
			c.Rule, c.InitialEnergy, c.FinalEnergy, c.EnergyDrift, c.KS, c.PairHits)
	}
	return nil
}

func chaosRun(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	limit := saturate
	if limit <= 0 {
		limit = cfg.Radius
	}
	ctx, cancel := signalContext()
	defer cancel()

	res, err := automation.Divergence(ctx, cfg, epsilon, limit, nil, logger)
	if err != nil {
		return err
	}

	logSep := make([]float64, len(res.Separation))
	for i, d := range res.Separation {
		logSep[i] = math.Log10(math.Max(d, 1e-300))
	}
	// step 0 has no separation and would pin the plot floor
	if len(logSep) > 1 {
		logSep = logSep[1:]
	}

	fmt.Println(asciigraph.Plot(logSep,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("log10 separation, eps=%g", res.Epsilon)),
	))
	fmt.Printf("\ngrowth rate: %.4f per unit time (fit below %g)\n", res.Exponent, limit)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunScenario(ctx, sc, experiment.NewRegistry(), st, logger)
	if len(results) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STEP\tN\tRULE\tSEED\tDRIFT\tKS\tPAIRS\tRUN")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%.2e\t%.4f\t%d\t%s\n",
				r.Name, r.Config.Count, r.Config.Rule, r.Config.Seed,
				r.Result.EnergyDrift, r.KS, r.Result.Collisions.PairHits, r.RunID)
		}
		if ferr := w.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	sweep := &automation.ParameterSweep{
		Base:      base,
		ParamName: sweepParam,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepPoints,
	}
	results, err := automation.RunSweep(ctx, sweep, experiment.NewRegistry(), logger)
	if err != nil && len(results) == 0 {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tDRIFT\tKS\tMEAN SPEED\tWALL\tPAIRS\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%g\tinvalid: %v\n", r.ParamValue, r.Err)
			continue
		}
		fmt.Fprintf(w, "%g\t%.2e\t%.4f\t%.4f\t%d\t%d\n",
			r.ParamValue, r.EnergyDrift, r.KS, r.MeanSpeed, r.Collisions.WallHits, r.Collisions.PairHits)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	sum, _, err := automation.RunEnsemble(ctx, cfg, runs, seedStart, nil, logger)
	if err != nil {
		return err
	}

	fmt.Printf("ensemble of %d runs (seeds %d..%d) in %v\n\n", sum.Runs, seedStart, seedStart+int64(runs)-1, time.Since(start).Round(time.Millisecond))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "energy drift\tmean %.2e\tmax %.2e\n", sum.MeanDrift, sum.MaxDrift)
	fmt.Fprintf(w, "ks per run\tmean %.4f\tstd %.4f\n", sum.MeanKS, sum.StdKS)
	fmt.Fprintf(w, "ks pooled\t%.4f\t(%d speeds)\n", sum.PooledKS, sum.PooledSpeeds.N)
	fmt.Fprintf(w, "mean speed\t%.4f\t(theory %.4f)\n", sum.PooledSpeeds.Mean, sum.TheoryMeanSpeed)
	fmt.Fprintf(w, "collisions\t%d wall\t%d pair\n", sum.TotalWallHits, sum.TotalPairHits)
	return w.Flush()
}

func searchGrid(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(gridRanges))
	ranges := make([][]float64, 0, len(gridRanges))
	for _, g := range gridRanges {
		name, vals, err := optim.ParseRange(g)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	gs, err := optim.NewGridSearch(base, names, ranges)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	best, all, err := gs.Search(ctx, experiment.NewRegistry(), optim.ParseObjective(objective))
	if len(all) > 0 {
		sorted := append([]optim.Point(nil), all...)
		sort.SliceStable(sorted, func(i, j int) bool {
			if (sorted[i].Err == nil) != (sorted[j].Err == nil) {
				return sorted[i].Err == nil
			}
			return sorted[i].Value < sorted[j].Value
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(objective))
		for _, pt := range sorted {
			cols := make([]string, len(names))
			for i, n := range names {
				cols[i] = fmt.Sprintf("%g", pt.Params[n])
			}
			if pt.Err != nil {
				fmt.Fprintf(w, "%s\tskipped: %v\n", strings.Join(cols, "\t"), pt.Err)
				continue
			}
			fmt.Fprintf(w, "%s\t%.6g\n", strings.Join(cols, "\t"), pt.Value)
		}
		if ferr := w.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}
	if err != nil {
		return err
	}
	logger.Info("best point", "params", best.Params, objective, best.Value)
	return nil
}
