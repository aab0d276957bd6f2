package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/avolkov/fieldsim/internal/config"
	"github.com/avolkov/fieldsim/internal/export"
	"github.com/avolkov/fieldsim/internal/manager"
)

var (
	configFile string
	duration   time.Duration
	every      time.Duration
	outDir     string
	tickMS     int
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "fieldsim",
		Short: "1-D diffusion field simulator with live model comparison",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: "15:04:05",
			})))
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "scenario file (YAML)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario and print periodic snapshots",
		RunE:  runScenario,
	}
	runCmd.Flags().DurationVarP(&duration, "duration", "d", 5*time.Second, "wall-clock run time")
	runCmd.Flags().DurationVar(&every, "every", time.Second, "snapshot interval")
	runCmd.Flags().StringVarP(&outDir, "out", "o", "", "export final snapshot to this directory")
	runCmd.Flags().IntVar(&tickMS, "tick-ms", 0, "override the scenario's minimum tick time")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Compile a scenario's formulas and report stability ratios",
		RunE:  checkScenario,
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default scenario file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "scenario.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}

	root.AddCommand(runCmd, checkCmd, initCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadScenario() (*config.Scenario, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.Load(configFile)
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := loadScenario()
	if err != nil {
		return err
	}

	mgr := manager.New(time.Duration(scenario.MinTickMS)*time.Millisecond,
		manager.WithLogger(slog.Default()))

	for _, spec := range scenario.Models {
		mdl, err := spec.Build()
		if err != nil {
			mgr.Close()
			return fmt.Errorf("model %q: %w", spec.Name, err)
		}
		if r, err := spec.StabilityRatio(); err == nil && r > 0.5 {
			slog.Warn("explicit update may be unstable", "model", spec.Name, "ratio", r)
		}
		mgr.AddModel(spec.Name, mdl)
	}
	for _, c := range scenario.Comparisons {
		mgr.StartComparison(c.A, c.B)
	}
	if tickMS > 0 {
		mgr.SetMinTickTime(time.Duration(tickMS) * time.Millisecond)
	}

	slog.Info("running scenario",
		"models", len(scenario.Models),
		"comparisons", len(scenario.Comparisons),
		"duration", duration)

	ticker := time.NewTicker(every)
	deadline := time.NewTimer(duration)
	defer ticker.Stop()
	defer deadline.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			printSnapshot(mgr.Snapshot())
		case <-deadline.C:
			break loop
		}
	}

	final := mgr.Snapshot()
	printSnapshot(final)
	mgr.Close()

	if outDir != "" {
		dir, err := export.New(outDir).Save(scenario, final)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		slog.Info("snapshot exported", "dir", dir)
	}
	return nil
}

func printSnapshot(snap manager.Snapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tNODES\tMIN\tMAX\tCOMPARISONS")
	for _, info := range snap.Models {
		lo, hi := bounds(info.Nodes)
		fmt.Fprintf(w, "%s\t%d\t%.4g\t%.4g\t%s\n",
			info.Name, len(info.Nodes), lo, hi, formatComparisons(info.Comparisons))
	}
	w.Flush()
	fmt.Printf("tick rate: %d/s\n", snap.TickRate)
	for _, f := range snap.Faults {
		slog.Warn("fault", "model", f.Model, "error", f.Err)
	}
	fmt.Println()
}

func bounds(nodes []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range nodes {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func formatComparisons(cmp map[string]float64) string {
	if len(cmp) == 0 {
		return "-"
	}
	names := make([]string, 0, len(cmp))
	for name := range cmp {
		names = append(names, name)
	}
	sort.Strings(names)
	out := ""
	for i, name := range names {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%.4g", name, cmp[name])
	}
	return out
}

func checkScenario(cmd *cobra.Command, args []string) error {
	scenario, err := loadScenario()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tKIND\tNODES\tSTABILITY\tSTATUS")
	failed := false
	for _, spec := range scenario.Models {
		status := "ok"
		if _, err := spec.Build(); err != nil {
			status = err.Error()
			failed = true
		}
		ratio := "-"
		if spec.Kind != config.KindAnalytic {
			if r, err := spec.StabilityRatio(); err == nil {
				ratio = fmt.Sprintf("%.4g", r)
				if r > 0.5 {
					ratio += " (unstable)"
				}
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", spec.Name, spec.Kind, spec.Nodes, ratio, status)
	}
	w.Flush()
	if failed {
		return fmt.Errorf("scenario has invalid models")
	}
	return nil
}
