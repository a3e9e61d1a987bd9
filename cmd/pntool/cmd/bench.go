/*
Copyright © 2022 Morgan Gangwere <morgan.gangwere@gmail.com>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/indrora/tusk/internal/logger"
	"github.com/indrora/tusk/pnt/bench"
	"github.com/indrora/tusk/pnt/report"
)

// benchCmd represents the bench command
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure the reader and writer against performance targets",
	Long: `Bench runs the load time, compression, memory, speed, concurrency,
throughput, cross-platform and stress dimensions and scores the results
against the targets in the active profile.

The exit status is 1 when the overall score is below the pass score.`,
	Example: `pntool bench --output-dir reports --metrics-file bench.prom`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		workDir, _ := flags.GetString("work-dir")
		outDir, _ := flags.GetString("output-dir")
		metricsFile, _ := flags.GetString("metrics-file")
		xlarge, _ := flags.GetBool("xlarge")

		log := logger.FromContext(cmd.Context())

		if workDir == "" {
			tmp, err := os.MkdirTemp("", "pntool-bench-")
			if err != nil {
				return errors.Wrap(err, "failed to create work directory")
			}
			defer os.RemoveAll(tmp)
			workDir = tmp
		}

		cfg := settings.Benchmark
		if xlarge && cfg.Sizes.XLarge == 0 {
			cfg.Sizes.XLarge = bench.XLargeSize
		}

		h := bench.New(workDir, cfg, bench.WithLogger(log))
		rep := h.Run()
		summary := rep.Summary()
		fmt.Fprint(cmd.OutOrStdout(), summary)

		if outDir != "" {
			a, err := report.WriteArtifacts(outDir, "benchmark", rep, summary)
			if err != nil {
				return err
			}
			log.Info("wrote benchmark report", "results", a.Results, "summary", a.Summary)
		}
		if metricsFile != "" {
			if err := prometheus.WriteToTextfile(metricsFile, h.Registry()); err != nil {
				return errors.Wrapf(err, "failed to write metrics to %s", metricsFile)
			}
			log.Info("wrote metrics", "path", metricsFile)
		}

		if !rep.Passed() {
			return ErrChecksFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().String("work-dir", "", "Directory for scratch files (default: a temporary directory)")
	benchCmd.Flags().StringP("output-dir", "o", "", "Write benchmark_results.json and benchmark_summary.txt here")
	benchCmd.Flags().String("metrics-file", "", "Write the Prometheus metrics in text format to this file")
	benchCmd.Flags().Bool("xlarge", false, "Include the extra-large payload size")
}
