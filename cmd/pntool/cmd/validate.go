/*
Copyright © 2022 Morgan Gangwere <morgan.gangwere@gmail.com>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/indrora/tusk/internal/logger"
	"github.com/indrora/tusk/pnt/report"
	"github.com/indrora/tusk/pnt/validator"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <path>...",
	Short: "Check .pnt files against the format rules",
	Long: `Validate runs every file through the basics, header, metadata, data,
cross-reference and performance stages and prints a report. Directories
are searched for .pnt files.

The exit status is 1 when any file is invalid.`,
	Example: `pntool validate config.pnt
pntool validate -r --output-dir reports ./configs`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		outDir, _ := cmd.Flags().GetString("output-dir")
		quiet, _ := cmd.Flags().GetBool("quiet")

		log := logger.FromContext(cmd.Context())
		v := validator.New(settings.Validation, validator.WithLogger(log))

		rep, err := validatePaths(v, args, recursive)
		if err != nil {
			return err
		}
		if err := emitValidation(cmd.OutOrStdout(), log, rep, outDir, quiet); err != nil {
			return err
		}
		if !rep.Passed() {
			return ErrChecksFailed
		}
		return nil
	},
}

func validatePaths(v *validator.Validator, paths []string, recursive bool) (*validator.Report, error) {
	total := &validator.Report{Files: []*validator.Outcome{}}
	for _, p := range paths {
		rep, err := v.ValidatePath(p, recursive)
		if err != nil {
			return nil, err
		}
		total.Merge(rep)
	}
	return total, nil
}

func emitValidation(out io.Writer, log logger.Logger, rep *validator.Report, outDir string, quiet bool) error {
	summary := rep.Summary()
	if !quiet {
		fmt.Fprint(out, summary)
	}
	if outDir == "" {
		return nil
	}
	a, err := report.WriteArtifacts(outDir, "validation", rep, summary)
	if err != nil {
		return err
	}
	log.Info("wrote validation report", "results", a.Results, "summary", a.Summary)
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolP("recursive", "r", false, "Descend into subdirectories")
	validateCmd.Flags().StringP("output-dir", "o", "", "Write validation_results.json and validation_summary.txt here")
	validateCmd.Flags().BoolP("quiet", "q", false, "Do not print the report")
}
