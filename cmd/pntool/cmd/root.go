/*
Copyright © 2022 Morgan Gangwere <morgan.gangwere@gmail.com>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/indrora/tusk/internal/logger"
	"github.com/indrora/tusk/pnt/profile"
)

const (
	EXIT_OK     = 0
	EXIT_FAILED = 1
	EXIT_ERROR  = 2
)

// ErrChecksFailed is returned by commands whose run completed but whose
// checks did not pass. The report has already been printed.
var ErrChecksFailed = errors.New("checks failed")

// settings is the profile in effect for the current invocation.
var settings = profile.Default()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pntool",
	Short: "pntool packs, inspects and checks .pnt config containers",
	Long: `pntool is a reference tool for the PNT binary configuration format.

It packs JSON, YAML or CBOR documents into .pnt files, unpacks them again,
validates files against the format rules and benchmarks the reader and
writer against performance targets.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func setup(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	p := profile.Default()
	if path, _ := flags.GetString("profile"); path != "" {
		loaded, err := profile.Load(path)
		if err != nil {
			return err
		}
		p = loaded
	}

	if flags.Changed("log-level") {
		p.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		p.Logging.Format, _ = flags.GetString("log-format")
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		p.Logging.Level = "debug"
	}

	log, err := newLogger(p.Logging)
	if err != nil {
		return err
	}
	settings = p

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logger.WithContext(ctx, log))
	log.Debug("starting", "command", cmd.Name(), "level", p.Logging.Level, "format", p.Logging.Format)
	return nil
}

func newLogger(l profile.Logging) (logger.Logger, error) {
	level := logger.ParseLevel(l.Level)
	switch l.Format {
	case "", "text":
		return logger.Text(os.Stderr, level), nil
	case "json":
		return logger.JSON(os.Stderr, level), nil
	default:
		return nil, errors.Errorf("unknown log format %q", l.Format)
	}
}

// Execute runs the root command and returns the process exit code.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() int {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return EXIT_OK
	case errors.Is(err, ErrChecksFailed):
		return EXIT_FAILED
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return EXIT_ERROR
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Write detailed information to the terminal")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringP("profile", "p", "", "YAML profile with validation limits and benchmark targets")
}
