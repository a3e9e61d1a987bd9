/*
Copyright © 2022 Morgan Gangwere <morgan.gangwere@gmail.com>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// docsCmd writes the markdown reference for every command.
var docsCmd = &cobra.Command{
	Use:    "docs [dir]",
	Short:  "Generate markdown documentation for pntool",
	Hidden: true,
	Args:   cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "./docs/pntool"
		if len(args) == 1 {
			dir = args[0]
		}
		if err := GenDocs(dir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote docs to %s\n", dir)
		return nil
	},
}

// GenDocs writes one markdown file per command into dir.
func GenDocs(dir string) error {
	if err := os.MkdirAll(dir, 0775); err != nil {
		return errors.Wrap(err, "failed to make docs dir")
	}
	if err := doc.GenMarkdownTree(rootCmd, dir); err != nil {
		return errors.Wrap(err, "failed to make docs")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(docsCmd)
}
