/*
Copyright © 2022 Morgan Gangwere <morgan.gangwere@gmail.com>
*/
package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/indrora/tusk/pnt/ioutil"
	"github.com/indrora/tusk/pnt/reader"
	"github.com/indrora/tusk/pnt/source"
)

// unpackCmd represents the unpack command
var unpackCmd = &cobra.Command{
	Use:   "unpack <file.pnt> [output]",
	Short: "Write the data of a .pnt file back out as JSON, YAML or CBOR",
	Long: `Unpack decodes a .pnt file and writes its data object to output, in
the format the output's extension names. The default output is the input
with a .json extension.`,
	Example: `pntool unpack app.pnt app.yaml
pntool unpack --metadata-out app.meta.yaml app.pnt`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		output := strings.TrimSuffix(input, filepath.Ext(input)) + ".json"
		if len(args) == 2 {
			output = args[1]
		}
		metaOut, _ := cmd.Flags().GetString("metadata-out")

		if err := unpack(input, output, metaOut); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
		return nil
	},
}

func unpack(input, output, metaOut string) error {
	f, err := reader.ReadFile(input)
	if err != nil {
		return err
	}
	if err := source.Dump(output, f.Data); err != nil {
		return err
	}
	if metaOut == "" {
		return nil
	}
	if f.Metadata == nil {
		return errors.Errorf("%s has no metadata section", input)
	}

	buf := new(bytes.Buffer)
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(f.Metadata); err != nil {
		return errors.Wrap(err, "failed to encode metadata")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "failed to encode metadata")
	}
	return ioutil.WriteFileAtomic(metaOut, buf.Bytes(), 0644)
}

func init() {
	rootCmd.AddCommand(unpackCmd)
	unpackCmd.Flags().String("metadata-out", "", "Also write the package metadata to this YAML file")
}
