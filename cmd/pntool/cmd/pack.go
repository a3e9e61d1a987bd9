/*
Copyright © 2022 Morgan Gangwere <morgan.gangwere@gmail.com>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/indrora/tusk/internal/logger"
	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/format/metadata"
	"github.com/indrora/tusk/pnt/source"
	"github.com/indrora/tusk/pnt/writer"
)

// packCmd represents the pack command
var packCmd = &cobra.Command{
	Use:   "pack <input> [output.pnt]",
	Short: "Pack a JSON, YAML or CBOR document into a .pnt file",
	Long: `Pack reads a document whose top level is a mapping and writes it as a
.pnt file. Package metadata can come from a YAML file, from flags, or
both; flags win.

Dependencies are given as name@version with an optional :type suffix,
where type is runtime, development, optional or peer.`,
	Example: `pntool pack app.yaml
pntool pack --compress --name app --version 1.2.0 -d db@2.0:peer app.json app.pnt`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		output := strings.TrimSuffix(input, filepath.Ext(input)) + format.FILE_EXT
		if len(args) == 2 {
			output = args[1]
		}

		meta, err := packageFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		compress, _ := cmd.Flags().GetBool("compress")

		res, err := pack(input, output, meta, compress)
		if err != nil {
			return err
		}
		logger.FromContext(cmd.Context()).Debug("packed", "input", input, "output", output, "flags", uint16(res.Header.Flags))
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %s of JSON, %.1f%% saved)\n",
			output, humanize.IBytes(uint64(res.FileSize)), humanize.IBytes(uint64(res.RawSize)), res.Ratio())
		return nil
	},
}

func pack(input, output string, meta *metadata.Package, compress bool) (*writer.Result, error) {
	doc, err := source.Load(input)
	if err != nil {
		return nil, err
	}
	opts := []writer.Option{}
	if compress {
		opts = append(opts, writer.WithCompression(format.COMPRESSION_GZIP))
	}
	return writer.WriteFile(output, doc, meta, opts...)
}

// packageFromFlags builds the metadata block. It returns nil when neither a
// metadata file nor any metadata flag was given, so no section is written.
func packageFromFlags(flags *pflag.FlagSet) (*metadata.Package, error) {
	var meta *metadata.Package

	if path, _ := flags.GetString("metadata"); path != "" {
		m, err := loadPackage(path)
		if err != nil {
			return nil, err
		}
		meta = m
	}

	fields := []struct {
		flag string
		dst  func(*metadata.Package) *string
	}{
		{"name", func(m *metadata.Package) *string { return &m.Name }},
		{"version", func(m *metadata.Package) *string { return &m.Version }},
		{"author", func(m *metadata.Package) *string { return &m.Author }},
		{"description", func(m *metadata.Package) *string { return &m.Description }},
		{"license", func(m *metadata.Package) *string { return &m.License }},
		{"repository", func(m *metadata.Package) *string { return &m.Repository }},
	}
	for _, f := range fields {
		if !flags.Changed(f.flag) {
			continue
		}
		if meta == nil {
			meta = &metadata.Package{}
		}
		*f.dst(meta), _ = flags.GetString(f.flag)
	}

	if deps, _ := flags.GetStringArray("dependency"); len(deps) > 0 {
		if meta == nil {
			meta = &metadata.Package{}
		}
		for _, arg := range deps {
			d, err := parseDependency(arg)
			if err != nil {
				return nil, err
			}
			meta.Dependencies = append(meta.Dependencies, d)
		}
	}
	if keywords, _ := flags.GetStringSlice("keyword"); len(keywords) > 0 {
		if meta == nil {
			meta = &metadata.Package{}
		}
		meta.Keywords = append(meta.Keywords, keywords...)
	}
	return meta, nil
}

func loadPackage(path string) (*metadata.Package, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read metadata %s", path)
	}
	m := &metadata.Package{}
	if err := yaml.Unmarshal(body, m); err != nil {
		return nil, errors.Wrapf(err, "failed to parse metadata %s", path)
	}
	return m, nil
}

// parseDependency reads name@version[:type].
func parseDependency(arg string) (metadata.Dependency, error) {
	var d metadata.Dependency

	name, rest, ok := strings.Cut(arg, "@")
	if !ok || name == "" {
		return d, errors.Errorf("dependency %q is not name@version[:type]", arg)
	}
	version, kind, hasKind := strings.Cut(rest, ":")
	d.Name = name
	d.Version = version
	if !hasKind {
		return d, nil
	}

	t, err := parseDependencyType(kind)
	if err != nil {
		return d, errors.Wrapf(err, "dependency %q", arg)
	}
	d.Type = t
	return d, nil
}

func parseDependencyType(s string) (metadata.DependencyType, error) {
	for t := metadata.DEPENDENCY_RUNTIME; t <= metadata.DEPENDENCY_MAX; t++ {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, errors.Errorf("unknown dependency type %q", s)
	}
	return metadata.DependencyType(n), nil
}

func definePackFlags(flags *pflag.FlagSet) {
	flags.BoolP("compress", "z", false, "Gzip the data section")
	flags.StringP("metadata", "m", "", "YAML file with package metadata")
	flags.String("name", "", "Package name")
	flags.String("version", "", "Package version")
	flags.String("author", "", "Package author")
	flags.String("description", "", "Package description")
	flags.String("license", "", "Package license")
	flags.String("repository", "", "Package repository")
	flags.StringArrayP("dependency", "d", nil, "Dependency as name@version[:type], repeatable")
	flags.StringSliceP("keyword", "k", nil, "Keyword, repeatable or comma separated")
}

func init() {
	rootCmd.AddCommand(packCmd)
	definePackFlags(packCmd.Flags())
}
