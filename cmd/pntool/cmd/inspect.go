/*
Copyright © 2022 Morgan Gangwere <morgan.gangwere@gmail.com>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/pkg/xattr"
	"github.com/spf13/cobra"

	"github.com/indrora/tusk/internal/json"
	"github.com/indrora/tusk/internal/logger"
	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/reader"
)

type inspectOptions struct {
	raw    bool
	data   bool
	xattrs bool
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file.pnt>...",
	Short: "Show the structure of a .pnt file",
	Long: `Inspect prints the header fields, section sizes and package metadata
of each file. A file the reader rejects still has its header shown, along
with the reason it was rejected.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts inspectOptions
		opts.raw, _ = cmd.Flags().GetBool("raw")
		opts.data, _ = cmd.Flags().GetBool("data")
		opts.xattrs, _ = cmd.Flags().GetBool("xattrs")

		log := logger.FromContext(cmd.Context())
		failed := false
		for _, path := range args {
			if err := inspect(cmd.OutOrStdout(), log, path, opts); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  error:       %v\n", err)
				failed = true
			}
		}
		if failed {
			return ErrChecksFailed
		}
		return nil
	},
}

func inspect(out io.Writer, log logger.Logger, path string, opts inspectOptions) error {
	fmt.Fprintln(out, path)

	image, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}

	f, readErr := reader.Parse(image)
	h, ok := format.UnpackHeader(image)
	if readErr == nil {
		h = f.Header
	} else if !ok {
		return readErr
	}

	describeHeader(out, h, int64(len(image)))
	if opts.raw {
		spew.Fdump(out, h)
	}
	if opts.xattrs {
		describeXattrs(out, log, path)
	}
	if readErr != nil {
		return readErr
	}

	fmt.Fprintf(out, "  raw json:    %s\n", humanize.IBytes(uint64(len(f.RawData))))
	if f.Metadata != nil {
		m := f.Metadata
		fmt.Fprintf(out, "  package:     %s %s\n", m.Name, m.Version)
		for _, field := range []struct{ label, value string }{
			{"author", m.Author},
			{"description", m.Description},
			{"license", m.License},
			{"repository", m.Repository},
		} {
			if field.value != "" {
				fmt.Fprintf(out, "  %-12s %s\n", field.label+":", field.value)
			}
		}
		for _, d := range m.Dependencies {
			fmt.Fprintf(out, "  depends:     %s %s (%s)\n", d.Name, d.Version, d.Type)
		}
		if len(m.Keywords) > 0 {
			fmt.Fprintf(out, "  keywords:    %s\n", strings.Join(m.Keywords, ", "))
		}
	} else if name := f.Name(); name != "" {
		fmt.Fprintf(out, "  name:        %s\n", name)
	}

	if opts.data {
		body, err := json.MarshalIndent(f.Data, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to render data")
		}
		fmt.Fprintf(out, "%s\n", body)
	}
	return nil
}

func describeHeader(out io.Writer, h format.Header, size int64) {
	created := time.Unix(int64(h.Timestamp), 0).UTC()
	fmt.Fprintf(out, "  magic:       %q\n", string(h.Magic[:]))
	fmt.Fprintf(out, "  version:     %d\n", h.Version)
	fmt.Fprintf(out, "  flags:       0x%04x %s\n", uint16(h.Flags), flagNames(h.Flags))
	fmt.Fprintf(out, "  compression: %s (%d)\n", h.Compression, h.Compression)
	fmt.Fprintf(out, "  encryption:  %s (%d)\n", h.Encryption, h.Encryption)
	fmt.Fprintf(out, "  checksum:    %08x\n", h.Checksum)
	fmt.Fprintf(out, "  data length: %d\n", h.DataLength)
	fmt.Fprintf(out, "  created:     %s (%s)\n", created.Format(time.RFC3339), humanize.Time(created))
	fmt.Fprintf(out, "  file size:   %s\n", humanize.IBytes(uint64(size)))
}

func flagNames(f format.Flags) string {
	var names []string
	for _, flag := range []struct {
		bit  format.Flags
		name string
	}{
		{format.FLAG_HAS_METADATA, "metadata"},
		{format.FLAG_HAS_ENCRYPTION, "encryption"},
		{format.FLAG_IS_COMPRESSED, "compressed"},
		{format.FLAG_HAS_DEPENDENCIES, "dependencies"},
		{format.FLAG_HAS_KEYWORDS, "keywords"},
	} {
		if f.Has(flag.bit) {
			names = append(names, flag.name)
		}
	}
	if f&format.FLAG_RESERVED != 0 {
		names = append(names, "reserved")
	}
	if len(names) == 0 {
		return "(none)"
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// describeXattrs lists the extended attributes on path. Filesystems without
// xattr support are not an error.
func describeXattrs(out io.Writer, log logger.Logger, path string) {
	names, err := xattr.List(path)
	if err != nil {
		log.Debug("cannot list extended attributes", "path", path, "err", err)
		return
	}
	for _, name := range names {
		value, err := xattr.Get(path, name)
		if err != nil {
			log.Debug("cannot read extended attribute", "path", path, "name", name, "err", err)
			continue
		}
		fmt.Fprintf(out, "  xattr:       %s=%q\n", name, value)
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("raw", false, "Dump the raw header fields")
	inspectCmd.Flags().Bool("data", false, "Print the data object as JSON")
	inspectCmd.Flags().Bool("xattrs", false, "List the file's extended attributes")
}
