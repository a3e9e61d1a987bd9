package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indrora/tusk/internal/json"
	"github.com/indrora/tusk/internal/logger"
	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/format/metadata"
	"github.com/indrora/tusk/pnt/profile"
	"github.com/indrora/tusk/pnt/reader"
	"github.com/indrora/tusk/pnt/source"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestParseDependency(t *testing.T) {
	tests := []struct {
		arg    string
		want    metadata.Dependency
		wantErr bool
	}{
		{"db@2.0", metadata.Dependency{Name: "db", Version: "2.0"}, false},
		{"db@2.0:peer", metadata.Dependency{Name: "db", Version: "2.0", Type: metadata.DEPENDENCY_PEER}, false},
		{"lint@^1:Development", metadata.Dependency{Name: "lint", Version: "^1", Type: metadata.DEPENDENCY_DEVELOPMENT}, false},
		{"x@1:2", metadata.Dependency{Name: "x", Version: "1", Type: metadata.DEPENDENCY_OPTIONAL}, false},
		{"x@", metadata.Dependency{Name: "x"}, false},
		{"noversion", metadata.Dependency{}, true},
		{"@1.0", metadata.Dependency{}, true},
		{"x@1:sometimes", metadata.Dependency{}, true},
		{"x@1:300", metadata.Dependency{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseDependency(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("pack", pflag.ContinueOnError)
	definePackFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestPackageFromFlags(t *testing.T) {
	t.Run("nothing given", func(t *testing.T) {
		meta, err := packageFromFlags(parseFlags(t, "--compress"))
		require.NoError(t, err)
		assert.Nil(t, meta)
	})

	t.Run("flags only", func(t *testing.T) {
		meta, err := packageFromFlags(parseFlags(t,
			"--name", "app", "--version", "1.2.0",
			"-d", "db@2.0:peer", "-d", "cache@1",
			"-k", "web,api", "-k", "prod"))
		require.NoError(t, err)
		assert.Equal(t, &metadata.Package{
			Name:    "app",
			Version: "1.2.0",
			Dependencies: []metadata.Dependency{
				{Name: "db", Version: "2.0", Type: metadata.DEPENDENCY_PEER},
				{Name: "cache", Version: "1"},
			},
			Keywords: []string{"web", "api", "prod"},
		}, meta)
	})

	t.Run("file with overrides", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "meta.yaml", `
package_name: from-file
version: 0.1.0
license: MIT
dependencies:
  - name: base
    version: "3"
    type: 1
`)
		meta, err := packageFromFlags(parseFlags(t, "-m", path, "--version", "0.2.0"))
		require.NoError(t, err)
		assert.Equal(t, "from-file", meta.Name)
		assert.Equal(t, "0.2.0", meta.Version)
		assert.Equal(t, "MIT", meta.License)
		assert.Equal(t, []metadata.Dependency{{Name: "base", Version: "3", Type: metadata.DEPENDENCY_DEVELOPMENT}}, meta.Dependencies)
	})

	t.Run("bad dependency", func(t *testing.T) {
		_, err := packageFromFlags(parseFlags(t, "-d", "broken"))
		assert.Error(t, err)
	})
}

func TestPackInspectUnpack(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "app.yaml", "name: app\nport: 8080\nfeatures:\n  - a\n  - b\n")
	output := filepath.Join(dir, "app.pnt")
	meta := &metadata.Package{Name: "app", Version: "1.0.0", Keywords: []string{"web"}}

	res, err := pack(input, output, meta, true)
	require.NoError(t, err)
	assert.Equal(t, format.COMPRESSION_GZIP, res.Header.Compression)

	f, err := reader.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, json.Number("8080"), f.Data["port"])
	assert.Equal(t, meta, f.Metadata)

	out := new(bytes.Buffer)
	require.NoError(t, inspect(out, logger.Discard(), output, inspectOptions{raw: true, data: true}))
	text := out.String()
	assert.Contains(t, text, "flags:       0x0029 (metadata, compressed, keywords)")
	assert.Contains(t, text, "compression: gzip (1)")
	assert.Contains(t, text, "package:     app 1.0.0")
	assert.Contains(t, text, "keywords:    web")
	assert.Contains(t, text, "Magic:")
	assert.Contains(t, text, `"port": 8080`)

	unpacked := filepath.Join(dir, "out.json")
	metaOut := filepath.Join(dir, "out.meta.yaml")
	require.NoError(t, unpack(output, unpacked, metaOut))

	doc, err := source.Load(unpacked)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":     "app",
		"port":     json.Number("8080"),
		"features": []any{"a", "b"},
	}, doc)

	back, err := loadPackage(metaOut)
	require.NoError(t, err)
	assert.Equal(t, meta, back)
}

func TestUnpackWithoutMetadata(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "plain.json", `{"a": 1}`)
	output := filepath.Join(dir, "plain.pnt")
	_, err := pack(input, output, nil, false)
	require.NoError(t, err)

	assert.NoError(t, unpack(output, filepath.Join(dir, "plain.yaml"), ""))
	assert.Error(t, unpack(output, filepath.Join(dir, "again.yaml"), filepath.Join(dir, "meta.yaml")))
}

func TestPackRejectsNonMapping(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "list.json", `[1, 2, 3]`)
	_, err := pack(input, filepath.Join(dir, "list.pnt"), nil, false)
	assert.ErrorIs(t, err, source.ErrNotAMapping)
	assert.NoFileExists(t, filepath.Join(dir, "list.pnt"))
}

func TestInspectDamaged(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "c.json", `{"name": "c"}`)
	output := filepath.Join(dir, "c.pnt")
	_, err := pack(input, output, nil, false)
	require.NoError(t, err)

	image, err := os.ReadFile(output)
	require.NoError(t, err)
	image[len(image)-6] ^= 0xff
	require.NoError(t, os.WriteFile(output, image, 0644))

	out := new(bytes.Buffer)
	err = inspect(out, logger.Discard(), output, inspectOptions{})
	var fe *format.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, format.SECTION_DATA, fe.Section)
	assert.Contains(t, out.String(), `magic:       "TUSK"`)

	short := writeFile(t, dir, "short.pnt", "TUSK")
	assert.Error(t, inspect(new(bytes.Buffer), logger.Discard(), short, inspectOptions{}))
}

func TestFlagNames(t *testing.T) {
	assert.Equal(t, "(none)", flagNames(format.FLAG_NONE))
	assert.Equal(t, "(metadata, dependencies)", flagNames(format.FLAG_HAS_METADATA|format.FLAG_HAS_DEPENDENCIES))
	assert.Equal(t, "(encryption, reserved)", flagNames(format.FLAG_HAS_ENCRYPTION|1<<2))
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "c.json", `{"name": "c", "version": "1.0.0"}`)
	_, err := pack(input, filepath.Join(dir, "c.pnt"), &metadata.Package{Name: "c", Version: "1.0.0"}, false)
	require.NoError(t, err)
	outDir := filepath.Join(dir, "reports")

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"validate", "--log-level", "error", "-o", outDir, dir})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "result: PASSED")
	assert.FileExists(t, filepath.Join(outDir, "validation_results.json"))
	assert.FileExists(t, filepath.Join(outDir, "validation_summary.txt"))

	writeFile(t, dir, "bad.pnt", "TUSK not really")
	out.Reset()
	rootCmd.SetArgs([]string{"validate", "--log-level", "error", "-o", "", dir})
	assert.ErrorIs(t, rootCmd.Execute(), ErrChecksFailed)
	assert.Contains(t, out.String(), "FAIL "+filepath.Join(dir, "bad.pnt"))
	assert.Contains(t, out.String(), "result: FAILED")
}

func TestProfileFlag(t *testing.T) {
	dir := t.TempDir()
	prof := writeFile(t, dir, "strict.yaml", "validation:\n  max_file_size: 40\nlogging:\n  level: error\n")
	input := writeFile(t, dir, "c.json", `{"name": "a name long enough to push the file past forty bytes"}`)
	path := filepath.Join(dir, "c.pnt")
	_, err := pack(input, path, nil, false)
	require.NoError(t, err)

	t.Cleanup(func() {
		rootCmd.PersistentFlags().Set("profile", "")
		settings = profile.Default()
	})

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"validate", "--profile", prof, path})
	assert.ErrorIs(t, rootCmd.Execute(), ErrChecksFailed)
	assert.Equal(t, int64(40), settings.Validation.MaxFileSize)
	assert.Equal(t, "error", settings.Logging.Level)

	rootCmd.SetArgs([]string{"validate", "--profile", filepath.Join(dir, "missing.yaml"), path})
	err = rootCmd.Execute()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrChecksFailed)
}

func TestNewLogger(t *testing.T) {
	for _, f := range []string{"", "text", "json"} {
		l, err := newLogger(profile.Logging{Level: "debug", Format: f})
		require.NoError(t, err, f)
		assert.NotNil(t, l)
	}
	_, err := newLogger(profile.Logging{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestGenDocs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	require.NoError(t, GenDocs(dir))
	for _, name := range []string{"pntool.md", "pntool_validate.md", "pntool_pack.md", "pntool_bench.md"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}
