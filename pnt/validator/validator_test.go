package validator

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/format/metadata"
	"github.com/indrora/tusk/pnt/format/payload"
	"github.com/indrora/tusk/pnt/ioutil"
	"github.com/indrora/tusk/pnt/writer"
)

func sampleData(name string) map[string]any {
	return map[string]any{
		"name":    name,
		"version": "1.0.0",
		"config":  map[string]any{"debug": true, "port": 8080},
	}
}

func sampleMeta(name string) *metadata.Package {
	return &metadata.Package{
		Name:    name,
		Version: "1.0.0",
		Author:  "ops",
		License: "MIT",
		Dependencies: []metadata.Dependency{
			{Name: "base", Version: "1.0.0", Type: metadata.DEPENDENCY_RUNTIME},
		},
		Keywords: []string{"test"},
	}
}

func encode(t *testing.T, data any, meta *metadata.Package, opts ...writer.Option) []byte {
	t.Helper()
	buffer := new(bytes.Buffer)
	_, err := writer.Encode(buffer, data, meta, opts...)
	require.NoError(t, err)
	return buffer.Bytes()
}

func put(t *testing.T, dir, name string, image []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, image, 0644))
	return path
}

// rewriteHeader applies edit to the header of image and re-seals its checksum.
func rewriteHeader(t *testing.T, image []byte, edit func(h *format.Header)) []byte {
	t.Helper()
	h, ok := format.UnpackHeader(image)
	require.True(t, ok)
	edit(&h)
	hb := h.Bytes()
	out := append([]byte(nil), image...)
	copy(out, hb[:])
	return out
}

func messages(issues []Issue) string {
	var parts []string
	for _, i := range issues {
		parts = append(parts, i.String())
	}
	return strings.Join(parts, "\n")
}

func TestValidFile(t *testing.T) {
	dir := t.TempDir()
	path := put(t, dir, "good.pnt", encode(t, sampleData("svc"), sampleMeta("svc"), writer.WithCompression(format.COMPRESSION_GZIP)))

	out := New(DefaultLimits()).ValidateFile(path)
	require.True(t, out.Valid, spew.Sdump(out))
	assert.Equal(t, STAGE_VALID, out.Stage)
	assert.Equal(t, STAGE_PERFORMANCE, out.Reached)
	assert.Empty(t, out.Errors)
	assert.Empty(t, out.Warnings, messages(out.Warnings))
	require.NotNil(t, out.Metadata)
	assert.Equal(t, "svc", out.Metadata.Name)
	require.NotNil(t, out.Header)
	assert.True(t, out.Header.Compressed())
}

func TestDirectoryCounts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pnt", "b.pnt", "c.pnt"} {
		put(t, dir, name, encode(t, sampleData(name), nil))
	}

	corrupt := encode(t, sampleData("d"), nil)
	corrupt[len(corrupt)-10] ^= 0xff
	put(t, dir, "d.pnt", corrupt)
	put(t, dir, "e.pnt", encode(t, sampleData("e"), nil)[:20])
	// not a .pnt file, so not picked up
	put(t, dir, "notes.txt", []byte("hello"))

	report, err := New(DefaultLimits()).ValidatePath(dir, false)
	require.NoError(t, err)

	assert.Equal(t, 5, report.FilesChecked)
	assert.Equal(t, 3, report.FilesValid)
	assert.Equal(t, 2, report.FilesInvalid)
	assert.Greater(t, report.TotalErrors, 0)
	assert.False(t, report.Passed())

	var paths []string
	for _, o := range report.Files {
		paths = append(paths, filepath.Base(o.Path))
	}
	assert.Equal(t, []string{"a.pnt", "b.pnt", "c.pnt", "d.pnt", "e.pnt"}, paths)

	assert.Equal(t, STAGE_DATA, report.Files[3].Reached)
	assert.Equal(t, STAGE_HEADER, report.Files[4].Reached)

	summary := report.Summary()
	assert.Contains(t, summary, "files checked:  5")
	assert.Contains(t, summary, "FAIL "+report.Files[3].Path)
	assert.Contains(t, summary, "result: FAILED")
}

func TestRecursive(t *testing.T) {
	dir := t.TempDir()
	put(t, dir, "top.pnt", encode(t, sampleData("top"), nil))
	put(t, dir, "nested/deeper/inner.pnt", encode(t, sampleData("inner"), nil))

	v := New(DefaultLimits())
	flat, err := v.ValidatePath(dir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, flat.FilesChecked)

	deep, err := v.ValidatePath(dir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, deep.FilesChecked)
	assert.True(t, deep.Passed())
}

func TestEmptyDirectory(t *testing.T) {
	report, err := New(DefaultLimits()).ValidatePath(t.TempDir(), true)
	require.NoError(t, err)
	assert.Zero(t, report.FilesChecked)
	assert.True(t, report.Passed())
	assert.Contains(t, report.Summary(), "no .pnt files found")
}

func TestIdempotent(t *testing.T) {
	dir := t.TempDir()
	meta := sampleMeta("other-name")
	meta.Version = "not a version!"
	path := put(t, dir, "warn.pnt", encode(t, sampleData("svc"), meta))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	v := New(DefaultLimits())
	first := v.ValidateFile(path)
	second := v.ValidateFile(path)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first.Warnings)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "validation modified the file")
}

func TestErrors(t *testing.T) {
	plain := encode(t, sampleData("svc"), nil)

	zeroMeta := func() []byte {
		buffer := new(bytes.Buffer)
		h := format.NewHeader(format.FLAG_HAS_METADATA, format.COMPRESSION_NONE, 2, time.Unix(0, 0))
		hb := h.Bytes()
		buffer.Write(hb[:])
		fw := ioutil.NewFrameWriter(buffer)
		require.NoError(t, fw.WriteFrame(nil, 0))
		require.NoError(t, fw.WriteFrame([]byte("{}"), payload.Checksum([]byte("{}"))))
		return buffer.Bytes()
	}

	emptyKeyword := sampleMeta("svc")
	emptyKeyword.Keywords = []string{"ok", ""}
	emptyDep := sampleMeta("svc")
	emptyDep.Dependencies = []metadata.Dependency{{Name: "", Version: "1"}}

	testCases := []struct {
		name    string
		image   []byte
		stage   Stage
		message string
	}{
		{name: "empty file", image: []byte{}, stage: STAGE_BASICS, message: "file is empty"},
		{name: "truncated header", image: plain[:20], stage: STAGE_HEADER, message: "shorter than the 32 byte header"},
		{name: "bad magic", image: append([]byte("JUNK"), plain[4:]...), stage: STAGE_HEADER, message: "invalid magic"},
		{
			name:    "reserved byte",
			image:   rewriteHeader(t, plain, func(h *format.Header) { h.Reserved2 = 1 }),
			stage:   STAGE_HEADER,
			message: "reserved field non-zero",
		},
		{
			name:    "encryption flag",
			image:   rewriteHeader(t, plain, func(h *format.Header) { h.Flags |= format.FLAG_HAS_ENCRYPTION }),
			stage:   STAGE_HEADER,
			message: "encrypted payloads are not supported",
		},
		{name: "zero length metadata", image: zeroMeta(), stage: STAGE_METADATA, message: "metadata section is empty"},
		{name: "empty keyword", image: encode(t, sampleData("svc"), emptyKeyword), stage: STAGE_METADATA, message: "keyword 1 is empty"},
		{name: "empty dependency name", image: encode(t, sampleData("svc"), emptyDep), stage: STAGE_METADATA, message: "dependency 0 has an empty name"},
		{name: "trailing data", image: append(append([]byte(nil), plain...), 1, 2, 3), stage: STAGE_DATA, message: "3 bytes of trailing data"},
		{name: "truncated data", image: plain[:len(plain)-6], stage: STAGE_DATA, message: "only"},
		{
			name:    "compressed flag without algorithm",
			image:   rewriteHeader(t, plain, func(h *format.Header) { h.Flags |= format.FLAG_IS_COMPRESSED }),
			stage:   STAGE_DATA,
			message: "invalid compression algorithm",
		},
		{
			name: "reserved compression",
			image: rewriteHeader(t, plain, func(h *format.Header) {
				h.Flags |= format.FLAG_IS_COMPRESSED
				h.Compression = format.COMPRESSION_RESERVED_2
			}),
			stage:   STAGE_CROSS_REFERENCE,
			message: "reader rejected the file",
		},
	}

	v := New(DefaultLimits())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := put(t, t.TempDir(), "bad.pnt", tc.image)
			out := v.ValidateFile(path)
			assert.False(t, out.Valid)
			assert.Equal(t, STAGE_INVALID, out.Stage)
			assert.Equal(t, tc.stage, out.Reached, messages(out.Errors))
			require.NotEmpty(t, out.Errors)
			assert.Contains(t, messages(out.Errors), tc.message)
		})
	}
}

func TestMissingFile(t *testing.T) {
	report, err := New(DefaultLimits()).ValidatePath(filepath.Join(t.TempDir(), "gone.pnt"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesInvalid)
	assert.Equal(t, "[basics] file does not exist", report.Files[0].Errors[0].String())
}

func TestWarnings(t *testing.T) {
	plain := encode(t, sampleData("svc"), sampleMeta("svc"))

	oddDep := sampleMeta("svc")
	oddDep.Dependencies[0].Type = 7
	mismatch := sampleMeta("svc")
	mismatch.Name = "something-else"
	longName := sampleMeta(strings.Repeat("n", 101))
	badVersion := sampleMeta("svc")
	badVersion.Version = "latest-and-greatest"
	manyKeywords := sampleMeta("svc")
	for i := 0; i < 101; i++ {
		manyKeywords.Keywords = append(manyKeywords.Keywords, "kw")
	}

	testCases := []struct {
		name    string
		file    string
		image   []byte
		message string
	}{
		{name: "extension", file: "config.bin", image: plain, message: "does not end in .pnt"},
		{name: "unknown dependency type", image: encode(t, sampleData("svc"), oddDep), message: "unknown type 7"},
		{name: "name mismatch", image: encode(t, sampleData("svc"), mismatch), message: `metadata name "something-else" does not match data name "svc"`},
		{name: "long package name", image: encode(t, sampleData(strings.Repeat("n", 101)), longName), message: "101 characters long"},
		{name: "version pattern", image: encode(t, map[string]any{"name": "svc"}, badVersion), message: "does not follow a recognized pattern"},
		{name: "too many keywords", image: encode(t, sampleData("svc"), manyKeywords), message: "102 keywords"},
		{name: "tiny file", image: encode(t, map[string]any{}, nil), message: "file is only 42 bytes"},
		{name: "non string name", image: encode(t, map[string]any{"name": 12}, nil), message: `data field "name" is not a string`},
		{
			name: "algorithm without flag",
			image: rewriteHeader(t, plain, func(h *format.Header) {
				h.Compression = format.COMPRESSION_GZIP
			}),
			message: "compression algorithm 1 is set but the compressed flag is not",
		},
		{
			name: "data length disagrees",
			image: rewriteHeader(t, plain, func(h *format.Header) {
				h.DataLength = 1
			}),
			message: "header data_length 1 differs",
		},
	}

	v := New(DefaultLimits())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			name := tc.file
			if name == "" {
				name = "warn.pnt"
			}
			path := put(t, t.TempDir(), name, tc.image)
			out := v.ValidateFile(path)
			require.True(t, out.Valid, messages(out.Errors))
			assert.Contains(t, messages(out.Warnings), tc.message)
		})
	}
}

func TestLimitsAreHonoured(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxFileSize = 64

	path := put(t, t.TempDir(), "big.pnt", encode(t, sampleData("svc"), sampleMeta("svc")))
	out := New(limits).ValidateFile(path)
	assert.False(t, out.Valid)
	assert.Equal(t, STAGE_BASICS, out.Reached)

	// the default limits are untouched
	assert.Equal(t, int64(1<<30), DefaultLimits().MaxFileSize)
	assert.True(t, New(DefaultLimits()).ValidateFile(path).Valid)
}
