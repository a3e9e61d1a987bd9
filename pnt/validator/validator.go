// Package validator certifies existing .pnt files. Each file is taken
// through a fixed series of stages; the first stage that records an error
// ends the file as invalid. Warnings never fail a file.
package validator

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-version"

	"github.com/indrora/tusk/internal/logger"
	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/format/metadata"
	"github.com/indrora/tusk/pnt/format/payload"
	"github.com/indrora/tusk/pnt/reader"
)

type Stage string

const (
	STAGE_START           Stage = "start"
	STAGE_BASICS          Stage = "basics"
	STAGE_HEADER          Stage = "header"
	STAGE_METADATA        Stage = "metadata"
	STAGE_DATA            Stage = "data"
	STAGE_CROSS_REFERENCE Stage = "cross-reference"
	STAGE_PERFORMANCE     Stage = "performance"
	STAGE_VALID           Stage = "valid"
	STAGE_INVALID         Stage = "invalid"
)

type Issue struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s", i.Stage, i.Message)
}

// Outcome is the verdict on one file.
type Outcome struct {
	Path string `json:"path"`
	// Terminal state, STAGE_VALID or STAGE_INVALID.
	Stage Stage `json:"stage"`
	// Last stage that ran; for an invalid file, the one that failed.
	Reached  Stage             `json:"reached"`
	Valid    bool              `json:"valid"`
	Errors   []Issue           `json:"errors"`
	Warnings []Issue           `json:"warnings"`
	Header   *format.Header    `json:"header,omitempty"`
	Metadata *metadata.Package `json:"metadata,omitempty"`
	Size     int64             `json:"size"`
}

type Option func(*Validator)

func WithLogger(l logger.Logger) Option {
	return func(v *Validator) {
		v.log = l
	}
}

// Validator is safe for concurrent use; it holds nothing but its limits.
type Validator struct {
	limits Limits
	log    logger.Logger
}

func New(limits Limits, opts ...Option) *Validator {
	v := &Validator{
		limits: limits,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) Limits() Limits {
	return v.limits
}

// fileCheck carries the state of one file through the stages.
type fileCheck struct {
	limits Limits
	out    *Outcome

	image  []byte
	header format.Header
	// offset of the first byte after the metadata section
	dataStart int
	// decompressed payload; nil when it could not be examined
	raw  []byte
	data map[string]any
}

func (c *fileCheck) fail(stage Stage, f string, args ...any) bool {
	c.out.Errors = append(c.out.Errors, Issue{Stage: stage, Message: fmt.Sprintf(f, args...)})
	return false
}

func (c *fileCheck) warn(stage Stage, f string, args ...any) {
	c.out.Warnings = append(c.out.Warnings, Issue{Stage: stage, Message: fmt.Sprintf(f, args...)})
}

var stages = []struct {
	stage Stage
	run   func(*fileCheck) bool
}{
	{STAGE_BASICS, (*fileCheck).checkBasics},
	{STAGE_HEADER, (*fileCheck).checkHeader},
	{STAGE_METADATA, (*fileCheck).checkMetadata},
	{STAGE_DATA, (*fileCheck).checkData},
	{STAGE_CROSS_REFERENCE, (*fileCheck).checkCrossReference},
	{STAGE_PERFORMANCE, (*fileCheck).checkPerformance},
}

// ValidateFile runs every stage against the file at path. It never modifies
// the file and gives the same answer for the same bytes.
func (v *Validator) ValidateFile(path string) *Outcome {
	out := &Outcome{
		Path:     path,
		Stage:    STAGE_START,
		Reached:  STAGE_START,
		Errors:   []Issue{},
		Warnings: []Issue{},
	}
	c := &fileCheck{limits: v.limits, out: out}
	log := v.log.With("path", path)

	for _, s := range stages {
		out.Reached = s.stage
		if !s.run(c) {
			out.Stage = STAGE_INVALID
			log.Info("file invalid", "stage", s.stage, "errors", len(out.Errors))
			return out
		}
		log.Debug("stage passed", "stage", s.stage)
	}
	out.Stage = STAGE_VALID
	out.Valid = true
	log.Info("file valid", "warnings", len(out.Warnings))
	return out
}

func (c *fileCheck) checkBasics() bool {
	path := c.out.Path
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c.fail(STAGE_BASICS, "file does not exist")
		}
		return c.fail(STAGE_BASICS, "cannot stat file: %v", err)
	}
	if !st.Mode().IsRegular() {
		return c.fail(STAGE_BASICS, "not a regular file")
	}
	c.out.Size = st.Size()
	if st.Size() == 0 {
		return c.fail(STAGE_BASICS, "file is empty")
	}
	if st.Size() > c.limits.MaxFileSize {
		return c.fail(STAGE_BASICS, "file is %s, above the %s limit",
			humanize.IBytes(uint64(st.Size())), humanize.IBytes(uint64(c.limits.MaxFileSize)))
	}
	if filepath.Ext(path) != format.FILE_EXT {
		c.warn(STAGE_BASICS, "file name does not end in %s", format.FILE_EXT)
	}

	image, err := os.ReadFile(path)
	if err != nil {
		return c.fail(STAGE_BASICS, "file is not readable: %v", err)
	}
	c.image = image
	c.out.Size = int64(len(image))
	return true
}

func (c *fileCheck) checkHeader() bool {
	if len(c.image) < format.HEADER_SIZE {
		return c.fail(STAGE_HEADER, "file is %d bytes, shorter than the %d byte header", len(c.image), format.HEADER_SIZE)
	}
	h, err := format.DecodeHeader(c.image[:format.HEADER_SIZE])
	if err != nil {
		return c.fail(STAGE_HEADER, "%v", err)
	}
	c.header = h
	c.out.Header = &h

	if h.Encrypted() {
		return c.fail(STAGE_HEADER, "encrypted payloads are not supported (flag %t, algorithm %d)",
			h.Flags.Has(format.FLAG_HAS_ENCRYPTION), h.Encryption)
	}
	if h.Compressed() && h.Compression == format.COMPRESSION_NONE {
		c.warn(STAGE_HEADER, "compressed flag is set but the compression algorithm is none")
	}
	if !h.Compressed() && h.Compression != format.COMPRESSION_NONE {
		c.warn(STAGE_HEADER, "compression algorithm %d is set but the compressed flag is not", h.Compression)
	}
	if !h.Flags.Has(format.FLAG_HAS_METADATA) {
		if h.Flags.Has(format.FLAG_HAS_DEPENDENCIES) {
			c.warn(STAGE_HEADER, "dependency flag is set without the metadata flag")
		}
		if h.Flags.Has(format.FLAG_HAS_KEYWORDS) {
			c.warn(STAGE_HEADER, "keyword flag is set without the metadata flag")
		}
	}
	c.dataStart = format.HEADER_SIZE
	return true
}

// section slices the length-prefixed section at off. It returns the blob,
// its trailer and the offset just past the trailer.
func (c *fileCheck) section(stage Stage, off int) (blob []byte, trailer uint32, next int, ok bool) {
	if len(c.image)-off < 4 {
		return nil, 0, 0, c.fail(stage, "%s length is truncated at offset %d", stage, off)
	}
	length := int64(binary.LittleEndian.Uint32(c.image[off:]))
	if int64(len(c.image)-off-4) < length+4 {
		return nil, 0, 0, c.fail(stage, "%s section declares %d bytes but only %d remain", stage, length, len(c.image)-off-4)
	}
	start := off + 4
	end := start + int(length)
	return c.image[start:end], binary.LittleEndian.Uint32(c.image[end:]), end + 4, true
}

func (c *fileCheck) checkMetadata() bool {
	if !c.header.Flags.Has(format.FLAG_HAS_METADATA) {
		return true
	}
	off := format.HEADER_SIZE
	if len(c.image)-off >= 4 {
		switch length := int64(binary.LittleEndian.Uint32(c.image[off:])); {
		case length == 0:
			return c.fail(STAGE_METADATA, "metadata section is empty but the metadata flag is set")
		case length > c.limits.MaxMetadataSize:
			return c.fail(STAGE_METADATA, "metadata section is %s, above the %s limit",
				humanize.IBytes(uint64(length)), humanize.IBytes(uint64(c.limits.MaxMetadataSize)))
		}
	}
	blob, sum, next, ok := c.section(STAGE_METADATA, off)
	if !ok {
		return false
	}
	c.dataStart = next

	pkg, err := metadata.Decode(blob, sum, c.header.Flags)
	if err != nil {
		return c.fail(STAGE_METADATA, "%v", err)
	}
	c.out.Metadata = pkg

	valid := true
	for i, dep := range pkg.Dependencies {
		if dep.Name == "" {
			valid = c.fail(STAGE_METADATA, "dependency %d has an empty name", i)
			continue
		}
		if n := utf8.RuneCountInString(dep.Name); n > c.limits.MaxDependencyNameLength {
			c.warn(STAGE_METADATA, "dependency name %q is %d characters long", dep.Name, n)
		}
		if !dep.Type.Valid() {
			c.warn(STAGE_METADATA, "dependency %q has unknown type %d", dep.Name, dep.Type)
		}
	}
	for i, kw := range pkg.Keywords {
		if kw == "" {
			valid = c.fail(STAGE_METADATA, "keyword %d is empty", i)
			continue
		}
		if n := utf8.RuneCountInString(kw); n > c.limits.MaxKeywordLength {
			c.warn(STAGE_METADATA, "keyword %q is %d characters long", kw, n)
		}
	}
	if !valid {
		return false
	}

	if n := len(pkg.Dependencies); n > c.limits.MaxDependencies {
		c.warn(STAGE_METADATA, "%d dependencies, more than %d", n, c.limits.MaxDependencies)
	}
	if n := len(pkg.Keywords); n > c.limits.MaxKeywords {
		c.warn(STAGE_METADATA, "%d keywords, more than %d", n, c.limits.MaxKeywords)
	}
	if pkg.Name == "" {
		c.warn(STAGE_METADATA, "package name is empty")
	} else if n := utf8.RuneCountInString(pkg.Name); n > c.limits.MaxNameLength {
		c.warn(STAGE_METADATA, "package name is %d characters long, more than %d", n, c.limits.MaxNameLength)
	}
	if pkg.Version != "" {
		if _, err := version.NewVersion(pkg.Version); err != nil {
			c.warn(STAGE_METADATA, "version %q does not follow a recognized pattern", pkg.Version)
		}
	}
	return true
}

func (c *fileCheck) checkData() bool {
	off := c.dataStart
	if len(c.image)-off >= 4 {
		if length := binary.LittleEndian.Uint32(c.image[off:]); length == 0 {
			return c.fail(STAGE_DATA, "data section is empty")
		}
	}
	blob, sum, next, ok := c.section(STAGE_DATA, off)
	if !ok {
		return false
	}
	if left := len(c.image) - next; left > 0 {
		return c.fail(STAGE_DATA, "%d bytes of trailing data after the data section", left)
	}
	if n := int64(len(blob)); n > c.limits.DataWarnSize {
		c.warn(STAGE_DATA, "data section is %s", humanize.IBytes(uint64(n)))
	}
	if c.header.DataLength != uint64(len(blob)) {
		c.warn(STAGE_DATA, "header data_length %d differs from the data section length %d", c.header.DataLength, len(blob))
	}

	if got := payload.Checksum(blob); got != sum {
		return c.fail(STAGE_DATA, "data checksum mismatch: stored %08x, computed %08x", sum, got)
	}

	h := c.header
	if h.Compressed() && h.Compression != format.COMPRESSION_NONE && h.Compression != format.COMPRESSION_GZIP {
		c.warn(STAGE_DATA, "compression algorithm %d not validated", h.Compression)
		return true
	}
	raw, err := payload.Inflate(blob, h)
	if err != nil {
		return c.fail(STAGE_DATA, "%v", err)
	}
	data, err := payload.Parse(raw)
	if err != nil {
		return c.fail(STAGE_DATA, "%v", err)
	}
	c.raw, c.data = raw, data

	if n := int64(len(raw)); n > c.limits.JSONWarnSize {
		c.warn(STAGE_DATA, "decoded JSON is %s", humanize.IBytes(uint64(n)))
	}
	for _, field := range []string{"name", "version"} {
		if v, ok := data[field]; ok {
			if _, isString := v.(string); !isString {
				c.warn(STAGE_DATA, "data field %q is not a string", field)
			}
		}
	}
	return true
}

func (c *fileCheck) checkCrossReference() bool {
	file, err := reader.Parse(c.image)
	if err != nil {
		return c.fail(STAGE_CROSS_REFERENCE, "reader rejected the file: %v", err)
	}
	if c.raw != nil && !bytes.Equal(c.raw, file.RawData) {
		return c.fail(STAGE_CROSS_REFERENCE, "reader returned different data than the section holds")
	}
	if file.Metadata == nil {
		return true
	}
	for _, pair := range []struct{ field, meta string }{
		{"name", file.Metadata.Name},
		{"version", file.Metadata.Version},
	} {
		got, ok := file.Data[pair.field].(string)
		if ok && pair.meta != "" && got != pair.meta {
			c.warn(STAGE_CROSS_REFERENCE, "metadata %s %q does not match data %s %q", pair.field, pair.meta, pair.field, got)
		}
	}
	return true
}

func (c *fileCheck) checkPerformance() bool {
	size := c.out.Size
	if size > c.limits.LargeFileWarnSize {
		c.warn(STAGE_PERFORMANCE, "file is %s; loading it may be slow", humanize.IBytes(uint64(size)))
	}
	if size < c.limits.SmallFileWarnSize {
		c.warn(STAGE_PERFORMANCE, "file is only %d bytes", size)
	}
	if !c.header.Compressed() && int64(len(c.raw)) > c.limits.CompressHintSize {
		c.warn(STAGE_PERFORMANCE, "%s of uncompressed JSON; gzip would shrink it", humanize.IBytes(uint64(len(c.raw))))
	}
	return true
}
