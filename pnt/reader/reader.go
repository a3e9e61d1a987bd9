package reader

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/format/metadata"
	"github.com/indrora/tusk/pnt/format/payload"
	"github.com/indrora/tusk/pnt/ioutil"
)

// The reader is much simpler than the writer: header, metadata if the
// header says so, data, then nothing.

type File struct {
	Header   format.Header
	Metadata *metadata.Package
	Data     map[string]any
	// Decompressed JSON exactly as stored.
	RawData []byte
	// Total bytes consumed.
	Size int64
}

// Name returns the package name from the metadata, falling back to the
// "name" field of the data object.
func (f *File) Name() string {
	if f.Metadata != nil && f.Metadata.Name != "" {
		return f.Metadata.Name
	}
	if s, ok := f.Data["name"].(string); ok {
		return s
	}
	return ""
}

// ReadFile opens and decodes the file at path.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer fh.Close()

	return Decode(fh)
}

// Parse decodes a file image held in memory.
func Parse(b []byte) (*File, error) {
	return Decode(bytes.NewReader(b))
}

// Decode reads one complete file from r. The first structural problem is
// returned as a *format.FormatError; anything else is an I/O error.
func Decode(r io.Reader) (*File, error) {
	fr := ioutil.NewFrameReader(r)

	hb, err := fr.ReadFull(format.HEADER_SIZE)
	if err != nil && !isShort(err) {
		return nil, errors.Wrap(err, "failed to read header")
	}
	header, err := format.DecodeHeader(hb)
	if err != nil {
		return nil, err
	}

	file := &File{Header: header}

	if header.Flags.Has(format.FLAG_HAS_METADATA) {
		blob, sum, err := readSection(fr, format.SECTION_METADATA)
		if err != nil {
			return nil, err
		}
		if file.Metadata, err = metadata.Decode(blob, sum, header.Flags); err != nil {
			return nil, err
		}
	}

	blob, sum, err := readSection(fr, format.SECTION_DATA)
	if err != nil {
		return nil, err
	}
	decoded, err := payload.Decode(blob, sum, header)
	if err != nil {
		return nil, err
	}
	file.Data = decoded.Object
	file.RawData = decoded.Raw

	end := fr.Offset()
	left, err := fr.Remaining()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read past data section")
	}
	if left > 0 {
		return nil, format.Errorf(format.ErrTrailingData, format.SECTION_FILE, "%d bytes after the data section at offset %d", left, end)
	}
	file.Size = end
	return file, nil
}

func readSection(fr *ioutil.FrameReader, section format.Section) ([]byte, uint32, error) {
	start := fr.Offset()
	blob, sum, err := fr.ReadFrame()
	if err == nil {
		return blob, sum, nil
	}
	if isShort(err) {
		return nil, 0, format.Errorf(format.ErrTruncated, section, "section at offset %d ends after %d bytes", start, fr.Offset()-start)
	}
	return nil, 0, errors.Wrapf(err, "failed to read %s section", section)
}

func isShort(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
