package writer

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/format/metadata"
	"github.com/indrora/tusk/pnt/format/payload"
	"github.com/indrora/tusk/pnt/ioutil"
)

const DEFAULT_MODE os.FileMode = 0644

var (
	ErrMisalignedWrite = errors.New("unexpected number of bytes written")
)

type options struct {
	compression format.Compression
	timestamp   time.Time
	mode        os.FileMode
}

type Option func(*options)

// WithCompression selects the data section compression. The default is none.
func WithCompression(c format.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithTimestamp fixes the header timestamp instead of using the current time.
func WithTimestamp(t time.Time) Option {
	return func(o *options) {
		o.timestamp = t
	}
}

// WithMode sets the permissions of the published file.
func WithMode(mode os.FileMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

func buildOptions(opts []Option) options {
	o := options{
		compression: format.COMPRESSION_NONE,
		mode:        DEFAULT_MODE,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timestamp.IsZero() {
		o.timestamp = time.Now()
	}
	return o
}

// Result describes what was written.
type Result struct {
	Header format.Header
	// Canonical JSON of the data object, before compression.
	Raw []byte
	// Size of the canonical JSON.
	RawSize int64
	// Size of the stored data blob.
	DataSize int64
	// Size of the metadata blob, 0 when there is none.
	MetadataSize int64
	FileSize     int64
}

// Ratio is the space saved by compression relative to the raw JSON, in
// percent. Negative when the file is larger than the JSON it holds.
func (r *Result) Ratio() float64 {
	if r.RawSize == 0 {
		return 0
	}
	return (1 - float64(r.FileSize)/float64(r.RawSize)) * 100
}

// Encode writes a complete .pnt image of data and meta to w. meta may be nil.
func Encode(w io.Writer, data any, meta *metadata.Package, opts ...Option) (*Result, error) {
	o := buildOptions(opts)

	enc, err := payload.Encode(data, o.compression)
	if err != nil {
		return nil, err
	}
	return encode(w, enc, meta, o)
}

// EncodeRaw is Encode for a document that is already canonical JSON, such
// as the RawData of a file that was just read.
func EncodeRaw(w io.Writer, raw []byte, meta *metadata.Package, opts ...Option) (*Result, error) {
	o := buildOptions(opts)

	if _, err := payload.Parse(raw); err != nil {
		return nil, err
	}
	enc, err := payload.EncodeRaw(raw, o.compression)
	if err != nil {
		return nil, err
	}
	return encode(w, enc, meta, o)
}

func encode(w io.Writer, enc *payload.Encoded, meta *metadata.Package, o options) (*Result, error) {
	var (
		metaBlob []byte
		metaSum  uint32
		flags    = format.FLAG_NONE
		err      error
		hasMeta  = meta != nil
	)

	if hasMeta {
		if metaBlob, metaSum, flags, err = metadata.Encode(meta); err != nil {
			return nil, err
		}
	}
	if o.compression != format.COMPRESSION_NONE {
		flags |= format.FLAG_IS_COMPRESSED
	}

	header := format.NewHeader(flags, o.compression, uint64(len(enc.Blob)), o.timestamp)
	hb := header.Bytes()

	fw := ioutil.NewFrameWriter(w)
	n, err := fw.Write(hb[:])
	if err != nil {
		return nil, errors.Wrap(err, "failed to write header")
	}
	if n != format.HEADER_SIZE {
		return nil, ErrMisalignedWrite
	}

	if hasMeta {
		if err = fw.WriteFrame(metaBlob, metaSum); err != nil {
			return nil, errors.Wrap(err, "failed to write metadata section")
		}
	}
	if err = fw.WriteFrame(enc.Blob, enc.Checksum); err != nil {
		return nil, errors.Wrap(err, "failed to write data section")
	}

	return &Result{
		Header:       header,
		Raw:          enc.Raw,
		RawSize:      int64(len(enc.Raw)),
		DataSize:     int64(len(enc.Blob)),
		MetadataSize: int64(len(metaBlob)),
		FileSize:     fw.Written(),
	}, nil
}

// WriteFile encodes data and meta and publishes them at path. The file is
// assembled in memory and written to a temporary sibling which is renamed
// over path, so path either keeps its previous content or holds the whole
// new file.
func WriteFile(path string, data any, meta *metadata.Package, opts ...Option) (*Result, error) {
	buf := new(bytes.Buffer)
	res, err := Encode(buf, data, meta, opts...)
	if err != nil {
		return nil, err
	}
	if err = publish(path, buf.Bytes(), buildOptions(opts).mode); err != nil {
		return nil, err
	}
	return res, nil
}

// WriteRawFile is WriteFile for canonical JSON bytes.
func WriteRawFile(path string, raw []byte, meta *metadata.Package, opts ...Option) (*Result, error) {
	buf := new(bytes.Buffer)
	res, err := EncodeRaw(buf, raw, meta, opts...)
	if err != nil {
		return nil, err
	}
	if err = publish(path, buf.Bytes(), buildOptions(opts).mode); err != nil {
		return nil, err
	}
	return res, nil
}

func publish(path string, image []byte, mode os.FileMode) error {
	if err := ioutil.WriteFileAtomic(path, image, mode); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
