package ioutil

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Gzip compresses data into a single gzip member.
func Gzip(data []byte, level int) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw, err := gzip.NewWriterLevel(buf, level)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gzip writer")
	}
	if _, err = zw.Write(data); err != nil {
		return nil, errors.Wrap(err, "failed to compress")
	}
	if err = zw.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finish gzip stream")
	}
	return buf.Bytes(), nil
}

// Gunzip inflates a gzip stream. At most limit bytes of output are accepted
// (limit <= 0 means no limit) so a hostile stream cannot exhaust memory.
func Gunzip(data []byte, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var src io.Reader = zr
	if limit > 0 {
		src = io.LimitReader(zr, limit+1)
	}
	out := new(bytes.Buffer)
	if _, err = io.Copy(out, src); err != nil {
		return nil, err
	}
	if limit > 0 && int64(out.Len()) > limit {
		return nil, errors.Errorf("decompressed size exceeds %d bytes", limit)
	}
	return out.Bytes(), nil
}
