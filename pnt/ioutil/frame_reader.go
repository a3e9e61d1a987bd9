package ioutil

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

// Frames up to this size are read into a buffer allocated up front. Larger
// declared lengths are copied incrementally so a corrupt length field cannot
// force a huge allocation before the short read is noticed.
const directReadLimit = 1 << 16

// FrameReader reads the fixed-width fields and length-prefixed frames a .pnt
// file is made of, keeping track of the absolute offset.
type FrameReader struct {
	reader *bufio.Reader
	offset int64
}

func NewFrameReader(reader io.Reader) *FrameReader {
	return &FrameReader{
		reader: bufio.NewReaderSize(reader, directReadLimit),
	}
}

// Offset is the number of bytes consumed so far.
func (fr *FrameReader) Offset() int64 {
	return fr.offset
}

// ReadFull reads exactly n bytes. A short read returns the bytes that were
// available together with io.ErrUnexpectedEOF (or io.EOF if nothing was read).
func (fr *FrameReader) ReadFull(n int64) ([]byte, error) {
	if n <= directReadLimit {
		buf := make([]byte, n)
		read, err := io.ReadFull(fr.reader, buf)
		fr.offset += int64(read)
		return buf[:read], err
	}

	buffer := new(bytes.Buffer)
	read, err := io.CopyN(buffer, fr.reader, n)
	fr.offset += read
	if err == io.EOF {
		if read == 0 {
			return nil, io.EOF
		}
		return buffer.Bytes(), io.ErrUnexpectedEOF
	}
	return buffer.Bytes(), err
}

func (fr *FrameReader) ReadUint32() (uint32, error) {
	b, err := fr.ReadFull(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadFrame reads a u32 length, that many bytes, and the u32 trailer that
// follows them.
func (fr *FrameReader) ReadFrame() (blob []byte, trailer uint32, err error) {
	length, err := fr.ReadUint32()
	if err != nil {
		return nil, 0, err
	}
	if blob, err = fr.ReadFull(int64(length)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return blob, 0, err
	}
	if trailer, err = fr.ReadUint32(); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return blob, 0, err
	}
	return blob, trailer, nil
}

// Remaining drains the reader and reports how many bytes were left.
func (fr *FrameReader) Remaining() (int64, error) {
	n, err := io.Copy(io.Discard, fr.reader)
	fr.offset += n
	return n, err
}
