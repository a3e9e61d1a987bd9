package ioutil

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

var (
	ErrFrameTooLarge = errors.New("frame exceeds 4 GiB")
)

// FrameWriter is the write half of FrameReader.
type FrameWriter struct {
	writer  io.Writer
	written int64
}

func NewFrameWriter(destination io.Writer) *FrameWriter {
	return &FrameWriter{
		writer: destination,
	}
}

func (k *FrameWriter) Write(p []byte) (n int, err error) {
	written, err := k.writer.Write(p)
	k.written += int64(written)
	return written, err
}

// Written is the number of bytes handed to the destination so far.
func (k *FrameWriter) Written() int64 {
	return k.written
}

func (k *FrameWriter) WriteUint32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := k.Write(b[:])
	return err
}

// WriteFrame writes len(blob) as a u32, the blob, then the trailer.
func (k *FrameWriter) WriteFrame(blob []byte, trailer uint32) error {
	if uint64(len(blob)) > math.MaxUint32 {
		return ErrFrameTooLarge
	}
	if err := k.WriteUint32(uint32(len(blob))); err != nil {
		return errors.Wrap(err, "failed to write frame length")
	}
	if _, err := k.Write(blob); err != nil {
		return errors.Wrap(err, "failed to write frame body")
	}
	if err := k.WriteUint32(trailer); err != nil {
		return errors.Wrap(err, "failed to write frame trailer")
	}
	return nil
}
