package ioutil_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/indrora/tusk/pnt/ioutil"
)

func TestFrameRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		blob    []byte
		trailer uint32
	}{
		{name: "empty frame", blob: []byte{}, trailer: 7},
		{name: "small frame", blob: []byte("Hello, world! This is a test."), trailer: 0xdeadbeef},
		{name: "frame above direct read limit", blob: bytes.Repeat([]byte{0xab}, 200000), trailer: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buffer := new(bytes.Buffer)
			fw := ioutil.NewFrameWriter(buffer)
			if err := fw.WriteFrame(tc.blob, tc.trailer); err != nil {
				t.Fatalf("write frame: %v", err)
			}
			if fw.Written() != int64(len(tc.blob)+8) {
				t.Errorf("written = %d, want %d", fw.Written(), len(tc.blob)+8)
			}

			fr := ioutil.NewFrameReader(buffer)
			blob, trailer, err := fr.ReadFrame()
			if err != nil {
				t.Fatalf("read frame: %v", err)
			}
			if !bytes.Equal(blob, tc.blob) {
				t.Errorf("blob mismatch: got %d bytes, want %d", len(blob), len(tc.blob))
			}
			if trailer != tc.trailer {
				t.Errorf("trailer = %x, want %x", trailer, tc.trailer)
			}
			if fr.Offset() != int64(len(tc.blob)+8) {
				t.Errorf("offset = %d", fr.Offset())
			}
			if n, err := fr.Remaining(); err != nil || n != 0 {
				t.Errorf("remaining = %d, %v", n, err)
			}
		})
	}
}

func TestFrameReaderShortReads(t *testing.T) {
	full := new(bytes.Buffer)
	if err := ioutil.NewFrameWriter(full).WriteFrame(bytes.Repeat([]byte("x"), 100000), 42); err != nil {
		t.Fatal(err)
	}
	raw := full.Bytes()

	testCases := []struct {
		name string
		cut  int
		want error
	}{
		{name: "nothing", cut: 0, want: io.EOF},
		{name: "partial length", cut: 2, want: io.ErrUnexpectedEOF},
		{name: "length only", cut: 4, want: io.ErrUnexpectedEOF},
		{name: "partial body", cut: 5000, want: io.ErrUnexpectedEOF},
		{name: "missing trailer", cut: 4 + 100000, want: io.ErrUnexpectedEOF},
		{name: "partial trailer", cut: 4 + 100000 + 3, want: io.ErrUnexpectedEOF},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fr := ioutil.NewFrameReader(bytes.NewReader(raw[:tc.cut]))
			_, _, err := fr.ReadFrame()
			if !errors.Is(err, tc.want) {
				t.Fatalf("unexpected error; want %v, got %v", tc.want, err)
			}
			if fr.Offset() != int64(tc.cut) {
				t.Errorf("offset = %d, want %d", fr.Offset(), tc.cut)
			}
		})
	}
}

func TestGzipRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte(`{"key":"value"},`), 1000)
	z, err := ioutil.Gzip(data, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(z) >= len(data) {
		t.Errorf("expected compression, %d >= %d", len(z), len(data))
	}
	out, err := ioutil.Gunzip(z, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Error("gunzip output differs")
	}
	if _, err := ioutil.Gunzip(z, 100); err == nil {
		t.Error("expected limit error")
	}
	if _, err := ioutil.Gunzip([]byte("not gzip"), 0); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestChecksums(t *testing.T) {
	// sha256("abc") = ba7816bf...
	if got := ioutil.SHA256Prefix([]byte("abc")); got != 0xbf1678ba {
		t.Errorf("SHA256Prefix = %08x", got)
	}
	// crc32("123456789") = cbf43926
	if got := ioutil.CRC32([]byte("123456789")); got != 0xcbf43926 {
		t.Errorf("CRC32 = %08x", got)
	}
}
