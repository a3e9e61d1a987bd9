// Package payload encodes the data section of a .pnt file: a UTF-8 JSON
// object, optionally gzip-compressed, checksummed with a truncated SHA-256.
package payload

import (
	"bytes"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"

	"github.com/indrora/tusk/internal/json"
	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/ioutil"
)

// Decompressed output larger than this is refused.
const MaxDecodedSize = 1 << 30

type Encoded struct {
	// Canonical JSON of the object.
	Raw []byte
	// Raw after compression; this is what goes on disk.
	Blob     []byte
	Checksum uint32
}

type Decoded struct {
	Object map[string]any
	Raw    []byte
}

// Checksum is the data section trailer: the first four bytes of SHA-256
// over the stored (post-compression) blob.
func Checksum(blob []byte) uint32 {
	return ioutil.SHA256Prefix(blob)
}

// Canonical renders v as compact JSON with sorted keys and checks that the
// top level is an object.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, format.Errorf(format.ErrInvalidJSON, format.SECTION_DATA, "%v", err)
	}
	if first := firstToken(raw); first != '{' {
		return nil, format.Errorf(format.ErrNotAnObject, format.SECTION_DATA, "top level starts with %q", first)
	}
	return raw, nil
}

// Encode serializes v and applies the requested compression.
func Encode(v any, compression format.Compression) (*Encoded, error) {
	raw, err := Canonical(v)
	if err != nil {
		return nil, err
	}
	return EncodeRaw(raw, compression)
}

// EncodeRaw is Encode for bytes that are already canonical JSON.
func EncodeRaw(raw []byte, compression format.Compression) (*Encoded, error) {
	enc := &Encoded{Raw: raw}
	switch compression {
	case format.COMPRESSION_NONE:
		enc.Blob = raw
	case format.COMPRESSION_GZIP:
		blob, err := ioutil.Gzip(raw, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		enc.Blob = blob
	default:
		return nil, format.Errorf(format.ErrInvalidCompressionAlgorithm, format.SECTION_DATA, "cannot write with compression %d (%s)", compression, compression)
	}
	enc.Checksum = Checksum(enc.Blob)
	return enc, nil
}

// Decode checks and unpacks a data blob. The checksum is verified before
// anything expensive happens.
func Decode(blob []byte, checksum uint32, h format.Header) (*Decoded, error) {
	if sum := Checksum(blob); sum != checksum {
		return nil, format.Errorf(format.ErrChecksumMismatch, format.SECTION_DATA, "stored %08x, computed %08x", checksum, sum)
	}
	raw, err := Inflate(blob, h)
	if err != nil {
		return nil, err
	}
	obj, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Decoded{Object: obj, Raw: raw}, nil
}

// Inflate undoes whatever the header says was applied to the blob.
func Inflate(blob []byte, h format.Header) ([]byte, error) {
	if h.Encrypted() {
		return nil, format.Errorf(format.ErrEncryptionUnsupported, format.SECTION_DATA, "encryption id %d (%s)", h.Encryption, h.Encryption)
	}
	if !h.Compressed() {
		return blob, nil
	}
	switch h.Compression {
	case format.COMPRESSION_GZIP:
		raw, err := ioutil.Gunzip(blob, MaxDecodedSize)
		if err != nil {
			return nil, format.Errorf(format.ErrDecompressionFailed, format.SECTION_DATA, "%v", err)
		}
		return raw, nil
	default:
		return nil, format.Errorf(format.ErrInvalidCompressionAlgorithm, format.SECTION_DATA, "compressed flag set with compression %d (%s)", h.Compression, h.Compression)
	}
}

// Parse decodes raw JSON bytes and requires a top-level object. Numbers are
// kept as json.Number so re-encoding reproduces them exactly.
func Parse(raw []byte) (map[string]any, error) {
	if !utf8.Valid(raw) {
		return nil, format.Errorf(format.ErrInvalidUTF8, format.SECTION_DATA, "payload is not valid utf-8")
	}
	var v any
	if err := json.UnmarshalNumber(raw, &v); err != nil {
		return nil, format.Errorf(format.ErrInvalidJSON, format.SECTION_DATA, "%v", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, format.Errorf(format.ErrNotAnObject, format.SECTION_DATA, "top level is %s", kindName(v))
	}
	return obj, nil
}

func firstToken(b []byte) byte {
	b = bytes.TrimLeft(b, " \t\r\n")
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

func kindName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float64:
		return "a number"
	default:
		return "not an object"
	}
}
