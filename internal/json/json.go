// Package json is the single place the module touches a JSON implementation.
// Everything else goes through these helpers so the backing library can be
// swapped without touching callers.
package json

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"
)

// Number is a JSON number kept in its literal form.
type Number = gojson.Number

// Encoder represents an encoder for json
type Encoder interface {
	Encode(v any) error
}

// Decoder represents a decoder for json
type Decoder interface {
	Decode(v any) error
}

// Marshal encodes v. Map keys are emitted in sorted order, so the output is
// stable for equal inputs.
func Marshal(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent is Marshal with indentation, used for report files.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}

// UnmarshalNumber decodes data into v keeping numbers as Number instead of
// float64, so integers beyond 2^53 survive a round trip.
func UnmarshalNumber(data []byte, v any) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// A second value after the first one is not a single JSON document.
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return errTrailingValue
		}
		return err
	}
	return nil
}

// NewEncoder creates an encoder to write objects to writer
func NewEncoder(writer io.Writer) Encoder {
	return gojson.NewEncoder(writer)
}

// NewDecoder creates a decoder to read objects from reader
func NewDecoder(reader io.Reader) Decoder {
	return gojson.NewDecoder(reader)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return gojson.Valid(data)
}

type trailingValueError struct{}

func (trailingValueError) Error() string { return "json: unexpected data after top-level value" }

var errTrailingValue error = trailingValueError{}
