package format

import (
	"fmt"

	"github.com/pkg/errors"
)

// Section names the part of a file an error was found in.
type Section string

const (
	SECTION_HEADER   Section = "header"
	SECTION_METADATA Section = "metadata"
	SECTION_DATA     Section = "data"
	SECTION_FILE     Section = "file"
)

// Error kinds. Every structural failure is a *FormatError wrapping one of
// these, so callers can test with errors.Is(err, format.ErrChecksumMismatch).
var (
	ErrInvalidMagic                = errors.New("invalid magic")
	ErrUnsupportedVersion          = errors.New("unsupported version")
	ErrReservedFieldNonZero        = errors.New("reserved field non-zero")
	ErrChecksumMismatch            = errors.New("checksum mismatch")
	ErrTruncated                   = errors.New("truncated")
	ErrInvalidUTF8                 = errors.New("invalid utf-8")
	ErrInvalidJSON                 = errors.New("invalid json")
	ErrNotAnObject                 = errors.New("not a json object")
	ErrDecompressionFailed         = errors.New("decompression failed")
	ErrInvalidCompressionAlgorithm = errors.New("invalid compression algorithm")
	ErrInvalidEncryptionAlgorithm  = errors.New("invalid encryption algorithm")
	ErrEncryptionUnsupported       = errors.New("encryption not implemented")
	ErrTrailingData                = errors.New("trailing data")
	ErrEmbeddedNul                 = errors.New("embedded nul byte")
)

var kinds = []error{
	ErrInvalidMagic,
	ErrUnsupportedVersion,
	ErrReservedFieldNonZero,
	ErrChecksumMismatch,
	ErrTruncated,
	ErrInvalidUTF8,
	ErrInvalidJSON,
	ErrNotAnObject,
	ErrDecompressionFailed,
	ErrInvalidCompressionAlgorithm,
	ErrInvalidEncryptionAlgorithm,
	ErrEncryptionUnsupported,
	ErrTrailingData,
	ErrEmbeddedNul,
}

type FormatError struct {
	Kind    error
	Section Section
	Detail  string
}

func (e *FormatError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("pnt %s: %v", e.Section, e.Kind)
	}
	return fmt.Sprintf("pnt %s: %v: %s", e.Section, e.Kind, e.Detail)
}

func (e *FormatError) Unwrap() error {
	return e.Kind
}

// Errorf builds a *FormatError of the given kind.
func Errorf(kind error, section Section, format string, args ...any) error {
	return &FormatError{
		Kind:    kind,
		Section: section,
		Detail:  fmt.Sprintf(format, args...),
	}
}

// KindOf returns the error kind carried by err, or nil when err is not a
// format error.
func KindOf(err error) error {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// SectionOf returns the section a format error was raised for.
func SectionOf(err error) (Section, bool) {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Section, true
	}
	return "", false
}
