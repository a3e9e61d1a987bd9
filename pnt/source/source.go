// Package source reads and writes the plain documents a .pnt payload is
// packed from and unpacked to. The format follows the file extension.
package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/indrora/tusk/internal/json"
	"github.com/indrora/tusk/pnt/ioutil"
)

type Format string

const (
	FORMAT_JSON Format = "json"
	FORMAT_YAML Format = "yaml"
	FORMAT_CBOR Format = "cbor"
)

var (
	ErrUnknownFormat = errors.New("unknown document format")
	ErrNotAMapping   = errors.New("document is not a mapping")
)

var cborDecoder cbor.DecMode

func init() {
	var err error
	cborDecoder, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// FormatOf picks the document format from the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FORMAT_JSON, nil
	case ".yaml", ".yml":
		return FORMAT_YAML, nil
	case ".cbor":
		return FORMAT_CBOR, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "extension %q", filepath.Ext(path))
	}
}

// Load reads the document at path. Its top level must be a mapping.
func Load(path string) (map[string]any, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	doc, err := Decode(f, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return doc, nil
}

// Decode parses body as a document in format f.
func Decode(f Format, body []byte) (map[string]any, error) {
	var v any
	switch f {
	case FORMAT_JSON:
		if err := json.UnmarshalNumber(body, &v); err != nil {
			return nil, err
		}
	case FORMAT_YAML:
		if err := yaml.Unmarshal(body, &v); err != nil {
			return nil, err
		}
	case FORMAT_CBOR:
		if err := cborDecoder.Unmarshal(body, &v); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", f)
	}

	doc, ok := stringKeys(v).(map[string]any)
	if !ok {
		return nil, errors.Wrapf(ErrNotAMapping, "top level is %T", v)
	}
	return doc, nil
}

// Dump writes v to path in the format its extension names.
func Dump(path string, v map[string]any) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	body, err := Encode(f, v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	if err := ioutil.WriteFileAtomic(path, body, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// Encode renders v in format f. JSON keeps numbers exactly as they were
// read; YAML and CBOR get native integers and floats.
func Encode(f Format, v map[string]any) ([]byte, error) {
	switch f {
	case FORMAT_JSON:
		body, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(body, '\n'), nil
	case FORMAT_YAML:
		buf := new(bytes.Buffer)
		enc := yaml.NewEncoder(buf)
		enc.SetIndent(2)
		if err := enc.Encode(native(v)); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FORMAT_CBOR:
		return cbor.Marshal(native(v))
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", f)
	}
}

// stringKeys converts the map[any]any values some decoders produce for
// non-string keys into map[string]any, recursively.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = stringKeys(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = stringKeys(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = stringKeys(e)
		}
		return t
	default:
		return v
	}
}

// native replaces json.Number with int64 or float64, recursively.
func native(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = native(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = native(e)
		}
		return s
	default:
		return v
	}
}
