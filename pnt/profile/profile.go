// Package profile loads the YAML files that bundle validator limits,
// benchmark targets and logging settings under one name.
package profile

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/indrora/tusk/pnt/bench"
	"github.com/indrora/tusk/pnt/ioutil"
	"github.com/indrora/tusk/pnt/validator"
)

type Logging struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type Profile struct {
	Validation validator.Limits `yaml:"validation" json:"validation"`
	Benchmark  bench.Config     `yaml:"benchmark" json:"benchmark"`
	Logging    Logging          `yaml:"logging" json:"logging"`
}

func Default() *Profile {
	return &Profile{
		Validation: validator.DefaultLimits(),
		Benchmark:  bench.DefaultConfig(),
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a profile from path. Anything the file does not mention keeps
// its default value. Unknown keys are an error so typos do not go unnoticed.
func Load(path string) (*Profile, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read profile %s", path)
	}
	return Parse(body)
}

// Parse is Load for a document already in memory.
func Parse(body []byte) (*Profile, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(body))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		// an empty document is a valid profile that changes nothing
		if errors.Is(err, io.EOF) {
			return p, nil
		}
		return nil, errors.Wrap(err, "failed to parse profile")
	}
	return p, nil
}

// Save writes p to path as YAML.
func Save(p *Profile, path string) error {
	buf := new(bytes.Buffer)
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return errors.Wrap(err, "failed to encode profile")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "failed to encode profile")
	}
	if err := ioutil.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "failed to write profile %s", path)
	}
	return nil
}
