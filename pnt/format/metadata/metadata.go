package metadata

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/ioutil"
)

/*

The metadata blob. Strings are UTF-8 and NUL-terminated; counts are u32 LE.

	name\0 version\0 author\0 description\0 license\0 repository\0
	[ if FLAG_HAS_DEPENDENCIES: count, { name\0 version\0 type(u8) } * count ]
	[ if FLAG_HAS_KEYWORDS:     count, { keyword\0 } * count ]

*/

type DependencyType uint8

const (
	DEPENDENCY_RUNTIME     DependencyType = 0
	DEPENDENCY_DEVELOPMENT DependencyType = 1
	DEPENDENCY_OPTIONAL    DependencyType = 2
	DEPENDENCY_PEER        DependencyType = 3

	DEPENDENCY_MAX = DEPENDENCY_PEER
)

func (d DependencyType) String() string {
	switch d {
	case DEPENDENCY_RUNTIME:
		return "runtime"
	case DEPENDENCY_DEVELOPMENT:
		return "development"
	case DEPENDENCY_OPTIONAL:
		return "optional"
	case DEPENDENCY_PEER:
		return "peer"
	default:
		return "unknown"
	}
}

// Valid reports whether d is one of the known dependency types.
func (d DependencyType) Valid() bool {
	return d <= DEPENDENCY_MAX
}

// Package is the human-readable description of what a .pnt file holds.
// There is no "required" field; empty strings are written as-is.
type Package struct {
	Name         string       `json:"package_name" yaml:"package_name"`
	Version      string       `json:"version" yaml:"version"`
	Author       string       `json:"author" yaml:"author"`
	Description  string       `json:"description" yaml:"description"`
	License      string       `json:"license" yaml:"license"`
	Repository   string       `json:"repository" yaml:"repository"`
	Dependencies []Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Keywords     []string     `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

type Dependency struct {
	Name    string         `json:"name" yaml:"name"`
	Version string         `json:"version" yaml:"version"`
	Type    DependencyType `json:"type" yaml:"type"`
}

func (p *Package) strings() []*string {
	return []*string{&p.Name, &p.Version, &p.Author, &p.Description, &p.License, &p.Repository}
}

// Checksum is the CRC32 stored after the metadata blob.
func Checksum(blob []byte) uint32 {
	return ioutil.CRC32(blob)
}

// Encode serializes p. The returned flags are the header bits that describe
// the blob: FLAG_HAS_METADATA always, plus the list bits when those lists are
// non-empty.
func Encode(p *Package) (blob []byte, checksum uint32, flags format.Flags, err error) {
	buf := new(bytes.Buffer)
	flags = format.FLAG_HAS_METADATA

	for _, s := range p.strings() {
		if err = writeString(buf, *s); err != nil {
			return nil, 0, 0, err
		}
	}

	if len(p.Dependencies) > 0 {
		flags |= format.FLAG_HAS_DEPENDENCIES
		if err = writeCount(buf, len(p.Dependencies)); err != nil {
			return nil, 0, 0, err
		}
		for _, dep := range p.Dependencies {
			if err = writeString(buf, dep.Name); err != nil {
				return nil, 0, 0, err
			}
			if err = writeString(buf, dep.Version); err != nil {
				return nil, 0, 0, err
			}
			buf.WriteByte(byte(dep.Type))
		}
	}

	if len(p.Keywords) > 0 {
		flags |= format.FLAG_HAS_KEYWORDS
		if err = writeCount(buf, len(p.Keywords)); err != nil {
			return nil, 0, 0, err
		}
		for _, kw := range p.Keywords {
			if err = writeString(buf, kw); err != nil {
				return nil, 0, 0, err
			}
		}
	}

	blob = buf.Bytes()
	return blob, Checksum(blob), flags, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return format.Errorf(format.ErrInvalidUTF8, format.SECTION_METADATA, "string %q", s)
	}
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return format.Errorf(format.ErrEmbeddedNul, format.SECTION_METADATA, "string %q", s)
	}
	buf.WriteString(s)
	buf.WriteByte(0)
	return nil
}

func writeCount(buf *bytes.Buffer, n int) error {
	if uint64(n) > math.MaxUint32 {
		return format.Errorf(format.ErrTruncated, format.SECTION_METADATA, "list of %d entries does not fit a u32 count", n)
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(n))
	buf.Write(b[:])
	return nil
}

// Decode verifies the checksum and parses the blob. The list sections are
// only looked for when their flag bits are set.
func Decode(blob []byte, checksum uint32, flags format.Flags) (*Package, error) {
	if sum := Checksum(blob); sum != checksum {
		return nil, format.Errorf(format.ErrChecksumMismatch, format.SECTION_METADATA, "stored %08x, computed %08x", checksum, sum)
	}

	d := &decoder{blob: blob}
	p := new(Package)

	for _, s := range p.strings() {
		v, err := d.readString()
		if err != nil {
			return nil, err
		}
		*s = v
	}

	if flags.Has(format.FLAG_HAS_DEPENDENCIES) {
		n, err := d.readCount("dependency")
		if err != nil {
			return nil, err
		}
		p.Dependencies = make([]Dependency, 0, min(n, uint32(len(blob))))
		for i := uint32(0); i < n; i++ {
			var dep Dependency
			if dep.Name, err = d.readString(); err != nil {
				return nil, err
			}
			if dep.Version, err = d.readString(); err != nil {
				return nil, err
			}
			t, err := d.readByte()
			if err != nil {
				return nil, err
			}
			dep.Type = DependencyType(t)
			p.Dependencies = append(p.Dependencies, dep)
		}
	}

	if flags.Has(format.FLAG_HAS_KEYWORDS) {
		n, err := d.readCount("keyword")
		if err != nil {
			return nil, err
		}
		p.Keywords = make([]string, 0, min(n, uint32(len(blob))))
		for i := uint32(0); i < n; i++ {
			kw, err := d.readString()
			if err != nil {
				return nil, err
			}
			p.Keywords = append(p.Keywords, kw)
		}
	}

	if left := len(blob) - d.pos; left > 0 {
		return nil, format.Errorf(format.ErrTrailingData, format.SECTION_METADATA, "%d bytes after the last field", left)
	}
	return p, nil
}

type decoder struct {
	blob []byte
	pos  int
}

func (d *decoder) readString() (string, error) {
	end := bytes.IndexByte(d.blob[d.pos:], 0)
	if end < 0 {
		return "", format.Errorf(format.ErrTruncated, format.SECTION_METADATA, "missing string terminator at offset %d", d.pos)
	}
	raw := d.blob[d.pos : d.pos+end]
	if !utf8.Valid(raw) {
		return "", format.Errorf(format.ErrInvalidUTF8, format.SECTION_METADATA, "string at offset %d", d.pos)
	}
	d.pos += end + 1
	return string(raw), nil
}

func (d *decoder) readCount(what string) (uint32, error) {
	if len(d.blob)-d.pos < 4 {
		return 0, format.Errorf(format.ErrTruncated, format.SECTION_METADATA, "missing %s count at offset %d", what, d.pos)
	}
	n := binary.LittleEndian.Uint32(d.blob[d.pos:])
	d.pos += 4
	return n, nil
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.blob) {
		return 0, format.Errorf(format.ErrTruncated, format.SECTION_METADATA, "missing dependency type at offset %d", d.pos)
	}
	b := d.blob[d.pos]
	d.pos++
	return b, nil
}
