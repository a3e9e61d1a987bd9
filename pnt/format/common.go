package format

import (
	"encoding/binary"
	"hash/crc32"
	"time"
)

/*

The header is the first 32 bytes of every .pnt file. Everything is
little-endian.

	struct PNT_HEADER {
	    uint8_t  magic[4];        // "TUSK"
	    uint16_t version;         // PNT_VERSION
	    uint16_t flags;           // FLAG_*
	    uint8_t  compression;     // COMPRESSION_*
	    uint8_t  encryption;      // ENCRYPTION_*
	    uint8_t  reserved1;       // 0
	    uint8_t  reserved2;       // 0
	    uint32_t header_checksum; // CRC32 over bytes [0:12)
	    uint64_t data_length;     // length of the data blob
	    uint64_t timestamp;       // unix seconds
	}

*/

const (
	MAGIC_STRING = "TUSK"
	PNT_VERSION  = 1
	HEADER_SIZE  = 32
	FILE_EXT     = ".pnt"

	// bytes covered by the header checksum
	HEADER_CHECKSUM_SPAN = 12
)

var (
	MAGIC_BYTES = [4]byte{'T', 'U', 'S', 'K'}
)

type Flags uint16
type Compression uint8
type Encryption uint8

const (
	FLAG_NONE             Flags = 0
	FLAG_HAS_METADATA     Flags = 1 << 0
	FLAG_HAS_ENCRYPTION   Flags = 1 << 1
	FLAG_IS_COMPRESSED    Flags = 1 << 3
	FLAG_HAS_DEPENDENCIES Flags = 1 << 4
	FLAG_HAS_KEYWORDS     Flags = 1 << 5

	FLAG_KNOWN    = FLAG_HAS_METADATA | FLAG_HAS_ENCRYPTION | FLAG_IS_COMPRESSED | FLAG_HAS_DEPENDENCIES | FLAG_HAS_KEYWORDS
	FLAG_RESERVED = ^FLAG_KNOWN
)

const (
	COMPRESSION_NONE       Compression = 0
	COMPRESSION_GZIP       Compression = 1
	COMPRESSION_RESERVED_2 Compression = 2
	COMPRESSION_RESERVED_3 Compression = 3

	COMPRESSION_MAX = COMPRESSION_RESERVED_3
)

const (
	ENCRYPTION_NONE       Encryption = 0
	ENCRYPTION_RESERVED_1 Encryption = 1
	ENCRYPTION_RESERVED_2 Encryption = 2

	ENCRYPTION_MAX = ENCRYPTION_RESERVED_2
)

// Has reports whether every bit of f2 is set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

func (c Compression) String() string {
	switch c {
	case COMPRESSION_NONE:
		return "none"
	case COMPRESSION_GZIP:
		return "gzip"
	case COMPRESSION_RESERVED_2, COMPRESSION_RESERVED_3:
		return "reserved"
	default:
		return "invalid"
	}
}

func (e Encryption) String() string {
	switch e {
	case ENCRYPTION_NONE:
		return "none"
	case ENCRYPTION_RESERVED_1, ENCRYPTION_RESERVED_2:
		return "reserved"
	default:
		return "invalid"
	}
}

type Header struct {
	// Magic value, must be MAGIC_STRING
	Magic       [4]byte
	Version     uint16
	Flags       Flags
	Compression Compression
	Encryption  Encryption
	Reserved1   uint8
	Reserved2   uint8
	// CRC32 of the first 12 bytes. Filled in by Bytes().
	Checksum   uint32
	DataLength uint64
	Timestamp  uint64
}

func NewHeader(flags Flags, compression Compression, dataLength uint64, created time.Time) Header {
	return Header{
		Magic:       MAGIC_BYTES,
		Version:     PNT_VERSION,
		Flags:       flags,
		Compression: compression,
		Encryption:  ENCRYPTION_NONE,
		DataLength:  dataLength,
		Timestamp:   uint64(created.Unix()),
	}
}

// Created returns the header timestamp as a time.
func (h *Header) Created() time.Time {
	return time.Unix(int64(h.Timestamp), 0)
}

// Compressed reports whether the data blob is a compressed stream.
func (h *Header) Compressed() bool {
	return h.Flags.Has(FLAG_IS_COMPRESSED)
}

// Encrypted reports whether the header claims any encryption at all.
func (h *Header) Encrypted() bool {
	return h.Flags.Has(FLAG_HAS_ENCRYPTION) || h.Encryption != ENCRYPTION_NONE
}

// Bytes packs the header and embeds a freshly computed checksum.
// h.Checksum is updated to match.
func (h *Header) Bytes() [HEADER_SIZE]byte {
	var b [HEADER_SIZE]byte
	copy(b[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(b[4:], h.Version)
	binary.LittleEndian.PutUint16(b[6:], uint16(h.Flags))
	b[8] = byte(h.Compression)
	b[9] = byte(h.Encryption)
	b[10] = h.Reserved1
	b[11] = h.Reserved2
	h.Checksum = HeaderChecksum(b[:])
	binary.LittleEndian.PutUint32(b[12:], h.Checksum)
	binary.LittleEndian.PutUint64(b[16:], h.DataLength)
	binary.LittleEndian.PutUint64(b[24:], h.Timestamp)
	return b
}

func (h *Header) MarshalBinary() ([]byte, error) {
	b := h.Bytes()
	return b[:], nil
}

// HeaderChecksum is the CRC32 over the checksummed span of a packed header.
func HeaderChecksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b[:HEADER_CHECKSUM_SPAN])
}

// EncodeHeader packs the header fields into their fixed 32-byte form.
func EncodeHeader(version uint16, flags Flags, compression Compression, encryption Encryption, dataLength uint64, timestamp uint64) [HEADER_SIZE]byte {
	h := Header{
		Magic:       MAGIC_BYTES,
		Version:     version,
		Flags:       flags,
		Compression: compression,
		Encryption:  encryption,
		DataLength:  dataLength,
		Timestamp:   timestamp,
	}
	return h.Bytes()
}

// UnpackHeader splits a 32-byte header into fields without checking any of
// them. The validator uses it to report on headers DecodeHeader rejects.
func UnpackHeader(b []byte) (Header, bool) {
	if len(b) < HEADER_SIZE {
		return Header{}, false
	}
	var h Header
	copy(h.Magic[:], b[0:4])
	h.Version = binary.LittleEndian.Uint16(b[4:])
	h.Flags = Flags(binary.LittleEndian.Uint16(b[6:]))
	h.Compression = Compression(b[8])
	h.Encryption = Encryption(b[9])
	h.Reserved1 = b[10]
	h.Reserved2 = b[11]
	h.Checksum = binary.LittleEndian.Uint32(b[12:])
	h.DataLength = binary.LittleEndian.Uint64(b[16:])
	h.Timestamp = binary.LittleEndian.Uint64(b[24:])
	return h, true
}

// DecodeHeader unpacks and checks a header. The magic is checked first, then
// the checksum, so a flipped bit anywhere in bytes [4:12) is reported as a
// checksum mismatch rather than as whatever field it happened to land in.
func DecodeHeader(b []byte) (Header, error) {
	h, ok := UnpackHeader(b)
	if !ok {
		return Header{}, Errorf(ErrTruncated, SECTION_HEADER, "got %d of %d bytes", len(b), HEADER_SIZE)
	}
	if h.Magic != MAGIC_BYTES {
		return h, Errorf(ErrInvalidMagic, SECTION_HEADER, "got %q", h.Magic[:])
	}
	if sum := HeaderChecksum(b); sum != h.Checksum {
		return h, Errorf(ErrChecksumMismatch, SECTION_HEADER, "stored %08x, computed %08x", h.Checksum, sum)
	}
	if h.Version != PNT_VERSION {
		return h, Errorf(ErrUnsupportedVersion, SECTION_HEADER, "version %d, expected %d", h.Version, PNT_VERSION)
	}
	if h.Reserved1 != 0 || h.Reserved2 != 0 {
		return h, Errorf(ErrReservedFieldNonZero, SECTION_HEADER, "reserved bytes %02x %02x", h.Reserved1, h.Reserved2)
	}
	if h.Flags&FLAG_RESERVED != 0 {
		return h, Errorf(ErrReservedFieldNonZero, SECTION_HEADER, "reserved flag bits %04x", uint16(h.Flags&FLAG_RESERVED))
	}
	if h.Compression > COMPRESSION_MAX {
		return h, Errorf(ErrInvalidCompressionAlgorithm, SECTION_HEADER, "compression id %d", h.Compression)
	}
	if h.Encryption > ENCRYPTION_MAX {
		return h, Errorf(ErrInvalidEncryptionAlgorithm, SECTION_HEADER, "encryption id %d", h.Encryption)
	}
	return h, nil
}
