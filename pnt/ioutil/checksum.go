package ioutil

import (
	"crypto/sha256"
	"encoding/binary"
	"hash/crc32"
)

// CRC32 is the checksum used for the header and the metadata section.
func CRC32(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// SHA256Prefix is the checksum used for the data section: the first four
// bytes of the SHA-256 digest read as a little-endian integer.
func SHA256Prefix(b []byte) uint32 {
	sum := sha256.Sum256(b)
	return binary.LittleEndian.Uint32(sum[:4])
}
