// Package storage serializes and loads every preprocessing artifact.
// All files are little-endian, open with a 16-byte fingerprint, and
// close with a CRC32 trailer. Readers refuse fingerprints from another
// major format version or another dataset.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Format version. Readers accept any file whose major matches.
const (
	FormatMajor = 1
	FormatMinor = 0
	FormatPatch = 0
)

var magic = [4]byte{'O', 'S', 'R', 'M'}

var (
	// ErrIncompatible marks a fingerprint from another format major or
	// another dataset build.
	ErrIncompatible = errors.New("storage: incompatible dataset")

	// ErrCorrupt marks checksum mismatches and truncated sections.
	ErrCorrupt = errors.New("storage: corrupt dataset")
)

// Fingerprint is the 16-byte file header: magic, three version bytes, a
// reserved zero byte, and the dataset checksum binding all artifacts of
// one preprocessing run together.
type Fingerprint struct {
	Major    uint8
	Minor    uint8
	Patch    uint8
	Checksum uint64
}

// NewFingerprint stamps the current format version.
func NewFingerprint(checksum uint64) Fingerprint {
	return Fingerprint{Major: FormatMajor, Minor: FormatMinor, Patch: FormatPatch, Checksum: checksum}
}

func (fp Fingerprint) write(w io.Writer) error {
	var buf [16]byte
	copy(buf[:4], magic[:])
	buf[4] = fp.Major
	buf[5] = fp.Minor
	buf[6] = fp.Patch
	buf[7] = 0
	binary.LittleEndian.PutUint64(buf[8:], fp.Checksum)
	_, err := w.Write(buf[:])
	return err
}

func readFingerprintBytes(buf []byte) (Fingerprint, error) {
	if len(buf) < 16 {
		return Fingerprint{}, fmt.Errorf("%w: short fingerprint", ErrCorrupt)
	}
	if [4]byte(buf[:4]) != magic {
		return Fingerprint{}, fmt.Errorf("%w: bad magic %q", ErrIncompatible, buf[:4])
	}
	fp := Fingerprint{
		Major:    buf[4],
		Minor:    buf[5],
		Patch:    buf[6],
		Checksum: binary.LittleEndian.Uint64(buf[8:]),
	}
	if fp.Major != FormatMajor {
		return fp, fmt.Errorf("%w: format major %d, want %d", ErrIncompatible, fp.Major, FormatMajor)
	}
	return fp, nil
}
