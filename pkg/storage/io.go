package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"unsafe"
)

// Every artifact is a sequence of 8-byte-aligned sections after the
// 16-byte fingerprint: a u64 element count, the raw little-endian
// payload, then zero padding to the next 8-byte boundary. Alignment
// means a memory-mapped artifact can be sliced in place without copies.
// The file ends with a 4-byte CRC32 over everything after the
// fingerprint.

const maxCount = 1 << 30

var zeroPad [8]byte

// artifactWriter accumulates sections and the CRC trailer, then renames
// into place atomically.
type artifactWriter struct {
	f    *os.File
	tmp  string
	path string
	hash uint32
	off  int64
}

func newArtifactWriter(path string, fp Fingerprint) (*artifactWriter, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", tmp, err)
	}
	w := &artifactWriter{f: f, tmp: tmp, path: path}
	if err := fp.write(f); err != nil {
		w.abort()
		return nil, err
	}
	return w, nil
}

func (w *artifactWriter) write(p []byte) error {
	w.hash = crc32.Update(w.hash, crc32.IEEETable, p)
	w.off += int64(len(p))
	_, err := w.f.Write(p)
	return err
}

func (w *artifactWriter) pad() error {
	if rem := w.off % 8; rem != 0 {
		return w.write(zeroPad[:8-rem])
	}
	return nil
}

// section writes one counted, aligned payload.
func (w *artifactWriter) section(count int, payload []byte) error {
	var head [8]byte
	binary.LittleEndian.PutUint64(head[:], uint64(count))
	if err := w.write(head[:]); err != nil {
		return err
	}
	if err := w.write(payload); err != nil {
		return err
	}
	return w.pad()
}

func (w *artifactWriter) uint32s(s []uint32) error {
	return w.section(len(s), u32Bytes(s))
}

func (w *artifactWriter) uint64s(s []uint64) error {
	return w.section(len(s), u64Bytes(s))
}

func (w *artifactWriter) int64s(s []int64) error {
	return w.section(len(s), i64Bytes(s))
}

func (w *artifactWriter) int32s(s []int32) error {
	return w.section(len(s), i32Bytes(s))
}

func (w *artifactWriter) bytes(s []byte) error {
	return w.section(len(s), s)
}

// Close writes the CRC trailer and commits the file.
func (w *artifactWriter) Close() error {
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], w.hash)
	if _, err := w.f.Write(trailer[:]); err != nil {
		w.abort()
		return err
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.tmp)
		return err
	}
	return os.Rename(w.tmp, w.path)
}

func (w *artifactWriter) abort() {
	w.f.Close()
	os.Remove(w.tmp)
}

// decoder walks the section stream of one artifact held in memory,
// either an owned buffer or a mapped region. Views alias the buffer;
// callers must keep the region alive for the dataset's lifetime.
type decoder struct {
	fp  Fingerprint
	buf []byte // past the fingerprint, before the trailer
	off int
}

// newDecoder validates the fingerprint and the CRC trailer.
func newDecoder(raw []byte, path string) (*decoder, error) {
	if len(raw) < 16+4 {
		return nil, fmt.Errorf("%w: %s truncated", ErrCorrupt, path)
	}
	fp, err := readFingerprintBytes(raw[:16])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	body := raw[16 : len(raw)-4]
	stored := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if computed := crc32.ChecksumIEEE(body); computed != stored {
		return nil, fmt.Errorf("%w: %s checksum %08x, stored %08x", ErrCorrupt, path, computed, stored)
	}
	return &decoder{fp: fp, buf: body}, nil
}

func (d *decoder) count() (int, error) {
	if d.off+8 > len(d.buf) {
		return 0, fmt.Errorf("%w: truncated section header", ErrCorrupt)
	}
	n := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	if n > maxCount {
		return 0, fmt.Errorf("%w: count %d exceeds limit", ErrCorrupt, n)
	}
	return int(n), nil
}

func (d *decoder) payload(size int) ([]byte, error) {
	if d.off+size > len(d.buf) {
		return nil, fmt.Errorf("%w: truncated section", ErrCorrupt)
	}
	p := d.buf[d.off : d.off+size]
	d.off += size
	if rem := d.off % 8; rem != 0 {
		d.off += 8 - rem
	}
	return p, nil
}

func (d *decoder) uint32s() ([]uint32, error) {
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	p, err := d.payload(n * 4)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&p[0])), n), nil
}

func (d *decoder) uint64s() ([]uint64, error) {
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	p, err := d.payload(n * 8)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&p[0])), n), nil
}

func (d *decoder) int64s() ([]int64, error) {
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	p, err := d.payload(n * 8)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&p[0])), n), nil
}

func (d *decoder) int32s() ([]int32, error) {
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	p, err := d.payload(n * 4)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&p[0])), n), nil
}

func (d *decoder) byteSlice() ([]byte, error) {
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	return d.payload(n)
}

// Raw byte views of numeric slices for writing.

func u32Bytes(s []uint32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}

func u64Bytes(s []uint64) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
}

func i64Bytes(s []int64) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
}

func i32Bytes(s []int32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}
