package storage

import (
	"fmt"
	"os"
	"syscall"
)

// Opener reads one artifact into a decoder. Two implementations back
// the same loading code: owned buffers for tooling, and read-only
// mapped regions shared between query workers.
type Opener func(path string) (*decoder, error)

// OpenOwned reads the whole artifact into process memory.
func OpenOwned(path string) (*decoder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return newDecoder(raw, path)
}

// Region tracks the memory mappings of one loaded dataset so a reload
// can unmap them once the last in-flight query drains.
type Region struct {
	mappings [][]byte
}

// NewRegion creates an empty mapping set.
func NewRegion() *Region { return &Region{} }

// Opener returns a mapped-mode opener tied to this region.
func (r *Region) Opener() Opener {
	return func(path string) (*decoder, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("storage: open %s: %w", path, err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		if info.Size() == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrCorrupt, path)
		}

		data, err := syscall.Mmap(int(f.Fd()), 0, int(info.Size()),
			syscall.PROT_READ, syscall.MAP_SHARED)
		if err != nil {
			return nil, fmt.Errorf("storage: mmap %s: %w", path, err)
		}
		r.mappings = append(r.mappings, data)
		return newDecoder(data, path)
	}
}

// Close unmaps everything. The caller must guarantee no dataset slices
// are referenced afterwards.
func (r *Region) Close() error {
	var first error
	for _, m := range r.mappings {
		if err := syscall.Munmap(m); err != nil && first == nil {
			first = err
		}
	}
	r.mappings = nil
	return first
}
