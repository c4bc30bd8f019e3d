package allocator

import (
	"golang.org/x/sys/unix"
)

// mmapRegion is an anonymous private mapping grown and shrunk with mremap,
// so refusals surface as errors instead of runtime aborts.
type mmapRegion struct {
	data []byte
}

// NewRegion maps n bytes of anonymous memory.
func NewRegion(n int) (Region, error) {
	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &mmapRegion{data: data}, nil
}

func (r *mmapRegion) Bytes() []byte {
	return r.data
}

func (r *mmapRegion) Resize(n int) error {
	if n == len(r.data) {
		return nil
	}
	data, err := unix.Mremap(r.data, n, unix.MREMAP_MAYMOVE)
	if err != nil {
		return err
	}
	r.data = data
	return nil
}

func (r *mmapRegion) Release() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}
