//go:build !linux

package allocator

// heapRegion backs the region with a Go slice where mremap is unavailable.
type heapRegion struct {
	data []byte
}

// NewRegion allocates n bytes on the Go heap.
func NewRegion(n int) (Region, error) {
	return &heapRegion{data: make([]byte, n)}, nil
}

func (r *heapRegion) Bytes() []byte {
	return r.data
}

func (r *heapRegion) Resize(n int) error {
	if n == len(r.data) {
		return nil
	}
	data := make([]byte, n)
	copy(data, r.data)
	r.data = data
	return nil
}

func (r *heapRegion) Release() error {
	r.data = nil
	return nil
}
