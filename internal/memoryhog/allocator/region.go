package allocator

// Region is one contiguous block of memory that can grow or shrink while
// preserving its common prefix.
type Region interface {
	// Bytes returns the whole region. The slice is invalidated by Resize
	// and Release.
	Bytes() []byte
	// Resize changes the region to exactly n bytes.
	Resize(n int) error
	// Release returns the region to the system.
	Release() error
}
