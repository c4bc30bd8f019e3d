// Package cgroup locates and reads the cgroup v2 memory ceiling of the
// calling process.
package cgroup

import (
	"strconv"

	units "github.com/docker/go-units"
)

// Limit is a snapshot of a memory.max reading: a byte count or unbounded.
// The zero value is a bounded limit of 0 bytes.
type Limit struct {
	bytes     int64
	unbounded bool
}

// Unbounded is the value of a memory.max file containing "max".
var Unbounded = Limit{unbounded: true}

// Bytes returns a bounded limit of n bytes.
func Bytes(n int64) Limit {
	return Limit{bytes: n}
}

// IsUnbounded reports whether the limit is the "no limit" sentinel.
func (l Limit) IsUnbounded() bool {
	return l.unbounded
}

// Value returns the byte count and true for a bounded limit.
func (l Limit) Value() (int64, bool) {
	if l.unbounded {
		return 0, false
	}
	return l.bytes, true
}

// String renders the limit for status lines, e.g. "104857600 bytes (100MiB)".
func (l Limit) String() string {
	if l.unbounded {
		return unboundedToken
	}
	return strconv.FormatInt(l.bytes, 10) + " bytes (" + units.BytesSize(float64(l.bytes)) + ")"
}

// MarshalText encodes the limit as "max" or a decimal byte count.
func (l Limit) MarshalText() ([]byte, error) {
	if l.unbounded {
		return []byte(unboundedToken), nil
	}
	return strconv.AppendInt(nil, l.bytes, 10), nil
}

// UnmarshalText decodes "max" or a decimal byte count.
func (l *Limit) UnmarshalText(text []byte) error {
	v, err := ParseLimit(string(text), "")
	if err != nil {
		return err
	}
	*l = v
	return nil
}
