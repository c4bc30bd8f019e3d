package cgroup

import (
	"errors"
	"fmt"
)

var (
	// ErrNoUnifiedEntry means the membership record has no "0::" line.
	ErrNoUnifiedEntry = errors.New("no cgroup v2 entry found")
	// ErrPathTooLong means the composed memory.max path exceeds MaxLimitPathLen.
	ErrPathTooLong = errors.New("cgroup limit path too long")
	// ErrLimitFileMissing means the composed memory.max path does not exist.
	ErrLimitFileMissing = errors.New("cgroup limit file not found")
	// ErrLimitFilePermission means memory.max exists but is not readable.
	ErrLimitFilePermission = errors.New("cgroup limit file not readable")

	// ErrEmptyLimitFile means memory.max had no first line.
	ErrEmptyLimitFile = errors.New("cgroup limit file is empty")
	// ErrMalformedLimit means memory.max held neither "max" nor a non-negative integer.
	ErrMalformedLimit = errors.New("malformed cgroup limit value")
)

// ResolutionError is returned when the memory.max path cannot be resolved.
// All resolution errors are fatal at startup.
type ResolutionError struct {
	Op   string // "open", "scan", "compose" or "access"
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving cgroup limit path: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ReadError is returned when memory.max cannot be read or parsed. It is
// never returned for a successful "max" reading.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading cgroup limit %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
