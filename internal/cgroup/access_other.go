//go:build !linux

package cgroup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

func probeReadable(path string) error {
	f, err := os.Open(path)
	switch {
	case err == nil:
		return f.Close()
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrLimitFileMissing, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrLimitFilePermission, err)
	default:
		return err
	}
}
