package cgroup

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// probeReadable checks R_OK access, separating absence from permission.
func probeReadable(path string) error {
	err := unix.Access(path, unix.R_OK)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENOTDIR):
		return fmt.Errorf("%w: %v", ErrLimitFileMissing, err)
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: %v", ErrLimitFilePermission, err)
	default:
		return err
	}
}
