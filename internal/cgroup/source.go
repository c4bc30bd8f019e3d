package cgroup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultProcFile is the membership record of the calling process.
	DefaultProcFile = "/proc/self/cgroup"
	// DefaultMountRoot is where the unified hierarchy is mounted.
	DefaultMountRoot = "/sys/fs/cgroup"
	// MemoryMaxFile is the control file holding the memory ceiling.
	MemoryMaxFile = "memory.max"
	// MaxLimitPathLen bounds the composed memory.max path.
	MaxLimitPathLen = 511

	unifiedPrefix  = "0::"
	unboundedToken = "max"
)

// LimitPath is a resolved, readable memory.max path.
type LimitPath string

func (p LimitPath) String() string {
	return string(p)
}

// Source resolves memory.max for the process described by ProcFile under
// MountRoot. The zero value uses the defaults.
type Source struct {
	ProcFile  string
	MountRoot string
}

// NewSource returns a Source for the calling process.
func NewSource() *Source {
	return &Source{ProcFile: DefaultProcFile, MountRoot: DefaultMountRoot}
}

func (s *Source) procFile() string {
	if s.ProcFile == "" {
		return DefaultProcFile
	}
	return s.ProcFile
}

func (s *Source) mountRoot() string {
	if s.MountRoot == "" {
		return DefaultMountRoot
	}
	return s.MountRoot
}

// ResolvePath finds the first unified-hierarchy line in the membership record
// and returns the readable memory.max path for it.
func (s *Source) ResolvePath() (LimitPath, error) {
	procFile := s.procFile()

	rel, err := unifiedRelPath(procFile)
	if err != nil {
		return "", err
	}

	path, err := ComposeLimitPath(s.mountRoot(), rel)
	if err != nil {
		return "", err
	}

	if err := probeReadable(path); err != nil {
		return "", &ResolutionError{Op: "access", Path: path, Err: err}
	}
	return LimitPath(path), nil
}

// ComposeLimitPath joins root, the slash-rooted relative path and memory.max.
// It fails instead of truncating when the result exceeds MaxLimitPathLen.
func ComposeLimitPath(root, rel string) (string, error) {
	path := root + rel + "/" + MemoryMaxFile
	if len(path) > MaxLimitPathLen {
		return "", &ResolutionError{
			Op:   "compose",
			Path: path,
			Err:  fmt.Errorf("%w: %d > %d bytes", ErrPathTooLong, len(path), MaxLimitPathLen),
		}
	}
	return path, nil
}

func unifiedRelPath(procFile string) (string, error) {
	f, err := os.Open(procFile)
	if err != nil {
		return "", &ResolutionError{Op: "open", Path: procFile, Err: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if rel, ok := strings.CutPrefix(line, unifiedPrefix); ok {
			return rel, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", &ResolutionError{Op: "scan", Path: procFile, Err: err}
	}
	return "", &ResolutionError{Op: "scan", Path: procFile, Err: ErrNoUnifiedEntry}
}

// ReadLimit reads the first line of path. "max" yields Unbounded; anything
// other than a non-negative base-10 integer is a ReadError.
func ReadLimit(path LimitPath) (Limit, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return Limit{}, &ReadError{Path: string(path), Err: err}
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		if errors.Is(err, io.EOF) {
			err = ErrEmptyLimitFile
		}
		return Limit{}, &ReadError{Path: string(path), Err: err}
	}
	return ParseLimit(line, string(path))
}

// ParseLimit parses one memory.max line. path is only used in errors.
func ParseLimit(line, path string) (Limit, error) {
	value := strings.TrimRight(line, "\r\n")
	if value == "" {
		return Limit{}, &ReadError{Path: path, Err: ErrEmptyLimitFile}
	}
	if value == unboundedToken {
		return Unbounded, nil
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return Limit{}, &ReadError{Path: path, Err: fmt.Errorf("%w: %q", ErrMalformedLimit, value)}
	}
	return Bytes(n), nil
}

// ReadLimit reads the current value of path. It lets *Source satisfy the
// poller's reader interface.
func (s *Source) ReadLimit(path LimitPath) (Limit, error) {
	return ReadLimit(path)
}
