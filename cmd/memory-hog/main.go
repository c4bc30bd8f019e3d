// Package main implements the memory-hog component.
// Memory-hog holds 90% of its cgroup v2 memory limit and follows the limit
// as it is changed at runtime.
package main

import (
	"os"

	"github.com/container-resource-predictor/memory-hog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
