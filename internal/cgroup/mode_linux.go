package cgroup

import (
	cgroups "github.com/containerd/cgroups/v3"
)

// HierarchyMode reports how cgroups are mounted on this host: "unified",
// "hybrid", "legacy" or "unavailable". Only unified mode guarantees a
// memory.max for the process.
func HierarchyMode() string {
	switch cgroups.Mode() {
	case cgroups.Unified:
		return "unified"
	case cgroups.Hybrid:
		return "hybrid"
	case cgroups.Legacy:
		return "legacy"
	default:
		return "unavailable"
	}
}
