//go:build !linux

package cgroup

// HierarchyMode always reports "unavailable" off Linux.
func HierarchyMode() string {
	return "unavailable"
}
