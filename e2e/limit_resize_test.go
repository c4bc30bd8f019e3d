//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/container-resource-predictor/memory-hog/internal/cgroup"
	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/allocator"
	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/api"
	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/poller"
	"k8s.io/apimachinery/pkg/api/resource"
)

// testAllocationTracksLimit grows the container limit by half and expects the
// allocation to follow, then restores the original limit.
func testAllocationTracksLimit(t *testing.T, ctx context.Context, helper *TestHelper) {
	pod, err := helper.Pod(ctx)
	if err != nil {
		t.Fatalf("Failed to find memory-hog pod: %v", err)
	}
	original, err := helper.MemoryLimit(pod)
	if err != nil {
		t.Fatalf("Failed to read memory limit: %v", err)
	}
	t.Logf("Pod %s starts with memory limit %s", pod.Name, original.String())

	status, err := helper.WaitForStatus(ctx, pod.Name, settleWait, func(s *api.StatusResponse) bool {
		return s.State == poller.StateSteady
	})
	if err != nil {
		t.Fatalf("memory-hog never reached steady state: %v", err)
	}
	AssertAllocationMatches(t, status, original.Value())

	grown := resource.NewQuantity(original.Value()*3/2, resource.BinarySI)
	if err := helper.ResizeMemory(ctx, pod.Name, *grown); err != nil {
		t.Fatalf("Failed to grow memory limit: %v", err)
	}
	defer func() {
		if err := helper.ResizeMemory(ctx, pod.Name, original); err != nil {
			t.Errorf("Failed to restore memory limit: %v", err)
		}
	}()
	t.Logf("Resized memory limit to %s", grown.String())

	status, err = helper.WaitForStatus(ctx, pod.Name, settleWait, func(s *api.StatusResponse) bool {
		return s.TrackedLimit == cgroup.Bytes(grown.Value())
	})
	if err != nil {
		t.Fatalf("Allocation did not follow the new limit: %v", err)
	}
	AssertAllocationMatches(t, status, grown.Value())
	if status.Resizes < 1 {
		t.Errorf("expected at least one resize, got %d", status.Resizes)
	}
}

// AssertAllocationMatches checks allocationBytes is exactly 90% of limit.
func AssertAllocationMatches(t *testing.T, status *api.StatusResponse, limit int64) {
	t.Helper()
	want, err := allocator.TargetSize(cgroup.Bytes(limit))
	if err != nil {
		t.Fatalf("limit %d has no target: %v", limit, err)
	}
	if int64(status.AllocationBytes) != want {
		t.Errorf("allocationBytes = %d, want %d (90%% of %d)", status.AllocationBytes, want, limit)
	}
}
