//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/api"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// TestHelperConfig holds configuration for the test helper.
type TestHelperConfig struct {
	Namespace         string
	PodSelector       string
	Container         string
	StatusPort        string
	Kubeconfig        string
	ResizeSubresource bool
}

// TestHelper provides utilities for E2E tests.
type TestHelper struct {
	config    TestHelperConfig
	k8sClient kubernetes.Interface
}

// NewTestHelper creates a new test helper.
func NewTestHelper(ctx context.Context, config TestHelperConfig) (*TestHelper, error) {
	k8sClient, err := createK8sClient(config.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("creating k8s client: %w", err)
	}
	return &TestHelper{config: config, k8sClient: k8sClient}, nil
}

func createK8sClient(kubeconfigPath string) (kubernetes.Interface, error) {
	var config *rest.Config
	var err error

	if kubeconfigPath == "" {
		if home := os.Getenv("HOME"); home != "" {
			defaultPath := filepath.Join(home, ".kube", "config")
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				kubeconfigPath = defaultPath
			}
		}
	}

	if kubeconfigPath != "" {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	} else {
		config, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("building config: %w", err)
	}

	return kubernetes.NewForConfig(config)
}

// VerifyPrerequisites checks that a running memory-hog pod answers /ready.
func (h *TestHelper) VerifyPrerequisites(ctx context.Context) error {
	pod, err := h.Pod(ctx)
	if err != nil {
		return err
	}
	_, err = h.k8sClient.CoreV1().Pods(h.config.Namespace).
		ProxyGet("http", pod.Name, h.config.StatusPort, "/ready", nil).
		DoRaw(ctx)
	if err != nil {
		return fmt.Errorf("pod %s not ready: %w", pod.Name, err)
	}
	return nil
}

// Pod returns the first running memory-hog pod.
func (h *TestHelper) Pod(ctx context.Context) (*corev1.Pod, error) {
	pods, err := h.k8sClient.CoreV1().Pods(h.config.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: h.config.PodSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}
	for i := range pods.Items {
		if pods.Items[i].Status.Phase == corev1.PodRunning {
			return &pods.Items[i], nil
		}
	}
	return nil, fmt.Errorf("no running pod matches %q in %s", h.config.PodSelector, h.config.Namespace)
}

// MemoryLimit returns the container's current spec memory limit.
func (h *TestHelper) MemoryLimit(pod *corev1.Pod) (resource.Quantity, error) {
	for _, c := range pod.Spec.Containers {
		if c.Name == h.config.Container {
			if q, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
				return q, nil
			}
			return resource.Quantity{}, fmt.Errorf("container %s has no memory limit", c.Name)
		}
	}
	return resource.Quantity{}, fmt.Errorf("container %s not found in pod %s", h.config.Container, pod.Name)
}

// ResizeMemory patches the container's memory request and limit in place.
func (h *TestHelper) ResizeMemory(ctx context.Context, pod string, limit resource.Quantity) error {
	patch := map[string]any{
		"spec": map[string]any{
			"containers": []map[string]any{{
				"name": h.config.Container,
				"resources": map[string]any{
					"requests": map[string]string{"memory": limit.String()},
					"limits":   map[string]string{"memory": limit.String()},
				},
			}},
		},
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}

	var subresources []string
	if h.config.ResizeSubresource {
		subresources = append(subresources, "resize")
	}
	_, err = h.k8sClient.CoreV1().Pods(h.config.Namespace).
		Patch(ctx, pod, types.StrategicMergePatchType, body, metav1.PatchOptions{}, subresources...)
	if err != nil {
		return fmt.Errorf("resizing %s to %s: %w", pod, limit.String(), err)
	}
	return nil
}

// Status fetches /api/v1/status through the API server pod proxy.
func (h *TestHelper) Status(ctx context.Context, pod string) (*api.StatusResponse, error) {
	raw, err := h.k8sClient.CoreV1().Pods(h.config.Namespace).
		ProxyGet("http", pod, h.config.StatusPort, "/api/v1/status", nil).
		DoRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching status: %w", err)
	}
	var status api.StatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	return &status, nil
}

// WaitForStatus polls status until cond holds or timeout passes.
func (h *TestHelper) WaitForStatus(ctx context.Context, pod string, timeout time.Duration, cond func(*api.StatusResponse) bool) (*api.StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var last *api.StatusResponse
	for {
		if status, err := h.Status(ctx, pod); err == nil {
			last = status
			if cond(status) {
				return status, nil
			}
		}
		select {
		case <-ctx.Done():
			if last == nil {
				return nil, fmt.Errorf("no status from %s: %w", pod, ctx.Err())
			}
			return last, fmt.Errorf("condition not met (state=%s allocation=%d): %w", last.State, last.AllocationBytes, ctx.Err())
		case <-ticker.C:
		}
	}
}
