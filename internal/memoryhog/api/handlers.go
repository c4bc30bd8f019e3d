// Package api provides HTTP handlers for the memory-hog component.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/container-resource-predictor/memory-hog/internal/cgroup"
	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/allocator"
	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/poller"
	units "github.com/docker/go-units"
	"github.com/gin-gonic/gin"
)

// SnapshotSource exposes the poll loop's published state.
type SnapshotSource interface {
	Snapshot() poller.Snapshot
}

// LimitReader reads memory.max on demand.
type LimitReader interface {
	ReadLimit(path cgroup.LimitPath) (cgroup.Limit, error)
}

// Handler provides HTTP handlers for memory-hog API.
type Handler struct {
	source SnapshotSource
	reader LimitReader
	path   cgroup.LimitPath
	mode   string
}

// NewHandler creates a new Handler. path is read by GET /api/v1/limit and
// mode is the host cgroup hierarchy mode reported in status.
func NewHandler(source SnapshotSource, reader LimitReader, path cgroup.LimitPath, mode string) *Handler {
	return &Handler{source: source, reader: reader, path: path, mode: mode}
}

// StatusResponse represents the current status.
type StatusResponse struct {
	poller.Snapshot
	AllocationHuman string `json:"allocationHuman"`
	TargetPercent   int    `json:"targetPercent"`
	PollInterval    string `json:"pollInterval"`
	HierarchyMode   string `json:"hierarchyMode"`
	Timestamp       string `json:"timestamp"`
}

// LimitResponse represents a fresh memory.max reading.
type LimitResponse struct {
	Path      string       `json:"path"`
	Limit     cgroup.Limit `json:"limit"`
	Unbounded bool         `json:"unbounded"`
	Target    int64        `json:"targetBytes,omitempty"`
	Timestamp string       `json:"timestamp"`
}

// GetStatus handles GET /api/v1/status
func (h *Handler) GetStatus(c *gin.Context) {
	snap := h.source.Snapshot()
	c.JSON(http.StatusOK, StatusResponse{
		Snapshot:        snap,
		AllocationHuman: units.BytesSize(float64(snap.AllocationBytes)),
		TargetPercent:   allocator.TargetPercent,
		PollInterval:    poller.PollInterval.String(),
		HierarchyMode:   h.mode,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	})
}

// GetLimit handles GET /api/v1/limit
func (h *Handler) GetLimit(c *gin.Context) {
	limit, err := h.reader.ReadLimit(h.path)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, cgroup.ErrMalformedLimit) || errors.Is(err, cgroup.ErrEmptyLimitFile) {
			code = http.StatusUnprocessableEntity
		}
		c.JSON(code, gin.H{"error": err.Error(), "path": h.path.String()})
		return
	}

	resp := LimitResponse{
		Path:      h.path.String(),
		Limit:     limit,
		Unbounded: limit.IsUnbounded(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if target, err := allocator.TargetSize(limit); err == nil {
		resp.Target = target
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers all memory-hog API routes.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/status", h.GetStatus)
		api.GET("/limit", h.GetLimit)
	}
}
