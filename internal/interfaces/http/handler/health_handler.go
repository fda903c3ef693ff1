package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/audithero/apostle-video-platform-sub004/internal/domain/shared"
	"github.com/audithero/apostle-video-platform-sub004/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// healthCheckTimeout bounds every dependency probe
const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// JobStatusProvider exposes the scheduler state
type JobStatusProvider interface {
	IsRunning() bool
}

// HealthHandler reports service liveness and dependency health
type HealthHandler struct {
	BaseHandler
	version string
	checks  map[string]HealthCheck
	jobs    JobStatusProvider
	clock   shared.Clock
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(version string, checks map[string]HealthCheck, jobs JobStatusProvider, clock shared.Clock) *HealthHandler {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &HealthHandler{
		version: version,
		checks:  checks,
		jobs:    jobs,
		clock:   clock,
	}
}

// RegisterRoutes mounts the health route
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}

// Health godoc
//
//	@ID				health
//	@Summary		Service health
//	@Description	503 when any dependency probe fails
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=dto.HealthResponse}
//	@Failure		503	{object}	dto.Response{data=dto.HealthResponse}
//	@Router			/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := dto.HealthResponse{
		Status:  "ok",
		Checks:  make(map[string]string, len(names)),
		Time:    h.clock().UTC(),
		Version: h.version,
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}
	if h.jobs != nil {
		resp.Scheduler = "stopped"
		if h.jobs.IsRunning() {
			resp.Scheduler = "running"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
