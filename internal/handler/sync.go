package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockyard/internal/dblock"
	"stockyard/internal/repository"
	"stockyard/internal/service"
)

// SyncHandler exposes the manual sync triggers and the run history. The
// triggers take the same advisory locks as the cron jobs, so a manual kick
// never overlaps a scheduled run.
type SyncHandler struct {
	Repo   repository.Repository
	Full   *service.FullSyncService
	Delta  *service.DeltaSyncService
	Locker dblock.Locker
	Logger *zap.Logger
}

func (h *SyncHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/sync")
	g.POST("/full", h.triggerFull)
	g.POST("/delta", h.triggerDelta)
	g.GET("/runs", h.listRuns)
}

func (h *SyncHandler) triggerFull(c *gin.Context) {
	h.trigger(c, service.JobFullSync, h.Full.Run)
}

func (h *SyncHandler) triggerDelta(c *gin.Context) {
	h.trigger(c, service.JobDeltaSync, h.Delta.Run)
}

func (h *SyncHandler) trigger(c *gin.Context, job string, run func(context.Context) (service.SyncStats, error)) {
	var stats service.SyncStats
	ran, err := dblock.RunExclusive(c.Request.Context(), h.Locker, h.Logger, job, func(ctx context.Context) error {
		var runErr error
		stats, runErr = run(ctx)
		return runErr
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if !ran {
		Error(c, http.StatusConflict, "another run holds the lock", map[string]any{"job": job})
		return
	}
	Ok(c, stats, nil)
}

func (h *SyncHandler) listRuns(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	runs, err := h.Repo.ListSyncRuns(c.Request.Context(), limit, offset)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, runs, map[string]any{"limit": limit, "offset": offset})
}
