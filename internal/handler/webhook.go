package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockyard/internal/client/crm"
)

type webhookPayload struct {
	Module   string `json:"module"`
	RecordID string `json:"record_id"`
	Action   string `json:"action"`
}

// WebhookReconciler is the ingest surface the webhook endpoint drives.
// *service.WebhookIngestService implements it.
type WebhookReconciler interface {
	ReconcileListing(ctx context.Context, externalID string) error
	ReconcileSeller(ctx context.Context, externalID string) error
	ReconcileDealStatus(ctx context.Context, externalID string) error
}

// WebhookHandler receives CRM push notifications and reconciles the named
// record through the ingest service. Delivery is at-least-once on the CRM
// side, so every branch here is idempotent.
type WebhookHandler struct {
	Ingest WebhookReconciler
	Secret string
	Logger *zap.Logger
}

func (h *WebhookHandler) Register(r *gin.Engine) {
	r.POST("/webhooks/crm", h.receive)
}

func (h *WebhookHandler) receive(c *gin.Context) {
	if h.Secret == "" {
		h.Logger.Warn("webhook secret not configured, accepting unauthenticated event")
	} else if c.GetHeader("X-Webhook-Token") != h.Secret {
		Error(c, http.StatusUnauthorized, "invalid webhook token", nil)
		return
	}

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		Error(c, http.StatusBadRequest, "malformed payload", nil)
		return
	}
	if strings.TrimSpace(payload.RecordID) == "" {
		Error(c, http.StatusBadRequest, "record_id required", nil)
		return
	}

	ctx := c.Request.Context()
	var err error
	switch payload.Module {
	case crm.ModuleListings:
		err = h.Ingest.ReconcileListing(ctx, payload.RecordID)
	case crm.ModuleVendors:
		err = h.Ingest.ReconcileSeller(ctx, payload.RecordID)
	case crm.ModuleDeals:
		err = h.Ingest.ReconcileDealStatus(ctx, payload.RecordID)
	default:
		h.Logger.Info("webhook for unhandled module, ignoring",
			zap.String("module", payload.Module), zap.String("record_id", payload.RecordID))
		Ok(c, gin.H{"handled": false}, nil)
		return
	}
	if err != nil {
		h.Logger.Error("webhook reconcile failed",
			zap.String("module", payload.Module), zap.String("record_id", payload.RecordID), zap.Error(err))
		Error(c, http.StatusInternalServerError, "reconcile failed", nil)
		return
	}
	Ok(c, gin.H{"handled": true}, nil)
}
