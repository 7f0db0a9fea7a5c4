package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"stockyard/internal/client/crm"
	"stockyard/internal/config"
	"stockyard/internal/mapper"
	"stockyard/internal/models"
	"stockyard/internal/repository"
)

// Advisory lock names shared by the cron jobs and the manual triggers.
const (
	JobFullSync  = "full_sync"
	JobDeltaSync = "delta_sync"
)

// CRMAPI is the remote surface the sync engines consume. *crm.Client
// implements it; tests substitute a stub.
type CRMAPI interface {
	ListRecords(ctx context.Context, module string, page, perPage int, modifiedSince *time.Time) (*crm.RecordPage, error)
	GetRecord(ctx context.Context, module, id string) (json.RawMessage, error)
	UpsertRecords(ctx context.Context, module string, records []map[string]any, triggers []string) ([]string, error)
	ListDeletedIDs(ctx context.Context, module string, since *time.Time) ([]string, error)
	ListAttachments(ctx context.Context, module, id string) ([]crm.Attachment, error)
	AttachmentURL(module, recordID, attachmentID string) string
}

// SyncStats is the structured run summary persisted in the checkpoint row.
type SyncStats struct {
	Synced  int    `json:"synced"`
	Skipped int    `json:"skipped"`
	Errors  int    `json:"errors"`
	Removed int64  `json:"removed"`
	Total   int    `json:"total"`
	Mode    string `json:"mode"`
}

// status derives the checkpoint status for a completed batch. The error
// status is reserved for runs whose batch fetch itself failed.
func (s SyncStats) status() string {
	if s.Errors == 0 {
		return models.SyncStatusSuccess
	}
	return models.SyncStatusPartial
}

// FullSyncService re-pulls the whole remote listing collection, reconciles
// every record into local storage and deactivates listings that disappeared
// remotely. Pagination is sequential: remote rate limits and the seller
// cache population order both depend on it.
type FullSyncService struct {
	Store  repository.Repository
	CRM    CRMAPI
	Cache  *SellerCache
	Logger *zap.Logger
	Sync   config.SyncConfig
	CRMCfg config.CRMConfig
}

func (s *FullSyncService) pageSize() int {
	if s.CRMCfg.PageSize > 0 {
		return s.CRMCfg.PageSize
	}
	return 200
}

// Run executes a scheduled full sync.
func (s *FullSyncService) Run(ctx context.Context) (SyncStats, error) {
	return s.run(ctx, models.SyncModeFull)
}

// RunFallback executes a full sync on behalf of a failed or impossible
// delta attempt.
func (s *FullSyncService) RunFallback(ctx context.Context) (SyncStats, error) {
	return s.run(ctx, models.SyncModeFullFallback)
}

func (s *FullSyncService) run(ctx context.Context, mode string) (SyncStats, error) {
	stats := SyncStats{Mode: mode}
	visMode := mapper.ParseVisibilityMode(s.Sync.VisibilityMode)
	seenActive := make([]string, 0, 256)

	page := 1
	for {
		recordPage, err := s.CRM.ListRecords(ctx, crm.ModuleListings, page, s.pageSize(), nil)
		if err != nil {
			// The batch fetch itself failed: record an error run with no
			// partial progress and stop.
			s.Logger.Error("full sync page fetch failed", zap.Int("page", page), zap.Error(err))
			s.writeRun(ctx, models.SyncStatusError, stats)
			return stats, err
		}
		if len(recordPage.Data) == 0 {
			break
		}
		for _, raw := range recordPage.Data {
			if extID, active := s.syncListingRecord(ctx, raw, visMode, &stats); active {
				seenActive = append(seenActive, extID)
			}
		}
		if !recordPage.MoreRecords {
			break
		}
		page++
	}

	removed, err := s.Store.DeactivateListingsNotSeen(ctx, seenActive, visMode == mapper.VisibilityCoupled)
	if err != nil {
		s.Logger.Error("deactivate missing listings failed", zap.Error(err))
		stats.Errors++
	}
	stats.Removed = removed

	s.writeRun(ctx, stats.status(), stats)
	return stats, nil
}

// syncListingRecord reconciles one fetched record. Errors are isolated into
// the counters; the batch always continues. It reports the external id and
// whether the record belongs to the remote active set.
func (s *FullSyncService) syncListingRecord(ctx context.Context, raw json.RawMessage, visMode mapper.VisibilityMode, stats *SyncStats) (string, bool) {
	stats.Total++

	rec, err := crm.ParseListing(raw)
	if err != nil {
		stats.Errors++
		s.Logger.Warn("listing record rejected", zap.Error(err))
		return "", false
	}
	remoteActive := rec.Active == nil || *rec.Active

	vendorID := ""
	if rec.Vendor != nil {
		vendorID = rec.Vendor.ID
	}
	sellerID, err := s.Cache.Resolve(ctx, s.Store, vendorID)
	if err != nil {
		stats.Errors++
		s.Logger.Warn("seller resolution failed", zap.String("external_id", rec.ID), zap.Error(err))
		return rec.ID, remoteActive
	}
	if sellerID == 0 {
		// Not onboarded locally yet. Skip, do not create; the record heals
		// on a later run once the seller exists.
		stats.Skipped++
		return rec.ID, remoteActive
	}

	listing := mapper.ListingFromRecord(raw, rec, visMode, time.Now().UTC())
	listing.SellerID = sellerID
	s.attachPhoto(ctx, &listing, rec.ID)

	if err := s.Store.UpsertListing(ctx, &listing, visMode == mapper.VisibilityCoupled); err != nil {
		stats.Errors++
		s.Logger.Warn("listing upsert failed", zap.String("external_id", rec.ID), zap.Error(err))
		return rec.ID, remoteActive
	}
	stats.Synced++
	return rec.ID, remoteActive
}

// attachPhoto fetches attachment metadata best-effort; failure never fails
// the record.
func (s *FullSyncService) attachPhoto(ctx context.Context, listing *models.Listing, externalID string) {
	if !s.Sync.FetchPhotos {
		return
	}
	atts, err := s.CRM.ListAttachments(ctx, crm.ModuleListings, externalID)
	if err != nil {
		s.Logger.Debug("attachment fetch failed", zap.String("external_id", externalID), zap.Error(err))
		return
	}
	if len(atts) == 0 {
		return
	}
	url := s.CRM.AttachmentURL(crm.ModuleListings, externalID, atts[0].ID)
	listing.PhotoURL = &url
}

func (s *FullSyncService) writeRun(ctx context.Context, status string, stats SyncStats) {
	details, err := json.Marshal(stats)
	if err != nil {
		details = []byte("{}")
	}
	run := &models.SyncRun{
		JobType:     models.SyncJobFull,
		Status:      status,
		Mode:        stats.Mode,
		RecordCount: stats.Synced,
		Details:     datatypes.JSON(details),
	}
	if err := s.Store.InsertSyncRun(ctx, run); err != nil {
		s.Logger.Error("sync run checkpoint write failed", zap.Error(err))
	}
}
