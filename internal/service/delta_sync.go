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
	"stockyard/internal/notify"
	"stockyard/internal/repository"
)

// DeltaSyncService pulls only records changed since the last usable
// checkpoint, diffs them against local state to drive notifications, and
// reconciles remote deletions. Whenever the incremental path cannot run or
// breaks, it degrades to a full sync so a tick always makes progress.
type DeltaSyncService struct {
	Store      repository.Repository
	CRM        CRMAPI
	Cache      *SellerCache
	Full       *FullSyncService
	Dispatcher *notify.Dispatcher
	Logger     *zap.Logger
	Sync       config.SyncConfig
	CRMCfg     config.CRMConfig
}

func (s *DeltaSyncService) pageSize() int {
	if s.CRMCfg.PageSize > 0 {
		return s.CRMCfg.PageSize
	}
	return 200
}

func (s *DeltaSyncService) Run(ctx context.Context) (SyncStats, error) {
	checkpoint, err := s.Store.LatestSyncRun(ctx,
		[]string{models.SyncJobFull, models.SyncJobDelta},
		[]string{models.SyncStatusSuccess, models.SyncStatusPartial})
	if err != nil {
		s.Logger.Warn("checkpoint lookup failed, falling back to full sync", zap.Error(err))
		return s.Full.RunFallback(ctx)
	}
	if checkpoint == nil {
		s.Logger.Info("no usable checkpoint, falling back to full sync")
		return s.Full.RunFallback(ctx)
	}

	since := checkpoint.CreatedAt
	stats, err := s.runDelta(ctx, since)
	if err != nil {
		// A failed delta attempt leaves the checkpoint untouched; the full
		// pass below writes its own run and keeps sync moving forward.
		s.Logger.Warn("delta sync failed, falling back to full sync",
			zap.Time("since", since), zap.Error(err))
		return s.Full.RunFallback(ctx)
	}
	return stats, nil
}

func (s *DeltaSyncService) runDelta(ctx context.Context, since time.Time) (SyncStats, error) {
	stats := SyncStats{Mode: models.SyncModeDelta}
	visMode := mapper.ParseVisibilityMode(s.Sync.VisibilityMode)

	page := 1
	for {
		recordPage, err := s.CRM.ListRecords(ctx, crm.ModuleListings, page, s.pageSize(), &since)
		if err != nil {
			return stats, err
		}
		if len(recordPage.Data) == 0 {
			break
		}
		for _, raw := range recordPage.Data {
			s.syncChangedRecord(ctx, raw, visMode, &stats)
		}
		if !recordPage.MoreRecords {
			break
		}
		page++
	}

	removed, err := s.reconcileDeleted(ctx, since, visMode)
	if err != nil {
		return stats, err
	}
	stats.Removed = removed

	s.writeRun(ctx, stats.status(), stats)
	return stats, nil
}

// syncChangedRecord reconciles one changed record. The prior local row is
// read before the upsert; the notification diff depends on that ordering.
func (s *DeltaSyncService) syncChangedRecord(ctx context.Context, raw json.RawMessage, visMode mapper.VisibilityMode, stats *SyncStats) {
	stats.Total++

	rec, err := crm.ParseListing(raw)
	if err != nil {
		stats.Errors++
		s.Logger.Warn("listing record rejected", zap.Error(err))
		return
	}

	vendorID := ""
	if rec.Vendor != nil {
		vendorID = rec.Vendor.ID
	}
	sellerID, err := s.Cache.Resolve(ctx, s.Store, vendorID)
	if err != nil {
		stats.Errors++
		s.Logger.Warn("seller resolution failed", zap.String("external_id", rec.ID), zap.Error(err))
		return
	}
	if sellerID == 0 {
		stats.Skipped++
		return
	}

	prior, err := s.Store.GetListingByExternalID(ctx, rec.ID)
	if err != nil {
		stats.Errors++
		s.Logger.Warn("prior listing read failed", zap.String("external_id", rec.ID), zap.Error(err))
		return
	}

	listing := mapper.ListingFromRecord(raw, rec, visMode, time.Now().UTC())
	listing.SellerID = sellerID
	if err := s.Store.UpsertListing(ctx, &listing, visMode == mapper.VisibilityCoupled); err != nil {
		stats.Errors++
		s.Logger.Warn("listing upsert failed", zap.String("external_id", rec.ID), zap.Error(err))
		return
	}
	stats.Synced++

	s.dispatchDiffNotifications(ctx, prior, listing, sellerID)
}

// dispatchDiffNotifications evaluates the three independent side-effect
// conditions. All dispatch is fire-and-forget; nothing here may propagate
// back into the sync control flow.
func (s *DeltaSyncService) dispatchDiffNotifications(ctx context.Context, prior *models.Listing, current models.Listing, sellerID uint64) {
	if s.Dispatcher == nil {
		return
	}

	// New listing, currently visible: tell a bounded sample of the
	// seller's prior counterparties.
	if prior == nil {
		if current.Visible && current.Active {
			buyerIDs, err := s.Store.ListRecentBuyerIDs(ctx, sellerID, s.Sync.NewListingFanout)
			if err != nil {
				s.Logger.Warn("new-listing audience query failed", zap.Error(err))
				return
			}
			listingID := s.lookupListingID(ctx, current)
			for _, buyerID := range buyerIDs {
				s.Dispatcher.Enqueue(notify.Notification{
					Kind:        notify.KindNewListing,
					RecipientID: buyerID,
					ListingID:   listingID,
				})
			}
		}
		return
	}

	if prior.Price == nil || current.Price == nil || prior.Price.Equal(*current.Price) {
		return
	}
	direction := notify.DirectionIncreased
	if current.Price.LessThan(*prior.Price) {
		direction = notify.DirectionDecreased
	}

	// Price change: every holder of an outstanding pending bid.
	notified := make(map[uint64]struct{})
	bidderIDs, err := s.Store.ListPendingBidderIDs(ctx, prior.ID)
	if err != nil {
		s.Logger.Warn("pending bidder audience query failed", zap.Uint64("listing_id", prior.ID), zap.Error(err))
	} else {
		for _, bidderID := range bidderIDs {
			notified[bidderID] = struct{}{}
			s.Dispatcher.Enqueue(notify.Notification{
				Kind:        notify.KindPriceChange,
				RecipientID: bidderID,
				ListingID:   prior.ID,
				Direction:   direction,
			})
		}
	}

	// Price drop: watchers too, minus anyone already pinged above.
	if direction != notify.DirectionDecreased {
		return
	}
	watcherIDs, err := s.Store.ListWatcherIDs(ctx, prior.ID)
	if err != nil {
		s.Logger.Warn("watcher audience query failed", zap.Uint64("listing_id", prior.ID), zap.Error(err))
		return
	}
	for _, watcherID := range watcherIDs {
		if _, dup := notified[watcherID]; dup {
			continue
		}
		s.Dispatcher.Enqueue(notify.Notification{
			Kind:        notify.KindPriceDrop,
			RecipientID: watcherID,
			ListingID:   prior.ID,
			Direction:   notify.DirectionDecreased,
		})
	}
}

// lookupListingID fetches the local id of a just-inserted listing for the
// notification payload. Failure degrades to id 0, never to an error.
func (s *DeltaSyncService) lookupListingID(ctx context.Context, current models.Listing) uint64 {
	if current.ID != 0 {
		return current.ID
	}
	if current.ExternalID == nil {
		return 0
	}
	inserted, err := s.Store.GetListingByExternalID(ctx, *current.ExternalID)
	if err != nil || inserted == nil {
		return 0
	}
	return inserted.ID
}

// reconcileDeleted partitions remote deletions in bulk: listings with
// dependent bids are deactivated, the rest are hard-deleted.
func (s *DeltaSyncService) reconcileDeleted(ctx context.Context, since time.Time, visMode mapper.VisibilityMode) (int64, error) {
	deletedIDs, err := s.CRM.ListDeletedIDs(ctx, crm.ModuleListings, &since)
	if err != nil {
		return 0, err
	}
	if len(deletedIDs) == 0 {
		return 0, nil
	}

	withDeps, err := s.Store.ListingExternalIDsWithDependents(ctx, deletedIDs)
	if err != nil {
		return 0, err
	}
	depSet := make(map[string]struct{}, len(withDeps))
	for _, id := range withDeps {
		depSet[id] = struct{}{}
	}
	hardDelete := make([]string, 0, len(deletedIDs))
	for _, id := range deletedIDs {
		if _, ok := depSet[id]; !ok {
			hardDelete = append(hardDelete, id)
		}
	}

	var removed int64
	deactivated, err := s.Store.DeactivateListingsByExternalIDs(ctx, withDeps, visMode == mapper.VisibilityCoupled)
	if err != nil {
		return removed, err
	}
	removed += deactivated

	deleted, err := s.Store.DeleteListingsByExternalIDs(ctx, hardDelete)
	if err != nil {
		return removed, err
	}
	removed += deleted

	return removed, nil
}

func (s *DeltaSyncService) writeRun(ctx context.Context, status string, stats SyncStats) {
	details, err := json.Marshal(stats)
	if err != nil {
		details = []byte("{}")
	}
	run := &models.SyncRun{
		JobType:     models.SyncJobDelta,
		Status:      status,
		Mode:        stats.Mode,
		RecordCount: stats.Synced,
		Details:     datatypes.JSON(details),
	}
	if err := s.Store.InsertSyncRun(ctx, run); err != nil {
		s.Logger.Error("sync run checkpoint write failed", zap.Error(err))
	}
}
