package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"stockyard/internal/client/crm"
	"stockyard/internal/config"
	"stockyard/internal/mapper"
	"stockyard/internal/repository"
)

// WebhookIngestService reconciles one record at a time in response to CRM
// push events. It reuses the mapper and the ExternalID upsert, so a webhook
// racing a scheduled run resolves at the storage layer (last commit wins).
type WebhookIngestService struct {
	Store  repository.Repository
	CRM    CRMAPI
	Cache  *SellerCache
	Logger *zap.Logger
	Sync   config.SyncConfig
}

// ReconcileListing pulls one remote listing and upserts it. A remote
// "record absent" signal and an unresolvable seller are both benign no-ops.
func (s *WebhookIngestService) ReconcileListing(ctx context.Context, externalID string) error {
	raw, err := s.CRM.GetRecord(ctx, crm.ModuleListings, externalID)
	if errors.Is(err, crm.ErrNotFound) {
		s.Logger.Info("webhook listing absent remotely, ignoring", zap.String("external_id", externalID))
		return nil
	}
	if err != nil {
		return err
	}
	rec, err := crm.ParseListing(raw)
	if err != nil {
		return err
	}

	vendorID := ""
	if rec.Vendor != nil {
		vendorID = rec.Vendor.ID
	}
	sellerID, err := s.Cache.Resolve(ctx, s.Store, vendorID)
	if err != nil {
		return err
	}
	if sellerID == 0 {
		s.Logger.Info("webhook listing seller not onboarded, skipping", zap.String("external_id", externalID))
		return nil
	}

	visMode := mapper.ParseVisibilityMode(s.Sync.VisibilityMode)
	listing := mapper.ListingFromRecord(raw, rec, visMode, time.Now().UTC())
	listing.SellerID = sellerID
	return s.Store.UpsertListing(ctx, &listing, visMode == mapper.VisibilityCoupled)
}

// ReconcileSeller enriches a local seller already linked to the CRM vendor.
// Webhooks never create sellers; onboarding owns that.
func (s *WebhookIngestService) ReconcileSeller(ctx context.Context, externalID string) error {
	raw, err := s.CRM.GetRecord(ctx, crm.ModuleVendors, externalID)
	if errors.Is(err, crm.ErrNotFound) {
		s.Logger.Info("webhook vendor absent remotely, ignoring", zap.String("external_id", externalID))
		return nil
	}
	if err != nil {
		return err
	}
	rec, err := crm.ParseVendor(raw)
	if err != nil {
		return err
	}

	local, err := s.Store.GetSellerByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if local == nil {
		s.Logger.Info("webhook vendor has no linked seller, skipping", zap.String("external_id", externalID))
		return nil
	}

	merged, changed := mapper.MergeSeller(*local, rec)
	if !changed {
		return nil
	}
	return s.Store.UpdateSeller(ctx, &merged)
}

// ReconcileDealStatus maps a CRM deal stage onto the local bid state
// machine. Unknown stages are logged and ignored; writes that would not
// change state are suppressed.
func (s *WebhookIngestService) ReconcileDealStatus(ctx context.Context, externalID string) error {
	raw, err := s.CRM.GetRecord(ctx, crm.ModuleDeals, externalID)
	if errors.Is(err, crm.ErrNotFound) {
		s.Logger.Info("webhook deal absent remotely, ignoring", zap.String("external_id", externalID))
		return nil
	}
	if err != nil {
		return err
	}
	rec, err := crm.ParseDeal(raw)
	if err != nil {
		return err
	}

	status, ok := mapper.BidStatusFromStage(rec.Stage)
	if !ok {
		s.Logger.Warn("unrecognized deal stage, ignoring",
			zap.String("external_id", externalID), zap.String("stage", rec.Stage))
		return nil
	}

	bid, err := s.Store.GetBidByDealExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if bid == nil {
		s.Logger.Info("webhook deal has no linked bid, skipping", zap.String("external_id", externalID))
		return nil
	}
	if bid.Status == status {
		return nil
	}
	return s.Store.UpdateBidStatus(ctx, bid.ID, status)
}
