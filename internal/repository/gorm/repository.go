package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockyard/internal/models"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// listingSyncColumns are the columns a sync upsert is allowed to touch.
// "visible" is appended only in coupled visibility mode.
var listingSyncColumns = []string{
	"seller_id",
	"title",
	"description",
	"category",
	"category_list",
	"condition",
	"price",
	"currency",
	"active",
	"photo_url",
	"listed_at",
	"remote_modified_at",
	"last_seen_at",
	"raw_json",
	"updated_at",
}

func (s *Store) GetListingByExternalID(ctx context.Context, externalID string) (*models.Listing, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, nil
	}
	var item models.Listing
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertListing(ctx context.Context, item *models.Listing, updateVisibility bool) error {
	if item == nil || item.ExternalID == nil || strings.TrimSpace(*item.ExternalID) == "" {
		return nil
	}
	columns := listingSyncColumns
	if updateVisibility {
		columns = append(append([]string{}, listingSyncColumns...), "visible")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(item).Error
}

func (s *Store) DeactivateListingsNotSeen(ctx context.Context, seenExternalIDs []string, updateVisibility bool) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("active = ?", true).
		Where("external_id IS NOT NULL")
	if len(seenExternalIDs) > 0 {
		query = query.Where("external_id NOT IN ?", seenExternalIDs)
	}
	updates := map[string]any{"active": false}
	if updateVisibility {
		updates["visible"] = false
	}
	res := query.Updates(updates)
	return res.RowsAffected, res.Error
}

func (s *Store) DeactivateListingsByExternalIDs(ctx context.Context, externalIDs []string, updateVisibility bool) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	updates := map[string]any{"active": false}
	if updateVisibility {
		updates["visible"] = false
	}
	res := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("external_id IN ?", externalIDs).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteListingsByExternalIDs(ctx context.Context, externalIDs []string) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("external_id IN ?", externalIDs).
		Delete(&models.Listing{})
	return res.RowsAffected, res.Error
}

// dependentBidStatuses block a hard delete of the parent listing.
var dependentBidStatuses = []string{
	models.BidStatusPending,
	models.BidStatusAccepted,
	models.BidStatusCompleted,
}

func (s *Store) ListingExternalIDsWithDependents(ctx context.Context, externalIDs []string) ([]string, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Listing{}).
		Distinct("listings.external_id").
		Joins("JOIN bids ON bids.listing_id = listings.id").
		Where("listings.external_id IN ?", externalIDs).
		Where("bids.status IN ?", dependentBidStatuses).
		Pluck("listings.external_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) FindSellerIDByExternalID(ctx context.Context, externalID string) (uint64, error) {
	if strings.TrimSpace(externalID) == "" {
		return 0, nil
	}
	var item models.Seller
	err := s.db.WithContext(ctx).Select("id").Where("external_id = ?", externalID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return item.ID, nil
}

func (s *Store) GetSellerByExternalID(ctx context.Context, externalID string) (*models.Seller, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, nil
	}
	var item models.Seller
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateSeller(ctx context.Context, item *models.Seller) error {
	if item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) GetBidByDealExternalID(ctx context.Context, dealExternalID string) (*models.Bid, error) {
	if strings.TrimSpace(dealExternalID) == "" {
		return nil, nil
	}
	var item models.Bid
	err := s.db.WithContext(ctx).Where("deal_external_id = ?", dealExternalID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateBidStatus(ctx context.Context, bidID uint64, status string) error {
	return s.db.WithContext(ctx).Model(&models.Bid{}).
		Where("id = ?", bidID).
		Update("status", status).Error
}

func (s *Store) ListPendingBidderIDs(ctx context.Context, listingID uint64) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&models.Bid{}).
		Distinct("buyer_id").
		Where("listing_id = ?", listingID).
		Where("status = ?", models.BidStatusPending).
		Pluck("buyer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) ListWatcherIDs(ctx context.Context, listingID uint64) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&models.WatchEntry{}).
		Where("listing_id = ?", listingID).
		Pluck("buyer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) ListRecentBuyerIDs(ctx context.Context, sellerID uint64, limit int) ([]uint64, error) {
	if limit <= 0 {
		limit = 25
	}
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&models.Bid{}).
		Joins("JOIN listings ON listings.id = bids.listing_id").
		Where("listings.seller_id = ?", sellerID).
		Where("bids.status IN ?", []string{models.BidStatusAccepted, models.BidStatusCompleted}).
		Order("bids.created_at DESC").
		Limit(limit).
		Distinct("bids.buyer_id, bids.created_at").
		Pluck("bids.buyer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return dedupeIDs(ids), nil
}

func (s *Store) InsertSyncRun(ctx context.Context, item *models.SyncRun) error {
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) LatestSyncRun(ctx context.Context, jobTypes, statuses []string) (*models.SyncRun, error) {
	query := s.db.WithContext(ctx).Model(&models.SyncRun{})
	if len(jobTypes) > 0 {
		query = query.Where("job_type IN ?", jobTypes)
	}
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var item models.SyncRun
	err := query.Order("created_at DESC").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSyncRuns(ctx context.Context, limit, offset int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var items []models.SyncRun
	err := s.db.WithContext(ctx).Model(&models.SyncRun{}).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func dedupeIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
