package repository

import (
	"context"

	"stockyard/internal/models"
)

// Repository is the storage surface the sync core depends on. The gorm
// implementation lives in repository/gorm; tests substitute an in-memory
// stub.
type Repository interface {
	// Listings. Upserts key on ExternalID; updateVisibility is false in
	// decoupled mode so sync never writes the visible flag.
	GetListingByExternalID(ctx context.Context, externalID string) (*models.Listing, error)
	UpsertListing(ctx context.Context, item *models.Listing, updateVisibility bool) error
	DeactivateListingsNotSeen(ctx context.Context, seenExternalIDs []string, updateVisibility bool) (int64, error)
	DeactivateListingsByExternalIDs(ctx context.Context, externalIDs []string, updateVisibility bool) (int64, error)
	DeleteListingsByExternalIDs(ctx context.Context, externalIDs []string) (int64, error)
	// ListingExternalIDsWithDependents partitions remote-deleted ids in
	// bulk: the returned subset has bids that block a hard delete.
	ListingExternalIDsWithDependents(ctx context.Context, externalIDs []string) ([]string, error)

	// Sellers.
	FindSellerIDByExternalID(ctx context.Context, externalID string) (uint64, error)
	GetSellerByExternalID(ctx context.Context, externalID string) (*models.Seller, error)
	UpdateSeller(ctx context.Context, item *models.Seller) error

	// Bids and watch-list, read by the notification audience queries and
	// written by the deal reconciler.
	GetBidByDealExternalID(ctx context.Context, dealExternalID string) (*models.Bid, error)
	UpdateBidStatus(ctx context.Context, bidID uint64, status string) error
	ListPendingBidderIDs(ctx context.Context, listingID uint64) ([]uint64, error)
	ListWatcherIDs(ctx context.Context, listingID uint64) ([]uint64, error)
	ListRecentBuyerIDs(ctx context.Context, sellerID uint64, limit int) ([]uint64, error)

	// Sync runs (checkpoint log, append-only).
	InsertSyncRun(ctx context.Context, item *models.SyncRun) error
	LatestSyncRun(ctx context.Context, jobTypes, statuses []string) (*models.SyncRun, error)
	ListSyncRuns(ctx context.Context, limit, offset int) ([]models.SyncRun, error)
}
