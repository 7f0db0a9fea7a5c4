package service

import (
	"context"
	"errors"
	"fmt"

	"stockyard/internal/models"
)

// stubRepo is a test-only in-memory implementation of
// repository.Repository, mirroring the gorm store's semantics closely
// enough for the sync engine tests.
type stubRepo struct {
	listings map[string]*models.Listing
	sellers  map[string]*models.Seller
	bids     []*models.Bid
	watches  []*models.WatchEntry
	runs     []*models.SyncRun

	nextListingID uint64

	failUpsertFor   map[string]bool
	failLatestRun   bool
	sellerLookups   int
	upsertCalls     int
	deactivatedExts []string
	deletedExts     []string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		listings:      make(map[string]*models.Listing),
		sellers:       make(map[string]*models.Seller),
		failUpsertFor: make(map[string]bool),
	}
}

func (r *stubRepo) addSeller(externalID string, id uint64, name string) {
	ext := externalID
	r.sellers[externalID] = &models.Seller{ID: id, ExternalID: &ext, Name: name}
}

func (r *stubRepo) addListing(externalID string, listing models.Listing) *models.Listing {
	ext := externalID
	listing.ExternalID = &ext
	if listing.ID == 0 {
		r.nextListingID++
		listing.ID = r.nextListingID
	} else if listing.ID > r.nextListingID {
		r.nextListingID = listing.ID
	}
	item := listing
	r.listings[externalID] = &item
	return r.listings[externalID]
}

func (r *stubRepo) GetListingByExternalID(ctx context.Context, externalID string) (*models.Listing, error) {
	item, ok := r.listings[externalID]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (r *stubRepo) UpsertListing(ctx context.Context, item *models.Listing, updateVisibility bool) error {
	r.upsertCalls++
	if item == nil || item.ExternalID == nil {
		return nil
	}
	ext := *item.ExternalID
	if r.failUpsertFor[ext] {
		return fmt.Errorf("stub: upsert refused for %s", ext)
	}
	existing, ok := r.listings[ext]
	if !ok {
		r.nextListingID++
		copied := *item
		copied.ID = r.nextListingID
		r.listings[ext] = &copied
		item.ID = copied.ID
		return nil
	}
	visible := existing.Visible
	id := existing.ID
	copied := *item
	copied.ID = id
	if !updateVisibility {
		copied.Visible = visible
	}
	r.listings[ext] = &copied
	item.ID = id
	return nil
}

func (r *stubRepo) DeactivateListingsNotSeen(ctx context.Context, seen []string, updateVisibility bool) (int64, error) {
	seenSet := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		seenSet[id] = struct{}{}
	}
	var n int64
	for ext, item := range r.listings {
		if !item.Active {
			continue
		}
		if _, ok := seenSet[ext]; ok {
			continue
		}
		item.Active = false
		if updateVisibility {
			item.Visible = false
		}
		n++
	}
	return n, nil
}

func (r *stubRepo) DeactivateListingsByExternalIDs(ctx context.Context, externalIDs []string, updateVisibility bool) (int64, error) {
	var n int64
	for _, ext := range externalIDs {
		item, ok := r.listings[ext]
		if !ok {
			continue
		}
		item.Active = false
		if updateVisibility {
			item.Visible = false
		}
		r.deactivatedExts = append(r.deactivatedExts, ext)
		n++
	}
	return n, nil
}

func (r *stubRepo) DeleteListingsByExternalIDs(ctx context.Context, externalIDs []string) (int64, error) {
	var n int64
	for _, ext := range externalIDs {
		if _, ok := r.listings[ext]; !ok {
			continue
		}
		delete(r.listings, ext)
		r.deletedExts = append(r.deletedExts, ext)
		n++
	}
	return n, nil
}

func (r *stubRepo) ListingExternalIDsWithDependents(ctx context.Context, externalIDs []string) ([]string, error) {
	dependent := map[string]bool{
		models.BidStatusPending:   true,
		models.BidStatusAccepted:  true,
		models.BidStatusCompleted: true,
	}
	var out []string
	for _, ext := range externalIDs {
		item, ok := r.listings[ext]
		if !ok {
			continue
		}
		for _, bid := range r.bids {
			if bid.ListingID == item.ID && dependent[bid.Status] {
				out = append(out, ext)
				break
			}
		}
	}
	return out, nil
}

func (r *stubRepo) FindSellerIDByExternalID(ctx context.Context, externalID string) (uint64, error) {
	r.sellerLookups++
	item, ok := r.sellers[externalID]
	if !ok {
		return 0, nil
	}
	return item.ID, nil
}

func (r *stubRepo) GetSellerByExternalID(ctx context.Context, externalID string) (*models.Seller, error) {
	item, ok := r.sellers[externalID]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (r *stubRepo) UpdateSeller(ctx context.Context, item *models.Seller) error {
	if item == nil || item.ExternalID == nil {
		return errors.New("stub: seller update without external id")
	}
	copied := *item
	r.sellers[*item.ExternalID] = &copied
	return nil
}

func (r *stubRepo) GetBidByDealExternalID(ctx context.Context, dealExternalID string) (*models.Bid, error) {
	for _, bid := range r.bids {
		if bid.DealExternalID != nil && *bid.DealExternalID == dealExternalID {
			copied := *bid
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) UpdateBidStatus(ctx context.Context, bidID uint64, status string) error {
	for _, bid := range r.bids {
		if bid.ID == bidID {
			bid.Status = status
			return nil
		}
	}
	return fmt.Errorf("stub: bid %d not found", bidID)
}

func (r *stubRepo) ListPendingBidderIDs(ctx context.Context, listingID uint64) ([]uint64, error) {
	seen := make(map[uint64]struct{})
	var out []uint64
	for _, bid := range r.bids {
		if bid.ListingID != listingID || bid.Status != models.BidStatusPending {
			continue
		}
		if _, dup := seen[bid.BuyerID]; dup {
			continue
		}
		seen[bid.BuyerID] = struct{}{}
		out = append(out, bid.BuyerID)
	}
	return out, nil
}

func (r *stubRepo) ListWatcherIDs(ctx context.Context, listingID uint64) ([]uint64, error) {
	var out []uint64
	for _, watch := range r.watches {
		if watch.ListingID == listingID {
			out = append(out, watch.BuyerID)
		}
	}
	return out, nil
}

func (r *stubRepo) ListRecentBuyerIDs(ctx context.Context, sellerID uint64, limit int) ([]uint64, error) {
	seen := make(map[uint64]struct{})
	var out []uint64
	for _, bid := range r.bids {
		if bid.Status != models.BidStatusAccepted && bid.Status != models.BidStatusCompleted {
			continue
		}
		var listing *models.Listing
		for _, item := range r.listings {
			if item.ID == bid.ListingID {
				listing = item
				break
			}
		}
		if listing == nil || listing.SellerID != sellerID {
			continue
		}
		if _, dup := seen[bid.BuyerID]; dup {
			continue
		}
		seen[bid.BuyerID] = struct{}{}
		out = append(out, bid.BuyerID)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *stubRepo) InsertSyncRun(ctx context.Context, item *models.SyncRun) error {
	copied := *item
	copied.ID = uint64(len(r.runs) + 1)
	r.runs = append(r.runs, &copied)
	return nil
}

func (r *stubRepo) LatestSyncRun(ctx context.Context, jobTypes, statuses []string) (*models.SyncRun, error) {
	if r.failLatestRun {
		return nil, errors.New("stub: checkpoint store down")
	}
	jobSet := make(map[string]struct{}, len(jobTypes))
	for _, jt := range jobTypes {
		jobSet[jt] = struct{}{}
	}
	statusSet := make(map[string]struct{}, len(statuses))
	for _, st := range statuses {
		statusSet[st] = struct{}{}
	}
	for i := len(r.runs) - 1; i >= 0; i-- {
		run := r.runs[i]
		if _, ok := jobSet[run.JobType]; !ok {
			continue
		}
		if _, ok := statusSet[run.Status]; !ok {
			continue
		}
		copied := *run
		return &copied, nil
	}
	return nil, nil
}

func (r *stubRepo) ListSyncRuns(ctx context.Context, limit, offset int) ([]models.SyncRun, error) {
	var out []models.SyncRun
	for i := len(r.runs) - 1; i >= 0; i-- {
		out = append(out, *r.runs[i])
	}
	return out, nil
}

func (r *stubRepo) lastRun() *models.SyncRun {
	if len(r.runs) == 0 {
		return nil
	}
	return r.runs[len(r.runs)-1]
}
