package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"stockyard/internal/config"
	"stockyard/internal/models"
)

func newWebhookIngest(repo *stubRepo, remote *stubCRM) *WebhookIngestService {
	return &WebhookIngestService{
		Store:  repo,
		CRM:    remote,
		Cache:  NewSellerCache(),
		Logger: zap.NewNop(),
		Sync:   config.SyncConfig{VisibilityMode: "coupled"},
	}
}

func TestReconcileListingUpserts(t *testing.T) {
	repo := newStubRepo()
	repo.addSeller("v-1", 7, "Hill Farm")
	remote := &stubCRM{
		records: map[string]json.RawMessage{
			"Listings/L-1": listingJSON("L-1", "Tractor", "v-1", "500", true),
		},
	}
	svc := newWebhookIngest(repo, remote)

	if err := svc.ReconcileListing(context.Background(), "L-1"); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	item := repo.listings["L-1"]
	if item == nil || item.SellerID != 7 || item.Title != "Tractor" {
		t.Fatalf("listing = %+v", item)
	}
}

func TestReconcileListingAbsentRemoteIsNoop(t *testing.T) {
	repo := newStubRepo()
	remote := &stubCRM{records: map[string]json.RawMessage{}}
	svc := newWebhookIngest(repo, remote)

	if err := svc.ReconcileListing(context.Background(), "L-gone"); err != nil {
		t.Fatalf("absent remote record must be benign: %v", err)
	}
	if len(repo.listings) != 0 || repo.upsertCalls != 0 {
		t.Fatalf("no-op must not mutate storage")
	}
}

func TestReconcileListingUnresolvedSellerIsNoop(t *testing.T) {
	repo := newStubRepo()
	remote := &stubCRM{
		records: map[string]json.RawMessage{
			"Listings/L-1": listingJSON("L-1", "Tractor", "v-unknown", "500", true),
		},
	}
	svc := newWebhookIngest(repo, remote)

	if err := svc.ReconcileListing(context.Background(), "L-1"); err != nil {
		t.Fatalf("unresolved seller must not error: %v", err)
	}
	if len(repo.listings) != 0 {
		t.Fatalf("skip policy must not create an entity")
	}
}

func TestReconcileListingRemoteErrorPropagates(t *testing.T) {
	repo := newStubRepo()
	remote := &stubCRM{getErr: errors.New("crm 500")}
	svc := newWebhookIngest(repo, remote)

	if err := svc.ReconcileListing(context.Background(), "L-1"); err == nil {
		t.Fatalf("non-benign remote errors must propagate for sender retry")
	}
}

func TestReconcileSellerMergesAllowList(t *testing.T) {
	repo := newStubRepo()
	repo.addSeller("v-1", 7, "Hill Farm")
	remote := &stubCRM{
		records: map[string]json.RawMessage{
			"Vendors/v-1": vendorJSON("v-1", "Hill Farm Equipment", "Hill Farm LLC", ""),
		},
	}
	svc := newWebhookIngest(repo, remote)

	if err := svc.ReconcileSeller(context.Background(), "v-1"); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	seller := repo.sellers["v-1"]
	if seller.Name != "Hill Farm Equipment" {
		t.Fatalf("name = %q", seller.Name)
	}
	if seller.Company == nil || *seller.Company != "Hill Farm LLC" {
		t.Fatalf("company = %#v", seller.Company)
	}
}

func TestReconcileSellerNeverCreates(t *testing.T) {
	repo := newStubRepo()
	remote := &stubCRM{
		records: map[string]json.RawMessage{
			"Vendors/v-new": vendorJSON("v-new", "Stranger", "", ""),
		},
	}
	svc := newWebhookIngest(repo, remote)

	if err := svc.ReconcileSeller(context.Background(), "v-new"); err != nil {
		t.Fatalf("unlinked vendor must be a no-op: %v", err)
	}
	if len(repo.sellers) != 0 {
		t.Fatalf("webhook must not create sellers")
	}
}

func TestReconcileDealStatusTransitions(t *testing.T) {
	repo := newStubRepo()
	deal := "D-1"
	repo.bids = append(repo.bids, &models.Bid{ID: 1, ListingID: 1, BuyerID: 21,
		Status: models.BidStatusPending, DealExternalID: &deal})
	remote := &stubCRM{
		records: map[string]json.RawMessage{
			"Deals/D-1": dealJSON("D-1", "Closed Won"),
		},
	}
	svc := newWebhookIngest(repo, remote)

	if err := svc.ReconcileDealStatus(context.Background(), "D-1"); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if repo.bids[0].Status != models.BidStatusCompleted {
		t.Fatalf("status = %q", repo.bids[0].Status)
	}
}

func TestReconcileDealStatusUnknownStageIgnored(t *testing.T) {
	repo := newStubRepo()
	deal := "D-1"
	repo.bids = append(repo.bids, &models.Bid{ID: 1, ListingID: 1, BuyerID: 21,
		Status: models.BidStatusPending, DealExternalID: &deal})
	remote := &stubCRM{
		records: map[string]json.RawMessage{
			"Deals/D-1": dealJSON("D-1", "Qualification"),
		},
	}
	svc := newWebhookIngest(repo, remote)

	if err := svc.ReconcileDealStatus(context.Background(), "D-1"); err != nil {
		t.Fatalf("unknown stage must be ignored, not an error: %v", err)
	}
	if repo.bids[0].Status != models.BidStatusPending {
		t.Fatalf("unknown stage must not change state")
	}
}

func TestReconcileDealStatusNoopWriteSuppressed(t *testing.T) {
	repo := newStubRepo()
	deal := "D-1"
	repo.bids = append(repo.bids, &models.Bid{ID: 1, ListingID: 1, BuyerID: 21,
		Status: models.BidStatusCompleted, DealExternalID: &deal})
	remote := &stubCRM{
		records: map[string]json.RawMessage{
			"Deals/D-1": dealJSON("D-1", "Closed Won"),
		},
	}
	svc := newWebhookIngest(repo, remote)

	if err := svc.ReconcileDealStatus(context.Background(), "D-1"); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if repo.bids[0].Status != models.BidStatusCompleted {
		t.Fatalf("status changed unexpectedly")
	}
}
