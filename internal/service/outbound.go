package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stockyard/internal/client/crm"
)

// OutboundService pushes local changes back to the CRM. Callers commit
// locally first; the push is best-effort and a failure never unwinds the
// local write — retry happens on the next scheduled sync at the latest.
type OutboundService struct {
	CRM    CRMAPI
	Logger *zap.Logger
	// CreateDeals gates remote deal creation. Disabled, CreateDeal is a
	// silent no-op so callers can invoke it unconditionally.
	CreateDeals bool
}

// PushListingFields patches only the caller-provided fields so remote-only
// fields the local model does not track are never clobbered.
func (s *OutboundService) PushListingFields(ctx context.Context, externalID string, fields map[string]any) error {
	if externalID == "" || len(fields) == 0 {
		return nil
	}
	record := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		record[k] = v
	}
	record["id"] = externalID

	_, err := s.CRM.UpsertRecords(ctx, crm.ModuleListings, []map[string]any{record}, nil)
	if err != nil {
		s.Logger.Warn("listing field push failed",
			zap.String("external_id", externalID), zap.Error(err))
		return fmt.Errorf("push listing fields: %w", err)
	}
	return nil
}

// DealFields is the sparse remote payload for a new CRM deal.
type DealFields struct {
	Name              string
	Stage             string
	Amount            string
	ListingExternalID string
}

// CreateDeal creates the CRM work-item for a bid and returns its remote id.
// With the feature disabled it returns ("", nil).
func (s *OutboundService) CreateDeal(ctx context.Context, deal DealFields) (string, error) {
	if !s.CreateDeals {
		return "", nil
	}
	record := map[string]any{
		"Deal_Name": deal.Name,
		"Stage":     deal.Stage,
	}
	if deal.Amount != "" {
		record["Amount"] = deal.Amount
	}
	if deal.ListingExternalID != "" {
		record["Listing"] = map[string]any{"id": deal.ListingExternalID}
	}

	ids, err := s.CRM.UpsertRecords(ctx, crm.ModuleDeals, []map[string]any{record}, []string{"workflow"})
	if err != nil {
		s.Logger.Warn("deal creation failed", zap.String("name", deal.Name), zap.Error(err))
		return "", fmt.Errorf("create deal: %w", err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("create deal: empty response")
	}
	return ids[0], nil
}
