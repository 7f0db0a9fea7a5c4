// Package mapper translates remote CRM record shapes into local models.
// Every function here is pure and total: dirty or missing remote fields
// degrade to nil/defaults and never abort a batch.
package mapper

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"stockyard/internal/client/crm"
	"stockyard/internal/models"
)

type VisibilityMode string

const (
	// VisibilityCoupled mirrors the remote active flag into Listing.Visible.
	VisibilityCoupled VisibilityMode = "coupled"
	// VisibilityDecoupled leaves Listing.Visible to local moderation; sync
	// never writes it.
	VisibilityDecoupled VisibilityMode = "decoupled"
)

func ParseVisibilityMode(s string) VisibilityMode {
	if strings.EqualFold(strings.TrimSpace(s), string(VisibilityDecoupled)) {
		return VisibilityDecoupled
	}
	return VisibilityCoupled
}

// ListingFromRecord maps one CRM listing onto the local shape. SellerID is
// left zero; the caller resolves it before persisting. In decoupled mode the
// Visible value here is a placeholder the storage layer must not write.
func ListingFromRecord(raw json.RawMessage, rec crm.ListingRecord, mode VisibilityMode, now time.Time) models.Listing {
	listing := models.Listing{
		ExternalID:       strPtr(rec.ID),
		Title:            rec.Name,
		Description:      strPtrOrNil(rec.Description),
		Condition:        strPtrOrNil(rec.Condition),
		Price:            DecimalFromRaw(rec.Price),
		Currency:         "USD",
		Active:           rec.Active == nil || *rec.Active,
		Visible:          true,
		ListedAt:         TimeFromRaw(rec.ListedDate),
		RemoteModifiedAt: TimeFromRaw(rec.ModifiedTime),
		LastSeenAt:       now,
	}
	if cur := strings.TrimSpace(rec.Currency); cur != "" {
		listing.Currency = cur
	}
	if len(rec.Categories) > 0 {
		listing.Category = strPtrOrNil(rec.Categories[0])
		listing.CategoryList = strPtrOrNil(strings.Join(rec.Categories, ", "))
	}
	if mode == VisibilityCoupled {
		listing.Visible = listing.Active
	}
	if len(raw) > 0 {
		listing.RawJSON = datatypes.JSON(raw)
	}
	return listing
}

// MergeSeller applies the webhook enrichment allow-list: Name, Company,
// Email, Phone, Region. Non-empty remote values win; an empty remote value
// never clears a populated local field. Returns the merged seller and
// whether anything changed.
func MergeSeller(local models.Seller, rec crm.VendorRecord) (models.Seller, bool) {
	changed := false
	if v := strings.TrimSpace(rec.Name); v != "" && v != local.Name {
		local.Name = v
		changed = true
	}
	changed = mergeField(&local.Company, rec.Company) || changed
	changed = mergeField(&local.Email, rec.Email) || changed
	changed = mergeField(&local.Phone, rec.Phone) || changed
	changed = mergeField(&local.Region, rec.Region) || changed
	return local, changed
}

func mergeField(dst **string, remote string) bool {
	v := strings.TrimSpace(remote)
	if v == "" {
		return false
	}
	if *dst != nil && **dst == v {
		return false
	}
	value := v
	*dst = &value
	return true
}

// bidStatusByStage is the explicit CRM deal-stage vocabulary. Stages outside
// this table are ignored by the deal reconciler.
var bidStatusByStage = map[string]string{
	"Offer Made":   models.BidStatusPending,
	"Under Review": models.BidStatusPending,
	"Accepted":     models.BidStatusAccepted,
	"Closed Won":   models.BidStatusCompleted,
	"Closed Lost":  models.BidStatusDeclined,
	"Declined":     models.BidStatusDeclined,
	"Withdrawn":    models.BidStatusWithdrawn,
}

// BidStatusFromStage translates a CRM deal stage into the local bid state
// machine. ok is false for unrecognized stages.
func BidStatusFromStage(stage string) (string, bool) {
	status, ok := bidStatusByStage[strings.TrimSpace(stage)]
	return status, ok
}

// DecimalFromRaw coerces a raw JSON value into a decimal. Numbers and
// numeric strings parse; null, absent and junk all come back nil.
func DecimalFromRaw(raw json.RawMessage) *decimal.Decimal {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TimeFromRaw coerces a raw JSON value into a UTC timestamp. Unparseable
// values come back nil.
func TimeFromRaw(raw json.RawMessage) *time.Time {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}

func strPtrOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
