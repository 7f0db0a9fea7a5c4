package crm

import (
	"encoding/json"
	"fmt"
)

// CRM module names. The webhook payload and every collection endpoint are
// addressed by these.
const (
	ModuleListings = "Listings"
	ModuleVendors  = "Vendors"
	ModuleDeals    = "Deals"
)

// LookupRef is the CRM's representation of a link to another record.
type LookupRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListingRecord is the tagged shape of one Listings record. Fields the CRM
// is known to deliver dirty (numbers as strings, junk dates) stay raw here
// and are coerced null-safely by the mapper.
type ListingRecord struct {
	ID           string          `json:"id"`
	Name         string          `json:"Name"`
	Description  string          `json:"Description"`
	Categories   []string        `json:"Categories"`
	Condition    string          `json:"Condition"`
	Price        json.RawMessage `json:"Price"`
	Currency     string          `json:"Currency"`
	Active       *bool           `json:"Active"`
	Vendor       *LookupRef      `json:"Vendor"`
	ListedDate   json.RawMessage `json:"Listed_Date"`
	ModifiedTime json.RawMessage `json:"Modified_Time"`
}

// VendorRecord is the tagged shape of one Vendors record.
type VendorRecord struct {
	ID      string `json:"id"`
	Name    string `json:"Name"`
	Company string `json:"Company"`
	Email   string `json:"Email"`
	Phone   string `json:"Phone"`
	Region  string `json:"Region"`
}

// DealRecord is the tagged shape of one Deals record, the CRM work-item
// tracking a marketplace bid.
type DealRecord struct {
	ID      string          `json:"id"`
	Name    string          `json:"Deal_Name"`
	Stage   string          `json:"Stage"`
	Amount  json.RawMessage `json:"Amount"`
	Listing *LookupRef      `json:"Listing"`
}

// RecordPage is one page of a collection read. Data stays raw so a single
// malformed record can be skipped without losing the page.
type RecordPage struct {
	Data        []json.RawMessage `json:"data"`
	Info        PageInfo          `json:"info"`
	MoreRecords bool              `json:"-"`
}

type PageInfo struct {
	Page        int  `json:"page"`
	PerPage     int  `json:"per_page"`
	Count       int  `json:"count"`
	MoreRecords bool `json:"more_records"`
}

// Attachment is subordinate file metadata on a record.
type Attachment struct {
	ID       string `json:"id"`
	FileName string `json:"File_Name"`
}

// ParseListing validates and decodes one raw Listings record.
func ParseListing(raw json.RawMessage) (ListingRecord, error) {
	var rec ListingRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ListingRecord{}, fmt.Errorf("decode listing record: %w", err)
	}
	if rec.ID == "" {
		return ListingRecord{}, fmt.Errorf("listing record missing id")
	}
	return rec, nil
}

// ParseVendor validates and decodes one raw Vendors record.
func ParseVendor(raw json.RawMessage) (VendorRecord, error) {
	var rec VendorRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return VendorRecord{}, fmt.Errorf("decode vendor record: %w", err)
	}
	if rec.ID == "" {
		return VendorRecord{}, fmt.Errorf("vendor record missing id")
	}
	return rec, nil
}

// ParseDeal validates and decodes one raw Deals record.
func ParseDeal(raw json.RawMessage) (DealRecord, error) {
	var rec DealRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return DealRecord{}, fmt.Errorf("decode deal record: %w", err)
	}
	if rec.ID == "" {
		return DealRecord{}, fmt.Errorf("deal record missing id")
	}
	return rec, nil
}
