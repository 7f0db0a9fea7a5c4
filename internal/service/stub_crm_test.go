package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockyard/internal/client/crm"
)

type upsertCall struct {
	module   string
	records  []map[string]any
	triggers []string
}

// stubCRM is a test-only CRMAPI. Full-collection reads serve pages;
// modified-since reads serve deltaPages and remember the window start.
type stubCRM struct {
	pages      [][]json.RawMessage
	deltaPages [][]json.RawMessage
	records    map[string]json.RawMessage
	deleted    []string
	atts       map[string][]crm.Attachment

	listErr    error
	deletedErr error
	getErr     error
	attsErr    error
	upsertErr  error
	upsertIDs  []string

	lastSince *time.Time
	upserts   []upsertCall
	listCalls int
}

func (s *stubCRM) ListRecords(ctx context.Context, module string, page, perPage int, modifiedSince *time.Time) (*crm.RecordPage, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	source := s.pages
	if modifiedSince != nil {
		s.lastSince = modifiedSince
		source = s.deltaPages
	}
	if page < 1 || page > len(source) {
		return &crm.RecordPage{}, nil
	}
	return &crm.RecordPage{
		Data:        source[page-1],
		MoreRecords: page < len(source),
	}, nil
}

func (s *stubCRM) GetRecord(ctx context.Context, module, id string) (json.RawMessage, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	raw, ok := s.records[module+"/"+id]
	if !ok {
		return nil, crm.ErrNotFound
	}
	return raw, nil
}

func (s *stubCRM) UpsertRecords(ctx context.Context, module string, records []map[string]any, triggers []string) ([]string, error) {
	s.upserts = append(s.upserts, upsertCall{module: module, records: records, triggers: triggers})
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	if s.upsertIDs != nil {
		return s.upsertIDs, nil
	}
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = fmt.Sprintf("remote-%d", i+1)
	}
	return ids, nil
}

func (s *stubCRM) ListDeletedIDs(ctx context.Context, module string, since *time.Time) ([]string, error) {
	if s.deletedErr != nil {
		return nil, s.deletedErr
	}
	return s.deleted, nil
}

func (s *stubCRM) ListAttachments(ctx context.Context, module, id string) ([]crm.Attachment, error) {
	if s.attsErr != nil {
		return nil, s.attsErr
	}
	if s.atts == nil {
		return nil, nil
	}
	return s.atts[id], nil
}

func (s *stubCRM) AttachmentURL(module, recordID, attachmentID string) string {
	return fmt.Sprintf("https://crm.test/api/v2/%s/%s/Attachments/%s", module, recordID, attachmentID)
}

// listingJSON builds a raw Listings record the way the CRM delivers it.
func listingJSON(id, name, vendorID, price string, active bool) json.RawMessage {
	record := map[string]any{
		"id":     id,
		"Name":   name,
		"Active": active,
	}
	if vendorID != "" {
		record["Vendor"] = map[string]any{"id": vendorID, "name": "vendor"}
	}
	if price != "" {
		record["Price"] = price
	}
	raw, _ := json.Marshal(record)
	return raw
}

func vendorJSON(id, name, company, email string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"id":      id,
		"Name":    name,
		"Company": company,
		"Email":   email,
	})
	return raw
}

func dealJSON(id, stage string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"id":    id,
		"Stage": stage,
	})
	return raw
}
