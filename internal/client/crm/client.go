package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned for the CRM's "record absent" signals (404, and
// 204 on single-record reads) so every call site sees one convention.
var ErrNotFound = errors.New("crm: record not found")

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("CRM API error (%d): %s", e.Status, e.Body)
}

type Client struct {
	host       string
	token      string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, host, token string) *Client {
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		token:      token,
		httpClient: httpClient,
	}
}

// doRequest performs one round trip. A 204 is surfaced as a nil body with no
// error; the CRM uses it as its "no records" signal on collection reads.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, headers map[string]string, body []byte) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// ListRecords fetches one collection page. modifiedSince, when non-zero, is
// sent as If-Modified-Since to restrict the page to changed records. An
// empty page (204) comes back with zero Data and MoreRecords false.
func (c *Client) ListRecords(ctx context.Context, module string, page, perPage int, modifiedSince *time.Time) (*RecordPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))
	headers := map[string]string{}
	if modifiedSince != nil && !modifiedSince.IsZero() {
		headers["If-Modified-Since"] = modifiedSince.UTC().Format(time.RFC3339)
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v2/"+url.PathEscape(module), query, headers, nil)
	if err != nil {
		return nil, err
	}
	result := &RecordPage{}
	if body == nil {
		return result, nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("decode %s page: %w", module, err)
	}
	result.MoreRecords = result.Info.MoreRecords
	return result, nil
}

// GetRecord fetches a single record. Absent records (404, or the CRM's 204
// on singles) return ErrNotFound.
func (c *Client) GetRecord(ctx context.Context, module, id string) (json.RawMessage, error) {
	path := fmt.Sprintf("/api/v2/%s/%s", url.PathEscape(module), url.PathEscape(id))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, ErrNotFound
	}
	var page RecordPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", module, err)
	}
	if len(page.Data) == 0 {
		return nil, ErrNotFound
	}
	return page.Data[0], nil
}

// upsertEnvelope is the CRM write envelope. Trigger names select which
// remote automations fire on the write.
type upsertEnvelope struct {
	Data    []map[string]any `json:"data"`
	Trigger []string         `json:"trigger"`
}

type upsertResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
	} `json:"data"`
}

// UpsertRecords creates or updates records and returns the remote ids in
// input order. Fields absent from a record map are left untouched remotely.
func (c *Client) UpsertRecords(ctx context.Context, module string, records []map[string]any, triggers []string) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if triggers == nil {
		triggers = []string{}
	}
	payload, err := json.Marshal(upsertEnvelope{Data: records, Trigger: triggers})
	if err != nil {
		return nil, fmt.Errorf("encode %s upsert: %w", module, err)
	}
	path := fmt.Sprintf("/api/v2/%s/upsert", url.PathEscape(module))
	body, err := c.doRequest(ctx, http.MethodPost, path, nil, nil, payload)
	if err != nil {
		return nil, err
	}
	var resp upsertResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s upsert response: %w", module, err)
	}
	ids := make([]string, 0, len(resp.Data))
	for _, item := range resp.Data {
		if !strings.EqualFold(item.Status, "success") {
			return ids, fmt.Errorf("crm: %s upsert rejected: %s %s", module, item.Code, item.Message)
		}
		ids = append(ids, item.Details.ID)
	}
	return ids, nil
}

// ListDeletedIDs returns ids of records removed from the module since the
// given time, in one batch.
func (c *Client) ListDeletedIDs(ctx context.Context, module string, since *time.Time) ([]string, error) {
	query := url.Values{}
	query.Set("type", "all")
	headers := map[string]string{}
	if since != nil && !since.IsZero() {
		headers["If-Modified-Since"] = since.UTC().Format(time.RFC3339)
	}
	path := fmt.Sprintf("/api/v2/%s/deleted", url.PathEscape(module))
	body, err := c.doRequest(ctx, http.MethodGet, path, query, headers, nil)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	var page struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode %s deleted page: %w", module, err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, item := range page.Data {
		if item.ID != "" {
			ids = append(ids, item.ID)
		}
	}
	return ids, nil
}

// ListAttachments returns file attachment metadata for one record. Absent
// records and attachment-less records both come back empty.
func (c *Client) ListAttachments(ctx context.Context, module, id string) ([]Attachment, error) {
	path := fmt.Sprintf("/api/v2/%s/%s/Attachments", url.PathEscape(module), url.PathEscape(id))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil, nil, nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	var page struct {
		Data []Attachment `json:"data"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode %s attachments: %w", module, err)
	}
	return page.Data, nil
}

// AttachmentURL builds the stable download URL for an attachment.
func (c *Client) AttachmentURL(module, recordID, attachmentID string) string {
	return fmt.Sprintf("%s/api/v2/%s/%s/Attachments/%s", c.host, url.PathEscape(module), url.PathEscape(recordID), url.PathEscape(attachmentID))
}
