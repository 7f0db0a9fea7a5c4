package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fakeReconciler struct {
	listings []string
	sellers  []string
	deals    []string
	err      error
}

func (f *fakeReconciler) ReconcileListing(_ context.Context, id string) error {
	f.listings = append(f.listings, id)
	return f.err
}

func (f *fakeReconciler) ReconcileSeller(_ context.Context, id string) error {
	f.sellers = append(f.sellers, id)
	return f.err
}

func (f *fakeReconciler) ReconcileDealStatus(_ context.Context, id string) error {
	f.deals = append(f.deals, id)
	return f.err
}

func newWebhookRouter(rec *fakeReconciler, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := &WebhookHandler{Ingest: rec, Secret: secret, Logger: zap.NewNop()}
	h.Register(r)
	return r
}

func postWebhook(r *gin.Engine, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/crm", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Webhook-Token", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookDispatchesByModule(t *testing.T) {
	rec := &fakeReconciler{}
	r := newWebhookRouter(rec, "s3cret")

	cases := []struct {
		module string
		id     string
	}{
		{"Listings", "L-1"},
		{"Vendors", "V-1"},
		{"Deals", "D-1"},
	}
	for _, tc := range cases {
		w := postWebhook(r, `{"module":"`+tc.module+`","record_id":"`+tc.id+`","action":"edit"}`, "s3cret")
		if w.Code != http.StatusOK {
			t.Fatalf("module %s: status = %d, want 200", tc.module, w.Code)
		}
	}
	if len(rec.listings) != 1 || rec.listings[0] != "L-1" {
		t.Fatalf("listings = %v", rec.listings)
	}
	if len(rec.sellers) != 1 || rec.sellers[0] != "V-1" {
		t.Fatalf("sellers = %v", rec.sellers)
	}
	if len(rec.deals) != 1 || rec.deals[0] != "D-1" {
		t.Fatalf("deals = %v", rec.deals)
	}
}

func TestWebhookRejectsBadToken(t *testing.T) {
	rec := &fakeReconciler{}
	r := newWebhookRouter(rec, "s3cret")

	w := postWebhook(r, `{"module":"Listings","record_id":"L-1"}`, "wrong")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(rec.listings) != 0 {
		t.Fatalf("reconcile ran despite bad token")
	}
}

func TestWebhookAcceptsWhenSecretUnset(t *testing.T) {
	rec := &fakeReconciler{}
	r := newWebhookRouter(rec, "")

	w := postWebhook(r, `{"module":"Listings","record_id":"L-1"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(rec.listings) != 1 {
		t.Fatalf("reconcile did not run")
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	rec := &fakeReconciler{}
	r := newWebhookRouter(rec, "s3cret")

	if w := postWebhook(r, `{not json`, "s3cret"); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status = %d, want 400", w.Code)
	}
	if w := postWebhook(r, `{"module":"Listings","record_id":""}`, "s3cret"); w.Code != http.StatusBadRequest {
		t.Fatalf("empty record_id: status = %d, want 400", w.Code)
	}
}

func TestWebhookIgnoresUnknownModule(t *testing.T) {
	rec := &fakeReconciler{}
	r := newWebhookRouter(rec, "s3cret")

	w := postWebhook(r, `{"module":"Invoices","record_id":"I-1"}`, "s3cret")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(rec.listings)+len(rec.sellers)+len(rec.deals) != 0 {
		t.Fatalf("unknown module reached a reconciler")
	}
}

func TestWebhookSurfacesReconcileFailure(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("storage down")}
	r := newWebhookRouter(rec, "s3cret")

	w := postWebhook(r, `{"module":"Deals","record_id":"D-9"}`, "s3cret")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
