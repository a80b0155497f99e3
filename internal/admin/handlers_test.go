package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/algocart/escrowd/internal/order"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *order.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	g, orders, _ := setupGateway(t)
	handler := NewHandler(g)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)
	return r, orders
}

func doJSON(t *testing.T, router *gin.Engine, method, path, key string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_Validate(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, "POST", "/v1/admin/validate", adminSecret, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "POST", "/v1/admin/validate", "wrong", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", w.Code)
	}

	// Body credential works too.
	w = doJSON(t, router, "POST", "/v1/admin/validate", "", gin.H{"adminKey": adminSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("body credential: want 200, got %d", w.Code)
	}
}

func TestHandler_ResolveAndRelease(t *testing.T) {
	router, orders := setupTestRouter(t)

	o := disputedOrder(t, orders)
	w := doJSON(t, router, "POST", "/v1/admin/orders/"+o.ID+"/resolve", adminSecret,
		gin.H{"resolution": "REFUND", "note": "tracking never moved"})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: want 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Order *order.EscrowOrder `json:"order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Order.Status != order.StatusRefunded {
		t.Fatalf("want REFUNDED, got %s", resp.Order.Status)
	}

	w = doJSON(t, router, "POST", "/v1/admin/orders/"+o.ID+"/resolve", adminSecret,
		gin.H{"resolution": "refund"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("lowercase resolution: want 400, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", "/v1/admin/orders/ord_missing/release", adminSecret, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("release missing order: want 404, got %d", w.Code)
	}

	// Audit trail is queryable.
	w = doJSON(t, router, "GET", "/v1/admin/audit?orderId="+o.ID, adminSecret, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit: want 200, got %d", w.Code)
	}
	var auditResp struct {
		Entries []*AuditEntry `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &auditResp); err != nil {
		t.Fatal(err)
	}
	if len(auditResp.Entries) != 1 || auditResp.Entries[0].Operation != "resolve_dispute" {
		t.Fatalf("unexpected audit entries: %+v", auditResp.Entries)
	}
	if auditResp.Entries[0].Actor != "admin" || auditResp.Entries[0].IPAddress == "" {
		t.Fatalf("audit entry missing actor or client IP: %+v", auditResp.Entries[0])
	}
}

func TestHandler_BlockedUsers(t *testing.T) {
	router, _ := setupTestRouter(t)
	wallet := testAddr(0x44)

	w := doJSON(t, router, "POST", "/v1/admin/blocked-users", adminSecret,
		gin.H{"walletAddress": wallet, "reason": "spam"})
	if w.Code != http.StatusCreated {
		t.Fatalf("block: want 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "POST", "/v1/admin/blocked-users", adminSecret,
		gin.H{"walletAddress": wallet})
	if w.Code != http.StatusConflict {
		t.Fatalf("double block: want 409, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/v1/admin/blocked-users", adminSecret, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: want 200, got %d", w.Code)
	}

	w = doJSON(t, router, "DELETE", "/v1/admin/blocked-users/"+wallet, adminSecret, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unblock: want 200, got %d", w.Code)
	}

	w = doJSON(t, router, "DELETE", "/v1/admin/blocked-users/"+wallet, adminSecret, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unblock again: want 404, got %d", w.Code)
	}

	// No credential, no access.
	w = doJSON(t, router, "GET", "/v1/admin/blocked-users", "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("unauthenticated list: want 403, got %d", w.Code)
	}
}
