package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/novamart/api/internal/domain"
	"github.com/novamart/api/internal/platform/auth"
	"github.com/novamart/api/internal/services"
)

func vendorIdentity() *auth.Identity {
	return &auth.Identity{UID: "user_a", Roles: []string{auth.RoleVendor}, VendorID: "ven_a"}
}

func TestVendorListOrdersScopesToVendor(t *testing.T) {
	now := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	var captured services.ListOrdersQuery
	svc := &stubOrderService{
		listFn: func(_ context.Context, query services.ListOrdersQuery) (domain.CursorPage[services.OrderView], error) {
			captured = query
			return domain.CursorPage[services.OrderView]{Items: []services.OrderView{sampleView(now)}}, nil
		},
	}

	handler := NewVendorOrderHandlers(nil, svc)
	router := chi.NewRouter()
	router.Route("/vendor", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/vendor/orders?status=accepted", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), vendorIdentity()))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Actor.Role != domain.ActorRoleVendor || captured.Actor.VendorID != "ven_a" {
		t.Fatalf("unexpected actor %+v", captured.Actor)
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "ord_123" {
		t.Fatalf("unexpected orders payload: %+v", resp.Items)
	}
}

func TestVendorGetOrder(t *testing.T) {
	now := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	var captured services.GetOrderQuery
	svc := &stubOrderService{
		getFn: func(_ context.Context, query services.GetOrderQuery) (services.OrderView, error) {
			captured = query
			return sampleView(now), nil
		},
		timelineFn: func(_ context.Context, query services.TimelineQuery) (domain.CursorPage[services.StatusHistoryEntry], error) {
			return domain.CursorPage[services.StatusHistoryEntry]{
				Items: []services.StatusHistoryEntry{
					{ID: "hist_9", OrderID: "ord_123", Level: domain.HistoryLevelItem, FromStatus: "PENDING", ToStatus: "ACCEPTED", ActorID: "user_a", ActorRole: domain.ActorRoleVendor, CreatedAt: now},
				},
			}, nil
		},
	}

	handler := NewVendorOrderHandlers(nil, svc)
	router := chi.NewRouter()
	router.Route("/vendor", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/vendor/orders/ord_123", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), vendorIdentity()))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_123" || captured.Actor.VendorID != "ven_a" {
		t.Fatalf("unexpected query %+v", captured)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.ID != "ord_123" {
		t.Fatalf("unexpected order payload: %+v", resp.Order)
	}
	if len(resp.History) != 1 || resp.History[0].ID != "hist_9" {
		t.Fatalf("expected embedded timeline, got %+v", resp.History)
	}
}

func TestVendorGetOrderForbidden(t *testing.T) {
	svc := &stubOrderService{
		getFn: func(context.Context, services.GetOrderQuery) (services.OrderView, error) {
			return services.OrderView{}, services.ErrOrderForbidden
		},
	}

	handler := NewVendorOrderHandlers(nil, svc)
	router := chi.NewRouter()
	router.Route("/vendor", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/vendor/orders/ord_999", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), vendorIdentity()))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error != "forbidden" {
		t.Fatalf("unexpected error code %q", envelope.Error)
	}
}

func TestVendorListOrdersUnauthenticated(t *testing.T) {
	handler := NewVendorOrderHandlers(nil, &stubOrderService{})
	router := chi.NewRouter()
	router.Route("/vendor", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/vendor/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
