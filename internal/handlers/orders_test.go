package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/novamart/api/internal/domain"
	"github.com/novamart/api/internal/platform/auth"
	"github.com/novamart/api/internal/services"
)

type stubOrderService struct {
	createFn         func(context.Context, services.CreateOrderCommand) (services.OrderView, error)
	updateStatusFn   func(context.Context, services.UpdateItemStatusCommand) (services.OrderUpdateResult, error)
	updateTrackingFn func(context.Context, services.UpdateItemTrackingCommand) (services.OrderView, error)
	adminSetFn       func(context.Context, services.AdminSetStatusCommand) (services.OrderUpdateResult, error)
	adminCancelFn    func(context.Context, services.AdminCancelCommand) (services.OrderUpdateResult, error)
	getFn            func(context.Context, services.GetOrderQuery) (services.OrderView, error)
	listFn           func(context.Context, services.ListOrdersQuery) (domain.CursorPage[services.OrderView], error)
	timelineFn       func(context.Context, services.TimelineQuery) (domain.CursorPage[services.StatusHistoryEntry], error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.OrderView, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.OrderView{}, errors.New("not implemented")
}

func (s *stubOrderService) UpdateItemStatus(ctx context.Context, cmd services.UpdateItemStatusCommand) (services.OrderUpdateResult, error) {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, cmd)
	}
	return services.OrderUpdateResult{}, errors.New("not implemented")
}

func (s *stubOrderService) UpdateItemTracking(ctx context.Context, cmd services.UpdateItemTrackingCommand) (services.OrderView, error) {
	if s.updateTrackingFn != nil {
		return s.updateTrackingFn(ctx, cmd)
	}
	return services.OrderView{}, errors.New("not implemented")
}

func (s *stubOrderService) AdminSetStatus(ctx context.Context, cmd services.AdminSetStatusCommand) (services.OrderUpdateResult, error) {
	if s.adminSetFn != nil {
		return s.adminSetFn(ctx, cmd)
	}
	return services.OrderUpdateResult{}, errors.New("not implemented")
}

func (s *stubOrderService) AdminCancel(ctx context.Context, cmd services.AdminCancelCommand) (services.OrderUpdateResult, error) {
	if s.adminCancelFn != nil {
		return s.adminCancelFn(ctx, cmd)
	}
	return services.OrderUpdateResult{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, query services.GetOrderQuery) (services.OrderView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, query)
	}
	return services.OrderView{}, errors.New("not implemented")
}

func (s *stubOrderService) ListOrders(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[services.OrderView], error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return domain.CursorPage[services.OrderView]{}, nil
}

func (s *stubOrderService) GetTimeline(ctx context.Context, query services.TimelineQuery) (domain.CursorPage[services.StatusHistoryEntry], error) {
	if s.timelineFn != nil {
		return s.timelineFn(ctx, query)
	}
	return domain.CursorPage[services.StatusHistoryEntry]{}, nil
}

var _ services.OrderService = (*stubOrderService)(nil)

func sampleView(now time.Time) services.OrderView {
	return services.OrderView{
		Order: services.Order{
			ID:          "ord_123",
			OrderNumber: "NM-2025-000123",
			CustomerID:  "cus_1",
			Status:      domain.OrderStatusProcessing,
			Currency:    "eur",
			Items: []services.OrderItem{
				{
					ProductID: "prod_a",
					VendorID:  "ven_a",
					Quantity:  1,
					UnitPrice: 1500,
					LineTotal: 1500,
					Status:    domain.ItemStatusAccepted,
					UpdatedAt: now,
				},
			},
			Total:     1500,
			CreatedAt: now,
			UpdatedAt: now,
		},
		LegacyStatus: "processing",
	}
}

func TestOrderHandlersListOrdersSuccess(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	fromExpected := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	toExpected := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	var captured services.ListOrdersQuery
	service := &stubOrderService{
		listFn: func(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[services.OrderView], error) {
			captured = query
			return domain.CursorPage[services.OrderView]{
				Items:         []services.OrderView{sampleView(now)},
				NextPageToken: "tok-next",
			}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/orders?status=shipped,delivered&page_size=10&page_token=tok123&created_after=2025-06-01T00:00:00Z&created_before=2025-07-01T00:00:00Z", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "cus_1", Roles: []string{auth.RoleBuyer}}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if captured.Actor.ID != "cus_1" || captured.Actor.Role != domain.ActorRoleBuyer {
		t.Fatalf("unexpected actor: %+v", captured.Actor)
	}
	if captured.Pagination.PageSize != 10 || captured.Pagination.PageToken != "tok123" {
		t.Fatalf("unexpected pagination: %+v", captured.Pagination)
	}
	if len(captured.Status) != 2 {
		t.Fatalf("expected 2 status filters, got %v", captured.Status)
	}
	if captured.DateRange.From == nil || !captured.DateRange.From.Equal(fromExpected) {
		t.Fatalf("unexpected from: %#v", captured.DateRange.From)
	}
	if captured.DateRange.To == nil || !captured.DateRange.To.Equal(toExpected) {
		t.Fatalf("unexpected to: %#v", captured.DateRange.To)
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 order, got %d", len(resp.Items))
	}
	order := resp.Items[0]
	if order.ID != "ord_123" || order.OrderNumber != "NM-2025-000123" {
		t.Fatalf("unexpected order summary: %#v", order)
	}
	if order.Status != "PROCESSING" || order.LegacyStatus != "processing" {
		t.Fatalf("unexpected statuses: %#v", order)
	}
	if order.Currency != "EUR" {
		t.Fatalf("expected currency uppercased, got %s", order.Currency)
	}
	if resp.NextPageToken != "tok-next" {
		t.Fatalf("expected next page token tok-next, got %s", resp.NextPageToken)
	}
}

func TestOrderHandlersListOrdersInvalidPageSize(t *testing.T) {
	handler := NewOrderHandlers(nil, &stubOrderService{})
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/orders?page_size=abc", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "cus_1"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrdersUnauthenticated(t *testing.T) {
	handler := NewOrderHandlers(nil, &stubOrderService{})
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestOrderHandlersCreateOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var captured services.CreateOrderCommand
	service := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.OrderView, error) {
			captured = cmd
			return sampleView(now), nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	body := `{"currency":"eur","items":[{"product_id":"prod_a","vendor_id":"ven_a","name":"Walnut board","quantity":2,"unit_price":1500}]}`
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "cus_1", Roles: []string{auth.RoleBuyer}}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != "cus_1" {
		t.Fatalf("expected customer cus_1, got %s", captured.CustomerID)
	}
	if len(captured.Items) != 1 || captured.Items[0].ProductID != "prod_a" || captured.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", captured.Items)
	}
}

func TestOrderHandlersUpdateItemStatus(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	var captured services.UpdateItemStatusCommand
	service := &stubOrderService{
		updateStatusFn: func(ctx context.Context, cmd services.UpdateItemStatusCommand) (services.OrderUpdateResult, error) {
			captured = cmd
			note := "derived from item fulfilment update"
			return services.OrderUpdateResult{
				Order: sampleView(now),
				History: []services.StatusHistoryEntry{
					{ID: "hist_1", OrderID: "ord_123", Level: domain.HistoryLevelItem, FromStatus: "PENDING", ToStatus: "ACCEPTED", ActorID: "user_a", ActorRole: domain.ActorRoleVendor, CreatedAt: now},
					{ID: "hist_2", OrderID: "ord_123", Level: domain.HistoryLevelOrder, FromStatus: "PENDING", ToStatus: "PROCESSING", ActorID: "user_a", ActorRole: domain.ActorRoleVendor, Note: &note, CreatedAt: now},
				},
			}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	body := `{"status":"confirmed","note":"picked up"}`
	req := httptest.NewRequest(http.MethodPatch, "/orders/ord_123/items/prod_a/status", bytes.NewBufferString(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		UID:      "user_a",
		Roles:    []string{auth.RoleVendor},
		VendorID: "ven_a",
	}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_123" || captured.ProductID != "prod_a" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if captured.TargetStatus != "confirmed" {
		t.Fatalf("expected raw status passed through, got %q", captured.TargetStatus)
	}
	if captured.Actor.Role != domain.ActorRoleVendor || captured.Actor.VendorID != "ven_a" {
		t.Fatalf("unexpected actor: %+v", captured.Actor)
	}
	if captured.Note == nil || *captured.Note != "picked up" {
		t.Fatalf("unexpected note: %v", captured.Note)
	}

	var resp orderUpdateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(resp.History))
	}
	if resp.History[1].Level != "ORDER" || resp.History[1].ToStatus != "PROCESSING" {
		t.Fatalf("unexpected order entry: %#v", resp.History[1])
	}
}

func TestOrderHandlersUpdateItemStatusErrors(t *testing.T) {
	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"invalid transition", fmt.Errorf("%w: invalid transition from DELIVERED to PENDING", services.ErrOrderInvalidTransition), http.StatusBadRequest, "invalid_transition"},
		{"forbidden", fmt.Errorf("%w: item belongs to another vendor", services.ErrOrderForbidden), http.StatusForbidden, "forbidden"},
		{"not found", fmt.Errorf("%w: no item", services.ErrOrderNotFound), http.StatusNotFound, "not_found"},
		{"conflict", fmt.Errorf("%w: retries exhausted", services.ErrOrderConflict), http.StatusConflict, "conflict"},
		{"invalid status", fmt.Errorf("%w: unknown", services.ErrOrderInvalidStatus), http.StatusBadRequest, "invalid_status"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubOrderService{
				updateStatusFn: func(context.Context, services.UpdateItemStatusCommand) (services.OrderUpdateResult, error) {
					return services.OrderUpdateResult{}, tc.serviceErr
				},
			}
			handler := NewOrderHandlers(nil, service)
			router := chi.NewRouter()
			router.Route("/orders", handler.Routes)

			req := httptest.NewRequest(http.MethodPatch, "/orders/ord_123/items/prod_a/status", bytes.NewBufferString(`{"status":"SHIPPED"}`))
			req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user_a", Roles: []string{auth.RoleVendor}, VendorID: "ven_a"}))

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			var envelope struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("failed to parse error envelope: %v", err)
			}
			if envelope.Error != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, envelope.Error)
			}
		})
	}
}

func TestOrderHandlersUpdateItemStatusRequiresStatus(t *testing.T) {
	handler := NewOrderHandlers(nil, &stubOrderService{})
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodPatch, "/orders/ord_123/items/prod_a/status", bytes.NewBufferString(`{"note":"no status"}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user_a", Roles: []string{auth.RoleVendor}, VendorID: "ven_a"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersUpdateItemTracking(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	var captured services.UpdateItemTrackingCommand
	service := &stubOrderService{
		updateTrackingFn: func(ctx context.Context, cmd services.UpdateItemTrackingCommand) (services.OrderView, error) {
			captured = cmd
			return sampleView(now), nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	body := `{"carrier":"DHL","tracking_number":"JD014600003RS","tracking_url":"https://dhl.example/JD014600003RS"}`
	req := httptest.NewRequest(http.MethodPatch, "/orders/ord_123/items/prod_a/tracking", bytes.NewBufferString(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user_a", Roles: []string{auth.RoleVendor}, VendorID: "ven_a"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Carrier != "DHL" || captured.Number != "JD014600003RS" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if captured.URL == nil || *captured.URL != "https://dhl.example/JD014600003RS" {
		t.Fatalf("unexpected url: %v", captured.URL)
	}
}

func TestOrderHandlersUpdateItemTrackingRequiresCarrier(t *testing.T) {
	handler := NewOrderHandlers(nil, &stubOrderService{})
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodPatch, "/orders/ord_123/items/prod_a/tracking", bytes.NewBufferString(`{"tracking_number":"X"}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user_a", Roles: []string{auth.RoleVendor}, VendorID: "ven_a"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrder(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	service := &stubOrderService{
		getFn: func(ctx context.Context, query services.GetOrderQuery) (services.OrderView, error) {
			if query.OrderID != "ord_123" {
				return services.OrderView{}, services.ErrOrderNotFound
			}
			return sampleView(now), nil
		},
		timelineFn: func(ctx context.Context, query services.TimelineQuery) (domain.CursorPage[services.StatusHistoryEntry], error) {
			if query.OrderID != "ord_123" {
				return domain.CursorPage[services.StatusHistoryEntry]{}, services.ErrOrderNotFound
			}
			return domain.CursorPage[services.StatusHistoryEntry]{
				Items: []services.StatusHistoryEntry{
					{ID: "hist_1", OrderID: "ord_123", Level: domain.HistoryLevelItem, FromStatus: "PENDING", ToStatus: "ACCEPTED", ActorID: "user_a", ActorRole: domain.ActorRoleVendor, CreatedAt: now},
				},
			}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_123", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "cus_1"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.ID != "ord_123" || resp.Order.LegacyStatus != "processing" {
		t.Fatalf("unexpected order payload: %#v", resp.Order)
	}
	if len(resp.Order.Items) != 1 || resp.Order.Items[0].Status != "ACCEPTED" {
		t.Fatalf("unexpected items: %#v", resp.Order.Items)
	}
	if len(resp.History) != 1 || resp.History[0].ID != "hist_1" {
		t.Fatalf("expected embedded timeline, got %#v", resp.History)
	}
}

func TestOrderHandlersGetHistory(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	var captured services.TimelineQuery
	service := &stubOrderService{
		timelineFn: func(ctx context.Context, query services.TimelineQuery) (domain.CursorPage[services.StatusHistoryEntry], error) {
			captured = query
			return domain.CursorPage[services.StatusHistoryEntry]{
				Items: []services.StatusHistoryEntry{
					{ID: "hist_1", OrderID: "ord_123", Level: domain.HistoryLevelItem, FromStatus: "PENDING", ToStatus: "ACCEPTED", ActorID: "user_a", ActorRole: domain.ActorRoleVendor, CreatedAt: now},
				},
			}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_123/history?page_size=5", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "cus_1"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.OrderID != "ord_123" || captured.Pagination.PageSize != 5 {
		t.Fatalf("unexpected query: %+v", captured)
	}

	var resp historyListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Level != "ITEM" {
		t.Fatalf("unexpected entries: %#v", resp.Items)
	}
}
