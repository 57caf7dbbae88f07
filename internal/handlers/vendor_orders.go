package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/novamart/api/internal/platform/auth"
	"github.com/novamart/api/internal/platform/httpx"
	"github.com/novamart/api/internal/services"
)

// VendorOrderHandlers exposes the vendor order worklist under /vendor.
// Item-level fulfilment endpoints live on /orders; this group carries the
// vendor-scoped listing.
type VendorOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewVendorOrderHandlers constructs a new VendorOrderHandlers instance.
func NewVendorOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *VendorOrderHandlers {
	return &VendorOrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /vendor endpoints.
func (h *VendorOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleVendor))
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
}

func (h *VendorOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	query, ok := parseOrderListQuery(w, r)
	if !ok {
		return
	}
	query.Actor = actorFromIdentity(identity)

	page, err := h.orders.ListOrders(ctx, query)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *VendorOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	actor := actorFromIdentity(identity)
	view, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
		OrderID: orderID,
		Actor:   actor,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	resp, err := buildOrderDetailResponse(ctx, h.orders, view, actor)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
