package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/novamart/api/internal/platform/auth"
	"github.com/novamart/api/internal/platform/httpx"
	"github.com/novamart/api/internal/services"
)

const maxAdminCancelBodySize = 8 * 1024

// AdminOrderHandlers exposes privileged order management endpoints under
// /admin/orders. All routes require the admin role.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService

	cancelMiddleware func(http.Handler) http.Handler
}

// AdminOrderOption customises AdminOrderHandlers construction.
type AdminOrderOption func(*AdminOrderHandlers)

// WithCancelIdempotency wraps the cancel endpoint with idempotency-key replay
// protection.
func WithCancelIdempotency(mw func(http.Handler) http.Handler) AdminOrderOption {
	return func(h *AdminOrderHandlers) {
		h.cancelMiddleware = mw
	}
}

// NewAdminOrderHandlers constructs a new AdminOrderHandlers instance.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...AdminOrderOption) *AdminOrderHandlers {
	h := &AdminOrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /admin/orders endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Route("/orders", func(orders chi.Router) {
		orders.Get("/", h.listOrders)
		orders.Get("/{orderID}", h.getOrder)
		orders.Patch("/{orderID}/status", h.setStatus)
		if h.cancelMiddleware != nil {
			orders.With(h.cancelMiddleware).Post("/{orderID}/cancel", h.cancelOrder)
		} else {
			orders.Post("/{orderID}/cancel", h.cancelOrder)
		}
	})
}

type adminSetStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type adminCancelRequest struct {
	Reason string                   `json:"reason"`
	Items  []adminCancelItemRequest `json:"items"`
}

type adminCancelItemRequest struct {
	ProductID string `json:"product_id"`
	VendorID  string `json:"vendor_id"`
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminOrderHandlers) setStatus(w http.ResponseWriter, r *http.Request) {
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

	var req adminSetStatusRequest
	if !decodeJSONBody(w, r, maxItemPatchBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	result, err := h.orders.AdminSetStatus(ctx, services.AdminSetStatusCommand{
		OrderID:      orderID,
		TargetStatus: req.Status,
		Reason:       req.Reason,
		Actor:        actorFromIdentity(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderUpdateResponse(result))
}

func (h *AdminOrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
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

	var req adminCancelRequest
	if !decodeJSONBody(w, r, maxAdminCancelBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "reason is required", http.StatusBadRequest))
		return
	}

	cmd := services.AdminCancelCommand{
		OrderID: orderID,
		Reason:  req.Reason,
		Actor:   actorFromIdentity(identity),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.ItemRef{
			ProductID: strings.TrimSpace(item.ProductID),
			VendorID:  strings.TrimSpace(item.VendorID),
		})
	}

	result, err := h.orders.AdminCancel(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderUpdateResponse(result))
}
