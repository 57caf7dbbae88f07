package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/novamart/api/internal/domain"
	"github.com/novamart/api/internal/platform/auth"
	"github.com/novamart/api/internal/platform/httpx"
	"github.com/novamart/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
	maxItemPatchBodySize = 4 * 1024
)

// OrderHandlers exposes buyer order endpoints and vendor item fulfilment
// endpoints under /orders.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/history", h.getHistory)
	r.Patch("/{orderID}/items/{productID}/status", h.updateItemStatus)
	r.Patch("/{orderID}/items/{productID}/tracking", h.updateItemTracking)
}

type createOrderRequest struct {
	Currency string                   `json:"currency"`
	Items    []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	VendorID  string `json:"vendor_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type updateItemStatusRequest struct {
	Status   string  `json:"status"`
	Note     *string `json:"note"`
	VendorID string  `json:"vendor_id"`
}

type updateItemTrackingRequest struct {
	Carrier        string  `json:"carrier"`
	TrackingNumber string  `json:"tracking_number"`
	TrackingURL    *string `json:"tracking_url"`
	VendorID       string  `json:"vendor_id"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
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

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}

	actor := actorFromIdentity(identity)
	cmd := services.CreateOrderCommand{
		CustomerID: actor.ID,
		Currency:   req.Currency,
		Actor:      actor,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.CreateOrderItem{
			ProductID: item.ProductID,
			VendorID:  item.VendorID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	view, err := h.orders.Create(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(view)})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
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

func (h *OrderHandlers) getHistory(w http.ResponseWriter, r *http.Request) {
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

	pagination, ok := parsePagination(w, r)
	if !ok {
		return
	}

	page, err := h.orders.GetTimeline(ctx, services.TimelineQuery{
		OrderID:    orderID,
		Actor:      actorFromIdentity(identity),
		Pagination: pagination,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	entries := make([]historyEntryPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		entries = append(entries, buildHistoryEntryPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, historyListResponse{
		Items:         entries,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) updateItemStatus(w http.ResponseWriter, r *http.Request) {
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
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if orderID == "" || productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id and product id are required", http.StatusBadRequest))
		return
	}

	var req updateItemStatusRequest
	if !decodeJSONBody(w, r, maxItemPatchBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	result, err := h.orders.UpdateItemStatus(ctx, services.UpdateItemStatusCommand{
		OrderID:      orderID,
		ProductID:    productID,
		VendorID:     req.VendorID,
		TargetStatus: req.Status,
		Note:         req.Note,
		Actor:        actorFromIdentity(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderUpdateResponse(result))
}

func (h *OrderHandlers) updateItemTracking(w http.ResponseWriter, r *http.Request) {
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
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if orderID == "" || productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id and product id are required", http.StatusBadRequest))
		return
	}

	var req updateItemTrackingRequest
	if !decodeJSONBody(w, r, maxItemPatchBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.Carrier) == "" || strings.TrimSpace(req.TrackingNumber) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "carrier and tracking_number are required", http.StatusBadRequest))
		return
	}

	view, err := h.orders.UpdateItemTracking(ctx, services.UpdateItemTrackingCommand{
		OrderID:   orderID,
		ProductID: productID,
		VendorID:  req.VendorID,
		Carrier:   req.Carrier,
		Number:    req.TrackingNumber,
		URL:       req.TrackingURL,
		Actor:     actorFromIdentity(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(view)})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(r.Context(), w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func parsePagination(w http.ResponseWriter, r *http.Request) (services.Pagination, bool) {
	query := r.URL.Query()
	pageSize := defaultOrderPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return services.Pagination{}, false
		}
		switch {
		case size <= 0:
			pageSize = defaultOrderPageSize
		case size > maxOrderPageSize:
			pageSize = maxOrderPageSize
		default:
			pageSize = size
		}
	}
	return services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}, true
}

func parseOrderListQuery(w http.ResponseWriter, r *http.Request) (services.ListOrdersQuery, bool) {
	query := r.URL.Query()

	pagination, ok := parsePagination(w, r)
	if !ok {
		return services.ListOrdersQuery{}, false
	}

	out := services.ListOrdersQuery{
		Status:     parseFilterValues(query["status"]),
		Pagination: pagination,
	}

	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return services.ListOrdersQuery{}, false
		}
		out.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return services.ListOrdersQuery{}, false
		}
		out.DateRange.To = &ts
	}

	return out, true
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID           string `json:"id"`
	OrderNumber  string `json:"order_number"`
	Status       string `json:"status"`
	LegacyStatus string `json:"legacy_status"`
	Currency     string `json:"currency"`
	Total        int64  `json:"total"`
	ItemCount    int    `json:"item_count"`
	CreatedAt    string `json:"created_at"`
}

type orderResponse struct {
	Order   orderPayload          `json:"order"`
	History []historyEntryPayload `json:"history,omitempty"`
}

type orderUpdateResponse struct {
	Order   orderPayload          `json:"order"`
	History []historyEntryPayload `json:"history"`
}

type orderPayload struct {
	ID            string             `json:"id"`
	OrderNumber   string             `json:"order_number"`
	CustomerID    string             `json:"customer_id"`
	Status        string             `json:"status"`
	LegacyStatus  string             `json:"legacy_status"`
	PaymentStatus string             `json:"payment_status,omitempty"`
	Currency      string             `json:"currency"`
	Items         []orderItemPayload `json:"items"`
	Total         int64              `json:"total"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at,omitempty"`
	ConfirmedAt   string             `json:"confirmed_at,omitempty"`
	ShippedAt     string             `json:"shipped_at,omitempty"`
	DeliveredAt   string             `json:"delivered_at,omitempty"`
	CancelledAt   string             `json:"cancelled_at,omitempty"`
}

type orderItemPayload struct {
	ProductID string               `json:"product_id"`
	VendorID  string               `json:"vendor_id"`
	Name      string               `json:"name,omitempty"`
	SKU       string               `json:"sku,omitempty"`
	Quantity  int                  `json:"quantity"`
	UnitPrice int64                `json:"unit_price"`
	LineTotal int64                `json:"line_total"`
	Status    string               `json:"status"`
	Note      *string              `json:"note,omitempty"`
	Tracking  *itemTrackingPayload `json:"tracking,omitempty"`
	UpdatedAt string               `json:"updated_at,omitempty"`
}

type itemTrackingPayload struct {
	Carrier string  `json:"carrier"`
	Number  string  `json:"number"`
	URL     *string `json:"url,omitempty"`
}

type historyListResponse struct {
	Items         []historyEntryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type historyEntryPayload struct {
	ID         string  `json:"id"`
	OrderID    string  `json:"order_id"`
	Level      string  `json:"level"`
	ProductID  *string `json:"product_id,omitempty"`
	VendorID   *string `json:"vendor_id,omitempty"`
	FromStatus string  `json:"from_status"`
	ToStatus   string  `json:"to_status"`
	ActorID    string  `json:"actor_id"`
	ActorRole  string  `json:"actor_role"`
	Note       *string `json:"note,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func buildOrderListResponse(page domain.CursorPage[services.OrderView]) orderListResponse {
	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, view := range page.Items {
		items = append(items, buildOrderSummary(view))
	}
	return orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	}
}

func buildOrderSummary(view services.OrderView) orderSummaryPayload {
	order := view.Order
	return orderSummaryPayload{
		ID:           strings.TrimSpace(order.ID),
		OrderNumber:  strings.TrimSpace(order.OrderNumber),
		Status:       string(order.Status),
		LegacyStatus: view.LegacyStatus,
		Currency:     strings.ToUpper(strings.TrimSpace(order.Currency)),
		Total:        order.Total,
		ItemCount:    len(order.Items),
		CreatedAt:    formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(view services.OrderView) orderPayload {
	order := view.Order
	payload := orderPayload{
		ID:            strings.TrimSpace(order.ID),
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		CustomerID:    strings.TrimSpace(order.CustomerID),
		Status:        string(order.Status),
		LegacyStatus:  view.LegacyStatus,
		PaymentStatus: string(order.PaymentStatus),
		Currency:      strings.ToUpper(strings.TrimSpace(order.Currency)),
		Items:         make([]orderItemPayload, 0, len(order.Items)),
		Total:         order.Total,
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
		ConfirmedAt:   formatTime(pointerTime(order.ConfirmedAt)),
		ShippedAt:     formatTime(pointerTime(order.ShippedAt)),
		DeliveredAt:   formatTime(pointerTime(order.DeliveredAt)),
		CancelledAt:   formatTime(pointerTime(order.CancelledAt)),
	}

	for _, item := range order.Items {
		entry := orderItemPayload{
			ProductID: strings.TrimSpace(item.ProductID),
			VendorID:  strings.TrimSpace(item.VendorID),
			Name:      strings.TrimSpace(item.Name),
			SKU:       strings.TrimSpace(item.SKU),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
			Status:    string(item.Status),
			Note:      cloneStringPointer(item.Note),
			UpdatedAt: formatTime(item.UpdatedAt),
		}
		if item.Tracking != nil {
			entry.Tracking = &itemTrackingPayload{
				Carrier: strings.TrimSpace(item.Tracking.Carrier),
				Number:  strings.TrimSpace(item.Tracking.Number),
				URL:     cloneStringPointer(item.Tracking.URL),
			}
		}
		payload.Items = append(payload.Items, entry)
	}

	return payload
}

func buildOrderUpdateResponse(result services.OrderUpdateResult) orderUpdateResponse {
	history := make([]historyEntryPayload, 0, len(result.History))
	for _, entry := range result.History {
		history = append(history, buildHistoryEntryPayload(entry))
	}
	return orderUpdateResponse{
		Order:   buildOrderPayload(result.Order),
		History: history,
	}
}

// buildOrderDetailResponse fetches the first timeline page so order detail
// reads carry the order view together with its recent history.
func buildOrderDetailResponse(ctx context.Context, orders services.OrderService, view services.OrderView, actor services.Actor) (orderResponse, error) {
	page, err := orders.GetTimeline(ctx, services.TimelineQuery{
		OrderID:    view.Order.ID,
		Actor:      actor,
		Pagination: services.Pagination{PageSize: defaultOrderPageSize},
	})
	if err != nil {
		return orderResponse{}, err
	}
	history := make([]historyEntryPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		history = append(history, buildHistoryEntryPayload(entry))
	}
	return orderResponse{
		Order:   buildOrderPayload(view),
		History: history,
	}, nil
}

func buildHistoryEntryPayload(entry services.StatusHistoryEntry) historyEntryPayload {
	return historyEntryPayload{
		ID:         strings.TrimSpace(entry.ID),
		OrderID:    strings.TrimSpace(entry.OrderID),
		Level:      string(entry.Level),
		ProductID:  cloneStringPointer(entry.ProductID),
		VendorID:   cloneStringPointer(entry.VendorID),
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		ActorID:    entry.ActorID,
		ActorRole:  string(entry.ActorRole),
		Note:       cloneStringPointer(entry.Note),
		CreatedAt:  formatTime(entry.CreatedAt),
	}
}
