package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/novamart/api/internal/domain"
	"github.com/novamart/api/internal/repositories"
)

const (
	orderEventCreated           = "order.created"
	orderEventItemStatusChanged = "order.item.status_changed"
	orderEventStatusOverridden  = "order.status_overridden"
	orderEventCancelled         = "order.cancelled"

	orderIDPrefix   = "ord_"
	historyIDPrefix = "hist_"

	orderNumberCounter = "orders"

	// derivedOrderNote annotates ORDER history entries that were produced as
	// a consequence of an item-level transition rather than a direct write.
	derivedOrderNote = "derived from item fulfilment update"

	// maxConflictRetries bounds how often a mutation is replayed from the
	// initial read after an optimistic-concurrency conflict.
	maxConflictRetries = 3
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order or the addressed item could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the actor lacks rights over the targeted order or item.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidTransition indicates the state machine rejected the proposed transition.
	ErrOrderInvalidTransition = errors.New("order: invalid transition")
	// ErrOrderInvalidStatus indicates an unrecognized target status on an admin path.
	ErrOrderInvalidStatus = errors.New("order: invalid status")
	// ErrOrderNoCancellableItems indicates a bulk cancel matched nothing eligible.
	ErrOrderNoCancellableItems = errors.New("order: no cancellable items")
	// ErrOrderConflict indicates optimistic concurrency retries were exhausted.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	History    repositories.HistoryRepository
	Counters   repositories.CounterRepository
	UnitOfWork repositories.UnitOfWork
	// StrictStatusInput rejects unrecognized vendor-supplied statuses instead
	// of applying the permissive PENDING default.
	StrictStatusInput bool
	Clock             func() time.Time
	IDGenerator       func() string
	Events            OrderEventPublisher
	Logger            func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	history    repositories.HistoryRepository
	counters   repositories.CounterRepository
	unitOfWork repositories.UnitOfWork
	strict     bool
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.History == nil {
		return nil, errors.New("order service: history repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		history:    deps.History,
		counters:   deps.Counters,
		unitOfWork: unit,
		strict:     deps.StrictStatusInput,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (OrderView, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return OrderView{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		return OrderView{}, fmt.Errorf("%w: currency is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return OrderView{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}

	now := s.now()

	items := make([]OrderItem, 0, len(cmd.Items))
	var total int64
	for _, line := range cmd.Items {
		productID := strings.TrimSpace(line.ProductID)
		vendorID := strings.TrimSpace(line.VendorID)
		if productID == "" || vendorID == "" {
			return OrderView{}, fmt.Errorf("%w: item product id and vendor id are required", ErrOrderInvalidInput)
		}
		if line.Quantity <= 0 {
			return OrderView{}, fmt.Errorf("%w: item %s quantity must be positive", ErrOrderInvalidInput, productID)
		}
		if line.UnitPrice < 0 {
			return OrderView{}, fmt.Errorf("%w: item %s unit price must not be negative", ErrOrderInvalidInput, productID)
		}
		lineTotal := line.UnitPrice * int64(line.Quantity)
		total += lineTotal
		items = append(items, OrderItem{
			ProductID: productID,
			VendorID:  vendorID,
			Name:      strings.TrimSpace(line.Name),
			SKU:       strings.TrimSpace(line.SKU),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: lineTotal,
			Status:    domain.ItemStatusPending,
			UpdatedAt: now,
		})
	}

	orderNumber, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return OrderView{}, s.mapRepositoryError(err)
	}

	order := Order{
		ID:            s.nextOrderID(),
		OrderNumber:   orderNumber,
		CustomerID:    customerID,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Currency:      currency,
		Items:         items,
		Total:         total,
		Revision:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	entry := s.newHistoryEntry(order.ID, domain.HistoryLevelOrder, nil, "", string(order.Status), cmd.Actor, optionalString("order placed"), now)

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Insert(ctx, order); err != nil {
			return err
		}
		return s.history.Append(ctx, entry)
	})
	if err != nil {
		return OrderView{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: string(order.Status),
		ActorID:       cmd.Actor.ID,
		OccurredAt:    now,
	})

	return s.viewFor(order, cmd.Actor), nil
}

func (s *orderService) UpdateItemStatus(ctx context.Context, cmd UpdateItemStatusCommand) (OrderUpdateResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	productID := strings.TrimSpace(cmd.ProductID)
	if orderID == "" || productID == "" {
		return OrderUpdateResult{}, fmt.Errorf("%w: order id and product id are required", ErrOrderInvalidInput)
	}
	vendorID := strings.TrimSpace(cmd.VendorID)
	if cmd.Actor.Role == domain.ActorRoleVendor {
		vendorID = strings.TrimSpace(cmd.Actor.VendorID)
		if vendorID == "" {
			return OrderUpdateResult{}, fmt.Errorf("%w: vendor actor is missing a vendor id", ErrOrderForbidden)
		}
	}

	target, err := s.resolveItemStatus(ctx, cmd.TargetStatus)
	if err != nil {
		return OrderUpdateResult{}, err
	}

	var (
		result        Order
		entries       []StatusHistoryEntry
		previousOrder OrderStatus
	)

	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		idx, err := s.locateItem(order.Items, productID, vendorID)
		if err != nil {
			return err
		}
		item := order.Items[idx]

		if err := domain.ValidateItemTransition(item.Status, target); err != nil {
			return fmt.Errorf("%w: %v", ErrOrderInvalidTransition, err)
		}

		now := s.now()
		previousItem := item.Status
		previousOrder = order.Status

		item.Status = target
		item.UpdatedAt = now
		note := ""
		if cmd.Note != nil {
			note = strings.TrimSpace(*cmd.Note)
		}
		if note != "" {
			item.Note = valuePtr(note)
		}
		order.Items[idx] = item

		order.Status = domain.AggregateFromItems(order.Items)
		order.UpdatedAt = now
		s.stampMilestones(&order, now)

		entries = entries[:0]
		entries = append(entries, s.newHistoryEntry(order.ID, domain.HistoryLevelItem, &order.Items[idx], string(previousItem), string(target), cmd.Actor, optionalString(note), now))
		if order.Status != previousOrder {
			entries = append(entries, s.newHistoryEntry(order.ID, domain.HistoryLevelOrder, nil, string(previousOrder), string(order.Status), cmd.Actor, optionalString(derivedOrderNote), now))
		}

		if err := s.persistWithHistory(ctx, order, entries); err != nil {
			return err
		}

		order.Revision++
		result = order
		return nil
	})
	if err != nil {
		return OrderUpdateResult{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventItemStatusChanged,
		OrderID:        result.ID,
		OrderNumber:    result.OrderNumber,
		PreviousStatus: string(previousOrder),
		CurrentStatus:  string(result.Status),
		ActorID:        cmd.Actor.ID,
		OccurredAt:     s.now(),
		Metadata: map[string]any{
			"productId":  productID,
			"vendorId":   vendorID,
			"itemStatus": string(target),
		},
	})

	return OrderUpdateResult{Order: s.viewFor(result, cmd.Actor), History: entries}, nil
}

func (s *orderService) UpdateItemTracking(ctx context.Context, cmd UpdateItemTrackingCommand) (OrderView, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	productID := strings.TrimSpace(cmd.ProductID)
	if orderID == "" || productID == "" {
		return OrderView{}, fmt.Errorf("%w: order id and product id are required", ErrOrderInvalidInput)
	}
	carrier := strings.TrimSpace(cmd.Carrier)
	number := strings.TrimSpace(cmd.Number)
	if carrier == "" || number == "" {
		return OrderView{}, fmt.Errorf("%w: carrier and tracking number are required", ErrOrderInvalidInput)
	}
	vendorID := strings.TrimSpace(cmd.VendorID)
	if cmd.Actor.Role == domain.ActorRoleVendor {
		vendorID = strings.TrimSpace(cmd.Actor.VendorID)
		if vendorID == "" {
			return OrderView{}, fmt.Errorf("%w: vendor actor is missing a vendor id", ErrOrderForbidden)
		}
	}

	var result Order
	err := s.withConflictRetry(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		idx, err := s.locateItem(order.Items, productID, vendorID)
		if err != nil {
			return err
		}

		now := s.now()
		order.Items[idx].Tracking = &ItemTracking{
			Carrier: carrier,
			Number:  number,
			URL:     cloneStringPtr(cmd.URL),
		}
		order.Items[idx].UpdatedAt = now
		order.UpdatedAt = now

		if err := s.orders.Update(ctx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		order.Revision++
		result = order
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}
	return s.viewFor(result, cmd.Actor), nil
}

func (s *orderService) AdminSetStatus(ctx context.Context, cmd AdminSetStatusCommand) (OrderUpdateResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return OrderUpdateResult{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	// Admin overrides never fall back to the permissive default: an
	// unrecognized word must not silently become PENDING.
	target, ok := domain.ParseOrderStatus(cmd.TargetStatus)
	if !ok {
		return OrderUpdateResult{}, fmt.Errorf("%w: %q is not a recognized order status", ErrOrderInvalidStatus, cmd.TargetStatus)
	}

	var (
		result  Order
		entries []StatusHistoryEntry
	)

	err := s.withConflictRetry(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		now := s.now()
		previous := order.Status
		order.Status = target
		order.UpdatedAt = now
		s.stampMilestones(&order, now)

		entries = entries[:0]
		entries = append(entries, s.newHistoryEntry(order.ID, domain.HistoryLevelOrder, nil, string(previous), string(target), cmd.Actor, optionalString(strings.TrimSpace(cmd.Reason)), now))

		if err := s.persistWithHistory(ctx, order, entries); err != nil {
			return err
		}
		order.Revision++
		result = order
		return nil
	})
	if err != nil {
		return OrderUpdateResult{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusOverridden,
		OrderID:        result.ID,
		OrderNumber:    result.OrderNumber,
		PreviousStatus: entries[0].FromStatus,
		CurrentStatus:  string(result.Status),
		ActorID:        cmd.Actor.ID,
		OccurredAt:     s.now(),
	})

	return OrderUpdateResult{Order: s.viewFor(result, cmd.Actor), History: entries}, nil
}

func (s *orderService) AdminCancel(ctx context.Context, cmd AdminCancelCommand) (OrderUpdateResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return OrderUpdateResult{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return OrderUpdateResult{}, fmt.Errorf("%w: cancellation reason is required", ErrOrderInvalidInput)
	}

	var (
		result  Order
		entries []StatusHistoryEntry
	)

	err := s.withConflictRetry(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		now := s.now()
		previousOrder := order.Status
		entries = entries[:0]

		cancelled := 0
		for idx := range order.Items {
			item := &order.Items[idx]
			if !matchesTarget(cmd.Items, *item) {
				continue
			}
			if domain.IsTerminalItemStatus(item.Status) {
				continue
			}
			previous := item.Status
			item.Status = domain.ItemStatusCancelled
			item.UpdatedAt = now
			entries = append(entries, s.newHistoryEntry(order.ID, domain.HistoryLevelItem, item, string(previous), string(domain.ItemStatusCancelled), cmd.Actor, optionalString(reason), now))
			cancelled++
		}
		if cancelled == 0 {
			return fmt.Errorf("%w: order %s", ErrOrderNoCancellableItems, orderID)
		}

		order.Status = domain.AggregateFromItems(order.Items)
		order.UpdatedAt = now
		s.stampMilestones(&order, now)

		entries = append(entries, s.newHistoryEntry(order.ID, domain.HistoryLevelOrder, nil, string(previousOrder), string(order.Status), cmd.Actor, optionalString(reason), now))

		if err := s.persistWithHistory(ctx, order, entries); err != nil {
			return err
		}
		order.Revision++
		result = order
		return nil
	})
	if err != nil {
		return OrderUpdateResult{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventCancelled,
		OrderID:        result.ID,
		OrderNumber:    result.OrderNumber,
		PreviousStatus: entries[len(entries)-1].FromStatus,
		CurrentStatus:  string(result.Status),
		ActorID:        cmd.Actor.ID,
		OccurredAt:     s.now(),
		Metadata:       map[string]any{"reason": reason},
	})

	return OrderUpdateResult{Order: s.viewFor(result, cmd.Actor), History: entries}, nil
}

func (s *orderService) GetOrder(ctx context.Context, query GetOrderQuery) (OrderView, error) {
	orderID := strings.TrimSpace(query.OrderID)
	if orderID == "" {
		return OrderView{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return OrderView{}, s.mapRepositoryError(err)
	}
	if err := s.authorizeRead(order, query.Actor); err != nil {
		return OrderView{}, err
	}
	return s.viewFor(order, query.Actor), nil
}

func (s *orderService) ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[OrderView], error) {
	filter := repositories.OrderListFilter{
		Status:     query.Status,
		DateRange:  query.DateRange,
		Pagination: query.Pagination,
	}
	switch query.Actor.Role {
	case domain.ActorRoleAdmin:
		// unrestricted
	case domain.ActorRoleVendor:
		vendorID := strings.TrimSpace(query.Actor.VendorID)
		if vendorID == "" {
			return domain.CursorPage[OrderView]{}, fmt.Errorf("%w: vendor actor is missing a vendor id", ErrOrderForbidden)
		}
		filter.VendorID = vendorID
	default:
		customerID := strings.TrimSpace(query.Actor.ID)
		if customerID == "" {
			return domain.CursorPage[OrderView]{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
		}
		filter.CustomerID = customerID
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[OrderView]{}, s.mapRepositoryError(err)
	}

	views := make([]OrderView, 0, len(page.Items))
	for _, order := range page.Items {
		views = append(views, s.viewFor(order, query.Actor))
	}
	return domain.CursorPage[OrderView]{Items: views, NextPageToken: page.NextPageToken}, nil
}

func (s *orderService) GetTimeline(ctx context.Context, query TimelineQuery) (domain.CursorPage[StatusHistoryEntry], error) {
	orderID := strings.TrimSpace(query.OrderID)
	if orderID == "" {
		return domain.CursorPage[StatusHistoryEntry]{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.CursorPage[StatusHistoryEntry]{}, s.mapRepositoryError(err)
	}
	if err := s.authorizeRead(order, query.Actor); err != nil {
		return domain.CursorPage[StatusHistoryEntry]{}, err
	}

	filter := repositories.HistoryFilter{
		OrderID:    orderID,
		Pagination: query.Pagination,
	}
	if query.Actor.Role == domain.ActorRoleVendor {
		filter.VendorID = strings.TrimSpace(query.Actor.VendorID)
	}

	page, err := s.history.ListByOrder(ctx, filter)
	if err != nil {
		return domain.CursorPage[StatusHistoryEntry]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// resolveItemStatus applies the configured normalization policy to
// vendor-supplied input. The permissive path logs when the default kicks in
// so bad input is visible rather than silently absorbed.
func (s *orderService) resolveItemStatus(ctx context.Context, raw string) (ItemStatus, error) {
	status, ok := domain.ParseItemStatus(raw)
	if ok {
		return status, nil
	}
	if s.strict {
		return "", fmt.Errorf("%w: %q is not a recognized item status", ErrOrderInvalidStatus, raw)
	}
	s.logger(ctx, "order.status.permissive_default", map[string]any{
		"input":    raw,
		"resolved": string(status),
	})
	return status, nil
}

// locateItem finds the line item addressed by (vendorID, productID). A
// missing product is NOT_FOUND; a product owned by a different vendor is
// FORBIDDEN so vendors cannot probe one another's lines.
func (s *orderService) locateItem(items []OrderItem, productID, vendorID string) (int, error) {
	productSeen := false
	for idx, item := range items {
		if item.ProductID != productID {
			continue
		}
		productSeen = true
		if vendorID == "" || item.VendorID == vendorID {
			return idx, nil
		}
	}
	if productSeen {
		return 0, fmt.Errorf("%w: item %s belongs to another vendor", ErrOrderForbidden, productID)
	}
	return 0, fmt.Errorf("%w: item %s", ErrOrderNotFound, productID)
}

func (s *orderService) authorizeRead(order Order, actor Actor) error {
	switch actor.Role {
	case domain.ActorRoleAdmin, domain.ActorRoleSystem:
		return nil
	case domain.ActorRoleVendor:
		vendorID := strings.TrimSpace(actor.VendorID)
		for _, item := range order.Items {
			if item.VendorID == vendorID && vendorID != "" {
				return nil
			}
		}
		return fmt.Errorf("%w: no items for vendor on order %s", ErrOrderForbidden, order.ID)
	default:
		if order.CustomerID == actor.ID && actor.ID != "" {
			return nil
		}
		return fmt.Errorf("%w: order %s belongs to another customer", ErrOrderForbidden, order.ID)
	}
}

// viewFor narrows the aggregate to what the actor may see. Vendor views omit
// other vendors' line items.
func (s *orderService) viewFor(order Order, actor Actor) OrderView {
	visible := order
	visible.Items = cloneItems(order.Items)
	if actor.Role == domain.ActorRoleVendor {
		vendorID := strings.TrimSpace(actor.VendorID)
		filtered := make([]OrderItem, 0, len(visible.Items))
		for _, item := range visible.Items {
			if item.VendorID == vendorID {
				filtered = append(filtered, item)
			}
		}
		visible.Items = filtered
	}
	return OrderView{
		Order:        visible,
		LegacyStatus: domain.LegacyOrderStatus(order.Status),
	}
}

// stampMilestones sets milestone timestamps the first time the aggregate
// reaches the corresponding status. Values are never cleared or overwritten.
func (s *orderService) stampMilestones(order *Order, now time.Time) {
	switch order.Status {
	case domain.OrderStatusProcessing:
		if order.ConfirmedAt == nil {
			order.ConfirmedAt = &now
		}
	case domain.OrderStatusPartiallyShipped, domain.OrderStatusShipped:
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
	case domain.OrderStatusPartiallyDelivered, domain.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
	case domain.OrderStatusCancelled:
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
	}
}

// persistWithHistory writes the order and its history deltas in one unit of
// work so a committed status change always carries its audit trail.
func (s *orderService) persistWithHistory(ctx context.Context, order Order, entries []StatusHistoryEntry) error {
	err := s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
		for _, entry := range entries {
			if err := s.history.Append(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	return s.mapRepositoryError(err)
}

// withConflictRetry replays fn from its initial read after an
// optimistic-concurrency conflict, up to maxConflictRetries attempts.
func (s *orderService) withConflictRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, ErrOrderConflict) {
			return err
		}
		s.logger(ctx, "order.update.conflict_retry", map[string]any{
			"attempt": attempt + 1,
		})
	}
	return err
}

func (s *orderService) newHistoryEntry(orderID string, level domain.HistoryLevel, item *OrderItem, from, to string, actor Actor, note *string, now time.Time) StatusHistoryEntry {
	entry := StatusHistoryEntry{
		ID:         historyIDPrefix + s.newID(),
		OrderID:    orderID,
		Level:      level,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Note:       note,
		CreatedAt:  now,
	}
	if item != nil {
		entry.ProductID = valuePtr(item.ProductID)
		entry.VendorID = valuePtr(item.VendorID)
	}
	return entry
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("NM-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func matchesTarget(targets []ItemRef, item OrderItem) bool {
	if len(targets) == 0 {
		return true
	}
	for _, ref := range targets {
		if ref.ProductID == item.ProductID && ref.VendorID == item.VendorID {
			return true
		}
	}
	return false
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func cloneItems(items []OrderItem) []OrderItem {
	cloned := make([]OrderItem, len(items))
	copy(cloned, items)
	for i := range cloned {
		cloned[i].Note = cloneStringPtr(items[i].Note)
		if items[i].Tracking != nil {
			tracking := *items[i].Tracking
			tracking.URL = cloneStringPtr(items[i].Tracking.URL)
			cloned[i].Tracking = &tracking
		}
	}
	return cloned
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	ref := *value
	return &ref
}

func valuePtr[T any](v T) *T {
	return &v
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	ref := v
	return &ref
}
