package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/novamart/api/internal/domain"
	pfirestore "github.com/novamart/api/internal/platform/firestore"
	"github.com/novamart/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order aggregates in Firestore. Writes join an
// ambient registry transaction when one is on the context.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base, provider: provider}, nil
}

// Insert creates the order document. The order ID must not already exist.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	doc := newOrderDocument(order)
	if doc.Revision <= 0 {
		doc.Revision = 1
	}

	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}

	if tx := transactionFrom(ctx); tx != nil {
		return pfirestore.WrapError("orders.insert", tx.Create(ref, doc))
	}
	_, err = ref.Create(ctx, doc)
	return pfirestore.WrapError("orders.insert", err)
}

// Update rewrites the order document, guarding on the revision the caller
// loaded: the stored revision must still equal order.Revision, and the saved
// document carries order.Revision+1. A mismatch surfaces as a conflict.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}

	doc := newOrderDocument(order)
	doc.Revision = order.Revision + 1

	if tx := transactionFrom(ctx); tx != nil {
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("orders.update", err)
		}
		stored, err := decodeOrderSnapshot(snap)
		if err != nil {
			return err
		}
		if stored.Revision != order.Revision {
			return pfirestore.NewConflictError("orders.update",
				fmt.Errorf("order %s revision %d superseded by %d", orderID, order.Revision, stored.Revision))
		}
		return pfirestore.WrapError("orders.update", tx.Set(ref, doc))
	}

	// Outside a registry transaction, run a dedicated one so the
	// compare-and-swap on the revision stays atomic.
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		stored, err := decodeOrderSnapshot(snap)
		if err != nil {
			return err
		}
		if stored.Revision != order.Revision {
			return pfirestore.NewConflictError("orders.update",
				fmt.Errorf("order %s revision %d superseded by %d", orderID, order.Revision, stored.Revision))
		}
		return tx.Set(ref, doc)
	})
	return pfirestore.WrapError("orders.update", err)
}

// FindByID loads one order aggregate.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	if tx := transactionFrom(ctx); tx != nil {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Order{}, pfirestore.WrapError("orders.get", err)
		}
		doc, err := decodeOrderSnapshot(snap)
		if err != nil {
			return domain.Order{}, err
		}
		return doc.toDomain(id), nil
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns orders matching the filter, newest first, with cursor paging.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeOrderListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	statuses := normaliseStatusFilters(filter.Status)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if customer := strings.TrimSpace(filter.CustomerID); customer != "" {
			q = q.Where("customerId", "==", customer)
		}
		if vendor := strings.TrimSpace(filter.VendorID); vendor != "" {
			q = q.Where("vendorIds", "array-contains", vendor)
		}
		if len(statuses) == 1 {
			q = q.Where("status", "==", statuses[0])
		} else if len(statuses) > 1 {
			// Firestore in clause supports up to 10 values.
			if len(statuses) > 10 {
				statuses = statuses[:10]
			}
			q = q.Where("status", "in", statuses)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeOrderListToken(tokenTime, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	return domain.CursorPage[domain.Order]{Items: items, NextPageToken: nextToken}, nil
}

func decodeOrderSnapshot(snap *firestore.DocumentSnapshot) (orderDocument, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return orderDocument{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	return doc, nil
}

func encodeOrderListToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeOrderListToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}

func normaliseStatusFilters(statuses []string) []string {
	if len(statuses) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(statuses))
	seen := make(map[string]struct{})
	for _, raw := range statuses {
		value := string(domain.NormalizeOrderStatus(raw))
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		normalized = append(normalized, value)
	}
	return normalized
}

type orderDocument struct {
	OrderNumber   string              `firestore:"orderNumber"`
	CustomerID    string              `firestore:"customerId"`
	Status        string              `firestore:"status"`
	PaymentStatus string              `firestore:"paymentStatus,omitempty"`
	Currency      string              `firestore:"currency"`
	Items         []orderItemDocument `firestore:"items"`
	// VendorIDs denormalises the item vendors for array-contains queries.
	VendorIDs   []string   `firestore:"vendorIds"`
	Total       int64      `firestore:"total"`
	Revision    int64      `firestore:"revision"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
	ConfirmedAt *time.Time `firestore:"confirmedAt,omitempty"`
	ShippedAt   *time.Time `firestore:"shippedAt,omitempty"`
	DeliveredAt *time.Time `firestore:"deliveredAt,omitempty"`
	CancelledAt *time.Time `firestore:"cancelledAt,omitempty"`
}

type orderItemDocument struct {
	ProductID string            `firestore:"productId"`
	VendorID  string            `firestore:"vendorId"`
	Name      string            `firestore:"name,omitempty"`
	SKU       string            `firestore:"sku,omitempty"`
	Quantity  int               `firestore:"qty"`
	UnitPrice int64             `firestore:"unitPrice"`
	LineTotal int64             `firestore:"lineTotal"`
	Status    string            `firestore:"status"`
	Note      *string           `firestore:"note,omitempty"`
	Tracking  *trackingDocument `firestore:"tracking,omitempty"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}

type trackingDocument struct {
	Carrier string  `firestore:"carrier"`
	Number  string  `firestore:"number"`
	URL     *string `firestore:"url,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	vendorSet := make(map[string]struct{}, len(order.Items))
	vendorIDs := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID: item.ProductID,
			VendorID:  item.VendorID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
			Status:    string(item.Status),
			Note:      item.Note,
			Tracking:  newTrackingDocument(item.Tracking),
			UpdatedAt: item.UpdatedAt.UTC(),
		})
		if _, ok := vendorSet[item.VendorID]; !ok && item.VendorID != "" {
			vendorSet[item.VendorID] = struct{}{}
			vendorIDs = append(vendorIDs, item.VendorID)
		}
	}

	return orderDocument{
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      strings.ToUpper(strings.TrimSpace(order.Currency)),
		Items:         items,
		VendorIDs:     vendorIDs,
		Total:         order.Total,
		Revision:      order.Revision,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
		ConfirmedAt:   utcPtr(order.ConfirmedAt),
		ShippedAt:     utcPtr(order.ShippedAt),
		DeliveredAt:   utcPtr(order.DeliveredAt),
		CancelledAt:   utcPtr(order.CancelledAt),
	}
}

func newTrackingDocument(tracking *domain.ItemTracking) *trackingDocument {
	if tracking == nil {
		return nil
	}
	return &trackingDocument{
		Carrier: tracking.Carrier,
		Number:  tracking.Number,
		URL:     tracking.URL,
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		var tracking *domain.ItemTracking
		if item.Tracking != nil {
			tracking = &domain.ItemTracking{
				Carrier: item.Tracking.Carrier,
				Number:  item.Tracking.Number,
				URL:     item.Tracking.URL,
			}
		}
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			VendorID:  item.VendorID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
			Status:    domain.NormalizeItemStatus(item.Status),
			Note:      item.Note,
			Tracking:  tracking,
			UpdatedAt: item.UpdatedAt,
		})
	}

	return domain.Order{
		ID:            id,
		OrderNumber:   d.OrderNumber,
		CustomerID:    d.CustomerID,
		Status:        domain.NormalizeOrderStatus(d.Status),
		PaymentStatus: domain.PaymentStatus(d.PaymentStatus),
		Currency:      d.Currency,
		Items:         items,
		Total:         d.Total,
		Revision:      d.Revision,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		ConfirmedAt:   d.ConfirmedAt,
		ShippedAt:     d.ShippedAt,
		DeliveredAt:   d.DeliveredAt,
		CancelledAt:   d.CancelledAt,
	}
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
