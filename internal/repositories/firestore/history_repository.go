package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/novamart/api/internal/domain"
	pfirestore "github.com/novamart/api/internal/platform/firestore"
	"github.com/novamart/api/internal/repositories"
)

const historyCollection = "orderStatusHistory"

// HistoryRepository stores status-history entries in a flat collection keyed
// by entry ID, indexed on orderId and itemVendorId for timeline queries.
// Entries are created once and never touched again.
type HistoryRepository struct {
	base     *pfirestore.BaseRepository[historyDocument]
	provider *pfirestore.Provider
}

var _ repositories.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository constructs a Firestore-backed history repository.
func NewHistoryRepository(provider *pfirestore.Provider) (*HistoryRepository, error) {
	if provider == nil {
		return nil, errors.New("history repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[historyDocument](provider, historyCollection, nil, nil)
	return &HistoryRepository{base: base, provider: provider}, nil
}

// Append writes one immutable history entry, joining an ambient registry
// transaction when one is on the context.
func (r *HistoryRepository) Append(ctx context.Context, entry domain.StatusHistoryEntry) error {
	if r == nil || r.base == nil {
		return errors.New("history repository not initialised")
	}
	entryID := strings.TrimSpace(entry.ID)
	if entryID == "" {
		return errors.New("history repository: entry id is required")
	}
	if strings.TrimSpace(entry.OrderID) == "" {
		return errors.New("history repository: order id is required")
	}

	doc := newHistoryDocument(entry)

	ref, err := r.base.DocumentRef(ctx, entryID)
	if err != nil {
		return err
	}

	if tx := transactionFrom(ctx); tx != nil {
		return pfirestore.WrapError("history.append", tx.Create(ref, doc))
	}
	_, err = ref.Create(ctx, doc)
	return pfirestore.WrapError("history.append", err)
}

// ListByOrder returns an order's timeline newest-first, optionally narrowed
// to entries touching one vendor's items.
func (r *HistoryRepository) ListByOrder(ctx context.Context, filter repositories.HistoryFilter) (domain.CursorPage[domain.StatusHistoryEntry], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.StatusHistoryEntry]{}, errors.New("history repository not initialised")
	}
	orderID := strings.TrimSpace(filter.OrderID)
	if orderID == "" {
		return domain.CursorPage[domain.StatusHistoryEntry]{}, errors.New("history repository: order id is required")
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
			return domain.CursorPage[domain.StatusHistoryEntry]{}, fmt.Errorf("history repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("orderId", "==", orderID)
		if vendor := strings.TrimSpace(filter.VendorID); vendor != "" {
			q = q.Where("itemVendorId", "==", vendor)
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
		return domain.CursorPage[domain.StatusHistoryEntry]{}, err
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

	items := make([]domain.StatusHistoryEntry, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	return domain.CursorPage[domain.StatusHistoryEntry]{Items: items, NextPageToken: nextToken}, nil
}

type historyDocument struct {
	OrderID       string    `firestore:"orderId"`
	Level         string    `firestore:"level"`
	ItemProductID *string   `firestore:"itemProductId,omitempty"`
	ItemVendorID  *string   `firestore:"itemVendorId,omitempty"`
	FromStatus    string    `firestore:"fromStatus"`
	ToStatus      string    `firestore:"toStatus"`
	ActorID       string    `firestore:"actorId"`
	ActorRole     string    `firestore:"actorRole"`
	Note          *string   `firestore:"note,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

func newHistoryDocument(entry domain.StatusHistoryEntry) historyDocument {
	return historyDocument{
		OrderID:       entry.OrderID,
		Level:         string(entry.Level),
		ItemProductID: entry.ProductID,
		ItemVendorID:  entry.VendorID,
		FromStatus:    entry.FromStatus,
		ToStatus:      entry.ToStatus,
		ActorID:       entry.ActorID,
		ActorRole:     string(entry.ActorRole),
		Note:          entry.Note,
		CreatedAt:     entry.CreatedAt.UTC(),
	}
}

func (d historyDocument) toDomain(id string) domain.StatusHistoryEntry {
	return domain.StatusHistoryEntry{
		ID:         id,
		OrderID:    d.OrderID,
		Level:      domain.HistoryLevel(d.Level),
		ProductID:  d.ItemProductID,
		VendorID:   d.ItemVendorID,
		FromStatus: d.FromStatus,
		ToStatus:   d.ToStatus,
		ActorID:    d.ActorID,
		ActorRole:  domain.ActorRole(d.ActorRole),
		Note:       d.Note,
		CreatedAt:  d.CreatedAt,
	}
}
