package documents

import (
	"context"
	"time"

	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/domain"
	"pressledger/internal/domain/posting"
)

// InvoiceDocument is the constraint for invoice-like documents: a Postable
// exposing its shared Invoice body.
type InvoiceDocument interface {
	posting.Postable
	Body() *Invoice
}

// InvoiceRepository defines persistence shared by all invoice-like kinds.
// Implementations are scoped to one document kind.
type InvoiceRepository[T InvoiceDocument] interface {
	Create(ctx context.Context, doc T) error
	GetByID(ctx context.Context, docID id.ID) (T, error)
	GetByNumber(ctx context.Context, number string) (T, error)
	Update(ctx context.Context, doc T) error
	Delete(ctx context.Context, docID id.ID) error

	// GetForUpdate locks the header row, serialising confirm, reverse, and
	// payment recording against the same document.
	GetForUpdate(ctx context.Context, docID id.ID) (T, error)

	GetItems(ctx context.Context, docID id.ID) ([]Item, error)
	SaveItems(ctx context.Context, docID id.ID, items []Item) error

	List(ctx context.Context, f ListFilter) (domain.ListResult[T], error)
}

// ListFilter for document list queries.
type ListFilter struct {
	domain.ListFilter

	PartnerID     *id.ID
	WarehouseID   *id.ID
	Status        *entity.DocumentStatus
	PaymentStatus *PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}
