package domaintest

import (
	"context"
	"sort"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/domain"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/documents/payroll"
	"pressledger/internal/domain/documents/purchase_invoice"
	"pressledger/internal/domain/payments"
)

// InvoiceRepo is a generic in-memory documents.InvoiceRepository. The clone
// func copies the concrete document struct; a shallow copy is enough because
// items are stored and served separately.
type InvoiceRepo[T documents.InvoiceDocument] struct {
	clone func(T) T
	byID  map[id.ID]T
	items map[id.ID][]documents.Item
}

// NewInvoiceRepo creates the repository for one document kind.
func NewInvoiceRepo[T documents.InvoiceDocument](clone func(T) T) *InvoiceRepo[T] {
	return &InvoiceRepo[T]{
		clone: clone,
		byID:  make(map[id.ID]T),
		items: make(map[id.ID][]documents.Item),
	}
}

func (r *InvoiceRepo[T]) Create(ctx context.Context, doc T) error {
	if _, ok := r.byID[doc.GetID()]; ok {
		return apperror.NewDuplicate("document", "id", doc.GetID().String())
	}
	r.byID[doc.GetID()] = r.clone(doc)
	return nil
}

func (r *InvoiceRepo[T]) GetByID(ctx context.Context, docID id.ID) (T, error) {
	var zero T
	doc, ok := r.byID[docID]
	if !ok {
		return zero, apperror.NewNotFound("document", docID.String())
	}
	return r.clone(doc), nil
}

func (r *InvoiceRepo[T]) GetByNumber(ctx context.Context, number string) (T, error) {
	var zero T
	for _, doc := range r.byID {
		if doc.GetNumber() == number {
			return r.clone(doc), nil
		}
	}
	return zero, apperror.NewNotFound("document", number)
}

func (r *InvoiceRepo[T]) Update(ctx context.Context, doc T) error {
	stored, ok := r.byID[doc.GetID()]
	if !ok || stored.Body().Version != doc.Body().Version-1 {
		return apperror.NewConcurrentModification("document", doc.GetID())
	}
	r.byID[doc.GetID()] = r.clone(doc)
	return nil
}

func (r *InvoiceRepo[T]) Delete(ctx context.Context, docID id.ID) error {
	delete(r.byID, docID)
	delete(r.items, docID)
	return nil
}

func (r *InvoiceRepo[T]) GetForUpdate(ctx context.Context, docID id.ID) (T, error) {
	return r.GetByID(ctx, docID)
}

func (r *InvoiceRepo[T]) GetItems(ctx context.Context, docID id.ID) ([]documents.Item, error) {
	return append([]documents.Item(nil), r.items[docID]...), nil
}

func (r *InvoiceRepo[T]) SaveItems(ctx context.Context, docID id.ID, items []documents.Item) error {
	r.items[docID] = append([]documents.Item(nil), items...)
	return nil
}

func (r *InvoiceRepo[T]) List(ctx context.Context, f documents.ListFilter) (domain.ListResult[T], error) {
	var items []T
	for _, doc := range r.byID {
		body := doc.Body()
		if f.PartnerID != nil && body.PartnerID != *f.PartnerID {
			continue
		}
		if f.Status != nil && body.Status != *f.Status {
			continue
		}
		if f.PaymentStatus != nil && body.PaymentStatus != *f.PaymentStatus {
			continue
		}
		if f.DateFrom != nil && body.Date.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && body.Date.After(*f.DateTo) {
			continue
		}
		items = append(items, r.clone(doc))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].GetNumber() < items[j].GetNumber() })
	return domain.ListResult[T]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}, nil
}

var _ documents.InvoiceRepository[*purchase_invoice.PurchaseInvoice] = (*InvoiceRepo[*purchase_invoice.PurchaseInvoice])(nil)

// PayrollRepo implements payroll.Repository.
type PayrollRepo struct {
	byID  map[id.ID]*payroll.Run
	lines map[id.ID][]payroll.Line
}

// NewPayrollRepo creates an empty payroll store.
func NewPayrollRepo() *PayrollRepo {
	return &PayrollRepo{
		byID:  make(map[id.ID]*payroll.Run),
		lines: make(map[id.ID][]payroll.Line),
	}
}

func cloneRun(r *payroll.Run) *payroll.Run {
	c := *r
	c.Lines = append([]payroll.Line(nil), r.Lines...)
	return &c
}

func (r *PayrollRepo) Create(ctx context.Context, run *payroll.Run) error {
	if _, ok := r.byID[run.ID]; ok {
		return apperror.NewDuplicate("payroll_run", "id", run.ID.String())
	}
	r.byID[run.ID] = cloneRun(run)
	return nil
}

func (r *PayrollRepo) GetByID(ctx context.Context, runID id.ID) (*payroll.Run, error) {
	run, ok := r.byID[runID]
	if !ok {
		return nil, apperror.NewNotFound("payroll_run", runID.String())
	}
	return cloneRun(run), nil
}

func (r *PayrollRepo) GetByNumber(ctx context.Context, number string) (*payroll.Run, error) {
	for _, run := range r.byID {
		if run.Number == number {
			return cloneRun(run), nil
		}
	}
	return nil, apperror.NewNotFound("payroll_run", number)
}

func (r *PayrollRepo) Update(ctx context.Context, run *payroll.Run) error {
	stored, ok := r.byID[run.ID]
	if !ok || stored.Version != run.Version-1 {
		return apperror.NewConcurrentModification("payroll_run", run.ID)
	}
	r.byID[run.ID] = cloneRun(run)
	return nil
}

func (r *PayrollRepo) Delete(ctx context.Context, runID id.ID) error {
	delete(r.byID, runID)
	delete(r.lines, runID)
	return nil
}

func (r *PayrollRepo) GetForUpdate(ctx context.Context, runID id.ID) (*payroll.Run, error) {
	return r.GetByID(ctx, runID)
}

func (r *PayrollRepo) GetLines(ctx context.Context, runID id.ID) ([]payroll.Line, error) {
	return append([]payroll.Line(nil), r.lines[runID]...), nil
}

func (r *PayrollRepo) SaveLines(ctx context.Context, runID id.ID, lines []payroll.Line) error {
	r.lines[runID] = append([]payroll.Line(nil), lines...)
	return nil
}

func (r *PayrollRepo) ExistsConfirmedForMonth(ctx context.Context, month time.Time) (bool, error) {
	for _, run := range r.byID {
		if run.Status == entity.StatusConfirmed &&
			run.Month.Year() == month.Year() && run.Month.Month() == month.Month() {
			return true, nil
		}
	}
	return false, nil
}

func (r *PayrollRepo) List(ctx context.Context, f payroll.ListFilter) (domain.ListResult[*payroll.Run], error) {
	var items []*payroll.Run
	for _, run := range r.byID {
		if f.Status != nil && run.Status != *f.Status {
			continue
		}
		if f.MonthFrom != nil && run.Month.Before(*f.MonthFrom) {
			continue
		}
		if f.MonthTo != nil && run.Month.After(*f.MonthTo) {
			continue
		}
		items = append(items, cloneRun(run))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Month.Before(items[j].Month) })
	return domain.ListResult[*payroll.Run]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}, nil
}

var _ payroll.Repository = (*PayrollRepo)(nil)

// PaymentRepo implements payments.Repository.
type PaymentRepo struct {
	byID map[id.ID]*payments.Payment
}

// NewPaymentRepo creates an empty payment store.
func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{byID: make(map[id.ID]*payments.Payment)}
}

func clonePayment(p *payments.Payment) *payments.Payment {
	c := *p
	return &c
}

func (r *PaymentRepo) Create(ctx context.Context, p *payments.Payment) error {
	if _, ok := r.byID[p.ID]; ok {
		return apperror.NewDuplicate("payment", "id", p.ID.String())
	}
	r.byID[p.ID] = clonePayment(p)
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, paymentID id.ID) (*payments.Payment, error) {
	p, ok := r.byID[paymentID]
	if !ok {
		return nil, apperror.NewNotFound("payment", paymentID.String())
	}
	return clonePayment(p), nil
}

func (r *PaymentRepo) GetForUpdate(ctx context.Context, paymentID id.ID) (*payments.Payment, error) {
	return r.GetByID(ctx, paymentID)
}

func (r *PaymentRepo) Update(ctx context.Context, p *payments.Payment) error {
	stored, ok := r.byID[p.ID]
	if !ok || stored.Version != p.Version-1 {
		return apperror.NewConcurrentModification("payment", p.ID)
	}
	r.byID[p.ID] = clonePayment(p)
	return nil
}

func (r *PaymentRepo) ListByInvoice(ctx context.Context, invoiceKind string, invoiceID id.ID) ([]*payments.Payment, error) {
	var out []*payments.Payment
	for _, p := range r.byID {
		if p.InvoiceKind == invoiceKind && p.InvoiceID == invoiceID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *PaymentRepo) List(ctx context.Context, f payments.ListFilter) (domain.ListResult[*payments.Payment], error) {
	var items []*payments.Payment
	for _, p := range r.byID {
		if f.InvoiceKind != nil && p.InvoiceKind != *f.InvoiceKind {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if f.Method != nil && p.Method != *f.Method {
			continue
		}
		if f.DateFrom != nil && p.Date.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && p.Date.After(*f.DateTo) {
			continue
		}
		items = append(items, clonePayment(p))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })
	return domain.ListResult[*payments.Payment]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}, nil
}

var _ payments.Repository = (*PaymentRepo)(nil)

// AdvanceRepo implements payments.AdvanceRepository. ListOpenByEmployee
// preserves FIFO order by request date, then creation time.
type AdvanceRepo struct {
	byID map[id.ID]*payments.Advance
}

// NewAdvanceRepo creates an empty advance store.
func NewAdvanceRepo() *AdvanceRepo {
	return &AdvanceRepo{byID: make(map[id.ID]*payments.Advance)}
}

func cloneAdvance(a *payments.Advance) *payments.Advance {
	c := *a
	if a.LastDeductionMonth != nil {
		m := *a.LastDeductionMonth
		c.LastDeductionMonth = &m
	}
	return &c
}

func (r *AdvanceRepo) Create(ctx context.Context, a *payments.Advance) error {
	if _, ok := r.byID[a.ID]; ok {
		return apperror.NewDuplicate("advance", "id", a.ID.String())
	}
	r.byID[a.ID] = cloneAdvance(a)
	return nil
}

func (r *AdvanceRepo) GetByID(ctx context.Context, advanceID id.ID) (*payments.Advance, error) {
	a, ok := r.byID[advanceID]
	if !ok {
		return nil, apperror.NewNotFound("advance", advanceID.String())
	}
	return cloneAdvance(a), nil
}

func (r *AdvanceRepo) GetForUpdate(ctx context.Context, advanceID id.ID) (*payments.Advance, error) {
	return r.GetByID(ctx, advanceID)
}

func (r *AdvanceRepo) Update(ctx context.Context, a *payments.Advance) error {
	stored, ok := r.byID[a.ID]
	if !ok || stored.Version != a.Version-1 {
		return apperror.NewConcurrentModification("advance", a.ID)
	}
	r.byID[a.ID] = cloneAdvance(a)
	return nil
}

func (r *AdvanceRepo) ListOpenByEmployee(ctx context.Context, employeeID id.ID) ([]*payments.Advance, error) {
	var out []*payments.Advance
	for _, a := range r.byID {
		if a.EmployeeID == employeeID && a.Status == payments.AdvanceOpen {
			out = append(out, cloneAdvance(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestDate.Equal(out[j].RequestDate) {
			return out[i].RequestDate.Before(out[j].RequestDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *AdvanceRepo) List(ctx context.Context, f payments.AdvanceListFilter) (domain.ListResult[*payments.Advance], error) {
	var items []*payments.Advance
	for _, a := range r.byID {
		if f.EmployeeID != nil && a.EmployeeID != *f.EmployeeID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		items = append(items, cloneAdvance(a))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].RequestDate.Before(items[j].RequestDate) })
	return domain.ListResult[*payments.Advance]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}, nil
}

var _ payments.AdvanceRepository = (*AdvanceRepo)(nil)
