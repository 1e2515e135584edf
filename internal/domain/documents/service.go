package documents

import (
	"context"
	"fmt"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/config"
	"pressledger/internal/core/id"
	"pressledger/internal/core/tx"
	"pressledger/internal/domain"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/posting"
	"pressledger/pkg/logger"
	"pressledger/pkg/numerator"
)

// InvoiceServiceConfig wires an InvoiceService for one document kind.
type InvoiceServiceConfig[T InvoiceDocument] struct {
	Repo      InvoiceRepository[T]
	Engine    *posting.Engine
	Partners  *partners.Service
	Accounts  *accounts.Service
	Numerator *numerator.Service
	TxManager tx.Manager
	Cfg       config.Config

	// Kind is the document kind string, PartnerKind the partner side the
	// kind trades with, NumberPrefix the document number prefix.
	Kind         string
	PartnerKind  partners.Kind
	NumberPrefix string
}

// InvoiceService provides the shared lifecycle for invoice-like documents:
// draft CRUD, numbering, confirmation through the posting engine, reversal.
// Kind-specific posting shapes live on the document models.
type InvoiceService[T InvoiceDocument] struct {
	repo      InvoiceRepository[T]
	engine    *posting.Engine
	partners  *partners.Service
	accounts  *accounts.Service
	numerator *numerator.Service
	txManager tx.Manager
	cfg       config.Config
	hooks     *domain.HookRegistry[T]

	kind         string
	partnerKind  partners.Kind
	numberPrefix string
}

// NewInvoiceService creates the service for one document kind.
func NewInvoiceService[T InvoiceDocument](c InvoiceServiceConfig[T]) *InvoiceService[T] {
	return &InvoiceService[T]{
		repo:         c.Repo,
		engine:       c.Engine,
		partners:     c.Partners,
		accounts:     c.Accounts,
		numerator:    c.Numerator,
		txManager:    c.TxManager,
		cfg:          c.Cfg,
		hooks:        domain.NewHookRegistry[T](),
		kind:         c.Kind,
		partnerKind:  c.PartnerKind,
		numberPrefix: c.NumberPrefix,
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *InvoiceService[T]) Hooks() *domain.HookRegistry[T] {
	return s.hooks
}

// Create persists a new draft document, assigning a number if absent.
func (s *InvoiceService[T]) Create(ctx context.Context, doc T) error {
	if err := s.hooks.RunBeforeCreate(ctx, doc); err != nil {
		return err
	}
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if err := s.checkPartnerKind(ctx, doc); err != nil {
		return err
	}

	body := doc.Body()
	if body.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx,
			numerator.DefaultConfig(s.numberPrefix),
			&numerator.Options{Strategy: numerator.StrategyStrict},
			body.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		body.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return s.repo.SaveItems(ctx, body.ID, body.Items)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterCreate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "document created",
		"kind", s.kind,
		"id", body.ID,
		"number", body.Number)
	return nil
}

// GetByID returns the document with its items.
func (s *InvoiceService[T]) GetByID(ctx context.Context, docID id.ID) (T, error) {
	var zero T

	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return zero, apperror.NewNotFound(s.kind, docID.String())
		}
		return zero, err
	}

	items, err := s.repo.GetItems(ctx, docID)
	if err != nil {
		return zero, fmt.Errorf("get items: %w", err)
	}
	doc.Body().Items = items

	return doc, nil
}

// GetByNumber returns the document by its number, with items.
func (s *InvoiceService[T]) GetByNumber(ctx context.Context, number string) (T, error) {
	var zero T

	doc, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		if apperror.IsNotFound(err) {
			return zero, apperror.NewNotFound(s.kind, number)
		}
		return zero, err
	}

	items, err := s.repo.GetItems(ctx, doc.GetID())
	if err != nil {
		return zero, fmt.Errorf("get items: %w", err)
	}
	doc.Body().Items = items

	return doc, nil
}

// Update replaces a draft document and its items.
func (s *InvoiceService[T]) Update(ctx context.Context, doc T) error {
	if err := s.hooks.RunBeforeUpdate(ctx, doc); err != nil {
		return err
	}

	body := doc.Body()
	if err := body.CanModify(); err != nil {
		return err
	}
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if err := s.checkPartnerKind(ctx, doc); err != nil {
		return err
	}

	body.Touch()

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.repo.SaveItems(ctx, body.ID, body.Items)
	})
}

// Cancel abandons a draft document. Confirmed documents must be reversed.
func (s *InvoiceService[T]) Cancel(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound(s.kind, docID.String())
			}
			return err
		}

		body := doc.Body()
		if err := body.CanCancel(); err != nil {
			return err
		}
		body.MarkCancelled()
		return s.repo.Update(ctx, doc)
	})
}

// Confirm posts the document through the posting engine. Idempotent: a
// second confirm returns the original entry number with Replayed set.
func (s *InvoiceService[T]) Confirm(ctx context.Context, docID id.ID) (*posting.Result, error) {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := s.bind(ctx, doc); err != nil {
		return nil, err
	}
	return s.engine.Confirm(ctx, s.store(), doc)
}

// Reverse retracts a confirmed document with a reversing entry and
// compensating stock movements.
func (s *InvoiceService[T]) Reverse(ctx context.Context, docID id.ID, reason string) (*posting.Reversal, error) {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := s.bind(ctx, doc); err != nil {
		return nil, err
	}
	return s.engine.Reverse(ctx, s.store(), doc, reason)
}

// List returns documents matching the filter.
func (s *InvoiceService[T]) List(ctx context.Context, f ListFilter) (domain.ListResult[T], error) {
	return s.repo.List(ctx, f)
}

// checkPartnerKind rejects documents addressed at the wrong partner side
// (a sale invoice naming a supplier, and vice versa).
func (s *InvoiceService[T]) checkPartnerKind(ctx context.Context, doc T) error {
	p, err := s.partners.GetByID(ctx, doc.Body().PartnerID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("partner", doc.Body().PartnerID.String())
		}
		return err
	}
	if p.Kind != s.partnerKind {
		return apperror.NewValidation("partner kind does not match document kind").
			WithDetail("partner", p.Code).
			WithDetail("expected", string(s.partnerKind))
	}
	return nil
}

// bind resolves the posting references the document's journal draft needs.
func (s *InvoiceService[T]) bind(ctx context.Context, doc T) error {
	body := doc.Body()

	p, err := s.partners.GetByID(ctx, body.PartnerID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("partner", body.PartnerID.String())
		}
		return err
	}
	if p.Kind != s.partnerKind {
		return apperror.NewValidation("partner kind does not match document kind").
			WithDetail("partner", p.Code).
			WithDetail("expected", string(s.partnerKind))
	}

	control, err := s.accounts.GetByID(ctx, p.ControlAccountID)
	if err != nil {
		return fmt.Errorf("resolve control account: %w", err)
	}

	body.BindPosting(PostingRefs{
		Accounts:           s.cfg.Accounts,
		PartnerControlCode: control.Code,
		PartnerKind:        p.Kind,
	})
	return nil
}

func (s *InvoiceService[T]) store() posting.DocumentStore {
	return invoiceStore[T]{svc: s}
}

// invoiceStore adapts the repository for the posting engine. Refreshing
// under lock replaces the invoice body but keeps the bound posting refs.
type invoiceStore[T InvoiceDocument] struct {
	svc *InvoiceService[T]
}

func (st invoiceStore[T]) RefreshForUpdate(ctx context.Context, doc posting.Postable) error {
	target, ok := doc.(T)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("unexpected document type %T", doc))
	}

	fresh, err := st.svc.repo.GetForUpdate(ctx, target.GetID())
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound(st.svc.kind, target.GetID().String())
		}
		return err
	}
	items, err := st.svc.repo.GetItems(ctx, target.GetID())
	if err != nil {
		return fmt.Errorf("get items: %w", err)
	}

	refs := target.Body().PostingRefs()
	*target.Body() = *fresh.Body()
	target.Body().Items = items
	target.Body().BindPosting(refs)
	return nil
}

func (st invoiceStore[T]) Save(ctx context.Context, doc posting.Postable) error {
	target, ok := doc.(T)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("unexpected document type %T", doc))
	}
	return st.svc.repo.Update(ctx, target)
}
