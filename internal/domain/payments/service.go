package payments

import (
	"context"
	"fmt"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/config"
	"pressledger/internal/core/id"
	"pressledger/internal/core/tx"
	"pressledger/internal/core/types"
	"pressledger/internal/domain"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/audit"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/partners"
	"pressledger/pkg/logger"
	"pressledger/pkg/numerator"
)

// RecordInput describes one payment to record against an invoice.
type RecordInput struct {
	// PaymentID makes retries idempotent: recording the same ID twice
	// returns the original payment. Nil generates a fresh ID.
	PaymentID *id.ID

	InvoiceKind string
	InvoiceID   id.ID

	Amount types.Money
	Date   time.Time
	Method Method

	// AccountCode overrides the configured default for the method.
	AccountCode string
	Reference   string
	CreatedBy   string
}

// Service allocates payments to invoices and voids them. The journal engine
// moves the partner balance; this service never writes balances directly.
type Service struct {
	repo      Repository
	gateway   InvoiceGateway
	journal   *journal.Engine
	accounts  *accounts.Service
	partners  *partners.Service
	numerator *numerator.Service
	audit     audit.Recorder
	txManager tx.Manager
	cfg       config.Config
}

// NewService creates the payment service.
func NewService(
	repo Repository,
	gateway InvoiceGateway,
	journalEngine *journal.Engine,
	accountsSvc *accounts.Service,
	partnersSvc *partners.Service,
	num *numerator.Service,
	auditRec audit.Recorder,
	txManager tx.Manager,
	cfg config.Config,
) *Service {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		journal:   journalEngine,
		accounts:  accountsSvc,
		partners:  partnersSvc,
		numerator: num,
		audit:     auditRec,
		txManager: txManager,
		cfg:       cfg,
	}
}

// Record validates and posts a payment in one transaction: the entry moves
// cash against the partner control account, and the invoice's paid amount
// and payment status are updated under the invoice row lock.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Payment, bool, error) {
	var (
		result   *Payment
		replayed bool
	)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if in.PaymentID != nil {
			existing, err := s.repo.GetByID(ctx, *in.PaymentID)
			if err != nil && !apperror.IsNotFound(err) {
				return err
			}
			if existing != nil {
				if !existing.IsPosted() {
					return apperror.NewInvariantViolation("payment id was used by a non-posted payment").
						WithDetail("payment_id", existing.ID.String()).
						WithDetail("status", string(existing.Status))
				}
				result = existing
				replayed = true
				return nil
			}
		}

		p := New(in.InvoiceKind, in.InvoiceID, types.RoundMoney(in.Amount), in.Date, in.Method)
		if in.PaymentID != nil {
			p.ID = *in.PaymentID
		}
		p.Reference = in.Reference
		p.CreatedBy = in.CreatedBy
		p.UpdatedBy = in.CreatedBy
		if err := p.Validate(ctx); err != nil {
			return err
		}
		if err := checkNotFuture(p.Date); err != nil {
			return err
		}

		locked, err := s.gateway.Lock(ctx, p.InvoiceKind, p.InvoiceID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound(p.InvoiceKind, p.InvoiceID.String())
			}
			return err
		}
		inv := locked.Body

		if !inv.IsConfirmed() {
			return apperror.NewInvariantViolation("payments apply to confirmed invoices only").
				WithDetail("invoice", inv.Number).
				WithDetail("status", string(inv.Status))
		}

		outstanding := inv.Outstanding()
		if p.Amount.GreaterThan(outstanding.Add(types.MoneyTolerance)) {
			return apperror.NewOverpayment(inv.Number, p.Amount.String(), outstanding.String())
		}

		account, err := s.resolvePaymentAccount(ctx, p.Method, in.AccountCode)
		if err != nil {
			return err
		}
		p.AccountCode = account.Code

		number, err := s.numerator.GetNextNumber(ctx,
			numerator.DefaultConfig(NumberPrefix),
			&numerator.Options{Strategy: numerator.StrategyStrict},
			p.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		p.Number = number

		lines, err := s.paymentLines(ctx, p, inv, account.Code)
		if err != nil {
			return err
		}

		entry, err := s.journal.Compose(ctx, journal.ComposeInput{
			Date:        p.Date,
			Description: fmt.Sprintf("Payment %s for %s %s", p.Number, p.InvoiceKind, inv.Number),
			Source:      journal.SourceRef{Kind: SourceKind, ID: p.ID, Number: p.Number},
			CreatedBy:   p.CreatedBy,
			Lines:       lines,
		})
		if err != nil {
			return err
		}
		entry, entryReplayed, err := s.journal.Post(ctx, entry)
		if err != nil {
			return err
		}
		if entryReplayed {
			// An entry exists for this payment id but no payment row did;
			// the two stores disagree.
			return apperror.NewInvariantViolation("payment entry already posted").
				WithDetail("payment_id", p.ID.String()).
				WithDetail("entry_number", entry.Number)
		}

		p.Status = StatusPosted
		p.EntryNumber = &entry.Number
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		inv.ApplyPayment(p.Amount)
		if err := locked.Save(ctx); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		if err := s.audit.Record(ctx, audit.Record{
			EntityType: "payment",
			EntityID:   p.ID,
			Action:     audit.ActionPost,
			Changes: map[string]any{
				"number":       p.Number,
				"invoice":      inv.Number,
				"amount":       p.Amount.String(),
				"entry_number": entry.Number,
			},
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if replayed {
		logger.Info(ctx, "payment recording replayed",
			"payment_id", result.ID,
			"number", result.Number)
	} else {
		logger.Info(ctx, "payment recorded",
			"number", result.Number,
			"invoice_kind", result.InvoiceKind,
			"amount", result.Amount.String())
	}

	return result, replayed, nil
}

// Void reverses a posted payment's entry and restores the invoice's paid
// state. Returns the reversing entry.
func (s *Service) Void(ctx context.Context, paymentID id.ID, reason string) (*journal.Entry, error) {
	var reversal *journal.Entry

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, paymentID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("payment", paymentID.String())
			}
			return err
		}
		if !p.IsPosted() {
			return apperror.NewInvariantViolation("only posted payments can be voided").
				WithDetail("payment_id", p.ID.String()).
				WithDetail("status", string(p.Status))
		}

		entry, err := s.journal.GetBySource(ctx, SourceKind, p.ID)
		if err != nil {
			return fmt.Errorf("load payment entry: %w", err)
		}

		reversal, err = s.journal.Reverse(ctx, entry.ID, reason)
		if err != nil {
			return err
		}

		locked, err := s.gateway.Lock(ctx, p.InvoiceKind, p.InvoiceID)
		if err != nil {
			return err
		}
		locked.Body.RestorePayment(p.Amount)
		if err := locked.Save(ctx); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		p.Status = StatusVoided
		p.Touch()
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		return s.audit.Record(ctx, audit.Record{
			EntityType: "payment",
			EntityID:   p.ID,
			Action:     audit.ActionVoid,
			Changes: map[string]any{
				"number":          p.Number,
				"reversal_number": reversal.Number,
				"reason":          reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment voided",
		"payment_id", paymentID,
		"reversal_number", reversal.Number)

	return reversal, nil
}

// GetByID returns a payment.
func (s *Service) GetByID(ctx context.Context, paymentID id.ID) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("payment", paymentID.String())
		}
		return nil, err
	}
	return p, nil
}

// ListByInvoice returns all payments recorded against an invoice.
func (s *Service) ListByInvoice(ctx context.Context, invoiceKind string, invoiceID id.ID) ([]*Payment, error) {
	return s.repo.ListByInvoice(ctx, invoiceKind, invoiceID)
}

// List returns payments matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) (domain.ListResult[*Payment], error) {
	return s.repo.List(ctx, f)
}

// resolvePaymentAccount resolves and checks the financial account: active,
// postable, and matching the method (cash to a cash account, bank transfers
// and checks to a bank account).
func (s *Service) resolvePaymentAccount(ctx context.Context, method Method, code string) (*accounts.Account, error) {
	if code == "" {
		if method == MethodCash {
			code = s.cfg.Accounts.DefaultCash
		} else {
			code = s.cfg.Accounts.DefaultBank
		}
	}

	account, err := s.accounts.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.IsPostingAllowed(ctx, account); err != nil {
		return nil, err
	}

	if method == MethodCash && !account.IsCash {
		return nil, apperror.NewValidation("cash payments require a cash account").
			WithDetail("account", account.Code)
	}
	if method != MethodCash && !account.IsBank {
		return nil, apperror.NewValidation("bank payments require a bank account").
			WithDetail("account", account.Code).
			WithDetail("method", string(method))
	}

	return account, nil
}

// paymentLines builds the two-sided entry: money out to a supplier debits
// their control account; money in from a customer credits theirs.
func (s *Service) paymentLines(ctx context.Context, p *Payment, inv *documents.Invoice, settlementCode string) ([]journal.LineInput, error) {
	partner, err := s.partners.GetByID(ctx, inv.PartnerID)
	if err != nil {
		return nil, err
	}
	control, err := s.accounts.GetByID(ctx, partner.ControlAccountID)
	if err != nil {
		return nil, fmt.Errorf("resolve control account: %w", err)
	}
	ref := &journal.PartnerRef{ID: partner.ID, Kind: partner.Kind}

	switch p.InvoiceKind {
	case documents.KindPurchaseInvoice:
		return []journal.LineInput{
			{AccountCode: control.Code, Debit: p.Amount, Partner: ref},
			{AccountCode: settlementCode, Credit: p.Amount},
		}, nil
	case documents.KindSaleInvoice:
		return []journal.LineInput{
			{AccountCode: settlementCode, Debit: p.Amount},
			{AccountCode: control.Code, Credit: p.Amount, Partner: ref},
		}, nil
	default:
		return nil, apperror.NewValidation("document kind does not accept payments").
			WithDetail("kind", p.InvoiceKind)
	}
}

// checkNotFuture rejects payment dates after today (calendar day, UTC).
func checkNotFuture(date time.Time) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if date.UTC().Truncate(24 * time.Hour).After(today) {
		return apperror.NewValidation("payment date must not be in the future").
			WithDetail("date", date.Format("2006-01-02"))
	}
	return nil
}
