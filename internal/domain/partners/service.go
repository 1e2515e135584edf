package partners

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
	"pressledger/pkg/logger"
)

// Service provides business operations for the partner ledger.
type Service struct {
	*domain.CatalogService[*Partner]
	repo      Repository
	accounts  *accounts.Service
	txManager tx.Manager
	cfg       config.Config
}

// NewService creates a new partner service.
func NewService(repo Repository, accountsSvc *accounts.Service, txManager tx.Manager, cfg config.Config) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Partner]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "partner",
	})

	return &Service{
		CatalogService: base,
		repo:           repo,
		accounts:       accountsSvc,
		txManager:      txManager,
		cfg:            cfg,
	}
}

// controlParentCode returns the configured control root for the kind.
func (s *Service) controlParentCode(kind Kind) string {
	if kind == KindSupplier {
		return s.cfg.Accounts.SupplierControlParent
	}
	return s.cfg.Accounts.CustomerControlParent
}

// Register creates a partner together with its control sub-account, in one
// transaction. The sub-account code is derived from the parent code and the
// partner code.
func (s *Service) Register(ctx context.Context, p *Partner) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByKindAndCode(ctx, p.Kind, p.Code)
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}
		if existing != nil {
			return apperror.NewDuplicate("partner", "code", p.Code)
		}

		parentCode := s.controlParentCode(p.Kind)
		subCode := fmt.Sprintf("%s.%s", parentCode, p.Code)
		control, err := s.accounts.CreateControlChild(ctx, parentCode, subCode, p.Name)
		if err != nil {
			return fmt.Errorf("create control account: %w", err)
		}
		p.ControlAccountID = control.ID

		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create partner: %w", err)
		}

		logger.Info(ctx, "partner registered",
			"kind", string(p.Kind),
			"code", p.Code,
			"control_account", subCode)
		return nil
	})
}

// GetByKindAndCode retrieves a partner by (kind, code).
func (s *Service) GetByKindAndCode(ctx context.Context, kind Kind, code string) (*Partner, error) {
	p, err := s.repo.GetByKindAndCode(ctx, kind, code)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("partner", fmt.Sprintf("%s/%s", kind, code))
		}
		return nil, err
	}
	return p, nil
}

// Balance returns the materialised balance.
func (s *Service) Balance(ctx context.Context, partnerID id.ID) (types.Money, error) {
	p, err := s.GetByID(ctx, partnerID)
	if err != nil {
		return types.ZeroMoney(), err
	}
	return p.Balance, nil
}

// Statement returns posted lines for the partner with running balances,
// starting from the opening balance at `from`.
func (s *Service) Statement(ctx context.Context, partnerID id.ID, from, to time.Time) ([]StatementLine, error) {
	p, err := s.GetByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	opening, err := s.repo.OpeningBalance(ctx, partnerID, from)
	if err != nil {
		return nil, fmt.Errorf("opening balance: %w", err)
	}

	lines, err := s.repo.StatementLines(ctx, partnerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("statement lines: %w", err)
	}

	running := opening
	for i := range lines {
		running = running.Add(p.SignedDelta(lines[i].Debit, lines[i].Credit))
		lines[i].Running = running
	}

	return lines, nil
}

// Reconcile compares the materialised balance to the posted line sum.
func (s *Service) Reconcile(ctx context.Context, partnerID id.ID) (Reconciliation, error) {
	p, err := s.GetByID(ctx, partnerID)
	if err != nil {
		return Reconciliation{}, err
	}

	debit, credit, err := s.repo.SumPostedLines(ctx, partnerID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("sum lines: %w", err)
	}

	fromLines := p.SignedDelta(debit, credit)
	disc := p.Balance.Sub(fromLines)

	return Reconciliation{
		PartnerID:    p.ID,
		Code:         p.Code,
		OK:           disc.IsZero(),
		Materialised: p.Balance,
		FromLines:    fromLines,
		Discrepancy:  disc,
	}, nil
}

// AssertConsistent verifies every partner against its posted lines and each
// control parent against the sum of its children. Used by period close and
// audits.
func (s *Service) AssertConsistent(ctx context.Context) error {
	for _, kind := range []Kind{KindCustomer, KindSupplier} {
		list, err := s.repo.ListByKind(ctx, kind)
		if err != nil {
			return fmt.Errorf("list %s: %w", kind, err)
		}

		childSum := types.ZeroMoney()
		for _, p := range list {
			rec, err := s.Reconcile(ctx, p.ID)
			if err != nil {
				return err
			}
			if !rec.OK {
				return apperror.NewInvariantViolation("partner balance disagrees with posted lines").
					WithDetail("partner", p.Code).
					WithDetail("materialised", rec.Materialised.String()).
					WithDetail("from_lines", rec.FromLines.String())
			}

			control, err := s.accounts.GetBalance(ctx, p.ControlAccountID)
			if err != nil {
				return fmt.Errorf("control balance for %s: %w", p.Code, err)
			}
			net := control.Net()
			if kind == KindSupplier {
				net = net.Neg()
			}
			if !net.Equal(p.Balance) {
				return apperror.NewInvariantViolation("control account disagrees with partner balance").
					WithDetail("partner", p.Code).
					WithDetail("control_net", net.String()).
					WithDetail("partner_balance", p.Balance.String())
			}

			childSum = childSum.Add(net)
		}

		parent, err := s.accounts.Resolve(ctx, s.controlParentCode(kind))
		if err != nil {
			return err
		}
		// The parent itself is never posted to; its balance is the sum of
		// its children, read through the account tree.
		childTotal, err := s.sumChildControlNets(ctx, parent.ID, kind)
		if err != nil {
			return err
		}
		if !childTotal.Equal(childSum) {
			return apperror.NewInvariantViolation("control parent disagrees with sum of children").
				WithDetail("parent", parent.Code).
				WithDetail("children_sum", childSum.String()).
				WithDetail("tree_sum", childTotal.String())
		}
	}

	return nil
}

func (s *Service) sumChildControlNets(ctx context.Context, parentID id.ID, kind Kind) (types.Money, error) {
	children, err := s.accounts.Children(ctx, parentID)
	if err != nil {
		return types.ZeroMoney(), err
	}

	total := types.ZeroMoney()
	for _, c := range children {
		b, err := s.accounts.GetBalance(ctx, c.ID)
		if err != nil {
			return types.ZeroMoney(), err
		}
		net := b.Net()
		if kind == KindSupplier {
			net = net.Neg()
		}
		total = total.Add(net)
	}
	return total, nil
}
