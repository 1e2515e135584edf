package accounts

import (
	"context"
	"fmt"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/core/tx"
	"pressledger/internal/core/types"
	"pressledger/internal/domain"
	"pressledger/pkg/logger"
)

// Service provides business operations for the chart of accounts.
type Service struct {
	*domain.CatalogService[*Account]
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new account service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Account]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "account",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		txManager:      txManager,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)

	return svc
}

// prepareForCreate enforces chart-shape rules before inserting an account.
func (s *Service) prepareForCreate(ctx context.Context, acc *Account) error {
	exists, err := s.repo.ExistsByCode(ctx, acc.Code)
	if err != nil {
		return fmt.Errorf("check code: %w", err)
	}
	if exists {
		// Codes are never reused, even for deactivated accounts.
		return apperror.NewDuplicate("account", "code", acc.Code)
	}

	if acc.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *acc.ParentID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("account", acc.ParentID.String())
			}
			return err
		}

		// A parent that already carries posted lines is a posting account;
		// giving it children would strand those lines on a non-leaf.
		posted, err := s.repo.HasPostedLines(ctx, parent.ID)
		if err != nil {
			return fmt.Errorf("check parent lines: %w", err)
		}
		if posted {
			return apperror.NewInvariantViolation("parent account already has posted lines").
				WithDetail("parent_code", parent.Code)
		}
	}

	return nil
}

// Resolve returns the active account with the given code.
func (s *Service) Resolve(ctx context.Context, code string) (*Account, error) {
	acc, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Children returns the direct children of an account.
func (s *Service) Children(ctx context.Context, parentID id.ID) ([]*Account, error) {
	return s.repo.Children(ctx, parentID)
}

// EnsureLeaf fails if the account has children.
func (s *Service) EnsureLeaf(ctx context.Context, acc *Account) error {
	hasChildren, err := s.repo.HasChildren(ctx, acc.ID)
	if err != nil {
		return fmt.Errorf("check children: %w", err)
	}
	if hasChildren {
		return apperror.NewInvariantViolation("account is not a leaf").
			WithDetail("code", acc.Code)
	}
	return nil
}

// IsPostingAllowed verifies the account may appear on a journal line:
// it must be a leaf and active.
func (s *Service) IsPostingAllowed(ctx context.Context, acc *Account) error {
	if !acc.IsActive {
		return apperror.NewInvariantViolation("account is inactive").
			WithDetail("code", acc.Code)
	}
	return s.EnsureLeaf(ctx, acc)
}

// CreateControlChild creates a control sub-account under the given parent.
// Used by partner registration to mint per-partner control accounts.
func (s *Service) CreateControlChild(ctx context.Context, parentCode, code, name string) (*Account, error) {
	parent, err := s.GetByCode(ctx, parentCode)
	if err != nil {
		return nil, err
	}

	acc := NewAccount(code, name, parent.Type)
	acc.ParentID = &parent.ID
	acc.IsControl = true

	if err := s.Create(ctx, acc); err != nil {
		return nil, err
	}

	logger.Info(ctx, "control sub-account created",
		"code", acc.Code,
		"parent", parentCode)

	return acc, nil
}

// Deactivate marks the account inactive. Rejected while the account carries
// a nonzero balance.
func (s *Service) Deactivate(ctx context.Context, accountID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		acc, err := s.repo.GetByID(ctx, accountID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("account", accountID.String())
			}
			return err
		}

		balance, err := s.repo.GetBalance(ctx, accountID)
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		if !balance.Net().IsZero() {
			return apperror.NewInvariantViolation("account has a nonzero balance").
				WithDetail("code", acc.Code).
				WithDetail("balance", balance.Net().String())
		}

		acc.IsActive = false
		acc.Touch()
		if err := s.repo.Update(ctx, acc); err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		logger.Info(ctx, "account deactivated", "code", acc.Code)
		return nil
	})
}

// GetBalance returns the materialised totals for the account.
func (s *Service) GetBalance(ctx context.Context, accountID id.ID) (Balance, error) {
	return s.repo.GetBalance(ctx, accountID)
}

// ApplyPosting adds a posted line's amounts to the materialised totals under
// a row lock. Only the journal engine calls this, inside the posting
// transaction.
func (s *Service) ApplyPosting(ctx context.Context, accountID id.ID, debit, credit types.Money) error {
	if _, err := s.repo.GetBalanceForUpdate(ctx, accountID); err != nil {
		return fmt.Errorf("lock balance: %w", err)
	}
	return s.repo.ApplyToBalance(ctx, accountID, debit, credit)
}

// GetTree returns the whole chart ordered by code.
func (s *Service) GetTree(ctx context.Context) ([]*Account, error) {
	return s.repo.GetTree(ctx)
}
