package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/partners"
	"pressledger/internal/infrastructure/storage/postgres"
)

const partnersTable = "prt_partners"

// PartnerRepo implements partners.Repository. The materialised balance column
// is written only through ApplyToBalance, which the journal engine calls
// under the partner row lock.
type PartnerRepo struct {
	*BaseCatalogRepo[*partners.Partner]
	txManager *postgres.TxManager
}

// NewPartnerRepo creates a new partner repository.
func NewPartnerRepo(txManager *postgres.TxManager) *PartnerRepo {
	return &PartnerRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			partnersTable,
			postgres.ExtractDBColumns[partners.Partner](),
			func() *partners.Partner { return &partners.Partner{} },
		),
		txManager: txManager,
	}
}

// GetByKindAndCode retrieves a partner by (kind, code). Codes are unique per
// kind, not globally.
func (r *PartnerRepo) GetByKindAndCode(ctx context.Context, kind partners.Kind, code string) (*partners.Partner, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"kind": kind}).
		Where(squirrel.Eq{"code": code}).
		Limit(1)

	return r.FindOne(ctx, q)
}

// GetByControlAccount finds the partner owning the control account.
func (r *PartnerRepo) GetByControlAccount(ctx context.Context, accountID id.ID) (*partners.Partner, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"control_account_id": accountID}).
		Limit(1)

	return r.FindOne(ctx, q)
}

// ApplyToBalance adds delta to the materialised balance.
func (r *PartnerRepo) ApplyToBalance(ctx context.Context, partnerID id.ID, delta types.Money) error {
	sql := `UPDATE prt_partners SET balance = balance + $2 WHERE id = $1`

	result, err := r.Querier(ctx).Exec(ctx, sql, partnerID, delta)
	if err != nil {
		return fmt.Errorf("apply to balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(partnersTable, partnerID.String())
	}

	return nil
}

// SumPostedLines computes debit and credit totals over journal lines tagged
// with the partner. Reversed entries stay included; their reversal entries
// net them out.
func (r *PartnerRepo) SumPostedLines(ctx context.Context, partnerID id.ID) (types.Money, types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM jrn_lines l
		JOIN jrn_entries e ON e.id = l.entry_id
		WHERE l.partner_id = $1
		  AND e.status IN ('posted', 'reversed')
	`

	var debit, credit types.Money
	err := r.Querier(ctx).QueryRow(ctx, sql, partnerID).Scan(&debit, &credit)
	if err != nil && err != pgx.ErrNoRows {
		return types.ZeroMoney(), types.ZeroMoney(), fmt.Errorf("sum posted lines: %w", err)
	}

	return debit, credit, nil
}

// StatementLines returns posted lines for the partner in [from, to] ordered
// by date then entry number. Running balances are computed by the caller.
func (r *PartnerRepo) StatementLines(ctx context.Context, partnerID id.ID, from, to time.Time) ([]partners.StatementLine, error) {
	sql := `
		SELECT e.date,
		       e.number AS entry_number,
		       COALESCE(e.source_kind, '') AS source_kind,
		       COALESCE(e.source_number, '') AS source_ref,
		       e.description,
		       l.debit,
		       l.credit
		FROM jrn_lines l
		JOIN jrn_entries e ON e.id = l.entry_id
		WHERE l.partner_id = $1
		  AND e.status IN ('posted', 'reversed')
		  AND e.date >= $2 AND e.date <= $3
		ORDER BY e.date, e.number, l.line_no
	`

	var lines []partners.StatementLine
	if err := pgxscan.Select(ctx, r.Querier(ctx), &lines, sql, partnerID, from, to); err != nil {
		return nil, fmt.Errorf("select statement lines: %w", err)
	}

	return lines, nil
}

// OpeningBalance computes the partner balance as of just before `from`,
// signed by partner kind.
func (r *PartnerRepo) OpeningBalance(ctx context.Context, partnerID id.ID, from time.Time) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(
			CASE WHEN p.kind = 'supplier'
			     THEN l.credit - l.debit
			     ELSE l.debit - l.credit
			END), 0)
		FROM jrn_lines l
		JOIN jrn_entries e ON e.id = l.entry_id
		JOIN prt_partners p ON p.id = l.partner_id
		WHERE l.partner_id = $1
		  AND e.status IN ('posted', 'reversed')
		  AND e.date < $2
	`

	var opening types.Money
	err := r.Querier(ctx).QueryRow(ctx, sql, partnerID, from).Scan(&opening)
	if err != nil && err != pgx.ErrNoRows {
		return types.ZeroMoney(), fmt.Errorf("opening balance: %w", err)
	}

	return opening, nil
}

// ListByKind returns partners of one kind ordered by code.
func (r *PartnerRepo) ListByKind(ctx context.Context, kind partners.Kind) ([]*partners.Partner, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"kind": kind}).
		OrderBy("code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*partners.Partner
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select by kind: %w", err)
	}

	return items, nil
}

var _ partners.Repository = (*PartnerRepo)(nil)
