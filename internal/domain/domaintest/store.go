package domaintest

import (
	"context"
	"sort"
	"strings"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/periods"
)

// Store is the shared in-memory database. Repositories are views over it.
type Store struct {
	Accounts  *AccountRepo
	Partners  *PartnerRepo
	Periods   *PeriodRepo
	Journal   *JournalRepo
	Inventory *InventoryRepo
	Payments  *PaymentRepo
	Advances  *AdvanceRepo
	Reports   *ReportRepo

	Audit     *AuditLog
	Sequences *SequenceQuerier
	Tx        TxManager
}

// NewStore creates an empty store with all repositories wired together.
func NewStore() *Store {
	s := &Store{
		Audit:     &AuditLog{},
		Sequences: NewSequenceQuerier(),
	}
	s.Accounts = &AccountRepo{s: s, byID: make(map[id.ID]*accounts.Account), balances: make(map[id.ID]accounts.Balance)}
	s.Partners = &PartnerRepo{s: s, byID: make(map[id.ID]*partners.Partner)}
	s.Periods = &PeriodRepo{s: s, byID: make(map[id.ID]*periods.Period)}
	s.Journal = &JournalRepo{s: s, byID: make(map[id.ID]*journal.Entry)}
	s.Inventory = NewInventoryRepo()
	s.Payments = NewPaymentRepo()
	s.Advances = NewAdvanceRepo()
	s.Reports = &ReportRepo{s: s}
	return s
}

// --- accounts ---

// AccountRepo implements accounts.Repository.
type AccountRepo struct {
	s        *Store
	byID     map[id.ID]*accounts.Account
	balances map[id.ID]accounts.Balance
}

func cloneAccount(a *accounts.Account) *accounts.Account {
	c := *a
	return &c
}

func (r *AccountRepo) Create(ctx context.Context, a *accounts.Account) error {
	if _, ok := r.byID[a.ID]; ok {
		return apperror.NewDuplicate("account", "id", a.ID.String())
	}
	r.byID[a.ID] = cloneAccount(a)
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, accountID id.ID) (*accounts.Account, error) {
	a, ok := r.byID[accountID]
	if !ok {
		return nil, apperror.NewNotFound("account", accountID.String())
	}
	return cloneAccount(a), nil
}

func (r *AccountRepo) GetByCode(ctx context.Context, code string) (*accounts.Account, error) {
	for _, a := range r.byID {
		if a.Code == code {
			return cloneAccount(a), nil
		}
	}
	return nil, apperror.NewNotFound("account", code)
}

func (r *AccountRepo) Update(ctx context.Context, a *accounts.Account) error {
	stored, ok := r.byID[a.ID]
	if !ok || stored.Version != a.Version-1 {
		return apperror.NewConcurrentModification("account", a.ID)
	}
	r.byID[a.ID] = cloneAccount(a)
	return nil
}

func (r *AccountRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*accounts.Account], error) {
	all := r.sorted()
	var items []*accounts.Account
	for _, a := range all {
		if f.Search != "" && !strings.Contains(strings.ToLower(a.Name), strings.ToLower(f.Search)) {
			continue
		}
		if f.IsActive != nil && a.IsActive != *f.IsActive {
			continue
		}
		items = append(items, cloneAccount(a))
	}
	return domain.ListResult[*accounts.Account]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}, nil
}

func (r *AccountRepo) Exists(ctx context.Context, accountID id.ID) (bool, error) {
	_, ok := r.byID[accountID]
	return ok, nil
}

func (r *AccountRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	for _, a := range r.byID {
		if a.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *AccountRepo) Children(ctx context.Context, parentID id.ID) ([]*accounts.Account, error) {
	var out []*accounts.Account
	for _, a := range r.sorted() {
		if a.ParentID != nil && *a.ParentID == parentID {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

func (r *AccountRepo) HasChildren(ctx context.Context, accountID id.ID) (bool, error) {
	for _, a := range r.byID {
		if a.ParentID != nil && *a.ParentID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func (r *AccountRepo) HasPostedLines(ctx context.Context, accountID id.ID) (bool, error) {
	for _, e := range r.s.Journal.byID {
		if e.Status == journal.EntryDraft {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *AccountRepo) GetBalance(ctx context.Context, accountID id.ID) (accounts.Balance, error) {
	b, ok := r.balances[accountID]
	if !ok {
		return accounts.Balance{AccountID: accountID, DebitTotal: types.ZeroMoney(), CreditTotal: types.ZeroMoney()}, nil
	}
	return b, nil
}

func (r *AccountRepo) GetBalanceForUpdate(ctx context.Context, accountID id.ID) (accounts.Balance, error) {
	b, ok := r.balances[accountID]
	if !ok {
		b = accounts.Balance{AccountID: accountID, DebitTotal: types.ZeroMoney(), CreditTotal: types.ZeroMoney()}
		r.balances[accountID] = b
	}
	return b, nil
}

func (r *AccountRepo) ApplyToBalance(ctx context.Context, accountID id.ID, debit, credit types.Money) error {
	b, _ := r.GetBalanceForUpdate(ctx, accountID)
	b.DebitTotal = b.DebitTotal.Add(debit)
	b.CreditTotal = b.CreditTotal.Add(credit)
	r.balances[accountID] = b
	return nil
}

func (r *AccountRepo) GetTree(ctx context.Context) ([]*accounts.Account, error) {
	out := make([]*accounts.Account, 0, len(r.byID))
	for _, a := range r.sorted() {
		out = append(out, cloneAccount(a))
	}
	return out, nil
}

func (r *AccountRepo) sorted() []*accounts.Account {
	all := make([]*accounts.Account, 0, len(r.byID))
	for _, a := range r.byID {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return all
}

var _ accounts.Repository = (*AccountRepo)(nil)

// --- partners ---

// PartnerRepo implements partners.Repository. Posted-line aggregations are
// derived from the stored journal entries.
type PartnerRepo struct {
	s    *Store
	byID map[id.ID]*partners.Partner
}

func clonePartner(p *partners.Partner) *partners.Partner {
	c := *p
	return &c
}

func (r *PartnerRepo) Create(ctx context.Context, p *partners.Partner) error {
	if _, ok := r.byID[p.ID]; ok {
		return apperror.NewDuplicate("partner", "id", p.ID.String())
	}
	r.byID[p.ID] = clonePartner(p)
	return nil
}

func (r *PartnerRepo) GetByID(ctx context.Context, partnerID id.ID) (*partners.Partner, error) {
	p, ok := r.byID[partnerID]
	if !ok {
		return nil, apperror.NewNotFound("partner", partnerID.String())
	}
	return clonePartner(p), nil
}

func (r *PartnerRepo) GetByCode(ctx context.Context, code string) (*partners.Partner, error) {
	for _, p := range r.byID {
		if p.Code == code {
			return clonePartner(p), nil
		}
	}
	return nil, apperror.NewNotFound("partner", code)
}

func (r *PartnerRepo) GetByKindAndCode(ctx context.Context, kind partners.Kind, code string) (*partners.Partner, error) {
	for _, p := range r.byID {
		if p.Kind == kind && p.Code == code {
			return clonePartner(p), nil
		}
	}
	return nil, apperror.NewNotFound("partner", code)
}

func (r *PartnerRepo) GetForUpdate(ctx context.Context, partnerID id.ID) (*partners.Partner, error) {
	return r.GetByID(ctx, partnerID)
}

func (r *PartnerRepo) GetByControlAccount(ctx context.Context, accountID id.ID) (*partners.Partner, error) {
	for _, p := range r.byID {
		if p.ControlAccountID == accountID {
			return clonePartner(p), nil
		}
	}
	return nil, apperror.NewNotFound("partner", accountID.String())
}

func (r *PartnerRepo) Update(ctx context.Context, p *partners.Partner) error {
	stored, ok := r.byID[p.ID]
	if !ok || stored.Version != p.Version-1 {
		return apperror.NewConcurrentModification("partner", p.ID)
	}
	// The materialised balance is owned by ApplyToBalance, not by catalog
	// updates.
	c := clonePartner(p)
	c.Balance = stored.Balance
	r.byID[p.ID] = c
	return nil
}

func (r *PartnerRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*partners.Partner], error) {
	var items []*partners.Partner
	for _, p := range r.sorted() {
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		if f.IsActive != nil && p.IsActive != *f.IsActive {
			continue
		}
		items = append(items, clonePartner(p))
	}
	return domain.ListResult[*partners.Partner]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}, nil
}

func (r *PartnerRepo) Exists(ctx context.Context, partnerID id.ID) (bool, error) {
	_, ok := r.byID[partnerID]
	return ok, nil
}

func (r *PartnerRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	for _, p := range r.byID {
		if p.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *PartnerRepo) ApplyToBalance(ctx context.Context, partnerID id.ID, delta types.Money) error {
	p, ok := r.byID[partnerID]
	if !ok {
		return apperror.NewNotFound("partner", partnerID.String())
	}
	p.Balance = p.Balance.Add(delta)
	return nil
}

func (r *PartnerRepo) SumPostedLines(ctx context.Context, partnerID id.ID) (types.Money, types.Money, error) {
	debit := types.ZeroMoney()
	credit := types.ZeroMoney()
	for _, e := range r.s.Journal.byID {
		if e.Status == journal.EntryDraft {
			continue
		}
		for _, l := range e.Lines {
			if l.Partner != nil && l.Partner.ID == partnerID {
				debit = debit.Add(l.Debit)
				credit = credit.Add(l.Credit)
			}
		}
	}
	return debit, credit, nil
}

func (r *PartnerRepo) StatementLines(ctx context.Context, partnerID id.ID, from, to time.Time) ([]partners.StatementLine, error) {
	var lines []partners.StatementLine
	for _, e := range r.s.Journal.sortedByNumber() {
		if e.Status == journal.EntryDraft || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		for _, l := range e.Lines {
			if l.Partner == nil || l.Partner.ID != partnerID {
				continue
			}
			lines = append(lines, partners.StatementLine{
				Date:        e.Date,
				EntryNumber: e.Number,
				SourceKind:  e.Source.Kind,
				SourceRef:   e.Source.Number,
				Description: e.Description,
				Debit:       l.Debit,
				Credit:      l.Credit,
			})
		}
	}
	return lines, nil
}

func (r *PartnerRepo) OpeningBalance(ctx context.Context, partnerID id.ID, from time.Time) (types.Money, error) {
	p, ok := r.byID[partnerID]
	if !ok {
		return types.ZeroMoney(), apperror.NewNotFound("partner", partnerID.String())
	}

	opening := types.ZeroMoney()
	for _, e := range r.s.Journal.byID {
		if e.Status == journal.EntryDraft || !e.Date.Before(from) {
			continue
		}
		for _, l := range e.Lines {
			if l.Partner != nil && l.Partner.ID == partnerID {
				opening = opening.Add(p.SignedDelta(l.Debit, l.Credit))
			}
		}
	}
	return opening, nil
}

func (r *PartnerRepo) ListByKind(ctx context.Context, kind partners.Kind) ([]*partners.Partner, error) {
	var out []*partners.Partner
	for _, p := range r.sorted() {
		if p.Kind == kind {
			out = append(out, clonePartner(p))
		}
	}
	return out, nil
}

func (r *PartnerRepo) sorted() []*partners.Partner {
	all := make([]*partners.Partner, 0, len(r.byID))
	for _, p := range r.byID {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return all
}

var _ partners.Repository = (*PartnerRepo)(nil)

// --- periods ---

// PeriodRepo implements periods.Repository.
type PeriodRepo struct {
	s    *Store
	byID map[id.ID]*periods.Period
}

func clonePeriod(p *periods.Period) *periods.Period {
	c := *p
	return &c
}

func (r *PeriodRepo) Create(ctx context.Context, p *periods.Period) error {
	r.byID[p.ID] = clonePeriod(p)
	return nil
}

func (r *PeriodRepo) GetByID(ctx context.Context, periodID id.ID) (*periods.Period, error) {
	p, ok := r.byID[periodID]
	if !ok {
		return nil, apperror.NewNotFound("period", periodID.String())
	}
	return clonePeriod(p), nil
}

func (r *PeriodRepo) GetByName(ctx context.Context, name string) (*periods.Period, error) {
	for _, p := range r.byID {
		if p.Name == name {
			return clonePeriod(p), nil
		}
	}
	return nil, apperror.NewNotFound("period", name)
}

func (r *PeriodRepo) Update(ctx context.Context, p *periods.Period) error {
	stored, ok := r.byID[p.ID]
	if !ok || stored.Version != p.Version-1 {
		return apperror.NewConcurrentModification("period", p.ID)
	}
	r.byID[p.ID] = clonePeriod(p)
	return nil
}

func (r *PeriodRepo) FindForDate(ctx context.Context, date time.Time) (*periods.Period, error) {
	for _, p := range r.byID {
		if p.Contains(date) {
			return clonePeriod(p), nil
		}
	}
	return nil, apperror.NewNotFound("period", date.Format("2006-01-02"))
}

func (r *PeriodRepo) FindForDateForUpdate(ctx context.Context, date time.Time) (*periods.Period, error) {
	return r.FindForDate(ctx, date)
}

func (r *PeriodRepo) FindOverlapping(ctx context.Context, start, end time.Time) (*periods.Period, error) {
	for _, p := range r.byID {
		if p.Contains(start) || p.Contains(end) || (start.Before(p.StartDate) && end.After(p.EndDate)) {
			return clonePeriod(p), nil
		}
	}
	return nil, apperror.NewNotFound("period", start.Format("2006-01-02"))
}

func (r *PeriodRepo) CountDraftEntriesInRange(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	for _, e := range r.s.Journal.byID {
		if e.Status == journal.EntryDraft && !e.Date.Before(start) && !e.Date.After(end) {
			count++
		}
	}
	return count, nil
}

func (r *PeriodRepo) List(ctx context.Context) ([]*periods.Period, error) {
	all := make([]*periods.Period, 0, len(r.byID))
	for _, p := range r.byID {
		all = append(all, clonePeriod(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartDate.Before(all[j].StartDate) })
	return all, nil
}

var _ periods.Repository = (*PeriodRepo)(nil)

// --- journal ---

// JournalRepo implements journal.Repository. The (source_kind, source_id)
// unique index is enforced on Create, matching the idempotency guarantee.
type JournalRepo struct {
	s    *Store
	byID map[id.ID]*journal.Entry
}

func cloneEntry(e *journal.Entry) *journal.Entry {
	c := *e
	c.Lines = append([]journal.Line(nil), e.Lines...)
	return &c
}

func (r *JournalRepo) Create(ctx context.Context, e *journal.Entry) error {
	if !e.Source.IsZero() {
		for _, existing := range r.byID {
			if existing.Source.Kind == e.Source.Kind && existing.Source.ID == e.Source.ID {
				return apperror.NewDuplicate("journal_entry", "source", e.Source.Kind)
			}
		}
	}
	r.byID[e.ID] = cloneEntry(e)
	return nil
}

func (r *JournalRepo) GetByID(ctx context.Context, entryID id.ID) (*journal.Entry, error) {
	e, ok := r.byID[entryID]
	if !ok {
		return nil, apperror.NewNotFound("journal_entry", entryID.String())
	}
	return cloneEntry(e), nil
}

func (r *JournalRepo) GetByIDForUpdate(ctx context.Context, entryID id.ID) (*journal.Entry, error) {
	return r.GetByID(ctx, entryID)
}

func (r *JournalRepo) GetByNumber(ctx context.Context, number int64) (*journal.Entry, error) {
	for _, e := range r.byID {
		if e.Number == number && e.Status != journal.EntryDraft {
			return cloneEntry(e), nil
		}
	}
	return nil, apperror.NewNotFound("journal_entry", number)
}

func (r *JournalRepo) GetBySource(ctx context.Context, kind string, sourceID id.ID) (*journal.Entry, error) {
	for _, e := range r.byID {
		if e.Source.Kind == kind && e.Source.ID == sourceID {
			return cloneEntry(e), nil
		}
	}
	return nil, apperror.NewNotFound("journal_entry", sourceID.String())
}

func (r *JournalRepo) UpdateStatus(ctx context.Context, e *journal.Entry) error {
	stored, ok := r.byID[e.ID]
	if !ok || stored.Version != e.Version-1 {
		return apperror.NewConcurrentModification("journal_entry", e.ID)
	}
	stored.Status = e.Status
	stored.ReversalOf = e.ReversalOf
	stored.Version = e.Version
	stored.UpdatedAt = e.UpdatedAt
	return nil
}

func (r *JournalRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]*journal.Entry, error) {
	var out []*journal.Entry
	for _, e := range r.sortedByNumber() {
		if e.Status == journal.EntryDraft || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

// All returns every stored entry ordered by number, for test assertions.
func (r *JournalRepo) All() []*journal.Entry {
	out := make([]*journal.Entry, 0, len(r.byID))
	for _, e := range r.sortedByNumber() {
		out = append(out, cloneEntry(e))
	}
	return out
}

func (r *JournalRepo) sortedByNumber() []*journal.Entry {
	all := make([]*journal.Entry, 0, len(r.byID))
	for _, e := range r.byID {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Number < all[j].Number })
	return all
}

var _ journal.Repository = (*JournalRepo)(nil)
