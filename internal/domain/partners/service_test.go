package partners_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/domaintest"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/partners"
)

func TestRegister_MintsControlSubAccount(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	p := partners.NewPartner("CUS-001", "Atlas Publishing House", partners.KindCustomer)
	require.NoError(t, h.Partners.Register(ctx, p))
	require.False(t, id.IsNil(p.ControlAccountID))

	control, err := h.Accounts.GetByID(ctx, p.ControlAccountID)
	require.NoError(t, err)
	assert.Equal(t, "1200.CUS-001", control.Code)
	assert.True(t, control.IsControl)

	s := partners.NewPartner("SUP-001", "Nordic Paper Mills", partners.KindSupplier)
	require.NoError(t, h.Partners.Register(ctx, s))
	supControl, err := h.Accounts.GetByID(ctx, s.ControlAccountID)
	require.NoError(t, err)
	assert.Equal(t, "2100.SUP-001", supControl.Code)
}

func TestRegister_RejectsDuplicatePerKind(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	h.RegisterPartner(ctx, "P-001", "Atlas Publishing House", partners.KindCustomer)

	err := h.Partners.Register(ctx, partners.NewPartner("P-001", "Atlas Again", partners.KindCustomer))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	// the same code under the other kind is a different partner
	require.NoError(t, h.Partners.Register(ctx, partners.NewPartner("P-001", "Atlas As Supplier", partners.KindSupplier)))
}

func TestRegister_Validates(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	err := h.Partners.Register(ctx, partners.NewPartner("X-001", "Nobody", partners.Kind("broker")))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	bad := partners.NewPartner("X-002", "Negative Limit", partners.KindCustomer)
	bad.CreditLimit = types.MustMoney("-1.00")
	assert.Error(t, h.Partners.Register(ctx, bad))
}

func TestSignedDelta(t *testing.T) {
	customer := partners.NewPartner("C", "c", partners.KindCustomer)
	supplier := partners.NewPartner("S", "s", partners.KindSupplier)

	d, c := types.MustMoney("100.00"), types.MustMoney("30.00")

	assert.True(t, customer.SignedDelta(d, c).Equal(types.MustMoney("70.00")))
	assert.True(t, supplier.SignedDelta(d, c).Equal(types.MustMoney("-70.00")))
}

func postToPartner(t *testing.T, h *domaintest.Harness, p *partners.Partner, date time.Time, debit, credit string) {
	t.Helper()
	ctx := context.Background()

	control, err := h.Accounts.GetByID(ctx, p.ControlAccountID)
	require.NoError(t, err)

	counter := "4100"
	lines := []journal.LineInput{
		{AccountCode: control.Code, Debit: types.MustMoney(debit), Credit: types.MustMoney(credit),
			Partner: &journal.PartnerRef{ID: p.ID, Kind: p.Kind}},
	}
	if types.MustMoney(debit).IsPositive() {
		lines = append(lines, journal.LineInput{AccountCode: counter, Credit: types.MustMoney(debit)})
	} else {
		lines = append(lines, journal.LineInput{AccountCode: counter, Debit: types.MustMoney(credit)})
	}

	entry, err := h.Journal.Compose(ctx, journal.ComposeInput{Date: date, Lines: lines})
	require.NoError(t, err)
	_, _, err = h.Journal.Post(ctx, entry)
	require.NoError(t, err)
}

func TestStatement_RunningBalances(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()
	now := time.Now().UTC()

	p := h.RegisterPartner(ctx, "CUS-002", "Harbor Print Co", partners.KindCustomer)

	// an invoice before the statement window becomes the opening balance
	postToPartner(t, h, p, now.AddDate(0, -2, 0), "100.00", "0")
	postToPartner(t, h, p, now, "50.00", "0")
	postToPartner(t, h, p, now, "0", "30.00")

	lines, err := h.Partners.Statement(ctx, p.ID, now.AddDate(0, -1, 0), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Running.Equal(types.MustMoney("150.00")), "got %s", lines[0].Running)
	assert.True(t, lines[1].Running.Equal(types.MustMoney("120.00")), "got %s", lines[1].Running)

	bal, err := h.Partners.Balance(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(types.MustMoney("120.00")))
}

func TestReconcile(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	p := h.RegisterPartner(ctx, "SUP-002", "Baltic Ink Supply", partners.KindSupplier)
	postToPartner(t, h, p, time.Now().UTC(), "0", "200.00")

	rec, err := h.Partners.Reconcile(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, rec.OK)
	assert.True(t, rec.Materialised.Equal(types.MustMoney("200.00")))
	assert.True(t, rec.FromLines.Equal(types.MustMoney("200.00")))
	assert.True(t, rec.Discrepancy.IsZero())

	// drift the materialised balance away from the lines
	require.NoError(t, h.Store.Partners.ApplyToBalance(ctx, p.ID, types.MustMoney("5.00")))
	rec, err = h.Partners.Reconcile(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, rec.OK)
	assert.True(t, rec.Discrepancy.Equal(types.MustMoney("5.00")))
}

func TestAssertConsistent(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	cus := h.RegisterPartner(ctx, "CUS-003", "Quarto Books", partners.KindCustomer)
	sup := h.RegisterPartner(ctx, "SUP-003", "Plate & Die Works", partners.KindSupplier)
	postToPartner(t, h, cus, time.Now().UTC(), "80.00", "0")
	postToPartner(t, h, sup, time.Now().UTC(), "0", "45.00")

	require.NoError(t, h.Partners.AssertConsistent(ctx))

	require.NoError(t, h.Store.Partners.ApplyToBalance(ctx, cus.ID, types.MustMoney("1.00")))
	err := h.Partners.AssertConsistent(ctx)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}

func TestGetByKindAndCode(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	h.RegisterPartner(ctx, "CUS-004", "Folio Press", partners.KindCustomer)

	p, err := h.Partners.GetByKindAndCode(ctx, partners.KindCustomer, "CUS-004")
	require.NoError(t, err)
	assert.Equal(t, "Folio Press", p.Name)

	_, err = h.Partners.GetByKindAndCode(ctx, partners.KindSupplier, "CUS-004")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
