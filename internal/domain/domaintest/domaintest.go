// Package domaintest provides in-memory backing for service-level tests: a
// shared Store with repository implementations over plain maps, a passthrough
// transaction manager, a sequence querier for the numerator, and an audit
// recorder that keeps every record.
//
// The store keeps the same cross-table consistency the SQL schema does:
// partner line sums and trial balance rows are derived from the stored
// journal entries, so reconciliation checks exercise real arithmetic. Not
// safe for concurrent use.
package domaintest

import (
	"context"

	"github.com/jackc/pgx/v5"

	"pressledger/internal/core/tx"
	"pressledger/internal/domain/audit"
)

// TxManager is a passthrough transaction manager: fn runs on the caller's
// context and nothing is rolled back on error. Tests assert on returned
// errors, not on rollback effects.
type TxManager struct{}

func (TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ tx.ReadOnlyManager = TxManager{}

// AuditLog records every audit fact in order.
type AuditLog struct {
	Records []audit.Record
}

func (l *AuditLog) Record(ctx context.Context, rec audit.Record) error {
	l.Records = append(l.Records, rec)
	return nil
}

// ByAction returns the records carrying the given action.
func (l *AuditLog) ByAction(a audit.Action) []audit.Record {
	var out []audit.Record
	for _, r := range l.Records {
		if r.Action == a {
			out = append(out, r)
		}
	}
	return out
}

var _ audit.Recorder = (*AuditLog)(nil)

// SequenceQuerier emulates the sys_sequences upsert the numerator issues:
// args are (key) for strict draws and (key, size) for cached range reserves.
type SequenceQuerier struct {
	Values map[string]int64
}

// NewSequenceQuerier creates an empty sequence table.
func NewSequenceQuerier() *SequenceQuerier {
	return &SequenceQuerier{Values: make(map[string]int64)}
}

func (q *SequenceQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	key, _ := args[0].(string)
	inc := int64(1)
	if len(args) == 2 {
		if v, ok := args[1].(int64); ok {
			inc = v
		}
	}
	q.Values[key] += inc
	return seqRow{val: q.Values[key]}
}

type seqRow struct {
	val int64
}

func (r seqRow) Scan(dest ...any) error {
	if len(dest) > 0 {
		if p, ok := dest[0].(*int64); ok {
			*p = r.val
		}
	}
	return nil
}
