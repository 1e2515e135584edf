package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64 // simulates the sys_sequences row
	calls        int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	// Strict passes (key); cached passes (key, increment).
	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	return &mockRow{val: m.currentValue}
}

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("PI")
	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "PI-2026-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "PI-2026-00002", num)

	// every strict number hits the database
	assert.Equal(t, 2, q.calls)
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("TRF")
	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	opts := &Options{
		Strategy:  StrategyCached,
		RangeSize: 10,
	}

	// First call allocates the range 1..10; DB row lands on 10.
	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "TRF-2026-00001", num)
	assert.Equal(t, int64(10), q.currentValue)

	// Second call is served from memory.
	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "TRF-2026-00002", num)
	assert.Equal(t, int64(10), q.currentValue)

	// Exhaust the range, then the next call refills from the database.
	for i := 0; i < 8; i++ {
		_, err = svc.GetNextNumber(ctx, cfg, opts, period)
		require.NoError(t, err)
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "TRF-2026-00011", num)
	assert.Equal(t, int64(20), q.currentValue)
}

func TestNextRaw(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := svc.NextRaw(ctx, "journal_entry")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, int64(42), ParseNumber("PI-2026-00042"))
	assert.Equal(t, int64(7), ParseNumber("PAY-00007"))
	assert.Equal(t, int64(-1), ParseNumber("garbage"))
}

func TestBuildKey_ResetPeriods(t *testing.T) {
	svc := New(&mockQuerier{})
	period := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "PI_2026", svc.buildKey(Config{Prefix: "PI", ResetPeriod: "year"}, period))
	assert.Equal(t, "PI_2026_07", svc.buildKey(Config{Prefix: "PI", ResetPeriod: "month"}, period))
	assert.Equal(t, "PI", svc.buildKey(Config{Prefix: "PI", ResetPeriod: "never"}, period))
}
