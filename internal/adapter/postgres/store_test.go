package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/streamflow-sync/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type execCall struct {
	sql  string
	args []any
}

type fakeTx struct {
	pgx.Tx // unimplemented methods panic

	execs      []execCall
	execErrAt  int // 1-based statement that fails; 0 never
	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErrAt == len(f.execs) {
		return pgconn.CommandTag{}, errors.New("duplicate key value violates unique constraint")
	}
	return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", len(args)/3)), nil
}

func (f *fakeTx) Commit(context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

type fakeConn struct {
	tx       *fakeTx
	beginErr error
	closed   bool
}

func (f *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func (f *fakeConn) Close(context.Context) error {
	f.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(c *fakeConn, connects *int, opts ...Option) *Store {
	opts = append(opts, withConnect(func(context.Context, string) (conn, error) {
		*connects++
		return c, nil
	}))
	return NewStore("postgres://test", discardLogger(), opts...)
}

func batchOf(n int) domain.BatchInsert {
	base := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	rows := make([]domain.Row, n)
	for i := range rows {
		rows[i] = domain.Row{Timestamp: base.Add(time.Duration(i) * time.Hour), Discharge: "512.30", RiverID: "r1"}
	}
	return domain.BatchInsert{Rows: rows}
}

// --- tests ---

func TestStore_Load_CommitsInOneTransaction(t *testing.T) {
	c := &fakeConn{tx: &fakeTx{}}
	var connects int
	s := newTestStore(c, &connects)

	n, err := s.Load(context.Background(), batchOf(2))
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, connects)
	require.Len(t, c.tx.execs, 1)
	assert.Equal(t,
		"INSERT INTO water_reports (timestamp, discharge, river_id) VALUES ($1, $2, $3), ($4, $5, $6)",
		c.tx.execs[0].sql)
	assert.Len(t, c.tx.execs[0].args, 6)
	assert.True(t, c.tx.committed)
	assert.False(t, c.tx.rolledBack)
	assert.True(t, c.closed, "connection released on success")
}

func TestStore_Load_EmptyBatchSkipsDatabase(t *testing.T) {
	var connects int
	s := newTestStore(&fakeConn{tx: &fakeTx{}}, &connects)

	n, err := s.Load(context.Background(), domain.BatchInsert{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, connects)
}

func TestStore_Load_SplitsLargeBatchInSameTransaction(t *testing.T) {
	c := &fakeConn{tx: &fakeTx{}}
	var connects int
	s := newTestStore(c, &connects, WithMaxParams(6))

	n, err := s.Load(context.Background(), batchOf(5))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Len(t, c.tx.execs, 3)
	assert.True(t, c.tx.committed)
}

func TestStore_Load_ExecFailureRollsBack(t *testing.T) {
	c := &fakeConn{tx: &fakeTx{execErrAt: 2}}
	var connects int
	s := newTestStore(c, &connects, WithMaxParams(3))

	n, err := s.Load(context.Background(), batchOf(3))
	require.Error(t, err)

	var serr *domain.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "insert", serr.Op)
	assert.Zero(t, n)
	assert.Len(t, c.tx.execs, 2, "stops at the first failed statement")
	assert.False(t, c.tx.committed)
	assert.True(t, c.tx.rolledBack)
	assert.True(t, c.closed, "connection released on failure")
}

func TestStore_Load_CommitFailure(t *testing.T) {
	c := &fakeConn{tx: &fakeTx{commitErr: errors.New("connection reset")}}
	var connects int
	s := newTestStore(c, &connects)

	_, err := s.Load(context.Background(), batchOf(1))

	var serr *domain.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "commit", serr.Op)
	assert.True(t, c.closed)
}

func TestStore_Load_BeginFailure(t *testing.T) {
	c := &fakeConn{beginErr: errors.New("too many clients")}
	var connects int
	s := newTestStore(c, &connects)

	_, err := s.Load(context.Background(), batchOf(1))

	var serr *domain.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "begin", serr.Op)
	assert.True(t, c.closed)
}

func TestStore_Load_ConnectFailure(t *testing.T) {
	s := NewStore("postgres://test", discardLogger(), withConnect(func(context.Context, string) (conn, error) {
		return nil, errors.New("connection refused")
	}))

	_, err := s.Load(context.Background(), batchOf(1))

	var serr *domain.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "connect", serr.Op)
	assert.ErrorContains(t, err, "connection refused")
}
