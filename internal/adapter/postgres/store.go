// Package postgres writes observation batches to the water_reports table.
package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/streamflow-sync/internal/domain"
	"github.com/jackc/pgx/v5"
)

// releaseTimeout bounds rollback and close when the run context is already done.
const releaseTimeout = 5 * time.Second

// conn is the subset of *pgx.Conn the store uses.
type conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

type connectFunc func(ctx context.Context, dsn string) (conn, error)

// Store commits a batch in a single transaction over a connection opened for
// that call alone.
type Store struct {
	dsn       string
	connect   connectFunc
	maxParams int
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxParams overrides the bind-parameter limit per statement.
func WithMaxParams(n int) Option {
	return func(s *Store) { s.maxParams = n }
}

func withConnect(fn connectFunc) Option {
	return func(s *Store) { s.connect = fn }
}

// NewStore creates a store for the given PostgreSQL DSN.
func NewStore(dsn string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		dsn:       dsn,
		connect:   pgxConnect,
		maxParams: domain.MaxBindParams,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func pgxConnect(ctx context.Context, dsn string) (conn, error) {
	c, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Load inserts every row of batch and returns how many were written. Either
// all rows commit or none do. An empty batch never opens a connection.
func (s *Store) Load(ctx context.Context, batch domain.BatchInsert) (written int, err error) {
	if batch.Empty() {
		return 0, nil
	}

	c, err := s.connect(ctx, s.dsn)
	if err != nil {
		return 0, &domain.StorageError{Op: "connect", Err: err}
	}
	defer func() {
		closeCtx, cancel := releaseContext(ctx)
		defer cancel()
		if cerr := c.Close(closeCtx); cerr != nil {
			s.logger.Warn("close database connection", "error", cerr)
		}
	}()

	tx, err := c.Begin(ctx)
	if err != nil {
		return 0, &domain.StorageError{Op: "begin", Err: err}
	}
	defer func() {
		if err == nil {
			return
		}
		rbCtx, cancel := releaseContext(ctx)
		defer cancel()
		if rerr := tx.Rollback(rbCtx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", "error", rerr)
		}
	}()

	statements := batch.Statements(s.maxParams)
	var affected int64
	for i, stmt := range statements {
		tag, execErr := tx.Exec(ctx, stmt.SQL, stmt.Args...)
		if execErr != nil {
			s.logger.Error("insert statement failed",
				"error", execErr,
				"statement", i+1,
				"statements", len(statements),
			)
			return 0, &domain.StorageError{Op: "insert", Err: execErr}
		}
		affected += tag.RowsAffected()
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, &domain.StorageError{Op: "commit", Err: err}
	}

	s.logger.Info("batch committed",
		"rows", affected,
		"statements", len(statements),
	)
	return int(affected), nil
}

func releaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
}
