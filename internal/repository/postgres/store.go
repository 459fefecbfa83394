package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

const serializationFailure = "40001"

// txRetries bounds serialization retry attempts per operation
const txRetries = 5

// Compile-time check
var _ store.Store = (*Store)(nil)

// Store implements store.Store over postgres. Every WithinTx call runs in a
// SERIALIZABLE transaction; serialization failures are retried with the whole
// closure re-executed, which is why operation closures must be side-effect
// free until commit.
type Store struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewStore creates a new postgres-backed store
func NewStore(db *sqlx.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.With("component", "pgstore")}
}

// WithinTx runs fn in a serializable transaction, retrying on 40001
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) error {
	var lastErr error

	for attempt := 0; attempt < txRetries; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}

		lastErr = err
		s.log.Debugw("Serialization conflict, retrying", "attempt", attempt+1)
	}

	return errors.Wrapf(lastErr, "transaction conflicted %d times", txRetries)
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	if err := fn(ctx, bind(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Errorf("Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// Repos returns repositories bound to the pool for read paths
func (s *Store) Repos() store.Repos {
	return bind(s.db)
}

func bind(q DBTX) store.Repos {
	return store.Repos{
		Positions: NewPositionRepository(q),
		Levels:    NewLevelRepository(q),
		Scans:     NewScanRepository(q),
		Reset:     NewResetRepository(q),
		Breaker:   NewBreakerRepository(q),
		Beacon:    NewBeaconRepository(q),
	}
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == serializationFailure
	}
	return false
}
