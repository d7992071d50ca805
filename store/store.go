// Package store persists the ledger in SQLite or PostgreSQL and owns the
// materialized projections (holdings and cash positions) kept in lockstep
// with the immutable transaction logs.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	_ "github.com/glebarez/go-sqlite"
)

// DefaultTimeout bounds every single store query.
const DefaultTimeout = 5 * time.Second

// RateSource supplies the exchange rate frozen into a cross-currency trade
// settlement. The market data service implements it.
type RateSource interface {
	// ConversionRate returns how many units of to one unit of from buys.
	ConversionRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Store wraps the database with per-account serialization of all mutations.
// Operations on different accounts proceed in parallel.
type Store struct {
	db      *sqlx.DB
	driver  string
	timeout time.Duration
	rates   RateSource

	muMap map[string]*sync.Mutex // one mutex per account name
	mapMu sync.Mutex             // protects muMap itself
}

// Option configures a Store at open time.
type Option func(*Store)

// WithRateSource installs the exchange rate source used to settle
// cross-currency trades.
func WithRateSource(rates RateSource) Option {
	return func(s *Store) { s.rates = rates }
}

// WithTimeout overrides the per-query timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// Open connects to the database and applies the schema. Supported drivers are
// "sqlite" (file path or ":memory:" DSN) and "postgres" (connection string).
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported store driver %q, want sqlite or postgres", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}

	s := &Store{
		db:      db,
		driver:  driver,
		timeout: DefaultTimeout,
		muMap:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}

	if driver == "sqlite" {
		// An in-memory database lives and dies with its connection, so the
		// pool must not hand out a second one.
		if strings.Contains(dsn, ":memory:") {
			db.SetMaxOpenConns(1)
		}
		// Configure SQLite for concurrent readers and durable writes.
		pragmas := []string{
			"PRAGMA journal_mode=WAL;",
			"PRAGMA synchronous=NORMAL;",
			"PRAGMA foreign_keys=ON;",
		}
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
			}
		}
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// SetRateSource installs the exchange rate source after opening. The market
// data service persists its caches through the store, so it can only be built
// once the store exists; this setter closes that loop. Call it before the
// first Apply.
func (s *Store) SetRateSource(rates RateSource) { s.rates = rates }

// accountLock returns the mutex serializing mutations of one account,
// creating it on first use.
func (s *Store) accountLock(account string) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if _, exists := s.muMap[account]; !exists {
		s.muMap[account] = &sync.Mutex{}
	}
	return s.muMap[account]
}

// opCtx bounds a store operation with the configured timeout.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// rebind converts ?-style placeholders to the driver's convention.
func (s *Store) rebind(query string) string { return s.db.Rebind(query) }

// insertReturningID runs an INSERT and reports the new row id, papering over
// the drivers' diverging mechanisms.
func (s *Store) insertReturningID(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (int64, error) {
	if s.driver == "postgres" {
		var id int64
		err := tx.QueryRowxContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// isUniqueViolation reports whether err is a unique constraint failure, on
// either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

// tsNow is the stored representation of the current instant.
func tsNow() string { return time.Now().UTC().Format(time.RFC3339) }
