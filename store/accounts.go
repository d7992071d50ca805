package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mwtsai/folio"
)

type accountRow struct {
	ID        int64  `db:"id"`
	Owner     string `db:"owner"`
	Name      string `db:"name"`
	Broker    string `db:"broker"`
	Type      string `db:"account_type"`
	Market    string `db:"market"`
	Currency  string `db:"currency"`
	Margin    bool   `db:"margin"`
	IsActive  bool   `db:"is_active"`
	CreatedAt string `db:"created_at"`
}

func (r accountRow) account() folio.Account {
	return folio.Account{
		ID:       r.ID,
		Owner:    r.Owner,
		Name:     r.Name,
		Broker:   r.Broker,
		Type:     folio.AccountType(r.Type),
		Market:   folio.Market(r.Market),
		Currency: r.Currency,
		Margin:   r.Margin,
	}
}

// CreateAccount registers a new account and returns it with its assigned id.
// The account name must be unique across the ledger.
func (s *Store) CreateAccount(ctx context.Context, a folio.Account) (folio.Account, error) {
	if err := a.Validate(); err != nil {
		return folio.Account{}, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return folio.Account{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := s.insertReturningID(ctx, tx, `
		INSERT INTO accounts (owner, name, broker, account_type, market, currency, margin, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, TRUE, ?)`,
		a.Owner, a.Name, a.Broker, string(a.Type), string(a.Market), a.Currency, a.Margin, tsNow())
	if err != nil {
		if isUniqueViolation(err) {
			return folio.Account{}, fmt.Errorf("%w: account %q already exists", folio.ErrValidation, a.Name)
		}
		return folio.Account{}, fmt.Errorf("failed to create account %q: %w", a.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return folio.Account{}, fmt.Errorf("failed to commit account %q: %w", a.Name, err)
	}
	a.ID = id
	return a, nil
}

// GetAccount looks an account up by name.
func (s *Store) GetAccount(ctx context.Context, name string) (folio.Account, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var row accountRow
	err := s.db.GetContext(ctx, &row, s.rebind(`SELECT * FROM accounts WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return folio.Account{}, fmt.Errorf("account %q: %w", name, folio.ErrNotFound)
	}
	if err != nil {
		return folio.Account{}, fmt.Errorf("failed to load account %q: %w", name, err)
	}
	return row.account(), nil
}

// ListAccounts returns every account, active ones first, sorted by name.
func (s *Store) ListAccounts(ctx context.Context) ([]folio.Account, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM accounts ORDER BY is_active DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	accounts := make([]folio.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.account())
	}
	return accounts, nil
}

// SetAccountActive flips the active flag. Deactivated accounts keep their
// history but reject new transactions.
func (s *Store) SetAccountActive(ctx context.Context, name string, active bool) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE accounts SET is_active = ? WHERE name = ?`), active, name)
	if err != nil {
		return fmt.Errorf("failed to update account %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("account %q: %w", name, folio.ErrNotFound)
	}
	return nil
}

// loadAccountTx resolves an account inside a running transaction and rejects
// deactivated ones. Every mutation goes through it.
func (s *Store) loadAccountTx(ctx context.Context, tx *sqlx.Tx, name string) (accountRow, error) {
	var row accountRow
	err := tx.GetContext(ctx, &row, s.rebind(`SELECT * FROM accounts WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return accountRow{}, fmt.Errorf("account %q: %w", name, folio.ErrNotFound)
	}
	if err != nil {
		return accountRow{}, fmt.Errorf("failed to load account %q: %w", name, err)
	}
	if !row.IsActive {
		return accountRow{}, fmt.Errorf("%w: account %q is deactivated", folio.ErrValidation, name)
	}
	return row, nil
}
