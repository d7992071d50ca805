package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mwtsai/folio"
)

// ApplyImport records a transaction that originates from an external source,
// stamping its dedup reference on every row it writes. A reference that has
// been committed before fails with ErrDuplicateImport so repeated imports of
// the same statement stay no-ops.
func (s *Store) ApplyImport(ctx context.Context, command folio.Transaction, sourceRef string) error {
	if sourceRef == "" {
		return fmt.Errorf("%w: imported transaction is missing a source reference", folio.ErrValidation)
	}
	_, err := s.applyLocked(ctx, command, sourceRef)
	return err
}

// BeginImport takes the account's write serialization and returns a batch the
// reconciler drains one statement through. Manual commands on the account
// block until the batch is closed, so nothing can commit between two rows of
// the same statement.
func (s *Store) BeginImport(_ context.Context, account string) (folio.ImportBatch, error) {
	mu := s.accountLock(account)
	mu.Lock()
	return &importBatch{store: s, account: account, unlock: mu.Unlock}, nil
}

// importBatch holds one account's lock from BeginImport to Close.
type importBatch struct {
	store   *Store
	account string
	unlock  func()
}

func (b *importBatch) NewestEventDate(ctx context.Context) (folio.Date, bool, error) {
	return b.store.NewestEventDate(ctx, b.account)
}

func (b *importBatch) Apply(ctx context.Context, command folio.Transaction, sourceRef string) error {
	if sourceRef == "" {
		return fmt.Errorf("%w: imported transaction is missing a source reference", folio.ErrValidation)
	}
	command, err := command.Validate()
	if err != nil {
		return err
	}
	if command.Where() != b.account {
		return fmt.Errorf("%w: %s targets %q, batch is bound to %q",
			folio.ErrValidation, command.What(), command.Where(), b.account)
	}
	_, err = b.store.applyHeld(ctx, command, sourceRef)
	return err
}

func (b *importBatch) Rebuild(ctx context.Context) error {
	return b.store.rebuildHeld(ctx, b.account)
}

// Close releases the account. Closing twice is a no-op.
func (b *importBatch) Close() error {
	if b.unlock != nil {
		b.unlock()
		b.unlock = nil
	}
	return nil
}

// sourceRefExistsTx reports whether a dedup reference has already been
// committed, in either log.
func (s *Store) sourceRefExistsTx(ctx context.Context, dbtx *sqlx.Tx, sourceRef string) (bool, error) {
	var n int
	err := dbtx.GetContext(ctx, &n, s.rebind(`
		SELECT (SELECT COUNT(*) FROM transactions WHERE source_ref = ?)
		     + (SELECT COUNT(*) FROM cash_transactions WHERE source_ref = ?)`),
		sourceRef, sourceRef)
	if err != nil {
		return false, fmt.Errorf("failed to check source reference: %w", err)
	}
	return n > 0, nil
}

// NewestEventDate returns the date of the most recent committed event of an
// account, over both logs, and false when the account has no history yet.
func (s *Store) NewestEventDate(ctx context.Context, account string) (folio.Date, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	a, err := s.GetAccount(ctx, account)
	if err != nil {
		return folio.Date{}, false, err
	}
	var newest sql.NullString
	err = s.db.GetContext(ctx, &newest, s.rebind(`
		SELECT MAX(executed_on) FROM (
			SELECT executed_on FROM transactions WHERE account_id = ?
			UNION ALL
			SELECT executed_on FROM cash_transactions WHERE account_id = ?
		) events`), a.ID, a.ID)
	if err != nil {
		return folio.Date{}, false, fmt.Errorf("failed to find newest event of %q: %w", account, err)
	}
	if !newest.Valid || newest.String == "" {
		return folio.Date{}, false, nil
	}
	on, err := folio.ParseDate(newest.String)
	if err != nil {
		return folio.Date{}, false, fmt.Errorf("account %q has unreadable event date %q: %w", account, newest.String, err)
	}
	return on, true, nil
}

// SaveBatch persists the outcome of one reconciliation run.
func (s *Store) SaveBatch(ctx context.Context, report *folio.Report) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO import_batches (id, source, imported, duplicates, failed, rebuilt, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		report.BatchID, report.Source, report.Imported, report.Duplicates, report.Failed,
		strings.Join(report.Rebuilt, ","), tsNow())
	if err != nil {
		return fmt.Errorf("failed to save import batch %s: %w", report.BatchID, err)
	}
	return nil
}

// replayProjections recomputes an account's holdings and cash balances by full
// replay of its command log.
func (s *Store) replayProjections(ctx context.Context, account string) ([]folio.Holding, []folio.CashBalance, error) {
	ledger, err := s.LoadLedger(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	journal, err := folio.NewJournal(ledger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to replay %q: %w", account, err)
	}
	snapshot := folio.NewSnapshot(journal, folio.Today())

	var holdings []folio.Holding
	for ticker := range snapshot.Securities(account) {
		h := snapshot.Holding(account, ticker)
		if !h.Quantity.IsZero() {
			holdings = append(holdings, h)
		}
	}
	var balances []folio.CashBalance
	for currency := range snapshot.Currencies(account) {
		balances = append(balances, folio.CashBalance{
			Account:  account,
			Currency: currency,
			Balance:  snapshot.Cash(account, currency),
		})
	}
	return holdings, balances, nil
}

// RebuildProjections replaces the materialized holdings and cash positions of
// an account with the result of a full replay of its logs. It is the repair
// path after an out-of-order import and the backing of the verify command.
func (s *Store) RebuildProjections(ctx context.Context, account string) error {
	mu := s.accountLock(account)
	mu.Lock()
	defer mu.Unlock()

	return s.rebuildHeld(ctx, account)
}

// rebuildHeld replays and rewrites the projections. The caller holds the
// account lock.
func (s *Store) rebuildHeld(ctx context.Context, account string) error {
	holdings, balances, err := s.replayProjections(ctx, account)
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rebuild of %q: %w", account, err)
	}
	defer dbtx.Rollback()

	row, err := s.loadAccountTx(ctx, dbtx, account)
	if err != nil {
		return err
	}
	if _, err := dbtx.ExecContext(ctx, s.rebind(`DELETE FROM holdings WHERE account_id = ?`), row.ID); err != nil {
		return fmt.Errorf("failed to clear holdings of %q: %w", account, err)
	}
	if _, err := dbtx.ExecContext(ctx, s.rebind(`DELETE FROM cash_positions WHERE account_id = ?`), row.ID); err != nil {
		return fmt.Errorf("failed to clear cash positions of %q: %w", account, err)
	}
	for _, h := range holdings {
		if err := s.saveHoldingTx(ctx, dbtx, row.ID, h); err != nil {
			return err
		}
	}
	for _, b := range balances {
		_, err := dbtx.ExecContext(ctx, s.rebind(`
			INSERT INTO cash_positions (account_id, currency, balance, updated_at) VALUES (?, ?, ?, ?)`),
			row.ID, b.Currency, b.Balance.Decimal(), tsNow())
		if err != nil {
			return fmt.Errorf("failed to rebuild %s %s balance: %w", account, b.Currency, err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rebuild of %q: %w", account, err)
	}
	log.Info().
		Str("account", account).
		Int("holdings", len(holdings)).
		Int("balances", len(balances)).
		Msg("projections rebuilt from replay")
	return nil
}

// Drift is one disagreement between a materialized projection and the value a
// full replay produces.
type Drift struct {
	Account string
	Key     string // ticker or currency
	Field   string // "quantity", "avg_cost" or "balance"
	Stored  decimal.Decimal
	Replay  decimal.Decimal
}

func (d Drift) String() string {
	return fmt.Sprintf("%s %s: stored %s is %s, replay says %s", d.Account, d.Key, d.Field, d.Stored, d.Replay)
}

// VerifyProjections replays an account's logs and reports every disagreement
// with the materialized projections, without writing anything. An empty
// result means the replay-equivalence invariant holds.
func (s *Store) VerifyProjections(ctx context.Context, account string) ([]Drift, error) {
	holdings, balances, err := s.replayProjections(ctx, account)
	if err != nil {
		return nil, err
	}
	storedHoldings, err := s.Holdings(ctx, account)
	if err != nil {
		return nil, err
	}
	storedBalances, err := s.CashBalances(ctx, account)
	if err != nil {
		return nil, err
	}

	var drifts []Drift

	replayQty := make(map[string]folio.Holding, len(holdings))
	for _, h := range holdings {
		replayQty[h.Ticker] = h
	}
	seen := make(map[string]bool, len(storedHoldings))
	for _, stored := range storedHoldings {
		seen[stored.Ticker] = true
		replay, ok := replayQty[stored.Ticker]
		if !ok {
			drifts = append(drifts, Drift{Account: account, Key: stored.Ticker, Field: "quantity",
				Stored: stored.Quantity.Decimal(), Replay: decimal.Zero})
			continue
		}
		if !stored.Quantity.Equal(replay.Quantity) {
			drifts = append(drifts, Drift{Account: account, Key: stored.Ticker, Field: "quantity",
				Stored: stored.Quantity.Decimal(), Replay: replay.Quantity.Decimal()})
		}
		if !stored.AverageCost.Decimal().Equal(replay.AverageCost.Decimal()) {
			drifts = append(drifts, Drift{Account: account, Key: stored.Ticker, Field: "avg_cost",
				Stored: stored.AverageCost.Decimal(), Replay: replay.AverageCost.Decimal()})
		}
	}
	for _, replay := range holdings {
		if !seen[replay.Ticker] {
			drifts = append(drifts, Drift{Account: account, Key: replay.Ticker, Field: "quantity",
				Stored: decimal.Zero, Replay: replay.Quantity.Decimal()})
		}
	}

	replayCash := make(map[string]folio.Money, len(balances))
	for _, b := range balances {
		replayCash[b.Currency] = b.Balance
	}
	seenCur := make(map[string]bool, len(storedBalances))
	for _, stored := range storedBalances {
		seenCur[stored.Currency] = true
		replay, ok := replayCash[stored.Currency]
		if !ok {
			replay = folio.M(0, stored.Currency)
		}
		if !stored.Balance.Decimal().Equal(replay.Decimal()) {
			drifts = append(drifts, Drift{Account: account, Key: stored.Currency, Field: "balance",
				Stored: stored.Balance.Decimal(), Replay: replay.Decimal()})
		}
	}
	for _, replay := range balances {
		if !seenCur[replay.Currency] && !replay.Balance.IsZero() {
			drifts = append(drifts, Drift{Account: account, Key: replay.Currency, Field: "balance",
				Stored: decimal.Zero, Replay: replay.Balance.Decimal()})
		}
	}
	return drifts, nil
}

var _ folio.Applier = (*Store)(nil)
var _ folio.ImportBatch = (*importBatch)(nil)
