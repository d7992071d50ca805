package folio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventKind separates trade events from cash events in an imported statement.
type EventKind string

const (
	EventTrade EventKind = "TRADE"
	EventCash  EventKind = "CASH"
)

// Event is one normalized row from an external statement, broker export or
// bank export. Importers produce Events; Reconcile turns them into ledger
// transactions.
type Event struct {
	SourceID string // stable row id from the source, "" when the source has none
	Account  string
	Kind     EventKind
	Date     Date
	Note     string

	// Trade fields.
	Ticker   string
	Side     OrderSide
	Quantity Quantity
	Price    Money
	Fee      Money
	Tax      Money

	// Cash fields. Amount is signed: credits positive, debits negative.
	Category CashCategory
	Amount   Money
}

// Ref returns the stable identity of the event used for duplicate detection
// across repeated imports. Sources that provide their own row id keep it;
// otherwise the identity is a digest of the fields that make a row unique in
// a statement.
func (e Event) Ref() string {
	if e.SourceID != "" {
		return e.SourceID
	}
	var key string
	switch e.Kind {
	case EventTrade:
		key = strings.Join([]string{
			e.Account, string(e.Kind), e.Date.String(), e.Ticker, string(e.Side),
			e.Quantity.String(), e.Price.String(),
		}, "|")
	default:
		key = strings.Join([]string{
			e.Account, string(e.Kind), e.Date.String(), string(e.Category),
			e.Amount.String(), e.Amount.Currency(),
		}, "|")
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Command converts the event into the ledger transaction it represents.
// Single-leg FX_CONVERSION lines from bank statements become external cash
// movements: the other leg of the conversion lives outside the imported
// account.
func (e Event) Command() (Transaction, error) {
	switch e.Kind {
	case EventTrade:
		switch e.Side {
		case SideBuy:
			return NewBuy(e.Date, e.Account, e.Note, e.Ticker, e.Quantity, e.Price, e.Fee, e.Tax).Validate()
		case SideSell:
			return NewSell(e.Date, e.Account, e.Note, e.Ticker, e.Quantity, e.Price, e.Fee, e.Tax).Validate()
		default:
			return nil, fmt.Errorf("%w: trade event side must be BUY or SELL, got %q", ErrValidation, e.Side)
		}
	case EventCash:
		switch e.Category {
		case CashDeposit:
			return NewDeposit(e.Date, e.Account, e.Note, e.Amount).Validate()
		case CashWithdrawal:
			return NewWithdraw(e.Date, e.Account, e.Note, e.Amount.Neg()).Validate()
		case CashDividend:
			return NewDividend(e.Date, e.Account, e.Note, e.Ticker, e.Amount).Validate()
		case CashInterest:
			return NewInterest(e.Date, e.Account, e.Note, e.Amount).Validate()
		case CashFee:
			return NewFee(e.Date, e.Account, e.Note, e.Ticker, e.Amount.Neg()).Validate()
		case CashConvert:
			if e.Amount.IsNegative() {
				return NewWithdraw(e.Date, e.Account, e.Note, e.Amount.Neg()).Validate()
			}
			return NewDeposit(e.Date, e.Account, e.Note, e.Amount).Validate()
		default:
			return nil, fmt.Errorf("%w: cash event has unknown category %q", ErrValidation, e.Category)
		}
	default:
		return nil, fmt.Errorf("%w: event kind must be TRADE or CASH, got %q", ErrValidation, e.Kind)
	}
}

// Applier is the persistence port the reconciler drives. The store implements
// it.
type Applier interface {
	// BeginImport takes the account's write serialization and returns a batch
	// bound to it. Until the batch is closed no other writer can commit to
	// the account.
	BeginImport(ctx context.Context, account string) (ImportBatch, error)
	// SaveBatch persists the import report.
	SaveBatch(ctx context.Context, report *Report) error
}

// ImportBatch drains one account's share of a statement under the account's
// write serialization.
type ImportBatch interface {
	// NewestEventDate returns the date of the account's most recent recorded
	// event, and false when the account has none.
	NewestEventDate(ctx context.Context) (Date, bool, error)
	// Apply records a transaction with its source reference, updating
	// projections, and fails with ErrDuplicateImport when the reference has
	// been recorded before.
	Apply(ctx context.Context, tx Transaction, sourceRef string) error
	// Rebuild recomputes the account's holdings and cash balances from its
	// full history.
	Rebuild(ctx context.Context) error
	// Close releases the account. Closing twice is a no-op.
	Close() error
}

// Report summarizes one reconciliation batch.
type Report struct {
	BatchID    string
	Source     string
	Imported   int
	Duplicates int
	Failed     int
	Errors     []string
	Rebuilt    []string // accounts rebuilt because events arrived out of order
}

// Reconcile applies a batch of imported events to the store. Events are
// grouped per account and drained oldest first, each account under its write
// serialization; a failing event is reported and skipped without aborting the
// batch; duplicates of earlier imports are counted and skipped. An account
// that received events older than its newest recorded event gets its
// projections rebuilt from scratch before it is released.
func Reconcile(ctx context.Context, applier Applier, source string, events []Event) (*Report, error) {
	report := &Report{
		BatchID: uuid.NewString(),
		Source:  source,
	}
	logger := log.With().Str("batch", report.BatchID).Str("source", source).Logger()

	// Oldest first so a fresh account replays its history in order.
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	byAccount := make(map[string][]Event)
	for _, e := range sorted {
		byAccount[e.Account] = append(byAccount[e.Account], e)
	}

	for _, account := range slices.Sorted(maps.Keys(byAccount)) {
		if err := reconcileAccount(ctx, applier, account, byAccount[account], report, logger); err != nil {
			return report, err
		}
	}

	if err := applier.SaveBatch(ctx, report); err != nil {
		return report, fmt.Errorf("cannot save import batch: %w", err)
	}

	logger.Info().
		Int("imported", report.Imported).
		Int("duplicates", report.Duplicates).
		Int("failed", report.Failed).
		Strs("rebuilt", report.Rebuilt).
		Msg("reconciled")
	return report, nil
}

// reconcileAccount drains one account's events while holding its write
// serialization, so no other command can commit between two rows of the same
// statement. The rebuild decision rests on the newest event date observed
// under that lock, and the rebuild itself runs before the account is
// released.
func reconcileAccount(ctx context.Context, applier Applier, account string, events []Event, report *Report, logger zerolog.Logger) error {
	batch, err := applier.BeginImport(ctx, account)
	if err != nil {
		return fmt.Errorf("cannot begin import into %q: %w", account, err)
	}
	defer batch.Close()

	// Incoming events older than the recorded history would leave the
	// incremental projections stale.
	newest, ok, err := batch.NewestEventDate(ctx)
	if err != nil {
		return fmt.Errorf("cannot read newest event date for %q: %w", account, err)
	}
	rebuild := false
	if ok {
		for _, e := range events {
			if e.Date.Before(newest) {
				rebuild = true
				break
			}
		}
	}

	for _, e := range events {
		tx, err := e.Command()
		if err == nil {
			err = batch.Apply(ctx, tx, e.Ref())
		}
		switch {
		case err == nil:
			report.Imported++
		case errors.Is(err, ErrDuplicateImport):
			report.Duplicates++
		default:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s %s: %v", e.Date, e.Account, err))
			logger.Warn().Err(err).
				Str("account", e.Account).
				Stringer("date", e.Date).
				Str("ref", e.Ref()).
				Msg("skipping event")
		}
	}

	if rebuild {
		if err := batch.Rebuild(ctx); err != nil {
			return fmt.Errorf("cannot rebuild projections for %q: %w", account, err)
		}
		report.Rebuilt = append(report.Rebuilt, account)
	}
	return batch.Close()
}
