package folio

import "errors"

// Sentinel errors for the failure modes of the ledger. Functions wrap them
// with fmt.Errorf and %w to add context; callers match them with errors.Is.
var (
	// ErrValidation rejects a malformed command before it reaches the log.
	ErrValidation = errors.New("invalid command")

	// ErrInsufficientPosition rejects a sell of more shares than are held.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrInsufficientCash rejects a buy that would overdraw a non-margin
	// account.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInvalidStateTransition rejects an operation on a planned order that
	// has already reached a terminal state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrDuplicateImport marks an imported event whose source reference has
	// already been committed. The reconciler counts these as no-ops.
	ErrDuplicateImport = errors.New("duplicate import")

	// ErrQuoteUnavailable reports that neither a fresh nor a stale quote
	// could be produced for a ticker or currency pair.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrNotFound reports a lookup of an account, order or transaction that
	// does not exist.
	ErrNotFound = errors.New("not found")
)
