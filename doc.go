// Package folio provides the core types and accounting rules for a personal,
// multi-account, multi-currency investment ledger spanning the Taiwan, US and
// Singapore equity markets.
//
// The package is built around an immutable event log: every operation on an
// account is recorded as a Transaction (a command such as Buy, Sell, Deposit
// or Convert) and is never updated or deleted afterwards. Current holdings and
// cash balances are projections of that log. The same weighted-average-cost
// and settlement arithmetic drives both the incremental update performed when
// a transaction is applied and the full replay performed by a Snapshot, so a
// rebuilt projection always agrees with the incrementally maintained one.
//
// The main pieces are:
//   - Value types: Date, Money and Quantity, backed by exact decimal
//     arithmetic.
//   - Accounts and markets: an Account is pinned to one market (TW, US or SG)
//     and its currency at creation.
//   - Transactions and the Ledger: the chronological command log, with a
//     JSONL encoding for export and audit.
//   - Journal and Snapshot: the double-entry expansion of commands and the
//     stateless calculators that replay it.
//   - Holdings: the weighted-average-cost position arithmetic shared by every
//     code path that moves a position.
//   - Planned orders: a small PENDING -> EXECUTED | CANCELLED state machine
//     for orders prepared ahead of execution.
//   - Reconciler: idempotent, order-insensitive import of externally sourced
//     events (broker CSV exports, bank statements).
//
// Persistence, market data retrieval and the command-line surface live in the
// store, marketdata and cmd packages; they all speak the types defined here.
package folio
