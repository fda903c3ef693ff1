// Package credit models the AI generation credit ledger.
//
// Every (tenant, credit type) pair owns an append-only sequence of entries.
// An entry is either a Delta, which adds its amount to the previous balance,
// or a Reset, which replaces the balance (the monthly allocation). The
// balance at any point is the BalanceAfter of the latest entry, and Replay
// recomputes it from the entries alone.
package credit
