// Package shared holds the building blocks used by every metering bounded
// context: domain errors, base entity fields, the clock abstraction and the
// ports for idempotency and per-tenant locking.
package shared
