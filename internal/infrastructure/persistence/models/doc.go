// Package models contains GORM persistence models that map to database tables.
// They are separate from domain entities so the domain layer stays free of ORM tags.
//
// Structure:
//   - base.go: BaseModel shared by entity tables
//   - metering.go: billing accounts, credit ledger, minute packs
//   - usage.go: usage periods written by the aggregator and usage report logs
package models
