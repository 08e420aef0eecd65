// Package core reconciles batches of outlet master-data records against
// customers, companies, addresses, payment settings and seller mappings.
//
// This package holds all domain logic independent of storage and
// transport. Persistence goes through the narrow store interfaces in
// stores.go, so the same engine runs against PostgreSQL, the in-memory
// store, or a test double.
//
// # Flow
//
// A call to [Engine.Process] runs three phases:
//
//  1. Classify: normalize every row, bulk-load vendors and existing
//     customers, park whitespace outlets, reject rows without a code or a
//     vendor, and queue customer inserts and updates.
//  2. Resolve: re-read customers to learn their ids, then save their
//     lifecycle attributes.
//  3. Reconcile: for each resolved row, save the default address, create
//     or update the company, then queue payment settings and the seller
//     mapping.
//
// # Write Strategies
//
// Customer, attribute, whitespace, payment and seller-mapping writes go
// through a [Writer]. [StrategyImmediate] writes each payload as it is
// produced; [StrategyBatched] groups payloads per table, last write wins
// per natural key, and writes them in chunks. Both upsert on the same keys
// and must leave the stores in the same state.
//
// # Errors
//
// A failing stage ends that row only. Failures are folded into a
// [Collector] as [ErrorEntry] values tagged with an [ErrorKind]. When no
// company id can be resolved for a row, the row's customer is deleted.
package core
