// Package store is the SQL backend for message fetches.
//
// It holds realms, users, channels, subscriptions, messages and the
// per-user message rows, and answers every directory lookup the narrow
// compiler makes. The same queries run on SQLite and Postgres; hand-written
// SQL uses ? placeholders and is rebound for Postgres.
//
// # Database Configuration
//
// SQLite:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Postgres adds generated full-text columns for the stemmed search backend,
// and optionally a pgroonga index (EnableKeywordSearch) for keyword search.
//
// Lookups that find nothing return errors wrapping model.ErrNotFound.
package store
