// Package store provides the durable, transactional state of the gateway:
// users, pooled upstream credentials, and per-request logs, backed by an
// embedded SQLite database.
//
// All access goes through a single serialized connection guarded by a
// mutex held for the duration of one statement or transaction, never
// across network I/O. Multi-statement mutations run inside transactions
// and roll back as a unit. Reads are point lookups or bounded scans.
//
// Lifecycle status values are stored as small integers but never leave
// this package as such; callers see only the closed CredentialStatus and
// LogStatus types.
package store
