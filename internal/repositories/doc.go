// Package repositories provides the SQLite persistence layer for the local
// cache: project snapshots for offline reads and session cookies that
// survive between CLI invocations.
//
// Schema setup is guarded with a file lock next to the database so two CLI
// processes starting at once cannot race the migration.
package repositories
