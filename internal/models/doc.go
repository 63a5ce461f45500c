// Package models defines the entities persisted by the local cache.
//
// The cache exists so the CLI can answer read queries offline: `cache sync`
// copies the authenticated user's projects into SQLite, and session cookies
// survive between CLI invocations in the same store.
//
// All persistent entities implement the [Model] interface; [Repository]
// defines the CRUD surface the repositories package implements for each
// entity type.
package models
