// Package ruleregistry provides a reusable library for publishing and
// fetching versioned coding-rule documents with pluggable repository and blob
// storage backends.
//
// It exposes a single Service interface that orchestrates rule creation,
// version publishing, content fetches, team membership checks, and stars.
// Implementations of repositories (e.g., memory, Postgres) and blob stores
// (e.g., memory, filesystem, S3) are provided under subpackages.
//
// # Write Ordering
//
// The metadata repository and the blob store are independent; no cross-store
// transaction exists. Every publish sequences its writes blob-first, then
// metadata, and performs best-effort compensating deletes when a later step
// fails. Compensation failures are logged and never mask the original error.
// A publish that loses the race on the unique (rule_id, version) constraint
// fails with ErrVersionExists, and the caller must resubmit with a new
// version number; no retries happen internally.
package ruleregistry
