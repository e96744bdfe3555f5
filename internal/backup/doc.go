// Package backup implements the versioned export/import engine for portal
// and rental-plugin data.
//
// An export is a directory of JSON files, one per entity type, grouped into
// components (core portal data, rental plugin data, configuration). Each
// component carries a manifest with software/schema versions, per-entity
// record counts and a SHA-256 content checksum; a root manifest aggregates
// the components. Records are keyed by natural keys (stable, human-meaningful
// identifier tuples) so that re-import is idempotent and independent of
// database-assigned surrogate ids.
//
// Core components:
//
//   - Registry: owns the model name -> entity syncer mapping per component
//     and produces a dependency-safe processing order (DFS topological sort
//     with cycle detection)
//   - EntitySyncer: per-entity-type unit that enumerates source records,
//     converts them to/from portable records and applies create/update policy
//   - Manifest / RootManifest: export metadata, validation and checksums
//   - CompatibilityChecker: compares an export's declared versions against
//     the running instance and produces a three-level verdict
//   - ConfigCollector / CompareConfigSnapshots: configuration snapshots and
//     severity-tagged drift detection
//   - Archive: tar + compression + optional encryption of an export
//     directory, with local and cloud storage providers
//
// Error policy is fail-soft at the record level (a bad record is named in
// the result's error list and skipped, the batch continues) and fail-hard at
// registry/configuration level (a malformed registration or a dependency
// cycle is a programming error and surfaces immediately). Compatibility and
// checksum outcomes are never raised as errors; they are returned as
// structured reports so the caller decides policy.
package backup
