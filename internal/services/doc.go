// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp video ids, run ids, chunk indexes, stage names,
//     and correlation identifiers for logging and tracing.
//   - The error taxonomy (invalid configuration, extraction, transient service,
//     malformed response, chunk analysis failure, cache corruption) plus the Wrap
//     helper that tags failures for classification.
//
// Chunk-scoped failures are reported as gaps in the combined transcript; use
// IsChunkScoped to decide whether an error may abort the whole run.
package services
