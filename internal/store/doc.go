// Package store provides the SQLite-backed compile log.
//
// Every compile run gets a row in runs, keyed by a random UUID and ordered
// by a logical seq. Each compiled query is appended to compilations with
// the inputs needed to recompile it (pipeline text, parameters, field
// types, function mappings) next to its outputs (text, bind variables,
// output behavior) and the content hash of those outputs.
//
// # Ordering
//
// All reads use ORDER BY seq ASC, with id or name COLLATE BINARY as the
// tie breaker, so listings are identical across machines.
//
// # Replay
//
// Replay recompiles every entry of a run and compares the fresh query hash
// with the recorded one. Any difference is reported as drift; a compiler
// that is deterministic never drifts against its own log.
//
// Parameters and bind variables are stored as canonical JSON produced by
// internal/ir, and hashes use ir.QueryHash and ir.SourceHash.
package store
