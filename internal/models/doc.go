// Package models defines domain entities for the mixtape resolution service.
//
// The package contains two categories of types:
//
// 1. Pipeline values: Ephemeral structs that flow through one resolution batch
//   - [TrackRequest] : A generator-proposed track awaiting verification
//   - [CandidateRecord] : One raw hit from a single metadata source
//   - [MatchResult] : The matcher's per-source verdict
//   - [VerificationVerdict] : The combined cross-source decision
//   - [ResolvedTrack], [FailedTrack], [PipelineReport] : Batch output
//
// 2. Persistent records: Database-backed rows with lifecycle metadata
//   - [Run] : A completed resolution batch, stored for later inspection
//
// Persistent records implement the [Model] interface providing ID access,
// timestamps, and validation.
package models
