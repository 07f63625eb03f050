// Package cache short-circuits whole pipeline runs on an exact repeat.
//
// A Fingerprint (video content hash, chunk duration, model, prompt version)
// identifies one computation. Cache guarantees at most one concurrent
// computation per fingerprint: inside a process through singleflight (or an
// explicit ErrComputationInProgress under the reject policy), and across
// processes sharing a cache directory through an advisory file lock.
//
// Records never expire on their own. Callers force recomputation or
// invalidate entries explicitly. A record that fails to decode is treated as a
// miss and replaced by the next successful computation.
package cache
