// Package chunking partitions a video into time-bounded segments and
// materializes each segment as an independent media artifact.
//
// Plan produces a deterministic, gap-free partition of [0, duration). The
// Extractor delegates decoding to a Decoder, then re-probes every artifact
// so metadata drift surfaces as an extraction error instead of a silently
// truncated chunk. Artifacts are owned by the caller and must be removed
// once analysis completes.
package chunking
