// Package textutil provides text processing utilities for normalization,
// fingerprinting, similarity, and filename sanitization.
//
// The primary use cases are:
//   - Normalizing transcript text and speaker labels before comparison
//   - Creating token-based fingerprints from text for comparison
//   - Computing cosine similarity between fingerprints
//   - Sanitizing identifiers for safe filesystem use
//
// Normalization applies NFKC composition and Unicode case folding, strips
// punctuation, and collapses whitespace. Fingerprints are term-frequency
// vectors built from normalized tokens of at least two characters.
package textutil
