package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	sim := dot / (a.norm * b.norm)
	if sim > 1 {
		return 1
	}
	return sim
}

// TextSimilarity fingerprints both strings and returns their cosine similarity.
// Texts that normalize identically score 1 even when too short to fingerprint.
func TextSimilarity(a, b string) float64 {
	if EqualFold(a, b) {
		return 1
	}
	return CosineSimilarity(NewFingerprint(a), NewFingerprint(b))
}
