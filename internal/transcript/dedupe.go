package transcript

import (
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/textutil"
)

// DedupePolicy controls boundary duplicate detection.
type DedupePolicy struct {
	// TextSimilarity is the minimum token cosine similarity for two entries
	// to count as the same utterance.
	TextSimilarity float64
	// Tolerance is how far from the cut point, and from each other, two
	// entries may lie and still be compared.
	Tolerance time.Duration
}

// DefaultDedupePolicy mirrors the configuration defaults.
func DefaultDedupePolicy() DedupePolicy {
	return DedupePolicy{TextSimilarity: 0.8, Tolerance: 2 * time.Second}
}

// duplicate pairs an entry already emitted from the previous chunk (prev is
// an index into the output slice) with an entry of the current chunk.
type duplicate struct {
	prev       int
	cur        int
	similarity float64
}

// findDuplicates compares entries near the cut at boundary. prevIdx lists
// output positions belonging to the previous chunk. Each entry takes part in
// at most one pair; current entries are matched in order, each against the
// most similar unused previous entry.
func (p DedupePolicy) findDuplicates(out []CombinedEntry, prevIdx []int, cur []CombinedEntry, boundary time.Duration) []duplicate {
	var pairs []duplicate
	used := make(map[int]bool)
	for ci, c := range cur {
		if c.Start > boundary+p.Tolerance {
			continue
		}
		best, bestSim := -1, 0.0
		for _, pi := range prevIdx {
			if used[pi] {
				continue
			}
			prev := out[pi]
			if prev.Kind != c.Kind || prev.End < boundary-p.Tolerance {
				continue
			}
			if c.Start > prev.End+p.Tolerance || prev.Start > c.End+p.Tolerance {
				continue
			}
			sim := textutil.TextSimilarity(prev.Text(), c.Text())
			if sim >= p.TextSimilarity && sim > bestSim {
				best, bestSim = pi, sim
			}
		}
		if best >= 0 {
			used[best] = true
			pairs = append(pairs, duplicate{prev: best, cur: ci, similarity: bestSim})
		}
	}
	return pairs
}
