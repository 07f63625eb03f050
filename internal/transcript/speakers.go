package transcript

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/textutil"
)

// SpeakerPolicy tunes how chunk-local speaker labels are reconciled.
type SpeakerPolicy struct {
	// MatchThreshold is the minimum score for a working label to join an
	// existing canonical label.
	MatchThreshold float64
	// BoundaryScore is awarded to numbered labels of the same role that speak
	// on both sides of a cut within BoundaryWindow.
	BoundaryScore  float64
	BoundaryWindow time.Duration
	// KnownSpeakers seed the registry before the first chunk.
	KnownSpeakers []string
}

// DefaultSpeakerPolicy mirrors the configuration defaults.
func DefaultSpeakerPolicy() SpeakerPolicy {
	return SpeakerPolicy{MatchThreshold: 0.7, BoundaryScore: 0.75, BoundaryWindow: 2 * time.Second}
}

type labelClass int

const (
	// classNamed labels identify a person or role ("teacher", "Dr. Smith").
	classNamed labelClass = iota
	// classNumbered labels are chunk-local placeholders ("speaker_1", "student_A").
	classNumbered
	// classAnonymous labels mean "unknown speaker" and are never reconciled.
	classAnonymous
)

var numberedLabel = regexp.MustCompile(`^(\pL+(?: \pL+)*) ([0-9]+|\pL)$`)

var anonymousLabels = map[string]struct{}{
	"speaker":         {},
	"unknown":         {},
	"unidentified":    {},
	"unknown speaker": {},
}

type label struct {
	raw   string
	norm  string
	class labelClass
	role  string
}

func classify(raw string) label {
	l := label{raw: strings.TrimSpace(raw), norm: textutil.Normalize(raw)}
	if _, ok := anonymousLabels[l.norm]; ok || l.norm == "" {
		l.class = classAnonymous
		return l
	}
	if m := numberedLabel.FindStringSubmatch(l.norm); m != nil {
		l.class = classNumbered
		l.role = m[1]
		return l
	}
	l.class = classNamed
	return l
}

type canonical struct {
	label
	order int
}

// Registry maps chunk-local working labels to canonical labels. It is built
// in chunk order and never rolled back.
type Registry struct {
	policy      SpeakerPolicy
	canonicals  []canonical
	taken       map[string]struct{}
	assignments []SpeakerAssignment
}

// NewRegistry creates a registry seeded with the policy's known speakers.
func NewRegistry(policy SpeakerPolicy) *Registry {
	r := &Registry{policy: policy, taken: make(map[string]struct{})}
	for _, name := range policy.KnownSpeakers {
		l := classify(name)
		if l.class == classAnonymous {
			continue
		}
		if _, dup := r.taken[l.raw]; dup {
			continue
		}
		r.register(l)
	}
	return r
}

func (r *Registry) register(l label) string {
	r.canonicals = append(r.canonicals, canonical{label: l, order: len(r.canonicals)})
	r.taken[l.raw] = struct{}{}
	return l.raw
}

// Speakers returns canonical labels in registration order.
func (r *Registry) Speakers() []string {
	out := make([]string, 0, len(r.canonicals))
	for _, c := range r.canonicals {
		out = append(out, c.raw)
	}
	return out
}

// Assignments returns every resolution performed so far.
func (r *Registry) Assignments() []SpeakerAssignment {
	return slices.Clone(r.assignments)
}

// boundaryEvidence describes who spoke across one cut point.
type boundaryEvidence struct {
	// tailSpeakers are canonical labels speaking at the end of the previous chunk.
	tailSpeakers map[string]struct{}
	// headSpeakers are working labels speaking at the start of this chunk.
	headSpeakers map[string]struct{}
	// duplicates pairs working labels with canonical labels that reported the
	// same utterance on both sides of the cut.
	duplicates map[[2]string]struct{}
}

func (b *boundaryEvidence) continuous(working, canonical string) bool {
	if b == nil {
		return false
	}
	_, tail := b.tailSpeakers[canonical]
	_, head := b.headSpeakers[working]
	return tail && head
}

func (b *boundaryEvidence) duplicated(working, canonical string) bool {
	if b == nil {
		return false
	}
	_, ok := b.duplicates[[2]string{working, canonical}]
	return ok
}

func (r *Registry) score(w label, c canonical, evidence *boundaryEvidence) float64 {
	if evidence.duplicated(w.raw, c.raw) {
		if w.class == classNamed && c.class == classNamed && w.norm != c.norm {
			return textutil.TextSimilarity(w.norm, c.norm)
		}
		return 1
	}
	switch {
	case w.class == classNamed && c.class == classNamed:
		if w.norm == c.norm {
			return 1
		}
		return textutil.TextSimilarity(w.norm, c.norm)
	case w.class == classNumbered && c.class == classNumbered:
		if w.role == c.role && evidence.continuous(w.raw, c.raw) {
			return r.policy.BoundaryScore
		}
	}
	return 0
}

// Resolve maps the working labels of one chunk (in first-appearance order)
// onto canonical labels. Candidates at or above the threshold are assigned
// greedily by descending score, breaking ties by earliest canonical label and
// then earliest working label. Unmatched labels become new canonical labels.
func (r *Registry) Resolve(chunkIndex int, working []string, evidence *boundaryEvidence) map[string]string {
	mapping := make(map[string]string, len(working))
	labels := make([]label, 0, len(working))
	for _, raw := range working {
		l := classify(raw)
		if l.class == classAnonymous {
			mapping[raw] = l.raw
			continue
		}
		labels = append(labels, l)
	}

	type candidate struct {
		w, c  int
		score float64
	}
	var candidates []candidate
	for wi, w := range labels {
		for ci, c := range r.canonicals {
			if s := r.score(w, c, evidence); s >= r.policy.MatchThreshold && s > 0 {
				candidates = append(candidates, candidate{w: wi, c: ci, score: s})
			}
		}
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if a.score != b.score {
			return cmp.Compare(b.score, a.score)
		}
		if a.c != b.c {
			return cmp.Compare(a.c, b.c)
		}
		return cmp.Compare(a.w, b.w)
	})

	usedW := make(map[int]bool, len(labels))
	usedC := make(map[int]bool, len(candidates))
	for _, cand := range candidates {
		if usedW[cand.w] || usedC[cand.c] {
			continue
		}
		usedW[cand.w] = true
		usedC[cand.c] = true
		w, c := labels[cand.w], r.canonicals[cand.c]
		mapping[w.raw] = c.raw
		r.assignments = append(r.assignments, SpeakerAssignment{
			ChunkIndex: chunkIndex, Working: w.raw, Canonical: c.raw, Score: cand.score, Matched: true,
		})
	}

	for wi, w := range labels {
		if usedW[wi] {
			continue
		}
		name := r.uniqueName(w.raw)
		nl := w
		nl.raw = name
		r.register(nl)
		mapping[w.raw] = name
		r.assignments = append(r.assignments, SpeakerAssignment{
			ChunkIndex: chunkIndex, Working: w.raw, Canonical: name,
		})
	}
	return mapping
}

func (r *Registry) uniqueName(base string) string {
	if _, ok := r.taken[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s #%d", base, n)
		if _, ok := r.taken[candidate]; !ok {
			return candidate
		}
	}
}
