package transcript

import (
	"cmp"
	"slices"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/services"
)

// Options configures Combine.
type Options struct {
	VideoID     string
	ContentHash string
	Duration    time.Duration
	Speakers    SpeakerPolicy
	Dedupe      DedupePolicy
}

// Combine merges chunk results into a single transcript. Results may arrive in
// any order; they are processed by chunk index. Failed chunks contribute no
// entries and are recorded as gaps.
func Combine(results []ChunkResult, opts Options) *Transcript {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b ChunkResult) int {
		return cmp.Compare(a.Spec.Index, b.Spec.Index)
	})

	duration := opts.Duration
	if duration <= 0 && len(ordered) > 0 {
		duration = ordered[len(ordered)-1].Spec.End
	}

	registry := NewRegistry(opts.Speakers)
	t := &Transcript{
		VideoID:     opts.VideoID,
		ContentHash: opts.ContentHash,
		Duration:    Millis(duration),
		ChunkCount:  len(ordered),
		Entries:     []CombinedEntry{},
		Gaps:        []Gap{},
	}

	// prevIdx holds output positions of the previous chunk, or nil when that
	// chunk failed or was not adjacent.
	var prevIdx []int
	prevChunk := -2
	for _, res := range ordered {
		spec := res.Spec
		if res.Err != nil {
			t.Gaps = append(t.Gaps, Gap{
				ChunkIndex: spec.Index,
				Start:      Millis(spec.Start),
				End:        Millis(min(spec.End, t.Duration)),
				Reason:     services.Kind(res.Err),
				Error:      res.Err.Error(),
			})
			prevIdx, prevChunk = nil, spec.Index
			continue
		}

		cur := placeEntries(res, t.Duration)
		if prevChunk != spec.Index-1 {
			prevIdx = nil
		}

		dups := opts.Dedupe.findDuplicates(t.Entries, prevIdx, cur, spec.Start)
		evidence := collectEvidence(t.Entries, prevIdx, cur, dups, spec.Start, opts.Speakers.BoundaryWindow)
		mapping := registry.Resolve(spec.Index, workingLabels(cur), evidence)
		for i := range cur {
			if cur[i].WorkingSpeaker != "" {
				cur[i].Speaker = mapping[cur[i].WorkingSpeaker]
			}
		}

		drop := make(map[int]bool, len(dups))
		for _, d := range dups {
			prev, c := t.Entries[d.prev], cur[d.cur]
			if !speakersCompatible(prev.Speaker, c.Speaker) {
				continue
			}
			if c.Duration() > prev.Duration() {
				t.Entries[d.prev] = c
			}
			drop[d.cur] = true
		}

		next := make([]int, 0, len(cur))
		for i, entry := range cur {
			if drop[i] {
				continue
			}
			next = append(next, len(t.Entries))
			t.Entries = append(t.Entries, entry)
		}
		for _, d := range dups {
			if drop[d.cur] && t.Entries[d.prev].ChunkIndex == spec.Index {
				next = append(next, d.prev)
			}
		}
		prevIdx, prevChunk = next, spec.Index
	}

	slices.SortStableFunc(t.Entries, compareEntries)
	t.Speakers = usedSpeakers(registry, t.Entries, opts.Speakers.KnownSpeakers)
	t.Assignments = registry.Assignments()
	return t
}

func compareEntries(a, b CombinedEntry) int {
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ChunkIndex, b.ChunkIndex); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// placeEntries offsets chunk-local entries onto the video timeline, clamped
// to [0, duration].
func placeEntries(res ChunkResult, duration time.Duration) []CombinedEntry {
	out := make([]CombinedEntry, 0, len(res.Entries))
	for seq, e := range res.Entries {
		start := clamp(res.Spec.Start+e.Start, duration)
		end := clamp(res.Spec.Start+e.End, duration)
		if end < start {
			end = start
		}
		out = append(out, CombinedEntry{
			Kind:              e.Kind,
			Start:             Millis(start),
			End:               Millis(end),
			LocalStart:        Millis(e.Start),
			LocalEnd:          Millis(e.End),
			WorkingSpeaker:    e.Speaker,
			SpokenText:        e.SpokenText,
			EventDescription:  e.EventDescription,
			VisualDescription: e.VisualDescription,
			ChunkIndex:        res.Spec.Index,
			Seq:               seq,
		})
	}
	return out
}

func clamp(d, duration time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if duration > 0 && d > duration {
		return duration
	}
	return d
}

func workingLabels(entries []CombinedEntry) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, e := range entries {
		if e.WorkingSpeaker == "" || seen[e.WorkingSpeaker] {
			continue
		}
		seen[e.WorkingSpeaker] = true
		labels = append(labels, e.WorkingSpeaker)
	}
	return labels
}

func collectEvidence(out []CombinedEntry, prevIdx []int, cur []CombinedEntry, dups []duplicate, boundary, window time.Duration) *boundaryEvidence {
	if len(prevIdx) == 0 {
		return nil
	}
	ev := &boundaryEvidence{
		tailSpeakers: make(map[string]struct{}),
		headSpeakers: make(map[string]struct{}),
		duplicates:   make(map[[2]string]struct{}),
	}
	var last *CombinedEntry
	for _, pi := range prevIdx {
		e := &out[pi]
		if e.Kind != KindUtterance || e.Speaker == "" {
			continue
		}
		if last == nil || e.End > last.End {
			last = e
		}
	}
	if last != nil && last.End >= boundary-window {
		ev.tailSpeakers[last.Speaker] = struct{}{}
	}
	for _, e := range cur {
		if e.Kind != KindUtterance || e.WorkingSpeaker == "" {
			continue
		}
		if e.Start <= boundary+window {
			ev.headSpeakers[e.WorkingSpeaker] = struct{}{}
		}
		break
	}
	for _, d := range dups {
		prev, c := out[d.prev], cur[d.cur]
		if prev.Speaker != "" && c.WorkingSpeaker != "" {
			ev.duplicates[[2]string{c.WorkingSpeaker, prev.Speaker}] = struct{}{}
		}
	}
	return ev
}

func speakersCompatible(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	return classify(a).class == classAnonymous || classify(b).class == classAnonymous
}

// usedSpeakers lists canonical labels that appear in entries, plus seeded
// known speakers, in registration order.
func usedSpeakers(r *Registry, entries []CombinedEntry, known []string) []string {
	used := make(map[string]bool)
	for _, e := range entries {
		if e.Speaker != "" {
			used[e.Speaker] = true
		}
	}
	for _, k := range known {
		used[k] = true
	}
	out := []string{}
	for _, name := range r.Speakers() {
		if used[name] {
			out = append(out, name)
			delete(used, name)
		}
	}
	// Anonymous labels never enter the registry.
	var rest []string
	for name := range used {
		if classify(name).class == classAnonymous {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}
