package validation

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/textutil"
	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

// Severity ranks an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IssueType names the check that produced an issue.
type IssueType string

const (
	IssueChronology IssueType = "chronological_order"
	IssueGap        IssueType = "gap"
	IssueOverlap    IssueType = "overlap"
	IssueEmpty      IssueType = "empty_entry"
	IssueShort      IssueType = "short_entry"
	IssueFiller     IssueType = "filler_entry"
	IssueKnownGap   IssueType = "known_gap"
)

// DefaultGapThreshold is the silence length reported when no threshold is set.
const DefaultGapThreshold = 10 * time.Second

// Issue is one finding.
type Issue struct {
	Type        IssueType     `json:"issue_type"`
	Severity    Severity      `json:"severity"`
	Start       time.Duration `json:"start"`
	End         time.Duration `json:"end"`
	StartTime   string        `json:"start_time"`
	EndTime     string        `json:"end_time"`
	Description string        `json:"description"`
	EntryIndex  *int          `json:"entry_index,omitempty"`
	ChunkIndex  *int          `json:"chunk_index,omitempty"`
}

// Report summarises every issue found in a transcript.
type Report struct {
	VideoID            string           `json:"video_id"`
	CheckedAt          time.Time        `json:"checked_at,omitzero"`
	TotalEntries       int              `json:"total_entries"`
	DurationSeconds    float64          `json:"total_duration_seconds"`
	GapThresholdSecond float64          `json:"gap_threshold_seconds"`
	Passed             bool             `json:"validation_passed"`
	ChronologyValid    bool             `json:"chronological_order_valid"`
	GapsFound          int              `json:"gaps_found"`
	OverlapsFound      int              `json:"overlaps_found"`
	FailedChunks       []int            `json:"failed_chunks"`
	Severities         map[Severity]int `json:"severity_breakdown"`
	Issues             []Issue          `json:"issues"`
}

// Count returns the number of issues of type kind.
func (r *Report) Count(kind IssueType) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Type == kind {
			n++
		}
	}
	return n
}

// Checker runs the quality checks.
type Checker struct {
	GapThreshold time.Duration
	Now          func() time.Time
}

// Check inspects t and returns its report. A nil transcript yields an empty
// passing report.
func (c Checker) Check(t *transcript.Transcript) *Report {
	threshold := c.GapThreshold
	if threshold <= 0 {
		threshold = DefaultGapThreshold
	}
	report := &Report{
		GapThresholdSecond: transcript.Seconds(threshold),
		FailedChunks:       []int{},
		Severities:         map[Severity]int{},
		Issues:             []Issue{},
	}
	if c.Now != nil {
		report.CheckedAt = c.Now().UTC()
	}
	if t == nil {
		report.Passed = true
		report.ChronologyValid = true
		return report
	}
	report.VideoID = t.VideoID
	report.TotalEntries = len(t.Entries)
	report.DurationSeconds = transcript.Seconds(t.Duration)

	for _, kind := range []transcript.Kind{transcript.KindUtterance, transcript.KindEvent} {
		indexes := indexesOf(t.Entries, kind)
		report.Issues = append(report.Issues, checkChronology(t.Entries, indexes, kind)...)
		report.Issues = append(report.Issues, checkOverlaps(t.Entries, indexes, kind)...)
	}
	report.Issues = append(report.Issues, checkGaps(t, threshold)...)
	report.Issues = append(report.Issues, checkContent(t.Entries)...)
	report.Issues = append(report.Issues, knownGaps(t.Gaps)...)

	for _, issue := range report.Issues {
		report.Severities[issue.Severity]++
		switch issue.Type {
		case IssueGap:
			report.GapsFound++
		case IssueOverlap:
			report.OverlapsFound++
		case IssueKnownGap:
			if issue.ChunkIndex != nil {
				report.FailedChunks = append(report.FailedChunks, *issue.ChunkIndex)
			}
		}
	}
	slices.Sort(report.FailedChunks)
	report.ChronologyValid = report.Count(IssueChronology) == 0
	report.Passed = report.Severities[SeverityError] == 0
	return report
}

func indexesOf(entries []transcript.CombinedEntry, kind transcript.Kind) []int {
	var out []int
	for i, e := range entries {
		if e.Kind == kind {
			out = append(out, i)
		}
	}
	return out
}

func checkChronology(entries []transcript.CombinedEntry, indexes []int, kind transcript.Kind) []Issue {
	var issues []Issue
	for n := 1; n < len(indexes); n++ {
		prev, cur := entries[indexes[n-1]], entries[indexes[n]]
		if cur.Start >= prev.Start {
			continue
		}
		issues = append(issues, newIssue(IssueChronology, SeverityError, cur.Start, cur.End,
			fmt.Sprintf("%s entry %d starts at %s, before the previous %s at %s",
				kind, indexes[n], transcript.FormatTimecode(cur.Start), kind, transcript.FormatTimecode(prev.Start)),
			withEntry(indexes[n])))
	}
	return issues
}

func checkOverlaps(entries []transcript.CombinedEntry, indexes []int, kind transcript.Kind) []Issue {
	var issues []Issue
	for n := 1; n < len(indexes); n++ {
		prev, cur := entries[indexes[n-1]], entries[indexes[n]]
		if cur.Start >= prev.End || cur.Start < prev.Start {
			continue
		}
		overlap := min(prev.End, cur.End) - cur.Start
		issues = append(issues, newIssue(IssueOverlap, SeverityWarning, cur.Start, prev.End,
			fmt.Sprintf("overlap between %s entries: %.2f seconds (from %s to %s)",
				kind, overlap.Seconds(), transcript.FormatTimecode(cur.Start), transcript.FormatTimecode(prev.End)),
			withEntry(indexes[n])))
	}
	return issues
}

// checkGaps reports silent stretches across all entries, including the lead-in
// and the tail up to the video duration.
func checkGaps(t *transcript.Transcript, threshold time.Duration) []Issue {
	if len(t.Entries) == 0 {
		return nil
	}
	order := make([]int, len(t.Entries))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(t.Entries[a].Start, t.Entries[b].Start)
	})

	var issues []Issue
	first := t.Entries[order[0]]
	if first.Start > threshold {
		issues = append(issues, newIssue(IssueGap, SeverityWarning, 0, first.Start,
			fmt.Sprintf("gap at beginning of transcript: %.2f seconds", first.Start.Seconds()), withEntry(order[0])))
	}
	covered := first.End
	for _, idx := range order[1:] {
		e := t.Entries[idx]
		if gap := e.Start - covered; gap > threshold {
			issues = append(issues, newIssue(IssueGap, SeverityWarning, covered, e.Start,
				fmt.Sprintf("gap between entries: %.2f seconds (from %s to %s)",
					gap.Seconds(), transcript.FormatTimecode(covered), transcript.FormatTimecode(e.Start)),
				withEntry(idx)))
		}
		covered = max(covered, e.End)
	}
	if tail := t.Duration - covered; tail > threshold {
		issues = append(issues, newIssue(IssueGap, SeverityWarning, covered, t.Duration,
			fmt.Sprintf("gap at end of transcript: %.2f seconds", tail.Seconds()), withEntry(order[len(order)-1])))
	}
	return issues
}

func checkContent(entries []transcript.CombinedEntry) []Issue {
	var issues []Issue
	for i, e := range entries {
		text := strings.TrimSpace(e.Text())
		switch {
		case text == "":
			issues = append(issues, newIssue(IssueEmpty, SeverityError, e.Start, e.End,
				fmt.Sprintf("empty %s at %s", e.Kind, transcript.FormatTimecode(e.Start)), withEntry(i)))
		case e.Duration() < time.Second && len([]rune(text)) < 10 && e.Kind == transcript.KindUtterance:
			issues = append(issues, newIssue(IssueShort, SeverityWarning, e.Start, e.End,
				fmt.Sprintf("very short entry with minimal content: %q", text), withEntry(i)))
		case isFiller(text):
			issues = append(issues, newIssue(IssueFiller, SeverityInfo, e.Start, e.End,
				fmt.Sprintf("entry contains only filler content: %q", text), withEntry(i)))
		}
	}
	return issues
}

var fillerWords = map[string]struct{}{"um": {}, "uh": {}, "er": {}, "ah": {}, "oh": {}, "hmm": {}, "mm": {}}

func isFiller(text string) bool {
	normalized := textutil.Normalize(text)
	if normalized == "" {
		return true
	}
	if _, ok := fillerWords[normalized]; ok {
		return true
	}
	if len([]rune(normalized)) == 1 {
		return true
	}
	return strings.IndexFunc(normalized, func(r rune) bool { return r < '0' || r > '9' }) < 0
}

func knownGaps(gaps []transcript.Gap) []Issue {
	issues := make([]Issue, 0, len(gaps))
	for _, g := range gaps {
		desc := fmt.Sprintf("chunk %d produced no content: %s", g.ChunkIndex, g.Reason)
		if g.Error != "" {
			desc += " (" + g.Error + ")"
		}
		chunk := g.ChunkIndex
		issue := newIssue(IssueKnownGap, SeverityError, g.Start, g.End, desc)
		issue.ChunkIndex = &chunk
		issues = append(issues, issue)
	}
	return issues
}

type issueOption func(*Issue)

func withEntry(index int) issueOption {
	return func(i *Issue) { i.EntryIndex = &index }
}

func newIssue(kind IssueType, severity Severity, start, end time.Duration, desc string, opts ...issueOption) Issue {
	issue := Issue{
		Type:        kind,
		Severity:    severity,
		Start:       start,
		End:         end,
		StartTime:   transcript.FormatTimecode(start),
		EndTime:     transcript.FormatTimecode(end),
		Description: desc,
	}
	for _, opt := range opts {
		opt(&issue)
	}
	return issue
}
