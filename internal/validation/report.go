package validation

import (
	"fmt"
	"io"
	"strings"
)

// WriteText renders a human-readable report.
func WriteText(w io.Writer, r *Report) error {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(&b, "%s\nTRANSCRIPT VALIDATION REPORT\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Video ID: %s\n", r.VideoID)
	if !r.CheckedAt.IsZero() {
		fmt.Fprintf(&b, "Checked: %s\n", r.CheckedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	fmt.Fprintf(&b, "Total Entries: %d\n", r.TotalEntries)
	fmt.Fprintf(&b, "Total Duration: %.2f seconds\n", r.DurationSeconds)
	fmt.Fprintf(&b, "Gap Threshold: %.1f seconds\n\n", r.GapThresholdSecond)

	b.WriteString("SUMMARY:\n")
	b.WriteString(strings.Repeat("-", 20) + "\n")
	fmt.Fprintf(&b, "Validation Passed: %s\n", yesNo(r.Passed))
	fmt.Fprintf(&b, "Total Issues: %d\n", len(r.Issues))
	fmt.Fprintf(&b, "  - Errors: %d\n", r.Severities[SeverityError])
	fmt.Fprintf(&b, "  - Warnings: %d\n", r.Severities[SeverityWarning])
	fmt.Fprintf(&b, "  - Info: %d\n", r.Severities[SeverityInfo])
	fmt.Fprintf(&b, "Chronological Order Valid: %s\n", yesNo(r.ChronologyValid))
	fmt.Fprintf(&b, "Gaps Found: %d\n", r.GapsFound)
	fmt.Fprintf(&b, "Failed Chunks: %d\n", len(r.FailedChunks))
	fmt.Fprintf(&b, "Overlaps Found: %d\n\n", r.OverlapsFound)

	if len(r.Issues) == 0 {
		b.WriteString("No issues found.\n")
	} else {
		b.WriteString("DETAILED ISSUES:\n")
		b.WriteString(strings.Repeat("-", 20) + "\n")
		for i, issue := range r.Issues {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, strings.ToUpper(string(issue.Type)), strings.ToUpper(string(issue.Severity)))
			fmt.Fprintf(&b, "   Time: %s - %s\n", issue.StartTime, issue.EndTime)
			fmt.Fprintf(&b, "   Description: %s\n", issue.Description)
			if issue.EntryIndex != nil {
				fmt.Fprintf(&b, "   Entry Index: %d\n", *issue.EntryIndex)
			}
			if issue.ChunkIndex != nil {
				fmt.Fprintf(&b, "   Chunk Index: %d\n", *issue.ChunkIndex)
			}
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
