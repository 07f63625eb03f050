package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/aminsmd/multimodal-transcription/internal/transcript"
)

var rule = strings.Repeat("=", 80)

func renderText(t *transcript.Transcript, opts Options) []byte {
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("FULL VIDEO TRANSCRIPT\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Video ID: %s\n", t.VideoID)
	if stamp := generatedStamp(opts.GeneratedAt); stamp != "" {
		fmt.Fprintf(&b, "Generated: %s\n", stamp)
	}
	if opts.RunID != "" {
		fmt.Fprintf(&b, "Run ID: %s\n", opts.RunID)
	}
	fmt.Fprintf(&b, "Total Entries: %d\n", len(t.Entries))
	fmt.Fprintf(&b, "Total Duration: %.1f seconds\n", transcript.Seconds(t.Duration))
	if len(t.Speakers) > 0 {
		fmt.Fprintf(&b, "Speakers: %s\n", strings.Join(t.Speakers, ", "))
	}
	b.WriteString("\n")

	for i := 0; i < len(t.Entries); {
		if opts.GroupSpeakers {
			if n := groupLength(t.Entries[i:]); n > 1 {
				writeGroup(&b, t.Entries[i:i+n])
				i += n
				continue
			}
		}
		b.WriteString(entryLine(t.Entries[i]))
		b.WriteString("\n\n")
		i++
	}

	if len(t.Gaps) > 0 {
		b.WriteString(rule + "\n")
		b.WriteString("KNOWN GAPS\n")
		b.WriteString(rule + "\n")
		for _, g := range t.Gaps {
			fmt.Fprintf(&b, "%s chunk %d: %s\n", bracket(g.Start, g.End), g.ChunkIndex, g.Reason)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")
	b.WriteString("END OF FULL TRANSCRIPT\n")
	b.WriteString(rule + "\n")
	return []byte(b.String())
}

// groupLength counts the run of consecutive utterances sharing the first
// entry's speaker.
func groupLength(entries []transcript.CombinedEntry) int {
	first := entries[0]
	if first.Kind != transcript.KindUtterance || strings.TrimSpace(first.Speaker) == "" {
		return 1
	}
	n := 1
	for n < len(entries) {
		next := entries[n]
		if next.Kind != transcript.KindUtterance || next.Speaker != first.Speaker {
			break
		}
		n++
	}
	return n
}

func writeGroup(b *strings.Builder, group []transcript.CombinedEntry) {
	last := group[len(group)-1]
	fmt.Fprintf(b, "%s %s:\n", bracket(group[0].Start, last.End), group[0].Speaker)
	for _, e := range group {
		fmt.Fprintf(b, "  %s %s", bracket(e.Start, e.End), contentOrPlaceholder(e))
		if visual := strings.TrimSpace(e.VisualDescription); visual != "" && strings.TrimSpace(e.SpokenText) != "" {
			fmt.Fprintf(b, " (Visual: %s)", visual)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func contentOrPlaceholder(e transcript.CombinedEntry) string {
	if text := strings.TrimSpace(e.SpokenText); text != "" {
		return text
	}
	if visual := strings.TrimSpace(e.VisualDescription); visual != "" {
		return "(Visual: " + visual + ")"
	}
	return "[No audio/visual content]"
}

func entryLine(e transcript.CombinedEntry) string {
	speaker := strings.TrimSpace(e.Speaker)
	text := strings.TrimSpace(primaryText(e))
	visual := strings.TrimSpace(e.VisualDescription)

	var parts []string
	switch {
	case e.Kind == transcript.KindEvent && text != "":
		parts = append(parts, "(Event: "+text+")")
	case speaker != "" && text != "":
		parts = append(parts, speaker+": "+text)
	case text != "":
		parts = append(parts, text)
	}
	if visual != "" {
		parts = append(parts, "(Visual: "+visual+")")
	}
	if len(parts) == 0 {
		parts = append(parts, "[No audio/visual content]")
	}
	return bracket(e.Start, e.End) + " " + strings.Join(parts, " ")
}

func bracket(start, end time.Duration) string {
	if transcript.Millis(start) == transcript.Millis(end) {
		return "[" + transcript.FormatTimecode(start) + "]"
	}
	return "[" + transcript.FormatTimecode(start) + " - " + transcript.FormatTimecode(end) + "]"
}
