// Package validation inspects a combined transcript for quality problems.
//
// Check reports entries out of chronological order within a type, silent
// stretches longer than a threshold, overlapping entries of the same type,
// empty or filler-only entries, and the known gaps left by failed chunks.
// Utterances and events may overlap each other; only same-type overlaps are
// reported. The report is advisory: it never modifies the transcript.
package validation
