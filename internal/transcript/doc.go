// Package transcript holds the transcript data model and the combiner that
// stitches per-chunk analysis results into one continuous timeline.
//
// Combine remaps chunk-local timestamps onto the video timeline, removes
// utterances reported twice across a cut point, reconciles chunk-local
// speaker labels through a Registry, sorts the result, and records failed
// chunks as known gaps. The output depends only on its inputs, so combining
// the same results twice yields identical transcripts.
package transcript
