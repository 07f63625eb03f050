// Package pipeline orchestrates one transcription run.
//
// Run hashes and probes the source, plans chunks, consults the content cache,
// and on a miss extracts and analyses every chunk on a bounded worker pool
// before combining the results into one transcript. The transcript is then
// rendered, validated and written under
// <output_dir>/<video_id>/<fingerprint>/ together with run metadata, and the
// optional notification sink is told how the run ended.
//
// Chunk failures never abort a run; they become known gaps. Only invalid
// configuration, an unreadable source, or a run in which every chunk failed
// end Run with an error.
package pipeline
