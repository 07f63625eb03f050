// Command transcribe turns lecture and meeting videos into time-aligned
// transcripts of speech and visual events.
//
// Subcommands cover single-video processing, manifest batches, content cache
// administration, configuration scaffolding, environment status, transcript
// validation, re-rendering, and webhook testing.
package main
