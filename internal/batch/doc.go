// Package batch runs the transcription pipeline over a manifest of videos.
//
// Manifests are spreadsheets (.xlsx) or CSV files whose first row is a
// header naming a path column and, optionally, a video id column. Videos are
// processed with bounded concurrency; one failed video never stops the rest.
package batch
