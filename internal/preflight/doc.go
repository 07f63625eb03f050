// Package preflight provides readiness checks for the tools, directories and
// services the transcriber depends on.
//
// These checks run in two contexts:
//   - The process and batch commands call RunAll before starting a run, so a
//     missing ffmpeg or an unwritable work directory fails fast instead of
//     after minutes of probing.
//   - The CLI "transcribe status" command uses the individual check functions
//     (CheckAnalysis, CheckCacheBackend, CheckFreeSpace) to display health.
package preflight
