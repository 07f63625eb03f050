// Package logs reads the transcriber's log file for the CLI.
//
// Tail returns the last N lines or everything after a byte offset, and can
// wait for new lines in follow mode. Filter narrows lines to one run, video,
// or minimum level; JSON lines are matched on their fields, console lines on
// their text.
package logs
