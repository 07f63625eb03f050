// Package format renders combined transcripts.
//
// Three representations exist: full (every field, JSON, parseable back with
// ParseFull), clean (a minimal JSON schema for downstream consumers) and text
// (a human-readable, time-bracketed listing). Rendering is a pure function of
// the transcript and Options: entries are never reordered or dropped, and the
// generation timestamp is supplied by the caller so identical inputs render
// byte-identical output.
package format
